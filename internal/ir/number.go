package ir

import (
	"fmt"
	"strconv"
	"strings"

	"lukechampine.com/uint128"
)

// Number is the fixed-width integer domain of the verifier.
//
// 128 bits covers thresholds such as 2^68 with plenty of headroom for the
// intermediate 3v+1 values; trajectories that would leave the domain are
// reported as overflow rather than wrapped.
type Number = uint128.Uint128

// MaxThresholdExponent bounds the "2^k" notation accepted by ParseNumber and
// the value accepted by ParseThreshold.
const MaxThresholdExponent = 127

// MaxThreshold is the largest threshold the verifier accepts, leaving the
// cursor half of the 128-bit domain to advance through.
var MaxThreshold = uint128.From64(1).Lsh(MaxThresholdExponent)

// NewNumber returns n as a Number.
func NewNumber(n uint64) Number {
	return uint128.From64(n)
}

// ParseNumber parses a decimal string or power-of-two notation ("2^68").
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}, fmt.Errorf("parse number: empty string")
	}

	if base, exp, ok := strings.Cut(s, "^"); ok {
		if strings.TrimSpace(base) != "2" {
			return Number{}, fmt.Errorf("parse number %q: only powers of two are supported", s)
		}
		k, err := strconv.ParseUint(strings.TrimSpace(exp), 10, 8)
		if err != nil {
			return Number{}, fmt.Errorf("parse number %q: %w", s, err)
		}
		if k > MaxThresholdExponent {
			return Number{}, fmt.Errorf("parse number %q: exponent must be <= %d", s, MaxThresholdExponent)
		}
		return uint128.From64(1).Lsh(uint(k)), nil
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return Number{}, fmt.Errorf("parse number %q: not a decimal integer", s)
		}
	}
	n, err := uint128.FromString(s)
	if err != nil {
		return Number{}, fmt.Errorf("parse number %q: %w", s, err)
	}
	return n, nil
}

// ParseThreshold parses a threshold and rejects values above MaxThreshold,
// whichever notation they are written in.
func ParseThreshold(s string) (Number, error) {
	n, err := ParseNumber(s)
	if err != nil {
		return Number{}, err
	}
	if n.Cmp(MaxThreshold) > 0 {
		return Number{}, fmt.Errorf("threshold %s: must be <= 2^%d", strings.TrimSpace(s), MaxThresholdExponent)
	}
	return n, nil
}

// MustParseNumber is ParseNumber for constants and tests. Panics on error.
func MustParseNumber(s string) Number {
	n, err := ParseNumber(s)
	if err != nil {
		panic(err)
	}
	return n
}

// RangeEnd returns the last number of the half-open range [start, start+length).
// length must be positive.
func RangeEnd(start Number, length uint64) Number {
	return start.Add64(length - 1)
}

// NumberStrings renders numbers as decimal strings, the JSON form of Number.
func NumberStrings(ns []Number) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.String()
	}
	return out
}
