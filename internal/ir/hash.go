package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainCounterexample prefixes counterexample hashes.
// The version suffix leaves room for a future algorithm migration.
const DomainCounterexample = "collatz/counterexample/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CounterexampleID computes the content-addressed ID of a counterexample.
// The same number, reason and step count always hash to the same ID, so a
// counterexample rediscovered after a restart is stored once.
func CounterexampleID(number Number, reason string, steps uint64) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"number": number,
		"reason": reason,
		"steps":  steps,
	})
	if err != nil {
		return "", fmt.Errorf("CounterexampleID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCounterexample, canonical), nil
}

// MarshalTrajectory encodes a trajectory as a canonical JSON array of decimal strings.
func MarshalTrajectory(trajectory []Number) (string, error) {
	data, err := MarshalCanonical(NumberStrings(trajectory))
	if err != nil {
		return "", fmt.Errorf("marshal trajectory: %w", err)
	}
	return string(data), nil
}
