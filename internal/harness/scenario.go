package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/collatz/internal/ir"
)

// MaxPermutedArrivals bounds scenarios with permute: true (8! = 40320 orders).
const MaxPermutedArrivals = 8

// Scenario defines a frontier merge scenario.
// Scenarios feed completion records to a fresh frontier in a fixed order and
// assert on the resulting watermark and backlog.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Watermark is the initial watermark (Threshold-1 for a fresh run).
	Watermark Num `yaml:"watermark"`

	// Slots is the backlog capacity.
	Slots int `yaml:"slots"`

	// Arrivals are completion records in arrival order.
	Arrivals []Arrival `yaml:"arrivals"`

	// Expect is the required final state.
	Expect Expect `yaml:"expect"`

	// Permute re-runs every ordering of Arrivals and requires the same final
	// state for each.
	Permute bool `yaml:"permute,omitempty"`
}

// Arrival is one completion record.
type Arrival struct {
	Start  Num    `yaml:"start"`
	Length uint64 `yaml:"length"`
}

// Expect is the final frontier state a scenario requires.
type Expect struct {
	Watermark Num `yaml:"watermark"`
	Backlog   int `yaml:"backlog"`

	// Error is the runtime error code that must stop the arrivals
	// (e.g. "BACKLOG_OVERFLOW"). Empty means every arrival is accepted.
	Error string `yaml:"error,omitempty"`
}

// Num is a 128-bit number in YAML, written as decimal or "2^k".
type Num struct {
	Value ir.Number
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Num) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := ir.ParseNumber(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	n.Value = v
	return nil
}

// String returns the decimal form.
func (n Num) String() string {
	return n.Value.String()
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "arrival:" vs "arrivals:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Slots < 1 {
		return fmt.Errorf("slots must be positive")
	}

	if len(s.Arrivals) == 0 {
		return fmt.Errorf("arrivals list is required and must be non-empty")
	}

	if s.Permute && len(s.Arrivals) > MaxPermutedArrivals {
		return fmt.Errorf("permute supports at most %d arrivals, got %d", MaxPermutedArrivals, len(s.Arrivals))
	}

	for i, a := range s.Arrivals {
		if a.Length == 0 {
			return fmt.Errorf("arrivals[%d]: length must be positive", i)
		}
	}

	if s.Expect.Backlog < 0 {
		return fmt.Errorf("expect.backlog must be non-negative")
	}

	return nil
}
