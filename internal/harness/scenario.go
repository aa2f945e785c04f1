package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gatesched/internal/retype"
	"github.com/roach88/gatesched/internal/store"
)

// Scenario defines a scheduling conformance scenario: one circuit, the
// passes to run over it, and what the resulting schedule must look like.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is "path" or "path#name" of a graphspec fixture, relative to
	// the scenario file, or "builtin:array_push/N".
	Fixture string `yaml:"fixture"`

	// Retype runs Retype and Convert before scheduling.
	Retype bool `yaml:"retype,omitempty"`

	// Expect holds the structural expectations on the result.
	Expect Expect `yaml:"expect"`

	// Calls execute the scheduled blocks with the interpreter.
	Calls []CallStep `yaml:"calls,omitempty"`
}

// Expect names blocks by their anchor gate: "entry" for STATE_ENTRY,
// otherwise the fixture name of the state gate that starts the block.
type Expect struct {
	// Outcome is scheduled (the default), fallback or rejected.
	Outcome string `yaml:"outcome,omitempty"`

	// ErrorCode is the verifier or scheduler code of a failed unit.
	ErrorCode string `yaml:"error_code,omitempty"`

	// IDom maps a block anchor to the anchor of its immediate dominator.
	IDom map[string]string `yaml:"idom,omitempty"`

	// BlockOf maps a gate to the anchor of the block it was placed in.
	BlockOf map[string]string `yaml:"block_of,omitempty"`

	// SameBlock lists groups of gates placed in one block.
	SameBlock [][]string `yaml:"same_block,omitempty"`

	// Dominates lists [a, b] pairs: the block of a dominates the block of b.
	Dominates [][]string `yaml:"dominates,omitempty"`

	// Types maps a gate to its Retype representation (INT32, TAGGED, ...).
	Types map[string]string `yaml:"types,omitempty"`

	// Conversions maps a conversion kind to the number of gates Convert
	// inserted for it. Kinds not listed must not appear.
	Conversions map[string]int `yaml:"conversions,omitempty"`
}

// CallStep runs the scheduled function once. Values use the interpreter's
// text form ("i32:5", "int:5", "double:0.5", "undefined"); an argument may
// also be "array:N", a fresh empty array with capacity N.
type CallStep struct {
	Args []string `yaml:"args"`

	// Result is the expected return value. Leave empty when Error is set.
	Result string `yaml:"result,omitempty"`

	// Error is the expected execution error code, e.g. DEOPT or TYPE_MISMATCH.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative fixture path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "same_blocks:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if !strings.HasPrefix(scenario.Fixture, builtinPrefix) && scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) {
		scenario.Fixture = filepath.Join(filepath.Dir(path), scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if !strings.HasPrefix(s.Fixture, builtinPrefix) {
		path, _, _ := strings.Cut(s.Fixture, "#")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("fixture file not found: %s", path)
		}
	}

	e := &s.Expect
	switch store.Outcome(e.Outcome) {
	case "", store.OutcomeScheduled:
		if e.ErrorCode != "" {
			return fmt.Errorf("expect: error_code needs outcome fallback or rejected")
		}
	case store.OutcomeFallback, store.OutcomeRejected:
		if len(e.IDom)+len(e.BlockOf)+len(e.SameBlock)+len(e.Dominates) > 0 || len(s.Calls) > 0 {
			return fmt.Errorf("expect: block expectations and calls need outcome scheduled")
		}
	default:
		return fmt.Errorf("expect: unknown outcome %q", e.Outcome)
	}

	if (len(e.Types) > 0 || len(e.Conversions) > 0) && !s.Retype {
		return fmt.Errorf("expect: types and conversions need retype: true")
	}
	for gate, ti := range e.Types {
		if _, err := retype.ParseTypeInfo(ti); err != nil {
			return fmt.Errorf("expect.types[%s]: %w", gate, err)
		}
	}
	for i, group := range e.SameBlock {
		if len(group) < 2 {
			return fmt.Errorf("expect.same_block[%d]: needs at least two gates", i)
		}
	}
	for i, pair := range e.Dominates {
		if len(pair) != 2 {
			return fmt.Errorf("expect.dominates[%d]: want [dominator, dominated]", i)
		}
	}

	for i, call := range s.Calls {
		if (call.Result == "") == (call.Error == "") {
			return fmt.Errorf("calls[%d]: exactly one of result and error is required", i)
		}
	}
	return nil
}
