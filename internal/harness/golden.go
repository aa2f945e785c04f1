package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/gatesched/internal/ir"
)

// GoldenDir holds golden files relative to the test's package.
const GoldenDir = "testdata/golden"

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
}

// AssertGoldenDump compares a schedule dump against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGoldenDump(t *testing.T, name, dump string) {
	t.Helper()
	golden(t).Assert(t, name, []byte(dump))
}

// snapshot is the canonical form of a result without its dump. The graph
// hash is left out so fixture edits that keep the schedule keep the golden.
func (r *Result) snapshot(name string) map[string]any {
	calls := make([]any, len(r.Calls))
	for i, c := range r.Calls {
		args := make([]any, len(c.Args))
		for j, a := range c.Args {
			args[j] = a
		}
		call := map[string]any{"args": args}
		if c.Result != "" {
			call["result"] = c.Result
		}
		if c.Error != "" {
			call["error"] = c.Error
		}
		calls[i] = call
	}
	out := map[string]any{
		"scenario": name,
		"outcome":  r.Outcome,
		"calls":    calls,
	}
	if r.ErrorCode != "" {
		out["error_code"] = r.ErrorCode
	}
	return out
}

// RunWithGolden executes a scenario, fails the test on any unmet
// expectation, and compares the dump with {scenario.Name}.golden and the
// canonical JSON result with {scenario.Name}.result.golden.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		for _, msg := range result.Errors {
			t.Error(msg)
		}
		return fmt.Errorf("scenario %s: %d expectation(s) failed", scenario.Name, len(result.Errors))
	}

	data, err := ir.MarshalCanonical(result.snapshot(scenario.Name))
	if err != nil {
		return err
	}
	g := golden(t)
	g.Assert(t, scenario.Name, []byte(result.Dump))
	g.Assert(t, scenario.Name+".result", data)
	return nil
}
