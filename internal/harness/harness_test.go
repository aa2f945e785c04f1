package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/gatesched/internal/interp"
)

const diamondFixture = "../graphspec/testdata/diamond.yaml"

func TestRun_Scenarios(t *testing.T) {
	paths, err := ScenarioFiles("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Calls, len(s.Calls))
		})
	}
}

func TestRun_ScheduledResult(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/diamond.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, "scheduled", result.Outcome)
	assert.Empty(t, result.ErrorCode)
	assert.NotEmpty(t, result.GraphHash)
	assert.Contains(t, result.Dump, "B0 idom=B0")
	assert.Equal(t, []CallTrace{
		{Args: []string{"i32:1"}, Result: "i32:2"},
		{Args: []string{"i32:5"}, Result: "i32:10"},
	}, result.Calls)
}

func TestRun_FailedExpectations(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_blocks",
		Description: "expectations that do not hold",
		Fixture:     diamondFixture,
		Expect: Expect{
			IDom:      map[string]string{"t": "entry"},
			BlockOf:   map[string]string{"x": "f", "ghost": "t"},
			SameBlock: [][]string{{"x", "y"}},
			Dominates: [][]string{{"t", "y"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)

	assert.Contains(t, result.Errors[0], "Assertion failed: idom")
	assert.Contains(t, result.Errors[0], "Actual: br")
	assert.Contains(t, result.Errors[1], "no such gate")
	assert.Contains(t, result.Errors[2], "Assertion failed: block_of")
	assert.Contains(t, result.Errors[2], "Actual: block t")
	assert.Contains(t, result.Errors[3], "x in t, y in f")
	assert.Contains(t, result.Errors[4], "t does not dominate f")
	assert.Contains(t, result.Errors[4], "Schedule:\nB0 idom=B0")
}

func TestRun_WrongOutcome(t *testing.T) {
	s := &Scenario{
		Name:        "expects_schedule",
		Description: "a fallback unit checked as scheduled",
		Fixture:     "testdata/fixtures/incomparable.yaml",
		Expect:      Expect{BlockOf: map[string]string{"sum": "m"}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "fallback", result.Outcome)
	assert.Equal(t, "INCOMPARABLE_INPUTS", result.ErrorCode)
	assert.Empty(t, result.Dump)
	require.Len(t, result.Errors, 1, "block expectations are skipped once the outcome differs")
	assert.Contains(t, result.Errors[0], "Expected: scheduled")
	assert.Contains(t, result.Errors[0], "Actual: fallback: ")
}

func TestRun_WrongErrorCode(t *testing.T) {
	s := &Scenario{
		Name:        "open_loop",
		Description: "rejected with another code",
		Fixture:     "testdata/fixtures/open_loop.yaml",
		Expect:      Expect{Outcome: "rejected", ErrorCode: "V130"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, "V110", result.ErrorCode)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: error_code")
}

func TestRun_Conversions(t *testing.T) {
	s := &Scenario{
		Name:        "count_up",
		Description: "a conversion kind that is never inserted",
		Fixture:     "../graphspec/testdata/loops.cue#count_up",
		Retype:      true,
		Expect: Expect{
			Types:       map[string]string{"step": "FLOAT64"},
			Conversions: map[string]int{"NoSuchKind": 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.NotEmpty(t, result.Errors)
	last := result.Errors[len(result.Errors)-1]
	assert.Contains(t, last, "Expected: 1 NoSuchKind")
	assert.Contains(t, last, "Actual: 0")
}

func TestRun_CallMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "straight",
		Description: "a wrong sum and an error that never happens",
		Fixture:     "../graphspec/testdata/loops.cue#straight",
		Calls: []CallStep{
			{Args: []string{"i32:2", "i32:3"}, Result: "i32:6"},
			{Args: []string{"i32:2", "i32:3"}, Error: "DEOPT"},
			{Args: []string{"array:x"}, Result: "undefined"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "calls[0]: expected i32:6, got i32:5", result.Errors[0])
	assert.Equal(t, "calls[1]: expected error DEOPT, got i32:5", result.Errors[1])
	assert.Contains(t, result.Errors[2], "bad capacity")

	require.Len(t, result.Calls, 3)
	assert.Equal(t, "i32:5", result.Calls[0].Result)
	assert.Empty(t, result.Calls[2].Result)
}

func TestRun_UnexpectedCallError(t *testing.T) {
	s := &Scenario{
		Name:        "push",
		Description: "a receiver that is not an array",
		Fixture:     "builtin:array_push/1",
		Calls:       []CallStep{{Args: []string{"int:1", "int:2"}, Result: "i32:1"}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "calls[0]: expected i32:1, got error")
	assert.Equal(t, string(interp.ErrCodeTypeMismatch), result.Calls[0].Error)
}

func TestRun_LoadFailure(t *testing.T) {
	for _, fixture := range []string{
		"builtin:array_push/9",
		"builtin:array_pop/1",
		"testdata/fixtures/missing.yaml",
		diamondFixture + "#other",
	} {
		t.Run(fixture, func(t *testing.T) {
			_, err := Run(&Scenario{Name: "x", Description: "d", Fixture: fixture})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "load fixture")
		})
	}
}

func TestRun_Logger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := New(WithLogger(zap.New(core)))

	s, err := LoadScenario("testdata/scenarios/straight.yaml")
	require.NoError(t, err)
	result, err := h.Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	entries := logs.FilterMessage("unit scheduled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "straight", entries[0].ContextMap()["scenario"])
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := LoadScenario("testdata/scenarios/straight.yaml")
	require.NoError(t, err)
	_, err = New().Run(ctx, s)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseArg(t *testing.T) {
	v, err := parseArg("array:3")
	require.NoError(t, err)
	assert.Equal(t, "array[0/3]", v.String())

	v, err = parseArg("double:0.5")
	require.NoError(t, err)
	assert.Equal(t, interp.TaggedDouble(0.5), v)

	for _, bad := range []string{"array:-1", "array:", "object:1"} {
		_, err := parseArg(bad)
		assert.Error(t, err, bad)
	}
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{Type: "block_of", Expected: "x in block t", Actual: "block f", Dump: "B0 idom=B0\n"}
	assert.Equal(t,
		"Assertion failed: block_of\n  Expected: x in block t\n  Actual: block f\n\nSchedule:\nB0 idom=B0\n",
		err.Error())

	err.Dump = ""
	assert.NotContains(t, err.Error(), "Schedule:")
}
