package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/builtins"
	"github.com/roach88/gatesched/internal/config"
	"github.com/roach88/gatesched/internal/graphspec"
	"github.com/roach88/gatesched/internal/interp"
	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/pipeline"
)

const builtinPrefix = "builtin:"

// maxCallSteps bounds every scenario call so a bad schedule cannot hang a test.
const maxCallSteps = 10_000

// Harness runs scenarios through the compile pipeline with deterministic
// run ids and sequence numbers, so dumps and results are reproducible.
type Harness struct {
	log *zap.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger receives pipeline and interpreter diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(h *Harness) { h.log = log }
}

// New creates a harness. By default diagnostics are discarded.
func New(opts ...Option) *Harness {
	h := &Harness{log: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run compiles the scenario's circuit, evaluates its expectations and
// executes its calls. The returned error is set only when the scenario
// could not be executed at all; failed expectations are reported in
// Result.Errors.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	subject, err := loadSubject(scenario.Fixture)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}

	cfg := config.Default()
	cfg.Retype.Enabled = scenario.Retype
	cfg.Scheduler.Dump = true
	p := pipeline.New(cfg,
		pipeline.WithLogger(h.log.With(zap.String("scenario", scenario.Name))),
		pipeline.WithRunIDs(pipeline.NewFixedGenerator(scenario.Name)),
		pipeline.WithClock(pipeline.NewClockAt(0)))

	res, err := p.Compile(ctx, pipeline.Unit{Name: scenario.Name, Circuit: subject.Circuit})
	var ce *pipeline.CompileError
	if err != nil && !errors.As(err, &ce) {
		return nil, err
	}

	result := NewResult()
	result.Outcome = string(res.Outcome)
	result.GraphHash = res.GraphHash
	result.Dump = res.Dump
	if ce != nil {
		result.ErrorCode = ce.CauseCode()
	}

	for _, msg := range EvaluateExpectations(subject, res, scenario.Expect) {
		result.AddError(msg)
	}
	if res.Schedule == nil {
		return result, nil
	}

	in := interp.New(subject.Circuit, res.Schedule.CFG,
		interp.WithRuntime(builtins.Runtime()),
		interp.WithMaxSteps(maxCallSteps),
		interp.WithLogger(h.log))
	for i, call := range scenario.Calls {
		trace, msg := runCall(in, call)
		result.Calls = append(result.Calls, trace)
		if msg != "" {
			result.AddError(fmt.Sprintf("calls[%d]: %s", i, msg))
		}
	}
	return result, nil
}

func runCall(in *interp.Interpreter, call CallStep) (CallTrace, string) {
	trace := CallTrace{Args: call.Args}
	args := make([]interp.Value, len(call.Args))
	for i, a := range call.Args {
		v, err := parseArg(a)
		if err != nil {
			return trace, err.Error()
		}
		args[i] = v
	}

	got, err := in.Call(args...)
	if err != nil {
		code := string(interp.CodeOf(err))
		if interp.IsStepsExceededError(err) {
			code = "STEPS_EXCEEDED"
		}
		trace.Error = code
		if call.Error != code {
			return trace, fmt.Sprintf("expected %s, got error %v", expectedCall(call), err)
		}
		return trace, ""
	}

	trace.Result = got.String()
	if call.Error != "" {
		return trace, fmt.Sprintf("expected error %s, got %s", call.Error, got)
	}
	want, err := interp.ParseValue(call.Result)
	if err != nil {
		return trace, err.Error()
	}
	if got.String() != want.String() {
		return trace, fmt.Sprintf("expected %s, got %s", want, got)
	}
	return trace, ""
}

func expectedCall(call CallStep) string {
	if call.Error != "" {
		return "error " + call.Error
	}
	return call.Result
}

// parseArg accepts "array:N" besides the interpreter's scalar forms.
func parseArg(s string) (interp.Value, error) {
	if n, ok := strings.CutPrefix(s, "array:"); ok {
		capacity, err := strconv.ParseInt(n, 10, 32)
		if err != nil || capacity < 0 {
			return interp.Value{}, fmt.Errorf("argument %q: bad capacity", s)
		}
		return interp.Object(interp.NewArray(int32(capacity))), nil
	}
	return interp.ParseValue(s)
}

// loadSubject builds the scenario circuit and its gate names.
func loadSubject(fixture string) (*graphspec.Compiled, error) {
	if spec, ok := strings.CutPrefix(fixture, builtinPrefix); ok {
		n, found := strings.CutPrefix(spec, "array_push/")
		argc, err := strconv.Atoi(n)
		if !found || err != nil || argc < 1 || argc > builtins.MaxPushArgs {
			return nil, fmt.Errorf("unknown builtin %q", fixture)
		}
		return named(builtins.BuildArrayPush(argc)), nil
	}

	path, name, _ := strings.Cut(fixture, "#")
	f, err := graphspec.LoadOne(path, name)
	if err != nil {
		return nil, err
	}
	return graphspec.Compile(f)
}

// named indexes the gates of a generated circuit by their names.
func named(c *ir.Circuit) *graphspec.Compiled {
	refs := map[string]ir.GateRef{
		graphspec.EntryName:       c.StateEntry(),
		graphspec.DependEntryName: c.DependEntry(),
	}
	for _, ref := range c.AllGates() {
		if n := c.GetName(ref); n != "" {
			refs[n] = ref
		}
	}
	return &graphspec.Compiled{Circuit: c, Refs: refs}
}
