package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/gatesched/internal/builtins"
	"github.com/roach88/gatesched/internal/graphspec"
	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/pipeline"
)

const builtinPrefix = "builtin:"

// SourceError reports a circuit argument that could not be loaded.
type SourceError struct {
	Code    string
	Arg     string
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Arg, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Arg, e.Message)
}

func (e *SourceError) Unwrap() error { return e.Err }

// source is one circuit named on the command line.
type source struct {
	Name     string
	Circuit  *ir.Circuit
	compiled *graphspec.Compiled // nil for builtins
}

func (s *source) unit() pipeline.Unit {
	return pipeline.Unit{Name: s.Name, Circuit: s.Circuit}
}

func (s *source) label(ref ir.GateRef) string {
	if s.compiled != nil {
		return s.compiled.Name(ref)
	}
	return ir.Label(s.Circuit, ref)
}

// loadSource accepts three forms:
//
//	path.yaml            a file holding exactly one fixture
//	path.cue#name        the named fixture of a file
//	builtin:array_push/N the generated push stub for N arguments
func loadSource(arg string) (*source, error) {
	if rest, ok := strings.CutPrefix(arg, builtinPrefix); ok {
		return loadBuiltin(arg, rest)
	}

	path, name, _ := strings.Cut(arg, "#")
	f, err := graphspec.LoadOne(path, name)
	if err != nil {
		code := ErrCodeFixture
		var fe *graphspec.FixtureError
		if !errors.As(err, &fe) {
			code = ErrCodeNotFound
		}
		return nil, &SourceError{Code: code, Arg: arg, Message: "cannot load fixture", Err: err}
	}
	compiled, err := graphspec.Compile(f)
	if err != nil {
		return nil, &SourceError{Code: ErrCodeFixture, Arg: arg, Message: "cannot build circuit", Err: err}
	}
	return &source{Name: f.Name, Circuit: compiled.Circuit, compiled: compiled}, nil
}

func loadBuiltin(arg, spec string) (*source, error) {
	kind, n, ok := strings.Cut(spec, "/")
	if kind != "array_push" {
		return nil, &SourceError{Code: ErrCodeNotFound, Arg: arg, Message: "unknown builtin (have array_push/N)"}
	}
	argc, err := strconv.Atoi(n)
	if !ok || err != nil || argc < 1 || argc > builtins.MaxPushArgs {
		return nil, &SourceError{
			Code:    ErrCodeFixture,
			Arg:     arg,
			Message: fmt.Sprintf("argument count must be 1..%d", builtins.MaxPushArgs),
		}
	}
	return &source{Name: spec, Circuit: builtins.BuildArrayPush(argc)}, nil
}

// reportSource prints a load failure and converts it to an exit error.
func reportSource(out *OutputFormatter, err error) error {
	var se *SourceError
	if errors.As(err, &se) {
		_ = out.Error(se.Code, se.Error(), nil)
		return WrapExitError(ExitCommandError, se.Code+": "+se.Message, se.Err)
	}
	return commandError(out, ErrCodeGeneric, "cannot load circuit", err)
}
