package pipeline

import (
	"errors"
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/scheduler"
	"github.com/roach88/gatesched/internal/store"
	"github.com/roach88/gatesched/internal/verifier"
)

// ErrorCode categorizes why a unit did not compile.
type ErrorCode string

const (
	// ErrCodeInvalidGraph means the verifier rejected the input circuit.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"

	// ErrCodeScheduleFailed means the scheduler reported a verification
	// error. The unit must be compiled without this optimization.
	ErrCodeScheduleFailed ErrorCode = "SCHEDULE_FAILED"
)

// CompileError reports a unit that did not schedule. Cause carries the
// underlying verifier or scheduler error.
type CompileError struct {
	Code  ErrorCode
	Unit  string
	Gate  ir.GateRef
	Cause error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: unit %s: %v", e.Code, e.Unit, e.Cause)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Outcome maps the error to the run outcome recorded in the history.
func (e *CompileError) Outcome() store.Outcome {
	if e.Code == ErrCodeInvalidGraph {
		return store.OutcomeRejected
	}
	return store.OutcomeFallback
}

// CauseCode returns the verifier or scheduler code of the cause.
func (e *CompileError) CauseCode() string {
	switch cause := e.Cause.(type) {
	case verifier.VerifyError:
		return cause.Code
	case *scheduler.VerificationError:
		return string(cause.Code)
	}
	return string(e.Code)
}

// IsFallback reports whether err asks for the unit to be recompiled without
// the optimizing scheduler.
func IsFallback(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Code == ErrCodeScheduleFailed
}
