package scheduler

import (
	"errors"
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
)

// ErrorCode categorizes scheduler verification failures.
type ErrorCode string

const (
	// ErrCodeIncomparableInputs indicates two inputs of a gate are available
	// in blocks neither of which dominates the other.
	ErrCodeIncomparableInputs ErrorCode = "INCOMPARABLE_INPUTS"

	// ErrCodeValueCycle indicates a cycle among floating gates that no phi
	// breaks.
	ErrCodeValueCycle ErrorCode = "VALUE_CYCLE"

	// ErrCodeBoundOrder indicates a gate's upper bound does not dominate its
	// lower bound.
	ErrCodeBoundOrder ErrorCode = "BOUND_ORDER"

	// ErrCodeUnreachableInput indicates a gate is pinned to, or consumed in,
	// a block that is not reachable from the entry.
	ErrCodeUnreachableInput ErrorCode = "UNREACHABLE_INPUT"

	// ErrCodeIrreducible indicates the control skeleton is irreducible.
	ErrCodeIrreducible ErrorCode = "IRREDUCIBLE_CFG"

	// ErrCodePlacement indicates an assembled schedule reads a value where its
	// definition is not available.
	ErrCodePlacement ErrorCode = "INVALID_PLACEMENT"
)

// VerificationError reports a graph inconsistency found while scheduling.
// It aborts scheduling of the function; callers are expected to fall back to
// a non-optimizing path.
type VerificationError struct {
	Code    ErrorCode
	Gate    ir.GateRef
	Message string
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Gate == ir.NullGate {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (gate=%d)", e.Code, e.Message, e.Gate)
}

// IsVerificationError returns true if err is or wraps a VerificationError.
func IsVerificationError(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}

// ErrorCodeOf returns the code of a wrapped VerificationError, or "".
func ErrorCodeOf(err error) ErrorCode {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

func newVerificationError(code ErrorCode, gate ir.GateRef, format string, args ...any) *VerificationError {
	return &VerificationError{Code: code, Gate: gate, Message: fmt.Sprintf(format, args...)}
}
