package interp

import (
	"errors"
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
)

// ExecErrorCode categorizes execution failures.
type ExecErrorCode string

const (
	// ErrCodeUnscheduledRead indicates a gate read an input that had not
	// been computed on the path taken, so the schedule is invalid.
	ErrCodeUnscheduledRead ExecErrorCode = "UNSCHEDULED_READ"

	// ErrCodeDeopt indicates a CHECK_AND_CONVERT or bounds guard failed.
	ErrCodeDeopt ExecErrorCode = "DEOPT"

	// ErrCodeTypeMismatch indicates an operation received a value in a
	// representation it cannot handle.
	ErrCodeTypeMismatch ExecErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnsupported indicates a gate the interpreter cannot execute.
	ErrCodeUnsupported ExecErrorCode = "UNSUPPORTED"

	// ErrCodeBadControl indicates control left a block without a unique
	// successor.
	ErrCodeBadControl ExecErrorCode = "BAD_CONTROL"
)

// ExecError reports why a call could not complete.
type ExecError struct {
	Code    ExecErrorCode
	Gate    ir.GateRef
	Message string
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s (gate=%d)", e.Code, e.Message, e.Gate)
}

func execError(code ExecErrorCode, gate ir.GateRef, format string, args ...any) *ExecError {
	return &ExecError{Code: code, Gate: gate, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of a wrapped ExecError, or "".
func CodeOf(err error) ExecErrorCode {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// StepsExceededError is returned when a call executes more blocks than the
// configured limit.
type StepsExceededError struct {
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("execution exceeded max steps quota: %d blocks > %d limit", e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
