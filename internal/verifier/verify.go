// Package verifier checks the structural well-formedness of a circuit before
// it is scheduled.
//
// Verify returns every problem it finds rather than stopping at the first
// one. An empty result means the circuit satisfies the shape the scheduler
// and the retype pass rely on.
package verifier

import (
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
)

// Verification error codes (V100-V199)
const (
	// Roots (V100-V104)
	ErrMissingRoot   = "V100" // STATE_ENTRY or ARG_LIST missing
	ErrDuplicateRoot = "V101" // more than one root of a kind

	// Inputs (V110-V119)
	ErrUnsetInput     = "V110" // NullGate left in an input slot
	ErrInputCount     = "V111" // input ranges do not match the opcode signature
	ErrStateInputKind = "V112" // state slot points at a non-state gate
	ErrRootInputKind  = "V113" // root slot points at a non-root gate
	ErrValueInputKind = "V114" // value slot points at a control-only gate
	ErrUnknownOpcode  = "V115" // opcode outside the known set

	// Fixed gates (V120-V129)
	ErrFixedControl  = "V120" // fixed gate pinned to the wrong kind of state gate
	ErrSelectorArity = "V121" // selector inputs do not match merge predecessors

	// Cycles (V130-V139)
	ErrValueCycle = "V130" // cycle among non-fixed gates
)

// VerifyError is one structural problem.
type VerifyError struct {
	Gate    ir.GateRef `json:"gate"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// Error implements the error interface.
func (e VerifyError) Error() string {
	if e.Gate == ir.NullGate {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] gate %d: %s", e.Code, e.Gate, e.Message)
}

// signature describes the input ranges of an opcode. Counts built with
// atLeast are lower bounds; the rest are exact.
type signature struct {
	state, depend, value, root int
}

func atLeast(n int) int { return -n - 1 }

var signatures = map[ir.Opcode]signature{
	ir.OpCircuitRoot:        {0, 0, 0, 0},
	ir.OpStateEntry:         {0, 0, 0, 1},
	ir.OpDependEntry:        {0, 0, 0, 1},
	ir.OpReturnList:         {0, 0, 0, 1},
	ir.OpArgList:            {0, 0, 0, 1},
	ir.OpArg:                {0, 0, 0, 1},
	ir.OpIfBranch:           {1, 0, 1, 0},
	ir.OpIfTrue:             {1, 0, 0, 0},
	ir.OpIfFalse:            {1, 0, 0, 0},
	ir.OpMerge:              {atLeast(2), 0, 0, 0},
	ir.OpLoopBegin:          {2, 0, 0, 0},
	ir.OpLoopBack:           {1, 0, 0, 0},
	ir.OpOrdinaryBlock:      {1, 0, 0, 0},
	ir.OpReturn:             {1, 1, 1, 1},
	ir.OpRuntimeCall:        {1, 1, atLeast(0), 0},
	ir.OpJSBytecode:         {1, 1, atLeast(0), 0},
	ir.OpValueSelector:      {1, 0, atLeast(1), 0},
	ir.OpDependSelector:     {1, atLeast(1), 0, 0},
	ir.OpDependRelay:        {1, 1, 0, 0},
	ir.OpConstant:           {0, 0, 0, 0},
	ir.OpAdd:                {0, 0, 2, 0},
	ir.OpSub:                {0, 0, 2, 0},
	ir.OpMul:                {0, 0, 2, 0},
	ir.OpAnd:                {0, 0, 2, 0},
	ir.OpOr:                 {0, 0, 2, 0},
	ir.OpICmp:               {0, 0, 2, 0},
	ir.OpFCmp:               {0, 0, 2, 0},
	ir.OpLoadField:          {0, 1, 1, 0},
	ir.OpStoreField:         {0, 1, 2, 0},
	ir.OpTypedBinaryOp:      {0, 0, 2, 0},
	ir.OpTypedUnaryOp:       {0, 0, 1, 0},
	ir.OpInt32OverflowCheck: {0, 1, 1, 0},
	ir.OpIndexCheck:         {0, 1, 2, 0},
	ir.OpLoadElement:        {0, 1, 2, 0},
	ir.OpStoreElement:       {0, 1, 3, 0},
	ir.OpConvert:            {0, 0, 1, 0},
	ir.OpCheckAndConvert:    {0, 0, 1, 0},
}

func countMatches(want, got int) bool {
	if want < 0 {
		return got >= -want-1
	}
	return got == want
}

func describe(want int) string {
	if want < 0 {
		return fmt.Sprintf("at least %d", -want-1)
	}
	return fmt.Sprintf("%d", want)
}

// Verify checks g and returns all problems found.
func Verify(g ir.Graph) []VerifyError {
	var errs []VerifyError
	add := func(gate ir.GateRef, code, format string, args ...any) {
		errs = append(errs, VerifyError{Gate: gate, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	roots := map[ir.Opcode]int{}
	for _, ref := range g.AllGates() {
		op := g.GetOpCode(ref)
		if op == ir.OpStateEntry || op == ir.OpArgList {
			roots[op]++
		}
	}
	for _, op := range []ir.Opcode{ir.OpStateEntry, ir.OpArgList} {
		switch n := roots[op]; {
		case n == 0:
			add(ir.NullGate, ErrMissingRoot, "circuit has no %s", op)
		case n > 1:
			add(ir.NullGate, ErrDuplicateRoot, "circuit has %d %s gates", n, op)
		}
	}

	for _, ref := range g.AllGates() {
		errs = append(errs, verifyGate(g, ref)...)
	}
	errs = append(errs, findValueCycles(g)...)
	return errs
}

func verifyGate(g ir.Graph, ref ir.GateRef) []VerifyError {
	var errs []VerifyError
	add := func(code, format string, args ...any) {
		errs = append(errs, VerifyError{Gate: ref, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	op := g.GetOpCode(ref)
	sig, ok := signatures[op]
	if !ok {
		add(ErrUnknownOpcode, "unknown opcode %s", op)
		return errs
	}
	counts := signature{g.GetStateCount(ref), g.GetDependCount(ref), g.GetNumValueIn(ref), g.GetRootCount(ref)}
	for _, c := range []struct {
		name      string
		want, got int
	}{
		{"state", sig.state, counts.state},
		{"depend", sig.depend, counts.depend},
		{"value", sig.value, counts.value},
		{"root", sig.root, counts.root},
	} {
		if !countMatches(c.want, c.got) {
			add(ErrInputCount, "%s expects %s %s inputs, has %d", op, describe(c.want), c.name, c.got)
		}
	}

	ins := g.GetIns(ref)
	for idx, in := range ins {
		if in == ir.NullGate {
			add(ErrUnsetInput, "input %d is unset", idx)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	valueStart := g.ValueStart(ref)
	rootStart := valueStart + counts.value
	for idx, in := range ins {
		switch {
		case idx < counts.state:
			if !g.IsState(in) {
				add(ErrStateInputKind, "state input %d is %s", idx, ir.Label(g, in))
			}
		case idx >= rootStart:
			if !g.IsRoot(in) {
				add(ErrRootInputKind, "root input %d is %s", idx, ir.Label(g, in))
			}
		case idx >= valueStart:
			if g.GetMachineType(in) == ir.NoValue {
				add(ErrValueInputKind, "value input %d is %s, which produces no value", idx, ir.Label(g, in))
			}
		}
	}

	if g.IsFixed(ref) {
		errs = append(errs, verifyFixed(g, ref)...)
	}
	return errs
}

func verifyFixed(g ir.Graph, ref ir.GateRef) []VerifyError {
	var errs []VerifyError
	control := g.GetIn(ref, 0)
	cop := g.GetOpCode(control)
	switch op := g.GetOpCode(ref); op {
	case ir.OpValueSelector, ir.OpDependSelector:
		if !cop.IsMergeLike() {
			errs = append(errs, VerifyError{Gate: ref, Code: ErrFixedControl,
				Message: fmt.Sprintf("%s must be pinned to MERGE or LOOP_BEGIN, not %s", op, cop)})
			return errs
		}
		preds := g.GetStateCount(control)
		got := g.GetNumValueIn(ref)
		if op == ir.OpDependSelector {
			got = g.GetDependCount(ref)
		}
		if got != preds {
			errs = append(errs, VerifyError{Gate: ref, Code: ErrSelectorArity,
				Message: fmt.Sprintf("%s has %d inputs for %d predecessors of %s", op, got, preds, ir.Label(g, control))})
		}
	case ir.OpDependRelay:
		if cop != ir.OpIfTrue && cop != ir.OpIfFalse {
			errs = append(errs, VerifyError{Gate: ref, Code: ErrFixedControl,
				Message: fmt.Sprintf("DEPEND_RELAY must be pinned to IF_TRUE or IF_FALSE, not %s", cop)})
		}
	}
	return errs
}
