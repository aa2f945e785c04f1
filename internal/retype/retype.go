// Package retype chooses a machine representation for every value of a
// circuit and inserts the conversions that make those choices consistent.
//
// The pass runs in two phases. RunRetypePhase assigns a TypeInfo to each gate
// without touching the graph. RunConvertPhase then rewrites value edges whose
// producer and consumer disagree, adding CONVERT and CHECK_AND_CONVERT gates.
// Convert only accepts the *Typing produced by Retype, so the phases cannot
// run out of order.
package retype

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/ir"
)

// Typing is the result of the Retype phase: one TypeInfo per gate.
type Typing struct {
	g       ir.Builder
	log     *zap.Logger
	types   []TypeInfo
	changes []uint8

	converted bool
}

// Option configures RunRetypePhase.
type Option func(*Typing)

// WithLogger sets the diagnostics sink. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(t *Typing) {
		if log != nil {
			t.log = log
		}
	}
}

// RunRetypePhase assigns a TypeInfo to every value-producing gate of g.
//
// Gates are processed from a worklist seeded with every non-root gate in id
// order. When a gate's TypeInfo changes its value users are queued again, so
// loop-carried phis reach a fixed point regardless of visiting order.
func RunRetypePhase(g ir.Builder, opts ...Option) *Typing {
	t := &Typing{g: g, log: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	t.run()
	return t
}

// Rerun repeats the Retype phase over the current graph and returns how many
// gates changed TypeInfo. It is zero once the assignment is stable.
func (t *Typing) Rerun() int {
	return t.run()
}

// Graph returns the graph the typing belongs to.
func (t *Typing) Graph() ir.Builder { return t.g }

// TypeOf returns the TypeInfo assigned to ref, or None.
func (t *Typing) TypeOf(ref ir.GateRef) TypeInfo {
	if int(ref) >= len(t.types) {
		return None
	}
	return t.types[ref]
}

// Converted reports whether RunConvertPhase has consumed this typing.
func (t *Typing) Converted() bool { return t.converted }

func (t *Typing) grow() {
	n := t.g.GateCount()
	for len(t.types) < n {
		t.types = append(t.types, None)
		t.changes = append(t.changes, 0)
	}
}

// setOutputType stores ti for ref and reports whether it changed.
func (t *Typing) setOutputType(ref ir.GateRef, ti TypeInfo) bool {
	if t.types[ref] == ti {
		return false
	}
	t.types[ref] = ti
	t.changes[ref]++
	if t.changes[ref] > height+1 {
		panic(fmt.Sprintf("unreachable: retype of %s did not converge (now %s)", ir.Label(t.g, ref), ti))
	}
	return true
}

func (t *Typing) run() int {
	t.grow()
	for i := range t.changes {
		t.changes[i] = 0
	}

	all := t.g.AllGates()
	queue := make([]ir.GateRef, 0, len(all))
	queued := make([]bool, len(all))
	for _, ref := range all {
		if t.g.IsRoot(ref) {
			continue
		}
		queue = append(queue, ref)
		queued[ref] = true
	}

	changed := map[ir.GateRef]bool{}
	visits := 0
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		queued[ref] = false
		visits++

		ti := visitorFor(t.g, ref).retype(t, ref)
		if !t.setOutputType(ref, ti) {
			continue
		}
		changed[ref] = true
		for _, u := range t.g.Uses(ref) {
			if !isValueUse(t.g, u) || queued[u.Gate] {
				continue
			}
			queue = append(queue, u.Gate)
			queued[u.Gate] = true
		}
	}

	t.log.Debug("retype complete",
		zap.Int("gates", len(all)),
		zap.Int("visits", visits),
		zap.Int("changed", len(changed)))
	return len(changed)
}

func isValueUse(g ir.Graph, u ir.Use) bool {
	start := g.ValueStart(u.Gate)
	return u.Index >= start && u.Index < start+g.GetNumValueIn(u.Gate)
}

func retypeNone(*Typing, ir.GateRef) TypeInfo { return None }

func retypeAny(*Typing, ir.GateRef) TypeInfo { return FromGateType(ir.AnyType) }

func retypeMachine(t *Typing, ref ir.GateRef) TypeInfo {
	return FromMachineType(t.g.GetMachineType(ref))
}

func retypeConstant(t *Typing, ref ir.GateRef) TypeInfo {
	if typ := t.g.GetGateType(ref); typ.IsNumberType() {
		return FromGateType(typ)
	}
	return FromGateType(ir.AnyType)
}

// retypePhi joins the inputs with the phi's own previous TypeInfo, which
// keeps the result monotone while a loop-carried input is still changing.
func retypePhi(t *Typing, ref ir.GateRef) TypeInfo {
	ti := t.types[ref]
	for i := 0; i < t.g.GetNumValueIn(ref); i++ {
		in := t.g.GetValueIn(ref, i)
		if in == ir.NullGate {
			continue
		}
		ti = Join(ti, t.types[in])
	}
	return ti
}

// retypeTypedBinary types numeric arithmetic natively: INT32 when the
// operands and result are int, FLOAT64 otherwise, even for a NUMBER result.
func retypeTypedBinary(t *Typing, ref ir.GateRef) TypeInfo {
	switch classifyBinary(t.g, ref) {
	case binaryArith:
		if intArith(t.g, ref) {
			return Int32
		}
		return Float64
	case binaryCompare, binaryUndefinedEq:
		return FromGateType(ir.BooleanType)
	case binaryShift:
		return FromGateType(ir.IntType)
	default:
		return Tagged
	}
}

func retypeTypedUnary(t *Typing, ref ir.GateRef) TypeInfo {
	switch classifyUnary(t.g, ref) {
	case unaryIntIncDec, unaryIntNot:
		return Int32
	case unaryDoubleIncDec:
		return Float64
	case unaryBoolJEQZ:
		return Int1
	default:
		return Tagged
	}
}
