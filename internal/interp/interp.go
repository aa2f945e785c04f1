// Package interp executes a scheduled circuit.
//
// The interpreter walks the blocks of a scheduler.ControlFlowGraph and runs
// each block's gates in emission order, so it only succeeds when every value
// is computed before it is read on the path taken. It exists to check
// schedules end to end; it is not a fast execution engine.
package interp

import (
	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/scheduler"
)

// RuntimeFunc implements one runtime call. args are the call's value inputs.
type RuntimeFunc func(args []Value) (Value, error)

// Runtime maps callee ids (the bit field of RUNTIME_CALL) to implementations.
type Runtime map[uint64]RuntimeFunc

// DefaultMaxSteps bounds the number of blocks one call may execute.
const DefaultMaxSteps = 100000

// Interpreter runs one scheduled function.
type Interpreter struct {
	g        ir.Graph
	cfg      scheduler.ControlFlowGraph
	rt       Runtime
	log      *zap.Logger
	maxSteps int

	blockOf map[ir.GateRef]int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithRuntime sets the runtime call table.
func WithRuntime(rt Runtime) Option {
	return func(in *Interpreter) { in.rt = rt }
}

// WithMaxSteps sets the block execution limit.
func WithMaxSteps(n int) Option {
	return func(in *Interpreter) { in.maxSteps = n }
}

// WithLogger traces block transitions at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(in *Interpreter) {
		if log != nil {
			in.log = log
		}
	}
}

// New prepares an interpreter for cfg, which must have been scheduled from g.
func New(g ir.Graph, cfg scheduler.ControlFlowGraph, opts ...Option) *Interpreter {
	in := &Interpreter{
		g:        g,
		cfg:      cfg,
		rt:       Runtime{},
		log:      zap.NewNop(),
		maxSteps: DefaultMaxSteps,
		blockOf:  make(map[ir.GateRef]int, len(cfg)),
	}
	for _, opt := range opts {
		opt(in)
	}
	for i := range cfg {
		in.blockOf[cfg[i].Anchor()] = i
	}
	return in
}

// frame is the state of one call.
type frame struct {
	in     *Interpreter
	args   []Value
	values map[ir.GateRef]Value
}

// Call runs the function with the given arguments and returns the value of
// the RETURN reached.
func (in *Interpreter) Call(args ...Value) (Value, error) {
	f := &frame{in: in, args: args, values: make(map[ir.GateRef]Value)}
	prev, cur := -1, 0
	for steps := 1; ; steps++ {
		if steps > in.maxSteps {
			return Value{}, &StepsExceededError{Steps: steps, Limit: in.maxSteps}
		}
		in.log.Debug("enter block", zap.Int("block", cur), zap.Int("from", prev))
		if err := f.enter(cur, prev); err != nil {
			return Value{}, err
		}
		next, result, done, err := f.runBlock(cur)
		if err != nil {
			return Value{}, err
		}
		if done {
			return result, nil
		}
		prev, cur = cur, next
	}
}

// enter resolves the phis of block b for the edge from prev. All inputs are
// read before any phi is written, since one phi may feed another.
func (f *frame) enter(b, prev int) error {
	block := &f.in.cfg[b]
	anchor := block.Anchor()
	if prev < 0 || !f.in.g.GetOpCode(anchor).IsMergeLike() {
		return nil
	}
	slot := -1
	for i, s := range f.in.g.GetInStates(anchor) {
		if idx, ok := f.in.blockOf[s]; ok && idx == prev {
			slot = i
			break
		}
	}
	if slot < 0 {
		return execError(ErrCodeBadControl, anchor, "block %d is not a predecessor of block %d", prev, b)
	}

	type pending struct {
		phi ir.GateRef
		v   Value
	}
	var updates []pending
	for _, ref := range block.Gates {
		if f.in.g.GetOpCode(ref) != ir.OpValueSelector {
			continue
		}
		v, err := f.read(ref, f.in.g.GetValueIn(ref, slot))
		if err != nil {
			return err
		}
		updates = append(updates, pending{phi: ref, v: v})
	}
	for _, u := range updates {
		f.values[u.phi] = u.v
	}
	return nil
}

// runBlock executes block b and reports where control goes.
func (f *frame) runBlock(b int) (next int, result Value, done bool, err error) {
	block := &f.in.cfg[b]
	anchor := block.Anchor()
	g := f.in.g
	for _, ref := range block.EmissionOrder() {
		switch {
		case g.IsFixed(ref):
			continue
		case ref == anchor:
			if err := f.runAnchor(anchor); err != nil {
				return 0, Value{}, false, err
			}
			continue
		}
		if err := f.eval(ref); err != nil {
			return 0, Value{}, false, err
		}
	}

	switch g.GetOpCode(anchor) {
	case ir.OpReturn:
		v, err := f.read(anchor, g.GetValueIn(anchor, 0))
		return 0, v, true, err
	case ir.OpIfBranch:
		cond, err := f.read(anchor, g.GetValueIn(anchor, 0))
		if err != nil {
			return 0, Value{}, false, err
		}
		want := ir.OpIfFalse
		if cond.Truthy() {
			want = ir.OpIfTrue
		}
		for _, s := range block.Succs {
			if g.GetOpCode(f.in.cfg[s].Anchor()) == want {
				return s, Value{}, false, nil
			}
		}
		return 0, Value{}, false, execError(ErrCodeBadControl, anchor, "branch has no %s successor", want)
	}

	if len(block.Succs) != 1 {
		return 0, Value{}, false, execError(ErrCodeBadControl, anchor,
			"block %d has %d successors", b, len(block.Succs))
	}
	return block.Succs[0], Value{}, false, nil
}

// runAnchor executes the work a state gate does at its place in the block.
// Branches and returns act after the block, in runBlock.
func (f *frame) runAnchor(ref ir.GateRef) error {
	switch f.in.g.GetOpCode(ref) {
	case ir.OpRuntimeCall:
		return f.call(ref)
	case ir.OpJSBytecode:
		return execError(ErrCodeUnsupported, ref, "cannot execute JS_BYTECODE")
	}
	return nil
}

func (f *frame) call(ref ir.GateRef) error {
	callee := f.in.g.GetBitField(ref)
	fn, ok := f.in.rt[callee]
	if !ok {
		return execError(ErrCodeUnsupported, ref, "no runtime function %d", callee)
	}
	args, err := f.valueIns(ref)
	if err != nil {
		return err
	}
	v, err := fn(args)
	if err != nil {
		return err
	}
	f.values[ref] = v
	return nil
}

// read returns the value of in as seen by user.
func (f *frame) read(user, in ir.GateRef) (Value, error) {
	v, ok := f.values[in]
	if !ok {
		return Value{}, execError(ErrCodeUnscheduledRead, user,
			"%s reads %s before it is computed", ir.Label(f.in.g, user), ir.Label(f.in.g, in))
	}
	return v, nil
}

func (f *frame) valueIns(ref ir.GateRef) ([]Value, error) {
	n := f.in.g.GetNumValueIn(ref)
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		v, err := f.read(ref, f.in.g.GetValueIn(ref, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
