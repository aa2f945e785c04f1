package graphspec

import (
	"fmt"
	"math"

	"github.com/roach88/gatesched/internal/ir"
)

// Compiled is a fixture turned into a circuit, with its gate names.
type Compiled struct {
	Circuit *ir.Circuit
	Refs    map[string]ir.GateRef
}

// Ref returns the gate called name. It panics on an unknown name, which is
// only ever a mistake in a test or scenario.
func (c *Compiled) Ref(name string) ir.GateRef {
	ref, ok := c.Refs[name]
	if !ok {
		panic(fmt.Sprintf("BUG: no gate named %q", name))
	}
	return ref
}

// Name returns the fixture name of ref, or its label when it has none.
func (c *Compiled) Name(ref ir.GateRef) string {
	if n := c.Circuit.GetName(ref); n != "" {
		return n
	}
	return ir.Label(c.Circuit, ref)
}

// defaultMachine mirrors the machine types the ir builder helpers use.
func defaultMachine(op ir.Opcode) ir.MachineType {
	switch op {
	case ir.OpArg, ir.OpRuntimeCall, ir.OpJSBytecode, ir.OpLoadElement, ir.OpValueSelector:
		return ir.I64
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr,
		ir.OpLoadField, ir.OpIndexCheck, ir.OpInt32OverflowCheck:
		return ir.I32
	case ir.OpICmp, ir.OpFCmp:
		return ir.I1
	case ir.OpTypedBinaryOp, ir.OpTypedUnaryOp:
		return ir.AnyValue
	}
	return ir.NoValue
}

func defaultType(op ir.Opcode) ir.GateType {
	switch op {
	case ir.OpICmp, ir.OpFCmp:
		return ir.BooleanType
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr,
		ir.OpLoadField, ir.OpIndexCheck, ir.OpInt32OverflowCheck:
		return ir.IntType
	}
	return ir.AnyType
}

type compiler struct {
	f    *Fixture
	c    *ir.Circuit
	refs map[string]ir.GateRef
}

func (b *compiler) errorf(gate, format string, args ...any) error {
	return &FixtureError{Fixture: b.f.Name, Gate: gate, Message: fmt.Sprintf(format, args...)}
}

// Compile builds the circuit described by f. Gates are created in fixture
// order, so gate ids follow the file; inputs are wired in a second pass.
// Compile checks the fixture's own consistency only; use the verifier for
// graph well-formedness.
func Compile(f *Fixture) (*Compiled, error) {
	b := &compiler{f: f, c: ir.NewCircuit(), refs: make(map[string]ir.GateRef, len(f.Gates)+2)}
	b.refs[EntryName] = b.c.StateEntry()
	b.refs[DependEntryName] = b.c.DependEntry()
	if len(f.Gates) == 0 {
		return nil, b.errorf("", "no gates")
	}

	for i := range f.Gates {
		if err := b.declare(&f.Gates[i]); err != nil {
			return nil, err
		}
	}
	for i := range f.Gates {
		if err := b.wire(&f.Gates[i]); err != nil {
			return nil, err
		}
	}
	return &Compiled{Circuit: b.c, Refs: b.refs}, nil
}

func unset(n int) []ir.GateRef {
	out := make([]ir.GateRef, n)
	for i := range out {
		out[i] = ir.NullGate
	}
	return out
}

func (b *compiler) declare(gs *GateSpec) error {
	switch gs.Name {
	case "":
		return b.errorf("", "gate without a name (op %s)", gs.Op)
	case EntryName, DependEntryName, UnsetName:
		return b.errorf(gs.Name, "name is reserved")
	}
	if _, dup := b.refs[gs.Name]; dup {
		return b.errorf(gs.Name, "duplicate gate name")
	}
	op, err := ir.ParseOpcode(gs.Op)
	if err != nil {
		return b.errorf(gs.Name, "%v", err)
	}
	if op.Category() == ir.CategoryRoot || op == ir.OpStateEntry || op == ir.OpNop {
		return b.errorf(gs.Name, "%s gates are implicit", op)
	}

	machine, typ, bits, err := b.payload(gs, op)
	if err != nil {
		return err
	}
	in := ir.Inputs{
		State:  unset(len(gs.State)),
		Depend: unset(len(gs.Depend)),
		Value:  unset(len(gs.Value)),
	}
	switch op {
	case ir.OpArg:
		in.Root = []ir.GateRef{b.c.ArgList()}
	case ir.OpReturn:
		in.Root = []ir.GateRef{b.c.ReturnList()}
	}
	ref := b.c.NewGate(op, machine, typ, in)
	b.c.SetBitField(ref, bits)
	b.c.SetName(ref, gs.Name)
	b.refs[gs.Name] = ref
	return nil
}

// payload resolves machine type, static type and bit field.
func (b *compiler) payload(gs *GateSpec, op ir.Opcode) (ir.MachineType, ir.GateType, uint64, error) {
	machine, typ, bits := defaultMachine(op), defaultType(op), gs.BitField

	consts := 0
	for _, set := range []bool{gs.Int != nil, gs.Float != nil, gs.Bool != nil} {
		if set {
			consts++
		}
	}
	if consts > 0 && op != ir.OpConstant {
		return 0, 0, 0, b.errorf(gs.Name, "constant payload on %s", op)
	}
	switch {
	case consts > 1:
		return 0, 0, 0, b.errorf(gs.Name, "more than one constant payload")
	case gs.Int != nil:
		machine, typ, bits = ir.I32, ir.IntType, uint64(uint32(*gs.Int))
	case gs.Float != nil:
		machine, typ, bits = ir.F64, ir.DoubleType, math.Float64bits(*gs.Float)
	case gs.Bool != nil:
		machine, typ, bits = ir.I64, ir.BooleanType, 0
		if *gs.Bool {
			bits = 1
		}
	}

	if gs.Convert != "" {
		if op != ir.OpConvert && op != ir.OpCheckAndConvert {
			return 0, 0, 0, b.errorf(gs.Name, "convert kind on %s", op)
		}
		kind, err := ir.ParseConvertKind(gs.Convert)
		if err != nil {
			return 0, 0, 0, b.errorf(gs.Name, "%v", err)
		}
		if kind == ir.ConvertNone || kind.IsChecked() != (op == ir.OpCheckAndConvert) {
			return 0, 0, 0, b.errorf(gs.Name, "%s cannot perform %s", op, kind)
		}
		machine, typ = kind.Result()
		bits = uint64(kind)
	} else if op == ir.OpConvert || op == ir.OpCheckAndConvert {
		return 0, 0, 0, b.errorf(gs.Name, "%s needs a convert kind", op)
	}

	if gs.Machine != "" {
		m, err := ir.ParseMachineType(gs.Machine)
		if err != nil {
			return 0, 0, 0, b.errorf(gs.Name, "%v", err)
		}
		machine = m
	}
	if gs.Type != "" {
		t, err := ir.ParseGateType(gs.Type)
		if err != nil {
			return 0, 0, 0, b.errorf(gs.Name, "%v", err)
		}
		typ = t
	}
	return machine, typ, bits, nil
}

func (b *compiler) lookup(gate, in string) (ir.GateRef, error) {
	if in == UnsetName {
		return ir.NullGate, nil
	}
	ref, ok := b.refs[in]
	if !ok {
		return 0, b.errorf(gate, "unknown input %q", in)
	}
	return ref, nil
}

func (b *compiler) wire(gs *GateSpec) error {
	ref := b.refs[gs.Name]
	ranges := []struct {
		names   []string
		replace func(g, in ir.GateRef, idx int)
	}{
		{gs.State, b.c.ReplaceStateIn},
		{gs.Depend, b.c.ReplaceDependIn},
		{gs.Value, b.c.ReplaceValueIn},
	}
	for _, r := range ranges {
		for i, name := range r.names {
			in, err := b.lookup(gs.Name, name)
			if err != nil {
				return err
			}
			r.replace(ref, in, i)
		}
	}
	return b.typed(gs, ref)
}

// typed attaches the operator payload once operands are wired, so the static
// operand types can default from them.
func (b *compiler) typed(gs *GateSpec, ref ir.GateRef) error {
	op := b.c.GetOpCode(ref)
	isTyped := op == ir.OpTypedBinaryOp || op == ir.OpTypedUnaryOp
	if gs.Typed == nil {
		if isTyped {
			return b.errorf(gs.Name, "%s needs a typed operator", op)
		}
		return nil
	}
	if !isTyped {
		return b.errorf(gs.Name, "typed operator on %s", op)
	}

	var t ir.TypedOp
	var err error
	operands := 2
	if op == ir.OpTypedBinaryOp {
		t.Bin, err = ir.ParseTypedBinOp(gs.Typed.Op)
	} else {
		t.Un, err = ir.ParseTypedUnOp(gs.Typed.Op)
		operands = 1
	}
	if err != nil {
		return b.errorf(gs.Name, "%v", err)
	}
	if len(gs.Value) != operands {
		return b.errorf(gs.Name, "%s takes %d operands, has %d", op, operands, len(gs.Value))
	}

	staticType := func(spec string, idx int) (ir.GateType, error) {
		if spec != "" {
			return ir.ParseGateType(spec)
		}
		in := b.c.GetValueIn(ref, idx)
		if in == ir.NullGate {
			return ir.AnyType, nil
		}
		return b.c.GetGateType(in), nil
	}
	if t.Left, err = staticType(gs.Typed.Left, 0); err != nil {
		return b.errorf(gs.Name, "%v", err)
	}
	if operands == 2 {
		if t.Right, err = staticType(gs.Typed.Right, 1); err != nil {
			return b.errorf(gs.Name, "%v", err)
		}
	}
	b.c.SetTypedOp(ref, t)
	return nil
}
