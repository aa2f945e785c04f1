package ir

import (
	"fmt"
	"math"
)

// GateRef is the dense id of a gate inside its circuit.
type GateRef uint32

// NullGate is the "no gate" sentinel. It is never a valid index.
const NullGate GateRef = math.MaxUint32

// Use is one reverse edge: Gate reads the owning gate at input slot Index.
type Use struct {
	Gate  GateRef
	Index int
}

// Inputs groups the four input ranges of a new gate.
type Inputs struct {
	State  []GateRef
	Depend []GateRef
	Value  []GateRef
	Root   []GateRef
}

// Gate is a node of the circuit. Fields other than the input and use lists
// are immutable after creation.
type Gate struct {
	ID       GateRef
	Op       Opcode
	Machine  MachineType
	Type     GateType
	BitField uint64
	Typed    TypedOp
	Name     string

	ins       []GateRef
	numState  int
	numDepend int
	numValue  int
	uses      []Use
}

// NumIns returns the total input count.
func (g *Gate) NumIns() int { return len(g.ins) }

// Circuit owns every gate of one function.
type Circuit struct {
	gates []*Gate

	root        GateRef
	stateEntry  GateRef
	dependEntry GateRef
	returnList  GateRef
	argList     GateRef
}

// NewCircuit returns a circuit holding only the root gates.
func NewCircuit() *Circuit {
	c := &Circuit{}
	c.root = c.NewGate(OpCircuitRoot, NoValue, AnyType, Inputs{})
	c.stateEntry = c.NewGate(OpStateEntry, NoValue, AnyType, Inputs{Root: []GateRef{c.root}})
	c.dependEntry = c.NewGate(OpDependEntry, NoValue, AnyType, Inputs{Root: []GateRef{c.root}})
	c.returnList = c.NewGate(OpReturnList, NoValue, AnyType, Inputs{Root: []GateRef{c.root}})
	c.argList = c.NewGate(OpArgList, NoValue, AnyType, Inputs{Root: []GateRef{c.root}})
	return c
}

// NewGate appends a gate and records its uses. NullGate inputs are allowed as
// placeholders (for example the back edge of a LOOP_BEGIN) and must be
// patched with one of the Replace methods before the circuit is scheduled.
func (c *Circuit) NewGate(op Opcode, machine MachineType, typ GateType, in Inputs) GateRef {
	id := GateRef(len(c.gates))
	g := &Gate{
		ID:        id,
		Op:        op,
		Machine:   machine,
		Type:      typ,
		numState:  len(in.State),
		numDepend: len(in.Depend),
		numValue:  len(in.Value),
	}
	g.ins = make([]GateRef, 0, len(in.State)+len(in.Depend)+len(in.Value)+len(in.Root))
	g.ins = append(g.ins, in.State...)
	g.ins = append(g.ins, in.Depend...)
	g.ins = append(g.ins, in.Value...)
	g.ins = append(g.ins, in.Root...)
	c.gates = append(c.gates, g)
	for i, in := range g.ins {
		if in != NullGate {
			c.mustGate(in).uses = append(c.mustGate(in).uses, Use{Gate: id, Index: i})
		}
	}
	return id
}

// Gate returns the gate for ref. It panics on an out-of-range ref.
func (c *Circuit) Gate(ref GateRef) *Gate {
	return c.mustGate(ref)
}

func (c *Circuit) mustGate(ref GateRef) *Gate {
	if int(ref) >= len(c.gates) {
		panic(fmt.Sprintf("BUG: gate %d out of range (%d gates)", ref, len(c.gates)))
	}
	return c.gates[ref]
}

// SetBitField replaces the bit field of a gate. Fixture loaders and stub
// builders use it while a circuit is under construction.
func (c *Circuit) SetBitField(ref GateRef, bits uint64) { c.mustGate(ref).BitField = bits }

// SetTypedOp attaches the operator payload of a typed gate.
func (c *Circuit) SetTypedOp(ref GateRef, op TypedOp) { c.mustGate(ref).Typed = op }

// SetName labels a gate for dumps and fixtures.
func (c *Circuit) SetName(ref GateRef, name string) { c.mustGate(ref).Name = name }

// --- Graph ---

func (c *Circuit) GetOpCode(g GateRef) Opcode           { return c.mustGate(g).Op }
func (c *Circuit) GetID(g GateRef) uint32               { return uint32(c.mustGate(g).ID) }
func (c *Circuit) GetGateType(g GateRef) GateType       { return c.mustGate(g).Type }
func (c *Circuit) GetMachineType(g GateRef) MachineType { return c.mustGate(g).Machine }
func (c *Circuit) GetLeftType(g GateRef) GateType       { return c.mustGate(g).Typed.Left }
func (c *Circuit) GetRightType(g GateRef) GateType      { return c.mustGate(g).Typed.Right }
func (c *Circuit) GetTypedOp(g GateRef) TypedOp         { return c.mustGate(g).Typed }
func (c *Circuit) GetBitField(g GateRef) uint64         { return c.mustGate(g).BitField }
func (c *Circuit) GetName(g GateRef) string             { return c.mustGate(g).Name }

func (c *Circuit) IsState(g GateRef) bool { return c.GetOpCode(g).Category() == CategoryState }
func (c *Circuit) IsFixed(g GateRef) bool { return c.GetOpCode(g).Category() == CategoryFixed }
func (c *Circuit) IsSchedulable(g GateRef) bool {
	return c.GetOpCode(g).Category() == CategorySchedulable
}
func (c *Circuit) IsProlog(g GateRef) bool { return c.GetOpCode(g).Category() == CategoryProlog }

// IsRoot reports whether g is one of the circuit root gates. STATE_ENTRY
// counts as a root as well as a state gate.
func (c *Circuit) IsRoot(g GateRef) bool {
	op := c.GetOpCode(g)
	return op == OpStateEntry || op.Category() == CategoryRoot
}

// GetIns returns every input of g in slot order. The slice must not be
// modified.
func (c *Circuit) GetIns(g GateRef) []GateRef { return c.mustGate(g).ins }

// GetInStates returns the state inputs of g.
func (c *Circuit) GetInStates(g GateRef) []GateRef {
	gate := c.mustGate(g)
	return gate.ins[:gate.numState]
}

// GetIn returns the input at slot idx.
func (c *Circuit) GetIn(g GateRef, idx int) GateRef {
	gate := c.mustGate(g)
	if idx < 0 || idx >= len(gate.ins) {
		panic(fmt.Sprintf("BUG: gate %d (%s) has no input %d", g, gate.Op, idx))
	}
	return gate.ins[idx]
}

// Uses returns the reverse edges of g in creation order. The slice must not
// be modified.
func (c *Circuit) Uses(g GateRef) []Use { return c.mustGate(g).uses }

func (c *Circuit) GetStateCount(g GateRef) int  { return c.mustGate(g).numState }
func (c *Circuit) GetDependCount(g GateRef) int { return c.mustGate(g).numDepend }
func (c *Circuit) GetNumValueIn(g GateRef) int  { return c.mustGate(g).numValue }
func (c *Circuit) GetRootCount(g GateRef) int {
	gate := c.mustGate(g)
	return len(gate.ins) - gate.numState - gate.numDepend - gate.numValue
}

// ValueStart returns the slot index of the first value input of g.
func (c *Circuit) ValueStart(g GateRef) int {
	gate := c.mustGate(g)
	return gate.numState + gate.numDepend
}

// GetValueIn returns the idx-th value input of g.
func (c *Circuit) GetValueIn(g GateRef, idx int) GateRef {
	gate := c.mustGate(g)
	if idx < 0 || idx >= gate.numValue {
		panic(fmt.Sprintf("BUG: gate %d (%s) has no value input %d", g, gate.Op, idx))
	}
	return gate.ins[gate.numState+gate.numDepend+idx]
}

// GetDep returns the idx-th depend input of g.
func (c *Circuit) GetDep(g GateRef, idx int) GateRef {
	gate := c.mustGate(g)
	if idx < 0 || idx >= gate.numDepend {
		panic(fmt.Sprintf("BUG: gate %d (%s) has no depend input %d", g, gate.Op, idx))
	}
	return gate.ins[gate.numState+idx]
}

func (c *Circuit) StateEntry() GateRef  { return c.stateEntry }
func (c *Circuit) DependEntry() GateRef { return c.dependEntry }
func (c *Circuit) ArgList() GateRef     { return c.argList }
func (c *Circuit) ReturnList() GateRef  { return c.returnList }
func (c *Circuit) Root() GateRef        { return c.root }
func (c *Circuit) GateCount() int       { return len(c.gates) }

// AllGates returns every gate ref in id order.
func (c *Circuit) AllGates() []GateRef {
	out := make([]GateRef, len(c.gates))
	for i := range c.gates {
		out[i] = GateRef(i)
	}
	return out
}

// --- Mutator ---

// ReplaceIn rewires slot idx of g to point at in, keeping use lists
// consistent.
func (c *Circuit) ReplaceIn(g GateRef, idx int, in GateRef) {
	gate := c.mustGate(g)
	if idx < 0 || idx >= len(gate.ins) {
		panic(fmt.Sprintf("BUG: gate %d (%s) has no input %d", g, gate.Op, idx))
	}
	old := gate.ins[idx]
	if old == in {
		return
	}
	if old != NullGate {
		c.removeUse(old, g, idx)
	}
	gate.ins[idx] = in
	if in != NullGate {
		target := c.mustGate(in)
		target.uses = append(target.uses, Use{Gate: g, Index: idx})
	}
}

func (c *Circuit) removeUse(from, user GateRef, idx int) {
	gate := c.mustGate(from)
	for i, u := range gate.uses {
		if u.Gate == user && u.Index == idx {
			gate.uses = append(gate.uses[:i], gate.uses[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("BUG: gate %d has no use (%d, %d)", from, user, idx))
}

// ReplaceStateIn rewires the idx-th state input of g.
func (c *Circuit) ReplaceStateIn(g GateRef, in GateRef, idx int) {
	if idx >= c.mustGate(g).numState {
		panic(fmt.Sprintf("BUG: gate %d has no state input %d", g, idx))
	}
	c.ReplaceIn(g, idx, in)
}

// ReplaceDependIn rewires the idx-th depend input of g.
func (c *Circuit) ReplaceDependIn(g GateRef, in GateRef, idx int) {
	gate := c.mustGate(g)
	if idx >= gate.numDepend {
		panic(fmt.Sprintf("BUG: gate %d has no depend input %d", g, idx))
	}
	c.ReplaceIn(g, gate.numState+idx, in)
}

// ReplaceValueIn rewires the idx-th value input of g.
func (c *Circuit) ReplaceValueIn(g GateRef, in GateRef, idx int) {
	gate := c.mustGate(g)
	if idx >= gate.numValue {
		panic(fmt.Sprintf("BUG: gate %d has no value input %d", g, idx))
	}
	c.ReplaceIn(g, gate.numState+gate.numDepend+idx, in)
}

// --- Builder ---

// NewConvert appends a conversion gate of the given kind reading in.
// Checked kinds produce CHECK_AND_CONVERT, the rest CONVERT.
func (c *Circuit) NewConvert(kind ConvertKind, in GateRef) GateRef {
	op := OpConvert
	if kind.IsChecked() {
		op = OpCheckAndConvert
	}
	machine, typ := kind.Result()
	ref := c.NewGate(op, machine, typ, Inputs{Value: []GateRef{in}})
	c.SetBitField(ref, uint64(kind))
	return ref
}

// ConvertKindOf returns the conversion performed by a CONVERT or
// CHECK_AND_CONVERT gate.
func ConvertKindOf(g Graph, ref GateRef) ConvertKind {
	op := g.GetOpCode(ref)
	if op != OpConvert && op != OpCheckAndConvert {
		return ConvertNone
	}
	return ConvertKind(g.GetBitField(ref))
}

// Label renders a gate for diagnostics: "id:OPCODE" or "id:OPCODE(name)".
func Label(g Graph, ref GateRef) string {
	if n := g.GetName(ref); n != "" {
		return fmt.Sprintf("%d:%s(%s)", ref, g.GetOpCode(ref), n)
	}
	return fmt.Sprintf("%d:%s", ref, g.GetOpCode(ref))
}
