package ir

// Graph is the read-only view of a circuit consumed by the dominator-tree
// builder, the scheduler and the verifier.
type Graph interface {
	GetOpCode(g GateRef) Opcode
	GetID(g GateRef) uint32
	GetName(g GateRef) string
	GetGateType(g GateRef) GateType
	GetMachineType(g GateRef) MachineType
	GetLeftType(g GateRef) GateType
	GetRightType(g GateRef) GateType
	GetTypedOp(g GateRef) TypedOp
	GetBitField(g GateRef) uint64

	IsState(g GateRef) bool
	IsFixed(g GateRef) bool
	IsSchedulable(g GateRef) bool
	IsProlog(g GateRef) bool
	IsRoot(g GateRef) bool

	GetIns(g GateRef) []GateRef
	GetInStates(g GateRef) []GateRef
	GetIn(g GateRef, idx int) GateRef
	Uses(g GateRef) []Use

	GetStateCount(g GateRef) int
	GetDependCount(g GateRef) int
	GetNumValueIn(g GateRef) int
	GetRootCount(g GateRef) int
	ValueStart(g GateRef) int
	GetValueIn(g GateRef, idx int) GateRef
	GetDep(g GateRef, idx int) GateRef

	StateEntry() GateRef
	DependEntry() GateRef
	ArgList() GateRef
	ReturnList() GateRef
	GateCount() int
	AllGates() []GateRef
}

// Mutator adds in-place edge rewriting.
type Mutator interface {
	Graph
	ReplaceStateIn(g GateRef, in GateRef, idx int)
	ReplaceDependIn(g GateRef, in GateRef, idx int)
	ReplaceValueIn(g GateRef, in GateRef, idx int)
}

// Builder adds creation of conversion gates, the only gates a pass may add.
type Builder interface {
	Mutator
	NewConvert(kind ConvertKind, in GateRef) GateRef
}

var _ Builder = (*Circuit)(nil)
