package retype

import "github.com/roach88/gatesched/internal/ir"

// visitKind groups opcodes that both phases treat the same way.
type visitKind uint8

const (
	kindSkip visitKind = iota
	kindBranch
	kindMachine
	kindConstant
	kindPhi
	kindTypedBinary
	kindTypedUnary
	kindOverflowCheck
	kindElementAccess
	kindStoreElement
	kindOthers
)

func classify(op ir.Opcode) visitKind {
	switch op {
	case ir.OpCircuitRoot, ir.OpStateEntry, ir.OpDependEntry, ir.OpReturnList, ir.OpArgList,
		ir.OpIfTrue, ir.OpIfFalse, ir.OpMerge, ir.OpLoopBegin, ir.OpLoopBack, ir.OpOrdinaryBlock,
		ir.OpDependSelector, ir.OpDependRelay:
		return kindSkip
	case ir.OpIfBranch:
		return kindBranch
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpICmp, ir.OpFCmp,
		ir.OpLoadField, ir.OpStoreField, ir.OpConvert, ir.OpCheckAndConvert:
		return kindMachine
	case ir.OpConstant:
		return kindConstant
	case ir.OpValueSelector:
		return kindPhi
	case ir.OpTypedBinaryOp:
		return kindTypedBinary
	case ir.OpTypedUnaryOp:
		return kindTypedUnary
	case ir.OpInt32OverflowCheck:
		return kindOverflowCheck
	case ir.OpIndexCheck, ir.OpLoadElement:
		return kindElementAccess
	case ir.OpStoreElement:
		return kindStoreElement
	default:
		return kindOthers
	}
}

// visitor holds the per-kind behavior of both phases. retype returns the
// TypeInfo a gate should carry, or None for gates without a value; convert
// rewrites the gate's value inputs.
type visitor struct {
	retype  func(t *Typing, g ir.GateRef) TypeInfo
	convert func(c *converter, g ir.GateRef)
}

var visitors = [...]visitor{
	kindSkip:          {retype: retypeNone, convert: convertNothing},
	kindBranch:        {retype: retypeNone, convert: convertBranch},
	kindMachine:       {retype: retypeMachine, convert: convertNothing},
	kindConstant:      {retype: retypeConstant, convert: convertNothing},
	kindPhi:           {retype: retypePhi, convert: convertPhi},
	kindTypedBinary:   {retype: retypeTypedBinary, convert: convertTypedBinary},
	kindTypedUnary:    {retype: retypeTypedUnary, convert: convertTypedUnary},
	kindOverflowCheck: {retype: retypeAny, convert: convertOverflowCheck},
	kindElementAccess: {retype: retypeAny, convert: convertElementAccess},
	kindStoreElement:  {retype: retypeAny, convert: convertStoreElement},
	kindOthers:        {retype: retypeAny, convert: convertOthers},
}

func visitorFor(g ir.Graph, ref ir.GateRef) visitor {
	return visitors[classify(g.GetOpCode(ref))]
}

// binaryClass splits the numeric TYPED_BINARY_OP operators by how their
// operands are represented.
type binaryClass uint8

const (
	binaryArith binaryClass = iota
	binaryCompare
	binaryShift
	binaryNumberRelated
	binaryUndefinedEq
)

func classifyBinary(g ir.Graph, ref ir.GateRef) binaryClass {
	op := g.GetTypedOp(ref)
	if !op.Left.IsNumberType() || !op.Right.IsNumberType() {
		if op.Bin != ir.BinStrictEq || (op.Left != ir.UndefinedType && op.Right != ir.UndefinedType) {
			panic("unreachable: non-numeric " + op.Bin.String() + " on " + ir.Label(g, ref) +
				" is not a strict comparison against undefined")
		}
		return binaryUndefinedEq
	}
	switch op.Bin {
	case ir.BinAdd, ir.BinSub, ir.BinMul:
		return binaryArith
	case ir.BinLess, ir.BinLessEq, ir.BinGreater, ir.BinGreaterEq, ir.BinEq, ir.BinNotEq, ir.BinStrictEq:
		return binaryCompare
	case ir.BinShl, ir.BinShr, ir.BinAshr:
		return binaryShift
	default:
		return binaryNumberRelated
	}
}

// intArith reports whether an ADD, SUB or MUL stays in int32.
func intArith(g ir.Graph, ref ir.GateRef) bool {
	op := g.GetTypedOp(ref)
	return op.Left.IsIntType() && op.Right.IsIntType() && g.GetGateType(ref).IsIntType()
}

// intCompare reports whether a comparison is done on int32 operands.
func intCompare(g ir.Graph, ref ir.GateRef) bool {
	op := g.GetTypedOp(ref)
	return op.Left.IsIntType() && op.Right.IsIntType()
}

// unaryClass splits TYPED_UNARY_OP by operand handling.
type unaryClass uint8

const (
	unaryIntIncDec unaryClass = iota
	unaryDoubleIncDec
	unaryIntNot
	unaryBoolJEQZ
	unaryNumberRelated
)

func classifyUnary(g ir.Graph, ref ir.GateRef) unaryClass {
	op := g.GetTypedOp(ref)
	switch op.Un {
	case ir.UnInc, ir.UnDec:
		if op.Left.IsIntType() && g.GetGateType(ref).IsIntType() {
			return unaryIntIncDec
		}
		return unaryDoubleIncDec
	case ir.UnNot:
		if op.Left.IsIntType() {
			return unaryIntNot
		}
	case ir.UnJEQZ:
		if op.Left.IsBooleanType() {
			return unaryBoolJEQZ
		}
	}
	return unaryNumberRelated
}
