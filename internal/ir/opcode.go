package ir

import "fmt"

// Opcode identifies the operation a gate performs.
type Opcode uint16

const (
	OpNop Opcode = iota

	// Roots.
	OpCircuitRoot
	OpStateEntry
	OpDependEntry
	OpReturnList
	OpArgList

	// Prolog.
	OpArg

	// State (control) gates. Each one anchors its own basic block.
	OpIfBranch
	OpIfTrue
	OpIfFalse
	OpMerge
	OpLoopBegin
	OpLoopBack
	OpOrdinaryBlock
	OpReturn
	OpRuntimeCall
	OpJSBytecode

	// Fixed gates, pinned to the block of their state input.
	OpValueSelector
	OpDependSelector
	OpDependRelay

	// Floating (schedulable) gates.
	OpConstant
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpICmp
	OpFCmp
	OpLoadField
	OpStoreField
	OpTypedBinaryOp
	OpTypedUnaryOp
	OpInt32OverflowCheck
	OpIndexCheck
	OpLoadElement
	OpStoreElement
	OpConvert
	OpCheckAndConvert

	opcodeCount
)

// Category groups opcodes by how the scheduler treats them.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryRoot
	CategoryProlog
	CategoryState
	CategoryFixed
	CategorySchedulable
)

var opcodeNames = [opcodeCount]string{
	OpNop:                "NOP",
	OpCircuitRoot:        "CIRCUIT_ROOT",
	OpStateEntry:         "STATE_ENTRY",
	OpDependEntry:        "DEPEND_ENTRY",
	OpReturnList:         "RETURN_LIST",
	OpArgList:            "ARG_LIST",
	OpArg:                "ARG",
	OpIfBranch:           "IF_BRANCH",
	OpIfTrue:             "IF_TRUE",
	OpIfFalse:            "IF_FALSE",
	OpMerge:              "MERGE",
	OpLoopBegin:          "LOOP_BEGIN",
	OpLoopBack:           "LOOP_BACK",
	OpOrdinaryBlock:      "ORDINARY_BLOCK",
	OpReturn:             "RETURN",
	OpRuntimeCall:        "RUNTIME_CALL",
	OpJSBytecode:         "JS_BYTECODE",
	OpValueSelector:      "VALUE_SELECTOR",
	OpDependSelector:     "DEPEND_SELECTOR",
	OpDependRelay:        "DEPEND_RELAY",
	OpConstant:           "CONSTANT",
	OpAdd:                "ADD",
	OpSub:                "SUB",
	OpMul:                "MUL",
	OpAnd:                "AND",
	OpOr:                 "OR",
	OpICmp:               "ICMP",
	OpFCmp:               "FCMP",
	OpLoadField:          "LOAD_FIELD",
	OpStoreField:         "STORE_FIELD",
	OpTypedBinaryOp:      "TYPED_BINARY_OP",
	OpTypedUnaryOp:       "TYPED_UNARY_OP",
	OpInt32OverflowCheck: "INT32_OVERFLOW_CHECK",
	OpIndexCheck:         "INDEX_CHECK",
	OpLoadElement:        "LOAD_ELEMENT",
	OpStoreElement:       "STORE_ELEMENT",
	OpConvert:            "CONVERT",
	OpCheckAndConvert:    "CHECK_AND_CONVERT",
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if op < opcodeCount {
		return opcodeNames[op]
	}
	return fmt.Sprintf("OPCODE(%d)", uint16(op))
}

// ParseOpcode maps an upper-case opcode name back to its Opcode.
func ParseOpcode(name string) (Opcode, error) {
	for op, n := range opcodeNames {
		if n == name {
			return Opcode(op), nil
		}
	}
	return OpNop, fmt.Errorf("unknown opcode %q", name)
}

// Category returns the scheduling category of the opcode.
//
// STATE_ENTRY is both a root and a state gate; it reports CategoryState so
// that it anchors block 0, and IsRoot treats it separately.
func (op Opcode) Category() Category {
	switch op {
	case OpCircuitRoot, OpDependEntry, OpReturnList, OpArgList:
		return CategoryRoot
	case OpArg:
		return CategoryProlog
	case OpStateEntry, OpIfBranch, OpIfTrue, OpIfFalse, OpMerge, OpLoopBegin,
		OpLoopBack, OpOrdinaryBlock, OpReturn, OpRuntimeCall, OpJSBytecode:
		return CategoryState
	case OpValueSelector, OpDependSelector, OpDependRelay:
		return CategoryFixed
	case OpNop:
		return CategoryNone
	default:
		if op < opcodeCount {
			return CategorySchedulable
		}
		return CategoryNone
	}
}

// IsMergeLike reports whether the opcode joins several control predecessors.
func (op Opcode) IsMergeLike() bool {
	return op == OpMerge || op == OpLoopBegin
}

// IsSelector reports whether the opcode is a value or depend selector.
func (op Opcode) IsSelector() bool {
	return op == OpValueSelector || op == OpDependSelector
}
