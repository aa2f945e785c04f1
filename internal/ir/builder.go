package ir

import "math"

// Convenience constructors used by stub builders, fixtures and tests. Each one
// lays the inputs out in the order the scheduler and the retype pass expect.

// Arg creates the index-th function argument. The index is stored in the bit
// field, which also orders arguments inside the entry block.
func (c *Circuit) Arg(index int, typ GateType) GateRef {
	ref := c.NewGate(OpArg, I64, typ, Inputs{Root: []GateRef{c.argList}})
	c.SetBitField(ref, uint64(index))
	return ref
}

// Constant creates a constant with raw payload bits.
func (c *Circuit) Constant(machine MachineType, typ GateType, bits uint64) GateRef {
	ref := c.NewGate(OpConstant, machine, typ, Inputs{})
	c.SetBitField(ref, bits)
	return ref
}

// Int32 creates an int constant.
func (c *Circuit) Int32(v int32) GateRef {
	return c.Constant(I32, IntType, uint64(uint32(v)))
}

// Float64 creates a double constant.
func (c *Circuit) Float64(v float64) GateRef {
	return c.Constant(F64, DoubleType, math.Float64bits(v))
}

// Undefined creates the tagged undefined constant.
func (c *Circuit) Undefined() GateRef {
	return c.Constant(I64, UndefinedType, 0)
}

// Boolean creates a tagged boolean constant.
func (c *Circuit) Boolean(v bool) GateRef {
	var bits uint64
	if v {
		bits = 1
	}
	return c.Constant(I64, BooleanType, bits)
}

// ConstInt32Value decodes the payload of an int constant.
func ConstInt32Value(bits uint64) int32 { return int32(uint32(bits)) }

// ConstFloat64Value decodes the payload of a double constant.
func ConstFloat64Value(bits uint64) float64 { return math.Float64frombits(bits) }

func (c *Circuit) IfBranch(state, cond GateRef) GateRef {
	return c.NewGate(OpIfBranch, NoValue, AnyType, Inputs{State: []GateRef{state}, Value: []GateRef{cond}})
}

func (c *Circuit) IfTrue(branch GateRef) GateRef {
	return c.NewGate(OpIfTrue, NoValue, AnyType, Inputs{State: []GateRef{branch}})
}

func (c *Circuit) IfFalse(branch GateRef) GateRef {
	return c.NewGate(OpIfFalse, NoValue, AnyType, Inputs{State: []GateRef{branch}})
}

func (c *Circuit) Merge(states ...GateRef) GateRef {
	return c.NewGate(OpMerge, NoValue, AnyType, Inputs{State: states})
}

func (c *Circuit) OrdinaryBlock(state GateRef) GateRef {
	return c.NewGate(OpOrdinaryBlock, NoValue, AnyType, Inputs{State: []GateRef{state}})
}

// LoopBegin creates a loop header entered from entry. The back edge is left
// open; close it with SetLoopBack once the LOOP_BACK gate exists.
func (c *Circuit) LoopBegin(entry GateRef) GateRef {
	return c.NewGate(OpLoopBegin, NoValue, AnyType, Inputs{State: []GateRef{entry, NullGate}})
}

func (c *Circuit) LoopBack(state GateRef) GateRef {
	return c.NewGate(OpLoopBack, NoValue, AnyType, Inputs{State: []GateRef{state}})
}

// SetLoopBack closes the back edge of a loop header.
func (c *Circuit) SetLoopBack(loop, back GateRef) {
	c.ReplaceStateIn(loop, back, 1)
}

func (c *Circuit) Return(state, depend, value GateRef) GateRef {
	return c.NewGate(OpReturn, NoValue, AnyType, Inputs{
		State:  []GateRef{state},
		Depend: []GateRef{depend},
		Value:  []GateRef{value},
		Root:   []GateRef{c.returnList},
	})
}

// RuntimeCall creates a call into the runtime. The callee id is stored in the
// bit field.
func (c *Circuit) RuntimeCall(state, depend GateRef, callee uint64, typ GateType, args ...GateRef) GateRef {
	ref := c.NewGate(OpRuntimeCall, I64, typ, Inputs{
		State:  []GateRef{state},
		Depend: []GateRef{depend},
		Value:  args,
	})
	c.SetBitField(ref, callee)
	return ref
}

// Bytecode creates an opaque JS bytecode gate.
func (c *Circuit) Bytecode(state, depend GateRef, typ GateType, args ...GateRef) GateRef {
	return c.NewGate(OpJSBytecode, I64, typ, Inputs{
		State:  []GateRef{state},
		Depend: []GateRef{depend},
		Value:  args,
	})
}

// ValueSelector creates a phi with one value per predecessor of merge.
func (c *Circuit) ValueSelector(merge GateRef, machine MachineType, typ GateType, values ...GateRef) GateRef {
	return c.NewGate(OpValueSelector, machine, typ, Inputs{State: []GateRef{merge}, Value: values})
}

// DependSelector joins depend chains at merge.
func (c *Circuit) DependSelector(merge GateRef, depends ...GateRef) GateRef {
	return c.NewGate(OpDependSelector, NoValue, AnyType, Inputs{State: []GateRef{merge}, Depend: depends})
}

// DependRelay carries a depend chain into one arm of a branch.
func (c *Circuit) DependRelay(state, depend GateRef) GateRef {
	return c.NewGate(OpDependRelay, NoValue, AnyType, Inputs{State: []GateRef{state}, Depend: []GateRef{depend}})
}

// Binary creates an untyped machine arithmetic or logic gate.
func (c *Circuit) Binary(op Opcode, machine MachineType, typ GateType, left, right GateRef) GateRef {
	return c.NewGate(op, machine, typ, Inputs{Value: []GateRef{left, right}})
}

// ICmp creates an integer comparison with the given predicate.
func (c *Circuit) ICmp(pred uint64, left, right GateRef) GateRef {
	ref := c.NewGate(OpICmp, I1, BooleanType, Inputs{Value: []GateRef{left, right}})
	c.SetBitField(ref, pred)
	return ref
}

// FCmp creates a float comparison with the given predicate.
func (c *Circuit) FCmp(pred uint64, left, right GateRef) GateRef {
	ref := c.NewGate(OpFCmp, I1, BooleanType, Inputs{Value: []GateRef{left, right}})
	c.SetBitField(ref, pred)
	return ref
}

// TypedBinary creates a speculatively typed binary operation.
func (c *Circuit) TypedBinary(op TypedBinOp, typ GateType, left, right GateRef) GateRef {
	ref := c.NewGate(OpTypedBinaryOp, AnyValue, typ, Inputs{Value: []GateRef{left, right}})
	c.SetTypedOp(ref, TypedOp{Bin: op, Left: c.GetGateType(left), Right: c.GetGateType(right)})
	return ref
}

// TypedUnary creates a speculatively typed unary operation.
func (c *Circuit) TypedUnary(op TypedUnOp, typ GateType, operand GateRef) GateRef {
	ref := c.NewGate(OpTypedUnaryOp, AnyValue, typ, Inputs{Value: []GateRef{operand}})
	c.SetTypedOp(ref, TypedOp{Un: op, Left: c.GetGateType(operand)})
	return ref
}

func (c *Circuit) LoadField(depend, object GateRef, field uint64) GateRef {
	ref := c.NewGate(OpLoadField, I32, IntType, Inputs{Depend: []GateRef{depend}, Value: []GateRef{object}})
	c.SetBitField(ref, field)
	return ref
}

func (c *Circuit) StoreField(depend, object GateRef, field uint64, value GateRef) GateRef {
	ref := c.NewGate(OpStoreField, NoValue, AnyType, Inputs{Depend: []GateRef{depend}, Value: []GateRef{object, value}})
	c.SetBitField(ref, field)
	return ref
}

func (c *Circuit) LoadElement(depend, receiver, index GateRef) GateRef {
	return c.NewGate(OpLoadElement, I64, AnyType, Inputs{Depend: []GateRef{depend}, Value: []GateRef{receiver, index}})
}

func (c *Circuit) StoreElement(depend, receiver, index, value GateRef) GateRef {
	return c.NewGate(OpStoreElement, NoValue, AnyType, Inputs{
		Depend: []GateRef{depend},
		Value:  []GateRef{receiver, index, value},
	})
}

func (c *Circuit) IndexCheck(depend, receiver, index GateRef) GateRef {
	return c.NewGate(OpIndexCheck, I32, IntType, Inputs{Depend: []GateRef{depend}, Value: []GateRef{receiver, index}})
}

func (c *Circuit) Int32OverflowCheck(depend, value GateRef) GateRef {
	return c.NewGate(OpInt32OverflowCheck, I32, IntType, Inputs{Depend: []GateRef{depend}, Value: []GateRef{value}})
}
