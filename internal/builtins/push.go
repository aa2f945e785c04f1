// Package builtins builds stub circuits for runtime builtins that have a
// hand-written fast path.
package builtins

import (
	"fmt"

	"github.com/roach88/gatesched/internal/interp"
	"github.com/roach88/gatesched/internal/ir"
)

// MaxPushArgs is the largest argument count BuildArrayPush handles inline.
const MaxPushArgs = 4

// RuntimeGrowElements is the callee id of the slow path that enlarges an
// array's backing store. Its arguments are the receiver and the required
// length.
const RuntimeGrowElements uint64 = 1

// BuildArrayPush builds the fast path of Array.prototype.push for argc
// arguments. Argument 0 is the receiver; arguments 1..argc are the values.
//
// The stub loads length and capacity, grows the backing store through the
// runtime only when the new length does not fit, stores each value at
// length+i and then publishes the new length, which it returns.
func BuildArrayPush(argc int) *ir.Circuit {
	if argc < 1 || argc > MaxPushArgs {
		panic(fmt.Sprintf("BUG: BuildArrayPush argc %d outside 1..%d", argc, MaxPushArgs))
	}
	c := ir.NewCircuit()
	recv := c.Arg(0, ir.ObjectType)
	c.SetName(recv, "receiver")
	values := make([]ir.GateRef, argc)
	for i := range values {
		values[i] = c.Arg(i+1, ir.AnyType)
	}

	length := c.LoadField(c.DependEntry(), recv, ir.FieldLength)
	c.SetName(length, "length")
	capacity := c.LoadField(length, recv, ir.FieldCapacity)
	c.SetName(capacity, "capacity")
	newLen := c.Binary(ir.OpAdd, ir.I32, ir.IntType, length, c.Int32(int32(argc)))
	c.SetName(newLen, "new_length")

	br := c.IfBranch(c.StateEntry(), c.ICmp(ir.CmpSGT, newLen, capacity))
	grow := c.IfTrue(br)
	call := c.RuntimeCall(grow, c.DependRelay(grow, capacity), RuntimeGrowElements, ir.AnyType, recv, newLen)
	c.SetName(call, "grow_elements")
	fits := c.IfFalse(br)

	merge := c.Merge(call, fits)
	dep := c.DependSelector(merge, call, c.DependRelay(fits, capacity))
	for i, v := range values {
		index := length
		if i > 0 {
			index = c.Binary(ir.OpAdd, ir.I32, ir.IntType, length, c.Int32(int32(i)))
		}
		dep = c.StoreElement(dep, recv, index, v)
	}
	dep = c.StoreField(dep, recv, ir.FieldLength, newLen)
	c.Return(merge, dep, newLen)
	return c
}

// GrowElements is the interpreter implementation of RuntimeGrowElements.
// Capacity grows by half plus 16, and at least to the required length.
func GrowElements(args []interp.Value) (interp.Value, error) {
	if len(args) != 2 || args[0].Tag != interp.TagObject || args[0].Object == nil {
		return interp.Value{}, fmt.Errorf("GrowElements: expected (array, length), got %v", args)
	}
	need, ok := args[1].Number()
	if !ok {
		return interp.Value{}, fmt.Errorf("GrowElements: length %s is not a number", args[1])
	}
	a := args[0].Object
	a.Grow(max(int32(need), a.Capacity+a.Capacity/2+16))
	return args[0], nil
}

// Runtime returns the runtime table used to execute the stubs in this
// package.
func Runtime() interp.Runtime {
	return interp.Runtime{RuntimeGrowElements: GrowElements}
}
