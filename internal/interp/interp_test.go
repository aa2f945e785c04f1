package interp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/retype"
	"github.com/roach88/gatesched/internal/scheduler"
)

func schedule(t *testing.T, c *ir.Circuit) scheduler.ControlFlowGraph {
	t.Helper()
	res, err := scheduler.Run(c, scheduler.WithVerifier(true))
	require.NoError(t, err)
	return res.CFG
}

func TestCall_Diamond(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	br := c.IfBranch(c.StateEntry(), c.ICmp(ir.CmpSLT, a, c.Int32(3)))
	tr, fa := c.IfTrue(br), c.IfFalse(br)
	one := c.Binary(ir.OpAdd, ir.I32, ir.IntType, a, c.Int32(1))
	two := c.Binary(ir.OpMul, ir.I32, ir.IntType, a, c.Int32(2))
	m := c.Merge(tr, fa)
	phi := c.ValueSelector(m, ir.I32, ir.IntType, one, two)
	c.Return(m, c.DependEntry(), phi)

	in := New(c, schedule(t, c))
	got, err := in.Call(Int32(1))
	require.NoError(t, err)
	assert.Equal(t, Int32(2), got)

	got, err = in.Call(Int32(5))
	require.NoError(t, err)
	assert.Equal(t, Int32(10), got)
}

// sumTo returns sum(0..n-1) computed with a counted loop.
func sumTo(c *ir.Circuit) {
	n := c.Arg(0, ir.IntType)
	header := c.LoopBegin(c.StateEntry())
	i := c.ValueSelector(header, ir.I32, ir.IntType, c.Int32(0), ir.NullGate)
	s := c.ValueSelector(header, ir.I32, ir.IntType, c.Int32(0), ir.NullGate)
	c.ReplaceValueIn(i, c.Binary(ir.OpAdd, ir.I32, ir.IntType, i, c.Int32(1)), 1)
	c.ReplaceValueIn(s, c.Binary(ir.OpAdd, ir.I32, ir.IntType, s, i), 1)
	br := c.IfBranch(header, c.ICmp(ir.CmpSLT, i, n))
	c.SetLoopBack(header, c.LoopBack(c.IfTrue(br)))
	c.Return(c.IfFalse(br), c.DependEntry(), s)
}

func TestCall_Loop(t *testing.T) {
	c := ir.NewCircuit()
	sumTo(c)

	core, logs := observer.New(zapcore.DebugLevel)
	in := New(c, schedule(t, c), WithLogger(zap.New(core)))

	for n, want := range map[int32]int32{0: 0, 1: 0, 5: 10, 100: 4950} {
		got, err := in.Call(Int32(n))
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, Int32(want), got, "n=%d", n)
	}
	assert.NotZero(t, logs.FilterMessage("enter block").Len())
}

func TestCall_PhisSwapSimultaneously(t *testing.T) {
	c := ir.NewCircuit()
	header := c.LoopBegin(c.StateEntry())
	i := c.ValueSelector(header, ir.I32, ir.IntType, c.Int32(0), ir.NullGate)
	x := c.ValueSelector(header, ir.I32, ir.IntType, c.Int32(1), ir.NullGate)
	y := c.ValueSelector(header, ir.I32, ir.IntType, c.Int32(2), x)
	c.ReplaceValueIn(x, y, 1)
	c.ReplaceValueIn(i, c.Binary(ir.OpAdd, ir.I32, ir.IntType, i, c.Int32(1)), 1)
	br := c.IfBranch(header, c.ICmp(ir.CmpSLT, i, c.Int32(3)))
	c.SetLoopBack(header, c.LoopBack(c.IfTrue(br)))
	c.Return(c.IfFalse(br), c.DependEntry(), x)

	got, err := New(c, schedule(t, c)).Call()
	require.NoError(t, err)
	assert.Equal(t, Int32(2), got, "three swaps of (1, 2)")
}

func TestCall_StepsExceeded(t *testing.T) {
	c := ir.NewCircuit()
	header := c.LoopBegin(c.StateEntry())
	br := c.IfBranch(header, c.Boolean(true))
	c.SetLoopBack(header, c.LoopBack(c.IfTrue(br)))
	c.Return(c.IfFalse(br), c.DependEntry(), c.Int32(0))

	_, err := New(c, schedule(t, c), WithMaxSteps(50)).Call()
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))

	var se *StepsExceededError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 50, se.Limit)
}

func TestCall_UnscheduledRead(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	sum := c.Binary(ir.OpAdd, ir.I32, ir.IntType, a, a)
	c.Return(c.StateEntry(), c.DependEntry(), sum)

	cfg := schedule(t, c)
	// drop every floating gate from the return block
	last := len(cfg) - 1
	cfg[last].Gates = cfg[last].Gates[:1]

	_, err := New(c, cfg).Call(Int32(1))
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnscheduledRead, CodeOf(err))
	assert.Contains(t, err.Error(), "reads")
}

func TestCall_RuntimeCall(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	call := c.RuntimeCall(c.StateEntry(), c.DependEntry(), 7, ir.AnyType, a)
	c.Return(call, call, call)
	cfg := schedule(t, c)

	_, err := New(c, cfg).Call(Int32(4))
	assert.Equal(t, ErrCodeUnsupported, CodeOf(err))

	rt := Runtime{7: func(args []Value) (Value, error) {
		return TaggedInt(args[0].Int * 2), nil
	}}
	got, err := New(c, cfg, WithRuntime(rt)).Call(Int32(4))
	require.NoError(t, err)
	assert.Equal(t, TaggedInt(8), got)
}

func TestCall_PhiOfCallResult(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	br := c.IfBranch(c.StateEntry(), c.ICmp(ir.CmpSLT, a, c.Int32(3)))
	call := c.RuntimeCall(c.IfTrue(br), c.DependEntry(), 7, ir.IntType, a)
	sum := c.Binary(ir.OpAdd, ir.I32, ir.IntType, call, c.Int32(1))
	twice := c.Binary(ir.OpMul, ir.I32, ir.IntType, sum, c.Int32(2))
	m := c.Merge(call, c.IfFalse(br))
	phi := c.ValueSelector(m, ir.I32, ir.IntType, twice, a)
	c.Return(m, c.DependEntry(), phi)

	calls := 0
	rt := Runtime{7: func(args []Value) (Value, error) {
		calls++
		return TaggedInt(args[0].Int * 10), nil
	}}
	in := New(c, schedule(t, c), WithRuntime(rt))

	got, err := in.Call(Int32(1))
	require.NoError(t, err)
	assert.Equal(t, Int32(22), got)
	assert.Equal(t, 1, calls)

	got, err = in.Call(Int32(5))
	require.NoError(t, err)
	assert.Equal(t, Int32(5), got)
	assert.Equal(t, 1, calls, "the false arm makes no call")
}

func TestCall_ElementAccess(t *testing.T) {
	c := ir.NewCircuit()
	arr := c.Arg(0, ir.ObjectType)
	idx := c.Arg(1, ir.IntType)
	checked := c.IndexCheck(c.DependEntry(), arr, idx)
	load := c.LoadElement(checked, arr, checked)
	c.Return(c.StateEntry(), load, load)

	in := New(c, schedule(t, c))
	a := NewArray(4, TaggedInt(10), TaggedInt(20))

	got, err := in.Call(Object(a), Int32(1))
	require.NoError(t, err)
	assert.Equal(t, TaggedInt(20), got)

	_, err = in.Call(Object(a), Int32(2))
	assert.Equal(t, ErrCodeDeopt, CodeOf(err), "index 2 is past the length")

	_, err = in.Call(Int32(3), Int32(0))
	assert.Equal(t, ErrCodeTypeMismatch, CodeOf(err))
}

func TestCall_RetypedGuards(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	sum := c.TypedBinary(ir.BinAdd, ir.IntType, a, c.Int32(1))
	c.Return(c.StateEntry(), c.DependEntry(), sum)

	retype.RunConvertPhase(retype.RunRetypePhase(c))
	in := New(c, schedule(t, c))

	got, err := in.Call(TaggedInt(41))
	require.NoError(t, err)
	assert.Equal(t, TaggedInt(42), got, "result is boxed at the return")

	_, err = in.Call(TaggedDouble(1.5))
	require.Error(t, err)
	assert.Equal(t, ErrCodeDeopt, CodeOf(err))
}

func TestTypedBinary(t *testing.T) {
	tests := []struct {
		name string
		op   ir.TypedBinOp
		l, r Value
		want Value
	}{
		{"int add", ir.BinAdd, Int32(2), Int32(3), Int32(5)},
		{"int add wraps", ir.BinAdd, Int32(2147483647), Int32(1), Int32(-2147483648)},
		{"mixed add", ir.BinAdd, Int32(2), Float64(0.5), Float64(2.5)},
		{"tagged add", ir.BinAdd, TaggedInt(2), TaggedDouble(0.5), TaggedDouble(2.5)},
		{"tagged integral", ir.BinMul, TaggedDouble(2), TaggedInt(3), TaggedInt(6)},
		{"div", ir.BinDiv, Int32(7), Int32(2), Float64(3.5)},
		{"tagged mod", ir.BinMod, TaggedInt(7), TaggedInt(4), TaggedInt(3)},
		{"less", ir.BinLess, Int32(1), Float64(1.5), Int1(true)},
		{"noteq", ir.BinNotEq, TaggedInt(1), TaggedInt(1), Int1(false)},
		{"strict undefined", ir.BinStrictEq, Undefined(), Undefined(), Int1(true)},
		{"strict mixed", ir.BinStrictEq, Undefined(), TaggedInt(0), Int1(false)},
		{"shl", ir.BinShl, Int32(1), Int32(33), Int32(2)},
		{"shr", ir.BinShr, Int32(-1), Int32(28), Int32(15)},
		{"ashr", ir.BinAshr, Int32(-16), Int32(2), Int32(-4)},
		{"tagged xor", ir.BinXor, TaggedInt(6), TaggedInt(3), TaggedInt(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := typedBinary(0, tt.op, tt.l, tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := typedBinary(0, ir.BinAdd, Null(), Int32(1))
	assert.Equal(t, ErrCodeTypeMismatch, CodeOf(err))
}

func TestTypedUnary(t *testing.T) {
	tests := []struct {
		name string
		op   ir.TypedUnOp
		in   Value
		want Value
	}{
		{"inc int", ir.UnInc, Int32(1), Int32(2)},
		{"dec double", ir.UnDec, Float64(1.5), Float64(0.5)},
		{"neg tagged", ir.UnNeg, TaggedInt(3), TaggedInt(-3)},
		{"not", ir.UnNot, Int32(0), Int32(-1)},
		{"jeqz native", ir.UnJEQZ, Int1(false), Int1(true)},
		{"jeqz tagged", ir.UnJEQZ, TaggedInt(5), TaggedBool(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := typedUnary(0, tt.op, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		kind ir.ConvertKind
		in   Value
		want Value
	}{
		{ir.ConvertBoolToInt32, Int1(true), Int32(1)},
		{ir.ConvertInt32ToFloat64, Int32(3), Float64(3)},
		{ir.ConvertFloat64ToInt32, Float64(-2.7), Int32(-2)},
		{ir.ConvertFloat64ToBool, Float64(0), Int1(false)},
		{ir.ConvertBoolToTaggedBoolean, Int1(true), TaggedBool(true)},
		{ir.ConvertInt32ToTaggedInt, Int32(9), TaggedInt(9)},
		{ir.ConvertFloat64ToTaggedDouble, Float64(0.25), TaggedDouble(0.25)},
		{ir.CheckTaggedIntAndConvertToFloat64, TaggedInt(4), Float64(4)},
		{ir.CheckTaggedNumberAndConvertToInt32, TaggedDouble(4.5), Int32(4)},
		{ir.CheckTaggedBooleanAndConvertToBool, TaggedBool(true), Int1(true)},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := convert(0, tt.kind, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, kind := range []ir.ConvertKind{
		ir.CheckTaggedIntAndConvertToInt32,
		ir.CheckTaggedDoubleAndConvertToFloat64,
		ir.CheckTaggedNumberAndConvertToFloat64,
		ir.CheckTaggedBooleanAndConvertToBool,
	} {
		_, err := convert(0, kind, Undefined())
		assert.Equal(t, ErrCodeDeopt, CodeOf(err), kind.String())
	}
}

func TestArrayFields(t *testing.T) {
	a := NewArray(2, TaggedInt(1))

	require.NoError(t, storeElement(0, Object(a), Int32(1), Int32(5)))
	require.NoError(t, storeField(0, ir.FieldLength, Object(a), Int32(2)))
	assert.Equal(t, []Value{TaggedInt(1), TaggedInt(5)}, a.Values())

	err := storeElement(0, Object(a), Int32(2), Int32(6))
	assert.Equal(t, ErrCodeDeopt, CodeOf(err))
	err = storeField(0, ir.FieldLength, Object(a), Int32(3))
	assert.Equal(t, ErrCodeDeopt, CodeOf(err))

	require.NoError(t, storeField(0, ir.FieldCapacity, Object(a), Int32(8)))
	capacity, err := loadField(0, ir.FieldCapacity, Object(a))
	require.NoError(t, err)
	assert.Equal(t, Int32(8), capacity)

	v, err := loadElement(0, Object(a), Int32(6))
	require.NoError(t, err)
	assert.Equal(t, Undefined(), v)
}

func TestParseValue(t *testing.T) {
	for _, v := range []Value{
		Int1(true), Int32(-7), Float64(2.5), TaggedInt(3), TaggedDouble(0.25),
		TaggedBool(false), Undefined(), Null(),
	} {
		got, err := ParseValue(v.String())
		require.NoError(t, err, v.String())
		assert.Equal(t, v, got)
	}

	for _, bad := range []string{"", "i32", "i32:x", "i32:4294967296", "str:a", "array[0/0]"} {
		_, err := ParseValue(bad)
		assert.Error(t, err, bad)
	}
}
