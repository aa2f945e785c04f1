package interp

import (
	"math"

	"github.com/roach88/gatesched/internal/ir"
)

// eval computes one non-anchor gate and stores its value.
func (f *frame) eval(ref ir.GateRef) error {
	g := f.in.g
	switch op := g.GetOpCode(ref); op {
	case ir.OpArg:
		idx := int(g.GetBitField(ref))
		if idx >= len(f.args) {
			f.values[ref] = Undefined()
		} else {
			f.values[ref] = f.args[idx]
		}
		return nil
	case ir.OpConstant:
		v, err := constant(g, ref)
		if err != nil {
			return err
		}
		f.values[ref] = v
		return nil
	}

	ins, err := f.valueIns(ref)
	if err != nil {
		return err
	}
	var v Value
	switch op := g.GetOpCode(ref); op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr:
		v, err = machineBinary(ref, op, ins[0], ins[1])
	case ir.OpICmp, ir.OpFCmp:
		v, err = compare(ref, g.GetBitField(ref), ins[0], ins[1])
	case ir.OpLoadField:
		v, err = loadField(ref, g.GetBitField(ref), ins[0])
	case ir.OpStoreField:
		return storeField(ref, g.GetBitField(ref), ins[0], ins[1])
	case ir.OpTypedBinaryOp:
		v, err = typedBinary(ref, g.GetTypedOp(ref).Bin, ins[0], ins[1])
	case ir.OpTypedUnaryOp:
		v, err = typedUnary(ref, g.GetTypedOp(ref).Un, ins[0])
	case ir.OpConvert, ir.OpCheckAndConvert:
		v, err = convert(ref, ir.ConvertKindOf(g, ref), ins[0])
	case ir.OpInt32OverflowCheck:
		v, err = overflowCheck(ref, ins[0])
	case ir.OpIndexCheck:
		v, err = indexCheck(ref, ins[0], ins[1])
	case ir.OpLoadElement:
		v, err = loadElement(ref, ins[0], ins[1])
	case ir.OpStoreElement:
		return storeElement(ref, ins[0], ins[1], ins[2])
	default:
		return execError(ErrCodeUnsupported, ref, "cannot execute %s", op)
	}
	if err != nil {
		return err
	}
	f.values[ref] = v
	return nil
}

func constant(g ir.Graph, ref ir.GateRef) (Value, error) {
	bits := g.GetBitField(ref)
	switch g.GetMachineType(ref) {
	case ir.I1:
		return Int1(bits != 0), nil
	case ir.I32:
		return Int32(ir.ConstInt32Value(bits)), nil
	case ir.F64:
		return Float64(ir.ConstFloat64Value(bits)), nil
	}
	switch g.GetGateType(ref) {
	case ir.IntType:
		return TaggedInt(ir.ConstInt32Value(bits)), nil
	case ir.DoubleType:
		return TaggedDouble(ir.ConstFloat64Value(bits)), nil
	case ir.BooleanType:
		return TaggedBool(bits != 0), nil
	case ir.UndefinedType:
		return Undefined(), nil
	case ir.NullType:
		return Null(), nil
	}
	return Value{}, execError(ErrCodeUnsupported, ref, "cannot materialize %s constant", g.GetGateType(ref))
}

func int32Of(ref ir.GateRef, v Value) (int32, error) {
	if v.Kind == KindInt32 || v.Kind == KindInt1 || (v.Kind == KindTagged && v.Tag == TagInt) {
		return v.Int, nil
	}
	return 0, execError(ErrCodeTypeMismatch, ref, "expected an int32, got %s", v)
}

func numberOf(ref ir.GateRef, v Value) (float64, error) {
	n, ok := v.Number()
	if !ok {
		return 0, execError(ErrCodeTypeMismatch, ref, "expected a number, got %s", v)
	}
	return n, nil
}

func arrayOf(ref ir.GateRef, v Value) (*Array, error) {
	if v.Kind != KindTagged || v.Tag != TagObject || v.Object == nil {
		return nil, execError(ErrCodeTypeMismatch, ref, "expected an array, got %s", v)
	}
	return v.Object, nil
}

func machineBinary(ref ir.GateRef, op ir.Opcode, l, r Value) (Value, error) {
	if l.Kind == KindFloat64 || r.Kind == KindFloat64 {
		a, err := numberOf(ref, l)
		if err != nil {
			return Value{}, err
		}
		b, err := numberOf(ref, r)
		if err != nil {
			return Value{}, err
		}
		switch op {
		case ir.OpAdd:
			return Float64(a + b), nil
		case ir.OpSub:
			return Float64(a - b), nil
		case ir.OpMul:
			return Float64(a * b), nil
		}
		return Value{}, execError(ErrCodeTypeMismatch, ref, "%s on float operands", op)
	}
	a, err := int32Of(ref, l)
	if err != nil {
		return Value{}, err
	}
	b, err := int32Of(ref, r)
	if err != nil {
		return Value{}, err
	}
	var out int32
	switch op {
	case ir.OpAdd:
		out = a + b
	case ir.OpSub:
		out = a - b
	case ir.OpMul:
		out = a * b
	case ir.OpAnd:
		out = a & b
	case ir.OpOr:
		out = a | b
	}
	if l.Kind == KindInt1 && r.Kind == KindInt1 {
		return Int1(out != 0), nil
	}
	return Int32(out), nil
}

func compare(ref ir.GateRef, pred uint64, l, r Value) (Value, error) {
	a, err := numberOf(ref, l)
	if err != nil {
		return Value{}, err
	}
	b, err := numberOf(ref, r)
	if err != nil {
		return Value{}, err
	}
	switch pred {
	case ir.CmpEq:
		return Int1(a == b), nil
	case ir.CmpNe:
		return Int1(a != b), nil
	case ir.CmpSLT:
		return Int1(a < b), nil
	case ir.CmpSLE:
		return Int1(a <= b), nil
	case ir.CmpSGT:
		return Int1(a > b), nil
	case ir.CmpSGE:
		return Int1(a >= b), nil
	}
	return Value{}, execError(ErrCodeUnsupported, ref, "unknown comparison predicate %d", pred)
}

func loadField(ref ir.GateRef, field uint64, obj Value) (Value, error) {
	a, err := arrayOf(ref, obj)
	if err != nil {
		return Value{}, err
	}
	switch field {
	case ir.FieldLength:
		return Int32(a.Length), nil
	case ir.FieldCapacity:
		return Int32(a.Capacity), nil
	}
	return Value{}, execError(ErrCodeUnsupported, ref, "unknown field %d", field)
}

func storeField(ref ir.GateRef, field uint64, obj, v Value) error {
	a, err := arrayOf(ref, obj)
	if err != nil {
		return err
	}
	n, err := int32Of(ref, v)
	if err != nil {
		return err
	}
	switch field {
	case ir.FieldLength:
		if n < 0 || n > a.Capacity {
			return execError(ErrCodeDeopt, ref, "length %d outside capacity %d", n, a.Capacity)
		}
		a.Length = n
	case ir.FieldCapacity:
		a.Grow(n)
	default:
		return execError(ErrCodeUnsupported, ref, "unknown field %d", field)
	}
	return nil
}

// typedBinary evaluates a TYPED_BINARY_OP on whatever representation its
// operands arrived in: native operands give a native result, tagged operands
// a tagged one. Comparisons always produce an i1.
func typedBinary(ref ir.GateRef, op ir.TypedBinOp, l, r Value) (Value, error) {
	if op == ir.BinStrictEq {
		if !l.IsNumber() || !r.IsNumber() {
			return Int1(l.Kind == r.Kind && l.Tag == r.Tag && l.Int == r.Int && l.Object == r.Object), nil
		}
	}
	a, err := numberOf(ref, l)
	if err != nil {
		return Value{}, err
	}
	b, err := numberOf(ref, r)
	if err != nil {
		return Value{}, err
	}
	tagged := l.Kind == KindTagged || r.Kind == KindTagged
	bothInt := l.Kind == KindInt32 && r.Kind == KindInt32

	number := func(x float64) Value {
		switch {
		case tagged:
			return TaggedNumber(x)
		case bothInt:
			return Int32(int32(int64(x)))
		default:
			return Float64(x)
		}
	}
	toInt := func(x float64) int32 { return int32(int64(x)) }

	switch op {
	case ir.BinAdd:
		if bothInt {
			return Int32(l.Int + r.Int), nil
		}
		return number(a + b), nil
	case ir.BinSub:
		if bothInt {
			return Int32(l.Int - r.Int), nil
		}
		return number(a - b), nil
	case ir.BinMul:
		if bothInt {
			return Int32(l.Int * r.Int), nil
		}
		return number(a * b), nil
	case ir.BinDiv:
		if tagged {
			return TaggedNumber(a / b), nil
		}
		return Float64(a / b), nil
	case ir.BinMod:
		if tagged {
			return TaggedNumber(math.Mod(a, b)), nil
		}
		return Float64(math.Mod(a, b)), nil
	case ir.BinLess:
		return Int1(a < b), nil
	case ir.BinLessEq:
		return Int1(a <= b), nil
	case ir.BinGreater:
		return Int1(a > b), nil
	case ir.BinGreaterEq:
		return Int1(a >= b), nil
	case ir.BinEq, ir.BinStrictEq:
		return Int1(a == b), nil
	case ir.BinNotEq:
		return Int1(a != b), nil
	}

	x, y := toInt(a), toInt(b)
	var out int32
	switch op {
	case ir.BinShl:
		out = x << (uint32(y) & 31)
	case ir.BinShr:
		out = int32(uint32(x) >> (uint32(y) & 31))
	case ir.BinAshr:
		out = x >> (uint32(y) & 31)
	case ir.BinAnd:
		out = x & y
	case ir.BinOr:
		out = x | y
	case ir.BinXor:
		out = x ^ y
	default:
		return Value{}, execError(ErrCodeUnsupported, ref, "unknown binary operator %s", op)
	}
	if tagged {
		return TaggedInt(out), nil
	}
	return Int32(out), nil
}

func typedUnary(ref ir.GateRef, op ir.TypedUnOp, v Value) (Value, error) {
	if op == ir.UnJEQZ {
		if v.Kind == KindTagged {
			return TaggedBool(!v.Truthy()), nil
		}
		return Int1(!v.Truthy()), nil
	}
	a, err := numberOf(ref, v)
	if err != nil {
		return Value{}, err
	}
	var x float64
	switch op {
	case ir.UnInc:
		x = a + 1
	case ir.UnDec:
		x = a - 1
	case ir.UnNeg:
		x = -a
	case ir.UnNot:
		x = float64(^int32(int64(a)))
	default:
		return Value{}, execError(ErrCodeUnsupported, ref, "unknown unary operator %s", op)
	}
	switch v.Kind {
	case KindInt32:
		return Int32(int32(int64(x))), nil
	case KindFloat64:
		return Float64(x), nil
	}
	return TaggedNumber(x), nil
}

func convert(ref ir.GateRef, kind ir.ConvertKind, v Value) (Value, error) {
	deopt := func() (Value, error) {
		return Value{}, execError(ErrCodeDeopt, ref, "%s failed on %s", kind, v)
	}
	switch kind {
	case ir.ConvertBoolToInt32:
		return Int32(v.Int), nil
	case ir.ConvertBoolToFloat64:
		return Float64(float64(v.Int)), nil
	case ir.ConvertInt32ToFloat64:
		return Float64(float64(v.Int)), nil
	case ir.ConvertFloat64ToInt32:
		return Int32(int32(int64(v.Float))), nil
	case ir.ConvertInt32ToBool:
		return Int1(v.Int != 0), nil
	case ir.ConvertFloat64ToBool:
		return Int1(v.Float != 0 && !math.IsNaN(v.Float)), nil
	case ir.ConvertBoolToTaggedBoolean:
		return TaggedBool(v.Int != 0), nil
	case ir.ConvertInt32ToTaggedInt:
		return TaggedInt(v.Int), nil
	case ir.ConvertFloat64ToTaggedDouble:
		return TaggedDouble(v.Float), nil

	case ir.CheckTaggedIntAndConvertToInt32:
		if v.Kind != KindTagged || v.Tag != TagInt {
			return deopt()
		}
		return Int32(v.Int), nil
	case ir.CheckTaggedDoubleAndConvertToInt32:
		if v.Kind != KindTagged || v.Tag != TagDouble {
			return deopt()
		}
		return Int32(int32(int64(v.Float))), nil
	case ir.CheckTaggedNumberAndConvertToInt32:
		if v.Kind != KindTagged || !v.IsNumber() {
			return deopt()
		}
		n, _ := v.Number()
		return Int32(int32(int64(n))), nil
	case ir.CheckTaggedIntAndConvertToFloat64:
		if v.Kind != KindTagged || v.Tag != TagInt {
			return deopt()
		}
		return Float64(float64(v.Int)), nil
	case ir.CheckTaggedDoubleAndConvertToFloat64:
		if v.Kind != KindTagged || v.Tag != TagDouble {
			return deopt()
		}
		return Float64(v.Float), nil
	case ir.CheckTaggedNumberAndConvertToFloat64:
		if v.Kind != KindTagged || !v.IsNumber() {
			return deopt()
		}
		n, _ := v.Number()
		return Float64(n), nil
	case ir.CheckTaggedBooleanAndConvertToBool:
		if v.Kind != KindTagged || v.Tag != TagBool {
			return deopt()
		}
		return Int1(v.Int != 0), nil
	}
	return Value{}, execError(ErrCodeUnsupported, ref, "unknown conversion %s", kind)
}

func overflowCheck(ref ir.GateRef, v Value) (Value, error) {
	n, err := numberOf(ref, v)
	if err != nil {
		return Value{}, err
	}
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return Value{}, execError(ErrCodeDeopt, ref, "%s overflows int32", v)
	}
	return Int32(int32(n)), nil
}

func elementIndex(ref ir.GateRef, v Value) (int32, error) {
	n, err := numberOf(ref, v)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
		return 0, execError(ErrCodeDeopt, ref, "index %s is not an array index", v)
	}
	return int32(n), nil
}

func indexCheck(ref ir.GateRef, recv, index Value) (Value, error) {
	a, err := arrayOf(ref, recv)
	if err != nil {
		return Value{}, err
	}
	i, err := elementIndex(ref, index)
	if err != nil {
		return Value{}, err
	}
	if i >= a.Length {
		return Value{}, execError(ErrCodeDeopt, ref, "index %d out of bounds for length %d", i, a.Length)
	}
	return Int32(i), nil
}

func loadElement(ref ir.GateRef, recv, index Value) (Value, error) {
	a, err := arrayOf(ref, recv)
	if err != nil {
		return Value{}, err
	}
	i, err := elementIndex(ref, index)
	if err != nil {
		return Value{}, err
	}
	if i >= a.Length {
		return Undefined(), nil
	}
	return a.Elements[i], nil
}

func storeElement(ref ir.GateRef, recv, index, v Value) error {
	a, err := arrayOf(ref, recv)
	if err != nil {
		return err
	}
	i, err := elementIndex(ref, index)
	if err != nil {
		return err
	}
	if i >= a.Capacity {
		return execError(ErrCodeDeopt, ref, "store at %d beyond capacity %d", i, a.Capacity)
	}
	a.Elements[i] = v.Box()
	return nil
}
