package retype

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/ir"
)

// ConvertStats summarizes what RunConvertPhase changed.
type ConvertStats struct {
	// Visited is the number of gates that existed before the phase started.
	Visited int
	// Inserted is the number of conversion gates created.
	Inserted int
	// Rewired is the number of value edges redirected to a conversion.
	Rewired int
	// ByKind counts inserted gates per conversion.
	ByKind map[ir.ConvertKind]int
}

type convertKey struct {
	in   ir.GateRef
	kind ir.ConvertKind
}

type converter struct {
	t     *Typing
	g     ir.Builder
	cache map[convertKey]ir.GateRef
	stats ConvertStats
}

// RunConvertPhase rewrites the value edges of the typed graph so every
// consumer receives its operands in the representation it expects. Only
// gates that existed when the phase started are visited; the conversions it
// adds are recorded in t with the TypeInfo they produce.
//
// Conversions of the same input to the same representation are shared.
// The phase mutates the graph in place and may run once per Typing.
func RunConvertPhase(t *Typing) ConvertStats {
	if t.converted {
		panic("BUG: RunConvertPhase called twice on one Typing")
	}
	t.converted = true
	t.grow()

	c := &converter{
		t:     t,
		g:     t.g,
		cache: make(map[convertKey]ir.GateRef),
		stats: ConvertStats{ByKind: make(map[ir.ConvertKind]int)},
	}
	n := t.g.GateCount()
	for i := 0; i < n; i++ {
		ref := ir.GateRef(i)
		visitorFor(c.g, ref).convert(c, ref)
	}
	c.stats.Visited = n

	t.log.Debug("convert complete",
		zap.Int("visited", c.stats.Visited),
		zap.Int("inserted", c.stats.Inserted),
		zap.Int("rewired", c.stats.Rewired))
	return c.stats
}

// typeOf returns the resolved TypeInfo of an input. Anything unresolved at
// this point is a bug in the Retype phase.
func (c *converter) typeOf(in ir.GateRef) TypeInfo {
	ti := c.t.TypeOf(in)
	if ti == None {
		panic(fmt.Sprintf("unreachable: %s has no resolved type info", ir.Label(c.g, in)))
	}
	return ti
}

func (c *converter) insert(kind ir.ConvertKind, in ir.GateRef) ir.GateRef {
	key := convertKey{in: in, kind: kind}
	if ref, ok := c.cache[key]; ok {
		return ref
	}
	ref := c.g.NewConvert(kind, in)
	c.t.grow()
	machine, _ := kind.Result()
	c.t.types[ref] = FromMachineType(machine)
	c.cache[key] = ref
	c.stats.Inserted++
	c.stats.ByKind[kind]++
	return ref
}

// replace points value slot idx of ref at the result of conv.
func (c *converter) replace(ref ir.GateRef, idx int, conv func(ir.GateRef) ir.GateRef) {
	in := c.g.GetValueIn(ref, idx)
	out := conv(in)
	if out != in {
		c.g.ReplaceValueIn(ref, out, idx)
		c.stats.Rewired++
	}
}

func (c *converter) replaceAll(ref ir.GateRef, conv func(ir.GateRef) ir.GateRef) {
	for i := 0; i < c.g.GetNumValueIn(ref); i++ {
		c.replace(ref, i, conv)
	}
}

// checkAndConvertToInt32 produces an int32 view of in, using the static type
// hint to pick the guard when in is tagged.
func (c *converter) checkAndConvertToInt32(in ir.GateRef, hint ir.GateType) ir.GateRef {
	switch c.typeOf(in) {
	case Int1:
		return c.insert(ir.ConvertBoolToInt32, in)
	case Int32:
		return in
	case Float64:
		return c.insert(ir.ConvertFloat64ToInt32, in)
	case Tagged:
		switch {
		case hint.IsIntType():
			return c.insert(ir.CheckTaggedIntAndConvertToInt32, in)
		case hint.IsDoubleType():
			return c.insert(ir.CheckTaggedDoubleAndConvertToInt32, in)
		default:
			return c.insert(ir.CheckTaggedNumberAndConvertToInt32, in)
		}
	}
	panic(fmt.Sprintf("unreachable: cannot convert %s to int32", ir.Label(c.g, in)))
}

func (c *converter) checkAndConvertToFloat64(in ir.GateRef, hint ir.GateType) ir.GateRef {
	switch c.typeOf(in) {
	case Int1:
		return c.insert(ir.ConvertBoolToFloat64, in)
	case Int32:
		return c.insert(ir.ConvertInt32ToFloat64, in)
	case Float64:
		return in
	case Tagged:
		switch {
		case hint.IsIntType():
			return c.insert(ir.CheckTaggedIntAndConvertToFloat64, in)
		case hint.IsDoubleType():
			return c.insert(ir.CheckTaggedDoubleAndConvertToFloat64, in)
		default:
			return c.insert(ir.CheckTaggedNumberAndConvertToFloat64, in)
		}
	}
	panic(fmt.Sprintf("unreachable: cannot convert %s to float64", ir.Label(c.g, in)))
}

func (c *converter) checkAndConvertToBool(in ir.GateRef) ir.GateRef {
	switch c.typeOf(in) {
	case Int1:
		return in
	case Int32:
		return c.insert(ir.ConvertInt32ToBool, in)
	case Float64:
		return c.insert(ir.ConvertFloat64ToBool, in)
	case Tagged:
		return c.insert(ir.CheckTaggedBooleanAndConvertToBool, in)
	}
	panic(fmt.Sprintf("unreachable: cannot convert %s to bool", ir.Label(c.g, in)))
}

func (c *converter) convertToTagged(in ir.GateRef) ir.GateRef {
	switch c.typeOf(in) {
	case Int1:
		return c.insert(ir.ConvertBoolToTaggedBoolean, in)
	case Int32:
		return c.insert(ir.ConvertInt32ToTaggedInt, in)
	case Float64:
		return c.insert(ir.ConvertFloat64ToTaggedDouble, in)
	case Tagged:
		return in
	}
	panic(fmt.Sprintf("unreachable: cannot box %s", ir.Label(c.g, in)))
}

// toInt32 and toFloat64 convert using the input's own static type as the
// guard hint.
func (c *converter) toInt32(in ir.GateRef) ir.GateRef {
	return c.checkAndConvertToInt32(in, c.g.GetGateType(in))
}

func (c *converter) toFloat64(in ir.GateRef) ir.GateRef {
	return c.checkAndConvertToFloat64(in, c.g.GetGateType(in))
}

// toNumberOrTagged narrows numeric inputs to int32 and boxes everything else.
func (c *converter) toNumberOrTagged(in ir.GateRef) ir.GateRef {
	if c.g.GetGateType(in).IsNumberType() {
		return c.toInt32(in)
	}
	return c.convertToTagged(in)
}

func convertNothing(*converter, ir.GateRef) {}

func convertOthers(c *converter, ref ir.GateRef) {
	c.replaceAll(ref, c.convertToTagged)
}

func convertBranch(c *converter, ref ir.GateRef) {
	c.replace(ref, 0, c.checkAndConvertToBool)
}

func convertPhi(c *converter, ref ir.GateRef) {
	ti := c.typeOf(ref)
	if ti == Tagged {
		convertOthers(c, ref)
		return
	}
	var conv func(ir.GateRef) ir.GateRef
	switch ti {
	case Int1:
		conv = c.checkAndConvertToBool
	case Int32:
		conv = c.toInt32
	case Float64:
		conv = c.toFloat64
	}
	for i := 0; i < c.g.GetNumValueIn(ref); i++ {
		if c.t.TypeOf(c.g.GetValueIn(ref, i)) != ti {
			c.replace(ref, i, conv)
		}
	}
}

func convertTypedBinary(c *converter, ref ir.GateRef) {
	switch classifyBinary(c.g, ref) {
	case binaryArith:
		if intArith(c.g, ref) {
			c.replaceAll(ref, c.toInt32)
		} else {
			c.replaceAll(ref, c.toFloat64)
		}
	case binaryCompare:
		if intCompare(c.g, ref) {
			c.replaceAll(ref, c.toInt32)
		} else {
			c.replaceAll(ref, c.toFloat64)
		}
	case binaryShift:
		c.replaceAll(ref, c.toInt32)
	default:
		convertOthers(c, ref)
	}
}

func convertTypedUnary(c *converter, ref ir.GateRef) {
	switch classifyUnary(c.g, ref) {
	case unaryIntIncDec, unaryIntNot:
		c.replace(ref, 0, c.toInt32)
	case unaryDoubleIncDec:
		c.replace(ref, 0, c.toFloat64)
	case unaryBoolJEQZ:
		c.replace(ref, 0, c.checkAndConvertToBool)
	default:
		convertOthers(c, ref)
	}
}

func convertOverflowCheck(c *converter, ref ir.GateRef) {
	c.replace(ref, 0, func(in ir.GateRef) ir.GateRef {
		return c.checkAndConvertToInt32(in, ir.IntType)
	})
}

// convertElementAccess handles INDEX_CHECK and LOAD_ELEMENT: receiver and
// index.
func convertElementAccess(c *converter, ref ir.GateRef) {
	c.replaceAll(ref, c.toNumberOrTagged)
}

// convertStoreElement narrows the index; receiver and stored value stay
// boxed because the backing store is tagged.
func convertStoreElement(c *converter, ref ir.GateRef) {
	c.replace(ref, 0, c.convertToTagged)
	c.replace(ref, 1, c.toNumberOrTagged)
	c.replace(ref, 2, c.convertToTagged)
}
