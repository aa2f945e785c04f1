package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the machine representation of a Value.
type Kind uint8

const (
	KindInt1 Kind = iota + 1
	KindInt32
	KindFloat64
	KindTagged
)

func (k Kind) String() string {
	switch k {
	case KindInt1:
		return "i1"
	case KindInt32:
		return "i32"
	case KindFloat64:
		return "f64"
	case KindTagged:
		return "tagged"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Tag is the dynamic type of a tagged value.
type Tag uint8

const (
	TagUndefined Tag = iota
	TagNull
	TagInt
	TagDouble
	TagBool
	TagObject
)

// Array is the heap object manipulated by element and field accesses.
// Elements beyond Length are holes and read as undefined.
type Array struct {
	Length   int32
	Capacity int32
	Elements []Value
}

// NewArray allocates an array with the given capacity holding elems.
func NewArray(capacity int32, elems ...Value) *Array {
	if int(capacity) < len(elems) {
		capacity = int32(len(elems))
	}
	a := &Array{Length: int32(len(elems)), Capacity: capacity, Elements: make([]Value, capacity)}
	for i := range a.Elements {
		a.Elements[i] = Undefined()
	}
	copy(a.Elements, elems)
	return a
}

// Grow raises the capacity to at least n, keeping the elements.
func (a *Array) Grow(n int32) {
	if n <= a.Capacity {
		return
	}
	for int32(len(a.Elements)) < n {
		a.Elements = append(a.Elements, Undefined())
	}
	a.Capacity = n
}

// Values returns the live elements.
func (a *Array) Values() []Value { return a.Elements[:a.Length] }

// Value is one runtime value. Native values carry only their payload; tagged
// values also carry a dynamic Tag.
type Value struct {
	Kind   Kind
	Tag    Tag
	Int    int32
	Float  float64
	Object *Array
}

func Int1(b bool) Value {
	if b {
		return Value{Kind: KindInt1, Int: 1}
	}
	return Value{Kind: KindInt1}
}

func Int32(v int32) Value { return Value{Kind: KindInt32, Int: v} }

func Float64(v float64) Value { return Value{Kind: KindFloat64, Float: v} }

func TaggedInt(v int32) Value { return Value{Kind: KindTagged, Tag: TagInt, Int: v} }

func TaggedDouble(v float64) Value { return Value{Kind: KindTagged, Tag: TagDouble, Float: v} }

func Undefined() Value { return Value{Kind: KindTagged, Tag: TagUndefined} }

func Null() Value { return Value{Kind: KindTagged, Tag: TagNull} }

func Object(a *Array) Value { return Value{Kind: KindTagged, Tag: TagObject, Object: a} }

func TaggedBool(b bool) Value {
	v := Value{Kind: KindTagged, Tag: TagBool}
	if b {
		v.Int = 1
	}
	return v
}

// TaggedNumber boxes f as an int when it is integral and fits, as a double
// otherwise.
func TaggedNumber(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 && !(f == 0 && math.Signbit(f)) {
		return TaggedInt(int32(f))
	}
	return TaggedDouble(f)
}

// IsNumber reports whether v holds a number in any representation.
func (v Value) IsNumber() bool {
	switch v.Kind {
	case KindInt32, KindFloat64:
		return true
	case KindTagged:
		return v.Tag == TagInt || v.Tag == TagDouble
	}
	return false
}

// Number returns the numeric value of v. Booleans count as 0 and 1.
func (v Value) Number() (float64, bool) {
	switch {
	case v.Kind == KindInt1, v.Kind == KindInt32:
		return float64(v.Int), true
	case v.Kind == KindFloat64:
		return v.Float, true
	case v.Tag == TagInt, v.Tag == TagBool:
		return float64(v.Int), true
	case v.Tag == TagDouble:
		return v.Float, true
	}
	return 0, false
}

// Truthy returns the boolean meaning of v.
func (v Value) Truthy() bool {
	switch {
	case v.Kind == KindTagged && v.Tag == TagObject:
		return v.Object != nil
	case v.Kind == KindTagged && (v.Tag == TagUndefined || v.Tag == TagNull):
		return false
	}
	f, _ := v.Number()
	return f != 0 && !math.IsNaN(f)
}

// Box converts v to its tagged form.
func (v Value) Box() Value {
	switch v.Kind {
	case KindInt1:
		return TaggedBool(v.Int != 0)
	case KindInt32:
		return TaggedInt(v.Int)
	case KindFloat64:
		return TaggedDouble(v.Float)
	}
	return v
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt1:
		return fmt.Sprintf("i1:%t", v.Int != 0)
	case KindInt32:
		return fmt.Sprintf("i32:%d", v.Int)
	case KindFloat64:
		return fmt.Sprintf("f64:%g", v.Float)
	}
	switch v.Tag {
	case TagUndefined:
		return "undefined"
	case TagNull:
		return "null"
	case TagInt:
		return fmt.Sprintf("int:%d", v.Int)
	case TagDouble:
		return fmt.Sprintf("double:%g", v.Float)
	case TagBool:
		return fmt.Sprintf("bool:%t", v.Int != 0)
	case TagObject:
		if v.Object == nil {
			return "object:nil"
		}
		return fmt.Sprintf("array[%d/%d]", v.Object.Length, v.Object.Capacity)
	}
	return "invalid"
}

// ParseValue reads the String form of a scalar value, e.g. "i32:5",
// "double:1.5" or "undefined". Objects cannot be parsed.
func ParseValue(s string) (Value, error) {
	switch s {
	case "undefined":
		return Undefined(), nil
	case "null":
		return Null(), nil
	}
	kind, lit, ok := strings.Cut(s, ":")
	if !ok {
		return Value{}, fmt.Errorf("value %q: want kind:literal", s)
	}
	var (
		v   Value
		err error
	)
	switch kind {
	case "i1", "bool":
		var b bool
		if b, err = strconv.ParseBool(lit); err == nil {
			v = Int1(b)
			if kind == "bool" {
				v = TaggedBool(b)
			}
		}
	case "i32", "int":
		var n int64
		if n, err = strconv.ParseInt(lit, 10, 32); err == nil {
			v = Int32(int32(n))
			if kind == "int" {
				v = TaggedInt(int32(n))
			}
		}
	case "f64", "double":
		var f float64
		if f, err = strconv.ParseFloat(lit, 64); err == nil {
			v = Float64(f)
			if kind == "double" {
				v = TaggedDouble(f)
			}
		}
	default:
		return Value{}, fmt.Errorf("value %q: unknown kind %q", s, kind)
	}
	if err != nil {
		return Value{}, fmt.Errorf("value %q: %w", s, err)
	}
	return v, nil
}
