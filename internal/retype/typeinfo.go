package retype

import (
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
)

// TypeInfo is the machine representation chosen for a value.
//
// The lattice is None < {Int1, Int32, Float64} < Tagged: None means not yet
// resolved, the three native representations are incomparable, and Tagged
// (a boxed value) is the top.
type TypeInfo uint8

const (
	None TypeInfo = iota
	Int1
	Int32
	Float64
	Tagged
)

func (t TypeInfo) String() string {
	switch t {
	case None:
		return "NONE"
	case Int1:
		return "INT1"
	case Int32:
		return "INT32"
	case Float64:
		return "FLOAT64"
	case Tagged:
		return "TAGGED"
	default:
		return fmt.Sprintf("TypeInfo(%d)", uint8(t))
	}
}

// ParseTypeInfo is the inverse of TypeInfo.String.
func ParseTypeInfo(s string) (TypeInfo, error) {
	for t := None; t <= Tagged; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return None, fmt.Errorf("unknown type info %q", s)
}

// FromGateType maps a static type to the representation used for it.
func FromGateType(t ir.GateType) TypeInfo {
	switch {
	case t.IsIntType():
		return Int32
	case t.IsDoubleType():
		return Float64
	case t.IsBooleanType():
		return Int1
	default:
		return Tagged
	}
}

// FromMachineType maps the representation a machine-level gate already
// produces. Gates without a value map to None.
func FromMachineType(m ir.MachineType) TypeInfo {
	switch m {
	case ir.I1:
		return Int1
	case ir.I32:
		return Int32
	case ir.F64:
		return Float64
	case ir.I64, ir.AnyValue:
		return Tagged
	default:
		return None
	}
}

// Join returns the least upper bound of a and b.
func Join(a, b TypeInfo) TypeInfo {
	switch {
	case a == None:
		return b
	case b == None, a == b:
		return a
	default:
		return Tagged
	}
}

// height is the longest strictly increasing chain in the lattice, which
// bounds how often a single gate's TypeInfo can change.
const height = 2
