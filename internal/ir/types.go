package ir

import "fmt"

// GateType is the static (speculative) type attached to a gate by the
// upstream type inference. The retype pass reads it; it never writes it.
type GateType uint8

const (
	AnyType GateType = iota
	NumberType
	IntType
	DoubleType
	BooleanType
	UndefinedType
	NullType
	StringType
	ObjectType
	EmptyType
)

var gateTypeNames = [...]string{
	AnyType:       "any",
	NumberType:    "number",
	IntType:       "int",
	DoubleType:    "double",
	BooleanType:   "boolean",
	UndefinedType: "undefined",
	NullType:      "null",
	StringType:    "string",
	ObjectType:    "object",
	EmptyType:     "empty",
}

func (t GateType) String() string {
	if int(t) < len(gateTypeNames) {
		return gateTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseGateType is the inverse of GateType.String.
func ParseGateType(s string) (GateType, error) {
	if s == "" {
		return AnyType, nil
	}
	for i, n := range gateTypeNames {
		if n == s {
			return GateType(i), nil
		}
	}
	return AnyType, fmt.Errorf("unknown gate type %q", s)
}

func (t GateType) IsIntType() bool     { return t == IntType }
func (t GateType) IsDoubleType() bool  { return t == DoubleType }
func (t GateType) IsBooleanType() bool { return t == BooleanType }
func (t GateType) IsAnyType() bool     { return t == AnyType }

// IsNumberType reports whether values of this type are numbers, with or
// without a known int/double split.
func (t GateType) IsNumberType() bool {
	return t == NumberType || t == IntType || t == DoubleType
}

// MachineType is the low-level representation a gate produces.
type MachineType uint8

const (
	NoValue MachineType = iota
	I1
	I32
	I64
	F64
	AnyValue
)

var machineTypeNames = [...]string{
	NoValue:  "novalue",
	I1:       "i1",
	I32:      "i32",
	I64:      "i64",
	F64:      "f64",
	AnyValue: "anyvalue",
}

func (m MachineType) String() string {
	if int(m) < len(machineTypeNames) {
		return machineTypeNames[m]
	}
	return fmt.Sprintf("machine(%d)", uint8(m))
}

// ParseMachineType is the inverse of MachineType.String.
func ParseMachineType(s string) (MachineType, error) {
	for i, n := range machineTypeNames {
		if n == s {
			return MachineType(i), nil
		}
	}
	return NoValue, fmt.Errorf("unknown machine type %q", s)
}

// TypedBinOp is the source-level operator carried by TYPED_BINARY_OP.
type TypedBinOp uint8

const (
	BinNone TypedBinOp = iota
	BinAdd
	BinSub
	BinMul
	BinDiv
	BinMod
	BinLess
	BinLessEq
	BinGreater
	BinGreaterEq
	BinEq
	BinNotEq
	BinStrictEq
	BinShl
	BinShr
	BinAshr
	BinAnd
	BinOr
	BinXor
)

var binOpNames = [...]string{
	BinNone:      "",
	BinAdd:       "ADD",
	BinSub:       "SUB",
	BinMul:       "MUL",
	BinDiv:       "DIV",
	BinMod:       "MOD",
	BinLess:      "LESS",
	BinLessEq:    "LESSEQ",
	BinGreater:   "GREATER",
	BinGreaterEq: "GREATEREQ",
	BinEq:        "EQ",
	BinNotEq:     "NOTEQ",
	BinStrictEq:  "STRICTEQ",
	BinShl:       "SHL",
	BinShr:       "SHR",
	BinAshr:      "ASHR",
	BinAnd:       "AND",
	BinOr:        "OR",
	BinXor:       "XOR",
}

func (op TypedBinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("binop(%d)", uint8(op))
}

// ParseTypedBinOp is the inverse of TypedBinOp.String.
func ParseTypedBinOp(s string) (TypedBinOp, error) {
	for i, n := range binOpNames {
		if i > 0 && n == s {
			return TypedBinOp(i), nil
		}
	}
	return BinNone, fmt.Errorf("unknown binary operator %q", s)
}

// TypedUnOp is the source-level operator carried by TYPED_UNARY_OP.
type TypedUnOp uint8

const (
	UnNone TypedUnOp = iota
	UnInc
	UnDec
	UnNeg
	UnNot
	UnJEQZ
)

var unOpNames = [...]string{
	UnNone: "",
	UnInc:  "INC",
	UnDec:  "DEC",
	UnNeg:  "NEG",
	UnNot:  "NOT",
	UnJEQZ: "JEQZ",
}

func (op TypedUnOp) String() string {
	if int(op) < len(unOpNames) {
		return unOpNames[op]
	}
	return fmt.Sprintf("unop(%d)", uint8(op))
}

// ParseTypedUnOp is the inverse of TypedUnOp.String.
func ParseTypedUnOp(s string) (TypedUnOp, error) {
	for i, n := range unOpNames {
		if i > 0 && n == s {
			return TypedUnOp(i), nil
		}
	}
	return UnNone, fmt.Errorf("unknown unary operator %q", s)
}

// TypedOp is the operator payload of TYPED_BINARY_OP and TYPED_UNARY_OP.
// Left and Right are the static operand types seen by type inference; a unary
// op only uses Left.
type TypedOp struct {
	Bin   TypedBinOp
	Un    TypedUnOp
	Left  GateType
	Right GateType
}

// ICmp predicates, stored in the BitField of ICMP and FCMP gates.
const (
	CmpEq uint64 = iota
	CmpNe
	CmpSLT
	CmpSLE
	CmpSGT
	CmpSGE
)

// Object field offsets understood by LOAD_FIELD and STORE_FIELD.
const (
	FieldLength uint64 = iota
	FieldCapacity
)

// ConvertKind selects the representation change performed by CONVERT and
// CHECK_AND_CONVERT gates. It is stored in the gate's BitField.
type ConvertKind uint8

const (
	ConvertNone ConvertKind = iota

	// Unchecked conversions (CONVERT).
	ConvertBoolToInt32
	ConvertBoolToFloat64
	ConvertInt32ToFloat64
	ConvertFloat64ToInt32
	ConvertInt32ToBool
	ConvertFloat64ToBool
	ConvertBoolToTaggedBoolean
	ConvertInt32ToTaggedInt
	ConvertFloat64ToTaggedDouble

	// Guarded unboxing (CHECK_AND_CONVERT).
	CheckTaggedIntAndConvertToInt32
	CheckTaggedDoubleAndConvertToInt32
	CheckTaggedNumberAndConvertToInt32
	CheckTaggedIntAndConvertToFloat64
	CheckTaggedDoubleAndConvertToFloat64
	CheckTaggedNumberAndConvertToFloat64
	CheckTaggedBooleanAndConvertToBool

	convertKindCount
)

var convertKindNames = [convertKindCount]string{
	ConvertNone:                          "None",
	ConvertBoolToInt32:                   "ConvertBoolToInt32",
	ConvertBoolToFloat64:                 "ConvertBoolToFloat64",
	ConvertInt32ToFloat64:                "ConvertInt32ToFloat64",
	ConvertFloat64ToInt32:                "ConvertFloat64ToInt32",
	ConvertInt32ToBool:                   "ConvertInt32ToBool",
	ConvertFloat64ToBool:                 "ConvertFloat64ToBool",
	ConvertBoolToTaggedBoolean:           "ConvertBoolToTaggedBoolean",
	ConvertInt32ToTaggedInt:              "ConvertInt32ToTaggedInt",
	ConvertFloat64ToTaggedDouble:         "ConvertFloat64ToTaggedDouble",
	CheckTaggedIntAndConvertToInt32:      "CheckTaggedIntAndConvertToInt32",
	CheckTaggedDoubleAndConvertToInt32:   "CheckTaggedDoubleAndConvertToInt32",
	CheckTaggedNumberAndConvertToInt32:   "CheckTaggedNumberAndConvertToInt32",
	CheckTaggedIntAndConvertToFloat64:    "CheckTaggedIntAndConvertToFloat64",
	CheckTaggedDoubleAndConvertToFloat64: "CheckTaggedDoubleAndConvertToFloat64",
	CheckTaggedNumberAndConvertToFloat64: "CheckTaggedNumberAndConvertToFloat64",
	CheckTaggedBooleanAndConvertToBool:   "CheckTaggedBooleanAndConvertToBool",
}

func (k ConvertKind) String() string {
	if k < convertKindCount {
		return convertKindNames[k]
	}
	return fmt.Sprintf("ConvertKind(%d)", uint8(k))
}

// ParseConvertKind is the inverse of ConvertKind.String.
func ParseConvertKind(s string) (ConvertKind, error) {
	for i, n := range convertKindNames {
		if n == s {
			return ConvertKind(i), nil
		}
	}
	return ConvertNone, fmt.Errorf("unknown conversion %q", s)
}

// IsChecked reports whether the conversion is a guarded unboxing.
func (k ConvertKind) IsChecked() bool {
	return k >= CheckTaggedIntAndConvertToInt32 && k < convertKindCount
}

// Result returns the machine and static type produced by the conversion.
func (k ConvertKind) Result() (MachineType, GateType) {
	switch k {
	case ConvertBoolToInt32, ConvertFloat64ToInt32, CheckTaggedIntAndConvertToInt32,
		CheckTaggedDoubleAndConvertToInt32, CheckTaggedNumberAndConvertToInt32:
		return I32, IntType
	case ConvertBoolToFloat64, ConvertInt32ToFloat64, CheckTaggedIntAndConvertToFloat64,
		CheckTaggedDoubleAndConvertToFloat64, CheckTaggedNumberAndConvertToFloat64:
		return F64, DoubleType
	case ConvertInt32ToBool, ConvertFloat64ToBool, CheckTaggedBooleanAndConvertToBool:
		return I1, BooleanType
	case ConvertBoolToTaggedBoolean:
		return I64, BooleanType
	case ConvertInt32ToTaggedInt:
		return I64, IntType
	case ConvertFloat64ToTaggedDouble:
		return I64, DoubleType
	default:
		panic(fmt.Sprintf("unreachable: no result type for %s", k))
	}
}
