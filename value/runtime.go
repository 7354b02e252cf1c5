package value

import (
	"fmt"
	"math"
)

// NumberSubtype distinguishes the four numeric representations the
// runtime promotes between under Fluence's numeric promotion and
// division rules.
type NumberSubtype uint8

const (
	Int32 NumberSubtype = iota
	Int64
	Float32
	Float64
)

func (s NumberSubtype) String() string {
	switch s {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

func (s NumberSubtype) IsFloat() bool {
	return s == Float32 || s == Float64
}

// rank orders subtypes for promotion: the wider of two operands wins.
func (s NumberSubtype) rank() int {
	switch s {
	case Int32:
		return 0
	case Int64:
		return 1
	case Float32:
		return 2
	case Float64:
		return 3
	default:
		return 0
	}
}

// RKind identifies which variant a RuntimeValue holds.
type RKind uint8

const (
	RNil RKind = iota
	RBool
	RNumber
	RObject
)

// RuntimeValue is the VM's register-file element. It is a plain struct,
// not a pointer: nil, booleans, and numbers live entirely inline so that
// the hot arithmetic and branch paths never touch the heap. Only RObject
// carries a pointer, to one of the heap object kinds in object.go.
type RuntimeValue struct {
	Kind   RKind
	Bool   bool
	NumSub NumberSubtype
	I32    int32
	I64    int64
	F32    float32
	F64    float64
	Obj    Object
}

var (
	RVNil   = RuntimeValue{Kind: RNil}
	RVTrue  = RuntimeValue{Kind: RBool, Bool: true}
	RVFalse = RuntimeValue{Kind: RBool, Bool: false}
)

func Bool2RV(b bool) RuntimeValue {
	if b {
		return RVTrue
	}
	return RVFalse
}

func NewRVInt32(i int32) RuntimeValue {
	return RuntimeValue{Kind: RNumber, NumSub: Int32, I32: i}
}

func NewRVInt64(i int64) RuntimeValue {
	return RuntimeValue{Kind: RNumber, NumSub: Int64, I64: i}
}

func NewRVFloat32(f float32) RuntimeValue {
	return RuntimeValue{Kind: RNumber, NumSub: Float32, F32: f}
}

func NewRVFloat64(f float64) RuntimeValue {
	return RuntimeValue{Kind: RNumber, NumSub: Float64, F64: f}
}

func NewRVObject(o Object) RuntimeValue {
	return RuntimeValue{Kind: RObject, Obj: o}
}

// AsFloat64 widens a numeric RuntimeValue to float64 regardless of subtype.
// Calling it on a non-number is a programming error in the executor that
// reached it; it panics rather than silently returning 0.
func (v RuntimeValue) AsFloat64() float64 {
	switch v.NumSub {
	case Int32:
		return float64(v.I32)
	case Int64:
		return float64(v.I64)
	case Float32:
		return float64(v.F32)
	case Float64:
		return v.F64
	default:
		panic("value: AsFloat64 on non-numeric RuntimeValue")
	}
}

// AsInt64 narrows a numeric RuntimeValue to int64, truncating floats.
func (v RuntimeValue) AsInt64() int64 {
	switch v.NumSub {
	case Int32:
		return int64(v.I32)
	case Int64:
		return v.I64
	case Float32:
		return int64(v.F32)
	case Float64:
		return int64(v.F64)
	default:
		panic("value: AsInt64 on non-numeric RuntimeValue")
	}
}

// Truthy implements Fluence's truthiness rule: nil and false-bool are
// falsy, zero numbers are falsy, empty strings/lists are falsy, everything
// else is truthy.
func (v RuntimeValue) Truthy() bool {
	switch v.Kind {
	case RNil:
		return false
	case RBool:
		return v.Bool
	case RNumber:
		return v.AsFloat64() != 0
	case RObject:
		switch o := v.Obj.(type) {
		case *StringObject:
			return len(o.S) != 0
		case *ListObject:
			return len(o.Elements) != 0
		default:
			return true
		}
	default:
		return false
	}
}

// PromoteNumeric returns the wider of two numeric subtypes:
// int32 < int64 < float32 < float64, and integer division always yields a
// float64 regardless of operand subtypes.
func PromoteNumeric(a, b NumberSubtype) NumberSubtype {
	if a.rank() >= b.rank() {
		return a
	}
	return b
}

// DivisionByZeroError is returned by Div when the divisor is exactly zero,
// matching ferrors.RuntimeError's DivisionByZero subkind at the VM layer
// (constructed there, not here, to keep this package ferrors-independent).
type DivisionByZeroError struct{}

func (DivisionByZeroError) Error() string { return "division by zero" }

// Add, Sub, Mul, Div implement the arithmetic opcodes' numeric promotion.
// They do not check operand types, and neither do their callers in icache
// and vm: a non-numeric operand reaches AsInt64/AsFloat64 directly.

func Add(a, b RuntimeValue) RuntimeValue {
	return arith(a, b, func(x, y float64) float64 { return x + y }, func(x, y int64) int64 { return x + y })
}

func Sub(a, b RuntimeValue) RuntimeValue {
	return arith(a, b, func(x, y float64) float64 { return x - y }, func(x, y int64) int64 { return x - y })
}

func Mul(a, b RuntimeValue) RuntimeValue {
	return arith(a, b, func(x, y float64) float64 { return x * y }, func(x, y int64) int64 { return x * y })
}

// Div always promotes to Float64, per spec: "division of two integers
// yields a double."
func Div(a, b RuntimeValue) (RuntimeValue, error) {
	divisor := b.AsFloat64()
	if divisor == 0 {
		return RuntimeValue{}, DivisionByZeroError{}
	}
	return NewRVFloat64(a.AsFloat64() / divisor), nil
}

// Mod implements the modulo opcode's numeric promotion: integer operands
// stay integral (Go's %), float operands use math.Mod, matching Add/Sub/Mul
// rather than Div's always-promote-to-float64 rule.
func Mod(a, b RuntimeValue) (RuntimeValue, error) {
	sub := PromoteNumeric(a.NumSub, b.NumSub)
	if sub.IsFloat() {
		r := math.Mod(a.AsFloat64(), b.AsFloat64())
		if sub == Float32 {
			return NewRVFloat32(float32(r)), nil
		}
		return NewRVFloat64(r), nil
	}
	divisor := b.AsInt64()
	if divisor == 0 {
		return RuntimeValue{}, DivisionByZeroError{}
	}
	r := a.AsInt64() % divisor
	if sub == Int32 {
		return NewRVInt32(int32(r)), nil
	}
	return NewRVInt64(r), nil
}

// Pow raises a to the power of b via math.Pow, narrowing back to an
// integer subtype when both operands were integral (exponentiation of
// whole numbers is expected to stay whole).
func Pow(a, b RuntimeValue) RuntimeValue {
	r := math.Pow(a.AsFloat64(), b.AsFloat64())
	sub := PromoteNumeric(a.NumSub, b.NumSub)
	switch sub {
	case Float32:
		return NewRVFloat32(float32(r))
	case Float64:
		return NewRVFloat64(r)
	case Int32:
		return NewRVInt32(int32(r))
	default:
		return NewRVInt64(int64(r))
	}
}

func arith(a, b RuntimeValue, ffn func(x, y float64) float64, ifn func(x, y int64) int64) RuntimeValue {
	sub := PromoteNumeric(a.NumSub, b.NumSub)
	if sub.IsFloat() {
		r := ffn(a.AsFloat64(), b.AsFloat64())
		if sub == Float32 {
			return NewRVFloat32(float32(r))
		}
		return NewRVFloat64(r)
	}
	r := ifn(a.AsInt64(), b.AsInt64())
	if sub == Int32 {
		return NewRVInt32(int32(r))
	}
	return NewRVInt64(r)
}

// LessThan, GreaterThan, LessOrEqual, and GreaterOrEqual implement the four
// ordering comparisons directly against Go's own float64 operators rather
// than through a tri-state Compare, so that an unordered operand (NaN)
// makes every one of them false, matching IEEE 754 rather than collapsing
// "equal" and "unordered" into the same bucket.
func LessThan(a, b RuntimeValue) bool { return a.AsFloat64() < b.AsFloat64() }

func GreaterThan(a, b RuntimeValue) bool { return a.AsFloat64() > b.AsFloat64() }

func LessOrEqual(a, b RuntimeValue) bool { return a.AsFloat64() <= b.AsFloat64() }

func GreaterOrEqual(a, b RuntimeValue) bool { return a.AsFloat64() >= b.AsFloat64() }

// Equal implements value equality across kinds: numbers compare by
// promoted value, objects delegate to their own equality (strings and
// chars by content, everything else by identity).
func (v RuntimeValue) Equal(o RuntimeValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case RNil:
		return true
	case RBool:
		return v.Bool == o.Bool
	case RNumber:
		return v.AsFloat64() == o.AsFloat64()
	case RObject:
		return objectsEqual(v.Obj, o.Obj)
	default:
		return false
	}
}

func objectsEqual(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch av := a.(type) {
	case *StringObject:
		bv, ok := b.(*StringObject)
		return ok && av.S == bv.S
	case *CharObject:
		bv, ok := b.(*CharObject)
		return ok && av.C == bv.C
	default:
		return a == b
	}
}

// LiteralToRuntime converts a compile-time literal operand (Number,
// String, Char, Bool, or Nil) into its RuntimeValue, for call sites that
// need to seed runtime storage from a constant initializer without a
// register file to resolve Temp/Variable operands against — a static
// field's default, for instance. Any other Kind returns RVNil.
func LiteralToRuntime(v *Value) RuntimeValue {
	if v == nil {
		return RVNil
	}
	switch v.Kind {
	case KindNumber:
		switch v.NumberLit.Sub {
		case Int32:
			return NewRVInt32(int32(v.NumberLit.I64))
		case Int64:
			return NewRVInt64(v.NumberLit.I64)
		case Float32:
			return NewRVFloat32(float32(v.NumberLit.F64))
		default:
			return NewRVFloat64(v.NumberLit.F64)
		}
	case KindString:
		return NewRVObject(&StringObject{S: v.StringLit})
	case KindChar:
		return NewRVObject(&CharObject{C: v.CharLit})
	case KindBool:
		return Bool2RV(v.BoolLit)
	default:
		return RVNil
	}
}

func (v RuntimeValue) String() string {
	switch v.Kind {
	case RNil:
		return "nil"
	case RBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case RNumber:
		if v.NumSub.IsFloat() {
			f := v.AsFloat64()
			if math.IsInf(f, 0) || math.IsNaN(f) {
				return fmt.Sprintf("%v", f)
			}
			return fmt.Sprintf("%g", f)
		}
		return fmt.Sprintf("%d", v.AsInt64())
	case RObject:
		if v.Obj == nil {
			return "<nil object>"
		}
		return v.Obj.String()
	default:
		return "<invalid>"
	}
}
