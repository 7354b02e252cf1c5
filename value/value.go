// Package value implements Fluence's two value representations: the
// compile-time Value, a tagged variant embedded inside instructions by the
// front end, and the runtime RuntimeValue, the compact tagged union the VM
// manipulates on the register file. See runtime.go and object.go for the
// latter.
package value

import (
	"fmt"
	"strconv"
)

// Kind identifies which variant a compile-time Value holds.
type Kind uint8

const (
	KindNumber Kind = iota
	KindString
	KindChar
	KindBool
	KindNil
	KindTemp
	KindVariable
	KindFunction
	KindLambda
	KindRange
	KindList
	KindTryCatch
	KindPropertyAccess
	KindElementAccess
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindChar:
		return "Char"
	case KindBool:
		return "Bool"
	case KindNil:
		return "Nil"
	case KindTemp:
		return "Temp"
	case KindVariable:
		return "Variable"
	case KindFunction:
		return "Function"
	case KindLambda:
		return "Lambda"
	case KindRange:
		return "Range"
	case KindList:
		return "List"
	case KindTryCatch:
		return "TryCatch"
	case KindPropertyAccess:
		return "PropertyAccess"
	case KindElementAccess:
		return "ElementAccess"
	default:
		return "Unknown"
	}
}

// NumberLiteral is the payload of a compile-time KindNumber value. It keeps
// the subtype the front end parsed so that folding (optimizer pass 2) and
// specialization (icache) can make promotion decisions without
// re-inspecting source text.
type NumberLiteral struct {
	Sub NumberSubtype
	I64 int64
	F64 float64
}

// TempRef identifies a compiler-generated temporary register.
type TempRef struct {
	ID       uint64
	Register int
}

// VariableRef identifies a named variable's resolved storage slot.
type VariableRef struct {
	Name       string
	Register   int
	IsGlobal   bool
	Solid      bool // readonly: assignable exactly once, at declaration
	Assigned   bool // true once the single allowed write has happened
}

// RangeLiteral describes a `start..end` range expression.
type RangeLiteral struct {
	Start *Value
	End   *Value
}

// ListLiteral describes a list literal's element expressions.
type ListLiteral struct {
	Elements []*Value
}

// TryCatchLiteral carries the two absolute addresses a TryBlock/CatchBlock
// instruction pair needs: where the catch handler begins and where a
// finally section (if any) begins. FinallyAddr is -1 when absent.
type TryCatchLiteral struct {
	CatchAddr   int
	FinallyAddr int
}

// PropertyAccessRef describes `target.field`.
type PropertyAccessRef struct {
	Target *Value
	Field  string
}

// ElementAccessRef describes `target[index]`.
type ElementAccessRef struct {
	Target *Value
	Index  *Value
}

// FunctionLiteral describes a function's static shape: its body's address
// range, declared parameters, and which parameters are bound by reference.
type FunctionLiteral struct {
	Name       string
	StartAddr  int
	EndAddr    int
	Arity      int
	Params     []string
	RefParams  map[string]bool
	MaxLocals  int // highest local register index + 1, for call-time frame sizing
}

// LambdaLiteral wraps a FunctionLiteral for an anonymous function value.
type LambdaLiteral struct {
	Function *FunctionLiteral
}

// Value is the compile-time tagged variant embedded in instruction operand
// slots. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind

	NumberLit NumberLiteral
	StringLit string
	CharLit   rune
	BoolLit   bool

	Temp     TempRef
	Variable VariableRef

	Range    *RangeLiteral
	List     *ListLiteral
	TryCatch *TryCatchLiteral
	Property *PropertyAccessRef
	Element  *ElementAccessRef
	Function *FunctionLiteral
	Lambda   *LambdaLiteral
}

// Constructors.

func NewInt32(i int32) *Value {
	return &Value{Kind: KindNumber, NumberLit: NumberLiteral{Sub: Int32, I64: int64(i)}}
}

func NewInt64(i int64) *Value {
	return &Value{Kind: KindNumber, NumberLit: NumberLiteral{Sub: Int64, I64: i}}
}

func NewFloat32(f float32) *Value {
	return &Value{Kind: KindNumber, NumberLit: NumberLiteral{Sub: Float32, F64: float64(f)}}
}

func NewFloat64(f float64) *Value {
	return &Value{Kind: KindNumber, NumberLit: NumberLiteral{Sub: Float64, F64: f}}
}

func NewString(s string) *Value {
	return &Value{Kind: KindString, StringLit: s}
}

func NewChar(c rune) *Value {
	return &Value{Kind: KindChar, CharLit: c}
}

func NewBool(b bool) *Value {
	return &Value{Kind: KindBool, BoolLit: b}
}

func NewNil() *Value {
	return &Value{Kind: KindNil}
}

func NewTemp(id uint64, register int) *Value {
	return &Value{Kind: KindTemp, Temp: TempRef{ID: id, Register: register}}
}

func NewVariable(name string, register int, isGlobal, solid bool) *Value {
	return &Value{Kind: KindVariable, Variable: VariableRef{
		Name: name, Register: register, IsGlobal: isGlobal, Solid: solid,
	}}
}

func NewFunction(fn *FunctionLiteral) *Value {
	return &Value{Kind: KindFunction, Function: fn}
}

func NewLambda(fn *FunctionLiteral) *Value {
	return &Value{Kind: KindLambda, Lambda: &LambdaLiteral{Function: fn}}
}

func NewRange(start, end *Value) *Value {
	return &Value{Kind: KindRange, Range: &RangeLiteral{Start: start, End: end}}
}

func NewList(elements []*Value) *Value {
	return &Value{Kind: KindList, List: &ListLiteral{Elements: elements}}
}

func NewTryCatch(catchAddr, finallyAddr int) *Value {
	return &Value{Kind: KindTryCatch, TryCatch: &TryCatchLiteral{CatchAddr: catchAddr, FinallyAddr: finallyAddr}}
}

func NewPropertyAccess(target *Value, field string) *Value {
	return &Value{Kind: KindPropertyAccess, Property: &PropertyAccessRef{Target: target, Field: field}}
}

func NewElementAccess(target, index *Value) *Value {
	return &Value{Kind: KindElementAccess, Element: &ElementAccessRef{Target: target, Index: index}}
}

// IsLiteralConstant reports whether v is one of the literal kinds the
// optimizer's constant-folding pass may substitute in place of a
// single-assignment temp.
func (v *Value) IsLiteralConstant() bool {
	switch v.Kind {
	case KindNumber, KindString, KindChar, KindBool, KindNil:
		return true
	default:
		return false
	}
}

// ByteCodeString renders v the way the bytecode dumper expects operand
// columns to read: a short, unambiguous, debug-only representation.
func (v *Value) ByteCodeString() string {
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case KindNumber:
		switch v.NumberLit.Sub {
		case Int32, Int64:
			return strconv.FormatInt(v.NumberLit.I64, 10)
		default:
			return strconv.FormatFloat(v.NumberLit.F64, 'g', -1, 64)
		}
	case KindString:
		return strconv.Quote(v.StringLit)
	case KindChar:
		return "'" + string(v.CharLit) + "'"
	case KindBool:
		if v.BoolLit {
			return "true"
		}
		return "false"
	case KindNil:
		return "nil"
	case KindTemp:
		return fmt.Sprintf("T%d@r%d", v.Temp.ID, v.Temp.Register)
	case KindVariable:
		scope := "local"
		if v.Variable.IsGlobal {
			scope = "global"
		}
		return fmt.Sprintf("%s(%s)@r%d", v.Variable.Name, scope, v.Variable.Register)
	case KindFunction:
		return fmt.Sprintf("fn %s[%d:%d]/%d", v.Function.Name, v.Function.StartAddr, v.Function.EndAddr, v.Function.Arity)
	case KindLambda:
		return fmt.Sprintf("lambda[%d:%d]/%d", v.Lambda.Function.StartAddr, v.Lambda.Function.EndAddr, v.Lambda.Function.Arity)
	case KindRange:
		return fmt.Sprintf("%s..%s", v.Range.Start.ByteCodeString(), v.Range.End.ByteCodeString())
	case KindList:
		return fmt.Sprintf("list[%d]", len(v.List.Elements))
	case KindTryCatch:
		return fmt.Sprintf("try->catch@%d,finally@%d", v.TryCatch.CatchAddr, v.TryCatch.FinallyAddr)
	case KindPropertyAccess:
		return fmt.Sprintf("%s.%s", v.Property.Target.ByteCodeString(), v.Property.Field)
	case KindElementAccess:
		return fmt.Sprintf("%s[%s]", v.Element.Target.ByteCodeString(), v.Element.Index.ByteCodeString())
	default:
		return "?"
	}
}

func (v *Value) String() string {
	return v.ByteCodeString()
}
