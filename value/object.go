package value

import "fmt"

// ObjectKind identifies the concrete heap object behind an RObject
// RuntimeValue.
type ObjectKind uint8

const (
	ObjList ObjectKind = iota
	ObjString
	ObjChar
	ObjRange
	ObjIterator
	ObjClosure
	ObjInstance
	ObjBoundMethod
	ObjRefCell
	ObjUserWrapper
)

// Object is implemented by every heap value an RObject RuntimeValue can
// point to.
type Object interface {
	ObjectKind() ObjectKind
	String() string
}

// FunctionRef is the narrow view a closure/bound-method object needs of a
// function's static shape. symbols.FunctionSymbol implements it; this
// package does not import symbols to avoid a cycle (symbols embeds
// compile-time Values for default parameter expressions).
type FunctionRef interface {
	FunctionName() string
	StartAddress() int
	EndAddress() int
	Arity() int
	IsRefParam(index int) bool
	MaxLocalRegisters() int
}

// ListObject backs Fluence's list/collection value. Elements is reused
// across Get/Put from the list pool (see pool.go) so iteration-heavy code
// doesn't churn the allocator.
type ListObject struct {
	Elements []RuntimeValue
}

func (*ListObject) ObjectKind() ObjectKind { return ObjList }
func (l *ListObject) String() string {
	return fmt.Sprintf("list(len=%d)", len(l.Elements))
}

// StringObject backs string values. Strings are immutable once built.
// icache shapes are keyed on compile-time operand kinds, not on this
// object's identity.
type StringObject struct {
	S string
}

func (*StringObject) ObjectKind() ObjectKind { return ObjString }
func (s *StringObject) String() string       { return s.S }

// CharObject boxes a single rune. Chars are pooled (pool.go) because a
// loop-heavy string-iteration pattern produces one per character
// visited, and this VM is tuned for long-running iteration loops.
type CharObject struct {
	C rune
}

func (*CharObject) ObjectKind() ObjectKind { return ObjChar }
func (c *CharObject) String() string       { return string(c.C) }

// RangeObject backs `start..end` range values and their iteration state.
type RangeObject struct {
	Start int64
	End   int64
}

func (*RangeObject) ObjectKind() ObjectKind { return ObjRange }
func (r *RangeObject) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// IteratorObject is the cursor the Iteration opcode group (NewIterator /
// IterHasNext / IterNext) advances. Direction is +1 or -1 so a range
// counting down iterates without a second opcode family.
type IteratorObject struct {
	Source    Object
	Cursor    int64
	Direction int64
	Done      bool
}

func (*IteratorObject) ObjectKind() ObjectKind { return ObjIterator }
func (it *IteratorObject) String() string {
	return fmt.Sprintf("iterator(cursor=%d done=%v)", it.Cursor, it.Done)
}

// ClosureObject is a function value plus its captured upvalues, produced
// by a Lambda literal or a named function reference taken as a value.
type ClosureObject struct {
	Fn        FunctionRef
	Captured  []RuntimeValue
}

func (*ClosureObject) ObjectKind() ObjectKind { return ObjClosure }
func (c *ClosureObject) String() string {
	return fmt.Sprintf("closure(%s/%d)", c.Fn.FunctionName(), c.Fn.Arity())
}

// InstanceObject backs a struct instance: named fields by value.
type InstanceObject struct {
	TypeName string
	Fields   map[string]RuntimeValue
}

func (*InstanceObject) ObjectKind() ObjectKind { return ObjInstance }
func (i *InstanceObject) String() string {
	return fmt.Sprintf("%s{...}", i.TypeName)
}

// BoundMethodObject pairs a receiver instance with the method it was
// looked up from, so a call through it implicitly binds `self`.
type BoundMethodObject struct {
	Receiver RuntimeValue
	Method   FunctionRef
}

func (*BoundMethodObject) ObjectKind() ObjectKind { return ObjBoundMethod }
func (b *BoundMethodObject) String() string {
	return fmt.Sprintf("bound(%s)", b.Method.FunctionName())
}

// RefCellObject is the object a by-reference parameter binds to: a
// pointer straight into the caller's register slot, so writes in the
// callee are visible to the caller without copying RuntimeValue in and
// out at every access.
type RefCellObject struct {
	Target *RuntimeValue
}

func (*RefCellObject) ObjectKind() ObjectKind { return ObjRefCell }
func (r *RefCellObject) String() string {
	return fmt.Sprintf("ref(%s)", r.Target.String())
}

func (r *RefCellObject) Get() RuntimeValue  { return *r.Target }
func (r *RefCellObject) Set(v RuntimeValue) { *r.Target = v }

// UserWrapperObject wraps an arbitrary host Go value crossing the
// embedding boundary (GetGlobal/SetGlobal, intrinsic library results) that
// doesn't map onto a built-in object kind.
type UserWrapperObject struct {
	Host any
}

func (*UserWrapperObject) ObjectKind() ObjectKind { return ObjUserWrapper }
func (u *UserWrapperObject) String() string {
	return fmt.Sprintf("host(%v)", u.Host)
}
