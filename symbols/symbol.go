// Package symbols implements Fluence's compile-time symbol table: lexical
// scopes, register allocation, and the function/struct/enum descriptors a
// compiler front end hands to the optimizer and VM.
package symbols

import (
	"github.com/fluence-lang/fluence/mangler"
	"github.com/fluence-lang/fluence/value"
)

// VariableSymbol describes one declared variable's resolved storage.
type VariableSymbol struct {
	Name     string
	Register int
	IsGlobal bool
	Solid    bool // readonly: writable exactly once, at declaration
	Assigned bool
}

// AssignOnce records the symbol's one allowed write for a Solid variable.
// It reports false if called twice, which the compiler/VM surfaces as a
// ReadonlyViolation.
func (v *VariableSymbol) AssignOnce() bool {
	if v.Solid && v.Assigned {
		return false
	}
	v.Assigned = true
	return true
}

// ParameterSymbol describes one formal parameter.
type ParameterSymbol struct {
	Name       string
	Register   int
	IsRef      bool
	HasDefault bool
	Default    *value.Value
}

// FunctionSymbol describes a function's static shape: its mangled and
// display names, parameter list, and its instruction address range once
// the compiler has laid it out. It implements value.FunctionRef so
// runtime closures and bound methods can reference it without this
// package depending on the value package's runtime half (it already
// depends on value for default-parameter literals; the dependency is
// one-directional, value never imports symbols).
type FunctionSymbol struct {
	Name       string
	Mangled    string
	ArityCount int
	Params     []*ParameterSymbol
	StartAddr  int
	EndAddr    int
	IsMethod   bool
	IsStatic   bool   // bound via CallStatic, not CallMethod: no implicit receiver in register 0
	ReceiverOf string // owning struct name, when IsMethod or IsStatic
	MaxLocals  int    // highest local register index + 1
}

func NewFunctionSymbol(name string, params []*ParameterSymbol) *FunctionSymbol {
	return &FunctionSymbol{
		Name:       name,
		Mangled:    mangler.Mangle(name, len(params)),
		ArityCount: len(params),
		Params:     params,
	}
}

func (f *FunctionSymbol) FunctionName() string { return f.Name }
func (f *FunctionSymbol) StartAddress() int    { return f.StartAddr }
func (f *FunctionSymbol) EndAddress() int      { return f.EndAddr }
func (f *FunctionSymbol) Arity() int           { return f.ArityCount }

func (f *FunctionSymbol) IsRefParam(index int) bool {
	if index < 0 || index >= len(f.Params) {
		return false
	}
	return f.Params[index].IsRef
}

func (f *FunctionSymbol) MaxLocalRegisters() int { return f.MaxLocals }

// FieldSymbol describes one struct field.
type FieldSymbol struct {
	Name    string
	Default *value.Value
}

// StaticFieldSymbol describes one struct-level static field: a single
// value.RuntimeValue slot shared by every instance and every access site,
// as opposed to a FieldSymbol's per-InstanceObject storage. Value holds
// the live storage directly on the symbol, since a struct declaration
// (unlike an instance) exists exactly once per compiled program.
type StaticFieldSymbol struct {
	Name    string
	Default *value.Value
	Value   value.RuntimeValue
	seeded  bool
}

// StructSymbol describes a struct type declaration: its fields, bound
// methods, and static members.
type StructSymbol struct {
	Name          string
	Fields        []*FieldSymbol
	Methods       map[string]*FunctionSymbol      // mangled name -> method
	StaticFields  map[string]*StaticFieldSymbol   // name -> static field
	StaticMethods map[string]*FunctionSymbol      // mangled name -> static method
}

func NewStructSymbol(name string) *StructSymbol {
	return &StructSymbol{
		Name:          name,
		Methods:       make(map[string]*FunctionSymbol),
		StaticFields:  make(map[string]*StaticFieldSymbol),
		StaticMethods: make(map[string]*FunctionSymbol),
	}
}

func (s *StructSymbol) AddMethod(fn *FunctionSymbol) {
	fn.IsMethod = true
	fn.ReceiverOf = s.Name
	s.Methods[fn.Mangled] = fn
}

func (s *StructSymbol) LookupMethod(name string, arity int) (*FunctionSymbol, bool) {
	fn, ok := s.Methods[mangler.Mangle(name, arity)]
	return fn, ok
}

// AddStaticField declares a static field named name with default as its
// compile-time initializer (nil for a nil-valued default). The runtime
// slot is seeded from the default lazily, on first GetStatic/SetStatic
// access, via StaticFieldSymbol.ensureSeeded.
func (s *StructSymbol) AddStaticField(name string, def *value.Value) *StaticFieldSymbol {
	f := &StaticFieldSymbol{Name: name, Default: def}
	s.StaticFields[name] = f
	return f
}

// ensureSeeded initializes f.Value from its compile-time default the
// first time it's touched, since the struct symbol itself (not any
// per-run Machine) owns static storage and must seed it exactly once
// across the symbol's lifetime, not once per run.
func (f *StaticFieldSymbol) ensureSeeded() {
	if f.seeded {
		return
	}
	f.seeded = true
	f.Value = value.LiteralToRuntime(f.Default)
}

// Get returns the field's current runtime value, seeding it from its
// default on first access.
func (f *StaticFieldSymbol) Get() value.RuntimeValue {
	f.ensureSeeded()
	return f.Value
}

// Set overwrites the field's runtime value.
func (f *StaticFieldSymbol) Set(v value.RuntimeValue) {
	f.seeded = true
	f.Value = v
}

// AddStaticMethod declares fn as a static method: IsStatic is set and no
// implicit receiver is ever bound into register 0 for it.
func (s *StructSymbol) AddStaticMethod(fn *FunctionSymbol) {
	fn.IsStatic = true
	fn.ReceiverOf = s.Name
	s.StaticMethods[fn.Mangled] = fn
}

func (s *StructSymbol) LookupStaticMethod(name string, arity int) (*FunctionSymbol, bool) {
	fn, ok := s.StaticMethods[mangler.Mangle(name, arity)]
	return fn, ok
}

// EnumCase describes one case of an enum declaration.
type EnumCase struct {
	Name  string
	Value *value.Value // nil for a unit case with no backing value
}

// EnumSymbol describes an enum type declaration.
type EnumSymbol struct {
	Name  string
	Cases []*EnumCase
}

func NewEnumSymbol(name string) *EnumSymbol {
	return &EnumSymbol{Name: name}
}

func (e *EnumSymbol) LookupCase(name string) (*EnumCase, bool) {
	for _, c := range e.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
