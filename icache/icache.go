// Package icache implements Fluence's specialized-handler inline cache:
// on first execution of a specializable instruction, the VM
// builds a Handler bound to the concrete operand shapes it observed —
// Temp vs. Variable(global/local) destination, Temp/local/global/constant
// sources — and caches it on the instruction so every later execution
// skips the Kind switch entirely. A shape change on a later execution
// invalidates the cache and forces a rebuild.
package icache

import (
	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/value"
)

// Registers is the narrow view of a call frame's and the machine's
// register storage a Handler needs. vm.Frame and vm.Machine together
// implement it; this package does not import vm to avoid a cycle (vm
// imports icache to build and invoke handlers).
//
// SetLocal/SetGlobal always perform the readonly (solid-variable) check.
// SetLocalUnchecked/SetGlobalUnchecked skip it — a Handler may only call
// the unchecked variant when it was built against a destination that is
// statically a Temp, or a Variable provably not solid; every other
// destination shape must go through the checked setter, matching the
// specification's rule that specialization may never bypass readonly
// enforcement.
type Registers interface {
	GetLocal(reg int) value.RuntimeValue
	SetLocal(reg int, v value.RuntimeValue) error
	SetLocalUnchecked(reg int, v value.RuntimeValue)

	GetGlobal(reg int) value.RuntimeValue
	SetGlobal(reg int, v value.RuntimeValue) error
	SetGlobalUnchecked(reg int, v value.RuntimeValue)
}

// Shape records which operand-kind combination a Handler was specialized
// for, so the builder can detect, on a later execution, whether the same
// instruction's operands now have different kinds than the handler was
// built for (possible only if the instruction's operands were rewritten
// after the handler was cached) and must be rebuilt.
type Shape struct {
	DestKind   value.Kind
	DestGlobal bool
	LhsKind    value.Kind
	RhsKind    value.Kind
}

func shapeOf(dest, lhs, rhs *value.Value) Shape {
	s := Shape{}
	if dest != nil {
		s.DestKind = dest.Kind
		if dest.Kind == value.KindVariable {
			s.DestGlobal = dest.Variable.IsGlobal
		}
	}
	if lhs != nil {
		s.LhsKind = lhs.Kind
	}
	if rhs != nil {
		s.RhsKind = rhs.Kind
	}
	return s
}

// Handler is a specialized executor bound to one instruction's observed
// operand shape. Exec performs the whole operation for self-contained
// opcodes (arithmetic, comparison-branch, element access, iterator
// advance). Call-family opcodes need the VM's call stack to actually
// invoke the callee, so for those Exec is nil and WriteResult holds only
// the specialized destination-register write, which the VM invokes once
// the call returns.
type Handler struct {
	Shape       Shape
	Exec        func(regs Registers) error
	WriteResult func(regs Registers, result value.RuntimeValue) error
}

// Build constructs (or rebuilds) the handler for line and caches it.
// Build is the single entry point the VM calls for every specializable
// opcode; it dispatches to the opcode-family builder and stores the
// result on line.Cache.
func Build(line *bytecode.InstructionLine) (*Handler, error) {
	var h *Handler
	var err error
	switch {
	case isArithmetic(line.Op):
		h, err = buildArithmetic(line)
	case line.Op.IsComparisonBranch():
		h, err = buildComparisonBranch(line)
	case line.Op == bytecode.OpGetElement || line.Op == bytecode.OpSetElement:
		h, err = buildElementAccess(line)
	case line.Op == bytecode.OpIterNext:
		h, err = buildIterNext(line)
	case line.Op == bytecode.OpCallGlobal:
		h, err = buildCallGlobal(line)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	line.Cache = h
	return h, nil
}

// Lookup returns the handler cached on line, rebuilding it if absent or if
// the instruction's current operands no longer match the cached shape.
func Lookup(line *bytecode.InstructionLine) (*Handler, error) {
	if cached, ok := line.Cache.(*Handler); ok {
		if cached.Shape == currentShape(line) {
			return cached, nil
		}
	}
	return Build(line)
}

func currentShape(line *bytecode.InstructionLine) Shape {
	switch {
	case isArithmetic(line.Op):
		return shapeOf(line.Lhs, line.Rhs, line.Rhs2)
	case line.Op.IsComparisonBranch():
		return shapeOf(nil, line.Rhs, line.Rhs2)
	case line.Op == bytecode.OpGetElement || line.Op == bytecode.OpSetElement:
		return shapeOf(line.Lhs, line.Rhs, line.Rhs2)
	case line.Op == bytecode.OpIterNext:
		return shapeOf(line.Lhs, line.Rhs, nil)
	case line.Op == bytecode.OpCallGlobal:
		return shapeOf(line.Lhs, nil, nil)
	default:
		return Shape{}
	}
}

func isArithmetic(op bytecode.Opcode) bool {
	switch op {
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow:
		return true
	default:
		return false
	}
}

// destIsSafeForUnchecked reports whether dest is statically provable to
// never need the readonly check: a Temp (compiler-generated, never
// solid), or a Variable the compiler has already marked non-solid.
func destIsSafeForUnchecked(dest *value.Value) bool {
	if dest == nil {
		return true
	}
	switch dest.Kind {
	case value.KindTemp:
		return true
	case value.KindVariable:
		return !dest.Variable.Solid
	default:
		return false
	}
}
