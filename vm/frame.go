package vm

import (
	"fmt"

	"github.com/fluence-lang/fluence/ferrors"
	"github.com/fluence-lang/fluence/value"
)

// Frame is one function call's activation record: its local register
// file, which of those registers are by-reference parameters bound to a
// caller's register, which locals are solid (readonly, write-once), and
// the try/catch handlers active within this call.
type Frame struct {
	FunctionName string
	ReturnIP     int
	DestReg      int  // caller register the return value is written to
	DestGlobal   bool
	HasDest      bool // false when the call's result is discarded (statement call)

	Locals   []value.RuntimeValue
	assigned []bool // per-local "has this solid register been written" flag
	solid    []bool // per-local "is this register declared solid" flag

	// RefParams maps a local register index bound by reference to a
	// pointer straight into the caller's storage, so writes here are
	// visible to the caller without copying in and out at every access.
	RefParams map[int]*value.RuntimeValue

	Handlers []TryHandler
}

// TryHandler is one active try/catch/finally region within a frame.
type TryHandler struct {
	CatchAddr      int
	FinallyAddr    int // -1 when absent
	StackDepth     int // operand-stack depth to restore on unwind
	CaughtRegister int // local register the caught error value is written to
}

// NewFrame constructs a frame with localCount registers, with solidMask
// marking which of them are solid (readonly) locals as the compiler's
// symbol table determined at compile time.
func NewFrame(functionName string, localCount int, solidMask []bool) *Frame {
	f := &Frame{
		FunctionName: functionName,
		Locals:       make([]value.RuntimeValue, localCount),
		assigned:     make([]bool, localCount),
		solid:        make([]bool, localCount),
		RefParams:    nil,
	}
	copy(f.solid, solidMask)
	return f
}

// Reset clears a pooled frame for reuse with a new function's shape.
func (f *Frame) Reset(functionName string, localCount int, solidMask []bool) {
	f.FunctionName = functionName
	f.ReturnIP = 0
	f.DestReg = 0
	f.DestGlobal = false
	f.HasDest = false
	if cap(f.Locals) < localCount {
		f.Locals = make([]value.RuntimeValue, localCount)
		f.assigned = make([]bool, localCount)
		f.solid = make([]bool, localCount)
	} else {
		f.Locals = f.Locals[:localCount]
		f.assigned = f.assigned[:localCount]
		f.solid = f.solid[:localCount]
		for i := range f.Locals {
			f.Locals[i] = value.RuntimeValue{}
			f.assigned[i] = false
			f.solid[i] = false
		}
	}
	copy(f.solid, solidMask)
	if f.RefParams != nil {
		for k := range f.RefParams {
			delete(f.RefParams, k)
		}
	}
	f.Handlers = f.Handlers[:0]
}

// BindRef binds local register reg to point at target for the lifetime
// of this call, implementing by-reference parameter passing.
func (f *Frame) BindRef(reg int, target *value.RuntimeValue) {
	if f.RefParams == nil {
		f.RefParams = make(map[int]*value.RuntimeValue)
	}
	f.RefParams[reg] = target
}

// GetLocal implements icache.Registers.
func (f *Frame) GetLocal(reg int) value.RuntimeValue {
	if ref, ok := f.RefParams[reg]; ok {
		return *ref
	}
	return f.Locals[reg]
}

// SetLocalUnchecked implements icache.Registers.
func (f *Frame) SetLocalUnchecked(reg int, v value.RuntimeValue) {
	if ref, ok := f.RefParams[reg]; ok {
		*ref = v
		return
	}
	f.Locals[reg] = v
}

// SetLocal implements icache.Registers: it enforces that a solid local may
// be written exactly once.
func (f *Frame) SetLocal(reg int, v value.RuntimeValue) error {
	if f.solid[reg] {
		if f.assigned[reg] {
			return ferrors.NewRuntimeError(ferrors.ReadonlyViolation,
				fmt.Sprintf("cannot assign to solid local register %d a second time", reg),
				0, f.FunctionName, nil, nil, "", nil)
		}
		f.assigned[reg] = true
	}
	f.SetLocalUnchecked(reg, v)
	return nil
}

// addressOfLocal returns a pointer straight into this frame's storage for
// reg, following an existing ref-binding so that passing an already
// ref-bound parameter along to a further callee still aliases the
// original caller register rather than a copy.
func (f *Frame) addressOfLocal(reg int) *value.RuntimeValue {
	if ref, ok := f.RefParams[reg]; ok {
		return ref
	}
	return &f.Locals[reg]
}

// PushHandler registers a new active try/catch region.
func (f *Frame) PushHandler(h TryHandler) {
	f.Handlers = append(f.Handlers, h)
}

// PopHandler removes and returns the most recently pushed handler, or
// ok=false if none is active.
func (f *Frame) PopHandler() (TryHandler, bool) {
	if len(f.Handlers) == 0 {
		return TryHandler{}, false
	}
	idx := len(f.Handlers) - 1
	h := f.Handlers[idx]
	f.Handlers = f.Handlers[:idx]
	return h, true
}
