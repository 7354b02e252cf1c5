package vm

import (
	"io"
	"time"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/ferrors"
	"github.com/fluence-lang/fluence/mangler"
	"github.com/fluence-lang/fluence/symbols"
	"github.com/fluence-lang/fluence/value"
)

// deadlineCheckInterval is how many instructions RunFor executes between
// checks of the wall-clock deadline and the cooperative Stop flag. A
// per-instruction time.Now() call would dominate the interpreter loop's
// cost on tight arithmetic loops, so the check is sampled.
const deadlineCheckInterval = 256

// Machine is one Fluence VM instance: its global register file, call
// stack, instruction pointer, and run-loop state. Per the concurrency
// model, a Machine is used from a single goroutine at a time; only the
// mangler.Global intern pool and the Pools allocator are safe to share
// across concurrently running Machine instances.
type Machine struct {
	Chunk     *bytecode.Chunk
	Functions *symbols.FunctionTable
	Structs   map[string]*symbols.StructSymbol
	Enums     map[string]*symbols.EnumSymbol
	Pools     *Pools

	Globals        []value.RuntimeValue
	globalAssigned []bool
	globalSolid    []bool

	Frames        []*Frame
	IP            int
	Stack         []value.RuntimeValue // operand stack: pending call arguments
	StackOperands []*value.Value       // parallel compile-time operands, for ref-param binding

	maxCallDepth int

	State State
	Err   error

	Output io.Writer

	stopRequested bool
	deadline      time.Time
	hasDeadline   bool

	AllowedIntrinsicLibraries map[string]bool

	topLevelLocalCount int
}

// topLevelFunctionName names the implicit frame backing a program's
// top-level code, the way every other frame is named after its function.
const topLevelFunctionName = "<top-level>"

// NewMachine constructs a Machine ready to run chunk, with globalCount
// global registers (globalSolidMask marking which are solid) and funcs as
// the function symbol table CALL_GLOBAL resolves against. topLevelLocalCount
// sizes the implicit frame backing the program's top-level temps and
// locals, since Temp/local-Variable operands always address a frame's
// register file even outside any declared function.
func NewMachine(chunk *bytecode.Chunk, funcs *symbols.FunctionTable, globalCount int, globalSolidMask []bool, topLevelLocalCount int) *Machine {
	m := &Machine{
		Chunk:                     chunk,
		Functions:                 funcs,
		Structs:                   make(map[string]*symbols.StructSymbol),
		Enums:                     make(map[string]*symbols.EnumSymbol),
		Pools:                     NewPools(),
		Globals:                   make([]value.RuntimeValue, globalCount),
		globalAssigned:            make([]bool, globalCount),
		globalSolid:               make([]bool, globalCount),
		State:                     NotStarted,
		Output:                    io.Discard,
		AllowedIntrinsicLibraries: make(map[string]bool),
		maxCallDepth:              defaultMaxCallDepth,
		topLevelLocalCount:        topLevelLocalCount,
	}
	copy(m.globalSolid, globalSolidMask)
	m.Frames = append(m.Frames, m.Pools.GetFrame(topLevelFunctionName, topLevelLocalCount, nil))
	return m
}

// Reset rewinds the machine to NotStarted with a fresh register file, a
// fresh top-level frame, and an empty call stack beyond it, reusing the
// same chunk and function table.
func (m *Machine) Reset() {
	for i := range m.Globals {
		m.Globals[i] = value.RuntimeValue{}
		m.globalAssigned[i] = false
	}
	m.Frames = m.Frames[:0]
	m.Frames = append(m.Frames, m.Pools.GetFrame(topLevelFunctionName, m.topLevelLocalCount, nil))
	m.Stack = m.Stack[:0]
	m.StackOperands = m.StackOperands[:0]
	m.IP = 0
	m.State = NotStarted
	m.Err = nil
	m.stopRequested = false
	m.hasDeadline = false
}

// Stop requests cooperative cancellation: the run loop observes this at
// its next deadline-check point and returns with State Paused.
func (m *Machine) Stop() {
	m.stopRequested = true
}

func (m *Machine) currentFrame() *Frame {
	if len(m.Frames) == 0 {
		return nil
	}
	return m.Frames[len(m.Frames)-1]
}

// icache.Registers implementation. Local ops delegate to the active
// frame. NewMachine and Reset always install the implicit top-level
// frame, so top-level code has one too; a call with no frame at all is an
// interpreter bug, not a user error, and panics on the nil frame.

func (m *Machine) GetLocal(reg int) value.RuntimeValue {
	return m.currentFrame().GetLocal(reg)
}

func (m *Machine) SetLocalUnchecked(reg int, v value.RuntimeValue) {
	m.currentFrame().SetLocalUnchecked(reg, v)
}

func (m *Machine) SetLocal(reg int, v value.RuntimeValue) error {
	return m.currentFrame().SetLocal(reg, v)
}

func (m *Machine) GetGlobal(reg int) value.RuntimeValue {
	return m.Globals[reg]
}

func (m *Machine) SetGlobalUnchecked(reg int, v value.RuntimeValue) {
	m.Globals[reg] = v
}

func (m *Machine) SetGlobal(reg int, v value.RuntimeValue) error {
	if m.globalSolid[reg] {
		if m.globalAssigned[reg] {
			return ferrors.NewRuntimeError(ferrors.ReadonlyViolation,
				"cannot assign to solid global register a second time", m.IP, m.currentFunctionName(), nil, nil, "", m.trace())
		}
		m.globalAssigned[reg] = true
	}
	m.Globals[reg] = v
	return nil
}

func (m *Machine) currentFunctionName() string {
	if f := m.currentFrame(); f != nil {
		return f.FunctionName
	}
	return "<top-level>"
}

// RegisterStruct makes s's fields and methods resolvable to NEW_INSTANCE,
// GET_PROPERTY, and CALL_METHOD.
func (m *Machine) RegisterStruct(s *symbols.StructSymbol) {
	m.Structs[s.Name] = s
}

// RegisterEnum makes e's cases resolvable to GET_ENUM_CASE.
func (m *Machine) RegisterEnum(e *symbols.EnumSymbol) {
	m.Enums[e.Name] = e
}

// GetGlobalByMangledFunction resolves a function by its mangled name
// through Functions. CALL_GLOBAL does not go through it: its callee
// operand carries the FunctionLiteral directly.
func (m *Machine) GetGlobalByMangledFunction(mangledName string) (*symbols.FunctionSymbol, bool) {
	return m.Functions.Lookup(mangledName)
}

// DemangledFunctionName demangles name for display in errors and traces.
func DemangledFunctionName(mangled string) string {
	name, arity, ok := mangler.Demangle(mangled)
	if !ok {
		return mangled
	}
	return name + "/" + itoa(arity)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (m *Machine) trace() []ferrors.StackFrame {
	frames := make([]ferrors.StackFrame, 0, len(m.Frames))
	for i := len(m.Frames) - 1; i >= 0; i-- {
		frames = append(frames, ferrors.StackFrame{FunctionName: m.Frames[i].FunctionName, IP: m.Frames[i].ReturnIP})
	}
	return frames
}

// RunUntilDone executes instructions until the chunk finishes, the
// program halts, an unhandled error occurs, or Stop is called.
func (m *Machine) RunUntilDone() error {
	return m.run(nil)
}

// RunFor executes instructions until budget elapses, then returns with
// State Paused so a host can resume with another RunFor/RunUntilDone
// call. It checks the deadline and the cooperative Stop flag every
// deadlineCheckInterval instructions rather than every single one.
func (m *Machine) RunFor(budget time.Duration) error {
	deadline := time.Now().Add(budget)
	return m.run(&deadline)
}

func (m *Machine) run(deadline *time.Time) error {
	if m.State == NotStarted {
		m.State = Running
	} else if m.State == Finished || m.State == Error {
		return nil
	} else {
		m.State = Running
	}
	m.stopRequested = false

	sinceCheck := 0
	for m.IP < len(m.Chunk.Instructions) {
		if err := m.step(); err != nil {
			if halt, ok := err.(haltSignal); ok {
				m.State = Finished
				_ = halt
				return nil
			}
			m.State = Error
			m.Err = err
			return err
		}
		sinceCheck++
		if sinceCheck >= deadlineCheckInterval {
			sinceCheck = 0
			if m.stopRequested {
				m.State = Paused
				return nil
			}
			if deadline != nil && time.Now().After(*deadline) {
				m.State = Paused
				return nil
			}
		}
	}
	m.State = Finished
	return nil
}

// haltSignal is a control-flow sentinel: HALT is not an error, but the
// simplest way to unwind run()'s loop from deep inside step() is the same
// error-return channel everything else uses.
type haltSignal struct{}

func (haltSignal) Error() string { return "halt" }
