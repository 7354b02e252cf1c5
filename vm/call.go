package vm

import (
	"fmt"

	"github.com/fluence-lang/fluence/ferrors"
	"github.com/fluence-lang/fluence/value"
)

// defaultMaxCallDepth bounds recursion so a runaway recursive function
// surfaces as ferrors.StackOverflow instead of exhausting the host
// process's own goroutine stack.
const defaultMaxCallDepth = 4096

// funcLiteralRef adapts a compile-time FunctionLiteral (the operand a
// direct CALL_GLOBAL names) to value.FunctionRef, so call dispatch can
// treat a statically known call target and a closure/bound-method value
// the same way.
type funcLiteralRef struct {
	lit *value.FunctionLiteral
}

func (r funcLiteralRef) FunctionName() string { return r.lit.Name }
func (r funcLiteralRef) StartAddress() int    { return r.lit.StartAddr }
func (r funcLiteralRef) EndAddress() int      { return r.lit.EndAddr }
func (r funcLiteralRef) Arity() int           { return r.lit.Arity }
func (r funcLiteralRef) MaxLocalRegisters() int {
	if r.lit.MaxLocals > r.lit.Arity {
		return r.lit.MaxLocals
	}
	return r.lit.Arity
}
func (r funcLiteralRef) IsRefParam(index int) bool {
	if index < 0 || index >= len(r.lit.Params) {
		return false
	}
	return r.lit.RefParams[r.lit.Params[index]]
}

// pushParam appends one evaluated argument (and, for ref-binding, the
// compile-time operand it came from) to the pending-call operand stack.
func (m *Machine) pushParam(operand *value.Value) {
	m.Stack = append(m.Stack, m.readValue(operand))
	m.StackOperands = append(m.StackOperands, operand)
}

// resolveCallTarget extracts a value.FunctionRef from a CALL-family
// instruction's callee operand: a direct FunctionLiteral (CALL_GLOBAL), or
// a closure/bound-method object (CALL_LAMBDA, CALL_METHOD).
func (m *Machine) resolveCallTarget(calleeOperand *value.Value) (value.FunctionRef, value.RuntimeValue, error) {
	if calleeOperand != nil && calleeOperand.Kind == value.KindFunction {
		return funcLiteralRef{lit: calleeOperand.Function}, value.RVNil, nil
	}
	callee := m.readValue(calleeOperand)
	if callee.Kind != value.RObject {
		return nil, value.RuntimeValue{}, ferrors.NewRuntimeError(ferrors.TypeMismatch,
			"call target is not callable", m.IP, m.currentFunctionName(), nil, nil, "", m.trace())
	}
	switch obj := callee.Obj.(type) {
	case *value.ClosureObject:
		return obj.Fn, callee, nil
	case *value.BoundMethodObject:
		return obj.Method, obj.Receiver, nil
	default:
		return nil, value.RuntimeValue{}, ferrors.NewRuntimeError(ferrors.TypeMismatch,
			"call target is not callable", m.IP, m.currentFunctionName(), nil, nil, "", m.trace())
	}
}

// doCall pops ref.Arity() pending arguments off the operand stack, pushes
// a new frame bound to them, and transfers control to ref.StartAddress().
// destOperand/destGlobal record where the eventual RETURN/RETURN_VALUE
// should deliver the result; receiver, if not RVNil, is bound into local
// register 0 ahead of the declared parameters (method `self`).
func (m *Machine) doCall(ref value.FunctionRef, receiver value.RuntimeValue, destOperand *value.Value) error {
	arity := ref.Arity()
	if len(m.Stack) < arity {
		return ferrors.NewRuntimeError(ferrors.ArityMismatch,
			fmt.Sprintf("%s expects %d argument(s), got %d", ref.FunctionName(), arity, len(m.Stack)),
			m.IP, m.currentFunctionName(), nil, nil, "", m.trace())
	}
	if len(m.Frames) >= m.maxCallDepth {
		return ferrors.NewRuntimeError(ferrors.StackOverflow,
			fmt.Sprintf("call depth exceeded %d", m.maxCallDepth), m.IP, m.currentFunctionName(), nil, nil, "", m.trace())
	}

	argStart := len(m.Stack) - arity
	args := append([]value.RuntimeValue(nil), m.Stack[argStart:]...)
	argOperands := append([]*value.Value(nil), m.StackOperands[argStart:]...)
	m.Stack = m.Stack[:argStart]
	m.StackOperands = m.StackOperands[:argStart]

	localCount := ref.MaxLocalRegisters()
	if localCount < arity {
		localCount = arity
	}
	frame := m.Pools.GetFrame(ref.FunctionName(), localCount, nil)
	frame.ReturnIP = m.IP + 1
	if destOperand != nil {
		frame.DestReg, frame.DestGlobal = destRegister(destOperand)
		frame.HasDest = true
	}

	offset := 0
	if receiver.Kind != value.RNil || receiver.Obj != nil {
		frame.Locals[0] = receiver
		offset = 1
	}
	for i, arg := range args {
		reg := i + offset
		if reg >= len(frame.Locals) {
			break
		}
		if ref.IsRefParam(i) {
			target := m.addressOf(argOperands[i])
			if target == nil {
				m.Pools.PutFrame(frame)
				return ferrors.NewRuntimeError(ferrors.TypeMismatch,
					fmt.Sprintf("%s: by-reference argument %d is not an addressable register", ref.FunctionName(), i),
					m.IP, m.currentFunctionName(), nil, nil, "", m.trace())
			}
			frame.BindRef(reg, target)
			continue
		}
		frame.Locals[reg] = arg
	}

	m.Frames = append(m.Frames, frame)
	m.IP = ref.StartAddress()
	return nil
}

func destRegister(dest *value.Value) (reg int, isGlobal bool) {
	switch dest.Kind {
	case value.KindTemp:
		return dest.Temp.Register, false
	case value.KindVariable:
		return dest.Variable.Register, dest.Variable.IsGlobal
	default:
		return 0, false
	}
}

// doReturn pops the active frame, delivers returnValue to the caller's
// destination register (if any), and resumes execution at the saved
// return address. Returning from the outermost frame halts the program.
func (m *Machine) doReturn(returnValue value.RuntimeValue, hasValue bool) error {
	if len(m.Frames) == 0 {
		return haltSignal{}
	}
	frame := m.Frames[len(m.Frames)-1]
	m.Frames = m.Frames[:len(m.Frames)-1]
	returnIP := frame.ReturnIP
	destReg, destGlobal, hasDest := frame.DestReg, frame.DestGlobal, frame.HasDest
	m.Pools.PutFrame(frame)

	if hasValue && hasDest {
		if destGlobal {
			if err := m.SetGlobal(destReg, returnValue); err != nil {
				return err
			}
		} else if len(m.Frames) > 0 {
			m.Frames[len(m.Frames)-1].SetLocalUnchecked(destReg, returnValue)
		}
	}

	if len(m.Frames) == 0 {
		m.State = Finished
		return haltSignal{}
	}
	m.IP = returnIP
	return errContinueAfterReturn{}
}

// errContinueAfterReturn is a control-flow sentinel meaning "IP has
// already been set by the return/call handler; step() must not advance it
// again." It is not a real failure and is swallowed inside step by
// afterControlTransfer, never propagated to RunUntilDone's result.
type errContinueAfterReturn struct{}

func (errContinueAfterReturn) Error() string { return "vm: continue after return" }

var _ error = errContinueAfterReturn{}
