package vm

import "github.com/fluence-lang/fluence/value"

// readValue evaluates operand against the machine's current register
// state. It mirrors icache's per-Kind reader but dispatches on the
// operand's Kind on every call rather than being cached; it backs the
// generic (non-specialized) opcode paths.
func (m *Machine) readValue(operand *value.Value) value.RuntimeValue {
	if operand == nil {
		return value.RVNil
	}
	switch operand.Kind {
	case value.KindNumber, value.KindString, value.KindChar, value.KindBool, value.KindNil:
		return value.LiteralToRuntime(operand)
	case value.KindTemp:
		return m.GetLocal(operand.Temp.Register)
	case value.KindVariable:
		if operand.Variable.IsGlobal {
			return m.GetGlobal(operand.Variable.Register)
		}
		return m.GetLocal(operand.Variable.Register)
	default:
		return value.RVNil
	}
}

// writeValue stores v into dest, enforcing the solid-register check unless
// dest is statically a Temp (always safe) or a known non-solid Variable.
func (m *Machine) writeValue(dest *value.Value, v value.RuntimeValue) error {
	if dest == nil {
		return nil
	}
	switch dest.Kind {
	case value.KindTemp:
		m.SetLocalUnchecked(dest.Temp.Register, v)
		return nil
	case value.KindVariable:
		reg := dest.Variable.Register
		if dest.Variable.IsGlobal {
			if !dest.Variable.Solid {
				m.SetGlobalUnchecked(reg, v)
				return nil
			}
			return m.SetGlobal(reg, v)
		}
		if !dest.Variable.Solid {
			m.SetLocalUnchecked(reg, v)
			return nil
		}
		return m.SetLocal(reg, v)
	default:
		return nil
	}
}

// writeUnchecked stores v into dest without ever performing the solid
// (readonly) check, even when dest is statically a solid Variable. Only
// INCR_UNRESTRICTED's loop-counter fast path may call this: the front end
// that emits it is responsible for the invariant that dest is genuinely
// safe to bypass, the same contract the specification's builder constraint
// places on a specialized handler.
func (m *Machine) writeUnchecked(dest *value.Value, v value.RuntimeValue) {
	if dest == nil {
		return
	}
	switch dest.Kind {
	case value.KindTemp:
		m.SetLocalUnchecked(dest.Temp.Register, v)
	case value.KindVariable:
		if dest.Variable.IsGlobal {
			m.SetGlobalUnchecked(dest.Variable.Register, v)
		} else {
			m.SetLocalUnchecked(dest.Variable.Register, v)
		}
	}
}

// addressOf returns a pointer straight into the register backing operand,
// for by-reference parameter binding. Only Temp and Variable operands are
// addressable; anything else (a literal, a nested expression result) is
// not, and the caller must reject the ref-bind with a clear error rather
// than silently passing by value.
func (m *Machine) addressOf(operand *value.Value) *value.RuntimeValue {
	if operand == nil {
		return nil
	}
	frame := m.currentFrame()
	switch operand.Kind {
	case value.KindTemp:
		if frame == nil {
			return nil
		}
		return frame.addressOfLocal(operand.Temp.Register)
	case value.KindVariable:
		if operand.Variable.IsGlobal {
			return &m.Globals[operand.Variable.Register]
		}
		if frame == nil {
			return nil
		}
		return frame.addressOfLocal(operand.Variable.Register)
	default:
		return nil
	}
}
