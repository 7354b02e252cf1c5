package icache

import "github.com/fluence-lang/fluence/value"

// reader returns a closure that fetches v's current value with no Kind
// switch at call time: the switch happens once, here, at build time.
func reader(v *value.Value) func(Registers) value.RuntimeValue {
	if v == nil {
		return func(Registers) value.RuntimeValue { return value.RVNil }
	}
	switch v.Kind {
	case value.KindNumber:
		lit := literalRuntimeValue(v)
		return func(Registers) value.RuntimeValue { return lit }
	case value.KindString:
		lit := value.NewRVObject(&value.StringObject{S: v.StringLit})
		return func(Registers) value.RuntimeValue { return lit }
	case value.KindChar:
		lit := value.NewRVObject(&value.CharObject{C: v.CharLit})
		return func(Registers) value.RuntimeValue { return lit }
	case value.KindBool:
		lit := value.Bool2RV(v.BoolLit)
		return func(Registers) value.RuntimeValue { return lit }
	case value.KindNil:
		return func(Registers) value.RuntimeValue { return value.RVNil }
	case value.KindTemp:
		reg := v.Temp.Register
		return func(regs Registers) value.RuntimeValue { return regs.GetLocal(reg) }
	case value.KindVariable:
		reg := v.Variable.Register
		if v.Variable.IsGlobal {
			return func(regs Registers) value.RuntimeValue { return regs.GetGlobal(reg) }
		}
		return func(regs Registers) value.RuntimeValue { return regs.GetLocal(reg) }
	default:
		return func(Registers) value.RuntimeValue { return value.RVNil }
	}
}

func literalRuntimeValue(v *value.Value) value.RuntimeValue {
	switch v.NumberLit.Sub {
	case value.Int32:
		return value.NewRVInt32(int32(v.NumberLit.I64))
	case value.Int64:
		return value.NewRVInt64(v.NumberLit.I64)
	case value.Float32:
		return value.NewRVFloat32(float32(v.NumberLit.F64))
	default:
		return value.NewRVFloat64(v.NumberLit.F64)
	}
}

// writer returns a closure that stores into dest, using the unchecked
// fast path only when destIsSafeForUnchecked(dest) holds.
func writer(dest *value.Value) func(Registers, value.RuntimeValue) error {
	if dest == nil {
		return func(Registers, value.RuntimeValue) error { return nil }
	}
	unchecked := destIsSafeForUnchecked(dest)
	switch dest.Kind {
	case value.KindTemp:
		reg := dest.Temp.Register
		return func(regs Registers, v value.RuntimeValue) error {
			regs.SetLocalUnchecked(reg, v)
			return nil
		}
	case value.KindVariable:
		reg := dest.Variable.Register
		if dest.Variable.IsGlobal {
			if unchecked {
				return func(regs Registers, v value.RuntimeValue) error {
					regs.SetGlobalUnchecked(reg, v)
					return nil
				}
			}
			return func(regs Registers, v value.RuntimeValue) error {
				return regs.SetGlobal(reg, v)
			}
		}
		if unchecked {
			return func(regs Registers, v value.RuntimeValue) error {
				regs.SetLocalUnchecked(reg, v)
				return nil
			}
		}
		return func(regs Registers, v value.RuntimeValue) error {
			return regs.SetLocal(reg, v)
		}
	default:
		return func(Registers, value.RuntimeValue) error { return nil }
	}
}
