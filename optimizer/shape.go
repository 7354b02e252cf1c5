package optimizer

import (
	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/value"
)

// regKey identifies a storage slot a Temp or Variable operand refers to,
// so two operands can be compared for "same register" regardless of
// whether they were spelled as a Temp or a named Variable.
type regKey struct {
	register int
	isGlobal bool
	isTemp   bool
}

// regOf returns the register identity of v, and ok=false if v doesn't
// name a storage slot at all (a literal, for instance).
func regOf(v *value.Value) (regKey, bool) {
	if v == nil {
		return regKey{}, false
	}
	switch v.Kind {
	case value.KindTemp:
		return regKey{register: v.Temp.Register, isTemp: true}, true
	case value.KindVariable:
		return regKey{register: v.Variable.Register, isGlobal: v.Variable.IsGlobal}, true
	default:
		return regKey{}, false
	}
}

func sameReg(a, b *value.Value) bool {
	ra, ok1 := regOf(a)
	rb, ok2 := regOf(b)
	return ok1 && ok2 && ra == rb
}

// isIntLiteral reports whether v is a compile-time integer constant equal
// to n.
func isIntLiteral(v *value.Value, n int64) bool {
	if v == nil || v.Kind != value.KindNumber {
		return false
	}
	if v.NumberLit.Sub == value.Float32 || v.NumberLit.Sub == value.Float64 {
		return false
	}
	return v.NumberLit.I64 == n
}

// operandsRef reports whether haystack's operands reference the same
// storage slot as needle.
func operandsRef(haystack [4]*value.Value, needle *value.Value) bool {
	for _, op := range haystack {
		if op != nil && sameReg(op, needle) {
			return true
		}
	}
	return false
}

// substituteRegister rewrites every operand of line that refers to old's
// register, replacing it with replacement. Used by constant propagation
// (RemoveConstTempRegisters) once a temp's single use site is found.
func substituteRegister(line *bytecode.InstructionLine, old, replacement *value.Value) bool {
	changed := false
	operands := line.Operands()
	for i, op := range operands {
		if op != nil && sameReg(op, old) {
			line.SetOperand(i, replacement)
			changed = true
		}
	}
	return changed
}
