package bytecode

import "github.com/fluence-lang/fluence/value"

// DebugInfo attaches source-location metadata to an instruction for error
// reporting and the `fluence dump` CLI. The front end (out of scope) is
// responsible for populating it; a zero DebugInfo is valid and simply
// carries no location.
type DebugInfo struct {
	FileIndex int
	Line      int
	Column    int
}

// InstructionLine is one three-address-plus-extra bytecode instruction.
// Four operand slots give opcodes like PushThreeParams, NewInstance (with
// its field-initializer list), and SetElement room to address a
// destination, two sources, and a jump target or index all in one
// instruction.
type InstructionLine struct {
	Op   Opcode
	Lhs  *value.Value
	Rhs  *value.Value
	Rhs2 *value.Value
	Rhs3 *value.Value

	Debug DebugInfo

	// Cache holds the icache.Handler built the first time this
	// instruction executes, if the opcode is specializable. It is typed
	// as any to avoid an import cycle (icache imports bytecode to read
	// instruction shape); the vm package performs the type assertion.
	Cache any
}

// New constructs an instruction with only the operands it needs; nil
// stands for "no operand" uniformly across the dumper and the VM.
func New(op Opcode, operands ...*value.Value) *InstructionLine {
	line := &InstructionLine{Op: op}
	slots := [...]**value.Value{&line.Lhs, &line.Rhs, &line.Rhs2, &line.Rhs3}
	for i, operand := range operands {
		if i >= len(slots) {
			break
		}
		*slots[i] = operand
	}
	return line
}

// Operands returns the instruction's four operand slots in order,
// including nils, for code that needs to iterate them uniformly (the
// dumper, the optimizer's jump-target rewriter).
func (l *InstructionLine) Operands() [4]*value.Value {
	return [4]*value.Value{l.Lhs, l.Rhs, l.Rhs2, l.Rhs3}
}

// SetOperand writes slot i (0=Lhs, 1=Rhs, 2=Rhs2, 3=Rhs3). Out-of-range i
// is a no-op; every opcode uses at most four operands by construction.
func (l *InstructionLine) SetOperand(i int, v *value.Value) {
	switch i {
	case 0:
		l.Lhs = v
	case 1:
		l.Rhs = v
	case 2:
		l.Rhs2 = v
	case 3:
		l.Rhs3 = v
	}
}

// InvalidateCache drops any specialized handler built for this
// instruction. The optimizer calls this after fusing or rewriting an
// instruction in place, since a cached handler bound to the old shape
// would otherwise run stale.
func (l *InstructionLine) InvalidateCache() {
	l.Cache = nil
}

// JumpTarget reads the absolute address operand of a jump-class
// instruction. Per convention the target lives in Rhs for conditional
// jumps (condition in Lhs) and in Lhs for unconditional goto.
func (l *InstructionLine) JumpTarget() (int, bool) {
	var operand *value.Value
	switch l.Op {
	case OpGoto:
		operand = l.Lhs
	case OpGotoIfTrue, OpGotoIfFalse, OpGotoIfTrueFused, OpGotoIfFalseFused:
		operand = l.Rhs
	default:
		if l.Op.IsComparisonBranch() {
			operand = l.Lhs
			break
		}
		return 0, false
	}
	if operand == nil || operand.Kind != value.KindNumber {
		return 0, false
	}
	return int(operand.NumberLit.I64), true
}

// SetJumpTarget rewrites a jump-class instruction's address operand,
// used by the optimizer's address-realignment pass after instructions are
// removed.
func (l *InstructionLine) SetJumpTarget(addr int) bool {
	target := value.NewInt64(int64(addr))
	switch l.Op {
	case OpGoto:
		l.Lhs = target
	case OpGotoIfTrue, OpGotoIfFalse, OpGotoIfTrueFused, OpGotoIfFalseFused:
		l.Rhs = target
	default:
		if l.Op.IsComparisonBranch() {
			l.Lhs = target
			break
		}
		return false
	}
	return true
}

// Chunk is a flat, linear sequence of instructions: one function body, or
// an entire compiled program before functions are split out by address
// range. The optimizer operates in place on a Chunk's Instructions slice.
type Chunk struct {
	Instructions []*InstructionLine
}

func NewChunk(instructions []*InstructionLine) *Chunk {
	return &Chunk{Instructions: instructions}
}

func (c *Chunk) Len() int {
	return len(c.Instructions)
}
