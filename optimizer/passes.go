package optimizer

import (
	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/value"
)

// fuseGotoConditionals rewrites:
//
//	EQ TempN, a, b
//	GOTO_IF_TRUE/FALSE TempN, target
//
// into a single BRANCH_EQ/BRANCH_NEQ target, a, b, eliminating the
// intermediate boolean temp entirely; the branch instruction becomes a
// tombstone. NOT_EQ fuses the same way with the opcode choice inverted,
// since `NEQ x,y` then branching on false is the same decision as `EQ x,y`
// branching on true.
func fuseGotoConditionals(instrs []*bytecode.InstructionLine) int {
	removed := 0
	for i := 0; i < len(instrs); i++ {
		cmp := instrs[i]
		if cmp.Op != bytecode.OpEqual && cmp.Op != bytecode.OpNotEqual {
			continue
		}
		if cmp.Lhs == nil {
			continue
		}
		j := nextReal(instrs, i+1)
		if j < 0 {
			continue
		}
		branch := instrs[j]
		if branch.Op != bytecode.OpGotoIfTrue && branch.Op != bytecode.OpGotoIfFalse {
			continue
		}
		if branch.Lhs == nil || !sameReg(branch.Lhs, cmp.Lhs) {
			continue
		}
		target, ok := branch.JumpTarget()
		if !ok {
			continue
		}
		branchOnTrue := branch.Op == bytecode.OpGotoIfTrue
		wantEqual := (cmp.Op == bytecode.OpEqual) == branchOnTrue
		fusedOp := bytecode.OpBranchIfNotEqual
		if wantEqual {
			fusedOp = bytecode.OpBranchIfEqual
		}
		instrs[i] = bytecode.New(fusedOp, value.NewInt64(int64(target)), cmp.Rhs, cmp.Rhs2)
		tombstone(instrs, j)
		removed++
	}
	return removed
}

// removeConstTempRegisters folds `ASSIGN temp, <literal>` into its single
// later use site and deletes the assignment, when exactly one later
// instruction in the chunk references the temp in any operand slot (a
// later write to the temp counts as a reference too). This is the optimizer's only
// constant-propagation pass; it never evaluates expressions, only
// substitutes an already-literal value in place of a temp that aliases it.
func removeConstTempRegisters(instrs []*bytecode.InstructionLine) int {
	removed := 0
	for i := 0; i < len(instrs); i++ {
		line := instrs[i]
		if line.Op != bytecode.OpAssign || line.Lhs == nil || line.Lhs.Kind != value.KindTemp {
			continue
		}
		if line.Rhs == nil || !line.Rhs.IsLiteralConstant() {
			continue
		}
		useSite := -1
		for j := i + 1; j < len(instrs); j++ {
			if instrs[j].Op == bytecode.OpNop {
				continue
			}
			ops := instrs[j].Operands()
			if !operandsRef(ops, line.Lhs) {
				continue
			}
			if useSite != -1 {
				// read more than once: not a single-use temp, leave it alone.
				useSite = -2
				break
			}
			useSite = j
		}
		if useSite < 0 {
			continue
		}
		substituteRegister(instrs[useSite], line.Lhs, line.Rhs)
		tombstone(instrs, i)
		removed++
	}
	return removed
}

// fuseCompoundAssignments rewrites:
//
//	ADD temp, var, rhs
//	ASSIGN var, temp
//
// into a single `ADD_ASSIGN var, rhs`, provided the arithmetic's first
// operand is the very variable being written back (otherwise this would
// silently turn `x = y + rhs` into `x += rhs`, which is wrong whenever
// x != y).
func fuseCompoundAssignments(instrs []*bytecode.InstructionLine) int {
	removed := 0
	arithToCompound := map[bytecode.Opcode]bytecode.Opcode{
		bytecode.OpAdd: bytecode.OpAddAssign,
		bytecode.OpSub: bytecode.OpSubAssign,
		bytecode.OpMul: bytecode.OpMulAssign,
		bytecode.OpDiv: bytecode.OpDivAssign,
		bytecode.OpMod: bytecode.OpModAssign,
	}
	for i := 0; i < len(instrs); i++ {
		arith := instrs[i]
		compound, isArith := arithToCompound[arith.Op]
		if !isArith || arith.Lhs == nil || arith.Rhs == nil || arith.Rhs2 == nil {
			continue
		}
		j := nextReal(instrs, i+1)
		if j < 0 || instrs[j].Op != bytecode.OpAssign {
			continue
		}
		assign := instrs[j]
		if assign.Rhs == nil || !sameReg(assign.Rhs, arith.Lhs) {
			continue
		}
		if assign.Lhs == nil || !sameReg(assign.Lhs, arith.Rhs) {
			// the destination must alias the arithmetic's first operand.
			continue
		}
		instrs[i] = bytecode.New(compound, assign.Lhs, arith.Rhs2)
		tombstone(instrs, j)
		removed++
	}
	return removed
}

// fuseSimpleAssignments merges two independent, consecutive ASSIGN
// instructions into one ASSIGN_TWO using all four operand slots, when
// neither depends on the other (the second's source doesn't alias the
// first's destination).
func fuseSimpleAssignments(instrs []*bytecode.InstructionLine) int {
	removed := 0
	for i := 0; i < len(instrs); i++ {
		first := instrs[i]
		if first.Op != bytecode.OpAssign {
			continue
		}
		j := nextReal(instrs, i+1)
		if j < 0 || instrs[j].Op != bytecode.OpAssign {
			continue
		}
		second := instrs[j]
		if second.Rhs != nil && sameReg(second.Rhs, first.Lhs) {
			continue // second reads what first just wrote: order-dependent.
		}
		instrs[i] = bytecode.New(bytecode.OpAssignTwo, first.Lhs, first.Rhs, second.Lhs, second.Rhs)
		tombstone(instrs, j)
		removed++
	}
	return removed
}

// fusePushParams collapses runs of up to four consecutive PUSH_PARAM
// instructions (a call's argument list) into one PUSH_PARAM2/3/4,
// greedily taking the longest run available at each position.
func fusePushParams(instrs []*bytecode.InstructionLine) int {
	removed := 0
	for i := 0; i < len(instrs); i++ {
		if instrs[i].Op != bytecode.OpPushParam {
			continue
		}
		run := []int{i}
		cursor := i
		for len(run) < 4 {
			next := nextReal(instrs, cursor+1)
			if next < 0 || instrs[next].Op != bytecode.OpPushParam {
				break
			}
			run = append(run, next)
			cursor = next
		}
		if len(run) < 2 {
			continue
		}
		args := make([]*value.Value, len(run))
		for k, idx := range run {
			args[k] = instrs[idx].Lhs
		}
		var fused bytecode.Opcode
		switch len(run) {
		case 2:
			fused = bytecode.OpPushTwoParams
		case 3:
			fused = bytecode.OpPushThreeParams
		default:
			fused = bytecode.OpPushFourParams
		}
		instrs[i] = bytecode.New(fused, args...)
		for _, idx := range run[1:] {
			tombstone(instrs, idx)
		}
		removed += len(run) - 1
	}
	return removed
}

// convertToIncrementsDecrements rewrites a self-referential add/subtract
// by exactly one into INCR/DECR. The Lhs==Rhs check is the safety
// invariant: Lhs (the instruction's destination) must alias Rhs (the
// arithmetic's first read operand), i.e. the instruction is already in
// the self-modifying `x = x + 1` shape, never `x = y + 1`. It runs after
// FuseCompoundAssignments so it sees both the freshly fused ADD_ASSIGN/
// SUB_ASSIGN form (Lhs is the sole operand doubling as read and write)
// and any raw ADD/SUB var, var, 1 triples a front end might emit directly.
// It returns the number of instructions rewritten in place.
func convertToIncrementsDecrements(instrs []*bytecode.InstructionLine) int {
	removed := 0
	for i := 0; i < len(instrs); i++ {
		line := instrs[i]
		switch line.Op {
		case bytecode.OpAddAssign:
			if isIntLiteral(line.Rhs, 1) {
				instrs[i] = bytecode.New(bytecode.OpIncrement, line.Lhs)
				removed++
			}
		case bytecode.OpSubAssign:
			if isIntLiteral(line.Rhs, 1) {
				instrs[i] = bytecode.New(bytecode.OpDecrement, line.Lhs)
				removed++
			}
		case bytecode.OpAdd, bytecode.OpSub:
			if line.Lhs == nil || line.Rhs == nil || line.Rhs2 == nil {
				continue
			}
			if !sameReg(line.Lhs, line.Rhs) || !isIntLiteral(line.Rhs2, 1) {
				continue
			}
			if line.Op == bytecode.OpAdd {
				instrs[i] = bytecode.New(bytecode.OpIncrement, line.Lhs)
			} else {
				instrs[i] = bytecode.New(bytecode.OpDecrement, line.Lhs)
			}
			removed++
		}
	}
	return removed
}

// orderingOps are the four ordering comparisons FuseComparisonBranches
// handles; EQ/NOT_EQ are FuseGotoConditionals' concern (pass 1) and never
// reach here because that earlier pass has already consumed or left them
// untouched before this one runs.
var orderingOps = map[bytecode.Opcode]bool{
	bytecode.OpLess: true, bytecode.OpLessEqual: true,
	bytecode.OpGreater: true, bytecode.OpGreaterEqual: true,
}

// comparisonBranchTable maps every (ordering comparison, branch sense)
// pair to the single fused opcode that computes it directly — including
// the swapped variants, where branching on the comparison's *false* case
// is rewritten as the opposite-direction comparison's *true* case (e.g.
// `GreaterThan`+GOTO_IF_FALSE becomes BRANCH_LTE, not "not greater than")
// so the fused instruction always evaluates the named ordering relation
// against the operands directly, rather than negating a different one.
var comparisonBranchTable = map[bytecode.Opcode]map[bool]bytecode.Opcode{
	bytecode.OpLess: {
		true:  bytecode.OpBranchIfLessThan,
		false: bytecode.OpBranchIfGreaterOrEqual,
	},
	bytecode.OpGreater: {
		true:  bytecode.OpBranchIfGreaterThan,
		false: bytecode.OpBranchIfLessOrEqual,
	},
	bytecode.OpLessEqual: {
		true:  bytecode.OpBranchIfLessOrEqual,
		false: bytecode.OpBranchIfGreaterThan,
	},
	bytecode.OpGreaterEqual: {
		true:  bytecode.OpBranchIfGreaterOrEqual,
		false: bytecode.OpBranchIfLessThan,
	},
}

// fuseComparisonBranches rewrites:
//
//	GreaterThan TempN, a, b
//	GOTO_IF_TRUE TempN, target
//
// into BRANCH_GT target, a, b — or, for any of the four orderings paired
// with either branch sense, the distinct fused opcode comparisonBranchTable
// names for that pair, evaluating its own ordering relation directly
// rather than negating the original comparison's sense.
func fuseComparisonBranches(instrs []*bytecode.InstructionLine) int {
	removed := 0
	for i := 0; i < len(instrs); i++ {
		cmp := instrs[i]
		if !orderingOps[cmp.Op] || cmp.Lhs == nil {
			continue
		}
		j := nextReal(instrs, i+1)
		if j < 0 {
			continue
		}
		branch := instrs[j]
		if branch.Op != bytecode.OpGotoIfFalse && branch.Op != bytecode.OpGotoIfTrue {
			continue
		}
		if branch.Lhs == nil || !sameReg(branch.Lhs, cmp.Lhs) {
			continue
		}
		target, ok := branch.JumpTarget()
		if !ok {
			continue
		}
		fusedOp := comparisonBranchTable[cmp.Op][branch.Op == bytecode.OpGotoIfTrue]
		instrs[i] = bytecode.New(fusedOp, value.NewInt64(int64(target)), cmp.Rhs, cmp.Rhs2)
		tombstone(instrs, j)
		removed++
	}
	return removed
}
