package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/symbols"
	"github.com/fluence-lang/fluence/value"
)

func tempAt(id uint64, reg int) *value.Value    { return value.NewTemp(id, reg) }
func localAt(name string, reg int) *value.Value { return value.NewVariable(name, reg, false, false) }

func TestFuseGotoConditionalsEqualBranchOnTrue(t *testing.T) {
	a := localAt("a", 0)
	b := localAt("b", 1)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpEqual, tempAt(1, 9), a, b),
		bytecode.New(bytecode.OpGotoIfTrue, tempAt(1, 9), value.NewInt64(7)),
	}
	removed := fuseGotoConditionals(instrs)
	require.Equal(t, 1, removed)
	assert.Equal(t, bytecode.OpBranchIfEqual, instrs[0].Op)
	target, ok := instrs[0].JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 7, target)
	assert.Equal(t, bytecode.OpNop, instrs[1].Op, "expected original branch tombstoned")
}

func TestFuseGotoConditionalsEqualBranchOnFalse(t *testing.T) {
	// EQ x,y ; GOTO_IF_FALSE target  means "branch when NOT equal".
	a := localAt("a", 0)
	b := localAt("b", 1)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpEqual, tempAt(1, 9), a, b),
		bytecode.New(bytecode.OpGotoIfFalse, tempAt(1, 9), value.NewInt64(7)),
	}
	fuseGotoConditionals(instrs)
	assert.Equal(t, bytecode.OpBranchIfNotEqual, instrs[0].Op)
}

func TestFuseGotoConditionalsNotEqualBranchOnTrue(t *testing.T) {
	// NOT_EQ x,y ; GOTO_IF_TRUE target means "branch when NOT equal".
	a := localAt("a", 0)
	b := localAt("b", 1)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpNotEqual, tempAt(1, 9), a, b),
		bytecode.New(bytecode.OpGotoIfTrue, tempAt(1, 9), value.NewInt64(7)),
	}
	fuseGotoConditionals(instrs)
	assert.Equal(t, bytecode.OpBranchIfNotEqual, instrs[0].Op)
}

func TestFuseGotoConditionalsNotEqualBranchOnFalse(t *testing.T) {
	a := localAt("a", 0)
	b := localAt("b", 1)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpNotEqual, tempAt(1, 9), a, b),
		bytecode.New(bytecode.OpGotoIfFalse, tempAt(1, 9), value.NewInt64(7)),
	}
	fuseGotoConditionals(instrs)
	assert.Equal(t, bytecode.OpBranchIfEqual, instrs[0].Op)
}

func TestRemoveConstTempRegistersSingleUse(t *testing.T) {
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAssign, tempAt(1, 0), value.NewInt64(42)),
		bytecode.New(bytecode.OpAssign, localAt("x", 1), tempAt(1, 0)),
	}
	removed := removeConstTempRegisters(instrs)
	require.Equal(t, 1, removed)
	assert.Equal(t, bytecode.OpNop, instrs[0].Op, "expected const-temp assignment tombstoned")
	require.Equal(t, value.KindNumber, instrs[1].Rhs.Kind)
	assert.Equal(t, int64(42), instrs[1].Rhs.NumberLit.I64, "expected literal substituted directly")
}

func TestRemoveConstTempRegistersSkipsMultiUse(t *testing.T) {
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAssign, tempAt(1, 0), value.NewInt64(42)),
		bytecode.New(bytecode.OpAssign, localAt("x", 1), tempAt(1, 0)),
		bytecode.New(bytecode.OpAssign, localAt("y", 2), tempAt(1, 0)),
	}
	removed := removeConstTempRegisters(instrs)
	assert.Equal(t, 0, removed, "expected no removal when temp is used twice")
}

func TestFuseCompoundAssignments(t *testing.T) {
	x := localAt("x", 0)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAdd, tempAt(1, 9), x, value.NewInt64(5)),
		bytecode.New(bytecode.OpAssign, x, tempAt(1, 9)),
	}
	removed := fuseCompoundAssignments(instrs)
	require.Equal(t, 1, removed)
	assert.Equal(t, bytecode.OpAddAssign, instrs[0].Op)
}

func TestFuseCompoundAssignmentsRejectsDifferentVariable(t *testing.T) {
	// y = x + 5 must NOT become y += 5.
	x := localAt("x", 0)
	y := localAt("y", 1)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAdd, tempAt(1, 9), x, value.NewInt64(5)),
		bytecode.New(bytecode.OpAssign, y, tempAt(1, 9)),
	}
	removed := fuseCompoundAssignments(instrs)
	assert.Equal(t, 0, removed, "expected no fusion across different variables")
}

func TestFuseSimpleAssignments(t *testing.T) {
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAssign, localAt("a", 0), value.NewInt64(1)),
		bytecode.New(bytecode.OpAssign, localAt("b", 1), value.NewInt64(2)),
	}
	removed := fuseSimpleAssignments(instrs)
	require.Equal(t, 1, removed)
	assert.Equal(t, bytecode.OpAssignTwo, instrs[0].Op)
}

func TestFusePushParamsGreedyRunOfFour(t *testing.T) {
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpPushParam, value.NewInt64(1)),
		bytecode.New(bytecode.OpPushParam, value.NewInt64(2)),
		bytecode.New(bytecode.OpPushParam, value.NewInt64(3)),
		bytecode.New(bytecode.OpPushParam, value.NewInt64(4)),
	}
	removed := fusePushParams(instrs)
	require.Equal(t, 3, removed, "expected 3 removals fusing 4 pushes into 1")
	assert.Equal(t, bytecode.OpPushFourParams, instrs[0].Op)
}

func TestConvertToIncrementsDecrements(t *testing.T) {
	x := localAt("x", 0)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAddAssign, x, value.NewInt64(1)),
	}
	removed := convertToIncrementsDecrements(instrs)
	require.Equal(t, 1, removed)
	assert.Equal(t, bytecode.OpIncrement, instrs[0].Op)
}

func TestConvertToIncrementsDecrementsRequiresSelfReference(t *testing.T) {
	x := localAt("x", 0)
	y := localAt("y", 1)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAdd, x, y, value.NewInt64(1)),
	}
	removed := convertToIncrementsDecrements(instrs)
	assert.Equal(t, 0, removed, "expected no conversion when dest != source")
}

func TestFuseComparisonBranchesDirectSense(t *testing.T) {
	a := localAt("a", 0)
	b := localAt("b", 1)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpLess, tempAt(1, 9), a, b),
		bytecode.New(bytecode.OpGotoIfTrue, tempAt(1, 9), value.NewInt64(7)),
	}
	removed := fuseComparisonBranches(instrs)
	require.Equal(t, 1, removed)
	assert.Equal(t, bytecode.OpBranchIfLessThan, instrs[0].Op)
	target, ok := instrs[0].JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 7, target)
}

// TestFuseComparisonBranchesSwappedSense covers every ordering opcode
// branching on false, which must substitute the complementary named
// comparison directly rather than negate the original's result (the
// generic-negation approach silently breaks on NaN: NOT(a>b) is true for
// NaN operands but a<=b must be false).
func TestFuseComparisonBranchesSwappedSense(t *testing.T) {
	cases := []struct {
		cmp      bytecode.Opcode
		branchOp bytecode.Opcode
		want     bytecode.Opcode
	}{
		{bytecode.OpLess, bytecode.OpGotoIfFalse, bytecode.OpBranchIfGreaterOrEqual},
		{bytecode.OpGreater, bytecode.OpGotoIfFalse, bytecode.OpBranchIfLessOrEqual},
		{bytecode.OpLessEqual, bytecode.OpGotoIfFalse, bytecode.OpBranchIfGreaterThan},
		{bytecode.OpGreaterEqual, bytecode.OpGotoIfFalse, bytecode.OpBranchIfLessThan},
		{bytecode.OpGreater, bytecode.OpGotoIfTrue, bytecode.OpBranchIfGreaterThan},
		{bytecode.OpLessEqual, bytecode.OpGotoIfTrue, bytecode.OpBranchIfLessOrEqual},
		{bytecode.OpGreaterEqual, bytecode.OpGotoIfTrue, bytecode.OpBranchIfGreaterOrEqual},
	}
	for _, c := range cases {
		a := localAt("a", 0)
		b := localAt("b", 1)
		instrs := []*bytecode.InstructionLine{
			bytecode.New(c.cmp, tempAt(1, 9), a, b),
			bytecode.New(c.branchOp, tempAt(1, 9), value.NewInt64(7)),
		}
		fuseComparisonBranches(instrs)
		assert.Equalf(t, c.want, instrs[0].Op, "cmp=%v branch=%v", c.cmp, c.branchOp)
	}
}

func TestCompactRemovesTombstonesAndRealignsJumps(t *testing.T) {
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpNop),                     // 0: removed
		bytecode.New(bytecode.OpGoto, value.NewInt64(3)), // 1 -> new 0, target 3 -> new 1
		bytecode.New(bytecode.OpNop),                     // 2: removed
		bytecode.New(bytecode.OpHalt),                    // 3 -> new 1
	}
	chunk := bytecode.NewChunk(instrs)
	funcTable := symbols.NewFunctionTable()
	Compact(chunk, funcTable)

	require.Len(t, chunk.Instructions, 2)
	assert.Equal(t, bytecode.OpGoto, chunk.Instructions[0].Op)
	target, ok := chunk.Instructions[0].JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 1, target, "expected realigned target")
}

func TestCompactRealignsFunctionBoundaries(t *testing.T) {
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpNop),
		bytecode.New(bytecode.OpFunctionStart),
		bytecode.New(bytecode.OpReturn),
		bytecode.New(bytecode.OpFunctionEnd),
	}
	chunk := bytecode.NewChunk(instrs)
	funcTable := symbols.NewFunctionTable()
	fn := symbols.NewFunctionSymbol("f", nil)
	fn.StartAddr = 1
	fn.EndAddr = 3
	funcTable.Add(fn)

	Compact(chunk, funcTable)

	assert.Equal(t, 0, fn.StartAddr)
	assert.Equal(t, 2, fn.EndAddr)
}

func TestOptimizeChunkFullPipeline(t *testing.T) {
	x := localAt("x", 0)
	instrs := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpAssign, tempAt(1, 9), value.NewInt64(1)),
		bytecode.New(bytecode.OpAdd, tempAt(2, 10), x, tempAt(1, 9)),
		bytecode.New(bytecode.OpAssign, x, tempAt(2, 10)),
	}
	chunk := bytecode.NewChunk(instrs)
	o := NewOptimizer()
	stats := o.OptimizeChunk(chunk, symbols.NewFunctionTable())

	assert.Less(t, stats.OptimizedSize, stats.OriginalSize, "expected the pipeline to shrink the chunk")
	for _, line := range chunk.Instructions {
		assert.NotEqual(t, bytecode.OpNop, line.Op, "expected no tombstones to survive Compact")
	}
}
