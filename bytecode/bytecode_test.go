package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluence-lang/fluence/value"
)

func TestNewInstructionFillsSlotsInOrder(t *testing.T) {
	line := New(OpAdd, value.NewTemp(1, 0), value.NewInt64(2), value.NewInt64(3))
	assert.NotNil(t, line.Lhs)
	assert.NotNil(t, line.Rhs)
	assert.NotNil(t, line.Rhs2)
	assert.Nil(t, line.Rhs3)
}

func TestJumpTargetRoundTrip(t *testing.T) {
	line := New(OpGoto, value.NewInt64(10))
	addr, ok := line.JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 10, addr)

	require.True(t, line.SetJumpTarget(20), "expected SetJumpTarget to succeed for OpGoto")
	addr, ok = line.JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 20, addr)
}

func TestJumpTargetConditional(t *testing.T) {
	cond := value.NewTemp(1, 0)
	line := New(OpGotoIfFalse, cond, value.NewInt64(5))
	addr, ok := line.JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 5, addr, "expected conditional jump target in Rhs slot")
}

func TestJumpTargetNonJumpInstruction(t *testing.T) {
	line := New(OpAdd, value.NewTemp(1, 0), value.NewInt64(1), value.NewInt64(2))
	_, ok := line.JumpTarget()
	assert.False(t, ok, "non-jump instruction must not report a jump target")
}

func TestInvalidateCacheClearsHandler(t *testing.T) {
	line := New(OpAdd)
	line.Cache = "placeholder-handler"
	line.InvalidateCache()
	assert.Nil(t, line.Cache)
}

func TestOpcodeIsMarkerAndIsJump(t *testing.T) {
	assert.True(t, OpFunctionStart.IsMarker())
	assert.False(t, OpAdd.IsMarker())
	assert.True(t, OpBranchIfLessOrEqual.IsJump())
	assert.False(t, OpAssign.IsJump())
}

func TestComparisonBranchOpcodesReportIsComparisonBranch(t *testing.T) {
	branches := []Opcode{
		OpBranchIfEqual, OpBranchIfNotEqual,
		OpBranchIfLessThan, OpBranchIfGreaterThan,
		OpBranchIfLessOrEqual, OpBranchIfGreaterOrEqual,
	}
	for _, op := range branches {
		assert.True(t, op.IsComparisonBranch(), "expected %v to report IsComparisonBranch", op)
		assert.True(t, op.IsJump(), "expected %v to report IsJump", op)
	}
	assert.False(t, OpGoto.IsComparisonBranch())
}

func TestComparisonBranchJumpTargetUsesLhs(t *testing.T) {
	line := New(OpBranchIfLessThan, value.NewInt64(30), value.NewTemp(1, 0), value.NewTemp(1, 1))
	addr, ok := line.JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 30, addr, "expected jump target in Lhs")

	require.True(t, line.SetJumpTarget(40), "expected SetJumpTarget to succeed for a comparison branch")
	addr, ok = line.JumpTarget()
	require.True(t, ok)
	assert.Equal(t, 40, addr)
}

func TestDumpFormatColumnsAndNullOperands(t *testing.T) {
	chunk := NewChunk([]*InstructionLine{
		New(OpAdd, value.NewTemp(0, 0), value.NewInt64(1), value.NewInt64(2)),
		New(OpReturn),
	})
	out := DumpString(chunk)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ADD")
	assert.Contains(t, lines[1], "null", "expected null operand rendering for RETURN's empty operands")
}
