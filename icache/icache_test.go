package icache

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/value"
)

// fakeRegisters is a minimal Registers implementation for testing
// handlers in isolation from the vm package.
type fakeRegisters struct {
	locals    []value.RuntimeValue
	globals   []value.RuntimeValue
	soldLocal map[int]bool
}

func newFakeRegisters(n int) *fakeRegisters {
	return &fakeRegisters{
		locals:    make([]value.RuntimeValue, n),
		globals:   make([]value.RuntimeValue, n),
		soldLocal: make(map[int]bool),
	}
}

func (f *fakeRegisters) GetLocal(reg int) value.RuntimeValue             { return f.locals[reg] }
func (f *fakeRegisters) SetLocalUnchecked(reg int, v value.RuntimeValue) { f.locals[reg] = v }
func (f *fakeRegisters) SetLocal(reg int, v value.RuntimeValue) error {
	if f.soldLocal[reg] {
		return errReadonly
	}
	f.soldLocal[reg] = true
	f.locals[reg] = v
	return nil
}
func (f *fakeRegisters) GetGlobal(reg int) value.RuntimeValue             { return f.globals[reg] }
func (f *fakeRegisters) SetGlobalUnchecked(reg int, v value.RuntimeValue) { f.globals[reg] = v }
func (f *fakeRegisters) SetGlobal(reg int, v value.RuntimeValue) error {
	f.globals[reg] = v
	return nil
}

type readonlyError struct{}

func (readonlyError) Error() string { return "readonly violation" }

var errReadonly = readonlyError{}

func TestBuildArithmeticAdd(t *testing.T) {
	regs := newFakeRegisters(4)
	regs.locals[1] = value.NewRVInt64(2)
	regs.locals[2] = value.NewRVInt64(3)

	line := bytecode.New(bytecode.OpAdd, value.NewTemp(0, 0), value.NewVariable("a", 1, false, false), value.NewVariable("b", 2, false, false))
	h, err := Build(line)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.NoError(t, h.Exec(regs))
	assert.Equal(t, int64(5), regs.locals[0].AsInt64())
}

func TestLookupRebuildsOnShapeChange(t *testing.T) {
	line := bytecode.New(bytecode.OpAdd, value.NewTemp(0, 0), value.NewInt64(1), value.NewInt64(2))
	h1, err := Lookup(line)
	require.NoError(t, err)
	require.NotNil(t, h1)
	// Change shape: Rhs becomes a variable instead of a literal.
	line.Rhs = value.NewVariable("x", 3, false, false)
	h2, err := Lookup(line)
	require.NoError(t, err)
	require.NotNil(t, h2)
	assert.NotSame(t, h1, h2, "expected a new handler after shape change")
}

func TestBuildComparisonBranchTakenAndNotTaken(t *testing.T) {
	target := value.NewInt64(42)
	a := value.NewVariable("a", 0, false, false)
	b := value.NewVariable("b", 1, false, false)
	fused := bytecode.New(bytecode.OpBranchIfLessThan, target, a, b)

	h, err := Build(fused)
	require.NoError(t, err)
	require.NotNil(t, h)

	regs := newFakeRegisters(2)
	regs.locals[0] = value.NewRVInt64(1)
	regs.locals[1] = value.NewRVInt64(2)
	err = h.Exec(regs)
	require.Error(t, err, "expected branch taken (1 < 2)")
	bt, ok := err.(BranchTaken)
	require.True(t, ok)
	assert.Equal(t, 42, bt.Target)

	regs.locals[0] = value.NewRVInt64(5)
	assert.NoError(t, h.Exec(regs), "expected no branch (5 < 2 is false)")
}

// TestComparisonBranchNaNNeverTaken guards the fix for a correctness bug
// in the earlier generic-negation design: BranchIfLessOrEqual must
// evaluate its own direct <= comparison rather than negate
// BranchIfGreaterThan's result, since for NaN operands every ordering
// comparison is false and NOT(a>b) would wrongly be true.
func TestComparisonBranchNaNNeverTaken(t *testing.T) {
	target := value.NewInt64(7)
	a := value.NewVariable("a", 0, false, false)
	b := value.NewVariable("b", 1, false, false)
	regs := newFakeRegisters(2)
	regs.locals[0] = value.NewRVFloat64(math.NaN())
	regs.locals[1] = value.NewRVFloat64(1.0)

	branches := []bytecode.Opcode{
		bytecode.OpBranchIfLessThan, bytecode.OpBranchIfGreaterThan,
		bytecode.OpBranchIfLessOrEqual, bytecode.OpBranchIfGreaterOrEqual,
	}
	for _, op := range branches {
		h, err := Build(bytecode.New(op, target, a, b))
		require.NoErrorf(t, err, "build error for %v", op)
		assert.NoErrorf(t, h.Exec(regs), "expected %v to never take the branch for NaN operands", op)
	}
}

func TestDestIsSafeForUncheckedTempAlwaysSafe(t *testing.T) {
	assert.True(t, destIsSafeForUnchecked(value.NewTemp(0, 0)), "temp destinations are never solid")
}

func TestDestIsSafeForUncheckedSolidVariableUsesCheckedPath(t *testing.T) {
	solid := value.NewVariable("x", 0, false, true)
	assert.False(t, destIsSafeForUnchecked(solid), "solid variable destination must use the checked path")
}

func TestReadonlyViolationSurfacesThroughCheckedWriter(t *testing.T) {
	solid := value.NewVariable("x", 0, false, true)
	line := bytecode.New(bytecode.OpAdd, solid, value.NewInt64(1), value.NewInt64(2))
	h, err := Build(line)
	require.NoError(t, err)
	regs := newFakeRegisters(2)
	assert.NoError(t, h.Exec(regs), "first write to solid variable should succeed")
	assert.Equal(t, errReadonly, h.Exec(regs), "second write to solid variable must be rejected")
}

func TestBuildElementAccessGetAndSet(t *testing.T) {
	list := &value.ListObject{Elements: []value.RuntimeValue{value.NewRVInt64(10), value.NewRVInt64(20)}}
	collection := value.NewVariable("xs", 1, false, false)
	index := value.NewInt64(1)
	dest := value.NewTemp(0, 0)

	getLine := bytecode.New(bytecode.OpGetElement, dest, collection, index)
	h, err := Build(getLine)
	require.NoError(t, err)
	regs := newFakeRegisters(2)
	regs.locals[1] = value.NewRVObject(list)
	require.NoError(t, h.Exec(regs))
	assert.Equal(t, int64(20), regs.locals[0].AsInt64())

	setLine := bytecode.New(bytecode.OpSetElement, value.NewInt64(99), collection, index)
	h2, err := Build(setLine)
	require.NoError(t, err)
	require.NoError(t, h2.Exec(regs))
	assert.Equal(t, int64(99), list.Elements[1].AsInt64())
}

func TestBuildIterNextRangeIterator(t *testing.T) {
	rangeObj := &value.RangeObject{Start: 0, End: 2}
	it := value.GetIterator(rangeObj, 0, 1)
	iterSlot := value.NewVariable("it", 0, false, false)
	dest := value.NewTemp(1, 1)

	line := bytecode.New(bytecode.OpIterNext, dest, iterSlot)
	h, err := Build(line)
	require.NoError(t, err)
	regs := newFakeRegisters(2)
	regs.locals[0] = value.NewRVObject(it)

	for expected := int64(0); expected <= 2; expected++ {
		require.NoErrorf(t, h.Exec(regs), "exec error at %d", expected)
		assert.Equal(t, expected, regs.locals[1].AsInt64())
	}
	assert.Error(t, h.Exec(regs), "expected exhausted-iterator error")
}
