package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/ferrors"
	"github.com/fluence-lang/fluence/symbols"
	"github.com/fluence-lang/fluence/value"
)

func chunkOf(lines ...*bytecode.InstructionLine) *bytecode.Chunk {
	return bytecode.NewChunk(lines)
}

func TestMachineRunsSimpleArithmetic(t *testing.T) {
	sum := value.NewVariable("r", 0, true, false)
	chunk := chunkOf(
		bytecode.New(bytecode.OpAdd, sum, value.NewInt64(2), value.NewInt64(3)),
		bytecode.New(bytecode.OpHalt),
	)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{false}, 0)
	require.NoError(t, m.RunUntilDone())
	assert.Equal(t, Finished, m.State)
	got := m.Globals[0]
	require.Equal(t, value.RNumber, got.Kind)
	assert.Equal(t, int64(5), got.AsInt64())
}

func TestMachineSolidVariableViolation(t *testing.T) {
	x := value.NewVariable("x", 0, true, true)
	chunk := chunkOf(
		bytecode.New(bytecode.OpAssign, x, value.NewInt64(1)),
		bytecode.New(bytecode.OpAssign, x, value.NewInt64(2)),
		bytecode.New(bytecode.OpHalt),
	)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{true}, 0)
	err := m.RunUntilDone()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.Sentinel(ferrors.ReadonlyViolation)))
	assert.Equal(t, Error, m.State)
}

// TestMachineCallGlobalFibonacci hand-assembles a recursive fib(n) and a
// main program that computes fib(5) into a global register, exercising
// CALL_GLOBAL/RETURN_VALUE/PUSH_PARAM frame push-pop across recursive
// calls sharing one FunctionLiteral call target.
func TestMachineCallGlobalFibonacci(t *testing.T) {
	fibLit := &value.FunctionLiteral{
		Name:      "fib",
		StartAddr: 3,
		EndAddr:   13,
		Arity:     1,
		Params:    []string{"n"},
		MaxLocals: 7,
	}
	fibFn := value.NewFunction(fibLit)

	n := value.NewVariable("n", 0, false, false)
	t1 := value.NewTemp(1, 1) // n < 2
	t2 := value.NewTemp(2, 2) // n - 1
	t3 := value.NewTemp(3, 3) // fib(n-1)
	t4 := value.NewTemp(4, 4) // n - 2
	t5 := value.NewTemp(5, 5) // fib(n-2)
	t6 := value.NewTemp(6, 6) // sum

	result := value.NewVariable("result", 0, true, false)

	lines := make([]*bytecode.InstructionLine, 14)
	lines[0] = bytecode.New(bytecode.OpPushParam, value.NewInt64(5))
	lines[1] = bytecode.New(bytecode.OpCallGlobal, result, fibFn)
	lines[2] = bytecode.New(bytecode.OpHalt)

	lines[3] = bytecode.New(bytecode.OpLess, t1, n, value.NewInt64(2))
	gotoIfFalse := bytecode.New(bytecode.OpGotoIfFalse, t1, value.NewInt64(6))
	lines[4] = gotoIfFalse
	lines[5] = bytecode.New(bytecode.OpReturnValue, n)
	lines[6] = bytecode.New(bytecode.OpSub, t2, n, value.NewInt64(1))
	lines[7] = bytecode.New(bytecode.OpPushParam, t2)
	lines[8] = bytecode.New(bytecode.OpCallGlobal, t3, fibFn)
	lines[9] = bytecode.New(bytecode.OpSub, t4, n, value.NewInt64(2))
	lines[10] = bytecode.New(bytecode.OpPushParam, t4)
	lines[11] = bytecode.New(bytecode.OpCallGlobal, t5, fibFn)
	lines[12] = bytecode.New(bytecode.OpAdd, t6, t3, t5)
	lines[13] = bytecode.New(bytecode.OpReturnValue, t6)

	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{false}, 0)
	require.NoError(t, m.RunUntilDone())
	got := m.Globals[0]
	require.Equal(t, value.RNumber, got.Kind)
	assert.Equal(t, int64(5), got.AsInt64(), "expected fib(5)=5")
}

func TestMachineRangeIterationSum(t *testing.T) {
	rangeTemp := value.NewTemp(1, 0)
	iterTemp := value.NewTemp(2, 1)
	hasNextTemp := value.NewTemp(3, 2)
	elemTemp := value.NewTemp(4, 3)
	sum := value.NewVariable("sum", 0, true, false)

	lines := make([]*bytecode.InstructionLine, 8)
	lines[0] = bytecode.New(bytecode.OpNewRange, rangeTemp, value.NewInt64(1), value.NewInt64(5))
	lines[1] = bytecode.New(bytecode.OpNewIterator, iterTemp, rangeTemp, value.NewInt64(1))
	lines[2] = bytecode.New(bytecode.OpIterHasNext, hasNextTemp, iterTemp)
	lines[3] = bytecode.New(bytecode.OpGotoIfFalse, hasNextTemp, value.NewInt64(7))
	lines[4] = bytecode.New(bytecode.OpIterNext, elemTemp, iterTemp)
	lines[5] = bytecode.New(bytecode.OpAddAssign, sum, elemTemp)
	lines[6] = bytecode.New(bytecode.OpGoto, value.NewInt64(2))
	lines[7] = bytecode.New(bytecode.OpHalt)

	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{false}, 4)
	require.NoError(t, m.RunUntilDone())
	got := m.Globals[0]
	require.Equal(t, value.RNumber, got.Kind)
	assert.Equal(t, int64(15), got.AsInt64())
}

func TestMachineRefParameterSwap(t *testing.T) {
	swapLit := &value.FunctionLiteral{
		Name:      "swap",
		StartAddr: 4,
		EndAddr:   7,
		Arity:     2,
		Params:    []string{"a", "b"},
		RefParams: map[string]bool{"a": true, "b": true},
		MaxLocals: 3,
	}
	swapFn := value.NewFunction(swapLit)

	x := value.NewVariable("x", 0, true, false)
	y := value.NewVariable("y", 1, true, false)
	a := value.NewVariable("a", 0, false, false)
	b := value.NewVariable("b", 1, false, false)
	temp := value.NewTemp(1, 2)

	lines := make([]*bytecode.InstructionLine, 8)
	lines[0] = bytecode.New(bytecode.OpPushParam, x)
	lines[1] = bytecode.New(bytecode.OpPushParam, y)
	lines[2] = bytecode.New(bytecode.OpCallGlobal, nil, swapFn)
	lines[3] = bytecode.New(bytecode.OpHalt)
	lines[4] = bytecode.New(bytecode.OpAssign, temp, a)
	lines[5] = bytecode.New(bytecode.OpAssign, a, b)
	lines[6] = bytecode.New(bytecode.OpAssign, b, temp)
	lines[7] = bytecode.New(bytecode.OpReturn)

	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 2, []bool{false, false}, 0)
	m.Globals[0] = value.NewRVInt64(10)
	m.Globals[1] = value.NewRVInt64(20)

	require.NoError(t, m.RunUntilDone())
	assert.Equal(t, int64(20), m.Globals[0].AsInt64(), "expected x swapped to 20")
	assert.Equal(t, int64(10), m.Globals[1].AsInt64(), "expected y swapped to 10")
}

func TestMachineDivisionByZeroCaughtByTry(t *testing.T) {
	divResult := value.NewTemp(1, 2)
	caught := value.NewTemp(2, 1)
	result := value.NewVariable("result", 0, true, false)

	lines := make([]*bytecode.InstructionLine, 5)
	lines[0] = bytecode.New(bytecode.OpTryBlock, value.NewTryCatch(3, -1), caught)
	lines[1] = bytecode.New(bytecode.OpDiv, divResult, value.NewInt64(10), value.NewInt64(0))
	lines[2] = bytecode.New(bytecode.OpGoto, value.NewInt64(4))
	lines[3] = bytecode.New(bytecode.OpAssign, result, value.NewInt64(-1))
	lines[4] = bytecode.New(bytecode.OpHalt)

	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{false}, 3)
	require.NoError(t, m.RunUntilDone())
	assert.Equal(t, int64(-1), m.Globals[0].AsInt64(), "expected catch handler to run and set result=-1")
	caughtVal := m.Frames[0].Locals[1]
	assert.Equal(t, value.RObject, caughtVal.Kind, "expected the caught register to hold the thrown error object")
}

func TestMachineUnhandledThrowReportsError(t *testing.T) {
	lines := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpThrow, value.NewString("boom")),
		bytecode.New(bytecode.OpHalt),
	}
	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 0, nil, 1)
	err := m.RunUntilDone()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.Sentinel(ferrors.UnhandledThrow)))
}

func TestMachineRunForPausesCooperatively(t *testing.T) {
	// An infinite loop: GOTO 0. RunFor with a tiny budget must return
	// with State Paused rather than hang, once the deadline sampling
	// interval elapses.
	lines := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpGoto, value.NewInt64(0)),
	}
	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 0, nil, 0)
	require.NoError(t, m.RunFor(1))
	assert.Equal(t, Paused, m.State)
}

func TestMachineIncrementIntUnrestrictedBypassesSolidCheck(t *testing.T) {
	// A solid (readonly) loop counter: ordinary ASSIGN would be rejected
	// on the second write, but INCR_UNRESTRICTED must bypass the check
	// entirely, the way a for-loop induction variable needs to.
	counter := value.NewVariable("i", 0, true, true)
	lines := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpIncrementIntUnrestricted, counter),
		bytecode.New(bytecode.OpIncrementIntUnrestricted, counter),
		bytecode.New(bytecode.OpHalt),
	}
	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{true}, 0)
	require.NoError(t, m.RunUntilDone())
	assert.Equal(t, int64(2), m.Globals[0].AsInt64())
}

func TestMachineGetSetStaticField(t *testing.T) {
	st := symbols.NewStructSymbol("Counter")
	st.AddStaticField("total", value.NewInt64(0))

	dest := value.NewVariable("out", 0, true, false)
	lines := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpSetStatic, value.NewString("Counter"), value.NewString("total"), value.NewInt64(7)),
		bytecode.New(bytecode.OpGetStatic, dest, value.NewString("Counter"), value.NewString("total")),
		bytecode.New(bytecode.OpHalt),
	}
	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{false}, 0)
	m.RegisterStruct(st)
	require.NoError(t, m.RunUntilDone())
	assert.Equal(t, int64(7), m.Globals[0].AsInt64())
}

// TestMachineCallStaticNoReceiver exercises CALL_STATIC dispatching to a
// struct-level method with no implicit receiver bound into register 0.
func TestMachineCallStaticNoReceiver(t *testing.T) {
	st := symbols.NewStructSymbol("Registry")
	method := symbols.NewFunctionSymbol("next", nil)
	method.StartAddr = 2
	method.EndAddr = 2
	method.MaxLocals = 0
	st.AddStaticMethod(method)

	dest := value.NewVariable("out", 0, true, false)
	lines := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpCallStatic, dest, value.NewString("Registry"), value.NewString("next__0")),
		bytecode.New(bytecode.OpHalt),
		bytecode.New(bytecode.OpReturnValue, value.NewInt64(99)),
	}
	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{false}, 0)
	m.RegisterStruct(st)
	require.NoError(t, m.RunUntilDone())
	assert.Equal(t, int64(99), m.Globals[0].AsInt64())
}

func TestMachinePushElementGrowsList(t *testing.T) {
	listReg := value.NewVariable("xs", 0, true, false)
	lines := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpNewList, listReg, value.NewList([]*value.Value{value.NewInt64(1)})),
		bytecode.New(bytecode.OpPushElement, listReg, value.NewInt64(2)),
		bytecode.New(bytecode.OpPushElement, listReg, value.NewInt64(3)),
		bytecode.New(bytecode.OpHalt),
	}
	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 1, []bool{false}, 0)
	require.NoError(t, m.RunUntilDone())
	list, ok := m.Globals[0].Obj.(*value.ListObject)
	require.True(t, ok)
	require.Len(t, list.Elements, 3)
	assert.Equal(t, int64(1), list.Elements[0].AsInt64())
	assert.Equal(t, int64(2), list.Elements[1].AsInt64())
	assert.Equal(t, int64(3), list.Elements[2].AsInt64())
}

func TestMachineToStringAndGetType(t *testing.T) {
	strDest := value.NewVariable("s", 0, true, false)
	typeDest := value.NewVariable("ty", 1, true, false)
	lines := []*bytecode.InstructionLine{
		bytecode.New(bytecode.OpToString, strDest, value.NewInt64(42)),
		bytecode.New(bytecode.OpGetType, typeDest, value.NewInt64(42)),
		bytecode.New(bytecode.OpHalt),
	}
	chunk := bytecode.NewChunk(lines)
	m := NewMachine(chunk, symbols.NewFunctionTable(), 2, []bool{false, false}, 0)
	require.NoError(t, m.RunUntilDone())

	strObj, ok := m.Globals[0].Obj.(*value.StringObject)
	require.True(t, ok)
	assert.Equal(t, "42", strObj.S)

	tyObj, ok := m.Globals[1].Obj.(*value.StringObject)
	require.True(t, ok)
	assert.Equal(t, "int64", tyObj.S)
}
