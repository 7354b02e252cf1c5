package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteCodeStringLiterals(t *testing.T) {
	cases := []struct {
		v    *Value
		want string
	}{
		{NewInt64(42), "42"},
		{NewFloat64(3.5), "3.5"},
		{NewString("hi"), `"hi"`},
		{NewChar('x'), "'x'"},
		{NewBool(true), "true"},
		{NewNil(), "nil"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.v.ByteCodeString())
	}
}

func TestByteCodeStringNilValue(t *testing.T) {
	var v *Value
	assert.Equal(t, "null", v.ByteCodeString(), "expected null operand rendering for nil *Value")
}

func TestIsLiteralConstant(t *testing.T) {
	assert.True(t, NewInt32(1).IsLiteralConstant(), "number literal should be constant")
	assert.False(t, NewVariable("x", 0, false, false).IsLiteralConstant(), "variable reference must not be treated as constant")
	assert.False(t, NewTemp(1, 0).IsLiteralConstant(), "temp reference must not be treated as constant")
}

func TestVariableByteCodeStringScope(t *testing.T) {
	global := NewVariable("counter", 3, true, false)
	local := NewVariable("counter", 3, false, false)
	assert.NotEqual(t, global.ByteCodeString(), local.ByteCodeString(), "global and local variable dumps should differ")
}

func TestLiteralToRuntimeConvertsEachLiteralKind(t *testing.T) {
	assert.Equal(t, int64(42), LiteralToRuntime(NewInt64(42)).AsInt64())
	assert.Equal(t, "hi", LiteralToRuntime(NewString("hi")).String())
	assert.True(t, LiteralToRuntime(NewBool(true)).Truthy())
	assert.Equal(t, RNil, LiteralToRuntime(NewNil()).Kind)
}
