package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluence-lang/fluence/value"
)

func TestVariableSymbolAssignOnce(t *testing.T) {
	v := &VariableSymbol{Name: "x", Solid: true}
	assert.True(t, v.AssignOnce(), "first assignment to a solid variable must succeed")
	assert.False(t, v.AssignOnce(), "second assignment to a solid variable must be rejected")
}

func TestMutableVariableAssignRepeatedly(t *testing.T) {
	v := &VariableSymbol{Name: "x", Solid: false}
	for i := 0; i < 5; i++ {
		assert.True(t, v.AssignOnce(), "mutable variable must allow repeated assignment")
	}
}

func TestFunctionSymbolMangling(t *testing.T) {
	fn := NewFunctionSymbol("add", []*ParameterSymbol{{Name: "a"}, {Name: "b"}})
	assert.Equal(t, "add__2", fn.Mangled)
	assert.Equal(t, 2, fn.Arity())
}

func TestFunctionSymbolRefParam(t *testing.T) {
	fn := NewFunctionSymbol("swap", []*ParameterSymbol{
		{Name: "a", IsRef: true},
		{Name: "b", IsRef: false},
	})
	assert.True(t, fn.IsRefParam(0), "expected parameter 0 to be by-reference")
	assert.False(t, fn.IsRefParam(1), "expected parameter 1 to be by-value")
	assert.False(t, fn.IsRefParam(5), "out-of-range parameter index must report false, not panic")
}

func TestStructSymbolMethodLookup(t *testing.T) {
	st := NewStructSymbol("Point")
	method := NewFunctionSymbol("distanceTo", []*ParameterSymbol{{Name: "other"}})
	st.AddMethod(method)

	found, ok := st.LookupMethod("distanceTo", 1)
	require.True(t, ok)
	assert.Same(t, method, found)
	assert.True(t, found.IsMethod)
	assert.Equal(t, "Point", found.ReceiverOf)
}

func TestStructSymbolStaticFieldLazySeedAndSet(t *testing.T) {
	st := NewStructSymbol("Counter")
	field := st.AddStaticField("total", value.NewInt64(0))

	assert.Equal(t, int64(0), field.Get().AsInt64(), "expected default seeded on first read")
	field.Set(value.NewRVInt64(7))
	assert.Equal(t, int64(7), field.Get().AsInt64())

	found, ok := st.StaticFields["total"]
	require.True(t, ok)
	assert.Same(t, field, found)
}

func TestStructSymbolStaticMethodLookup(t *testing.T) {
	st := NewStructSymbol("Registry")
	method := NewFunctionSymbol("instance", nil)
	st.AddStaticMethod(method)

	found, ok := st.LookupStaticMethod("instance", 0)
	require.True(t, ok)
	assert.Same(t, method, found)
	assert.True(t, found.IsStatic)
	assert.False(t, found.IsMethod, "a static method is not an instance method")
	assert.Equal(t, "Registry", found.ReceiverOf)
}

func TestScopeDeclareAndResolve(t *testing.T) {
	global := NewGlobalScope()
	fnScope := global.NewFunctionScope()
	block := fnScope.NewBlockScope()

	outer := fnScope.Declare("x", false)
	inner := block.Declare("y", false)

	assert.NotEqual(t, outer.Register, inner.Register, "sibling registers in the same function must not collide")
	_, ok := block.Resolve("x")
	assert.True(t, ok, "expected nested block to resolve outer-scope variable")
	_, ok = fnScope.Resolve("y")
	assert.False(t, ok, "outer scope must not see inner block's variable")
}

func TestGlobalVsLocalRegisterSpaces(t *testing.T) {
	global := NewGlobalScope()
	g := global.Declare("counter", false)
	assert.True(t, g.IsGlobal, "expected global-scope declaration to be marked global")

	fnScope := global.NewFunctionScope()
	l := fnScope.Declare("counter", false)
	assert.False(t, l.IsGlobal, "expected function-scope declaration to be marked local")
}

func TestFunctionTableLookup(t *testing.T) {
	table := NewFunctionTable()
	fn := NewFunctionSymbol("add", []*ParameterSymbol{{Name: "a"}, {Name: "b"}})
	table.Add(fn)

	found, ok := table.Lookup("add__2")
	require.True(t, ok)
	assert.Same(t, fn, found)
	assert.Equal(t, 1, table.Len())

	_, ok = table.Lookup("missing__0")
	assert.False(t, ok, "expected missing function to be absent")
}
