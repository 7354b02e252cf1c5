package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthiness(t *testing.T) {
	cases := []struct {
		v    RuntimeValue
		want bool
	}{
		{RVNil, false},
		{RVFalse, false},
		{RVTrue, true},
		{NewRVInt64(0), false},
		{NewRVInt64(1), true},
		{NewRVFloat64(0.0), false},
		{NewRVObject(&StringObject{S: ""}), false},
		{NewRVObject(&StringObject{S: "x"}), true},
		{NewRVObject(&ListObject{}), false},
	}
	for i, c := range cases {
		assert.Equalf(t, c.want, c.v.Truthy(), "case %d", i)
	}
}

func TestPromoteNumericWidestWins(t *testing.T) {
	assert.Equal(t, Int64, PromoteNumeric(Int32, Int64), "expected Int64 to win over Int32")
	assert.Equal(t, Float32, PromoteNumeric(Int64, Float32), "expected Float32 to win over Int64")
	assert.Equal(t, Float64, PromoteNumeric(Float32, Float64), "expected Float64 to win over Float32")
}

func TestDivisionAlwaysYieldsFloat64(t *testing.T) {
	result, err := Div(NewRVInt64(7), NewRVInt64(2))
	require.NoError(t, err)
	assert.Equal(t, Float64, result.NumSub)
	assert.Equal(t, 3.5, result.F64)
}

func TestDivisionByZero(t *testing.T) {
	_, err := Div(NewRVInt64(1), NewRVInt64(0))
	require.Error(t, err)
	_, ok := err.(DivisionByZeroError)
	assert.True(t, ok, "expected DivisionByZeroError, got %T", err)
}

func TestArithmeticIntegerPromotion(t *testing.T) {
	sum := Add(NewRVInt32(2), NewRVInt64(3))
	assert.Equal(t, Int64, sum.NumSub)
	assert.Equal(t, int64(5), sum.AsInt64())
}

func TestArithmeticFloatPromotion(t *testing.T) {
	product := Mul(NewRVInt64(2), NewRVFloat64(1.5))
	assert.Equal(t, Float64, product.NumSub)
	assert.Equal(t, 3.0, product.F64)
}

func TestEqualByKindAndContent(t *testing.T) {
	a := NewRVObject(&StringObject{S: "abc"})
	b := NewRVObject(&StringObject{S: "abc"})
	assert.True(t, a.Equal(b), "equal-content strings should compare equal despite distinct objects")

	c := NewRVInt64(5)
	d := NewRVFloat64(5)
	assert.True(t, c.Equal(d), "numbers should compare equal across subtypes after promotion")

	assert.False(t, RVNil.Equal(RVFalse), "nil and false must not compare equal: distinct kinds")
}

func TestOrderingComparisons(t *testing.T) {
	assert.True(t, LessThan(NewRVInt64(1), NewRVInt64(2)))
	assert.False(t, LessThan(NewRVInt64(2), NewRVInt64(2)))
	assert.True(t, GreaterOrEqual(NewRVFloat64(2), NewRVInt64(2)))
	assert.True(t, GreaterThan(NewRVInt64(3), NewRVInt64(2)))
	assert.True(t, LessOrEqual(NewRVInt64(2), NewRVInt64(2)))
}

// TestOrderingComparisonsNaN guards IEEE-754 semantics directly at the
// value layer: every ordering comparison against a NaN operand must be
// false, never true.
func TestOrderingComparisonsNaN(t *testing.T) {
	nan := NewRVFloat64(math.NaN())
	one := NewRVFloat64(1)
	assert.False(t, LessThan(nan, one))
	assert.False(t, GreaterThan(nan, one))
	assert.False(t, LessOrEqual(nan, one))
	assert.False(t, GreaterOrEqual(nan, one))
}

func TestRefCellGetSet(t *testing.T) {
	backing := NewRVInt64(10)
	cell := &RefCellObject{Target: &backing}
	assert.Equal(t, int64(10), cell.Get().AsInt64())
	cell.Set(NewRVInt64(20))
	assert.Equal(t, int64(20), backing.AsInt64(), "expected write-through to backing register")
}
