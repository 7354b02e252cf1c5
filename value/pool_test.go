package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListPoolResetsLength(t *testing.T) {
	l := GetList(4)
	l.Elements = append(l.Elements, NewRVInt64(1), NewRVInt64(2))
	PutList(l)

	l2 := GetList(4)
	assert.Empty(t, l2.Elements, "expected pooled list to come back empty")
}

func TestIteratorPoolResetsState(t *testing.T) {
	src := &RangeObject{Start: 0, End: 10}
	it := GetIterator(src, 0, 1)
	it.Cursor = 7
	it.Done = true
	PutIterator(it)

	it2 := GetIterator(src, 3, -1)
	assert.Equal(t, int64(3), it2.Cursor, "expected fresh iterator state")
	assert.False(t, it2.Done, "expected fresh iterator state")
}

func TestCharPoolBoxesValue(t *testing.T) {
	c := GetChar('z')
	assert.Equal(t, 'z', c.C)
	PutChar(c)
}
