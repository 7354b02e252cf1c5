package value

import "sync"

// The three object kinds created and discarded on every iteration of a
// hot loop get a sync.Pool: lists (spread/concat-heavy code), iterators
// (every `for x in ...`), and boxed chars (every character visited while
// iterating a string). Everything else is cheap enough, or long-lived
// enough, not to need pooling.

var listPool = sync.Pool{New: func() any { return &ListObject{} }}

// GetList returns a ListObject from the pool with room for at least
// capacity elements and a zero length.
func GetList(capacity int) *ListObject {
	l := listPool.Get().(*ListObject)
	if cap(l.Elements) < capacity {
		l.Elements = make([]RuntimeValue, 0, capacity)
	} else {
		l.Elements = l.Elements[:0]
	}
	return l
}

// PutList returns l to the pool. Callers must not retain references to l
// or its backing array afterward.
func PutList(l *ListObject) {
	if l == nil {
		return
	}
	l.Elements = l.Elements[:0]
	listPool.Put(l)
}

var iteratorPool = sync.Pool{New: func() any { return &IteratorObject{} }}

// GetIterator returns an IteratorObject from the pool, reset to iterate
// source starting at cursor in the given direction (+1 or -1).
func GetIterator(source Object, cursor, direction int64) *IteratorObject {
	it := iteratorPool.Get().(*IteratorObject)
	it.Source = source
	it.Cursor = cursor
	it.Direction = direction
	it.Done = false
	return it
}

// PutIterator returns it to the pool.
func PutIterator(it *IteratorObject) {
	if it == nil {
		return
	}
	it.Source = nil
	iteratorPool.Put(it)
}

var charPool = sync.Pool{New: func() any { return &CharObject{} }}

// GetChar returns a CharObject from the pool boxing c.
func GetChar(c rune) *CharObject {
	box := charPool.Get().(*CharObject)
	box.C = c
	return box
}

// PutChar returns box to the pool.
func PutChar(box *CharObject) {
	if box == nil {
		return
	}
	charPool.Put(box)
}
