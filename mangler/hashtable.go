package mangler

// Table is a small open-addressed string-keyed hash table mapping mangled
// names to integer indices (register slots, constant-pool indices, function
// table rows). It exists because the hot compilation path does many
// thousands of "have I seen this mangled name before" lookups and a
// open-addressed table with linear probing avoids the bucket/pointer
// overhead of Go's built-in map for that access pattern.
type Table struct {
	keys   []string
	values []int
	used   []bool
	count  int
}

// NewTable constructs a hash table with room for at least capacity entries.
func NewTable(capacity int) *Table {
	size := nextPow2(capacity*2 + 8)
	return &Table{
		keys:   make([]string, size),
		values: make([]int, size),
		used:   make([]bool, size),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func fnv1a(s string) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}

// Put inserts or overwrites key -> value, growing the table if the load
// factor would exceed 0.7.
func (t *Table) Put(key string, value int) {
	if (t.count+1)*10 >= len(t.keys)*7 {
		t.grow()
	}
	idx := t.slotFor(key)
	if !t.used[idx] {
		t.count++
	}
	t.keys[idx] = key
	t.values[idx] = value
	t.used[idx] = true
}

// Get looks up key, returning (value, true) if present.
func (t *Table) Get(key string) (int, bool) {
	if len(t.keys) == 0 {
		return 0, false
	}
	mask := uint64(len(t.keys) - 1)
	idx := fnv1a(key) & mask
	for t.used[idx] {
		if t.keys[idx] == key {
			return t.values[idx], true
		}
		idx = (idx + 1) & mask
	}
	return 0, false
}

func (t *Table) slotFor(key string) uint64 {
	mask := uint64(len(t.keys) - 1)
	idx := fnv1a(key) & mask
	for t.used[idx] && t.keys[idx] != key {
		idx = (idx + 1) & mask
	}
	return idx
}

func (t *Table) grow() {
	oldKeys, oldValues, oldUsed := t.keys, t.values, t.used
	newSize := len(t.keys) * 2
	if newSize == 0 {
		newSize = 16
	}
	t.keys = make([]string, newSize)
	t.values = make([]int, newSize)
	t.used = make([]bool, newSize)
	t.count = 0
	for i, used := range oldUsed {
		if used {
			t.Put(oldKeys[i], oldValues[i])
		}
	}
}

// Len reports the number of entries stored.
func (t *Table) Len() int {
	return t.count
}
