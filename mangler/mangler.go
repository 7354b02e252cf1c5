// Package mangler implements name mangling, process-wide string interning,
// and a small hash table used by the symbol table and compile-time Value
// model to avoid repeated allocation of identical names.
package mangler

import (
	"strconv"
	"strings"
)

// Mangle encodes a base name with its arity so overloads by arity can
// coexist in a single symbol table: Mangle("add", 2) == "add__2".
func Mangle(name string, arity int) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	b.WriteString(name)
	b.WriteString("__")
	b.WriteString(strconv.Itoa(arity))
	return b.String()
}

// Demangle splits a mangled name back into its base name and arity. It
// returns ok=false if name does not carry a recognizable "__N" suffix.
func Demangle(mangled string) (name string, arity int, ok bool) {
	idx := strings.LastIndex(mangled, "__")
	if idx < 0 || idx == len(mangled)-2 {
		return mangled, 0, false
	}
	arityStr := mangled[idx+2:]
	n, err := strconv.Atoi(arityStr)
	if err != nil {
		return mangled, 0, false
	}
	return mangled[:idx], n, true
}
