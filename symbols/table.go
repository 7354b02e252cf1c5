package symbols

import "github.com/fluence-lang/fluence/mangler"

// FunctionTable indexes every function symbol in a compilation unit by its
// mangled name, backed by mangler.Table, for O(1) Lookup. The VM's
// CALL_GLOBAL does not consult it (its callee operand carries the
// FunctionLiteral directly), and the optimizer only walks All.
type FunctionTable struct {
	index *mangler.Table
	funcs []*FunctionSymbol
}

func NewFunctionTable() *FunctionTable {
	return &FunctionTable{index: mangler.NewTable(32)}
}

func (t *FunctionTable) Add(fn *FunctionSymbol) {
	t.index.Put(fn.Mangled, len(t.funcs))
	t.funcs = append(t.funcs, fn)
}

func (t *FunctionTable) Lookup(mangled string) (*FunctionSymbol, bool) {
	idx, ok := t.index.Get(mangled)
	if !ok {
		return nil, false
	}
	return t.funcs[idx], true
}

func (t *FunctionTable) Len() int {
	return len(t.funcs)
}

// All returns every registered function symbol, in registration order.
// The optimizer's address realignment pass (Compact) walks this slice to
// rewrite every function's StartAddr/EndAddr after an instruction is
// removed.
func (t *FunctionTable) All() []*FunctionSymbol {
	return t.funcs
}
