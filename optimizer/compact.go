package optimizer

import (
	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/symbols"
	"github.com/fluence-lang/fluence/value"
)

// Compact removes every OpNop tombstone the seven passes left behind and
// realigns every absolute address reference exactly once: jump targets,
// try/catch addresses embedded in operands, function/lambda literal
// start/end addresses embedded in operands, and every function symbol's
// start/end address in funcs.
//
// The remap rule is applied uniformly: for an old address `old`, its new
// address is old minus the number of removed instructions at indices less
// than old. Equivalently, applied one removal at a time:
// map_addr(old) = old > removedIndex ? old-1 : old.
func Compact(chunk *bytecode.Chunk, funcs *symbols.FunctionTable) {
	instrs := chunk.Instructions
	removed := make([]bool, len(instrs))
	for i, line := range instrs {
		removed[i] = line.Op == bytecode.OpNop && line.Lhs == nil && line.Rhs == nil && line.Rhs2 == nil && line.Rhs3 == nil
	}

	prefixRemoved := make([]int, len(instrs)+1)
	for i := 0; i < len(instrs); i++ {
		prefixRemoved[i+1] = prefixRemoved[i]
		if removed[i] {
			prefixRemoved[i+1]++
		}
	}
	newAddr := func(old int) int {
		if old < 0 {
			return old
		}
		if old >= len(prefixRemoved) {
			old = len(prefixRemoved) - 1
		}
		return old - prefixRemoved[old]
	}

	seen := make(map[*value.FunctionLiteral]bool)
	for _, line := range instrs {
		if line.Op == bytecode.OpNop {
			continue
		}
		if target, ok := line.JumpTarget(); ok {
			line.SetJumpTarget(newAddr(target))
		}
		for _, operand := range line.Operands() {
			remapOperandAddresses(operand, newAddr, seen)
		}
	}

	if funcs != nil {
		for _, fn := range funcs.All() {
			fn.StartAddr = newAddr(fn.StartAddr)
			fn.EndAddr = newAddr(fn.EndAddr)
		}
	}

	compacted := instrs[:0]
	for i, line := range instrs {
		if !removed[i] {
			compacted = append(compacted, line)
		}
	}
	chunk.Instructions = compacted
}

// remapOperandAddresses rewrites the absolute addresses embedded in a
// single operand value: TryCatch's two addresses, and a Function/Lambda
// literal's start/end addresses. It recurses into compound operands
// (Range, List, PropertyAccess, ElementAccess) since a literal embedded
// deep in an expression tree can itself carry a lambda. A FunctionLiteral
// shared by pointer across several operands is remapped only once: seen
// records every literal already remapped.
func remapOperandAddresses(v *value.Value, newAddr func(int) int, seen map[*value.FunctionLiteral]bool) {
	if v == nil {
		return
	}
	switch v.Kind {
	case value.KindTryCatch:
		v.TryCatch.CatchAddr = newAddr(v.TryCatch.CatchAddr)
		if v.TryCatch.FinallyAddr >= 0 {
			v.TryCatch.FinallyAddr = newAddr(v.TryCatch.FinallyAddr)
		}
	case value.KindFunction:
		if !seen[v.Function] {
			seen[v.Function] = true
			v.Function.StartAddr = newAddr(v.Function.StartAddr)
			v.Function.EndAddr = newAddr(v.Function.EndAddr)
		}
	case value.KindLambda:
		if !seen[v.Lambda.Function] {
			seen[v.Lambda.Function] = true
			v.Lambda.Function.StartAddr = newAddr(v.Lambda.Function.StartAddr)
			v.Lambda.Function.EndAddr = newAddr(v.Lambda.Function.EndAddr)
		}
	case value.KindRange:
		remapOperandAddresses(v.Range.Start, newAddr, seen)
		remapOperandAddresses(v.Range.End, newAddr, seen)
	case value.KindList:
		for _, elem := range v.List.Elements {
			remapOperandAddresses(elem, newAddr, seen)
		}
	case value.KindPropertyAccess:
		remapOperandAddresses(v.Property.Target, newAddr, seen)
	case value.KindElementAccess:
		remapOperandAddresses(v.Element.Target, newAddr, seen)
		remapOperandAddresses(v.Element.Index, newAddr, seen)
	}
}
