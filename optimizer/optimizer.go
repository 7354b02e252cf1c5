// Package optimizer implements Fluence's peephole optimizer: seven
// fixed-order passes that fuse adjacent instructions, followed by a
// single forward compaction pass (a prefix sum of removed slots) that
// removes the tombstones those fusions leave behind and realigns every
// absolute address reference.
//
// Each pass never shrinks the instruction slice directly. Removing an
// instruction mid-pass would shift every later pass's addresses out from
// under it, so a removed instruction is instead replaced in place with an
// OpNop tombstone; Compact, run once after all seven passes, deletes every
// tombstone and rewrites jump targets, try/catch addresses, and function
// boundaries exactly once.
package optimizer

import (
	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/symbols"
)

// OptimizationStats tracks original size, optimized size, and
// pass-by-pass counts (see pass for what each pass counts) so tooling that
// reports on a build has somewhere to pull numbers from.
type OptimizationStats struct {
	OriginalSize  int
	OptimizedSize int
	PassStats     map[string]int
}

// Optimizer runs the fixed pass pipeline over a Chunk.
type Optimizer struct{}

func NewOptimizer() *Optimizer {
	return &Optimizer{}
}

// pass is one named peephole transformation. It scans instrs in place,
// tombstoning fused-away instructions with OpNop, and returns how many
// instructions it removed. ConvertToIncrementsDecrements is the exception:
// it rewrites in place, tombstones nothing, and returns how many
// instructions it rewrote.
type pass struct {
	name string
	run  func(instrs []*bytecode.InstructionLine) int
}

func (o *Optimizer) passOrder() []pass {
	return []pass{
		{"FuseGotoConditionals", fuseGotoConditionals},
		{"RemoveConstTempRegisters", removeConstTempRegisters},
		{"FuseCompoundAssignments", fuseCompoundAssignments},
		{"FuseSimpleAssignments", fuseSimpleAssignments},
		{"FusePushParams", fusePushParams},
		{"ConvertToIncrementsDecrements", convertToIncrementsDecrements},
		{"FuseComparisonBranches", fuseComparisonBranches},
	}
}

// OptimizeChunk runs the seven passes over chunk in fixed order, then
// compacts the result and realigns every absolute address reference
// (jump targets, try/catch addresses, and every function/lambda's
// start/end address across funcs and any embedded lambda literals).
func (o *Optimizer) OptimizeChunk(chunk *bytecode.Chunk, funcs *symbols.FunctionTable) OptimizationStats {
	stats := OptimizationStats{
		OriginalSize: len(chunk.Instructions),
		PassStats:    make(map[string]int),
	}
	for _, p := range o.passOrder() {
		removed := p.run(chunk.Instructions)
		stats.PassStats[p.name] = removed
	}
	Compact(chunk, funcs)
	stats.OptimizedSize = len(chunk.Instructions)
	return stats
}

// tombstone marks instrs[i] as removed: a later pass and Compact both
// recognize OpNop with nil operands as "not really here".
func tombstone(instrs []*bytecode.InstructionLine, i int) {
	instrs[i] = bytecode.New(bytecode.OpNop)
}

// nextReal returns the index of the next non-tombstoned instruction at or
// after i, or -1 if none remains. Peephole patterns match across
// tombstones left by earlier passes so that, e.g., a comparison fused by
// an earlier pass doesn't block a later pass from seeing what's now
// logically adjacent to it.
func nextReal(instrs []*bytecode.InstructionLine, i int) int {
	for ; i < len(instrs); i++ {
		if instrs[i].Op != bytecode.OpNop {
			return i
		}
	}
	return -1
}
