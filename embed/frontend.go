// Package embed implements the embedding API surface: Engine wraps a
// compiled program's vm.Machine together with the optimizer pass
// pipeline, the intrinsic library registry, and the allowed-library
// allow-list behind one constructor.
package embed

import (
	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/symbols"
)

// CompileResult is what a Frontend hands back after turning source text
// into a compiled unit: the optimizable instruction chunk, the function
// symbol table CALL_GLOBAL resolves against, every declared struct/enum,
// the global scope (for GetGlobal/SetGlobal's name lookup), the solid
// mask for the global register file, and how many registers the
// program's top-level code needs.
type CompileResult struct {
	Chunk              *bytecode.Chunk
	Functions          *symbols.FunctionTable
	Structs            []*symbols.StructSymbol
	Enums              []*symbols.EnumSymbol
	GlobalScope        *symbols.Scope
	GlobalSolidMask    []bool
	TopLevelLocalCount int
}

// Frontend turns Fluence source text into a CompileResult. No
// lexer/parser ships in this repo; Frontend is the contract a real one
// satisfies, keeping the VM from importing a concrete compiler package.
// fileIndex is the project.FileTable index the resulting chunk's
// DebugInfo should stamp onto every instruction it produces.
type Frontend interface {
	Compile(source []byte, fileIndex int) (*CompileResult, error)
}

// FrontendFactory constructs a fresh Frontend per compile, the way the
// teacher's CompilerFactory avoids sharing one compiler instance's state
// across unrelated compilations.
type FrontendFactory func() Frontend
