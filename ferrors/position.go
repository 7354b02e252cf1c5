// Package ferrors defines Fluence's error taxonomy: LexerError and
// ParserError as contract types only (no lexer or parser ships in this
// module — the concrete source grammar is a front-end concern outside
// this specification), and RuntimeError with the subkinds the VM raises.
package ferrors

import "fmt"

// Position is a source location: file index (into a project.FileTable),
// line, and column. It is defined locally rather than imported from an
// external lexer package, since no such package is part of this module.
type Position struct {
	FileIndex int
	Line      int
	Column    int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d:%d", p.FileIndex, p.Line, p.Column)
}
