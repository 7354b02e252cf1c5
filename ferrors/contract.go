package ferrors

import "fmt"

// LexerError is the contract a front-end lexer is expected to satisfy
// when reporting a tokenization failure. No lexer ships in this module;
// this type exists so the VM's error-reporting plumbing (and any future
// front end) has a stable shape to construct and display.
type LexerError struct {
	Pos     Position
	Message string
}

func (e LexerError) Error() string {
	return fmt.Sprintf("lexer error at %s: %s", e.Pos, e.Message)
}

// ParserError is the contract a front-end parser is expected to satisfy
// when reporting a syntax error.
type ParserError struct {
	Pos     Position
	Message string
}

func (e ParserError) Error() string {
	return fmt.Sprintf("parser error at %s: %s", e.Pos, e.Message)
}
