package ferrors

import (
	"fmt"
	"strings"
)

// RuntimeKind distinguishes the runtime error subkinds the VM raises.
type RuntimeKind uint8

const (
	TypeMismatch RuntimeKind = iota
	DivisionByZero
	IndexOutOfRange
	UndefinedName
	ArityMismatch
	ReadonlyViolation
	UnhandledThrow
	StackOverflow
	LibraryDenied
)

func (k RuntimeKind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case DivisionByZero:
		return "DivisionByZero"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case UndefinedName:
		return "UndefinedName"
	case ArityMismatch:
		return "ArityMismatch"
	case ReadonlyViolation:
		return "ReadonlyViolation"
	case UnhandledThrow:
		return "UnhandledThrow"
	case StackOverflow:
		return "StackOverflow"
	case LibraryDenied:
		return "LibraryDenied"
	default:
		return "Unknown"
	}
}

// StackFrame is one entry in a RuntimeError's captured call trace.
type StackFrame struct {
	FunctionName string // demangled
	IP           int
}

// RuntimeError is what the VM returns for every failure during
// execution. It carries enough context to reproduce and display the
// failure without re-running the program: the offending instruction's
// address, the demangled function name it occurred in, a truncated
// locals snapshot, the operand stack at the time, and the call chain.
type RuntimeError struct {
	Kind         RuntimeKind
	Message      string
	IP           int
	FunctionName string // demangled
	LocalsSnap   string // truncated to 150 chars
	OperandStack []string
	Instruction  string // bytecode dump of the offending line
	Trace        []StackFrame
}

const localsSnapMaxLen = 150

// NewRuntimeError constructs a RuntimeError, truncating the locals
// snapshot to localsSnapMaxLen characters so a deeply nested structure
// doesn't blow up an error message.
func NewRuntimeError(kind RuntimeKind, message string, ip int, functionName string, locals []string, operandStack []string, instruction string, trace []StackFrame) *RuntimeError {
	snap := strings.Join(locals, ", ")
	if len(snap) > localsSnapMaxLen {
		snap = snap[:localsSnapMaxLen] + "..."
	}
	return &RuntimeError{
		Kind:         kind,
		Message:      message,
		IP:           ip,
		FunctionName: functionName,
		LocalsSnap:   snap,
		OperandStack: operandStack,
		Instruction:  instruction,
		Trace:        trace,
	}
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (at %s:%d)", e.Kind, e.Message, e.FunctionName, e.IP)
	if e.Instruction != "" {
		fmt.Fprintf(&b, " [%s]", e.Instruction)
	}
	if e.LocalsSnap != "" {
		fmt.Fprintf(&b, " locals={%s}", e.LocalsSnap)
	}
	for _, frame := range e.Trace {
		fmt.Fprintf(&b, "\n  at %s:%d", frame.FunctionName, frame.IP)
	}
	return b.String()
}

// Is supports errors.Is comparisons by RuntimeKind alone, so callers can
// write `errors.Is(err, ferrors.Sentinel(ferrors.DivisionByZero))`-style
// checks against a sentinel built with just a Kind set.
func (e *RuntimeError) Is(target error) bool {
	other, ok := target.(*RuntimeError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel returns a minimal RuntimeError carrying only a Kind, suitable
// as the target of an errors.Is comparison.
func Sentinel(kind RuntimeKind) *RuntimeError {
	return &RuntimeError{Kind: kind}
}
