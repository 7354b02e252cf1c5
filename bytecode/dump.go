package bytecode

import (
	"fmt"
	"io"
	"strings"

	"github.com/fluence-lang/fluence/value"
)

// Dump writes chunk to w in the fixed-width column format the `fluence
// dump` subcommand and test fixtures rely on:
//
//	INDEX(D4) | OPCODE(25) | LHS(40) | RHS(55) | RHS2(40) | RHS3(40)
//
// Null operands render literally as "null". The format is whitespace
// padded, not delimited, so column widths are load-bearing: do not reflow
// them without updating every test that compares dump output verbatim.
func Dump(w io.Writer, chunk *Chunk) error {
	for i, line := range chunk.Instructions {
		if err := dumpLine(w, i, line); err != nil {
			return err
		}
	}
	return nil
}

func dumpLine(w io.Writer, index int, line *InstructionLine) error {
	_, err := fmt.Fprintf(w, "%s | %s | %s | %s | %s | %s\n",
		fmt.Sprintf("%04d", index),
		padRight(line.Op.String(), 25),
		padRight(operandString(line.Lhs), 40),
		padRight(operandString(line.Rhs), 55),
		padRight(operandString(line.Rhs2), 40),
		padRight(operandString(line.Rhs3), 40),
	)
	return err
}

// operandString renders a (possibly nil) operand. *value.Value.ByteCodeString
// already returns "null" for a nil receiver, so a nil pointer here is safe
// to call directly.
func operandString(v *value.Value) string {
	return v.ByteCodeString()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// DumpString is a convenience wrapper returning Dump's output as a string,
// used by tests that compare fixture output directly.
func DumpString(chunk *Chunk) string {
	var b strings.Builder
	_ = Dump(&b, chunk)
	return b.String()
}
