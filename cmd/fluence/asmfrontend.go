package main

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/embed"
	"github.com/fluence-lang/fluence/mangler"
	"github.com/fluence-lang/fluence/symbols"
	"github.com/fluence-lang/fluence/value"
)

// asmFrontend implements embed.Frontend against a small line-based
// bytecode assembly text format instead of Fluence source, since no
// lexer/parser ships in this repo. It exists so `fluence
// run`/`fluence repl`/`fluence dump` have a concrete, reference front end
// to exercise embed.Engine with, the same way the VM's own tests exercise
// it by hand-assembling bytecode.InstructionLine lists directly.
//
// Format, line by line:
//
//	; a comment
//	.global counter [solid]        declare a global, in order (register 0, 1, ...)
//	.func add(a, b) [ref: a]        open a function body; params bind l0, l1, ...
//	  ADD t2, l0, l1
//	  RETURN_VAL t2
//	.endfunc
//	label:                          a jump target within the current block
//	ADD t0, #2, #3                  mnemonic + comma-separated operands
//
// Operand syntax: `$name` (global by declared name), `l<N>`/`t<N>` (local
// register N within the current function or the top-level block), `#N`
// or `#N.N` (numeric literal), `"text"` (string literal), `true`/`false`,
// `nil`, `_` (no operand), `@label` (resolved jump address), or a bare
// name matching a declared function (a callee operand for CALL_GLOBAL).
type asmFrontend struct{}

func (asmFrontend) Compile(source []byte, fileIndex int) (*embed.CompileResult, error) {
	return assemble(source, fileIndex)
}

type asmInstr struct {
	op       string
	operands []string
	line     int
}

type asmBlock struct {
	name      string
	params    []string
	refParams map[string]bool
	instrs    []asmInstr
	labels    map[string]int
	maxReg    int
}

func newBlock(name string) *asmBlock {
	return &asmBlock{name: name, refParams: make(map[string]bool), labels: make(map[string]int), maxReg: -1}
}

type globalDecl struct {
	name  string
	solid bool
}

func assemble(source []byte, fileIndex int) (*embed.CompileResult, error) {
	var globalsDecl []globalDecl
	main := newBlock("")
	var funcs []*asmBlock
	cur := main

	scanner := bufio.NewScanner(bytes.NewReader(source))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if idx := strings.IndexByte(raw, ';'); idx >= 0 {
			raw = strings.TrimSpace(raw[:idx])
		}
		if raw == "" {
			continue
		}

		switch {
		case strings.HasPrefix(raw, ".global "):
			decl, err := parseGlobalDecl(raw)
			if err != nil {
				return nil, fmt.Errorf("asm:%d: %w", lineNo, err)
			}
			globalsDecl = append(globalsDecl, decl)
			continue
		case strings.HasPrefix(raw, ".func "):
			block, err := parseFuncHeader(raw)
			if err != nil {
				return nil, fmt.Errorf("asm:%d: %w", lineNo, err)
			}
			funcs = append(funcs, block)
			cur = block
			continue
		case raw == ".endfunc":
			cur = main
			continue
		}

		if strings.HasSuffix(raw, ":") && !strings.ContainsAny(raw, " \t,") {
			cur.labels[strings.TrimSuffix(raw, ":")] = len(cur.instrs)
			continue
		}

		instr, err := parseInstrLine(raw)
		if err != nil {
			return nil, fmt.Errorf("asm:%d: %w", lineNo, err)
		}
		instr.line = lineNo
		cur.instrs = append(cur.instrs, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	globalScope := symbols.NewGlobalScope()
	globalSolidMask := make([]bool, 0, len(globalsDecl))
	for _, g := range globalsDecl {
		globalScope.Declare(g.name, g.solid)
		globalSolidMask = append(globalSolidMask, g.solid)
	}

	// Lay out addresses: main first, then each function body in
	// declaration order, mirroring the convention the VM tests use
	// (main program at address 0, function bodies following it).
	base := len(main.instrs)
	literals := make(map[string]*value.FunctionLiteral, len(funcs))
	funcTable := symbols.NewFunctionTable()
	for _, fn := range funcs {
		lit := &value.FunctionLiteral{
			Name:      fn.name,
			StartAddr: base,
			EndAddr:   base + len(fn.instrs) - 1,
			Arity:     len(fn.params),
			Params:    fn.params,
			RefParams: fn.refParams,
		}
		literals[fn.name] = lit
		funcTable.Add(&symbols.FunctionSymbol{
			Name:       fn.name,
			Mangled:    mangler.Mangle(fn.name, len(fn.params)),
			ArityCount: len(fn.params),
			StartAddr:  lit.StartAddr,
			EndAddr:    lit.EndAddr,
		})
		base += len(fn.instrs)
	}

	var lines []*bytecode.InstructionLine
	blockBase := 0
	for _, blk := range append([]*asmBlock{main}, funcs...) {
		for _, instr := range blk.instrs {
			line, err := buildInstr(instr, blk, blockBase, fileIndex, globalScope, literals)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
		blockBase += len(blk.instrs)
	}

	// Now that every operand has been parsed (and so every register
	// reference observed), fix up each function literal's MaxLocals.
	// FunctionLiteral is referenced by pointer from every CALL_GLOBAL
	// operand built above, so mutating it here is visible everywhere.
	for _, fn := range funcs {
		lit := literals[fn.name]
		lit.MaxLocals = fn.maxReg + 1
		if syms := funcTable.All(); len(syms) > 0 {
			for _, sym := range syms {
				if sym.Name == fn.name {
					sym.MaxLocals = lit.MaxLocals
				}
			}
		}
	}

	return &embed.CompileResult{
		Chunk:              bytecode.NewChunk(lines),
		Functions:          funcTable,
		GlobalScope:        globalScope,
		GlobalSolidMask:    globalSolidMask,
		TopLevelLocalCount: main.maxReg + 1,
	}, nil
}

func parseGlobalDecl(raw string) (globalDecl, error) {
	fields := strings.Fields(strings.TrimPrefix(raw, ".global "))
	if len(fields) == 0 {
		return globalDecl{}, fmt.Errorf("malformed .global directive")
	}
	decl := globalDecl{name: fields[0]}
	if len(fields) > 1 && fields[1] == "solid" {
		decl.solid = true
	}
	return decl, nil
}

func parseFuncHeader(raw string) (*asmBlock, error) {
	body := strings.TrimPrefix(raw, ".func ")
	open := strings.IndexByte(body, '(')
	closeParen := strings.IndexByte(body, ')')
	if open < 0 || closeParen < open {
		return nil, fmt.Errorf("malformed .func header %q", raw)
	}
	name := strings.TrimSpace(body[:open])
	block := newBlock(name)
	paramList := strings.TrimSpace(body[open+1 : closeParen])
	if paramList != "" {
		for _, p := range strings.Split(paramList, ",") {
			block.params = append(block.params, strings.TrimSpace(p))
		}
	}
	rest := strings.TrimSpace(body[closeParen+1:])
	if idx := strings.Index(rest, "ref:"); idx >= 0 {
		refList := strings.Trim(strings.TrimSpace(rest[idx+len("ref:"):]), "[]")
		for _, r := range strings.Split(refList, ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				block.refParams[r] = true
			}
		}
	}
	return block, nil
}

func parseInstrLine(raw string) (asmInstr, error) {
	fields := strings.SplitN(raw, " ", 2)
	instr := asmInstr{op: fields[0]}
	if len(fields) == 1 {
		return instr, nil
	}
	for _, tok := range splitOperands(fields[1]) {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			instr.operands = append(instr.operands, tok)
		}
	}
	return instr, nil
}

// splitOperands splits on commas outside of double-quoted strings, so a
// string literal operand may itself contain commas. Escapes are not
// recognised: every '"' toggles the in-string state.
func splitOperands(s string) []string {
	var out []string
	var b strings.Builder
	inString := false
	for _, r := range s {
		switch {
		case r == '"':
			inString = !inString
			b.WriteRune(r)
		case r == ',' && !inString:
			out = append(out, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	out = append(out, b.String())
	return out
}

func buildInstr(instr asmInstr, blk *asmBlock, blockBase, fileIndex int, globalScope *symbols.Scope, literals map[string]*value.FunctionLiteral) (*bytecode.InstructionLine, error) {
	op, ok := bytecode.ParseOpcodeName(instr.op)
	if !ok {
		return nil, fmt.Errorf("asm:%d: unknown opcode %q", instr.line, instr.op)
	}
	if op == bytecode.OpTryBlock {
		return buildTryBlock(instr, blk, blockBase, fileIndex, globalScope, literals)
	}
	operands := make([]*value.Value, 0, len(instr.operands))
	for _, tok := range instr.operands {
		v, err := parseOperand(tok, blk, blockBase, globalScope, literals)
		if err != nil {
			return nil, fmt.Errorf("asm:%d: %w", instr.line, err)
		}
		operands = append(operands, v)
	}
	line := bytecode.New(op, operands...)
	line.Debug = bytecode.DebugInfo{FileIndex: fileIndex, Line: instr.line}
	return line, nil
}

// buildTryBlock handles TRY specially: execTryBlock (vm/exec_objects.go)
// requires Lhs to hold a KindTryCatch value built by value.NewTryCatch,
// not a plain jump-address literal, so it can't go through the generic
// per-token parseOperand path every other jump-class opcode uses.
//
//	TRY @catchLabel[, l<N>]
func buildTryBlock(instr asmInstr, blk *asmBlock, blockBase, fileIndex int, globalScope *symbols.Scope, literals map[string]*value.FunctionLiteral) (*bytecode.InstructionLine, error) {
	if len(instr.operands) < 1 {
		return nil, fmt.Errorf("asm:%d: TRY requires a catch label", instr.line)
	}
	catchTok := instr.operands[0]
	if !strings.HasPrefix(catchTok, "@") {
		return nil, fmt.Errorf("asm:%d: TRY catch operand must be a @label", instr.line)
	}
	idx, ok := blk.labels[catchTok[1:]]
	if !ok {
		return nil, fmt.Errorf("asm:%d: undefined label %q", instr.line, catchTok[1:])
	}
	tryVal := value.NewTryCatch(blockBase+idx, -1)

	var caught *value.Value
	if len(instr.operands) > 1 {
		v, err := parseOperand(instr.operands[1], blk, blockBase, globalScope, literals)
		if err != nil {
			return nil, fmt.Errorf("asm:%d: %w", instr.line, err)
		}
		caught = v
	}

	line := bytecode.New(bytecode.OpTryBlock, tryVal, caught)
	line.Debug = bytecode.DebugInfo{FileIndex: fileIndex, Line: instr.line}
	return line, nil
}

func parseOperand(tok string, blk *asmBlock, blockBase int, globalScope *symbols.Scope, literals map[string]*value.FunctionLiteral) (*value.Value, error) {
	switch {
	case tok == "_":
		return nil, nil
	case tok == "nil":
		return value.NewNil(), nil
	case tok == "true":
		return value.NewBool(true), nil
	case tok == "false":
		return value.NewBool(false), nil
	case strings.HasPrefix(tok, "$"):
		name := tok[1:]
		sym, ok := globalScope.Resolve(name)
		if !ok {
			return nil, fmt.Errorf("undeclared global %q", name)
		}
		return value.NewVariable(name, sym.Register, true, sym.Solid), nil
	case strings.HasPrefix(tok, "@"):
		label := tok[1:]
		idx, ok := blk.labels[label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", label)
		}
		return value.NewInt64(int64(blockBase + idx)), nil
	case strings.HasPrefix(tok, "l") && isDigits(tok[1:]):
		n := mustAtoi(tok[1:])
		trackReg(blk, n)
		return value.NewVariable(tok, n, false, false), nil
	case strings.HasPrefix(tok, "t") && isDigits(tok[1:]):
		n := mustAtoi(tok[1:])
		trackReg(blk, n)
		return value.NewTemp(uint64(n), n), nil
	case strings.HasPrefix(tok, "\"") && strings.HasSuffix(tok, "\"") && len(tok) >= 2:
		return value.NewString(tok[1 : len(tok)-1]), nil
	case strings.HasPrefix(tok, "#"):
		return parseNumber(tok[1:])
	default:
		if lit, ok := literals[tok]; ok {
			return value.NewFunction(lit), nil
		}
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return value.NewInt64(n), nil
		}
		return nil, fmt.Errorf("unrecognized operand %q", tok)
	}
}

func trackReg(blk *asmBlock, n int) {
	if n > blk.maxReg {
		blk.maxReg = n
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseNumber(s string) (*value.Value, error) {
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %q: %w", s, err)
		}
		return value.NewFloat64(f), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad integer literal %q: %w", s, err)
	}
	return value.NewInt64(n), nil
}
