package embed

import (
	"fmt"
	"os"
	"time"

	"github.com/fluence-lang/fluence/ferrors"
	"github.com/fluence-lang/fluence/intrinsics"
	"github.com/fluence-lang/fluence/optimizer"
	"github.com/fluence-lang/fluence/project"
	"github.com/fluence-lang/fluence/symbols"
	"github.com/fluence-lang/fluence/value"
	"github.com/fluence-lang/fluence/vm"
)

// Engine is the host-facing embedding surface: compile a program, run it
// cooperatively, and cross the host/script boundary through
// GetGlobal/SetGlobal and the intrinsic library registry. One Engine
// holds at most one compiled program at a time.
type Engine struct {
	frontendFactory FrontendFactory
	intrinsics      *intrinsics.Registry
	allowed         map[string]bool

	Files   *project.FileTable
	project *project.Project

	machine     *vm.Machine
	globalScope *symbols.Scope

	onOutputLine  func(string)
	onOutput      func(string)
	onInput       func() string
	onErrorOutput func(string)
}

// NewEngine constructs an Engine that compiles through frontendFactory
// and exposes the reference intrinsic library set (db/uuid/config/text).
func NewEngine(frontendFactory FrontendFactory) *Engine {
	return &Engine{
		frontendFactory: frontendFactory,
		intrinsics:      intrinsics.Default(),
		allowed:         make(map[string]bool),
		Files:           project.NewFileTable(),
	}
}

// Intrinsics returns the registry backing this Engine's intrinsic
// libraries, so a host can register additional ones before Compile.
func (e *Engine) Intrinsics() *intrinsics.Registry { return e.intrinsics }

// Compile compiles source (named fileName for file-table/stack-trace
// purposes) through the configured Frontend, optimizes the resulting
// chunk, and replaces any previously compiled program.
func (e *Engine) Compile(source []byte, fileName string) error {
	if e.frontendFactory == nil {
		return fmt.Errorf("embed: no frontend configured")
	}
	fe := e.frontendFactory()
	fileIndex := e.Files.Intern(fileName)
	result, err := fe.Compile(source, fileIndex)
	if err != nil {
		return err
	}
	return e.install(result)
}

// CompileProject loads root's fluence.yaml (if present), seeds the
// allowed-library list from its manifest, reads the configured entry
// file, and compiles it. allowPartial mirrors a front end's
// CompileProject(root_dir, allow_partial) signature; a front end that
// discovers missing included files during multi-file compilation decides
// whether to honor it, since file discovery itself is front-end scope.
func (e *Engine) CompileProject(root string, allowPartial bool) error {
	_ = allowPartial
	proj, err := project.Load(root)
	if err != nil {
		return err
	}
	e.project = proj
	e.Files = proj.Files

	if proj.Manifest != nil {
		e.AddAllowedIntrinsicLibraries(proj.Manifest.AllowedLibraries...)
	}
	entry, err := proj.EntryPath()
	if err != nil {
		return err
	}
	source, err := os.ReadFile(entry)
	if err != nil {
		return fmt.Errorf("embed: read entry file %s: %w", entry, err)
	}
	return e.Compile(source, entry)
}

func (e *Engine) install(result *CompileResult) error {
	optimizer.NewOptimizer().OptimizeChunk(result.Chunk, result.Functions)

	m := vm.NewMachine(result.Chunk, result.Functions, len(result.GlobalSolidMask), result.GlobalSolidMask, result.TopLevelLocalCount)
	for _, s := range result.Structs {
		m.RegisterStruct(s)
	}
	for _, en := range result.Enums {
		m.RegisterEnum(en)
	}
	for name := range e.allowed {
		m.AllowedIntrinsicLibraries[name] = true
	}
	m.Output = &sinkWriter{engine: e}

	e.machine = m
	e.globalScope = result.GlobalScope
	return nil
}

// requireMachine guards every method that only makes sense once a
// program has been compiled.
func (e *Engine) requireMachine() error {
	if e.machine == nil {
		return fmt.Errorf("embed: no program compiled")
	}
	return nil
}

// RunUntilDone executes the compiled program to completion, halt, or
// unhandled error.
func (e *Engine) RunUntilDone() error {
	if err := e.requireMachine(); err != nil {
		return err
	}
	return e.machine.RunUntilDone()
}

// RunFor executes the compiled program for at most budget before
// returning with the Machine paused, so a host can interleave execution
// with other work.
func (e *Engine) RunFor(budget time.Duration) error {
	if err := e.requireMachine(); err != nil {
		return err
	}
	return e.machine.RunFor(budget)
}

// Stop requests cooperative cancellation of a running/paused program.
func (e *Engine) Stop() {
	if e.machine != nil {
		e.machine.Stop()
	}
}

// Reset rewinds the compiled program back to NotStarted, reusing the
// same chunk and symbol tables.
func (e *Engine) Reset() error {
	if err := e.requireMachine(); err != nil {
		return err
	}
	e.machine.Reset()
	return nil
}

// State reports the underlying Machine's run state.
func (e *Engine) State() (vm.State, error) {
	if err := e.requireMachine(); err != nil {
		return 0, err
	}
	return e.machine.State, nil
}

// GetGlobal reads a global variable by its source name, translating the
// VM's RuntimeValue into a host primitive (nil, bool, int64, float64,
// string) or the wrapped host value behind a UserWrapperObject.
func (e *Engine) GetGlobal(name string) (any, error) {
	if err := e.requireMachine(); err != nil {
		return nil, err
	}
	sym, ok := e.globalScope.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("embed: undefined global %q", name)
	}
	return rvToHost(e.machine.GetGlobal(sym.Register)), nil
}

// SetGlobal writes a host primitive into a global variable by source
// name, translating it into a RuntimeValue first. It respects the same
// solid-variable write-once rule SetGlobal on the Machine enforces.
func (e *Engine) SetGlobal(name string, hostValue any) error {
	if err := e.requireMachine(); err != nil {
		return err
	}
	sym, ok := e.globalScope.Resolve(name)
	if !ok {
		return fmt.Errorf("embed: undefined global %q", name)
	}
	return e.machine.SetGlobal(sym.Register, hostToRV(hostValue))
}

// AddAllowedIntrinsicLibraries extends the set of intrinsic library names
// a compiled program's `use` statements may reference.
func (e *Engine) AddAllowedIntrinsicLibraries(names ...string) {
	for _, n := range names {
		e.allowed[n] = true
		if e.machine != nil {
			e.machine.AllowedIntrinsicLibraries[n] = true
		}
	}
}

// RemoveAllowedIntrinsicLibraries revokes previously allowed library
// names.
func (e *Engine) RemoveAllowedIntrinsicLibraries(names ...string) {
	for _, n := range names {
		delete(e.allowed, n)
		if e.machine != nil {
			delete(e.machine.AllowedIntrinsicLibraries, n)
		}
	}
}

// ClearAllowedIntrinsicLibraries revokes every previously allowed
// library name.
func (e *Engine) ClearAllowedIntrinsicLibraries() {
	e.allowed = make(map[string]bool)
	if e.machine != nil {
		e.machine.AllowedIntrinsicLibraries = make(map[string]bool)
	}
}

// CheckIntrinsicAllowed is the parse-time hook a Frontend implementation
// calls when it encounters a `use` of an intrinsic library name, turning
// an unknown or disallowed library into the LibraryDenied error a host
// surfaces before any bytecode executes.
func (e *Engine) CheckIntrinsicAllowed(name string) error {
	if _, ok := e.intrinsics.Lookup(name); !ok {
		return ferrors.NewRuntimeError(ferrors.LibraryDenied, fmt.Sprintf("unknown intrinsic library %q", name), 0, "<compile>", nil, nil, "", nil)
	}
	if !e.allowed[name] {
		return ferrors.NewRuntimeError(ferrors.LibraryDenied, fmt.Sprintf("intrinsic library %q is not allowed", name), 0, "<compile>", nil, nil, "", nil)
	}
	return nil
}

// InvokeIntrinsic calls method on the named intrinsic library directly
// from the host, translating hostArgs into RuntimeValues and the result
// back. No bytecode opcode dispatches into intrinsics — the vm package
// never imports intrinsics at all — so this is how a host exercises the
// registry without a compiled program's bytecode calling through it.
func (e *Engine) InvokeIntrinsic(library, method string, hostArgs ...any) (any, error) {
	if err := e.CheckIntrinsicAllowed(library); err != nil {
		return nil, err
	}
	args := make([]value.RuntimeValue, len(hostArgs))
	for i, a := range hostArgs {
		args[i] = hostToRV(a)
	}
	result, err := e.intrinsics.Invoke(library, method, args)
	if err != nil {
		return nil, err
	}
	return rvToHost(result), nil
}

// SetOutputLineSink registers the callback invoked once per completed
// output line.
func (e *Engine) SetOutputLineSink(fn func(string)) { e.onOutputLine = fn }

// SetOutputSink registers the callback invoked for every raw chunk of
// program output, regardless of line boundaries.
func (e *Engine) SetOutputSink(fn func(string)) { e.onOutput = fn }

// SetInputSink registers the callback an input-reading intrinsic calls
// to obtain a line of host-provided input.
func (e *Engine) SetInputSink(fn func() string) { e.onInput = fn }

// SetErrorOutputSink registers the callback invoked with a rendered
// RuntimeError message when a run ends in an unhandled error.
func (e *Engine) SetErrorOutputSink(fn func(string)) { e.onErrorOutput = fn }

// ReadInput calls the configured input sink, returning "" if none is set.
func (e *Engine) ReadInput() string {
	if e.onInput == nil {
		return ""
	}
	return e.onInput()
}

// ReportError invokes the error-output sink with err's rendered message.
func (e *Engine) ReportError(err error) {
	if e.onErrorOutput != nil && err != nil {
		e.onErrorOutput(err.Error())
	}
}
