// Package intrinsics supplies the reference standard-library modules a
// host registers by name: db, uuid, config, text. A Fluence program never
// imports these directly (the front end turns a `use` statement into a
// name the VM never sees); only the embedding layer resolves a name
// through a Registry and hands the result to the front end's
// AllowedIntrinsicLibraries check.
//
// This package is never imported by vm, optimizer, bytecode, or icache:
// only embed wires it in, preserving the core/collaborator boundary.
package intrinsics

import (
	"fmt"
	"sync"

	"github.com/fluence-lang/fluence/value"
)

// Library is one named intrinsic module. Call dispatches a method by
// name with already-evaluated arguments and returns a single
// RuntimeValue, matching the calling convention a CALL_GLOBAL against a
// host function would use.
type Library interface {
	Name() string
	Call(method string, args []value.RuntimeValue) (value.RuntimeValue, error)
}

// Registry is a process-wide table of intrinsic libraries, mirroring the
// teacher's pkg/pdo driver registry (driverRegistry map[string]Driver,
// RegisterDriver/GetDriver) generalized from SQL drivers to intrinsic
// modules.
type Registry struct {
	mu   sync.RWMutex
	libs map[string]Library
}

// NewRegistry returns an empty Registry. Use Default for the reference
// set of db/uuid/config/text pre-registered.
func NewRegistry() *Registry {
	return &Registry{libs: make(map[string]Library)}
}

// Default returns a Registry with the four reference intrinsic libraries
// already registered under their names: db, uuid, config, text.
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewDB())
	r.Register(NewUUID())
	r.Register(NewConfig())
	r.Register(NewText())
	return r
}

// Register adds lib under its own Name, replacing any existing library
// registered under that name.
func (r *Registry) Register(lib Library) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libs[lib.Name()] = lib
}

// Lookup returns the library registered under name, if any.
func (r *Registry) Lookup(name string) (Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libs[name]
	return lib, ok
}

// Names returns every registered library name, for diagnostics and for
// validating an AllowedIntrinsicLibraries list against what actually
// exists.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.libs))
	for name := range r.libs {
		names = append(names, name)
	}
	return names
}

// Invoke looks up name and calls method on it, wrapping an unknown
// library name in a consistent error shape.
func (r *Registry) Invoke(name, method string, args []value.RuntimeValue) (value.RuntimeValue, error) {
	lib, ok := r.Lookup(name)
	if !ok {
		return value.RVNil, fmt.Errorf("intrinsics: unknown library %q", name)
	}
	return lib.Call(method, args)
}
