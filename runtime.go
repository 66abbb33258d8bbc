// Package interp is the embedder-facing surface over the interpreter
// core: assembling modules programmatically, registering host
// functions, instantiating, and invoking exported functions.
//
// Decoding a %.wasm binary (or the text format) into a Module, and
// linking imports across separately-instantiated modules, both remain
// external collaborators -- see internal/wasm's package doc. This
// package picks up exactly where a decoder would leave off: given a
// module's sections (or built by hand with ModuleBuilder), it
// compiles, instantiates and runs it.
package interp

import (
	"fmt"

	coreinterp "github.com/gowasm/interp/internal/interp"
	internalwasm "github.com/gowasm/interp/internal/wasm"
)

// Runtime is the embedder's entry point: it owns the Store instantiated
// modules live in and the Engine that runs their code. The zero value is
// not usable; construct one with NewRuntime.
type Runtime struct {
	store  *internalwasm.Store
	engine *coreinterp.Engine
}

// NewRuntime constructs a Runtime with a fresh, empty module namespace.
func NewRuntime() *Runtime {
	return &Runtime{store: internalwasm.NewStore(), engine: coreinterp.NewEngine()}
}

// InstantiateModule instantiates compiled under its build-time name,
// allocating its memory, table and globals, binding any host functions
// registered on its ModuleBuilder, and resolving its export table.
// Instantiating two modules under the same Runtime with the same name
// fails -- give each a distinct name.
func (r *Runtime) InstantiateModule(compiled *CompiledModule) (*Module, error) {
	instance, err := r.store.Instantiate(compiled.module, compiled.name)
	if err != nil {
		return nil, fmt.Errorf("instantiating module %q: %w", compiled.name, err)
	}
	for idx, fn := range compiled.hostFuncs {
		instance.Functions[idx].GoFunc = fn
	}
	return &Module{instance: instance, engine: r.engine}, nil
}

// Module looks up a previously instantiated module by name, or nil if
// none exists under that name.
func (r *Runtime) Module(name string) *Module {
	instance := r.store.Module(name)
	if instance == nil {
		return nil
	}
	return &Module{instance: instance, engine: r.engine}
}
