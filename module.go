package interp

import (
	"context"
	"fmt"

	"github.com/gowasm/interp/api"
	coreinterp "github.com/gowasm/interp/internal/interp"
	"github.com/gowasm/interp/internal/numeric"
	internalwasm "github.com/gowasm/interp/internal/wasm"
	"github.com/gowasm/interp/internal/wasmruntime"
	"github.com/gowasm/interp/internal/wazeroir"
)

// ExternType classifies an export by its kind, mirroring
// internalwasm.ExternType without leaking the internal package.
type ExternType = internalwasm.ExternType

const (
	ExternTypeFunc   = internalwasm.ExternTypeFunc
	ExternTypeTable  = internalwasm.ExternTypeTable
	ExternTypeMemory = internalwasm.ExternTypeMemory
	ExternTypeGlobal = internalwasm.ExternTypeGlobal
)

// CompiledModule is the output of ModuleBuilder.Compile: a module whose
// Wasm-defined function bodies have already been lowered to wazeroir, and
// which is ready to hand to Runtime.InstantiateModule. It holds no
// runtime state of its own; it is always instantiated under the name it
// was built with, so a second instantiation in the same Runtime fails as
// a duplicate name.
type CompiledModule struct {
	name      string
	module    *internalwasm.Module
	hostFuncs map[internalwasm.Index]interface{}
}

// Name returns the module name this was built under.
func (c *CompiledModule) Name() string { return c.name }

// Module is an instantiated unit of code: the result of
// Runtime.InstantiateModule. It owns its own memory, table and globals
// and is looked up from its Runtime by name.
type Module struct {
	instance *internalwasm.ModuleInstance
	engine   *coreinterp.Engine
}

// Name returns the name this module was instantiated under.
func (m *Module) Name() string { return m.instance.Name }

// Memory returns the module's exported linear memory named "memory", the
// conventional export name, or nil if it has none. Use ExportedMemory for
// any other name.
func (m *Module) Memory() api.Memory {
	return m.ExportedMemory("memory")
}

// ExportedMemory returns the memory exported as name, or nil if absent.
func (m *Module) ExportedMemory(name string) api.Memory {
	mem := m.instance.ExportedMemory(name)
	if mem == nil {
		return nil
	}
	return mem.AsAPIMemory()
}

// ExportedGlobal returns the global exported as name, or nil if absent.
func (m *Module) ExportedGlobal(name string) api.Global {
	return m.instance.ExportedGlobal(name)
}

// ExportedFunction returns the function exported as name, or nil if
// absent or the export isn't a function.
func (m *Module) ExportedFunction(name string) ExportedFunction {
	fn := m.instance.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return &exportedFunction{engine: m.engine, mod: m.instance, fn: fn}
}

// ExportedFunction is a callable, exported Wasm or host function bound to
// its instantiating module.
type ExportedFunction interface {
	// Call invokes the function with params encoded the way api.EncodeI32
	// et al. do, returning results encoded the same way. The number and
	// type of params/results must match the function's signature; a
	// mismatch surfaces as a *wasmruntime.FunctionError, not a panic.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)

	// ParamTypes and ResultTypes describe the signature, so a caller can
	// encode/decode params/results without tracking the signature itself.
	ParamTypes() []api.ValueType
	ResultTypes() []api.ValueType
}

type exportedFunction struct {
	engine *coreinterp.Engine
	mod    *internalwasm.ModuleInstance
	fn     *internalwasm.FunctionInstance
}

func (f *exportedFunction) ParamTypes() []api.ValueType  { return f.fn.Type.Params }
func (f *exportedFunction) ResultTypes() []api.ValueType { return f.fn.Type.Results }

func (f *exportedFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if len(params) != len(f.fn.Type.Params) {
		return nil, wasmruntime.NewFunctionError("expected %d params, got %d", len(f.fn.Type.Params), len(params))
	}
	args := make([]numeric.Value, len(params))
	for i, p := range params {
		args[i] = numeric.FromBits(f.fn.Type.Params[i], p)
	}
	results, err := f.engine.Call(ctx, f.mod, f.fn, args...)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(results))
	for i, r := range results {
		out[i] = r.Bits()
	}
	return out, nil
}

// funcType builds an internalwasm.FunctionType, recording it in b's type
// section if an identical one isn't already present, and returns its
// index.
func (b *ModuleBuilder) funcType(params, results []api.ValueType) internalwasm.Index {
	want := &internalwasm.FunctionType{Params: params, Results: results}
	for i, t := range b.types {
		if t.EqualsSignature(want) {
			return internalwasm.Index(i)
		}
	}
	b.types = append(b.types, want)
	return internalwasm.Index(len(b.types) - 1)
}

// compileWasmFunctions lowers every pending Wasm-defined function body to
// wazeroir, now that mod's type/function sections (covering both Wasm and
// host functions) are complete -- compileCall resolves callee signatures
// by indexing straight into those sections, so every signature must be
// registered before any body is compiled.
func compileWasmFunctions(mod *internalwasm.Module, pending []pendingFunc) error {
	code := make([]interface{}, len(pending))
	for i, p := range pending {
		if p.hostFunc != nil {
			continue
		}
		compiled, err := wazeroir.Compile(&wazeroir.CompilationInput{
			FuncIndex:  internalwasm.Index(i),
			Type:       mod.TypeSection[mod.FunctionSection[i]],
			LocalTypes: p.localTypes,
			Body:       p.body,
			Module:     mod,
		})
		if err != nil {
			return fmt.Errorf("compiling function[%d]: %w", i, err)
		}
		code[i] = compiled
	}
	mod.CodeSection = code
	return nil
}
