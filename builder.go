package interp

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gowasm/interp/api"
	internalwasm "github.com/gowasm/interp/internal/wasm"
)

// pendingFunc is a function awaiting ModuleBuilder.Compile: either a
// Wasm-defined body (lowered to wazeroir once every signature in the
// module is known) or a Go closure (hostFunc, left for Runtime to splice
// into the instantiated module's Functions -- see compileWasmFunctions
// and Runtime.InstantiateModule).
type pendingFunc struct {
	localTypes []api.ValueType
	body       []byte
	hostFunc   interface{}
}

// ModuleBuilder assembles a Module programmatically: type, function,
// memory, table, global and export sections. There is no binary or text
// decoder backing this -- an embedder (or a decoder it owns) is expected
// to drive it directly, the same way internal/wasm's own tests do.
type ModuleBuilder struct {
	name    string
	types   []*internalwasm.FunctionType
	funcs   []pendingFunc
	funcIdx []internalwasm.Index // funcIdx[i] is funcs[i]'s entry in types
	memory  *internalwasm.MemoryType
	table   *internalwasm.TableType
	globals []*internalwasm.GlobalDefinition
	exports map[string]*internalwasm.Export
}

// NewModuleBuilder starts building a module named moduleName. The name is
// how the module is later looked up from its Runtime.
func (r *Runtime) NewModuleBuilder(moduleName string) *ModuleBuilder {
	return &ModuleBuilder{name: moduleName, exports: map[string]*internalwasm.Export{}}
}

// NewFunction adds a Wasm-defined function with the given signature,
// declared locals (beyond its params), and raw instruction bytes (the
// same encoding internal/wazeroir.Compile consumes -- opcodes, LEB128
// immediates, no section/type header), returning its index within the
// module's function namespace.
func (b *ModuleBuilder) NewFunction(params, results, locals []api.ValueType, body []byte) internalwasm.Index {
	typeIdx := b.funcType(params, results)
	idx := internalwasm.Index(len(b.funcs))
	b.funcs = append(b.funcs, pendingFunc{localTypes: locals, body: body})
	b.funcIdx = append(b.funcIdx, typeIdx)
	return idx
}

// NewHostFunction adds a Go-backed function to the module's function
// namespace (there is no cross-module linker here, so host and
// Wasm-defined functions share one index space -- Wasm code calls a host
// function the same way it calls any other, by index). fn must be a Go
// func; see hostFuncSignature's doc comment for the accepted shapes.
func (b *ModuleBuilder) NewHostFunction(fn interface{}) (internalwasm.Index, error) {
	params, results, wrapped, err := hostFuncSignature(fn)
	if err != nil {
		return 0, err
	}
	typeIdx := b.funcType(params, results)
	idx := internalwasm.Index(len(b.funcs))
	b.funcs = append(b.funcs, pendingFunc{hostFunc: wrapped})
	b.funcIdx = append(b.funcIdx, typeIdx)
	return idx, nil
}

// WithMemory declares the module's single linear memory, min/max in
// 64KiB pages.
func (b *ModuleBuilder) WithMemory(min uint32, max *uint32) *ModuleBuilder {
	b.memory = &internalwasm.MemoryType{Min: min, Max: max}
	return b
}

// WithTable declares the module's single table of function references,
// min/max in element count.
func (b *ModuleBuilder) WithTable(min uint32, max *uint32) *ModuleBuilder {
	b.table = &internalwasm.TableType{Min: min, Max: max}
	return b
}

// NewGlobal adds a global of the given type and constant initial value
// (encoded the way api.EncodeI32 et al. do), returning its index.
func (b *ModuleBuilder) NewGlobal(valType api.ValueType, mutable bool, init uint64) internalwasm.Index {
	b.globals = append(b.globals, &internalwasm.GlobalDefinition{
		Type: &internalwasm.GlobalType{ValType: valType, Mutable: mutable},
		Init: init,
	})
	return internalwasm.Index(len(b.globals) - 1)
}

// Export exposes idx (within kind's namespace) under name, so it's
// reachable via Module.ExportedFunction/ExportedMemory/ExportedGlobal
// after instantiation.
func (b *ModuleBuilder) Export(name string, kind ExternType, idx internalwasm.Index) *ModuleBuilder {
	b.exports[name] = &internalwasm.Export{Type: kind, Name: name, Index: idx}
	return b
}

// Compile lowers every pending Wasm-defined function body to wazeroir and
// assembles the result into a CompiledModule, ready for
// Runtime.InstantiateModule. Host functions are left unresolved here --
// they're spliced into the ModuleInstance.Functions after Store.Instantiate
// builds it, since FunctionInstance.GoFunc is runtime state, not part of
// the static Module.
func (b *ModuleBuilder) Compile() (*CompiledModule, error) {
	mod := &internalwasm.Module{
		TypeSection:     b.types,
		FunctionSection: b.funcIdx,
		MemorySection:   b.memory,
		TableSection:    b.table,
		GlobalSection:   b.globals,
		ExportSection:   b.exports,
	}

	if err := compileWasmFunctions(mod, b.funcs); err != nil {
		return nil, err
	}

	hostFuncs := make(map[internalwasm.Index]interface{}, len(b.funcs))
	for i, f := range b.funcs {
		if f.hostFunc != nil {
			hostFuncs[internalwasm.Index(i)] = f.hostFunc
		}
	}
	return &CompiledModule{name: b.name, module: mod, hostFuncs: hostFuncs}, nil
}

var (
	contextType             = reflect.TypeOf((*context.Context)(nil)).Elem()
	hostFunctionCallCtxType = reflect.TypeOf((*api.HostFunctionCallContext)(nil)).Elem()
)

// hostFuncSignature inspects fn via reflect and derives the Wasm-visible
// signature, mirroring the mapping internal/interp's callHostFunction
// uses in the other direction (int32/uint32->i32, int64/uint64->i64,
// float32->f32, float64->f64).
//
// fn's first parameter must be context.Context. Its second parameter may
// optionally be api.HostFunctionCallContext, for functions that need
// access to the calling module's memory; if present, fn is returned
// unwrapped (it already matches the engine's internal calling
// convention). Otherwise a wrapper is built with reflect.MakeFunc that
// drops the injected HostFunctionCallContext before calling fn, so
// callers can write plain functions like:
//
//	builder.NewHostFunction(func(ctx context.Context, x, y int32) int32 {
//		return x + y
//	})
func hostFuncSignature(fn interface{}) (params, results []api.ValueType, wrapped interface{}, err error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, nil, nil, fmt.Errorf("NewHostFunction requires a func, got %s", ft.Kind())
	}
	if ft.NumIn() < 1 || ft.In(0) != contextType {
		return nil, nil, nil, fmt.Errorf("NewHostFunction: first parameter must be context.Context")
	}

	takesCallCtx := ft.NumIn() >= 2 && ft.In(1) == hostFunctionCallCtxType
	firstParam := 1
	if takesCallCtx {
		firstParam = 2
	}

	for i := firstParam; i < ft.NumIn(); i++ {
		vt, ok := goKindToValueType(ft.In(i).Kind())
		if !ok {
			return nil, nil, nil, fmt.Errorf("NewHostFunction: parameter %d has unsupported type %s", i, ft.In(i))
		}
		params = append(params, vt)
	}
	for i := 0; i < ft.NumOut(); i++ {
		vt, ok := goKindToValueType(ft.Out(i).Kind())
		if !ok {
			return nil, nil, nil, fmt.Errorf("NewHostFunction: result %d has unsupported type %s", i, ft.Out(i))
		}
		results = append(results, vt)
	}

	if takesCallCtx {
		return params, results, fn, nil
	}

	in := []reflect.Type{contextType, hostFunctionCallCtxType}
	for i := 1; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i))
	}
	out := make([]reflect.Type, ft.NumOut())
	for i := range out {
		out[i] = ft.Out(i)
	}
	wrapperType := reflect.FuncOf(in, out, false)
	wrapper := reflect.MakeFunc(wrapperType, func(args []reflect.Value) []reflect.Value {
		callArgs := append([]reflect.Value{args[0]}, args[2:]...)
		return fv.Call(callArgs)
	})
	return params, results, wrapper.Interface(), nil
}

// goKindToValueType maps a Go parameter/result kind to its Wasm
// ValueType, the reverse of internal/interp's valueToReflect.
func goKindToValueType(k reflect.Kind) (api.ValueType, bool) {
	switch k {
	case reflect.Int32, reflect.Uint32:
		return api.ValueTypeI32, true
	case reflect.Int64, reflect.Uint64:
		return api.ValueTypeI64, true
	case reflect.Float32:
		return api.ValueTypeF32, true
	case reflect.Float64:
		return api.ValueTypeF64, true
	default:
		return 0, false
	}
}
