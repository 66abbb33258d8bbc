package internalwasm

import (
	"reflect"

	"github.com/gowasm/interp/internal/wasmdebug"
)

// FunctionInstance is a function in an instantiated module: either a Wasm
// function backed by compiled wazeroir code, or a host function backed by
// a Go closure dispatched through reflection.
type FunctionInstance struct {
	// Type is the function's signature.
	Type *FunctionType

	// Body is the wazeroir-compiled instruction sequence. Nil for host
	// functions.
	Body interface{}

	// GoFunc is the host function's Go value, one of:
	//   func(ctx context.Context, mod api.HostFunctionCallContext, params...)
	//   (results...)
	// Nil for Wasm-defined functions.
	GoFunc interface{}
	goVal  reflect.Value

	// Index is the function's index within its defining module's
	// function namespace.
	Index Index

	// ModuleName and Name are used to build debug identifiers; either may
	// be empty.
	ModuleName, Name string
}

// IsHostFunction reports whether f is backed by a Go function rather than
// compiled Wasm code.
func (f *FunctionInstance) IsHostFunction() bool { return f.GoFunc != nil }

// GoFuncValue returns (and caches) the reflect.Value wrapping GoFunc.
func (f *FunctionInstance) GoFuncValue() reflect.Value {
	if !f.goVal.IsValid() {
		f.goVal = reflect.ValueOf(f.GoFunc)
	}
	return f.goVal
}

// DebugName returns a "module.name"-style identifier for f, falling back
// to "$index" for the function name when unset.
func (f *FunctionInstance) DebugName() string {
	return wasmdebug.FuncName(f.ModuleName, f.Name, f.Index)
}
