// Package internalwasm holds the module/instance data model the compiler
// and interpreter operate on: function types, function instances, linear
// memory, tables and globals. There is no binary or text decoder here --
// modules are assembled programmatically by an embedder (or a test) and
// then instantiated.
package internalwasm

import (
	"fmt"
	"strings"

	"github.com/gowasm/interp/api"
)

// Index identifies a function, table, memory, global, or type by its
// position within a Module's respective namespace.
type Index = uint32

// FunctionType is a function signature: zero or more parameter types and
// zero or one result type (wazeroir's interpreter.go targets
// multi-value; this core keeps to the MVP single-result restriction).
type FunctionType struct {
	Params, Results []api.ValueType
}

// String renders the signature the way wasm text format does, e.g.
// "(i32, i64) -> (i32)".
func (t *FunctionType) String() string {
	ps := make([]string, len(t.Params))
	for i, p := range t.Params {
		ps[i] = api.ValueTypeName(p)
	}
	rs := make([]string, len(t.Results))
	for i, r := range t.Results {
		rs[i] = api.ValueTypeName(r)
	}
	return fmt.Sprintf("(%s) -> (%s)", strings.Join(ps, ", "), strings.Join(rs, ", "))
}

// EqualsSignature reports whether t and other have identical param/result
// types, the check call_indirect makes at call time between its expected
// signature and a table entry's actual one.
func (t *FunctionType) EqualsSignature(other *FunctionType) bool {
	if len(t.Params) != len(other.Params) || len(t.Results) != len(other.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != other.Results[i] {
			return false
		}
	}
	return true
}
