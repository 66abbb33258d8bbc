package internalwasm

import (
	"fmt"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/numeric"
)

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType api.ValueType
	Mutable bool
}

// GlobalInstance is a global variable's runtime storage.
type GlobalInstance struct {
	Type *GlobalType
	Val  uint64
}

// Get returns the global's current value, satisfying api.Global.
func (g *GlobalInstance) Get() uint64 { return g.Val }

// Set updates the global's value. Callers are responsible for only
// invoking this on mutable globals.
func (g *GlobalInstance) Set(v uint64) { g.Val = v }

// ValueOf returns the global's current value as a tagged numeric.Value,
// the shape the interpreter loop's GetGlobal/SetGlobal operations use.
func (g *GlobalInstance) ValueOf() numeric.Value { return numeric.FromBits(g.Type.ValType, g.Val) }

// SetValue updates the global from a tagged numeric.Value. Callers are
// responsible for only invoking this on mutable globals -- SetGlobal
// against an immutable global is a compile-time ValidationError, never a
// runtime check here.
func (g *GlobalInstance) SetValue(v numeric.Value) { g.Val = v.Bits() }

// apiGlobal adapts a GlobalInstance to api.Global (or api.MutableGlobal):
// a distinct type per mutability keeps an immutable global from exposing
// Set at all, rather than exposing it and erroring at call time.
type apiGlobal struct{ g *GlobalInstance }

func (g *apiGlobal) Type() api.ValueType { return g.g.Type.ValType }
func (g *apiGlobal) Get() uint64         { return g.g.Get() }
func (g *apiGlobal) String() string {
	switch g.g.Type.ValType {
	case api.ValueTypeF32:
		return fmt.Sprintf("global(%f)", api.DecodeF32(g.g.Val))
	case api.ValueTypeF64:
		return fmt.Sprintf("global(%f)", api.DecodeF64(g.g.Val))
	default:
		return fmt.Sprintf("global(%d)", g.g.Val)
	}
}

type apiMutableGlobal struct{ apiGlobal }

func (g *apiMutableGlobal) Set(v uint64) { g.g.Set(v) }

// AsAPIGlobal adapts g to api.Global, returning an api.MutableGlobal when
// g.Type.Mutable is set.
func AsAPIGlobal(g *GlobalInstance) api.Global {
	if g.Type.Mutable {
		return &apiMutableGlobal{apiGlobal{g}}
	}
	return &apiGlobal{g}
}
