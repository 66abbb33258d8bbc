package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/leb128"
	internalwasm "github.com/gowasm/interp/internal/wasm"
	"github.com/gowasm/interp/internal/wasmruntime"
)

const (
	opI32Store8 = 0x3A
	opI32Load8S = 0x2C
)

func instantiateWithMemory(t *testing.T, sig *internalwasm.FunctionType, body []byte, minPages uint32) *internalwasm.ModuleInstance {
	t.Helper()
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		MemorySection:   &internalwasm.MemoryType{Min: minPages},
	}
	code := mustCompile(t, sig, nil, body, mod)
	mod.CodeSection = []interface{}{code}
	return instantiate(t, mod)
}

// store then load the same address, round-tripping through memory.
func TestMemory_StoreLoadRoundTrip(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	var body []byte
	body = append(body, i32Const(8)...)  // address
	body = append(body, i32Const(99)...) // value
	body = append(body, opI32Store)
	body = append(body, memArg0()...)
	body = append(body, i32Const(8)...)
	body = append(body, opI32Load)
	body = append(body, memArg0()...)
	body = append(body, opEnd)

	inst := instantiateWithMemory(t, sig, body, 1)
	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	require.NoError(t, err)
	require.Equal(t, int32(99), results[0].I32())
}

func TestMemory_LoadOutOfBoundsTraps(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	var body []byte
	body = append(body, i32Const(65532)...) // 4 bytes from the single page's end, but offset pushes past it
	body = append(body, opI32Load)
	body = append(body, 0x00) // align
	body = append(body, leb128.EncodeUint32(16)...) // offset, lands the read outside the 1-page memory
	body = append(body, opEnd)

	inst := instantiateWithMemory(t, sig, body, 1)
	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindMemoryAccessOutOfBounds, trap.Kind)
}

func TestMemory_SizeAndGrow(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	var body []byte
	body = append(body, i32Const(1)...)
	body = append(body, opMemoryGrow, 0x00)
	body = append(body, opDrop)
	body = append(body, opMemorySize, 0x00)
	body = append(body, opEnd)

	inst := instantiateWithMemory(t, sig, body, 1)
	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	require.NoError(t, err)
	require.Equal(t, int32(2), results[0].I32())
}

func TestMemory_NarrowStoreLoadSignExtension(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	var body []byte
	body = append(body, i32Const(0)...)
	body = append(body, i32Const(-1)...) // stored as a single byte: 0xFF
	body = append(body, opI32Store8)
	body = append(body, memArg0()...)
	body = append(body, i32Const(0)...)
	body = append(body, opI32Load8S)
	body = append(body, memArg0()...)
	body = append(body, opEnd)

	inst := instantiateWithMemory(t, sig, body, 1)
	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	require.NoError(t, err)
	require.Equal(t, int32(-1), results[0].I32())
}
