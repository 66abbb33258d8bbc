package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gowasm/interp/api"
)

func TestModuleBuilder_HostFunction_PlainSignature(t *testing.T) {
	r := NewRuntime()
	b := r.NewModuleBuilder("host")

	mulIdx, err := b.NewHostFunction(func(ctx context.Context, x, y int32) int32 {
		return x * y
	})
	require.NoError(t, err)

	var body []byte
	body = append(body, opLocalGet, 0x00)
	body = append(body, opLocalGet, 0x01)
	body = append(body, callOp(mulIdx)...)
	body = append(body, opEnd)
	callerIdx := b.NewFunction(
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		[]api.ValueType{api.ValueTypeI32},
		nil, body,
	)
	b.Export("caller", ExternTypeFunc, callerIdx)

	compiled, err := b.Compile()
	require.NoError(t, err)
	mod, err := r.InstantiateModule(compiled)
	require.NoError(t, err)

	results, err := mod.ExportedFunction("caller").Call(context.Background(), api.EncodeI32(6), api.EncodeI32(7))
	require.NoError(t, err)
	require.Equal(t, uint64(42), results[0])
}

func TestModuleBuilder_HostFunction_WithCallContextReadsMemory(t *testing.T) {
	r := NewRuntime()
	b := r.NewModuleBuilder("hostmem")
	b.WithMemory(1, nil)

	sumFirstTwoIdx, err := b.NewHostFunction(func(ctx context.Context, m api.HostFunctionCallContext, offset int32) int32 {
		mem := m.Memory()
		a, ok := mem.ReadUint32Le(uint32(offset))
		require.True(t, ok)
		b2, ok := mem.ReadUint32Le(uint32(offset) + 4)
		require.True(t, ok)
		return int32(a + b2)
	})
	require.NoError(t, err)

	var body []byte
	body = append(body, i32Const(0)...)  // address
	body = append(body, i32Const(11)...) // value
	body = append(body, opI32Store, 0x00, 0x00)
	body = append(body, i32Const(4)...)  // address
	body = append(body, i32Const(31)...) // value
	body = append(body, opI32Store, 0x00, 0x00)
	body = append(body, i32Const(0)...)
	body = append(body, callOp(sumFirstTwoIdx)...)
	body = append(body, opEnd)
	callerIdx := b.NewFunction(nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	b.Export("caller", ExternTypeFunc, callerIdx)

	compiled, err := b.Compile()
	require.NoError(t, err)
	mod, err := r.InstantiateModule(compiled)
	require.NoError(t, err)

	results, err := mod.ExportedFunction("caller").Call(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), results[0])
}

func TestModuleBuilder_HostFunction_PanicBecomesTrap(t *testing.T) {
	r := NewRuntime()
	b := r.NewModuleBuilder("hostpanic")
	idx, err := b.NewHostFunction(func(ctx context.Context) int32 {
		panic("boom")
	})
	require.NoError(t, err)

	body := append(callOp(idx), opEnd)
	callerIdx := b.NewFunction(nil, []api.ValueType{api.ValueTypeI32}, nil, body)
	b.Export("caller", ExternTypeFunc, callerIdx)

	compiled, err := b.Compile()
	require.NoError(t, err)
	mod, err := r.InstantiateModule(compiled)
	require.NoError(t, err)

	_, err = mod.ExportedFunction("caller").Call(context.Background())
	require.Error(t, err)
}

func TestModuleBuilder_NewHostFunction_RejectsNonFunc(t *testing.T) {
	r := NewRuntime()
	b := r.NewModuleBuilder("bad")
	_, err := b.NewHostFunction(42)
	require.Error(t, err)
}

func TestModuleBuilder_NewHostFunction_RequiresContextFirst(t *testing.T) {
	r := NewRuntime()
	b := r.NewModuleBuilder("bad")
	_, err := b.NewHostFunction(func(x int32) int32 { return x })
	require.Error(t, err)
}
