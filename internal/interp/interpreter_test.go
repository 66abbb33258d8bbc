package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/buildoptions"
	"github.com/gowasm/interp/internal/leb128"
	"github.com/gowasm/interp/internal/numeric"
	internalwasm "github.com/gowasm/interp/internal/wasm"
	"github.com/gowasm/interp/internal/wasmruntime"
	"github.com/gowasm/interp/internal/wazeroir"
)

// Raw Wasm opcode bytes. internal/wazeroir keeps its own wasmOpXxx
// constants unexported, so tests that hand-assemble function bodies
// reproduce the literal encodings here.
const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0B
	opBr          = 0x0C
	opBrIf        = 0x0D
	opBrTable     = 0x0E
	opReturn      = 0x0F
	opCall        = 0x10
	opCallIndir   = 0x11
	opDrop        = 0x1A
	opSelect      = 0x1B
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load     = 0x28
	opI32Store    = 0x36
	opMemorySize  = 0x3F
	opMemoryGrow  = 0x40
	opI32Const    = 0x41
	opI64Const    = 0x42
	opF32Const    = 0x43
	opF64Const    = 0x44
	opI32Eqz      = 0x45
	opI32LtS      = 0x48
	opI32GtS      = 0x4A
	opI32GeS      = 0x4E
	opI32Add      = 0x6A
	opI32Sub      = 0x6B
	opI32Mul      = 0x6C
	opI32DivS     = 0x6D
	opI32DivU     = 0x6E
	opI64DivS     = 0x7F
)

// blockTypeEmptyByte/I32Byte are the single-byte signed-LEB33 encodings
// of a void block and an (result i32) block, matching wazeroir's
// unexported blockTypeEmpty/blockTypeI32 constants.
const (
	blockTypeEmptyByte = 0x40
	blockTypeI32Byte   = 0x7F
)

func memArg0() []byte { return []byte{0x00, 0x00} } // align=0, offset=0

func mustCompile(t *testing.T, sig *internalwasm.FunctionType, locals []api.ValueType, body []byte, mod *internalwasm.Module) *wazeroir.CompiledFunction {
	t.Helper()
	if mod == nil {
		mod = &internalwasm.Module{}
	}
	f, err := wazeroir.Compile(&wazeroir.CompilationInput{
		Type:       sig,
		LocalTypes: locals,
		Body:       body,
		Module:     mod,
	})
	require.NoError(t, err)
	return f
}

// instantiate builds a ModuleInstance out of already-compiled function
// bodies through Store.Instantiate, using a fresh Store and the test's name
// so that each test's throwaway module never collides with another's.
func instantiate(t *testing.T, mod *internalwasm.Module) *internalwasm.ModuleInstance {
	t.Helper()
	inst, err := internalwasm.NewStore().Instantiate(mod, t.Name())
	require.NoError(t, err)
	return inst
}

func i32Const(v int32) []byte { return append([]byte{opI32Const}, leb128.EncodeInt32(v)...) }

func TestEngine_SimpleAdd(t *testing.T) {
	sig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	var body []byte
	body = append(body, opLocalGet, 0x00)
	body = append(body, opLocalGet, 0x01)
	body = append(body, opI32Add)
	body = append(body, opEnd)

	code := mustCompile(t, sig, nil, body, nil)
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		CodeSection:     []interface{}{code},
	}
	inst := instantiate(t, mod)

	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0], numeric.I32(3), numeric.I32(4))
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(7)}, results)
}

// sumTo computes (param i32 n) (result i32) summing 1..n via a
// block/loop/br_if/br structure exercising GetLocal/SetLocal, nested
// control flow, and DropKeep across both a conditional exit and the
// loop's own back-edge.
//
//	(local i32 acc) (local i32 i)      ; locals 1, 2
//	block
//	  loop
//	    local.get 2
//	    local.get 0
//	    i32.gt_s
//	    br_if 1                 ; exit block when i > n
//	    local.get 1
//	    local.get 2
//	    i32.add
//	    local.set 1             ; acc += i
//	    local.get 2
//	    i32.const 1
//	    i32.add
//	    local.set 2             ; i++
//	    br 0                    ; loop again
//	  end
//	end
//	local.get 1
func sumToBody() []byte {
	var body []byte
	body = append(body, opBlock, blockTypeEmptyByte)
	body = append(body, opLoop, blockTypeEmptyByte)
	body = append(body, opLocalGet, 0x02)
	body = append(body, opLocalGet, 0x00)
	body = append(body, opI32GtS)
	body = append(body, opBrIf)
	body = append(body, leb128.EncodeUint32(1)...)
	body = append(body, opLocalGet, 0x01)
	body = append(body, opLocalGet, 0x02)
	body = append(body, opI32Add)
	body = append(body, opLocalSet, 0x01)
	body = append(body, opLocalGet, 0x02)
	body = append(body, i32Const(1)...)
	body = append(body, opI32Add)
	body = append(body, opLocalSet, 0x02)
	body = append(body, opBr)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, opEnd) // end loop
	body = append(body, opEnd) // end block
	body = append(body, opLocalGet, 0x01)
	body = append(body, opEnd) // end function
	return body
}

func TestEngine_LoopSum(t *testing.T) {
	sig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	code := mustCompile(t, sig, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, sumToBody(), nil)
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		CodeSection:     []interface{}{code},
	}
	inst := instantiate(t, mod)

	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0], numeric.I32(10))
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(55)}, results)

	results, err = NewEngine().Call(context.Background(), inst, inst.Functions[0], numeric.I32(0))
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(0)}, results)
}

// func0 calls func1 which doubles its argument.
func TestEngine_Call(t *testing.T) {
	sig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0, 0},
	}

	var callerBody []byte
	callerBody = append(callerBody, opLocalGet, 0x00)
	callerBody = append(callerBody, opCall)
	callerBody = append(callerBody, leb128.EncodeUint32(1)...)
	callerBody = append(callerBody, opEnd)
	caller := mustCompile(t, sig, nil, callerBody, mod)

	var doublerBody []byte
	doublerBody = append(doublerBody, opLocalGet, 0x00)
	doublerBody = append(doublerBody, opLocalGet, 0x00)
	doublerBody = append(doublerBody, opI32Add)
	doublerBody = append(doublerBody, opEnd)
	doubler := mustCompile(t, sig, nil, doublerBody, mod)

	mod.CodeSection = []interface{}{caller, doubler}
	inst := instantiate(t, mod)

	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0], numeric.I32(21))
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(42)}, results)
}

func TestEngine_CallIndirect(t *testing.T) {
	sig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		TableSection:    &internalwasm.TableType{Min: 1},
	}

	// target(x) = x + 1
	var targetBody []byte
	targetBody = append(targetBody, opLocalGet, 0x00)
	targetBody = append(targetBody, i32Const(1)...)
	targetBody = append(targetBody, opI32Add)
	targetBody = append(targetBody, opEnd)
	target := mustCompile(t, sig, nil, targetBody, mod)
	mod.CodeSection = []interface{}{target}

	// caller(idx) = call_indirect(idx, 5)
	callerSig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	callerMod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig, callerSig},
		FunctionSection: []internalwasm.Index{0, 1},
		TableSection:    &internalwasm.TableType{Min: 1},
	}
	var callerBody []byte
	callerBody = append(callerBody, i32Const(5)...)
	callerBody = append(callerBody, opLocalGet, 0x00)
	callerBody = append(callerBody, opCallIndir)
	callerBody = append(callerBody, leb128.EncodeUint32(0)...) // type index
	callerBody = append(callerBody, 0x00)                      // reserved table index byte
	callerBody = append(callerBody, opEnd)
	caller := mustCompile(t, callerSig, nil, callerBody, callerMod)

	callerMod.CodeSection = []interface{}{target, caller}
	callerMod.FunctionSection = []internalwasm.Index{0, 1}
	inst := instantiate(t, callerMod)
	inst.TableInstance.Table[0] = inst.Functions[0]

	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[1], numeric.I32(0))
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(6)}, results)
}

func TestEngine_CallIndirect_OutOfBoundsTraps(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		TableSection:    &internalwasm.TableType{Min: 1},
	}
	var body []byte
	body = append(body, i32Const(9)...)
	body = append(body, opCallIndir)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, 0x00)
	body = append(body, opEnd)
	code := mustCompile(t, sig, nil, body, mod)
	mod.CodeSection = []interface{}{code}
	inst := instantiate(t, mod)

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindTableAccessOutOfBounds, trap.Kind)
}

func TestEngine_CallIndirect_UninitializedElemTraps(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		TableSection:    &internalwasm.TableType{Min: 1},
	}
	var body []byte
	body = append(body, i32Const(0)...)
	body = append(body, opCallIndir)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, 0x00)
	body = append(body, opEnd)
	code := mustCompile(t, sig, nil, body, mod)
	mod.CodeSection = []interface{}{code}
	inst := instantiate(t, mod)

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindElemUninitialized, trap.Kind)
}

func TestEngine_CallIndirect_SignatureMismatchTraps(t *testing.T) {
	i32ToI32 := &internalwasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	noParams := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{i32ToI32, noParams},
		FunctionSection: []internalwasm.Index{0},
		TableSection:    &internalwasm.TableType{Min: 1},
	}
	var targetBody []byte
	targetBody = append(targetBody, opLocalGet, 0x00)
	targetBody = append(targetBody, opEnd)
	target := mustCompile(t, i32ToI32, nil, targetBody, mod)

	var callerBody []byte
	callerBody = append(callerBody, i32Const(0)...)
	callerBody = append(callerBody, opCallIndir)
	callerBody = append(callerBody, leb128.EncodeUint32(1)...) // expects noParams signature
	callerBody = append(callerBody, 0x00)
	callerBody = append(callerBody, opEnd)
	caller := mustCompile(t, noParams, nil, callerBody, mod)

	mod.FunctionSection = []internalwasm.Index{0, 1}
	mod.CodeSection = []interface{}{target, caller}
	inst := instantiate(t, mod)
	inst.TableInstance.Table[0] = inst.Functions[0]

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[1])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindUnexpectedSignature, trap.Kind)
}

func TestEngine_HostFunctionCall(t *testing.T) {
	hostSig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	hostFn := &internalwasm.FunctionInstance{
		Type: hostSig,
		GoFunc: func(ctx context.Context, mod api.HostFunctionCallContext, a, b int32) int32 {
			return a * b
		},
	}

	callerSig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{callerSig},
		FunctionSection: []internalwasm.Index{0, 0},
	}
	var body []byte
	body = append(body, opLocalGet, 0x00)
	body = append(body, opLocalGet, 0x01)
	body = append(body, opCall)
	body = append(body, leb128.EncodeUint32(1)...)
	body = append(body, opEnd)
	caller := mustCompile(t, callerSig, nil, body, mod)
	mod.CodeSection = []interface{}{caller}
	inst := instantiate(t, mod)
	inst.Functions[1].GoFunc = hostFn.GoFunc

	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0], numeric.I32(6), numeric.I32(7))
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(42)}, results)
}

func TestEngine_HostFunctionPanicBecomesTrap(t *testing.T) {
	hostFn := &internalwasm.FunctionInstance{
		Type: &internalwasm.FunctionType{},
		GoFunc: func(ctx context.Context, mod api.HostFunctionCallContext) {
			panic("boom")
		},
	}
	inst := &internalwasm.ModuleInstance{Functions: []*internalwasm.FunctionInstance{hostFn}}

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindUnreachable, trap.Kind)
}

func TestEngine_GlobalGetSet(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		GlobalSection: []*internalwasm.GlobalDefinition{
			{Type: &internalwasm.GlobalType{ValType: api.ValueTypeI32, Mutable: true}, Init: 10},
		},
	}
	var body []byte
	body = append(body, opGlobalGet, 0x00)
	body = append(body, i32Const(5)...)
	body = append(body, opI32Add)
	body = append(body, opGlobalSet, 0x00)
	body = append(body, opGlobalGet, 0x00)
	body = append(body, opEnd)
	code := mustCompile(t, sig, nil, body, mod)
	mod.CodeSection = []interface{}{code}
	inst := instantiate(t, mod)

	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(15)}, results)
}

func TestEngine_UnreachableTraps(t *testing.T) {
	sig := &internalwasm.FunctionType{}
	code := mustCompile(t, sig, nil, []byte{opUnreachable, opEnd}, nil)
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		CodeSection:     []interface{}{code},
	}
	inst := instantiate(t, mod)

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindUnreachable, trap.Kind)
}

func TestEngine_ValueStackOverflowTraps(t *testing.T) {
	old := buildoptions.ValueStackCapacity
	buildoptions.ValueStackCapacity = 4
	defer func() { buildoptions.ValueStackCapacity = old }()

	sig := &internalwasm.FunctionType{}
	var body []byte
	for i := 0; i < 8; i++ {
		body = append(body, i32Const(1)...)
	}
	for i := 0; i < 8; i++ {
		body = append(body, opDrop)
	}
	body = append(body, opEnd)
	code := mustCompile(t, sig, nil, body, nil)
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		CodeSection:     []interface{}{code},
	}
	inst := instantiate(t, mod)

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindStackOverflow, trap.Kind)
}

func TestEngine_CallStackOverflowTraps(t *testing.T) {
	old := buildoptions.CallStackCeiling
	buildoptions.CallStackCeiling = 3
	defer func() { buildoptions.CallStackCeiling = old }()

	sig := &internalwasm.FunctionType{}
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
	}
	var body []byte
	body = append(body, opCall)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, opEnd)
	code := mustCompile(t, sig, nil, body, mod)
	mod.CodeSection = []interface{}{code}
	inst := instantiate(t, mod)

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	trap, ok := wasmruntime.AsTrap(err)
	require.True(t, ok)
	require.Equal(t, wasmruntime.TrapKindStackOverflow, trap.Kind)
}

func TestEngine_FunctionError_ArityMismatch(t *testing.T) {
	sig := &internalwasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	code := mustCompile(t, sig, nil, []byte{opEnd}, nil)
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		CodeSection:     []interface{}{code},
	}
	inst := instantiate(t, mod)

	_, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	require.Error(t, err)
	var fnErr *wasmruntime.FunctionError
	require.ErrorAs(t, err, &fnErr)
}

func TestEngine_SelectAndDrop(t *testing.T) {
	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	var body []byte
	body = append(body, i32Const(1)...) // extra value, dropped
	body = append(body, opDrop)
	body = append(body, i32Const(11)...)
	body = append(body, i32Const(22)...)
	body = append(body, i32Const(1)...) // condition: true
	body = append(body, opSelect)
	body = append(body, opDrop)
	body = append(body, i32Const(99)...)
	body = append(body, opEnd)
	code := mustCompile(t, sig, nil, body, nil)
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{sig},
		FunctionSection: []internalwasm.Index{0},
		CodeSection:     []interface{}{code},
	}
	inst := instantiate(t, mod)

	results, err := NewEngine().Call(context.Background(), inst, inst.Functions[0])
	require.NoError(t, err)
	require.Equal(t, []numeric.Value{numeric.I32(99)}, results)
}
