package wazeroir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/leb128"
	internalwasm "github.com/gowasm/interp/internal/wasm"
)

func emptyModule() *internalwasm.Module {
	return &internalwasm.Module{}
}

func mustCompile(t *testing.T, sig *internalwasm.FunctionType, locals []api.ValueType, body []byte, mod *internalwasm.Module) *CompiledFunction {
	t.Helper()
	if mod == nil {
		mod = emptyModule()
	}
	f, err := Compile(&CompilationInput{
		Type:       sig,
		LocalTypes: locals,
		Body:       body,
		Module:     mod,
	})
	require.NoError(t, err)
	t.Log(Disassemble(f.Operations))
	return f
}

// An empty function (no params, no result) still emits an explicit Return.
func TestCompile_EmptyFunction(t *testing.T) {
	f := mustCompile(t, &internalwasm.FunctionType{}, nil, []byte{wasmOpEnd}, nil)
	require.Equal(t, []Operation{
		Return{DropKeep: DropKeep{Drop: 0, Keep: KeepNone}},
	}, f.Operations)
	require.EqualValues(t, 0, f.NumLocals)
}

// A function returning i32.const 0 compiles to a const push plus return.
func TestCompile_ReturnI32Const(t *testing.T) {
	body := append(append([]byte{wasmOpI32Const}, leb128.EncodeInt32(0)...), wasmOpEnd)
	f := mustCompile(t, &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}, nil, body, nil)
	require.Equal(t, []Operation{
		ConstI32{Value: 0},
		Return{DropKeep: DropKeep{Drop: 0, Keep: KeepSingle}},
	}, f.Operations)
}

// A function with one param and no body still has to drop that param on
// its way out through Return.
func TestCompile_ParamNoBody(t *testing.T) {
	sig := &internalwasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	f := mustCompile(t, sig, nil, []byte{wasmOpEnd}, nil)
	require.Equal(t, []Operation{
		Return{DropKeep: DropKeep{Drop: 1, Keep: KeepNone}},
	}, f.Operations)
	require.EqualValues(t, 1, f.NumLocals)
}

// A function returning its own i32 param by get_local 0.
func TestCompile_ReturnGetLocal(t *testing.T) {
	sig := &internalwasm.FunctionType{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	body := append(append([]byte{wasmOpLocalGet}, leb128.EncodeUint32(0)...), wasmOpEnd)
	f := mustCompile(t, sig, nil, body, nil)
	require.Equal(t, []Operation{
		GetLocal{Depth: 1},
		Return{DropKeep: DropKeep{Drop: 1, Keep: KeepSingle}},
	}, f.Operations)
}

// An if without a matching else still needs a skip target for the false
// branch, landing right after the if's own end:
//
//	i32.const 1
//	if
//	  i32.const 2
//	  return
//	end
//	i32.const 3
func TestCompile_IfNoElseSkipsToAfterEnd(t *testing.T) {
	var body []byte
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(1)...)
	body = append(body, wasmOpIf, byte(blockTypeEmpty&0x7F))
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(2)...)
	body = append(body, wasmOpReturn)
	body = append(body, wasmOpEnd) // end if
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(3)...)
	body = append(body, wasmOpEnd) // end function

	sig := &internalwasm.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	f := mustCompile(t, sig, nil, body, nil)

	require.Len(t, f.Operations, 6)
	require.Equal(t, ConstI32{Value: 1}, f.Operations[0])
	brIfEqz, ok := f.Operations[1].(BrIfEqz)
	require.True(t, ok)
	require.Equal(t, ConstI32{Value: 2}, f.Operations[2])
	require.Equal(t, Return{DropKeep: DropKeep{Drop: 0, Keep: KeepSingle}}, f.Operations[3])

	// The skip target is the instruction right after the if's matching end:
	// the i32.const 3 at index 4.
	require.EqualValues(t, 4, brIfEqz.Target.DstPC)
	require.Equal(t, ConstI32{Value: 3}, f.Operations[4])
	require.Equal(t, Return{DropKeep: DropKeep{Drop: 0, Keep: KeepSingle}}, f.Operations[5])
}

// A loop whose back-edge is a conditional branch to its own header:
//
//	loop
//	  i32.const 1
//	  br_if 0
//	  i32.const 2
//	end
//	drop
//
// br_if unconditionally pops its i32 condition before the generic
// DropKeep is computed (matching how the condition is consumed at
// runtime): the push-then-immediate-test of "i32.const 1; br_if 0"
// nets zero stack effect, so the back-edge's own DropKeep is
// {drop:0, keep:None} here -- a loop target always forces keep=None,
// and nothing besides the condition was pushed since the loop's entry.
func TestCompile_LoopBrIfTargetsHeader(t *testing.T) {
	var body []byte
	body = append(body, wasmOpLoop, byte(blockTypeI32&0x7F))
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(1)...)
	body = append(body, wasmOpBrIf)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(2)...)
	body = append(body, wasmOpEnd) // end loop
	body = append(body, wasmOpDrop)
	body = append(body, wasmOpEnd) // end function

	f := mustCompile(t, &internalwasm.FunctionType{}, nil, body, nil)

	// [0] ConstI32(1), [1] BrIfNez -> header(0), [2] ConstI32(2), [3] Drop, [4] Return
	require.Len(t, f.Operations, 5)
	require.Equal(t, ConstI32{Value: 1}, f.Operations[0])
	brIfNez, ok := f.Operations[1].(BrIfNez)
	require.True(t, ok)
	require.EqualValues(t, 0, brIfNez.Target.DstPC)
	require.Equal(t, DropKeep{Drop: 0, Keep: KeepNone}, brIfNez.Target.DropKeep)
	require.Equal(t, ConstI32{Value: 2}, f.Operations[2])
	require.Equal(t, Drop{}, f.Operations[3])
	require.Equal(t, Return{DropKeep: DropKeep{Drop: 0, Keep: KeepNone}}, f.Operations[4])
}

func TestCompile_BlockBranchCarriesResult(t *testing.T) {
	// block (result i32)
	//   i32.const 5
	//   br 0
	// end
	var body []byte
	body = append(body, wasmOpBlock, byte(blockTypeI32&0x7F))
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(5)...)
	body = append(body, wasmOpBr)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpEnd) // end block
	body = append(body, wasmOpDrop)
	body = append(body, wasmOpEnd) // end function

	f := mustCompile(t, &internalwasm.FunctionType{}, nil, body, nil)

	require.Equal(t, ConstI32{Value: 5}, f.Operations[0])
	br, ok := f.Operations[1].(Br)
	require.True(t, ok)
	require.Equal(t, DropKeep{Drop: 0, Keep: KeepSingle}, br.Target.DropKeep)
	require.EqualValues(t, 2, br.Target.DstPC)
	require.Equal(t, Drop{}, f.Operations[2])
}

// br_table's index operand is popped before each target's DropKeep is
// computed, exactly like br_if's condition -- only the extra value
// sitting below the index (i32.const 7) survives into drop.
func TestCompile_BrTableIndexPoppedBeforeDrop(t *testing.T) {
	// block
	//   i32.const 7   ; extra value sitting below the index
	//   i32.const 0   ; br_table index
	//   br_table 0 0
	// end
	var body []byte
	body = append(body, wasmOpBlock, byte(blockTypeEmpty&0x7F))
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(7)...)
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(0)...)
	body = append(body, wasmOpBrTable)
	body = append(body, leb128.EncodeUint32(1)...) // count (1 extra target beyond default)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpEnd) // end block (unreachable, never falls through)
	body = append(body, wasmOpEnd) // end function

	f := mustCompile(t, &internalwasm.FunctionType{}, nil, body, nil)
	brTable, ok := f.Operations[2].(BrTable)
	require.True(t, ok)
	require.Len(t, brTable.Targets, 2)
	for _, tgt := range brTable.Targets {
		// one extra value (i32.const 7) below the index, block has no result.
		require.Equal(t, DropKeep{Drop: 1, Keep: KeepNone}, tgt.DropKeep)
	}
}

func TestCompile_Call(t *testing.T) {
	mod := &internalwasm.Module{
		TypeSection:     []*internalwasm.FunctionType{{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}},
		FunctionSection: []internalwasm.Index{0},
	}
	var body []byte
	body = append(body, wasmOpLocalGet)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpCall)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpEnd)

	sig := &internalwasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	f := mustCompile(t, sig, nil, body, mod)

	require.Equal(t, GetLocal{Depth: 1}, f.Operations[0])
	require.Equal(t, Call{FuncIndex: 0}, f.Operations[1])
	require.Equal(t, Return{DropKeep: DropKeep{Drop: 1, Keep: KeepSingle}}, f.Operations[2])
}

func TestCompile_CallUnknownIndexFails(t *testing.T) {
	var body []byte
	body = append(body, wasmOpCall)
	body = append(body, leb128.EncodeUint32(9)...)
	body = append(body, wasmOpEnd)
	_, err := Compile(&CompilationInput{Type: &internalwasm.FunctionType{}, Body: body, Module: emptyModule()})
	require.Error(t, err)
}

func TestCompile_StackUnderflowFails(t *testing.T) {
	body := []byte{wasmOpDrop, wasmOpEnd}
	_, err := Compile(&CompilationInput{Type: &internalwasm.FunctionType{}, Body: body, Module: emptyModule()})
	require.Error(t, err)
}

func TestCompile_TypeMismatchFails(t *testing.T) {
	sig := &internalwasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeF32}}
	body := append(append([]byte{wasmOpLocalGet}, leb128.EncodeUint32(0)...), wasmOpEnd)
	_, err := Compile(&CompilationInput{Type: sig, Body: body, Module: emptyModule()})
	require.Error(t, err)
}

func TestCompile_UnreachablePolymorphicStack(t *testing.T) {
	// unreachable followed by an (impossible-in-practice-but-validator-
	// permitted) drop must not underflow: the unreachable region's operand
	// stack accepts any pop.
	body := []byte{wasmOpUnreachable, wasmOpDrop, wasmOpEnd}
	f := mustCompile(t, &internalwasm.FunctionType{}, nil, body, nil)
	require.Equal(t, Unreachable{}, f.Operations[0])
	require.Equal(t, Drop{}, f.Operations[1])
}

func TestCompile_SelectMismatchedTypesFails(t *testing.T) {
	sig := &internalwasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeF32}}
	var body []byte
	body = append(body, wasmOpLocalGet)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpLocalGet)
	body = append(body, leb128.EncodeUint32(1)...)
	body = append(body, wasmOpLocalGet)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpSelect)
	body = append(body, wasmOpDrop)
	body = append(body, wasmOpEnd)
	_, err := Compile(&CompilationInput{Type: sig, Body: body, Module: emptyModule()})
	require.Error(t, err)
}

func TestCompile_GlobalGetSet(t *testing.T) {
	mod := &internalwasm.Module{
		GlobalSection: []*internalwasm.GlobalDefinition{
			{Type: &internalwasm.GlobalType{ValType: api.ValueTypeI32, Mutable: true}},
		},
	}
	var body []byte
	body = append(body, wasmOpGlobalGet)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpGlobalSet)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpEnd)
	f := mustCompile(t, &internalwasm.FunctionType{}, nil, body, mod)
	require.Equal(t, GetGlobal{Index: 0}, f.Operations[0])
	require.Equal(t, SetGlobal{Index: 0}, f.Operations[1])
}

func TestCompile_ImmutableGlobalSetFails(t *testing.T) {
	mod := &internalwasm.Module{
		GlobalSection: []*internalwasm.GlobalDefinition{
			{Type: &internalwasm.GlobalType{ValType: api.ValueTypeI32, Mutable: false}},
		},
	}
	var body []byte
	body = append(body, wasmOpGlobalGet)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpGlobalSet)
	body = append(body, leb128.EncodeUint32(0)...)
	body = append(body, wasmOpEnd)
	_, err := Compile(&CompilationInput{Type: &internalwasm.FunctionType{}, Body: body, Module: mod})
	require.Error(t, err)
}

func TestCompile_LoadStoreRequiresMemory(t *testing.T) {
	var body []byte
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(0)...)
	body = append(body, wasmOpI32Load)
	body = append(body, 0x02, 0x00) // align, offset
	body = append(body, wasmOpEnd)
	_, err := Compile(&CompilationInput{Type: &internalwasm.FunctionType{}, Body: body, Module: emptyModule()})
	require.Error(t, err)
}

func TestCompile_LoadStoreWithMemory(t *testing.T) {
	mod := &internalwasm.Module{MemorySection: &internalwasm.MemoryType{Min: 1}}
	var body []byte
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(0)...)
	body = append(body, wasmOpI32Load)
	body = append(body, 0x02, 0x04) // align, offset=4
	body = append(body, wasmOpDrop)
	body = append(body, wasmOpEnd)
	f := mustCompile(t, &internalwasm.FunctionType{}, nil, body, mod)
	load, ok := f.Operations[1].(Load)
	require.True(t, ok)
	require.Equal(t, LoadTypeI32, load.Type)
	require.EqualValues(t, 4, load.Offset)
}

func TestCompile_NumericBinaryAndCompare(t *testing.T) {
	var body []byte
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(1)...)
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(2)...)
	body = append(body, wasmOpI32Add)
	body = append(body, wasmOpI32Const)
	body = append(body, leb128.EncodeInt32(0)...)
	body = append(body, wasmOpI32GtS)
	body = append(body, wasmOpDrop)
	body = append(body, wasmOpEnd)
	f := mustCompile(t, &internalwasm.FunctionType{}, nil, body, nil)
	require.Equal(t, Binary{Type: NumericTypeI32, Op: BinaryOpAdd}, f.Operations[2])
	require.Equal(t, Compare{Type: NumericTypeI32, Op: CompareOpGtS}, f.Operations[4])
}

func TestCompile_MaxStackHeightTracksLocals(t *testing.T) {
	sig := &internalwasm.FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	f := mustCompile(t, sig, []api.ValueType{api.ValueTypeI64}, []byte{wasmOpEnd}, nil)
	require.EqualValues(t, 2, f.NumLocals)
	require.EqualValues(t, 2, f.MaxStackHeight)
}

func TestDisassemble(t *testing.T) {
	f := mustCompile(t, &internalwasm.FunctionType{}, nil, []byte{wasmOpEnd}, nil)
	out := Disassemble(f.Operations)
	require.Contains(t, out, "Return")
}
