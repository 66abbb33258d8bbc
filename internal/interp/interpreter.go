// Package interp is the interpreter core: given an instantiated module and
// a function to run, it walks that function's wazeroir-compiled operation
// sequence on an explicit operand-stack/call-frame machine -- a
// goto-threaded flat program rather than a recursive structured-AST walk,
// so branches are an indexed jump instead of unwinding and re-entering
// nested Go calls.
package interp

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/buildoptions"
	"github.com/gowasm/interp/internal/numeric"
	internalwasm "github.com/gowasm/interp/internal/wasm"
	"github.com/gowasm/interp/internal/wasmdebug"
	"github.com/gowasm/interp/internal/wasmruntime"
	"github.com/gowasm/interp/internal/wazeroir"
)

// Engine runs compiled functions against a module instance. It holds no
// per-call state itself -- every invocation gets a fresh callEngine -- so
// one Engine is safe to share across concurrent calls.
type Engine struct{}

// NewEngine constructs an Engine.
func NewEngine() *Engine { return &Engine{} }

// Call invokes f (a member of mod's function namespace) with params,
// returning its results or the *wasmruntime.Trap / *wasmruntime.
// FunctionError that aborted it. A Trap only occurs once execution has
// begun; a FunctionError is raised before anything runs, when params don't
// match f's signature.
func (e *Engine) Call(ctx context.Context, mod *internalwasm.ModuleInstance, f *internalwasm.FunctionInstance, params ...numeric.Value) (results []numeric.Value, err error) {
	if err := checkParams(f.Type, params); err != nil {
		return nil, err
	}

	ce := &callEngine{mod: mod}
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(*wasmruntime.Trap); ok {
				err = t
				return
			}
			// Not a Trap: a genuine bug (index out of range, nil deref)
			// rather than well-behaved Wasm code hitting a documented trap
			// condition. Re-panic so it surfaces loudly instead of being
			// reported to the embedder as if it were spec-defined.
			panic(r)
		}
	}()

	for _, p := range params {
		ce.pushValue(p)
	}
	ce.callFunction(ctx, f)

	results = make([]numeric.Value, len(f.Type.Results))
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = ce.popValue()
	}
	return results, nil
}

func checkParams(t *internalwasm.FunctionType, params []numeric.Value) error {
	if len(params) != len(t.Params) {
		return wasmruntime.NewFunctionError("expected %d params, got %d", len(t.Params), len(params))
	}
	for i, p := range params {
		if p.Type != t.Params[i] {
			return wasmruntime.NewFunctionError("param[%d]: expected %s, got %s", i, api.ValueTypeName(t.Params[i]), api.ValueTypeName(p.Type))
		}
	}
	return nil
}

// callEngine is the per-invocation machine: one shared operand stack
// spanning every nested call (locals live on this stack too, per isa.rs),
// plus a call-frame stack for program-counter save/restore across calls.
type callEngine struct {
	stack  []numeric.Value
	frames []*callFrame
	mod    *internalwasm.ModuleInstance
}

// callFrame tracks one in-flight Wasm function activation. base is the
// stack index where this call's params began -- kept for reference and
// debugging even though, as it happens, GetLocal/SetLocal/TeeLocal's Depth
// and a Return's DropKeep are both expressed relative to the live stack
// height, so neither needs base to resolve correctly; base would only
// start mattering again if nested frames on the stack diverged from the
// current one's own, which they don't here.
type callFrame struct {
	pc   uint32
	base int
	fn   *internalwasm.FunctionInstance
	code *wazeroir.CompiledFunction
}

func (ce *callEngine) pushValue(v numeric.Value) {
	if len(ce.stack) >= buildoptions.ValueStackCapacity {
		panic(wasmruntime.ErrRuntimeStackOverflow)
	}
	ce.stack = append(ce.stack, v)
}

func (ce *callEngine) popValue() numeric.Value {
	v := ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1]
	return v
}

// applyDropKeep performs the stack surgery a branch or return's DropKeep
// describes: drop Drop values, optionally keeping the single value that
// was sitting above them.
func (ce *callEngine) applyDropKeep(dk wazeroir.DropKeep) {
	if dk.Keep == wazeroir.KeepNone {
		ce.stack = ce.stack[:len(ce.stack)-int(dk.Drop)]
		return
	}
	top := ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1-int(dk.Drop)]
	ce.stack = append(ce.stack, top)
}

func (ce *callEngine) pushFrame(f *callFrame) {
	if len(ce.frames) >= buildoptions.CallStackCeiling {
		panic(wasmruntime.ErrRuntimeCallStackOverflow)
	}
	ce.frames = append(ce.frames, f)
}

func (ce *callEngine) popFrame() {
	ce.frames = ce.frames[:len(ce.frames)-1]
}

// callFunction dispatches to f, either running its compiled body to
// completion or invoking its host closure, leaving exactly f.Type.Results
// values on ce.stack above where f.Type.Params used to be.
func (ce *callEngine) callFunction(ctx context.Context, f *internalwasm.FunctionInstance) {
	if f.IsHostFunction() {
		ce.callHostFunction(ctx, f)
		return
	}

	code, ok := f.Body.(*wazeroir.CompiledFunction)
	if !ok {
		panic(fmt.Errorf("BUG: function %s has no compiled body", f.DebugName()))
	}

	base := len(ce.stack) - len(f.Type.Params)
	for i := uint32(len(f.Type.Params)); i < code.NumLocals; i++ {
		ce.pushValue(numeric.Value{})
	}

	frame := &callFrame{base: base, fn: f, code: code}
	ce.pushFrame(frame)
	ce.run(ctx, frame)
	ce.popFrame()
}

// stepResult tells run how to advance the program counter after a
// handler runs.
type stepResult int

const (
	stepNext stepResult = iota
	stepBranch
	stepReturn
)

type opHandler func(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult

// opTable is the dispatch mechanism operations.go's doc comment
// prescribes: an array indexed by OperationKind, populated once at init,
// rather than a type-switch re-evaluated on every single instruction.
var opTable [wazeroir.OperationKindConversion + 1]opHandler

func init() {
	opTable[wazeroir.OperationKindUnreachable] = execUnreachable
	opTable[wazeroir.OperationKindReturn] = execReturn
	opTable[wazeroir.OperationKindBr] = execBr
	opTable[wazeroir.OperationKindBrIfEqz] = execBrIfEqz
	opTable[wazeroir.OperationKindBrIfNez] = execBrIfNez
	opTable[wazeroir.OperationKindBrTable] = execBrTable
	opTable[wazeroir.OperationKindCall] = execCall
	opTable[wazeroir.OperationKindCallIndirect] = execCallIndirect
	opTable[wazeroir.OperationKindDrop] = execDrop
	opTable[wazeroir.OperationKindSelect] = execSelect
	opTable[wazeroir.OperationKindGetLocal] = execGetLocal
	opTable[wazeroir.OperationKindSetLocal] = execSetLocal
	opTable[wazeroir.OperationKindTeeLocal] = execTeeLocal
	opTable[wazeroir.OperationKindGetGlobal] = execGetGlobal
	opTable[wazeroir.OperationKindSetGlobal] = execSetGlobal

	for _, k := range []wazeroir.OperationKind{
		wazeroir.OperationKindLoadI32, wazeroir.OperationKindLoadI64,
		wazeroir.OperationKindLoadF32, wazeroir.OperationKindLoadF64,
		wazeroir.OperationKindLoadI32I8S, wazeroir.OperationKindLoadI32I8U,
		wazeroir.OperationKindLoadI32I16S, wazeroir.OperationKindLoadI32I16U,
		wazeroir.OperationKindLoadI64I8S, wazeroir.OperationKindLoadI64I8U,
		wazeroir.OperationKindLoadI64I16S, wazeroir.OperationKindLoadI64I16U,
		wazeroir.OperationKindLoadI64I32S, wazeroir.OperationKindLoadI64I32U,
	} {
		opTable[k] = execLoad
	}
	for _, k := range []wazeroir.OperationKind{
		wazeroir.OperationKindStoreI32, wazeroir.OperationKindStoreI64,
		wazeroir.OperationKindStoreF32, wazeroir.OperationKindStoreF64,
		wazeroir.OperationKindStoreI32I8, wazeroir.OperationKindStoreI32I16,
		wazeroir.OperationKindStoreI64I8, wazeroir.OperationKindStoreI64I16,
		wazeroir.OperationKindStoreI64I32,
	} {
		opTable[k] = execStore
	}

	opTable[wazeroir.OperationKindMemorySize] = execMemorySize
	opTable[wazeroir.OperationKindMemoryGrow] = execMemoryGrow
	opTable[wazeroir.OperationKindConstI32] = execConstI32
	opTable[wazeroir.OperationKindConstI64] = execConstI64
	opTable[wazeroir.OperationKindConstF32] = execConstF32
	opTable[wazeroir.OperationKindConstF64] = execConstF64
	opTable[wazeroir.OperationKindEqz] = execEqz
	opTable[wazeroir.OperationKindCompare] = execCompare
	opTable[wazeroir.OperationKindUnary] = execUnary
	opTable[wazeroir.OperationKindBinary] = execBinary
	opTable[wazeroir.OperationKindConversion] = execConversion
}

// run drives frame's operations to completion: either an explicit Return
// (which pops this activation's locals/temporaries per its DropKeep and
// hands control back to callFunction) or falling off the end of the
// operation list, which compileBody never actually leaves reachable but
// run tolerates defensively.
func (ce *callEngine) run(ctx context.Context, frame *callFrame) {
	ops := frame.code.Operations
	for int(frame.pc) < len(ops) {
		op := ops[frame.pc]
		switch opTable[op.Kind()](ce, frame, ctx, op) {
		case stepReturn:
			return
		case stepBranch:
			// handler already set frame.pc to the branch target.
		default:
			frame.pc++
		}
	}
}

// --- control ---------------------------------------------------------------

func execUnreachable(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	panic(wasmruntime.ErrRuntimeUnreachable)
}

func execReturn(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	ce.applyDropKeep(op.(wazeroir.Return).DropKeep)
	return stepReturn
}

func execBr(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	t := op.(wazeroir.Br).Target
	ce.applyDropKeep(t.DropKeep)
	frame.pc = t.DstPC
	return stepBranch
}

func execBrIfEqz(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	t := op.(wazeroir.BrIfEqz).Target
	if !ce.popValue().IsTrue() {
		ce.applyDropKeep(t.DropKeep)
		frame.pc = t.DstPC
		return stepBranch
	}
	return stepNext
}

func execBrIfNez(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	t := op.(wazeroir.BrIfNez).Target
	if ce.popValue().IsTrue() {
		ce.applyDropKeep(t.DropKeep)
		frame.pc = t.DstPC
		return stepBranch
	}
	return stepNext
}

func execBrTable(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	targets := op.(wazeroir.BrTable).Targets
	idx := ce.popValue().I32u()
	if idx >= uint32(len(targets)-1) {
		idx = uint32(len(targets) - 1) // last entry is always the default
	}
	t := targets[idx]
	ce.applyDropKeep(t.DropKeep)
	frame.pc = t.DstPC
	return stepBranch
}

func execCall(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	idx := op.(wazeroir.Call).FuncIndex
	f := ce.mod.FunctionByIndex(idx)
	if f == nil {
		panic(fmt.Errorf("BUG: call target function index %d out of range", idx))
	}
	ce.callFunction(ctx, f)
	return stepNext
}

func execCallIndirect(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	ci := op.(wazeroir.CallIndirect)
	offset := ce.popValue().I32u()
	table := ce.mod.TableByIndex(ci.TableIndex)
	if table == nil || offset >= uint32(len(table.Table)) {
		panic(wasmruntime.ErrRuntimeTableAccessOutOfBounds)
	}
	f := table.Table[offset]
	if f == nil {
		panic(wasmruntime.ErrRuntimeElemUninitialized)
	}
	expected := ce.mod.SignatureByIndex(ci.TypeIndex)
	if expected == nil || !f.Type.EqualsSignature(expected) {
		panic(wasmruntime.ErrRuntimeUnexpectedSignature)
	}
	ce.callFunction(ctx, f)
	return stepNext
}

func execDrop(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	ce.popValue()
	return stepNext
}

func execSelect(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	cond := ce.popValue()
	b := ce.popValue()
	a := ce.popValue()
	if cond.IsTrue() {
		ce.pushValue(a)
	} else {
		ce.pushValue(b)
	}
	return stepNext
}

// --- variable access ---------------------------------------------------------

// localIndex converts a GetLocal/SetLocal/TeeLocal's compile-time Depth
// (distance from the top of the operand stack at the moment the compiler
// measured it) back into an absolute index into the shared stack. Depth
// is defined purely in terms of height *above this function's own locals
// region*, and since that region's distance from the true stack bottom is
// a constant for the whole activation, it cancels out of the subtraction:
// the live stack length always stands in for the frame-relative height
// the compiler actually used.
func localIndex(ce *callEngine, depth uint32) int {
	return len(ce.stack) - int(depth)
}

func execGetLocal(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	idx := localIndex(ce, op.(wazeroir.GetLocal).Depth)
	ce.pushValue(ce.stack[idx])
	return stepNext
}

func execSetLocal(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	// Depth was measured before the popExpect that consumes this value,
	// so idx must be computed while that value is still on the stack.
	idx := localIndex(ce, op.(wazeroir.SetLocal).Depth)
	v := ce.popValue()
	ce.stack[idx] = v
	return stepNext
}

func execTeeLocal(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	idx := localIndex(ce, op.(wazeroir.TeeLocal).Depth)
	ce.stack[idx] = ce.stack[len(ce.stack)-1]
	return stepNext
}

func execGetGlobal(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	g := ce.mod.GlobalByIndex(op.(wazeroir.GetGlobal).Index)
	ce.pushValue(g.ValueOf())
	return stepNext
}

func execSetGlobal(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	g := ce.mod.GlobalByIndex(op.(wazeroir.SetGlobal).Index)
	g.SetValue(ce.popValue())
	return stepNext
}

// --- constants ---------------------------------------------------------------

func execConstI32(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	ce.pushValue(numeric.I32(op.(wazeroir.ConstI32).Value))
	return stepNext
}

func execConstI64(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	ce.pushValue(numeric.I64(op.(wazeroir.ConstI64).Value))
	return stepNext
}

func execConstF32(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	ce.pushValue(numeric.F32(op.(wazeroir.ConstF32).Value))
	return stepNext
}

func execConstF64(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	ce.pushValue(numeric.F64(op.(wazeroir.ConstF64).Value))
	return stepNext
}

// --- host calls ---------------------------------------------------------------

// hostCallContext adapts a (context.Context, *ModuleInstance) pair to
// api.HostFunctionCallContext, the argument host functions receive.
type hostCallContext struct {
	ctx context.Context
	mod *internalwasm.ModuleInstance
}

func (h hostCallContext) Context() context.Context { return h.ctx }
func (h hostCallContext) Memory() api.Memory       { return h.mod.Memory() }

// callHostFunction pops f's params off the stack, invokes its Go closure
// through reflection, and pushes its results. Panics from the closure are
// recovered and re-raised as a trap rather than crashing the embedder's
// goroutine.
func (ce *callEngine) callHostFunction(ctx context.Context, f *internalwasm.FunctionInstance) {
	params := make([]numeric.Value, len(f.Type.Params))
	for i := len(params) - 1; i >= 0; i-- {
		params[i] = ce.popValue()
	}

	fv := f.GoFuncValue()
	ft := fv.Type()
	args := make([]reflect.Value, 0, ft.NumIn())
	args = append(args, reflect.ValueOf(ctx), reflect.ValueOf(hostCallContext{ctx: ctx, mod: ce.mod}))
	for i, p := range params {
		args = append(args, valueToReflect(ft.In(i+2), p))
	}

	var out []reflect.Value
	if err := wasmdebug.RecoverOnPanic(func() { out = fv.Call(args) }); err != nil {
		panic(wasmruntime.NewTrap(wasmruntime.TrapKindUnreachable, "host function %s panicked: %v", f.DebugName(), err))
	}

	for i, rv := range out {
		ce.pushValue(reflectToValue(f.Type.Results[i], rv))
	}
}

func valueToReflect(t reflect.Type, v numeric.Value) reflect.Value {
	switch t.Kind() {
	case reflect.Int32:
		return reflect.ValueOf(v.I32())
	case reflect.Uint32:
		return reflect.ValueOf(v.I32u())
	case reflect.Int64:
		return reflect.ValueOf(v.I64())
	case reflect.Uint64:
		return reflect.ValueOf(v.I64u())
	case reflect.Float32:
		return reflect.ValueOf(v.F32())
	case reflect.Float64:
		return reflect.ValueOf(v.F64())
	default:
		panic(fmt.Sprintf("BUG: unsupported host function parameter type %s", t))
	}
}

func reflectToValue(t api.ValueType, rv reflect.Value) numeric.Value {
	switch t {
	case api.ValueTypeI32:
		if rv.Kind() == reflect.Uint32 {
			return numeric.I32(int32(rv.Uint()))
		}
		return numeric.I32(int32(rv.Int()))
	case api.ValueTypeI64:
		if rv.Kind() == reflect.Uint64 {
			return numeric.I64(int64(rv.Uint()))
		}
		return numeric.I64(rv.Int())
	case api.ValueTypeF32:
		return numeric.F32(float32(rv.Float()))
	case api.ValueTypeF64:
		return numeric.F64(rv.Float())
	default:
		panic(fmt.Sprintf("BUG: unknown result value type %d", t))
	}
}
