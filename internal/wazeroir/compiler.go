package wazeroir

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/leb128"
	internalwasm "github.com/gowasm/interp/internal/wasm"
	"github.com/gowasm/interp/internal/wasmruntime"
)

// Wasm opcode bytes the compiler reads directly off a function's raw body,
// matching the WebAssembly MVP binary encoding.
const (
	wasmOpUnreachable = 0x00
	wasmOpNop         = 0x01
	wasmOpBlock       = 0x02
	wasmOpLoop        = 0x03
	wasmOpIf          = 0x04
	wasmOpElse        = 0x05
	wasmOpEnd         = 0x0B
	wasmOpBr          = 0x0C
	wasmOpBrIf        = 0x0D
	wasmOpBrTable     = 0x0E
	wasmOpReturn      = 0x0F
	wasmOpCall        = 0x10
	wasmOpCallIndir   = 0x11
	wasmOpDrop        = 0x1A
	wasmOpSelect      = 0x1B
	wasmOpLocalGet    = 0x20
	wasmOpLocalSet    = 0x21
	wasmOpLocalTee    = 0x22
	wasmOpGlobalGet   = 0x23
	wasmOpGlobalSet   = 0x24

	wasmOpI32Load    = 0x28
	wasmOpI64Load    = 0x29
	wasmOpF32Load    = 0x2A
	wasmOpF64Load    = 0x2B
	wasmOpI32Load8S  = 0x2C
	wasmOpI32Load8U  = 0x2D
	wasmOpI32Load16S = 0x2E
	wasmOpI32Load16U = 0x2F
	wasmOpI64Load8S  = 0x30
	wasmOpI64Load8U  = 0x31
	wasmOpI64Load16S = 0x32
	wasmOpI64Load16U = 0x33
	wasmOpI64Load32S = 0x34
	wasmOpI64Load32U = 0x35
	wasmOpI32Store   = 0x36
	wasmOpI64Store   = 0x37
	wasmOpF32Store   = 0x38
	wasmOpF64Store   = 0x39
	wasmOpI32Store8  = 0x3A
	wasmOpI32Store16 = 0x3B
	wasmOpI64Store8  = 0x3C
	wasmOpI64Store16 = 0x3D
	wasmOpI64Store32 = 0x3E
	wasmOpMemorySize = 0x3F
	wasmOpMemoryGrow = 0x40

	wasmOpI32Const = 0x41
	wasmOpI64Const = 0x42
	wasmOpF32Const = 0x43
	wasmOpF64Const = 0x44

	wasmOpI32Eqz  = 0x45
	wasmOpI32Eq   = 0x46
	wasmOpI32Ne   = 0x47
	wasmOpI32LtS  = 0x48
	wasmOpI32LtU  = 0x49
	wasmOpI32GtS  = 0x4A
	wasmOpI32GtU  = 0x4B
	wasmOpI32LeS  = 0x4C
	wasmOpI32LeU  = 0x4D
	wasmOpI32GeS  = 0x4E
	wasmOpI32GeU  = 0x4F
	wasmOpI64Eqz  = 0x50
	wasmOpI64Eq   = 0x51
	wasmOpI64Ne   = 0x52
	wasmOpI64LtS  = 0x53
	wasmOpI64LtU  = 0x54
	wasmOpI64GtS  = 0x55
	wasmOpI64GtU  = 0x56
	wasmOpI64LeS  = 0x57
	wasmOpI64LeU  = 0x58
	wasmOpI64GeS  = 0x59
	wasmOpI64GeU  = 0x5A
	wasmOpF32Eq   = 0x5B
	wasmOpF32Ne   = 0x5C
	wasmOpF32Lt   = 0x5D
	wasmOpF32Gt   = 0x5E
	wasmOpF32Le   = 0x5F
	wasmOpF32Ge   = 0x60
	wasmOpF64Eq   = 0x61
	wasmOpF64Ne   = 0x62
	wasmOpF64Lt   = 0x63
	wasmOpF64Gt   = 0x64
	wasmOpF64Le   = 0x65
	wasmOpF64Ge   = 0x66

	wasmOpI32Clz    = 0x67
	wasmOpI32Ctz    = 0x68
	wasmOpI32Popcnt = 0x69
	wasmOpI32Add    = 0x6A
	wasmOpI32Sub    = 0x6B
	wasmOpI32Mul    = 0x6C
	wasmOpI32DivS   = 0x6D
	wasmOpI32DivU   = 0x6E
	wasmOpI32RemS   = 0x6F
	wasmOpI32RemU   = 0x70
	wasmOpI32And    = 0x71
	wasmOpI32Or     = 0x72
	wasmOpI32Xor    = 0x73
	wasmOpI32Shl    = 0x74
	wasmOpI32ShrS   = 0x75
	wasmOpI32ShrU   = 0x76
	wasmOpI32Rotl   = 0x77
	wasmOpI32Rotr   = 0x78

	wasmOpI64Clz    = 0x79
	wasmOpI64Ctz    = 0x7A
	wasmOpI64Popcnt = 0x7B
	wasmOpI64Add    = 0x7C
	wasmOpI64Sub    = 0x7D
	wasmOpI64Mul    = 0x7E
	wasmOpI64DivS   = 0x7F
	wasmOpI64DivU   = 0x80
	wasmOpI64RemS   = 0x81
	wasmOpI64RemU   = 0x82
	wasmOpI64And    = 0x83
	wasmOpI64Or     = 0x84
	wasmOpI64Xor    = 0x85
	wasmOpI64Shl    = 0x86
	wasmOpI64ShrS   = 0x87
	wasmOpI64ShrU   = 0x88
	wasmOpI64Rotl   = 0x89
	wasmOpI64Rotr   = 0x8A

	wasmOpF32Abs     = 0x8B
	wasmOpF32Neg     = 0x8C
	wasmOpF32Ceil    = 0x8D
	wasmOpF32Floor   = 0x8E
	wasmOpF32Trunc   = 0x8F
	wasmOpF32Nearest = 0x90
	wasmOpF32Sqrt    = 0x91
	wasmOpF32Add     = 0x92
	wasmOpF32Sub     = 0x93
	wasmOpF32Mul     = 0x94
	wasmOpF32Div     = 0x95
	wasmOpF32Min     = 0x96
	wasmOpF32Max     = 0x97
	wasmOpF32Copysig = 0x98

	wasmOpF64Abs     = 0x99
	wasmOpF64Neg     = 0x9A
	wasmOpF64Ceil    = 0x9B
	wasmOpF64Floor   = 0x9C
	wasmOpF64Trunc   = 0x9D
	wasmOpF64Nearest = 0x9E
	wasmOpF64Sqrt    = 0x9F
	wasmOpF64Add     = 0xA0
	wasmOpF64Sub     = 0xA1
	wasmOpF64Mul     = 0xA2
	wasmOpF64Div     = 0xA3
	wasmOpF64Min     = 0xA4
	wasmOpF64Max     = 0xA5
	wasmOpF64Copysig = 0xA6

	wasmOpI32WrapI64        = 0xA7
	wasmOpI32TruncF32S      = 0xA8
	wasmOpI32TruncF32U      = 0xA9
	wasmOpI32TruncF64S      = 0xAA
	wasmOpI32TruncF64U      = 0xAB
	wasmOpI64ExtendI32S     = 0xAC
	wasmOpI64ExtendI32U     = 0xAD
	wasmOpI64TruncF32S      = 0xAE
	wasmOpI64TruncF32U      = 0xAF
	wasmOpI64TruncF64S      = 0xB0
	wasmOpI64TruncF64U      = 0xB1
	wasmOpF32ConvertI32S    = 0xB2
	wasmOpF32ConvertI32U    = 0xB3
	wasmOpF32ConvertI64S    = 0xB4
	wasmOpF32ConvertI64U    = 0xB5
	wasmOpF32DemoteF64      = 0xB6
	wasmOpF64ConvertI32S    = 0xB7
	wasmOpF64ConvertI32U    = 0xB8
	wasmOpF64ConvertI64S    = 0xB9
	wasmOpF64ConvertI64U    = 0xBA
	wasmOpF64PromoteF32     = 0xBB
	wasmOpI32ReinterpretF32 = 0xBC
	wasmOpI64ReinterpretF64 = 0xBD
	wasmOpF32ReinterpretI32 = 0xBE
	wasmOpF64ReinterpretI64 = 0xBF
)

// blockTypeEmpty/I32/I64/F32/F64 are the signed-LEB33 encodings a Wasm
// blocktype immediate takes for a result arity of 0 or 1 (see
// leb128.DecodeInt33AsInt64, the reader used for blocktypes; only these
// five values, plus a non-negative type index, are legal encodings).
const (
	blockTypeEmpty = -0x40
	blockTypeI32   = -0x01
	blockTypeI64   = -0x02
	blockTypeF32   = -0x03
	blockTypeF64   = -0x04
)

type operandType = api.ValueType

// operandTypeUnknown is the polymorphic wildcard pushed/matched within a
// frame marked unreachable, where validation no longer knows or cares
// what's really on the stack below the unreachable point. Zero is never
// a real ValueType (those are 0x7c-0x7f), so it is safe as a sentinel.
const operandTypeUnknown operandType = 0

type controlFrameKind int

const (
	controlFrameKindFunction controlFrameKind = iota
	controlFrameKindBlock
	controlFrameKindLoop
	controlFrameKindIf
)

// branchFixup is a not-yet-resolved branch site: either a plain
// Br/BrIfEqz/BrIfNez Operation (targetsIndex == -1) or one entry of a
// BrTable's Targets slice (targetsIndex is that entry's index).
type branchFixup struct {
	opsIndex     int
	targetsIndex int
}

// controlFrame is one active block/loop/if/function scope during
// compilation, tracking what's needed to resolve branch targets and
// collapse the operand stack on exit.
type controlFrame struct {
	kind controlFrameKind

	// hasResult is whether the frame's block type yields a value; MVP
	// blocktypes have at most one result and never take params.
	hasResult bool

	// stackFloor is the operand-type-stack height (locals included) when
	// this frame was entered.
	stackFloor int

	unreachable bool

	loopHeaderPC uint32 // valid iff kind == controlFrameKindLoop

	// pendingBranches resolve to this frame's exit PC (the position right
	// after its matching `end`) once that position is known.
	pendingBranches []branchFixup

	// ifElseFixup is the `if`'s own conditional branch (BrIfEqz), pending
	// until `else` (patched to the else's start) or `end` (patched to the
	// frame's exit, same as pendingBranches) is reached. opsIndex == -1
	// once resolved or not applicable.
	ifElseFixup branchFixup
}

// CompilationInput is a single function's compile-time inputs: its
// signature, its declared (non-parameter) local types, its raw Wasm
// body bytes (opcode stream, no leading size prefix), and the module it
// will be compiled within (for call/global/type lookups).
type CompilationInput struct {
	FuncIndex  internalwasm.Index
	Type       *internalwasm.FunctionType
	LocalTypes []api.ValueType
	Body       []byte
	Module     *internalwasm.Module
}

type functionCompiler struct {
	in *CompilationInput

	localTypes []operandType // params followed by declared locals
	typeStack  []operandType
	maxHeight  int

	frames []*controlFrame

	ops []Operation
}

// Compile lowers a structured Wasm function body -- nested blocks, loops,
// ifs and branches -- into a flat CompiledFunction the interpreter loop
// can execute without a call stack of its own.
func Compile(in *CompilationInput) (*CompiledFunction, error) {
	c := &functionCompiler{in: in}
	c.localTypes = make([]operandType, 0, len(in.Type.Params)+len(in.LocalTypes))
	c.localTypes = append(c.localTypes, in.Type.Params...)
	c.localTypes = append(c.localTypes, in.LocalTypes...)

	// Seed the operand-type stack with the locals region; locals never
	// pop off this stack, only operands pushed above it do.
	c.typeStack = append([]operandType{}, c.localTypes...)
	c.maxHeight = c.height()

	fnHasResult := len(in.Type.Results) == 1
	c.frames = append(c.frames, &controlFrame{
		kind:        controlFrameKindFunction,
		hasResult:   fnHasResult,
		stackFloor:  c.height(), // == len(localTypes); a br reaching here lands at numLocals+keep, and the Return it jumps to then drops the locals too
		ifElseFixup: branchFixup{opsIndex: -1},
	})

	r := bytes.NewReader(in.Body)
	if err := c.compileBody(r); err != nil {
		return nil, err
	}

	return &CompiledFunction{
		Operations:     c.ops,
		NumLocals:      uint32(len(c.localTypes)),
		MaxStackHeight: uint32(c.maxHeight),
	}, nil
}

func (c *functionCompiler) errf(format string, args ...interface{}) error {
	return wasmruntime.NewValidationError(int(c.in.FuncIndex), format, args...)
}

func (c *functionCompiler) currentFrame() *controlFrame { return c.frames[len(c.frames)-1] }

func (c *functionCompiler) height() int { return len(c.typeStack) }

func (c *functionCompiler) push(t operandType) {
	c.typeStack = append(c.typeStack, t)
	if h := c.height(); h > c.maxHeight {
		c.maxHeight = h
	}
}

func (c *functionCompiler) pop() (operandType, error) {
	f := c.currentFrame()
	if c.height() <= f.stackFloor {
		if f.unreachable {
			return operandTypeUnknown, nil
		}
		return 0, c.errf("stack underflow")
	}
	t := c.typeStack[len(c.typeStack)-1]
	c.typeStack = c.typeStack[:len(c.typeStack)-1]
	return t, nil
}

func (c *functionCompiler) popExpect(want operandType) error {
	got, err := c.pop()
	if err != nil {
		return err
	}
	if got != operandTypeUnknown && got != want {
		return c.errf("type mismatch: expected %s, got %s", api.ValueTypeName(want), api.ValueTypeName(got))
	}
	return nil
}

func (c *functionCompiler) popI32() error { return c.popExpect(api.ValueTypeI32) }

func (c *functionCompiler) emit(op Operation) int {
	c.ops = append(c.ops, op)
	return len(c.ops) - 1
}

// pc is the program counter an instruction emitted right now would
// occupy (equivalently, the exit PC of a frame ending at this point).
func (c *functionCompiler) pc() uint32 { return uint32(len(c.ops)) }

// --- Body driver -----------------------------------------------------------

func (c *functionCompiler) compileBody(r *bytes.Reader) error {
	for {
		op, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return c.errf("function body missing final end")
			}
			return err
		}
		done, err := c.compileOp(r, op)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// compileOp compiles a single structured opcode, returning done=true once
// the function's implicit outermost frame has been closed by its `end`.
func (c *functionCompiler) compileOp(r *bytes.Reader, op byte) (done bool, err error) {
	switch op {
	case wasmOpUnreachable:
		c.emit(Unreachable{})
		c.currentFrame().unreachable = true
	case wasmOpNop:
		// no operand effect, nothing to emit: the flat ISA has no Nop (isa.rs).
	case wasmOpBlock:
		return false, c.compileBlock(r)
	case wasmOpLoop:
		return false, c.compileLoop(r)
	case wasmOpIf:
		return false, c.compileIf(r)
	case wasmOpElse:
		return false, c.compileElse()
	case wasmOpEnd:
		return c.compileEnd()
	case wasmOpBr:
		return false, c.compileBr(r, false)
	case wasmOpBrIf:
		return false, c.compileBr(r, true)
	case wasmOpBrTable:
		return false, c.compileBrTable(r)
	case wasmOpReturn:
		return false, c.compileReturnInstr()
	case wasmOpCall:
		return false, c.compileCall(r)
	case wasmOpCallIndir:
		return false, c.compileCallIndirect(r)
	case wasmOpDrop:
		if _, err := c.pop(); err != nil {
			return false, err
		}
		c.emit(Drop{})
	case wasmOpSelect:
		return false, c.compileSelect()
	case wasmOpLocalGet:
		return false, c.compileLocalGet(r)
	case wasmOpLocalSet:
		return false, c.compileLocalSet(r, false)
	case wasmOpLocalTee:
		return false, c.compileLocalSet(r, true)
	case wasmOpGlobalGet:
		return false, c.compileGlobalGet(r)
	case wasmOpGlobalSet:
		return false, c.compileGlobalSet(r)
	case wasmOpI32Load, wasmOpI64Load, wasmOpF32Load, wasmOpF64Load,
		wasmOpI32Load8S, wasmOpI32Load8U, wasmOpI32Load16S, wasmOpI32Load16U,
		wasmOpI64Load8S, wasmOpI64Load8U, wasmOpI64Load16S, wasmOpI64Load16U,
		wasmOpI64Load32S, wasmOpI64Load32U:
		return false, c.compileLoad(r, op)
	case wasmOpI32Store, wasmOpI64Store, wasmOpF32Store, wasmOpF64Store,
		wasmOpI32Store8, wasmOpI32Store16, wasmOpI64Store8, wasmOpI64Store16, wasmOpI64Store32:
		return false, c.compileStore(r, op)
	case wasmOpMemorySize:
		if _, _, err := leb128.DecodeUint32(r); err != nil { // reserved memory-index byte
			return false, err
		}
		if c.in.Module.MemorySection == nil {
			return false, c.errf("memory.size: module has no memory")
		}
		c.push(api.ValueTypeI32)
		c.emit(MemorySize{})
	case wasmOpMemoryGrow:
		if _, _, err := leb128.DecodeUint32(r); err != nil {
			return false, err
		}
		if c.in.Module.MemorySection == nil {
			return false, c.errf("memory.grow: module has no memory")
		}
		if err := c.popI32(); err != nil {
			return false, err
		}
		c.push(api.ValueTypeI32)
		c.emit(MemoryGrow{})
	case wasmOpI32Const:
		v, _, err := leb128.DecodeInt32(r)
		if err != nil {
			return false, err
		}
		c.push(api.ValueTypeI32)
		c.emit(ConstI32{Value: v})
	case wasmOpI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return false, err
		}
		c.push(api.ValueTypeI64)
		c.emit(ConstI64{Value: v})
	case wasmOpF32Const:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return false, err
		}
		bits := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		c.push(api.ValueTypeF32)
		c.emit(ConstF32{Value: math.Float32frombits(bits)})
	case wasmOpF64Const:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return false, err
		}
		var bits uint64
		for i := 7; i >= 0; i-- {
			bits = bits<<8 | uint64(buf[i])
		}
		c.push(api.ValueTypeF64)
		c.emit(ConstF64{Value: math.Float64frombits(bits)})
	default:
		return false, c.compileNumeric(op)
	}
	return false, nil
}

// --- Control flow ------------------------------------------------------

func (c *functionCompiler) readBlockType(r *bytes.Reader) (hasResult bool, err error) {
	v, _, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return false, err
	}
	switch v {
	case blockTypeEmpty:
		return false, nil
	case blockTypeI32, blockTypeI64, blockTypeF32, blockTypeF64:
		return true, nil
	default:
		if v >= 0 {
			return false, c.errf("multi-value block types are not supported")
		}
		return false, c.errf("invalid block type %d", v)
	}
}

func (c *functionCompiler) compileBlock(r *bytes.Reader) error {
	hasResult, err := c.readBlockType(r)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, &controlFrame{
		kind:        controlFrameKindBlock,
		hasResult:   hasResult,
		stackFloor:  c.height(),
		unreachable: c.currentFrame().unreachable,
		ifElseFixup: branchFixup{opsIndex: -1},
	})
	return c.compileBody(r)
}

func (c *functionCompiler) compileLoop(r *bytes.Reader) error {
	hasResult, err := c.readBlockType(r)
	if err != nil {
		return err
	}
	parentUnreachable := c.currentFrame().unreachable
	c.frames = append(c.frames, &controlFrame{
		kind:         controlFrameKindLoop,
		hasResult:    hasResult,
		stackFloor:   c.height(),
		unreachable:  parentUnreachable,
		loopHeaderPC: c.pc(),
		ifElseFixup:  branchFixup{opsIndex: -1},
	})
	return c.compileBody(r)
}

func (c *functionCompiler) compileIf(r *bytes.Reader) error {
	hasResult, err := c.readBlockType(r)
	if err != nil {
		return err
	}
	if err := c.popI32(); err != nil {
		return err
	}
	floor := c.height()
	// The if's own false-branch skip leaves the stack exactly at floor
	// (nothing has been produced yet), so it neither drops nor keeps
	// anything, whether it lands on the else arm or on the frame's exit.
	idx := c.emit(BrIfEqz{Target: Target{DropKeep: DropKeep{Keep: KeepNone}}})
	c.frames = append(c.frames, &controlFrame{
		kind:        controlFrameKindIf,
		hasResult:   hasResult,
		stackFloor:  floor,
		unreachable: c.currentFrame().unreachable,
		ifElseFixup: branchFixup{opsIndex: idx, targetsIndex: -1},
	})
	return c.compileBody(r)
}

func (c *functionCompiler) compileElse() error {
	f := c.currentFrame()
	if f.kind != controlFrameKindIf {
		return c.errf("else outside if")
	}
	keep := f.hasResult
	drop := c.height() - f.stackFloor
	if keep {
		drop--
	}
	if drop < 0 {
		drop = 0
	}
	// Jump to the frame's exit once the (taken) if-branch completes;
	// fixed up alongside every other branch targeting this frame's label.
	idx := c.emit(Br{Target: Target{DropKeep: DropKeep{Drop: uint32(drop), Keep: Keep(keep)}}})
	f.pendingBranches = append(f.pendingBranches, branchFixup{opsIndex: idx, targetsIndex: -1})

	// The original conditional branch resolves to right here: the start
	// of the else arm.
	c.patchTarget(f.ifElseFixup, c.pc())
	f.ifElseFixup.opsIndex = -1

	// Re-open the frame's operand stack at its floor for the else arm.
	c.typeStack = c.typeStack[:f.stackFloor]
	f.unreachable = false
	return nil
}

func (c *functionCompiler) compileEnd() (done bool, err error) {
	f := c.currentFrame()

	// An `if` with no `else` falls through on the false branch; resolve
	// its own conditional branch to the frame's exit like any other
	// pending branch targeting this label.
	if f.kind == controlFrameKindIf && f.ifElseFixup.opsIndex >= 0 {
		f.pendingBranches = append(f.pendingBranches, f.ifElseFixup)
	}

	if f.hasResult {
		// Pop the frame's result value. Blocks/loops/ifs don't track a
		// concrete per-block result type (only whether one exists, which
		// is all DropKeep math needs) so only presence is enforced there;
		// the function frame does know its declared result type, so
		// falling off the end without an explicit `return` is checked
		// against it exactly like compileReturnInstr does.
		if f.kind == controlFrameKindFunction {
			if err := c.popExpect(c.in.Type.Results[0]); err != nil {
				return false, err
			}
		} else if _, err := c.pop(); err != nil {
			return false, err
		}
	}
	if c.height() != f.stackFloor {
		if !f.unreachable {
			return false, c.errf("stack height mismatch at end: have %d want %d", c.height(), f.stackFloor)
		}
		c.typeStack = c.typeStack[:f.stackFloor]
	}
	if f.hasResult {
		c.push(operandTypeUnknown)
	}

	exitPC := c.pc()
	for _, fx := range f.pendingBranches {
		c.patchTarget(fx, exitPC)
	}

	if f.kind == controlFrameKindFunction {
		c.emitFunctionReturn()
		c.frames = c.frames[:len(c.frames)-1]
		return true, nil
	}

	c.frames = c.frames[:len(c.frames)-1]
	return false, nil
}

// patchTarget writes dstPC into the placeholder Target at fx; the
// DropKeep was already computed correctly at emission time and is left
// untouched.
func (c *functionCompiler) patchTarget(fx branchFixup, dstPC uint32) {
	switch o := c.ops[fx.opsIndex].(type) {
	case Br:
		o.Target.DstPC = dstPC
		c.ops[fx.opsIndex] = o
	case BrIfEqz:
		o.Target.DstPC = dstPC
		c.ops[fx.opsIndex] = o
	case BrIfNez:
		o.Target.DstPC = dstPC
		c.ops[fx.opsIndex] = o
	case BrTable:
		o.Targets[fx.targetsIndex].DstPC = dstPC
		c.ops[fx.opsIndex] = o
	default:
		panic(fmt.Sprintf("BUG: patchTarget on non-branch operation %T", o))
	}
}

// emitFunctionReturn emits the function-ending Return: keep matches the
// function's result arity, drop is the *entire* current operand height
// (locals included) minus keep, since returning unwinds the whole frame.
func (c *functionCompiler) emitFunctionReturn() {
	keep := len(c.in.Type.Results) == 1
	drop := c.height()
	if keep {
		drop--
	}
	c.emit(Return{DropKeep: DropKeep{Drop: uint32(drop), Keep: Keep(keep)}})
}

func (c *functionCompiler) compileReturnInstr() error {
	if len(c.in.Type.Results) == 1 {
		// Validate the return value's type, then push a placeholder back:
		// emitFunctionReturn's drop is computed from the current height,
		// which must still include the value it is about to keep (mirrors
		// compileEnd's identical pop-then-repush around the same call).
		if err := c.popExpect(c.in.Type.Results[0]); err != nil {
			return err
		}
		c.push(operandTypeUnknown)
	}
	c.emitFunctionReturn()
	c.currentFrame().unreachable = true
	return nil
}

// branchTarget resolves a br/br_if/br_table label depth to its
// control frame and computes the DropKeep that unwinds the operand stack
// down to that target on the way out.
func (c *functionCompiler) branchTarget(depth uint32) (*controlFrame, DropKeep, error) {
	if int(depth) >= len(c.frames) {
		return nil, DropKeep{}, c.errf("branch depth %d out of range", depth)
	}
	f := c.frames[len(c.frames)-1-int(depth)]
	keep := f.hasResult && f.kind != controlFrameKindLoop
	drop := c.height() - f.stackFloor
	if keep {
		drop--
	}
	if drop < 0 {
		drop = 0
	}
	return f, DropKeep{Drop: uint32(drop), Keep: Keep(keep)}, nil
}

func (c *functionCompiler) compileBr(r *bytes.Reader, conditional bool) error {
	depth, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	if conditional {
		if err := c.popI32(); err != nil {
			return err
		}
	}
	f, dk, err := c.branchTarget(depth)
	if err != nil {
		return err
	}
	if f.kind == controlFrameKindLoop {
		target := Target{DstPC: f.loopHeaderPC, DropKeep: dk}
		if conditional {
			c.emit(BrIfNez{Target: target})
		} else {
			c.emit(Br{Target: target})
		}
	} else {
		var op Operation
		if conditional {
			op = BrIfNez{Target: Target{DropKeep: dk}}
		} else {
			op = Br{Target: Target{DropKeep: dk}}
		}
		idx := c.emit(op)
		f.pendingBranches = append(f.pendingBranches, branchFixup{opsIndex: idx, targetsIndex: -1})
	}
	if !conditional {
		c.currentFrame().unreachable = true
	}
	return nil
}

func (c *functionCompiler) compileBrTable(r *bytes.Reader) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	depths := make([]uint32, count+1)
	for i := range depths {
		d, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return err
		}
		depths[i] = d
	}

	if err := c.popI32(); err != nil {
		return err
	}

	targets := make([]Target, len(depths))
	for i, depth := range depths {
		f, dk, err := c.branchTarget(depth)
		if err != nil {
			return err
		}
		if f.kind == controlFrameKindLoop {
			targets[i] = Target{DstPC: f.loopHeaderPC, DropKeep: dk}
		} else {
			targets[i] = Target{DropKeep: dk}
		}
	}
	idx := c.emit(BrTable{Targets: targets})
	for i, depth := range depths {
		f := c.frames[len(c.frames)-1-int(depth)]
		if f.kind != controlFrameKindLoop {
			f.pendingBranches = append(f.pendingBranches, branchFixup{opsIndex: idx, targetsIndex: i})
		}
	}
	c.currentFrame().unreachable = true
	return nil
}

// --- Calls -------------------------------------------------------------

func (c *functionCompiler) compileCall(r *bytes.Reader) error {
	idx, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	sig := c.in.Module.SignatureByFunctionIndex(idx)
	if sig == nil {
		return c.errf("call: function index %d out of range", idx)
	}
	for i := len(sig.Params) - 1; i >= 0; i-- {
		if err := c.popExpect(sig.Params[i]); err != nil {
			return err
		}
	}
	for _, res := range sig.Results {
		c.push(res)
	}
	c.emit(Call{FuncIndex: idx})
	return nil
}

func (c *functionCompiler) compileCallIndirect(r *bytes.Reader) error {
	typeIdx, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	tableIdx, _, err := leb128.DecodeUint32(r) // reserved table-index byte (always 0 in MVP)
	if err != nil {
		return err
	}
	if int(typeIdx) >= len(c.in.Module.TypeSection) {
		return c.errf("call_indirect: type index %d out of range", typeIdx)
	}
	if c.in.Module.TableSection == nil {
		return c.errf("call_indirect: module has no table")
	}
	sig := c.in.Module.TypeSection[typeIdx]
	if err := c.popI32(); err != nil { // table index operand
		return err
	}
	for i := len(sig.Params) - 1; i >= 0; i-- {
		if err := c.popExpect(sig.Params[i]); err != nil {
			return err
		}
	}
	for _, res := range sig.Results {
		c.push(res)
	}
	c.emit(CallIndirect{TypeIndex: typeIdx, TableIndex: tableIdx})
	return nil
}

// --- Parametric ----------------------------------------------------------

func (c *functionCompiler) compileSelect() error {
	if err := c.popI32(); err != nil {
		return err
	}
	b, err := c.pop()
	if err != nil {
		return err
	}
	a, err := c.pop()
	if err != nil {
		return err
	}
	if a != operandTypeUnknown && b != operandTypeUnknown && a != b {
		return c.errf("select: operand type mismatch")
	}
	result := a
	if result == operandTypeUnknown {
		result = b
	}
	c.push(result)
	c.emit(Select{})
	return nil
}

// --- Variables -----------------------------------------------------------

func (c *functionCompiler) localIndex(r *bytes.Reader) (uint32, operandType, error) {
	idx, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return 0, 0, err
	}
	if int(idx) >= len(c.localTypes) {
		return 0, 0, c.errf("local index %d out of range", idx)
	}
	return idx, c.localTypes[idx], nil
}

func (c *functionCompiler) compileLocalGet(r *bytes.Reader) error {
	idx, t, err := c.localIndex(r)
	if err != nil {
		return err
	}
	depth := uint32(c.height()) - idx
	c.push(t)
	c.emit(GetLocal{Depth: depth})
	return nil
}

func (c *functionCompiler) compileLocalSet(r *bytes.Reader, tee bool) error {
	idx, t, err := c.localIndex(r)
	if err != nil {
		return err
	}
	depth := uint32(c.height()) - idx // position relative to the stack top before the pop below
	if err := c.popExpect(t); err != nil {
		return err
	}
	if tee {
		c.push(t)
		c.emit(TeeLocal{Depth: depth})
	} else {
		c.emit(SetLocal{Depth: depth})
	}
	return nil
}

func (c *functionCompiler) compileGlobalGet(r *bytes.Reader) error {
	idx, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	g := c.in.Module.GlobalTypeByIndex(idx)
	if g == nil {
		return c.errf("global index %d out of range", idx)
	}
	c.push(g.ValType)
	c.emit(GetGlobal{Index: idx})
	return nil
}

func (c *functionCompiler) compileGlobalSet(r *bytes.Reader) error {
	idx, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	g := c.in.Module.GlobalTypeByIndex(idx)
	if g == nil {
		return c.errf("global index %d out of range", idx)
	}
	if !g.Mutable {
		return c.errf("global.set: global %d is immutable", idx)
	}
	if err := c.popExpect(g.ValType); err != nil {
		return err
	}
	c.emit(SetGlobal{Index: idx})
	return nil
}

// --- Memory ----------------------------------------------------------------

func (c *functionCompiler) readMemarg(r *bytes.Reader) (offset uint32, err error) {
	if _, _, err = leb128.DecodeUint32(r); err != nil { // align hint, decoded and discarded
		return 0, err
	}
	offset, _, err = leb128.DecodeUint32(r)
	return offset, err
}

func (c *functionCompiler) compileLoad(r *bytes.Reader, op byte) error {
	if c.in.Module.MemorySection == nil {
		return c.errf("memory instruction: module has no memory")
	}
	offset, err := c.readMemarg(r)
	if err != nil {
		return err
	}
	if err := c.popI32(); err != nil {
		return err
	}
	var lt LoadType
	var resultType operandType
	switch op {
	case wasmOpI32Load:
		lt, resultType = LoadTypeI32, api.ValueTypeI32
	case wasmOpI64Load:
		lt, resultType = LoadTypeI64, api.ValueTypeI64
	case wasmOpF32Load:
		lt, resultType = LoadTypeF32, api.ValueTypeF32
	case wasmOpF64Load:
		lt, resultType = LoadTypeF64, api.ValueTypeF64
	case wasmOpI32Load8S:
		lt, resultType = LoadTypeI32I8S, api.ValueTypeI32
	case wasmOpI32Load8U:
		lt, resultType = LoadTypeI32I8U, api.ValueTypeI32
	case wasmOpI32Load16S:
		lt, resultType = LoadTypeI32I16S, api.ValueTypeI32
	case wasmOpI32Load16U:
		lt, resultType = LoadTypeI32I16U, api.ValueTypeI32
	case wasmOpI64Load8S:
		lt, resultType = LoadTypeI64I8S, api.ValueTypeI64
	case wasmOpI64Load8U:
		lt, resultType = LoadTypeI64I8U, api.ValueTypeI64
	case wasmOpI64Load16S:
		lt, resultType = LoadTypeI64I16S, api.ValueTypeI64
	case wasmOpI64Load16U:
		lt, resultType = LoadTypeI64I16U, api.ValueTypeI64
	case wasmOpI64Load32S:
		lt, resultType = LoadTypeI64I32S, api.ValueTypeI64
	case wasmOpI64Load32U:
		lt, resultType = LoadTypeI64I32U, api.ValueTypeI64
	default:
		panic("BUG: unreachable load opcode")
	}
	c.push(resultType)
	c.emit(Load{Type: lt, Offset: offset})
	return nil
}

func (c *functionCompiler) compileStore(r *bytes.Reader, op byte) error {
	if c.in.Module.MemorySection == nil {
		return c.errf("memory instruction: module has no memory")
	}
	offset, err := c.readMemarg(r)
	if err != nil {
		return err
	}
	var st StoreType
	var valueType operandType
	switch op {
	case wasmOpI32Store:
		st, valueType = StoreTypeI32, api.ValueTypeI32
	case wasmOpI64Store:
		st, valueType = StoreTypeI64, api.ValueTypeI64
	case wasmOpF32Store:
		st, valueType = StoreTypeF32, api.ValueTypeF32
	case wasmOpF64Store:
		st, valueType = StoreTypeF64, api.ValueTypeF64
	case wasmOpI32Store8:
		st, valueType = StoreTypeI32I8, api.ValueTypeI32
	case wasmOpI32Store16:
		st, valueType = StoreTypeI32I16, api.ValueTypeI32
	case wasmOpI64Store8:
		st, valueType = StoreTypeI64I8, api.ValueTypeI64
	case wasmOpI64Store16:
		st, valueType = StoreTypeI64I16, api.ValueTypeI64
	case wasmOpI64Store32:
		st, valueType = StoreTypeI64I32, api.ValueTypeI64
	default:
		panic("BUG: unreachable store opcode")
	}
	if err := c.popExpect(valueType); err != nil {
		return err
	}
	if err := c.popI32(); err != nil {
		return err
	}
	c.emit(Store{Type: st, Offset: offset})
	return nil
}

// --- Numeric -----------------------------------------------------------

func (c *functionCompiler) compileNumeric(op byte) error {
	switch op {
	case wasmOpI32Eqz:
		return c.unaryBool(api.ValueTypeI32, func() Operation { return Eqz{Type: NumericTypeI32} })
	case wasmOpI64Eqz:
		return c.unaryBool(api.ValueTypeI64, func() Operation { return Eqz{Type: NumericTypeI64} })
	}
	if cmp, ok := compareOpFor(op); ok {
		return c.compare(cmp)
	}
	if un, ok := unaryOpFor(op); ok {
		return c.unary(un)
	}
	if bin, ok := binaryOpFor(op); ok {
		return c.binary(bin)
	}
	if conv, ok := conversionOpFor(op); ok {
		return c.conversion(conv)
	}
	return c.errf("unknown opcode 0x%02x", op)
}

func (c *functionCompiler) unaryBool(t operandType, newOp func() Operation) error {
	if err := c.popExpect(t); err != nil {
		return err
	}
	c.push(api.ValueTypeI32)
	c.emit(newOp())
	return nil
}

type compareSpec struct {
	operand operandType
	numeric NumericType
	op      CompareOp
}

func compareOpFor(op byte) (compareSpec, bool) {
	switch op {
	case wasmOpI32Eq:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpEq}, true
	case wasmOpI32Ne:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpNe}, true
	case wasmOpI32LtS:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpLtS}, true
	case wasmOpI32LtU:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpLtU}, true
	case wasmOpI32GtS:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpGtS}, true
	case wasmOpI32GtU:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpGtU}, true
	case wasmOpI32LeS:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpLeS}, true
	case wasmOpI32LeU:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpLeU}, true
	case wasmOpI32GeS:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpGeS}, true
	case wasmOpI32GeU:
		return compareSpec{api.ValueTypeI32, NumericTypeI32, CompareOpGeU}, true
	case wasmOpI64Eq:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpEq}, true
	case wasmOpI64Ne:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpNe}, true
	case wasmOpI64LtS:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpLtS}, true
	case wasmOpI64LtU:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpLtU}, true
	case wasmOpI64GtS:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpGtS}, true
	case wasmOpI64GtU:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpGtU}, true
	case wasmOpI64LeS:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpLeS}, true
	case wasmOpI64LeU:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpLeU}, true
	case wasmOpI64GeS:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpGeS}, true
	case wasmOpI64GeU:
		return compareSpec{api.ValueTypeI64, NumericTypeI64, CompareOpGeU}, true
	case wasmOpF32Eq:
		return compareSpec{api.ValueTypeF32, NumericTypeF32, CompareOpEq}, true
	case wasmOpF32Ne:
		return compareSpec{api.ValueTypeF32, NumericTypeF32, CompareOpNe}, true
	case wasmOpF32Lt:
		return compareSpec{api.ValueTypeF32, NumericTypeF32, CompareOpLt}, true
	case wasmOpF32Gt:
		return compareSpec{api.ValueTypeF32, NumericTypeF32, CompareOpGt}, true
	case wasmOpF32Le:
		return compareSpec{api.ValueTypeF32, NumericTypeF32, CompareOpLe}, true
	case wasmOpF32Ge:
		return compareSpec{api.ValueTypeF32, NumericTypeF32, CompareOpGe}, true
	case wasmOpF64Eq:
		return compareSpec{api.ValueTypeF64, NumericTypeF64, CompareOpEq}, true
	case wasmOpF64Ne:
		return compareSpec{api.ValueTypeF64, NumericTypeF64, CompareOpNe}, true
	case wasmOpF64Lt:
		return compareSpec{api.ValueTypeF64, NumericTypeF64, CompareOpLt}, true
	case wasmOpF64Gt:
		return compareSpec{api.ValueTypeF64, NumericTypeF64, CompareOpGt}, true
	case wasmOpF64Le:
		return compareSpec{api.ValueTypeF64, NumericTypeF64, CompareOpLe}, true
	case wasmOpF64Ge:
		return compareSpec{api.ValueTypeF64, NumericTypeF64, CompareOpGe}, true
	}
	return compareSpec{}, false
}

func (c *functionCompiler) compare(s compareSpec) error {
	if err := c.popExpect(s.operand); err != nil {
		return err
	}
	if err := c.popExpect(s.operand); err != nil {
		return err
	}
	c.push(api.ValueTypeI32)
	c.emit(Compare{Type: s.numeric, Op: s.op})
	return nil
}

type unarySpec struct {
	operand operandType
	numeric NumericType
	op      UnaryOp
}

func unaryOpFor(op byte) (unarySpec, bool) {
	switch op {
	case wasmOpI32Clz:
		return unarySpec{api.ValueTypeI32, NumericTypeI32, UnaryOpClz}, true
	case wasmOpI32Ctz:
		return unarySpec{api.ValueTypeI32, NumericTypeI32, UnaryOpCtz}, true
	case wasmOpI32Popcnt:
		return unarySpec{api.ValueTypeI32, NumericTypeI32, UnaryOpPopcnt}, true
	case wasmOpI64Clz:
		return unarySpec{api.ValueTypeI64, NumericTypeI64, UnaryOpClz}, true
	case wasmOpI64Ctz:
		return unarySpec{api.ValueTypeI64, NumericTypeI64, UnaryOpCtz}, true
	case wasmOpI64Popcnt:
		return unarySpec{api.ValueTypeI64, NumericTypeI64, UnaryOpPopcnt}, true
	case wasmOpF32Abs:
		return unarySpec{api.ValueTypeF32, NumericTypeF32, UnaryOpAbs}, true
	case wasmOpF32Neg:
		return unarySpec{api.ValueTypeF32, NumericTypeF32, UnaryOpNeg}, true
	case wasmOpF32Ceil:
		return unarySpec{api.ValueTypeF32, NumericTypeF32, UnaryOpCeil}, true
	case wasmOpF32Floor:
		return unarySpec{api.ValueTypeF32, NumericTypeF32, UnaryOpFloor}, true
	case wasmOpF32Trunc:
		return unarySpec{api.ValueTypeF32, NumericTypeF32, UnaryOpTrunc}, true
	case wasmOpF32Nearest:
		return unarySpec{api.ValueTypeF32, NumericTypeF32, UnaryOpNearest}, true
	case wasmOpF32Sqrt:
		return unarySpec{api.ValueTypeF32, NumericTypeF32, UnaryOpSqrt}, true
	case wasmOpF64Abs:
		return unarySpec{api.ValueTypeF64, NumericTypeF64, UnaryOpAbs}, true
	case wasmOpF64Neg:
		return unarySpec{api.ValueTypeF64, NumericTypeF64, UnaryOpNeg}, true
	case wasmOpF64Ceil:
		return unarySpec{api.ValueTypeF64, NumericTypeF64, UnaryOpCeil}, true
	case wasmOpF64Floor:
		return unarySpec{api.ValueTypeF64, NumericTypeF64, UnaryOpFloor}, true
	case wasmOpF64Trunc:
		return unarySpec{api.ValueTypeF64, NumericTypeF64, UnaryOpTrunc}, true
	case wasmOpF64Nearest:
		return unarySpec{api.ValueTypeF64, NumericTypeF64, UnaryOpNearest}, true
	case wasmOpF64Sqrt:
		return unarySpec{api.ValueTypeF64, NumericTypeF64, UnaryOpSqrt}, true
	}
	return unarySpec{}, false
}

func (c *functionCompiler) unary(s unarySpec) error {
	if err := c.popExpect(s.operand); err != nil {
		return err
	}
	c.push(s.operand)
	c.emit(Unary{Type: s.numeric, Op: s.op})
	return nil
}

type binarySpec struct {
	operand operandType
	numeric NumericType
	op      BinaryOp
}

func binaryOpFor(op byte) (binarySpec, bool) {
	switch op {
	case wasmOpI32Add:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpAdd}, true
	case wasmOpI32Sub:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpSub}, true
	case wasmOpI32Mul:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpMul}, true
	case wasmOpI32DivS:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpDivS}, true
	case wasmOpI32DivU:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpDivU}, true
	case wasmOpI32RemS:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpRemS}, true
	case wasmOpI32RemU:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpRemU}, true
	case wasmOpI32And:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpAnd}, true
	case wasmOpI32Or:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpOr}, true
	case wasmOpI32Xor:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpXor}, true
	case wasmOpI32Shl:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpShl}, true
	case wasmOpI32ShrS:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpShrS}, true
	case wasmOpI32ShrU:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpShrU}, true
	case wasmOpI32Rotl:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpRotl}, true
	case wasmOpI32Rotr:
		return binarySpec{api.ValueTypeI32, NumericTypeI32, BinaryOpRotr}, true
	case wasmOpI64Add:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpAdd}, true
	case wasmOpI64Sub:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpSub}, true
	case wasmOpI64Mul:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpMul}, true
	case wasmOpI64DivS:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpDivS}, true
	case wasmOpI64DivU:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpDivU}, true
	case wasmOpI64RemS:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpRemS}, true
	case wasmOpI64RemU:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpRemU}, true
	case wasmOpI64And:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpAnd}, true
	case wasmOpI64Or:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpOr}, true
	case wasmOpI64Xor:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpXor}, true
	case wasmOpI64Shl:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpShl}, true
	case wasmOpI64ShrS:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpShrS}, true
	case wasmOpI64ShrU:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpShrU}, true
	case wasmOpI64Rotl:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpRotl}, true
	case wasmOpI64Rotr:
		return binarySpec{api.ValueTypeI64, NumericTypeI64, BinaryOpRotr}, true
	case wasmOpF32Add:
		return binarySpec{api.ValueTypeF32, NumericTypeF32, BinaryOpAdd}, true
	case wasmOpF32Sub:
		return binarySpec{api.ValueTypeF32, NumericTypeF32, BinaryOpSub}, true
	case wasmOpF32Mul:
		return binarySpec{api.ValueTypeF32, NumericTypeF32, BinaryOpMul}, true
	case wasmOpF32Div:
		return binarySpec{api.ValueTypeF32, NumericTypeF32, BinaryOpDiv}, true
	case wasmOpF32Min:
		return binarySpec{api.ValueTypeF32, NumericTypeF32, BinaryOpMin}, true
	case wasmOpF32Max:
		return binarySpec{api.ValueTypeF32, NumericTypeF32, BinaryOpMax}, true
	case wasmOpF32Copysig:
		return binarySpec{api.ValueTypeF32, NumericTypeF32, BinaryOpCopysign}, true
	case wasmOpF64Add:
		return binarySpec{api.ValueTypeF64, NumericTypeF64, BinaryOpAdd}, true
	case wasmOpF64Sub:
		return binarySpec{api.ValueTypeF64, NumericTypeF64, BinaryOpSub}, true
	case wasmOpF64Mul:
		return binarySpec{api.ValueTypeF64, NumericTypeF64, BinaryOpMul}, true
	case wasmOpF64Div:
		return binarySpec{api.ValueTypeF64, NumericTypeF64, BinaryOpDiv}, true
	case wasmOpF64Min:
		return binarySpec{api.ValueTypeF64, NumericTypeF64, BinaryOpMin}, true
	case wasmOpF64Max:
		return binarySpec{api.ValueTypeF64, NumericTypeF64, BinaryOpMax}, true
	case wasmOpF64Copysig:
		return binarySpec{api.ValueTypeF64, NumericTypeF64, BinaryOpCopysign}, true
	}
	return binarySpec{}, false
}

func (c *functionCompiler) binary(s binarySpec) error {
	if err := c.popExpect(s.operand); err != nil {
		return err
	}
	if err := c.popExpect(s.operand); err != nil {
		return err
	}
	c.push(s.operand)
	c.emit(Binary{Type: s.numeric, Op: s.op})
	return nil
}

type conversionSpec struct {
	from, to operandType
	op       ConversionOp
}

func conversionOpFor(op byte) (conversionSpec, bool) {
	switch op {
	case wasmOpI32WrapI64:
		return conversionSpec{api.ValueTypeI64, api.ValueTypeI32, ConversionOpI32WrapI64}, true
	case wasmOpI32TruncF32S:
		return conversionSpec{api.ValueTypeF32, api.ValueTypeI32, ConversionOpI32TruncF32S}, true
	case wasmOpI32TruncF32U:
		return conversionSpec{api.ValueTypeF32, api.ValueTypeI32, ConversionOpI32TruncF32U}, true
	case wasmOpI32TruncF64S:
		return conversionSpec{api.ValueTypeF64, api.ValueTypeI32, ConversionOpI32TruncF64S}, true
	case wasmOpI32TruncF64U:
		return conversionSpec{api.ValueTypeF64, api.ValueTypeI32, ConversionOpI32TruncF64U}, true
	case wasmOpI64ExtendI32S:
		return conversionSpec{api.ValueTypeI32, api.ValueTypeI64, ConversionOpI64ExtendI32S}, true
	case wasmOpI64ExtendI32U:
		return conversionSpec{api.ValueTypeI32, api.ValueTypeI64, ConversionOpI64ExtendI32U}, true
	case wasmOpI64TruncF32S:
		return conversionSpec{api.ValueTypeF32, api.ValueTypeI64, ConversionOpI64TruncF32S}, true
	case wasmOpI64TruncF32U:
		return conversionSpec{api.ValueTypeF32, api.ValueTypeI64, ConversionOpI64TruncF32U}, true
	case wasmOpI64TruncF64S:
		return conversionSpec{api.ValueTypeF64, api.ValueTypeI64, ConversionOpI64TruncF64S}, true
	case wasmOpI64TruncF64U:
		return conversionSpec{api.ValueTypeF64, api.ValueTypeI64, ConversionOpI64TruncF64U}, true
	case wasmOpF32ConvertI32S:
		return conversionSpec{api.ValueTypeI32, api.ValueTypeF32, ConversionOpF32ConvertI32S}, true
	case wasmOpF32ConvertI32U:
		return conversionSpec{api.ValueTypeI32, api.ValueTypeF32, ConversionOpF32ConvertI32U}, true
	case wasmOpF32ConvertI64S:
		return conversionSpec{api.ValueTypeI64, api.ValueTypeF32, ConversionOpF32ConvertI64S}, true
	case wasmOpF32ConvertI64U:
		return conversionSpec{api.ValueTypeI64, api.ValueTypeF32, ConversionOpF32ConvertI64U}, true
	case wasmOpF32DemoteF64:
		return conversionSpec{api.ValueTypeF64, api.ValueTypeF32, ConversionOpF32DemoteF64}, true
	case wasmOpF64ConvertI32S:
		return conversionSpec{api.ValueTypeI32, api.ValueTypeF64, ConversionOpF64ConvertI32S}, true
	case wasmOpF64ConvertI32U:
		return conversionSpec{api.ValueTypeI32, api.ValueTypeF64, ConversionOpF64ConvertI32U}, true
	case wasmOpF64ConvertI64S:
		return conversionSpec{api.ValueTypeI64, api.ValueTypeF64, ConversionOpF64ConvertI64S}, true
	case wasmOpF64ConvertI64U:
		return conversionSpec{api.ValueTypeI64, api.ValueTypeF64, ConversionOpF64ConvertI64U}, true
	case wasmOpF64PromoteF32:
		return conversionSpec{api.ValueTypeF32, api.ValueTypeF64, ConversionOpF64PromoteF32}, true
	case wasmOpI32ReinterpretF32:
		return conversionSpec{api.ValueTypeF32, api.ValueTypeI32, ConversionOpI32ReinterpretF32}, true
	case wasmOpI64ReinterpretF64:
		return conversionSpec{api.ValueTypeF64, api.ValueTypeI64, ConversionOpI64ReinterpretF64}, true
	case wasmOpF32ReinterpretI32:
		return conversionSpec{api.ValueTypeI32, api.ValueTypeF32, ConversionOpF32ReinterpretI32}, true
	case wasmOpF64ReinterpretI64:
		return conversionSpec{api.ValueTypeI64, api.ValueTypeF64, ConversionOpF64ReinterpretI64}, true
	}
	return conversionSpec{}, false
}

func (c *functionCompiler) conversion(s conversionSpec) error {
	if err := c.popExpect(s.from); err != nil {
		return err
	}
	c.push(s.to)
	c.emit(Conversion{Op: s.op})
	return nil
}
