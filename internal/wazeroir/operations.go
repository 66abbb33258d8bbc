// Package wazeroir lowers a structured Wasm function body (block/loop/if/
// else/end, br/br_if/br_table targeting block depths) into a flat,
// goto-based instruction sequence: branches target an absolute program
// counter instead of a label depth, and every branch carries a DropKeep
// describing how to unwind the operand stack before jumping. A structured
// stack machine is pleasant to validate and compile to native code but
// awkward to interpret directly -- walking nested blocks to find the
// matching `end` on every branch is linear in nesting depth, where a
// flattened goto can jump straight to the target program counter.
package wazeroir

import "fmt"

// Keep is how many values a branch target keeps on the operand stack
// after the Drop count is popped: MVP functions return at most one
// value, so Keep is binary.
type Keep bool

const (
	KeepNone   Keep = false
	KeepSingle Keep = true
)

// DropKeep describes an operand-stack adjustment executed when a branch
// is taken: drop Drop values below a kept result region of Keep values.
type DropKeep struct {
	Drop uint32
	Keep Keep
}

// Target is a lowered branch destination: a concrete instruction index
// plus the stack adjustment to apply when jumping there.
type Target struct {
	DstPC    uint32
	DropKeep DropKeep
}

// Operation is implemented by every lowered instruction. Kind identifies
// the concrete type for the interpreter's dispatch switch.
type Operation interface {
	Kind() OperationKind
}

// OperationKind tags each Operation implementation for a type switch-free
// dispatch table in the interpreter (an array indexed by Kind, populated
// at init, is the dispatch mechanism internal/interp uses).
type OperationKind int

const (
	OperationKindUnreachable OperationKind = iota
	OperationKindReturn
	OperationKindBr
	OperationKindBrIfEqz
	OperationKindBrIfNez
	OperationKindBrTable
	OperationKindCall
	OperationKindCallIndirect
	OperationKindDrop
	OperationKindSelect
	OperationKindGetLocal
	OperationKindSetLocal
	OperationKindTeeLocal
	OperationKindGetGlobal
	OperationKindSetGlobal
	OperationKindLoadI32
	OperationKindLoadI64
	OperationKindLoadF32
	OperationKindLoadF64
	OperationKindLoadI32I8S
	OperationKindLoadI32I8U
	OperationKindLoadI32I16S
	OperationKindLoadI32I16U
	OperationKindLoadI64I8S
	OperationKindLoadI64I8U
	OperationKindLoadI64I16S
	OperationKindLoadI64I16U
	OperationKindLoadI64I32S
	OperationKindLoadI64I32U
	OperationKindStoreI32
	OperationKindStoreI64
	OperationKindStoreF32
	OperationKindStoreF64
	OperationKindStoreI32I8
	OperationKindStoreI32I16
	OperationKindStoreI64I8
	OperationKindStoreI64I16
	OperationKindStoreI64I32
	OperationKindMemorySize
	OperationKindMemoryGrow
	OperationKindConstI32
	OperationKindConstI64
	OperationKindConstF32
	OperationKindConstF64
	OperationKindEqz
	OperationKindCompare
	OperationKindUnary
	OperationKindBinary
	OperationKindConversion
)

// --- Control -----------------------------------------------------------

// Unreachable traps unconditionally.
type Unreachable struct{}

func (Unreachable) Kind() OperationKind { return OperationKindUnreachable }

// Return unwinds the current function's operand stack per DropKeep and
// pops the call frame.
type Return struct{ DropKeep DropKeep }

func (Return) Kind() OperationKind { return OperationKindReturn }

// Br unconditionally jumps to Target.
type Br struct{ Target Target }

func (Br) Kind() OperationKind { return OperationKindBr }

// BrIfEqz pops an i32 and jumps to Target if it is zero.
type BrIfEqz struct{ Target Target }

func (BrIfEqz) Kind() OperationKind { return OperationKindBrIfEqz }

// BrIfNez pops an i32 and jumps to Target if it is non-zero.
type BrIfNez struct{ Target Target }

func (BrIfNez) Kind() OperationKind { return OperationKindBrIfNez }

// BrTable pops an i32 index and jumps to Targets[index], clamping to the
// last entry (the default) when the index is out of range -- the last
// element of Targets is always the default target.
type BrTable struct{ Targets []Target }

func (BrTable) Kind() OperationKind { return OperationKindBrTable }

// Call invokes the function at FuncIndex within the current module's
// function namespace.
type Call struct{ FuncIndex uint32 }

func (Call) Kind() OperationKind { return OperationKindCall }

// CallIndirect pops a table index, checks the function found there
// against TypeIndex, and invokes it.
type CallIndirect struct {
	TypeIndex  uint32
	TableIndex uint32
}

func (CallIndirect) Kind() OperationKind { return OperationKindCallIndirect }

// Drop pops and discards the top of the operand stack.
type Drop struct{}

func (Drop) Kind() OperationKind { return OperationKindDrop }

// Select pops a condition and two values, pushing the first if the
// condition is non-zero, else the second.
type Select struct{}

func (Select) Kind() OperationKind { return OperationKindSelect }

// --- Variable access -----------------------------------------------------

// GetLocal pushes the value at Depth (locals live on the operand stack,
// per isa.rs: "locals live on the value stack now").
type GetLocal struct{ Depth uint32 }

func (GetLocal) Kind() OperationKind { return OperationKindGetLocal }

// SetLocal pops a value and writes it to Depth.
type SetLocal struct{ Depth uint32 }

func (SetLocal) Kind() OperationKind { return OperationKindSetLocal }

// TeeLocal copies the top of the operand stack to Depth without popping.
type TeeLocal struct{ Depth uint32 }

func (TeeLocal) Kind() OperationKind { return OperationKindTeeLocal }

// GetGlobal pushes the current module's global at Index.
type GetGlobal struct{ Index uint32 }

func (GetGlobal) Kind() OperationKind { return OperationKindGetGlobal }

// SetGlobal pops a value and stores it to the global at Index.
type SetGlobal struct{ Index uint32 }

func (SetGlobal) Kind() OperationKind { return OperationKindSetGlobal }

// --- Memory --------------------------------------------------------------

// LoadType is the value shape a Load operation reads from memory.
type LoadType int

const (
	LoadTypeI32 LoadType = iota
	LoadTypeI64
	LoadTypeF32
	LoadTypeF64
	LoadTypeI32I8S
	LoadTypeI32I8U
	LoadTypeI32I16S
	LoadTypeI32I16U
	LoadTypeI64I8S
	LoadTypeI64I8U
	LoadTypeI64I16S
	LoadTypeI64I16U
	LoadTypeI64I32S
	LoadTypeI64I32U
)

// Load reads memory at (popped address + Offset), trapping on an
// out-of-bounds access. A single struct backs every width; Kind reports a
// distinct per-width OperationKind, and the interpreter's one handler for
// all of those kinds then switches on Type to pick the width and sign
// extension.
type Load struct {
	Type   LoadType
	Offset uint32
}

func (o Load) Kind() OperationKind {
	switch o.Type {
	case LoadTypeI32:
		return OperationKindLoadI32
	case LoadTypeI64:
		return OperationKindLoadI64
	case LoadTypeF32:
		return OperationKindLoadF32
	case LoadTypeF64:
		return OperationKindLoadF64
	case LoadTypeI32I8S:
		return OperationKindLoadI32I8S
	case LoadTypeI32I8U:
		return OperationKindLoadI32I8U
	case LoadTypeI32I16S:
		return OperationKindLoadI32I16S
	case LoadTypeI32I16U:
		return OperationKindLoadI32I16U
	case LoadTypeI64I8S:
		return OperationKindLoadI64I8S
	case LoadTypeI64I8U:
		return OperationKindLoadI64I8U
	case LoadTypeI64I16S:
		return OperationKindLoadI64I16S
	case LoadTypeI64I16U:
		return OperationKindLoadI64I16U
	case LoadTypeI64I32S:
		return OperationKindLoadI64I32S
	case LoadTypeI64I32U:
		return OperationKindLoadI64I32U
	default:
		panic(fmt.Sprintf("BUG: unknown LoadType %d", o.Type))
	}
}

// StoreType is the width a Store operation writes to memory.
type StoreType int

const (
	StoreTypeI32 StoreType = iota
	StoreTypeI64
	StoreTypeF32
	StoreTypeF64
	StoreTypeI32I8
	StoreTypeI32I16
	StoreTypeI64I8
	StoreTypeI64I16
	StoreTypeI64I32
)

// Store pops a value and writes it to memory at (popped address +
// Offset), trapping on an out-of-bounds access. Kind mirrors Load's
// per-width dispatch convention.
type Store struct {
	Type   StoreType
	Offset uint32
}

func (o Store) Kind() OperationKind {
	switch o.Type {
	case StoreTypeI32:
		return OperationKindStoreI32
	case StoreTypeI64:
		return OperationKindStoreI64
	case StoreTypeF32:
		return OperationKindStoreF32
	case StoreTypeF64:
		return OperationKindStoreF64
	case StoreTypeI32I8:
		return OperationKindStoreI32I8
	case StoreTypeI32I16:
		return OperationKindStoreI32I16
	case StoreTypeI64I8:
		return OperationKindStoreI64I8
	case StoreTypeI64I16:
		return OperationKindStoreI64I16
	case StoreTypeI64I32:
		return OperationKindStoreI64I32
	default:
		panic(fmt.Sprintf("BUG: unknown StoreType %d", o.Type))
	}
}

// MemorySize pushes the current memory size in pages.
type MemorySize struct{}

func (MemorySize) Kind() OperationKind { return OperationKindMemorySize }

// MemoryGrow pops a page delta and grows memory by it, pushing the
// previous size in pages (or -1 on failure).
type MemoryGrow struct{}

func (MemoryGrow) Kind() OperationKind { return OperationKindMemoryGrow }

// --- Constants -------------------------------------------------------------

type ConstI32 struct{ Value int32 }

func (ConstI32) Kind() OperationKind { return OperationKindConstI32 }

type ConstI64 struct{ Value int64 }

func (ConstI64) Kind() OperationKind { return OperationKindConstI64 }

type ConstF32 struct{ Value float32 }

func (ConstF32) Kind() OperationKind { return OperationKindConstF32 }

type ConstF64 struct{ Value float64 }

func (ConstF64) Kind() OperationKind { return OperationKindConstF64 }

// --- Numeric ---------------------------------------------------------------

// NumericType is the operand type a numeric Operation works on.
type NumericType int

const (
	NumericTypeI32 NumericType = iota
	NumericTypeI64
	NumericTypeF32
	NumericTypeF64
)

// Eqz pops a value and pushes 1 if it is zero, else 0.
type Eqz struct{ Type NumericType }

func (Eqz) Kind() OperationKind { return OperationKindEqz }

// CompareOp identifies a two-operand comparison.
type CompareOp int

const (
	CompareOpEq CompareOp = iota
	CompareOpNe
	CompareOpLtS
	CompareOpLtU
	CompareOpGtS
	CompareOpGtU
	CompareOpLeS
	CompareOpLeU
	CompareOpGeS
	CompareOpGeU
	// Float-only orderings: float comparisons have no signed/unsigned split.
	CompareOpLt
	CompareOpGt
	CompareOpLe
	CompareOpGe
)

// Compare pops two values and pushes an i32 boolean result.
type Compare struct {
	Type NumericType
	Op   CompareOp
}

func (Compare) Kind() OperationKind { return OperationKindCompare }

// UnaryOp identifies a single-operand numeric operation.
type UnaryOp int

const (
	UnaryOpClz UnaryOp = iota
	UnaryOpCtz
	UnaryOpPopcnt
	UnaryOpAbs
	UnaryOpNeg
	UnaryOpCeil
	UnaryOpFloor
	UnaryOpTrunc
	UnaryOpNearest
	UnaryOpSqrt
)

// Unary pops one value and pushes the result of applying Op.
type Unary struct {
	Type NumericType
	Op   UnaryOp
}

func (Unary) Kind() OperationKind { return OperationKindUnary }

// BinaryOp identifies a two-operand numeric operation.
type BinaryOp int

const (
	BinaryOpAdd BinaryOp = iota
	BinaryOpSub
	BinaryOpMul
	BinaryOpDivS
	BinaryOpDivU
	BinaryOpRemS
	BinaryOpRemU
	BinaryOpAnd
	BinaryOpOr
	BinaryOpXor
	BinaryOpShl
	BinaryOpShrS
	BinaryOpShrU
	BinaryOpRotl
	BinaryOpRotr
	BinaryOpDiv // float-only
	BinaryOpMin
	BinaryOpMax
	BinaryOpCopysign
)

// Binary pops two values and pushes the result of applying Op.
type Binary struct {
	Type NumericType
	Op   BinaryOp
}

func (Binary) Kind() OperationKind { return OperationKindBinary }

// ConversionOp identifies a cross-type numeric conversion.
type ConversionOp int

const (
	ConversionOpI32WrapI64 ConversionOp = iota
	ConversionOpI32TruncF32S
	ConversionOpI32TruncF32U
	ConversionOpI32TruncF64S
	ConversionOpI32TruncF64U
	ConversionOpI64ExtendI32S
	ConversionOpI64ExtendI32U
	ConversionOpI64TruncF32S
	ConversionOpI64TruncF32U
	ConversionOpI64TruncF64S
	ConversionOpI64TruncF64U
	ConversionOpF32ConvertI32S
	ConversionOpF32ConvertI32U
	ConversionOpF32ConvertI64S
	ConversionOpF32ConvertI64U
	ConversionOpF32DemoteF64
	ConversionOpF64ConvertI32S
	ConversionOpF64ConvertI32U
	ConversionOpF64ConvertI64S
	ConversionOpF64ConvertI64U
	ConversionOpF64PromoteF32
	ConversionOpI32ReinterpretF32
	ConversionOpI64ReinterpretF64
	ConversionOpF32ReinterpretI32
	ConversionOpF64ReinterpretI64
)

// Conversion pops one value and pushes the result of converting it per Op.
type Conversion struct{ Op ConversionOp }

func (Conversion) Kind() OperationKind { return OperationKindConversion }

// CompiledFunction is a lowered function body: the flat operation
// sequence plus enough metadata to set up a call frame.
type CompiledFunction struct {
	Operations []Operation
	// NumLocals is the count of parameters plus declared locals, the
	// depth of the operand-stack region TeeLocal/GetLocal/SetLocal index
	// into.
	NumLocals uint32
	// MaxStackHeight bounds the operand stack a call frame for this
	// function needs, computed once at compile time so the interpreter
	// can preallocate.
	MaxStackHeight uint32
}

func (f *CompiledFunction) String() string {
	return fmt.Sprintf("CompiledFunction{locals=%d, maxStack=%d, ops=%d}",
		f.NumLocals, f.MaxStackHeight, len(f.Operations))
}
