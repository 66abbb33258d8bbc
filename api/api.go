// Package api includes constants and interfaces shared between the
// interpreter core and its embedders.
package api

import (
	"context"
	"fmt"
	"math"
)

// ValueType is a tag drawn from {i32, i64, f32, f64}, encoded using the
// same byte values as the Wasm binary format so call sites can format
// them without a translation table.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the Wasm text format name of t, or "unknown" if t
// isn't one of the ValueType constants.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// Global is a Wasm global exported from an instantiated module.
type Global interface {
	fmt.Stringer

	// Type describes the numeric type of the global.
	Type() ValueType

	// Get returns the last known value of this global.
	Get() uint64
}

// MutableGlobal is a Global whose value can be updated at runtime.
type MutableGlobal interface {
	Global

	// Set updates the value of this global.
	Set(v uint64)
}

// Memory allows restricted access to a module's linear memory.
//
// All offsets are absolute byte offsets; all multi-byte values are
// little-endian, as the Wasm spec requires.
type Memory interface {
	// Size returns the size in bytes available. Ex. if the memory has 1
	// page: 65536.
	Size() uint32

	// Grow increases memory by the delta in pages (65536 bytes/page).
	// Returns the previous size in pages and true, or false if the delta
	// would exceed the memory's maximum.
	Grow(deltaPages uint32) (previousPages uint32, ok bool)

	// ReadByte reads a single byte at the offset, or false if out of range.
	ReadByte(offset uint32) (byte, bool)

	// ReadUint32Le reads a little-endian uint32 at the offset, or false if
	// out of range.
	ReadUint32Le(offset uint32) (uint32, bool)

	// ReadUint64Le reads a little-endian uint64 at the offset, or false if
	// out of range.
	ReadUint64Le(offset uint32) (uint64, bool)

	// Read returns a byteCount-length view of the underlying buffer
	// starting at offset, or false if out of range. The slice aliases the
	// memory: writes through it are visible to Wasm code and vice versa.
	Read(offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte at the offset, returning false if out
	// of range.
	WriteByte(offset uint32, v byte) bool

	// WriteUint32Le writes v little-endian at the offset, returning false
	// if out of range.
	WriteUint32Le(offset, v uint32) bool

	// WriteUint64Le writes v little-endian at the offset, returning false
	// if out of range.
	WriteUint64Le(offset uint32, v uint64) bool

	// Write writes v at the offset, returning false if out of range.
	Write(offset uint32, v []byte) bool
}

// EncodeI32 encodes input as a ValueTypeI32 operand.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes input as a ValueTypeI64 operand.
func EncodeI64(input int64) uint64 { return uint64(input) }

// EncodeF32 encodes input as a ValueTypeF32 operand.
//
// See DecodeF32.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// DecodeF32 decodes input as a ValueTypeF32 operand.
//
// See EncodeF32.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// EncodeF64 encodes input as a ValueTypeF64 operand.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF64 decodes input as a ValueTypeF64 operand.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }

// HostFunctionCallContext is passed to every host function as its second
// argument, giving it access to the calling module's linear memory
// without requiring its own closure-captured reference.
type HostFunctionCallContext interface {
	Context() context.Context
	Memory() Memory
}
