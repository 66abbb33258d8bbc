// Package numeric implements the tagged runtime value (i32/i64/f32/f64,
// NaN-preserving) plus the integer/float helpers the Wasm numeric
// instructions need: clz/ctz/popcnt, rotl/rotr with masked shift
// amounts, checked div/rem, and truncating float→int conversions.
//
// Floats are stored by bit pattern so NaN payloads and signs survive
// load/store/reinterpret/copysign round trips exactly.
package numeric

import (
	"math"
	"math/bits"

	"github.com/gowasm/interp/api"
)

// Value is a discriminated runtime value: one of i32, i64, f32, f64. The
// bit pattern is always stored in the low-order bits appropriate to the
// type (e.g. an i32's sign bit is bit 31, not bit 63).
type Value struct {
	Type api.ValueType
	bits uint64
}

// I32 constructs an i32 value.
func I32(v int32) Value { return Value{Type: api.ValueTypeI32, bits: uint64(uint32(v))} }

// I64 constructs an i64 value.
func I64(v int64) Value { return Value{Type: api.ValueTypeI64, bits: uint64(v)} }

// F32 constructs an f32 value, preserving its exact bit pattern (including
// NaN payload and sign).
func F32(v float32) Value { return Value{Type: api.ValueTypeF32, bits: uint64(math.Float32bits(v))} }

// F64 constructs an f64 value, preserving its exact bit pattern.
func F64(v float64) Value { return Value{Type: api.ValueTypeF64, bits: math.Float64bits(v)} }

// FromBits constructs a Value of the given type directly from its raw bit
// pattern, as used when a load instruction reads memory bytes.
func FromBits(t api.ValueType, bits uint64) Value { return Value{Type: t, bits: bits} }

// I32 returns v's value as a signed 32-bit integer. Only valid when
// v.Type == api.ValueTypeI32.
func (v Value) I32() int32 { return int32(uint32(v.bits)) }

// I32u returns v's value as an unsigned 32-bit integer.
func (v Value) I32u() uint32 { return uint32(v.bits) }

// I64 returns v's value as a signed 64-bit integer.
func (v Value) I64() int64 { return int64(v.bits) }

// I64u returns v's value as an unsigned 64-bit integer.
func (v Value) I64u() uint64 { return v.bits }

// F32 returns v's value as a float32, preserving NaN bit patterns exactly.
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.bits)) }

// F64 returns v's value as a float64, preserving NaN bit patterns exactly.
func (v Value) F64() float64 { return math.Float64frombits(v.bits) }

// Bits returns the raw bit pattern backing v, used for store instructions
// and reinterpret conversions.
func (v Value) Bits() uint64 { return v.bits }

// IsTrue reports whether v (expected i32) is non-zero, the condition test
// used by if/br_if/select.
func (v Value) IsTrue() bool { return v.I32u() != 0 }

// --- Integer bit operations -------------------------------------------------

// Clz32 counts leading zero bits of a 32-bit integer.
func Clz32(v uint32) uint32 { return uint32(bits.LeadingZeros32(v)) }

// Ctz32 counts trailing zero bits of a 32-bit integer.
func Ctz32(v uint32) uint32 { return uint32(bits.TrailingZeros32(v)) }

// Popcnt32 counts set bits of a 32-bit integer.
func Popcnt32(v uint32) uint32 { return uint32(bits.OnesCount32(v)) }

// Clz64 counts leading zero bits of a 64-bit integer.
func Clz64(v uint64) uint32 { return uint32(bits.LeadingZeros64(v)) }

// Ctz64 counts trailing zero bits of a 64-bit integer.
func Ctz64(v uint64) uint32 { return uint32(bits.TrailingZeros64(v)) }

// Popcnt64 counts set bits of a 64-bit integer.
func Popcnt64(v uint64) uint32 { return uint32(bits.OnesCount64(v)) }

// Rotl32 rotates v left by c bits, masking c to 0-31 the way Wasm's
// rotation operators define the shift amount.
func Rotl32(v uint32, c uint32) uint32 { return bits.RotateLeft32(v, int(c&31)) }

// Rotr32 rotates v right by c bits, masking c to 0-31.
func Rotr32(v uint32, c uint32) uint32 { return bits.RotateLeft32(v, -int(c&31)) }

// Rotl64 rotates v left by c bits, masking c to 0-63.
func Rotl64(v uint64, c uint32) uint64 { return bits.RotateLeft64(v, int(c&63)) }

// Rotr64 rotates v right by c bits, masking c to 0-63.
func Rotr64(v uint64, c uint32) uint64 { return bits.RotateLeft64(v, -int(c&63)) }

// Shl32 shifts v left by c bits, masking c to 0-31.
func Shl32(v uint32, c uint32) uint32 { return v << (c & 31) }

// ShrU32 shifts v right (unsigned) by c bits, masking c to 0-31.
func ShrU32(v uint32, c uint32) uint32 { return v >> (c & 31) }

// ShrS32 shifts v right (signed, sign-extending) by c bits, masking c to 0-31.
func ShrS32(v int32, c uint32) int32 { return v >> (c & 31) }

// Shl64 shifts v left by c bits, masking c to 0-63.
func Shl64(v uint64, c uint32) uint64 { return v << (c & 63) }

// ShrU64 shifts v right (unsigned) by c bits, masking c to 0-63.
func ShrU64(v uint64, c uint32) uint64 { return v >> (c & 63) }

// ShrS64 shifts v right (signed, sign-extending) by c bits, masking c to 0-63.
func ShrS64(v int64, c uint32) int64 { return v >> (c & 63) }

// --- Checked integer division -----------------------------------------------

// DivS32 performs signed 32-bit division. divByZero and overflow flag the
// two distinct failure cases -- b == 0, and the INT_MIN/-1 case whose
// mathematical result doesn't fit back into int32 -- so callers can trap
// each with its own kind instead of conflating them.
func DivS32(a, b int32) (result int32, divByZero, overflow bool) {
	if b == 0 {
		return 0, true, false
	}
	if a == math.MinInt32 && b == -1 {
		return 0, false, true
	}
	return a / b, false, false
}

// DivS64 is DivS32 for 64-bit operands.
func DivS64(a, b int64) (result int64, divByZero, overflow bool) {
	if b == 0 {
		return 0, true, false
	}
	if a == math.MinInt64 && b == -1 {
		return 0, false, true
	}
	return a / b, false, false
}

// RemS32 performs signed 32-bit remainder. Unlike division, INT_MIN % -1
// doesn't overflow (the result is defined to be 0).
func RemS32(a, b int32) (result int32, divByZero bool) {
	if b == 0 {
		return 0, true
	}
	if a == math.MinInt32 && b == -1 {
		return 0, false
	}
	return a % b, false
}

// RemS64 is RemS32 for 64-bit operands.
func RemS64(a, b int64) (result int64, divByZero bool) {
	if b == 0 {
		return 0, true
	}
	if a == math.MinInt64 && b == -1 {
		return 0, false
	}
	return a % b, false
}

// --- Float→int truncation ---------------------------------------------------

// TruncF32ToI32 truncates f toward zero into an int32. ok is false if f is
// NaN or out of the representable range, which callers must trap on.
func TruncF32ToI32(f float32, unsigned bool) (result int32, ok bool) {
	return truncToI32(float64(f), unsigned)
}

// TruncF64ToI32 truncates f toward zero into an int32.
func TruncF64ToI32(f float64, unsigned bool) (result int32, ok bool) {
	return truncToI32(f, unsigned)
}

func truncToI32(f float64, unsigned bool) (int32, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if unsigned {
		if t < 0 || t > math.MaxUint32 {
			return 0, false
		}
		return int32(uint32(t)), true
	}
	if t < math.MinInt32 || t > math.MaxInt32 {
		return 0, false
	}
	return int32(t), true
}

// TruncF32ToI64 truncates f toward zero into an int64.
func TruncF32ToI64(f float32, unsigned bool) (result int64, ok bool) {
	return truncToI64(float64(f), unsigned)
}

// TruncF64ToI64 truncates f toward zero into an int64.
func TruncF64ToI64(f float64, unsigned bool) (result int64, ok bool) {
	return truncToI64(f, unsigned)
}

func truncToI64(f float64, unsigned bool) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if unsigned {
		if t < 0 || t >= math.MaxUint64 {
			return 0, false
		}
		return int64(uint64(t)), true
	}
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}
