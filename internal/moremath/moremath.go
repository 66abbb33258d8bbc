// Package moremath supplies the floating-point helpers the Go standard
// library's math package doesn't implement the way the WebAssembly spec
// requires (signed-zero and NaN handling on min/max, round-half-to-even
// on nearest).
package moremath

import "math"

// WasmCompatMin differs from math.Min in two ways the standard library
// doesn't need to care about: a NaN operand is always contagious (min(NaN,
// -Inf) is NaN, not -Inf), and between two zeros of differing sign the
// negative one wins.
func WasmCompatMin(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	if x == 0 && y == 0 {
		if math.Signbit(x) || math.Signbit(y) {
			return math.Copysign(0, -1)
		}
		return 0
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax is WasmCompatMin's mirror image: NaN is contagious, and
// between two zeros of differing sign the positive one wins.
func WasmCompatMax(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	if x == 0 && y == 0 {
		if math.Signbit(x) && math.Signbit(y) {
			return math.Copysign(0, -1)
		}
		return 0
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatNearestF32 implements the "nearest" operator: round to the
// nearest integral value, ties to even. This differs from math.Round,
// which rounds ties away from zero.
func WasmCompatNearestF32(f float32) float32 {
	return float32(wasmCompatNearest(float64(f)))
}

// WasmCompatNearestF64 implements the "nearest" operator: round to the
// nearest integral value, ties to even. This differs from math.Round,
// which rounds ties away from zero.
func WasmCompatNearestF64(f float64) float64 {
	return wasmCompatNearest(f)
}

func wasmCompatNearest(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return f
	}
	rounded := math.Round(f)
	if diff := math.Abs(f - math.Trunc(f)); diff == 0.5 {
		// Round half to even instead of away from zero.
		if mod := math.Mod(rounded, 2); mod != 0 {
			if rounded > 0 {
				rounded--
			} else {
				rounded++
			}
		}
	}
	return rounded
}
