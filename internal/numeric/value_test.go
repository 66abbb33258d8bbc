package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	for _, x := range []int32{0, 1, -1, math.MinInt32, math.MaxInt32} {
		require.Equal(t, x, I32(x).I32())
	}
	for _, x := range []int64{0, 1, -1, math.MinInt64, math.MaxInt64} {
		require.Equal(t, x, I64(x).I64())
	}
}

func TestFloatBitRoundTrip(t *testing.T) {
	for _, f := range []float32{0, 1.5, -1.5, float32(math.Inf(1)), float32(math.Inf(-1))} {
		require.Equal(t, f, F32(f).F32())
	}
	// NaN bit patterns, including non-canonical payloads, must survive
	// the round trip exactly.
	nanBits := uint32(0x7fc00001)
	v := FromBits(0, uint64(nanBits))
	require.Equal(t, nanBits, math.Float32bits(v.F32()))
}

func TestShiftMasking(t *testing.T) {
	for k := uint32(0); k < 128; k++ {
		require.Equal(t, Shl32(1, k), Shl32(1, k&31))
		require.Equal(t, Shl64(1, k), Shl64(1, k&63))
	}
}

func TestRotate(t *testing.T) {
	require.Equal(t, uint32(0x80000000), Rotr32(1, 1))
	require.Equal(t, uint32(1), Rotl32(0x80000000, 1))
}

func TestDivTraps(t *testing.T) {
	_, divByZero, _ := DivS32(1, 0)
	require.True(t, divByZero)

	_, _, overflow := DivS32(math.MinInt32, -1)
	require.True(t, overflow)

	result, divByZero, overflow := DivS32(10, 3)
	require.False(t, divByZero)
	require.False(t, overflow)
	require.Equal(t, int32(3), result)
}

func TestRemMinIntNegOneDoesNotOverflow(t *testing.T) {
	result, divByZero := RemS32(math.MinInt32, -1)
	require.False(t, divByZero)
	require.Equal(t, int32(0), result)
}

func TestTruncTraps(t *testing.T) {
	_, ok := TruncF64ToI32(math.NaN(), false)
	require.False(t, ok)

	_, ok = TruncF64ToI32(math.Inf(1), false)
	require.False(t, ok)

	_, ok = TruncF64ToI32(1e20, false)
	require.False(t, ok)

	result, ok := TruncF64ToI32(3.9, false)
	require.True(t, ok)
	require.Equal(t, int32(3), result)
}
