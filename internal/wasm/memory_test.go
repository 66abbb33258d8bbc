package internalwasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPageConsts(t *testing.T) {
	require.Equal(t, MemoryPageSize, uint32(1)<<MemoryPageSizeInBits)
	require.Equal(t, MemoryPageSize, MemoryMaxPages)
	require.Equal(t, MemoryPageSize, uint32(1<<16))
}

func TestMemoryPagesToBytesNum(t *testing.T) {
	for _, numPage := range []uint32{0, 1, 5, 10} {
		require.Equal(t, uint64(numPage)*uint64(MemoryPageSize), MemoryPagesToBytesNum(numPage))
	}
}

func TestMemoryInstance_Grow_Size(t *testing.T) {
	t.Run("with max", func(t *testing.T) {
		max := uint32(10)
		m := &MemoryInstance{Max: &max, Buffer: make([]byte, 0)}
		require.Equal(t, uint32(0), m.Grow(5))
		require.Equal(t, uint32(5), m.PageSize())
		require.Equal(t, uint32(5), m.Grow(0))
		require.Equal(t, uint32(5), m.PageSize())
		require.Equal(t, uint32(5), m.Grow(4))
		require.Equal(t, uint32(9), m.PageSize())
		require.Equal(t, int32(-1), int32(m.Grow(2)))
		require.Equal(t, uint32(9), m.PageSize())
		require.Equal(t, uint32(9), m.Grow(1))
		require.Equal(t, max, m.PageSize())
	})
	t.Run("without max", func(t *testing.T) {
		m := &MemoryInstance{Buffer: make([]byte, 0)}
		require.Equal(t, uint32(0), m.Grow(1))
		require.Equal(t, uint32(1), m.PageSize())
		require.Equal(t, int32(-1), int32(m.Grow(MemoryMaxPages)))
		require.Equal(t, uint32(1), m.PageSize())
	})
}

func TestMemoryInstance_ReadByte(t *testing.T) {
	mem := &MemoryInstance{Buffer: []byte{0, 0, 0, 0, 0, 0, 0, 16}}
	v, ok := mem.ReadByte(7)
	require.True(t, ok)
	require.Equal(t, byte(16), v)

	_, ok = mem.ReadByte(8)
	require.False(t, ok)
}

func TestMemoryInstance_ReadUint32Le(t *testing.T) {
	mem := &MemoryInstance{Buffer: []byte{0, 0, 0, 0, 16, 0, 0, 0}}
	v, ok := mem.ReadUint32Le(4)
	require.True(t, ok)
	require.Equal(t, uint32(16), v)

	_, ok = mem.ReadUint32Le(5)
	require.False(t, ok)
}

func TestMemoryInstance_WriteUint32Le(t *testing.T) {
	mem := &MemoryInstance{Buffer: make([]byte, 8)}
	require.True(t, mem.WriteUint32Le(4, 16))
	require.Equal(t, []byte{0, 0, 0, 0, 16, 0, 0, 0}, mem.Buffer)
	require.False(t, mem.WriteUint32Le(5, 16))
	require.False(t, mem.WriteUint32Le(9, 16))
}

func TestApiMemory_GrowSentinel(t *testing.T) {
	max := uint32(1)
	mem := &MemoryInstance{Max: &max, Buffer: make([]byte, 0)}
	api := mem.AsAPIMemory()

	prev, ok := api.Grow(1)
	require.True(t, ok)
	require.Equal(t, uint32(0), prev)

	_, ok = api.Grow(1)
	require.False(t, ok)
}
