package internalwasm

import (
	"encoding/binary"

	"github.com/gowasm/interp/api"
)

const (
	// MemoryPageSizeInBits is the exponent backing MemoryPageSize (2**16).
	MemoryPageSizeInBits = 16
	// MemoryPageSize is the number of bytes in a single Wasm memory page.
	MemoryPageSize = uint32(1) << MemoryPageSizeInBits
	// MemoryMaxPages is the hard ceiling on pages a memory can grow to,
	// bounded by the 32-bit byte address space.
	MemoryMaxPages = MemoryPageSize
)

// MemoryPagesToBytesNum converts a page count to a byte count.
func MemoryPagesToBytesNum(pages uint32) uint64 { return uint64(pages) * uint64(MemoryPageSize) }

func memoryBytesNumToPages(numBytes uint64) uint32 { return uint32(numBytes / uint64(MemoryPageSize)) }

// MemoryInstance is a module's linear memory: a growable byte buffer with
// byte-addressed little-endian accessors, bounds-checked on every access.
type MemoryInstance struct {
	Buffer []byte
	Min    uint32
	Max    *uint32
}

// PageSize returns the memory's current size in pages.
func (m *MemoryInstance) PageSize() uint32 { return memoryBytesNumToPages(uint64(len(m.Buffer))) }

// Size returns the memory's current size in bytes, satisfying api.Memory.
func (m *MemoryInstance) Size() uint32 { return uint32(len(m.Buffer)) }

// Grow increases the memory by deltaPages pages, returning the previous
// page count. It refuses to grow past Max (or MemoryMaxPages if Max is
// nil), returning -1 cast to uint32 (i.e. 0xffffffff) as the Wasm
// memory.grow instruction's failure sentinel demands.
func (m *MemoryInstance) Grow(deltaPages uint32) uint32 {
	current := m.PageSize()
	max := MemoryMaxPages
	if m.Max != nil {
		max = *m.Max
	}
	if uint64(current)+uint64(deltaPages) > uint64(max) {
		return uint32(int32(-1))
	}
	m.Buffer = append(m.Buffer, make([]byte, MemoryPagesToBytesNum(deltaPages))...)
	return current
}

// ReadByte reads a single byte at offset.
func (m *MemoryInstance) ReadByte(offset uint32) (byte, bool) {
	if offset >= uint32(len(m.Buffer)) {
		return 0, false
	}
	return m.Buffer[offset], true
}

// ReadUint32Le reads a little-endian uint32 at offset.
func (m *MemoryInstance) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.hasSize(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Buffer[offset:]), true
}

// ReadUint64Le reads a little-endian uint64 at offset.
func (m *MemoryInstance) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.hasSize(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.Buffer[offset:]), true
}

// Read returns a byteCount-length slice of the buffer aliasing offset.
func (m *MemoryInstance) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.hasSize(offset, uint64(byteCount)) {
		return nil, false
	}
	return m.Buffer[offset : offset+byteCount], true
}

// WriteByte writes a single byte at offset.
func (m *MemoryInstance) WriteByte(offset uint32, v byte) bool {
	if offset >= uint32(len(m.Buffer)) {
		return false
	}
	m.Buffer[offset] = v
	return true
}

// WriteUint32Le writes v little-endian at offset.
func (m *MemoryInstance) WriteUint32Le(offset, v uint32) bool {
	if !m.hasSize(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[offset:], v)
	return true
}

// WriteUint64Le writes v little-endian at offset.
func (m *MemoryInstance) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.hasSize(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.Buffer[offset:], v)
	return true
}

// Write writes v at offset.
func (m *MemoryInstance) Write(offset uint32, v []byte) bool {
	if !m.hasSize(offset, uint64(len(v))) {
		return false
	}
	copy(m.Buffer[offset:], v)
	return true
}

func (m *MemoryInstance) hasSize(offset uint32, byteCount uint64) bool {
	return uint64(offset)+byteCount <= uint64(len(m.Buffer))
}

// AsAPIMemory adapts m to the api.Memory interface exposed to host
// functions, translating Grow's -1 sentinel into the (uint32, bool) shape
// api.Memory.Grow promises.
func (m *MemoryInstance) AsAPIMemory() api.Memory { return apiMemory{m} }

type apiMemory struct{ m *MemoryInstance }

func (a apiMemory) Size() uint32 { return a.m.Size() }

func (a apiMemory) Grow(deltaPages uint32) (uint32, bool) {
	prev := a.m.Grow(deltaPages)
	if prev == uint32(int32(-1)) {
		return 0, false
	}
	return prev, true
}

func (a apiMemory) ReadByte(offset uint32) (byte, bool)          { return a.m.ReadByte(offset) }
func (a apiMemory) ReadUint32Le(offset uint32) (uint32, bool)    { return a.m.ReadUint32Le(offset) }
func (a apiMemory) ReadUint64Le(offset uint32) (uint64, bool)    { return a.m.ReadUint64Le(offset) }
func (a apiMemory) Read(offset, byteCount uint32) ([]byte, bool) { return a.m.Read(offset, byteCount) }
func (a apiMemory) WriteByte(offset uint32, v byte) bool         { return a.m.WriteByte(offset, v) }
func (a apiMemory) WriteUint32Le(offset, v uint32) bool          { return a.m.WriteUint32Le(offset, v) }
func (a apiMemory) WriteUint64Le(offset uint32, v uint64) bool   { return a.m.WriteUint64Le(offset, v) }
func (a apiMemory) Write(offset uint32, v []byte) bool           { return a.m.Write(offset, v) }
