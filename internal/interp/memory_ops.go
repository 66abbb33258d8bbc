package interp

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/numeric"
	"github.com/gowasm/interp/internal/wasmruntime"
	"github.com/gowasm/interp/internal/wazeroir"
)

// effectiveAddr folds a popped address operand with a Load/Store's static
// Offset the way the Wasm spec requires: as one unsigned 33+-bit sum, so
// an address near the top of the 32-bit range plus a large offset traps
// instead of silently wrapping back into bounds.
func effectiveAddr(addr, offset uint32) (uint32, bool) {
	ea := uint64(addr) + uint64(offset)
	if ea > math.MaxUint32 {
		return 0, false
	}
	return uint32(ea), true
}

func trapIfOOB(ok bool) {
	if !ok {
		panic(wasmruntime.ErrRuntimeMemoryAccessOutOfBounds)
	}
}

func execLoad(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	l := op.(wazeroir.Load)
	addr := ce.popValue().I32u()
	ea, ok := effectiveAddr(addr, l.Offset)
	if !ok {
		panic(wasmruntime.ErrRuntimeMemoryAccessOutOfBounds)
	}
	mem := ce.mod.MemoryByIndex(0)

	switch l.Type {
	case wazeroir.LoadTypeI32:
		v, ok := mem.ReadUint32Le(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I32(int32(v)))
	case wazeroir.LoadTypeI64:
		v, ok := mem.ReadUint64Le(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I64(int64(v)))
	case wazeroir.LoadTypeF32:
		v, ok := mem.ReadUint32Le(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.FromBits(api.ValueTypeF32, uint64(v)))
	case wazeroir.LoadTypeF64:
		v, ok := mem.ReadUint64Le(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.FromBits(api.ValueTypeF64, v))
	case wazeroir.LoadTypeI32I8S:
		b, ok := mem.ReadByte(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I32(int32(int8(b))))
	case wazeroir.LoadTypeI32I8U:
		b, ok := mem.ReadByte(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I32(int32(b)))
	case wazeroir.LoadTypeI32I16S:
		bs, ok := mem.Read(ea, 2)
		trapIfOOB(ok)
		ce.pushValue(numeric.I32(int32(int16(binary.LittleEndian.Uint16(bs)))))
	case wazeroir.LoadTypeI32I16U:
		bs, ok := mem.Read(ea, 2)
		trapIfOOB(ok)
		ce.pushValue(numeric.I32(int32(binary.LittleEndian.Uint16(bs))))
	case wazeroir.LoadTypeI64I8S:
		b, ok := mem.ReadByte(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I64(int64(int8(b))))
	case wazeroir.LoadTypeI64I8U:
		b, ok := mem.ReadByte(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I64(int64(b)))
	case wazeroir.LoadTypeI64I16S:
		bs, ok := mem.Read(ea, 2)
		trapIfOOB(ok)
		ce.pushValue(numeric.I64(int64(int16(binary.LittleEndian.Uint16(bs)))))
	case wazeroir.LoadTypeI64I16U:
		bs, ok := mem.Read(ea, 2)
		trapIfOOB(ok)
		ce.pushValue(numeric.I64(int64(binary.LittleEndian.Uint16(bs))))
	case wazeroir.LoadTypeI64I32S:
		v, ok := mem.ReadUint32Le(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I64(int64(int32(v))))
	case wazeroir.LoadTypeI64I32U:
		v, ok := mem.ReadUint32Le(ea)
		trapIfOOB(ok)
		ce.pushValue(numeric.I64(int64(v)))
	}
	return stepNext
}

// execStore pops the value to store before the address: compileStore
// popExpects the value operand first, so it sits above the address on the
// operand stack, which was pushed first.
func execStore(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	s := op.(wazeroir.Store)
	v := ce.popValue()
	addr := ce.popValue().I32u()
	ea, ok := effectiveAddr(addr, s.Offset)
	if !ok {
		panic(wasmruntime.ErrRuntimeMemoryAccessOutOfBounds)
	}
	mem := ce.mod.MemoryByIndex(0)

	switch s.Type {
	case wazeroir.StoreTypeI32:
		trapIfOOB(mem.WriteUint32Le(ea, v.I32u()))
	case wazeroir.StoreTypeI64:
		trapIfOOB(mem.WriteUint64Le(ea, v.I64u()))
	case wazeroir.StoreTypeF32:
		trapIfOOB(mem.WriteUint32Le(ea, uint32(v.Bits())))
	case wazeroir.StoreTypeF64:
		trapIfOOB(mem.WriteUint64Le(ea, v.Bits()))
	case wazeroir.StoreTypeI32I8:
		trapIfOOB(mem.WriteByte(ea, byte(v.I32u())))
	case wazeroir.StoreTypeI32I16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v.I32u()))
		trapIfOOB(mem.Write(ea, buf))
	case wazeroir.StoreTypeI64I8:
		trapIfOOB(mem.WriteByte(ea, byte(v.I64u())))
	case wazeroir.StoreTypeI64I16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v.I64u()))
		trapIfOOB(mem.Write(ea, buf))
	case wazeroir.StoreTypeI64I32:
		trapIfOOB(mem.WriteUint32Le(ea, uint32(v.I64u())))
	}
	return stepNext
}

func execMemorySize(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	mem := ce.mod.MemoryByIndex(0)
	ce.pushValue(numeric.I32(int32(mem.PageSize())))
	return stepNext
}

func execMemoryGrow(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	delta := ce.popValue().I32u()
	mem := ce.mod.MemoryByIndex(0)
	prev := mem.Grow(delta)
	ce.pushValue(numeric.I32(int32(prev)))
	return stepNext
}
