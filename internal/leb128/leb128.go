// Package leb128 implements LEB128 variable-length integer encoding, the
// format the Wasm binary encoding uses for every immediate operand
// (constants, indices, and block type signatures). Both an io.ByteReader
// streaming decoder (Decode*, used while consuming a function body as it
// arrives) and a slice-based one (Load*, used once an immediate operand's
// bytes are already in hand) are provided, since the two call sites want
// different inputs.
package leb128

import (
	"errors"
	"io"
)

var (
	errOverflow32 = errors.New("overflows a 32-bit integer")
	errOverflow33 = errors.New("overflows a 33-bit integer")
	errOverflow64 = errors.New("overflows a 64-bit integer")
)

func overflowErr(size uint) error {
	switch size {
	case 32:
		return errOverflow32
	case 33:
		return errOverflow33
	default:
		return errOverflow64
	}
}

// maxBytes is the most groups a LEB128 value of the given bit width may
// ever legally span: ceil(size/7).
func maxBytes(size uint) int {
	return int((size + 6) / 7)
}

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte { return encodeUint64(uint64(v)) }

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte { return encodeUint64(v) }

func encodeUint64(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte { return encodeInt64(int64(v)) }

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte { return encodeInt64(v) }

func encodeInt64(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		done := (v == 0 && !signBitSet) || (v == -1 && signBitSet)
		if !done {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

// byteSource abstracts reading one byte at a time, shared by the Load*
// (slice-backed) and Decode* (io.ByteReader-backed) entry points so the
// actual group/overflow math lives in one place.
type byteSource struct {
	buf []byte
	pos int
	r   io.ByteReader
}

func (s *byteSource) next() (byte, error) {
	if s.buf != nil {
		if s.pos >= len(s.buf) {
			return 0, io.ErrUnexpectedEOF
		}
		b := s.buf[s.pos]
		s.pos++
		return b, nil
	}
	return s.r.ReadByte()
}

func loadUnsigned(buf []byte, size uint) (uint64, uint64, error) {
	return readUnsigned(&byteSource{buf: buf}, size)
}

func decodeUnsigned(r io.ByteReader, size uint) (uint64, uint64, error) {
	return readUnsigned(&byteSource{r: r}, size)
}

func readUnsigned(s *byteSource, size uint) (uint64, uint64, error) {
	var result uint64
	var shift uint
	limit := maxBytes(size)
	for i := 0; i < limit; i++ {
		b, err := s.next()
		if err != nil {
			return 0, 0, err
		}
		validBits := size - shift
		if validBits < 7 {
			if (b&0x7f)>>validBits != 0 {
				return 0, 0, overflowErr(size)
			}
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
	// Ran out of allowed groups but the continuation bit was still set.
	return 0, 0, overflowErr(size)
}

func loadSigned(buf []byte, size uint) (int64, uint64, error) {
	return readSigned(&byteSource{buf: buf}, size)
}

func decodeSigned(r io.ByteReader, size uint) (int64, uint64, error) {
	return readSigned(&byteSource{r: r}, size)
}

func readSigned(s *byteSource, size uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var b byte
	limit := maxBytes(size)
	for i := 0; i < limit; i++ {
		var err error
		b, err = s.next()
		if err != nil {
			return 0, 0, err
		}
		validBits := size - shift
		if validBits < 7 {
			// The remaining bits of this group must all equal the sign bit
			// of the value's validBits-th bit, i.e. be all-0 or all-1.
			extra := (b & 0x7f) >> validBits
			signExtension := byte(0)
			if (b>>(validBits-1))&1 != 0 {
				signExtension = 0x7f >> validBits
			}
			if extra != signExtension {
				return 0, 0, overflowErr(size)
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, uint64(i + 1), nil
		}
	}
	return 0, 0, overflowErr(size)
}

// LoadUint32 decodes an unsigned 32-bit LEB128 from the start of buf,
// returning the value and the number of bytes consumed.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := loadUnsigned(buf, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned 64-bit LEB128 from the start of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return loadUnsigned(buf, 64)
}

// LoadInt32 decodes a signed 32-bit LEB128 from the start of buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadSigned(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed 64-bit LEB128 from the start of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return loadSigned(buf, 64)
}

// DecodeUint32 decodes an unsigned 32-bit LEB128 from r.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUnsigned(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 decodes an unsigned 64-bit LEB128 from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUnsigned(r, 64)
}

// DecodeInt32 decodes a signed 32-bit LEB128 from r.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSigned(r, 32)
	return int32(v), n, err
}

// DecodeInt64 decodes a signed 64-bit LEB128 from r.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 64)
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128 -- the encoding Wasm
// uses for a block's signed blocktype immediate, which must distinguish a
// single-result value type from a type-section index -- widened to int64.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 33)
}
