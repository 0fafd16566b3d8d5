// Package pio encodes and decodes fixed-width integers over byte slices.
//
// Byte order is always explicit in the function name, so results never depend
// on the host byte order.
package pio

func U8(b []byte) uint8 {
	return b[0]
}

func U16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func U32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func U64LE(b []byte) uint64 {
	return uint64(U32LE(b)) | uint64(U32LE(b[4:]))<<32
}

func I16LE(b []byte) int16 {
	return int16(U16LE(b))
}

func I32LE(b []byte) int32 {
	return int32(U32LE(b))
}

func I64LE(b []byte) int64 {
	return int64(U64LE(b))
}

func PutU8(b []byte, v uint8) {
	b[0] = v
}

func PutU16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func PutU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func PutU64LE(b []byte, v uint64) {
	PutU32LE(b, uint32(v))
	PutU32LE(b[4:], uint32(v>>32))
}

func PutI16LE(b []byte, v int16) {
	PutU16LE(b, uint16(v))
}

func PutI32LE(b []byte, v int32) {
	PutU32LE(b, uint32(v))
}

func PutI64LE(b []byte, v int64) {
	PutU64LE(b, uint64(v))
}

// Big endian helpers, used by FLV tag headers and EBML payload integers.

func U24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func U32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func PutU24BE(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func PutU32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// UintBE accumulates up to 8 bytes as an unsigned big endian integer.
func UintBE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
