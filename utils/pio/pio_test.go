package pio

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLittleEndianLayout(t *testing.T) {
	b := make([]byte, 8)

	PutU16LE(b, 0x4824)
	assert.Equal(t, []byte{0x24, 0x48}, b[:2])
	assert.Equal(t, uint16(0x4824), U16LE(b))

	PutU32LE(b, 0x01020304)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b[:4])
	assert.Equal(t, uint32(0x01020304), U32LE(b))

	PutU64LE(b, 0x0102030405060708)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, uint64(0x0102030405060708), U64LE(b))
}

func TestSignedRoundTrip(t *testing.T) {
	b := make([]byte, 8)
	values16 := []int16{0, 1, -1, 32767, -32768}
	for _, v := range values16 {
		PutI16LE(b, v)
		assert.Equal(t, v, I16LE(b))
	}
	values32 := []int32{0, 1, -1, 2147483647, -2147483648}
	for _, v := range values32 {
		PutI32LE(b, v)
		assert.Equal(t, v, I32LE(b))
	}
	values64 := []int64{0, 1, -1, 9223372036854775807, -9223372036854775808}
	for _, v := range values64 {
		PutI64LE(b, v)
		assert.Equal(t, v, I64LE(b))
	}
	PutU8(b, 0xfe)
	assert.Equal(t, uint8(0xfe), U8(b))
}

func TestBigEndian(t *testing.T) {
	b := make([]byte, 4)
	PutU24BE(b, 0x0a0b0c)
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c}, b[:3])
	assert.Equal(t, uint32(0x0a0b0c), U24BE(b))
	PutU32BE(b, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), U32BE(b))
	assert.Equal(t, uint64(0xdeadbeef), UintBE(b))
	assert.Equal(t, uint64(0), UintBE(nil))
}

func TestReadShortInput(t *testing.T) {
	_, err := ReadU16LE(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	_, err = ReadU32LE(bytes.NewReader([]byte{1, 2}))
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	v, err := ReadU64LE(bytes.NewReader([]byte{1, 0, 0, 0, 0, 0, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}
