// Package ebml reads the EBML framing used by Matroska and WebM.
package ebml

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kumaryu/peercaststation-sub003/utils/pio"
)

var (
	ErrMalformed = fmt.Errorf("ebml: malformed data")
	ErrVIntRange = fmt.Errorf("ebml: value out of vint range")
)

const maxVIntLength = 8

// VInt is an EBML variable length integer together with the bytes it was
// decoded from.
type VInt struct {
	Value  uint64 // length marker stripped
	Binary []byte // encoded form, 1..8 bytes
}

func (v VInt) Len() int {
	return len(v.Binary)
}

// IsUnknown reports whether every payload bit is set, which marks an element
// of unknown size.
func (v VInt) IsUnknown() bool {
	return len(v.Binary) > 0 && v.Value == payloadMask(len(v.Binary))
}

// Raw returns the encoded bytes as an integer, length marker included.
// Element IDs are compared this way.
func (v VInt) Raw() uint64 {
	return pio.UintBE(v.Binary)
}

func (v VInt) Equal(bin []byte) bool {
	return bytes.Equal(v.Binary, bin)
}

func payloadMask(length int) uint64 {
	return (uint64(1) << (7 * uint(length))) - 1
}

// vintLength returns the encoded length announced by the first byte,
// or 0 if no bit is set.
func vintLength(first byte) int {
	for i := 0; i < maxVIntLength; i++ {
		if first&(0x80>>uint(i)) != 0 {
			return i + 1
		}
	}
	return 0
}

// ReadVInt decodes one VInt from r. A zero first byte is consumed and
// reported as ErrMalformed.
func ReadVInt(r io.Reader) (VInt, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return VInt{}, err
	}
	length := vintLength(first[0])
	if length == 0 {
		return VInt{}, ErrMalformed
	}
	bin := make([]byte, length)
	bin[0] = first[0]
	if length > 1 {
		if _, err := io.ReadFull(r, bin[1:]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return VInt{}, err
		}
	}
	return VInt{Value: pio.UintBE(bin) & payloadMask(length), Binary: bin}, nil
}

// DecodeVInt decodes one VInt from the start of b and returns the number of
// bytes used.
func DecodeVInt(b []byte) (VInt, int, error) {
	if len(b) == 0 {
		return VInt{}, 0, io.EOF
	}
	length := vintLength(b[0])
	if length == 0 {
		return VInt{}, 0, ErrMalformed
	}
	if len(b) < length {
		return VInt{}, 0, io.ErrUnexpectedEOF
	}
	bin := append([]byte(nil), b[:length]...)
	return VInt{Value: pio.UintBE(bin) & payloadMask(length), Binary: bin}, length, nil
}

// EncodeVInt encodes value with exactly length bytes. The all-ones value of
// a length is the unknown size marker and is accepted.
func EncodeVInt(value uint64, length int) (VInt, error) {
	if length < 1 || length > maxVIntLength || value > payloadMask(length) {
		return VInt{}, ErrVIntRange
	}
	raw := value | uint64(1)<<(7*uint(length))
	bin := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		bin[i] = byte(raw)
		raw >>= 8
	}
	return VInt{Value: value, Binary: bin}, nil
}

// EncodeSize encodes a known element size with the shortest length that does
// not collide with the unknown size marker.
func EncodeSize(value uint64) (VInt, error) {
	for length := 1; length <= maxVIntLength; length++ {
		if value < payloadMask(length) {
			return EncodeVInt(value, length)
		}
	}
	return VInt{}, ErrVIntRange
}

// UnknownSize returns the unknown size marker of the given length.
func UnknownSize(length int) VInt {
	v, _ := EncodeVInt(payloadMask(length), length)
	return v
}
