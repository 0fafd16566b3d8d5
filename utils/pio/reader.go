package pio

import (
	"io"
)

// ReadU16LE reads a little endian uint16 from r. A short read is reported as
// io.EOF when nothing was read and io.ErrUnexpectedEOF otherwise.
func ReadU16LE(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return U16LE(b[:]), nil
}

func ReadU32LE(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return U32LE(b[:]), nil
}

func ReadU64LE(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return U64LE(b[:]), nil
}
