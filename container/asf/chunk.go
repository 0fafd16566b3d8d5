// Package asf splits a framed ASF (WMV or WMA) stream into relay contents.
package asf

import (
	"fmt"
	"io"

	"github.com/kumaryu/peercaststation-sub003/utils/pio"
)

var ErrMalformed = fmt.Errorf("asf: malformed data")

// ChunkKind classifies a chunk by its type tag.
type ChunkKind int

const (
	ChunkUnknown ChunkKind = iota
	ChunkHeader
	ChunkData
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkHeader:
		return "header"
	case ChunkData:
		return "data"
	}
	return "unknown"
}

// Chunk type tags, "$H" and "$D" read as little endian.
const (
	TypeHeader uint16 = 0x4824
	TypeData   uint16 = 0x4424
)

var chunkKinds = map[uint16]ChunkKind{
	TypeHeader: ChunkHeader,
	TypeData:   ChunkData,
}

// longChunkFields is the size of the sequence and reserved fields.
const longChunkFields = 8

// Chunk is one framed unit of the stream. Chunks whose length is at least 8
// carry a sequence number and two reserved fields before the payload.
type Chunk struct {
	Type      uint16
	Length    uint16
	SeqNo     uint32
	Reserved1 uint16
	Reserved2 uint16
	Data      []byte
}

func (c *Chunk) Kind() ChunkKind {
	return chunkKinds[c.Type]
}

func (c *Chunk) IsLong() bool {
	return c.Length >= longChunkFields
}

// ReadChunk reads one chunk. Input ending before the first byte is io.EOF,
// ending inside the chunk is io.ErrUnexpectedEOF.
func ReadChunk(r io.Reader) (*Chunk, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	c := &Chunk{
		Type:   pio.U16LE(head[0:2]),
		Length: pio.U16LE(head[2:4]),
	}
	size := int(c.Length)
	if c.IsLong() {
		var fields [longChunkFields]byte
		if _, err := io.ReadFull(r, fields[:]); err != nil {
			return nil, unexpected(err)
		}
		c.SeqNo = pio.U32LE(fields[0:4])
		c.Reserved1 = pio.U16LE(fields[4:6])
		c.Reserved2 = pio.U16LE(fields[6:8])
		size -= longChunkFields
	}
	c.Data = make([]byte, size)
	if _, err := io.ReadFull(r, c.Data); err != nil {
		return nil, unexpected(err)
	}
	return c, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Len is the encoded size of the chunk.
func (c *Chunk) Len() int {
	n := 4 + len(c.Data)
	if c.IsLong() {
		n += longChunkFields
	}
	return n
}

// Bytes serializes the chunk exactly as it was read.
func (c *Chunk) Bytes() []byte {
	b := make([]byte, c.Len())
	pio.PutU16LE(b[0:2], c.Type)
	pio.PutU16LE(b[2:4], c.Length)
	off := 4
	if c.IsLong() {
		pio.PutU32LE(b[4:8], c.SeqNo)
		pio.PutU16LE(b[8:10], c.Reserved1)
		pio.PutU16LE(b[10:12], c.Reserved2)
		off += longChunkFields
	}
	copy(b[off:], c.Data)
	return b
}

func (c *Chunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Bytes())
	return int64(n), err
}

func (c *Chunk) String() string {
	return fmt.Sprintf("<chunk %s type: %#04x, len: %d, seq: %d>", c.Kind(), c.Type, c.Length, c.SeqNo)
}
