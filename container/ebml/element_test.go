package ebml

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func element(id []byte, body []byte) []byte {
	size, _ := EncodeSize(uint64(len(body)))
	b := append([]byte{}, id...)
	b = append(b, size.Binary...)
	return append(b, body...)
}

func TestReadElement(t *testing.T) {
	raw := element([]byte{0xe7}, []byte{0x03, 0xe8})
	r := NewReader(bytes.NewReader(raw))
	e, err := r.ReadElement()
	require.NoError(t, err)
	assert.Equal(t, IDTimecode, e.ElementID())
	assert.Equal(t, uint64(1000), e.Uint())
	assert.Equal(t, raw, e.Bytes())
	assert.Equal(t, len(raw), e.Len())

	_, err = r.ReadElement()
	assert.Equal(t, io.EOF, err)
}

func TestReadUnknownSize(t *testing.T) {
	raw := []byte{0x1f, 0x43, 0xb6, 0x75, 0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xe7, 0x81, 0x00}
	r := NewReader(bytes.NewReader(raw))
	h, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, IDCluster, h.ElementID())
	_, known := h.BodySize()
	assert.False(t, known)
	assert.Equal(t, raw[:12], h.Bytes())

	e, err := r.ReadBody(h)
	require.NoError(t, err)
	assert.Empty(t, e.Data)

	// the child is still in the stream
	child, err := r.ReadElement()
	require.NoError(t, err)
	assert.Equal(t, IDTimecode, child.ElementID())
}

func TestReadTruncatedBody(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xa3, 0x85, 0x01, 0x02}))
	_, err := r.ReadElement()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	r = NewReader(bytes.NewReader([]byte{0xa3}))
	_, err = r.ReadElement()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReadBodyTooLarge(t *testing.T) {
	size, err := EncodeSize(MaxBodySize + 1)
	require.NoError(t, err)
	r := NewReader(bytes.NewReader(append([]byte{0xa3}, size.Binary...)))
	h, err := r.ReadHeader()
	require.NoError(t, err)
	_, err = r.ReadBody(h)
	assert.Equal(t, ErrMalformed, err)
}

func TestParseDocument(t *testing.T) {
	var body []byte
	body = append(body, element([]byte{0x42, 0x86}, []byte{0x01})...)
	body = append(body, element([]byte{0x42, 0xf2}, []byte{0x04})...)
	body = append(body, element([]byte{0x42, 0xf3}, []byte{0x08})...)
	body = append(body, element([]byte{0x4d, 0xbb}, []byte{0xff})...)
	body = append(body, element([]byte{0x42, 0x82}, []byte("webm\x00"))...)
	body = append(body, element([]byte{0x42, 0x87}, []byte{0x02})...)

	doc, err := ParseDocument(body)
	require.NoError(t, err)
	assert.Equal(t, "webm", doc.DocType)
	assert.Equal(t, 2, doc.DocTypeVersion)
	assert.Equal(t, 4, doc.MaxIDLength)
	assert.Equal(t, 8, doc.MaxSizeLength)
}

func TestParseDocumentIgnoresBadLimits(t *testing.T) {
	tests := []struct {
		idLen, sizeLen byte
		wantID, wantSz int
	}{
		{0, 0, 4, 8},
		{9, 9, 4, 8},
		{0xff, 3, 4, 3},
		{2, 0, 2, 8},
	}
	for _, tt := range tests {
		var body []byte
		body = append(body, element([]byte{0x42, 0xf2}, []byte{tt.idLen})...)
		body = append(body, element([]byte{0x42, 0xf3}, []byte{tt.sizeLen})...)
		doc, err := ParseDocument(body)
		require.NoError(t, err)
		assert.Equal(t, tt.wantID, doc.MaxIDLength)
		assert.Equal(t, tt.wantSz, doc.MaxSizeLength)
	}
}

func TestParseDocumentTruncated(t *testing.T) {
	body := element([]byte{0x42, 0x82}, []byte("webm"))
	body = append(body, 0x42, 0xf2, 0x84, 0x00)
	doc, err := ParseDocument(body)
	assert.Error(t, err)
	assert.Equal(t, "webm", doc.DocType)
	assert.Equal(t, 4, doc.MaxIDLength)
}

func TestDocumentValidate(t *testing.T) {
	doc := DefaultDocument()
	doc.MaxIDLength = 2
	id, _ := EncodeVInt(0x0a45dfa3, 4)
	size, _ := EncodeSize(1)
	err := doc.Validate(Header{ID: id, Size: size})
	assert.True(t, errors.Is(err, ErrMalformed))

	short, _ := EncodeVInt(0x67, 1)
	assert.NoError(t, doc.Validate(Header{ID: short, Size: size}))

	doc = DefaultDocument()
	doc.MaxSizeLength = 4
	err = doc.Validate(Header{ID: short, Size: UnknownSize(8)})
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.NoError(t, doc.Validate(Header{ID: short, Size: UnknownSize(4)}))
}
