package ebml

import (
	"bytes"
	"io"

	"github.com/kumaryu/peercaststation-sub003/utils/pio"
	"github.com/kumaryu/peercaststation-sub003/utils/pool"
)

// MaxBodySize bounds the body of any element read into memory. Larger
// declared sizes come from corrupt or misaligned input.
const MaxBodySize = 256 * 1024 * 1024

// Header is the ID and size framing in front of every element.
type Header struct {
	ID   VInt
	Size VInt
}

func (h Header) ElementID() ID {
	return ID(h.ID.Raw())
}

// BodySize returns the declared body size, known is false for elements of
// unknown size.
func (h Header) BodySize() (size uint64, known bool) {
	if h.Size.IsUnknown() {
		return 0, false
	}
	return h.Size.Value, true
}

// Len is the encoded length of the header.
func (h Header) Len() int {
	return h.ID.Len() + h.Size.Len()
}

// Bytes returns the header exactly as it was read.
func (h Header) Bytes() []byte {
	b := make([]byte, 0, h.Len())
	b = append(b, h.ID.Binary...)
	return append(b, h.Size.Binary...)
}

// Element is a header plus its body. Data is empty for elements of unknown
// size; their content is read as further headers.
type Element struct {
	Header
	Data []byte
}

func (e *Element) Len() int {
	return e.Header.Len() + len(e.Data)
}

// Bytes returns the element exactly as it was read.
func (e *Element) Bytes() []byte {
	b := make([]byte, 0, e.Len())
	b = append(b, e.ID.Binary...)
	b = append(b, e.Size.Binary...)
	return append(b, e.Data...)
}

func (e *Element) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(e.Bytes())
	return int64(n), err
}

// Uint decodes the body as a big endian unsigned integer.
func (e *Element) Uint() uint64 {
	return pio.UintBE(e.Data)
}

// String decodes the body as a string, dropping trailing zero padding.
func (e *Element) String() string {
	return string(bytes.TrimRight(e.Data, "\x00"))
}

// Reader reads EBML elements from a forward-only stream.
type Reader struct {
	r    io.Reader
	pool *pool.Pool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:    r,
		pool: pool.NewPool(),
	}
}

// ReadHeader reads an element ID and size. Length limits are checked by the
// caller against the active Document.
func (r *Reader) ReadHeader() (Header, error) {
	id, err := ReadVInt(r.r)
	if err != nil {
		return Header{}, err
	}
	size, err := ReadVInt(r.r)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, err
	}
	return Header{ID: id, Size: size}, nil
}

// ReadBody reads the body announced by h. Elements of unknown size get an
// empty body and nothing is consumed.
func (r *Reader) ReadBody(h Header) (*Element, error) {
	size, known := h.BodySize()
	if !known {
		return &Element{Header: h}, nil
	}
	if size > MaxBodySize {
		return nil, ErrMalformed
	}
	data := r.pool.Get(int(size))
	if _, err := io.ReadFull(r.r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return &Element{Header: h, Data: data}, nil
}

func (r *Reader) ReadElement() (*Element, error) {
	h, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	return r.ReadBody(h)
}

// Children reads every complete child element of body. Reading stops at
// the first truncated or malformed child and the error is returned together
// with the children read so far.
func Children(body []byte) ([]*Element, error) {
	var children []*Element
	r := &Reader{r: bytes.NewReader(body), pool: pool.NewPool()}
	for {
		e, err := r.ReadElement()
		if err == io.EOF {
			return children, nil
		}
		if err != nil {
			return children, err
		}
		children = append(children, e)
	}
}
