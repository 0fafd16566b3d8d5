package av

import (
	"context"
	"errors"
	"io"
)

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// NewContextReader returns a reader that checks ctx before every Read.
// Blocking reads are not interrupted; the transport closes the underlying
// connection when the session is cancelled.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// IsEndOfInput reports whether err means the source ran out of bytes,
// including a short read in the middle of an element.
func IsEndOfInput(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
