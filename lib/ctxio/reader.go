// Package ctxio makes long stream copies give up promptly when a context ends.
package ctxio

import (
	"context"
	"io"
)

// Wrap r so reads fail with the context's error once it is done.
// Cancellation is checked between reads; a blocked read is not interrupted.
func NewReader(ctx context.Context, r io.Reader) io.Reader {
	return &reader{ctx, r}
}

type reader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *reader) Read(b []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(b)
}
