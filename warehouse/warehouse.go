package warehouse

import (
	"context"
	"io"
)

/*
A blobstore-style warehouse supports opening reads
which return a simple binary io.Reader stream.

Blobstore backing implementations are typically simple key-value stores.
Examples are 'kvfs' (using a local filesystem) and
'kvhttp' (readonly, aiming at http(s) URLs).

Each controller addresses exactly one blob: the base rootfs archive
we're asked to fetch.
*/
type BlobstoreController interface {
	// The address the controller was made from.  Useful for messages.
	Addr() string

	// Open a stream of the blob.  The caller must close it.
	// Errors are always categorized `labimg.ErrBuild`, or `labimg.ErrCancelled`
	// if the context ended first.
	OpenReader(ctx context.Context) (io.ReadCloser, error)
}
