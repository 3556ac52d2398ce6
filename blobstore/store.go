// Package blobstore abstracts where serialized graph artifacts live:
// local disk, S3, or any S3-compatible store.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable, whole-artifact blobs. Writes replace
// the blob atomically from the reader's point of view.
type BlobStore interface {
	// Get reads the blob's full contents.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes the blob's full contents.
	Put(ctx context.Context, name string, data []byte) error
}
