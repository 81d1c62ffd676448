// Package blob stores the raw bytes of uploaded files. Metadata lives in the
// registry; this package only knows storage keys.
package blob

import (
	"context"
	"fmt"
	"io"

	"bitwise74/file-api/config"
	"bitwise74/file-api/internal/storage"
)

// Store is implemented by every blob backend.
type Store interface {
	// Write streams r to key and returns the number of bytes written. Nothing
	// is visible under key unless Write returns a nil error.
	Write(ctx context.Context, key storage.Key, r io.Reader) (int64, error)
	// Read opens the blob stored under key. The caller closes it.
	Read(ctx context.Context, key storage.Key) (io.ReadCloser, error)
	// Delete removes the blob under key. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key storage.Key) error
}

// New builds the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.Storage) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.RootPath)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// ctxReader stops a copy as soon as ctx is done, so an aborted request does
// not keep writing to disk.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
