package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bitwise74/file-api/internal/storage"
	"bitwise74/file-api/pkg/apperr"

	"go.uber.org/zap"
)

// LocalStore keeps blobs on the local filesystem below root, one directory
// per owner namespace.
type LocalStore struct {
	root string
}

func NewLocalStore(rootPath string) (*LocalStore, error) {
	rootPath = strings.TrimSpace(rootPath)
	if rootPath == "" {
		return nil, errors.New("storage root path is required")
	}

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root, %w", err)
	}

	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s, %w", abs, err)
	}

	return &LocalStore{root: abs}, nil
}

// Root returns the absolute directory blobs are stored under.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Write(ctx context.Context, key storage.Key, r io.Reader) (int64, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return 0, err
	}

	if r == nil {
		return 0, fmt.Errorf("%w: no content", apperr.ErrValidation)
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if _, err := os.Stat(dst); err == nil {
		return 0, fmt.Errorf("%w: blob %s already exists", apperr.ErrConflict, key)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("%w: failed to create namespace directory, %v", apperr.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create temporary file, %v", apperr.ErrIO, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("Failed to remove temporary upload file", zap.String("path", tmpPath), zap.Error(err))
		}
	}

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: failed to write blob, %v", apperr.ErrIO, err)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("%w: failed to sync blob, %v", apperr.ErrIO, err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("%w: failed to close blob, %v", apperr.ErrIO, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return 0, fmt.Errorf("%w: failed to move blob into place, %v", apperr.ErrIO, err)
	}

	return n, nil
}

func (s *LocalStore) Read(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: blob %s", apperr.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: failed to open blob, %v", apperr.ErrIO, err)
	}

	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key storage.Key) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("Blob already absent", zap.String("key", key.String()))
			return nil
		}
		return fmt.Errorf("%w: failed to delete blob, %v", apperr.ErrIO, err)
	}

	return nil
}

// resolve turns key into an absolute path and refuses anything that would
// land outside root.
func (s *LocalStore) resolve(key storage.Key) (string, error) {
	if key.IsZero() {
		return "", fmt.Errorf("%w: empty storage key", apperr.ErrValidation)
	}

	p := filepath.Join(s.root, key.Namespace(), key.Name())

	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: storage key escapes root", apperr.ErrValidation)
	}

	return p, nil
}
