package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"bitwise74/file-api/internal/auth"
	"bitwise74/file-api/internal/metrics"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/registry"
	"bitwise74/file-api/internal/storage"
	"bitwise74/file-api/pkg/apperr"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// sniffLen is how much of the body is looked at to detect the content type.
const sniffLen = 3072

// UploadItem is one file of a bulk upload. Open is called once, right before
// the item is stored.
type UploadItem struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

type BulkResult struct {
	Filename string      `json:"filename"`
	Success  bool        `json:"success"`
	File     *model.File `json:"file,omitempty"`
	Error    string      `json:"error,omitempty"`

	Err error `json:"-"`
}

// Upload stores r under a freshly allocated key and registers it for p. If the
// record can't be created the blob is removed again.
func (s *Files) Upload(ctx context.Context, p auth.Principal, filename string, r io.Reader) (*model.File, error) {
	f, err := s.upload(ctx, p, filename, r)
	metrics.Observe("upload", err)
	return f, err
}

func (s *Files) upload(ctx context.Context, p auth.Principal, filename string, r io.Reader) (*model.File, error) {
	if p == nil {
		return nil, apperr.ErrForbidden
	}

	if r == nil {
		return nil, fmt.Errorf("%w: no content", apperr.ErrValidation)
	}

	if err := registry.ValidateName(filename); err != nil {
		return nil, err
	}

	key, err := storage.Allocate(p.ID(), filename, s.Now())
	if err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: failed to read upload, %v", apperr.ErrIO, err)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	size, err := s.blobs.Write(ctx, key, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return nil, err
	}
	metrics.UploadedBytes.Add(float64(size))

	f, err := s.registry.Create(ctx, p.ID(), filename, key, size, contentType)
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			zap.L().Error("Failed to cleanup after failed upload", zap.String("key", key.String()), zap.Error(delErr))
		} else {
			zap.L().Debug("Cleaned up after failed upload", zap.String("key", key.String()))
		}

		return nil, err
	}

	return f, nil
}

// BulkUpload stores every item independently. A failing item never stops the
// rest; results keep the order of items.
func (s *Files) BulkUpload(ctx context.Context, p auth.Principal, items []UploadItem) []BulkResult {
	results := make([]BulkResult, 0, len(items))

	for _, it := range items {
		res := BulkResult{Filename: it.Filename}

		f, err := s.uploadItem(ctx, p, it)
		if err != nil {
			_, msg := apperr.Status(err)
			res.Error = msg
			res.Err = err
		} else {
			res.Success = true
			res.File = f
		}

		results = append(results, res)
	}

	return results
}

func (s *Files) uploadItem(ctx context.Context, p auth.Principal, it UploadItem) (*model.File, error) {
	if it.Open == nil {
		return nil, fmt.Errorf("%w: no content", apperr.ErrValidation)
	}

	rc, err := it.Open()
	if err != nil {
		metrics.Observe("upload", err)
		return nil, fmt.Errorf("%w: failed to open upload, %v", apperr.ErrIO, err)
	}
	defer rc.Close()

	return s.Upload(ctx, p, it.Filename, rc)
}
