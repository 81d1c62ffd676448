package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"bitwise74/file-api/internal/auth"
	"bitwise74/file-api/internal/metrics"
	"bitwise74/file-api/internal/model"

	"go.uber.org/zap"
)

// Download is an opened blob together with its record. Callers either Stream
// it or Close it.
type Download struct {
	File *model.File

	body  io.ReadCloser
	touch func(ctx context.Context, fileID uint) error
	once  sync.Once
}

// Stream copies the blob to w and closes it. After a complete copy the file's
// last download time is updated, exactly once.
func (d *Download) Stream(ctx context.Context, w io.Writer) (int64, error) {
	defer d.Close()

	n, err := io.Copy(w, d.body)
	metrics.DownloadedBytes.Add(float64(n))
	if err != nil {
		metrics.Observe("download", err)
		return n, fmt.Errorf("failed to stream file, %w", err)
	}

	d.once.Do(func() {
		// Bookkeeping only, the client already has the bytes
		if err := d.touch(context.WithoutCancel(ctx), d.File.ID); err != nil {
			zap.L().Warn("Failed to record download time", zap.Uint("fileID", d.File.ID), zap.Error(err))
		}
	})

	metrics.Observe("download", nil)
	return n, nil
}

func (d *Download) Close() error {
	return d.body.Close()
}

// Download opens a file the caller owns, or any file for admins.
func (s *Files) Download(ctx context.Context, p auth.Principal, fileID uint) (*Download, error) {
	f, err := s.registry.GetForOwnerOrAdmin(ctx, fileID, p)
	if err != nil {
		return nil, err
	}

	return s.open(ctx, f)
}

// DownloadWithToken opens the file a download token points at. No principal
// is needed.
func (s *Files) DownloadWithToken(ctx context.Context, tokenValue string) (*Download, error) {
	f, err := s.tokens.Validate(ctx, tokenValue)
	if err != nil {
		metrics.Observe("token_download", err)
		return nil, err
	}

	return s.open(ctx, f)
}

func (s *Files) open(ctx context.Context, f *model.File) (*Download, error) {
	key, err := f.Key()
	if err != nil {
		return nil, fmt.Errorf("stored key of file %d is invalid, %v", f.ID, err)
	}

	body, err := s.blobs.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	return &Download{
		File:  f,
		body:  body,
		touch: s.registry.TouchDownloaded,
	}, nil
}
