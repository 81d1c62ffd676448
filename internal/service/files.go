// Package service coordinates the blob store, the registry and the token
// service for everything the HTTP layer does with files.
package service

import (
	"context"
	"fmt"
	"time"

	"bitwise74/file-api/internal/auth"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/metrics"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/registry"
	"bitwise74/file-api/internal/token"
	"bitwise74/file-api/pkg/apperr"
)

type Files struct {
	blobs    blob.Store
	registry *registry.Registry
	tokens   *token.Service

	// Now is handed to the name allocator.
	Now func() time.Time
}

func NewFiles(blobs blob.Store, reg *registry.Registry, tokens *token.Service) *Files {
	return &Files{
		blobs:    blobs,
		registry: reg,
		tokens:   tokens,
		Now:      time.Now,
	}
}

func (s *Files) Get(ctx context.Context, p auth.Principal, fileID uint) (*model.File, error) {
	return s.registry.GetForOwnerOrAdmin(ctx, fileID, p)
}

// List returns the caller's own files.
func (s *Files) List(ctx context.Context, p auth.Principal) ([]model.File, error) {
	if p == nil {
		return nil, apperr.ErrForbidden
	}

	return s.registry.ListForOwner(ctx, p.ID())
}

// ListAll returns every file, or only ownerID's when it is set. Admins only.
func (s *Files) ListAll(ctx context.Context, p auth.Principal, ownerID string) ([]model.File, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	if ownerID != "" {
		return s.registry.ListForOwner(ctx, ownerID)
	}

	return s.registry.ListAll(ctx)
}

func (s *Files) Search(ctx context.Context, p auth.Principal, query string, page, limit int) ([]model.File, error) {
	if p == nil {
		return nil, apperr.ErrForbidden
	}

	return s.registry.Search(ctx, p.ID(), query, page, limit)
}

func (s *Files) Rename(ctx context.Context, p auth.Principal, fileID uint, newName string) (*model.File, error) {
	f, err := s.registry.Rename(ctx, fileID, p, newName)
	metrics.Observe("rename", err)
	return f, err
}

func (s *Files) UpdateComment(ctx context.Context, p auth.Principal, fileID uint, comment string) (*model.File, error) {
	f, err := s.registry.UpdateComment(ctx, fileID, p, comment)
	metrics.Observe("comment", err)
	return f, err
}

func (s *Files) Delete(ctx context.Context, p auth.Principal, fileID uint) error {
	err := s.registry.Delete(ctx, fileID, p)
	metrics.Observe("delete", err)
	return err
}

func (s *Files) IssueToken(ctx context.Context, p auth.Principal, fileID uint, validity time.Duration) (*model.DownloadToken, error) {
	t, err := s.tokens.Issue(ctx, fileID, p, validity)
	metrics.Observe("issue_token", err)
	return t, err
}

// Usage feeds the reporting dashboard. Admins only.
func (s *Files) Usage(ctx context.Context, p auth.Principal) ([]model.Usage, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}

	return s.registry.UsageByOwner(ctx)
}

func requireAdmin(p auth.Principal) error {
	if p == nil || !p.Admin() {
		return fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}

	return nil
}
