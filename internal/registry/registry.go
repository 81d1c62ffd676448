// Package registry stores file metadata and enforces who may see or change
// each record.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"bitwise74/file-api/internal/auth"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/storage"
	"bitwise74/file-api/pkg/apperr"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MaxNameLen    = 255
	MaxCommentLen = 4096
	MaxPageLimit  = 250
)

type Registry struct {
	db    *gorm.DB
	blobs blob.Store

	// Now is used for upload and download timestamps.
	Now func() time.Time
}

func New(db *gorm.DB, blobs blob.Store) *Registry {
	return &Registry{
		db:    db,
		blobs: blobs,
		Now:   time.Now,
	}
}

func (r *Registry) Create(ctx context.Context, ownerID, originalName string, key storage.Key, sizeBytes int64, contentType string) (*model.File, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", apperr.ErrValidation)
	}

	if err := ValidateName(originalName); err != nil {
		return nil, err
	}

	if key.IsZero() {
		return nil, fmt.Errorf("%w: storage key is required", apperr.ErrValidation)
	}

	if sizeBytes < 0 {
		return nil, fmt.Errorf("%w: negative size", apperr.ErrValidation)
	}

	f := &model.File{
		OwnerID:      ownerID,
		OriginalName: originalName,
		StorageKey:   key.String(),
		SizeBytes:    sizeBytes,
		ContentType:  contentType,
		UploadedAt:   r.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, translate(err, "failed to create file record")
	}

	return f, nil
}

func (r *Registry) ListForOwner(ctx context.Context, ownerID string) ([]model.File, error) {
	files := []model.File{}

	err := r.db.
		WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id asc").
		Find(&files).
		Error
	if err != nil {
		return nil, translate(err, "failed to list files")
	}

	return files, nil
}

// ListAll returns every file. Callers must check the admin role first.
func (r *Registry) ListAll(ctx context.Context) ([]model.File, error) {
	files := []model.File{}

	if err := r.db.WithContext(ctx).Order("id asc").Find(&files).Error; err != nil {
		return nil, translate(err, "failed to list files")
	}

	return files, nil
}

// Search matches query against the owner's file names, ignoring case. Newest
// uploads come first.
func (r *Registry) Search(ctx context.Context, ownerID, query string, page, limit int) ([]model.File, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("%w: no search query provided", apperr.ErrValidation)
	}

	if page < 0 {
		return nil, fmt.Errorf("%w: invalid page provided", apperr.ErrValidation)
	}

	if limit <= 0 || limit > MaxPageLimit {
		return nil, fmt.Errorf("%w: invalid limit provided", apperr.ErrValidation)
	}

	if page > math.MaxInt/limit {
		return nil, fmt.Errorf("%w: invalid page provided", apperr.ErrValidation)
	}

	files := []model.File{}

	err := r.db.
		WithContext(ctx).
		Where("owner_id = ? AND LOWER(original_name) LIKE ? ESCAPE '\\'", ownerID, "%"+escapeLike(query)+"%").
		Order("uploaded_at desc, id desc").
		Offset(page * limit).
		Limit(limit).
		Find(&files).
		Error
	if err != nil {
		return nil, translate(err, "failed to search files")
	}

	return files, nil
}

func (r *Registry) Rename(ctx context.Context, fileID uint, p auth.Principal, newName string) (*model.File, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}

	return r.updateColumn(ctx, fileID, p, "original_name", newName)
}

// UpdateComment replaces the file comment. An empty comment clears it.
func (r *Registry) UpdateComment(ctx context.Context, fileID uint, p auth.Principal, comment string) (*model.File, error) {
	if len(comment) > MaxCommentLen {
		return nil, fmt.Errorf("%w: comment can't be longer than %d bytes", apperr.ErrValidation, MaxCommentLen)
	}

	if !utf8.ValidString(comment) {
		return nil, fmt.Errorf("%w: comment must be valid UTF-8", apperr.ErrValidation)
	}

	return r.updateColumn(ctx, fileID, p, "comment", comment)
}

func (r *Registry) updateColumn(ctx context.Context, fileID uint, p auth.Principal, column string, value any) (*model.File, error) {
	if p == nil {
		return nil, notFound(fileID)
	}

	res := scoped(r.db.WithContext(ctx).Model(&model.File{}), fileID, p).Update(column, value)
	if res.Error != nil {
		return nil, translate(res.Error, "failed to update file")
	}

	if res.RowsAffected == 0 {
		return nil, notFound(fileID)
	}

	return r.Get(ctx, fileID)
}

// TouchDownloaded records a finished download. A file deleted in the meantime
// is left alone.
func (r *Registry) TouchDownloaded(ctx context.Context, fileID uint) error {
	err := r.db.
		WithContext(ctx).
		Model(&model.File{}).
		Where("id = ?", fileID).
		Update("last_downloaded_at", r.Now().UTC()).
		Error
	if err != nil {
		return translate(err, "failed to update download time")
	}

	return nil
}

// Delete removes the record, its download tokens and then its blob. When two
// callers race only one of them succeeds; the other gets NotFound.
func (r *Registry) Delete(ctx context.Context, fileID uint, p auth.Principal) error {
	if p == nil {
		return notFound(fileID)
	}

	var f model.File

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := scoped(tx, fileID, p).First(&f).Error; err != nil {
			return err
		}

		if err := tx.Where("file_id = ?", fileID).Delete(&model.DownloadToken{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", fileID).Delete(&model.File{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
	if err != nil {
		return translate(err, "failed to delete file")
	}

	key, err := f.Key()
	if err != nil {
		zap.L().Error("Stored key is invalid, blob left behind", zap.Uint("fileID", fileID), zap.String("key", f.StorageKey), zap.Error(err))
		return nil
	}

	// The record is gone at this point so the blob goes too, even if the
	// caller hung up.
	if err := r.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		zap.L().Error("Failed to delete blob of deleted file", zap.Uint("fileID", fileID), zap.String("key", key.String()), zap.Error(err))
	}

	return nil
}

// GetForOwnerOrAdmin returns the file if p owns it or is an admin. Files of
// other users look exactly like missing ones.
func (r *Registry) GetForOwnerOrAdmin(ctx context.Context, fileID uint, p auth.Principal) (*model.File, error) {
	if p == nil {
		return nil, notFound(fileID)
	}

	var f model.File
	if err := scoped(r.db.WithContext(ctx), fileID, p).First(&f).Error; err != nil {
		return nil, translate(err, "failed to fetch file")
	}

	return &f, nil
}

// Get looks a file up without any ownership check.
func (r *Registry) Get(ctx context.Context, fileID uint) (*model.File, error) {
	var f model.File
	if err := r.db.WithContext(ctx).Where("id = ?", fileID).First(&f).Error; err != nil {
		return nil, translate(err, "failed to fetch file")
	}

	return &f, nil
}

// UsageByOwner sums file counts and sizes per owner. Every known user is
// listed, with zeros when they have no files.
func (r *Registry) UsageByOwner(ctx context.Context) ([]model.Usage, error) {
	usage := []model.Usage{}

	err := r.db.
		WithContext(ctx).
		Raw(`SELECT owners.id AS owner_id,
			COALESCE(users.username, '') AS username,
			COUNT(files.id) AS file_count,
			COALESCE(SUM(files.size_bytes), 0) AS total_file_size
		FROM (SELECT id FROM users UNION SELECT owner_id FROM files) AS owners
		LEFT JOIN users ON users.id = owners.id
		LEFT JOIN files ON files.owner_id = owners.id
		GROUP BY owners.id, users.username
		ORDER BY owners.id ASC`).
		Scan(&usage).
		Error
	if err != nil {
		return nil, translate(err, "failed to aggregate usage")
	}

	return usage, nil
}

// ValidateName checks a display name given by a user.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: file name can't be empty", apperr.ErrValidation)
	}

	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: file name can't be longer than %d bytes", apperr.ErrValidation, MaxNameLen)
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: file name must be valid UTF-8", apperr.ErrValidation)
	}

	return nil
}

func scoped(tx *gorm.DB, fileID uint, p auth.Principal) *gorm.DB {
	q := tx.Where("id = ?", fileID)
	if !p.Admin() {
		q = q.Where("owner_id = ?", p.ID())
	}

	return q
}

func notFound(fileID uint) error {
	return fmt.Errorf("%w: file %d", apperr.ErrNotFound, fileID)
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: file", apperr.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s, %v", apperr.ErrConflict, msg, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s, %w", msg, err)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
