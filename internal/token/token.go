// Package token issues and checks the anonymous, time boxed download links.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitwise74/file-api/config"
	"bitwise74/file-api/internal/auth"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/registry"
	"bitwise74/file-api/pkg/apperr"
	"bitwise74/file-api/pkg/security"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tokenSize is the number of random bytes in a token, 128 bits.
const tokenSize = 16

type Service struct {
	db    *gorm.DB
	files *registry.Registry

	defaultValidity time.Duration
	maxValidity     time.Duration

	// Now decides issue and expiry times.
	Now func() time.Time
}

func New(db *gorm.DB, files *registry.Registry, cfg config.Token) *Service {
	maxValidity := cfg.MaxValidity
	if maxValidity < cfg.DefaultValidity {
		maxValidity = cfg.DefaultValidity
	}

	return &Service{
		db:              db,
		files:           files,
		defaultValidity: cfg.DefaultValidity,
		maxValidity:     maxValidity,
		Now:             time.Now,
	}
}

// Issue creates a new token for fileID. Only the owner or an admin may issue
// one. A validity of zero or less means the configured default.
func (s *Service) Issue(ctx context.Context, fileID uint, p auth.Principal, validity time.Duration) (*model.DownloadToken, error) {
	if validity <= 0 {
		validity = s.defaultValidity
	}

	if validity > s.maxValidity {
		return nil, fmt.Errorf("%w: validity can't be longer than %s", apperr.ErrValidation, s.maxValidity)
	}

	f, err := s.files.GetForOwnerOrAdmin(ctx, fileID, p)
	if err != nil {
		return nil, err
	}

	value, err := security.GenerateToken(tokenSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token, %w", err)
	}

	now := s.Now().UTC()
	t := &model.DownloadToken{
		Token:          value,
		FileID:         f.ID,
		IssuedByUserID: p.ID(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(validity),
	}

	err = s.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: file %d", apperr.ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to store token, %w", err)
	}

	return t, nil
}

// Validate returns the file a token grants access to. Unknown tokens and
// tokens whose file is gone are NotFound; tokens past their expiry are Expired.
func (s *Service) Validate(ctx context.Context, value string) (*model.File, error) {
	if !security.IsToken(value, tokenSize) {
		return nil, fmt.Errorf("%w: token", apperr.ErrNotFound)
	}

	var t model.DownloadToken

	err := s.db.WithContext(ctx).Where("token = ?", value).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: token", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up token, %w", err)
	}

	if t.Expired(s.Now()) {
		return nil, fmt.Errorf("%w: token expired at %s", apperr.ErrExpired, t.ExpiresAt.Format(time.RFC3339))
	}

	return s.files.Get(ctx, t.FileID)
}

// PurgeExpired deletes every token that expired at or before now.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&model.DownloadToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge expired tokens, %w", res.Error)
	}

	return res.RowsAffected, nil
}
