package model

import "time"

type DownloadToken struct {
	Token          string    `gorm:"primaryKey;size:32"`
	FileID         uint      `gorm:"not null;index"`
	File           File      `gorm:"constraint:OnDelete:CASCADE"`
	IssuedByUserID string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// Expired reports whether the token can no longer be used at now.
func (t *DownloadToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
