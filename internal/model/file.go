// Package model defines database models
package model

import (
	"time"

	"bitwise74/file-api/internal/storage"
)

type File struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID          string     `gorm:"not null;index" json:"ownerId"`
	OriginalName     string     `gorm:"not null;size:255" json:"originalName"`
	StorageKey       string     `gorm:"not null;uniqueIndex" json:"storageKey"` // Never derived from OriginalName alone
	SizeBytes        int64      `gorm:"not null" json:"sizeBytes"`
	ContentType      string     `json:"contentType"`
	UploadedAt       time.Time  `gorm:"not null" json:"uploadedAt"`
	LastDownloadedAt *time.Time `json:"lastDownloadedAt"`
	Comment          string     `gorm:"not null;default:''" json:"comment"`
}

// Key parses the stored key back into its validated form.
func (f *File) Key() (storage.Key, error) {
	return storage.ParseKey(f.StorageKey)
}
