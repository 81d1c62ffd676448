package model

import "time"

// User is the local projection of an account managed by the identity
// provider. Only the fields needed for authorization are kept.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	IsAdmin   bool      `gorm:"default:false" json:"isAdmin"`
	Verified  bool      `gorm:"default:false" json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}
