package model

// Usage is the per owner storage summary handed to the reporting dashboard.
type Usage struct {
	OwnerID       string `json:"ownerId"`
	Username      string `json:"username"`
	FileCount     int64  `json:"fileCount"`
	TotalFileSize int64  `json:"totalFileSize"`
}
