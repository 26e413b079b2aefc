package models

import (
	"time"
)

func init() {
	registerModel(&File{})
}

type File struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	OwnerID      uint      `gorm:"not null;index:idx_file_owner_path" json:"ownerId"`
	StorageKey   string    `gorm:"not null;uniqueIndex;size:1024" json:"storageKey"`
	OriginalName string    `gorm:"not null" json:"originalName"`
	FileType     string    `gorm:"not null;size:16" json:"fileType"`
	Size         int64     `gorm:"not null" json:"size"`
	MimeType     string    `json:"mimeType"`
	Path         string    `gorm:"not null;index:idx_file_owner_path;size:512" json:"path"`
	ThumbnailKey *string   `json:"thumbnailKey,omitempty"`
}
