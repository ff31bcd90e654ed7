package types

import (
	"time"

	"gorm.io/datatypes"
)

// Caption lifecycle. done/error are terminal until an explicit re-caption
// or re-ingestion moves the row back to pending.
const (
	CaptionStatusPending    = "pending"
	CaptionStatusProcessing = "processing"
	CaptionStatusDone       = "done"
	CaptionStatusError      = "error"
)

// Image is an extracted media asset. Fingerprint is the SHA-256 of the file
// content; FilePath is unique so re-ingesting the same extraction merges
// into the existing row. ContactID links the image to the contact that
// shared it, when a message attachment references the file.
type Image struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	FilePath        string         `gorm:"column:file_path;uniqueIndex;not null" json:"file_path"`
	RelativePath    string         `gorm:"column:relative_path" json:"relative_path"`
	Fingerprint     string         `gorm:"column:fingerprint;index" json:"fingerprint"`
	SizeBytes       int64          `gorm:"column:size_bytes" json:"size_bytes"`
	MimeType        string         `gorm:"column:mime_type" json:"mime_type"`
	Width           int            `gorm:"column:width" json:"width"`
	Height          int            `gorm:"column:height" json:"height"`
	ContactID       *uint          `gorm:"column:contact_id;index" json:"contact_id,omitempty"`
	Caption         string         `gorm:"column:caption" json:"caption"`
	Tags            string         `gorm:"column:tags" json:"tags"`
	DetectedText    string         `gorm:"column:detected_text" json:"detected_text"`
	Source          string         `gorm:"column:source" json:"source"`
	Metadata        datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	VectorID        string         `gorm:"column:vector_id;index" json:"vector_id,omitempty"`
	CaptionStatus   string         `gorm:"column:caption_status;not null;default:'pending'" json:"caption_status"`
	CaptionError    string         `gorm:"column:caption_error" json:"caption_error,omitempty"`
	LastCaptionedAt *time.Time     `gorm:"column:last_captioned_at" json:"last_captioned_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (Image) TableName() string { return "images" }
