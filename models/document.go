package models

import "time"

// Document AI states.
const (
	AIStatusPending  = "pending"
	AIStatusAnalyzed = "analyzed"
	AIStatusFailed   = "ai_failed"
)

// Document is the metadata of a non-tabular upload (PDF, image).
type Document struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FileName    string  `gorm:"size:255;not null"`
	StoragePath string  `gorm:"size:1024;not null"`
	ContentType string  `gorm:"size:128"`
	UploadedBy  string  `gorm:"size:64;index"`
	PageCount   int     `gorm:"not null;default:0"`
	AIStatus    string  `gorm:"column:ai_status;size:16;not null;default:pending;index"`
	AIError     *string `gorm:"column:ai_error;type:text"`

	Analysis *DocumentAnalysis `gorm:"foreignKey:DocumentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
