package models

import "time"

// Validation error codes stored in FileValidation.ErrorCode.
const (
	ErrorEmpty     = "EMPTY"
	ErrorType      = "TYPE"
	ErrorDuplicate = "DUPLICATE"
)

// FileValidation is one row-level failure of a tabular upload.
type FileValidation struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	FileID     uint   `gorm:"index;not null"`
	RowNumber  int    `gorm:"not null"`
	ColumnName string `gorm:"size:64;not null"`
	ErrorCode  string `gorm:"size:32;not null"`
	Message    string `gorm:"size:512"`
}
