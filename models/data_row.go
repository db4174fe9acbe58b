package models

import "time"

// DataRow is one validated tabular record.
type DataRow struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	FileID     uint    `gorm:"index;not null"`
	ExternalID *string `gorm:"size:255"`
	Name       string  `gorm:"size:255;not null"`
	Price      float64 `gorm:"not null"`
	UploadedBy string  `gorm:"size:64"`
}
