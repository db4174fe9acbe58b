package models

import "time"

// File is the metadata of one tabular upload.
type File struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	FileName    string `gorm:"size:255;not null"`
	StoragePath string `gorm:"size:1024;not null"`
	ContentType string `gorm:"size:128"`
	UploadedBy  string `gorm:"size:64;index"`
	// Param1 and Param2 are caller supplied provenance; they never affect validation.
	Param1     string `gorm:"column:parametro1;size:255"`
	Param2     string `gorm:"column:parametro2;size:255"`
	RowsSaved  int    `gorm:"not null;default:0"`
	ErrorCount int    `gorm:"not null;default:0"`

	Rows        []DataRow        `gorm:"foreignKey:FileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Validations []FileValidation `gorm:"foreignKey:FileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
