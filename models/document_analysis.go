package models

import (
	"time"

	"gorm.io/datatypes"
)

// Classifications produced by the document classifier.
const (
	ClassificationInvoice = "FACTURA"
	ClassificationInfo    = "INFORMACION"
)

// DocumentAnalysis is the structured extraction for one Document. Fields that
// do not apply to the classification stay NULL.
type DocumentAnalysis struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DocumentID     uint   `gorm:"uniqueIndex;not null"`
	Classification string `gorm:"size:32;not null"`

	ClientName      *string  `gorm:"size:255"`
	ClientAddress   *string  `gorm:"size:512"`
	ProviderName    *string  `gorm:"size:255"`
	ProviderAddress *string  `gorm:"size:512"`
	InvoiceNumber   *string  `gorm:"size:128"`
	InvoiceDate     *string  `gorm:"size:64"`
	TotalAmount     *float64
	Products        datatypes.JSON

	Description *string `gorm:"type:text"`
	Summary     *string `gorm:"type:text"`
	Sentiment   *string `gorm:"size:32"`
}
