package models

import "time"

// AuditLog is an immutable record of a domain event.
type AuditLog struct {
	ID          uint      `gorm:"primaryKey"`
	EventType   string    `gorm:"size:64;not null;index"`
	Description string    `gorm:"type:text;not null"`
	UserID      *string   `gorm:"size:64;index"`
	EventDate   time.Time `gorm:"not null;index"`
	Metadata    *string   `gorm:"type:text"`
}
