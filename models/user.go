package models

import (
	"strconv"
	"time"
)

// User model
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string `gorm:"size:30;not null;uniqueIndex"`
	HashedPassword []byte `gorm:"not null"`
	RoleID         *uint  `gorm:"index"`
	Role           Role   `gorm:"foreignKey:RoleID;references:ID"`
}

// Subject is the token subject for this user.
func (u User) Subject() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}
