package models

import "time"

// Role names known to the API.
const (
	RoleUploader      = "uploader"
	RoleViewer        = "viewer"
	RoleAdministrator = "administrator"
)

// Role represents user roles with numeric primary key
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// DefaultRoles is the master list seeded on startup.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleUploader, Description: "may upload files and edit analyses"},
		{Name: RoleViewer, Description: "read-only access"},
		{Name: RoleAdministrator, Description: "full access"},
	}
}
