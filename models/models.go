package models

// All lists every model in migration order. Roles come first so the users FK
// can be created.
func All() []any {
	return []any{
		&Role{},
		&User{},
		&File{},
		&DataRow{},
		&FileValidation{},
		&Document{},
		&DocumentAnalysis{},
		&AuditLog{},
	}
}
