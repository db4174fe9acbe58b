package database

import (
	"path/filepath"
	"testing"

	"docintake/models"
	"docintake/pkg/config"
	"docintake/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1}, logger.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Zero(t, Migrate(db, logger.Nop()))
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	// second run is a no-op
	assert.Zero(t, Migrate(db, logger.Nop()))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "postgres"}, logger.Nop())
	assert.ErrorContains(t, err, "DB_DSN")

	_, err = Open(config.DatabaseConfig{Driver: "mysql", DSN: "x"}, logger.Nop())
	assert.ErrorContains(t, err, "unsupported")
}
