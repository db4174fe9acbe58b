// Package database opens the gorm connection shared by the server and the
// command line tools.
package database

import (
	"fmt"
	"strings"

	"docintake/models"
	"docintake/pkg/config"
	"docintake/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSQLiteFile = "docintake.db"

// Open connects using cfg.Driver ("postgres" or "sqlite") and applies the
// pool limits.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("DB_DSN is not set; the postgres driver requires a DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = defaultSQLiteFile
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	log.Info("database connected", "driver", cfg.Driver)
	return db, nil
}

// Migrate runs AutoMigrate per model so a failure on one table (usually a
// permission problem on a shared database) does not block the others. It
// returns the number of models that failed.
func Migrate(db *gorm.DB, log *logger.Logger) int {
	failed := 0
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			failed++
			log.Warn("migration warning", "model", fmt.Sprintf("%T", m), "error", err)
		}
	}
	return failed
}
