package main

import (
	"context"
	"fmt"

	"docintake/models"
	"docintake/pkg/audit"
	"docintake/pkg/auth"
	"docintake/pkg/config"
	"docintake/pkg/database"
	"docintake/pkg/logger"
	"docintake/pkg/token"

	"gorm.io/gorm"
)

// demoPassword is shared by the seeded demo accounts.
const demoPassword = "demo1234"

// prepareDB migrates the schema when asked and seeds master data.
func prepareDB(ctx context.Context, db *gorm.DB, cfg *config.Config, log *logger.Logger, migrateSchema bool) error {
	if migrateSchema {
		if n := database.Migrate(db, log); n > 0 {
			log.Warn("some models failed to migrate", "failed", n)
		}
	}
	return seed(ctx, db, cfg, log)
}

// seed creates the master roles and, when enabled, one demo account per role.
func seed(ctx context.Context, db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	issuer := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	svc := auth.New(db, issuer, audit.New(db, log), log)
	if err := svc.EnsureRoles(ctx); err != nil {
		return err
	}
	if !cfg.Database.SeedDemoUsers {
		return nil
	}
	demo := []struct{ username, role string }{
		{"uploader", models.RoleUploader},
		{"viewer", models.RoleViewer},
	}
	for _, d := range demo {
		created, err := svc.EnsureUser(ctx, d.username, demoPassword, d.role)
		if err != nil {
			return fmt.Errorf("seed %s: %w", d.username, err)
		}
		if created {
			log.Info("seeded demo user", "username", d.username, "role", d.role)
		}
	}
	return nil
}
