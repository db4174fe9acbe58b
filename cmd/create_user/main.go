package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docintake/pkg/audit"
	"docintake/pkg/auth"
	"docintake/pkg/config"
	"docintake/pkg/database"
	"docintake/pkg/logger"
	"docintake/pkg/token"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: go run ./cmd/create_user <username> <password> [role]")
		os.Exit(2)
	}
	username, password := os.Args[1], os.Args[2]
	role := ""
	if len(os.Args) > 3 {
		role = os.Args[3]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to open db", "error", err)
	}
	issuer := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	svc := auth.New(db, issuer, audit.New(db, log), log)

	ctx := context.Background()
	if err := svc.EnsureRoles(ctx); err != nil {
		log.Fatal("failed to ensure roles", "error", err)
	}
	user, err := svc.CreateUser(ctx, username, password, role)
	if errors.Is(err, auth.ErrUserExists) {
		fmt.Printf("user %s already exists\n", username)
		return
	}
	if err != nil {
		log.Fatal("failed to create user", "error", err)
	}
	fmt.Printf("created user %s id=%d role=%s\n", user.Username, user.ID, user.Role.Name)
}
