package main

import (
	"context"
	"flag"
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
	username := flag.String("username", "", "username to reset")
	password := flag.String("password", "", "new plaintext password (min 6 chars)")
	flag.Parse()
	// positional form: reset_password <username> <password>
	if args := flag.Args(); *username == "" && *password == "" && len(args) == 2 {
		*username, *password = args[0], args[1]
	}
	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: reset_password --username <u> --password <p> (or <username> <password>)")
		os.Exit(2)
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
		log.Fatal("open db", "error", err)
	}
	issuer := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	svc := auth.New(db, issuer, audit.New(db, log), log)
	if err := svc.ResetPassword(context.Background(), *username, *password); err != nil {
		log.Fatal("reset failed", "username", *username, "error", err)
	}
	fmt.Printf("Password reset for user %s\n", *username)
}
