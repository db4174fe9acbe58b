package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docintake/pkg/config"
	"docintake/pkg/database"
	"docintake/pkg/logger"
	"docintake/pkg/telemetry"

	"github.com/gin-gonic/gin"
)

func main() {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect database", "error", err)
	}

	// `./docintake migrate` runs AutoMigrate and seeding then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := prepareDB(ctx, db, cfg, log, true); err != nil {
			log.Fatal("migration failed", "error", err)
		}
		log.Info("migration and seeding completed")
		return
	}
	if err := prepareDB(ctx, db, cfg, log, cfg.Database.AutoMigrate); err != nil {
		log.Fatal("database setup failed", "error", err)
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, os.Stdout, log)
	if err != nil {
		log.Fatal("tracing init failed", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	srv, closeSrv, err := newServer(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("failed to build services", "error", err)
	}
	defer closeSrv()

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	setupRoutes(r, srv)

	httpSrv := &http.Server{Addr: cfg.Server.Addr(), Handler: r}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info("listening", "addr", cfg.Server.Addr())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", "error", err)
	}
}
