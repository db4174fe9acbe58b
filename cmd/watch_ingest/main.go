// Command watch_ingest watches a drop folder and pushes each new file through
// the tabular or document pipeline. Handled files move to processed/ or failed/.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docintake/models"
	"docintake/pkg/audit"
	"docintake/pkg/classifier"
	"docintake/pkg/config"
	"docintake/pkg/database"
	"docintake/pkg/documents"
	"docintake/pkg/ingest"
	"docintake/pkg/logger"
	"docintake/pkg/storage"
	"docintake/pkg/tabular"
)

func main() {
	dir := flag.String("dir", "inbox", "directory to watch")
	username := flag.String("user", "uploader", "account the ingested files are attributed to")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	once := flag.Bool("once", false, "scan the directory once and exit")
	debounce := flag.Duration("debounce", 300*time.Millisecond, "quiet period before a new file is handled")
	flag.Parse()

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
		log.Fatal("failed to open db", "error", err)
	}
	var user models.User
	if err := db.WithContext(ctx).Where("username = ?", *username).First(&user).Error; err != nil {
		log.Fatal("user not found", "username", *username, "error", err)
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("storage init failed", "error", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	cls, closer, err := classifier.New(ctx, cfg.AI, log)
	if err != nil {
		log.Fatal("classifier init failed", "error", err)
	}
	defer closer.Close()

	rec := audit.New(db, log)
	pipeline := &ingest.Pipeline{
		Tabular:    tabular.NewProcessor(db, store, rec, log),
		Documents:  documents.NewService(db, store, cls, rec, log),
		Param1:     "watch",
		Param2:     *dir,
		UploadedBy: user.Subject(),
	}
	handle := func(ctx context.Context, path string) error {
		out, err := pipeline.Ingest(ctx, path)
		if err != nil {
			return err
		}
		log.Info("ingested", "file", path, "kind", out.Kind, "id", out.ID,
			"rows_saved", out.RowsSaved, "errors", out.Errors, "ai_status", out.AIStatus)
		return nil
	}

	w := ingest.NewWatcher(*dir, handle, log, ingest.WithWorkers(*workers), ingest.WithDebounce(*debounce))
	if *once {
		processed, failed, err := w.Scan(ctx)
		if err != nil {
			log.Fatal("scan failed", "error", err)
		}
		log.Info("scan done", "processed", processed, "failed", failed)
		return
	}
	if err := w.Run(ctx); err != nil {
		log.Fatal("watch failed", "error", err)
	}
}
