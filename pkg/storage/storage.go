// Package storage persists raw uploaded bytes and reports where they went.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"docintake/pkg/config"
	"docintake/pkg/logger"

	"github.com/google/uuid"
)

// Store writes an object and returns its location URI.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Key prefixes.
const (
	PrefixUploads   = "uploads"
	PrefixDocuments = "documents"
)

// Key builds a collision free object key under prefix for filename.
func Key(prefix, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return prefix + "/" + uuid.NewString() + "_" + name
}

// New returns the GCS store when a bucket is configured, the local one otherwise.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (Store, error) {
	if cfg.GCSBucket != "" {
		s, err := NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("gcs store: %w", err)
		}
		log.Info("blob storage initialized", "mode", "gcs", "bucket", cfg.GCSBucket)
		return s, nil
	}
	s, err := NewLocal(cfg.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	log.Info("blob storage initialized", "mode", "local", "dir", s.dir)
	return s, nil
}
