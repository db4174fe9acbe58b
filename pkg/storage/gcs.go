package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put uploads data and returns gs://bucket/key.
func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", g.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", g.bucket, key, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, key), nil
}

func (g *GCS) Close() error { return g.client.Close() }
