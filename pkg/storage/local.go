package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects as flat files in one directory.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "storage"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", abs, err)
	}
	return &Local{dir: abs}, nil
}

// Put writes data to <dir>/<key with "/" replaced by "_"> and returns a file:// URI.
func (l *Local) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := strings.ReplaceAll(key, "/", "_")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	p := filepath.Join(l.dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return "file://" + filepath.ToSlash(p), nil
}
