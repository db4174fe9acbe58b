package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"docintake/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

// Subdirectories files are moved into once handled.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// HandleFunc processes one file. A nil error moves the file to ProcessedDir.
type HandleFunc func(ctx context.Context, path string) error

type Watcher struct {
	dir      string
	handle   HandleFunc
	log      *logger.Logger
	workers  int
	debounce time.Duration
	tick     time.Duration
}

type Option func(*Watcher)

func WithWorkers(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithDebounce sets how long a file must stay quiet before it is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
			w.tick = d / 2
		}
	}
}

func NewWatcher(dir string, handle HandleFunc, log *logger.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		handle:   handle,
		log:      log.With("component", "ingest", "dir", dir),
		workers:  runtime.NumCPU(),
		debounce: 300 * time.Millisecond,
		tick:     250 * time.Millisecond,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// List returns the supported files currently in the directory, sorted by name.
func (w *Watcher) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Scan handles every file already in the directory and returns the counts.
func (w *Watcher) Scan(ctx context.Context) (processed, failed int, err error) {
	files, err := w.List()
	if err != nil {
		return 0, 0, err
	}
	ch := make(chan string, len(files))
	for _, f := range files {
		ch <- f
	}
	close(ch)

	var mu sync.Mutex
	w.pool(ctx, ch, func(ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			processed++
		} else {
			failed++
		}
	})
	return processed, failed, nil
}

// Run scans the directory once and then handles new files until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	p, f, err := w.Scan(ctx)
	if err != nil {
		return err
	}
	w.log.Info("initial scan done", "processed", p, "failed", f)
	w.log.Info("watching (debounced)")

	fileCh := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.pool(ctx, fileCh, nil)
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	defer func() {
		close(fileCh)
		<-done
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !Supported(ev.Name) {
				continue
			}
			// writes restart the quiet period
			pending[filepath.Base(ev.Name)] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) < w.debounce {
					continue
				}
				delete(pending, name)
				if fi, err := os.Stat(filepath.Join(w.dir, name)); err != nil || fi.IsDir() {
					continue
				}
				select {
				case fileCh <- name:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// pool drains ch with w.workers goroutines and blocks until ch is closed.
func (w *Watcher) pool(ctx context.Context, ch <-chan string, report func(ok bool)) {
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range ch {
				if ctx.Err() != nil {
					continue
				}
				ok := w.handleOne(ctx, name)
				if report != nil {
					report(ok)
				}
			}
		}()
	}
	wg.Wait()
}

func (w *Watcher) handleOne(ctx context.Context, name string) bool {
	src := filepath.Join(w.dir, name)
	err := w.handle(ctx, src)
	target := ProcessedDir
	if err != nil {
		target = FailedDir
		w.log.Warn("ingest failed", "file", name, "error", err)
	}
	if mvErr := moveInto(src, filepath.Join(w.dir, target)); mvErr != nil {
		w.log.Error("move failed", "file", name, "target", target, "error", mvErr)
	}
	return err == nil
}

// moveInto moves src into dir, renaming when possible and copying across
// filesystems otherwise.
func moveInto(src, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyRemove(src, dst)
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		return errors.Join(err, out.Close(), os.Remove(dst))
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
