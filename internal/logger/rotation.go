package logger

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const backupTimeFormat = "20060102-150405.000"

// RotationConfig controls RotatingWriter.
type RotationConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
	Compress   bool

	// maxBytes overrides MaxSizeMB in tests.
	maxBytes int64
	now      func() time.Time
}

// RotatingWriter appends to Filename and moves it aside once it would grow
// past the size limit. Backups are named Filename.<timestamp>[.gz] and are
// pruned once older than MaxAgeDays. Safe for concurrent use.
type RotatingWriter struct {
	cfg RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64

	// background gzip and prune jobs; Close waits for them
	jobs sync.WaitGroup
}

// NewRotatingWriter opens (or creates) cfg.Filename for appending.
func NewRotatingWriter(cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.Filename == "" {
		return nil, errors.New("rotating writer needs a filename")
	}
	if cfg.maxBytes <= 0 {
		cfg.maxBytes = int64(cfg.MaxSizeMB) << 20
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}

	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		w.prune()
	}()
	return w, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.cfg.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file, w.size = f, info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file past the
// limit. A single oversized write still lands in one file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.cfg.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Rotate forces a rotation regardless of size.
func (w *RotatingWriter) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return os.ErrClosed
	}
	return w.rotate()
}

// Close closes the active file and waits for pending compression.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	var err error
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	w.mu.Unlock()

	w.jobs.Wait()
	return err
}

// rotate must be called with mu held.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	backup := w.cfg.Filename + "." + w.cfg.now().Format(backupTimeFormat)
	if err := os.Rename(w.cfg.Filename, backup); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}

	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		if w.cfg.Compress {
			_ = gzipFile(backup)
		}
		w.prune()
	}()
	return nil
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path + ".gz")
		}
	}()

	zw := gzip.NewWriter(dst)
	if _, err = io.Copy(zw, src); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// backups lists rotated files belonging to this writer.
func (w *RotatingWriter) backups() []string {
	dir, base := filepath.Split(w.cfg.Filename)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, base+".") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, base+"."), ".gz")
		if _, err := time.Parse(backupTimeFormat, stamp); err != nil {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out
}

// prune deletes backups whose modification time is older than MaxAgeDays.
func (w *RotatingWriter) prune() {
	if w.cfg.MaxAgeDays <= 0 {
		return
	}
	cutoff := w.cfg.now().Add(-time.Duration(w.cfg.MaxAgeDays) * 24 * time.Hour)
	for _, path := range w.backups() {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path)
		}
	}
}
