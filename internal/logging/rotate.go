package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"diamondsim/engine/internal/config"
)

// backupStamp names rotated files; it is fixed width so names sort by time.
const backupStamp = "20060102T150405.000000000"

// rotatingWriter appends to one active log file and moves it aside as
// <stem>-<stamp><ext>[.gz] once the next write would pass maxSize.
type rotatingWriter struct {
	mu         sync.Mutex
	path       string
	stem, ext  string
	maxSize    int64
	maxBackups int
	maxAge     time.Duration
	compress   bool
	now        func() time.Time

	file *os.File
	size int64
}

func newRotatingWriter(cfg config.LoggingConfig) (*rotatingWriter, error) {
	switch {
	case cfg.MaxSizeMB <= 0:
		return nil, errors.New("log max size must be positive")
	case cfg.MaxBackups < 0:
		return nil, errors.New("log max backups must be non-negative")
	case cfg.MaxAgeDays < 0:
		return nil, errors.New("log max age must be non-negative")
	}
	ext := filepath.Ext(cfg.Path)
	w := &rotatingWriter{
		path:       cfg.Path,
		stem:       strings.TrimSuffix(cfg.Path, ext),
		ext:        ext,
		maxSize:    int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress:   cfg.Compress,
		now:        time.Now,
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open(mode int) error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file, w.size = file, info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close releases the active file; later writes fail with os.ErrClosed.
func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil
	backup := w.stem + "-" + w.now().UTC().Format(backupStamp) + w.ext
	if err := os.Rename(w.path, backup); err != nil {
		return err
	}
	if w.compress {
		//1.- A failed compression keeps the plain backup rather than losing lines.
		if err := gzipFile(backup); err == nil {
			_ = os.Remove(backup)
		}
	}
	w.prune()
	return w.open(os.O_TRUNC)
}

// prune drops backups beyond maxBackups and those older than maxAge, judged
// by the stamp in their names.
func (w *rotatingWriter) prune() {
	matches, err := filepath.Glob(w.stem + "-*" + w.ext + "*")
	if err != nil {
		return
	}
	type backup struct {
		path  string
		taken time.Time
	}
	var backups []backup
	prefix := filepath.Base(w.stem) + "-"
	for _, path := range matches {
		stamp := strings.TrimPrefix(filepath.Base(path), prefix)
		stamp = strings.TrimSuffix(strings.TrimSuffix(stamp, ".gz"), w.ext)
		taken, err := time.Parse(backupStamp, stamp)
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: path, taken: taken})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].taken.After(backups[j].taken) })
	cutoff := w.now().Add(-w.maxAge)
	for i, b := range backups {
		tooMany := w.maxBackups > 0 && i >= w.maxBackups
		tooOld := w.maxAge > 0 && b.taken.Before(cutoff)
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}

// gzipFile writes src+".gz" through a temporary file so a crash never leaves
// a truncated archive under the final name.
func gzipFile(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp, err := os.CreateTemp(filepath.Dir(src), filepath.Base(src)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	gz, err := gzip.NewWriterLevel(tmp, gzip.BestCompression)
	if err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := io.Copy(gz, in); err != nil {
		_ = gz.Close()
		_ = tmp.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), src+".gz")
}
