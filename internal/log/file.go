// internal/log/file.go
package log

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const backupTimeLayout = "20060102-150405"

// fileHandler formats records through the shared text/json handler and
// writes them to a size-rotated log file.
type fileHandler struct {
	slog.Handler
	out *rotatingWriter
}

func newFileHandler(cfg *Config, level slog.Level) (*fileHandler, error) {
	if dir := filepath.Dir(cfg.FilePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	out := &rotatingWriter{
		path:       cfg.FilePath,
		maxSize:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		maxBackups: cfg.MaxBackups,
	}
	if err := out.open(); err != nil {
		return nil, err
	}

	return &fileHandler{
		Handler: newFormatHandler(out, cfg.Format, level),
		out:     out,
	}, nil
}

func (h *fileHandler) Close() error {
	return h.out.close()
}

// rotatingWriter serializes writes to the log file and swaps it for a
// timestamped backup once it would grow past maxSize.
type rotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	size       int64
	maxSize    int64
	maxAge     time.Duration
	maxBackups int
}

func (w *rotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() error {
	w.file.Close()

	backup := w.path + "." + time.Now().Format(backupTimeLayout)
	if err := os.Rename(w.path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	w.pruneBackups()

	return w.open()
}

// pruneBackups drops rotated files beyond maxBackups or older than
// maxAge. Backup names embed the rotation time, so lexical order is
// chronological.
func (w *rotatingWriter) pruneBackups() {
	backups, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	cutoff := time.Now().Add(-w.maxAge)
	for i, path := range backups {
		if w.maxBackups > 0 && i >= w.maxBackups {
			os.Remove(path)
			continue
		}
		if w.maxAge <= 0 {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(path)
		}
	}
}

func (w *rotatingWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
