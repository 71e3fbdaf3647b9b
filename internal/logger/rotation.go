package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RotatingWriter is an append-only log file that is renamed aside once it
// grows past a size limit. Only the newest maxBackups rotated files are kept.
type RotatingWriter struct {
	mu          sync.Mutex
	filename    string
	maxSize     int64 // bytes, 0 disables rotation
	maxBackups  int
	currentFile *os.File
	currentSize int64
}

// NewRotatingWriter opens (or creates) filename for appending
func NewRotatingWriter(filename string, maxSizeMB int, maxBackups int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		filename:   filename,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write writes data to the log file, rotating first if it would overflow
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return 0, os.ErrClosed
	}

	if w.maxSize > 0 && w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the current log file
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

// Backups returns rotated file paths, oldest first
func (w *RotatingWriter) Backups() ([]string, error) {
	matches, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.currentFile = file
	w.currentSize = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if err := w.currentFile.Close(); err != nil {
		return err
	}

	// Nanosecond suffix keeps names unique and lexically ordered by age.
	rotated := fmt.Sprintf("%s.%s", w.filename, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(w.filename, rotated); err != nil {
		return err
	}

	if err := w.open(); err != nil {
		return err
	}

	w.prune()
	return nil
}

func (w *RotatingWriter) prune() {
	if w.maxBackups <= 0 {
		return
	}

	backups, err := w.Backups()
	if err != nil || len(backups) <= w.maxBackups {
		return
	}
	for _, path := range backups[:len(backups)-w.maxBackups] {
		os.Remove(path)
	}
}
