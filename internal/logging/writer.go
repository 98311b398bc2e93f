package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter is an io.WriteCloser that caps the log file at a fixed
// size. When a write would push the file past the cap, the current file
// becomes <path>.1 and older generations shift up, with the oldest
// generation removed once the retention count is reached.
type RotatingWriter struct {
	path      string
	limit     int64
	retention int

	mu   sync.Mutex
	file *os.File
	size int64
}

var _ io.WriteCloser = (*RotatingWriter)(nil)

// NewRotatingWriter opens (or creates) the log file at path. maxSizeMB
// caps each generation; maxFiles is how many rotated generations to keep.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:      path,
		limit:     int64(maxSizeMB) << 20,
		retention: maxFiles,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			// A failed rotation must not lose log lines; keep
			// appending to the oversized file and complain once.
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate cascades generations oldest-first so no rename clobbers a
// file that has not moved yet: drop .N, shift .N-1 .. .1 up by one,
// then move the live file to .1 and reopen.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		w.file = nil
	}

	_ = os.Remove(w.generation(w.retention))
	for n := w.retention - 1; n >= 1; n-- {
		src := w.generation(n)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		_ = os.Rename(src, w.generation(n+1))
	}
	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.generation(1)); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	w.size = 0
	return w.open()
}

func (w *RotatingWriter) generation(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

// Sync flushes buffered writes to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the current log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
