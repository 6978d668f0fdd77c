package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation defaults. The interposer shares the host's disk footprint, so
// the log stays small and bounded by default.
const (
	defaultRotateSizeMB = 10
	defaultRotateKeep   = 2
)

// RotatingWriter appends to a log file and rotates it by size, keeping a
// bounded set of numbered backups (file.1 newest, file.keep oldest). Safe
// for concurrent use; slog handlers serialize through it.
type RotatingWriter struct {
	mu    sync.Mutex
	path  string
	limit int64
	keep  int
	file  *os.File
	size  int64
}

// NewRotatingWriter opens path for appending, creating its directory on
// first use. Non-positive maxSizeMB or keep take the defaults.
func NewRotatingWriter(path string, maxSizeMB, keep int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultRotateSizeMB
	}
	if keep <= 0 {
		keep = defaultRotateKeep
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("log directory: %w", err)
	}

	rw := &RotatingWriter{
		path:  path,
		limit: int64(maxSizeMB) << 20,
		keep:  keep,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

// Write implements io.Writer, rotating first when the write would push the
// file past the size limit.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, os.ErrClosed
	}
	if rw.size+int64(len(p)) > rw.limit {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the current log file. Writes after Close fail.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

// rotate shifts the numbered backups up by one, dropping the oldest, then
// starts a fresh file. The current file must be closed before the rename;
// Windows refuses to rename an open file.
func (rw *RotatingWriter) rotate() error {
	rw.file.Close()
	rw.file = nil

	os.Remove(rw.backup(rw.keep))
	for i := rw.keep - 1; i >= 1; i-- {
		os.Rename(rw.backup(i), rw.backup(i+1))
	}
	os.Rename(rw.path, rw.backup(1))

	return rw.open()
}

func (rw *RotatingWriter) backup(n int) string {
	return fmt.Sprintf("%s.%d", rw.path, n)
}
