// Package lockfile guards against concurrent bot instances with an advisory
// file lock.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrHeld reports that another process already holds the lock.
var ErrHeld = errors.New("lock file held by another process")

// Lock is an acquired advisory lock on a file.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive non-blocking lock on path, creating the file if
// needed. It returns ErrHeld when another process owns the lock.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrHeld, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	// Best effort: record the owner PID for operators inspecting the file.
	_ = file.Truncate(0)
	_, _ = fmt.Fprintf(file, "%d\n", os.Getpid())

	return &Lock{path: path, file: file}, nil
}

// Release drops the lock and removes the file.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	_ = os.Remove(l.path)

	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return closeErr
}
