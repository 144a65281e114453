// Package filelock provides an advisory, process-exclusive file lock used
// to serialize writes to the gateway's persisted state files (known-hosts
// store, SSH connection table, security config) across processes.
package filelock

import (
	"os"
	"path/filepath"
)

// Lock holds an advisory exclusive lock on a sidecar ".lock" file next to
// the path it protects. It is not reentrant and not safe for concurrent
// use by multiple goroutines on the same Lock value.
type Lock struct {
	path string
	file *os.File
}

// New returns a Lock for the given target path. The lock file itself is
// target + ".lock"; it (and any missing parent directory) is created on
// first Acquire and never removed, so
// the lock survives process restarts without racing file creation.
func New(targetPath string) *Lock {
	return &Lock{path: targetPath + ".lock"}
}

// Acquire blocks until the exclusive lock is held. Callers must call
// Release when done, typically via defer.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	if err := lockExclusive(f); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}

// WithLock acquires l, runs fn, and releases l regardless of fn's outcome.
func WithLock(l *Lock, fn func() error) error {
	if err := l.Acquire(); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
