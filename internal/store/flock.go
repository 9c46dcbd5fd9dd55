package store

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const lockFileName = "basecamp.lock"

// dirLock serializes access to a JSON store directory across processes
// with flock(2), so a server and a CLI sharing one data directory never
// interleave a write with a read.
type dirLock struct {
	path string
	file *os.File
}

func newDirLock(dir string) *dirLock {
	return &dirLock{path: filepath.Join(dir, lockFileName)}
}

// lock blocks until the lock is held. how is LOCK_EX or LOCK_SH.
func (l *dirLock) lock(how int) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		return fmt.Errorf("flock: %w", err)
	}
	l.file = f
	return nil
}

func (l *dirLock) unlock() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("funlock: %w", err)
	}
	return f.Close()
}

// withLock runs fn while holding the directory lock. Readers share the
// lock; writers hold it exclusively.
func withLock(dir string, exclusive bool, fn func() error) error {
	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}
	l := newDirLock(dir)
	if err := l.lock(how); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = l.unlock() }()
	return fn()
}
