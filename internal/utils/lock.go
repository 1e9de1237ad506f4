package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

// SessionLock guards a browser profile directory. Two processes driving the
// same profile corrupt each other's cookies, so the second one waits.
type SessionLock struct {
	lock *flock.Flock
	path string
}

// NewSessionLock creates a lock next to the given profile directory.
func NewSessionLock(profileDir string) (*SessionLock, error) {
	absPath, err := ExpandPath(profileDir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve profile dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create %s: %w", filepath.Dir(absPath), err)
	}
	lockPath := filepath.Clean(absPath) + lockFileSuffix
	return &SessionLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the session lock, waiting if necessary.
// It will print a message if it has to wait.
func (l *SessionLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another fbscope process is using the browser profile, waiting for it to finish...\n")
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// TryLock acquires the lock without waiting.
func (l *SessionLock) TryLock() (bool, error) {
	return l.lock.TryLock()
}

// Unlock releases the session lock.
func (l *SessionLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Not holding the lock is fine.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file location.
func (l *SessionLock) Path() string {
	return l.path
}

// ExpandPath resolves a leading "~" and returns an absolute path.
func ExpandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
