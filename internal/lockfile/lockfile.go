// Package lockfile provides directory-based locking so only one pulseboard
// process runs against a given state directory.
//
// The dispatcher assumes it is the single active instance (pending events are
// fetched without row leasing), so running two processes on the same database
// would double-process events. The lock is a syscall-level flock that the
// kernel releases automatically if the process dies.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "pulseboard.lock"

// Lock represents an active directory lock
type Lock struct {
	file *os.File
	path string
}

// Acquire attempts to take an exclusive lock on the state directory. It fails
// immediately if another process holds the lock.
func Acquire(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	lockPath := filepath.Join(stateDir, LockFileName)
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		slog.Error("Failed to acquire lock - another pulseboard instance is running", "lock_path", lockPath, "error", err)
		return nil, fmt.Errorf("another pulseboard instance is already running (lock file %s): %w", lockPath, err)
	}

	// Record our PID for operators inspecting a held lock
	fmt.Fprintf(file, "pid=%d\n", os.Getpid())
	if err := file.Sync(); err != nil {
		slog.Warn("Failed to sync lock file", "error", err, "lock_path", lockPath)
	}

	slog.Info("Acquired state directory lock", "lock_path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath}, nil
}

// Release releases the lock and removes the lock file.
// This method is safe to call multiple times.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Failed to release flock", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("Failed to close lock file", "error", err, "lock_path", l.path)
	}
	if err := os.Remove(l.path); err != nil {
		slog.Error("Failed to remove lock file", "error", err, "lock_path", l.path)
	}

	l.file = nil
	slog.Info("Released state directory lock", "lock_path", l.path)
	return nil
}
