package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// FileLock implements domain.InstanceLock with flock(2) on a lock file.
// The holder writes its PID into the file so a blocked caller can say who holds it.
type FileLock struct {
	path           string
	processManager domain.ProcessManager
	file           *os.File
}

// NewFileLock creates a lock at path. Nothing is opened until TryLock.
func NewFileLock(path string, pm domain.ProcessManager) *FileLock {
	return &FileLock{path: path, processManager: pm}
}

// TryLock acquires an exclusive lock without blocking.
func (l *FileLock) TryLock() error {
	if l.file != nil {
		return errors.New("lock already held by this process")
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	lockFile, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return l.heldError()
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// Record holder PID
	if err := lockFile.Truncate(0); err == nil {
		_, _ = lockFile.WriteAt([]byte(strconv.Itoa(l.processManager.GetCurrentPID())+"\n"), 0)
	}

	l.file = lockFile
	return nil
}

// Unlock releases the lock. The lock file is left in place.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	defer func() { l.file = nil }()

	_ = l.file.Truncate(0)
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return l.file.Close()
}

// HolderPID returns the PID recorded in the lock file, or 0.
func (l *FileLock) HolderPID() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func (l *FileLock) heldError() error {
	pid := l.HolderPID()
	if pid == 0 {
		return domain.ErrLocked
	}
	state := "not running"
	if l.processManager.IsRunning(pid) {
		state = "running"
	}
	return fmt.Errorf("%w (pid %d, %s)", domain.ErrLocked, pid, state)
}

// Ensure FileLock implements domain.InstanceLock.
var _ domain.InstanceLock = (*FileLock)(nil)
