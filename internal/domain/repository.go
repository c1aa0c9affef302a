package domain

import "context"

// Hasher computes the content digest of a single file.
// Implementation: SHA-256 streamed in fixed-size chunks.
type Hasher interface {
	// Hash returns the hex digest of the file at path.
	// ok is false when the file was skipped because it could not be opened
	// for lack of permission; that case is not an error.
	Hash(path string) (digest string, ok bool, err error)
}

// TreeWalker enumerates eligible files under a root and hashes them.
type TreeWalker interface {
	// Walk calls fn once per hashed regular file, in traversal order.
	// Symlinks and non-regular entries are never passed to fn.
	// An error from fn aborts the walk and is returned.
	Walk(ctx context.Context, root string, fn func(FileRecord) error) error
}

// BaselineWriter streams records into a new baseline.
// Nothing is visible at the baseline path until Commit succeeds.
type BaselineWriter interface {
	// Add appends one record.
	Add(rec FileRecord) error

	// Commit replaces the previous baseline with the written records.
	Commit() error

	// Abort discards the written records, leaving the previous baseline intact.
	Abort() error
}

// BaselineStore persists the baseline.
// Implementation: plain text file, one "<digest>  <path>" line per record.
type BaselineStore interface {
	// Path returns the baseline file location.
	Path() string

	// Exists checks if a baseline has been captured.
	Exists() bool

	// Load parses the persisted baseline.
	Load() (Baseline, error)

	// Create starts a new baseline that overwrites the old one on Commit.
	Create() (BaselineWriter, error)
}

// EventLog is the append-only, timestamped event log.
type EventLog interface {
	// Append writes one entry. A single entry is never split across writes.
	Append(level EventLevel, message string) error
}

// ReportStore exposes the accumulated event log as "the report".
type ReportStore interface {
	// Path returns the report file location.
	Path() string

	// Exists checks if the report file exists.
	Exists() bool

	// Read returns the full report contents.
	Read() ([]byte, error)

	// Clear deletes the report. removed is false when there was nothing to delete.
	Clear() (removed bool, err error)
}

// HistoryStore keeps a summary row per completed integrity check.
// Implementation: SQLCipher encrypted SQLite database.
type HistoryStore interface {
	// Record stores a check run.
	Record(run CheckRun) error

	// Recent returns up to limit runs, newest first.
	Recent(limit int) ([]CheckRun, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeyProvider abstracts the source of the history encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// ProcessManager answers questions about OS processes and the host.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int

	// Hostname returns the host name recorded with each check run.
	Hostname() string
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// Remove deletes a single file.
	Remove(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// InstanceLock serializes capture and check runs against the same data directory.
type InstanceLock interface {
	// TryLock acquires the lock without blocking; returns ErrLocked if held elsewhere.
	TryLock() error

	// Unlock releases the lock.
	Unlock() error
}

// BaselineCapturer writes a fresh baseline of the monitored tree.
type BaselineCapturer interface {
	Capture(ctx context.Context) (*CaptureResult, error)
}

// IntegrityChecker compares the monitored tree against the baseline.
type IntegrityChecker interface {
	Check(ctx context.Context) (*CheckResult, error)
}
