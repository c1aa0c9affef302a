// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"time"
)

// DigestHexLen is the length of a hex-encoded SHA-256 digest.
const DigestHexLen = 64

// FileRecord pairs an absolute file path with its content digest.
type FileRecord struct {
	Path   string
	Digest string // lowercase hex SHA-256 of the full file content
}

// Baseline is the trusted path -> digest mapping written by a capture.
// It is replaced wholesale by each capture, never merged.
type Baseline map[string]string

// Snapshot is the live path -> digest mapping computed during a check.
// It is never persisted.
type Snapshot map[string]string

// DiffResult classifies paths of a baseline and a snapshot.
// Modified, Added and Deleted are disjoint and sorted by path.
type DiffResult struct {
	Modified  []string // in both, digest differs
	Added     []string // only in the snapshot
	Deleted   []string // only in the baseline
	Unchanged int      // in both, digest equal
}

// HasChanges reports whether any category is non-empty.
func (d DiffResult) HasChanges() bool {
	return len(d.Modified) > 0 || len(d.Added) > 0 || len(d.Deleted) > 0
}

// Total returns the number of distinct paths across baseline and snapshot.
func (d DiffResult) Total() int {
	return len(d.Modified) + len(d.Added) + len(d.Deleted) + d.Unchanged
}

// EventLevel is the severity of an event log entry.
type EventLevel string

const (
	LevelInfo  EventLevel = "INFO"
	LevelError EventLevel = "ERROR"
	LevelAlert EventLevel = "ALERT"
)

// EventTimeLayout is the timestamp layout used in event log lines.
const EventTimeLayout = "2006-01-02 15:04:05"

// EventLogEntry is a single append-only line of the event log (the report).
type EventLogEntry struct {
	Time    time.Time
	Level   EventLevel
	Message string
}

// String renders the entry as it is written to the report, without the newline.
func (e EventLogEntry) String() string {
	return fmt.Sprintf("[%s] [%s] %s", e.Time.Format(EventTimeLayout), e.Level, e.Message)
}

// Paths locates everything one operation touches.
// It is passed explicitly into each operation instead of living in globals.
type Paths struct {
	MonitoredRoot string // tree to hash, e.g. /etc
	BaselinePath  string // baseline file, "<digest>  <path>" per line
	ReportPath    string // append-only event log
}

// CaptureResult summarizes a baseline capture.
type CaptureResult struct {
	Records    int
	ExecutedAt time.Time
	DurationMs int64
}

// CheckRun is the persisted summary of one integrity check.
type CheckRun struct {
	ID         string
	Host       string
	Root       string
	StartedAt  time.Time
	DurationMs int64
	Scanned    int
	Modified   int
	Added      int
	Deleted    int
	Unchanged  int
}

// CheckResult is what an integrity check returns to its caller.
type CheckResult struct {
	Diff DiffResult
	Run  CheckRun
}
