package infra

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// DefaultReportFileName is the event log inside the data directory.
const DefaultReportFileName = "integrity_monitor.log"

const (
	colorRed   = "\033[91m"
	colorReset = "\033[0m"

	accessWriteOK = 0x2 // W_OK
)

// FileEventLog implements domain.EventLog and domain.ReportStore on one
// append-only text file. Every entry is also echoed to the terminal:
// INFO to stdout, ERROR and ALERT in red to stderr.
type FileEventLog struct {
	path   string
	fs     domain.FileSystemManager
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

// NewFileEventLog creates an event log at path.
func NewFileEventLog(path string, fs domain.FileSystemManager, stdout, stderr io.Writer) *FileEventLog {
	return &FileEventLog{
		path:   path,
		fs:     fs,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

// WithClock replaces the time source (for testing).
func (l *FileEventLog) WithClock(now func() time.Time) *FileEventLog {
	l.now = now
	return l
}

// Append writes "[ts] [LEVEL] message" as one write on an O_APPEND file,
// so concurrent appenders never split a line.
func (l *FileEventLog) Append(level domain.EventLevel, message string) error {
	entry := domain.EventLogEntry{Time: l.now(), Level: level, Message: message}
	writeErr := l.appendLine(entry.String() + "\n")

	switch level {
	case domain.LevelError, domain.LevelAlert:
		fmt.Fprintf(l.stderr, "%s🚨 ALERT: %s%s\n", colorRed, message, colorReset)
	default:
		fmt.Fprintln(l.stdout, entry.String())
	}

	if writeErr != nil {
		return fmt.Errorf("failed to write event log: %w", writeErr)
	}
	return nil
}

func (l *FileEventLog) appendLine(line string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	if _, err := f.Write([]byte(line)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CheckWritable verifies the log can be appended to without creating it.
func (l *FileEventLog) CheckWritable() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	if l.fs.Exists(l.path) {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		return f.Close()
	}

	// W_OK on the directory is what creating the file on first append needs
	if err := syscall.Access(dir, accessWriteOK); err != nil {
		return &os.PathError{Op: "access", Path: dir, Err: err}
	}
	return nil
}

// Path returns the report file location.
func (l *FileEventLog) Path() string {
	return l.path
}

// Exists checks if the report file exists.
func (l *FileEventLog) Exists() bool {
	return l.fs.Exists(l.path)
}

// Read returns the full report contents.
func (l *FileEventLog) Read() ([]byte, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrReportNotFound
		}
		return nil, err
	}
	return data, nil
}

// Clear deletes the report file if present.
func (l *FileEventLog) Clear() (bool, error) {
	if !l.fs.Exists(l.path) {
		return false, nil
	}
	if err := l.fs.Remove(l.path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ensure FileEventLog implements both interfaces.
var _ domain.EventLog = (*FileEventLog)(nil)
var _ domain.ReportStore = (*FileEventLog)(nil)
