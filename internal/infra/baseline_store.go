package infra

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

const (
	// DefaultBaselineFileName is the baseline file inside the data directory.
	DefaultBaselineFileName = "etc_hashes.txt"

	// baselineSeparator splits digest and path. Paths may contain spaces, so
	// parsing splits on the first occurrence only.
	baselineSeparator = "  "

	maxBaselineLine = 1024 * 1024

	// baselineTempPattern names in-progress captures next to the baseline.
	baselineTempPattern = ".baseline-*.tmp"
)

// FileBaselineStore implements domain.BaselineStore with a plain text file
// compatible with `sha256sum -c`.
type FileBaselineStore struct {
	path   string
	logger *zap.Logger
}

// NewFileBaselineStore creates a store for the baseline at path.
func NewFileBaselineStore(path string, logger *zap.Logger) *FileBaselineStore {
	return &FileBaselineStore{path: path, logger: logger}
}

// Path returns the baseline file location.
func (s *FileBaselineStore) Path() string {
	return s.path
}

// TempGlob matches the temp files Create leaves next to the baseline
// while a capture is in progress.
func (s *FileBaselineStore) TempGlob() string {
	return filepath.Join(escapeGlob(filepath.Dir(s.path)), baselineTempPattern)
}

func escapeGlob(path string) string {
	var b strings.Builder
	for _, r := range path {
		if strings.ContainsRune(`*?[\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Exists checks if a baseline has been captured.
func (s *FileBaselineStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Mode().IsRegular()
}

// Load parses the baseline. A malformed line fails the whole load.
func (s *FileBaselineStore) Load() (domain.Baseline, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrBaselineNotFound
		}
		return nil, err
	}
	defer f.Close()

	baseline := make(domain.Baseline)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxBaselineLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		rec, err := ParseBaselineLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.path, lineNo, err)
		}
		baseline[rec.Path] = rec.Digest
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	return baseline, nil
}

// Create starts a new baseline in a temp file next to the final one.
// The containing directory is created if absent.
func (s *FileBaselineStore) Create() (domain.BaselineWriter, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create baseline directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, baselineTempPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp baseline: %w", err)
	}

	return &fileBaselineWriter{
		file:   tmpFile,
		buf:    bufio.NewWriter(tmpFile),
		dst:    s.path,
		logger: s.logger,
	}, nil
}

// fileBaselineWriter writes to a temp file and renames it over the baseline.
type fileBaselineWriter struct {
	file   *os.File
	buf    *bufio.Writer
	dst    string
	done   bool
	logger *zap.Logger
}

// Add writes one "<digest>  <path>" line.
func (w *fileBaselineWriter) Add(rec domain.FileRecord) error {
	if strings.ContainsAny(rec.Path, "\n\r") {
		w.logger.Warn("skipping path with embedded newline", zap.String("path", rec.Path))
		return nil
	}
	_, err := w.buf.WriteString(FormatBaselineLine(rec))
	return err
}

// Commit flushes, syncs and atomically renames the temp file into place.
func (w *fileBaselineWriter) Commit() error {
	if w.done {
		return errors.New("baseline writer already closed")
	}
	w.done = true
	tmpPath := w.file.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}

	// Sync to disk before rename
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpPath, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, w.dst); err != nil {
		return err
	}

	success = true
	return nil
}

// Abort discards the temp file.
func (w *fileBaselineWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.file.Close()
	return os.Remove(w.file.Name())
}

// FormatBaselineLine renders a record as a newline-terminated baseline line.
func FormatBaselineLine(rec domain.FileRecord) string {
	return rec.Digest + baselineSeparator + rec.Path + "\n"
}

// ParseBaselineLine splits a baseline line on the first two-space separator.
// Leading spaces of a path survive, but the format cannot express a newline in a path.
func ParseBaselineLine(line string) (domain.FileRecord, error) {
	digest, path, found := strings.Cut(line, baselineSeparator)
	if !found || path == "" {
		return domain.FileRecord{}, fmt.Errorf("%w: missing separator", domain.ErrMalformedBaseline)
	}
	if !isHexDigest(digest) {
		return domain.FileRecord{}, fmt.Errorf("%w: invalid digest %q", domain.ErrMalformedBaseline, digest)
	}
	return domain.FileRecord{Path: path, Digest: digest}, nil
}

func isHexDigest(s string) bool {
	if len(s) != domain.DigestHexLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Ensure FileBaselineStore implements domain.BaselineStore.
var _ domain.BaselineStore = (*FileBaselineStore)(nil)
