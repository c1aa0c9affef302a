package usecase

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/integrity_mon/internal/infra"
)

// mockWalker implements domain.TreeWalker over an in-memory tree.
type mockWalker struct {
	files   map[string]string
	walkErr error
	roots   []string
}

func newMockWalker(files map[string]string) *mockWalker {
	return &mockWalker{files: files}
}

func (m *mockWalker) Walk(ctx context.Context, root string, fn func(domain.FileRecord) error) error {
	m.roots = append(m.roots, root)
	if m.walkErr != nil {
		return m.walkErr
	}

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(domain.FileRecord{Path: p, Digest: m.files[p]}); err != nil {
			return err
		}
	}
	return nil
}

// mockBaselineStore implements domain.BaselineStore in memory.
type mockBaselineStore struct {
	baseline  domain.Baseline // nil means no baseline captured
	loadErr   error
	createErr error
	addErr    error
	commitErr error
	aborted   int
}

func (m *mockBaselineStore) Path() string {
	return "/var/lib/integmon/etc_hashes.txt"
}

func (m *mockBaselineStore) Exists() bool {
	return m.baseline != nil
}

func (m *mockBaselineStore) Load() (domain.Baseline, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.baseline == nil {
		return nil, domain.ErrBaselineNotFound
	}
	out := make(domain.Baseline, len(m.baseline))
	for k, v := range m.baseline {
		out[k] = v
	}
	return out, nil
}

func (m *mockBaselineStore) Create() (domain.BaselineWriter, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &mockBaselineWriter{store: m, pending: make(domain.Baseline)}, nil
}

type mockBaselineWriter struct {
	store   *mockBaselineStore
	pending domain.Baseline
}

func (w *mockBaselineWriter) Add(rec domain.FileRecord) error {
	if w.store.addErr != nil {
		return w.store.addErr
	}
	w.pending[rec.Path] = rec.Digest
	return nil
}

func (w *mockBaselineWriter) Commit() error {
	if w.store.commitErr != nil {
		return w.store.commitErr
	}
	w.store.baseline = w.pending
	return nil
}

func (w *mockBaselineWriter) Abort() error {
	w.store.aborted++
	return nil
}

// memEventLog implements domain.EventLog and domain.ReportStore in memory.
type memEventLog struct {
	entries   []domain.EventLogEntry
	appendErr error
	cleared   bool
}

func (m *memEventLog) Append(level domain.EventLevel, message string) error {
	m.entries = append(m.entries, domain.EventLogEntry{Level: level, Message: message})
	return m.appendErr
}

func (m *memEventLog) Path() string {
	return "/var/lib/integmon/integrity_monitor.log"
}

func (m *memEventLog) Exists() bool {
	return len(m.entries) > 0
}

func (m *memEventLog) Read() ([]byte, error) {
	if len(m.entries) == 0 {
		return nil, domain.ErrReportNotFound
	}
	var sb strings.Builder
	for _, e := range m.entries {
		sb.WriteString(e.String())
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}

func (m *memEventLog) Clear() (bool, error) {
	if len(m.entries) == 0 {
		return false, nil
	}
	m.entries = nil
	m.cleared = true
	return true, nil
}

func (m *memEventLog) messages(level domain.EventLevel) []string {
	var out []string
	for _, e := range m.entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// mockHistoryStore implements domain.HistoryStore in memory.
type mockHistoryStore struct {
	runs      []domain.CheckRun
	recordErr error
}

func (m *mockHistoryStore) Record(run domain.CheckRun) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockHistoryStore) Recent(limit int) ([]domain.CheckRun, error) {
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	return m.runs[len(m.runs)-limit:], nil
}

func (m *mockHistoryStore) Close() error {
	return nil
}

var errDiskFull = errors.New("no space left on device")

// unreadableTree writes files under a temp root and returns an on-disk walker
// whose hasher gets EACCES for the denied file, whatever the test's privileges.
func unreadableTree(t *testing.T, logger *zap.Logger, files map[string]string, denied string) (string, domain.TreeWalker) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	deniedPath := filepath.Join(root, denied)
	hasher := infra.NewSHA256HasherWithOpener(logger, func(path string) (io.ReadCloser, error) {
		if path == deniedPath {
			return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
		}
		return os.Open(path)
	})
	return root, infra.NewTreeWalker(hasher, logger)
}

var (
	_ domain.TreeWalker    = (*mockWalker)(nil)
	_ domain.BaselineStore = (*mockBaselineStore)(nil)
	_ domain.EventLog      = (*memEventLog)(nil)
	_ domain.ReportStore   = (*memEventLog)(nil)
	_ domain.HistoryStore  = (*mockHistoryStore)(nil)
)
