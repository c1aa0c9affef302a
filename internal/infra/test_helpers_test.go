package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	pid         int
	runningPIDs map[int]bool
	host        string
}

func newMockProcessManager(pid int) *mockProcessManager {
	return &mockProcessManager{
		pid:         pid,
		runningPIDs: map[int]bool{pid: true},
		host:        "testhost",
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return m.pid
}

func (m *mockProcessManager) Hostname() string {
	return m.host
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

var _ domain.ProcessManager = (*mockProcessManager)(nil)

// writeTree creates files under root from a relative-path to content map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

// collect walks root and returns path to digest.
func collect(t *testing.T, w *TreeWalker, root string) map[string]string {
	t.Helper()
	got := make(map[string]string)
	err := w.Walk(context.Background(), root, func(rec domain.FileRecord) error {
		got[rec.Path] = rec.Digest
		return nil
	})
	require.NoError(t, err)
	return got
}

func newTestWalker() *TreeWalker {
	logger := zap.NewNop()
	return NewTreeWalker(NewSHA256Hasher(logger), logger)
}
