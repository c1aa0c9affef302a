package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// CheckerImpl implements domain.IntegrityChecker.
type CheckerImpl struct {
	paths   domain.Paths
	walker  domain.TreeWalker
	store   domain.BaselineStore
	events  domain.EventLog
	history domain.HistoryStore // optional
	host    string
	out     io.Writer
	logger  *zap.Logger
}

// NewChecker creates an integrity checker. The summary is written to out.
func NewChecker(
	paths domain.Paths,
	walker domain.TreeWalker,
	store domain.BaselineStore,
	events domain.EventLog,
	out io.Writer,
	logger *zap.Logger,
) *CheckerImpl {
	return &CheckerImpl{
		paths:  paths,
		walker: walker,
		store:  store,
		events: events,
		out:    out,
		logger: logger,
	}
}

// WithHistory records every completed check in hs, tagged with host.
func (c *CheckerImpl) WithHistory(hs domain.HistoryStore, host string) *CheckerImpl {
	c.history = hs
	c.host = host
	return c
}

// Check compares a fresh walk of the monitored tree with the baseline.
// The baseline is only read, never modified.
func (c *CheckerImpl) Check(ctx context.Context) (*domain.CheckResult, error) {
	start := time.Now()
	c.emit(domain.LevelInfo, "Checking file integrity.")

	if !c.store.Exists() {
		c.emit(domain.LevelError, fmt.Sprintf("Baseline file '%s' not found. Run '--baseline' first.", c.store.Path()))
		return nil, domain.ErrBaselineNotFound
	}

	baseline, err := c.store.Load()
	if err != nil {
		c.emit(domain.LevelError, fmt.Sprintf("Error reading baseline file: %v", err))
		return nil, fmt.Errorf("failed to load baseline: %w", err)
	}

	current := make(domain.Snapshot)
	err = c.walker.Walk(ctx, c.paths.MonitoredRoot, func(rec domain.FileRecord) error {
		current[rec.Path] = rec.Digest
		return nil
	})
	if err != nil {
		c.emit(domain.LevelError, fmt.Sprintf("Error scanning %s: %v", c.paths.MonitoredRoot, err))
		return nil, fmt.Errorf("failed to scan %s: %w", c.paths.MonitoredRoot, err)
	}

	diff := Compare(baseline, current)
	fmt.Fprint(c.out, FormatSummary(diff))

	c.emit(domain.LevelInfo, "Integrity check complete. Report saved to "+c.paths.ReportPath)
	if diff.HasChanges() {
		for _, msg := range AlertMessages(diff) {
			c.emit(domain.LevelAlert, msg)
		}
	} else {
		c.emit(domain.LevelInfo, "No unauthorized changes detected.")
	}

	run := domain.CheckRun{
		ID:         uuid.NewString(),
		Host:       c.host,
		Root:       c.paths.MonitoredRoot,
		StartedAt:  start,
		DurationMs: time.Since(start).Milliseconds(),
		Scanned:    len(current),
		Modified:   len(diff.Modified),
		Added:      len(diff.Added),
		Deleted:    len(diff.Deleted),
		Unchanged:  diff.Unchanged,
	}
	c.record(run)

	c.logger.Debug("integrity check finished",
		zap.String("run_id", run.ID),
		zap.Int("paths", diff.Total()),
		zap.Int("scanned", run.Scanned),
		zap.Int("modified", run.Modified),
		zap.Int("added", run.Added),
		zap.Int("deleted", run.Deleted))

	return &domain.CheckResult{Diff: diff, Run: run}, nil
}

// record stores the run in history. History is auxiliary: failures only warn.
func (c *CheckerImpl) record(run domain.CheckRun) {
	if c.history == nil {
		return
	}
	if err := c.history.Record(run); err != nil {
		c.logger.Warn("failed to record check history",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
}

func (c *CheckerImpl) emit(level domain.EventLevel, msg string) {
	if err := c.events.Append(level, msg); err != nil {
		c.logger.Error("failed to append event", zap.String("level", string(level)), zap.Error(err))
	}
}

// Ensure CheckerImpl implements domain.IntegrityChecker.
var _ domain.IntegrityChecker = (*CheckerImpl)(nil)
