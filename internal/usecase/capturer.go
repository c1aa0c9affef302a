// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// CapturerImpl implements domain.BaselineCapturer.
type CapturerImpl struct {
	paths  domain.Paths
	walker domain.TreeWalker
	store  domain.BaselineStore
	events domain.EventLog
	logger *zap.Logger
}

// NewCapturer creates a baseline capturer.
func NewCapturer(
	paths domain.Paths,
	walker domain.TreeWalker,
	store domain.BaselineStore,
	events domain.EventLog,
	logger *zap.Logger,
) domain.BaselineCapturer {
	return &CapturerImpl{
		paths:  paths,
		walker: walker,
		store:  store,
		events: events,
		logger: logger,
	}
}

// Capture walks the monitored tree and replaces the baseline in full.
// On failure the previous baseline is left untouched.
func (c *CapturerImpl) Capture(ctx context.Context) (*domain.CaptureResult, error) {
	start := time.Now()
	c.emit(domain.LevelInfo, fmt.Sprintf("Generating baseline hashes for %s directory.", c.paths.MonitoredRoot))

	writer, err := c.store.Create()
	if err != nil {
		return nil, c.failWrite(err)
	}

	count := 0
	err = c.walker.Walk(ctx, c.paths.MonitoredRoot, func(rec domain.FileRecord) error {
		if err := writer.Add(rec); err != nil {
			return fmt.Errorf("%w: %w", errAddRecord, err)
		}
		count++
		return nil
	})
	if err != nil {
		if abortErr := writer.Abort(); abortErr != nil {
			c.logger.Warn("failed to discard partial baseline", zap.Error(abortErr))
		}
		if errors.Is(err, errAddRecord) {
			return nil, c.failWrite(err)
		}
		return nil, c.failScan(err)
	}

	if err := writer.Commit(); err != nil {
		return nil, c.failWrite(err)
	}

	c.logger.Debug("baseline captured",
		zap.String("root", c.paths.MonitoredRoot),
		zap.Int("records", count))
	c.emit(domain.LevelInfo, "Baseline hashes saved to "+c.store.Path())

	return &domain.CaptureResult{
		Records:    count,
		ExecutedAt: start,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// errAddRecord marks a walk aborted by the baseline writer rather than the tree.
var errAddRecord = errors.New("failed to add record")

func (c *CapturerImpl) failWrite(err error) error {
	c.emit(domain.LevelError, fmt.Sprintf("Error writing baseline file: %v", err))
	return fmt.Errorf("failed to write baseline %s: %w", c.store.Path(), err)
}

// failScan covers hashing and read errors hit while walking the tree.
func (c *CapturerImpl) failScan(err error) error {
	c.emit(domain.LevelError, fmt.Sprintf("Error scanning %s: %v", c.paths.MonitoredRoot, err))
	return fmt.Errorf("failed to scan %s: %w", c.paths.MonitoredRoot, err)
}

// emit appends an event; a failing log is reported but never masks the operation's result.
func (c *CapturerImpl) emit(level domain.EventLevel, msg string) {
	if err := c.events.Append(level, msg); err != nil {
		c.logger.Error("failed to append event", zap.String("level", string(level)), zap.Error(err))
	}
}

// Ensure CapturerImpl implements domain.BaselineCapturer.
var _ domain.BaselineCapturer = (*CapturerImpl)(nil)
