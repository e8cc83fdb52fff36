package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/internal/models"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
)

// BinService manages soft-deleted tasks.
type BinService struct {
	repo      taskRepository
	metrics   *MetricsService
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time
}

// NewBinService constructs a BinService. A positive retention lets PurgeExpired drop
// entries older than it.
func NewBinService(repo taskRepository, metrics *MetricsService, retention time.Duration, logger *zap.Logger) *BinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinService{repo: repo, metrics: metrics, logger: logger, retention: retention, now: time.Now}
}

// List returns the bin, most recently deleted first.
func (s *BinService) List(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.repo.ListDeleted(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bin")
	}
	return tasks, nil
}

// Restore moves a binned task back to the live list.
func (s *BinService) Restore(ctx context.Context, id int64) (*models.Task, error) {
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, binLookupError(err)
	}
	task, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return nil, taskLookupError(err)
	}
	s.metrics.RecordTaskMutation("restore", 1)
	return task, nil
}

// Purge permanently removes one binned task. confirm must be true.
func (s *BinService) Purge(ctx context.Context, id int64, confirm bool) error {
	if !confirm {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "purging a task requires confirm=true")
	}
	if err := s.repo.Purge(ctx, id); err != nil {
		return binLookupError(err)
	}
	s.metrics.RecordTaskMutation("purge", 1)
	return nil
}

// Empty permanently removes every binned task. confirm must be true.
func (s *BinService) Empty(ctx context.Context, confirm bool) (int64, error) {
	if !confirm {
		return 0, appErrors.Clone(appErrors.ErrConfirmationRequired, "emptying the bin requires confirm=true")
	}
	n, err := s.repo.PurgeDeletedBefore(ctx, time.Time{})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to empty bin")
	}
	s.metrics.RecordTaskMutation("purge", int(n))
	s.logger.Info("bin emptied", zap.Int64("count", n))
	return n, nil
}

// PurgeExpired drops entries deleted longer ago than the retention window. It is a
// no-op when retention is not positive.
func (s *BinService) PurgeExpired(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	n, err := s.repo.PurgeDeletedBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	s.metrics.RecordTaskMutation("purge", int(n))
	if n > 0 {
		s.logger.Info("expired bin entries purged", zap.Int64("count", n))
	}
	return n, nil
}

func binLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "task not in bin")
	}
	return taskLookupError(err)
}
