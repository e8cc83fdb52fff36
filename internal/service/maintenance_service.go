package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/taskroster/pkg/jobs"
)

// Maintenance job types.
const (
	JobExportsCleanup = "exports.cleanup"
	JobBinPurge       = "bin.purge"
)

type exportCleaner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

type binPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// MaintenanceConfig tunes background housekeeping.
type MaintenanceConfig struct {
	Interval     time.Duration
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	ExportTTL    time.Duration
	BinRetention time.Duration
}

// MaintenanceService periodically enqueues housekeeping jobs on an in-process queue.
type MaintenanceService struct {
	queue   *jobs.Queue
	types   []string
	cfg     MaintenanceConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMaintenanceService wires the housekeeping handlers. bin.purge is only scheduled
// when a positive bin retention is configured.
func NewMaintenanceService(exports exportCleaner, bin binPurger, metrics *MetricsService, cfg MaintenanceConfig, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s := &MaintenanceService{cfg: cfg, metrics: metrics, logger: logger}

	mux := jobs.Mux{}
	if exports != nil {
		mux[JobExportsCleanup] = func(_ context.Context, _ jobs.Job) error {
			removed, err := exports.Cleanup(cfg.ExportTTL)
			s.metrics.RecordJobRun(JobExportsCleanup, err)
			if err != nil {
				return err
			}
			if len(removed) > 0 {
				logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
			return nil
		}
		s.types = append(s.types, JobExportsCleanup)
	}
	if bin != nil && cfg.BinRetention > 0 {
		mux[JobBinPurge] = func(ctx context.Context, _ jobs.Job) error {
			_, err := bin.PurgeExpired(ctx)
			s.metrics.RecordJobRun(JobBinPurge, err)
			return err
		}
		s.types = append(s.types, JobBinPurge)
	}

	s.queue = jobs.NewQueue("maintenance", mux.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Unique:     true,
		Logger:     logger,
	})
	return s
}

// JobTypes lists the scheduled job types.
func (s *MaintenanceService) JobTypes() []string {
	return append([]string(nil), s.types...)
}

// Run starts the queue, enqueues every job once immediately and then on each tick,
// and blocks until ctx is done.
func (s *MaintenanceService) Run(ctx context.Context) error {
	s.queue.Start(ctx)
	defer s.queue.Stop()

	s.enqueueAll()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.enqueueAll()
		}
	}
}

func (s *MaintenanceService) enqueueAll() {
	for _, t := range s.types {
		err := s.queue.Enqueue(jobs.Job{Type: t})
		if errors.Is(err, jobs.ErrDuplicate) {
			s.logger.Debug("maintenance job still pending", zap.String("type", t))
			continue
		}
		if err != nil {
			s.logger.Warn("enqueue maintenance job", zap.String("type", t), zap.Error(err))
		}
	}
}
