package scheduler

import (
	"context"
	"time"

	"github.com/curricula/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Task names
const (
	TaskJobCleanup        = "job_history_cleanup"
	TaskCoverageReconcile = "coverage_reconcile"
	TaskStaleJobSweep     = "stale_job_sweep"
)

// JobHistoryCleaner deletes finished jobs older than a cutoff
type JobHistoryCleaner interface {
	CleanupFinished(ctx context.Context, olderThan time.Time) (int64, error)
}

// CoverageReconciler rebuilds coverage counters from persisted mappings
type CoverageReconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// StaleJobSweeper abandons jobs left active by a previous process
type StaleJobSweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// Tasks groups the services the maintenance schedule drives
type Tasks struct {
	Cleaner    JobHistoryCleaner
	Reconciler CoverageReconciler
	Sweeper    StaleJobSweeper
}

// RegisterMaintenanceTasks registers cleanup, reconcile and stale sweep on m
// using the schedules from cfg
func RegisterMaintenanceTasks(m *Maintenance, cfg config.MaintenanceConfig, tasks Tasks, logger *zap.Logger) error {
	retention := cfg.JobRetention
	if err := m.Register(TaskJobCleanup, cfg.JobCleanupCron, func(ctx context.Context) error {
		deleted, err := tasks.Cleaner.CleanupFinished(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		logger.Info("Finished jobs cleaned up", zap.Int64("deleted", deleted), zap.Duration("retention", retention))
		return nil
	}); err != nil {
		return err
	}

	if err := m.Register(TaskCoverageReconcile, cfg.ReconcileCron, func(ctx context.Context) error {
		n, err := tasks.Reconciler.ReconcileAll(ctx)
		logger.Info("Coverage reconciled", zap.Int("frameworks", n))
		return err
	}); err != nil {
		return err
	}

	return m.Register(TaskStaleJobSweep, cfg.StaleJobSweepCron, func(ctx context.Context) error {
		n, err := tasks.Sweeper.SweepStale(ctx)
		if n > 0 {
			logger.Warn("Abandoned stale categorization jobs", zap.Int("jobs", n))
		}
		return err
	})
}
