package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/curricula/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMaintenance(t *testing.T) *Maintenance {
	t.Helper()
	m, err := NewMaintenance(config.MaintenanceConfig{Timezone: "UTC"}, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestNewMaintenance_InvalidTimezone(t *testing.T) {
	_, err := NewMaintenance(config.MaintenanceConfig{Timezone: "Mars/Olympus"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMaintenance_Register(t *testing.T) {
	m := newTestMaintenance(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, m.Register("b", "0 3 * * *", noop))
	require.NoError(t, m.Register("a", "*/15 * * * *", noop))

	err := m.Register("a", "0 4 * * *", noop)
	assert.ErrorIs(t, err, ErrDuplicateTask)

	err = m.Register("c", "every now and then", noop)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	tasks := m.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Name)
	assert.Equal(t, "*/15 * * * *", tasks[0].Schedule)
}

func TestMaintenance_RunNow(t *testing.T) {
	m := newTestMaintenance(t)
	var calls atomic.Int32
	boom := errors.New("boom")

	require.NoError(t, m.Register("ok", "0 3 * * *", func(ctx context.Context) error {
		calls.Add(1)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}))
	require.NoError(t, m.Register("failing", "0 3 * * *", func(context.Context) error { return boom }))

	assert.NoError(t, m.RunNow(context.Background(), "ok"))
	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, m.RunNow(context.Background(), "failing"), boom)
	assert.ErrorIs(t, m.RunNow(context.Background(), "missing"), ErrTaskNotFound)
}

func TestMaintenance_StartStop(t *testing.T) {
	m := newTestMaintenance(t)
	require.NoError(t, m.Register("noop", "0 3 * * *", func(context.Context) error { return nil }))

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Start(ctx))

	tasks := m.Tasks()
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].Next.IsZero())

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, m.Stop(stopCtx))
	assert.NoError(t, m.Stop(stopCtx))
}

type fakeCleaner struct{ cutoff time.Time }

func (f *fakeCleaner) CleanupFinished(_ context.Context, olderThan time.Time) (int64, error) {
	f.cutoff = olderThan
	return 4, nil
}

type fakeReconciler struct{ err error }

func (f fakeReconciler) ReconcileAll(context.Context) (int, error) { return 2, f.err }

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) SweepStale(context.Context) (int, error) {
	f.calls++
	return 1, nil
}

func TestRegisterMaintenanceTasks(t *testing.T) {
	m := newTestMaintenance(t)
	cleaner := &fakeCleaner{}
	sweeper := &fakeSweeper{}
	reconcileErr := errors.New("redis down")

	cfg := config.MaintenanceConfig{
		JobCleanupCron:    "0 3 * * *",
		JobRetention:      48 * time.Hour,
		ReconcileCron:     "30 3 * * *",
		StaleJobSweepCron: "*/15 * * * *",
	}
	require.NoError(t, RegisterMaintenanceTasks(m, cfg, Tasks{
		Cleaner:    cleaner,
		Reconciler: fakeReconciler{err: reconcileErr},
		Sweeper:    sweeper,
	}, zap.NewNop()))

	names := make([]string, 0, 3)
	for _, info := range m.Tasks() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{TaskCoverageReconcile, TaskJobCleanup, TaskStaleJobSweep}, names)

	ctx := context.Background()
	require.NoError(t, m.RunNow(ctx, TaskJobCleanup))
	assert.WithinDuration(t, time.Now().Add(-48*time.Hour), cleaner.cutoff, time.Minute)

	require.NoError(t, m.RunNow(ctx, TaskStaleJobSweep))
	assert.Equal(t, 1, sweeper.calls)

	assert.ErrorIs(t, m.RunNow(ctx, TaskCoverageReconcile), reconcileErr)
}

func TestRegisterMaintenanceTasks_InvalidSchedule(t *testing.T) {
	m := newTestMaintenance(t)
	err := RegisterMaintenanceTasks(m, config.MaintenanceConfig{JobCleanupCron: "bogus"}, Tasks{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}
