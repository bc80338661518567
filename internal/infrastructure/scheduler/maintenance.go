// Package scheduler runs periodic maintenance tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/curricula/backend/internal/infrastructure/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TaskFunc is a unit of maintenance work
type TaskFunc func(ctx context.Context) error

// TaskInfo describes a registered task
type TaskInfo struct {
	Name     string
	Schedule string
	Next     time.Time
	Prev     time.Time
}

type task struct {
	name     string
	schedule string
	fn       TaskFunc
	entryID  cron.EntryID
}

// Maintenance schedules named tasks with robfig/cron. Overlapping runs of
// the same task are skipped and panics are recovered.
type Maintenance struct {
	cron        *cron.Cron
	location    *time.Location
	taskTimeout time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	tasks     map[string]*task
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewMaintenance creates a stopped scheduler in the configured timezone
func NewMaintenance(cfg config.MaintenanceConfig, logger *zap.Logger) (*Maintenance, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}

	logger = logger.Named("maintenance")
	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Maintenance{
		cron:        c,
		location:    loc,
		taskTimeout: time.Hour,
		logger:      logger,
		tasks:       make(map[string]*task),
		ctx:         context.Background(),
	}, nil
}

// Register adds a task under a standard five-field cron expression
func (m *Maintenance) Register(name, schedule string, fn TaskFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}

	t := &task{name: name, schedule: schedule, fn: fn}
	id, err := m.cron.AddFunc(schedule, func() { m.execute(t) })
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidSchedule, name, schedule, err)
	}
	t.entryID = id
	m.tasks[name] = t

	m.logger.Info("Maintenance task registered",
		zap.String("task", name),
		zap.String("schedule", schedule),
		zap.String("timezone", m.location.String()),
	)
	return nil
}

// Start begins firing tasks. Tasks run with a context derived from ctx.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning {
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.isRunning = true
	m.cron.Start()

	m.logger.Info("Maintenance scheduler started", zap.Int("tasks", len(m.tasks)))
	return nil
}

// Stop prevents new runs, cancels running tasks and waits for them to
// return or for ctx to expire
func (m *Maintenance) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	cancel := m.cancel
	m.mu.Unlock()

	done := m.cron.Stop()
	cancel()

	select {
	case <-done.Done():
		m.logger.Info("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a registered task synchronously, outside the schedule
func (m *Maintenance) RunNow(ctx context.Context, name string) error {
	m.mu.Lock()
	t, ok := m.tasks[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return m.run(ctx, t)
}

// Tasks lists registered tasks ordered by name
func (m *Maintenance) Tasks() []TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TaskInfo, 0, len(m.tasks))
	for _, t := range m.tasks {
		e := m.cron.Entry(t.entryID)
		out = append(out, TaskInfo{Name: t.name, Schedule: t.schedule, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Maintenance) execute(t *task) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	_ = m.run(ctx, t)
}

func (m *Maintenance) run(ctx context.Context, t *task) error {
	ctx, cancel := context.WithTimeout(ctx, m.taskTimeout)
	defer cancel()

	start := time.Now()
	err := t.fn(ctx)
	fields := []zap.Field{
		zap.String("task", t.name),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		m.logger.Error("Maintenance task failed", append(fields, zap.Error(err))...)
		return err
	}
	m.logger.Info("Maintenance task completed", fields...)
	return nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
