// Package categorization runs batch categorization jobs: it resolves the
// objective scope, fans items out to a bounded worker pool, retries the
// categorizer and applies accepted matches.
package categorization

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/curricula/backend/internal/application/mapping"
	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/curricula/backend/internal/infrastructure/logger"
	"github.com/curricula/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEngineStopped is returned when launching a job after Shutdown
var ErrEngineStopped = errors.New("categorization: engine is shutting down")

// ReasonInterrupted is recorded on jobs whose run was lost
const ReasonInterrupted = "interrupted"

const persistTimeout = 10 * time.Second

// MappingApplier persists the accepted matches of one item
type MappingApplier interface {
	Apply(ctx context.Context, tenantID, contentID uuid.UUID, matches []categorization.Match, candidates []*standards.Objective) (mapping.ApplyResult, error)
}

// CoverageSeeder makes sure a framework's coverage counter is loaded
type CoverageSeeder interface {
	EnsureSeeded(ctx context.Context, tenantID, frameworkID uuid.UUID) error
}

// Metrics records per-call categorization measurements
type Metrics interface {
	RecordCategorize(ctx context.Context, d time.Duration, kind categorization.ErrorKind)
	RecordMappings(ctx context.Context, accepted, rejected, preserved int)
}

type noopMetrics struct{}

func (noopMetrics) RecordCategorize(context.Context, time.Duration, categorization.ErrorKind) {}
func (noopMetrics) RecordMappings(context.Context, int, int, int)                            {}

// EngineConfig tunes job execution
type EngineConfig struct {
	Concurrency        int           // workers per job
	MaxConcurrentJobs  int           // jobs running at once; the rest wait pending
	MaxAttempts        int           // categorize attempts per item
	BaseBackoff        time.Duration // first retry delay, doubled per attempt
	MaxBackoff         time.Duration
	PersistenceRetries int           // extra Apply attempts after a storage failure
	JobTimeout         time.Duration // 0 disables
	CheckpointInterval time.Duration // minimum gap between progress saves
	StaleAfter         time.Duration // age after which an unowned active job is abandoned
}

// DefaultEngineConfig returns the engine defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Concurrency:        4,
		MaxConcurrentJobs:  8,
		MaxAttempts:        4,
		BaseBackoff:        500 * time.Millisecond,
		MaxBackoff:         30 * time.Second,
		PersistenceRetries: 3,
		JobTimeout:         2 * time.Hour,
		CheckpointInterval: time.Second,
		StaleAfter:         3 * time.Hour,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = d.MaxConcurrentJobs
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseBackoff < 0 {
		c.BaseBackoff = 0
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.PersistenceRetries < 0 {
		c.PersistenceRetries = 0
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	return c
}

// EngineDeps are the collaborators of an Engine
type EngineDeps struct {
	Frameworks  standards.FrameworkRepository
	Objectives  standards.ObjectiveRepository
	Items       content.ItemRepository
	Jobs        categorization.JobRepository
	Categorizer categorization.Categorizer
	Mapper      MappingApplier
	Coverage    CoverageSeeder
	Publisher   shared.EventPublisher
	Registry    *JobRegistry
	Metrics     Metrics
}

// Engine executes categorization jobs. Each job gets its own context and
// worker pool; jobs share nothing but the slot semaphore.
type Engine struct {
	EngineDeps
	cfg    EngineConfig
	logger *zap.Logger

	slots    chan struct{}
	baseCtx  context.Context
	abort    context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopping bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine
func NewEngine(deps EngineDeps, cfg EngineConfig, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Registry == nil {
		deps.Registry = NewJobRegistry()
	}
	baseCtx, abort := context.WithCancel(context.Background())
	return &Engine{
		EngineDeps: deps,
		cfg:        cfg,
		logger:     logger.Named("categorization-engine"),
		slots:      make(chan struct{}, cfg.MaxConcurrentJobs),
		baseCtx:    baseCtx,
		abort:      abort,
		sleep:      sleepContext,
	}
}

// Launch registers a pending job and runs it in the background. The run is
// detached from the caller's context.
func (e *Engine) Launch(job *categorization.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopping {
		return ErrEngineStopped
	}

	ctx, cancel := context.WithCancel(e.baseCtx)
	live, err := e.Registry.Register(job, cancel)
	if err != nil {
		cancel()
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		defer e.Registry.Remove(job.ID)

		if !e.acquireSlot(ctx, live) {
			e.settleUnstarted(job)
			return
		}
		defer func() { <-e.slots }()

		runCtx := ctx
		if e.cfg.JobTimeout > 0 {
			var cancelTimeout context.CancelFunc
			runCtx, cancelTimeout = context.WithTimeout(ctx, e.cfg.JobTimeout)
			defer cancelTimeout()
		}
		if err := e.run(runCtx, job, live.Cancelled()); err != nil {
			e.logger.Error("Categorization job run failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}()
	return nil
}

func (e *Engine) acquireSlot(ctx context.Context, live *LiveJob) bool {
	select {
	case e.slots <- struct{}{}:
		return true
	case <-live.Cancelled():
		return false
	case <-ctx.Done():
		return false
	}
}

// settleUnstarted persists a job that never got a slot. It was either
// cancelled while waiting or the engine is shutting down.
func (e *Engine) settleUnstarted(job *categorization.Job) {
	if job.Status() == categorization.JobStatusPending {
		_ = job.RequestCancel()
	}
	e.persist(context.Background(), job)
}

// Run executes a job synchronously
func (e *Engine) Run(ctx context.Context, job *categorization.Job) error {
	return e.run(ctx, job, nil)
}

// jobScope is the resolved input of a run
type jobScope struct {
	candidates []*standards.Objective
	items      map[uuid.UUID]*content.Item
}

func (e *Engine) run(ctx context.Context, job *categorization.Job, cancelled <-chan struct{}) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "categorization", "run_job",
		telemetry.JobID(job.ID), telemetry.TenantID(job.TenantID))
	defer span.End()
	ctx, log := logger.WithJobID(ctx, logger.WithTraceContext(ctx, e.logger), job.ID.String())

	if job.Status() != categorization.JobStatusPending {
		e.persist(ctx, job)
		return nil
	}

	scope, err := e.resolve(ctx, job)
	if err != nil {
		log.Warn("Categorization job scope could not be resolved", zap.Error(err))
		telemetry.RecordError(span, err)
		// a cancel may have won the race; the job is then already closed
		_ = job.Fail(err.Error())
		e.persist(ctx, job)
		return nil
	}

	if err := job.Start(); err != nil {
		// cancelled while the scope was being resolved
		e.persist(ctx, job)
		return nil
	}
	e.persist(ctx, job)
	log.Info("Categorization job started",
		zap.Int("items", len(job.ItemIDs)),
		zap.Int("candidates", len(scope.candidates)),
		zap.Int("frameworks", len(job.ScopeFrameworkIDs)),
	)

	cp := &checkpointer{engine: e, job: job, interval: e.cfg.CheckpointInterval}
	dispatched := e.dispatch(ctx, job, scope, cancelled, cp)

	if ctx.Err() != nil && !job.CancelRequested() {
		log.Warn("Categorization job interrupted", zap.Error(ctx.Err()))
		_ = job.RequestCancel()
	}

	status, err := job.Finish(dispatched)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", job.ID, err)
	}
	e.persist(ctx, job)

	progress := job.Progress()
	span.SetAttributes(telemetry.AttrJobStatus.String(string(status)))
	log.Info("Categorization job finished",
		zap.String("status", string(status)),
		zap.Int("total", progress.Total),
		zap.Int("succeeded", progress.Succeeded),
		zap.Int("failed", progress.Failed),
	)
	return nil
}

// resolve loads the scope frameworks, their objectives and the items. Any
// error here fails the job before an item is dispatched.
func (e *Engine) resolve(ctx context.Context, job *categorization.Job) (*jobScope, error) {
	frameworks, err := e.Frameworks.FindByIDsForTenant(ctx, job.TenantID, job.ScopeFrameworkIDs)
	if err != nil {
		return nil, fmt.Errorf("load frameworks: %w", err)
	}
	found := make(map[uuid.UUID]*standards.Framework, len(frameworks))
	for _, fw := range frameworks {
		found[fw.ID] = fw
	}
	for _, id := range job.ScopeFrameworkIDs {
		fw, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("framework %s not found", id)
		}
		if !fw.IsActive {
			return nil, fmt.Errorf("framework %s is inactive", id)
		}
	}

	objectives, err := e.Objectives.FindByFrameworks(ctx, job.TenantID, job.ScopeFrameworkIDs)
	if err != nil {
		return nil, fmt.Errorf("load objectives: %w", err)
	}
	if len(objectives) == 0 {
		return nil, errors.New("scope contains no objectives")
	}

	byFramework := make(map[uuid.UUID][]*standards.Objective, len(job.ScopeFrameworkIDs))
	for _, o := range objectives {
		byFramework[o.FrameworkID] = append(byFramework[o.FrameworkID], o)
	}
	candidates := make([]*standards.Objective, 0, len(objectives))
	for _, id := range job.ScopeFrameworkIDs {
		tree, err := standards.BuildObjectiveTree(id, byFramework[id])
		if err != nil {
			return nil, fmt.Errorf("framework %s: %w", id, err)
		}
		tree.Walk(func(o *standards.Objective, _ int) bool {
			candidates = append(candidates, o)
			return true
		})
		if err := e.Coverage.EnsureSeeded(ctx, job.TenantID, id); err != nil {
			return nil, fmt.Errorf("seed coverage for framework %s: %w", id, err)
		}
	}

	items, err := e.Items.FindByIDsForTenant(ctx, job.TenantID, job.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("load content items: %w", err)
	}
	byID := make(map[uuid.UUID]*content.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	return &jobScope{candidates: candidates, items: byID}, nil
}

// dispatch feeds item IDs to the worker pool until all are handed out,
// cancellation is requested or ctx ends. It returns the number of items
// handed to workers; every one of them is recorded before it returns.
func (e *Engine) dispatch(ctx context.Context, job *categorization.Job, scope *jobScope, cancelled <-chan struct{}, cp *checkpointer) int {
	work := make(chan uuid.UUID)
	dispatched := 0

	var g errgroup.Group
	g.Go(func() error {
		defer close(work)
		for _, id := range job.ItemIDs {
			if job.CancelRequested() || ctx.Err() != nil {
				return nil
			}
			// a ready worker must not win over a pending cancel
			select {
			case <-cancelled:
				return nil
			default:
			}
			select {
			case work <- id:
				dispatched++
			case <-cancelled:
				return nil
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < e.cfg.Concurrency; i++ {
		g.Go(func() error {
			for id := range work {
				e.processItem(ctx, job, scope, id)
				cp.maybeSave(ctx)
			}
			return nil
		})
	}

	_ = g.Wait()
	return dispatched
}

func (e *Engine) processItem(ctx context.Context, job *categorization.Job, scope *jobScope, itemID uuid.UUID) {
	ctx, span := telemetry.StartSpan(ctx, "categorization.process_item",
		telemetry.JobID(job.ID), telemetry.ItemID(itemID))
	defer span.End()

	item, ok := scope.items[itemID]
	if !ok {
		e.recordFailure(ctx, job, itemID, categorization.ErrorKindMissingContent, "content item not found", 0)
		return
	}
	if !item.HasText() {
		e.recordFailure(ctx, job, itemID, categorization.ErrorKindMissingContent, "content item has no text", 0)
		return
	}

	matches, used, attempts, err := e.categorizeWithRetry(ctx, item, scope.candidates)
	if err != nil {
		telemetry.RecordError(span, err)
		e.recordFailure(ctx, job, itemID, categorization.ClassifyError(err), err.Error(), attempts)
		return
	}

	res, err := e.applyWithRetry(ctx, job.TenantID, item.ID, matches, used)
	if err != nil {
		telemetry.RecordError(span, err)
		e.recordFailure(ctx, job, itemID, categorization.ErrorKindPersistence, err.Error(), attempts)
		return
	}
	e.Metrics.RecordMappings(ctx, res.Accepted, res.Rejected, res.Preserved)
	span.SetAttributes(telemetry.AttrMatchCount.Int(res.Accepted))

	if err := job.RecordSuccess(itemID); err != nil {
		logger.L(ctx).Error("Failed to record item success", zap.String("item_id", itemID.String()), zap.Error(err))
	}
}

func (e *Engine) recordFailure(ctx context.Context, job *categorization.Job, itemID uuid.UUID, kind categorization.ErrorKind, reason string, attempts int) {
	if err := job.RecordFailure(itemID, kind, reason, attempts); err != nil {
		logger.L(ctx).Error("Failed to record item failure", zap.String("item_id", itemID.String()), zap.Error(err))
		return
	}
	logger.L(ctx).Warn("Content item failed",
		zap.String("item_id", itemID.String()),
		zap.String("kind", string(kind)),
		zap.Int("attempts", attempts),
		zap.String("reason", reason),
	)
}

// categorizeWithRetry calls the categorizer until it succeeds, fails
// permanently or runs out of attempts. An invalid response halves the
// candidate list for the next attempt. It returns the candidates of the
// successful call.
func (e *Engine) categorizeWithRetry(ctx context.Context, item *content.Item, candidates []*standards.Objective) ([]categorization.Match, []*standards.Objective, int, error) {
	current := candidates
	for attempt := 1; ; attempt++ {
		start := time.Now()
		matches, err := e.Categorizer.Categorize(ctx, item, current)
		if err == nil {
			e.Metrics.RecordCategorize(ctx, time.Since(start), "")
			return matches, current, attempt, nil
		}

		kind := categorization.ClassifyError(err)
		e.Metrics.RecordCategorize(ctx, time.Since(start), kind)
		if ctx.Err() != nil || !kind.Retryable() || attempt >= e.cfg.MaxAttempts {
			return nil, nil, attempt, err
		}
		if kind == categorization.ErrorKindInvalidResponse && len(current) > 1 {
			current = current[:(len(current)+1)/2]
		}

		delay := e.backoff(attempt, categorization.RetryAfter(err))
		logger.L(ctx).Debug("Retrying categorization",
			zap.String("item_id", item.ID.String()),
			zap.Int("attempt", attempt),
			zap.String("kind", string(kind)),
			zap.Duration("delay", delay),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, nil, attempt, err
		}
	}
}

func (e *Engine) applyWithRetry(ctx context.Context, tenantID, contentID uuid.UUID, matches []categorization.Match, candidates []*standards.Objective) (mapping.ApplyResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := e.Mapper.Apply(ctx, tenantID, contentID, matches, candidates)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, shared.ErrPersistence) || attempt >= e.cfg.PersistenceRetries {
			return res, err
		}
		if err := e.sleep(ctx, e.backoff(attempt+1, 0)); err != nil {
			return res, err
		}
	}
}

// backoff returns an exponentially growing delay with jitter in [d/2, d],
// never shorter than a server-requested retryAfter
func (e *Engine) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := e.cfg.BaseBackoff
	for i := 1; i < attempt && d < e.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > e.cfg.MaxBackoff {
		d = e.cfg.MaxBackoff
	}
	if d > 0 {
		d = d/2 + time.Duration(rand.Int64N(int64(d/2)+1))
	}
	if retryAfter > d {
		d = retryAfter
	}
	return d
}

// persist saves the job and publishes its pending events. It uses a
// context detached from cancellation so a final state is written even when
// the run was aborted.
func (e *Engine) persist(ctx context.Context, job *categorization.Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := e.Jobs.Save(ctx, job); err != nil {
		logger.L(ctx).Error("Failed to save categorization job", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	if events := job.PullEvents(); len(events) > 0 {
		if err := e.Publisher.Publish(ctx, events...); err != nil {
			logger.L(ctx).Warn("Failed to publish job events", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
	}
}

// checkpointer rate-limits progress saves of one run. At most one save runs
// at a time; workers arriving meanwhile skip instead of waiting on it.
type checkpointer struct {
	engine   *Engine
	job      *categorization.Job
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (c *checkpointer) maybeSave(ctx context.Context) {
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()
	if time.Since(c.last) < c.interval {
		return
	}
	c.engine.persist(ctx, c.job)
	c.last = time.Now()
}

// RecoverInterrupted abandons every active job not owned by this process.
// It runs once at startup, before new jobs are accepted.
func (e *Engine) RecoverInterrupted(ctx context.Context) (int, error) {
	return e.sweep(ctx, time.Now())
}

// SweepStale abandons unowned active jobs untouched for longer than
// StaleAfter
func (e *Engine) SweepStale(ctx context.Context) (int, error) {
	return e.sweep(ctx, time.Now().Add(-e.cfg.StaleAfter))
}

func (e *Engine) sweep(ctx context.Context, cutoff time.Time) (int, error) {
	jobs, err := e.Jobs.FindByStatuses(ctx, categorization.ActiveStatuses())
	if err != nil {
		return 0, fmt.Errorf("find active jobs: %w", err)
	}

	n := 0
	for _, job := range jobs {
		if e.Registry.Owns(job.ID) || job.Snapshot().UpdatedAt.After(cutoff) {
			continue
		}
		if err := job.Abandon(ReasonInterrupted); err != nil {
			continue
		}
		e.persist(ctx, job)
		n++
	}
	if n > 0 {
		e.logger.Warn("Abandoned interrupted categorization jobs", zap.Int("jobs", n))
	}
	return n, nil
}

// Shutdown stops accepting jobs, asks running jobs to stop dispatching and
// waits for them. When ctx expires first, in-flight work is aborted.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	cancelled := e.Registry.CancelAll()
	e.logger.Info("Categorization engine shutting down", zap.Int("live_jobs", cancelled))

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.abort()
		return nil
	case <-ctx.Done():
		e.logger.Warn("Shutdown timeout reached, aborting in-flight items")
		e.Registry.AbortAll()
		e.abort()
		<-done
		return ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
