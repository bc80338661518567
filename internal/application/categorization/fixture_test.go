package categorization

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appcoverage "github.com/curricula/backend/internal/application/coverage"
	"github.com/curricula/backend/internal/application/mapping"
	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	infracoverage "github.com/curricula/backend/internal/infrastructure/coverage"
	"github.com/curricula/backend/internal/infrastructure/persistence"
	"github.com/curricula/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// categorizeFunc scripts the fake categorizer per call
type categorizeFunc func(ctx context.Context, call int, item *content.Item, candidates []*standards.Objective) ([]categorization.Match, error)

type fakeCategorizer struct {
	mu    sync.Mutex
	fn    categorizeFunc
	calls map[uuid.UUID]int
	sizes []int
}

func newFakeCategorizer(fn categorizeFunc) *fakeCategorizer {
	return &fakeCategorizer{fn: fn, calls: make(map[uuid.UUID]int)}
}

func (f *fakeCategorizer) Categorize(ctx context.Context, item *content.Item, candidates []*standards.Objective) ([]categorization.Match, error) {
	f.mu.Lock()
	f.calls[item.ID]++
	call := f.calls[item.ID]
	f.sizes = append(f.sizes, len(candidates))
	f.mu.Unlock()
	return f.fn(ctx, call, item, candidates)
}

func (f *fakeCategorizer) Calls(itemID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[itemID]
}

func (f *fakeCategorizer) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeCategorizer) CandidateSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.sizes...)
}

// matchFirst accepts the first n candidates with the given confidence
func matchFirst(n int, confidence float64) categorizeFunc {
	return func(_ context.Context, _ int, _ *content.Item, candidates []*standards.Objective) ([]categorization.Match, error) {
		k := min(n, len(candidates))
		out := make([]categorization.Match, 0, k)
		for _, o := range candidates[:k] {
			out = append(out, categorization.Match{ObjectiveID: o.ID, Confidence: confidence, Reasoning: "covers " + o.Code})
		}
		return out, nil
	}
}

// matchPositions accepts, per item title, the candidates at the given positions
func matchPositions(byTitle map[string][]int, confidence float64) categorizeFunc {
	return func(_ context.Context, _ int, item *content.Item, candidates []*standards.Objective) ([]categorization.Match, error) {
		positions := byTitle[item.Title]
		out := make([]categorization.Match, 0, len(positions))
		for _, p := range positions {
			if p >= len(candidates) {
				continue
			}
			o := candidates[p]
			out = append(out, categorization.Match{ObjectiveID: o.ID, Confidence: confidence, Reasoning: "covers " + o.Code})
		}
		return out, nil
	}
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	tenantID  uuid.UUID
	framework *standards.Framework
	objs      []*standards.Objective

	frameworks *persistence.GormFrameworkRepository
	objectives *persistence.GormObjectiveRepository
	items      *persistence.GormContentItemRepository
	mappings   *persistence.GormContentMappingRepository
	jobs       *persistence.GormCategorizationJobRepository

	coverage  *appcoverage.Service
	publisher *testutil.RecordingPublisher
	registry  *JobRegistry
}

// newFixture creates a tenant with one active framework of four objectives
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		tenantID:   uuid.New(),
		frameworks: persistence.NewGormFrameworkRepository(db),
		objectives: persistence.NewGormObjectiveRepository(db),
		items:      persistence.NewGormContentItemRepository(db),
		mappings:   persistence.NewGormContentMappingRepository(db),
		jobs:       persistence.NewGormCategorizationJobRepository(db),
		publisher:  testutil.NewRecordingPublisher(),
		registry:   NewJobRegistry(),
	}
	f.coverage = appcoverage.NewService(infracoverage.NewMemoryStore(), f.frameworks, f.objectives, f.mappings, zap.NewNop())
	f.framework, f.objs = f.addFramework("USMLE Step 1", 4)
	return f
}

func (f *fixture) addFramework(name string, objectives int) (*standards.Framework, []*standards.Objective) {
	f.t.Helper()
	fw, err := standards.NewFramework(f.tenantID, standards.AreaMedicalSchool, name, true)
	require.NoError(f.t, err)
	require.NoError(f.t, f.frameworks.Save(f.ctx, fw))

	objs := make([]*standards.Objective, 0, objectives)
	for i := 0; i < objectives; i++ {
		o, err := standards.NewObjective(f.tenantID, fw.ID, string(rune('A'+i))+".1", "Objective "+string(rune('A'+i)), nil)
		require.NoError(f.t, err)
		objs = append(objs, o)
	}
	if len(objs) > 0 {
		require.NoError(f.t, f.objectives.SaveBatch(f.ctx, objs))
	}
	return fw, objs
}

func (f *fixture) addItems(n int) []uuid.UUID {
	f.t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		item, err := content.NewItem(f.tenantID, "Lecture "+string(rune('1'+i)), "", "Cardiac physiology", content.ItemTypeLecture)
		require.NoError(f.t, err)
		require.NoError(f.t, f.items.Save(f.ctx, item))
		ids = append(ids, item.ID)
	}
	return ids
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		Concurrency:        2,
		MaxConcurrentJobs:  2,
		MaxAttempts:        3,
		BaseBackoff:        time.Millisecond,
		MaxBackoff:         5 * time.Millisecond,
		PersistenceRetries: 2,
		JobTimeout:         time.Minute,
		CheckpointInterval: 0,
		StaleAfter:         time.Hour,
	}
}

func (f *fixture) newEngine(cat categorization.Categorizer, cfg EngineConfig) *Engine {
	f.t.Helper()
	agg := mapping.NewAggregator(f.mappings, f.coverage, mapping.DefaultConfidenceThreshold, zap.NewNop())
	e := NewEngine(EngineDeps{
		Frameworks:  f.frameworks,
		Objectives:  f.objectives,
		Items:       f.items,
		Jobs:        f.jobs,
		Categorizer: cat,
		Mapper:      agg,
		Coverage:    f.coverage,
		Publisher:   f.publisher,
		Registry:    f.registry,
	}, cfg, zap.NewNop())
	e.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	f.t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e
}

// newJob creates and persists a pending job over the fixture framework
func (f *fixture) newJob(itemIDs []uuid.UUID, frameworkIDs ...uuid.UUID) *categorization.Job {
	f.t.Helper()
	if len(frameworkIDs) == 0 {
		frameworkIDs = []uuid.UUID{f.framework.ID}
	}
	job, err := categorization.NewJob(f.tenantID, itemIDs, frameworkIDs)
	require.NoError(f.t, err)
	require.NoError(f.t, f.jobs.Create(f.ctx, job))
	job.PullEvents()
	return job
}

func (f *fixture) stored(jobID uuid.UUID) *categorization.Job {
	f.t.Helper()
	job, err := f.jobs.FindByIDForTenant(f.ctx, f.tenantID, jobID)
	require.NoError(f.t, err)
	return job
}

// waitStored blocks until the persisted job reaches a terminal status
func (f *fixture) waitStored(jobID uuid.UUID) *categorization.Job {
	f.t.Helper()
	testutil.RequireEventually(f.t, func() bool {
		job, err := f.jobs.FindByIDForTenant(f.ctx, f.tenantID, jobID)
		return err == nil && job.Status().IsTerminal() && !f.registry.Owns(jobID)
	}, 5*time.Second, 5*time.Millisecond, "job did not finish")
	return f.stored(jobID)
}

// flakyMapper fails the first failFirst Apply calls with a persistence error
type flakyMapper struct {
	inner     MappingApplier
	failFirst int32
	count     *atomic.Int32
}

func (m flakyMapper) Apply(ctx context.Context, tenantID, contentID uuid.UUID, matches []categorization.Match, candidates []*standards.Objective) (mapping.ApplyResult, error) {
	if m.count.Add(1) <= m.failFirst {
		return mapping.ApplyResult{}, shared.NewPersistenceError("upsert mapping", errors.New("database is locked"))
	}
	return m.inner.Apply(ctx, tenantID, contentID, matches, candidates)
}

// blockingJobs holds every Save until release is closed
type blockingJobs struct {
	categorization.JobRepository
	saves   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newBlockingJobs(inner categorization.JobRepository) *blockingJobs {
	return &blockingJobs{JobRepository: inner, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingJobs) Save(ctx context.Context, job *categorization.Job) error {
	b.saves.Add(1)
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return b.JobRepository.Save(ctx, job)
}
