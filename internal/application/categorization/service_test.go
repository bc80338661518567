package categorization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/curricula/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *fixture) newService(e *Engine, maxItems int) *JobService {
	return NewJobService(f.jobs, f.registry, e, f.publisher, maxItems, zap.NewNop())
}

type stoppedLauncher struct{}

func (stoppedLauncher) Launch(*categorization.Job) error { return ErrEngineStopped }

func TestJobService_SubmitAndGet(t *testing.T) {
	f := newFixture(t)
	items := f.addItems(3)
	svc := f.newService(f.newEngine(newFakeCategorizer(matchFirst(1, 0.9)), testEngineConfig()), 10)

	resp, err := svc.SubmitJob(f.ctx, f.tenantID, SubmitJobRequest{
		ItemIDs:      append(items, items[0]),
		FrameworkIDs: []uuid.UUID{f.framework.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ItemCount, "duplicate items are collapsed")
	assert.Equal(t, 3, resp.Progress.Total)
	assert.Len(t, f.publisher.EventsOfType(categorization.EventTypeJobCreated), 1)

	f.waitStored(resp.ID)
	got, err := svc.GetJob(f.ctx, f.tenantID, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, string(categorization.JobStatusCompleted), got.Status)
	assert.Equal(t, ProgressResponse{Total: 3, Processed: 3, Succeeded: 3, Percent: 100}, got.Progress)
	assert.Empty(t, got.Failures)
	assert.NotNil(t, got.FinishedAt)

	_, err = svc.GetJob(f.ctx, uuid.New(), resp.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound, "jobs are tenant scoped")
}

func TestJobService_SubmitValidation(t *testing.T) {
	f := newFixture(t)
	items := f.addItems(3)
	svc := f.newService(f.newEngine(newFakeCategorizer(matchFirst(1, 0.9)), testEngineConfig()), 2)

	tests := []struct {
		name string
		req  SubmitJobRequest
	}{
		{"no items", SubmitJobRequest{FrameworkIDs: []uuid.UUID{f.framework.ID}}},
		{"empty scope", SubmitJobRequest{ItemIDs: items[:1]}},
		{"nil item id", SubmitJobRequest{ItemIDs: []uuid.UUID{uuid.Nil}, FrameworkIDs: []uuid.UUID{f.framework.ID}}},
		{"too many items", SubmitJobRequest{ItemIDs: items, FrameworkIDs: []uuid.UUID{f.framework.ID}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitJob(f.ctx, f.tenantID, tt.req)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	recent, err := svc.ListRecentJobs(f.ctx, f.tenantID, 0)
	require.NoError(t, err)
	assert.Empty(t, recent, "rejected submissions are not persisted")
}

func TestJobService_SubmitWhenEngineStopped(t *testing.T) {
	f := newFixture(t)
	items := f.addItems(1)
	svc := NewJobService(f.jobs, f.registry, stoppedLauncher{}, f.publisher, 0, zap.NewNop())

	_, err := svc.SubmitJob(f.ctx, f.tenantID, SubmitJobRequest{ItemIDs: items, FrameworkIDs: []uuid.UUID{f.framework.ID}})
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, shared.CodeUnavailable, de.Code)

	recent, err := svc.ListRecentJobs(f.ctx, f.tenantID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, string(categorization.JobStatusCancelled), recent[0].Status)
}

func TestJobService_CancelLiveJob(t *testing.T) {
	f := newFixture(t)
	items := f.addItems(3)
	release := make(chan struct{})
	cat := newFakeCategorizer(func(ctx context.Context, call int, item *content.Item, c []*standards.Objective) ([]categorization.Match, error) {
		<-release
		return matchFirst(1, 0.9)(ctx, call, item, c)
	})
	cfg := testEngineConfig()
	cfg.Concurrency = 1
	svc := f.newService(f.newEngine(cat, cfg), 0)

	submitted, err := svc.SubmitJob(f.ctx, f.tenantID, SubmitJobRequest{ItemIDs: items, FrameworkIDs: []uuid.UUID{f.framework.ID}})
	require.NoError(t, err)
	testutil.RequireEventually(t, func() bool { return cat.TotalCalls() == 1 }, 2*time.Second, time.Millisecond)

	live, err := svc.GetJob(f.ctx, f.tenantID, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, string(categorization.JobStatusRunning), live.Status)

	cancelled, err := svc.CancelJob(f.ctx, f.tenantID, submitted.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.CancelRequested)
	close(release)

	stored := f.waitStored(submitted.ID)
	assert.Equal(t, categorization.JobStatusCancelled, stored.Status())
	assert.Equal(t, 1, stored.Progress().Total)

	_, err = svc.CancelJob(f.ctx, f.tenantID, submitted.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState, "finished jobs cannot be cancelled")
}

func TestJobService_CancelStoredPendingJob(t *testing.T) {
	f := newFixture(t)
	items := f.addItems(2)
	svc := NewJobService(f.jobs, f.registry, stoppedLauncher{}, f.publisher, 0, zap.NewNop())

	job := f.newJob(items)
	resp, err := svc.CancelJob(f.ctx, f.tenantID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(categorization.JobStatusCancelled), resp.Status)
	assert.Zero(t, resp.Progress.Total)

	stored := f.stored(job.ID)
	assert.Equal(t, categorization.JobStatusCancelled, stored.Status())
	assert.Len(t, f.publisher.EventsOfType(categorization.EventTypeJobFinished), 1)

	_, err = svc.CancelJob(f.ctx, f.tenantID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestJobService_ListRecentAndFailures(t *testing.T) {
	f := newFixture(t)
	items := f.addItems(2)
	cat := newFakeCategorizer(func(ctx context.Context, call int, item *content.Item, c []*standards.Objective) ([]categorization.Match, error) {
		if item.ID == items[1] {
			return nil, categorization.NewPermanentError(errors.New("refused"))
		}
		return matchFirst(1, 0.9)(ctx, call, item, c)
	})
	svc := f.newService(f.newEngine(cat, testEngineConfig()), 0)

	first, err := svc.SubmitJob(f.ctx, f.tenantID, SubmitJobRequest{ItemIDs: items[:1], FrameworkIDs: []uuid.UUID{f.framework.ID}})
	require.NoError(t, err)
	f.waitStored(first.ID)
	second, err := svc.SubmitJob(f.ctx, f.tenantID, SubmitJobRequest{ItemIDs: items, FrameworkIDs: []uuid.UUID{f.framework.ID}})
	require.NoError(t, err)
	f.waitStored(second.ID)

	recent, err := svc.ListRecentJobs(f.ctx, f.tenantID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, string(categorization.JobStatusCompletedWithErrors), recent[0].Status)
	assert.Equal(t, string(categorization.JobStatusCompleted), recent[1].Status)

	failures, err := svc.ListItemFailures(f.ctx, f.tenantID, second.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, items[1], failures[0].ItemID)
	assert.Equal(t, string(categorization.ErrorKindPermanent), failures[0].Kind)
	assert.Equal(t, 1, failures[0].Attempts)
}

func TestJobService_CleanupFinished(t *testing.T) {
	f := newFixture(t)
	items := f.addItems(1)
	svc := f.newService(f.newEngine(newFakeCategorizer(matchFirst(1, 0.9)), testEngineConfig()), 0)

	done, err := svc.SubmitJob(f.ctx, f.tenantID, SubmitJobRequest{ItemIDs: items, FrameworkIDs: []uuid.UUID{f.framework.ID}})
	require.NoError(t, err)
	f.waitStored(done.ID)
	pending := f.newJob(items)

	n, err := svc.CleanupFinished(f.ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.GetJob(f.ctx, f.tenantID, done.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.GetJob(f.ctx, f.tenantID, pending.ID)
	assert.NoError(t, err)
}

func TestToProgressResponse(t *testing.T) {
	assert.Equal(t, 0, ToProgressResponse(categorization.Progress{}).Percent)
	assert.Equal(t, 33, ToProgressResponse(categorization.Progress{Total: 3, Processed: 1, Succeeded: 1}).Percent)
}
