package mapping

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/curricula/backend/internal/infrastructure/persistence"
	"github.com/curricula/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorderStub struct {
	mu    sync.Mutex
	pairs map[content.MappingKey]struct{}
	err   error
}

func newRecorderStub() *recorderStub {
	return &recorderStub{pairs: make(map[content.MappingKey]struct{})}
}

func (r *recorderStub) RecordPair(_ context.Context, _, _ uuid.UUID, key content.MappingKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.pairs[key]; ok {
		return false, nil
	}
	r.pairs[key] = struct{}{}
	return true, nil
}

func candidates(n int) []*standards.Objective {
	fwID := uuid.New()
	out := make([]*standards.Objective, n)
	for i := range out {
		out[i] = &standards.Objective{ID: uuid.New(), FrameworkID: fwID, Code: string(rune('A' + i))}
	}
	return out
}

func TestNewAggregator_Threshold(t *testing.T) {
	for _, th := range []float64{0, -1, 1.5, math.NaN()} {
		assert.Equal(t, DefaultConfidenceThreshold, NewAggregator(nil, nil, th, zap.NewNop()).Threshold())
	}
	assert.Equal(t, 0.8, NewAggregator(nil, nil, 0.8, zap.NewNop()).Threshold())
}

func TestAggregator_Apply(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := persistence.NewGormContentMappingRepository(db)
	recorder := newRecorderStub()
	agg := NewAggregator(repo, recorder, 0.6, zap.NewNop())
	ctx := context.Background()

	tenantID := uuid.New()
	contentID := uuid.New()
	cands := candidates(4)

	matches := []categorization.Match{
		{ObjectiveID: cands[0].ID, Confidence: 0.9, Reasoning: "strong"},
		{ObjectiveID: cands[1].ID, Confidence: 0.6, Reasoning: "at threshold"},
		{ObjectiveID: cands[2].ID, Confidence: 0.3, Reasoning: "weak"},
		{ObjectiveID: cands[0].ID, Confidence: 0.7, Reasoning: "duplicate"},
		{ObjectiveID: uuid.New(), Confidence: 0.99, Reasoning: "not offered"},
		{ObjectiveID: cands[3].ID, Confidence: 1.2, Reasoning: "out of range"},
	}

	t.Run("filters and upserts", func(t *testing.T) {
		res, err := agg.Apply(ctx, tenantID, contentID, matches, cands)
		require.NoError(t, err)
		assert.Equal(t, ApplyResult{Accepted: 2, Rejected: 4, NewPairs: 2}, res)

		stored, err := repo.FindByContent(ctx, tenantID, contentID)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, cands[0].ID, stored[0].ObjectiveID)
		assert.Equal(t, "strong", stored[0].Reasoning)
		assert.True(t, stored[0].IsAIGenerated)
		assert.Equal(t, cands[0].FrameworkID, stored[0].FrameworkID)
	})

	t.Run("reapplying is idempotent", func(t *testing.T) {
		res, err := agg.Apply(ctx, tenantID, contentID, matches, cands)
		require.NoError(t, err)
		assert.Equal(t, ApplyResult{Accepted: 2, Rejected: 4}, res)

		stored, err := repo.FindByContent(ctx, tenantID, contentID)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("manual mappings are preserved", func(t *testing.T) {
		manual := content.NewManualMapping(tenantID, contentID, cands[3].ID, cands[3].FrameworkID)
		require.NoError(t, repo.SaveManual(ctx, manual))

		res, err := agg.Apply(ctx, tenantID, contentID, []categorization.Match{
			{ObjectiveID: cands[3].ID, Confidence: 0.95, Reasoning: "model agrees"},
		}, cands)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Preserved)
		assert.Zero(t, res.Accepted)

		found, err := repo.FindByKey(ctx, tenantID, manual.Key())
		require.NoError(t, err)
		assert.False(t, found.IsAIGenerated)
	})

	t.Run("coverage errors are persistence errors", func(t *testing.T) {
		recorder.err = errors.New("redis down")
		defer func() { recorder.err = nil }()

		_, err := agg.Apply(ctx, tenantID, uuid.New(), matches[:1], cands)
		assert.ErrorIs(t, err, shared.ErrPersistence)
	})
}

func TestAggregator_EmptyMatches(t *testing.T) {
	agg := NewAggregator(nil, newRecorderStub(), 0.6, zap.NewNop())
	res, err := agg.Apply(context.Background(), uuid.New(), uuid.New(), nil, candidates(2))
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{}, res)
}
