package mapping

import (
	"context"
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

func TestCurator_Pin(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	tenantID := uuid.New()

	frameworks := persistence.NewGormFrameworkRepository(db)
	objectives := persistence.NewGormObjectiveRepository(db)
	items := persistence.NewGormContentItemRepository(db)
	mappings := persistence.NewGormContentMappingRepository(db)
	recorder := newRecorderStub()
	curator := NewCurator(frameworks, objectives, items, mappings, recorder, zap.NewNop())
	agg := NewAggregator(mappings, recorder, 0.6, zap.NewNop())

	fw, err := standards.NewFramework(tenantID, standards.AreaNursing, "NCLEX", false)
	require.NoError(t, err)
	require.NoError(t, frameworks.Save(ctx, fw))
	root, err := standards.NewObjective(tenantID, fw.ID, "1", "Safe care", nil)
	require.NoError(t, err)
	mid, err := standards.NewObjective(tenantID, fw.ID, "1.2", "Infection control", &root.ID)
	require.NoError(t, err)
	leaf, err := standards.NewObjective(tenantID, fw.ID, "1.2.3", "Hand hygiene", &mid.ID)
	require.NoError(t, err)
	require.NoError(t, objectives.SaveBatch(ctx, []*standards.Objective{root, mid, leaf}))

	item, err := content.NewItem(tenantID, "Hygiene", "", "Wash hands", content.ItemTypeLecture)
	require.NoError(t, err)
	require.NoError(t, items.Save(ctx, item))

	t.Run("takes over an AI mapping", func(t *testing.T) {
		_, err := agg.Apply(ctx, tenantID, item.ID, []categorization.Match{
			{ObjectiveID: leaf.ID, Confidence: 0.7, Reasoning: "model"},
		}, []*standards.Objective{root, mid, leaf})
		require.NoError(t, err)

		resp, err := curator.Pin(ctx, tenantID, item.ID, PinRequest{FrameworkID: fw.ID, ObjectiveID: leaf.ID})
		require.NoError(t, err)
		assert.False(t, resp.IsAIGenerated)
		assert.Equal(t, 1.0, resp.Confidence)
		assert.Equal(t, "1.2.3", resp.ObjectiveCode)
		assert.Equal(t, []string{"1", "1.2"}, resp.Path)
		assert.False(t, resp.NewPair, "pair was already counted by the AI mapping")

		// categorization no longer overwrites the pinned pair
		res, err := agg.Apply(ctx, tenantID, item.ID, []categorization.Match{
			{ObjectiveID: leaf.ID, Confidence: 0.9},
		}, []*standards.Objective{leaf})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Preserved)
	})

	t.Run("new pair on a root objective", func(t *testing.T) {
		resp, err := curator.Pin(ctx, tenantID, item.ID, PinRequest{FrameworkID: fw.ID, ObjectiveID: root.ID})
		require.NoError(t, err)
		assert.True(t, resp.NewPair)
		assert.Empty(t, resp.Path)

		stored, err := mappings.FindByKey(ctx, tenantID, content.MappingKey{ContentID: item.ID, ObjectiveID: root.ID})
		require.NoError(t, err)
		assert.False(t, stored.IsAIGenerated)
	})

	t.Run("rejections", func(t *testing.T) {
		other, err := standards.NewFramework(uuid.New(), standards.AreaNursing, "Foreign", false)
		require.NoError(t, err)
		require.NoError(t, frameworks.Save(ctx, other))

		tests := []struct {
			name    string
			content uuid.UUID
			req     PinRequest
			want    error
		}{
			{"unknown content", uuid.New(), PinRequest{FrameworkID: fw.ID, ObjectiveID: leaf.ID}, shared.ErrNotFound},
			{"objective outside framework", item.ID, PinRequest{FrameworkID: fw.ID, ObjectiveID: uuid.New()}, shared.ErrNotFound},
			{"framework of another tenant", item.ID, PinRequest{FrameworkID: other.ID, ObjectiveID: leaf.ID}, shared.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := curator.Pin(ctx, tenantID, tt.content, tt.req)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("inactive framework", func(t *testing.T) {
		retired, err := standards.NewFramework(tenantID, standards.AreaNursing, "Retired", false)
		require.NoError(t, err)
		require.NoError(t, retired.Deactivate())
		require.NoError(t, frameworks.Save(ctx, retired))

		_, err = curator.Pin(ctx, tenantID, item.ID, PinRequest{FrameworkID: retired.ID, ObjectiveID: leaf.ID})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
