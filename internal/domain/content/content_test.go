package content

import (
	"math"
	"testing"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	tenantID := uuid.New()

	item, err := NewItem(tenantID, " Cardiac cycle ", "Lecture 4", "<p>Systole</p>", ItemTypeHTML)
	require.NoError(t, err)
	assert.Equal(t, "Cardiac cycle", item.Title)
	assert.True(t, item.HasText())

	_, err = NewItem(tenantID, "", "", "", ItemTypeLecture)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewItem(tenantID, "x", "", "", ItemType("podcast"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "podcast")

	_, err = NewItem(uuid.Nil, "x", "", "", ItemTypeLecture)
	require.Error(t, err)
}

func TestNewAIMapping(t *testing.T) {
	tenantID, contentID, objectiveID, fwID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name       string
		confidence float64
		wantErr    bool
	}{
		{"lower bound", 0, false},
		{"upper bound", 1, false},
		{"typical", 0.82, false},
		{"negative", -0.1, true},
		{"above one", 1.2, true},
		{"nan", math.NaN(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewAIMapping(tenantID, contentID, objectiveID, fwID, tt.confidence, "r")
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, m.IsAIGenerated)
			assert.Equal(t, MappingKey{ContentID: contentID, ObjectiveID: objectiveID}, m.Key())
		})
	}
}

func TestManualMapping(t *testing.T) {
	m := NewManualMapping(uuid.New(), uuid.New(), uuid.New(), uuid.New())
	assert.False(t, m.IsAIGenerated)
	assert.Equal(t, 1.0, m.Confidence)
}

func TestUpsertOutcome_String(t *testing.T) {
	assert.Equal(t, "inserted", UpsertInserted.String())
	assert.Equal(t, "updated", UpsertUpdated.String())
	assert.Equal(t, "preserved_manual", UpsertPreservedManual.String())
	assert.Equal(t, "unknown", UpsertOutcome(0).String())
}
