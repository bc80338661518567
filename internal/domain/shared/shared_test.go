package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewNotFoundError("Framework not found")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrValidation))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load job: %w", NewValidationError("item_ids must not be empty"))
		assert.True(t, errors.Is(err, ErrValidation))

		var de *DomainError
		assert.True(t, errors.As(err, &de))
		assert.Equal(t, CodeValidation, de.Code)
		assert.Equal(t, "item_ids must not be empty", de.Message)
	})

	t.Run("persistence error keeps cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewPersistenceError("upsert mapping", cause)
		assert.True(t, errors.Is(err, ErrPersistence))
		assert.True(t, errors.Is(err, cause))
		assert.Contains(t, err.Error(), "upsert mapping")
	})
}

func TestTenantAggregateRoot(t *testing.T) {
	tenantID := uuid.New()
	root := NewTenantAggregateRoot(tenantID)

	assert.NotEqual(t, uuid.Nil, root.ID)
	assert.Equal(t, 1, root.GetVersion())
	assert.True(t, root.BelongsTo(tenantID))
	assert.False(t, root.BelongsTo(uuid.New()))

	root.AddDomainEvent(&testEvent{BaseDomainEvent: NewBaseDomainEvent("Test", "Agg", root.ID, tenantID)})
	assert.Len(t, root.GetDomainEvents(), 1)
	root.ClearDomainEvents()
	assert.Empty(t, root.GetDomainEvents())
}

type testEvent struct {
	BaseDomainEvent
}
