package content

import (
	"context"

	"github.com/google/uuid"
)

// UpsertOutcome reports what an upsert did to the (content, objective) slot
type UpsertOutcome int

const (
	// UpsertInserted means the pair was new
	UpsertInserted UpsertOutcome = iota + 1
	// UpsertUpdated means an existing AI mapping was overwritten
	UpsertUpdated
	// UpsertPreservedManual means a manual mapping occupies the slot and was left alone
	UpsertPreservedManual
)

// String returns a readable outcome name
func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertPreservedManual:
		return "preserved_manual"
	}
	return "unknown"
}

// ItemRepository defines persistence for content items
type ItemRepository interface {
	// FindByIDsForTenant loads items by ID; unknown IDs are absent from the result
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Item, error)

	// Save inserts or updates a content item
	Save(ctx context.Context, item *Item) error
}

// MappingRepository defines persistence for content mappings
type MappingRepository interface {
	// Upsert writes an AI mapping keyed by (content, objective) atomically.
	// Existing manual mappings are preserved.
	Upsert(ctx context.Context, mapping *Mapping) (UpsertOutcome, error)

	// FindByKey returns the mapping for a (content, objective) pair
	FindByKey(ctx context.Context, tenantID uuid.UUID, key MappingKey) (*Mapping, error)

	// FindByContent lists mappings for a content item
	FindByContent(ctx context.Context, tenantID, contentID uuid.UUID) ([]*Mapping, error)

	// ListKeysByFramework returns every mapped (content, objective) pair of a framework
	ListKeysByFramework(ctx context.Context, tenantID, frameworkID uuid.UUID) ([]MappingKey, error)

	// SaveManual stores a curator mapping, replacing any AI mapping for the pair
	SaveManual(ctx context.Context, mapping *Mapping) error
}
