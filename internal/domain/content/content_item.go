package content

import (
	"strings"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemType classifies the body format of a content item
type ItemType string

const (
	ItemTypeLecture    ItemType = "lecture"
	ItemTypeReading    ItemType = "reading"
	ItemTypeAssessment ItemType = "assessment"
	ItemTypeVideo      ItemType = "video"
	ItemTypeCase       ItemType = "case"
	ItemTypeHTML       ItemType = "html"
)

// IsValid checks if the ItemType is a known value
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeLecture, ItemTypeReading, ItemTypeAssessment, ItemTypeVideo, ItemTypeCase, ItemTypeHTML:
		return true
	}
	return false
}

// String returns the string representation of ItemType
func (t ItemType) String() string {
	return string(t)
}

// Item is a piece of educational content to be categorized. Its identity is
// immutable; title, description, body and type are the categorization input.
type Item struct {
	shared.TenantAggregateRoot
	Title       string
	Description string
	Body        string
	Type        ItemType
}

// NewItem creates a content item
func NewItem(tenantID uuid.UUID, title, description, body string, itemType ItemType) (*Item, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewValidationError("Content title cannot be empty")
	}
	if !itemType.IsValid() {
		return nil, shared.NewValidationError("Invalid content type: " + itemType.String())
	}
	return &Item{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Title:               title,
		Description:         strings.TrimSpace(description),
		Body:                body,
		Type:                itemType,
	}, nil
}

// HasText reports whether the item carries anything to categorize
func (i *Item) HasText() bool {
	return strings.TrimSpace(i.Title+i.Description+i.Body) != ""
}
