// Package standards serves the framework catalog: grouped listings, objective
// trees and framework deactivation.
package standards

import (
	"context"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Service handles standards framework queries and commands
type Service struct {
	frameworks standards.FrameworkRepository
	objectives standards.ObjectiveRepository
	publisher  shared.EventPublisher
	labels     standards.AreaLabels
	locale     language.Tag
	logger     *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithDefaultLocale sets the collation used when a request names no locale.
// An unparsable tag keeps English.
func WithDefaultLocale(locale string) Option {
	return func(s *Service) {
		s.locale = parseLocale(locale, language.English)
	}
}

// NewService creates a standards Service
func NewService(
	frameworks standards.FrameworkRepository,
	objectives standards.ObjectiveRepository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		frameworks: frameworks,
		objectives: objectives,
		publisher:  publisher,
		labels:     standards.DefaultAreaLabels,
		locale:     language.English,
		logger:     logger.Named("standards-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListGrouped returns the tenant's frameworks grouped by educational area,
// sorted with the collation of the requested locale (the service default
// when empty or unparsable)
func (s *Service) ListGrouped(ctx context.Context, tenantID uuid.UUID, q ListFrameworksQuery) ([]AreaGroupResponse, error) {
	frameworks, err := s.frameworks.FindAllForTenant(ctx, tenantID, standards.FrameworkFilter{
		EducationalArea: q.EducationalArea,
		OnlyActive:      q.OnlyActive,
	})
	if err != nil {
		return nil, err
	}
	return ToAreaGroupResponses(standards.GroupFrameworks(frameworks, s.labels, parseLocale(q.Locale, s.locale))), nil
}

// GetTree returns a framework with its objectives as a tree
func (s *Service) GetTree(ctx context.Context, tenantID, frameworkID uuid.UUID) (*FrameworkTreeResponse, error) {
	fw, err := s.frameworks.FindByIDForTenant(ctx, tenantID, frameworkID)
	if err != nil {
		return nil, err
	}
	objectives, err := s.objectives.FindByFramework(ctx, tenantID, frameworkID)
	if err != nil {
		return nil, err
	}
	tree, err := standards.BuildObjectiveTree(frameworkID, objectives)
	if err != nil {
		return nil, err
	}
	return &FrameworkTreeResponse{
		Framework:      ToFrameworkResponse(fw),
		ObjectiveCount: tree.Len(),
		Objectives:     ToObjectiveNodes(tree, tree.Roots()),
	}, nil
}

// Deactivate soft-deletes a framework. It stays readable but is rejected as
// job scope from now on.
func (s *Service) Deactivate(ctx context.Context, tenantID, frameworkID uuid.UUID) (*FrameworkResponse, error) {
	fw, err := s.frameworks.FindByIDForTenant(ctx, tenantID, frameworkID)
	if err != nil {
		return nil, err
	}
	if err := fw.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.frameworks.Save(ctx, fw); err != nil {
		return nil, shared.NewPersistenceError("save framework", err)
	}

	events := fw.GetDomainEvents()
	fw.ClearDomainEvents()
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish framework events", zap.String("framework_id", frameworkID.String()), zap.Error(err))
	}

	s.logger.Info("Framework deactivated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("framework_id", frameworkID.String()),
	)
	resp := ToFrameworkResponse(fw)
	return &resp, nil
}

func parseLocale(locale string, fallback language.Tag) language.Tag {
	if locale == "" {
		return fallback
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fallback
	}
	return tag
}
