// Package coverage serves per-framework coverage from the materialized
// counter store and keeps that store seeded from persisted mappings.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/coverage"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultReconcileParallelism = 4

// Metrics receives coverage gauges after rebuilds
type Metrics interface {
	RecordCoverage(ctx context.Context, c coverage.Counter)
}

// Option customizes a Service
type Option func(*Service)

// WithMetrics records coverage percentages on rebuild
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service is the coverage read model
type Service struct {
	store      coverage.Store
	frameworks standards.FrameworkRepository
	objectives standards.ObjectiveRepository
	mappings   content.MappingRepository
	metrics    Metrics
	logger     *zap.Logger
}

// NewService creates a coverage Service
func NewService(
	store coverage.Store,
	frameworks standards.FrameworkRepository,
	objectives standards.ObjectiveRepository,
	mappings content.MappingRepository,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		frameworks: frameworks,
		objectives: objectives,
		mappings:   mappings,
		logger:     logger.Named("coverage-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCoverage returns one framework's coverage. A framework the store has
// not seen yet is seeded first.
func (s *Service) GetCoverage(ctx context.Context, tenantID, frameworkID uuid.UUID) (*CoverageResponse, error) {
	fw, err := s.frameworks.FindByIDForTenant(ctx, tenantID, frameworkID)
	if err != nil {
		return nil, err
	}
	c, err := s.counter(ctx, tenantID, frameworkID)
	if err != nil {
		return nil, err
	}
	resp := ToCoverageResponse(fw, c)
	return &resp, nil
}

// ListCoverage returns the coverage of every framework of the tenant
func (s *Service) ListCoverage(ctx context.Context, tenantID uuid.UUID) ([]CoverageResponse, error) {
	frameworks, err := s.frameworks.FindAllForTenant(ctx, tenantID, standards.FrameworkFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]CoverageResponse, 0, len(frameworks))
	for _, fw := range frameworks {
		c, err := s.counter(ctx, tenantID, fw.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ToCoverageResponse(fw, c))
	}
	return out, nil
}

func (s *Service) counter(ctx context.Context, tenantID, frameworkID uuid.UUID) (coverage.Counter, error) {
	c, ok, err := s.store.Get(ctx, tenantID, frameworkID)
	if err != nil {
		return coverage.Counter{}, fmt.Errorf("read coverage: %w", err)
	}
	if ok {
		return c, nil
	}
	if err := s.EnsureSeeded(ctx, tenantID, frameworkID); err != nil {
		return coverage.Counter{}, err
	}
	c, _, err = s.store.Get(ctx, tenantID, frameworkID)
	if err != nil {
		return coverage.Counter{}, fmt.Errorf("read coverage: %w", err)
	}
	return c, nil
}

// EnsureSeeded loads a framework into the store unless it is already there
func (s *Service) EnsureSeeded(ctx context.Context, tenantID, frameworkID uuid.UUID) error {
	has, err := s.store.Has(ctx, tenantID, frameworkID)
	if err != nil {
		return fmt.Errorf("check coverage seed: %w", err)
	}
	if has {
		return nil
	}
	seed, err := s.loadSeed(ctx, tenantID, frameworkID)
	if err != nil {
		return err
	}
	if _, err := s.store.Seed(ctx, seed, false); err != nil {
		return fmt.Errorf("seed coverage: %w", err)
	}
	return nil
}

// Rebuild replaces a framework's counter with one recomputed from persisted
// mappings. Pairs the store recorded while the mappings were being read are
// merged into the new counter.
func (s *Service) Rebuild(ctx context.Context, tenantID, frameworkID uuid.UUID) (coverage.Counter, error) {
	seed, err := s.loadSeed(ctx, tenantID, frameworkID)
	if err != nil {
		return coverage.Counter{}, err
	}
	if _, err := s.store.Seed(ctx, seed, true); err != nil {
		return coverage.Counter{}, fmt.Errorf("seed coverage: %w", err)
	}
	c, _, err := s.store.Get(ctx, tenantID, frameworkID)
	if err != nil {
		return coverage.Counter{}, fmt.Errorf("read coverage: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordCoverage(ctx, c)
	}
	return c, nil
}

// RecordPair counts an accepted (content, objective) pair. It is idempotent:
// a pair already known leaves the counter unchanged.
func (s *Service) RecordPair(ctx context.Context, tenantID, frameworkID uuid.UUID, key content.MappingKey) (bool, error) {
	added, err := s.store.AddPair(ctx, tenantID, frameworkID, key)
	if errors.Is(err, coverage.ErrNotSeeded) {
		if err := s.EnsureSeeded(ctx, tenantID, frameworkID); err != nil {
			return false, err
		}
		added, err = s.store.AddPair(ctx, tenantID, frameworkID, key)
	}
	if err != nil {
		return false, fmt.Errorf("record coverage pair: %w", err)
	}
	return added, nil
}

// ReconcileAll rebuilds every active framework of every tenant and returns
// how many were rebuilt. Failures are collected, not fatal.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	return s.forEachActiveFramework(ctx, func(ctx context.Context, tenantID, frameworkID uuid.UUID) error {
		_, err := s.Rebuild(ctx, tenantID, frameworkID)
		return err
	})
}

// WarmUp seeds every active framework that the store does not hold yet
func (s *Service) WarmUp(ctx context.Context) (int, error) {
	return s.forEachActiveFramework(ctx, s.EnsureSeeded)
}

func (s *Service) forEachActiveFramework(ctx context.Context, fn func(ctx context.Context, tenantID, frameworkID uuid.UUID) error) (int, error) {
	tenants, err := s.frameworks.ListTenantIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	var (
		mu   sync.Mutex
		done int
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(defaultReconcileParallelism)

	for _, tenantID := range tenants {
		frameworks, err := s.frameworks.FindAllForTenant(ctx, tenantID, standards.FrameworkFilter{OnlyActive: true})
		if err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		for _, fw := range frameworks {
			tenantID, frameworkID := tenantID, fw.ID
			g.Go(func() error {
				err := fn(ctx, tenantID, frameworkID)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					s.logger.Warn("Coverage refresh failed",
						zap.String("tenant_id", tenantID.String()),
						zap.String("framework_id", frameworkID.String()),
						zap.Error(err),
					)
					errs = append(errs, fmt.Errorf("framework %s: %w", frameworkID, err))
					return nil
				}
				done++
				return nil
			})
		}
	}
	_ = g.Wait()

	return done, errors.Join(errs...)
}

func (s *Service) loadSeed(ctx context.Context, tenantID, frameworkID uuid.UUID) (coverage.Seed, error) {
	total, err := s.objectives.CountByFramework(ctx, tenantID, frameworkID)
	if err != nil {
		return coverage.Seed{}, fmt.Errorf("count objectives: %w", err)
	}
	keys, err := s.mappings.ListKeysByFramework(ctx, tenantID, frameworkID)
	if err != nil {
		return coverage.Seed{}, fmt.Errorf("list mapped pairs: %w", err)
	}
	return coverage.Seed{
		TenantID:        tenantID,
		FrameworkID:     frameworkID,
		TotalObjectives: int(total),
		Keys:            keys,
	}, nil
}
