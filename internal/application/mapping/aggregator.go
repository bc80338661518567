// Package mapping turns categorizer matches into persisted content mappings
// and keeps coverage counters in step with them.
package mapping

import (
	"context"
	"math"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultConfidenceThreshold is the minimum confidence a mapping needs
const DefaultConfidenceThreshold = 0.6

// CoverageRecorder counts accepted pairs; recording a known pair is a no-op
type CoverageRecorder interface {
	RecordPair(ctx context.Context, tenantID, frameworkID uuid.UUID, key content.MappingKey) (bool, error)
}

// ApplyResult summarizes one Apply call
type ApplyResult struct {
	Accepted  int // matches written as AI mappings
	Rejected  int // below threshold, out of range or not a candidate
	Preserved int // slot held by a manual mapping
	NewPairs  int // pairs coverage had not seen before
}

// Aggregator applies categorizer matches for one content item
type Aggregator struct {
	mappings  content.MappingRepository
	coverage  CoverageRecorder
	threshold float64
	logger    *zap.Logger
}

// NewAggregator creates an Aggregator. A threshold outside (0, 1] falls back
// to DefaultConfidenceThreshold.
func NewAggregator(mappings content.MappingRepository, coverage CoverageRecorder, threshold float64, logger *zap.Logger) *Aggregator {
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultConfidenceThreshold
	}
	return &Aggregator{
		mappings:  mappings,
		coverage:  coverage,
		threshold: threshold,
		logger:    logger.Named("mapping-aggregator"),
	}
}

// Threshold returns the confidence threshold in effect
func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// Apply filters matches against the threshold and the candidate set the
// categorizer was shown, then upserts the survivors by (content, objective).
// Calling Apply again with the same input leaves the same rows and counters,
// so a failed call can be retried as a whole. Storage failures are returned
// as persistence errors.
func (a *Aggregator) Apply(
	ctx context.Context,
	tenantID, contentID uuid.UUID,
	matches []categorization.Match,
	candidates []*standards.Objective,
) (ApplyResult, error) {
	var res ApplyResult

	byID := make(map[uuid.UUID]*standards.Objective, len(candidates))
	for _, o := range candidates {
		byID[o.ID] = o
	}

	seen := make(map[uuid.UUID]struct{}, len(matches))
	for _, m := range matches {
		objective, ok := byID[m.ObjectiveID]
		if !ok || !a.acceptable(m.Confidence) {
			res.Rejected++
			continue
		}
		if _, dup := seen[m.ObjectiveID]; dup {
			res.Rejected++
			continue
		}
		seen[m.ObjectiveID] = struct{}{}

		mapping, err := content.NewAIMapping(tenantID, contentID, objective.ID, objective.FrameworkID, m.Confidence, m.Reasoning)
		if err != nil {
			res.Rejected++
			continue
		}

		outcome, err := a.mappings.Upsert(ctx, mapping)
		if err != nil {
			return res, shared.NewPersistenceError("upsert mapping", err)
		}
		switch outcome {
		case content.UpsertPreservedManual:
			res.Preserved++
		default:
			res.Accepted++
		}

		added, err := a.coverage.RecordPair(ctx, tenantID, objective.FrameworkID, mapping.Key())
		if err != nil {
			return res, shared.NewPersistenceError("record coverage", err)
		}
		if added {
			res.NewPairs++
		}
	}

	a.logger.Debug("Matches applied",
		zap.String("tenant_id", tenantID.String()),
		zap.String("content_id", contentID.String()),
		zap.Int("accepted", res.Accepted),
		zap.Int("rejected", res.Rejected),
		zap.Int("preserved", res.Preserved),
		zap.Int("new_pairs", res.NewPairs),
	)
	return res, nil
}

func (a *Aggregator) acceptable(confidence float64) bool {
	return content.ValidateConfidence(confidence) == nil && confidence >= a.threshold
}
