package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/coverage"
	"github.com/curricula/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of categorization metrics
const MeterName = "curricula-backend/categorization"

// CategorizationMetrics records the categorization engine's throughput.
// Job and item totals are fed from job events so each finished job is counted
// once even if the engine retries persistence; per-call figures are recorded
// directly by the engine.
type CategorizationMetrics struct {
	jobsFinished       *Counter
	itemsProcessed     *Counter
	itemFailures       *Counter
	categorizeDuration *Histogram
	mappings           *Counter
	coveragePercent    *Gauge
}

// NewCategorizationMetrics creates the instruments on meter
func NewCategorizationMetrics(meter metric.Meter) (*CategorizationMetrics, error) {
	in := NewInstruments(meter)
	m := &CategorizationMetrics{
		jobsFinished: in.Counter("categorization_jobs_finished_total",
			"Categorization jobs that reached a terminal status", "{job}"),
		itemsProcessed: in.Counter("categorization_items_processed_total",
			"Content items processed by finished jobs", "{item}"),
		itemFailures: in.Counter("categorization_item_failures_total",
			"Content items that could not be categorized", "{item}"),
		categorizeDuration: in.Histogram("categorization_categorize_duration_seconds",
			"Latency of single categorizer calls", "s", CategorizeDurationBuckets...),
		mappings: in.Counter("categorization_mappings_total",
			"Suggested mappings by aggregation decision", "{mapping}"),
		coveragePercent: in.Gauge("coverage_percentage",
			"Share of a framework's objectives with at least one mapping", "%"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCategorize records one categorizer call. kind is empty on success.
func (m *CategorizationMetrics) RecordCategorize(ctx context.Context, d time.Duration, kind categorization.ErrorKind) {
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	m.categorizeDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordMappings records the aggregation decisions for one item
func (m *CategorizationMetrics) RecordMappings(ctx context.Context, accepted, rejected, preserved int) {
	if accepted > 0 {
		m.mappings.Add(ctx, int64(accepted), AttrDecision.String("accepted"))
	}
	if rejected > 0 {
		m.mappings.Add(ctx, int64(rejected), AttrDecision.String("rejected"))
	}
	if preserved > 0 {
		m.mappings.Add(ctx, int64(preserved), AttrDecision.String("preserved"))
	}
}

// RecordCoverage publishes a framework's current coverage percentage
func (m *CategorizationMetrics) RecordCoverage(ctx context.Context, c coverage.Counter) {
	m.coveragePercent.Record(ctx, int64(c.Percentage()),
		AttrTenantID.String(c.TenantID.String()),
		AttrFrameworkID.String(c.FrameworkID.String()),
	)
}

// EventTypes implements shared.EventHandler
func (m *CategorizationMetrics) EventTypes() []string {
	return []string{categorization.EventTypeJobFinished, categorization.EventTypeJobItemFailed}
}

// Handle implements shared.EventHandler
func (m *CategorizationMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *categorization.JobFinishedEvent:
		m.jobsFinished.Inc(ctx, AttrJobStatus.String(e.Status.String()))
		if e.Progress.Succeeded > 0 {
			m.itemsProcessed.Add(ctx, int64(e.Progress.Succeeded), AttrOutcome.String("succeeded"))
		}
		if e.Progress.Failed > 0 {
			m.itemsProcessed.Add(ctx, int64(e.Progress.Failed), AttrOutcome.String("failed"))
		}
	case *categorization.JobItemFailedEvent:
		m.itemFailures.Inc(ctx, AttrErrorKind.String(string(e.Failure.Kind)))
	default:
		return fmt.Errorf("categorization metrics: unexpected event %s", event.EventType())
	}
	return nil
}
