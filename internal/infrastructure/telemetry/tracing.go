package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans
const TracerName = "curricula-backend"

// Span-only attribute keys; the keys shared with metrics live in metrics.go
const (
	AttrJobID          = attribute.Key("job_id")
	AttrItemID         = attribute.Key("item_id")
	AttrCandidateCount = attribute.Key("candidate_count")
	AttrMatchCount     = attribute.Key("match_count")
	AttrModel          = attribute.Key("llm.model")
)

func JobID(id uuid.UUID) attribute.KeyValue    { return AttrJobID.String(id.String()) }
func TenantID(id uuid.UUID) attribute.KeyValue { return AttrTenantID.String(id.String()) }
func ItemID(id uuid.UUID) attribute.KeyValue   { return AttrItemID.String(id.String()) }

// StartSpan starts an internal span on the global provider; the caller ends it.
//
//	ctx, span := telemetry.StartSpan(ctx, "categorization.process_item", telemetry.ItemID(id))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartServiceSpan names the span "<service>.<op>"
func StartServiceSpan(ctx context.Context, service, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+op, attrs...)
}

// RecordError marks span failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id of the span in ctx, empty without one.
func TraceID(ctx context.Context) string {
	if id := trace.SpanContextFromContext(ctx).TraceID(); id.IsValid() {
		return id.String()
	}
	return ""
}
