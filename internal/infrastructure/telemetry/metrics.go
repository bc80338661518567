package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/curricula/backend/internal/infrastructure/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
)

// MeterProvider owns the SDK meter provider and its OTLP reader
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   config.TelemetryConfig
}

func (mp *MeterProvider) start(ctx context.Context, res *resource.Resource) error {
	interval := mp.config.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(mp.config.CollectorEndpoint)}
	if mp.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	mp.provider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp.provider)
	mp.logger.Debug("Metric reader started", zap.Duration("interval", interval))
	return nil
}

// Shutdown exports what is buffered and stops the reader
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	return shutdownWithTimeout(ctx, "meter", mp.provider.Shutdown)
}

// Meter returns a named meter
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether metrics leave the process
func (mp *MeterProvider) IsEnabled() bool {
	return mp.config.Enabled && mp.provider != nil
}

// Instruments creates instruments on one meter and keeps the first error,
// so a group of instruments is checked once with Err.
type Instruments struct {
	meter metric.Meter
	err   error
}

// NewInstruments returns a builder for meter
func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

// Err returns the first instrument creation error
func (in *Instruments) Err() error {
	return in.err
}

func (in *Instruments) fail(name string, err error) {
	if in.err == nil {
		in.err = fmt.Errorf("instrument %s: %w", name, err)
	}
}

// Counter is a monotonic int64 sum
type Counter struct {
	c metric.Int64Counter
}

// Counter creates a counter; it returns nil after an earlier failure
func (in *Instruments) Counter(name, description, unit string) *Counter {
	if in.err != nil {
		return nil
	}
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail(name, err)
		return nil
	}
	return &Counter{c: c}
}

// Add adds n
func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Inc adds one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram is a float64 distribution, recorded in seconds for durations
type Histogram struct {
	h metric.Float64Histogram
}

// Histogram creates a histogram with explicit bucket boundaries
func (in *Instruments) Histogram(name, description, unit string, buckets ...float64) *Histogram {
	if in.err != nil {
		return nil
	}
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if err != nil {
		in.fail(name, err)
		return nil
	}
	return &Histogram{h: h}
}

// RecordDuration records d in seconds
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.h.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// Gauge holds the last recorded int64 value per attribute set
type Gauge struct {
	g metric.Int64Gauge
}

// Gauge creates a gauge
func (in *Instruments) Gauge(name, description, unit string) *Gauge {
	if in.err != nil {
		return nil
	}
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail(name, err)
		return nil
	}
	return &Gauge{g: g}
}

// Record sets the current value
func (g *Gauge) Record(ctx context.Context, v int64, attrs ...attribute.KeyValue) {
	g.g.Record(ctx, v, metric.WithAttributes(attrs...))
}

// UpDownCounter is an int64 sum that may decrease
type UpDownCounter struct {
	c metric.Int64UpDownCounter
}

// UpDownCounter creates an up-down counter
func (in *Instruments) UpDownCounter(name, description, unit string) *UpDownCounter {
	if in.err != nil {
		return nil
	}
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail(name, err)
		return nil
	}
	return &UpDownCounter{c: c}
}

// Add adds n, which may be negative
func (c *UpDownCounter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Attribute keys shared by the service's instruments
var (
	AttrTenantID    = attribute.Key("tenant_id")
	AttrFrameworkID = attribute.Key("framework_id")
	AttrJobStatus   = attribute.Key("job_status")
	AttrOutcome     = attribute.Key("outcome")
	AttrErrorKind   = attribute.Key("error_kind")
	AttrDecision    = attribute.Key("decision")

	AttrHTTPMethod     = attribute.Key("http_method")
	AttrHTTPRoute      = attribute.Key("http_route")
	AttrHTTPStatusCode = attribute.Key("http_status_code")
)

var (
	// HTTPDurationBuckets covers API latencies in seconds
	HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	// CategorizeDurationBuckets covers categorizer calls, which run for seconds
	CategorizeDurationBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}
)

const defaultMetricsInterval = time.Minute
