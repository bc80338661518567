// Package telemetry wires OpenTelemetry tracing, metrics and the zap log
// bridge for the categorization service.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curricula/backend/internal/infrastructure/config"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Providers bundles the three signal providers so cmd/server can start and
// stop them together. With telemetry disabled each one is inert and hands
// out the global no-op implementation.
type Providers struct {
	Tracer *TracerProvider
	Meter  *MeterProvider
	Logs   *LoggerProvider
}

type setupOptions struct {
	version string
}

type SetupOption func(*setupOptions)

// WithServiceVersion sets service.version on the exported resource
func WithServiceVersion(v string) SetupOption {
	return func(o *setupOptions) { o.version = v }
}

// Setup builds the trace, metric and log pipelines against the OTLP gRPC
// collector in cfg. A failure part way tears down what was already started.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger, opts ...SetupOption) (*Providers, error) {
	o := setupOptions{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Providers{
		Tracer: &TracerProvider{logger: logger, config: cfg},
		Meter:  &MeterProvider{logger: logger, config: cfg},
		Logs:   &LoggerProvider{logger: logger, config: cfg},
	}
	if !cfg.Enabled {
		logger.Info("Telemetry disabled, using no-op providers")
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(o.version),
	))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	starts := []func(context.Context, *resource.Resource) error{
		p.Tracer.start,
		p.Meter.start,
		p.Logs.start,
	}
	for _, start := range starts {
		if err := start(ctx, res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
	}

	logger.Info("OpenTelemetry export enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return p, nil
}

// Shutdown flushes every provider. Logs go last so shutdown messages are
// still exported.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Tracer.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Logs.Shutdown(ctx),
	)
}

// shutdownWithTimeout bounds a provider flush by shutdownTimeout
func shutdownWithTimeout(ctx context.Context, what string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("shutdown %s provider: %w", what, err)
	}
	return nil
}
