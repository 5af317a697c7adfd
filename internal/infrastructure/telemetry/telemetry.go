// Package telemetry wires OpenTelemetry traces, metrics and logs plus
// Pyroscope profiling for the sync service.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/marketsync/internal/infrastructure/config"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported as service.version on every signal.
const ServiceVersion = "1.0.0"

const shutdownTimeout = 10 * time.Second

// Providers groups every telemetry signal started from one TelemetryConfig.
type Providers struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
}

// Setup starts the providers enabled in cfg. Disabled signals get no-op
// providers so callers never need nil checks.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Providers{}

	res := newResource(cfg.ServiceName)

	var err error
	p.Tracer, err = NewTracerProvider(ctx, cfg, res, logger)
	if err != nil {
		return nil, err
	}
	p.Meter, err = NewMeterProvider(ctx, cfg, res, logger)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	p.Logs, err = NewLoggerProvider(ctx, cfg, res, logger)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	p.Profiler, err = NewProfiler(cfg, logger)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	// Span profiles need a running profiler.
	if p.Profiler.IsEnabled() {
		p.Tracer.EnableSpanProfiles()
	}

	return p, nil
}

// Shutdown flushes and stops every provider, joining their errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Logs != nil {
		errs = append(errs, p.Logs.Shutdown(ctx))
	}
	if p.Profiler != nil {
		errs = append(errs, p.Profiler.Stop())
	}
	return errors.Join(errs...)
}

func newResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(ServiceVersion),
	)
}
