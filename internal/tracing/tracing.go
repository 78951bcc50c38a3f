// Package tracing sets up a single OTel tracer provider and a
// StartOperationSpan helper for spans around a catalog operation or
// object-store round trip (SPEC_FULL.md §5). The catalog and object-store
// packages do not call StartOperationSpan, so the app only sets up and
// shuts down the provider. The package is trimmed to exporter setup plus
// span creation: no adaptive sampling or on-demand controller,
// since the catalog's five operations and one I/O boundary don't need
// the kind of tuning a multi-stage log pipeline does.
package tracing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider.
type Config struct {
	Enabled     bool
	ServiceName string
	Exporter    string // "jaeger", "otlp", "console"
	Endpoint    string
	SampleRate  float64
}

// DefaultConfig returns a disabled tracer: tracing stays opt-in.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "icedb-catalog",
		Exporter:    "otlp",
		Endpoint:    "http://localhost:4318/v1/traces",
		SampleRate:  1.0,
	}
}

// Manager owns the tracer provider and exposes a tracer for span
// creation.
type Manager struct {
	config   Config
	logger   *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewManager builds a tracer provider (or a no-op tracer if disabled).
func NewManager(config Config, logger *logrus.Logger) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config, logger: logger, tracer: otel.Tracer("noop")}, nil
	}

	m := &Manager{config: config, logger: logger}
	exporter, err := m.createExporter()
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(config.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	m.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(config.SampleRate)),
	)
	otel.SetTracerProvider(m.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	m.tracer = otel.Tracer(config.ServiceName)

	m.logger.WithFields(logrus.Fields{
		"exporter": config.Exporter,
		"endpoint": config.Endpoint,
	}).Info("tracing initialized")
	return m, nil
}

func (m *Manager) createExporter() (trace.SpanExporter, error) {
	switch m.config.Exporter {
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(m.config.Endpoint)))
	case "otlp":
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(m.config.Endpoint),
		))
	case "console":
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint("http://localhost:4318"),
			otlptracehttp.WithInsecure(),
		))
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", m.config.Exporter)
	}
}

// StartOperationSpan starts a span named after a catalog operation
// (insert, merge, remove, rewrite, collect) or an object-store round
// trip, and returns the child context plus the span for the caller to
// End() and annotate.
func (m *Manager) StartOperationSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return m.tracer.Start(ctx, name)
}

// Shutdown flushes and stops the tracer provider.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.Shutdown(ctx)
	}
	return nil
}
