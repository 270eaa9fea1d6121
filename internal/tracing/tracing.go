// Package tracing wires the gateway's OpenTelemetry TracerProvider (C13):
// ratio-based sampling by default, with errors and slow spans always kept
// regardless of the configured ratio.
package tracing

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/avolkov/docgraph/internal/config"
)

const defaultSlowSpanThreshold = 500 * time.Millisecond

// Provider wraps the process-wide TracerProvider and a named Tracer for
// the gateway's own spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
	logger *slog.Logger
}

// Init builds and installs the global TracerProvider per cfg. When
// cfg.Enabled is false it installs a no-op tracer so callers never need
// to branch on whether tracing is configured.
func Init(ctx context.Context, cfg config.TracingConfig, environment string, logger *slog.Logger) (*Provider, error) {
	logger = logger.With("component", "tracing")
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "docgraph"
	}

	if !cfg.Enabled {
		logger.Info("tracing disabled, installing no-op tracer")
		return &Provider{tracer: otel.Tracer(serviceName), logger: logger}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, err
	}

	batcher := sdktrace.NewBatchSpanProcessor(exporter)
	gated := newTailProcessor(batcher, sampleRatio(cfg.SampleRatio), cfg.AlwaysSampleErrors, defaultSlowSpanThreshold)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(gated),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled", "endpoint", cfg.Endpoint, "sample_ratio", cfg.SampleRatio)
	return &Provider{tp: tp, tracer: tp.Tracer(serviceName), logger: logger}, nil
}

func sampleRatio(ratio float64) float64 {
	if ratio <= 0 {
		return 0.1
	}
	return ratio
}

// Shutdown flushes buffered spans and tears down the exporter connection.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the gateway's named tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Start begins a span under the gateway's tracer.
func (p *Provider) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, opts...)
}

// RecordError marks span as errored, triggering the always-sample-errors
// override in the tail processor regardless of the configured ratio.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
