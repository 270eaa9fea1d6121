package tracing

import (
	"context"
	"encoding/binary"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// tailProcessor wraps an exporting SpanProcessor and decides, once a span
// has ended (and its duration/status are known), whether to actually
// forward it downstream. Sampling decisions in the OTel SDK are normally
// made at span-start via a Sampler, before an error or a slow duration
// could possibly be known — so the always-sample-errors/slow-span
// override this gateway wants can only be implemented at span end, not
// at the Sampler interface. Every span is recorded locally (the
// TracerProvider uses an AlwaysSample root sampler) and this processor
// is the actual gate deciding what reaches the exporter.
type tailProcessor struct {
	next          sdktrace.SpanProcessor
	ratio         float64
	alwaysErrors  bool
	slowThreshold time.Duration
}

func newTailProcessor(next sdktrace.SpanProcessor, ratio float64, alwaysErrors bool, slowThreshold time.Duration) *tailProcessor {
	return &tailProcessor{next: next, ratio: ratio, alwaysErrors: alwaysErrors, slowThreshold: slowThreshold}
}

func (p *tailProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	p.next.OnStart(ctx, s)
}

func (p *tailProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if p.shouldKeep(s) {
		p.next.OnEnd(s)
	}
}

func (p *tailProcessor) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

func (p *tailProcessor) ForceFlush(ctx context.Context) error {
	return p.next.ForceFlush(ctx)
}

func (p *tailProcessor) shouldKeep(s sdktrace.ReadOnlySpan) bool {
	if p.alwaysErrors && s.Status().Code == codes.Error {
		return true
	}
	if p.slowThreshold > 0 && s.EndTime().Sub(s.StartTime()) >= p.slowThreshold {
		return true
	}
	return deterministicKeep(s, p.ratio)
}

// deterministicKeep derives a stable keep/drop decision from the trace
// ID so every span belonging to the same trace is sampled consistently.
func deterministicKeep(s sdktrace.ReadOnlySpan, ratio float64) bool {
	if ratio >= 1 {
		return true
	}
	if ratio <= 0 {
		return false
	}
	traceID := s.SpanContext().TraceID()
	upper := binary.BigEndian.Uint64(traceID[:8])
	threshold := uint64(ratio * float64(^uint64(0)))
	return upper < threshold
}
