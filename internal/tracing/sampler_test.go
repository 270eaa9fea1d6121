package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingProcessor struct {
	ended []sdktrace.ReadOnlySpan
}

func (r *recordingProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {}
func (r *recordingProcessor) OnEnd(s sdktrace.ReadOnlySpan)                        { r.ended = append(r.ended, s) }
func (r *recordingProcessor) Shutdown(ctx context.Context) error                   { return nil }
func (r *recordingProcessor) ForceFlush(ctx context.Context) error                 { return nil }

func newTestSpan(t *testing.T, tp *sdktrace.TracerProvider, name string, errored bool, duration time.Duration) {
	t.Helper()
	_, span := tp.Tracer("test").Start(context.Background(), name)
	if errored {
		span.SetStatus(codes.Error, "boom")
	}
	if duration > 0 {
		time.Sleep(duration)
	}
	span.End()
}

func TestTailProcessor_AlwaysKeepsErrorSpans(t *testing.T) {
	rec := &recordingProcessor{}
	gated := newTailProcessor(rec, 0, true, time.Hour)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()), sdktrace.WithSpanProcessor(gated))
	defer tp.Shutdown(context.Background())

	newTestSpan(t, tp, "errored", true, 0)
	require.Len(t, rec.ended, 1)
	assert.Equal(t, codes.Error, rec.ended[0].Status().Code)
}

func TestTailProcessor_DropsNonErrorBelowRatio(t *testing.T) {
	rec := &recordingProcessor{}
	gated := newTailProcessor(rec, 0, true, time.Hour)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()), sdktrace.WithSpanProcessor(gated))
	defer tp.Shutdown(context.Background())

	newTestSpan(t, tp, "ok", false, 0)
	assert.Empty(t, rec.ended, "ratio 0 with no error/slow override should drop the span")
}

func TestTailProcessor_KeepsAllAtRatioOne(t *testing.T) {
	rec := &recordingProcessor{}
	gated := newTailProcessor(rec, 1, false, time.Hour)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()), sdktrace.WithSpanProcessor(gated))
	defer tp.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		newTestSpan(t, tp, "ok", false, 0)
	}
	assert.Len(t, rec.ended, 5)
}

func TestTailProcessor_KeepsSlowSpans(t *testing.T) {
	rec := &recordingProcessor{}
	gated := newTailProcessor(rec, 0, false, 5*time.Millisecond)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()), sdktrace.WithSpanProcessor(gated))
	defer tp.Shutdown(context.Background())

	newTestSpan(t, tp, "slow", false, 10*time.Millisecond)
	require.Len(t, rec.ended, 1)
}
