package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withRecorder installs an in-memory tracer for the duration of the test.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	mu.Lock()
	prevTracer, prevEnabled := tracer, enabled
	tracer, enabled = provider.Tracer(instrumentationName), true
	mu.Unlock()

	t.Cleanup(func() {
		mu.Lock()
		tracer, enabled = prevTracer, prevEnabled
		mu.Unlock()
		_ = provider.Shutdown(context.Background())
	})
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "objectloader", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	// Spans are no-ops and carry no ids.
	spanCtx, span := StartSpan(ctx, SpanLoaderTraverse, RootID("r"))
	defer span.End()
	assert.Empty(t, TraceID(spanCtx))
	assert.Empty(t, SpanID(spanCtx))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestSpanAttributesAndErrors(t *testing.T) {
	rec := withRecorder(t)
	ctx := context.Background()

	spanCtx, span := StartSpan(ctx, SpanCacheRead, Queue("cache-reader"), BatchSize(3))
	assert.NotEmpty(t, TraceID(spanCtx))
	assert.NotEmpty(t, SpanID(spanCtx))

	AddEvent(spanCtx, "lookup", CacheResult(2, 1)...)
	RecordError(spanCtx, nil)
	EndSpan(span, errors.New("store closed"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, SpanCacheRead, got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "store closed", got.Status().Description)
	assert.Contains(t, got.Attributes(), attribute.String(AttrQueue, "cache-reader"))
	assert.Contains(t, got.Attributes(), attribute.Int(AttrBatchSize, 3))

	var names []string
	for _, ev := range got.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "lookup")
}

func TestEndSpanSuccess(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartSpan(context.Background(), SpanDownloadRoot, StreamID("s"), ObjectID("o"))
	EndSpan(span, nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestValidateProfileTypes(t *testing.T) {
	assert.NoError(t, ValidateProfileTypes(DefaultProfileTypes))
	assert.NoError(t, ValidateProfileTypes(ProfileTypeNames()))
	assert.Len(t, ProfileTypeNames(), 10)

	err := ValidateProfileTypes([]string{"cpu", "heap"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heap")
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	_, err := InitProfiling(ProfilingConfig{Enabled: true, Endpoint: "http://localhost:4040", ProfileTypes: []string{"heap"}})
	assert.Error(t, err)
	assert.False(t, IsProfilingEnabled())
}

type markerKey struct{}

func TestWithProfileLabelsDisabled(t *testing.T) {
	ctx := context.WithValue(context.Background(), markerKey{}, "marker")
	var got context.Context
	WithProfileLabels(ctx, func(c context.Context) { got = c }, "session_id", "s1")
	assert.Equal(t, ctx, got)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}
