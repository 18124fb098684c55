package observability_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/observability"
)

func emitSpan(t *testing.T, filter sdktrace.SpanProcessor, attrs ...attribute.KeyValue) {
	t.Helper()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(filter))
	defer func() { require.NoError(t, tp.Shutdown(context.Background())) }()

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attrs...)
	span.End()
}

func TestAttributeFilter_AllowsKnownPrefixes(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	delegate := sdktrace.NewSimpleSpanProcessor(exporter)
	filter := observability.NewAttributeFilter(delegate, nil)

	emitSpan(t, filter,
		attribute.String("newprstack.group_id", "g1"),
		attribute.String("phase.name", "c4_partition"),
		attribute.Int("hits", 3),
	)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spans[0].Attributes
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}

	assert.Contains(t, keys, "newprstack.group_id")
	assert.Contains(t, keys, "phase.name")
	assert.Contains(t, keys, "hits")
}

func TestAttributeFilter_StripsBlockedKeysAndPrefixes(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	delegate := sdktrace.NewSimpleSpanProcessor(exporter)
	filter := observability.NewAttributeFilter(delegate, nil)

	emitSpan(t, filter,
		attribute.String("user.name", "alice"),
		attribute.String("email", "alice@example.com"),
		attribute.String("request.body", "{}"),
		attribute.String("newprstack.group_id", "g1"),
	)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spans[0].Attributes
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}

	assert.NotContains(t, keys, "user.name")
	assert.NotContains(t, keys, "email")
	assert.NotContains(t, keys, "request.body")
	assert.Contains(t, keys, "newprstack.group_id")
}

func TestAttributeFilter_StripsUnknownKeys(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	delegate := sdktrace.NewSimpleSpanProcessor(exporter)
	filter := observability.NewAttributeFilter(delegate, nil)

	emitSpan(t, filter, attribute.String("totally.unrelated.key", "x"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Empty(t, spans[0].Attributes)
}

func TestAttributeFilter_LogsBlockedAttributes(t *testing.T) {
	t.Parallel()

	var handler testHandler

	logger := slog.New(&handler)

	exporter := tracetest.NewInMemoryExporter()
	delegate := sdktrace.NewSimpleSpanProcessor(exporter)
	filter := observability.NewAttributeFilter(delegate, logger)

	emitSpan(t, filter, attribute.String("email", "bob@example.com"))

	assert.True(t, handler.warned)
}

type testHandler struct {
	warned bool
}

func (h *testHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelWarn {
		h.warned = true
	}

	return nil
}

func (h *testHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *testHandler) WithGroup(_ string) slog.Handler { return h }
