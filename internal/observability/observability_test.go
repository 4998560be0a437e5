package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/couchcryptid/flood-impact-engine/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "water_level", 2.5)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.InDelta(t, 2.5, line["water_level"], 0)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("hello", "city", "tokyo")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "city=tokyo")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()

	m.Exports.WithLabelValues("file", "success").Inc()
	m.DatasetCache.WithLabelValues("hit").Add(2)
	m.CachedDatasets.Set(3)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("file", "success")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.DatasetCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.CachedDatasets), 0)

	// A second instance must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := initTracing(context.Background(), &config.Config{}, &bytes.Buffer{}, discard())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer(TracerName).Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracing_Stdout(t *testing.T) {
	var out bytes.Buffer
	cfg := &config.Config{
		TracingEnabled:     true,
		TracingExporter:    "stdout",
		TracingServiceName: "flood-test",
		TracingSampleRatio: 1,
	}

	shutdown, err := initTracing(context.Background(), cfg, &out, discard())
	require.NoError(t, err)

	_, span := otel.Tracer(TracerName).Start(context.Background(), "flood.simulate")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, discard())
	assert.Contains(t, out.String(), "flood.simulate")

	otel.SetTracerProvider(noop.NewTracerProvider())
}

func TestInitTracing_UnsupportedExporter(t *testing.T) {
	cfg := &config.Config{TracingEnabled: true, TracingExporter: "zipkin"}

	_, err := initTracing(context.Background(), cfg, &bytes.Buffer{}, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zipkin")
}
