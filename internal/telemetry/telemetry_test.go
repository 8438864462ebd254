package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/aonanj/citation-verifier/internal/model"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(model.TelemetryConfig{}, "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_MetricsFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citeverify_test_events_total",
		Help: "Events counted by the test",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	shutdown, err := Setup(model.TelemetryConfig{MetricsFile: path}, "test", reg)
	require.NoError(t, err)

	// Nothing is written until the run ends
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "citeverify_test_events_total 3")
}

func TestSetup_TraceFile(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err := Setup(model.TelemetryConfig{TraceFile: path}, "test", nil)
	require.NoError(t, err)

	_, span := otel.Tracer("citeverify.test").Start(context.Background(), "compile-document")
	span.End()

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"compile-document"`)
	assert.Contains(t, string(data), "citeverify")
}

func TestSetup_BadTracePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "spans.json")
	_, err := Setup(model.TelemetryConfig{TraceFile: path}, "test", nil)
	assert.Error(t, err)
}
