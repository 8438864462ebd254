// Package telemetry installs the tracer provider for a CLI run and writes
// the metrics registry when the run ends.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aonanj/citation-verifier/internal/model"
)

// Shutdown flushes spans, writes the metrics file, and releases files
type Shutdown func(ctx context.Context) error

// Setup installs an SDK tracer provider exporting JSON spans to
// cfg.TraceFile ("-" is stderr). Without a trace file the global no-op
// provider stays in place. When cfg.MetricsFile is set, Shutdown writes
// gatherer to it in the Prometheus text format.
func Setup(cfg model.TelemetryConfig, version string, gatherer prometheus.Gatherer) (Shutdown, error) {
	var shutdownFuncs []func(context.Context) error

	if cfg.TraceFile != "" {
		w, closeTrace, err := openTraceFile(cfg.TraceFile)
		if err != nil {
			return nil, err
		}

		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			_ = closeTrace(context.Background())
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}

		res := resource.NewWithAttributes(
			"",
			attribute.String("service.name", "citeverify"),
			attribute.String("service.version", version),
		)
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)

		// Spans are flushed before the file closes
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown, closeTrace)
	}

	if cfg.MetricsFile != "" {
		path := cfg.MetricsFile
		shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
			return WriteMetrics(path, gatherer)
		})
	}

	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}

// WriteMetrics writes every metric family gatherer collects to path
func WriteMetrics(path string, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

func openTraceFile(path string) (io.Writer, func(context.Context) error, error) {
	if path == "-" {
		return os.Stderr, func(context.Context) error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, func(context.Context) error { return f.Close() }, nil
}
