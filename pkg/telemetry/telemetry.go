// Package telemetry wires OpenTelemetry tracing for the HTTP server.
package telemetry

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"docintake/pkg/config"
	"docintake/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs a global tracer provider that prints spans to w (stdout when
// nil). Disabled tracing returns a no-op shutdown.
func Init(ctx context.Context, cfg config.TracingConfig, w io.Writer, log *logger.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		return noop, nil
	}
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "docintake"
	}
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", name)))
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", name)
	return tp.Shutdown, nil
}
