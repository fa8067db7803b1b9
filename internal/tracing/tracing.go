// Package tracing sets up the OpenTelemetry tracer provider used to trace task runs.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InstrumentationName is the name of the tracers created by the application.
const InstrumentationName = "github.com/slok/tasknotify"

// ProviderConfig is the configuration for the tracer provider.
type ProviderConfig struct {
	// Writer is where the spans are written as JSON.
	Writer         io.Writer
	ServiceName    string
	ServiceVersion string
	// PrettyPrint indents the written spans.
	PrettyPrint bool
}

func (c *ProviderConfig) defaults() error {
	if c.Writer == nil {
		return fmt.Errorf("writer is required")
	}

	if c.ServiceName == "" {
		c.ServiceName = "tasknotify"
	}

	if c.ServiceVersion == "" {
		c.ServiceVersion = "dev"
	}

	return nil
}

// NewStdoutProvider returns a tracer provider that writes every ended span to a writer.
// The caller must shut it down to flush the pending spans.
func NewStdoutProvider(cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(cfg.Writer)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

// Shutdown flushes and stops a tracer provider.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not shutdown tracer provider: %w", err)
	}
	return nil
}
