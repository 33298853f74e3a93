// Package telemetry wires OpenTelemetry tracing and Prometheus metrics
// around the orchestrator, grounded on the teacher's
// pkg/observability/tracer.go and pkg/observability/metrics.go, trimmed
// to the concerns this module actually has: games, decisions, opponent
// calls.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig controls whether and where spans are exported.
type TracerConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL  string  `yaml:"endpoint_url" mapstructure:"endpoint_url"`
	SamplingRate float64 `yaml:"sampling_rate" mapstructure:"sampling_rate"`
	ServiceName  string  `yaml:"service_name" mapstructure:"service_name"`
}

// InitGlobalTracer installs a TracerProvider as the global default and
// returns it. When disabled it installs a no-op provider so callers never
// need to branch on whether tracing is active.
func InitGlobalTracer(ctx context.Context, cfg TracerConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.EndpointURL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer off the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
