// Package telemetry installs the OpenTelemetry tracer provider used by the
// reconciler's spans.
//
// Without an endpoint nothing is installed and spans go to the global
// no-op provider. With one, spans are batched and exported over OTLP/HTTP.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "cv-container"

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup exports spans to endpoint (an OTLP/HTTP URL such as
// http://localhost:4318) and makes the provider global. An empty endpoint
// leaves tracing disabled.
func Setup(ctx context.Context, endpoint, version string) (ShutdownFunc, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noopShutdown, fmt.Errorf("create OTLP exporter for %s: %w", endpoint, err)
	}

	provider := NewProvider(sdktrace.WithBatcher(exporter), version)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// NewProvider builds a tracer provider tagged with the service name and
// version, sending spans through processor.
func NewProvider(processor sdktrace.TracerProviderOption, version string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(processor, sdktrace.WithResource(res))
}
