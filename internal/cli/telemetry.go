package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/crmarques/declagate/internal/cli/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	otlpEndpointEnvVar       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	otlpTracesEndpointEnvVar = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	tracingShutdownTimeout   = 5 * time.Second
)

// setupTracing installs an OTLP/gRPC tracer provider when an exporter
// endpoint is configured in the environment. Without one the global no-op
// provider stays in place. The returned function flushes pending spans.
func setupTracing(ctx context.Context) (func(), error) {
	if !tracingConfigured() {
		return func() {}, nil
	}

	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", "declagate"),
			attribute.String("service.version", version.Version),
		)),
	)
	otel.SetTracerProvider(provider)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}

func tracingConfigured() bool {
	return strings.TrimSpace(os.Getenv(otlpEndpointEnvVar)) != "" ||
		strings.TrimSpace(os.Getenv(otlpTracesEndpointEnvVar)) != ""
}
