// Package observability wires OpenTelemetry trace export into Genkit.
//
// Genkit instruments every model call, embedding and flow with spans on
// its own TracerProvider. This package registers an OTLP HTTP exporter on
// that provider so the spans reach a local collector (Datadog Agent,
// Grafana Alloy, the OTel Collector — anything speaking OTLP/HTTP on
// localhost). The collector handles authentication, buffering and
// forwarding; the application never holds backend credentials.
//
// # Configuration
//
// Tracing is opt-in: an empty Config.Endpoint leaves the provider
// untouched and Setup returns a no-op shutdown. Endpoint is a host:port
// without scheme, e.g. "localhost:4318".
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the collector's OTLP HTTP address (host:port).
	// Empty disables tracing.
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
}

// Setup registers an OTLP HTTP exporter with Genkit's TracerProvider.
// Must run before genkit.Init so the provider is ready when Genkit starts
// creating spans.
//
// The returned shutdown flushes pending spans; always call it, it is safe
// when tracing is disabled. Exporter construction failures disable tracing
// with a warning instead of failing startup.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		return noop, nil
	}

	// Genkit's TracerProvider reads service identity from the standard
	// OTEL env vars. Setup runs once during startup, before any goroutine
	// is spawned, so the Setenv calls cannot race.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("creating otlp exporter, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
