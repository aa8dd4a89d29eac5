// Package telemetry bootstraps tracing and holds the Prometheus metrics.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
)

const defaultTracesEndpoint = "http://localhost:4318/v1/traces"

// exporterTarget splits OTEL_EXPORTER_OTLP_TRACES_ENDPOINT into host, path and
// transport security. Both a full URL and a bare host:port are accepted.
func exporterTarget(raw string) (endpoint, path string, insecure bool) {
	if raw == "" {
		raw = defaultTracesEndpoint
	}
	endpoint, path, insecure = "localhost:4318", "/v1/traces", true
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil {
			if u.Host != "" {
				endpoint = u.Host
			}
			if u.Path != "" {
				path = u.Path
			}
			insecure = u.Scheme == "http"
		}
		return endpoint, path, insecure
	}
	return raw, path, insecure
}

// InitTracer installs a global OTLP/HTTP tracer provider and returns its
// shutdown function.
func InitTracer(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	logger := xlog.WithComponent("telemetry")

	endpoint, path, insecure := exporterTarget(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"))
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithURLPath(path),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().Str("endpoint", endpoint).Str("path", path).Msg("OpenTelemetry initialized")
	return tp.Shutdown, nil
}
