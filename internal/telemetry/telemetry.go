// Package telemetry wires OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName scopes the tracer and meter.
const InstrumentationName = "github.com/dgnsrekt/textcast-go"

// Settings selects exporters.
type Settings struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	OTLPInsecure bool
	// StdoutTraces prints spans when no OTLP endpoint is configured.
	StdoutTraces bool
}

// Telemetry holds the installed providers.
type Telemetry struct {
	// MetricsHandler serves the Prometheus exposition; nil when disabled.
	MetricsHandler http.Handler
	Meter          metric.Meter
	Tracer         trace.Tracer

	shutdown func(context.Context) error
}

// Setup installs global tracer and meter providers. When disabled it
// returns no-op instruments and no handler.
func Setup(ctx context.Context, s Settings, logger *slog.Logger) (*Telemetry, error) {
	if !s.Enabled {
		return &Telemetry{
			Meter:    noop.NewMeterProvider().Meter(InstrumentationName),
			Tracer:   otel.Tracer(InstrumentationName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(s.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	tp, err := initTracer(ctx, s, res, logger)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	mp, handler, err := initMetrics(res, logger)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)

	return &Telemetry{
		MetricsHandler: handler,
		Meter:          mp.Meter(InstrumentationName),
		Tracer:         tp.Tracer(InstrumentationName),
		shutdown: func(ctx context.Context) error {
			return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
		},
	}, nil
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

func initTracer(ctx context.Context, s Settings, res *resource.Resource, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch endpoint := strings.TrimSpace(s.OTLPEndpoint); {
	case endpoint != "":
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if s.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, clientOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("telemetry initialized", "exporter", "otlp", "endpoint", endpoint)
	case s.StdoutTraces:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("telemetry initialized", "exporter", "stdout")
	default:
		logger.Info("telemetry initialized", "exporter", "none")
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func initMetrics(res *resource.Resource, logger *slog.Logger) (*sdkmetric.MeterProvider, http.Handler, error) {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", "error", err)
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), nil, nil
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
