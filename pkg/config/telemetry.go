package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/version"
)

const stdoutEndpoint = "stdout"

type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// SetupTelemetry installs global trace and meter providers.
// TelemetryEndpoint "stdout" prints to console, otherwise OTLP/gRPC is used.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "pitwall"),
		attribute.String("service.version", version.Version),
	)
	traceExporter, err := newTraceExporter(ctx)
	if err != nil {
		return nil, err
	}
	metricExporter, err := newMetricExporter(ctx)
	if err != nil {
		return nil, errors.Join(err, traceExporter.Shutdown(ctx))
	}
	t := &Telemetry{
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		),
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(15*time.Second))),
			sdkmetric.WithResource(res),
		),
	}
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
	return t, nil
}

func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		log.Warn("could not shutdown tracer provider", log.ErrorField(err))
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		log.Warn("could not shutdown meter provider", log.ErrorField(err))
	}
}

func newTraceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if TelemetryEndpoint == stdoutEndpoint {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(TelemetryEndpoint),
		otlptracegrpc.WithInsecure())
}

func newMetricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	if TelemetryEndpoint == stdoutEndpoint {
		return stdoutmetric.New()
	}
	return otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
		otlpmetricgrpc.WithInsecure())
}
