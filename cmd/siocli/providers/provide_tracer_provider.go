package providers

import (
	"context"

	"github.com/gbdevw/gowsio/cmd/siocli/configuration"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

func ProvideTracerProvider(lc fx.Lifecycle, config configuration.Configuration) (trace.TracerProvider, error) {
	if !config.TracingEnabled {
		// Global tracer provider is a no-op tracer provider unless configured
		return otel.GetTracerProvider(), nil
	}
	// Configure OTLP exporter
	exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(config.TracingEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("gowsio.siocli"),
		)),
	)
	otel.SetTracerProvider(tp)
	// Flush pending spans on exit
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}
