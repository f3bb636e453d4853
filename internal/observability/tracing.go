package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// TracingOptions configures the OTLP exporter and the resource attached to
// every span.
type TracingOptions struct {
	ServiceName string  // service.name resource attribute
	Environment string  // deployment.environment resource attribute
	Endpoint    string  // OTLP gRPC collector, e.g. tempo:4317
	SampleRate  float64 // Fraction of new root traces kept, 0..1
	// ProfileMode is attached to every span so traces from the two
	// affinity tables can be told apart.
	ProfileMode string
}

// InitTracing initializes OpenTelemetry tracing for the service.
//
// It exports spans over OTLP/gRPC to opts.Endpoint through a batching
// processor, installs the provider globally and registers the W3C trace
// context and baggage propagators so otelhttp can continue incoming traces.
//
// Example usage:
//
//	shutdown, err := observability.InitTracing(ctx, logger, observability.TracingOptions{
//	    ServiceName: "affinityserve",
//	    Endpoint:    "tempo:4317",
//	    SampleRate:  0.1,
//	})
//	if err != nil {
//	    return err
//	}
//	defer shutdown()
//
// The returned function flushes pending spans and shuts the provider down; it
// should be called when the application exits.
func InitTracing(ctx context.Context, logger *zap.Logger, opts TracingOptions) (func(), error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.DeploymentEnvironment(opts.Environment),
		attribute.String("affinity.profile_mode", opts.ProfileMode),
	)

	exporter, err := otlptrace.New(ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithInsecure(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(opts.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.Float64("sample_rate", opts.SampleRate))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("tracer provider shutdown", zap.Error(err))
		}
	}, nil
}

// samplerFor respects the parent decision and samples new roots at rate.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}
