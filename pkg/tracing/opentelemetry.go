package tracing

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	tcr "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	endpointEnv   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	samplerArgEnv = "OTEL_TRACES_SAMPLER_ARG"
)

var (
	once        sync.Once
	initialized bool
	tp          *trace.TracerProvider
)

// Init sets the global OTLP tracer provider. Sampling is parent-based with
// the ratio from OTEL_TRACES_SAMPLER_ARG (default 0.1); spans ship to
// OTEL_EXPORTER_OTLP_ENDPOINT over insecure gRPC.
func Init() {
	if initialized {
		log.Warn().Msg("tracing already initialized")
		return
	}
	once.Do(func() {
		ctx := context.Background()

		serviceName := viper.GetString("APP_NAME")
		if serviceName == "" {
			log.Fatal().Msg("APP_NAME cannot be empty")
		}
		collectorURL := os.Getenv(endpointEnv)
		if collectorURL == "" {
			log.Fatal().Msg(endpointEnv + " is not set")
		}

		viper.SetDefault(samplerArgEnv, 0.1)
		samplingRatio := viper.GetFloat64(samplerArgEnv)

		tp = trace.NewTracerProvider(
			trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(samplingRatio))),
			trace.WithBatcher(newExporter(ctx, collectorURL)),
			trace.WithResource(newResource(ctx, serviceName)),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

		log.Info().
			Str("collectorURL", collectorURL).
			Str("serviceName", serviceName).
			Float64("samplingRatio", samplingRatio).
			Msg("tracer initialized")
		initialized = true
	})
}

func newExporter(ctx context.Context, collectorURL string) *otlptrace.Exporter {
	exporter, err := otlptrace.New(ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(collectorURL),
		),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create otlp trace exporter")
	}
	return exporter
}

func newResource(ctx context.Context, serviceName string) *resource.Resource {
	resources, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("telemetry.sdk.language", "go"),
			attribute.String("telemetry.sdk.version", "v1.34.0"),
		),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create otel resource")
	}
	return resources
}

// GetTracer returns a tracer scoped to name, conventionally the importing
// package path. Before Init it falls back to a noop tracer.
func GetTracer(name string) tcr.Tracer {
	if tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return tp.Tracer(name)
}

func ShutdownTracer() {
	log.Info().Msg("Tracer shutting down...")
	if tp == nil {
		log.Warn().Msg("tracer provider not initialized, nothing to shut down")
		return
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to shutdown tracer provider")
		return
	}
	log.Info().Msg("tracer shutdown complete")
}
