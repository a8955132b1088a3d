package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

const defaultSampleRatio = 0.1

// OtelConfig selects the trace exporter. With Enabled false the global
// provider is left alone and every span is a no-op. An empty Endpoint
// exports to stdout, which is only useful while developing.
type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string

	Endpoint string
	Insecure bool
	Headers  map[string]string
	// Fraction of root spans kept; clamped to [0,1]. Zero means the default.
	SampleRatio float64
}

func (c OtelConfig) sampler() sdktrace.Sampler {
	ratio := c.SampleRatio
	switch {
	case ratio <= 0:
		ratio = defaultSampleRatio
	case ratio > 1:
		ratio = 1
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func (c OtelConfig) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if c.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(c.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(c.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider once per process and returns
// its shutdown func, or nil when tracing is disabled. Exporter or resource
// failures are logged and tracing continues with what could be built.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		if log == nil {
			log = logger.Nop()
		}
		service := strings.TrimSpace(cfg.ServiceName)
		if service == "" {
			service = "storykeep"
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
			semconv.ServiceVersionKey.String(cfg.Version),
			attribute.String("deployment.environment", cfg.Environment),
		))
		if err != nil {
			log.Warn("otel resource incomplete", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(cfg.sampler()),
			sdktrace.WithResource(res),
		}
		exp, err := cfg.exporter(ctx)
		switch {
		case err != nil:
			log.Warn("otel exporter unavailable, spans will be dropped", "error", err)
		default:
			opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)))
		}

		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		log.Info("otel tracing enabled", "service", service, "endpoint", cfg.Endpoint)
	})
	return otelShutdown
}

// Tracer returns a tracer from the global provider; spans are no-ops until
// InitOTel enables tracing.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
