// Package tracing installs the OpenTelemetry tracer provider that async
// task spans are exported through.
package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	logx "regionsched/pkg/logx"
)

type Config struct {
	Enabled bool
	// Endpoint is a URL ("http://collector:4318") or a bare host:port.
	Endpoint    string
	Insecure    bool
	ServiceName string
	// SampleRatio in (0,1]; 0 samples everything.
	SampleRatio float64
}

// Setup registers a global tracer provider. When tracing is disabled or no
// endpoint is set it registers nothing and returns a no-op shutdown.
//
// The returned shutdown flushes pending spans.
func Setup(ctx context.Context, cfg Config, log logx.Logger) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if !cfg.Enabled || endpoint == "" {
		return noop, nil
	}

	var opts []otlptracehttp.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "regiond"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info("tracing enabled", logx.String("endpoint", endpoint), logx.String("service", name))
	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
