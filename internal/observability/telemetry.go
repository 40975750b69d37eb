package observability

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Version is reported as the service.version resource attribute.
var Version = "dev"

const shutdownTimeout = 5 * time.Second

// Config selects where storefront spans go.
type Config struct {
	Enabled     bool
	Exporter    string  // "otlp-http" (alias "otlp") or "noop"
	Endpoint    string  // host:port, or a full http(s) URL for the OTLP collector
	ServiceName string  // service.name resource attribute
	SampleRate  float64 // root span sampling ratio; 1 samples everything
}

// provider is the installed tracing state. A disabled provider carries a
// noop tracer and no SDK provider.
type provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

var current atomic.Pointer[provider]

func init() {
	current.Store(disabled())
}

func disabled() *provider {
	return &provider{tracer: noop.NewTracerProvider().Tracer("storefront")}
}

// Init installs tracing for the process. With Enabled false every span is
// a noop and carries no IDs.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		swap(disabled())
		return nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "storefront"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(name),
		semconv.ServiceVersion(Version),
	))
	if err != nil {
		return fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	swap(&provider{sdk: tp, tracer: tp.Tracer(name)})
	return nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "otlp-http", "otlp":
		var opts []otlptracehttp.Option
		switch {
		case strings.HasPrefix(cfg.Endpoint, "http://"), strings.HasPrefix(cfg.Endpoint, "https://"):
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		case cfg.Endpoint != "":
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
		return exp, nil
	case "noop":
		return discardExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

// sampler follows the caller's sampling decision for propagated traces and
// samples new root spans at rate.
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// swap installs p and shuts down the provider it replaces.
func swap(p *provider) {
	old := current.Swap(p)
	if old != nil && old.sdk != nil && old != p {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = old.sdk.Shutdown(ctx)
	}
}

// Shutdown flushes pending spans and falls back to the noop tracer.
func Shutdown(ctx context.Context) error {
	old := current.Swap(disabled())
	if old.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return old.sdk.Shutdown(ctx)
}

// Tracer returns the installed tracer.
func Tracer() trace.Tracer {
	return current.Load().tracer
}

// Enabled reports whether spans are recorded.
func Enabled() bool {
	return current.Load().sdk != nil
}

// discardExporter drops spans. Tracing stays on, so spans still carry IDs
// for log correlation.
type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (discardExporter) Shutdown(context.Context) error { return nil }
