// Package trace builds the OpenTelemetry tracer handed to the dispatcher.
// Each export call becomes one "wasm.call" span carrying an event per
// state of the call cycle.
package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultEndpoint is the local zipkin collector.
const DefaultEndpoint = "http://localhost:9411/api/v2/spans"

const (
	exportTimeout   = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

// Config selects whether and where call spans are exported.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// SampleRate is the fraction of root calls traced; >= 1 traces all of
	// them, <= 0 none. Calls under a sampled parent span are always traced.
	SampleRate float64 `yaml:"sample_rate"`
	// Endpoint is the zipkin collector URL. Empty means DefaultEndpoint.
	Endpoint string `yaml:"endpoint"`
	AppName  string `yaml:"app_name"`
	Version  string `yaml:"version"`
}

// Option adjusts the provider built by New.
type Option func(*settings)

type settings struct {
	attrs      []attribute.KeyValue
	processors []sdktrace.SpanProcessor
}

// WithAttributes adds resource attributes, such as the engine name, to
// every exported span.
func WithAttributes(kv ...attribute.KeyValue) Option {
	return func(s *settings) { s.attrs = append(s.attrs, kv...) }
}

// WithSpanProcessor registers p next to the zipkin exporter.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(s *settings) { s.processors = append(s.processors, p) }
}

// Tracer is an OpenTelemetry tracer that owns its provider.
type Tracer struct {
	oteltrace.Tracer
	provider *sdktrace.TracerProvider
}

// Close flushes pending spans and stops the provider. It is a no-op for a
// disabled tracer.
func (t *Tracer) Close() error {
	if t.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return t.provider.Shutdown(ctx)
}

// New returns a tracer exporting to zipkin, or a no-op tracer when tracing
// is disabled.
func New(cfg Config, opts ...Option) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{Tracer: oteltrace.NewNoopTracerProvider().Tracer(cfg.AppName)}, nil
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	exporter, err := zipkin.New(endpoint)
	if err != nil {
		return nil, err
	}

	attrs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.AppName),
		semconv.ServiceVersionKey.String(cfg.Version),
	}, s.attrs...)

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter, sdktrace.WithExportTimeout(exportTimeout)),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	for _, p := range s.processors {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(p))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	return &Tracer{Tracer: provider.Tracer(cfg.AppName), provider: provider}, nil
}
