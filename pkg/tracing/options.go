package tracing

import (
	"io"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by WithExporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Option applies a configuration option to the Provider.
type Option func(*Provider)

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.serviceName = name
		}
	}
}

// WithExporter selects the span exporter by name.
func WithExporter(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.exporter = name
		}
	}
}

// WithEndpoint sets the OTLP/HTTP collector host:port.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		if endpoint != "" {
			p.endpoint = endpoint
		}
	}
}

// WithSampleRatio sets the root sampling ratio, clamped to [0, 1].
func WithSampleRatio(ratio float64) Option {
	return func(p *Provider) {
		switch {
		case ratio < 0:
			p.sampleRatio = 0
		case ratio > 1:
			p.sampleRatio = 1
		default:
			p.sampleRatio = ratio
		}
	}
}

// WithWriter sets the destination of the stdout exporter.
func WithWriter(w io.Writer) Option {
	return func(p *Provider) {
		if w != nil {
			p.writer = w
		}
	}
}

// WithSpanProcessor registers an additional span processor, e.g. a
// tracetest.SpanRecorder in tests.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(p *Provider) {
		if sp != nil {
			p.processors = append(p.processors, sp)
		}
	}
}

// WithGlobal controls whether Init installs the provider and propagator as
// the otel globals. Defaults to true.
func WithGlobal(global bool) Option {
	return func(p *Provider) {
		p.global = global
	}
}
