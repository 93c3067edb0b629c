// Package tracing configures OpenTelemetry span export and W3C context
// propagation for the service.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by this module's packages.
const InstrumentationName = "github.com/okian/pricetrace"

// Provider owns the SDK tracer provider and its exporter.
type Provider struct {
	serviceName string
	exporter    string
	endpoint    string
	sampleRatio float64
	writer      io.Writer
	processors  []sdktrace.SpanProcessor
	global      bool

	tp *sdktrace.TracerProvider
}

// Init builds a tracer provider from opts. Unless WithGlobal(false) is given,
// the provider and a TraceContext+Baggage propagator become the otel globals.
func Init(ctx context.Context, opts ...Option) (*Provider, error) {
	p := &Provider{
		serviceName: "pricetrace",
		exporter:    ExporterNone,
		endpoint:    "localhost:4318",
		sampleRatio: 1.0,
		writer:      os.Stdout,
		global:      true,
	}
	for _, opt := range opts {
		opt(p)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", p.serviceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.sampleRatio))),
	}

	exp, err := p.newExporter(ctx)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	for _, sp := range p.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	p.tp = sdktrace.NewTracerProvider(tpOpts...)
	if p.global {
		otel.SetTracerProvider(p.tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}
	return p, nil
}

func (p *Provider) newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(p.exporter) {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(p.writer))
		if err != nil {
			return nil, fmt.Errorf("%w: stdout: %w", ErrExporterInit, err)
		}
		return exp, nil
	case ExporterOTLP:
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(p.endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: otlp: %w", ErrExporterInit, err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, p.exporter)
	}
}

// Tracer returns a named tracer from this provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns a tracer from the global provider. Packages call this at
// span start so a provider installed later by Init is honoured.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
