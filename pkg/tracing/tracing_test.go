package tracing_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/okian/pricetrace/pkg/tracing"
	"github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestProviderInit(t *testing.T) {
	convey.Convey("Given a provider with a span recorder", t, func() {
		ctx := context.Background()
		recorder := tracetest.NewSpanRecorder()
		p, err := tracing.Init(ctx,
			tracing.WithGlobal(false),
			tracing.WithServiceName("pricetrace-test"),
			tracing.WithSpanProcessor(recorder),
		)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = p.Shutdown(ctx) }()

		convey.Convey("When a span is started and ended", func() {
			_, span := p.Tracer("test").Start(ctx, "byPriceMVC")
			span.End()

			convey.Convey("Then the recorder should see it with the service resource", func() {
				ended := recorder.Ended()
				convey.So(len(ended), convey.ShouldEqual, 1)
				convey.So(ended[0].Name(), convey.ShouldEqual, "byPriceMVC")

				var service string
				for _, kv := range ended[0].Resource().Attributes() {
					if kv.Key == "service.name" {
						service = kv.Value.AsString()
					}
				}
				convey.So(service, convey.ShouldEqual, "pricetrace-test")
			})
		})
	})
}

func TestProviderGlobals(t *testing.T) {
	convey.Convey("Given a provider installed as the otel global", t, func() {
		ctx := context.Background()
		recorder := tracetest.NewSpanRecorder()
		p, err := tracing.Init(ctx, tracing.WithSpanProcessor(recorder))
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = p.Shutdown(ctx) }()

		convey.Convey("When injecting context with the global propagator", func() {
			spanCtx, span := tracing.Tracer().Start(ctx, "chainingPriceReactive")
			defer span.End()
			header := http.Header{}
			otel.GetTextMapPropagator().Inject(spanCtx, propagation.HeaderCarrier(header))

			convey.Convey("Then a W3C traceparent header should carry the trace id", func() {
				convey.So(header.Get("traceparent"), convey.ShouldContainSubstring, span.SpanContext().TraceID().String())
			})
		})
	})
}

func TestProviderSampling(t *testing.T) {
	convey.Convey("Given a provider that samples nothing", t, func() {
		ctx := context.Background()
		recorder := tracetest.NewSpanRecorder()
		p, err := tracing.Init(ctx,
			tracing.WithGlobal(false),
			tracing.WithSampleRatio(-1),
			tracing.WithSpanProcessor(recorder),
		)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = p.Shutdown(ctx) }()

		_, span := p.Tracer("test").Start(ctx, "dropped")
		span.End()

		convey.Convey("Then root spans should not be recorded", func() {
			convey.So(span.SpanContext().IsSampled(), convey.ShouldBeFalse)
			convey.So(len(recorder.Ended()), convey.ShouldEqual, 0)
		})
	})
}

func TestProviderExporters(t *testing.T) {
	convey.Convey("Given exporter selection", t, func() {
		ctx := context.Background()

		convey.Convey("When the stdout exporter is selected", func() {
			var buf bytes.Buffer
			p, err := tracing.Init(ctx,
				tracing.WithGlobal(false),
				tracing.WithExporter(tracing.ExporterStdout),
				tracing.WithWriter(&buf),
			)
			convey.So(err, convey.ShouldBeNil)

			_, span := p.Tracer("test").Start(ctx, "byPriceReactive")
			span.End()
			convey.So(p.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then spans should be written on shutdown", func() {
				convey.So(buf.String(), convey.ShouldContainSubstring, "byPriceReactive")
			})
		})

		convey.Convey("When an unknown exporter is selected", func() {
			p, err := tracing.Init(ctx, tracing.WithGlobal(false), tracing.WithExporter("zipkin"))

			convey.Convey("Then Init should fail with ErrUnknownExporter", func() {
				convey.So(p, convey.ShouldBeNil)
				convey.So(errors.Is(err, tracing.ErrUnknownExporter), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down a nil provider", func() {
			var p *tracing.Provider

			convey.Convey("Then it should be a no-op", func() {
				convey.So(p.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})
}
