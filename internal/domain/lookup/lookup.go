// Package lookup serves restaurants by price.
//
// Both lookup forms currently ignore maxPrice and return the same fixed
// record. Callers depend on that behaviour, so it is kept as is.
package lookup

import (
	"context"

	"github.com/okian/pricetrace/internal/domain/model"
	"github.com/okian/pricetrace/internal/stream"
	"github.com/okian/pricetrace/pkg/logger"
	"github.com/okian/pricetrace/pkg/metrics"
	"github.com/okian/pricetrace/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Span names.
const (
	SpanByPriceStream = "byPriceReactive"
	SpanByPriceList   = "byPriceMVC"
)

// Fixed record served by every lookup.
const (
	defaultName  = "McDonalds"
	defaultPrice = 1.0
)

// Service looks up restaurants by maximum price per person.
type Service interface {
	// ByPriceStream returns a lazy single-subscription stream of matches.
	ByPriceStream(ctx context.Context, maxPrice float64) *stream.Stream[model.Restaurant]
	// ByPriceList returns the matches eagerly.
	ByPriceList(ctx context.Context, maxPrice float64) []model.Restaurant
}

// Option applies a configuration option to the StaticService.
type Option func(*StaticService)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *StaticService) {
		if l != nil {
			s.logger = l
		}
	}
}

// StaticService implements Service over a fixed in-memory record.
type StaticService struct {
	logger logger.Logger
}

// NewStaticService creates the lookup service.
func NewStaticService(opts ...Option) *StaticService {
	s := &StaticService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("lookup")
	}
	return s
}

func restaurants() []model.Restaurant {
	return []model.Restaurant{model.NewRestaurant(defaultName, defaultPrice)}
}

// ByPriceStream implements Service. The span starts at subscription and ends
// when the stream terminates.
func (s *StaticService) ByPriceStream(_ context.Context, maxPrice float64) *stream.Stream[model.Restaurant] {
	metrics.RecordLookup("stream")
	return stream.Create(func(subCtx context.Context, emit stream.EmitFunc[model.Restaurant]) error {
		spanCtx, span := tracing.Tracer().Start(subCtx, SpanByPriceStream)
		span.SetAttributes(attribute.Float64("max_price", maxPrice))
		defer span.End()

		s.logger.Debug(spanCtx, "inside byPrice reactive", logger.Float64("maxPrice", maxPrice))
		for _, r := range restaurants() {
			if !emit(r) {
				span.AddEvent("subscriber cancelled")
				return subCtx.Err()
			}
		}
		return nil
	})
}

// ByPriceList implements Service.
func (s *StaticService) ByPriceList(ctx context.Context, maxPrice float64) []model.Restaurant {
	metrics.RecordLookup("list")
	ctx, span := tracing.Tracer().Start(ctx, SpanByPriceList)
	span.SetAttributes(attribute.Float64("max_price", maxPrice))
	defer span.End()

	s.logger.Debug(ctx, "inside byPrice mvc", logger.Float64("maxPrice", maxPrice))
	return restaurants()
}
