// Package service composes the lookup, the reactive pipeline and the
// upstream client into the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pricetrace/internal/adapters/upstream"
	"github.com/okian/pricetrace/internal/domain/lookup"
	"github.com/okian/pricetrace/internal/domain/model"
	"github.com/okian/pricetrace/internal/stream"
	"github.com/okian/pricetrace/pkg/logger"
)

// Default service configuration.
const (
	defaultEmitDelay       = time.Second
	defaultUpstreamBaseURL = "http://localhost:7070"
	defaultUpstreamTimeout = 30 * time.Second
	defaultChainMaxPrice   = 1.0
)

// Chainer calls the streaming endpoint over the network.
type Chainer interface {
	ByPriceReactive(maxPrice float64) *stream.Stream[model.Restaurant]
	BaseURL() string
}

// Service implements the API dependencies for the restaurant endpoints.
type Service struct {
	mu sync.RWMutex

	// Core components
	lookup   lookup.Service
	upstream Chainer

	// Configuration
	emitDelay       time.Duration
	upstreamBaseURL string
	upstreamTimeout time.Duration
	chainMaxPrice   float64

	// State
	started   bool
	startedAt time.Time

	// Request counters
	streamCalls atomic.Int64
	listCalls   atomic.Int64
	chainCalls  atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEmitDelay sets the per-element delay of the reactive pipeline.
// Zero disables the delay.
func WithEmitDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.emitDelay = d
		}
	}
}

// WithUpstreamBaseURL sets the base URL used by Chain.
func WithUpstreamBaseURL(baseURL string) Option {
	return func(s *Service) {
		if baseURL != "" {
			s.upstreamBaseURL = baseURL
		}
	}
}

// WithUpstreamTimeout bounds a single chained call.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.upstreamTimeout = d
		}
	}
}

// WithUpstream replaces the upstream client built by Start.
func WithUpstream(c Chainer) Option {
	return func(s *Service) {
		if c != nil {
			s.upstream = c
		}
	}
}

// WithChainMaxPrice sets the maxPrice sent by Chain.
func WithChainMaxPrice(p float64) Option {
	return func(s *Service) {
		s.chainMaxPrice = p
	}
}

// WithLookup replaces the lookup service built by Start.
func WithLookup(l lookup.Service) Option {
	return func(s *Service) {
		if l != nil {
			s.lookup = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		emitDelay:       defaultEmitDelay,
		upstreamBaseURL: defaultUpstreamBaseURL,
		upstreamTimeout: defaultUpstreamTimeout,
		chainMaxPrice:   defaultChainMaxPrice,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting restaurant service...")

	if s.lookup == nil {
		s.lookup = lookup.NewStaticService(lookup.WithLogger(s.logger.Named("lookup")))
	}
	if s.upstream == nil {
		c, err := upstream.New(s.upstreamBaseURL,
			upstream.WithTimeout(s.upstreamTimeout),
			upstream.WithLogger(s.logger.Named("upstream")),
		)
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.upstream = c
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "restaurant service started",
		logger.String("emitDelay", s.emitDelay.String()),
		logger.String("upstream", s.upstream.BaseURL()),
		logger.Float64("chainMaxPrice", s.chainMaxPrice),
	)
	return nil
}

// Stop marks the service as stopped. Streams already subscribed run to
// completion or until their request goes away.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "restaurant service stopped")
}

func (s *Service) components() (lookup.Service, Chainer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup, s.upstream, s.started
}

// ByPriceStream returns the reactive pipeline: the lookup stream with every
// element delayed by the emit delay, logging each element, completion and
// failure.
func (s *Service) ByPriceStream(ctx context.Context, maxPrice float64) *stream.Stream[model.Restaurant] {
	lk, _, started := s.components()
	if !started {
		return stream.Error[model.Restaurant](ErrNotStarted)
	}
	s.streamCalls.Add(1)

	s.logger.Debug(ctx, "starting statement", logger.Float64("maxPrice", maxPrice))
	return s.observe(ctx, lk.ByPriceStream(ctx, maxPrice).Delay(s.emitDelay))
}

// ByPriceList returns the materialized lookup result.
func (s *Service) ByPriceList(ctx context.Context, maxPrice float64) ([]model.Restaurant, error) {
	lk, _, started := s.components()
	if !started {
		return nil, ErrNotStarted
	}
	s.listCalls.Add(1)

	s.logger.Debug(ctx, "starting statement", logger.Float64("maxPrice", maxPrice))
	return lk.ByPriceList(ctx, maxPrice), nil
}

// Chain calls the streaming endpoint through the upstream client with the
// configured maxPrice and relays its stream.
func (s *Service) Chain(ctx context.Context) *stream.Stream[model.Restaurant] {
	_, up, started := s.components()
	if !started {
		return stream.Error[model.Restaurant](ErrNotStarted)
	}
	s.chainCalls.Add(1)

	s.logger.Debug(ctx, "chaining to upstream", logger.String("upstream", up.BaseURL()))
	return s.observe(ctx, up.ByPriceReactive(s.chainMaxPrice))
}

func (s *Service) observe(ctx context.Context, st *stream.Stream[model.Restaurant]) *stream.Stream[model.Restaurant] {
	return st.
		OnNext(func(r model.Restaurant) {
			s.logger.Debug(ctx, "found restaurant", logger.String("restaurant", r.String()))
		}).
		OnComplete(func() { s.logger.Debug(ctx, "done!") }).
		OnError(func(err error) { s.logger.Error(ctx, "failure", logger.Error(err)) })
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"emitDelayMs":     s.emitDelay.Milliseconds(),
		"chainMaxPrice":   s.chainMaxPrice,
		"byPriceReactive": s.streamCalls.Load(),
		"byPriceMVC":      s.listCalls.Load(),
		"chaining":        s.chainCalls.Load(),
	}
	if s.upstream != nil {
		stats["upstream"] = s.upstream.BaseURL()
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	return stats
}
