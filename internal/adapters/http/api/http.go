// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/pricetrace/internal/domain/model"
	"github.com/okian/pricetrace/internal/stream"
	"github.com/okian/pricetrace/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// ByPriceStream returns the delayed reactive stream for maxPrice.
	ByPriceStream(ctx context.Context, maxPrice float64) *stream.Stream[model.Restaurant]

	// ByPriceList returns the materialized list for maxPrice.
	ByPriceList(ctx context.Context, maxPrice float64) ([]model.Restaurant, error)

	// Chain relays /byPriceReactive called over the network.
	Chain(ctx context.Context) *stream.Stream[model.Restaurant]
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	restaurantsHandler *RestaurantsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		restaurantsHandler: NewRestaurantsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/byPriceReactive", MetricsMiddleware(s.restaurantsHandler.HandleByPriceReactive, "byPriceReactive"))
	mux.HandleFunc("/byPriceMVC", MetricsMiddleware(s.restaurantsHandler.HandleByPriceMVC, "byPriceMVC"))
	mux.HandleFunc("/chaining", MetricsMiddleware(s.restaurantsHandler.HandleChaining, "chaining"))
}

// Handler wraps next with request IDs and a server span per request.
func Handler(next http.Handler, service string) http.Handler {
	return otelhttp.NewHandler(RequestIDMiddleware(next), service,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// parseMaxPrice reads the required maxPrice query parameter. Any number
// strconv accepts is valid; there is no bounds checking.
func parseMaxPrice(r *http.Request) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("maxPrice"))
	if raw == "" {
		return 0, errors.New("missing maxPrice")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("invalid maxPrice; must be a number")
	}
	return v, nil
}

func logFrom(ctx context.Context, l logger.Logger, msg string, fields ...logger.Field) {
	if id := RequestIDFrom(ctx); id != "" {
		fields = append(fields, logger.String("request_id", id))
	}
	l.Info(ctx, msg, fields...)
}
