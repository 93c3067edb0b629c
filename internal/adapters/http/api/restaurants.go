package api

import (
	"errors"
	"net/http"

	"github.com/okian/pricetrace/internal/adapters/upstream"
	service "github.com/okian/pricetrace/internal/app"
	"github.com/okian/pricetrace/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// RestaurantsHandler serves the restaurant lookup routes.
type RestaurantsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRestaurantsHandler creates a new restaurants handler.
func NewRestaurantsHandler(deps Dependencies) *RestaurantsHandler {
	return &RestaurantsHandler{deps: deps, logger: logger.Named("api")}
}

// HandleByPriceReactive handles GET /byPriceReactive?maxPrice=N. The body is
// streamed and every element is delayed before it is written.
func (h *RestaurantsHandler) HandleByPriceReactive(w http.ResponseWriter, r *http.Request) {
	const op = "api.by_price_reactive"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	maxPrice, err := parseMaxPrice(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	h.logActiveSpan(r)

	serveStream(w, r, h.deps.ByPriceStream(r.Context(), maxPrice), op, h.logger)
}

// HandleByPriceMVC handles GET /byPriceMVC?maxPrice=N.
func (h *RestaurantsHandler) HandleByPriceMVC(w http.ResponseWriter, r *http.Request) {
	const op = "api.by_price_mvc"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	maxPrice, err := parseMaxPrice(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	h.logActiveSpan(r)

	restaurants, err := h.deps.ByPriceList(r.Context(), maxPrice)
	if err != nil {
		status, code := classify(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, restaurants)
}

// HandleChaining handles GET /chaining by calling /byPriceReactive over the
// network and relaying the stream.
func (h *RestaurantsHandler) HandleChaining(w http.ResponseWriter, r *http.Request) {
	const op = "api.chaining"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	h.logActiveSpan(r)

	serveStream(w, r, h.deps.Chain(r.Context()), op, h.logger)
}

func (h *RestaurantsHandler) logActiveSpan(r *http.Request) {
	sc := trace.SpanContextFromContext(r.Context())
	fields := []logger.Field{
		logger.String("path", r.URL.Path),
		logger.Bool("sampled", sc.IsSampled()),
	}
	if chainedBy := r.Header.Get(upstream.HeaderChainedBy); chainedBy != "" {
		fields = append(fields, logger.String("chained_by", chainedBy))
	}
	logFrom(r.Context(), h.logger, "active span", fields...)
}

// classify maps an error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, upstream.ErrUpstream):
		return http.StatusBadGateway, "bad_gateway"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
