package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/pricetrace/internal/adapters/upstream"
	service "github.com/okian/pricetrace/internal/app"
	"github.com/okian/pricetrace/internal/domain/model"
	"github.com/okian/pricetrace/internal/stream"
	"github.com/okian/pricetrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var mcdonalds = model.Restaurant{Name: "McDonalds", PricePerPerson: 1}

// mockDeps serves fixed streams and lists.
type mockDeps struct {
	streamErr  error
	midErr     error
	listErr    error
	chainErr   error
	maxPrices  []float64
	chainCalls int
}

func (m *mockDeps) ByPriceStream(_ context.Context, maxPrice float64) *stream.Stream[model.Restaurant] {
	m.maxPrices = append(m.maxPrices, maxPrice)
	if m.streamErr != nil {
		return stream.Error[model.Restaurant](m.streamErr)
	}
	if m.midErr != nil {
		return stream.Create(func(ctx context.Context, emit stream.EmitFunc[model.Restaurant]) error {
			if !emit(mcdonalds) {
				return ctx.Err()
			}
			return m.midErr
		})
	}
	return stream.Just(mcdonalds)
}

func (m *mockDeps) ByPriceList(_ context.Context, maxPrice float64) ([]model.Restaurant, error) {
	m.maxPrices = append(m.maxPrices, maxPrice)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return []model.Restaurant{mcdonalds}, nil
}

func (m *mockDeps) Chain(_ context.Context) *stream.Stream[model.Restaurant] {
	m.chainCalls++
	if m.chainErr != nil {
		return stream.Error[model.Restaurant](m.chainErr)
	}
	return stream.Just(mcdonalds)
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(deps Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(context.Background(), mux)
	return mux
}

func serve(mux http.Handler, method, target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		mux := newTestMux(&mockDeps{})

		Convey("Then health endpoint should report ok", func() {
			w := serve(mux, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("And metrics endpoint should expose Prometheus text", func() {
			_ = serve(mux, "GET", "/healthz", "")
			w := serve(mux, "GET", "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "pricetrace_restaurants_http_requests_total")
		})

		Convey("And stats endpoint should merge provider stats", func() {
			w := serve(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
			So(body["goroutines"], ShouldBeGreaterThan, 0)
		})

		Convey("And unknown routes should 404", func() {
			w := serve(mux, "GET", "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("And non-GET methods on business routes should 404", func() {
			for _, path := range []string{"/byPriceReactive?maxPrice=1", "/byPriceMVC?maxPrice=1", "/chaining", "/stats", "/healthz"} {
				w := serve(mux, "POST", path, "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
			}
		})
	})
}

func TestHandleByPriceMVC(t *testing.T) {
	Convey("Given the MVC route", t, func() {
		deps := &mockDeps{}
		mux := newTestMux(deps)

		Convey("When maxPrice takes any numeric value", func() {
			for _, p := range []string{"-1", "0", "1", "1e308", "2.5"} {
				w := serve(mux, "GET", "/byPriceMVC?maxPrice="+p, "")

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var got []model.Restaurant
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldResemble, []model.Restaurant{mcdonalds})
			}

			Convey("Then the parsed value is passed through unchanged", func() {
				So(deps.maxPrices, ShouldResemble, []float64{-1, 0, 1, 1e308, 2.5})
			})
		})

		Convey("When maxPrice is missing", func() {
			w := serve(mux, "GET", "/byPriceMVC", "")

			Convey("Then a bad request is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "missing maxPrice")
			})
		})

		Convey("When maxPrice is not a number", func() {
			w := serve(mux, "GET", "/byPriceMVC?maxPrice=cheap", "")

			Convey("Then a bad request is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"code":"bad_request"`)
			})
		})

		Convey("When the service is not started", func() {
			deps.listErr = service.ErrNotStarted
			w := serve(mux, "GET", "/byPriceMVC?maxPrice=1", "")

			Convey("Then 503 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestHandleByPriceReactive(t *testing.T) {
	Convey("Given the reactive route", t, func() {
		deps := &mockDeps{}
		mux := newTestMux(deps)

		Convey("When no streaming type is accepted", func() {
			w := serve(mux, "GET", "/byPriceReactive?maxPrice=1", "")

			Convey("Then a JSON array is streamed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(w.Body.String(), ShouldEqual, `[{"name":"McDonalds","pricePerPerson":1}]`)
				So(w.Flushed, ShouldBeTrue)
			})
		})

		Convey("When NDJSON is accepted", func() {
			w := serve(mux, "GET", "/byPriceReactive?maxPrice=-4", "application/x-ndjson")

			Convey("Then one object per line is streamed", func() {
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/x-ndjson")
				So(w.Body.String(), ShouldEqual, `{"name":"McDonalds","pricePerPerson":1}`+"\n")
				So(deps.maxPrices, ShouldResemble, []float64{-4})
			})
		})

		Convey("When server-sent events are accepted", func() {
			w := serve(mux, "GET", "/byPriceReactive?maxPrice=1", "text/event-stream")

			Convey("Then data frames are streamed", func() {
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/event-stream")
				So(w.Header().Get("Cache-Control"), ShouldEqual, "no-cache")
				So(w.Body.String(), ShouldEqual, `data:{"name":"McDonalds","pricePerPerson":1}`+"\n\n")
			})
		})

		Convey("When maxPrice is missing", func() {
			w := serve(mux, "GET", "/byPriceReactive", "")

			Convey("Then a bad request is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the stream fails before the first element", func() {
			deps.streamErr = errors.New("boom")
			w := serve(mux, "GET", "/byPriceReactive?maxPrice=1", "")

			Convey("Then a JSON error is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, `"code":"internal_error"`)
			})
		})

		Convey("When the stream fails after the first element in SSE mode", func() {
			deps.midErr = errors.New("boom")
			w := serve(mux, "GET", "/byPriceReactive?maxPrice=1", "text/event-stream")

			Convey("Then an error event terminates the stream", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `data:{"name":"McDonalds","pricePerPerson":1}`)
				So(w.Body.String(), ShouldContainSubstring, "event:error\ndata:")
			})
		})

		Convey("When the stream fails after the first element in array mode", func() {
			deps.midErr = errors.New("boom")

			Convey("Then the response is aborted", func() {
				So(func() { serve(mux, "GET", "/byPriceReactive?maxPrice=1", "") }, ShouldPanicWith, http.ErrAbortHandler)
			})
		})
	})
}

func TestHandleChaining(t *testing.T) {
	Convey("Given the chaining route", t, func() {
		deps := &mockDeps{}
		mux := newTestMux(deps)

		Convey("When the upstream succeeds", func() {
			w := serve(mux, "GET", "/chaining", "")

			Convey("Then the upstream stream is relayed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, `[{"name":"McDonalds","pricePerPerson":1}]`)
				So(deps.chainCalls, ShouldEqual, 1)
			})
		})

		Convey("When the upstream is unreachable", func() {
			deps.chainErr = errors.Join(upstream.ErrUpstream, errors.New("connection refused"))
			w := serve(mux, "GET", "/chaining", "")

			Convey("Then 502 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(w.Body.String(), ShouldContainSubstring, `"code":"bad_gateway"`)
			})
		})
	})
}

func TestNegotiate(t *testing.T) {
	Convey("Given Accept headers", t, func() {
		So(negotiate(""), ShouldEqual, formatJSONArray)
		So(negotiate("*/*"), ShouldEqual, formatJSONArray)
		So(negotiate("application/json"), ShouldEqual, formatJSONArray)
		So(negotiate("application/x-ndjson"), ShouldEqual, formatNDJSON)
		So(negotiate("application/stream+json"), ShouldEqual, formatNDJSON)
		So(negotiate("text/event-stream"), ShouldEqual, formatSSE)
		So(negotiate("text/html, application/x-ndjson;q=0.9, application/json"), ShouldEqual, formatJSONArray)
		So(negotiate("text/html, application/x-ndjson;q=0.9"), ShouldEqual, formatNDJSON)
		So(negotiate("application/json, text/event-stream"), ShouldEqual, formatJSONArray)
		So(negotiate(";;;"), ShouldEqual, formatJSONArray)
	})

	Convey("Given Accept headers with quality weights", t, func() {
		Convey("Then the heavier streaming type wins over an earlier light JSON entry", func() {
			So(negotiate("application/json;q=0.1, application/x-ndjson"), ShouldEqual, formatNDJSON)
			So(negotiate("application/json;q=0.5, text/event-stream;q=0.8"), ShouldEqual, formatSSE)
		})

		Convey("Then equal weights keep header order", func() {
			So(negotiate("text/event-stream;q=0.5, application/x-ndjson;q=0.5"), ShouldEqual, formatSSE)
		})

		Convey("Then q=0 marks a type as unacceptable", func() {
			So(negotiate("application/x-ndjson;q=0, text/event-stream;q=0.2"), ShouldEqual, formatSSE)
			So(negotiate("application/x-ndjson;q=0"), ShouldEqual, formatJSONArray)
		})

		Convey("Then malformed weights are ignored", func() {
			So(negotiate("application/x-ndjson;q=abc, text/event-stream"), ShouldEqual, formatSSE)
		})
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	Convey("Given the request ID middleware", t, func() {
		var seen string
		h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFrom(r.Context())
		}))

		Convey("When the caller sends an ID", func() {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			req.Header.Set(HeaderRequestID, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then it is reused", func() {
				So(seen, ShouldEqual, "abc-123")
				So(w.Header().Get(HeaderRequestID), ShouldEqual, "abc-123")
			})
		})

		Convey("When the caller sends none", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", "/", http.NoBody))

			Convey("Then a UUID is generated", func() {
				So(len(seen), ShouldEqual, 36)
				So(w.Header().Get(HeaderRequestID), ShouldEqual, seen)
			})
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given operation errors", t, func() {
		cause := errors.New("strconv failure")
		err := WrapKind("api.op", ErrBadRequest, cause)

		Convey("Then kind and cause are both matchable", func() {
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: strconv failure")
		})

		Convey("And NewKind and Wrap format consistently", func() {
			So(NewKind("api.op", ErrBadRequest).Error(), ShouldEqual, "api.op: bad request")
			So(Wrap("api.op", cause).Error(), ShouldEqual, "api.op: strconv failure")
			So(Wrap("api.op", nil), ShouldBeNil)
		})
	})
}

func TestErrorClassification(t *testing.T) {
	Convey("Given status mappings", t, func() {
		So(getErrorType(500), ShouldEqual, "server_error")
		So(getErrorType(429), ShouldEqual, "rate_limit")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(400), ShouldEqual, "client_error")
		So(getErrorType(200), ShouldEqual, "unknown")
		So(getErrorSeverity(502), ShouldEqual, "high")
		So(getErrorSeverity(400), ShouldEqual, "medium")
		So(getErrorSeverity(200), ShouldEqual, "low")

		status, code := classify(errors.New("x"))
		So(status, ShouldEqual, http.StatusInternalServerError)
		So(code, ShouldEqual, "internal_error")
		So(strings.HasPrefix(code, "internal"), ShouldBeTrue)
	})
}
