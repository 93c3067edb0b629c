package probe

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/pricetrace/internal/domain/model"
	"github.com/okian/pricetrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const mcdonaldsJSON = `[{"name":"McDonalds","pricePerPerson":1}]`

// fakeService answers like the real one, with knobs to break it.
func fakeService(delay time.Duration, body string, healthStatus int) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(healthStatus)
	})
	streamed := func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(delay)
		_, _ = w.Write([]byte(body))
	}
	mux.HandleFunc("/byPriceReactive", streamed)
	mux.HandleFunc("/chaining", streamed)
	mux.HandleFunc("/byPriceMVC", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("maxPrice") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	return httptest.NewServer(mux)
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:     url,
		Concurrency: 4,
		Timeout:     5 * time.Second,
		MaxPrice:    10,
		MinDelay:    50 * time.Millisecond,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a well-behaved service", t, func() {
		srv := fakeService(60*time.Millisecond, mcdonaldsJSON, http.StatusOK)
		defer srv.Close()

		Convey("When probing it", func() {
			stats, err := Run(context.Background(), testConfig(srv.URL))

			Convey("Then every check passes", func() {
				So(err, ShouldBeNil)
				So(stats.Calls, ShouldEqual, 6)
				So(stats.Failures, ShouldEqual, 0)
				So(stats.Reactive, ShouldBeGreaterThanOrEqualTo, 50*time.Millisecond)
				So(stats.Chaining, ShouldBeGreaterThanOrEqualTo, 50*time.Millisecond)
			})
		})
	})

	Convey("Given a service that answers too fast", t, func() {
		srv := fakeService(0, mcdonaldsJSON, http.StatusOK)
		defer srv.Close()

		Convey("When probing it with a large minimum delay", func() {
			cfg := testConfig(srv.URL)
			cfg.MinDelay = time.Hour
			stats, err := Run(context.Background(), cfg)

			Convey("Then the latency checks fail", func() {
				So(errors.Is(err, ErrVerification), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "expected at least")
				So(stats.Failures, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a service returning the wrong record", t, func() {
		srv := fakeService(60*time.Millisecond, `[{"name":"BurgerKing","pricePerPerson":2}]`, http.StatusOK)
		defer srv.Close()

		Convey("When probing it", func() {
			stats, err := Run(context.Background(), testConfig(srv.URL))

			Convey("Then every lookup fails verification", func() {
				So(errors.Is(err, ErrVerification), ShouldBeTrue)
				So(stats.Failures, ShouldEqual, stats.Calls)
			})
		})
	})

	Convey("Given an unhealthy service", t, func() {
		srv := fakeService(0, mcdonaldsJSON, http.StatusServiceUnavailable)
		defer srv.Close()

		Convey("When probing it", func() {
			stats, err := Run(context.Background(), testConfig(srv.URL))

			Convey("Then the run stops at the health check", func() {
				So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
				So(stats, ShouldBeNil)
			})
		})
	})

	Convey("Given an invalid config", t, func() {
		cfg := testConfig("http://localhost:1")
		cfg.Concurrency = 0

		_, err := Run(context.Background(), cfg)
		So(errors.Is(err, ErrBadConfig), ShouldBeTrue)
	})
}

func TestVerification(t *testing.T) {
	Convey("Given observed results", t, func() {
		ok := Result{Route: RouteMVC, Status: 200, Restaurants: []model.Restaurant{Expected}}

		So(verifySingle(ok), ShouldBeNil)
		So(verifySingle(Result{Route: RouteMVC}), ShouldNotBeNil)
		So(verifySingle(Result{Route: RouteMVC, Restaurants: []model.Restaurant{Expected, Expected}}), ShouldNotBeNil)
		So(verifySingle(Result{Route: RouteMVC, Err: errors.New("boom")}), ShouldNotBeNil)

		So(verifyLatency(Result{Elapsed: time.Second}, time.Second), ShouldBeNil)
		So(verifyLatency(Result{Elapsed: time.Millisecond}, time.Second), ShouldNotBeNil)

		So(verifyIdentical([]Result{ok, ok, ok}), ShouldBeNil)
		So(verifyIdentical([]Result{ok, {Route: RouteMVC}}), ShouldNotBeNil)
		So(verifyIdentical(nil), ShouldNotBeNil)
	})
}

func TestRouteURL(t *testing.T) {
	Convey("Given a base URL", t, func() {
		p := -2.5
		u, err := routeURL("http://localhost:7070/", RouteReactive, &p)
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "http://localhost:7070/byPriceReactive?maxPrice=-2.5")

		u, err = routeURL("http://localhost:7070", RouteChaining, nil)
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "http://localhost:7070/chaining")

		_, err = routeURL("://bad", RouteChaining, nil)
		So(errors.Is(err, ErrBadConfig), ShouldBeTrue)
	})
}

func TestNewCommand(t *testing.T) {
	Convey("Given the probe command", t, func() {
		srv := fakeService(20*time.Millisecond, mcdonaldsJSON, http.StatusOK)
		defer srv.Close()

		cmd := NewCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)

		Convey("When run against a healthy service", func() {
			cmd.SetArgs([]string{"--url", srv.URL, "--concurrency", "2", "--min-delay", "10ms"})
			err := cmd.ExecuteContext(context.Background())

			Convey("Then it succeeds and prints a summary", func() {
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "calls=4 failures=0")
			})
		})

		Convey("When verification fails", func() {
			cmd.SetArgs([]string{"--url", srv.URL, "--min-delay", "1h"})
			err := cmd.ExecuteContext(context.Background())

			Convey("Then the error is returned for a non-zero exit", func() {
				So(errors.Is(err, ErrVerification), ShouldBeTrue)
			})
		})

		Convey("When the exporter is unknown", func() {
			cmd.SetArgs([]string{"--url", srv.URL, "--trace-exporter", "jaeger"})
			err := cmd.ExecuteContext(context.Background())

			Convey("Then tracing setup fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
