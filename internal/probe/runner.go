// Package probe calls a running service and verifies its observable
// behaviour: a single fixed record on every lookup route, streamed routes
// that honour the emit delay, and identical concurrent blocking responses.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/pricetrace/pkg/logger"
)

// Validate checks the probe configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: url is required", ErrBadConfig)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive", ErrBadConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrBadConfig)
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("%w: min delay must not be negative", ErrBadConfig)
	}
	return nil
}

// Run executes every check and returns the collected statistics. All checks
// run even after a failure; the returned error joins every failure and wraps
// ErrVerification.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("probe")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting pricetrace probe",
		logger.String("baseURL", config.BaseURL),
		logger.Int("concurrency", config.Concurrency),
		logger.String("timeout", config.Timeout.String()),
		logger.Float64("maxPrice", config.MaxPrice),
		logger.String("minDelay", config.MinDelay.String()))

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return nil, err
	}

	var failures []error
	record := func(r Result, checks ...error) {
		stats.Calls++
		var failed bool
		for _, err := range checks {
			if err != nil {
				failed = true
				failures = append(failures, err)
				log.Error(ctx, "check failed", logger.String("route", r.Route), logger.Error(err))
			}
		}
		if failed {
			stats.Failures++
		}
		if config.Verbose {
			log.Info(ctx, "response",
				logger.String("route", r.Route),
				logger.Int("status", r.Status),
				logger.Int("restaurants", len(r.Restaurants)),
				logger.String("elapsed", r.Elapsed.String()))
		}
	}

	maxPrice := config.MaxPrice

	reactiveURL, err := routeURL(config.BaseURL, RouteReactive, &maxPrice)
	if err != nil {
		return nil, err
	}
	reactive := fetch(ctx, client, RouteReactive, reactiveURL)
	stats.Reactive = reactive.Elapsed
	record(reactive, verifySingle(reactive), verifyLatency(reactive, config.MinDelay))

	mvcURL, err := routeURL(config.BaseURL, RouteMVC, &maxPrice)
	if err != nil {
		return nil, err
	}
	mvc := fetchConcurrently(ctx, client, RouteMVC, mvcURL, config.Concurrency)
	for _, r := range mvc {
		if r.Elapsed > stats.MVCMax {
			stats.MVCMax = r.Elapsed
		}
		record(r, verifySingle(r))
	}
	if err := verifyIdentical(mvc); err != nil {
		failures = append(failures, err)
	}

	chainURL, err := routeURL(config.BaseURL, RouteChaining, nil)
	if err != nil {
		return nil, err
	}
	chaining := fetch(ctx, client, RouteChaining, chainURL)
	stats.Chaining = chaining.Elapsed
	record(chaining, verifySingle(chaining), verifyLatency(chaining, config.MinDelay))

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if len(failures) > 0 {
		return stats, fmt.Errorf("%w: %w", ErrVerification, errors.Join(failures...))
	}
	log.Info(ctx, "probe completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	target, err := routeURL(config.BaseURL, RouteHealth, nil)
	if err != nil {
		return err
	}
	resp, err := client.Get(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("calls", stats.Calls),
		logger.Int("failures", stats.Failures),
		logger.String("reactive", stats.Reactive.String()),
		logger.String("chaining", stats.Chaining.String()),
		logger.String("mvcMax", stats.MVCMax.String()),
		logger.String("duration", stats.Duration.String()))
}
