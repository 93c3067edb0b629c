package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pricetrace/internal/adapters/http/api"
	"github.com/okian/pricetrace/internal/adapters/http/site"
	"github.com/okian/pricetrace/internal/adapters/http/swagger"
	app "github.com/okian/pricetrace/internal/app"
	"github.com/okian/pricetrace/internal/config"
	"github.com/okian/pricetrace/pkg/logger"
	"github.com/okian/pricetrace/pkg/metrics"
	"github.com/okian/pricetrace/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6

	// Streamed responses stay open for the emit delay and, on /chaining,
	// the whole upstream call, so the write deadline follows the config
	// plus this slack.
	writeTimeoutSlack = 10 * time.Second
)

func main() {
	// Default Go collectors are replaced by our own system metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "pricetrace exited with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration, starts tracing and the service, and serves HTTP
// until ctx is cancelled.
func run(ctx context.Context) error {
	loggerInstance := logger.Get()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.SetEnabled(cfg.MetricsEnabled)

	tp, err := initTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			loggerInstance.Error(ctx, "tracer shutdown failed", logger.Error(err))
		}
	}()

	svc := newService(cfg, loggerInstance)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           buildHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("upstream", cfg.UpstreamBaseURL),
			logger.String("trace_exporter", cfg.TraceExporter),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

func initTracing(ctx context.Context, cfg *config.Config) (*tracing.Provider, error) {
	return tracing.Init(ctx,
		tracing.WithServiceName(cfg.ServiceName),
		tracing.WithExporter(cfg.TraceExporter),
		tracing.WithEndpoint(cfg.TraceEndpoint),
		tracing.WithSampleRatio(cfg.TraceSampleRatio),
	)
}

func newService(cfg *config.Config, l logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(l),
		app.WithEmitDelay(time.Duration(cfg.EmitDelayMS)*time.Millisecond),
		app.WithUpstreamBaseURL(cfg.UpstreamBaseURL),
		app.WithUpstreamTimeout(time.Duration(cfg.UpstreamTimeoutMS)*time.Millisecond),
		app.WithChainMaxPrice(cfg.ChainMaxPrice),
	)
}

// buildHandler registers every route and wraps the mux with request IDs and
// server spans.
func buildHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	mux := http.NewServeMux()

	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	return api.Handler(mux, cfg.ServiceName)
}

// writeTimeout always outlasts the upstream client timeout so a slow chained
// call is ended by the client, which reports 502, and not by the server.
func writeTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.UpstreamTimeoutMS+cfg.EmitDelayMS)*time.Millisecond + writeTimeoutSlack
}

// startSystemMetricsUpdater updates system metrics every interval until ctx
// is done.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	if !metrics.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Average GC pause since start.
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
