package probe

import (
	"context"
	"fmt"

	"github.com/okian/pricetrace/pkg/logger"
	"github.com/okian/pricetrace/pkg/tracing"
	"github.com/spf13/cobra"
)

// NewCommand builds the probe command. Verification failures are returned
// from Execute so the process can exit non-zero.
func NewCommand() *cobra.Command {
	config := &Config{}
	var traceExporter string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Call a running pricetrace service and verify its responses",
		Long: `probe calls /byPriceReactive, /byPriceMVC and /chaining on a running
service and checks that:

  - every route returns exactly one restaurant, McDonalds at $1
  - the streamed routes take at least --min-delay
  - concurrent /byPriceMVC calls return identical bodies`,
		Example: `  probe --url http://localhost:7070
  probe --concurrency 32 --max-price -1 --verbose
  probe --trace-exporter stdout`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if config.Verbose {
				_ = logger.SetLevelString("debug")
			}

			tp, err := tracing.Init(ctx,
				tracing.WithServiceName("pricetrace-probe"),
				tracing.WithExporter(traceExporter),
				tracing.WithWriter(cmd.ErrOrStderr()),
			)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() { _ = tp.Shutdown(context.Background()) }()

			ctx, span := tp.Tracer("pricetrace-probe").Start(ctx, "probe")
			defer span.End()

			stats, err := Run(ctx, config)
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "calls=%d failures=%d reactive=%s chaining=%s mvcMax=%s\n",
					stats.Calls, stats.Failures, stats.Reactive, stats.Chaining, stats.MVCMax)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.BaseURL, "url", DefaultBaseURL, "Base URL of the service")
	flags.IntVar(&config.Concurrency, "concurrency", DefaultConcurrency, "Number of concurrent /byPriceMVC calls")
	flags.DurationVar(&config.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	flags.Float64Var(&config.MaxPrice, "max-price", DefaultMaxPrice, "maxPrice sent to the lookup routes")
	flags.DurationVar(&config.MinDelay, "min-delay", DefaultMinDelay, "Minimum expected duration of streamed routes")
	flags.BoolVar(&config.Verbose, "verbose", false, "Log every response")
	flags.StringVar(&traceExporter, "trace-exporter", tracing.ExporterNone, "Span exporter: none, stdout or otlp")

	return cmd
}
