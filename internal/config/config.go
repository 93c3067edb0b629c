// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - External errors are wrapped with this package's sentinel kinds.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":7070".
	Addr string `koanf:"addr"`

	// UpstreamBaseURL is the base URL used by /chaining to reach /byPriceReactive.
	UpstreamBaseURL string `koanf:"upstream_base_url"`

	// UpstreamTimeoutMS bounds a single chained call, including the streamed body.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms"`

	// EmitDelayMS is the per-element delay of the reactive endpoint.
	EmitDelayMS int `koanf:"emit_delay_ms"`

	// ChainMaxPrice is the maxPrice sent by /chaining.
	ChainMaxPrice float64 `koanf:"chain_max_price"`

	// ServiceName is reported as the tracing resource service.name.
	ServiceName string `koanf:"service_name"`

	// TraceExporter selects the span exporter: none, stdout or otlp.
	TraceExporter string `koanf:"trace_exporter"`

	// TraceEndpoint is the OTLP/HTTP collector host:port used by the otlp exporter.
	TraceEndpoint string `koanf:"trace_endpoint"`

	// TraceSampleRatio is the fraction of root traces sampled, in [0, 1].
	TraceSampleRatio float64 `koanf:"trace_sample_ratio"`

	// MetricsEnabled turns Prometheus recording on or off. /metrics is
	// served either way.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":7070",
		UpstreamBaseURL:   "http://localhost:7070",
		UpstreamTimeoutMS: 30_000,
		EmitDelayMS:       1_000,
		ChainMaxPrice:     1,
		ServiceName:       "pricetrace",
		TraceExporter:     "none",
		TraceEndpoint:     "localhost:4318",
		TraceSampleRatio:  1.0,
		MetricsEnabled:    true,
	}
}
