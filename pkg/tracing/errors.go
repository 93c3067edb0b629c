package tracing

import "errors"

// Sentinel kinds for tracing errors.
var (
	ErrUnknownExporter = errors.New("unknown trace exporter")
	ErrExporterInit    = errors.New("trace exporter init failed")
)
