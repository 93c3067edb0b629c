package probe

import "time"

// HTTP status code constants.
const (
	StatusOK = 200
)

// Route paths probed.
const (
	RouteHealth   = "/healthz"
	RouteReactive = "/byPriceReactive"
	RouteMVC      = "/byPriceMVC"
	RouteChaining = "/chaining"
)

// Defaults for the CLI flags.
const (
	DefaultBaseURL     = "http://localhost:7070"
	DefaultConcurrency = 8
	DefaultTimeout     = 30 * time.Second
	DefaultMaxPrice    = 10.0
	DefaultMinDelay    = time.Second
)
