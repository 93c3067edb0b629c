package probe

import (
	"time"

	"github.com/okian/pricetrace/internal/domain/model"
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Concurrency int           // Number of concurrent MVC calls
	Timeout     time.Duration // HTTP request timeout
	MaxPrice    float64       // maxPrice sent to the lookup routes
	MinDelay    time.Duration // Lower bound expected for streamed routes
	Verbose     bool          // Log every response
}

// Expected is the record every lookup route must return.
var Expected = model.Restaurant{Name: "McDonalds", PricePerPerson: 1}

// Result is one observed call.
type Result struct {
	Route       string
	Status      int
	Restaurants []model.Restaurant
	Elapsed     time.Duration
	Err         error
}

// Stats holds run statistics.
type Stats struct {
	Calls     int
	Failures  int
	Reactive  time.Duration
	Chaining  time.Duration
	MVCMax    time.Duration
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
