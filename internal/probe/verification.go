package probe

import (
	"fmt"
	"reflect"
	"time"
)

// verifySingle checks that a call returned exactly the expected record.
func verifySingle(r Result) error {
	if r.Err != nil {
		return fmt.Errorf("%s: %w", r.Route, r.Err)
	}
	if len(r.Restaurants) != 1 {
		return fmt.Errorf("%s: expected 1 restaurant, got %d", r.Route, len(r.Restaurants))
	}
	if r.Restaurants[0] != Expected {
		return fmt.Errorf("%s: expected %s, got %s", r.Route, Expected, r.Restaurants[0])
	}
	return nil
}

// verifyLatency checks that a streamed route took at least min.
func verifyLatency(r Result, min time.Duration) error {
	if r.Elapsed < min {
		return fmt.Errorf("%s: finished in %s, expected at least %s", r.Route, r.Elapsed, min)
	}
	return nil
}

// verifyIdentical checks that every call saw the same body.
func verifyIdentical(results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to compare")
	}
	first := results[0].Restaurants
	for i, r := range results[1:] {
		if !reflect.DeepEqual(first, r.Restaurants) {
			return fmt.Errorf("%s: call %d returned %v, call 0 returned %v", r.Route, i+1, r.Restaurants, first)
		}
	}
	return nil
}
