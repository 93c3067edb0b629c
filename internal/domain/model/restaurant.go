// Package model contains domain models passed between layers.
package model

import "strconv"

// Restaurant is the single record served by the lookup endpoints.
// Values are built fresh per request and never mutated afterwards.
type Restaurant struct {
	Name           string  `json:"name"`
	PricePerPerson float64 `json:"pricePerPerson"`
}

// NewRestaurant returns a Restaurant with the given fields.
func NewRestaurant(name string, pricePerPerson float64) Restaurant {
	return Restaurant{Name: name, PricePerPerson: pricePerPerson}
}

// String formats the restaurant as "<name> for $<price>".
func (r Restaurant) String() string {
	return r.Name + " for $" + strconv.FormatFloat(r.PricePerPerson, 'f', -1, 64)
}
