package upstream

import "errors"

// Sentinel kinds for upstream errors.
var (
	ErrUpstream   = errors.New("upstream call failed")
	ErrBadBaseURL = errors.New("invalid upstream base url")
)
