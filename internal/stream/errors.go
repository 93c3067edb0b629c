package stream

import "errors"

// Sentinel kinds for stream errors.
var (
	ErrAlreadySubscribed = errors.New("stream already subscribed")
)
