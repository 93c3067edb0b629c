package probe

import "errors"

// Error constants.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrVerification = errors.New("verification failed")
	ErrBadConfig    = errors.New("invalid probe config")
)
