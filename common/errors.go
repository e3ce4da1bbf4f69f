package common

import (
	"errors"
)

// Common error constants
var (
	// ErrInvalidConfig is returned when a provider configuration fails validation
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingCredentials is returned when a provider is configured but its
	// API credentials are absent
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUnsupportedInterface is returned when a request names an interface
	// no provider serves
	ErrUnsupportedInterface = errors.New("unsupported interface")
)
