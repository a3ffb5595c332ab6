package gateway

import "errors"

var (
	// ErrGatewayNotStopped is returned by Start unless the gateway is stopped.
	ErrGatewayNotStopped = errors.New("gateway is not in stopped state")

	// ErrGatewayNotRunning is returned by Stop unless the gateway is running.
	ErrGatewayNotRunning = errors.New("gateway is not running")

	// ErrNilConfig is returned by New for a nil configuration.
	ErrNilConfig = errors.New("configuration is required")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSigningSecret wraps failures to resolve the token signing secret.
	// The gateway cannot verify any credential without it.
	ErrSigningSecret = errors.New("signing secret unavailable")
)
