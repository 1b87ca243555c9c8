package entities

import "errors"

var (
	// ErrUpstreamUnavailable means a price, balance, swap or model provider failed
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrValidation means the caller sent malformed input
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited means the caller exhausted their quota for the current window
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthenticated means the session token is missing, unknown or expired
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNotFound means the requested resource does not exist for the caller
	ErrNotFound = errors.New("not found")
)
