package httptp

import "errors"

var (
	// ErrNoEndpoints indicates the provider returned no endpoints for a location.
	ErrNoEndpoints = errors.New("httptp: no endpoints available")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("httptp: closed")
)
