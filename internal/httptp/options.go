package httptp

import (
	"net/http"
	"time"
)

// Options configures the HTTP transport behavior.
//
// Defaults:
// - MaxConnsPerEndpoint: 16
// - RequestTimeout:      3s (used only if the context has no deadline)
// - ForwardHeaders:      none
//
// Provider must be set (use StaticEndpoints or a custom implementation).
// Without it every call fails.

type Options struct {
	Provider EndpointProvider

	MaxConnsPerEndpoint int
	RequestTimeout      time.Duration

	// ForwardHeaders lists outgoing gRPC metadata keys copied onto
	// sub-requests as HTTP headers. The request ID is always forwarded.
	ForwardHeaders []string

	// Client replaces the default HTTP client.
	Client *http.Client
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxConnsPerEndpoint: 16,
		RequestTimeout:      3 * time.Second,
	}
}

func WithProvider(p EndpointProvider) Option    { return func(o *Options) { o.Provider = p } }
func WithMaxConnsPerEndpoint(n int) Option      { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRequestTimeout(d time.Duration) Option { return func(o *Options) { o.RequestTimeout = d } }
func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}
func WithHTTPClient(c *http.Client) Option { return func(o *Options) { o.Client = c } }
