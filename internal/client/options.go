package client

import "context"

// CacheReadFunc loads a serialized plan by request digest from an external
// store. It reports false on a miss.
type CacheReadFunc func(ctx context.Context, digest string) ([]byte, bool)

// CacheWriteFunc stores a serialized plan by request digest.
type CacheWriteFunc func(ctx context.Context, digest string, plan []byte)

// ErrorHook observes failures that are hidden from the client.
type ErrorHook func(ctx context.Context, err error)

type Options struct {
	// Validate runs document validation before planning. Default is true.
	Validate bool

	// PlanCacheSize is the number of plans kept in memory. 0 disables the
	// in-memory cache.
	PlanCacheSize int

	CacheRead  CacheReadFunc
	CacheWrite CacheWriteFunc
	OnError    ErrorHook

	// Raw returns merged location data without shaping it.
	Raw bool

	// Concurrency limits concurrent location calls per wave. 0 means no limit.
	Concurrency int
}

type Option func(*Options)

func WithValidation(enable bool) Option { return func(o *Options) { o.Validate = enable } }
func WithPlanCache(size int) Option     { return func(o *Options) { o.PlanCacheSize = size } }
func WithCacheHooks(read CacheReadFunc, write CacheWriteFunc) Option {
	return func(o *Options) { o.CacheRead, o.CacheWrite = read, write }
}
func WithErrorHook(h ErrorHook) Option { return func(o *Options) { o.OnError = h } }
func WithRaw() Option                  { return func(o *Options) { o.Raw = true } }
func WithConcurrency(n int) Option     { return func(o *Options) { o.Concurrency = n } }
