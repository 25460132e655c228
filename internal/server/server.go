// Package server exposes a client over HTTP using the GraphQL-over-HTTP
// JSON format. Batches (a JSON array of requests) are accepted on POST.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/metadata"

	client "github.com/hanpama/graphstitch/internal/client"
	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
	executor "github.com/hanpama/graphstitch/internal/executor"
	reqid "github.com/hanpama/graphstitch/internal/reqid"
)

// RequestIDKey names both the incoming header that may carry a request ID
// and the outgoing metadata key location transports forward.
const RequestIDKey = "graphql-request-id"

// Handler serves a GraphQL endpoint backed by a client.
type Handler struct {
	client  *client.Client
	opt     Options
	forward map[string]struct{}
}

type Options struct {
	// Timeout applies when the incoming request context has no deadline.
	// 0 means none.
	Timeout time.Duration

	Pretty bool

	// MaxBodyBytes limits the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS is disabled when AllowedOrigins is empty.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers copied into outgoing metadata,
	// where location transports pick them up. Names are case-insensitive.
	MetadataHeaders []string

	// BatchConcurrency bounds how many operations of a batch run at once.
	// 0 runs them one after another.
	BatchConcurrency int
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithBatchConcurrency(n int) Option { return func(o *Options) { o.BatchConcurrency = n } }

type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler for c.
func New(c *client.Client, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	forward := make(map[string]struct{}, len(op.MetadataHeaders))
	for _, hdr := range op.MetadataHeaders {
		forward[strings.ToLower(hdr)] = struct{}{}
	}
	return &Handler{client: c, opt: op, forward: forward}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	var rid string
	if rid = r.Header.Get(RequestIDKey); rid != "" {
		ctx = reqid.WithID(ctx, rid)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	w.Header().Set(RequestIDKey, rid)

	start := time.Now()
	finish := events.HTTPFinish{Request: r, RequestID: rid}
	eventbus.Publish(ctx, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		finish.Duration = time.Since(start)
		eventbus.Publish(ctx, finish)
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		finish.Status = http.StatusNoContent
		w.WriteHeader(finish.Status)
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		finish.Status = h.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	single, batch, err := decodeParams(w, r, h.opt.MaxBodyBytes)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, errBodyTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, errUnsupportedMedia):
			status = http.StatusUnsupportedMediaType
		}
		finish.Status = h.writeError(w, status, err)
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.outgoing(r, rid))
	media := negotiate(r)

	if batch == nil {
		finish.Operations = 1
		result := h.client.Execute(ctx, single)
		finish.Status = h.writeResult(w, media, result)
		return
	}

	finish.Operations = len(batch)
	results := make([]*executor.ExecutionResult, len(batch))
	g := errgroup.Group{}
	if h.opt.BatchConcurrency > 0 {
		g.SetLimit(h.opt.BatchConcurrency)
	} else {
		g.SetLimit(1)
	}
	for i := range batch {
		g.Go(func() error {
			results[i] = h.client.Execute(ctx, batch[i])
			return nil
		})
	}
	_ = g.Wait()
	finish.Status = http.StatusOK
	writeJSON(w, media, finish.Status, results, h.opt.Pretty)
}

// outgoing builds the metadata location transports see: the allowed
// request headers and the request ID.
func (h *Handler) outgoing(r *http.Request, rid string) metadata.MD {
	md := metadata.MD{}
	for k, v := range r.Header {
		if _, ok := h.forward[strings.ToLower(k)]; ok {
			md[strings.ToLower(k)] = v
		}
	}
	md[RequestIDKey] = []string{rid}
	return md
}
