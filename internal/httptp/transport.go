// Package httptp calls locations over HTTP using the GraphQL-over-HTTP JSON
// format.
package httptp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
	executor "github.com/hanpama/graphstitch/internal/executor"
)

// RequestIDHeader carries the client request ID to every location.
const RequestIDHeader = "graphql-request-id"

// Transport is an HTTP transport with per-endpoint connection limits and
// deadline propagation. It integrates with an EndpointProvider for service
// discovery.

type Transport struct {
	opts   *Options
	client *http.Client
	closed atomic.Bool
}

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	client := o.Client
	if client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxConnsPerHost = o.MaxConnsPerEndpoint
		tr.MaxIdleConnsPerHost = o.MaxConnsPerEndpoint
		client = &http.Client{Transport: tr}
	}
	return &Transport{opts: o, client: client}
}

// Executable returns an executor.Executable for one location.
func (t *Transport) Executable(location string) executor.Executable {
	return executor.ExecutableFunc(func(ctx context.Context, document string, variables map[string]any) (*executor.ExecutionResult, error) {
		return t.Call(ctx, location, document, variables)
	})
}

// Executables returns one executable per location.
func (t *Transport) Executables(locations []string) map[string]executor.Executable {
	out := make(map[string]executor.Executable, len(locations))
	for _, loc := range locations {
		out[loc] = t.Executable(loc)
	}
	return out
}

type requestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Call posts one document to an endpoint of the location.
func (t *Transport) Call(ctx context.Context, location, document string, variables map[string]any) (res *executor.ExecutionResult, err error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if t.opts.Provider == nil {
		return nil, fmt.Errorf("httptp: provider not configured")
	}

	if _, ok := ctx.Deadline(); !ok {
		if t.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.opts.RequestTimeout)
			defer cancel()
		}
	}

	endpoints, err := t.opts.Provider.Endpoints(ctx, location)
	if err != nil {
		return nil, err
	}
	endpoint := endpoints[rand.Intn(len(endpoints))]

	body, err := json.Marshal(requestBody{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("httptp: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httptp: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	t.forwardHeaders(ctx, req.Header)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	id := uuid.NewString()
	status := 0
	start := time.Now()
	eventbus.Publish(ctx, events.SubrequestStart{ID: id, Location: location, Endpoint: endpoint})
	defer func() {
		eventbus.Publish(ctx, events.SubrequestFinish{
			ID:       id,
			Location: location,
			Endpoint: endpoint,
			Status:   status,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httptp: %s: %w", location, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httptp: %s: read response: %w", location, err)
	}
	if resp.StatusCode/100 != 2 && !isJSON(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("httptp: %s: unexpected status %d", location, resp.StatusCode)
	}
	res = &executor.ExecutionResult{}
	if err = json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("httptp: %s: decode response: %w", location, err)
	}
	return res, nil
}

// forwardHeaders copies allowed outgoing metadata onto the sub-request.
func (t *Transport) forwardHeaders(ctx context.Context, h http.Header) {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return
	}
	if v := md.Get(RequestIDHeader); len(v) > 0 {
		h.Set(RequestIDHeader, v[0])
	}
	for _, name := range t.opts.ForwardHeaders {
		for _, v := range md.Get(name) {
			h.Add(name, v)
		}
	}
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.client.CloseIdleConnections()
	return nil
}

func isJSON(contentType string) bool {
	return contentType == "application/json" ||
		strings.HasPrefix(contentType, "application/json;") ||
		strings.HasPrefix(contentType, "application/graphql-response+json")
}
