// Package client is the entry point for stitched requests. It turns a
// query into a request, validates it, loads or builds its plan and runs the
// executor.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
	executor "github.com/hanpama/graphstitch/internal/executor"
	introspection "github.com/hanpama/graphstitch/internal/introspection"
	planner "github.com/hanpama/graphstitch/internal/planner"
	request "github.com/hanpama/graphstitch/internal/request"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

const unexpectedErrorMessage = "An unexpected error occurred."

// Params is one client operation.
type Params struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type Client struct {
	sg          *supergraph.Supergraph
	executables map[string]executor.Executable
	opt         Options
	plans       *lru.Cache
}

// New creates a client serving sg with one executable per location.
func New(sg *supergraph.Supergraph, executables map[string]executor.Executable, opts ...Option) (*Client, error) {
	op := Options{Validate: true, PlanCacheSize: 256}
	for _, f := range opts {
		f(&op)
	}
	if _, ok := executables[supergraph.SuperLocation]; !ok {
		withSuper := make(map[string]executor.Executable, len(executables)+1)
		for loc, e := range executables {
			withSuper[loc] = e
		}
		withSuper[supergraph.SuperLocation] = introspection.New(sg)
		executables = withSuper
	}
	c := &Client{sg: sg, executables: executables, opt: op}
	if op.PlanCacheSize > 0 {
		cache, err := lru.New(op.PlanCacheSize)
		if err != nil {
			return nil, fmt.Errorf("plan cache: %w", err)
		}
		c.plans = cache
	}
	return c, nil
}

func (c *Client) Supergraph() *supergraph.Supergraph { return c.sg }

// Execute runs one operation. It always returns a result; failures are
// reported in its errors.
func (c *Client) Execute(ctx context.Context, p Params) *executor.ExecutionResult {
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: p.Query, OperationName: p.OperationName})

	finish := events.GraphQLFinish{OperationName: p.OperationName}
	result := c.execute(ctx, p, &finish)

	for i := range result.Errors {
		finish.Errors = append(finish.Errors, result.Errors[i])
	}
	finish.Duration = time.Since(start)
	eventbus.Publish(ctx, finish)
	return result
}

func (c *Client) execute(ctx context.Context, p Params, finish *events.GraphQLFinish) *executor.ExecutionResult {
	req, err := request.New(c.sg, p.Query,
		request.WithOperationName(p.OperationName),
		request.WithVariables(p.Variables),
	)
	if err != nil {
		return c.failure(ctx, err)
	}
	finish.OperationType = string(req.OperationType())

	if c.opt.Validate {
		if errs := req.Validate(); len(errs) > 0 {
			out := &executor.ExecutionResult{}
			for _, e := range errs {
				out.Errors = append(out.Errors, fromGQLError(e))
			}
			return out
		}
	}
	if err := req.Prepare(); err != nil {
		return c.failure(ctx, err)
	}
	finish.Digest = req.Digest()

	plan, err := c.loadPlan(ctx, req)
	if err != nil {
		return c.failure(ctx, err)
	}

	var opts []executor.Option
	if c.opt.Raw {
		opts = append(opts, executor.WithRaw())
	}
	if c.opt.Concurrency > 0 {
		opts = append(opts, executor.WithConcurrency(c.opt.Concurrency))
	}
	result, err := executor.New(req, plan, c.executables, opts...).Perform(ctx)
	if err != nil {
		return c.failure(ctx, err)
	}
	return result
}

// loadPlan returns the plan for a prepared request from the in-memory
// cache, the external cache or the planner, in that order.
func (c *Client) loadPlan(ctx context.Context, req *request.Request) (*planner.Plan, error) {
	start := time.Now()
	digest := req.Digest()
	finish := func(plan *planner.Plan, cached bool, err error) {
		ev := events.PlanFinish{
			OperationName: req.OperationName(),
			Digest:        digest,
			Cached:        cached,
			Err:           err,
			Duration:      time.Since(start),
		}
		if plan != nil {
			ev.Steps = len(plan.Steps)
		}
		eventbus.Publish(ctx, ev)
	}

	if c.plans != nil {
		if v, ok := c.plans.Get(digest); ok {
			if plan, err := planner.FromJSON(v.([]byte)); err == nil {
				finish(plan, true, nil)
				return plan, nil
			}
			c.plans.Remove(digest)
		}
	}
	if c.opt.CacheRead != nil {
		if data, ok := c.opt.CacheRead(ctx, digest); ok {
			if plan, err := planner.FromJSON(data); err == nil {
				if c.plans != nil {
					c.plans.Add(digest, data)
				}
				finish(plan, true, nil)
				return plan, nil
			}
		}
	}

	plan, err := planner.New(req).Perform()
	if err != nil {
		finish(nil, false, err)
		return nil, err
	}
	data, err := json.Marshal(plan)
	if err != nil {
		finish(plan, false, err)
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	if c.plans != nil {
		c.plans.Add(digest, data)
	}
	if c.opt.CacheWrite != nil {
		c.opt.CacheWrite(ctx, digest, data)
	}
	finish(plan, false, nil)
	return plan, nil
}

// failure converts an error into a result without data. Request and
// planning errors are shown to the client; anything else goes to the error
// hook and is replaced by a generic message.
func (c *Client) failure(ctx context.Context, err error) *executor.ExecutionResult {
	var gqlErr *gqlerror.Error
	var planErr *planner.Error
	switch {
	case errors.As(err, &gqlErr):
		return &executor.ExecutionResult{Errors: []executor.GraphQLError{fromGQLError(gqlErr)}}
	case errors.As(err, &planErr):
		return &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: planErr.Message}}}
	}
	if c.opt.OnError != nil {
		c.opt.OnError(ctx, err)
	}
	return &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: unexpectedErrorMessage}}}
}

func fromGQLError(e *gqlerror.Error) executor.GraphQLError {
	out := executor.GraphQLError{Message: e.Message, Extensions: e.Extensions}
	for _, p := range e.Path {
		switch v := p.(type) {
		case ast.PathName:
			out.Path = append(out.Path, string(v))
		case ast.PathIndex:
			out.Path = append(out.Path, int(v))
		}
	}
	return out
}
