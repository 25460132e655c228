package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
	planner "github.com/hanpama/graphstitch/internal/planner"
	request "github.com/hanpama/graphstitch/internal/request"
	shaper "github.com/hanpama/graphstitch/internal/shaper"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

type options struct {
	raw         bool
	concurrency int
}

type Option func(*options)

// WithRaw returns merged data as is, including export fields, without
// shaping it against the request.
func WithRaw() Option { return func(o *options) { o.raw = true } }

// WithConcurrency limits the executable calls running at once within a
// wave. Zero or less means no limit.
func WithConcurrency(n int) Option { return func(o *options) { o.concurrency = n } }

// Executor runs one plan for one request. It owns the aggregate data and
// error list and is discarded after Perform.
type Executor struct {
	req         *request.Request
	sg          *supergraph.Supergraph
	plan        *planner.Plan
	executables map[string]Executable
	opts        options

	data   map[string]any
	errors []GraphQLError
}

func New(req *request.Request, plan *planner.Plan, executables map[string]Executable, opts ...Option) *Executor {
	e := &Executor{
		req:         req,
		sg:          req.Supergraph(),
		plan:        plan,
		executables: executables,
		data:        map[string]any{},
	}
	for _, o := range opts {
		o(&e.opts)
	}
	return e
}

// Perform executes the plan wave by wave. Location failures become errors
// in the result; a returned error means the plan itself could not run.
func (e *Executor) Perform(ctx context.Context) (*ExecutionResult, error) {
	completed := map[int]bool{planner.RootIndex: true}
	waves := 0
	for {
		var wave []*planner.Step
		for _, step := range e.plan.Steps {
			if completed[step.After] {
				wave = append(wave, step)
			}
		}
		if len(wave) == 0 {
			break
		}
		waves++
		if waves > len(e.plan.Steps) {
			return nil, &Error{Message: "Too many execution waves attempted."}
		}
		next, err := e.runWave(ctx, wave)
		if err != nil {
			return nil, err
		}
		completed = next
	}

	result := &ExecutionResult{}
	if e.opts.raw {
		result.Data = e.data
	} else if shaped := shaper.New(e.req).Perform(e.data); shaped != nil {
		result.Data = shaped
	}
	if len(e.errors) > 0 {
		result.Errors = e.errors
	}
	return result, nil
}

type stepGroup struct {
	location string
	resolver bool
	steps    []*planner.Step
}

// runWave prepares every call on the calling goroutine, runs the calls
// concurrently and merges their results in group order. It returns the
// indices of the steps that executed.
func (e *Executor) runWave(ctx context.Context, wave []*planner.Step) (map[int]bool, error) {
	var groups []*stepGroup
	for _, step := range wave {
		resolver := step.Resolver != ""
		var g *stepGroup
		for _, existing := range groups {
			if existing.location == step.Location && existing.resolver == resolver {
				g = existing
				break
			}
		}
		if g == nil {
			g = &stepGroup{location: step.Location, resolver: resolver}
			groups = append(groups, g)
		}
		g.steps = append(g.steps, step)
	}

	var calls []*call
	for _, g := range groups {
		exe, ok := e.executables[g.location]
		if !ok || exe == nil {
			return nil, &Error{Message: fmt.Sprintf("No executable assigned for location %q.", g.location)}
		}
		if g.resolver {
			c, err := e.prepareResolverCall(g.location, g.steps)
			if err != nil {
				return nil, err
			}
			if c != nil {
				c.executable = exe
				calls = append(calls, c)
			}
			continue
		}
		for _, step := range g.steps {
			if c := e.prepareRootCall(step); c != nil {
				c.executable = exe
				calls = append(calls, c)
			}
		}
	}

	var eg errgroup.Group
	if e.opts.concurrency > 0 {
		eg.SetLimit(e.opts.concurrency)
	}
	for _, c := range calls {
		c := c
		eg.Go(func() error {
			c.run(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	done := map[int]bool{}
	for _, c := range calls {
		if c.resolver {
			e.mergeResolverCall(c)
		} else {
			e.mergeRootCall(c)
		}
		for _, step := range c.steps {
			done[step.Index] = true
		}
	}
	return done, nil
}

// call is one executable invocation serving one or more steps.
type call struct {
	location   string
	resolver   bool
	executable Executable
	document   string
	variables  map[string]any
	steps      []*planner.Step
	resolvers  []*supergraph.Resolver
	// origins holds, per step, the paths of the objects the step merges into.
	origins [][]Path

	result *ExecutionResult
	err    error
}

func (c *call) run(ctx context.Context) {
	id := uuid.NewString()
	indices := make([]int, len(c.steps))
	origins := 0
	for i, s := range c.steps {
		indices[i] = s.Index
		origins += len(c.origins[i])
	}
	eventbus.Publish(ctx, events.StepStart{ID: id, Location: c.location, Steps: indices, Resolver: c.resolver, Origins: origins})
	start := time.Now()

	c.result, c.err = c.executable.Execute(ctx, c.document, c.variables)
	if c.err == nil && c.result == nil {
		c.result = &ExecutionResult{}
	}

	errCount := 0
	if c.result != nil {
		errCount = len(c.result.Errors)
	}
	eventbus.Publish(ctx, events.StepFinish{
		ID:       id,
		Location: c.location,
		Steps:    indices,
		Resolver: c.resolver,
		Origins:  origins,
		Errors:   errCount,
		Err:      c.err,
		Duration: time.Since(start),
	})
}
