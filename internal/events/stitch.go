package events

import "time"

// PlanFinish is emitted after a plan is built or loaded from cache.
type PlanFinish struct {
	OperationName string
	Digest        string
	Steps         int
	Cached        bool
	Err           error
	Duration      time.Duration
}

// StepStart is emitted before the executable call that serves one or more
// plan steps at a location.
type StepStart struct {
	ID       string
	Location string
	Steps    []int
	Resolver bool
	Origins  int
}

// StepFinish is emitted after the executable call returns.
type StepFinish struct {
	ID       string
	Location string
	Steps    []int
	Resolver bool
	Origins  int
	Errors   int
	Err      error
	Duration time.Duration
}
