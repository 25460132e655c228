package executor

import "context"

// Executable runs a GraphQL document at one location. A location may be
// served in-process or over the network; the executor does not care.
//
// Implementations must be safe for concurrent use. A returned error means
// the location could not be reached or answered unusably. It is reported as
// an error of the affected steps and does not stop the request.
type Executable interface {
	Execute(ctx context.Context, document string, variables map[string]any) (*ExecutionResult, error)
}

// ExecutableFunc adapts a function to Executable.
type ExecutableFunc func(ctx context.Context, document string, variables map[string]any) (*ExecutionResult, error)

func (f ExecutableFunc) Execute(ctx context.Context, document string, variables map[string]any) (*ExecutionResult, error) {
	return f(ctx, document, variables)
}
