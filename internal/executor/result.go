package executor

type Path []PathElement

// PathElement is a response key (string) or a list index (int).
type PathElement any

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult represents the result of executing a GraphQL query. Both
// the client response and location responses use this shape.
type ExecutionResult struct {
	Data   any            `json:"data,omitempty"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// Error is a fatal execution error. The plan cannot be executed.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }
