package events

import "time"

// GraphQLStart is emitted before a client runs one operation.
type GraphQLStart struct {
	Query         string
	OperationName string
}

// GraphQLFinish is emitted with the outcome of one operation. Digest and
// OperationType are empty when the query did not parse.
type GraphQLFinish struct {
	OperationName string
	OperationType string
	Digest        string
	Errors        []error
	Duration      time.Duration
}
