package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the GraphQL endpoint receives a request.
type HTTPStart struct {
	Request   *http.Request
	RequestID string
}

// HTTPFinish is emitted after the response is written. Operations counts
// the operations in the request body, more than one for a batch.
type HTTPFinish struct {
	Request    *http.Request
	RequestID  string
	Status     int
	Operations int
	Duration   time.Duration
}
