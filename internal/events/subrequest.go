package events

import "time"

// SubrequestStart is emitted before a location is called over HTTP.
type SubrequestStart struct {
	ID       string
	Location string
	Endpoint string
}

// SubrequestFinish is emitted after a location call completes.
type SubrequestFinish struct {
	ID       string
	Location string
	Endpoint string
	Status   int
	Err      error
	Duration time.Duration
}
