package httptp

import (
	"context"
	"sync"
)

// EndpointProvider returns the GraphQL endpoint URLs serving a location.
// Implementations may integrate with service discovery and must be safe for
// concurrent use.

type EndpointProvider interface {
	Endpoints(ctx context.Context, location string) ([]string, error)
}

// StaticEndpoints is a provider backed by an in-memory map from location to
// endpoint URLs.

type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		vv := make([]string, len(v))
		copy(vv, v)
		cp[k] = vv
	}
	return &StaticEndpoints{data: cp}
}

func (s *StaticEndpoints) Endpoints(ctx context.Context, location string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[location]
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	out := make([]string, len(arr))
	copy(out, arr)
	return out, nil
}

// Locations lists the configured locations.
func (s *StaticEndpoints) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}
