package planner

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// RootIndex is the implicit predecessor of every root step.
const RootIndex = 0

// Step is one planned sub-request scoped to a location.
type Step struct {
	Index         int               `json:"step"`
	After         int               `json:"after"`
	Location      string            `json:"location"`
	ParentType    string            `json:"parent_type"`
	OperationType ast.Operation     `json:"operation_type"`
	Selections    string            `json:"selections"`
	Variables     map[string]string `json:"variables,omitempty"`
	Path          []string          `json:"path,omitempty"`
	TypeCondition string            `json:"if_type,omitempty"`
	DeferLabel    string            `json:"defer_label,omitempty"`
	// Resolver is the version of the resolver that joins this step. It is
	// empty for root-style steps.
	Resolver string `json:"resolver,omitempty"`
}

// Plan lists steps in ascending index order.
type Plan struct {
	Steps []*Step
}

type planJSON struct {
	Ops []*Step `json:"ops"`
}

func (p *Plan) MarshalJSON() ([]byte, error) {
	ops := p.Steps
	if ops == nil {
		ops = []*Step{}
	}
	return json.Marshal(planJSON{Ops: ops})
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var raw planJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i, s := range raw.Ops {
		if s == nil {
			return fmt.Errorf("plan: op %d is null", i)
		}
		if i > 0 && s.Index <= raw.Ops[i-1].Index {
			return fmt.Errorf("plan: ops are not in ascending step order at %d", s.Index)
		}
	}
	p.Steps = raw.Ops
	return nil
}

// FromJSON restores a serialized plan.
func FromJSON(data []byte) (*Plan, error) {
	p := &Plan{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return p, nil
}

// Step returns the step with the given index.
func (p *Plan) Step(index int) *Step {
	for _, s := range p.Steps {
		if s.Index == index {
			return s
		}
	}
	return nil
}
