// Package planner splits a prepared request into location-scoped steps
// linked by dependencies.
package planner

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphstitch/internal/language"
	request "github.com/hanpama/graphstitch/internal/request"
	schema "github.com/hanpama/graphstitch/internal/schema"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

type Planner struct {
	req    *request.Request
	sg     *supergraph.Supergraph
	schema *ast.Schema

	sequence     int
	steps        []*stepBuilder
	byEntrypoint map[string]*stepBuilder
	planned      bool
	err          error
}

type stepBuilder struct {
	index         int
	after         int
	location      string
	parentType    *ast.Definition
	operationType ast.Operation
	selections    ast.SelectionSet
	variables     map[string]*ast.Type
	path          []string
	resolver      *supergraph.Resolver
}

func New(req *request.Request) *Planner {
	return &Planner{
		req:          req,
		sg:           req.Supergraph(),
		schema:       req.Supergraph().Schema(),
		byEntrypoint: map[string]*stepBuilder{},
	}
}

// Perform builds the plan. A Planner plans once; later calls return a plan
// built from the same steps, or the same error.
func (p *Planner) Perform() (*Plan, error) {
	if !p.planned {
		p.planned = true
		if p.err = p.buildRootEntrypoints(); p.err != nil {
			p.steps = nil
			p.byEntrypoint = map[string]*stepBuilder{}
		} else {
			p.expandAbstractResolvers()
		}
	}
	if p.err != nil {
		return nil, p.err
	}

	plan := &Plan{Steps: make([]*Step, 0, len(p.steps))}
	for _, b := range p.steps {
		plan.Steps = append(plan.Steps, b.toStep(p.schema))
	}
	return plan, nil
}

func (p *Planner) buildRootEntrypoints() error {
	op := p.req.Operation()
	root := schema.RootType(p.schema, op.Operation)
	if root == nil {
		return errorf("Invalid operation type %q.", op.Operation)
	}

	fields, err := p.rootFields(root, op.SelectionSet, nil)
	if err != nil {
		return err
	}

	switch op.Operation {
	case ast.Query:
		var order []string
		byLocation := map[string]ast.SelectionSet{}
		for _, f := range fields {
			loc, err := p.rootLocation(root, f)
			if err != nil {
				return err
			}
			if _, ok := byLocation[loc]; !ok {
				order = append(order, loc)
			}
			byLocation[loc] = append(byLocation[loc], f)
		}
		for _, loc := range order {
			if _, err := p.addStep(RootIndex, loc, root, byLocation[loc], nil, nil, ast.Query); err != nil {
				return err
			}
		}

	case ast.Mutation:
		type group struct {
			location   string
			selections ast.SelectionSet
		}
		var groups []*group
		for _, f := range fields {
			loc, err := p.rootLocation(root, f)
			if err != nil {
				return err
			}
			if len(groups) == 0 || groups[len(groups)-1].location != loc {
				groups = append(groups, &group{location: loc})
			}
			last := groups[len(groups)-1]
			last.selections = append(last.selections, f)
		}
		after := RootIndex
		for _, g := range groups {
			step, err := p.addStep(after, g.location, root, g.selections, nil, nil, ast.Mutation)
			if err != nil {
				return err
			}
			after = step.index
		}

	case ast.Subscription:
		if len(fields) > 1 {
			return errorf("Subscription operations must select only one root field.")
		}
		for _, f := range fields {
			loc, err := p.rootLocation(root, f)
			if err != nil {
				return err
			}
			if _, err := p.addStep(RootIndex, loc, root, ast.SelectionSet{f}, nil, nil, ast.Subscription); err != nil {
				return err
			}
		}

	default:
		return errorf("Invalid operation type %q.", op.Operation)
	}
	return nil
}

// rootFields flattens fragments on the root type into its fields. Root
// __typename is answered by the shaper and never planned.
func (p *Planner) rootFields(root *ast.Definition, set ast.SelectionSet, out []*ast.Field) ([]*ast.Field, error) {
	for _, sel := range set {
		switch node := sel.(type) {
		case *ast.Field:
			if node.Name == language.TypenameField {
				continue
			}
			out = append(out, node)
		case *ast.InlineFragment:
			if node.TypeCondition != "" && node.TypeCondition != root.Name {
				return nil, errorf("Unexpected fragment on %s in %s selection.", node.TypeCondition, root.Name)
			}
			var err error
			if out, err = p.rootFields(root, node.SelectionSet, out); err != nil {
				return nil, err
			}
		case *ast.FragmentSpread:
			frag := p.req.Fragment(node.Name)
			if frag == nil {
				return nil, errorf("Unknown fragment %q.", node.Name)
			}
			if frag.TypeCondition != root.Name {
				return nil, errorf("Unexpected fragment on %s in %s selection.", frag.TypeCondition, root.Name)
			}
			var err error
			if out, err = p.rootFields(root, frag.SelectionSet, out); err != nil {
				return nil, err
			}
		default:
			return nil, errorf("Unexpected node of type %T in selection set.", sel)
		}
	}
	return out, nil
}

func (p *Planner) rootLocation(root *ast.Definition, f *ast.Field) (string, error) {
	if root.Fields.ForName(f.Name) == nil {
		return "", errorf("Cannot query field %q on type %q.", f.Name, root.Name)
	}
	locs := p.sg.LocationsForField(root.Name, f.Name)
	if len(locs) == 0 {
		return "", errorf("Field %s.%s is not available at any location.", root.Name, f.Name)
	}
	return locs[0], nil
}

// addStep creates the step for an entrypoint, or extends the existing one
// when the same entrypoint was reached before.
func (p *Planner) addStep(
	after int,
	location string,
	parentType *ast.Definition,
	selections ast.SelectionSet,
	path []string,
	resolver *supergraph.Resolver,
	operationType ast.Operation,
) (*stepBuilder, error) {
	var keyDef string
	if resolver != nil {
		keyDef = resolver.Key.String()
	}
	entrypoint := fmt.Sprintf("%d/%s/%s/%s/#/%s", after, location, parentType.Name, keyDef, strings.Join(path, "/"))

	step, ok := p.byEntrypoint[entrypoint]
	if !ok {
		p.sequence++
		step = &stepBuilder{
			index:         p.sequence,
			after:         after,
			location:      location,
			parentType:    parentType,
			operationType: operationType,
			variables:     map[string]*ast.Type{},
			path:          path,
			resolver:      resolver,
		}
		p.byEntrypoint[entrypoint] = step
		p.steps = append(p.steps, step)
	}

	if len(selections) > 0 {
		local, err := p.extractLocaleSelections(step, parentType, selections, path)
		if err != nil {
			return nil, err
		}
		step.selections = mergeSelections(step.selections, local)
	}
	return step, nil
}

// expandAbstractResolvers wraps the field selections of steps joined through
// a resolver of another (abstract) type into a fragment on the parent type.
func (p *Planner) expandAbstractResolvers() {
	for _, step := range p.steps {
		if step.resolver == nil || step.resolver.TypeName == step.parentType.Name {
			continue
		}
		var fields, rest ast.SelectionSet
		for _, sel := range step.selections {
			if _, ok := sel.(*ast.Field); ok {
				fields = append(fields, sel)
			} else {
				rest = append(rest, sel)
			}
		}
		if len(fields) == 0 {
			continue
		}
		step.selections = append(rest, &ast.InlineFragment{
			TypeCondition: step.parentType.Name,
			SelectionSet:  fields,
		})
	}
}

func (b *stepBuilder) toStep(s *ast.Schema) *Step {
	step := &Step{
		Index:         b.index,
		After:         b.after,
		Location:      b.location,
		ParentType:    b.parentType.Name,
		OperationType: b.operationType,
		Selections:    language.Print(b.selections),
		Path:          append([]string(nil), b.path...),
	}
	if len(b.variables) > 0 {
		step.Variables = make(map[string]string, len(b.variables))
		for name, t := range b.variables {
			step.Variables[name] = t.String()
		}
	}
	if b.resolver != nil {
		step.Resolver = b.resolver.Version
	}
	if b.parentType.Kind == ast.Object && !schema.IsRootType(s, b.parentType) {
		step.TypeCondition = b.parentType.Name
	}
	return step
}
