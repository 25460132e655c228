package planner

import (
	"github.com/vektah/gqlparser/v2/ast"

	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

// delegateRemoteSelections assigns the fields the current location cannot
// resolve to other locations and adds a step for every hop that reaches
// them.
func (p *Planner) delegateRemoteSelections(sc *scope) error {
	typeName := sc.parentType.Name
	possible := func(f *ast.Field) []string { return p.sg.LocationsForField(typeName, f.Name) }

	var order []string
	byLocation := map[string]ast.SelectionSet{}
	assign := func(loc string, f *ast.Field) {
		if _, ok := byLocation[loc]; !ok {
			order = append(order, loc)
		}
		byLocation[loc] = append(byLocation[loc], f)
	}

	// Fields with a single location go there.
	var shared []*ast.Field
	for _, f := range sc.remote {
		if locs := possible(f); len(locs) == 1 {
			assign(locs[0], f)
		} else {
			shared = append(shared, f)
		}
	}

	// Fields available at an already chosen location join it.
	if len(byLocation) > 0 && len(shared) > 0 {
		var rest []*ast.Field
	next:
		for _, f := range shared {
			for _, loc := range possible(f) {
				if _, used := byLocation[loc]; used {
					assign(loc, f)
					continue next
				}
			}
			rest = append(rest, f)
		}
		shared = rest
	}

	// The rest go where most of them are available.
	if len(shared) > 0 {
		availability := map[string]int{}
		for _, f := range shared {
			for _, loc := range possible(f) {
				availability[loc]++
			}
		}
		for _, f := range shared {
			locs := possible(f)
			preferred, best := locs[0], 0
			for _, loc := range locs {
				if availability[loc] > best {
					preferred, best = loc, availability[loc]
				}
			}
			assign(preferred, f)
		}
	}

	routes := p.sg.RouteTypeToLocations(typeName, sc.step.location, order)
	for _, goal := range order {
		route, ok := routes[goal]
		if !ok {
			return errorf("Type %s cannot be routed from location %q to %q.", typeName, sc.step.location, goal)
		}

		target := &sc.local
		after := sc.step.index
		for i, hop := range route {
			var resolver *supergraph.Resolver
			if !hop.IsVirtual() {
				resolver = hop
				exports := hop.Key.ExportNodes()
				if hop.RequiresTypename() {
					exports = append(exports, typenameExport())
				}
				*target = mergeSelections(*target, exports)
			}

			var selections ast.SelectionSet
			if i == len(route)-1 {
				selections = byLocation[goal]
			}
			step, err := p.addStep(after, hop.Location, sc.parentType, selections, sc.path, resolver, ast.Query)
			if err != nil {
				return err
			}
			target = &step.selections
			after = step.index
		}
	}
	return nil
}
