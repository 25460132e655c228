package planner

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphstitch/internal/language"
	schema "github.com/hanpama/graphstitch/internal/schema"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

// scope accumulates the selections of one parent type at one location.
// Same-type fragments collect into the scope they appear in.
type scope struct {
	step             *stepBuilder
	parentType       *ast.Definition
	path             []string
	local            ast.SelectionSet
	remote           []*ast.Field
	requiresTypename bool
}

func typenameExport() *ast.Field {
	return &ast.Field{Alias: supergraph.TypenameExport, Name: language.TypenameField}
}

// extractLocaleSelections keeps what the step's location can resolve and
// delegates the rest to new steps.
func (p *Planner) extractLocaleSelections(step *stepBuilder, parentType *ast.Definition, input ast.SelectionSet, path []string) (ast.SelectionSet, error) {
	sc := &scope{
		step:             step,
		parentType:       parentType,
		path:             path,
		requiresTypename: parentType.IsAbstractType(),
	}
	if err := p.collect(sc, input); err != nil {
		return nil, err
	}
	if len(sc.remote) > 0 {
		if err := p.delegateRemoteSelections(sc); err != nil {
			return nil, err
		}
	}
	if sc.requiresTypename || len(sc.local) == 0 {
		sc.local = mergeSelections(sc.local, ast.SelectionSet{typenameExport()})
	}
	return sc.local, nil
}

func (p *Planner) collect(sc *scope, input ast.SelectionSet) error {
	location := sc.step.location
	for _, sel := range p.expandInterfaceSelections(location, sc.parentType, input) {
		switch node := sel.(type) {
		case *ast.Field:
			if strings.HasPrefix(node.Alias, supergraph.ExportPrefix) {
				return errorf("Alias %q is not allowed because %q is a reserved prefix.", node.Alias, supergraph.ExportPrefix)
			}
			if node.Name == language.TypenameField {
				sc.local = append(sc.local, node)
				continue
			}
			fieldDef := schema.Field(p.schema, sc.parentType.Name, node.Name)
			if fieldDef == nil {
				return errorf("Cannot query field %q on type %q.", node.Name, sc.parentType.Name)
			}
			locs := p.sg.LocationsForField(sc.parentType.Name, node.Name)
			if len(locs) == 0 {
				return errorf("Field %s.%s is not available at any location.", sc.parentType.Name, node.Name)
			}
			if !contains(locs, location) {
				sc.remote = append(sc.remote, node)
				continue
			}

			p.collectVariables(sc.step, node.Arguments, node.Directives)
			fieldType := schema.FieldType(p.schema, fieldDef)
			if schema.IsLeaf(fieldType) {
				sc.local = append(sc.local, node)
				continue
			}
			childPath := append(append([]string(nil), sc.path...), language.ResponseKey(node))
			sub, err := p.extractLocaleSelections(sc.step, fieldType, node.SelectionSet, childPath)
			if err != nil {
				return err
			}
			cp := *node
			cp.SelectionSet = sub
			sc.local = append(sc.local, &cp)

		case *ast.InlineFragment:
			fragType := sc.parentType
			if node.TypeCondition != "" {
				fragType = p.schema.Types[node.TypeCondition]
				if fragType == nil {
					return errorf("Unknown type %q.", node.TypeCondition)
				}
			}
			if err := p.collectFragment(sc, fragType, node.SelectionSet, node.Directives); err != nil {
				return err
			}

		case *ast.FragmentSpread:
			frag := p.req.Fragment(node.Name)
			if frag == nil {
				return errorf("Unknown fragment %q.", node.Name)
			}
			fragType := p.schema.Types[frag.TypeCondition]
			if fragType == nil {
				return errorf("Unknown type %q.", frag.TypeCondition)
			}
			if err := p.collectFragment(sc, fragType, frag.SelectionSet, node.Directives); err != nil {
				return err
			}

		default:
			return errorf("Unexpected node of type %T in selection set.", sel)
		}
	}
	return nil
}

// collectFragment inlines same-type fragments into the scope. Fragments on
// another type become inline fragments and need __typename to be applied.
func (p *Planner) collectFragment(sc *scope, fragType *ast.Definition, set ast.SelectionSet, dirs ast.DirectiveList) error {
	if !p.sg.HasTypeAtLocation(fragType.Name, sc.step.location) {
		return nil
	}
	p.collectVariables(sc.step, nil, dirs)
	if fragType == sc.parentType {
		return p.collect(sc, set)
	}
	sub, err := p.extractLocaleSelections(sc.step, fragType, set, sc.path)
	if err != nil {
		return err
	}
	sc.local = append(sc.local, &ast.InlineFragment{
		TypeCondition: fragType.Name,
		Directives:    dirs,
		SelectionSet:  sub,
	})
	sc.requiresTypename = true
	return nil
}

// expandInterfaceSelections moves interface fields the location does not
// resolve on the interface itself into fragments on each possible type
// present at the location.
func (p *Planner) expandInterfaceSelections(location string, parentType *ast.Definition, input ast.SelectionSet) ast.SelectionSet {
	if parentType.Kind != ast.Interface {
		return input
	}
	local := p.sg.FieldsByTypeAndLocation(parentType.Name, location)

	var kept, expanded ast.SelectionSet
	for _, sel := range input {
		if f, ok := sel.(*ast.Field); ok && f.Name != language.TypenameField && !contains(local, f.Name) {
			expanded = append(expanded, f)
			continue
		}
		kept = append(kept, sel)
	}
	if len(expanded) == 0 {
		return input
	}
	for _, pt := range schema.PossibleTypes(p.schema, parentType) {
		if !p.sg.HasTypeAtLocation(pt.Name, location) {
			continue
		}
		kept = append(kept, &ast.InlineFragment{TypeCondition: pt.Name, SelectionSet: expanded})
	}
	return kept
}

// collectVariables records the request variables referenced by arguments
// and directives.
func (p *Planner) collectVariables(step *stepBuilder, args ast.ArgumentList, dirs ast.DirectiveList) {
	defs := p.req.VariableDefinitions()
	var visit func(v *ast.Value)
	visit = func(v *ast.Value) {
		if v == nil {
			return
		}
		if v.Kind == ast.Variable {
			if def := defs.ForName(v.Raw); def != nil {
				step.variables[v.Raw] = def.Type
			}
			return
		}
		for _, c := range v.Children {
			visit(c.Value)
		}
	}
	for _, a := range args {
		visit(a.Value)
	}
	for _, d := range dirs {
		for _, a := range d.Arguments {
			visit(a.Value)
		}
	}
}

// mergeSelections appends src to dst, dropping export fields whose alias is
// already present.
func mergeSelections(dst, src ast.SelectionSet) ast.SelectionSet {
	for _, sel := range src {
		if f, ok := sel.(*ast.Field); ok && strings.HasPrefix(f.Alias, supergraph.ExportPrefix) && hasAlias(dst, f.Alias) {
			continue
		}
		dst = append(dst, sel)
	}
	return dst
}

func hasAlias(set ast.SelectionSet, alias string) bool {
	for _, sel := range set {
		if f, ok := sel.(*ast.Field); ok && f.Alias == alias {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
