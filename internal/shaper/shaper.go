// Package shaper turns merged stitching data into the response the client
// asked for: export fields are removed, __typename is answered, fragments
// apply by runtime type and nulls bubble through non-null positions.
package shaper

import (
	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphstitch/internal/language"
	request "github.com/hanpama/graphstitch/internal/request"
	schema "github.com/hanpama/graphstitch/internal/schema"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

type Shaper struct {
	req    *request.Request
	schema *ast.Schema
}

func New(req *request.Request) *Shaper {
	return &Shaper{req: req, schema: req.Supergraph().Schema()}
}

// Perform shapes raw data against the request's operation. It returns nil
// when a null reaches the root.
func (s *Shaper) Perform(raw map[string]any) map[string]any {
	root := s.req.RootType()
	out, ok := s.shapeObject(raw, root, s.req.Operation().SelectionSet, root.Name)
	if !ok {
		return nil
	}
	return out
}

type fieldGroup struct {
	key        string
	parentType *ast.Definition
	fields     []*ast.Field
}

func (s *Shaper) shapeObject(raw map[string]any, parentType *ast.Definition, set ast.SelectionSet, typename string) (map[string]any, bool) {
	if raw == nil {
		return nil, false
	}
	if typename == "" {
		if t, ok := raw[supergraph.TypenameExport].(string); ok {
			typename = t
		} else if !parentType.IsAbstractType() {
			typename = parentType.Name
		}
	}

	groups := s.collectFields(parentType, set, typename, nil, map[string]int{})
	out := make(map[string]any, len(groups))
	for _, g := range groups {
		first := g.fields[0]
		if first.Name == language.TypenameField {
			if v, ok := raw[g.key].(string); ok {
				out[g.key] = v
			} else if typename != "" {
				out[g.key] = typename
			} else {
				out[g.key] = parentType.Name
			}
			continue
		}

		def := schema.Field(s.schema, g.parentType.Name, first.Name)
		if def == nil {
			out[g.key] = nil
			continue
		}
		var sub ast.SelectionSet
		for _, f := range g.fields {
			sub = append(sub, f.SelectionSet...)
		}
		value, ok := s.shapeValue(raw[g.key], def.Type, sub)
		if !ok {
			if def.Type.NonNull {
				return nil, false
			}
			value = nil
		}
		out[g.key] = value
	}
	return out, true
}

// shapeValue returns false when the value is null, or became null, at its
// position.
func (s *Shaper) shapeValue(raw any, t *ast.Type, set ast.SelectionSet) (any, bool) {
	if raw == nil {
		return nil, false
	}
	if t.Elem != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		out := make([]any, len(list))
		for i, item := range list {
			v, ok := s.shapeValue(item, t.Elem, set)
			if !ok {
				if t.Elem.NonNull {
					return nil, false
				}
				v = nil
			}
			out[i] = v
		}
		return out, true
	}

	named := s.schema.Types[t.Name()]
	if named == nil || named.IsLeafType() {
		return raw, true
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	return s.shapeObject(obj, named, set, "")
}

// collectFields merges the selections that apply to typename by response
// key, in first-seen order.
func (s *Shaper) collectFields(parentType *ast.Definition, set ast.SelectionSet, typename string, groups []*fieldGroup, index map[string]int) []*fieldGroup {
	for _, sel := range set {
		switch node := sel.(type) {
		case *ast.Field:
			key := language.ResponseKey(node)
			if i, ok := index[key]; ok {
				groups[i].fields = append(groups[i].fields, node)
				continue
			}
			index[key] = len(groups)
			groups = append(groups, &fieldGroup{key: key, parentType: parentType, fields: []*ast.Field{node}})
		case *ast.InlineFragment:
			fragType := parentType
			if node.TypeCondition != "" {
				fragType = s.schema.Types[node.TypeCondition]
			}
			if !s.applies(fragType, typename) {
				continue
			}
			groups = s.collectFields(fragType, node.SelectionSet, typename, groups, index)
		case *ast.FragmentSpread:
			frag := s.req.Fragment(node.Name)
			if frag == nil {
				continue
			}
			fragType := s.schema.Types[frag.TypeCondition]
			if !s.applies(fragType, typename) {
				continue
			}
			groups = s.collectFields(fragType, frag.SelectionSet, typename, groups, index)
		}
	}
	return groups
}

func (s *Shaper) applies(fragType *ast.Definition, typename string) bool {
	if fragType == nil || typename == "" {
		return false
	}
	return schema.IncludesType(s.schema, fragType, typename)
}
