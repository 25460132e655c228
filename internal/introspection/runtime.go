// Package introspection answers __schema and __type from the supergraph
// schema. It serves supergraph.SuperLocation in-process, so introspection
// is planned and executed like any other location.
package introspection

import (
	"context"
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	executor "github.com/hanpama/graphstitch/internal/executor"
	language "github.com/hanpama/graphstitch/internal/language"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

const defaultDeprecationReason = "No longer supported"

// Executable resolves introspection documents. It is safe for concurrent
// use.
type Executable struct {
	schema *ast.Schema
	hidden map[string]bool
}

var _ executor.Executable = (*Executable)(nil)

// New returns an Executable for sg. Routing directives are not exposed.
func New(sg *supergraph.Supergraph) *Executable {
	return &Executable{
		schema: sg.Schema(),
		hidden: map[string]bool{
			supergraph.SourceDirective:   true,
			supergraph.ResolverDirective: true,
		},
	}
}

func (e *Executable) Execute(ctx context.Context, document string, variables map[string]any) (*executor.ExecutionResult, error) {
	doc, err := language.ParseQuery(document)
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("introspection: expected one operation, got %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	if op.Operation != ast.Query || e.schema.Query == nil {
		return nil, fmt.Errorf("introspection: %s operations are not supported", op.Operation)
	}
	r := &resolver{Executable: e, doc: doc, vars: variables}
	data := map[string]any{}
	r.selectRoot(op.SelectionSet, data)
	return &executor.ExecutionResult{Data: data}, nil
}

type resolver struct {
	*Executable
	doc  *ast.QueryDocument
	vars map[string]any
}

// inputValue is an argument or an input object field.
type inputValue struct {
	name         string
	description  string
	typ          *ast.Type
	defaultValue *ast.Value
	directives   ast.DirectiveList
}

func (r *resolver) selectRoot(set ast.SelectionSet, out map[string]any) {
	root := r.schema.Query.Name
	r.each(set, root, func(f *ast.Field) {
		key := language.ResponseKey(f)
		switch f.Name {
		case language.TypenameField:
			out[key] = root
		case "__schema":
			out[key] = r.complete(r.schema, f.SelectionSet)
		case "__type":
			name, _ := r.arg(f, "name").(string)
			out[key] = r.complete(r.namedType(name), f.SelectionSet)
		}
	})
}

// each calls fn for every field of set that applies to typename, expanding
// fragments.
func (r *resolver) each(set ast.SelectionSet, typename string, fn func(*ast.Field)) {
	for _, sel := range set {
		switch node := sel.(type) {
		case *ast.Field:
			fn(node)
		case *ast.InlineFragment:
			if node.TypeCondition == "" || node.TypeCondition == typename {
				r.each(node.SelectionSet, typename, fn)
			}
		case *ast.FragmentSpread:
			if frag := r.doc.Fragments.ForName(node.Name); frag != nil && frag.TypeCondition == typename {
				r.each(frag.SelectionSet, typename, fn)
			}
		}
	}
}

func (r *resolver) arg(f *ast.Field, name string) any {
	a := f.Arguments.ForName(name)
	if a == nil {
		return nil
	}
	v, err := a.Value.Value(r.vars)
	if err != nil {
		return nil
	}
	return v
}

func (r *resolver) includeDeprecated(f *ast.Field) bool {
	b, _ := r.arg(f, "includeDeprecated").(bool)
	return b
}

// complete turns a resolved value into response data.
func (r *resolver) complete(v any, set ast.SelectionSet) any {
	var typename string
	var resolve func(f *ast.Field) any
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = r.complete(item, set)
		}
		return out
	case *ast.Schema:
		if x == nil {
			return nil
		}
		typename, resolve = "__Schema", func(f *ast.Field) any { return r.resolveSchemaField(f) }
	case *ast.Type:
		if x == nil {
			return nil
		}
		typename, resolve = "__Type", func(f *ast.Field) any { return r.resolveTypeField(x, f) }
	case *ast.FieldDefinition:
		typename, resolve = "__Field", func(f *ast.Field) any { return r.resolveFieldField(x, f) }
	case *inputValue:
		typename, resolve = "__InputValue", func(f *ast.Field) any { return resolveInputValueField(x, f.Name) }
	case *ast.EnumValueDefinition:
		typename, resolve = "__EnumValue", func(f *ast.Field) any { return resolveEnumValueField(x, f.Name) }
	case *ast.DirectiveDefinition:
		typename, resolve = "__Directive", func(f *ast.Field) any { return r.resolveDirectiveField(x, f) }
	default:
		return v
	}

	out := map[string]any{}
	r.each(set, typename, func(f *ast.Field) {
		key := language.ResponseKey(f)
		if f.Name == language.TypenameField {
			out[key] = typename
			return
		}
		out[key] = r.complete(resolve(f), f.SelectionSet)
	})
	return out
}

func (r *resolver) namedType(name string) *ast.Type {
	if r.schema.Types[name] == nil {
		return nil
	}
	return ast.NamedType(name, nil)
}

func (r *resolver) resolveSchemaField(f *ast.Field) any {
	switch f.Name {
	case "description":
		return optional(r.schema.Description)
	case "types":
		names := make([]string, 0, len(r.schema.Types))
		for name := range r.schema.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, name := range names {
			out[i] = ast.NamedType(name, nil)
		}
		return out
	case "queryType":
		return r.rootType(r.schema.Query)
	case "mutationType":
		return r.rootType(r.schema.Mutation)
	case "subscriptionType":
		return r.rootType(r.schema.Subscription)
	case "directives":
		names := make([]string, 0, len(r.schema.Directives))
		for name := range r.schema.Directives {
			if !r.hidden[name] {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, name := range names {
			out[i] = r.schema.Directives[name]
		}
		return out
	}
	return nil
}

func (r *resolver) rootType(def *ast.Definition) any {
	if def == nil {
		return nil
	}
	return ast.NamedType(def.Name, nil)
}

func (r *resolver) resolveTypeField(t *ast.Type, f *ast.Field) any {
	// wrapper types only expose kind and ofType
	switch {
	case t.NonNull:
		switch f.Name {
		case "kind":
			return "NON_NULL"
		case "ofType":
			inner := *t
			inner.NonNull = false
			return &inner
		}
		return nil
	case t.Elem != nil:
		switch f.Name {
		case "kind":
			return "LIST"
		case "ofType":
			return t.Elem
		}
		return nil
	}

	def := r.schema.Types[t.NamedType]
	if def == nil {
		return nil
	}
	switch f.Name {
	case "kind":
		return string(def.Kind)
	case "name":
		return def.Name
	case "description":
		return optional(def.Description)
	case "specifiedByURL":
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if a := d.Arguments.ForName("url"); a != nil {
				return a.Value.Raw
			}
		}
		return nil
	case "isOneOf":
		if def.Kind != ast.InputObject {
			return nil
		}
		return def.Directives.ForName("oneOf") != nil
	case "fields":
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			return nil
		}
		include := r.includeDeprecated(f)
		out := []any{}
		for _, fd := range def.Fields {
			if len(fd.Name) > 1 && fd.Name[:2] == "__" {
				continue
			}
			if !include && isDeprecated(fd.Directives) {
				continue
			}
			out = append(out, fd)
		}
		return out
	case "interfaces":
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			return nil
		}
		out := []any{}
		for _, name := range def.Interfaces {
			out = append(out, ast.NamedType(name, nil))
		}
		return out
	case "possibleTypes":
		if def.Kind != ast.Interface && def.Kind != ast.Union {
			return nil
		}
		possible := r.schema.GetPossibleTypes(def)
		names := make([]string, 0, len(possible))
		for _, p := range possible {
			names = append(names, p.Name)
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, name := range names {
			out[i] = ast.NamedType(name, nil)
		}
		return out
	case "enumValues":
		if def.Kind != ast.Enum {
			return nil
		}
		include := r.includeDeprecated(f)
		out := []any{}
		for _, ev := range def.EnumValues {
			if !include && isDeprecated(ev.Directives) {
				continue
			}
			out = append(out, ev)
		}
		return out
	case "inputFields":
		if def.Kind != ast.InputObject {
			return nil
		}
		include := r.includeDeprecated(f)
		out := []any{}
		for _, fd := range def.Fields {
			if !include && isDeprecated(fd.Directives) {
				continue
			}
			out = append(out, &inputValue{fd.Name, fd.Description, fd.Type, fd.DefaultValue, fd.Directives})
		}
		return out
	case "ofType":
		return nil
	}
	return nil
}

func (r *resolver) resolveFieldField(fd *ast.FieldDefinition, f *ast.Field) any {
	switch f.Name {
	case "name":
		return fd.Name
	case "description":
		return optional(fd.Description)
	case "args":
		return arguments(fd.Arguments, r.includeDeprecated(f))
	case "type":
		return fd.Type
	case "isDeprecated":
		return isDeprecated(fd.Directives)
	case "deprecationReason":
		return deprecationReason(fd.Directives)
	}
	return nil
}

func resolveInputValueField(iv *inputValue, field string) any {
	switch field {
	case "name":
		return iv.name
	case "description":
		return optional(iv.description)
	case "type":
		return iv.typ
	case "defaultValue":
		if iv.defaultValue == nil {
			return nil
		}
		return iv.defaultValue.String()
	case "isDeprecated":
		return isDeprecated(iv.directives)
	case "deprecationReason":
		return deprecationReason(iv.directives)
	}
	return nil
}

func resolveEnumValueField(ev *ast.EnumValueDefinition, field string) any {
	switch field {
	case "name":
		return ev.Name
	case "description":
		return optional(ev.Description)
	case "isDeprecated":
		return isDeprecated(ev.Directives)
	case "deprecationReason":
		return deprecationReason(ev.Directives)
	}
	return nil
}

func (r *resolver) resolveDirectiveField(d *ast.DirectiveDefinition, f *ast.Field) any {
	switch f.Name {
	case "name":
		return d.Name
	case "description":
		return optional(d.Description)
	case "isRepeatable":
		return d.IsRepeatable
	case "locations":
		out := make([]any, len(d.Locations))
		for i, l := range d.Locations {
			out[i] = string(l)
		}
		return out
	case "args":
		return arguments(d.Arguments, r.includeDeprecated(f))
	}
	return nil
}

func arguments(defs ast.ArgumentDefinitionList, includeDeprecated bool) []any {
	out := []any{}
	for _, a := range defs {
		if !includeDeprecated && isDeprecated(a.Directives) {
			continue
		}
		out = append(out, &inputValue{a.Name, a.Description, a.Type, a.DefaultValue, a.Directives})
	}
	return out
}

func isDeprecated(dirs ast.DirectiveList) bool { return dirs.ForName("deprecated") != nil }

func deprecationReason(dirs ast.DirectiveList) any {
	d := dirs.ForName("deprecated")
	if d == nil {
		return nil
	}
	if a := d.Arguments.ForName("reason"); a != nil && a.Value != nil {
		return a.Value.Raw
	}
	return defaultDeprecationReason
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
