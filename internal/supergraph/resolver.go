package supergraph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphstitch/internal/language"
)

// ResolverConfig is the declarative form of a resolver.
type ResolverConfig struct {
	Location string
	// TypeName is the type the resolver field returns. It may be an abstract
	// type that the owning type belongs to.
	TypeName string
	Field    string
	List     bool
	Key      string
	// Arguments is an argument template such as `id: $.id` or
	// `key: {id: $.id, type: $.__typename}`. `$.` paths read key values
	// from the origin object.
	Arguments string
	// ArgumentTypes is an optional list of type signatures such as `id: ID!`.
	// Missing signatures are taken from the resolver field in the schema.
	ArgumentTypes string
}

// Resolver is a root field at some location that fetches an entity by key.
// A resolver without key and field is a virtual hop: it only names the
// location a subtree is delegated to.
type Resolver struct {
	Location  string
	TypeName  string
	Field     string
	List      bool
	Key       *Key
	Arguments []*Argument
	Version   string

	argumentsDef string
}

// NewResolver parses a resolver configuration.
func NewResolver(c ResolverConfig) (*Resolver, error) {
	if c.Location == "" || c.Field == "" || c.Key == "" {
		return nil, fmt.Errorf("resolver %s.%s: location, field and key are required", c.TypeName, c.Field)
	}
	key, err := ParseKey(c.Key)
	if err != nil {
		return nil, fmt.Errorf("resolver %s.%s: %w", c.TypeName, c.Field, err)
	}
	args, err := parseArguments(c.Arguments, c.ArgumentTypes)
	if err != nil {
		return nil, fmt.Errorf("resolver %s.%s: %w", c.TypeName, c.Field, err)
	}
	r := &Resolver{
		Location:     c.Location,
		TypeName:     c.TypeName,
		Field:        c.Field,
		List:         c.List,
		Key:          key,
		Arguments:    args,
		argumentsDef: strings.TrimSpace(c.Arguments),
	}
	r.Version = r.digest()
	return r, nil
}

func (r *Resolver) clone() *Resolver {
	cp := *r
	cp.Arguments = make([]*Argument, len(r.Arguments))
	for i, a := range r.Arguments {
		ac := *a
		cp.Arguments[i] = &ac
	}
	return &cp
}

// VirtualHop returns a resolver-less hop into location.
func VirtualHop(location string) *Resolver { return &Resolver{Location: location} }

// IsVirtual reports whether the resolver only names a location.
func (r *Resolver) IsVirtual() bool { return r.Key == nil && r.Field == "" }

// RequiresTypename reports whether origin objects must export __typename for
// this resolver.
func (r *Resolver) RequiresTypename() bool {
	for _, f := range r.Key.Fields() {
		if f == language.TypenameField {
			return true
		}
	}
	for _, a := range r.Arguments {
		if a.references(language.TypenameField) {
			return true
		}
	}
	return false
}

func (r *Resolver) digest() string {
	var b strings.Builder
	b.WriteString(r.Location)
	b.WriteByte('|')
	b.WriteString(r.TypeName)
	b.WriteByte('|')
	b.WriteString(r.Field)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(r.List))
	b.WriteByte('|')
	b.WriteString(r.Key.String())
	b.WriteByte('|')
	b.WriteString(r.argumentsDef)
	for _, a := range r.Arguments {
		b.WriteByte('|')
		b.WriteString(a.Name)
		if a.Type != nil {
			b.WriteString(a.Type.String())
		}
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// Argument is one resolver argument. Value is a GraphQL value in which
// string literals of the form "$.a.b" refer to key values of the origin.
type Argument struct {
	Name  string
	Value *ast.Value
	Type  *ast.Type
}

var keyRefPattern = regexp.MustCompile(`\$\.([A-Za-z_][A-Za-z0-9_.]*)`)

func parseArguments(source, types string) ([]*Argument, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	quoted := keyRefPattern.ReplaceAllString(source, `"$$.$1"`)
	doc, err := language.ParseQuery("{ f(" + quoted + ") }")
	if err != nil {
		return nil, fmt.Errorf("parse arguments %q: %w", source, err)
	}
	field := doc.Operations[0].SelectionSet[0].(*ast.Field)

	typeDefs, err := language.ParseVariableDefinitions(types)
	if err != nil {
		return nil, fmt.Errorf("parse argument types %q: %w", types, err)
	}

	out := make([]*Argument, 0, len(field.Arguments))
	for _, a := range field.Arguments {
		arg := &Argument{Name: a.Name, Value: a.Value}
		if def := typeDefs.ForName(a.Name); def != nil {
			arg.Type = def.Type
		}
		out = append(out, arg)
	}
	return out, nil
}

// IsKey reports whether the argument reads key values from the origin.
// Other arguments are literals.
func (a *Argument) IsKey() bool { return a.references("") }

// references reports whether the argument reads the given top-level key
// field, or any key field when field is empty.
func (a *Argument) references(field string) bool {
	var walk func(v *ast.Value) bool
	walk = func(v *ast.Value) bool {
		if path, ok := keyPath(v); ok {
			return field == "" || path[0] == field
		}
		for _, c := range v.Children {
			if walk(c.Value) {
				return true
			}
		}
		return false
	}
	return walk(a.Value)
}

// Build produces the argument value for one origin object. Key paths read
// the exported key fields of the origin.
func (a *Argument) Build(origin map[string]any) any {
	return buildValue(a.Value, origin)
}

func buildValue(v *ast.Value, origin map[string]any) any {
	if path, ok := keyPath(v); ok {
		return lookupKey(origin, path)
	}
	switch v.Kind {
	case ast.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			out = append(out, buildValue(c.Value, origin))
		}
		return out
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = buildValue(c.Value, origin)
		}
		return out
	}
	val, err := v.Value(nil)
	if err != nil {
		return nil
	}
	return val
}

func keyPath(v *ast.Value) ([]string, bool) {
	if v == nil || v.Kind != ast.StringValue || !strings.HasPrefix(v.Raw, "$.") {
		return nil, false
	}
	return strings.Split(v.Raw[2:], "."), true
}

func lookupKey(origin map[string]any, path []string) any {
	var cur any = origin
	for i, seg := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if i == 0 {
			seg = ExportPrefix + seg
		}
		cur = obj[seg]
	}
	return cur
}
