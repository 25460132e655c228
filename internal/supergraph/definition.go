package supergraph

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	schema "github.com/hanpama/graphstitch/internal/schema"
)

const (
	// SourceDirective marks the locations of a field.
	SourceDirective = "source"
	// ResolverDirective declares a resolver on the type it annotates.
	ResolverDirective = "resolver"
)

const routingDirectives = `
directive @source(location: String!) repeatable on FIELD_DEFINITION
directive @resolver(
  location: String!
  key: String!
  field: String!
  list: Boolean
  arguments: String
  argumentTypes: String
  typeName: String
) repeatable on OBJECT | INTERFACE | UNION
`

// FromDefinition builds a supergraph from a composed SDL document annotated
// with @source and @resolver. Fields without @source are available wherever
// their parent type is. Types with no annotated field take the locations of
// the fields that return them.
func FromDefinition(sdl string) (*Supergraph, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "supergraph", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("supergraph: %w", err)
	}
	var missing []string
	for _, name := range []string{SourceDirective, ResolverDirective} {
		if doc.Directives.ForName(name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sdl = sdl + "\n" + selectDirectiveDefinitions(missing)
	}

	s, err := schema.BuildFromSDL(sdl)
	if err != nil {
		return nil, fmt.Errorf("supergraph: %w", err)
	}

	resolvers := map[string][]*Resolver{}
	for _, typeName := range sortedKeys(s.Types) {
		def := s.Types[typeName]
		if def.BuiltIn {
			continue
		}
		for _, d := range def.Directives {
			if d.Name != ResolverDirective {
				continue
			}
			cfg := ResolverConfig{
				Location:      directiveString(d, "location"),
				TypeName:      directiveString(d, "typeName"),
				Field:         directiveString(d, "field"),
				List:          directiveString(d, "list") == "true",
				Key:           directiveString(d, "key"),
				Arguments:     directiveString(d, "arguments"),
				ArgumentTypes: directiveString(d, "argumentTypes"),
			}
			if cfg.TypeName == "" {
				cfg.TypeName = def.Name
			}
			r, err := NewResolver(cfg)
			if err != nil {
				return nil, fmt.Errorf("supergraph: %w", err)
			}
			resolvers[def.Name] = append(resolvers[def.Name], r)
		}
	}

	return New(s, fieldLocations(s), resolvers)
}

func selectDirectiveDefinitions(names []string) string {
	var b strings.Builder
	for _, block := range strings.Split(strings.TrimSpace(routingDirectives), "\ndirective ") {
		block = strings.TrimPrefix(block, "directive ")
		for _, name := range names {
			if strings.HasPrefix(block, "@"+name+"(") {
				b.WriteString("directive ")
				b.WriteString(block)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func directiveString(d *ast.Directive, name string) string {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return ""
	}
	return arg.Value.Raw
}

func fieldLocations(s *ast.Schema) FieldLocations {
	annotated := map[string]map[string][]string{}
	typeLocs := map[string][]string{}

	var composite []*ast.Definition
	for _, typeName := range sortedKeys(s.Types) {
		def := s.Types[typeName]
		if def.BuiltIn || (def.Kind != ast.Object && def.Kind != ast.Interface) {
			continue
		}
		composite = append(composite, def)
		for _, f := range def.Fields {
			for _, d := range f.Directives {
				if d.Name != SourceDirective {
					continue
				}
				loc := directiveString(d, "location")
				if annotated[def.Name] == nil {
					annotated[def.Name] = map[string][]string{}
				}
				annotated[def.Name][f.Name] = appendUnique(annotated[def.Name][f.Name], loc)
				typeLocs[def.Name] = appendUnique(typeLocs[def.Name], loc)
			}
		}
	}

	locsOf := func(def *ast.Definition, f *ast.FieldDefinition) []string {
		if locs, ok := annotated[def.Name][f.Name]; ok {
			return locs
		}
		return typeLocs[def.Name]
	}

	// Propagate locations into types nobody annotated until nothing changes.
	for changed := true; changed; {
		changed = false
		for _, def := range composite {
			for _, f := range def.Fields {
				locs := locsOf(def, f)
				target := s.Types[f.Type.Name()]
				if target == nil || target.IsLeafType() {
					continue
				}
				for _, t := range append([]*ast.Definition{target}, schema.PossibleTypes(s, target)...) {
					if _, ok := annotated[t.Name]; ok {
						continue
					}
					before := len(typeLocs[t.Name])
					typeLocs[t.Name] = appendAll(typeLocs[t.Name], locs)
					if len(typeLocs[t.Name]) != before {
						changed = true
					}
				}
			}
		}
	}

	out := FieldLocations{}
	for _, def := range composite {
		byField := map[string][]string{}
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			if locs := locsOf(def, f); len(locs) > 0 {
				byField[f.Name] = locs
			}
		}
		if len(byField) > 0 {
			out[def.Name] = byField
		}
	}
	return out
}
