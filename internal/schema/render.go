package schema

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Render produces SDL for the schema with the named directives removed from
// types, fields and the directive definitions. Output is ordered by name.
func Render(s *ast.Schema, hiddenDirectives ...string) string {
	if s == nil {
		return ""
	}
	hidden := make(map[string]struct{}, len(hiddenDirectives))
	for _, name := range hiddenDirectives {
		hidden[name] = struct{}{}
	}

	public := &ast.Schema{
		Query:            s.Query,
		Mutation:         s.Mutation,
		Subscription:     s.Subscription,
		SchemaDirectives: s.SchemaDirectives,
		Types:            make(map[string]*ast.Definition, len(s.Types)),
		Directives:       make(map[string]*ast.DirectiveDefinition, len(s.Directives)),
	}
	for name, def := range s.Directives {
		if _, ok := hidden[name]; ok {
			continue
		}
		public.Directives[name] = def
	}
	for name, def := range s.Types {
		public.Types[name] = stripDefinition(def, hidden)
	}

	var b strings.Builder
	formatter.NewFormatter(&b, formatter.WithIndent("  ")).FormatSchema(public)
	return b.String()
}

func stripDefinition(def *ast.Definition, hidden map[string]struct{}) *ast.Definition {
	if len(hidden) == 0 {
		return def
	}
	cp := *def
	cp.Directives = stripDirectives(def.Directives, hidden)
	if len(def.Fields) > 0 {
		cp.Fields = make(ast.FieldList, len(def.Fields))
		for i, f := range def.Fields {
			fc := *f
			fc.Directives = stripDirectives(f.Directives, hidden)
			cp.Fields[i] = &fc
		}
	}
	return &cp
}

func stripDirectives(list ast.DirectiveList, hidden map[string]struct{}) ast.DirectiveList {
	var out ast.DirectiveList
	for _, d := range list {
		if _, ok := hidden[d.Name]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}
