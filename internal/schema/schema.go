// Package schema offers read-only helpers over the merged supergraph type
// system. The type system itself is gqlparser's *ast.Schema; nothing here
// mutates it.
package schema

import (
	"sort"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphstitch/internal/language"
)

// BuildFromSDL loads and validates SDL into a schema.
func BuildFromSDL(sdl string) (*ast.Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: "supergraph", Input: sdl})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RootType returns the root object type for an operation type, or nil.
func RootType(s *ast.Schema, op language.Operation) *ast.Definition {
	switch op {
	case language.Query:
		return s.Query
	case language.Mutation:
		return s.Mutation
	case language.Subscription:
		return s.Subscription
	}
	return nil
}

// IsRootType reports whether def is one of the schema's root operation types.
func IsRootType(s *ast.Schema, def *ast.Definition) bool {
	return def != nil && (def == s.Query || def == s.Mutation || def == s.Subscription)
}

// IsLeaf reports whether the named type is a scalar or enum.
func IsLeaf(def *ast.Definition) bool { return def != nil && def.IsLeafType() }

// IsAbstract reports whether the named type is an interface or union.
func IsAbstract(def *ast.Definition) bool { return def != nil && def.IsAbstractType() }

// Field returns the field definition on the named type, or nil when the type
// or field does not exist.
func Field(s *ast.Schema, typeName, fieldName string) *ast.FieldDefinition {
	def := s.Types[typeName]
	if def == nil {
		return nil
	}
	return def.Fields.ForName(fieldName)
}

// FieldType returns the named type a field resolves to, unwrapping lists and
// non-null wrappers.
func FieldType(s *ast.Schema, field *ast.FieldDefinition) *ast.Definition {
	return s.Types[field.Type.Name()]
}

// PossibleTypes lists the concrete object types of an abstract type sorted
// by name. For an object type it returns the type itself.
func PossibleTypes(s *ast.Schema, def *ast.Definition) []*ast.Definition {
	if def == nil {
		return nil
	}
	if !def.IsAbstractType() {
		return []*ast.Definition{def}
	}
	out := append([]*ast.Definition(nil), s.GetPossibleTypes(def)...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IncludesType reports whether the concrete type name belongs to def: it is
// def itself or one of def's possible types.
func IncludesType(s *ast.Schema, def *ast.Definition, typeName string) bool {
	if def == nil {
		return false
	}
	if def.Name == typeName {
		return true
	}
	for _, pt := range PossibleTypes(s, def) {
		if pt.Name == typeName {
			return true
		}
	}
	return false
}

// IsList reports whether t is a list type (through an optional non-null).
func IsList(t *ast.Type) bool { return t != nil && t.Elem != nil }

// IsNonNull reports whether t carries a non-null wrapper.
func IsNonNull(t *ast.Type) bool { return t != nil && t.NonNull }
