package supergraph

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphstitch/internal/language"
)

// ExportPrefix marks synthetic fields that carry join-key values from one
// step to the next. Client selections may not use it as an alias.
const ExportPrefix = "_export_"

// TypenameExport is the export alias of __typename.
const TypenameExport = ExportPrefix + language.TypenameField

// Key describes the fields a resolver needs from a prior object, such as
// `id`, `id sku` or `owner { id type }`.
type Key struct {
	definition string
	selections ast.SelectionSet
	fields     []string
}

// ParseKey parses a key selection.
func ParseKey(source string) (*Key, error) {
	sel, err := language.ParseSelectionSet(source)
	if err != nil {
		return nil, fmt.Errorf("parse key %q: %w", source, err)
	}
	if len(sel) == 0 {
		return nil, fmt.Errorf("parse key %q: empty selection", source)
	}
	k := &Key{selections: sel}
	for _, s := range sel {
		f, ok := s.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("parse key %q: fragments are not allowed in keys", source)
		}
		if f.Alias != "" && f.Alias != f.Name {
			return nil, fmt.Errorf("parse key %q: aliases are not allowed in keys", source)
		}
		k.fields = append(k.fields, f.Name)
	}
	k.definition = strings.TrimSuffix(strings.TrimPrefix(language.Print(sel), "{ "), " }")
	return k, nil
}

// String returns the canonical key definition. Two keys are equal when their
// definitions are equal.
func (k *Key) String() string {
	if k == nil {
		return ""
	}
	return k.definition
}

// Fields returns the top-level field names of the key.
func (k *Key) Fields() []string { return k.fields }

// ExportNodes returns one aliased selection per top-level key field. Nested
// key selections are kept under the export alias.
func (k *Key) ExportNodes() ast.SelectionSet {
	out := make(ast.SelectionSet, 0, len(k.selections))
	for _, s := range k.selections {
		f := s.(*ast.Field)
		out = append(out, &ast.Field{
			Alias:        ExportPrefix + f.Name,
			Name:         f.Name,
			SelectionSet: f.SelectionSet,
		})
	}
	return out
}
