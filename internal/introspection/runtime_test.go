package introspection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

const widgetSDL = `
"A thing with a weight."
type Widget @resolver(location: "B", key: "id", field: "widgetExtra") {
  id: ID!
  title: String @source(location: "A")
  weight: Int @source(location: "B")
  legacy: String @source(location: "A") @deprecated(reason: "use title")
  size: Size @source(location: "A")
}

enum Size {
  SMALL
  LARGE
  HUGE @deprecated
}

type Query {
  widget(id: ID!, limit: Int = 10): Widget @source(location: "A")
  widgetExtra(id: ID!): Widget @source(location: "B")
}
`

func execute(t *testing.T, document string, variables map[string]any) map[string]any {
	t.Helper()
	sg, err := supergraph.FromDefinition(widgetSDL)
	require.NoError(t, err)
	res, err := New(sg).Execute(context.Background(), document, variables)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	return res.Data.(map[string]any)
}

func TestSchemaRootTypes(t *testing.T) {
	got := execute(t, `{ __schema { queryType { name kind } mutationType { name } } }`, nil)
	want := map[string]any{
		"__schema": map[string]any{
			"queryType":    map[string]any{"name": "Query", "kind": "OBJECT"},
			"mutationType": nil,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRoutingDirectivesAreHidden(t *testing.T) {
	got := execute(t, `{ __schema { directives { name } } }`, nil)
	var names []string
	for _, d := range got["__schema"].(map[string]any)["directives"].([]any) {
		names = append(names, d.(map[string]any)["name"].(string))
	}
	require.Contains(t, names, "deprecated")
	require.Contains(t, names, "include")
	require.NotContains(t, names, supergraph.SourceDirective)
	require.NotContains(t, names, supergraph.ResolverDirective)
}

func TestTypeByVariableName(t *testing.T) {
	got := execute(t, `query($name: String!) {
		w: __type(name: $name) {
			__typename
			name
			description
			fields { name type { kind ofType { kind name } } }
		}
	}`, map[string]any{"name": "Widget"})

	want := map[string]any{
		"w": map[string]any{
			"__typename":  "__Type",
			"name":        "Widget",
			"description": "A thing with a weight.",
			"fields": []any{
				map[string]any{"name": "id", "type": map[string]any{"kind": "NON_NULL", "ofType": map[string]any{"kind": "SCALAR", "name": "ID"}}},
				map[string]any{"name": "title", "type": map[string]any{"kind": "SCALAR", "ofType": nil}},
				map[string]any{"name": "weight", "type": map[string]any{"kind": "SCALAR", "ofType": nil}},
				map[string]any{"name": "size", "type": map[string]any{"kind": "ENUM", "ofType": nil}},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDeprecatedFieldsAndEnumValues(t *testing.T) {
	got := execute(t, `{
		__type(name: "Widget") {
			fields(includeDeprecated: true) { name isDeprecated deprecationReason }
		}
		size: __type(name: "Size") {
			enumValues { name }
			all: enumValues(includeDeprecated: true) { name deprecationReason }
		}
	}`, nil)

	fields := got["__type"].(map[string]any)["fields"].([]any)
	require.Len(t, fields, 5)
	require.Equal(t, map[string]any{"name": "legacy", "isDeprecated": true, "deprecationReason": "use title"}, fields[3])

	size := got["size"].(map[string]any)
	require.Equal(t, []any{
		map[string]any{"name": "SMALL"},
		map[string]any{"name": "LARGE"},
	}, size["enumValues"])
	require.Equal(t, map[string]any{"name": "HUGE", "deprecationReason": "No longer supported"}, size["all"].([]any)[2])
}

func TestArgumentsAndFragments(t *testing.T) {
	got := execute(t, `
		query { __type(name: "Query") { ...typeFields } }
		fragment typeFields on __Type {
			fields { name ... on __Field { args { name defaultValue } } }
		}
	`, nil)

	want := map[string]any{
		"__type": map[string]any{
			"fields": []any{
				map[string]any{"name": "widget", "args": []any{
					map[string]any{"name": "id", "defaultValue": nil},
					map[string]any{"name": "limit", "defaultValue": "10"},
				}},
				map[string]any{"name": "widgetExtra", "args": []any{
					map[string]any{"name": "id", "defaultValue": nil},
				}},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownTypeIsNull(t *testing.T) {
	got := execute(t, `{ __type(name: "Nope") { name } }`, nil)
	require.Equal(t, map[string]any{"__type": nil}, got)
}

func TestMutationIsRejected(t *testing.T) {
	sg, err := supergraph.FromDefinition(widgetSDL)
	require.NoError(t, err)
	_, err = New(sg).Execute(context.Background(), `mutation { x }`, nil)
	require.Error(t, err)
}
