package shaper

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	request "github.com/hanpama/graphstitch/internal/request"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

const testSDL = `
interface Item { id: ID! }
type Book implements Item { id: ID! title: String pages: Int }
type Movie implements Item { id: ID! title: String minutes: Int }
type Widget { id: ID! title: String weight: Int }

type Query {
  widget: Widget @source(location: "A")
  items: [Item!]! @source(location: "A")
}
`

func shape(t *testing.T, query string, raw map[string]any) map[string]any {
	t.Helper()
	sg, err := supergraph.FromDefinition(testSDL)
	require.NoError(t, err)
	req, err := request.New(sg, query)
	require.NoError(t, err)
	require.NoError(t, req.Prepare())
	return New(req).Perform(raw)
}

func assertShape(t *testing.T, want, got map[string]any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("shaped data mismatch (-want +got):\n%s", diff)
	}
}

func TestStripsExportsAndResolvesTypename(t *testing.T) {
	got := shape(t, `{ __typename widget { __typename title weight } }`, map[string]any{
		"widget": map[string]any{"title": "Box", "weight": 5, "_export_id": "1"},
	})
	assertShape(t, map[string]any{
		"__typename": "Query",
		"widget":     map[string]any{"__typename": "Widget", "title": "Box", "weight": 5},
	}, got)
}

func TestFragmentsApplyByExportedTypename(t *testing.T) {
	got := shape(t, `{ items { id __typename ... on Book { pages } ...M } } fragment M on Movie { minutes }`, map[string]any{
		"items": []any{
			map[string]any{"id": "1", "pages": 100, "_export___typename": "Book"},
			map[string]any{"id": "2", "minutes": 90, "_export___typename": "Movie"},
		},
	})
	assertShape(t, map[string]any{
		"items": []any{
			map[string]any{"id": "1", "__typename": "Book", "pages": 100},
			map[string]any{"id": "2", "__typename": "Movie", "minutes": 90},
		},
	}, got)
}

func TestMissingFieldsBecomeNull(t *testing.T) {
	got := shape(t, `{ widget { title weight } }`, map[string]any{
		"widget": map[string]any{"title": "Box"},
	})
	assertShape(t, map[string]any{
		"widget": map[string]any{"title": "Box", "weight": nil},
	}, got)
}

func TestRepeatedFieldsMergeSelections(t *testing.T) {
	got := shape(t, `{ widget { title } ... on Query { widget { weight } } }`, map[string]any{
		"widget": map[string]any{"title": "Box", "weight": 5},
	})
	assertShape(t, map[string]any{
		"widget": map[string]any{"title": "Box", "weight": 5},
	}, got)
}

func TestNullBubblesToNullableParent(t *testing.T) {
	got := shape(t, `{ widget { id title } }`, map[string]any{
		"widget": map[string]any{"id": nil, "title": "Box"},
	})
	assertShape(t, map[string]any{"widget": nil}, got)
}

func TestNullBubblesThroughNonNullList(t *testing.T) {
	got := shape(t, `{ items { id } widget { title } }`, map[string]any{
		"items": []any{
			map[string]any{"id": "1", "_export___typename": "Book"},
			map[string]any{"id": nil, "_export___typename": "Movie"},
		},
		"widget": map[string]any{"title": "Box"},
	})
	require.Nil(t, got)
}
