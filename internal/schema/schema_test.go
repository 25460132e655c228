package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/graphstitch/internal/language"
)

const testSDL = `
directive @internal on FIELD_DEFINITION
interface Node { id: ID! }
type Product implements Node { id: ID! name: String @internal }
type Store implements Node { id: ID! }
union Thing = Product | Store
type Query { node(id: ID!): Node things: [Thing!]! }
`

func TestHelpers(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	require.Equal(t, "Query", RootType(s, language.Query).Name)
	require.Nil(t, RootType(s, language.Mutation))
	require.True(t, IsRootType(s, s.Types["Query"]))
	require.False(t, IsRootType(s, s.Types["Product"]))

	node := s.Types["Node"]
	require.True(t, IsAbstract(node))
	require.True(t, IsLeaf(s.Types["ID"]))

	var names []string
	for _, pt := range PossibleTypes(s, node) {
		names = append(names, pt.Name)
	}
	require.Equal(t, []string{"Product", "Store"}, names)
	require.True(t, IncludesType(s, s.Types["Thing"], "Store"))
	require.False(t, IncludesType(s, s.Types["Product"], "Store"))

	things := Field(s, "Query", "things")
	require.NotNil(t, things)
	require.True(t, IsList(things.Type))
	require.True(t, IsNonNull(things.Type))
	require.Equal(t, "Thing", FieldType(s, things).Name)
	require.Nil(t, Field(s, "Query", "missing"))
}

func TestRenderHidesDirectives(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	out := Render(s, "internal")
	require.Contains(t, out, "type Product implements Node")
	require.NotContains(t, out, "@internal")
	require.Contains(t, Render(s), "@internal")
}
