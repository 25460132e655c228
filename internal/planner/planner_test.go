package planner

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	request "github.com/hanpama/graphstitch/internal/request"
	supergraph "github.com/hanpama/graphstitch/internal/supergraph"
)

const widgetSDL = `
type Widget @resolver(location: "B", key: "id", field: "widgetExtra") {
  id: ID!
  title: String @source(location: "A")
  weight: Int @source(location: "B")
}

type Query {
  widget(id: ID!): Widget @source(location: "A")
  widgetExtra(id: ID!): Widget @source(location: "B")
}
`

func mustSupergraph(t *testing.T, sdl string) *supergraph.Supergraph {
	t.Helper()
	sg, err := supergraph.FromDefinition(sdl)
	require.NoError(t, err)
	return sg
}

func performPlan(t *testing.T, sg *supergraph.Supergraph, query string, opts ...request.Option) (*Plan, error) {
	t.Helper()
	req, err := request.New(sg, query, opts...)
	require.NoError(t, err)
	require.NoError(t, req.Prepare())
	return New(req).Perform()
}

func mustPlan(t *testing.T, sg *supergraph.Supergraph, query string, opts ...request.Option) *Plan {
	t.Helper()
	plan, err := performPlan(t, sg, query, opts...)
	require.NoError(t, err)
	return plan
}

func resolverVersion(t *testing.T, sg *supergraph.Supergraph, typeName, location string) string {
	t.Helper()
	for _, r := range sg.ResolversByType(typeName) {
		if r.Location == location {
			return r.Version
		}
	}
	t.Fatalf("no resolver for %s at %s", typeName, location)
	return ""
}

func TestSingleLocationPlansOneStep(t *testing.T) {
	sg := mustSupergraph(t, widgetSDL)
	plan := mustPlan(t, sg, `{ widget(id: "1") { id title } }`)

	want := []*Step{{
		Index:         1,
		After:         0,
		Location:      "A",
		ParentType:    "Query",
		OperationType: "query",
		Selections:    `{ widget(id: "1") { id title } }`,
	}}
	if diff := cmp.Diff(want, plan.Steps); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestWidgetJoin(t *testing.T) {
	sg := mustSupergraph(t, widgetSDL)
	plan := mustPlan(t, sg, `{ widget(id: "1") { title weight } }`)

	want := []*Step{
		{
			Index:         1,
			After:         0,
			Location:      "A",
			ParentType:    "Query",
			OperationType: "query",
			Selections:    `{ widget(id: "1") { title _export_id: id } }`,
		},
		{
			Index:         2,
			After:         1,
			Location:      "B",
			ParentType:    "Widget",
			OperationType: "query",
			Selections:    `{ weight }`,
			Path:          []string{"widget"},
			TypeCondition: "Widget",
			Resolver:      resolverVersion(t, sg, "Widget", "B"),
		},
	}
	if diff := cmp.Diff(want, plan.Steps); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, plan.Steps[0].Index, plan.Steps[1].After)
}

func TestVariablesAreCollectedPerStep(t *testing.T) {
	sg := mustSupergraph(t, widgetSDL)
	plan := mustPlan(t, sg, `query($id: ID!, $flag: Boolean!) { widget(id: $id) { title weight @include(if: $flag) } }`,
		request.WithVariables(map[string]any{"id": "1", "flag": true}))

	require.Len(t, plan.Steps, 2)
	require.Equal(t, map[string]string{"id": "ID!"}, plan.Steps[0].Variables)
	require.Empty(t, plan.Steps[1].Variables)
}

const mutationSDL = `
type Foo { id: ID! }
type Bar { id: ID! }

type Query { foo: Foo @source(location: "A") }

type Mutation {
  createFoo: Foo @source(location: "A")
  createBar: Bar @source(location: "B")
}

type Subscription {
  fooAdded: Foo @source(location: "A")
  barAdded: Bar @source(location: "B")
}
`

func TestMutationKeepsFieldOrder(t *testing.T) {
	sg := mustSupergraph(t, mutationSDL)
	plan := mustPlan(t, sg, `mutation { a: createFoo { id } b: createBar { id } c: createFoo { id } }`)

	type summary struct {
		Index, After int
		Location     string
		Selections   string
	}
	var got []summary
	for _, s := range plan.Steps {
		require.Equal(t, "mutation", string(s.OperationType))
		got = append(got, summary{s.Index, s.After, s.Location, s.Selections})
	}
	want := []summary{
		{1, 0, "A", `{ a: createFoo { id } }`},
		{2, 1, "B", `{ b: createBar { id } }`},
		{3, 2, "A", `{ c: createFoo { id } }`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryGroupsRootFieldsByLocation(t *testing.T) {
	sg := mustSupergraph(t, widgetSDL)
	plan := mustPlan(t, sg, `{ a: widget(id: "1") { id } b: widgetExtra(id: "1") { weight } c: widget(id: "2") { id } }`)

	require.Len(t, plan.Steps, 2)
	require.Equal(t, "A", plan.Steps[0].Location)
	require.Equal(t, `{ a: widget(id: "1") { id } c: widget(id: "2") { id } }`, plan.Steps[0].Selections)
	require.Equal(t, "B", plan.Steps[1].Location)
	require.Equal(t, 0, plan.Steps[1].After)
}

func TestSubscriptionAllowsOneRootField(t *testing.T) {
	sg := mustSupergraph(t, mutationSDL)

	plan := mustPlan(t, sg, `subscription { fooAdded { id } }`)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, "subscription", string(plan.Steps[0].OperationType))

	_, err := performPlan(t, sg, `subscription { fooAdded { id } barAdded { id } }`)
	var planErr *Error
	require.ErrorAs(t, err, &planErr)
}

func TestReservedExportAlias(t *testing.T) {
	sg := mustSupergraph(t, widgetSDL)
	_, err := performPlan(t, sg, `{ widget(id: "1") { _export_id: title } }`)
	var planErr *Error
	require.ErrorAs(t, err, &planErr)
	require.Contains(t, planErr.Message, "_export_")
}

func TestPlanningIsIdempotent(t *testing.T) {
	sg := mustSupergraph(t, catalogSDL)
	const query = `{ items { id name ... on Book { pages isbn } } widget: book(id: "1") { name isbn } }`

	first := mustPlan(t, sg, query)
	second := mustPlan(t, sg, query)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("plans differ (-first +second):\n%s", diff)
	}
}

const catalogSDL = `
interface Item {
  id: ID! @source(location: "A")
  name: String @source(location: "B")
}

type Book implements Item @resolver(location: "B", key: "id", field: "book") {
  id: ID!
  name: String @source(location: "B")
  isbn: String @source(location: "B")
  pages: Int @source(location: "A")
}

type Query {
  items: [Item!]! @source(location: "A")
  book(id: ID!): Book @source(location: "B")
}
`

func TestInterfaceSelectionsExpandToPossibleTypes(t *testing.T) {
	sg := mustSupergraph(t, catalogSDL)
	plan := mustPlan(t, sg, `{ items { id name } }`)

	require.Len(t, plan.Steps, 2)
	require.Equal(t, `{ items { id ... on Book { _export_id: id } _export___typename: __typename } }`, plan.Steps[0].Selections)

	join := plan.Steps[1]
	require.Equal(t, "B", join.Location)
	require.Equal(t, "Book", join.ParentType)
	require.Equal(t, "Book", join.TypeCondition)
	require.Equal(t, []string{"items"}, join.Path)
	require.Equal(t, `{ name }`, join.Selections)
}

func TestIdenticalEntrypointsCoalesce(t *testing.T) {
	sg := mustSupergraph(t, catalogSDL)
	plan := mustPlan(t, sg, `{ items { ... on Book { name } ... on Book { isbn } } }`)

	require.Len(t, plan.Steps, 2)
	require.Equal(t, `{ items { ... on Book { _export_id: id } ... on Book { _export_id: id } _export___typename: __typename } }`, plan.Steps[0].Selections)
	require.Equal(t, `{ name isbn }`, plan.Steps[1].Selections)
	require.Equal(t, 1, plan.Steps[1].After)
}

const abstractSDL = `
interface Node { id: ID! }

type Product implements Node @resolver(location: "B", key: "id", field: "node", typeName: "Node") {
  id: ID!
  name: String @source(location: "A")
  price: Int @source(location: "B")
}

type Query {
  product(id: ID!): Product @source(location: "A")
  node(id: ID!): Node @source(location: "B")
}
`

func TestAbstractResolverWrapsSelections(t *testing.T) {
	sg := mustSupergraph(t, abstractSDL)
	plan := mustPlan(t, sg, `{ product(id: "1") { name price } }`)

	require.Len(t, plan.Steps, 2)
	require.Equal(t, `{ product(id: "1") { name _export_id: id } }`, plan.Steps[0].Selections)
	require.Equal(t, `{ ... on Product { price } }`, plan.Steps[1].Selections)
}

const multiHopSDL = `
type T
  @resolver(location: "B", key: "sku", field: "tBySku")
  @resolver(location: "C", key: "id", field: "tById") {
  id: ID! @source(location: "B") @source(location: "C")
  sku: String! @source(location: "A") @source(location: "B")
  name: String @source(location: "C")
}

type Query {
  t: T @source(location: "A")
  tBySku(sku: String!): T @source(location: "B")
  tById(id: ID!): T @source(location: "C")
}
`

func TestHopsChainThroughIntermediateLocation(t *testing.T) {
	sg := mustSupergraph(t, multiHopSDL)
	plan := mustPlan(t, sg, `{ t { sku name } }`)

	type summary struct {
		Index, After int
		Location     string
		Selections   string
	}
	var got []summary
	for _, s := range plan.Steps {
		got = append(got, summary{s.Index, s.After, s.Location, s.Selections})
	}
	want := []summary{
		{1, 0, "A", `{ t { sku _export_sku: sku } }`},
		{2, 1, "B", `{ _export_id: id }`},
		{3, 2, "C", `{ name }`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, resolverVersion(t, sg, "T", "B"), plan.Steps[1].Resolver)
	require.Equal(t, resolverVersion(t, sg, "T", "C"), plan.Steps[2].Resolver)
}

func TestPlanJSONRoundTrip(t *testing.T) {
	sg := mustSupergraph(t, widgetSDL)
	plan := mustPlan(t, sg, `query($id: ID!) { widget(id: $id) { title weight } }`,
		request.WithVariables(map[string]any{"id": "1"}))

	data, err := json.Marshal(plan)
	require.NoError(t, err)

	var raw struct {
		Ops []map[string]any `json:"ops"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Ops, 2)
	require.NotContains(t, raw.Ops[0], "resolver")
	require.NotContains(t, raw.Ops[0], "path")
	require.Equal(t, map[string]any{"id": "ID!"}, raw.Ops[0]["variables"])
	require.Equal(t, "Widget", raw.Ops[1]["if_type"])
	require.Equal(t, []any{"widget"}, raw.Ops[1]["path"])

	restored, err := FromJSON(data)
	require.NoError(t, err)
	if diff := cmp.Diff(plan, restored); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospectionIsPlannedAtSuperLocation(t *testing.T) {
	sg := mustSupergraph(t, widgetSDL)
	plan := mustPlan(t, sg, `{ __schema { queryType { name } } widget(id: "1") { title } }`)

	require.Len(t, plan.Steps, 2)
	byLocation := map[string]*Step{}
	for _, s := range plan.Steps {
		byLocation[s.Location] = s
	}
	require.Equal(t, `{ __schema { queryType { name } } }`, byLocation[supergraph.SuperLocation].Selections)
	require.Equal(t, `{ widget(id: "1") { title } }`, byLocation["A"].Selections)
}

const sharedFieldsSDL = `
type T
  @resolver(location: "B", key: "id", field: "tAtB")
  @resolver(location: "C", key: "id", field: "tAtC")
  @resolver(location: "D", key: "id", field: "tAtD")
  @resolver(location: "E", key: "id", field: "tAtE") {
  id: ID!
  a: String @source(location: "A")
  x: String @source(location: "B") @source(location: "C")
  y: String @source(location: "C")
  z: String @source(location: "B") @source(location: "D")
  w: String @source(location: "D") @source(location: "E")
}

type Query {
  t: T @source(location: "A")
  tAtB(id: ID!): T @source(location: "B")
  tAtC(id: ID!): T @source(location: "C")
  tAtD(id: ID!): T @source(location: "D")
  tAtE(id: ID!): T @source(location: "E")
}
`

func TestSharedFieldsJoinChosenLocationsThenMostAvailable(t *testing.T) {
	sg := mustSupergraph(t, sharedFieldsSDL)
	plan := mustPlan(t, sg, `{ t { a x y z w } }`)

	type summary struct {
		Location   string
		After      int
		Selections string
		Path       []string
	}
	var got []summary
	for _, s := range plan.Steps {
		got = append(got, summary{s.Location, s.After, s.Selections, s.Path})
	}
	want := []summary{
		{"A", 0, `{ t { a _export_id: id } }`, nil},
		{"C", 1, `{ y x }`, []string{"t"}},
		{"D", 1, `{ z w }`, []string{"t"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedPlanStaysFailed(t *testing.T) {
	sg := mustSupergraph(t, `
type Widget @resolver(location: "B", key: "id", field: "widgetExtra") {
  id: ID!
  title: String @source(location: "A")
  archived: Boolean @source(location: "Z")
}

type Query {
  widget(id: ID!): Widget @source(location: "A")
  widgetExtra(id: ID!): Widget @source(location: "B")
}
`)
	req, err := request.New(sg, `{ widget(id: "1") { title archived } }`)
	require.NoError(t, err)
	require.NoError(t, req.Prepare())

	p := New(req)
	plan, err := p.Perform()
	require.Error(t, err)
	require.Nil(t, plan)

	plan, again := p.Perform()
	require.Nil(t, plan)
	require.Equal(t, err, again)
}
