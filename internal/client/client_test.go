package client

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/graphstitch/internal/executor"
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

func newMock() *executor.MockExecutables {
	return executor.NewMockExecutables(map[string]executor.MockHandler{
		"A": executor.NewMockDataHandler(map[string]any{
			"widget": map[string]any{"title": "Box", "_export_id": "1"},
		}),
		"B": executor.NewMockDataHandler(map[string]any{
			"_0_0_result": map[string]any{"weight": 5},
		}),
	})
}

func newClient(t *testing.T, mock *executor.MockExecutables, opts ...Option) *Client {
	t.Helper()
	sg, err := supergraph.FromDefinition(widgetSDL)
	require.NoError(t, err)
	c, err := New(sg, mock.Executables(), opts...)
	require.NoError(t, err)
	return c
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestExecuteStitchesLocations(t *testing.T) {
	c := newClient(t, newMock())
	result := c.Execute(context.Background(), Params{
		Query:     `query($id: ID!) { widget(id: $id) { title weight } }`,
		Variables: map[string]any{"id": "1"},
	})
	require.JSONEq(t, `{"data":{"widget":{"title":"Box","weight":5}}}`, toJSON(t, result))
}

func TestParseErrorHasNoData(t *testing.T) {
	c := newClient(t, newMock())
	result := c.Execute(context.Background(), Params{Query: `{ widget(`})
	require.Nil(t, result.Data)
	require.Len(t, result.Errors, 1)
	require.NotEmpty(t, result.Errors[0].Message)
}

func TestValidationErrors(t *testing.T) {
	mock := newMock()
	c := newClient(t, mock)
	result := c.Execute(context.Background(), Params{Query: `{ widget(id: "1") { nope } }`})
	require.Nil(t, result.Data)
	require.NotEmpty(t, result.Errors)
	require.Contains(t, result.Errors[0].Message, `"nope"`)
	require.Empty(t, mock.GetCalls())
}

func TestPlanningErrorIsReported(t *testing.T) {
	c := newClient(t, newMock(), WithValidation(false))
	result := c.Execute(context.Background(), Params{Query: `{ widget(id: "1") { _export_id: id } }`})

	want := []executor.GraphQLError{{Message: `Alias "_export_id" is not allowed because "_export_" is a reserved prefix.`}}
	if diff := cmp.Diff(want, result.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestUnexpectedErrorIsHidden(t *testing.T) {
	mock := executor.NewMockExecutables(map[string]executor.MockHandler{
		"A": executor.NewMockDataHandler(map[string]any{
			"widget": map[string]any{"title": "Box", "_export_id": "1"},
		}),
	})
	var hooked error
	c := newClient(t, mock, WithErrorHook(func(ctx context.Context, err error) { hooked = err }))

	result := c.Execute(context.Background(), Params{Query: `{ widget(id: "1") { title weight } }`})
	require.Nil(t, result.Data)
	require.Equal(t, []executor.GraphQLError{{Message: "An unexpected error occurred."}}, result.Errors)

	var execErr *executor.Error
	require.ErrorAs(t, hooked, &execErr)
}

func TestPlanCacheReusesPlans(t *testing.T) {
	reads, writes := 0, 0
	stored := map[string][]byte{}
	c := newClient(t, newMock(), WithPlanCache(8), WithCacheHooks(
		func(ctx context.Context, digest string) ([]byte, bool) {
			reads++
			b, ok := stored[digest]
			return b, ok
		},
		func(ctx context.Context, digest string, plan []byte) {
			writes++
			stored[digest] = plan
		},
	))

	for i := 0; i < 2; i++ {
		result := c.Execute(context.Background(), Params{Query: `{ widget(id: "1") { title weight } }`})
		require.JSONEq(t, `{"data":{"widget":{"title":"Box","weight":5}}}`, toJSON(t, result))
	}
	require.Equal(t, 1, reads)
	require.Equal(t, 1, writes)
	require.Len(t, stored, 1)
}

func TestExternalCacheServesPlans(t *testing.T) {
	stored := map[string][]byte{}
	first := newClient(t, newMock(), WithPlanCache(0), WithCacheHooks(nil, func(ctx context.Context, digest string, plan []byte) {
		stored[digest] = plan
	}))
	query := Params{Query: `{ widget(id: "1") { title weight } }`}
	want := first.Execute(context.Background(), query)
	require.Len(t, stored, 1)

	writes := 0
	second := newClient(t, newMock(), WithPlanCache(0), WithCacheHooks(
		func(ctx context.Context, digest string) ([]byte, bool) {
			b, ok := stored[digest]
			return b, ok
		},
		func(ctx context.Context, digest string, plan []byte) { writes++ },
	))
	got := second.Execute(context.Background(), query)
	require.Equal(t, 0, writes)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRawMode(t *testing.T) {
	c := newClient(t, newMock(), WithRaw())
	result := c.Execute(context.Background(), Params{Query: `{ widget(id: "1") { title weight } }`})
	require.JSONEq(t, `{"data":{"widget":{"title":"Box","_export_id":"1","weight":5}}}`, toJSON(t, result))
}

func TestIntrospectionIsAnsweredInProcess(t *testing.T) {
	mock := newMock()
	c := newClient(t, mock)
	result := c.Execute(context.Background(), Params{
		Query: `{ __typename __schema { queryType { name } } widget(id: "1") { title } }`,
	})
	require.JSONEq(t,
		`{"data":{"__typename":"Query","__schema":{"queryType":{"name":"Query"}},"widget":{"title":"Box"}}}`,
		toJSON(t, result))
	require.Len(t, mock.GetCalls(), 1)
}
