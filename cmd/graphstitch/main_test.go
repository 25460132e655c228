package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	planner "github.com/hanpama/graphstitch/internal/planner"
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

func writeSupergraph(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supergraph.graphql")
	require.NoError(t, os.WriteFile(path, []byte(widgetSDL), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	path := writeSupergraph(t)
	out, err := run(t, "plan", "--supergraph", path,
		"-q", `query($id: ID!) { widget(id: $id) { title weight } }`,
		"--variables", `{"id":"1"}`)
	require.NoError(t, err)

	plan, err := planner.FromJSON([]byte(out))
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, "A", plan.Steps[0].Location)
	require.Equal(t, "B", plan.Steps[1].Location)
	require.Equal(t, plan.Steps[0].Index, plan.Steps[1].After)
}

func TestPlanCommandReportsValidationErrors(t *testing.T) {
	path := writeSupergraph(t)
	_, err := run(t, "plan", "--supergraph", path, "-q", `{ widget(id: "1") { nope } }`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
}

func TestPrintSchemaHidesRoutingDirectives(t *testing.T) {
	path := writeSupergraph(t)
	out, err := run(t, "print-schema", "--supergraph", path)
	require.NoError(t, err)
	require.Contains(t, out, "type Widget")
	require.NotContains(t, out, "@source")
	require.NotContains(t, out, "@resolver")

	out, err = run(t, "print-schema", "--supergraph", path, "--locations")
	require.NoError(t, err)
	require.Equal(t, "A\nB\n", out)
}

func TestServeRequiresEndpoints(t *testing.T) {
	path := writeSupergraph(t)
	_, err := run(t, "serve", "--supergraph", path, "--server.addr", "127.0.0.1:0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no endpoints configured")
}
