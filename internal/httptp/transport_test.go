package httptp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	executor "github.com/hanpama/graphstitch/internal/executor"
)

func TestCallPostsDocument(t *testing.T) {
	var got requestBody
	var header http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"_0_result":[{"name":"Apple"}]},"errors":[{"message":"boom","path":["_0_result",0,"name"]}]}`))
	}))
	defer srv.Close()

	tp := New(
		WithProvider(NewStaticEndpoints(map[string][]string{"products": {srv.URL}})),
		WithForwardHeaders("authorization"),
	)
	defer tp.Close()

	ctx := metadata.NewOutgoingContext(context.Background(), metadata.Pairs(
		"authorization", "Bearer t",
		"graphql-request-id", "rid-1",
		"cookie", "secret",
	))
	res, err := tp.Executable("products").Execute(ctx, `query { _0_result: products(ids: $ids) { name } }`, map[string]any{"ids": []any{"1"}})
	require.NoError(t, err)

	require.Equal(t, `query { _0_result: products(ids: $ids) { name } }`, got.Query)
	require.Equal(t, map[string]any{"ids": []any{"1"}}, got.Variables)
	require.Equal(t, "Bearer t", header.Get("Authorization"))
	require.Equal(t, "rid-1", header.Get(RequestIDHeader))
	require.Empty(t, header.Get("Cookie"))

	require.Equal(t, map[string]any{"_0_result": []any{map[string]any{"name": "Apple"}}}, res.Data)
	require.Equal(t, []executor.GraphQLError{{
		Message: "boom",
		Path:    executor.Path{"_0_result", float64(0), "name"},
	}}, res.Errors)
}

func TestCallFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	tp := New(WithProvider(NewStaticEndpoints(map[string][]string{"A": {srv.URL}})))
	_, err := tp.Call(context.Background(), "A", "{ a }", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestCallAppliesDefaultTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tp := New(
		WithProvider(NewStaticEndpoints(map[string][]string{"A": {srv.URL}})),
		WithRequestTimeout(20*time.Millisecond),
	)
	_, err := tp.Call(context.Background(), "A", "{ a }", nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestUnknownLocation(t *testing.T) {
	tp := New(WithProvider(NewStaticEndpoints(nil)))
	_, err := tp.Call(context.Background(), "missing", "{ a }", nil)
	require.ErrorIs(t, err, ErrNoEndpoints)
}

func TestClosedTransport(t *testing.T) {
	tp := New(WithProvider(NewStaticEndpoints(nil)))
	require.NoError(t, tp.Close())
	_, err := tp.Call(context.Background(), "A", "{ a }", nil)
	require.ErrorIs(t, err, ErrClosed)
}
