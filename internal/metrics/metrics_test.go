package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
)

func TestEventsAreCounted(t *testing.T) {
	m := New()
	b := eventbus.New()
	defer m.Register(b)()
	ctx := context.Background()

	eventbus.Emit(ctx, b, events.PlanFinish{Cached: false})
	eventbus.Emit(ctx, b, events.PlanFinish{Cached: true})
	eventbus.Emit(ctx, b, events.PlanFinish{Cached: true})
	eventbus.Emit(ctx, b, events.StepFinish{Location: "A", Duration: time.Millisecond})
	eventbus.Emit(ctx, b, events.StepFinish{Location: "B", Resolver: true, Err: errors.New("down")})
	eventbus.Emit(ctx, b, events.SubrequestFinish{Location: "B", Err: errors.New("refused")})
	eventbus.Emit(ctx, b, events.GraphQLFinish{OperationType: "query"})

	require.Equal(t, 1.0, testutil.ToFloat64(m.plans.WithLabelValues("miss", "true")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.plans.WithLabelValues("hit", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("A", "root", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("B", "resolver", "false")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.subrequests.WithLabelValues("B", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("query", "true")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	b := eventbus.New()
	defer m.Register(b)()
	eventbus.Emit(context.Background(), b, events.PlanFinish{Cached: true})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `graphstitch_planner_plans_total{cache="hit",success="true"} 1`)
}
