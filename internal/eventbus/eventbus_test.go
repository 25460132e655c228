package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ N int }

func TestDispatchByType(t *testing.T) {
	b := New()
	var pings, pongs []int
	On(b, func(ctx context.Context, e ping) { pings = append(pings, e.N) })
	On(b, func(ctx context.Context, e pong) { pongs = append(pongs, e.N) })

	Emit(context.Background(), b, ping{1})
	Emit(context.Background(), b, pong{2})
	Emit(context.Background(), b, ping{3})

	require.Equal(t, []int{1, 3}, pings)
	require.Equal(t, []int{2}, pongs)
}

func TestUnsubscribeRemovesOnlyItsHandler(t *testing.T) {
	b := New()
	var first, second int
	unsubFirst := On(b, func(ctx context.Context, e ping) { first++ })
	On(b, func(ctx context.Context, e ping) { second++ })

	Emit(context.Background(), b, ping{})
	unsubFirst()
	unsubFirst()
	Emit(context.Background(), b, ping{})

	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
}

func TestGlobalBus(t *testing.T) {
	Use(nil)
	Publish(context.Background(), ping{})
	require.NotPanics(t, func() { Subscribe(func(ctx context.Context, e ping) {})() })

	b := New()
	Use(b)
	defer Use(nil)
	var got int
	unsub := Subscribe(func(ctx context.Context, e ping) { got = e.N })
	defer unsub()
	Publish(context.Background(), ping{7})
	require.Equal(t, 7, got)
}
