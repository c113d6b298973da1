package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"factoryplan/internal/model"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("t1")
	other := b.Subscribe("t2")

	evt := model.Event{ID: "e1", Type: model.EventPlanSolved, TenantID: "t1", Data: map[string]any{"x": 1}}
	b.Publish("t1", evt)

	select {
	case got := <-ch:
		require.Equal(t, evt.ID, got.ID)
		require.Equal(t, 1, got.Data["x"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-other:
		t.Fatalf("event leaked to another tenant: %+v", got)
	default:
	}

	b.Unsubscribe("t1", ch)
	b.Unsubscribe("t1", ch)
	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
	b.Publish("t1", evt)
	b.Unsubscribe("t2", other)
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("t1")
	defer b.Unsubscribe("t1", ch)
	for i := 0; i < cap(ch)+5; i++ {
		b.Publish("t1", model.Event{Type: model.EventPlanSolved})
	}
	require.Len(t, ch, cap(ch))
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://"+mr.Addr(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.Ping(t.Context()))

	ch := b.Subscribe("t1")
	b.Publish("t1", model.Event{ID: "e1", Type: model.EventPlanInfeasible, TenantID: "t1", Data: map[string]any{"totalCost": -1}})

	select {
	case got := <-ch:
		require.Equal(t, "e1", got.ID)
		require.Equal(t, model.EventPlanInfeasible, got.Type)
		require.Equal(t, float64(-1), got.Data["totalCost"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe("t1", ch)
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestRedisBrokerBadURL(t *testing.T) {
	_, err := NewRedisBroker("not-a-url", nil)
	require.Error(t, err)
}
