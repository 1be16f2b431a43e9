// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *MemoryEventBus {
	return NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	var received atomic.Int32
	_, err := bus.Subscribe("server.*", func(_ context.Context, event Event) error {
		received.Add(1)
		assert.Equal(t, EventServerStarted, event.Type)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{
		Type:    EventServerStarted,
		Payload: map[string]interface{}{"port": 8081},
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), received.Load())
}

func TestMemoryEventBus_PatternFiltering(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	var serverCount, allCount atomic.Int32

	_, err := bus.Subscribe("server.*", func(_ context.Context, _ Event) error {
		serverCount.Add(1)
		return nil
	})
	require.NoError(t, err)

	_, err = bus.Subscribe("*", func(_ context.Context, _ Event) error {
		allCount.Add(1)
		return nil
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: EventServerStarted})
	bus.Publish(context.Background(), Event{Type: EventTunnelStarted})
	bus.Publish(context.Background(), Event{Type: EventConfigChanged})

	assert.Equal(t, int32(1), serverCount.Load())
	assert.Equal(t, int32(3), allCount.Load())
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	var count atomic.Int32
	id, err := bus.Subscribe("*", func(_ context.Context, _ Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: EventServerStarted})
	require.NoError(t, bus.Unsubscribe(id))
	bus.Publish(context.Background(), Event{Type: EventServerStopped})

	assert.Equal(t, int32(1), count.Load())
}

func TestMemoryEventBus_UnsubscribeUnknown(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	err := bus.Unsubscribe(SubscriptionID("bogus"))
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestMemoryEventBus_SubscribeAsync(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	received := make(chan Event, 1)
	_, err := bus.SubscribeAsync("tunnel.*", func(_ context.Context, event Event) error {
		received <- event
		return nil
	}, 10)
	require.NoError(t, err)

	bus.Publish(context.Background(), Event{Type: EventTunnelStarted})

	select {
	case event := <-received:
		assert.Equal(t, EventTunnelStarted, event.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async event")
	}
}

func TestMemoryEventBus_HandlerPanicDoesNotCrash(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	_, err := bus.Subscribe("*", func(_ context.Context, _ Event) error {
		panic("handler blew up")
	})
	require.NoError(t, err)

	// Must not panic the publisher
	err = bus.Publish(context.Background(), Event{Type: EventServerStarted})
	assert.NoError(t, err)
}

func TestMemoryEventBus_History(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()

	bus.Publish(context.Background(), Event{Type: EventServerStarted})
	bus.Publish(context.Background(), Event{Type: EventTunnelStarted})
	bus.Publish(context.Background(), Event{Type: EventServerStopped})

	all, err := bus.History(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	servers, err := bus.History(EventFilter{Types: []string{"server.*"}})
	require.NoError(t, err)
	assert.Len(t, servers, 2)

	limited, err := bus.History(EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	// Limit keeps the newest
	assert.Equal(t, EventServerStopped, limited[0].Type)
}

func TestMemoryEventBus_ClosedBus(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), Event{Type: EventServerStarted})
	assert.ErrorIs(t, err, ErrBusClosed)

	_, err = bus.Subscribe("*", func(_ context.Context, _ Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)

	// Double close is a no-op
	assert.NoError(t, bus.Close())
}
