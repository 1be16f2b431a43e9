// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/gantry/internal/events"
)

func newWatchedProject(t *testing.T) (string, *ConfigWatcher, chan events.Event) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.json"), []byte("{}"), 0644))

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 100, HistoryMaxAge: time.Hour})
	t.Cleanup(func() { bus.Close() })

	received := make(chan events.Event, 10)
	_, err := bus.Subscribe(events.EventConfigChanged, func(_ context.Context, e events.Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	w, err := NewConfigWatcher(bus, root, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	return root, w, received
}

func TestConfigWatcher_PublishesOnWrite(t *testing.T) {
	root, w, received := newWatchedProject(t)

	require.NoError(t, w.Watch([]string{"app.json", ".env"}))
	// .env does not exist; only app.json is watched
	assert.Len(t, w.Watching(), 1)

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.json"), []byte(`{"expo":{}}`), 0644))

	select {
	case e := <-received:
		assert.Equal(t, "app.json", e.Payload["file"])
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config.changed event")
	}
}

func TestConfigWatcher_DebouncesBursts(t *testing.T) {
	root, w, received := newWatchedProject(t)

	require.NoError(t, w.Watch([]string{"app.json"}))

	path := filepath.Join(root, "app.json")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"n":1}`), 0644))
		time.Sleep(2 * time.Millisecond)
	}

	// One event for the burst
	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config.changed event")
	}

	select {
	case <-received:
		t.Fatal("burst produced more than one event")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConfigWatcher_WatchIdempotent(t *testing.T) {
	_, w, _ := newWatchedProject(t)

	require.NoError(t, w.Watch([]string{"app.json"}))
	require.NoError(t, w.Watch([]string{"app.json"}))
	assert.Len(t, w.Watching(), 1)
}

func TestConfigWatcher_WatchAfterClose(t *testing.T) {
	_, w, _ := newWatchedProject(t)

	require.NoError(t, w.Close())
	assert.Error(t, w.Watch([]string{"app.json"}))
	// Double close is a no-op
	assert.NoError(t, w.Close())
}
