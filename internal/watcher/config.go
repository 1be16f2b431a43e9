// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher watches project config files and publishes change
// events.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingedpig/gantry/internal/events"
)

// ConfigWatcher watches the project's configuration files (app.json,
// app.config.js, .env and friends) and publishes a config.changed event
// when one of them is written. Consumers decide what to do with the
// change; this component never restarts anything itself.
type ConfigWatcher struct {
	bus       events.EventBus
	watcher   *fsnotify.Watcher
	debouncer *Debouncer

	mu       sync.Mutex
	root     string
	watched  map[string]struct{}
	watching bool
	closed   bool
	closeCh  chan struct{}
	wg       sync.WaitGroup
}

// NewConfigWatcher creates a watcher for the given project root.
func NewConfigWatcher(bus events.EventBus, root string, debounce time.Duration) (*ConfigWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &ConfigWatcher{
		bus:       bus,
		watcher:   fsWatcher,
		debouncer: NewDebouncer(debounce),
		root:      root,
		watched:   make(map[string]struct{}),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Watch begins watching the given config files, resolved relative to the
// project root. Calling Watch again adds paths; already-watched paths
// are skipped, so repeated calls after each server start are cheap.
func (w *ConfigWatcher) Watch(files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}

	for _, f := range files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(w.root, f)
		}
		if _, ok := w.watched[path]; ok {
			continue
		}
		if err := w.watcher.Add(path); err != nil {
			// Missing config files are normal; watch what exists
			log.Printf("Watcher: cannot watch %s: %v", path, err)
			continue
		}
		w.watched[path] = struct{}{}
	}

	w.watching = len(w.watched) > 0
	return nil
}

// Watching returns the currently watched paths.
func (w *ConfigWatcher) Watching() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.watched))
	for p := range w.watched {
		paths = append(paths, p)
	}
	return paths
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	w.watcher.Close()
	w.wg.Wait()

	return nil
}

func (w *ConfigWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher: error: %v", err)
		}
	}
}

func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	// Only writes and creates matter; chmod fires spuriously
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	_, watched := w.watched[event.Name]
	w.mu.Unlock()
	if !watched {
		return
	}

	// Editors often write several times in a burst; collapse them
	w.debouncer.Debounce(event.Name, func() {
		if w.bus == nil {
			return
		}
		err := w.bus.Publish(context.Background(), events.Event{
			Type: events.EventConfigChanged,
			Payload: map[string]interface{}{
				"path": event.Name,
				"file": filepath.Base(event.Name),
			},
		})
		if err != nil {
			log.Printf("Watcher: publish config change: %v", err)
		}
	})
}
