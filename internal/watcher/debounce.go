// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"sync"
	"time"
)

const defaultDebounceDuration = 100 * time.Millisecond

// Debouncer collapses bursts of filesystem events into one callback per
// key. Editors typically write a config file several times in quick
// succession; only the trailing write should trigger a restart.
type Debouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	pending map[string]*time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period. A
// non-positive duration falls back to the default.
func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = defaultDebounceDuration
	}
	return &Debouncer{
		quiet:   quiet,
		pending: make(map[string]*time.Timer),
	}
}

// Debounce schedules fn to run once the key has been quiet for the
// configured period. A repeat call for the same key resets the clock
// and replaces the callback.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.pending[key]; ok {
		timer.Stop()
	}

	d.pending[key] = time.AfterFunc(d.quiet, func() {
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending callback for a key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.pending[key]; ok {
		timer.Stop()
		delete(d.pending, key)
	}
}

// Stop drops every pending callback. Used when the watcher shuts down.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, timer := range d.pending {
		timer.Stop()
		delete(d.pending, key)
	}
}
