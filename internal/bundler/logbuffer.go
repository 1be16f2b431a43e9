// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bundler

import (
	"strings"
	"sync"
)

const defaultLogBufferSize = 1000

// LogBuffer is a thread-safe ring buffer for bundler output with
// subscription support.
type LogBuffer struct {
	mu       sync.RWMutex
	lines    []string
	capacity int
	size     int
	head     int // next write position
	sequence int64

	subMu       sync.RWMutex
	subscribers map[chan LogLine]struct{}
}

// LogLine is a single output line with its sequence number.
type LogLine struct {
	Line     string `json:"line"`
	Sequence int64  `json:"sequence"`
}

// NewLogBuffer creates a log buffer with the given capacity.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = defaultLogBufferSize
	}
	return &LogBuffer{
		lines:       make([]string, capacity),
		capacity:    capacity,
		subscribers: make(map[chan LogLine]struct{}),
	}
}

// Write adds a single line to the buffer and notifies subscribers.
func (b *LogBuffer) Write(line string) {
	b.mu.Lock()
	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	b.sequence++
	seq := b.sequence
	b.mu.Unlock()

	// Notify subscribers (non-blocking)
	b.subMu.RLock()
	for ch := range b.subscribers {
		select {
		case ch <- LogLine{Line: line, Sequence: seq}:
		default:
			// Channel full, skip (subscriber too slow)
		}
	}
	b.subMu.RUnlock()
}

// WriteLines splits content by newlines and adds each line.
func (b *LogBuffer) WriteLines(content string) {
	if content == "" {
		return
	}
	content = strings.TrimSuffix(content, "\n")
	for _, line := range strings.Split(content, "\n") {
		b.Write(line)
	}
}

// Subscribe returns a channel that receives new log lines.
// The channel has a buffer of 100 lines.
func (b *LogBuffer) Subscribe() chan LogLine {
	ch := make(chan LogLine, 100)
	b.subMu.Lock()
	b.subscribers[ch] = struct{}{}
	b.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel. Safe to call after
// CloseAllSubscribers has already closed the channel.
func (b *LogBuffer) Unsubscribe(ch chan LogLine) {
	b.subMu.Lock()
	_, ok := b.subscribers[ch]
	delete(b.subscribers, ch)
	b.subMu.Unlock()
	if ok {
		close(ch)
	}
}

// CloseAllSubscribers closes all subscriber channels and resets the map.
// Used before replacing a process so orphaned subscribers exit cleanly.
func (b *LogBuffer) CloseAllSubscribers() {
	b.subMu.Lock()
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan LogLine]struct{})
	b.subMu.Unlock()
}

// Lines returns the last n lines from the buffer.
func (b *LogBuffer) Lines(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return []string{}
	}
	if n > b.size {
		n = b.size
	}

	result := make([]string, n)
	// head points to the next write position, so the most recent line
	// is at head-1
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.lines[(start+i)%b.capacity]
	}
	return result
}

// All returns all lines in the buffer.
func (b *LogBuffer) All() []string {
	b.mu.RLock()
	n := b.size
	b.mu.RUnlock()
	return b.Lines(n)
}

// Sequence returns the current sequence number.
func (b *LogBuffer) Sequence() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sequence
}

// Size returns the number of lines in the buffer.
func (b *LogBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all lines from the buffer.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = 0
	b.head = 0
	for i := range b.lines {
		b.lines[i] = ""
	}
}
