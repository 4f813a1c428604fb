// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streambuffer

import (
	"fmt"
	"iter"
	"sync"
)

// State is the connection state of a Buffer.
type State uint8

const (
	// StateOpen is normal operation: Take hands out items.
	StateOpen State = iota

	// StateDisconnected means the consumer's stream is being torn
	// down. Take returns end-of-stream, Put still enqueues. Reversed
	// by Reconnect.
	StateDisconnected

	// StateShuttingDown is terminal. Put is a no-op and Take returns
	// end-of-stream forever.
	StateShuttingDown
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDisconnected:
		return "disconnected"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// StatusReporter is the read-only view of the outbound transport that
// the Buffer polls on every Take iteration. Terminated reports whether
// the transport has received a terminal status code and will deliver
// nothing further. The Buffer never closes or otherwise mutates the
// transport.
type StatusReporter interface {
	Terminated() bool
}

// Buffer is a bounded FIFO with drop-oldest overflow, blocking
// consumption, and a connection state machine. All methods are safe
// for concurrent use.
type Buffer[T any] struct {
	mu     sync.Mutex
	notify *sync.Cond

	// items is a ring of len capacity. head indexes the oldest item,
	// count is the number of live items.
	items []T
	head  int
	count int

	seen    uint64
	dropped uint64

	state     State
	transport StatusReporter
}

// New creates a Buffer holding at most capacity items. Panics if
// capacity is not positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("streambuffer: capacity must be positive, got %d", capacity))
	}
	buffer := &Buffer[T]{items: make([]T, capacity)}
	buffer.notify = sync.NewCond(&buffer.mu)
	return buffer
}

// Put appends item unless the buffer is shutting down, in which case
// it is silently discarded. Every accepted call counts as seen, even
// when the item is later evicted. If the buffer is full, the oldest
// item is evicted and counted as dropped. Put never blocks.
func (b *Buffer[T]) Put(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateShuttingDown {
		return
	}

	b.seen++

	if b.count == len(b.items) {
		b.dropped++
		var zero T
		b.items[b.head] = zero
		b.head = (b.head + 1) % len(b.items)
		b.count--
	}

	b.items[(b.head+b.count)%len(b.items)] = item
	b.count++
	b.notify.Broadcast()
}

// Take removes and returns the oldest item, blocking while the buffer
// is empty. It returns ok == false (end-of-stream) without consuming
// anything when the buffer is shutting down, disconnected, or the
// installed transport reports a terminal status code.
//
// There is no timeout. A blocked Take returns only when an item
// arrives or when Shutdown or Disconnect is called.
func (b *Buffer[T]) Take() (item T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.endOfStream() {
			return item, false
		}

		if b.count > 0 {
			item = b.items[b.head]
			var zero T
			b.items[b.head] = zero
			b.head = (b.head + 1) % len(b.items)
			b.count--
			return item, true
		}

		b.notify.Wait()
	}
}

// endOfStream reports whether Take must stop handing out items.
// Caller holds b.mu.
func (b *Buffer[T]) endOfStream() bool {
	if b.state != StateOpen {
		return true
	}
	return b.transport != nil && b.transport.Terminated()
}

// All returns a sequence that yields items from Take until
// end-of-stream. The sequence is restartable: after a
// Disconnect/Reconnect cycle a fresh range over All resumes with the
// items still queued.
func (b *Buffer[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, ok := b.Take()
			if !ok || !yield(item) {
				return
			}
		}
	}
}

// Stats returns the number of items seen and dropped since the
// previous call, and resets both counters to zero as a pair.
func (b *Buffer[T]) Stats() (seen, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen, dropped = b.seen, b.dropped
	b.seen, b.dropped = 0, 0
	return seen, dropped
}

// Shutdown moves the buffer to its terminal state and wakes every
// blocked Take. Idempotent.
func (b *Buffer[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateShuttingDown
	b.notify.Broadcast()
}

// Disconnect marks the buffer disconnected, forgets the installed
// transport, and wakes every blocked Take. Queued items are retained
// for delivery after Reconnect. Idempotent, and a no-op on the state
// after Shutdown.
func (b *Buffer[T]) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateShuttingDown {
		b.state = StateDisconnected
	}
	b.transport = nil
	b.notify.Broadcast()
}

// Reconnect returns a disconnected buffer to the open state. It has no
// effect after Shutdown. Reconnect does not wake waiters: it makes no
// new data available, and a Take blocked before Disconnect has already
// returned.
func (b *Buffer[T]) Reconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateDisconnected {
		b.state = StateOpen
	}
}

// SetTransport installs the transport whose status Take polls. Pass
// nil to clear it. The buffer only observes the transport; its
// lifecycle stays with the caller.
func (b *Buffer[T]) SetTransport(transport StatusReporter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transport = transport
}

// State returns the current connection state.
func (b *Buffer[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}
