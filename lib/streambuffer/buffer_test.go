// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streambuffer

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/spanstream/lib/testutil"
)

// fakeTransport is a StatusReporter whose terminal flag tests flip
// directly.
type fakeTransport struct {
	terminated atomic.Bool
	polls      atomic.Int64
}

func (f *fakeTransport) Terminated() bool {
	f.polls.Add(1)
	return f.terminated.Load()
}

type takeResult struct {
	item string
	ok   bool
}

// takeAsync runs Take in a goroutine and delivers its result on the
// returned channel.
func takeAsync(buffer *Buffer[string]) <-chan takeResult {
	results := make(chan takeResult, 1)
	go func() {
		item, ok := buffer.Take()
		results <- takeResult{item: item, ok: ok}
	}()
	return results
}

// drain takes items until the queue is empty. Only valid while the
// buffer is open and no other consumer is running.
func drain(t *testing.T, buffer *Buffer[string]) []string {
	t.Helper()
	var items []string
	for buffer.Len() > 0 {
		item, ok := buffer.Take()
		if !ok {
			t.Fatalf("Take returned end-of-stream with %d items queued", buffer.Len())
		}
		items = append(items, item)
	}
	return items
}

func TestBufferCapacityTwoScenario(t *testing.T) {
	buffer := New[string](2)
	buffer.Put("A")
	buffer.Put("B")
	buffer.Put("C")

	if buffer.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", buffer.Len())
	}

	seen, dropped := buffer.Stats()
	if seen != 3 || dropped != 1 {
		t.Fatalf("Stats() = (%d, %d), want (3, 1)", seen, dropped)
	}
	if buffer.Len() != 2 {
		t.Fatalf("Stats must not touch the queue, got %d items", buffer.Len())
	}

	for _, want := range []string{"B", "C"} {
		item, ok := buffer.Take()
		if !ok || item != want {
			t.Fatalf("Take() = (%q, %v), want (%q, true)", item, ok, want)
		}
	}

	// The queue is empty: the next Take blocks until data arrives.
	results := takeAsync(buffer)
	testutil.RequireNoReceive(t, results, 50*time.Millisecond, "Take on empty buffer returned early")

	buffer.Put("D")
	result := testutil.RequireReceive(t, results, 5*time.Second, "waiting for blocked Take")
	if !result.ok || result.item != "D" {
		t.Fatalf("blocked Take = %+v, want (D, true)", result)
	}
}

func TestBufferRetainsMostRecentInOrder(t *testing.T) {
	buffer := New[string](3)
	inputs := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, input := range inputs {
		buffer.Put(input)
	}

	if buffer.Len() != buffer.Cap() {
		t.Fatalf("expected a full buffer (%d), got %d", buffer.Cap(), buffer.Len())
	}
	if got := drain(t, buffer); !slices.Equal(got, []string{"e", "f", "g"}) {
		t.Fatalf("retained %v, want [e f g]", got)
	}
}

func TestBufferCountsSeenAndDropped(t *testing.T) {
	const capacity = 4
	for _, extra := range []int{0, 1, 5, 17} {
		buffer := New[string](capacity)
		for i := 0; i < capacity+extra; i++ {
			buffer.Put("x")
		}
		seen, dropped := buffer.Stats()
		if seen != uint64(capacity+extra) {
			t.Errorf("extra=%d: seen = %d, want %d", extra, seen, capacity+extra)
		}
		if dropped != uint64(extra) {
			t.Errorf("extra=%d: dropped = %d, want %d", extra, dropped, extra)
		}
	}
}

func TestBufferStatsResetsAsPair(t *testing.T) {
	buffer := New[string](1)
	buffer.Put("a")
	buffer.Put("b")

	if seen, dropped := buffer.Stats(); seen != 2 || dropped != 1 {
		t.Fatalf("first Stats() = (%d, %d), want (2, 1)", seen, dropped)
	}
	if seen, dropped := buffer.Stats(); seen != 0 || dropped != 0 {
		t.Fatalf("second Stats() = (%d, %d), want (0, 0)", seen, dropped)
	}
}

func TestBufferSeenCountsItemsLaterTaken(t *testing.T) {
	buffer := New[string](8)
	buffer.Put("a")
	buffer.Put("b")
	buffer.Take()

	if seen, _ := buffer.Stats(); seen != 2 {
		t.Fatalf("seen = %d, want 2", seen)
	}
}

func TestBufferShutdown(t *testing.T) {
	buffer := New[string](4)
	buffer.Put("queued")

	blocked := New[string](4)
	results := takeAsync(blocked)

	buffer.Shutdown()
	blocked.Shutdown()

	result := testutil.RequireReceive(t, results, 5*time.Second, "waiting for Take to observe shutdown")
	if result.ok {
		t.Fatalf("blocked Take after Shutdown = %+v, want end-of-stream", result)
	}

	// Queued items are not handed out after shutdown.
	if item, ok := buffer.Take(); ok {
		t.Fatalf("Take after Shutdown returned %q", item)
	}

	buffer.Put("late")
	if buffer.Len() != 1 {
		t.Fatalf("Put after Shutdown grew the queue to %d", buffer.Len())
	}
	if seen, dropped := buffer.Stats(); seen != 1 || dropped != 0 {
		t.Fatalf("Stats() = (%d, %d), want (1, 0): post-shutdown Put must not count", seen, dropped)
	}

	// Shutdown is idempotent and terminal.
	buffer.Shutdown()
	buffer.Reconnect()
	buffer.Disconnect()
	if buffer.State() != StateShuttingDown {
		t.Fatalf("state = %v, want shutting_down", buffer.State())
	}
	if _, ok := buffer.Take(); ok {
		t.Fatal("Take returned an item after Reconnect on a shut-down buffer")
	}
}

func TestBufferDisconnectWakesBlockedTake(t *testing.T) {
	buffer := New[string](4)
	results := takeAsync(buffer)

	buffer.Disconnect()

	result := testutil.RequireReceive(t, results, 5*time.Second, "waiting for Take to observe disconnect")
	if result.ok {
		t.Fatalf("Take after Disconnect = %+v, want end-of-stream", result)
	}
}

func TestBufferDisconnectReconnectResumesInOrder(t *testing.T) {
	buffer := New[string](8)
	buffer.Put("a")
	buffer.Put("b")

	buffer.Disconnect()
	buffer.Disconnect()
	if buffer.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", buffer.State())
	}

	if _, ok := buffer.Take(); ok {
		t.Fatal("Take while disconnected returned an item")
	}

	// Producers keep enqueueing while disconnected.
	buffer.Put("c")

	buffer.Reconnect()
	if buffer.State() != StateOpen {
		t.Fatalf("state = %v, want open", buffer.State())
	}

	if got := drain(t, buffer); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("after reconnect got %v, want [a b c]", got)
	}
}

func TestBufferAllIsRestartable(t *testing.T) {
	buffer := New[string](8)
	for _, item := range []string{"a", "b", "c"} {
		buffer.Put(item)
	}

	var first []string
	for item := range buffer.All() {
		first = append(first, item)
		if len(first) == 2 {
			buffer.Disconnect()
		}
	}
	if !slices.Equal(first, []string{"a", "b"}) {
		t.Fatalf("first pass yielded %v, want [a b]", first)
	}

	buffer.Reconnect()
	buffer.Put("d")

	var second []string
	for item := range buffer.All() {
		second = append(second, item)
		if len(second) == 2 {
			break
		}
	}
	if !slices.Equal(second, []string{"c", "d"}) {
		t.Fatalf("second pass yielded %v, want [c d]", second)
	}
}

func TestBufferTerminalTransportStopsTake(t *testing.T) {
	buffer := New[string](4)
	transport := &fakeTransport{}
	buffer.SetTransport(transport)

	buffer.Put("a")
	buffer.Put("b")

	if item, ok := buffer.Take(); !ok || item != "a" {
		t.Fatalf("Take() = (%q, %v), want (a, true)", item, ok)
	}

	transport.terminated.Store(true)
	if item, ok := buffer.Take(); ok {
		t.Fatalf("Take with terminal transport returned %q", item)
	}
	if buffer.Len() != 1 {
		t.Fatalf("terminal transport must not consume; %d items queued", buffer.Len())
	}
	if transport.polls.Load() == 0 {
		t.Fatal("transport status was never polled")
	}

	// Disconnect clears the handle; after Reconnect the queued item is
	// delivered even though the old transport is still terminal.
	buffer.Disconnect()
	buffer.Reconnect()
	if item, ok := buffer.Take(); !ok || item != "b" {
		t.Fatalf("Take after reconnect = (%q, %v), want (b, true)", item, ok)
	}
}

func TestBufferTerminalTransportObservedOnWake(t *testing.T) {
	buffer := New[string](4)
	transport := &fakeTransport{}
	buffer.SetTransport(transport)

	results := takeAsync(buffer)
	transport.terminated.Store(true)

	// The Put wakes the waiter, which re-checks the transport before
	// looking at the queue.
	buffer.Put("a")

	result := testutil.RequireReceive(t, results, 5*time.Second, "waiting for Take to re-check transport")
	if result.ok {
		t.Fatalf("Take = %+v, want end-of-stream", result)
	}
	if buffer.Len() != 1 {
		t.Fatalf("expected the item to stay queued, got %d", buffer.Len())
	}
}

func TestBufferSetTransportNilClears(t *testing.T) {
	buffer := New[string](2)
	transport := &fakeTransport{}
	transport.terminated.Store(true)
	buffer.SetTransport(transport)
	buffer.Put("a")

	if _, ok := buffer.Take(); ok {
		t.Fatal("Take with terminal transport returned an item")
	}

	buffer.SetTransport(nil)
	if item, ok := buffer.Take(); !ok || item != "a" {
		t.Fatalf("Take after clearing transport = (%q, %v), want (a, true)", item, ok)
	}
}

func TestBufferConcurrentProducers(t *testing.T) {
	const (
		producers   = 8
		perProducer = 500
		capacity    = 64
	)

	buffer := New[string](capacity)

	var received atomic.Int64
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for range buffer.All() {
			received.Add(1)
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buffer.Put("item")
			}
		}()
	}
	wg.Wait()

	buffer.Shutdown()
	testutil.RequireClosed(t, consumerDone, 5*time.Second, "consumer did not exit after Shutdown")

	seen, dropped := buffer.Stats()
	total := uint64(producers * perProducer)
	if seen != total {
		t.Fatalf("seen = %d, want %d", seen, total)
	}

	// Every Put either stayed queued, was delivered, or evicted
	// exactly one older item.
	accounted := uint64(received.Load()) + uint64(buffer.Len()) + dropped
	if accounted < total {
		t.Fatalf("received %d + queued %d + dropped %d = %d, below %d puts",
			received.Load(), buffer.Len(), dropped, accounted, total)
	}
	if buffer.Len() > capacity {
		t.Fatalf("queue length %d exceeds capacity %d", buffer.Len(), capacity)
	}
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for capacity=0")
		}
	}()
	New[string](0)
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateOpen:         "open",
		StateDisconnected: "disconnected",
		StateShuttingDown: "shutting_down",
		State(9):          "state(9)",
	} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", uint8(state), got, want)
		}
	}
}
