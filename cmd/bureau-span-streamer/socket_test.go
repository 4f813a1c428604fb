// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/spanstream/lib/codec"
	"github.com/bureau-foundation/spanstream/lib/schema/span"
	"github.com/bureau-foundation/spanstream/lib/testutil"
)

type ingestHarness struct {
	socketPath string
	records    chan *span.Span
	cancel     context.CancelFunc
	serveDone  chan error
}

func startIngest(t *testing.T) *ingestHarness {
	t.Helper()

	harness := &ingestHarness{
		socketPath: filepath.Join(testutil.SocketDir(t), "ingest.sock"),
		records:    make(chan *span.Span, 16),
		serveDone:  make(chan error, 1),
	}
	server := newIngestServer(harness.socketPath, func(record *span.Span) {
		harness.records <- record
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	harness.cancel = cancel
	go func() {
		harness.serveDone <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-harness.serveDone
	})
	return harness
}

func (h *ingestHarness) dial(t *testing.T) net.Conn {
	t.Helper()
	var conn net.Conn
	testutil.RequireEventually(t, func() bool {
		var err error
		conn, err = net.Dial("unix", h.socketPath)
		return err == nil
	}, 5*time.Second, "waiting for ingest socket")
	return conn
}

func (h *ingestHarness) arrivals() <-chan *span.Span { return h.records }

func TestIngestDecodesSpanSequence(t *testing.T) {
	harness := startIngest(t)
	conn := harness.dial(t)

	first := span.New("trace-1")
	first.UserAttributes.Set("http.status", 200)
	first.AgentAttributes.Set("sampled", true)

	encoder := codec.NewEncoder(conn)
	for _, record := range []*span.Span{first, {TraceID: ""}, span.New("trace-2")} {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	conn.Close()

	got := testutil.RequireReceive(t, harness.arrivals(), 5*time.Second, "first span")
	if got.TraceID != "trace-1" {
		t.Fatalf("first span trace_id = %q, want trace-1", got.TraceID)
	}
	status, ok := got.UserAttributes.Get("http.status")
	if !ok || status.Int() != 200 {
		t.Errorf("http.status = %v (present %v), want int 200", status, ok)
	}
	sampled, ok := got.AgentAttributes.Get("sampled")
	if !ok || !sampled.Bool() {
		t.Errorf("sampled = %v (present %v), want true", sampled, ok)
	}

	// The span without a trace id is skipped, not fatal to the
	// connection.
	got = testutil.RequireReceive(t, harness.arrivals(), 5*time.Second, "second span")
	if got.TraceID != "trace-2" {
		t.Fatalf("second span trace_id = %q, want trace-2", got.TraceID)
	}
}

func TestIngestMalformedInputClosesConnection(t *testing.T) {
	harness := startIngest(t)
	conn := harness.dial(t)
	defer conn.Close()

	// 0xff is a CBOR "break" with no indefinite-length item open.
	if _, err := conn.Write([]byte{0xff}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, 1)
	if _, err := conn.Read(buffer); err != io.EOF {
		t.Fatalf("Read after malformed input = %v, want io.EOF", err)
	}

	// Other producers are unaffected.
	other := harness.dial(t)
	if err := codec.NewEncoder(other).Encode(span.New("trace-3")); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	other.Close()
	got := testutil.RequireReceive(t, harness.arrivals(), 5*time.Second, "span from second producer")
	if got.TraceID != "trace-3" {
		t.Fatalf("trace_id = %q, want trace-3", got.TraceID)
	}
}

func TestIngestShutdownClosesProducersAndSocket(t *testing.T) {
	harness := startIngest(t)
	conn := harness.dial(t)
	defer conn.Close()

	harness.cancel()
	err := testutil.RequireReceive[error](t, harness.serveDone, 5*time.Second, "waiting for Serve to return")
	if err != nil {
		t.Fatalf("Serve() = %v, want nil", err)
	}
	// Let the cleanup's receive find a value.
	harness.serveDone <- nil

	if _, statErr := os.Stat(harness.socketPath); !os.IsNotExist(statErr) {
		t.Errorf("socket file still present after shutdown: %v", statErr)
	}
}

func TestWaitForShutdownReturnsBindFailure(t *testing.T) {
	// The parent directory does not exist, so Listen fails at once.
	socketPath := filepath.Join(testutil.SocketDir(t), "missing", "ingest.sock")
	server := newIngestServer(socketPath, func(*span.Span) {}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingestDone := make(chan error, 1)
	go func() {
		ingestDone <- server.Serve(ctx)
	}()

	result := make(chan error, 1)
	go func() {
		result <- waitForShutdown(ctx, ingestDone)
	}()

	// No cancellation: the failure alone must end the wait.
	err := testutil.RequireReceive[error](t, result, 5*time.Second, "waiting for bind failure")
	if err == nil {
		t.Fatal("waitForShutdown() = nil, want bind error")
	}
	if ctx.Err() != nil {
		t.Fatal("context cancelled before the bind failure was reported")
	}
}

func TestWaitForShutdownOutcomes(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		serve   error
		wantErr bool
	}{
		{"stopped without cancellation", context.Background(), nil, true},
		{"clean stop after cancellation", cancelled, nil, false},
		{"error during shutdown", cancelled, errors.New("accept: too many open files"), true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ingestDone := make(chan error, 1)
			ingestDone <- test.serve
			err := waitForShutdown(test.ctx, ingestDone)
			if (err != nil) != test.wantErr {
				t.Fatalf("waitForShutdown() = %v, wantErr %v", err, test.wantErr)
			}
		})
	}
}
