// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bureau-foundation/spanstream/lib/collector"
	"github.com/bureau-foundation/spanstream/lib/schema/span"
	"github.com/bureau-foundation/spanstream/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMockClosesStreamAfterMaxSpans(t *testing.T) {
	mock := newMockCollector(mockOptions{maxSpansPerStream: 2}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mock.HandleSpan(ctx, span.New("t1")); err != nil {
		t.Fatalf("first span: %v", err)
	}
	if err := mock.HandleSpan(ctx, span.New("t2")); !errors.Is(err, collector.ErrCloseStream) {
		t.Fatalf("second span = %v, want ErrCloseStream", err)
	}
}

func TestMockFailsEveryNthStream(t *testing.T) {
	mock := newMockCollector(mockOptions{failEvery: 2}, discardLogger())

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	if err := mock.HandleSpan(first, span.New("t1")); err != nil {
		t.Fatalf("stream 1: %v", err)
	}

	second, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()
	err := mock.HandleSpan(second, span.New("t2"))
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("stream 2 = %v, want Unavailable", err)
	}
}

func TestMockUnimplemented(t *testing.T) {
	mock := newMockCollector(mockOptions{unimplemented: true}, discardLogger())
	err := mock.HandleSpan(context.Background(), span.New("t1"))
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("HandleSpan = %v, want Unimplemented", err)
	}
}

func TestMockForgetsCancelledStreams(t *testing.T) {
	mock := newMockCollector(mockOptions{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	if err := mock.HandleSpan(ctx, span.New("t1")); err != nil {
		t.Fatalf("HandleSpan: %v", err)
	}
	cancel()

	// AfterFunc runs in its own goroutine.
	testutil.RequireEventually(t, func() bool {
		mock.mu.Lock()
		defer mock.mu.Unlock()
		return len(mock.streams) == 0
	}, 5*time.Second, "cancelled stream still tracked")
}
