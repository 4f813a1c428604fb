// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/bureau-foundation/spanstream/lib/collector"
	"github.com/bureau-foundation/spanstream/lib/schema/span"
)

type mockOptions struct {
	maxSpansPerStream int
	failEvery         int
	unimplemented     bool
}

// mockCollector implements collector.IngestHandler. Streams are told
// apart by their context, which gRPC creates once per call.
type mockCollector struct {
	options mockOptions
	logger  *slog.Logger

	mu      sync.Mutex
	streams map[context.Context]*streamState
	opened  int
	total   uint64
}

type streamState struct {
	ordinal int
	spans   int
}

func newMockCollector(options mockOptions, logger *slog.Logger) *mockCollector {
	return &mockCollector{
		options: options,
		logger:  logger,
		streams: make(map[context.Context]*streamState),
	}
}

func (m *mockCollector) HandleSpan(ctx context.Context, record *span.Span) error {
	if m.options.unimplemented {
		return status.Error(codes.Unimplemented, "span streaming is not enabled on this collector")
	}

	state, total := m.track(ctx)

	attributes := []any{
		"trace_id", record.TraceID,
		"stream", state.ordinal,
		"stream_spans", state.spans,
		"total_spans", total,
		"intrinsics", record.Intrinsics.Len(),
		"user_attributes", record.UserAttributes.Len(),
		"agent_attributes", record.AgentAttributes.Len(),
	}
	if remote, ok := peer.FromContext(ctx); ok {
		attributes = append(attributes, "peer", remote.Addr.String())
	}
	m.logger.Info("span received", attributes...)

	if m.options.failEvery > 0 && state.ordinal%m.options.failEvery == 0 {
		m.forget(ctx)
		return status.Error(codes.Unavailable, "collector mock: injected stream failure")
	}
	if m.options.maxSpansPerStream > 0 && state.spans >= m.options.maxSpansPerStream {
		m.forget(ctx)
		return collector.ErrCloseStream
	}
	return nil
}

// track counts record against the stream owning ctx, registering the
// stream on its first span. Registrations for streams the client ended
// are reclaimed when their context is cancelled.
func (m *mockCollector) track(ctx context.Context) (streamState, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.streams[ctx]
	if !ok {
		m.opened++
		state = &streamState{ordinal: m.opened}
		m.streams[ctx] = state
		context.AfterFunc(ctx, func() { m.forget(ctx) })
	}
	state.spans++
	m.total++
	return *state, m.total
}

func (m *mockCollector) forget(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, ctx)
}
