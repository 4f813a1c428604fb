// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spanstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/bureau-foundation/spanstream/lib/clock"
	"github.com/bureau-foundation/spanstream/lib/schema/span"
	"github.com/bureau-foundation/spanstream/lib/streambuffer"
)

// ErrStreamingUnsupported is returned by Run when the collector
// answers with codes.Unimplemented.
var ErrStreamingUnsupported = errors.New("spanstream: collector does not support span streaming")

// Stream is one collector stream as the Streamer uses it.
// *collector.Stream implements it.
type Stream interface {
	Send(record *span.Span) error
	Terminated() bool
	Code() (codes.Code, bool)
	Done() <-chan struct{}
	Close()
}

// Opener starts collector streams.
type Opener interface {
	Open(ctx context.Context) (Stream, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Stream, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context) (Stream, error) { return f(ctx) }

// Config holds the parameters for [NewStreamer]. All fields except
// ReconnectDelay are required.
type Config struct {
	// Buffer is the queue producers write to. The Streamer is its only
	// consumer.
	Buffer *streambuffer.Buffer[*span.Span]

	// Opener starts a stream per connection attempt.
	Opener Opener

	// ReconnectDelay is how long to wait after a stream fails (any
	// non-OK code other than Unimplemented) or cannot be opened.
	ReconnectDelay time.Duration

	// Clock drives the reconnect wait.
	Clock clock.Clock

	// Metrics receives send and stream-end counts.
	Metrics *Metrics

	// Logger receives stream lifecycle messages.
	Logger *slog.Logger
}

// Streamer moves spans from the buffer into collector streams.
type Streamer struct {
	buffer         *streambuffer.Buffer[*span.Span]
	opener         Opener
	reconnectDelay time.Duration
	clock          clock.Clock
	metrics        *Metrics
	logger         *slog.Logger
}

// NewStreamer validates config and returns a Streamer. Call Run in a
// goroutine to start streaming.
func NewStreamer(config Config) (*Streamer, error) {
	if config.Buffer == nil {
		return nil, errors.New("streamer: Buffer is required")
	}
	if config.Opener == nil {
		return nil, errors.New("streamer: Opener is required")
	}
	if config.ReconnectDelay < 0 {
		return nil, fmt.Errorf("streamer: ReconnectDelay must not be negative, got %v", config.ReconnectDelay)
	}
	if config.Clock == nil {
		return nil, errors.New("streamer: Clock is required")
	}
	if config.Metrics == nil {
		return nil, errors.New("streamer: Metrics is required")
	}
	if config.Logger == nil {
		return nil, errors.New("streamer: Logger is required")
	}

	return &Streamer{
		buffer:         config.Buffer,
		opener:         config.Opener,
		reconnectDelay: config.ReconnectDelay,
		clock:          config.Clock,
		metrics:        config.Metrics,
		logger:         config.Logger,
	}, nil
}

// Record queues a span for streaming. It never blocks: when the buffer
// is full the oldest span is evicted. Nil spans are ignored. Safe to
// call on a nil Streamer, so callers need not check whether streaming
// is enabled.
func (s *Streamer) Record(record *span.Span) {
	if s == nil || record == nil {
		return
	}
	s.buffer.Put(record)
}

// Run streams until ctx is cancelled or the buffer is shut down.
// Cancelling ctx shuts the buffer down; spans still queued at that
// point are discarded. Returns ErrStreamingUnsupported if the
// collector rejects the stream method, nil otherwise.
func (s *Streamer) Run(ctx context.Context) error {
	// The AfterFunc wakes a Take blocked inside pump. It runs in its
	// own goroutine, so every cancelled return also shuts the buffer
	// down synchronously before Run hands control back.
	stop := context.AfterFunc(ctx, s.buffer.Shutdown)
	defer func() {
		stop()
		if ctx.Err() != nil {
			s.buffer.Shutdown()
		}
	}()

	for {
		if s.finished(ctx) {
			s.logShutdown()
			return nil
		}

		stream, err := s.opener.Open(ctx)
		if err != nil {
			s.logger.Warn("opening span stream failed",
				"error", err,
				"retry_in", s.reconnectDelay,
			)
			if !s.wait(ctx, s.reconnectDelay) {
				s.logShutdown()
				return nil
			}
			continue
		}
		s.metrics.StreamsOpened.Inc()

		code := s.pump(stream)

		if s.finished(ctx) {
			s.logShutdown()
			return nil
		}

		switch code {
		case codes.OK:
			s.logger.Info("span stream closed by collector, reconnecting",
				"buffer_entries", s.buffer.Len(),
			)
		case codes.Unimplemented:
			s.metrics.ResponseErrors.WithLabelValues(code.String()).Inc()
			s.logger.Error("collector does not support span streaming, shutting down",
				"dropped_entries", s.buffer.Len(),
			)
			s.buffer.Shutdown()
			return ErrStreamingUnsupported
		default:
			s.metrics.ResponseErrors.WithLabelValues(code.String()).Inc()
			s.logger.Warn("span stream failed, will reconnect",
				"code", code.String(),
				"retry_in", s.reconnectDelay,
				"buffer_entries", s.buffer.Len(),
			)
			if !s.wait(ctx, s.reconnectDelay) {
				s.logShutdown()
				return nil
			}
		}
	}
}

// pump installs stream as the buffer's transport and sends spans until
// the buffer reports end-of-stream or a Send fails. Returns the code
// the stream ended with.
func (s *Streamer) pump(stream Stream) codes.Code {
	s.buffer.SetTransport(stream)
	s.buffer.Reconnect()

	// A Take blocked on an empty queue does not poll the transport, so
	// the end of the stream has to wake it explicitly.
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		<-stream.Done()
		s.buffer.Disconnect()
	}()

	for record := range s.buffer.All() {
		if err := stream.Send(record); err != nil {
			s.logger.Debug("span send failed, span lost", "error", err, "trace_id", record.TraceID)
			break
		}
		s.metrics.Sent.Inc()
	}

	stream.Close()
	<-watcherDone

	code, _ := stream.Code()
	return code
}

// finished reports whether Run should return.
func (s *Streamer) finished(ctx context.Context) bool {
	return ctx.Err() != nil || s.buffer.State() == streambuffer.StateShuttingDown
}

// wait sleeps for delay on the Streamer's clock. Returns false if ctx
// was cancelled first.
func (s *Streamer) wait(ctx context.Context, delay time.Duration) bool {
	select {
	case <-s.clock.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Streamer) logShutdown() {
	s.logger.Info("span streamer stopped", "abandoned_entries", s.buffer.Len())
}
