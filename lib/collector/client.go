// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/bureau-foundation/spanstream/lib/schema/span"
)

// ServiceName is the gRPC service that accepts span streams.
const ServiceName = "bureau.spanstream.v1.IngestService"

// RecordSpanMethod is the full gRPC method name of the bidirectional
// span stream.
const RecordSpanMethod = "/" + ServiceName + "/RecordSpan"

var recordSpanStream = grpc.StreamDesc{
	StreamName:    "RecordSpan",
	ServerStreams: true,
	ClientStreams: true,
}

// DialConfig holds the parameters for [Dial].
type DialConfig struct {
	// Address is the collector's gRPC target, e.g. "collector:4317"
	// or "dns:///collector.internal:443".
	Address string

	// Compression names the compressor applied to outgoing messages:
	// "" for none, or [CompressorName].
	Compression string

	// Insecure disables TLS. Intended for local collectors and tests.
	Insecure bool

	// DialOptions are appended after the options Dial derives from the
	// fields above. Tests use this to install a bufconn dialer.
	DialOptions []grpc.DialOption

	// Logger receives stream lifecycle messages. Required.
	Logger *slog.Logger
}

// Conn is a client connection to the collector. Streams opened on the
// same Conn share its underlying HTTP/2 transport, so reconnecting a
// stream does not redial.
type Conn struct {
	conn        *grpc.ClientConn
	callOptions []grpc.CallOption
	logger      *slog.Logger
}

// Dial creates a Conn. gRPC connects lazily, so Dial fails only on
// invalid configuration; an unreachable collector surfaces as an
// Unavailable status on the first stream.
func Dial(config DialConfig) (*Conn, error) {
	if config.Address == "" {
		return nil, errors.New("collector: Address is required")
	}
	if config.Logger == nil {
		return nil, errors.New("collector: Logger is required")
	}

	callOptions := []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
	switch config.Compression {
	case "":
	case CompressorName:
		callOptions = append(callOptions, grpc.UseCompressor(CompressorName))
	default:
		return nil, fmt.Errorf("collector: unsupported compression %q", config.Compression)
	}

	var transportCredentials credentials.TransportCredentials
	if config.Insecure {
		transportCredentials = insecure.NewCredentials()
	} else {
		transportCredentials = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	options := append([]grpc.DialOption{grpc.WithTransportCredentials(transportCredentials)}, config.DialOptions...)
	conn, err := grpc.NewClient(config.Address, options...)
	if err != nil {
		return nil, fmt.Errorf("collector: creating client for %s: %w", config.Address, err)
	}

	return &Conn{
		conn:        conn,
		callOptions: callOptions,
		logger:      config.Logger,
	}, nil
}

// Open starts a new RecordSpan stream. The stream lives until the
// collector ends it, ctx is cancelled, or Close is called.
func (c *Conn) Open(ctx context.Context) (*Stream, error) {
	streamContext, cancel := context.WithCancel(ctx)
	client, err := c.conn.NewStream(streamContext, &recordSpanStream, RecordSpanMethod, c.callOptions...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("collector: opening span stream: %w", err)
	}

	stream := &Stream{
		client: client,
		cancel: cancel,
		logger: c.logger,
		done:   make(chan struct{}),
	}
	go stream.receive()
	return stream, nil
}

// Close tears down the connection and every stream on it.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Stream is one RecordSpan call. Send may be called from one goroutine
// at a time; the status accessors are safe from any goroutine.
type Stream struct {
	client grpc.ClientStream
	cancel context.CancelFunc
	logger *slog.Logger

	messagesSeen atomic.Uint64

	mu         sync.Mutex
	terminated bool
	code       codes.Code
	err        error

	done      chan struct{}
	closeOnce sync.Once
}

// receive reads acknowledgements until the stream ends, then records
// the terminal status. A clean server-side close is codes.OK.
func (s *Stream) receive() {
	defer close(s.done)

	for {
		var ack span.RecordStatus
		err := s.client.RecvMsg(&ack)
		if err == nil {
			s.messagesSeen.Store(ack.MessagesSeen)
			continue
		}

		code := codes.OK
		if errors.Is(err, io.EOF) {
			err = nil
		} else {
			code = status.Code(err)
		}

		s.mu.Lock()
		s.terminated = true
		s.code = code
		s.err = err
		s.mu.Unlock()

		s.logger.Debug("span stream ended",
			"code", code.String(),
			"messages_seen", s.messagesSeen.Load(),
		)
		return
	}
}

// Send writes one span. An error means the stream is over; the reason
// is available from Code and Err once Done is closed.
func (s *Stream) Send(record *span.Span) error {
	if err := s.client.SendMsg(record); err != nil {
		return fmt.Errorf("collector: sending span: %w", err)
	}
	return nil
}

// Terminated reports whether the collector has ended the stream with a
// status code. It implements streambuffer.StatusReporter.
func (s *Stream) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Code returns the terminal status code, with ok false while the
// stream is still live.
func (s *Stream) Code() (code codes.Code, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.terminated
}

// Err returns the error that ended the stream, or nil for a clean
// close or a live stream.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// MessagesSeen returns the collector's latest acknowledged count.
func (s *Stream) MessagesSeen() uint64 {
	return s.messagesSeen.Load()
}

// Done is closed once the receive loop has recorded the terminal
// status.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close half-closes the send side, cancels the call, and waits for
// the receive loop to exit. Idempotent.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		if err := s.client.CloseSend(); err != nil {
			s.logger.Debug("closing span stream send side", "error", err)
		}
		s.cancel()
		<-s.done
	})
}
