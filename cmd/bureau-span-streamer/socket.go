// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/bureau-foundation/spanstream/lib/codec"
	"github.com/bureau-foundation/spanstream/lib/schema/span"
)

// ingestServer accepts producer connections on a Unix socket. Each
// connection carries a sequence of CBOR spans with no framing beyond
// CBOR itself; the producer closes its end when done.
type ingestServer struct {
	socketPath string
	record     func(*span.Span)
	logger     *slog.Logger

	activeConnections sync.WaitGroup
}

func newIngestServer(socketPath string, record func(*span.Span), logger *slog.Logger) *ingestServer {
	return &ingestServer{
		socketPath: socketPath,
		record:     record,
		logger:     logger,
	}
}

// Serve listens until ctx is cancelled, then closes open producer
// connections and waits for their handlers to return.
func (s *ingestServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("ingest socket listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection decodes spans until the producer closes the
// connection, sends malformed CBOR, or ctx is cancelled. Spans that
// decode but fail validation are skipped.
func (s *ingestServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	decoder := codec.NewDecoder(conn)
	var accepted, rejected int
	for {
		record := new(span.Span)
		if err := decoder.Decode(record); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Warn("closing producer connection on decode error",
					"error", err,
					"accepted", accepted,
				)
			}
			break
		}
		if err := record.Validate(); err != nil {
			rejected++
			s.logger.Debug("rejecting span", "error", err)
			continue
		}
		s.record(record)
		accepted++
	}

	s.logger.Debug("producer disconnected", "accepted", accepted, "rejected", rejected)
}
