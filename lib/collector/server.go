// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"

	"github.com/bureau-foundation/spanstream/lib/schema/span"
)

// ErrCloseStream, returned by an IngestHandler, acknowledges the
// current span and then ends the stream with codes.OK. Collectors use
// this to shed a client onto a different backend.
var ErrCloseStream = errors.New("collector: close stream")

// IngestHandler receives the spans of a RecordSpan stream. Returning
// an error ends the stream; use status.Error to choose the code the
// client observes, or ErrCloseStream for a clean close.
type IngestHandler interface {
	HandleSpan(ctx context.Context, record *span.Span) error
}

// IngestHandlerFunc adapts a function to IngestHandler.
type IngestHandlerFunc func(ctx context.Context, record *span.Span) error

// HandleSpan calls f.
func (f IngestHandlerFunc) HandleSpan(ctx context.Context, record *span.Span) error {
	return f(ctx, record)
}

// RegisterIngestServer registers handler as the RecordSpan
// implementation on server. Each accepted span is acknowledged with
// the running count of spans seen on the stream.
func RegisterIngestServer(server *grpc.Server, handler IngestHandler) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*IngestHandler)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    recordSpanStream.StreamName,
			Handler:       serveRecordSpan,
			ServerStreams: true,
			ClientStreams: true,
		}},
		Metadata: "spanstream/collector",
	}, handler)
}

func serveRecordSpan(implementation any, stream grpc.ServerStream) error {
	handler := implementation.(IngestHandler)
	ctx := stream.Context()

	var seen uint64
	for {
		record := new(span.Span)
		if err := stream.RecvMsg(record); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		handleErr := handler.HandleSpan(ctx, record)
		if handleErr != nil && !errors.Is(handleErr, ErrCloseStream) {
			return handleErr
		}

		seen++
		if err := stream.SendMsg(&span.RecordStatus{MessagesSeen: seen}); err != nil {
			return err
		}
		if handleErr != nil {
			return nil
		}
	}
}
