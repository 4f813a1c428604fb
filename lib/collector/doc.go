// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector carries spans to the collector over a
// bidirectional gRPC stream.
//
// There are no generated stubs. The RecordSpan method is described by
// hand ([RecordSpanMethod]) and messages are framed with the CBOR
// codec registered by this package under the "cbor" content subtype.
// An optional "zstd" compressor is registered alongside it.
//
// A [Stream] sends spans and runs a background receive loop that reads
// the collector's RecordStatus acknowledgements. When the collector
// ends the stream, the loop records the terminal gRPC status code.
// Stream implements the buffer's status reporter, so a stream that has
// ended stops the buffer from handing out further spans:
//
//	stream, err := conn.Open(ctx)
//	buffer.SetTransport(stream)
//	for item := range buffer.All() {
//	    if err := stream.Send(item); err != nil {
//	        break
//	    }
//	}
//	code, _ := stream.Code()
//
// [RegisterIngestServer] provides the server side, used by the mock
// collector and by tests.
package collector
