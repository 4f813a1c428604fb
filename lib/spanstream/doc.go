// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spanstream drives the span buffer into the collector.
//
// Data flow:
//
//	producers → Streamer.Record → streambuffer.Buffer → Streamer.Run → collector stream
//
// [Streamer.Run] is the buffer's single consumer. Each iteration opens
// a stream, installs it as the buffer's transport, and sends spans
// until the buffer reports end-of-stream. When the collector ends the
// stream, a watcher disconnects the buffer so a Take blocked on an
// empty queue wakes up. What happens next depends on the status code:
//
//   - OK: the collector closed the stream deliberately (rebalancing).
//     Reconnect immediately.
//   - Unimplemented: the collector does not accept span streams. Shut
//     the buffer down for good and return [ErrStreamingUnsupported].
//   - anything else: wait the configured reconnect delay, then
//     reconnect.
//
// Queued spans survive the reconnect. Spans taken from the buffer but
// rejected by a failing Send are lost; the buffer's transport check
// keeps that window small.
//
// [Harvester] reads the buffer's seen/dropped pair on a fixed interval
// and accumulates it into Prometheus counters.
package spanstream
