// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-span-streamer forwards spans from local producers to a trace
// collector over a long-lived gRPC stream.
//
// Producers connect to a Unix socket and write a sequence of
// CBOR-encoded spans. Each span is queued in a bounded buffer that
// evicts the oldest entry when full, so a slow or unreachable
// collector never blocks a producer. A single streamer goroutine
// drains the buffer into the collector stream, reconnecting after a
// fixed delay when the stream fails. If the collector answers
// Unimplemented the streamer stops for good and later spans are
// discarded.
//
// Buffer counters (spans seen, spans dropped on overflow) are
// harvested periodically into Prometheus metrics served at /metrics.
//
// Configuration comes from a YAML file named by --config or
// SPANSTREAM_CONFIG; see lib/config.
package main
