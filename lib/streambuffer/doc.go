// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package streambuffer decouples telemetry producers from the single
// goroutine that drives an outbound stream to the collector.
//
// A [Buffer] is a bounded FIFO. Producers call [Buffer.Put], which
// never blocks: when the buffer is full the oldest item is evicted and
// counted as dropped. The consumer calls [Buffer.Take] (or ranges over
// [Buffer.All]), which blocks until an item is available or the buffer
// declares end-of-stream.
//
// End-of-stream is driven by a small state machine:
//
//	Open --Disconnect--> Disconnected --Reconnect--> Open
//	Open|Disconnected --Shutdown--> ShuttingDown (terminal)
//
// and by the installed transport: when the [StatusReporter] reports a
// terminal status code, Take stops handing out items. An item handed
// to a stream that is already ending would never reach the collector,
// so the buffer keeps it queued and lets the consumer open a new
// stream instead.
//
// Queue contents and counters survive a Disconnect/Reconnect cycle. A
// single Buffer serves the whole process lifetime.
//
// All state is guarded by one mutex with an associated sync.Cond.
// Take waits on the condition; Put, Shutdown, and Disconnect broadcast
// on it.
package streambuffer
