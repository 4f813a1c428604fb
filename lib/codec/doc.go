// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the one CBOR configuration every spanstream
// package encodes with.
//
// CBOR is used on both hops of the pipeline: producers write span
// sequences to the streamer's ingest socket, and the streamer sends
// spans to the collector as CBOR-framed gRPC messages. Encoding uses
// Core Deterministic Encoding (RFC 8949 §4.2), so the same span always
// produces the same bytes.
//
// For buffers:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For streams (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that only ever travel as CBOR use `cbor` struct tags.
package codec
