// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package span defines the records exchanged on the span stream: the
// Span a producer hands to the streamer, and the RecordStatus the
// collector sends back.
//
// Both are CBOR-only types (cbor struct tags, see lib/codec).
// Attribute values travel in their tagged form from lib/attribute.
package span

import (
	"errors"

	"github.com/bureau-foundation/spanstream/lib/attribute"
)

// Span is one finished span. Intrinsics carry the fields every span
// has (name, timestamp, duration, parent id, category); UserAttributes
// and AgentAttributes carry custom and agent-collected attributes.
type Span struct {
	TraceID         string         `cbor:"trace_id"`
	Intrinsics      *attribute.Map `cbor:"intrinsics,omitempty"`
	UserAttributes  *attribute.Map `cbor:"user_attributes,omitempty"`
	AgentAttributes *attribute.Map `cbor:"agent_attributes,omitempty"`
}

// New returns a Span for traceID with empty attribute maps.
func New(traceID string) *Span {
	return &Span{
		TraceID:         traceID,
		Intrinsics:      &attribute.Map{},
		UserAttributes:  &attribute.Map{},
		AgentAttributes: &attribute.Map{},
	}
}

// Validate checks that the span can be sent.
func (s *Span) Validate() error {
	if s == nil {
		return errors.New("span: nil span")
	}
	if s.TraceID == "" {
		return errors.New("span: trace_id is required")
	}
	return nil
}

// RecordStatus is the collector's acknowledgement. MessagesSeen is the
// number of spans the collector has received on the current stream.
type RecordStatus struct {
	MessagesSeen uint64 `cbor:"messages_seen"`
}
