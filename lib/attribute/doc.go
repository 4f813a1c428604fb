// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package attribute converts arbitrary Go values into the tagged
// scalar representation carried on the span stream wire.
//
// A [Value] holds exactly one of four variants: boolean, double,
// signed integer, or string. [Coerce] maps any Go value onto one of
// them and never fails: values with no numeric or boolean
// interpretation fall back to their default fmt representation, since
// delivering telemetry matters more than strict typing.
//
// The order of checks in Coerce is part of the contract. Booleans are
// classified before numbers, floats before integers, and everything
// else becomes a string.
//
// [Map] is an insertion-ordered string-keyed map that runs every write
// through a coercion function. It is the attribute container embedded
// in span records:
//
//	attrs, err := attribute.NewMap(map[string]any{"http.status": 200},
//	    attribute.Pair{Key: "error", Value: false})
//
// Both types encode to CBOR through lib/codec. A Value encodes as a
// one-entry map whose key names the populated variant (bool_value,
// double_value, int_value, string_value).
package attribute
