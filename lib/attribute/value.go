// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package attribute

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/bureau-foundation/spanstream/lib/codec"
)

// Kind identifies which variant of a Value is populated.
type Kind uint8

const (
	// KindEmpty is the zero Value. Coerce never produces it; it only
	// appears for Values that were never assigned.
	KindEmpty Kind = iota
	KindBool
	KindDouble
	KindInt
	KindString
)

// String returns the wire field name of the variant.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool_value"
	case KindDouble:
		return "double_value"
	case KindInt:
		return "int_value"
	case KindString:
		return "string_value"
	default:
		return "empty"
	}
}

// Value is an immutable tagged scalar. Exactly one variant is
// populated for any Value built by a constructor or by Coerce.
//
// Numeric variants share the bits field: booleans store 0 or 1,
// doubles store their IEEE 754 bit pattern, integers their two's
// complement representation.
type Value struct {
	kind Kind
	bits uint64
	text string
}

// BoolValue returns a boolean Value.
func BoolValue(v bool) Value {
	var bits uint64
	if v {
		bits = 1
	}
	return Value{kind: KindBool, bits: bits}
}

// DoubleValue returns a double-precision Value.
func DoubleValue(v float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(v)}
}

// IntValue returns a signed integer Value.
func IntValue(v int64) Value {
	return Value{kind: KindInt, bits: uint64(v)}
}

// StringValue returns a string Value.
func StringValue(v string) Value {
	return Value{kind: KindString, text: v}
}

// Kind reports which variant is populated.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean variant. Returns false for other kinds.
func (v Value) Bool() bool { return v.kind == KindBool && v.bits == 1 }

// Double returns the double variant. Returns 0 for other kinds.
func (v Value) Double() float64 {
	if v.kind != KindDouble {
		return 0
	}
	return math.Float64frombits(v.bits)
}

// Int returns the integer variant. Returns 0 for other kinds.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return int64(v.bits)
}

// Str returns the string variant. Returns "" for other kinds; use
// String for a printable rendering of any kind.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.text
}

// Any returns the populated variant as a plain Go value (bool,
// float64, int64, or string), or nil for an empty Value.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.Bool()
	case KindDouble:
		return v.Double()
	case KindInt:
		return v.Int()
	case KindString:
		return v.text
	default:
		return nil
	}
}

// String renders the populated variant for logs.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case KindString:
		return v.text
	default:
		return ""
	}
}

// Equal reports whether both Values hold the same variant and the
// same payload. Doubles compare by bit pattern, so NaN equals itself.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.bits == other.bits && v.text == other.text
}

// wireValue is the CBOR shape of a Value: a map with exactly one of
// these keys present.
type wireValue struct {
	BoolValue   *bool    `cbor:"bool_value,omitempty"`
	DoubleValue *float64 `cbor:"double_value,omitempty"`
	IntValue    *int64   `cbor:"int_value,omitempty"`
	StringValue *string  `cbor:"string_value,omitempty"`
}

// errEmptyValue is returned when encoding or decoding a Value with no
// populated variant.
var errEmptyValue = errors.New("attribute: value has no populated variant")

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	var wire wireValue
	switch v.kind {
	case KindBool:
		b := v.Bool()
		wire.BoolValue = &b
	case KindDouble:
		d := v.Double()
		wire.DoubleValue = &d
	case KindInt:
		i := v.Int()
		wire.IntValue = &i
	case KindString:
		s := v.text
		wire.StringValue = &s
	default:
		return nil, errEmptyValue
	}
	return codec.Marshal(wire)
}

// UnmarshalCBOR implements cbor.Unmarshaler. Exactly one variant key
// must be present.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var wire wireValue
	if err := codec.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("attribute: decoding value: %w", err)
	}

	var decoded []Value
	if wire.BoolValue != nil {
		decoded = append(decoded, BoolValue(*wire.BoolValue))
	}
	if wire.DoubleValue != nil {
		decoded = append(decoded, DoubleValue(*wire.DoubleValue))
	}
	if wire.IntValue != nil {
		decoded = append(decoded, IntValue(*wire.IntValue))
	}
	if wire.StringValue != nil {
		decoded = append(decoded, StringValue(*wire.StringValue))
	}

	switch len(decoded) {
	case 0:
		return errEmptyValue
	case 1:
		*v = decoded[0]
		return nil
	default:
		return fmt.Errorf("attribute: value has %d populated variants, expected 1", len(decoded))
	}
}
