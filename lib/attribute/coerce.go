// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package attribute

import (
	"fmt"
	"reflect"
)

// Coerce converts an arbitrary value into a Value. The checks run in a
// fixed order:
//
//  1. bool (including named bool types) becomes KindBool. This runs
//     before the numeric checks so that a boolean is never classified
//     as a number.
//  2. A Value passes through unchanged, so copying between Maps does
//     not stringify already-coerced entries.
//  3. float32 and float64 become KindDouble.
//  4. Signed and unsigned integers become KindInt. Unsigned values
//     above math.MaxInt64 wrap to their two's complement int64.
//  5. Everything else, nil included, becomes KindString using the
//     value's fmt.Sprint representation (which honours fmt.Stringer
//     and error).
//
// Coerce is total: it never panics and never returns an empty Value.
func Coerce(value any) Value {
	switch typed := value.(type) {
	case bool:
		return BoolValue(typed)
	case Value:
		if typed.kind != KindEmpty {
			return typed
		}
		return StringValue("")
	case float64:
		return DoubleValue(typed)
	case float32:
		return DoubleValue(float64(typed))
	case int:
		return IntValue(int64(typed))
	case int64:
		return IntValue(typed)
	case int32:
		return IntValue(int64(typed))
	case string:
		return StringValue(typed)
	}

	if value == nil {
		return StringValue(fmt.Sprint(value))
	}

	// Named types (type Level int, type Enabled bool) land here. The
	// reflect kind switch repeats the ordering above.
	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Bool:
		return BoolValue(reflected.Bool())
	case reflect.Float32, reflect.Float64:
		return DoubleValue(reflected.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(reflected.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return IntValue(int64(reflected.Uint()))
	}

	return StringValue(fmt.Sprint(value))
}
