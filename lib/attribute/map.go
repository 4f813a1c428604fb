// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package attribute

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/bureau-foundation/spanstream/lib/codec"
)

// ErrTooManySources is returned by NewMap and Update when more than
// one positional bulk source is passed.
var ErrTooManySources = errors.New("attribute: at most one bulk source argument is allowed")

// ErrInvalidSource is returned by NewMap and Update for an argument
// that is neither a bulk source nor a Pair.
var ErrInvalidSource = errors.New("attribute: unsupported argument type")

// CoerceFunc converts a raw value into a Value. [Coerce] is the
// default; tests and callers with stricter policies may inject their
// own through [NewMapWith].
type CoerceFunc func(any) Value

// Pair is a single named attribute. Passing Pairs to NewMap or Update
// is the named-argument form of construction.
type Pair struct {
	Key   string
	Value any
}

// Map is an insertion-ordered map from string keys to Values. Every
// write goes through the Map's CoerceFunc, whichever method performs
// it.
//
// The zero Map is empty and ready to use with [Coerce]. A Map is not
// safe for concurrent mutation; span records own their Maps
// exclusively.
type Map struct {
	keys   []string
	values map[string]Value
	coerce CoerceFunc
}

// NewMap builds a Map using [Coerce]. See [Map.Update] for the
// accepted arguments.
func NewMap(args ...any) (*Map, error) {
	return NewMapWith(Coerce, args...)
}

// NewMapWith builds a Map that runs every write through coerce.
func NewMapWith(coerce CoerceFunc, args ...any) (*Map, error) {
	if coerce == nil {
		coerce = Coerce
	}
	m := &Map{coerce: coerce}
	if err := m.Update(args...); err != nil {
		return nil, err
	}
	return m, nil
}

// Update writes entries from args into the Map. Each argument is
// either a named [Pair] or a bulk source: a map[string]any, a
// map[string]Value, a []Pair, or another *Map. At most one bulk source
// may be passed; the check runs before any entry is written, so a
// rejected call leaves the Map unchanged.
//
// The bulk source is applied first, then the Pairs in argument order.
// Entries from a Go map are applied in sorted key order so the
// resulting insertion order is deterministic.
func (m *Map) Update(args ...any) error {
	var bulk []Pair
	var named []Pair
	sources := 0

	for index, arg := range args {
		switch typed := arg.(type) {
		case Pair:
			named = append(named, typed)
			continue
		case map[string]any:
			bulk = pairsFromMap(typed)
		case map[string]Value:
			bulk = pairsFromMap(typed)
		case []Pair:
			bulk = typed
		case *Map:
			bulk = typed.pairs()
		default:
			return fmt.Errorf("%w: argument %d has type %T", ErrInvalidSource, index, arg)
		}
		sources++
		if sources > 1 {
			return fmt.Errorf("%w: got %d", ErrTooManySources, countSources(args))
		}
	}

	for _, pair := range bulk {
		m.Set(pair.Key, pair.Value)
	}
	for _, pair := range named {
		m.Set(pair.Key, pair.Value)
	}
	return nil
}

// Set coerces value and stores it under key. An existing key keeps its
// original position.
func (m *Map) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if m.coerce == nil {
		m.coerce = Coerce
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = m.coerce(value)
}

// Get returns the Value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	value, ok := m.values[key]
	return value, ok
}

// Delete removes key. Returns false if the key was absent.
func (m *Map) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, exists := m.values[key]; !exists {
		return false
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(candidate string) bool { return candidate == key })
	return true
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// All iterates entries in insertion order.
func (m *Map) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if m == nil {
			return
		}
		for _, key := range m.keys {
			if !yield(key, m.values[key]) {
				return
			}
		}
	}
}

// Clone returns an independent copy that shares the coercion
// function. Entries are re-inserted through Set, so the copy follows
// the same write path as any other Map construction.
func (m *Map) Clone() *Map {
	clone := &Map{coerce: Coerce}
	if m == nil {
		return clone
	}
	if m.coerce != nil {
		clone.coerce = m.coerce
	}
	for _, pair := range m.pairs() {
		clone.Set(pair.Key, pair.Value)
	}
	return clone
}

// MarshalCBOR implements cbor.Marshaler. The encoder sorts map keys,
// so insertion order is not preserved on the wire.
func (m *Map) MarshalCBOR() ([]byte, error) {
	entries := make(map[string]Value, m.Len())
	for key, value := range m.All() {
		entries[key] = value
	}
	return codec.Marshal(entries)
}

// UnmarshalCBOR implements cbor.Unmarshaler. Decoded entries replace
// the Map's contents and are inserted in sorted key order, matching
// the wire order. A coercer injected through NewMapWith is kept.
func (m *Map) UnmarshalCBOR(data []byte) error {
	var entries map[string]Value
	if err := codec.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("attribute: decoding map: %w", err)
	}
	coerce := m.coerce
	if coerce == nil {
		coerce = Coerce
	}
	*m = Map{coerce: coerce}
	for _, pair := range pairsFromMap(entries) {
		m.Set(pair.Key, pair.Value)
	}
	return nil
}

func (m *Map) pairs() []Pair {
	if m == nil {
		return nil
	}
	pairs := make([]Pair, 0, len(m.keys))
	for _, key := range m.keys {
		pairs = append(pairs, Pair{Key: key, Value: m.values[key]})
	}
	return pairs
}

func pairsFromMap[V any](source map[string]V) []Pair {
	keys := make([]string, 0, len(source))
	for key := range source {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, Pair{Key: key, Value: source[key]})
	}
	return pairs
}

func countSources(args []any) int {
	count := 0
	for _, arg := range args {
		if _, named := arg.(Pair); !named {
			count++
		}
	}
	return count
}
