// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package chainmap is a Go implementation of a separate-chaining hash table
// keyed by the SDBM hash. See also:
// https://en.wikipedia.org/wiki/Hash_table#Separate_chaining.
//
// # Buckets
//
// A Map owns an array of buckets. Each bucket is a slice of key/value slots
// holding every pair whose digest, taken modulo the current length of the
// bucket array, names that bucket. Lookups compute the bucket index and scan
// the bucket linearly. There is no ordering within a bucket: inserts append
// and removals swap the last slot into the hole before truncating, so the
// order of a bucket is not stable across removals.
//
// # Growth
//
// A new Map has no buckets at all. The first insert allocates a single
// bucket and every subsequent resize doubles the array. Before an insert
// looks for its key it checks the load: if the number of pairs is more than
// 3/4 of the number of buckets the array is doubled first. This check runs
// even when the insert turns out to overwrite an existing key. A resize moves
// every pair into a freshly allocated array by recomputing its index against
// the new length; pairs are placed directly since their keys are already
// known to be unique. The array never shrinks.
//
// # Hashing
//
// By default keys are digested with SDBM (see HashOf). A different digest
// function can be specified using the WithHash option.
package chainmap

import (
	"fmt"
	"iter"
	"strings"
)

const debug = false

// Slot holds a key and value.
type Slot[K comparable, V any] struct {
	key   K
	value V
}

// Map is an unordered map from keys to values with Insert, Get, Remove, All
// and Drain operations.
//
// A Map is NOT goroutine-safe. Callers sharing a Map between goroutines must
// guard it with a sync.RWMutex: Get, GetPtr, Len, IsEmpty and All may share
// the read lock while every other method needs the write lock, since a resize
// replaces the whole bucket array.
type Map[K comparable, V any] struct {
	// The digest function for keys of type K.
	hash func(key *K) uint64
	// The allocator to use for bucket arrays.
	allocator Allocator[K, V]
	// The bucket array. Its length is the divisor used to turn a digest into
	// a bucket index and is zero until the first insert.
	buckets [][]Slot[K, V]
	// The number of slots across all buckets (i.e. the number of elements in
	// the map).
	used int
}

// New constructs a new, empty Map. No buckets are allocated until the first
// insert. The zero value for a Map is not usable.
func New[K comparable, V any](options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:      HashOf[K](),
		allocator: defaultAllocator[K, V]{},
	}

	for _, op := range options {
		op.apply(m)
	}
	return m
}

// FromSeq constructs a Map holding the pairs of seq. It is equivalent to
// inserting each pair in order into a new Map, so a later pair overwrites an
// earlier pair with the same key.
func FromSeq[K comparable, V any](seq iter.Seq2[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](options...)
	m.InsertAll(seq)
	return m
}

// Close closes the map, releasing the bucket array back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.buckets != nil {
		for i := range m.buckets {
			clear(m.buckets[i])
			m.buckets[i] = nil
		}
		m.allocator.FreeBuckets(m.buckets)
		m.buckets = nil
	}
	m.used = 0
	m.allocator = nil
}

// Insert inserts an entry into the map. If an entry with the same key already
// exists its value is overwritten and the previous value is returned with
// replaced=true.
func (m *Map[K, V]) Insert(key K, value V) (prev V, replaced bool) {
	if len(m.buckets) == 0 || m.used > 3*len(m.buckets)/4 {
		m.resize()
	}

	i := m.bucketIndex(&key)
	b := m.buckets[i]
	if debug {
		fmt.Printf("insert(%v): bucket=%d len=%d\n", key, i, len(b))
	}

	// Search first, then mutate the slot by index.
	if j := find(b, key); j >= 0 {
		if debug {
			fmt.Printf("insert(updating): bucket=%d index=%d\n", i, j)
		}
		prev = b[j].value
		b[j].value = value
		m.checkInvariants()
		return prev, true
	}

	m.buckets[i] = append(b, Slot[K, V]{key: key, value: value})
	m.used++
	m.checkInvariants()
	return prev, false
}

// InsertAll inserts every pair of seq in order.
func (m *Map[K, V]) InsertAll(seq iter.Seq2[K, V]) {
	for k, v := range seq {
		m.Insert(k, v)
	}
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if p := m.GetPtr(key); p != nil {
		return *p, true
	}
	return value, false
}

// GetPtr returns a pointer to the value stored for key, or nil if the key is
// not present. The pointer is only valid until the next call to a method that
// mutates the map.
func (m *Map[K, V]) GetPtr(key K) *V {
	i := m.bucketIndex(&key)
	if i < 0 {
		return nil
	}
	b := m.buckets[i]
	if j := find(b, key); j >= 0 {
		return &b[j].value
	}
	return nil
}

// Remove removes the entry corresponding to the specified key from the map
// and returns its value. It is a noop to remove a non-existent key, in which
// case ok=false.
func (m *Map[K, V]) Remove(key K) (value V, ok bool) {
	i := m.bucketIndex(&key)
	if i < 0 {
		return value, false
	}
	b := m.buckets[i]
	j := find(b, key)
	if j < 0 {
		return value, false
	}
	if debug {
		fmt.Printf("remove(%v): bucket=%d index=%d len=%d\n", key, i, j, len(b))
	}

	value = b[j].value
	last := len(b) - 1
	b[j] = b[last]
	b[last] = Slot[K, V]{}
	m.buckets[i] = b[:last]
	m.used--
	m.checkInvariants()
	return value, true
}

// Clear deletes all entries from the map resulting in an empty map. The
// bucket array is retained.
func (m *Map[K, V]) Clear() {
	for i := range m.buckets {
		clear(m.buckets[i])
		m.buckets[i] = m.buckets[i][:0]
	}
	m.used = 0
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, iteration stops. Pairs are visited in ascending bucket
// order and, within a bucket, in the current slot order. The map must not be
// mutated during iteration.
//
// All conforms to the range-over-function form:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for _, b := range m.buckets {
		for j := range b {
			if !yield(b[j].key, b[j].value) {
				return
			}
		}
	}
}

// Drain removes pairs from the map and passes them to yield, visiting buckets
// in ascending order and emptying each from its last slot. If yield returns
// false, draining stops and the pairs not yet yielded remain in the map. The
// bucket array is retained. The map must not be otherwise mutated while
// draining.
func (m *Map[K, V]) Drain(yield func(key K, value V) bool) {
	for i := range m.buckets {
		for b := m.buckets[i]; len(b) > 0; b = m.buckets[i] {
			last := len(b) - 1
			s := b[last]
			b[last] = Slot[K, V]{}
			m.buckets[i] = b[:last]
			m.used--
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// IsEmpty reports whether the map has no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.used == 0
}

// bucketCount returns the length of the bucket array.
func (m *Map[K, V]) bucketCount() int {
	return len(m.buckets)
}

// bucketIndex returns the index of the bucket key belongs in, or -1 if the
// map has no buckets.
func (m *Map[K, V]) bucketIndex(key *K) int {
	if len(m.buckets) == 0 {
		return -1
	}
	return indexFor(m.hash(key), len(m.buckets))
}

// find returns the index of key within b, or -1.
func find[K comparable, V any](b []Slot[K, V], key K) int {
	for j := range b {
		if b[j].key == key {
			return j
		}
	}
	return -1
}

// resize doubles the bucket array (or allocates the first bucket) and moves
// every pair to its bucket under the new length.
func (m *Map[K, V]) resize() {
	newLen := 1
	if n := len(m.buckets); n > 0 {
		newLen = 2 * n
	}
	if debug {
		fmt.Printf("resize: used=%d buckets=%d->%d\n", m.used, len(m.buckets), newLen)
	}

	buckets := m.allocator.AllocBuckets(newLen)
	for i, b := range m.buckets {
		for j := len(b) - 1; j >= 0; j-- {
			k := indexFor(m.hash(&b[j].key), newLen)
			buckets[k] = append(buckets[k], b[j])
			b[j] = Slot[K, V]{}
		}
		m.buckets[i] = nil
	}

	old := m.buckets
	m.buckets = buckets
	if old != nil {
		m.allocator.FreeBuckets(old)
	}
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		var used int
		for i, b := range m.buckets {
			for j := range b {
				s := &b[j]
				if k := indexFor(m.hash(&s.key), len(m.buckets)); k != i {
					panic(fmt.Sprintf("invariant failed: slot(%d,%d): %v belongs in bucket %d\n%s",
						i, j, s.key, k, m.debugString()))
				}
				// A key that is not equal to itself (NaN) is never found, so
				// it cannot be checked for duplicates.
				if s.key != s.key {
					used++
					continue
				}
				if k := find(b, s.key); k != j {
					panic(fmt.Sprintf("invariant failed: slot(%d,%d): %v duplicated at index %d\n%s",
						i, j, s.key, k, m.debugString()))
				}
				used++
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  used=%d\n", len(m.buckets), m.used)
	for i, b := range m.buckets {
		fmt.Fprintf(&buf, "  %4d:", i)
		for j := range b {
			fmt.Fprintf(&buf, " %v=%v", b[j].key, b[j].value)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
