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

package chainmap

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V any] struct {
	hash func(key *K) uint64
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the digest function to use for a
// Map[K,V] in place of the SDBM default returned by HashOf. Keys that compare
// equal must produce equal digests.
func WithHash[K comparable, V any](hash func(key *K) uint64) option[K, V] {
	return hashOption[K, V]{hash}
}

// Allocator specifies an interface for allocating and releasing the bucket
// arrays used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// A Map allocates a new bucket array on every resize and frees the previous
// one once its pairs have been moved. If the allocator is manually managing
// memory then Map.Close must be called in order to ensure the final array is
// passed to FreeBuckets.
type Allocator[K comparable, V any] interface {
	// AllocBuckets should return a slice equivalent to
	// make([][]Slot[K,V], n), i.e. n empty buckets.
	AllocBuckets(n int) [][]Slot[K, V]

	// FreeBuckets can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets. Every bucket in v has already been emptied.
	FreeBuckets(v [][]Slot[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocBuckets(n int) [][]Slot[K, V] {
	return make([][]Slot[K, V], n)
}

func (defaultAllocator[K, V]) FreeBuckets(v [][]Slot[K, V]) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
