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

import (
	"encoding/binary"
	"hash"
	"hash/maphash"
	"math"
	"reflect"
	"unicode/utf16"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// SDBM is the running state of the SDBM hash. Each input unit i updates the
// state s as
//
//	s' = i + (s << 6) + (s << 16) - s
//
// with uint64 wrap-around. The zero value is ready to use and starts from a
// state of 0. Bytes, 16-bit code units and little-endian integers may be
// interleaved freely; the digest depends only on the sequence of units fed.
//
// SDBM is not a cryptographic hash and is not seeded.
type SDBM struct {
	s uint64
}

var _ hash.Hash64 = (*SDBM)(nil)

func (h *SDBM) mix(i uint64) {
	h.s = i + (h.s << 6) + (h.s << 16) - h.s
}

// WriteByte feeds a single byte. It never returns an error.
func (h *SDBM) WriteByte(c byte) error {
	h.mix(uint64(c))
	return nil
}

// Write feeds p one byte at a time. It never returns an error.
func (h *SDBM) Write(p []byte) (int, error) {
	for _, c := range p {
		h.mix(uint64(c))
	}
	return len(p), nil
}

// WriteUnit feeds a single 16-bit code unit.
func (h *SDBM) WriteUnit(u uint16) {
	h.mix(uint64(u))
}

// WriteString feeds the UTF-16 code units of s. Runes outside the basic
// multilingual plane contribute a surrogate pair and invalid UTF-8 contributes
// U+FFFD. The returned count is len(s).
func (h *SDBM) WriteString(s string) (int, error) {
	for _, r := range s {
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			h.mix(uint64(r1))
			h.mix(uint64(r2))
			continue
		}
		h.mix(uint64(r))
	}
	return len(s), nil
}

// WriteUint64 feeds the 8 little-endian bytes of v.
func (h *SDBM) WriteUint64(v uint64) {
	for i := 0; i < 8; i++ {
		h.mix(uint64(byte(v >> (8 * i))))
	}
}

// WriteUint32 feeds the 4 little-endian bytes of v.
func (h *SDBM) WriteUint32(v uint32) {
	for i := 0; i < 4; i++ {
		h.mix(uint64(byte(v >> (8 * i))))
	}
}

// WriteUint16 feeds the 2 little-endian bytes of v.
func (h *SDBM) WriteUint16(v uint16) {
	h.mix(uint64(byte(v)))
	h.mix(uint64(byte(v >> 8)))
}

func (h *SDBM) WriteInt64(v int64) {
	h.WriteUint64(uint64(v))
}

func (h *SDBM) WriteBool(v bool) {
	if v {
		h.mix(1)
	} else {
		h.mix(0)
	}
}

// Sum64 returns the digest of everything fed so far.
func (h *SDBM) Sum64() uint64 {
	return h.s
}

// Sum appends the big-endian digest to b.
func (h *SDBM) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, h.s)
}

// Reset returns h to its initial state.
func (h *SDBM) Reset() {
	h.s = 0
}

func (h *SDBM) Size() int      { return 8 }
func (h *SDBM) BlockSize() int { return 1 }

// Hashable is implemented by key types that know how to feed themselves into
// an SDBM state. Two keys that compare equal must feed identical units.
type Hashable interface {
	HashSDBM(h *SDBM)
}

var (
	hashableType = reflect.TypeFor[Hashable]()
	// fallbackSeed is used for comparable key types that have no unit
	// decomposition of their own. It is fixed for the life of the process.
	fallbackSeed = maphash.MakeSeed()
)

// HashOf returns the default digest function for keys of type K. Strings are
// fed as UTF-16 code units, integers and floats as their little-endian bytes
// and booleans as a single unit. Types implementing Hashable feed themselves.
// Any other comparable type is hashed with hash/maphash using a process-wide
// seed, which is deterministic within a run but not across runs.
func HashOf[K comparable]() func(key *K) uint64 {
	t := reflect.TypeFor[K]()
	if t.Implements(hashableType) {
		return func(key *K) uint64 {
			var h SDBM
			// A nil interface key feeds nothing.
			if k, ok := any(*key).(Hashable); ok {
				k.HashSDBM(&h)
			}
			return h.Sum64()
		}
	}

	switch t.Kind() {
	case reflect.String:
		return feed[K](func(h *SDBM, v string) { h.WriteString(v) })
	case reflect.Int:
		return feed[K](func(h *SDBM, v int) { h.WriteUint64(uint64(v)) })
	case reflect.Int64:
		return feed[K](func(h *SDBM, v int64) { h.WriteUint64(uint64(v)) })
	case reflect.Int32:
		return feed[K](func(h *SDBM, v int32) { h.WriteUint32(uint32(v)) })
	case reflect.Int16:
		return feed[K](func(h *SDBM, v int16) { h.WriteUint16(uint16(v)) })
	case reflect.Int8:
		return feed[K](func(h *SDBM, v int8) { h.mix(uint64(uint8(v))) })
	case reflect.Uint:
		return feed[K](func(h *SDBM, v uint) { h.WriteUint64(uint64(v)) })
	case reflect.Uint64:
		return feed[K](func(h *SDBM, v uint64) { h.WriteUint64(v) })
	case reflect.Uintptr:
		return feed[K](func(h *SDBM, v uintptr) { h.WriteUint64(uint64(v)) })
	case reflect.Uint32:
		return feed[K](func(h *SDBM, v uint32) { h.WriteUint32(v) })
	case reflect.Uint16:
		return feed[K](func(h *SDBM, v uint16) { h.WriteUint16(v) })
	case reflect.Uint8:
		return feed[K](func(h *SDBM, v uint8) { h.mix(uint64(v)) })
	case reflect.Bool:
		return feed[K](func(h *SDBM, v bool) { h.WriteBool(v) })
	case reflect.Float32:
		return feed[K](func(h *SDBM, v float32) {
			// +0 and -0 compare equal and must land in the same bucket.
			if v == 0 {
				v = 0
			}
			h.WriteUint32(math.Float32bits(v))
		})
	case reflect.Float64:
		return feed[K](func(h *SDBM, v float64) {
			if v == 0 {
				v = 0
			}
			h.WriteUint64(math.Float64bits(v))
		})
	default:
		return func(key *K) uint64 {
			return maphash.Comparable(fallbackSeed, *key)
		}
	}
}

// feed adapts a writer for the underlying type T of K. The caller guarantees
// that K's underlying type is T.
func feed[K comparable, T any](write func(h *SDBM, v T)) func(key *K) uint64 {
	return func(key *K) uint64 {
		var h SDBM
		write(&h, *(*T)(unsafe.Pointer(key)))
		return h.Sum64()
	}
}

// XXHash digests string keys with xxHash64 instead of SDBM. Use it with
// WithHash when keys are long or adversarially similar.
func XXHash[K ~string](key *K) uint64 {
	return xxhash.Sum64String(string(*key))
}

// XXHashUint64 digests the little-endian bytes of an integer key with
// xxHash64.
func XXHashUint64[K ~uint64 | ~int64](key *K) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(*key))
	return xxhash.Sum64(buf[:])
}

// indexFor maps a digest onto a bucket array of length n. It returns -1 when
// there are no buckets.
func indexFor(digest uint64, n int) int {
	if n == 0 {
		return -1
	}
	return int(digest % uint64(n))
}
