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
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// sdbmReference computes the digest of units using the closed form of the
// recurrence: (s << 6) + (s << 16) - s == s * 65599.
func sdbmReference(units []uint64) uint64 {
	var s uint64
	for _, u := range units {
		s = s*65599 + u
	}
	return s
}

func TestSDBMRecurrence(t *testing.T) {
	var h SDBM
	require.EqualValues(t, 0, h.Sum64())

	require.NoError(t, h.WriteByte('a'))
	require.EqualValues(t, 97, h.Sum64())
	require.NoError(t, h.WriteByte('b'))
	require.EqualValues(t, 6363201, h.Sum64())

	h.Reset()
	require.EqualValues(t, 0, h.Sum64())

	// Long inputs wrap around without loss of determinism.
	data := make([]byte, 4096)
	units := make([]uint64, len(data))
	for i := range data {
		data[i] = byte(0xff - i%7)
		units[i] = uint64(data[i])
	}
	n, err := h.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, sdbmReference(units), h.Sum64())
}

func TestSDBMString(t *testing.T) {
	digest := func(s string) uint64 {
		var h SDBM
		n, err := h.WriteString(s)
		require.NoError(t, err)
		require.Equal(t, len(s), n)
		return h.Sum64()
	}

	// ASCII code units are the bytes themselves.
	var b SDBM
	b.Write([]byte("lorem ipsum"))
	require.Equal(t, b.Sum64(), digest("lorem ipsum"))

	// A rune above U+FFFF feeds its surrogate pair.
	var u SDBM
	u.WriteUnit(0xD83D)
	u.WriteUnit(0xDE00)
	require.Equal(t, u.Sum64(), digest("\U0001F600"))

	// A BMP rune feeds a single unit, not its UTF-8 bytes.
	require.Equal(t, sdbmReference([]uint64{0xE9}), digest("é"))

	// Invalid UTF-8 feeds the replacement character.
	require.Equal(t, sdbmReference([]uint64{'x', 0xFFFD}), digest("x\xff"))

	require.Equal(t, digest("hello"), digest("hello"))
	require.NotEqual(t, digest("hello"), digest("hellp"))
	require.NotEqual(t, digest("ab"), digest("ba"))
	require.EqualValues(t, 0, digest(""))
}

func TestSDBMIntegers(t *testing.T) {
	var a, b SDBM
	a.WriteUint64(0x0102030405060708)
	b.Write(binary.LittleEndian.AppendUint64(nil, 0x0102030405060708))
	require.Equal(t, b.Sum64(), a.Sum64())

	a.Reset()
	b.Reset()
	a.WriteUint32(0xdeadbeef)
	b.Write(binary.LittleEndian.AppendUint32(nil, 0xdeadbeef))
	require.Equal(t, b.Sum64(), a.Sum64())

	a.Reset()
	b.Reset()
	a.WriteUint16(0xbeef)
	b.Write([]byte{0xef, 0xbe})
	require.Equal(t, b.Sum64(), a.Sum64())

	a.Reset()
	b.Reset()
	a.WriteInt64(-1)
	b.WriteUint64(^uint64(0))
	require.Equal(t, b.Sum64(), a.Sum64())

	a.Reset()
	a.WriteBool(true)
	require.EqualValues(t, 1, a.Sum64())
}

func TestSDBMHash64(t *testing.T) {
	var h SDBM
	h.Write([]byte("ab"))
	require.Equal(t, 8, h.Size())
	require.Equal(t, 1, h.BlockSize())
	require.Equal(t, binary.BigEndian.AppendUint64([]byte{0x01}, 6363201), h.Sum([]byte{0x01}))
}

type name string

func TestHashOf(t *testing.T) {
	str := func(s string) uint64 {
		var h SDBM
		h.WriteString(s)
		return h.Sum64()
	}
	u64 := func(v uint64) uint64 {
		var h SDBM
		h.WriteUint64(v)
		return h.Sum64()
	}

	s := "chainmap"
	require.Equal(t, str(s), HashOf[string]()(&s))
	n := name("chainmap")
	require.Equal(t, str(s), HashOf[name]()(&n))

	i := 12345
	require.Equal(t, u64(12345), HashOf[int]()(&i))
	k := uint64(12345)
	require.Equal(t, u64(12345), HashOf[uint64]()(&k))
	neg := int64(-3)
	require.Equal(t, u64(uint64(neg)), HashOf[int64]()(&neg))

	i32 := int32(-2)
	var h SDBM
	h.WriteUint32(uint32(i32))
	require.Equal(t, h.Sum64(), HashOf[int32]()(&i32))

	by := byte(200)
	require.EqualValues(t, 200, HashOf[byte]()(&by))

	p := point{1, 2}
	h.Reset()
	p.HashSDBM(&h)
	require.Equal(t, h.Sum64(), HashOf[point]()(&p))

	// The maphash fallback is deterministic within a run.
	l := label{"x", 1}
	require.Equal(t, HashOf[label]()(&l), HashOf[label]()(&l))

	// Determinism across distinct keys with the same contents.
	for j := 0; j < 100; j++ {
		a, b := strconv.Itoa(j), strconv.Itoa(j)
		require.Equal(t, HashOf[string]()(&a), HashOf[string]()(&b))
	}
}

func TestIndexFor(t *testing.T) {
	require.Equal(t, -1, indexFor(12345, 0))
	require.Equal(t, 0, indexFor(12345, 1))
	require.Equal(t, 5, indexFor(12345, 10))
	require.Equal(t, 15, indexFor(^uint64(0), 16))
}

func TestXXHash(t *testing.T) {
	a, b := "hello", "hello"
	require.Equal(t, XXHash(&a), XXHash(&b))
	c := "hellp"
	require.NotEqual(t, XXHash(&a), XXHash(&c))

	x, y := uint64(7), uint64(8)
	require.Equal(t, XXHashUint64(&x), XXHashUint64(&x))
	require.NotEqual(t, XXHashUint64(&x), XXHashUint64(&y))
}
