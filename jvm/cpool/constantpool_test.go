// Copyright 2015 Google Inc. All Rights Reserved.
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
package cpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undex-project/undex/byteio"
	"github.com/undex-project/undex/dex"
	"github.com/undex-project/undex/jvm/errors"
)

func TestSimplePoolDedupe(t *testing.T) {
	pool := Simple()
	a := pool.Utf8("hello")
	b := pool.Utf8("world")
	c := pool.Utf8("hello")
	assert.Equal(t, a, c)
	assert.NotEqual(t, a, b)
	// index 0 is reserved
	assert.Equal(t, uint16(1), a)
}

func TestClassEntryReferencesUtf8(t *testing.T) {
	pool := Simple()
	ci := pool.Class("java/lang/Object")
	vals := pool.Vals()
	require.Equal(t, byte(CONSTANT_Class), vals[ci].Tag)
	name := vals[ci].Data.P1
	assert.Equal(t, byte(CONSTANT_Utf8), vals[name].Tag)
	assert.Equal(t, "java/lang/Object", vals[name].Data.S)
}

func TestFieldRefShape(t *testing.T) {
	pool := Simple()
	fi := pool.Field(dex.Triple{Cname: "a/A", Name: "x", Desc: "I"})
	vals := pool.Vals()
	require.Equal(t, byte(CONSTANT_Fieldref), vals[fi].Tag)
	nat := vals[fi].Data.P2
	require.Equal(t, byte(CONSTANT_NameAndType), vals[nat].Tag)
	assert.Equal(t, "x", vals[vals[nat].Data.P1].Data.S)
	assert.Equal(t, "I", vals[vals[nat].Data.P2].Data.S)
}

func TestWideEntriesTakeTwoSlots(t *testing.T) {
	pool := Simple()
	a := pool.Long(42)
	b := pool.Int(7)
	assert.Equal(t, a+2, b)
}

func TestTryGet(t *testing.T) {
	pool := Simple()
	want := pool.Int(99)
	got, ok := pool.TryGet(Pair{Tag: CONSTANT_Integer, Data: Data{X: 99}})
	require.True(t, ok)
	assert.Equal(t, want, got)

	// an unseen value is inserted when there is room
	space := pool.Space()
	_, ok = pool.TryGet(Pair{Tag: CONSTANT_Integer, Data: Data{X: 100}})
	require.True(t, ok)
	assert.Equal(t, space-1, pool.Space())
}

func TestSplitPoolGrowsFromBothEnds(t *testing.T) {
	// ldc-reachable entries are allocated from the bottom, everything else
	// from the top
	pool := Split()
	low := pool.Int(5)
	high := pool.Utf8("x")
	assert.Equal(t, uint16(1), low)
	assert.Greater(t, int(high), 256)
}

func TestUtf8TooLong(t *testing.T) {
	pool := Simple()
	big := make([]byte, 65536)
	defer func() {
		_, ok := recover().(*errors.EncodingOverflow)
		assert.True(t, ok)
	}()
	pool.Utf8(string(big))
	t.Fatal("expected panic")
}

func TestWriteRoundTrip(t *testing.T) {
	pool := Simple()
	pool.Utf8("Code")
	pool.Int(5)
	w := byteio.NewWriter()
	pool.Write(w)
	out := w.String()

	// count, then entry 1: utf8 tag + length + bytes
	r := byteio.Reader{Data: out}
	count := uint16(out[0])<<8 | uint16(out[1])
	assert.Equal(t, uint16(3), count)
	_ = r
	assert.Equal(t, byte(CONSTANT_Utf8), out[2])
}
