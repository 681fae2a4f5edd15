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
package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/undex-project/undex/jvm/ops"
	"github.com/undex-project/undex/jvm/scalars"
)

func TestLookupInt(t *testing.T) {
	for _, tc := range []struct {
		val  int32
		want string
	}{
		{-1, string([]byte{ops.ICONST_M1})},
		{0, string([]byte{ops.ICONST_0})},
		{5, string([]byte{ops.ICONST_0 + 5})},
		{6, string([]byte{ops.BIPUSH, 6})},
		{-128, string([]byte{ops.BIPUSH, 0x80})},
		{128, string([]byte{ops.SIPUSH, 0, 128})},
		{-32768, string([]byte{ops.SIPUSH, 0x80, 0})},
	} {
		got, ok := lookupInt(tc.val)
		assert.True(t, ok, "%d", tc.val)
		assert.Equal(t, tc.want, got, "%d", tc.val)
	}

	_, ok := lookupInt(32768)
	assert.False(t, ok)
	_, ok = lookupInt(-32769)
	assert.False(t, ok)
}

func TestLookupWide(t *testing.T) {
	got, ok := lookupLong(0)
	assert.True(t, ok)
	assert.Equal(t, string([]byte{ops.LCONST_0}), got)

	_, ok = lookupLong(2)
	assert.False(t, ok)

	got, ok = lookupFloat(0x3F800000) // 1.0f
	assert.True(t, ok)
	assert.Equal(t, string([]byte{ops.FCONST_1}), got)

	got, ok = lookupDouble(0x3FF0000000000000) // 1.0
	assert.True(t, ok)
	assert.Equal(t, string([]byte{ops.DCONST_1}), got)
}

func TestNormalizeNan(t *testing.T) {
	// every NaN payload collapses to the canonical quiet NaN
	assert.Equal(t, FLOAT_NAN, normalizeFloat(0x7F800001))
	assert.Equal(t, FLOAT_NAN, normalizeFloat(0xFFC01234))
	// infinities and ordinary values pass through
	assert.Equal(t, uint64(0x7F800000), normalizeFloat(0x7F800000))
	assert.Equal(t, FLOAT_NINF, normalizeFloat(FLOAT_NINF))
	assert.Equal(t, uint64(0x3F800000), normalizeFloat(0x3F800000))

	assert.Equal(t, DOUBLE_NAN, normalizeDouble(0x7FF0000000000001))
	assert.Equal(t, uint64(0x7FF0000000000000), normalizeDouble(0x7FF0000000000000))
}

func TestCalcIntSplitsHighLow(t *testing.T) {
	// 0x12340000 = 0x1234 << 16
	want := string([]byte{ops.SIPUSH, 0x12, 0x34, ops.BIPUSH, 16, ops.ISHL})
	assert.Equal(t, want, _calcInt(0x12340000))

	// 0x12345678 additionally xors in the low half
	want = string([]byte{ops.SIPUSH, 0x12, 0x34, ops.BIPUSH, 16, ops.ISHL,
		ops.SIPUSH, 0x56, 0x78, ops.IXOR})
	assert.Equal(t, want, _calcInt(0x12345678))
}

func TestCalcLong(t *testing.T) {
	// values that fit in an int are widened
	want := string([]byte{ops.BIPUSH, 100, ops.I2L})
	assert.Equal(t, want, _calcLong(100))

	got := _calcLong(int64(1) << 32)
	// high part shifted into place, no low half
	assert.Equal(t, string([]byte{ops.ICONST_1, ops.I2L, ops.BIPUSH, 32, ops.LSHL}), got)
}

func TestCalcBounded(t *testing.T) {
	// documented worst case encodings
	assert.LessOrEqual(t, len(Calc(scalars.INT, 0xDEADBEEF)), 10)
	assert.LessOrEqual(t, len(Calc(scalars.LONG, 0xDEADBEEFCAFEBABE)), 26)
	assert.LessOrEqual(t, len(Calc(scalars.FLOAT, 0x00000001)), 27)
	assert.LessOrEqual(t, len(Calc(scalars.DOUBLE, 0x0000000000000001)), 55)
}

func TestLookupOnly(t *testing.T) {
	assert.NotNil(t, LookupOnly(scalars.INT, uint64(uint32(100))))
	assert.Nil(t, LookupOnly(scalars.INT, uint64(uint32(100000))))
	assert.NotNil(t, LookupOnly(scalars.DOUBLE, 0))
	assert.Nil(t, LookupOnly(scalars.DOUBLE, 0x4000000000000000))
}