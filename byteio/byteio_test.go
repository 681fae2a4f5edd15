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
package byteio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undex-project/undex/jvm/errors"
)

func TestReaderLittleEndian(t *testing.T) {
	r := Reader{Data: "\x0e\x00\x78\x56\x34\x12"}
	assert.Equal(t, uint16(0x000e), r.U16())
	assert.Equal(t, uint32(0x12345678), r.U32())
	assert.Equal(t, uint32(6), r.Pos)
}

func TestReaderPastEnd(t *testing.T) {
	r := Reader{Data: "ab"}
	r.U16()
	defer func() {
		err, ok := recover().(*errors.MalformedInput)
		require.True(t, ok)
		assert.Contains(t, err.Error(), "past end")
	}()
	r.U8()
}

func TestLeb128(t *testing.T) {
	r := Reader{Data: "\x00\x7f\xe5\x8e\x26"}
	assert.Equal(t, uint32(0), r.Uleb128())
	assert.Equal(t, uint32(127), r.Uleb128())
	assert.Equal(t, uint32(624485), r.Uleb128())

	// sleb sign extension
	r = Reader{Data: "\x7f\x40\x3f"}
	assert.Equal(t, int32(-1), r.Sleb128())
	assert.Equal(t, int32(-64), r.Sleb128())
	assert.Equal(t, int32(63), r.Sleb128())
}

func TestOverlongVarint(t *testing.T) {
	r := Reader{Data: "\xff\xff\xff\xff\xff\xff"}
	assert.PanicsWithError(t, "malformed input at offset 5: overlong varint", func() {
		r.Uleb128()
	})
}

func TestCStr(t *testing.T) {
	r := Reader{Data: "abc\x00def\x00"}
	assert.Equal(t, "abc", r.CStr())
	assert.Equal(t, "def", r.CStr())
}

func TestWriterBigEndian(t *testing.T) {
	w := NewWriter()
	w.U16(0xCAFE)
	w.S32(-2)
	w.WriteString("xyz")
	assert.Equal(t, "\xca\xfe\xff\xff\xff\xfexyz", w.String())
}

func TestPackers(t *testing.T) {
	assert.Equal(t, "\x10\x05", BB(0x10, 5))
	assert.Equal(t, "\x13\x01\x00", BH(0x13, 256))
	assert.Equal(t, "\xa7\xff\xfd", Bh(0xa7, -3))
	assert.Equal(t, "\xc8\xff\xff\xff\xfb", Bi(0xc8, -5))
	assert.Equal(t, "\x00\x01\x00\x02\x00\x03\x00\x04", HHHH(1, 2, 3, 4))
}
