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
	"github.com/undex-project/undex/byteio"
	"github.com/undex-project/undex/jvm/ops"
)

const FLOAT_SIGN = uint64(1) << 31
const FLOAT_NAN = uint64(0x7FC00000)
const FLOAT_NINF = uint64(0xFF800000)
const DOUBLE_SIGN = uint64(1) << 63
const DOUBLE_NAN = uint64(0x7FF8000000000000)
const DOUBLE_NINF = uint64(0xFFF0000000000000)

// Encodings of constants that don't require a pool entry (at most 3 bytes).
func lookupInt(x int32) (string, bool) {
	switch {
	case -1 <= x && x <= 5:
		return byteio.B(byte(int32(ops.ICONST_0) + x)), true
	case -128 <= x && x < 128:
		return byteio.BB(ops.BIPUSH, byte(x)), true
	case -32768 <= x && x < 32768:
		return byteio.Bh(ops.SIPUSH, int16(x)), true
	}
	return "", false
}

func lookupLong(x int64) (string, bool) {
	switch x {
	case 0:
		return byteio.B(ops.LCONST_0), true
	case 1:
		return byteio.B(ops.LCONST_1), true
	}
	return "", false
}

func lookupFloat(x uint64) (string, bool) {
	switch x {
	case 0x00000000:
		return byteio.B(ops.FCONST_0), true
	case 0x3F800000:
		return byteio.B(ops.FCONST_1), true
	case 0x40000000:
		return byteio.B(ops.FCONST_2), true
	}
	return "", false
}

func lookupDouble(x uint64) (string, bool) {
	switch x {
	case 0x0000000000000000:
		return byteio.B(ops.DCONST_0), true
	case 0x3FF0000000000000:
		return byteio.B(ops.DCONST_1), true
	}
	return "", false
}
