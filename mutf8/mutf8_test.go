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
package mutf8

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeAscii(t *testing.T) {
	assert.Equal(t, "hello", Decode("hello"))
	assert.Equal(t, "", Decode(""))
}

func TestDecodeEmbeddedNull(t *testing.T) {
	// U+0000 is stored as the overlong two byte form
	assert.Equal(t, "a\x00b", Decode("a\xc0\x80b"))
}

func TestDecodeSurrogatePair(t *testing.T) {
	// U+1F600 as a CESU-8 encoded surrogate pair D83D DE00
	in := "\xed\xa0\xbd\xed\xb8\x80"
	assert.Equal(t, "\U0001F600", Decode(in))
}

func TestDecodeBmp(t *testing.T) {
	// standard three byte sequences are valid UTF-8 and pass through
	assert.Equal(t, "日本", Decode("日本"))
}

func TestDecodeLoneSurrogate(t *testing.T) {
	// a high surrogate with no partner cannot be represented in a Go string
	// and comes out as the replacement character
	out := Decode("\xed\xa0\xbd")
	assert.Equal(t, "�", out)
}
