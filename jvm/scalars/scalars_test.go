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
package scalars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromDesc(t *testing.T) {
	for _, desc := range []string{"Z", "B", "S", "C", "I"} {
		assert.Equal(t, INT, FromDesc(desc), desc)
	}
	assert.Equal(t, FLOAT, FromDesc("F"))
	assert.Equal(t, LONG, FromDesc("J"))
	assert.Equal(t, DOUBLE, FromDesc("D"))
	assert.Equal(t, OBJ, FromDesc("Ljava/lang/Object;"))
	assert.Equal(t, OBJ, FromDesc("[I"))
	assert.Equal(t, OBJ, FromDesc("[[Ljava/lang/String;"))
}

func TestWide(t *testing.T) {
	assert.True(t, LONG.Wide())
	assert.True(t, DOUBLE.Wide())
	assert.False(t, INT.Wide())
	assert.False(t, FLOAT.Wide())
	assert.False(t, OBJ.Wide())
	assert.False(t, ZERO.Wide())
}

func TestSets(t *testing.T) {
	assert.Equal(t, ZERO, INT|FLOAT|OBJ)
	assert.NotZero(t, ZERO&OBJ)
	assert.Zero(t, C32&C64)
	assert.Equal(t, ALL, C32|C64|OBJ)
}