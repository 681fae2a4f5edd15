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
package arrays

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/undex-project/undex/jvm/scalars"
)

func TestFromDesc(t *testing.T) {
	assert.Equal(t, T("[I"), FromDesc("[I"))
	assert.Equal(t, T("[J"), FromDesc("[J"))
	// boolean arrays are treated as byte arrays
	assert.Equal(t, T("[B"), FromDesc("[Z"))
	// object and multidimensional object arrays are not tracked
	assert.Equal(t, INVALID, FromDesc("[Ljava/lang/Object;"))
	assert.Equal(t, INVALID, FromDesc("Ljava/lang/Object;"))
	assert.Equal(t, INVALID, FromDesc("I"))
	// arrays of primitive arrays are still tracked as object-element arrays
	assert.Equal(t, T("[[I"), FromDesc("[[I"))
}

func TestMerge(t *testing.T) {
	assert.Equal(t, T("[I"), NULL.Merge("[I"))
	assert.Equal(t, T("[I"), T("[I").Merge(NULL))
	assert.Equal(t, T("[I"), T("[I").Merge("[I"))
	assert.Equal(t, INVALID, T("[I").Merge("[F"))
	assert.Equal(t, INVALID, INVALID.Merge("[I"))
	assert.Equal(t, NULL, NULL.Merge(NULL))
}

func TestNarrow(t *testing.T) {
	assert.Equal(t, T("[I"), INVALID.Narrow("[I"))
	assert.Equal(t, T("[I"), T("[I").Narrow(INVALID))
	assert.Equal(t, T("[I"), T("[I").Narrow("[I"))
	assert.Equal(t, NULL, T("[I").Narrow("[F"))
}

func TestEletPair(t *testing.T) {
	st, at := T("[I").EletPair()
	assert.Equal(t, scalars.INT, st)
	assert.Equal(t, T("I"), at)

	st, at = T("[[I").EletPair()
	assert.Equal(t, scalars.OBJ, st)
	assert.Equal(t, T("[I"), at)

	st, at = INVALID.EletPair()
	assert.Equal(t, scalars.OBJ, st)
	assert.Equal(t, INVALID, at)

	st, _ = T("[D").EletPair()
	assert.Equal(t, scalars.DOUBLE, st)
}