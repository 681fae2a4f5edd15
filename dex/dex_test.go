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
package dex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undex-project/undex/dex"
	"github.com/undex-project/undex/internal/dextest"
	"github.com/undex-project/undex/jvm/errors"
)

func buildSimple() string {
	b := dextest.NewBuilder()
	count := b.Field("La/A;", "COUNT", "I")
	run := b.Method("La/A;", "run", b.Proto("I"))
	code := &dextest.Code{
		Nregs: 1,
		Shorts: []uint16{
			0x3012, // const/4 v0, #3
			0x000f, // return v0
		},
	}
	b.Class("La/A;", "Ljava/lang/Object;", dextest.AccPublic,
		[]dextest.EncField{{Idx: count, Access: dextest.AccStatic | dextest.AccFinal, HasValue: true, Value: dextest.EncInt(42)}},
		[]dextest.EncMethod{{Idx: run, Access: dextest.AccPublic | dextest.AccStatic, Code: code}},
		"Ljava/io/Serializable;")
	return b.Build()
}

func TestParseImage(t *testing.T) {
	df, err := dex.Parse(buildSimple())
	require.NoError(t, err)
	assert.True(t, df.ChecksumOK)
	require.Len(t, df.Classes, 1)

	cls := &df.Classes[0]
	assert.Equal(t, "a/A", cls.Name)
	require.NotNil(t, cls.Super)
	assert.Equal(t, "java/lang/Object", *cls.Super)
	assert.Equal(t, []string{"java/io/Serializable"}, cls.Interfaces)

	cls.ParseData()
	require.Len(t, cls.Data.Fields, 1)
	field := cls.Data.Fields[0]
	assert.Equal(t, "COUNT", field.Name)
	assert.Equal(t, "I", field.Desc)
	assert.Equal(t, uint32(42), field.ConstantValue)

	require.Len(t, cls.Data.Methods, 1)
	method := cls.Data.Methods[0]
	assert.Equal(t, "run", method.Name)
	assert.Equal(t, "()I", method.Desc)
	require.NotNil(t, method.Code)
	assert.Equal(t, uint16(1), method.Code.Nregs)

	require.Len(t, method.Code.Bytecode, 2)
	assert.Equal(t, dex.Const32, method.Code.Bytecode[0].Type)
	assert.Equal(t, uint32(3), method.Code.Bytecode[0].B)
	assert.Equal(t, dex.Return, method.Code.Bytecode[1].Type)
}

func buildTries(catchType string) string {
	b := dextest.NewBuilder()
	if catchType != "" {
		b.Type(catchType)
	}
	run := b.Method("La/A;", "run", b.Proto("I"))
	code := &dextest.Code{
		Nregs: 1,
		Shorts: []uint16{
			0x0012,         // const/4 v0, #0
			0x00db, 0x0000, // div-int/lit8 v0, v0, #0
			0x000f, // return v0
			0x1012, // const/4 v0, #1
			0x000f, // return v0
		},
		Tries: []dextest.Try{{Start: 1, Count: 3, Catches: []dextest.Catch{{Type: catchType, Target: 4}}}},
	}
	b.Class("La/A;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: run, Access: dextest.AccPublic | dextest.AccStatic, Code: code}})
	return b.Build()
}

func TestParseTries(t *testing.T) {
	df, err := dex.Parse(buildTries("Ljava/lang/ArithmeticException;"))
	require.NoError(t, err)

	cls := &df.Classes[0]
	cls.ParseData()
	code := cls.Data.Methods[0].Code
	require.Len(t, code.Tries, 1)
	try := code.Tries[0]
	assert.Equal(t, uint32(1), try.Start)
	assert.Equal(t, uint32(4), try.End)
	require.Len(t, try.Catches, 1)
	assert.Equal(t, "java/lang/ArithmeticException", try.Catches[0].Type)
	assert.Equal(t, uint32(4), try.Catches[0].Target)
}

func TestParseCatchAll(t *testing.T) {
	df, err := dex.Parse(buildTries(""))
	require.NoError(t, err)

	cls := &df.Classes[0]
	cls.ParseData()
	catches := cls.Data.Methods[0].Code.Tries[0].Catches
	require.Len(t, catches, 1)
	assert.Equal(t, "java/lang/Throwable", catches[0].Type)
	assert.Equal(t, uint32(4), catches[0].Target)
}

func TestParseMalformed(t *testing.T) {
	_, err := dex.Parse("dex\n")
	var malformed *errors.MalformedInput
	require.ErrorAs(t, err, &malformed)
	assert.ErrorContains(t, err, "shorter than header")

	junk := make([]byte, 112)
	copy(junk, "nope")
	_, err = dex.Parse(string(junk))
	assert.ErrorContains(t, err, "bad magic")

	copy(junk, "dex\n035\x00")
	_, err = dex.Parse(string(junk))
	assert.ErrorContains(t, err, "unexpected header size")
}

func TestChecksumMismatch(t *testing.T) {
	raw := []byte(buildSimple())
	raw[16] ^= 0xFF // signature bytes aren't otherwise read
	df, err := dex.Parse(string(raw))
	require.NoError(t, err)
	assert.False(t, df.ChecksumOK)
}

func TestSpacedParamTypes(t *testing.T) {
	b := dextest.NewBuilder()
	m := b.Method("La/A;", "f", b.Proto("V", "J", "I"))
	b.Class("La/A;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: m, Access: dextest.AccPublic}})
	df, err := dex.Parse(b.Build())
	require.NoError(t, err)

	cls := &df.Classes[0]
	cls.ParseData()
	mid := cls.Data.Methods[0].MethodId
	assert.Equal(t, "(JI)V", mid.Desc)

	spaced := mid.GetSpacedParamTypes(false)
	require.Len(t, spaced, 4) // this, J, gap, I
	assert.Equal(t, "La/A;", *spaced[0])
	assert.Equal(t, "J", *spaced[1])
	assert.Nil(t, spaced[2])
	assert.Equal(t, "I", *spaced[3])

	spaced = mid.GetSpacedParamTypes(true)
	require.Len(t, spaced, 3)
	assert.Equal(t, "J", *spaced[0])
}