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
package undex_test

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undex-project/undex"
	"github.com/undex-project/undex/internal/dextest"
	"github.com/undex-project/undex/jvm"
)

// one class with a static run()I returning the given constant
func buildClass(desc string, val uint16) string {
	b := dextest.NewBuilder()
	run := b.Method(desc, "run", b.Proto("I"))
	code := &dextest.Code{
		Nregs: 1,
		Shorts: []uint16{
			0x0012 | val<<12, // const/4 v0
			0x000f,           // return v0
		},
	}
	b.Class(desc, "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: run, Access: dextest.AccPublic | dextest.AccStatic, Code: code}})
	return b.Build()
}

func TestTranslateSimple(t *testing.T) {
	classes, ordkeys, errs := undex.Translate(jvm.PRETTY, buildClass("La/A;", 3))
	require.Empty(t, errs)
	require.Equal(t, []string{"a/A.class"}, ordkeys)

	data := classes["a/A.class"]
	require.True(t, len(data) > 8)
	assert.Equal(t, "\xca\xfe\xba\xbe\x00\x00\x00\x32", data[:8])
}

func TestTranslateSupplementaryClassName(t *testing.T) {
	// U+10400 is stored as a CESU-8 surrogate pair in the dex string pool.
	// The jar entry name must come out as real UTF-8.
	classes, ordkeys, errs := undex.Translate(jvm.PRETTY, buildClass("La/\xed\xa0\x81\xed\xb0\x80;", 3))
	require.Empty(t, errs)
	require.Equal(t, []string{"a/\U00010400.class"}, ordkeys)
	assert.True(t, utf8.ValidString(ordkeys[0]))
	assert.NotEmpty(t, classes[ordkeys[0]])
}

func TestTranslateBranchTypeSplit(t *testing.T) {
	// v0 holds an object on one path and an int on the other. The merged
	// register is unusable at the join, but it is overwritten before any
	// read, so translation must still succeed.
	b := dextest.NewBuilder()
	run := b.Method("La/A;", "run", b.Proto("I", "Ljava/lang/Object;"))
	code := &dextest.Code{
		Nregs: 2,
		Ins:   1,
		Shorts: []uint16{
			0x0138, 0x0004, // if-eqz v1, +4
			0x1007, // move-object v0, v1
			0x0228, // goto +2
			0x1012, // const/4 v0, #1
			0x2012, // const/4 v0, #2
			0x000f, // return v0
		},
	}
	b.Class("La/A;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: run, Access: dextest.AccPublic | dextest.AccStatic, Code: code}})

	for _, opts := range []jvm.Options{jvm.NONE, jvm.PRETTY} {
		classes, _, errs := undex.Translate(opts, b.Build())
		require.Empty(t, errs)
		assert.NotEmpty(t, classes["a/A.class"])
	}
}

func TestTranslateObjectReturnPoolDedup(t *testing.T) {
	// Both return paths put an a/A reference on the stack, and the
	// enclosing class is a/A itself. The pool must contain the class name
	// utf8 exactly once no matter how many frames reference it.
	b := dextest.NewBuilder()
	run := b.Method("La/A;", "run", b.Proto("La/A;", "I", "La/A;"))
	code := &dextest.Code{
		Nregs: 2,
		Ins:   2,
		Shorts: []uint16{
			0x0038, 0x0003, // if-eqz v0, +3
			0x0111, // return-object v1
			0x0112, // const/4 v1, #0
			0x0111, // return-object v1
		},
	}
	b.Class("La/A;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: run, Access: dextest.AccPublic | dextest.AccStatic, Code: code}})

	for _, opts := range []jvm.Options{jvm.NONE, jvm.PRETTY} {
		classes, _, errs := undex.Translate(opts, b.Build())
		require.Empty(t, errs)
		data := classes["a/A.class"]
		require.NotEmpty(t, data)
		assert.Equal(t, 1, strings.Count(data, "\x01\x00\x03a/A"))
	}
}

func TestTranslateOptionLevels(t *testing.T) {
	raw := buildClass("La/A;", 3)
	for _, opts := range []jvm.Options{jvm.NONE, jvm.PRETTY, jvm.ALL} {
		classes, _, errs := undex.Translate(opts, raw)
		require.Empty(t, errs)
		assert.NotEmpty(t, classes["a/A.class"])
	}
}

func TestTranslateDeterministic(t *testing.T) {
	raw := buildClass("La/A;", 3)
	first, ord1, _ := undex.Translate(jvm.PRETTY, raw)
	second, ord2, _ := undex.Translate(jvm.PRETTY, raw)
	assert.Equal(t, ord1, ord2)
	assert.Equal(t, first, second)
}

func TestTranslateDuplicateFirstWins(t *testing.T) {
	one := buildClass("La/A;", 3)
	two := buildClass("La/A;", 4)

	classes, ordkeys, errs := undex.Translate(jvm.PRETTY, one, two)
	require.Empty(t, errs)
	require.Equal(t, []string{"a/A.class"}, ordkeys)

	alone, _, _ := undex.Translate(jvm.PRETTY, one)
	assert.Equal(t, alone["a/A.class"], classes["a/A.class"])
}

func TestTranslateFailureIsolation(t *testing.T) {
	b := dextest.NewBuilder()
	good := b.Method("La/Good;", "run", b.Proto("I"))
	bad := b.Method("La/Bad;", "run", b.Proto("I"))
	b.Class("La/Good;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: good, Access: dextest.AccPublic | dextest.AccStatic, Code: &dextest.Code{
			Nregs:  1,
			Shorts: []uint16{0x3012, 0x000f},
		}}})
	// const/16 needs a second short that isn't there
	b.Class("La/Bad;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: bad, Access: dextest.AccPublic | dextest.AccStatic, Code: &dextest.Code{
			Nregs:  1,
			Shorts: []uint16{0x0013},
		}}})

	classes, ordkeys, errs := undex.Translate(jvm.PRETTY, b.Build())
	assert.Equal(t, []string{"a/Good.class"}, ordkeys)
	assert.NotEmpty(t, classes["a/Good.class"])
	require.Contains(t, errs, "a/Bad.class")
	assert.ErrorContains(t, errs["a/Bad.class"], "truncated instruction stream")
}

func TestTranslateClobberedWidePair(t *testing.T) {
	b := dextest.NewBuilder()
	run := b.Method("La/A;", "run", b.Proto("J"))
	code := &dextest.Code{
		Nregs: 2,
		Shorts: []uint16{
			0x0016, 0x0005, // const-wide/16 v0, #5
			0x0112, // const/4 v1, #0 clobbers the high half
			0x0010, // return-wide v0
		},
	}
	b.Class("La/A;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: run, Access: dextest.AccPublic | dextest.AccStatic, Code: code}})

	_, ordkeys, errs := undex.Translate(jvm.PRETTY, b.Build())
	assert.Empty(t, ordkeys)
	require.Contains(t, errs, "a/A.class")
	assert.ErrorContains(t, errs["a/A.class"], "inconsistent wide register pair")
}

func TestTranslateBadImage(t *testing.T) {
	_, _, errs := undex.Translate(jvm.NONE, "not a dex file at all")
	require.Contains(t, errs, "classes1.dex")
}

func TestTranslateExceptionHandler(t *testing.T) {
	b := dextest.NewBuilder()
	b.Type("Ljava/lang/ArithmeticException;")
	run := b.Method("La/A;", "run", b.Proto("I", "I"))
	code := &dextest.Code{
		Nregs: 2,
		Ins:   1,
		Shorts: []uint16{
			0x0012,         // const/4 v0, #0
			0x01db, 0x0201, // div-int/lit8 v1, v1, #2
			0x010f, // return v1
			0x1012, // const/4 v0, #1
			0x000f, // return v0
		},
		Tries: []dextest.Try{{Start: 1, Count: 3,
			Catches: []dextest.Catch{{Type: "Ljava/lang/ArithmeticException;", Target: 4}}}},
	}
	b.Class("La/A;", "Ljava/lang/Object;", dextest.AccPublic, nil,
		[]dextest.EncMethod{{Idx: run, Access: dextest.AccPublic | dextest.AccStatic, Code: code}})

	for _, opts := range []jvm.Options{jvm.NONE, jvm.PRETTY, jvm.ALL} {
		classes, _, errs := undex.Translate(opts, b.Build())
		require.Empty(t, errs)
		data := classes["a/A.class"]
		require.NotEmpty(t, data)
		// exception class must be referenced from the constant pool
		assert.Contains(t, data, "java/lang/ArithmeticException")
	}
}

func TestWriteJar(t *testing.T) {
	classes, ordkeys, errs := undex.Translate(jvm.PRETTY, buildClass("La/A;", 3), buildClass("Lb/B;", 2))
	require.Empty(t, errs)
	require.Len(t, ordkeys, 2)

	buf := &bytes.Buffer{}
	require.NoError(t, undex.WriteJar(buf, classes, ordkeys))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	for i, f := range zr.File {
		assert.Equal(t, ordkeys[i], f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, classes[f.Name], string(raw))
	}
}

func TestExtractDexes(t *testing.T) {
	raw := buildClass("La/A;", 3)
	dexes, err := undex.ExtractDexes([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{raw}, dexes)

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range []struct{ name, data string }{
		{"META-INF/MANIFEST.MF", "Manifest-Version: 1.0\n"},
		{"classes2.dex", "second"},
		{"classes.dex", "first"},
	} {
		fw, err := zw.Create(entry.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(entry.data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	dexes, err = undex.ExtractDexes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, dexes)

	buf.Reset()
	zw = zip.NewWriter(buf)
	_, err = zw.Create("other.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = undex.ExtractDexes(buf.Bytes())
	assert.ErrorContains(t, err, "no classes.dex")
}