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

// Package dex decodes the structural layout of a Dalvik executable image:
// the header, the string/type/proto/field/method pools and the class
// definitions, each a table of integer indices into the pools. Class
// internals (fields, methods, code) are decoded lazily per class so that one
// corrupt class fails in isolation during translation.
package dex

import (
	"hash/adler32"
	"strings"

	"github.com/undex-project/undex/byteio"
	"github.com/undex-project/undex/jvm/errors"
)

const NO_INDEX = 0xFFFFFFFF

const endianConstant = 0x12345678

func typeList(dex *DexFile, off uint32, parseClsDesc bool) (result []string) {
	if off != 0 {
		f := dex.Type
		if parseClsDesc {
			f = dex.ClsType
		}

		st := dex.stream(off)
		size := st.U32()
		for i := uint32(0); i < size; i++ {
			result = append(result, f(uint32(st.U16())))
		}
	}
	return
}

func encodedValue(dex *DexFile, stream *byteio.Reader) interface{} {
	tag := uint32(stream.U8())
	vtype, varg := tag&31, tag>>5

	switch vtype {
	case 0x1c: // ARRAY
		res := make([]interface{}, stream.Uleb128())
		for i := range res {
			res[i] = encodedValue(dex, stream)
		}
		return res
	case 0x1d: // ANNOTATION
		// annotations aren't translated but must be skipped over to find
		// where the next value starts
		stream.Uleb128()
		size := stream.Uleb128()
		for i := uint32(0); i < size; i++ {
			stream.Uleb128()
			encodedValue(dex, stream)
		}
		return nil
	case 0x1e: // NULL
		return nil
	case 0x1f: // BOOLEAN
		return uint32(varg)
	}

	// the rest are an int encoded into varg + 1 bytes in some way
	size := varg + 1
	val := uint64(0)
	for i := uint32(0); i < size; i++ {
		val += uint64(stream.U8()) << (i * 8)
	}

	switch vtype {
	case 0x00: // BYTE
		return uint32(int8(val))
	case 0x02: // SHORT
		return uint32(int16(val))
	case 0x03: // CHAR
		return uint32(uint16(val))
	case 0x04: // INT
		return uint32(int32(val))
	case 0x06: // LONG
		return val

	// floats are 0 extended to the right
	case 0x10: // FLOAT
		return uint32(val << (32 - size*8))
	case 0x11: // DOUBLE
		return val << (64 - size*8)

	case 0x17: // STRING
		return dex.String(uint32(val))
	case 0x18: // TYPE
		return dex.ClsType(uint32(val))
	}
	return nil
}

type DexClass struct {
	dex                 *DexFile
	Name                string
	Access              uint32
	Super               *string
	Interfaces          []string
	sourcefile          uint32
	annotations         uint32
	data_off            uint32
	constant_values_off uint32

	Data *ClassData
}

// ParseData decodes the class body (fields, methods, code items). It is
// deferred until the class is actually translated; structural errors here
// must only fail this class.
func (self *DexClass) ParseData() {
	if self.Data == nil {
		self.Data = newClassData(self.dex, self.data_off)
		if self.constant_values_off > 0 {
			st := self.dex.stream(self.constant_values_off)
			size := st.Uleb128()
			if size > uint32(len(self.Data.Fields)) {
				panic(&errors.MalformedInput{Off: self.constant_values_off, Msg: "static value count exceeds field count"})
			}
			for i := range self.Data.Fields[:size] {
				self.Data.Fields[i].ConstantValue = encodedValue(self.dex, st)
			}
		}
	}
}

func newDexClass(dex *DexFile, base_off, i uint32) DexClass {
	st := dex.stream(base_off + i*32)
	return DexClass{
		dex:                 dex,
		Name:                dex.ClsType(st.U32()),
		Access:              st.U32(),
		Super:               dex.optClsType(st.U32()),
		Interfaces:          typeList(dex, st.U32(), true),
		sourcefile:          st.U32(),
		annotations:         st.U32(),
		data_off:            st.U32(),
		constant_values_off: st.U32(),
	}
}

type sizeOff struct {
	size, off uint32
}

func newSizeOff(stream *byteio.Reader) sizeOff {
	return sizeOff{stream.U32(), stream.U32()}
}

func (self sizeOff) check(i uint32, what string) {
	if i >= self.size {
		panic(&errors.MalformedInput{Off: self.off, Msg: what + " index out of range"})
	}
}

// DexFile is the parsed model of a single image. The pools are immutable
// once parsed and may be read concurrently by per-class translations.
type DexFile struct {
	raw                                                    string
	string_ids, type_ids, proto_ids, field_ids, method_ids sizeOff
	Classes                                                []DexClass

	// ChecksumOK reports whether the advisory adler32 header checksum
	// matched. A mismatch is worth a warning but never blocks parsing.
	ChecksumOK bool
}

func (self *DexFile) stream(i uint32) *byteio.Reader {
	return &byteio.Reader{Data: self.raw, Pos: i}
}

func (self *DexFile) u32(i uint32) uint32 {
	return self.stream(i).U32()
}

// String returns the raw modified-UTF-8 bytes of string pool entry i. The
// bytes pass through to class file Utf8 constants unchanged; only
// user-facing names go through the mutf8 decoder.
func (self *DexFile) String(i uint32) string {
	self.string_ids.check(i, "string")
	data_off := self.u32(self.string_ids.off + i*4)
	stream := self.stream(data_off)
	_ = stream.Uleb128() // ignore decoded length
	return stream.CStr()
}

func (self *DexFile) Type(i uint32) string {
	self.type_ids.check(i, "type")
	si := self.u32(self.type_ids.off + i*4)
	return self.String(si)
}

// ClsType strips the L...; wrapping from reference descriptors, leaving
// array descriptors untouched, matching class file internal names.
func (self *DexFile) ClsType(i uint32) string {
	data := self.Type(i)
	if len(data) == 0 {
		panic(&errors.MalformedInput{Off: self.type_ids.off, Msg: "empty type descriptor"})
	}
	if data[0] == '[' {
		return data
	}
	if len(data) < 3 || data[0] != 'L' || !strings.HasSuffix(data, ";") {
		panic(&errors.MalformedInput{Off: self.type_ids.off, Msg: "invalid class descriptor " + data})
	}
	return data[1 : len(data)-1]
}

func (self *DexFile) optClsType(i uint32) *string {
	if i != NO_INDEX {
		s := self.ClsType(i)
		return &s
	}
	return nil
}

func (self *DexFile) GetFieldId(i uint32) Triple {
	return fieldId(self, i)
}

func (self *DexFile) GetMethodId(i uint32) MethodId {
	return methodId(self, i)
}

// Parse decodes the image header and class definition table. Individual
// class bodies are left for DexClass.ParseData. A header-level failure is
// fatal for the whole image and reported as a MalformedInput error.
func Parse(data string) (dexfile *DexFile, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			if e, ok := recovered.(*errors.MalformedInput); ok {
				dexfile, err = nil, e
				return
			}
			panic(recovered)
		}
	}()

	if len(data) < 112 {
		return nil, &errors.MalformedInput{Off: 0, Msg: "image shorter than header"}
	}
	if data[:4] != "dex\n" {
		return nil, &errors.MalformedInput{Off: 0, Msg: "bad magic"}
	}

	dex := DexFile{raw: data}
	dex.ChecksumOK = dex.u32(8) == adler32.Checksum([]byte(data[12:]))

	stream := dex.stream(36)
	if stream.U32() != 0x70 {
		return nil, &errors.MalformedInput{Off: 36, Msg: "unexpected header size"}
	}
	if stream.U32() != endianConstant {
		return nil, &errors.MalformedInput{Off: 40, Msg: "unexpected endianess tag"}
	}

	_ = newSizeOff(stream) // link section
	_ = stream.U32()       // map offset
	dex.string_ids = newSizeOff(stream)
	dex.type_ids = newSizeOff(stream)
	dex.proto_ids = newSizeOff(stream)
	dex.field_ids = newSizeOff(stream)
	dex.method_ids = newSizeOff(stream)
	class_defs := newSizeOff(stream)
	_ = newSizeOff(stream) // data section

	classes := make([]DexClass, class_defs.size)
	for i := uint32(0); i < class_defs.size; i++ {
		classes[i] = newDexClass(&dex, class_defs.off, i)
	}
	dex.Classes = classes

	return &dex, nil
}
