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

// Package byteio provides the cursor used to decode dex images and the
// big-endian writer used to assemble class files.
package byteio

import (
	"bytes"
	"encoding/binary"

	"github.com/undex-project/undex/jvm/errors"
)

// Reader is a bounds-checked cursor over a fixed byte buffer. Reads past the
// end of the buffer, and varints with too many continuation bytes, panic with
// *errors.MalformedInput; the structural decoder recovers this at the unit
// being decoded and reports it as a parse failure for that unit.
type Reader struct {
	Data string
	Pos  uint32
}

func (self *Reader) fail(msg string) {
	panic(&errors.MalformedInput{Off: self.Pos, Msg: msg})
}

func (self *Reader) U8() uint8 {
	if uint64(self.Pos)+1 > uint64(len(self.Data)) {
		self.fail("read past end of buffer")
	}
	self.Pos++
	return self.Data[self.Pos-1]
}

func (self *Reader) U16() uint16 {
	return uint16(self.U8()) | uint16(self.U8())<<8
}

func (self *Reader) U32() uint32 {
	return uint32(self.U16()) | uint32(self.U16())<<16
}

func (self *Reader) U64() uint64 {
	return uint64(self.U32()) | uint64(self.U32())<<32
}

func (self *Reader) leb128() (result, size uint32) {
	b := self.U8()
	for b > 127 {
		result |= uint32(b&0x7f) << size
		size += 7
		if size > 28 {
			self.fail("overlong varint")
		}
		b = self.U8()
	}
	result |= uint32(b&0x7f) << size
	size += 7
	return
}

func (self *Reader) Uleb128() uint32 {
	result, _ := self.leb128()
	return result
}

func (self *Reader) Sleb128() int32 {
	result, size := self.leb128()
	val := int32(result)
	if size < 32 && val >= 1<<(size-1) {
		val -= 1 << size
	}
	return val
}

// CStr reads a NUL-terminated byte run, as used for string data entries.
func (self *Reader) CStr() string {
	start := self.Pos
	b := self.U8()
	for b != 0 {
		b = self.U8()
	}
	return self.Data[start : self.Pos-1]
}

// Writer accumulates big-endian binary output. Write errors cannot occur on
// the underlying buffer, so the typed helpers don't return them.
type Writer struct {
	bytes.Buffer
	Endianess binary.ByteOrder
}

func NewWriter() *Writer {
	return &Writer{Endianess: binary.BigEndian}
}

func (self *Writer) write(data interface{}) {
	if err := binary.Write(self, self.Endianess, data); err != nil {
		panic(err)
	}
}

func (self *Writer) U8(data uint8)   { self.write(&data) }
func (self *Writer) S8(data int8)    { self.U8(uint8(data)) }
func (self *Writer) U16(data uint16) { self.write(&data) }
func (self *Writer) S16(data int16)  { self.U16(uint16(data)) }
func (self *Writer) U32(data uint32) { self.write(&data) }
func (self *Writer) S32(data int32)  { self.U32(uint32(data)) }
func (self *Writer) U64(data uint64) { self.write(&data) }

func (self *Writer) Append(other *Writer) {
	if _, err := self.Write(other.Bytes()); err != nil {
		panic(err)
	}
}

// Fixed-layout packing helpers for bytecode strings.
func Bytes(x ...byte) string { return string(x) }
func B(x byte) string        { return Bytes(x) }
func BB(x, y byte) string    { return Bytes(x, y) }

func BH(x byte, y uint16) string {
	return Bytes(x, byte(y>>8), byte(y))
}
func Bh(x byte, y int16) string { return BH(x, uint16(y)) }

func Bi(x byte, y int32) string {
	return Bytes(x, byte(y>>24), byte(y>>16), byte(y>>8), byte(y))
}
func BhBi(x byte, y int16, z byte, w int32) string { return Bh(x, y) + Bi(z, w) }

func BBH(x, y byte, z uint16) string {
	return Bytes(x, y, byte(z>>8), byte(z))
}
func BHBB(x byte, y uint16, z, z2 byte) string {
	return Bytes(x, byte(y>>8), byte(y), z, z2)
}
func HHHH(x, y, z, z2 uint16) string {
	return Bytes(byte(x>>8), byte(x), byte(y>>8), byte(y), byte(z>>8), byte(z), byte(z2>>8), byte(z2))
}
