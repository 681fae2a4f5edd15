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

// Package cpool implements JVM class file constant pools. Two strategies
// are provided: a simple pool that allocates entries sequentially, and a
// split pool that grows from both ends so that entries which must fit in a
// single byte operand (ldc) stay below index 256.
package cpool

import (
	"github.com/undex-project/undex/byteio"
	"github.com/undex-project/undex/dex"
	"github.com/undex-project/undex/jvm/errors"
	"github.com/undex-project/undex/util"
)

const CONSTANT_Utf8 = 1
const CONSTANT_Integer = 3
const CONSTANT_Float = 4
const CONSTANT_Long = 5
const CONSTANT_Double = 6
const CONSTANT_Class = 7
const CONSTANT_String = 8
const CONSTANT_Fieldref = 9
const CONSTANT_Methodref = 10
const CONSTANT_InterfaceMethodref = 11
const CONSTANT_NameAndType = 12

const MAX_CONST = CONSTANT_NameAndType

func width(tag byte) int {
	if tag == CONSTANT_Double || tag == CONSTANT_Long {
		return 2
	}
	return 1
}

// Data holds the payload of a pool entry. Which fields are meaningful
// depends on the tag: S for Utf8, P1/P2 for reference entries, X for
// numeric constants.
type Data struct {
	S      string
	P1, P2 uint16
	X      uint64
}

type Pair struct {
	Tag byte
	Data
}

type subclassImpl interface {
	Vals() []Pair
	getInd(low bool, width int) uint16
	space() int
	lowspace() int
}

type poolBase struct {
	sub    subclassImpl
	lookup [MAX_CONST + 1]map[Data]uint16
}

func newPoolBase() poolBase {
	self := poolBase{}
	for i := 0; i < len(self.lookup); i++ {
		self.lookup[i] = make(map[Data]uint16)
	}
	return self
}

func (self *poolBase) get(tag byte, data Data) uint16 {
	d := self.lookup[tag]
	if val, ok := d[data]; ok {
		return val
	}

	// entries likely to be referenced by ldc go in the low range
	low := (tag == CONSTANT_Integer || tag == CONSTANT_Float || tag == CONSTANT_String)
	index := self.sub.getInd(low, width(tag))
	d[data] = index
	self.sub.Vals()[index] = Pair{tag, data}
	return index
}

func (self *poolBase) InsertDirectly(pair Pair, low bool) {
	d := self.lookup[pair.Tag]
	index := self.sub.getInd(low, width(pair.Tag))
	d[pair.Data] = index
	self.sub.Vals()[index] = pair
}

func (self *poolBase) TryGet(pair Pair) (index uint16, ok bool) {
	d := self.lookup[pair.Tag]
	if val, ok := d[pair.Data]; ok {
		return val, true
	}

	width := width(pair.Tag)
	if width > self.sub.space() {
		return 0, false
	}

	index = self.sub.getInd(true, width)
	d[pair.Data] = index
	self.sub.Vals()[index] = pair
	return index, true
}

func (self *poolBase) Space() int    { return self.sub.space() }
func (self *poolBase) LowSpace() int { return self.sub.lowspace() }

func (self *poolBase) Utf8(s string) uint16 {
	if len(s) > 65535 {
		panic(&errors.EncodingOverflow{What: "string constant too long"})
	}
	return self.get(CONSTANT_Utf8, Data{S: s})
}

func (self *poolBase) Class(s string) uint16 {
	return self.get(CONSTANT_Class, Data{P1: self.Utf8(s)})
}

func (self *poolBase) String(s string) uint16 {
	return self.get(CONSTANT_String, Data{P1: self.Utf8(s)})
}

func (self *poolBase) Nat(name, desc string) uint16 {
	return self.get(CONSTANT_NameAndType, Data{P1: self.Utf8(name), P2: self.Utf8(desc)})
}

func (self *poolBase) triple(tag byte, trip dex.Triple) uint16 {
	return self.get(tag, Data{P1: self.Class(trip.Cname), P2: self.Nat(trip.Name, trip.Desc)})
}

func (self *poolBase) Field(trip dex.Triple) uint16 {
	return self.triple(CONSTANT_Fieldref, trip)
}

func (self *poolBase) Method(trip dex.Triple) uint16 {
	return self.triple(CONSTANT_Methodref, trip)
}

func (self *poolBase) IMethod(trip dex.Triple) uint16 {
	return self.triple(CONSTANT_InterfaceMethodref, trip)
}

func (self *poolBase) Int(x uint32) uint16 {
	return self.get(CONSTANT_Integer, Data{X: uint64(x)})
}

func (self *poolBase) Float(x uint32) uint16 {
	return self.get(CONSTANT_Float, Data{X: uint64(x)})
}

func (self *poolBase) Long(x uint64) uint16 {
	return self.get(CONSTANT_Long, Data{X: x})
}

func (self *poolBase) Double(x uint64) uint16 {
	return self.get(CONSTANT_Double, Data{X: x})
}

func (self *poolBase) writeEntry(stream *byteio.Writer, item Pair) {
	if item.Tag == 0 {
		return
	}

	stream.U8(item.Tag)
	switch item.Tag {
	case CONSTANT_Utf8:
		stream.U16(uint16(len(item.S)))
		stream.WriteString(item.S)
	case CONSTANT_Integer, CONSTANT_Float:
		stream.U32(uint32(item.X))
	case CONSTANT_Long, CONSTANT_Double:
		stream.U64(item.X)
	case CONSTANT_Class, CONSTANT_String:
		stream.U16(item.P1)
	default:
		stream.U16(item.P1)
		stream.U16(item.P2)
	}
}

type simplePool struct {
	poolBase
	_vals []Pair
}

func (self *simplePool) Vals() []Pair { return self._vals }

func (self *simplePool) space() int { return 65535 - len(self._vals) }

func (self *simplePool) lowspace() int { return 256 - len(self._vals) }

func (self *simplePool) getInd(low bool, width int) (index uint16) {
	if self.space() < width {
		panic(&errors.EncodingOverflow{What: "constant pool full"})
	}

	index = uint16(len(self._vals))
	for i := 0; i < width; i++ {
		self._vals = append(self._vals, Pair{})
	}
	return
}

func (self *simplePool) Write(stream *byteio.Writer) {
	util.Assert(len(self._vals) <= 65535)
	stream.U16(uint16(len(self._vals)))
	for _, item := range self._vals {
		self.writeEntry(stream, item)
	}
}

// An empty Utf8 entry fills the unassigned slots of a split pool.
var PLACEHOLDER_ENTRY = byteio.BH(CONSTANT_Utf8, 0)

type splitPool struct {
	poolBase
	bot, top int
	_vals    [65535]Pair
}

func (self *splitPool) Vals() []Pair { return self._vals[:] }

func (self *splitPool) space() int { return self.top - self.bot }

func (self *splitPool) lowspace() int { return 256 - self.bot }

func (self *splitPool) getInd(low bool, width int) (index uint16) {
	if self.space() < width {
		panic(&errors.EncodingOverflow{What: "constant pool full"})
	}

	if low {
		self.bot += width
		return uint16(self.bot - width)
	}
	self.top -= width
	return uint16(self.top)
}

func (self *splitPool) Write(stream *byteio.Writer) {
	stream.U16(uint16(len(self._vals)))

	for _, item := range self._vals[:self.bot] {
		self.writeEntry(stream, item)
	}

	for range self._vals[self.bot:self.top] {
		stream.WriteString(PLACEHOLDER_ENTRY)
	}

	for _, item := range self._vals[self.top:] {
		self.writeEntry(stream, item)
	}
}

type Pool interface {
	Vals() []Pair
	InsertDirectly(pair Pair, low bool)
	TryGet(pair Pair) (index uint16, ok bool)
	Space() int
	LowSpace() int

	Utf8(s string) uint16
	Class(s string) uint16
	String(s string) uint16
	Nat(name, desc string) uint16
	Field(trip dex.Triple) uint16
	Method(trip dex.Triple) uint16
	IMethod(trip dex.Triple) uint16
	Int(x uint32) uint16
	Float(x uint32) uint16
	Long(x uint64) uint16
	Double(x uint64) uint16

	Write(stream *byteio.Writer)
}

func Simple() Pool {
	pool := simplePool{newPoolBase(), make([]Pair, 1)}
	pool.sub = &pool
	return &pool
}

func Split() Pool {
	pool := splitPool{poolBase: newPoolBase(), bot: 1, top: 65535}
	pool.sub = &pool
	return &pool
}
