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

// Package dextest assembles small dex images in memory so parser and
// translator tests don't depend on binary fixtures.
package dextest

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"
)

const headerSize = 0x70

// Access flags used by tests.
const (
	AccPublic = 0x0001
	AccStatic = 0x0008
	AccFinal  = 0x0010
)

type proto struct {
	shorty uint32
	ret    uint32
	params []uint16
}

type fieldId struct {
	cls, typ uint16
	name     uint32
}

type methodId struct {
	cls, proto uint16
	name       uint32
}

// Catch is one handler of a try range. An empty Type makes it a catch-all.
type Catch struct {
	Type   string
	Target uint32
}

// Try covers code units [Start, Start+Count).
type Try struct {
	Start   uint32
	Count   uint16
	Catches []Catch
}

// Code is the body of one method, given as raw instruction shorts.
type Code struct {
	Nregs  uint16
	Ins    uint16
	Shorts []uint16
	Tries  []Try
}

// EncMethod attaches access flags and an optional body to a method id.
type EncMethod struct {
	Idx    uint16
	Access uint32
	Code   *Code
}

// EncField attaches access flags and an optional static value to a field id.
type EncField struct {
	Idx    uint16
	Access uint32

	// HasValue emits an entry in the static values array. Value bytes are
	// the raw encoded_value including the tag byte.
	HasValue bool
	Value    []byte
}

type class struct {
	typ        uint16
	access     uint32
	super      uint32 // type index or NO_INDEX
	interfaces []uint16
	fields     []EncField
	methods    []EncMethod
}

// Builder accumulates pool entries and classes, then lays out a complete
// image with Build.
type Builder struct {
	strings []string
	strLook map[string]uint32
	types   []uint32
	typLook map[string]uint16
	protos  []proto
	fields  []fieldId
	methods []methodId
	classes []class
}

func NewBuilder() *Builder {
	return &Builder{strLook: map[string]uint32{}, typLook: map[string]uint16{}}
}

func (b *Builder) Str(s string) uint32 {
	if i, ok := b.strLook[s]; ok {
		return i
	}
	i := uint32(len(b.strings))
	b.strings = append(b.strings, s)
	b.strLook[s] = i
	return i
}

// Type interns a type descriptor like "La/A;" or "I".
func (b *Builder) Type(desc string) uint16 {
	if i, ok := b.typLook[desc]; ok {
		return i
	}
	si := b.Str(desc)
	i := uint16(len(b.types))
	b.types = append(b.types, si)
	b.typLook[desc] = i
	return i
}

// Proto interns a method prototype from descriptor strings.
func (b *Builder) Proto(ret string, params ...string) uint16 {
	shorty := "p" // never inspected by the parser
	p := proto{shorty: b.Str(shorty), ret: uint32(b.Type(ret))}
	for _, param := range params {
		p.params = append(p.params, b.Type(param))
	}
	b.protos = append(b.protos, p)
	return uint16(len(b.protos) - 1)
}

// Field adds a field id and returns its index.
func (b *Builder) Field(cls, name, desc string) uint16 {
	b.fields = append(b.fields, fieldId{b.Type(cls), b.Type(desc), b.Str(name)})
	return uint16(len(b.fields) - 1)
}

// Method adds a method id and returns its index.
func (b *Builder) Method(cls, name string, proto uint16) uint16 {
	b.methods = append(b.methods, methodId{b.Type(cls), proto, b.Str(name)})
	return uint16(len(b.methods) - 1)
}

// Class adds a class definition. super may be "" for no superclass.
func (b *Builder) Class(desc, super string, access uint32, fields []EncField, methods []EncMethod, interfaces ...string) {
	c := class{typ: b.Type(desc), access: access, super: 0xFFFFFFFF, fields: fields, methods: methods}
	if super != "" {
		c.super = uint32(b.Type(super))
	}
	for _, iface := range interfaces {
		c.interfaces = append(c.interfaces, b.Type(iface))
	}
	b.classes = append(b.classes, c)
}

func uleb(buf *bytes.Buffer, x uint32) {
	for {
		v := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			v |= 0x80
		}
		buf.WriteByte(v)
		if x == 0 {
			return
		}
	}
}

func sleb(buf *bytes.Buffer, x int32) {
	for {
		v := byte(x & 0x7f)
		x >>= 7
		done := (x == 0 && v&0x40 == 0) || (x == -1 && v&0x40 != 0)
		if !done {
			v |= 0x80
		}
		buf.WriteByte(v)
		if done {
			return
		}
	}
}

// EncInt returns an encoded_value for an int constant, for EncField.Value.
func EncInt(val int32) []byte {
	out := []byte{}
	for {
		out = append(out, byte(val))
		rest := val >> 8
		if (rest == 0 && val&0x80 == 0) || (rest == -1 && val&0x80 != 0) {
			break
		}
		val = rest
	}
	return append([]byte{byte(0x04 | (len(out)-1)<<5)}, out...)
}

// EncString returns an encoded_value referencing string pool index si.
func EncString(si uint32) []byte {
	return []byte{0x17, byte(si)}
}

// Build lays out and returns the final image bytes.
func (b *Builder) Build() string {
	le := binary.LittleEndian

	tableSize := headerSize +
		4*len(b.strings) + 4*len(b.types) + 12*len(b.protos) +
		8*len(b.fields) + 8*len(b.methods) + 32*len(b.classes)

	data := &bytes.Buffer{}
	dataOff := func() uint32 { return uint32(tableSize + data.Len()) }
	align4 := func() {
		for data.Len()%4 != 0 {
			data.WriteByte(0)
		}
	}

	strOffs := make([]uint32, len(b.strings))
	for i, s := range b.strings {
		strOffs[i] = dataOff()
		uleb(data, uint32(len(s))) // decoded length, parser skips it
		data.WriteString(s)
		data.WriteByte(0)
	}

	protoParamOffs := make([]uint32, len(b.protos))
	for i, p := range b.protos {
		if len(p.params) == 0 {
			continue
		}
		align4()
		protoParamOffs[i] = dataOff()
		var u32 [4]byte
		le.PutUint32(u32[:], uint32(len(p.params)))
		data.Write(u32[:])
		for _, t := range p.params {
			var u16 [2]byte
			le.PutUint16(u16[:], t)
			data.Write(u16[:])
		}
	}

	ifaceOffs := make([]uint32, len(b.classes))
	for i, c := range b.classes {
		if len(c.interfaces) == 0 {
			continue
		}
		align4()
		ifaceOffs[i] = dataOff()
		var u32 [4]byte
		le.PutUint32(u32[:], uint32(len(c.interfaces)))
		data.Write(u32[:])
		for _, t := range c.interfaces {
			var u16 [2]byte
			le.PutUint16(u16[:], t)
			data.Write(u16[:])
		}
	}

	codeOffs := map[*Code]uint32{}
	for _, c := range b.classes {
		for _, m := range c.methods {
			code := m.Code
			if code == nil || codeOffs[code] != 0 {
				continue
			}
			align4()
			codeOffs[code] = dataOff()

			var u16 [2]byte
			var u32 [4]byte
			le.PutUint16(u16[:], code.Nregs)
			data.Write(u16[:])
			le.PutUint16(u16[:], code.Ins)
			data.Write(u16[:])
			le.PutUint16(u16[:], 0) // outs
			data.Write(u16[:])
			le.PutUint16(u16[:], uint16(len(code.Tries)))
			data.Write(u16[:])
			le.PutUint32(u32[:], 0) // debug info
			data.Write(u32[:])
			le.PutUint32(u32[:], uint32(len(code.Shorts)))
			data.Write(u32[:])
			for _, s := range code.Shorts {
				le.PutUint16(u16[:], s)
				data.Write(u16[:])
			}
			if len(code.Tries) > 0 && len(code.Shorts)%2 != 0 {
				le.PutUint16(u16[:], 0)
				data.Write(u16[:])
			}

			// handlers are encoded first to learn their relative offsets,
			// then the try table referencing them
			handlers := &bytes.Buffer{}
			uleb(handlers, uint32(len(code.Tries)))
			handlerOffs := make([]uint16, len(code.Tries))
			for i, try := range code.Tries {
				handlerOffs[i] = uint16(handlers.Len())
				n := int32(0)
				catchAll := (*Catch)(nil)
				for j := range try.Catches {
					if try.Catches[j].Type == "" {
						catchAll = &try.Catches[j]
					} else {
						n++
					}
				}
				if catchAll != nil {
					sleb(handlers, -n)
				} else {
					sleb(handlers, n)
				}
				for _, catch := range try.Catches {
					if catch.Type != "" {
						// pools are frozen during layout, so the catch type
						// must have been interned beforehand
						ti, ok := b.typLook[catch.Type]
						if !ok {
							panic("dextest: catch type " + catch.Type + " not interned")
						}
						uleb(handlers, uint32(ti))
						uleb(handlers, catch.Target)
					}
				}
				if catchAll != nil {
					uleb(handlers, catchAll.Target)
				}
			}

			for i, try := range code.Tries {
				le.PutUint32(u32[:], try.Start)
				data.Write(u32[:])
				le.PutUint16(u16[:], try.Count)
				data.Write(u16[:])
				le.PutUint16(u16[:], handlerOffs[i])
				data.Write(u16[:])
			}
			data.Write(handlers.Bytes())
		}
	}

	classDataOffs := make([]uint32, len(b.classes))
	staticValOffs := make([]uint32, len(b.classes))
	for i, c := range b.classes {
		classDataOffs[i] = dataOff()
		nstatic := uint32(0)
		for _, f := range c.fields {
			if f.Access&AccStatic != 0 {
				nstatic++
			}
		}
		uleb(data, nstatic)
		uleb(data, uint32(len(c.fields))-nstatic)
		uleb(data, uint32(len(c.methods)))
		uleb(data, 0)

		// static fields precede instance fields, both delta encoded
		prev := uint32(0)
		wantStatic := true
		for pass := 0; pass < 2; pass++ {
			for _, f := range c.fields {
				isStatic := f.Access&AccStatic != 0
				if isStatic != wantStatic {
					continue
				}
				uleb(data, uint32(f.Idx)-prev)
				prev = uint32(f.Idx)
				uleb(data, f.Access)
			}
			prev = 0
			wantStatic = false
		}

		prev = 0
		for _, m := range c.methods {
			uleb(data, uint32(m.Idx)-prev)
			prev = uint32(m.Idx)
			uleb(data, m.Access)
			if m.Code != nil {
				uleb(data, codeOffs[m.Code])
			} else {
				uleb(data, 0)
			}
		}

		vals := [][]byte{}
		for _, f := range c.fields {
			if f.Access&AccStatic != 0 && f.HasValue {
				vals = append(vals, f.Value)
			}
		}
		if len(vals) > 0 {
			staticValOffs[i] = dataOff()
			uleb(data, uint32(len(vals)))
			for _, v := range vals {
				data.Write(v)
			}
		}
	}

	out := &bytes.Buffer{}
	w16 := func(x uint16) { var v [2]byte; le.PutUint16(v[:], x); out.Write(v[:]) }
	w32 := func(x uint32) { var v [4]byte; le.PutUint32(v[:], x); out.Write(v[:]) }

	out.WriteString("dex\n035\x00")
	w32(0)                 // checksum, patched below
	out.Write(make([]byte, 20)) // signature
	w32(uint32(tableSize + data.Len()))
	w32(headerSize)
	w32(0x12345678)
	w32(0) // link size
	w32(0) // link off
	w32(0) // map off
	w32(uint32(len(b.strings)))
	w32(headerSize)
	w32(uint32(len(b.types)))
	w32(uint32(headerSize + 4*len(b.strings)))
	w32(uint32(len(b.protos)))
	w32(uint32(headerSize + 4*len(b.strings) + 4*len(b.types)))
	w32(uint32(len(b.fields)))
	w32(uint32(headerSize + 4*len(b.strings) + 4*len(b.types) + 12*len(b.protos)))
	w32(uint32(len(b.methods)))
	w32(uint32(headerSize + 4*len(b.strings) + 4*len(b.types) + 12*len(b.protos) + 8*len(b.fields)))
	w32(uint32(len(b.classes)))
	w32(uint32(headerSize + 4*len(b.strings) + 4*len(b.types) + 12*len(b.protos) + 8*len(b.fields) + 8*len(b.methods)))
	w32(uint32(tableSize + data.Len())) // data size (loose, unchecked)
	w32(uint32(tableSize))              // data off

	for _, off := range strOffs {
		w32(off)
	}
	for _, si := range b.types {
		w32(si)
	}
	for i, p := range b.protos {
		w32(p.shorty)
		w32(p.ret)
		w32(protoParamOffs[i])
	}
	for _, f := range b.fields {
		w16(f.cls)
		w16(f.typ)
		w32(f.name)
	}
	for _, m := range b.methods {
		w16(m.cls)
		w16(m.proto)
		w32(m.name)
	}
	for i, c := range b.classes {
		w32(uint32(c.typ))
		w32(c.access)
		w32(c.super)
		w32(ifaceOffs[i])
		w32(0xFFFFFFFF) // source file
		w32(0)          // annotations
		w32(classDataOffs[i])
		w32(staticValOffs[i])
	}
	out.Write(data.Bytes())

	raw := out.Bytes()
	le.PutUint32(raw[8:], adler32.Checksum(raw[12:]))
	return string(raw)
}
