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
package dex

import (
	"strings"

	"github.com/undex-project/undex/byteio"
)

// Triple identifies a field or method as (defining class, name, descriptor).
type Triple struct {
	Cname, Name, Desc string
}

type Field struct {
	Triple
	Access        uint32
	ConstantValue interface{}
}

func fieldId(dex *DexFile, field_idx uint32) Triple {
	dex.field_ids.check(field_idx, "field")
	st := dex.stream(dex.field_ids.off + field_idx*8)
	return Triple{
		Cname: dex.ClsType(uint32(st.U16())),
		Desc:  dex.Type(uint32(st.U16())),
		Name:  dex.String(st.U32())}
}

func newField(dex *DexFile, field_idx uint32, access uint32) Field {
	return Field{fieldId(dex, field_idx), access, nil} // ConstantValue is filled in later
}

type CatchItem struct {
	Type   string
	Target uint32
}

type TryItem struct {
	Start, End, handler_off uint32
	Catches                 []CatchItem
}

func newTry(st *byteio.Reader) TryItem {
	self := TryItem{}
	self.Start = st.U32()
	self.End = self.Start + uint32(st.U16())
	self.handler_off = uint32(st.U16())
	return self
}

func (self *TryItem) finish(dex *DexFile, list_off uint32) {
	st := dex.stream(self.handler_off + list_off)
	size := st.Sleb128()
	abs := size
	if abs < 0 {
		abs = -abs
	}

	self.Catches = make([]CatchItem, abs, abs+1)
	for i := int32(0); i < abs; i++ {
		self.Catches[i] = CatchItem{dex.ClsType(st.Uleb128()), st.Uleb128()}
	}
	if size <= 0 {
		self.Catches = append(self.Catches, CatchItem{"java/lang/Throwable", st.Uleb128()})
	}
}

// LineEntry maps a code unit address to a source line.
type LineEntry struct {
	Addr uint32
	Line int32
}

// LocalEntry records a named local variable from the debug stream.
type LocalEntry struct {
	Reg        uint16
	Name, Desc string
}

// DebugInfo is decoded best-effort; a corrupt debug stream never fails the
// method, it just leaves this nil.
type DebugInfo struct {
	Lines  []LineEntry
	Locals []LocalEntry
}

func parseDebugInfo(dex *DexFile, off uint32) (info *DebugInfo) {
	defer func() {
		if recover() != nil {
			info = nil
		}
	}()

	st := dex.stream(off)
	line := int32(st.Uleb128())
	psize := st.Uleb128()
	for i := uint32(0); i < psize; i++ {
		_ = st.Uleb128() // parameter name index + 1
	}

	res := &DebugInfo{}
	addr := uint32(0)
	for {
		op := st.U8()
		switch {
		case op == 0x00: // end sequence
			return res
		case op == 0x01: // advance pc
			addr += st.Uleb128()
		case op == 0x02: // advance line
			line += st.Sleb128()
		case op == 0x03, op == 0x04: // start local (+extended)
			reg := uint16(st.Uleb128())
			name := st.Uleb128()
			desc := st.Uleb128()
			if op == 0x04 {
				_ = st.Uleb128() // signature
			}
			if name != 0 && desc != 0 {
				res.Locals = append(res.Locals, LocalEntry{reg, dex.String(name - 1), dex.Type(desc - 1)})
			}
		case op == 0x05, op == 0x06: // end/restart local
			_ = st.Uleb128()
		case op == 0x07, op == 0x08: // prologue end / epilogue begin
		case op == 0x09: // set file
			_ = st.Uleb128()
		default:
			adj := uint32(op) - 0x0a
			line += int32(adj%15) - 4
			addr += adj / 15
			res.Lines = append(res.Lines, LineEntry{addr, line})
		}
	}
}

type CodeItem struct {
	Nregs    uint16
	InsCount uint16
	Tries    []TryItem
	Bytecode []Instruction
	Debug    *DebugInfo
}

func newCode(dex *DexFile, offset uint32) *CodeItem {
	st := dex.stream(offset)
	self := CodeItem{Nregs: st.U16()}
	self.InsCount = st.U16()
	_ = st.U16() // outs
	tries_size := st.U16()
	debug_off := st.U32()
	insns_size := st.U32()
	insns_start_pos := st.Pos

	insns := make([]uint16, insns_size)
	for i := uint32(0); i < insns_size; i++ {
		insns[i] = st.U16()
	}

	if tries_size > 0 && (insns_size&1) != 0 {
		_ = st.U16() // padding
	}

	self.Tries = make([]TryItem, tries_size)
	for i := uint16(0); i < tries_size; i++ {
		self.Tries[i] = newTry(st)
	}

	list_off := st.Pos
	for i := uint16(0); i < tries_size; i++ {
		self.Tries[i].finish(dex, list_off)
	}

	catch_addrs := make(map[uint32]bool)
	for _, try := range self.Tries {
		for _, catch := range try.Catches {
			catch_addrs[catch.Target] = true
		}
	}

	self.Bytecode = parseBytecode(dex, insns_start_pos, insns, catch_addrs)
	if debug_off != 0 {
		self.Debug = parseDebugInfo(dex, debug_off)
	}
	return &self
}

type MethodId struct {
	Triple
	ParamTypes []string
	ReturnType string
}

func methodId(dex *DexFile, method_idx uint32) MethodId {
	dex.method_ids.check(method_idx, "method")
	st := dex.stream(dex.method_ids.off + method_idx*8)
	self := MethodId{Triple: Triple{Cname: dex.ClsType(uint32(st.U16()))}}
	proto_idx := uint32(st.U16())
	self.Name = dex.String(st.U32())

	dex.proto_ids.check(proto_idx, "proto")
	st = dex.stream(dex.proto_ids.off + proto_idx*12)
	_ = st.U32() // shorty
	self.ReturnType = dex.Type(st.U32())
	self.ParamTypes = typeList(dex, st.U32(), false)

	parts := append([]string{"("}, self.ParamTypes...)
	parts = append(parts, ")", self.ReturnType)
	self.Desc = strings.Join(parts, "")
	return self
}

// GetSpacedParamTypes returns the parameter descriptors with an implicit
// this-reference prepended for instance methods and a nil placeholder after
// every long/double, mirroring how wide values occupy two registers.
func (self *MethodId) GetSpacedParamTypes(isstatic bool) []*string {
	results := make([]*string, 0, len(self.ParamTypes)+1)
	if !isstatic {
		if self.Cname[0] == '[' {
			results = append(results, &self.Cname)
		} else {
			temp := "L" + self.Cname + ";"
			results = append(results, &temp)
		}
	}

	for _, ptype := range self.ParamTypes {
		temp := ptype
		results = append(results, &temp)
		if ptype == "J" || ptype == "D" {
			results = append(results, nil)
		}
	}
	return results
}

type Method struct {
	Dex *DexFile
	MethodId
	Access, code_off uint32
	Code             *CodeItem
}

func newMethod(dex *DexFile, method_idx, access, code_off uint32) Method {
	m := Method{dex, methodId(dex, method_idx), access, code_off, nil}
	if code_off != 0 {
		m.Code = newCode(dex, code_off)
	}
	return m
}

type ClassData struct {
	Fields  []Field
	Methods []Method
}

func newClassData(dex *DexFile, offset uint32) *ClassData {
	self := ClassData{}
	if offset == 0 {
		return &self
	}

	stream := dex.stream(offset)
	numstatic := stream.Uleb128()
	numinstance := stream.Uleb128()
	numdirect := stream.Uleb128()
	numvirtual := stream.Uleb128()

	field_idx := uint32(0)
	for i := uint32(0); i < numstatic+numinstance; i++ {
		if i == numstatic {
			field_idx = 0
		}
		field_idx += stream.Uleb128()
		self.Fields = append(self.Fields, newField(dex, field_idx, stream.Uleb128()))
	}

	method_idx := uint32(0)
	for i := uint32(0); i < numdirect+numvirtual; i++ {
		if i == numdirect {
			method_idx = 0
		}
		method_idx += stream.Uleb128()
		self.Methods = append(self.Methods, newMethod(dex, method_idx, stream.Uleb128(), stream.Uleb128()))
	}

	return &self
}
