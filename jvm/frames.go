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
package jvm

import (
	"sort"

	"github.com/undex-project/undex/byteio"
	"github.com/undex-project/undex/jvm/cpool"
	"github.com/undex-project/undex/jvm/errors"
	"github.com/undex-project/undex/jvm/ops"
	"github.com/undex-project/undex/util"
)

// Verification types for the stack map table (class file version 50).
// The generated code never needs a precise class hierarchy, so merging
// incompatible references falls back to java/lang/Object. Version 50 class
// files fall back to the type inferencing verifier when a frame is too
// coarse, so this is always safe.
type vtag uint8

const (
	vtTop vtag = iota
	vtInt
	vtFloat
	vtLong
	vtDouble
	vtNull
	vtUninitThis
	vtObject
	vtUninit
)

type vtype struct {
	tag vtag
	cls string // vtObject only, internal name or array descriptor
	off uint16 // vtUninit only, offset of the new instruction
}

func objVt(cls string) vtype { return vtype{tag: vtObject, cls: cls} }

var (
	intVt    = vtype{tag: vtInt}
	floatVt  = vtype{tag: vtFloat}
	longVt   = vtype{tag: vtLong}
	doubleVt = vtype{tag: vtDouble}
	nullVt   = vtype{tag: vtNull}
	topVt    = vtype{tag: vtTop}
)

func (t vtype) wide() bool { return t.tag == vtLong || t.tag == vtDouble }
func (t vtype) isRef() bool {
	return t.tag == vtNull || t.tag == vtObject || t.tag == vtUninit || t.tag == vtUninitThis
}

func mergeVts(a, b vtype) vtype {
	if a == b {
		return a
	}
	if a.isRef() && b.isRef() {
		if a.tag == vtNull {
			return b
		}
		if b.tag == vtNull {
			return a
		}
		if a.tag == vtObject && b.tag == vtObject {
			return objVt("java/lang/Object")
		}
	}
	return topVt
}

// typeFromDesc returns the verification type of a field descriptor.
func typeFromDesc(desc string) vtype {
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return intVt
	case 'F':
		return floatVt
	case 'J':
		return longVt
	case 'D':
		return doubleVt
	case 'L':
		return objVt(desc[1 : len(desc)-1])
	case '[':
		return objVt(desc)
	}
	panic(util.Unreachable)
}

// splitParams splits a method descriptor into its parameter field
// descriptors and return descriptor.
func splitParams(desc string) (params []string, ret string) {
	pos := 1
	for desc[pos] != ')' {
		start := pos
		for desc[pos] == '[' {
			pos++
		}
		if desc[pos] == 'L' {
			for desc[pos] != ';' {
				pos++
			}
		}
		pos++
		params = append(params, desc[start:pos])
	}
	return params, desc[pos+1:]
}

type frameState struct {
	locals []vtype
	stack  []vtype
}

func (self *frameState) clone() *frameState {
	return &frameState{
		locals: append([]vtype(nil), self.locals...),
		stack:  append([]vtype(nil), self.stack...),
	}
}

func (self *frameState) slots() (n int) {
	for _, t := range self.stack {
		if t.wide() {
			n += 2
		} else {
			n++
		}
	}
	return
}

func (self *frameState) push(t vtype) { self.stack = append(self.stack, t) }
func (self *frameState) pop() vtype {
	t := self.stack[len(self.stack)-1]
	self.stack = self.stack[:len(self.stack)-1]
	return t
}
func (self *frameState) popn(n int) {
	self.stack = self.stack[:len(self.stack)-n]
}

func (self *frameState) setLocal(i int, t vtype) {
	// clobbering half of a wide pair invalidates the whole pair
	if i > 0 && self.locals[i-1].wide() {
		self.locals[i-1] = topVt
	}
	if self.locals[i].wide() && i+1 < len(self.locals) {
		self.locals[i+1] = topVt
	}
	self.locals[i] = t
	if t.wide() {
		self.locals[i+1] = topVt
	}
}

// mergeFrom merges other into self, reporting whether self changed.
func (self *frameState) mergeFrom(other *frameState) bool {
	util.Assert(len(self.stack) == len(other.stack))
	changed := false
	for i := range self.locals {
		new := mergeVts(self.locals[i], other.locals[i])
		if new != self.locals[i] {
			self.locals[i] = new
			changed = true
		}
	}
	for i := range self.stack {
		new := mergeVts(self.stack[i], other.stack[i])
		if new != self.stack[i] {
			self.stack[i] = new
			changed = true
		}
	}
	return changed
}

// frameBuilder simulates the final bytecode of a method to calculate the
// exact operand stack bound and the stack map frames for every jump target
// and exception handler.
type frameBuilder struct {
	code    string
	excepts []exceptEntry
	pool    cpool.Pool

	// frame points are offsets requiring a stack map entry
	points map[int]bool
	states map[int]*frameState

	maxstack int
}

func (self *frameBuilder) u16(pos int) uint16 {
	return uint16(self.code[pos])<<8 | uint16(self.code[pos+1])
}
func (self *frameBuilder) s16(pos int) int32 { return int32(int16(self.u16(pos))) }
func (self *frameBuilder) s32(pos int) int32 {
	return int32(uint32(self.code[pos])<<24 | uint32(self.code[pos+1])<<16 |
		uint32(self.code[pos+2])<<8 | uint32(self.code[pos+3]))
}

func (self *frameBuilder) utf(i uint16) string     { return self.pool.Vals()[i].Data.S }
func (self *frameBuilder) clsName(i uint16) string { return self.utf(self.pool.Vals()[i].Data.P1) }
func (self *frameBuilder) memberDesc(i uint16) (name, desc string) {
	nat := self.pool.Vals()[i].Data.P2
	d := self.pool.Vals()[nat].Data
	return self.utf(d.P1), self.utf(d.P2)
}

// instrLen returns the encoded length of the instruction at pos.
func (self *frameBuilder) instrLen(pos int) int {
	op := self.code[pos]
	switch op {
	case ops.TABLESWITCH:
		pad := int((^uint32(pos)) % 4)
		low := self.s32(pos + pad + 5)
		high := self.s32(pos + pad + 9)
		return pad + 13 + 4*int(high-low+1)
	case ops.LOOKUPSWITCH:
		pad := int((^uint32(pos)) % 4)
		count := self.s32(pos + pad + 5)
		return pad + 9 + 8*int(count)
	case ops.WIDE:
		return 4
	case ops.GOTO_W:
		return 5
	case ops.INVOKEINTERFACE:
		return 5
	case ops.BIPUSH, ops.LDC, ops.NEWARRAY,
		ops.ILOAD, ops.LLOAD, ops.FLOAD, ops.DLOAD, ops.ALOAD,
		ops.ISTORE, ops.LSTORE, ops.FSTORE, ops.DSTORE, ops.ASTORE:
		return 2
	case ops.SIPUSH, ops.LDC_W, ops.LDC2_W, ops.IINC,
		ops.GETSTATIC, ops.PUTSTATIC, ops.GETFIELD, ops.PUTFIELD,
		ops.INVOKEVIRTUAL, ops.INVOKESPECIAL, ops.INVOKESTATIC,
		ops.NEW, ops.ANEWARRAY, ops.CHECKCAST, ops.INSTANCEOF,
		ops.GOTO, ops.IFNULL, ops.IFNONNULL:
		return 3
	}
	if ops.IFEQ <= op && op <= ops.IF_ACMPNE {
		return 3
	}
	return 1
}

// branchTargets returns the jump targets of the instruction at pos, plus
// whether execution continues at the following instruction.
func (self *frameBuilder) branchTargets(pos int) (targets []int, fallsthrough bool) {
	op := self.code[pos]
	switch {
	case op == ops.GOTO:
		return []int{pos + int(self.s16(pos+1))}, false
	case op == ops.GOTO_W:
		return []int{pos + int(self.s32(pos+1))}, false
	case (ops.IFEQ <= op && op <= ops.IF_ACMPNE) || op == ops.IFNULL || op == ops.IFNONNULL:
		return []int{pos + int(self.s16(pos+1))}, true
	case op == ops.TABLESWITCH:
		pad := int((^uint32(pos)) % 4)
		low := self.s32(pos + pad + 5)
		high := self.s32(pos + pad + 9)
		targets = []int{pos + int(self.s32(pos+pad+1))}
		for i := 0; i < int(high-low+1); i++ {
			targets = append(targets, pos+int(self.s32(pos+pad+13+4*i)))
		}
		return targets, false
	case op == ops.LOOKUPSWITCH:
		pad := int((^uint32(pos)) % 4)
		count := int(self.s32(pos + pad + 5))
		targets = []int{pos + int(self.s32(pos+pad+1))}
		for i := 0; i < count; i++ {
			targets = append(targets, pos+int(self.s32(pos+pad+13+8*i)))
		}
		return targets, false
	case op == ops.ATHROW || (ops.IRETURN <= op && op <= ops.RETURN):
		return nil, false
	}
	return nil, true
}

// step applies the stack and local effects of the instruction at pos.
func (self *frameBuilder) step(st *frameState, pos int) {
	op := self.code[pos]
	switch {
	case op == ops.NOP:
	case op == ops.ACONST_NULL:
		st.push(nullVt)
	case ops.ICONST_M1 <= op && op <= ops.ICONST_5:
		st.push(intVt)
	case op == ops.LCONST_0 || op == ops.LCONST_1:
		st.push(longVt)
	case ops.FCONST_0 <= op && op <= ops.FCONST_2:
		st.push(floatVt)
	case op == ops.DCONST_0 || op == ops.DCONST_1:
		st.push(doubleVt)
	case op == ops.BIPUSH || op == ops.SIPUSH:
		st.push(intVt)
	case op == ops.LDC || op == ops.LDC_W:
		ind := uint16(self.code[pos+1])
		if op == ops.LDC_W {
			ind = self.u16(pos + 1)
		}
		switch self.pool.Vals()[ind].Tag {
		case cpool.CONSTANT_Integer:
			st.push(intVt)
		case cpool.CONSTANT_Float:
			st.push(floatVt)
		case cpool.CONSTANT_String:
			st.push(objVt("java/lang/String"))
		case cpool.CONSTANT_Class:
			st.push(objVt("java/lang/Class"))
		default:
			panic(util.Unreachable)
		}
	case op == ops.LDC2_W:
		if self.pool.Vals()[self.u16(pos+1)].Tag == cpool.CONSTANT_Long {
			st.push(longVt)
		} else {
			st.push(doubleVt)
		}
	case ops.ILOAD <= op && op <= ops.ALOAD:
		st.push(st.locals[self.code[pos+1]])
	case ops.ILOAD_0 <= op && op <= ops.ALOAD_0+3:
		st.push(st.locals[(op-ops.ILOAD_0)%4])
	case op == ops.AALOAD:
		st.pop()
		arr := st.pop()
		if arr.tag == vtObject && arr.cls[0] == '[' {
			st.push(typeFromDesc(arr.cls[1:]))
		} else if arr.tag == vtObject {
			// array type was merged away, element type is unknown
			st.push(objVt("java/lang/Object"))
		} else {
			st.push(nullVt)
		}
	case ops.IALOAD <= op && op <= ops.SALOAD:
		st.popn(2)
		switch op {
		case ops.LALOAD:
			st.push(longVt)
		case ops.FALOAD:
			st.push(floatVt)
		case ops.DALOAD:
			st.push(doubleVt)
		default:
			st.push(intVt)
		}
	case ops.ISTORE <= op && op <= ops.ASTORE:
		st.setLocal(int(self.code[pos+1]), st.pop())
	case ops.ISTORE_0 <= op && op <= ops.ASTORE_0+3:
		st.setLocal(int((op-ops.ISTORE_0)%4), st.pop())
	case op == ops.WIDE:
		wop := self.code[pos+1]
		ind := int(self.u16(pos + 2))
		if ops.ILOAD <= wop && wop <= ops.ALOAD {
			st.push(st.locals[ind])
		} else {
			st.setLocal(ind, st.pop())
		}
	case ops.IASTORE <= op && op <= ops.SASTORE:
		st.popn(3)
	case op == ops.POP:
		st.pop()
	case op == ops.POP2:
		if !st.pop().wide() {
			st.pop()
		}
	case op == ops.DUP:
		st.push(st.stack[len(st.stack)-1])
	case op == ops.DUP2:
		if st.stack[len(st.stack)-1].wide() {
			st.push(st.stack[len(st.stack)-1])
		} else {
			st.push(st.stack[len(st.stack)-2])
			st.push(st.stack[len(st.stack)-2])
		}
	case op == ops.SWAP:
		n := len(st.stack)
		st.stack[n-1], st.stack[n-2] = st.stack[n-2], st.stack[n-1]
	case ops.IADD <= op && op <= ops.DREM:
		t := st.pop()
		st.pop()
		st.push(t)
	case ops.INEG <= op && op <= ops.DNEG:
	case ops.ISHL <= op && op <= ops.LUSHR:
		st.pop() // shift amount is always int
	case ops.IAND <= op && op <= ops.LXOR:
		t := st.pop()
		st.pop()
		st.push(t)
	case op == ops.IINC:
	case ops.I2L <= op && op <= ops.I2S:
		st.pop()
		switch op {
		case ops.I2L, ops.F2L, ops.D2L:
			st.push(longVt)
		case ops.I2F, ops.L2F, ops.D2F:
			st.push(floatVt)
		case ops.I2D, ops.L2D, ops.F2D:
			st.push(doubleVt)
		default:
			st.push(intVt)
		}
	case op == ops.LCMP || (ops.FCMPL <= op && op <= ops.DCMPG):
		st.popn(2)
		st.push(intVt)
	case ops.IFEQ <= op && op <= ops.IFLE:
		st.pop()
	case ops.IF_ICMPEQ <= op && op <= ops.IF_ACMPNE:
		st.popn(2)
	case op == ops.GOTO || op == ops.GOTO_W:
	case op == ops.TABLESWITCH || op == ops.LOOKUPSWITCH:
		st.pop()
	case ops.IRETURN <= op && op <= ops.ARETURN:
		st.pop()
	case op == ops.RETURN:
	case op == ops.GETSTATIC:
		_, desc := self.memberDesc(self.u16(pos + 1))
		st.push(typeFromDesc(desc))
	case op == ops.PUTSTATIC:
		st.pop()
	case op == ops.GETFIELD:
		_, desc := self.memberDesc(self.u16(pos + 1))
		st.pop()
		st.push(typeFromDesc(desc))
	case op == ops.PUTFIELD:
		st.popn(2)
	case op == ops.INVOKEVIRTUAL || op == ops.INVOKESPECIAL || op == ops.INVOKESTATIC || op == ops.INVOKEINTERFACE:
		ind := self.u16(pos + 1)
		name, desc := self.memberDesc(ind)
		params, ret := splitParams(desc)
		st.popn(len(params))
		if op != ops.INVOKESTATIC {
			receiver := st.pop()
			if op == ops.INVOKESPECIAL && name == "<init>" {
				// the constructed object becomes initialized everywhere
				inited := objVt(self.clsName(self.pool.Vals()[ind].Data.P1))
				for i, t := range st.locals {
					if t == receiver {
						st.locals[i] = inited
					}
				}
				for i, t := range st.stack {
					if t == receiver {
						st.stack[i] = inited
					}
				}
			}
		}
		if ret != "V" {
			st.push(typeFromDesc(ret))
		}
	case op == ops.NEW:
		st.push(vtype{tag: vtUninit, off: uint16(pos)})
	case op == ops.NEWARRAY:
		st.pop()
		atypes := map[byte]string{4: "[Z", 5: "[C", 6: "[F", 7: "[D", 8: "[B", 9: "[S", 10: "[I", 11: "[J"}
		st.push(objVt(atypes[self.code[pos+1]]))
	case op == ops.ANEWARRAY:
		st.pop()
		cls := self.clsName(self.u16(pos + 1))
		if cls[0] == '[' {
			st.push(objVt("[" + cls))
		} else {
			st.push(objVt("[L" + cls + ";"))
		}
	case op == ops.ARRAYLENGTH:
		st.pop()
		st.push(intVt)
	case op == ops.ATHROW:
		st.pop()
	case op == ops.CHECKCAST:
		st.pop()
		cls := self.clsName(self.u16(pos + 1))
		st.push(objVt(cls))
	case op == ops.INSTANCEOF:
		st.pop()
		st.push(intVt)
	case op == ops.MONITORENTER || op == ops.MONITOREXIT:
		st.pop()
	case op == ops.IFNULL || op == ops.IFNONNULL:
		st.pop()
	default:
		panic(util.Unreachable)
	}

	if n := st.slots(); n > self.maxstack {
		self.maxstack = n
	}
}

func (self *frameBuilder) handlerFor(e exceptEntry) *frameState {
	cls := "java/lang/Throwable"
	if e.Ctype != 0 {
		cls = self.clsName(e.Ctype)
	}
	return &frameState{stack: []vtype{objVt(cls)}}
}

func (self *frameBuilder) mergeInto(off int, st *frameState, pending *[]int) {
	if n := st.slots(); n > self.maxstack {
		self.maxstack = n
	}
	if cur, ok := self.states[off]; ok {
		// a handler entered through normal control flow as well as an
		// exception edge would arrive with different stack depths
		if len(cur.stack) != len(st.stack) {
			panic(&errors.UnsupportedExceptionLayout{Target: uint32(off)})
		}
		if cur.mergeFrom(st) {
			*pending = append(*pending, off)
		}
	} else {
		self.states[off] = st.clone()
		*pending = append(*pending, off)
	}
}

func (self *frameBuilder) run(initial *frameState) {
	// collect frame points from branches and the exception table
	self.points = map[int]bool{}
	for pos := 0; pos < len(self.code); pos += self.instrLen(pos) {
		targets, _ := self.branchTargets(pos)
		for _, t := range targets {
			self.points[t] = true
		}
	}
	for _, e := range self.excepts {
		self.points[int(e.Handler)] = true
	}

	self.states = map[int]*frameState{0: initial}
	pending := []int{0}

	for len(pending) > 0 {
		off := pending[0]
		pending = pending[1:]

		st := self.states[off].clone()
		pos := off
		for {
			// instructions inside a try range contribute their locals to the handler
			for _, e := range self.excepts {
				if int(e.Start) <= pos && pos < int(e.End) {
					h := self.handlerFor(e)
					h.locals = append([]vtype(nil), st.locals...)
					self.mergeInto(int(e.Handler), h, &pending)
				}
			}

			targets, fallsthrough := self.branchTargets(pos)
			self.step(st, pos)
			for _, t := range targets {
				self.mergeInto(t, st, &pending)
			}
			if !fallsthrough {
				break
			}

			pos += self.instrLen(pos)
			if pos >= len(self.code) {
				break
			}
			if self.points[pos] {
				self.mergeInto(pos, st, &pending)
				break
			}
		}
	}
}

func encodeVType(t vtype, pool cpool.Pool) string {
	switch t.tag {
	case vtTop:
		return byteio.B(0)
	case vtInt:
		return byteio.B(1)
	case vtFloat:
		return byteio.B(2)
	case vtDouble:
		return byteio.B(3)
	case vtLong:
		return byteio.B(4)
	case vtNull:
		return byteio.B(5)
	case vtUninitThis:
		return byteio.B(6)
	case vtObject:
		return byteio.BH(7, pool.Class(t.cls))
	case vtUninit:
		return byteio.BH(8, t.off)
	}
	panic(util.Unreachable)
}

// canonLocals flattens a locals array into stack map entries, with wide
// types taking a single entry and trailing tops dropped.
func canonLocals(locals []vtype) (res []vtype) {
	for i := 0; i < len(locals); i++ {
		res = append(res, locals[i])
		if locals[i].wide() {
			i++
		}
	}
	for len(res) > 0 && res[len(res)-1] == topVt {
		res = res[:len(res)-1]
	}
	return
}

func vtsEqual(a, b []vtype) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// calcStackMap runs the frame simulation over the method's final bytecode.
// It returns the encoded StackMapTable entries with their count and the
// exact operand stack bound.
func calcStackMap(irdata *IRWriter, bytecode string, excepts []exceptEntry) (string, uint16, uint16) {
	method := irdata.method
	b := &frameBuilder{code: bytecode, excepts: excepts, pool: irdata.pool}

	initial := &frameState{locals: make([]vtype, irdata.numregs)}
	for i := range initial.locals {
		initial.locals[i] = topVt
	}
	ind := 0
	if method.Access&ACC_STATIC == 0 {
		if method.Name == "<init>" {
			initial.locals[0] = vtype{tag: vtUninitThis}
		} else {
			initial.locals[0] = objVt(method.Cname)
		}
		ind = 1
	}
	for _, desc := range method.ParamTypes {
		t := typeFromDesc(desc)
		initial.setLocal(ind, t)
		ind++
		if t.wide() {
			ind++
		}
	}

	b.run(initial)

	offsets := make([]int, 0, len(b.points))
	for off := range b.points {
		if b.states[off] != nil {
			offsets = append(offsets, off)
		}
	}
	sort.Ints(offsets)

	stream := byteio.NewWriter()
	prev_locals := canonLocals(initial.locals)
	prev_off := -1
	for _, off := range offsets {
		st := b.states[off]
		locals := canonLocals(st.locals)
		delta := uint16(off - prev_off - 1)
		prev_off = off

		switch {
		case len(st.stack) == 0 && vtsEqual(locals, prev_locals):
			if delta < 64 {
				stream.U8(uint8(delta)) // same_frame
			} else {
				stream.U8(251) // same_frame_extended
				stream.U16(delta)
			}
		case len(st.stack) == 1 && vtsEqual(locals, prev_locals):
			if delta < 64 {
				stream.U8(64 + uint8(delta)) // same_locals_1_stack_item
			} else {
				stream.U8(247) // same_locals_1_stack_item_extended
				stream.U16(delta)
			}
			stream.WriteString(encodeVType(st.stack[0], b.pool))
		case len(st.stack) == 0 && len(locals) > len(prev_locals) &&
			len(locals)-len(prev_locals) <= 3 && vtsEqual(locals[:len(prev_locals)], prev_locals):
			k := len(locals) - len(prev_locals)
			stream.U8(uint8(251 + k)) // append_frame
			stream.U16(delta)
			for _, t := range locals[len(prev_locals):] {
				stream.WriteString(encodeVType(t, b.pool))
			}
		case len(st.stack) == 0 && len(locals) < len(prev_locals) &&
			len(prev_locals)-len(locals) <= 3 && vtsEqual(prev_locals[:len(locals)], locals):
			k := len(prev_locals) - len(locals)
			stream.U8(uint8(251 - k)) // chop_frame
			stream.U16(delta)
		default:
			stream.U8(255) // full_frame
			stream.U16(delta)
			stream.U16(uint16(len(locals)))
			for _, t := range locals {
				stream.WriteString(encodeVType(t, b.pool))
			}
			stream.U16(uint16(len(st.stack)))
			for _, t := range st.stack {
				stream.WriteString(encodeVType(t, b.pool))
			}
		}
		prev_locals = locals
	}

	return stream.String(), uint16(len(offsets)), uint16(b.maxstack)
}
