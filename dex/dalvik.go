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

import "sort"

// DalvikType classifies opcodes into the families the translator dispatches
// on; the exact opcode still selects the variant within a family.
type DalvikType int

const (
	INVALID DalvikType = iota

	Nop
	Move
	MoveWide
	MoveResult
	Return
	Const32
	Const64
	ConstString
	ConstClass
	MonitorEnter
	MonitorExit
	CheckCast
	InstanceOf
	ArrayLen
	NewInstance
	NewArray
	FilledNewArray
	FillArrayData
	Throw
	Goto
	Switch
	Cmp
	If
	IfZ
	ArrayGet
	ArrayPut
	InstanceGet
	InstancePut
	StaticGet
	StaticPut
	InvokeVirtual
	InvokeSuper
	InvokeDirect
	InvokeStatic
	InvokeInterface
	UnaryOp
	BinaryOp
	BinaryOpConst
)

type Instruction struct {
	Type      DalvikType
	Pos, Pos2 uint32
	Opcode    uint8
	DalvikArgs

	ImplicitCasts *ImplicitCastData
	PrevResult    string // result type for a following move-result
	Switchdata    map[uint32]uint32
	Fillarrdata   []uint64
}

// ImplicitCastData marks registers narrowed by an instance-of guarded branch,
// where ART narrows the register type instead of requiring a checkcast.
type ImplicitCastData struct {
	DescInd uint32
	Regs    []uint16
}

// THROW_TYPES are the families that can raise at runtime and therefore start
// exception edges; PRUNED_THROW_TYPES excludes the ones whose only failure
// modes the JVM reports identically without handler involvement.
var THROW_TYPES = map[DalvikType]bool{ConstString: true, ConstClass: true, MonitorEnter: true, MonitorExit: true, CheckCast: true, InstanceOf: true, ArrayLen: true, NewArray: true, NewInstance: true, FilledNewArray: true, FillArrayData: true, Throw: true, ArrayGet: true, ArrayPut: true, InstanceGet: true, InstancePut: true, StaticGet: true, StaticPut: true, InvokeVirtual: true, InvokeSuper: true, InvokeDirect: true, InvokeStatic: true, InvokeInterface: true, BinaryOp: true, BinaryOpConst: true}

var PRUNED_THROW_TYPES = map[DalvikType]bool{MonitorEnter: true, MonitorExit: true, CheckCast: true, ArrayLen: true, NewArray: true, NewInstance: true, FilledNewArray: true, FillArrayData: true, Throw: true, ArrayGet: true, ArrayPut: true, InstanceGet: true, InstancePut: true, StaticGet: true, StaticPut: true, InvokeVirtual: true, InvokeSuper: true, InvokeDirect: true, InvokeStatic: true, InvokeInterface: true, BinaryOp: true, BinaryOpConst: true}

// opcode ranges → family, in opcode order
var opcodeRanges = []struct {
	lo, hi uint8
	t      DalvikType
}{
	{0x00, 0x00, Nop},
	{0x01, 0x03, Move},
	{0x04, 0x06, MoveWide},
	{0x07, 0x09, Move},
	{0x0a, 0x0d, MoveResult},
	{0x0e, 0x11, Return},
	{0x12, 0x15, Const32},
	{0x16, 0x19, Const64},
	{0x1a, 0x1b, ConstString},
	{0x1c, 0x1c, ConstClass},
	{0x1d, 0x1d, MonitorEnter},
	{0x1e, 0x1e, MonitorExit},
	{0x1f, 0x1f, CheckCast},
	{0x20, 0x20, InstanceOf},
	{0x21, 0x21, ArrayLen},
	{0x22, 0x22, NewInstance},
	{0x23, 0x23, NewArray},
	{0x24, 0x25, FilledNewArray},
	{0x26, 0x26, FillArrayData},
	{0x27, 0x27, Throw},
	{0x28, 0x2a, Goto},
	{0x2b, 0x2c, Switch},
	{0x2d, 0x31, Cmp},
	{0x32, 0x37, If},
	{0x38, 0x3d, IfZ},
	{0x3e, 0x43, Nop},
	{0x44, 0x4a, ArrayGet},
	{0x4b, 0x51, ArrayPut},
	{0x52, 0x58, InstanceGet},
	{0x59, 0x5f, InstancePut},
	{0x60, 0x66, StaticGet},
	{0x67, 0x6d, StaticPut},
	{0x6e, 0x6e, InvokeVirtual},
	{0x6f, 0x6f, InvokeSuper},
	{0x70, 0x70, InvokeDirect},
	{0x71, 0x71, InvokeStatic},
	{0x72, 0x72, InvokeInterface},
	{0x73, 0x73, Nop},
	{0x74, 0x74, InvokeVirtual},
	{0x75, 0x75, InvokeSuper},
	{0x76, 0x76, InvokeDirect},
	{0x77, 0x77, InvokeStatic},
	{0x78, 0x78, InvokeInterface},
	{0x79, 0x7a, Nop},
	{0x7b, 0x8f, UnaryOp},
	{0x90, 0xcf, BinaryOp},
	{0xd0, 0xe2, BinaryOpConst},
}

var opcodeTypes = func() (t [256]DalvikType) {
	for i := range t {
		t[i] = Nop // unused opcodes decode as nops
	}
	for _, r := range opcodeRanges {
		for op := uint32(r.lo); op <= uint32(r.hi); op++ {
			t[op] = r.t
		}
	}
	return
}()

func parseInstruction(dex *DexFile, insns_start_pos uint32, shorts []uint16, pos uint32) (newpos uint32, instr Instruction) {
	word := shorts[pos]
	opcode := uint8(word)
	newpos, args := decode(shorts, pos, opcode)

	instr.Type = opcodeTypes[opcode]
	instr.Pos = pos
	instr.Pos2 = newpos
	instr.Opcode = opcode
	instr.DalvikArgs = args

	// switch payload pseudo-instructions
	if word == 0x100 || word == 0x200 {
		size := uint32(shorts[pos+1])
		st := dex.stream(insns_start_pos + pos*2 + 4)

		instr.Switchdata = make(map[uint32]uint32, size)
		if word == 0x100 { // packed
			first_key := st.U32()
			for i := uint32(0); i < size; i++ {
				instr.Switchdata[i+first_key] = st.U32()
			}
			newpos = pos + 2 + (1+size)*2
		} else { // sparse
			keys := make([]uint32, size)
			for i := uint32(0); i < size; i++ {
				keys[i] = st.U32()
			}
			for i := uint32(0); i < size; i++ {
				instr.Switchdata[keys[i]] = st.U32()
			}
			newpos = pos + 2 + (size+size)*2
		}
	}

	// fill-array-data payload
	if word == 0x300 {
		width := uint32(shorts[pos+1]) % 16
		size := uint32(shorts[pos+2]) | (uint32(shorts[pos+3]) << 16)
		newpos = pos + ((size*width+1)/2 + 4)

		st := dex.stream(insns_start_pos + pos*2 + 8)
		vals := make([]uint64, size)
		for i := uint32(0); i < size; i++ {
			switch width {
			case 1:
				vals[i] = uint64(st.U8())
			case 2:
				vals[i] = uint64(st.U16())
			case 4:
				vals[i] = uint64(st.U32())
			case 8:
				vals[i] = st.U64()
			}
		}
		instr.Fillarrdata = vals
	}
	return
}

func parseBytecode(dex *DexFile, insns_start_pos uint32, shorts []uint16, catch_addrs map[uint32]bool) (ops []Instruction) {
	var op Instruction
	pos := uint32(0)
	for pos < uint32(len(shorts)) {
		pos, op = parseInstruction(dex, insns_start_pos, shorts, pos)
		ops = append(ops, op)
	}

	// fill in result types for move-result from the preceding instruction
	for i := range ops[:len(ops)-1] {
		instr := &ops[i]
		instr2 := &ops[i+1]
		if instr2.Type != MoveResult {
			continue
		}

		if catch_addrs[instr2.Pos] {
			instr2.PrevResult = "Ljava/lang/Throwable;"
		}

		switch instr.Type {
		case InvokeVirtual, InvokeSuper, InvokeDirect, InvokeStatic, InvokeInterface:
			instr2.PrevResult = dex.GetMethodId(instr.A).ReturnType
		case FilledNewArray:
			instr2.PrevResult = dex.Type(instr.A)
		}
	}

	// detect instance-of guarded branches eligible for ART's implicit cast
	// narrowing: the branched-on register (and a register moved from it)
	// may be assumed to have the tested type on the taken edge
	for i := range ops {
		switch ops[i].Opcode {
		case 0x38, 0x39: // if-eqz, if-nez
			if i > 0 && ops[i-1].Type == InstanceOf {
				prev := ops[i-1]
				desc_ind := prev.C
				set := map[uint16]bool{prev.Rb: true}

				if i > 1 && ops[i-2].Type == Move {
					prev2 := ops[i-2]
					if prev2.Ra == prev.Rb {
						set[prev2.Rb] = true
					}
				}

				// the result register itself holds the test result, not the object
				delete(set, prev.Ra)
				regs := make([]uint16, 0, len(set))
				for k := range set {
					regs = append(regs, k)
				}
				sort.Slice(regs, func(a, b int) bool { return regs[a] < regs[b] })

				if len(regs) > 0 {
					ops[i].ImplicitCasts = &ImplicitCastData{desc_ind, regs}
				}
			}
		}
	}

	return
}
