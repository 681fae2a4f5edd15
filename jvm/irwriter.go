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

	"github.com/undex-project/undex/byteio"
	"github.com/undex-project/undex/dex"
	"github.com/undex-project/undex/jvm/cpool"
	"github.com/undex-project/undex/jvm/ir"
	"github.com/undex-project/undex/jvm/ops"
	"github.com/undex-project/undex/jvm/scalars"
)

type exceptInfo struct {
	start, end ir.Instruction
	target     ir.Label
	ctype      uint16
}

type IRWriter struct {
	pool   cpool.Pool
	method dex.Method
	types  map[uint32]TypeInfo
	opts   Options

	iblocks map[uint32]*irBlock

	Instructions []ir.Instruction
	excepts      []exceptInfo

	initial_args []ir.RegKey

	exception_redirects map[uint32]ir.Instruction
	target_pred_counts  map[ir.Label]uint32

	numregs uint16 // set once registers are allocated
}

func newIRWriter(pool cpool.Pool, method dex.Method, types map[uint32]TypeInfo, opts Options) *IRWriter {
	return &IRWriter{
		pool:                pool,
		method:              method,
		types:               types,
		opts:                opts,
		iblocks:             make(map[uint32]*irBlock),
		exception_redirects: make(map[uint32]ir.Instruction),
		target_pred_counts:  make(map[ir.Label]uint32),
		numregs:             0xDEAD,
	}
}

func (self *IRWriter) calcInitialArgs(nregs uint16, scalar_ptypes []scalars.T) {
	regoff := nregs - uint16(len(scalar_ptypes))
	args := make([]ir.RegKey, len(scalar_ptypes))
	for i, st := range scalar_ptypes {
		if st == scalars.INVALID {
			args[i] = ir.RegKey{}
		} else {
			args[i] = ir.RegKey{Reg: uint16(i) + regoff, T: st}
		}
	}
	self.initial_args = args
}

func (self *IRWriter) addExceptionRedirect(target uint32) ir.Label {
	if val, ok := self.exception_redirects[target]; ok {
		return val.Label
	}
	self.exception_redirects[target] = ir.NewLabel(ir.EHANDLER, target)
	return self.exception_redirects[target].Label
}

func (self *IRWriter) createBlock(pos uint32) *irBlock {
	block := newIRBlock(self, pos)
	self.iblocks[pos] = block
	return block
}

func (self *IRWriter) flatten() {
	size := 3 * len(self.exception_redirects)
	for _, block := range self.iblocks {
		size += len(block.instructions)
	}

	instrs := make([]ir.Instruction, 0, size)
	for _, pos := range sortedKeys(self.iblocks) {
		if _, ok := self.exception_redirects[pos]; ok {
			// check if we can put handler pop in front of block
			if len(instrs) > 0 && !instrs[len(instrs)-1].Fallsthrough() {
				instrs = append(instrs, self.exception_redirects[pos])
				delete(self.exception_redirects, pos)
				instrs = append(instrs, ir.NewOther(byteio.B(ops.POP)))
			} // if not, leave it in dict to be redirected later
		}
		// now add instructions for actual block
		instrs = append(instrs, self.iblocks[pos].instructions...)
	}

	// exception handler pops that couldn't be placed inline
	// in this case, just put them at the end with a goto back to the handler
	for _, target := range sortedKeys(self.exception_redirects) {
		instrs = append(instrs, self.exception_redirects[target])
		instrs = append(instrs, ir.NewOther(byteio.B(ops.POP)))
		instrs = append(instrs, ir.NewGoto(target))
	}

	self.Instructions = instrs
	self.iblocks = nil
	self.exception_redirects = nil
}

func (self *IRWriter) ReplaceInstrs(replace map[int][]ir.Instruction) {
	if len(replace) == 0 {
		return
	}

	old := make([]ir.Instruction, 0, len(self.Instructions))
	self.Instructions, old = old, self.Instructions

	for i := range old {
		if replacement, ok := replace[i]; ok {
			self.Instructions = append(self.Instructions, replacement...)
		} else {
			self.Instructions = append(self.Instructions, old[i])
		}
	}
}

// CalcUpperBound returns an upper bound on the size of the bytecode.
func (self *IRWriter) CalcUpperBound() int {
	size := 0
	for i := range self.Instructions {
		size += self.Instructions[i].UpperBound()
	}
	return size
}

func (self *IRWriter) IsTarget(target ir.Label) bool {
	_, ok := self.target_pred_counts[target]
	return ok
}
