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

	"github.com/undex-project/undex/jvm/ir"
	"github.com/undex-project/undex/util"
)

// As usual, assume no iincs

// A set of registers that currently are copies of each other.
type copySet struct {
	root ir.RegKey
	set  map[ir.RegKey]bool
	q    []ir.RegKey // keep track of insertion order in case root is overwritten
}

func newCopySet(key ir.RegKey) *copySet {
	return &copySet{key, map[ir.RegKey]bool{key: true}, []ir.RegKey{key}}
}
func (self *copySet) add(key ir.RegKey) {
	util.Assert(len(self.set) > 0)
	self.set[key] = true
	self.q = append(self.q, key)
}
func (self *copySet) remove(key ir.RegKey) {
	delete(self.set, key)
	// Heuristic - use oldest element still in set as new root
	for len(self.q) > 0 && !self.set[self.root] {
		self.root = self.q[0]
		self.q = self.q[1:]
	}
}
func (self *copySet) copy() *copySet {
	new := newCopySet(self.root)
	new.set = make(map[ir.RegKey]bool, len(self.set))
	for k, v := range self.set {
		new.set[k] = v
	}
	new.q = append(make([]ir.RegKey, 0, len(self.q)), self.q...)
	return new
}

// Map registers to copySets.
type copySetsMap struct {
	lookup map[ir.RegKey]*copySet
}

func newCopySetsMap() *copySetsMap { return &copySetsMap{make(map[ir.RegKey]*copySet)} }

func (self *copySetsMap) get(key ir.RegKey) *copySet {
	if v, ok := self.lookup[key]; ok {
		return v
	}
	new := newCopySet(key)
	self.lookup[key] = new
	return new
}

func (self *copySetsMap) clobber(key ir.RegKey) {
	self.get(key).remove(key)
	delete(self.lookup, key)
}

// move returns false if the corresponding instructions should be removed.
func (self *copySetsMap) move(dest, src ir.RegKey) bool {
	s_set := self.get(src)
	d_set := self.get(dest)

	if s_set == d_set {
		// src and dest are copies of same value, so we can remove
		return false
	}
	d_set.remove(dest)
	s_set.add(dest)
	self.lookup[dest] = s_set
	return true
}
func (self *copySetsMap) load(key ir.RegKey) ir.RegKey {
	return self.get(key).root
}
func (self *copySetsMap) copy() *copySetsMap {
	copies := make(map[*copySet]*copySet)
	new := newCopySetsMap()
	for k, v := range self.lookup {
		if copies[v] == nil {
			copies[v] = v.copy()
		}
		new.lookup[k] = copies[v]
	}
	return new
}

func CopyPropagation(irdata *IRWriter) {
	instrs := irdata.Instructions

	replace := make(map[int][]ir.Instruction)
	single_pred_infos := make(map[ir.Label]*copySetsMap)
	previ := -1

	current := newCopySetsMap()
	for i := range instrs {
		instr := &instrs[i]

		// reset all info when control flow is merged
		if instr.Tag == ir.LABEL && irdata.IsTarget(instr.Label) {
			// try to use info if this was a single predecessor forward jump
			if previ >= 0 && !instrs[previ].Fallsthrough() && irdata.target_pred_counts[instr.Label] == 1 {
				current = single_pred_infos[instr.Label]
				if current == nil {
					current = newCopySetsMap()
				}
			} else {
				current = newCopySetsMap()
			}
		} else if instr.Tag == ir.REGACCESS {
			key := instr.RegKey
			if instr.RegAccess.Store {
				// check if previous instr was a load
				if previ >= 0 && instrs[previ].Tag == ir.REGACCESS && !instrs[previ].RegAccess.Store {
					if !current.move(key, instrs[previ].RegKey) {
						replace[previ] = nil
						replace[i] = nil
					}
				} else {
					current.clobber(key)
				}
			} else {
				root_key := current.load(key)
				if key != root_key {
					_, ok := replace[i]
					util.Assert(!ok)
					// replace with load from root register instead
					replace[i] = []ir.Instruction{ir.NewRegAccess(root_key.Reg, root_key.T, false)}
				}
			}
		} else {
			for _, target := range instr.Targets() {
				label := ir.Label{Tag: ir.DPOS, Pos: target}
				if irdata.target_pred_counts[label] == 1 {
					single_pred_infos[label] = current.copy()
				}
			}
		}

		previ = i
	}

	irdata.ReplaceInstrs(replace)
}

// can remove if load or const since we know there are no side effects
func isRemoveable(instrs []ir.Instruction, i int) bool {
	if i < 0 {
		return false
	}
	instr := &instrs[i]
	if instr.Tag == ir.REGACCESS {
		return !instr.RegAccess.Store
	}
	return instr.IsConstant()
}

// RemoveUnusedRegisters removes stores to registers that are not read from
// anywhere in the method.
func RemoveUnusedRegisters(irdata *IRWriter) {
	instrs := irdata.Instructions

	used := make(map[ir.RegKey]bool)
	for i := range instrs {
		if instrs[i].Tag == ir.REGACCESS && !instrs[i].RegAccess.Store {
			used[instrs[i].RegKey] = true
		}
	}

	replace := make(map[int][]ir.Instruction)
	previ := -1
	for i := range instrs {
		instr := &instrs[i]
		if instr.Tag == ir.REGACCESS && !used[instr.RegKey] {
			util.Assert(instr.RegAccess.Store)
			// if prev instruction is load or const, just remove it and the store
			// otherwise, replace the store with a pop
			if isRemoveable(instrs, previ) {
				replace[previ] = nil
				replace[i] = nil
			} else {
				if instr.RegKey.T.Wide() {
					replace[i] = []ir.Instruction{ir.NewOther(pop2)}
				} else {
					replace[i] = []ir.Instruction{ir.NewOther(pop)}
				}
			}
		}
		previ = i
	}
	irdata.ReplaceInstrs(replace)
}

// SimpleAllocateRegisters allocates registers to JVM registers on a first
// come, first serve basis. For simplicity, parameter registers are
// preserved as is.
func SimpleAllocateRegisters(irdata *IRWriter) {
	instrs := irdata.Instructions
	regmap := map[ir.RegKey]uint16{}
	for i, v := range irdata.initial_args {
		regmap[v] = uint16(i)
	}
	next := uint16(len(irdata.initial_args))

	for i := range instrs {
		instr := &instrs[i]
		if instr.Tag != ir.REGACCESS {
			continue
		}
		if _, ok := regmap[instr.RegKey]; !ok {
			regmap[instr.RegKey] = next
			next++
			if instr.RegKey.T.Wide() {
				next++
			}
		}
		instr.Bytecode = instr.RegAccess.CalcBytecode(regmap[instr.RegKey])
		instr.HasBC = true
	}
	irdata.numregs = next
}

type regKeySlice struct {
	regs       []ir.RegKey
	use_counts map[ir.RegKey]int
}

func (p regKeySlice) Len() int { return len(p.regs) }
func (p regKeySlice) Less(i, j int) bool {
	k1, k2 := p.regs[i], p.regs[j]
	u1 := p.use_counts[k1]
	u2 := p.use_counts[k2]
	return u1 > u2 || (u1 == u2 && k1.Less(k2))
}
func (p regKeySlice) Swap(i, j int) { p.regs[i], p.regs[j] = p.regs[j], p.regs[i] }

func (p regKeySlice) Sort() []ir.RegKey {
	sort.Sort(p)
	return p.regs
}

// SortAllocateRegisters sorts registers by number of uses so that more
// frequently used registers will end up in slots 0-3 or 4-255 and benefit
// from the shorter instruction forms. For simplicity, parameter registers
// are still preserved as is, with one exception.
func SortAllocateRegisters(irdata *IRWriter) {
	NONE := ir.RegKey{}
	instrs := irdata.Instructions

	use_counts := make(map[ir.RegKey]int)
	for i := range instrs {
		if instrs[i].Tag == ir.REGACCESS {
			use_counts[instrs[i].RegKey]++
		}
	}

	regs := append([]ir.RegKey(nil), irdata.initial_args...)

	keys := []ir.RegKey{}
	for k := range use_counts {
		keys = append(keys, k)
	}
	for _, key := range (regKeySlice{keys, use_counts}).Sort() {
		// If key is a param, it was already added at the beginning
		isparam := false
		for _, param := range irdata.initial_args {
			if param == key {
				isparam = true
				break
			}
		}

		if !isparam {
			regs = append(regs, key)
			if key.T.Wide() {
				regs = append(regs, NONE)
			}
		}
	}

	// Sometimes the non-param registers are used more times than the param
	// registers and it is beneficial to swap them (which requires inserting
	// code at the beginning of the method to move the value if the param is
	// not unused). This is very complicated to do in general, so the
	// following code only does this in one specific circumstance which
	// should nevertheless be sufficient to capture the majority of the
	// benefit. Specifically, it only swaps at most one register, and only in
	// the case that it is nonwide and there is a nonwide parameter in the
	// first 4 slots that it can be swapped with. Also, it doesn't bother to
	// check if the param is unused.
	candidate_i := len(irdata.initial_args)
	if candidate_i < 4 {
		candidate_i = 4
	}
	// make sure candidate is a valid, nonwide register
	if len(regs) > candidate_i && regs[candidate_i] != NONE {
		candidate := regs[candidate_i]
		if !candidate.T.Wide() && use_counts[candidate] >= 3 {
			for i := 0; i+1 < len(regs) && i < 4 && i < len(irdata.initial_args); i++ {
				// make sure target is not wide
				if regs[i] == NONE || regs[i+1] == NONE {
					continue
				}

				target := regs[i]
				if use_counts[candidate] > use_counts[target]+3 {
					// swap register assignments
					regs[i], regs[candidate_i] = candidate, target
					// add move instructions at beginning of method
					load := ir.RawRegAccess(uint16(i), target.T, false)
					store := ir.NewRegAccess(target.Reg, target.T, true)
					instrs = append([]ir.Instruction{load, store}, instrs...)
					irdata.Instructions = instrs
					break
				}
			}
		}
	}

	// Now generate bytecode from the selected register allocations
	irdata.numregs = uint16(len(regs))
	regmap := map[ir.RegKey]uint16{}
	for i, v := range regs {
		if v != NONE {
			regmap[v] = uint16(i)
		}
	}

	for i := range instrs {
		instr := &instrs[i]
		if instr.Tag == ir.REGACCESS && !instr.HasBC {
			instr.Bytecode = instr.RegAccess.CalcBytecode(regmap[instr.RegKey])
			instr.HasBC = true
		}
	}
}
