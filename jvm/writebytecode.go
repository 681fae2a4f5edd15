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
	"github.com/undex-project/undex/jvm/errors"
	"github.com/undex-project/undex/jvm/ir"
)

func getCodeIR(pool cpool.Pool, method dex.Method, opts Options) *IRWriter {
	if method.Code == nil {
		return nil
	}

	irdata := writeBytecode(pool, method, opts)

	if opts.InlineConsts {
		InlineConsts(irdata)
	}

	if opts.CopyPropagation {
		CopyPropagation(irdata)
	}

	if opts.RemoveUnusedRegs {
		RemoveUnusedRegisters(irdata)
	}

	if opts.Dup2ize {
		Dup2ize(irdata)
	}

	if opts.PruneStoreLoads {
		PruneStoreLoads(irdata)
		if opts.RemoveUnusedRegs {
			RemoveUnusedRegisters(irdata)
		}
	}

	if opts.SortRegisters {
		SortAllocateRegisters(irdata)
	} else {
		SimpleAllocateRegisters(irdata)
	}

	return irdata
}

func finishCodeAttrs(pool cpool.Pool, code_irs []*IRWriter, opts Options) map[dex.Triple]string {
	irs := make([]*IRWriter, 0, len(code_irs))
	for _, w := range code_irs {
		if w != nil {
			irs = append(irs, w)
		}
	}

	// if we have any code, make sure to reserve pool slots for the attr names
	if len(irs) > 0 {
		pool.Utf8("Code")
		pool.Utf8("StackMapTable")
	}

	if opts.DelayConsts {
		// In the rare case where the class references too many constants to fit in
		// the constant pool, we can workaround this by replacing primitive constants
		// e.g. ints, longs, floats, and doubles, with a sequence of bytecode instructions
		// to generate that constant. This obviously increases the size of the method's
		// bytecode, so we ideally only want to do it to constants in short methods.

		// First off, we find which methods are potentially too long. If a method
		// will be under 65536 bytes even with all constants replaced, then it
		// will be ok no matter what we do.
		long_irs := []*IRWriter{}
		for _, irw := range irs {
			if irw.CalcUpperBound() >= 65536 {
				long_irs = append(long_irs, irw)
			}
		}

		// Now allocate constants used by potentially long methods
		if len(long_irs) > 0 {
			AllocateRequiredConstants(pool, long_irs)
		}

		// If there's space left in the constant pool, allocate constants used by short methods
		for _, irw := range irs {
			for i, instr := range irw.Instructions {
				if instr.Tag == ir.PRIMCONSTANT {
					instr.FixWithPool(pool, &irw.Instructions[i])
				}
			}
		}
	}

	res := map[dex.Triple]string{}
	for _, irdata := range irs {
		res[irdata.method.Triple] = writeCodeAttributeTail(pool, irdata, opts)
	}
	return res
}

func writeCodeAttributeTail(pool cpool.Pool, irdata *IRWriter, opts Options) string {
	optimizeJumps(irdata)
	bytecode, excepts := createBytecode(irdata)

	// Code attribute offsets are 16 bits, both in the exception table and in
	// the stack map, so overlong methods cannot have frames calculated. If
	// code is too long and optimization is off, raise an exception so we can
	// retry with optimization. If it is still too long with optimization,
	// don't raise an error, since a class with illegally long code is better
	// than no output at all.
	overlong := len(bytecode) > 65535
	if overlong && opts != ALL {
		panic(&errors.EncodingOverflow{What: "method code too long"})
	}

	// When frames cannot be produced, fall back to a stack bound that is
	// always high enough. Note that just using 65535 is a bad idea since it
	// tends to cause StackOverflowErrors under default JVM memory settings.
	frames, framecount, maxstack := "", uint16(0), uint16(300)
	if !overlong {
		frames, framecount, maxstack = calcStackMap(irdata, bytecode, excepts)
	}

	stream := byteio.NewWriter()
	stream.U16(maxstack)
	stream.U16(irdata.numregs) // locals

	stream.U32(uint32(len(bytecode)))
	stream.WriteString(bytecode)

	// exceptions
	stream.U16(uint16(len(excepts)))
	for _, e := range excepts {
		stream.WriteString(byteio.HHHH(e.Start, e.End, e.Handler, e.Ctype))
	}

	// attributes
	if framecount > 0 {
		stream.U16(1)
		stream.U16(pool.Utf8("StackMapTable"))
		stream.U32(uint32(2 + len(frames)))
		stream.U16(framecount)
		stream.WriteString(frames)
	} else {
		stream.U16(0)
	}
	return stream.String()
}
