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
	"github.com/undex-project/undex/jvm/ops"
	"github.com/undex-project/undex/jvm/scalars"
)

type unaryOp struct {
	Op           byte
	SrcT, DestT  scalars.T
}

type binaryOp struct {
	Op           byte
	SrcT, Src2T  scalars.T
}

type binaryLitOp struct {
	Op byte
}

// Dalvik unary and conversion ops, keyed by Dalvik opcode. not-int and
// not-long have no JVM equivalent and are implemented as x ^ -1.
var UNARY = map[uint8]unaryOp{
	0x7b: {ops.INEG, scalars.INT, scalars.INT},
	0x7c: {ops.IXOR, scalars.INT, scalars.INT},
	0x7d: {ops.LNEG, scalars.LONG, scalars.LONG},
	0x7e: {ops.LXOR, scalars.LONG, scalars.LONG},
	0x7f: {ops.FNEG, scalars.FLOAT, scalars.FLOAT},
	0x80: {ops.DNEG, scalars.DOUBLE, scalars.DOUBLE},
	0x81: {ops.I2L, scalars.INT, scalars.LONG},
	0x82: {ops.I2F, scalars.INT, scalars.FLOAT},
	0x83: {ops.I2D, scalars.INT, scalars.DOUBLE},
	0x84: {ops.L2I, scalars.LONG, scalars.INT},
	0x85: {ops.L2F, scalars.LONG, scalars.FLOAT},
	0x86: {ops.L2D, scalars.LONG, scalars.DOUBLE},
	0x87: {ops.F2I, scalars.FLOAT, scalars.INT},
	0x88: {ops.F2L, scalars.FLOAT, scalars.LONG},
	0x89: {ops.F2D, scalars.FLOAT, scalars.DOUBLE},
	0x8a: {ops.D2I, scalars.DOUBLE, scalars.INT},
	0x8b: {ops.D2L, scalars.DOUBLE, scalars.LONG},
	0x8c: {ops.D2F, scalars.DOUBLE, scalars.FLOAT},
	0x8d: {ops.I2B, scalars.INT, scalars.INT},
	0x8e: {ops.I2C, scalars.INT, scalars.INT},
	0x8f: {ops.I2S, scalars.INT, scalars.INT},
}

var BINARY = map[uint8]binaryOp{}
var BINARY_LIT = map[uint8]binaryLitOp{}

func init() {
	// int ops in Dalvik operand order. The long variant of each is op+1.
	intOps := []byte{ops.IADD, ops.ISUB, ops.IMUL, ops.IDIV, ops.IREM, ops.IAND, ops.IOR, ops.IXOR, ops.ISHL, ops.ISHR, ops.IUSHR}
	floatOps := []byte{ops.FADD, ops.FSUB, ops.FMUL, ops.FDIV, ops.FREM}

	for i, op := range intOps {
		BINARY[0x90+uint8(i)] = binaryOp{op, scalars.INT, scalars.INT}
		// long shifts take an int shift amount
		src2 := scalars.LONG
		if i >= 8 {
			src2 = scalars.INT
		}
		BINARY[0x9b+uint8(i)] = binaryOp{op + 1, scalars.LONG, src2}
	}
	for i, op := range floatOps {
		BINARY[0xa6+uint8(i)] = binaryOp{op, scalars.FLOAT, scalars.FLOAT}
		BINARY[0xab+uint8(i)] = binaryOp{op + 1, scalars.DOUBLE, scalars.DOUBLE}
	}
	// 2addr forms
	base := make([]uint8, 0, len(BINARY))
	for op := range BINARY {
		base = append(base, op)
	}
	for _, op := range base {
		BINARY[op+0x20] = BINARY[op]
	}

	// rsub is handled by reversing the operand order of isub
	litOps := []byte{ops.IADD, ops.ISUB, ops.IMUL, ops.IDIV, ops.IREM, ops.IAND, ops.IOR, ops.IXOR, ops.ISHL, ops.ISHR, ops.IUSHR}
	for i, op := range litOps[:8] {
		BINARY_LIT[0xd0+uint8(i)] = binaryLitOp{op}
	}
	for i, op := range litOps {
		BINARY_LIT[0xd8+uint8(i)] = binaryLitOp{op}
	}
}
