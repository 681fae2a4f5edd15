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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/undex-project/undex/jvm/ops"
	"github.com/undex-project/undex/jvm/scalars"
)

func TestOppositeOp(t *testing.T) {
	pairs := [][2]uint8{
		{ops.IFEQ, ops.IFNE},
		{ops.IFLT, ops.IFGE},
		{ops.IFGT, ops.IFLE},
		{ops.IF_ICMPEQ, ops.IF_ICMPNE},
		{ops.IF_ICMPLT, ops.IF_ICMPGE},
		{ops.IF_ICMPGT, ops.IF_ICMPLE},
		{ops.IF_ACMPEQ, ops.IF_ACMPNE},
		{ops.IFNULL, ops.IFNONNULL},
	}
	for _, p := range pairs {
		assert.Equal(t, p[1], oppositeOp(p[0]))
		assert.Equal(t, p[0], oppositeOp(p[1]))
	}
}

func TestGenDups(t *testing.T) {
	// unused value just gets popped
	assert.Equal(t, [][]string{{pop}}, genDups(0, 0))
	// single use needs no copies
	assert.Equal(t, [][]string{{}, {}}, genDups(1, 0))
	assert.Equal(t, [][]string{{dup}, {}, {}}, genDups(2, 0))
	// four uses are covered by dup + dup2 up front
	assert.Equal(t, [][]string{{dup, dup2}, {}, {}, {}, {}}, genDups(4, 0))
	// a copy left on the stack afterwards
	assert.Equal(t, [][]string{{dup}, {}}, genDups(1, 1))
}

func TestMathOps(t *testing.T) {
	assert.Equal(t, byte(ops.IADD), BINARY[0x90].Op)
	assert.Equal(t, scalars.INT, BINARY[0x90].SrcT)
	assert.Equal(t, byte(ops.LADD), BINARY[0x9b].Op)
	// long shifts take an int shift amount on the stack
	assert.Equal(t, byte(ops.LSHL), BINARY[0xa3].Op)
	assert.Equal(t, scalars.INT, BINARY[0xa3].Src2T)
	assert.Equal(t, scalars.LONG, BINARY[0xa3].SrcT)
	// 2addr forms share the table entry of the 3-operand form
	assert.Equal(t, BINARY[0x90], BINARY[0xb0])
	assert.Equal(t, BINARY[0xaf], BINARY[0xcf])

	assert.Equal(t, unaryOp{ops.I2L, scalars.INT, scalars.LONG}, UNARY[0x81])
	assert.Equal(t, unaryOp{ops.DNEG, scalars.DOUBLE, scalars.DOUBLE}, UNARY[0x80])

	assert.Equal(t, byte(ops.IADD), BINARY_LIT[0xd0].Op)
	assert.Equal(t, byte(ops.IADD), BINARY_LIT[0xd8].Op)
	assert.Equal(t, byte(ops.IDIV), BINARY_LIT[0xdb].Op)
	assert.Equal(t, byte(ops.IUSHR), BINARY_LIT[0xe2].Op)
}

func TestSplitParams(t *testing.T) {
	params, ret := splitParams("()V")
	assert.Empty(t, params)
	assert.Equal(t, "V", ret)

	params, ret = splitParams("(I[JLjava/lang/String;[[Ljava/lang/Object;)I")
	assert.Equal(t, []string{"I", "[J", "Ljava/lang/String;", "[[Ljava/lang/Object;"}, params)
	assert.Equal(t, "I", ret)
}

func TestTypeFromDesc(t *testing.T) {
	assert.Equal(t, intVt, typeFromDesc("Z"))
	assert.Equal(t, intVt, typeFromDesc("I"))
	assert.Equal(t, longVt, typeFromDesc("J"))
	assert.Equal(t, doubleVt, typeFromDesc("D"))
	assert.Equal(t, objVt("java/lang/String"), typeFromDesc("Ljava/lang/String;"))
	assert.Equal(t, objVt("[I"), typeFromDesc("[I"))
}

func TestMergeVts(t *testing.T) {
	assert.Equal(t, intVt, mergeVts(intVt, intVt))
	assert.Equal(t, topVt, mergeVts(intVt, floatVt))
	assert.Equal(t, topVt, mergeVts(intVt, longVt))
	// null merges into any reference
	obj := objVt("java/lang/String")
	assert.Equal(t, obj, mergeVts(nullVt, obj))
	assert.Equal(t, obj, mergeVts(obj, nullVt))
	// distinct classes collapse to Object
	assert.Equal(t, objVt("java/lang/Object"), mergeVts(obj, objVt("[I")))
	// references never merge with primitives
	assert.Equal(t, topVt, mergeVts(obj, intVt))
}

func TestCanonLocals(t *testing.T) {
	// wide types take a single stack map entry
	assert.Equal(t, []vtype{intVt, longVt}, canonLocals([]vtype{intVt, longVt, topVt, topVt}))
	// trailing tops are dropped but interior ones are kept
	assert.Equal(t, []vtype{intVt, topVt, intVt}, canonLocals([]vtype{intVt, topVt, intVt, topVt}))
	assert.Empty(t, canonLocals([]vtype{topVt, topVt}))
}