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

// Package ops defines the JVM bytecode opcodes along with small helpers
// for selecting type-specialized variants.
package ops

const (
	NOP         = 0x00
	ACONST_NULL = 0x01
	ICONST_M1   = 0x02
	ICONST_0    = 0x03
	ICONST_1    = 0x04
	ICONST_2    = 0x05
	ICONST_3    = 0x06
	ICONST_4    = 0x07
	ICONST_5    = 0x08
	LCONST_0    = 0x09
	LCONST_1    = 0x0a
	FCONST_0    = 0x0b
	FCONST_1    = 0x0c
	FCONST_2    = 0x0d
	DCONST_0    = 0x0e
	DCONST_1    = 0x0f
	BIPUSH      = 0x10
	SIPUSH      = 0x11
	LDC         = 0x12
	LDC_W       = 0x13
	LDC2_W      = 0x14
	ILOAD       = 0x15
	LLOAD       = 0x16
	FLOAD       = 0x17
	DLOAD       = 0x18
	ALOAD       = 0x19
	ILOAD_0     = 0x1a
	LLOAD_0     = 0x1e
	FLOAD_0     = 0x22
	DLOAD_0     = 0x26
	ALOAD_0     = 0x2a
	IALOAD      = 0x2e
	LALOAD      = 0x2f
	FALOAD      = 0x30
	DALOAD      = 0x31
	AALOAD      = 0x32
	BALOAD      = 0x33
	CALOAD      = 0x34
	SALOAD      = 0x35
	ISTORE      = 0x36
	LSTORE      = 0x37
	FSTORE      = 0x38
	DSTORE      = 0x39
	ASTORE      = 0x3a
	ISTORE_0    = 0x3b
	LSTORE_0    = 0x3f
	FSTORE_0    = 0x43
	DSTORE_0    = 0x47
	ASTORE_0    = 0x4b
	IASTORE     = 0x4f
	LASTORE     = 0x50
	FASTORE     = 0x51
	DASTORE     = 0x52
	AASTORE     = 0x53
	BASTORE     = 0x54
	CASTORE     = 0x55
	SASTORE     = 0x56
	POP         = 0x57
	POP2        = 0x58
	DUP         = 0x59
	DUP_X1      = 0x5a
	DUP_X2      = 0x5b
	DUP2        = 0x5c
	DUP2_X1     = 0x5d
	DUP2_X2     = 0x5e
	SWAP        = 0x5f
	IADD        = 0x60
	LADD        = 0x61
	FADD        = 0x62
	DADD        = 0x63
	ISUB        = 0x64
	LSUB        = 0x65
	FSUB        = 0x66
	DSUB        = 0x67
	IMUL        = 0x68
	LMUL        = 0x69
	FMUL        = 0x6a
	DMUL        = 0x6b
	IDIV        = 0x6c
	LDIV        = 0x6d
	FDIV        = 0x6e
	DDIV        = 0x6f
	IREM        = 0x70
	LREM        = 0x71
	FREM        = 0x72
	DREM        = 0x73
	INEG        = 0x74
	LNEG        = 0x75
	FNEG        = 0x76
	DNEG        = 0x77
	ISHL        = 0x78
	LSHL        = 0x79
	ISHR        = 0x7a
	LSHR        = 0x7b
	IUSHR       = 0x7c
	LUSHR       = 0x7d
	IAND        = 0x7e
	LAND        = 0x7f
	IOR         = 0x80
	LOR         = 0x81
	IXOR        = 0x82
	LXOR        = 0x83
	IINC        = 0x84
	I2L         = 0x85
	I2F         = 0x86
	I2D         = 0x87
	L2I         = 0x88
	L2F         = 0x89
	L2D         = 0x8a
	F2I         = 0x8b
	F2L         = 0x8c
	F2D         = 0x8d
	D2I         = 0x8e
	D2L         = 0x8f
	D2F         = 0x90
	I2B         = 0x91
	I2C         = 0x92
	I2S         = 0x93
	LCMP        = 0x94
	FCMPL       = 0x95
	FCMPG       = 0x96
	DCMPL       = 0x97
	DCMPG       = 0x98
	IFEQ        = 0x99
	IFNE        = 0x9a
	IFLT        = 0x9b
	IFGE        = 0x9c
	IFGT        = 0x9d
	IFLE        = 0x9e
	IF_ICMPEQ   = 0x9f
	IF_ICMPNE   = 0xa0
	IF_ICMPLT   = 0xa1
	IF_ICMPGE   = 0xa2
	IF_ICMPGT   = 0xa3
	IF_ICMPLE   = 0xa4
	IF_ACMPEQ   = 0xa5
	IF_ACMPNE   = 0xa6
	GOTO        = 0xa7
	JSR         = 0xa8
	RET         = 0xa9
	TABLESWITCH = 0xaa
	LOOKUPSWITCH = 0xab
	IRETURN     = 0xac
	LRETURN     = 0xad
	FRETURN     = 0xae
	DRETURN     = 0xaf
	ARETURN     = 0xb0
	RETURN      = 0xb1
	GETSTATIC   = 0xb2
	PUTSTATIC   = 0xb3
	GETFIELD    = 0xb4
	PUTFIELD    = 0xb5
	INVOKEVIRTUAL   = 0xb6
	INVOKESPECIAL   = 0xb7
	INVOKESTATIC    = 0xb8
	INVOKEINTERFACE = 0xb9
	NEW          = 0xbb
	NEWARRAY     = 0xbc
	ANEWARRAY    = 0xbd
	ARRAYLENGTH  = 0xbe
	ATHROW       = 0xbf
	CHECKCAST    = 0xc0
	INSTANCEOF   = 0xc1
	MONITORENTER = 0xc2
	MONITOREXIT  = 0xc3
	WIDE         = 0xc4
	MULTIANEWARRAY = 0xc5
	IFNULL       = 0xc6
	IFNONNULL    = 0xc7
	GOTO_W       = 0xc8
)
