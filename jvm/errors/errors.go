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

// Package errors defines the failure conditions that can abort translation
// of a single unit (an image or a class). They are raised by panicking inside
// the translator and recovered at the smallest boundary that can isolate the
// failure, so sibling classes keep translating.
package errors

import "fmt"

// MalformedInput indicates a structural decode failure: bad header, index out
// of range, truncated stream or an overlong varint.
type MalformedInput struct {
	Off uint32
	Msg string
}

func (e *MalformedInput) Error() string {
	return fmt.Sprintf("malformed input at offset %d: %s", e.Off, e.Msg)
}

// AnalysisDidNotConverge indicates the type inference fixpoint guard tripped.
// This should never happen for well formed input; it protects against
// maliciously crafted code items.
type AnalysisDidNotConverge struct {
	Passes int
}

func (e *AnalysisDidNotConverge) Error() string {
	return fmt.Sprintf("type inference did not converge after %d passes", e.Passes)
}

// InconsistentWidePair indicates an instruction read or wrote only one half
// of a register pair holding a 64-bit value.
type InconsistentWidePair struct {
	Reg uint16
	Pos uint32
}

func (e *InconsistentWidePair) Error() string {
	return fmt.Sprintf("inconsistent wide register pair v%d at %d", e.Reg, e.Pos)
}

// UnsupportedExceptionLayout indicates a handler entry whose operand stack
// invariant could not be satisfied by the usual redirect trick.
type UnsupportedExceptionLayout struct {
	Target uint32
}

func (e *UnsupportedExceptionLayout) Error() string {
	return fmt.Sprintf("unsupported exception handler layout at %d", e.Target)
}

// EncodingOverflow indicates a pool index, offset or count exceeded the class
// file format's bit width. The emitter retries overflowing classes with full
// optimization before giving up.
type EncodingOverflow struct {
	What string
}

func (e *EncodingOverflow) Error() string {
	if e.What == "" {
		return "class file limit exceeded"
	}
	return "class file limit exceeded: " + e.What
}
