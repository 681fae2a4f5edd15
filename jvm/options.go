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

// Options controls which optimization passes are applied when generating
// bytecode. With the zero value the translation is fastest but the output
// is full of redundant stores and loads.
type Options struct {
	InlineConsts     bool
	CopyPropagation  bool
	RemoveUnusedRegs bool
	Dup2ize          bool
	PruneStoreLoads  bool
	SortRegisters    bool
	SplitPool        bool
	DelayConsts      bool
}

var NONE = Options{}

// PRETTY cleans up the redundant register traffic but avoids the passes
// that make the output harder to read, such as dup2ize.
var PRETTY = Options{
	InlineConsts:     true,
	CopyPropagation:  true,
	RemoveUnusedRegs: true,
	PruneStoreLoads:  true,
}

// ALL is used when a class overflows the limits of the class file format
// and every last byte of savings is needed.
var ALL = Options{true, true, true, true, true, true, true, true}
