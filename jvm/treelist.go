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

// The first treeSize elements are stored directly, the rest are stored in
// one of treeSplit subtrees.
const treeSize = 16
const treeSplit = 16

// treeList represents a list as a persistent n-ary tree. This has much
// slower access and updates than a real list but has the advantage of
// sharing memory with previous versions of the list when only a few
// elements are changed. See http://en.wikipedia.org/wiki/Persistent_data_structure#Trees
// Also, default values are not stored, so this is good for sparse arrays.
type treeList[T comparable] struct {
	missing  T
	direct   [treeSize]T
	children [treeSplit]*treeList[T]
}

func newTreeList[T comparable](missing T) *treeList[T] {
	self := treeList[T]{missing: missing}
	for i := 0; i < treeSize; i++ {
		self.direct[i] = missing
	}
	// subtrees allocated lazily
	return &self
}

func (self *treeList[T]) get(i uint16) T {
	if i < treeSize {
		return self.direct[i]
	}
	i -= treeSize

	ci := i % treeSplit
	i = i / treeSplit
	child := self.children[ci]
	if child == nil {
		return self.missing
	}
	return child.get(i)
}

func (self *treeList[T]) set(i uint16, val T) *treeList[T] {
	if i < treeSize {
		if val == self.direct[i] {
			return self
		}

		temp := self.direct
		temp[i] = val
		return &treeList[T]{self.missing, temp, self.children}
	}

	i -= treeSize

	ci := i % treeSplit
	i = i / treeSplit
	child := self.children[ci]

	if child == nil {
		if val == self.missing {
			return self
		}
		child = newTreeList[T](self.missing).set(i, val)
	} else {
		if val == child.get(i) {
			return self
		}
		child = child.set(i, val)
	}

	temp := self.children
	temp[ci] = child
	return &treeList[T]{self.missing, self.direct, temp}
}

// merge effectively computes [f(x, y) for x, y in zip(left, right)].
// Assumes f(x, x) == x.
func (left *treeList[T]) merge(right *treeList[T], f func(T, T) T) *treeList[T] {
	if left == right {
		return left
	}

	if left == nil {
		left, right = right, left
	}

	missing := left.missing
	direct := [treeSize]T{}
	children := [treeSplit]*treeList[T]{}

	if right == nil {
		for i, x := range left.direct {
			direct[i] = f(x, missing)
		}
		for i, child := range left.children {
			children[i] = child.merge(nil, f)
		}
	} else {
		for i, x := range left.direct {
			direct[i] = f(x, right.direct[i])
		}
		for i, child := range left.children {
			children[i] = child.merge(right.children[i], f)
		}

		if direct == right.direct && children == right.children {
			return right
		}
	}

	if direct == left.direct && children == left.children {
		return left
	}
	return &treeList[T]{missing, direct, children}
}
