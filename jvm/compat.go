package jvm

import (
	"cmp"
	"slices"
)

// sortedKeys returns the keys of m in sorted order. It is equivalent to
// slices.Sorted(maps.Keys(m)), which requires Go 1.23.
func sortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
