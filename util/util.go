package util

import (
	"sort"

	"golang.org/x/exp/constraints"
)

func GetKeys[A constraints.Ordered, B any](m map[A]B) []A {
	keys := make([]A, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func GetKeysSorted[A constraints.Ordered, B any](m map[A]B) []A {
	keys := GetKeys(m)
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}

func Min[A constraints.Ordered](a A, b A) A {
	if a > b {
		return b
	}
	return a
}

func Max[A constraints.Ordered](a A, b A) A {
	if a < b {
		return b
	}
	return a
}

func Abs[A constraints.Signed](n A) A {
	if n < 0 {
		return -n
	}
	return n
}
