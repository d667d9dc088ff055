package opf

import "golang.org/x/exp/constraints"

func minOf[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
