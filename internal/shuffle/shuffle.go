// Package shuffle produces uniformly random permutations of track lists.
package shuffle

import "math/rand/v2"

// Shuffle returns a shuffled copy of items using the global random source.
// The input slice is never modified.
func Shuffle[T any](items []T) []T {
	return shuffle(rand.IntN, items)
}

// ShuffleWith is [Shuffle] with an explicit source, mostly for deterministic tests.
func ShuffleWith[T any](r *rand.Rand, items []T) []T {
	return shuffle(r.IntN, items)
}

// shuffle runs Fisher–Yates over a copy: for i from the last index down to 1,
// swap element i with a uniformly chosen index in [0, i].
func shuffle[T any](intN func(int) int, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)

	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
