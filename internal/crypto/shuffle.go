package crypto

import (
	"errors"
	"fmt"
)

// MaxDerangeAttempts caps the number of shuffles Derange tries. A uniform
// permutation is a derangement with probability close to 1/e, so the chance
// of exhausting the cap is negligible for any n >= 2.
const MaxDerangeAttempts = 1000

var (
	ErrDerangement     = errors.New("could not generate valid pairs after multiple attempts")
	ErrDerangementSize = errors.New("derangement needs at least 2 elements")
)

// Shuffle performs a Fisher-Yates shuffle of n elements using swap.
func Shuffle(src *Source, n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := src.Intn(i + 1)
		if err != nil {
			return err
		}
		swap(i, j)
	}
	return nil
}

// Perm returns a uniformly random permutation of [0, n).
func Perm(src *Source, n int) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	err := Shuffle(src, n, func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

// Derange returns a permutation of [0, n) with perm[i] != i for every i.
// Permutations are drawn uniformly and rejected until one has no fixed
// point, which makes the result uniform over all derangements.
func Derange(src *Source, n int) ([]int, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrDerangementSize, n)
	}

	for attempt := 0; attempt < MaxDerangeAttempts; attempt++ {
		perm, err := Perm(src, n)
		if err != nil {
			return nil, err
		}
		if !hasFixedPoint(perm) {
			return perm, nil
		}
	}

	return nil, ErrDerangement
}

func hasFixedPoint(perm []int) bool {
	for i, p := range perm {
		if p == i {
			return true
		}
	}
	return false
}
