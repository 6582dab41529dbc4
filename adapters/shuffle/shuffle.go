// Package shuffle provides the randomization adapters behind permutation
// testing: Fisher-Yates row and column reshuffles of a response matrix and
// deterministic seeded RNG streams.
package shuffle

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Shuffler permutes response matrices. Both methods return fresh matrices;
// the input is never touched.
type Shuffler struct{}

// New creates a new shuffler
func New() *Shuffler {
	return &Shuffler{}
}

// ShuffleRows permutes whole rows of the response, breaking the association
// between measurements and the row design.
func (s *Shuffler) ShuffleRows(rng *rand.Rand, y *mat.Dense) *mat.Dense {
	n, m := y.Dims()
	perm := fisherYates(rng, n)
	out := mat.NewDense(n, m, nil)
	for i, src := range perm {
		for j := 0; j < m; j++ {
			out.Set(i, j, y.At(src, j))
		}
	}
	return out
}

// ShuffleCols permutes whole columns of the response, breaking the
// association between measurements and the column design.
func (s *Shuffler) ShuffleCols(rng *rand.Rand, y *mat.Dense) *mat.Dense {
	n, m := y.Dims()
	perm := fisherYates(rng, m)
	out := mat.NewDense(n, m, nil)
	for j, src := range perm {
		for i := 0; i < n; i++ {
			out.Set(i, j, y.At(i, src))
		}
	}
	return out
}

// fisherYates draws a uniform permutation of [0, n).
func fisherYates(rng *rand.Rand, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}
