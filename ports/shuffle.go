package ports

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ShufflePort reshuffles a response matrix for permutation trials. Both
// methods return a fresh matrix drawn from the given stream and leave the
// input untouched.
type ShufflePort interface {
	// ShuffleRows permutes whole rows, breaking the row-design association.
	ShuffleRows(rng *rand.Rand, y *mat.Dense) *mat.Dense

	// ShuffleCols permutes whole columns, breaking the column-design
	// association.
	ShuffleCols(rng *rand.Rand, y *mat.Dense) *mat.Dense
}
