package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// TrialStream creates the RNG stream for one permutation trial. The same
	// operation name, base seed, and trial index always yield the same
	// stream, so results never depend on how trials are spread across
	// workers, and a rerun with the same seed reproduces them exactly.
	TrialStream(ctx context.Context, name string, baseSeed int64, trial int) (*rand.Rand, error)
}
