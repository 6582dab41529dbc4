package shuffle

import (
	"context"
	"math/rand"

	"screenlm/domain/core"
)

// RNG implements deterministic seeded streams for named operations and
// permutation trials.
type RNG struct{}

// NewRNG creates the stream adapter
func NewRNG() *RNG {
	return &RNG{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNG) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(seed)), nil
}

// TrialStream derives the per-trial stream from the operation identity.
// Trial t always sees the same stream no matter which worker runs it.
func (r *RNG) TrialStream(ctx context.Context, name string, baseSeed int64, trial int) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(core.TrialSeed(name, baseSeed, trial))), nil
}
