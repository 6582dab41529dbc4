// Package testkit builds deterministic synthetic screens: plate data with
// known generating coefficients, for tests and the demo CLI.
package testkit

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/screen"
)

// ScreenConfig shapes one synthetic screen.
type ScreenConfig struct {
	Conditions int // condition levels, at least 2
	Clones     int // clone levels, at least 2
	RowReps    int // measured plates per condition
	ColReps    int // plate positions per clone

	// EffectSD scales the generating coefficients; zero means 2.
	EffectSD float64
	// BaseMean shifts indicator-screen cell means so they stay positive
	// the way colony sizes do; zero means 10.
	BaseMean float64
	// NoiseSD is the Gaussian measurement noise; zero means noise-free.
	NoiseSD float64

	Seed int64
}

func (c ScreenConfig) validate() error {
	if c.Conditions < 2 || c.Clones < 2 {
		return fmt.Errorf("%w: need at least two conditions and two clones", core.ErrPrecondition)
	}
	if c.RowReps < 1 || c.ColReps < 1 {
		return fmt.Errorf("%w: need at least one replicate per side", core.ErrPrecondition)
	}
	return nil
}

func (c ScreenConfig) effectSD() float64 {
	if c.EffectSD > 0 {
		return c.EffectSD
	}
	return 2
}

func (c ScreenConfig) baseMean() float64 {
	if c.BaseMean > 0 {
		return c.BaseMean
	}
	return 10
}

// SyntheticScreen carries a generated dataset and the truth behind it.
type SyntheticScreen struct {
	Dataset *screen.Dataset

	// Truth holds the generating coefficients: for a sum-contrast screen
	// the full conditions x clones coefficient matrix (intercept row and
	// column first), for an indicator screen the cell mean surface.
	Truth *mat.Dense
}

// MLMScreen generates a sum-contrast screen with intercepts on both sides.
// The same seed always yields the same plate.
func MLMScreen(cfg ScreenConfig) (*SyntheticScreen, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	x := sumContrast(cfg.Conditions, cfg.RowReps)
	z := sumContrast(cfg.Clones, cfg.ColReps)
	truth := randomMatrix(rng, cfg.Conditions, cfg.Clones, cfg.effectSD())

	y := surface(x, truth, z)
	addNoise(rng, y, cfg.NoiseSD)

	ds, err := screen.NewDataset(y, x, z, true, true)
	if err != nil {
		return nil, err
	}
	return &SyntheticScreen{Dataset: ds, Truth: truth}, nil
}

// IndicatorScreen generates a 0/1 indicator screen for the S-score path:
// no intercepts, every response cell replicated per side, cell means
// sitting around BaseMean.
func IndicatorScreen(cfg ScreenConfig) (*SyntheticScreen, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	x := indicator(cfg.Conditions, cfg.RowReps)
	z := indicator(cfg.Clones, cfg.ColReps)

	truth := randomMatrix(rng, cfg.Conditions, cfg.Clones, cfg.effectSD())
	base := cfg.baseMean()
	for i := 0; i < cfg.Conditions; i++ {
		for j := 0; j < cfg.Clones; j++ {
			truth.Set(i, j, base+truth.At(i, j))
		}
	}

	y := surface(x, truth, z)
	addNoise(rng, y, cfg.NoiseSD)

	ds, err := screen.NewDataset(y, x, z, false, false)
	if err != nil {
		return nil, err
	}
	return &SyntheticScreen{Dataset: ds, Truth: truth}, nil
}

// sumContrast builds a design with an intercept column followed by sum
// contrasts: level l gets a 1 in column l+1, the last level gets -1 across
// all contrast columns.
func sumContrast(levels, reps int) *mat.Dense {
	rows := levels * reps
	out := mat.NewDense(rows, levels, nil)
	for r := 0; r < rows; r++ {
		level := r / reps
		out.Set(r, 0, 1)
		if level < levels-1 {
			out.Set(r, level+1, 1)
		} else {
			for c := 1; c < levels; c++ {
				out.Set(r, c, -1)
			}
		}
	}
	return out
}

// indicator builds a 0/1 design assigning reps consecutive rows per level.
func indicator(levels, reps int) *mat.Dense {
	rows := levels * reps
	out := mat.NewDense(rows, levels, nil)
	for r := 0; r < rows; r++ {
		out.Set(r, r/reps, 1)
	}
	return out
}

func randomMatrix(rng *rand.Rand, r, c int, sd float64) *mat.Dense {
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, rng.NormFloat64()*sd)
		}
	}
	return out
}

func surface(x, b, z *mat.Dense) *mat.Dense {
	var zb mat.Dense
	zb.Mul(b, z.T())
	xr, _ := x.Dims()
	zr, _ := z.Dims()
	out := mat.NewDense(xr, zr, nil)
	out.Mul(x, &zb)
	return out
}

func addNoise(rng *rand.Rand, y *mat.Dense, sd float64) {
	if sd <= 0 {
		return
	}
	r, c := y.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			y.Set(i, j, y.At(i, j)+rng.NormFloat64()*sd)
		}
	}
}
