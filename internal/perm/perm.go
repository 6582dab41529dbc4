// Package perm computes empirical permutation p-values for matrix-valued
// statistics. Trials run across a bounded worker pool; each trial draws a
// deterministic stream from the base seed and its own index, so a run's
// results are identical for any worker count, and any failed trial aborts
// the whole run rather than skewing the counts.
package perm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/screen"
	"screenlm/internal"
	"screenlm/ports"
)

// streamName labels the trial streams this engine draws.
const streamName = "perm-pvals"

// Statistic computes a matrix-valued statistic from a dataset.
type Statistic func(ds *screen.Dataset) (*mat.Dense, error)

// Permuter builds a permuted copy of a response matrix from a stream.
type Permuter func(rng *rand.Rand, y *mat.Dense) *mat.Dense

// Result is one completed permutation run.
type Result struct {
	RunID    core.RunID
	Observed *mat.Dense
	PValues  *mat.Dense
	NPerms   int
}

// Engine runs permutation tests. Workers defaults to GOMAXPROCS when zero.
type Engine struct {
	Workers  int
	BaseSeed int64
	RNG      ports.RNGPort
	Log      *internal.Logger
}

// New builds an engine around a stream source.
func New(rng ports.RNGPort, baseSeed int64, workers int, log *internal.Logger) *Engine {
	return &Engine{Workers: workers, BaseSeed: baseSeed, RNG: rng, Log: log}
}

// PValues computes the observed statistic and its empirical p-values from
// nPerms reshuffled trials. Cellwise, a trial counts when its absolute
// statistic reaches the absolute observed value, and
// p = (count + 1) / (nPerms + 1), so p is always in (0, 1] and zero trials
// degenerate to p = 1 everywhere.
func (e *Engine) PValues(ctx context.Context, ds *screen.Dataset, stat Statistic, nPerms int, permute Permuter) (*Result, error) {
	if stat == nil || permute == nil {
		return nil, fmt.Errorf("%w: statistic and permuter must be non-nil", core.ErrPrecondition)
	}
	if nPerms < 0 {
		return nil, fmt.Errorf("%w: negative permutation count %d", core.ErrPrecondition, nPerms)
	}
	if e.RNG == nil {
		return nil, fmt.Errorf("%w: engine has no stream source", core.ErrPrecondition)
	}

	observed, err := stat(ds)
	if err != nil {
		return nil, fmt.Errorf("observed statistic: %w", err)
	}
	rows, cols := observed.Dims()
	runID := core.RunID(core.NewID())

	pvals := mat.NewDense(rows, cols, nil)
	if nPerms == 0 {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				pvals.Set(i, j, 1)
			}
		}
		e.Log.Debug("permutation run %s: zero trials requested, p = 1 everywhere", runID)
		return &Result{RunID: runID, Observed: observed, PValues: pvals, NPerms: 0}, nil
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nPerms {
		workers = nPerms
	}

	// Each worker owns a count matrix; merging afterwards is plain
	// addition, so the reduction order can never change the result.
	counts := make([][]int64, workers)
	for w := range counts {
		counts[w] = make([]int64, rows*cols)
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		local := counts[w]
		start := w
		g.Go(func() error {
			for trial := start; trial < nPerms; trial += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				rng, err := e.RNG.TrialStream(gctx, streamName, e.BaseSeed, trial)
				if err != nil {
					return core.NewTrialError(trial, err)
				}
				trialDS, err := ds.WithResponse(permute(rng, ds.Y))
				if err != nil {
					return core.NewTrialError(trial, err)
				}
				s, err := stat(trialDS)
				if err != nil {
					return core.NewTrialError(trial, err)
				}
				sr, sc := s.Dims()
				if sr != rows || sc != cols {
					return core.NewTrialError(trial, core.NewShapeError("trial statistic rows", sr, rows))
				}
				for i := 0; i < rows; i++ {
					for j := 0; j < cols; j++ {
						if math.Abs(s.At(i, j)) >= math.Abs(observed.At(i, j)) {
							local[i*cols+j]++
						}
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var total int64
			for w := 0; w < workers; w++ {
				total += counts[w][i*cols+j]
			}
			pvals.Set(i, j, float64(total+1)/float64(nPerms+1))
		}
	}

	e.Log.Info("permutation run %s: %d trials across %d workers", runID, nPerms, workers)
	return &Result{RunID: runID, Observed: observed, PValues: pvals, NPerms: nPerms}, nil
}
