// Package app wires the screening engines and their external collaborators
// into the operations callers consume: fitting with back-estimation,
// permutation inference, and S scoring.
package app

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/mlm"
	"screenlm/domain/screen"
	"screenlm/internal"
	"screenlm/internal/backest"
	"screenlm/internal/perm"
	"screenlm/internal/sscore"
	"screenlm/ports"
)

// PermuteAxis selects which response axis a permutation run reshuffles.
type PermuteAxis int

const (
	// PermuteRows reshuffles whole response rows, breaking the link
	// between measurements and conditions.
	PermuteRows PermuteAxis = iota
	// PermuteCols reshuffles whole response columns, breaking the link
	// between measurements and clones.
	PermuteCols
)

// String returns the axis name used in logs.
func (a PermuteAxis) String() string {
	switch a {
	case PermuteRows:
		return "rows"
	case PermuteCols:
		return "cols"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// ScreenService exposes the post-processing surface over screen data:
// back-estimation of omitted sum-contrast levels, permutation p-values,
// and Collins S scores.
type ScreenService struct {
	solver  ports.SolverPort
	shuffle ports.ShufflePort
	perm    *perm.Engine
	sscore  *sscore.Engine
	log     *internal.Logger
}

// NewScreenService creates a screen service
func NewScreenService(solver ports.SolverPort, shuffler ports.ShufflePort, permEngine *perm.Engine, sscoreEngine *sscore.Engine, log *internal.Logger) *ScreenService {
	return &ScreenService{
		solver:  solver,
		shuffle: shuffler,
		perm:    permEngine,
		sscore:  sscoreEngine,
		log:     log,
	}
}

// BackestSum reconstructs the omitted sum-contrast level on the requested
// sides of an existing fit. The dataset must be the one the fit was
// computed against.
func (s *ScreenService) BackestSum(fit *mlm.Fit, ds *screen.Dataset, isXSum, isZSum bool) (*mlm.Fit, error) {
	return backest.Apply(fit, ds, isXSum, isZSum)
}

// MLMBackestSum fits the matrix linear model and back-estimates the omitted
// levels in one call. Intercepts requested through the options are resolved
// onto the dataset first, so the solver and the back-estimator see the same
// designs.
func (s *ScreenService) MLMBackestSum(ds *screen.Dataset, opts mlm.FitOptions, isXSum, isZSum bool) (*mlm.Fit, error) {
	if s.solver == nil {
		return nil, fmt.Errorf("%w: service has no solver", core.ErrPrecondition)
	}
	full := ds.WithIntercepts(opts.AddXIntercept, opts.AddZIntercept)
	fit, err := s.solver.Fit(full, opts)
	if err != nil {
		return nil, fmt.Errorf("least squares fit: %w", err)
	}
	return backest.Apply(fit, full, isXSum, isZSum)
}

// MLMBackestSumPerms runs the full inference pipeline: the observed and
// every permuted trial each fit the model, back-estimate, and reduce to
// cellwise t statistics; the result carries those statistics and their
// empirical p-values.
func (s *ScreenService) MLMBackestSumPerms(ctx context.Context, ds *screen.Dataset, opts mlm.FitOptions, nPerms int, axis PermuteAxis, isXSum, isZSum, isMainEff bool) (*perm.Result, error) {
	if s.solver == nil {
		return nil, fmt.Errorf("%w: service has no solver", core.ErrPrecondition)
	}
	if s.perm == nil {
		return nil, fmt.Errorf("%w: service has no permutation engine", core.ErrPrecondition)
	}
	permute, err := s.permuter(axis)
	if err != nil {
		return nil, err
	}

	full := ds.WithIntercepts(opts.AddXIntercept, opts.AddZIntercept)
	stat := func(d *screen.Dataset) (*mat.Dense, error) {
		fit, err := s.solver.Fit(d, opts)
		if err != nil {
			return nil, err
		}
		aug, err := backest.Apply(fit, d, isXSum, isZSum)
		if err != nil {
			return nil, err
		}
		return aug.TStats(isMainEff)
	}

	s.log.Info("mlm permutation run: %d trials, axis %s, main effects only %t", nPerms, axis, isMainEff)
	return s.perm.PValues(ctx, full, stat, nPerms, permute)
}

// SScore computes the Collins S score matrix for an indicator-coded screen.
func (s *ScreenService) SScore(ds *screen.Dataset, varFloor bool) (*mat.Dense, error) {
	if s.sscore == nil {
		return nil, fmt.Errorf("%w: service has no S-score engine", core.ErrPrecondition)
	}
	return s.sscore.Score(ds, varFloor)
}

// SScorePerms computes S scores plus their empirical permutation p-values.
func (s *ScreenService) SScorePerms(ctx context.Context, ds *screen.Dataset, nPerms int, axis PermuteAxis, varFloor bool) (*perm.Result, error) {
	if s.sscore == nil {
		return nil, fmt.Errorf("%w: service has no S-score engine", core.ErrPrecondition)
	}
	if s.perm == nil {
		return nil, fmt.Errorf("%w: service has no permutation engine", core.ErrPrecondition)
	}
	permute, err := s.permuter(axis)
	if err != nil {
		return nil, err
	}

	stat := func(d *screen.Dataset) (*mat.Dense, error) {
		return s.sscore.Score(d, varFloor)
	}

	s.log.Info("s-score permutation run: %d trials, axis %s, variance floor %t", nPerms, axis, varFloor)
	return s.perm.PValues(ctx, ds, stat, nPerms, permute)
}

// Coef returns the fitted coefficients, stripping the back-estimated
// trailing row and column when isXSum / isZSum ask for the original design
// shape again.
func (s *ScreenService) Coef(fit *mlm.Fit, isXSum, isZSum bool) (*mat.Dense, error) {
	return fit.Coef(isXSum, isZSum)
}

// Predict evaluates the fitted surface on new designs.
func (s *ScreenService) Predict(fit *mlm.Fit, xNew, zNew mlm.Design, isXSum, isZSum bool, sink mlm.DiagnosticSink) (*mat.Dense, error) {
	return fit.Predict(xNew, zNew, mlm.PredictConfig{DropBackRow: isXSum, DropBackCol: isZSum, Sink: sink})
}

// Resid returns the residuals of the fit against a dataset.
func (s *ScreenService) Resid(fit *mlm.Fit, ds *screen.Dataset, isXSum, isZSum bool, sink mlm.DiagnosticSink) (*mat.Dense, error) {
	return fit.Resid(ds, mlm.PredictConfig{DropBackRow: isXSum, DropBackCol: isZSum, Sink: sink})
}

// permuter maps an axis onto the shuffler method feeding the trials.
func (s *ScreenService) permuter(axis PermuteAxis) (perm.Permuter, error) {
	if s.shuffle == nil {
		return nil, fmt.Errorf("%w: service has no shuffler", core.ErrPrecondition)
	}
	switch axis {
	case PermuteRows:
		return s.shuffle.ShuffleRows, nil
	case PermuteCols:
		return s.shuffle.ShuffleCols, nil
	default:
		return nil, fmt.Errorf("%w: unknown permutation axis %d", core.ErrPrecondition, int(axis))
	}
}
