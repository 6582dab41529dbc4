// Package solver provides the reference least-squares adapter behind
// ports.SolverPort. It fits the matrix linear model Y ~ X*B*Z' + E in closed
// form: B = (X'X)^-1 X' Y W Z (Z'WZ)^-1 with optional per-response-column
// weights W, Kronecker-diagonal sampling variances for B, and a residual
// covariance shrunk toward one of four structured targets.
package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"screenlm/domain/core"
	"screenlm/domain/mlm"
	"screenlm/domain/screen"
	"screenlm/internal"
	"screenlm/internal/backest"
	"screenlm/ports"
)

// defaultRankTol is the singular value cutoff for the SVD fallback.
const defaultRankTol = 1e-12

// LeastSquares is the in-process solver. Callers with their own fitting
// backend can swap it out behind the port.
type LeastSquares struct {
	// RankTol overrides the singular value cutoff used when a Gram matrix
	// cannot be inverted. Zero means defaultRankTol.
	RankTol float64
	Log     *internal.Logger
}

// New creates a new least-squares solver
func New(log *internal.Logger) *LeastSquares {
	return &LeastSquares{Log: log}
}

// Fit estimates the coefficient matrix, its cellwise sampling variances,
// and the shrunk residual covariance for one dataset.
func (s *LeastSquares) Fit(ds *screen.Dataset, opts mlm.FitOptions) (*mlm.Fit, error) {
	n, m := ds.Dims()
	if err := opts.Validate(m); err != nil {
		return nil, err
	}

	full := ds.WithIntercepts(opts.AddXIntercept, opts.AddZIntercept)
	x, z := full.X, full.Z
	_, p := x.Dims()
	_, q := z.Dims()

	wz := weightColumns(z, opts.Weights)

	varLeft, err := s.invertGram(x, x)
	if err != nil {
		return nil, fmt.Errorf("row design: %w", err)
	}
	gramZInv, err := s.invertGram(z, wz)
	if err != nil {
		return nil, fmt.Errorf("column design: %w", err)
	}

	// B = (X'X)^-1 X' Y W Z (Z'WZ)^-1, built left to right.
	var xty mat.Dense
	xty.Mul(x.T(), ds.Y)
	var proj mat.Dense
	proj.Mul(&xty, wz)
	var scaled mat.Dense
	scaled.Mul(varLeft, &proj)
	b := mat.NewDense(p, q, nil)
	b.Mul(&scaled, gramZInv)

	// Residuals against the fitted surface drive the covariance estimate.
	var xb mat.Dense
	xb.Mul(x, b)
	var surface mat.Dense
	surface.Mul(&xb, z.T())
	resid := mat.NewDense(n, m, nil)
	resid.Sub(ds.Y, &surface)

	sigma, lambda := s.shrinkCovariance(resid, p, opts.Target)

	// varRight = (Z'WZ)^-1 Z'W Sigma WZ (Z'WZ)^-1, the column-side
	// sampling covariance the back-estimator expects.
	var sw mat.Dense
	sw.Mul(sigma, wz)
	var zsw mat.Dense
	zsw.Mul(wz.T(), &sw)
	var half mat.Dense
	half.Mul(gramZInv, &zsw)
	var varRight mat.Dense
	varRight.Mul(&half, gramZInv)

	varB, err := backest.KronDiag(varLeft, &varRight)
	if err != nil {
		return nil, err
	}

	s.Log.Debug("least squares fit: %dx%d coefficients over %dx%d responses, shrinkage %.4f toward %s",
		p, q, n, m, lambda, opts.Target)
	return mlm.NewFit(b, varB, sigma, full.XIntercept, full.ZIntercept)
}

// invertGram computes (design' weighted)^-1. Singular or badly conditioned
// Gram matrices fall back to the SVD pseudo-inverse, which keeps the
// estimable part of the design and zeroes the null space.
func (s *LeastSquares) invertGram(design, weighted *mat.Dense) (*mat.Dense, error) {
	_, k := design.Dims()
	var gram mat.Dense
	gram.Mul(design.T(), weighted)

	inv := mat.NewDense(k, k, nil)
	if err := inv.Inverse(&gram); err == nil {
		return inv, nil
	}

	var svd mat.SVD
	if !svd.Factorize(&gram, mat.SVDThin) {
		return nil, fmt.Errorf("%w: SVD of %d-column gram matrix failed", core.ErrSingularGram, k)
	}
	tol := s.RankTol
	if tol <= 0 {
		tol = defaultRankTol
	}
	rank := svd.Rank(tol)
	if rank == 0 {
		return nil, fmt.Errorf("%w: gram matrix has rank zero", core.ErrSingularGram)
	}
	pinv := mat.NewDense(k, k, nil)
	svd.SolveTo(pinv, identity(k), rank)
	s.Log.Warn("gram matrix singular, using rank-%d pseudo-inverse of %d columns", rank, k)
	return pinv, nil
}

// shrinkCovariance estimates Sigma = lambda*T + (1-lambda)*S where S is the
// raw residual covariance E'E/df and T the structured target.
func (s *LeastSquares) shrinkCovariance(resid *mat.Dense, p int, target mlm.ShrinkageTarget) (*mat.SymDense, float64) {
	n, m := resid.Dims()
	df := float64(n - p)
	if df <= 0 {
		df = float64(n)
		s.Log.Warn("residual degrees of freedom exhausted (n=%d, p=%d), dividing by n", n, p)
	}

	var ete mat.Dense
	ete.Mul(resid.T(), resid)
	raw := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			raw.SetSym(i, j, ete.At(i, j)/df)
		}
	}

	lambda := shrinkageIntensity(resid, target)
	tgt := buildTarget(raw, target)
	out := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			out.SetSym(i, j, lambda*tgt.At(i, j)+(1-lambda)*raw.At(i, j))
		}
	}
	return out, lambda
}

// shrinkageIntensity estimates the Schafer-Strimmer weight: summed sampling
// variance of the free covariance entries over their squared distance from
// the target, clamped to [0, 1]. Entries the target copies verbatim drop out
// of both sums.
func shrinkageIntensity(resid *mat.Dense, target mlm.ShrinkageTarget) float64 {
	n, m := resid.Dims()
	if n < 2 {
		return 1
	}

	centered := mat.DenseCopyOf(resid)
	for j := 0; j < m; j++ {
		mean := stat.Mean(mat.Col(nil, j, resid), nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, resid.At(i, j)-mean)
		}
	}

	nf := float64(n)
	cov := mat.NewSymDense(m, nil)
	varS := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			var wbar float64
			for k := 0; k < n; k++ {
				wbar += centered.At(k, i) * centered.At(k, j)
			}
			wbar /= nf
			var sq float64
			for k := 0; k < n; k++ {
				d := centered.At(k, i)*centered.At(k, j) - wbar
				sq += d * d
			}
			cov.SetSym(i, j, nf/(nf-1)*wbar)
			varS.SetSym(i, j, nf/((nf-1)*(nf-1)*(nf-1))*sq)
		}
	}

	tgt := buildTarget(cov, target)
	copiesDiagonal := target == mlm.TargetUnequalDiagonal

	var num, den float64
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if i == j && copiesDiagonal {
				continue
			}
			d := cov.At(i, j) - tgt.At(i, j)
			num += varS.At(i, j)
			den += d * d
		}
	}
	if den == 0 {
		return 0
	}
	lambda := num / den
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return lambda
}

// buildTarget assembles the structured matrix a covariance estimate is
// shrunk toward.
func buildTarget(s *mat.SymDense, target mlm.ShrinkageTarget) *mat.SymDense {
	m := s.SymmetricDim()
	out := mat.NewSymDense(m, nil)
	switch target {
	case mlm.TargetConstantDiagonal:
		nu := meanDiagonal(s)
		for i := 0; i < m; i++ {
			out.SetSym(i, i, nu)
		}
	case mlm.TargetCommonCovariance:
		nu := meanDiagonal(s)
		c := meanOffDiagonal(s)
		for i := 0; i < m; i++ {
			out.SetSym(i, i, nu)
			for j := i + 1; j < m; j++ {
				out.SetSym(i, j, c)
			}
		}
	case mlm.TargetUnequalDiagonal:
		for i := 0; i < m; i++ {
			out.SetSym(i, i, s.At(i, i))
		}
	default:
		for i := 0; i < m; i++ {
			out.SetSym(i, i, 1)
		}
	}
	return out
}

func meanDiagonal(s *mat.SymDense) float64 {
	m := s.SymmetricDim()
	diag := make([]float64, m)
	for i := 0; i < m; i++ {
		diag[i] = s.At(i, i)
	}
	return stat.Mean(diag, nil)
}

func meanOffDiagonal(s *mat.SymDense) float64 {
	m := s.SymmetricDim()
	if m < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			sum += s.At(i, j)
		}
	}
	return sum / float64(m*(m-1)/2)
}

// weightColumns scales row i of z by the weight of response column i,
// giving W*Z for diagonal W. Nil weights return z untouched.
func weightColumns(z *mat.Dense, weights []float64) *mat.Dense {
	if weights == nil {
		return z
	}
	r, c := z.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, weights[i]*z.At(i, j))
		}
	}
	return out
}

func identity(k int) *mat.Dense {
	out := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// Ensure LeastSquares implements SolverPort
var _ ports.SolverPort = (*LeastSquares)(nil)
