// Package mlm holds the matrix linear model fit result and the accessors
// that read coefficients, predictions, and residuals out of it. The model
// form is Y ~ X*B*Z' + E; a fit carries the estimated B, its cellwise
// sampling variances, and the shrunk residual covariance.
package mlm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
)

// Fit is the result of one least-squares matrix linear model fit,
// possibly augmented by sum-contrast back-estimation.
type Fit struct {
	B     *mat.Dense    // coefficient estimates, p x q
	VarB  *mat.Dense    // cellwise sampling variances of B, p x q
	Sigma *mat.SymDense // shrunk residual covariance, m x m

	// Intercept flags of the designs the fit was computed against.
	XIntercept bool
	ZIntercept bool

	// BackX and BackZ record whether a back-estimated trailing row or
	// column has been appended to B and VarB.
	BackX bool
	BackZ bool
}

// NewFit validates the shape invariants shared by every fit.
func NewFit(b, varB *mat.Dense, sigma *mat.SymDense, xIntercept, zIntercept bool) (*Fit, error) {
	if b == nil || varB == nil || sigma == nil {
		return nil, fmt.Errorf("%w: fit components must be non-nil", core.ErrPrecondition)
	}
	br, bc := b.Dims()
	vr, vc := varB.Dims()
	if br != vr || bc != vc {
		return nil, core.NewShapeError("VarB rows", vr, br)
	}
	return &Fit{B: b, VarB: varB, Sigma: sigma, XIntercept: xIntercept, ZIntercept: zIntercept}, nil
}

// Coef returns a copy of the coefficient matrix. When a side was augmented
// by back-estimation, dropBackRow / dropBackCol strip the trailing entry so
// the result matches the original design width again. Requesting a strip on
// a side that carries no back-estimate is a contract violation.
func (f *Fit) Coef(dropBackRow, dropBackCol bool) (*mat.Dense, error) {
	if dropBackRow && !f.BackX {
		return nil, fmt.Errorf("%w: no back-estimated row", core.ErrNoBackEstimate)
	}
	if dropBackCol && !f.BackZ {
		return nil, fmt.Errorf("%w: no back-estimated column", core.ErrNoBackEstimate)
	}
	p, q := f.B.Dims()
	if dropBackRow {
		p--
	}
	if dropBackCol {
		q--
	}
	return mat.DenseCopyOf(f.B.Slice(0, p, 0, q)), nil
}

// CoefVar returns the matching slice of the variance matrix, under the same
// flag contract as Coef.
func (f *Fit) CoefVar(dropBackRow, dropBackCol bool) (*mat.Dense, error) {
	if dropBackRow && !f.BackX {
		return nil, fmt.Errorf("%w: no back-estimated row", core.ErrNoBackEstimate)
	}
	if dropBackCol && !f.BackZ {
		return nil, fmt.Errorf("%w: no back-estimated column", core.ErrNoBackEstimate)
	}
	p, q := f.VarB.Dims()
	if dropBackRow {
		p--
	}
	if dropBackCol {
		q--
	}
	return mat.DenseCopyOf(f.VarB.Slice(0, p, 0, q)), nil
}

// TStats returns the cellwise t statistics B / sqrt(VarB). With mainEffOnly
// the intercept row and column are dropped, leaving only the treatment
// effects (back-estimated entries included). Nonpositive variances under a
// nonzero coefficient mean the fit cannot support a t statistic.
func (f *Fit) TStats(mainEffOnly bool) (*mat.Dense, error) {
	p, q := f.B.Dims()
	rowStart, colStart := 0, 0
	if mainEffOnly {
		if f.XIntercept {
			rowStart = 1
		}
		if f.ZIntercept {
			colStart = 1
		}
		if rowStart >= p || colStart >= q {
			return nil, fmt.Errorf("%w: no effect entries beyond the intercept", core.ErrDegenerateData)
		}
	}
	out := mat.NewDense(p-rowStart, q-colStart, nil)
	for i := rowStart; i < p; i++ {
		for j := colStart; j < q; j++ {
			b := f.B.At(i, j)
			v := f.VarB.At(i, j)
			if v < 0 || (v == 0 && b != 0) {
				return nil, fmt.Errorf("%w: variance %g at entry (%d,%d)", core.ErrDegenerateData, v, i, j)
			}
			t := 0.0
			if v > 0 {
				t = b / math.Sqrt(v)
			}
			out.Set(i-rowStart, j-colStart, t)
		}
	}
	return out, nil
}
