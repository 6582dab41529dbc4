package backest

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/mlm"
	"screenlm/domain/screen"
)

// Apply reconstructs the omitted sum-contrast level on the requested sides
// of a fit and returns a new fit with the coefficient and variance matrices
// grown by one trailing row (X side), one trailing column (Z side), or both
// plus the interaction corner. The input fit is never mutated, so callers
// can share one fit across permutation trials.
//
// The contrast for a design [intercept | level effects] is [0, -1, ..., -1]:
// the omitted level's effect is the negative sum of the estimated ones, and
// its sampling variance follows from the quadratic form of the contrast
// with the row-side covariance (X'X)^-1 and the column-side covariance
// (Z'Z)^-1 Z' Sigma Z (Z'Z)^-1.
func Apply(fit *mlm.Fit, ds *screen.Dataset, onX, onZ bool) (*mlm.Fit, error) {
	if !onX && !onZ {
		return fit, nil
	}
	if onX {
		if !fit.XIntercept {
			return nil, fmt.Errorf("%w: X side", core.ErrNoIntercept)
		}
		if fit.BackX {
			return nil, fmt.Errorf("%w: X side already back-estimated", core.ErrPrecondition)
		}
	}
	if onZ {
		if !fit.ZIntercept {
			return nil, fmt.Errorf("%w: Z side", core.ErrNoIntercept)
		}
		if fit.BackZ {
			return nil, fmt.Errorf("%w: Z side already back-estimated", core.ErrPrecondition)
		}
	}

	p, q := fit.B.Dims()
	if ds.XCols() != p {
		return nil, core.NewShapeError("X design columns", ds.XCols(), p)
	}
	if ds.ZCols() != q {
		return nil, core.NewShapeError("Z design columns", ds.ZCols(), q)
	}
	if onX && p < 2 {
		return nil, fmt.Errorf("%w: X design has no contrast columns", core.ErrPrecondition)
	}
	if onZ && q < 2 {
		return nil, fmt.Errorf("%w: Z design has no contrast columns", core.ErrPrecondition)
	}

	varLeft, err := gramInverse(ds.X)
	if err != nil {
		return nil, fmt.Errorf("X side: %w", err)
	}
	varRight, err := columnCovariance(ds.Z, fit.Sigma)
	if err != nil {
		return nil, fmt.Errorf("Z side: %w", err)
	}

	cRow := contrast(p)
	dCol := contrast(q)

	outRows, outCols := p, q
	if onX {
		outRows++
	}
	if onZ {
		outCols++
	}
	b := mat.NewDense(outRows, outCols, nil)
	varB := mat.NewDense(outRows, outCols, nil)
	b.Slice(0, p, 0, q).(*mat.Dense).Copy(fit.B)
	varB.Slice(0, p, 0, q).(*mat.Dense).Copy(fit.VarB)

	if onX {
		// New row: C*B, variance KronDiag(C varLeft C', varRight).
		var row mat.Dense
		row.Mul(cRow.T(), fit.B)
		scale := mat.Inner(cRow, varLeft, cRow)
		varRow, err := KronDiag(mat.NewDense(1, 1, []float64{scale}), varRight)
		if err != nil {
			return nil, err
		}
		for j := 0; j < q; j++ {
			b.Set(p, j, row.At(0, j))
			varB.Set(p, j, varRow.At(0, j))
		}
	}
	if onZ {
		// New column: B*D, variance KronDiag(varLeft, D' varRight D).
		var col mat.Dense
		col.Mul(fit.B, dCol)
		scale := mat.Inner(dCol, varRight, dCol)
		varCol, err := KronDiag(varLeft, mat.NewDense(1, 1, []float64{scale}))
		if err != nil {
			return nil, err
		}
		for i := 0; i < p; i++ {
			b.Set(i, q, col.At(i, 0))
			varB.Set(i, q, varCol.At(i, 0))
		}
	}
	if onX && onZ {
		// Corner: C*B*D with both quadratic forms multiplied.
		var cb mat.Dense
		cb.Mul(cRow.T(), fit.B)
		var corner mat.Dense
		corner.Mul(&cb, dCol)
		b.Set(p, q, corner.At(0, 0))
		varB.Set(p, q, mat.Inner(cRow, varLeft, cRow)*mat.Inner(dCol, varRight, dCol))
	}

	return &mlm.Fit{
		B:          b,
		VarB:       varB,
		Sigma:      fit.Sigma,
		XIntercept: fit.XIntercept,
		ZIntercept: fit.ZIntercept,
		BackX:      fit.BackX || onX,
		BackZ:      fit.BackZ || onZ,
	}, nil
}

// contrast builds the sum-contrast vector [0, -1, ..., -1] of length n:
// zero over the intercept, minus one over every estimated level effect.
func contrast(n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 1; i < n; i++ {
		v.SetVec(i, -1)
	}
	return v
}

// gramInverse computes (M'M)^-1.
func gramInverse(m *mat.Dense) (*mat.Dense, error) {
	var gram mat.Dense
	gram.Mul(m.T(), m)
	var inv mat.Dense
	if err := inv.Inverse(&gram); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularGram, err)
	}
	return &inv, nil
}

// columnCovariance projects the residual covariance through the column
// design: (Z'Z)^-1 Z' Sigma Z (Z'Z)^-1.
func columnCovariance(z *mat.Dense, sigma *mat.SymDense) (*mat.Dense, error) {
	var gram mat.Dense
	gram.Mul(z.T(), z)
	var inv mat.Dense
	if err := inv.Inverse(&gram); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularGram, err)
	}
	var proj mat.Dense
	proj.Mul(&inv, z.T())
	var ps mat.Dense
	ps.Mul(&proj, sigma)
	var out mat.Dense
	out.Mul(&ps, proj.T())
	return &out, nil
}
