// Package backest reconstructs the omitted level of sum-contrast encoded
// designs after a matrix linear model fit, propagating sampling variances
// through the Kronecker structure of the coefficient covariance.
package backest

import (
	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
)

// KronDiag returns the diagonal of the Kronecker product a (x) b, reshaped
// to rows(a) x rows(b), without materializing the full product. Entry (i,j)
// is a[i,i] * b[j,j], the variance scale of coefficient cell (i,j) when the
// coefficient covariance factors into a row side and a column side.
func KronDiag(a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	if ar != ac {
		return nil, core.NewShapeError("kron left columns", ac, ar)
	}
	br, bc := b.Dims()
	if br != bc {
		return nil, core.NewShapeError("kron right columns", bc, br)
	}
	if ar == 0 || br == 0 {
		return nil, core.NewShapeError("kron factor size", 0, 1)
	}
	out := mat.NewDense(ar, br, nil)
	for i := 0; i < ar; i++ {
		ai := a.At(i, i)
		for j := 0; j < br; j++ {
			out.Set(i, j, ai*b.At(j, j))
		}
	}
	return out, nil
}
