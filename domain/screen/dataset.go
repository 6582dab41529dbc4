// Package screen holds the plate-data abstraction consumed by the fitting
// and post-processing engines: a response matrix plus the row- and
// column-side design matrices that describe it.
package screen

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
)

// Dataset bundles one screen's response matrix with its designs.
//
// Rows of Y are measured plates (condition replicates), columns of Y are
// plate positions (clone replicates). X describes the rows of Y and Z the
// columns, so rows(X) == rows(Y) and rows(Z) == cols(Y). The intercept
// flags record whether the first column of each design is an all-ones
// intercept; back-estimation and the coefficient accessors depend on them.
type Dataset struct {
	Y *mat.Dense // response, n x m
	X *mat.Dense // row design, n x p
	Z *mat.Dense // column design, m x q

	XIntercept bool
	ZIntercept bool

	// Optional labels for reporting; never consulted by the engines.
	ConditionNames []string
	CloneNames     []string
}

// NewDataset validates the alignment invariants and wraps the matrices.
// The matrices are referenced, not copied; callers must not mutate them
// while engines hold the dataset.
func NewDataset(y, x, z *mat.Dense, xIntercept, zIntercept bool) (*Dataset, error) {
	if y == nil || x == nil || z == nil {
		return nil, fmt.Errorf("%w: dataset matrices must be non-nil", core.ErrPrecondition)
	}
	n, m := y.Dims()
	if n == 0 || m == 0 {
		return nil, core.ErrEmptyResponse
	}
	xr, _ := x.Dims()
	if xr != n {
		return nil, core.NewShapeError("X rows", xr, n)
	}
	zr, _ := z.Dims()
	if zr != m {
		return nil, core.NewShapeError("Z rows", zr, m)
	}
	return &Dataset{Y: y, X: x, Z: z, XIntercept: xIntercept, ZIntercept: zIntercept}, nil
}

// Dims returns the response dimensions (rows, columns).
func (d *Dataset) Dims() (int, int) {
	return d.Y.Dims()
}

// XCols returns the number of row-design columns.
func (d *Dataset) XCols() int {
	_, p := d.X.Dims()
	return p
}

// ZCols returns the number of column-design columns.
func (d *Dataset) ZCols() int {
	_, q := d.Z.Dims()
	return q
}

// WithResponse returns a shallow copy of the dataset carrying a different
// response matrix. Permutation trials use this so no trial ever mutates
// the caller's data.
func (d *Dataset) WithResponse(y *mat.Dense) (*Dataset, error) {
	yr, yc := y.Dims()
	n, m := d.Y.Dims()
	if yr != n || yc != m {
		return nil, core.NewShapeError("replacement response rows", yr, n)
	}
	out := *d
	out.Y = y
	return &out, nil
}

// WithIntercepts returns a shallow copy whose designs carry intercept
// columns on the requested sides, prepending an all-ones column where one
// is missing. Sides that already carry an intercept pass through untouched,
// so the call is idempotent.
func (d *Dataset) WithIntercepts(onX, onZ bool) *Dataset {
	out := *d
	if onX && !d.XIntercept {
		out.X = prependOnes(d.X)
		out.XIntercept = true
	}
	if onZ && !d.ZIntercept {
		out.Z = prependOnes(d.Z)
		out.ZIntercept = true
	}
	return &out
}

func prependOnes(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	ones := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		ones.Set(i, 0, 1)
	}
	out := mat.NewDense(r, c+1, nil)
	out.Augment(ones, m)
	return out
}
