package mlm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/screen"
)

// Design pairs a prediction design matrix with whether its first column is
// an all-ones intercept.
type Design struct {
	M         *mat.Dense
	Intercept bool
}

// PredictConfig controls how coefficients are selected for prediction and
// where reconciliation diagnostics go.
type PredictConfig struct {
	// DropBackRow / DropBackCol strip back-estimated entries so the
	// coefficient matrix matches a design in the original contrast basis.
	// Leave them false to predict from the augmented coefficients with a
	// full-level design.
	DropBackRow bool
	DropBackCol bool

	// Sink receives intercept reconciliation events. Nil drops them.
	Sink DiagnosticSink
}

// Predict computes X*B*Z' for new designs. Each design's intercept presence
// is reconciled with the fitted model's: a missing intercept column is
// prepended, an extra one is removed, and either adjustment is reported to
// the sink.
func (f *Fit) Predict(xNew, zNew Design, cfg PredictConfig) (*mat.Dense, error) {
	coefB, err := f.Coef(cfg.DropBackRow, cfg.DropBackCol)
	if err != nil {
		return nil, err
	}
	x, err := reconcileIntercept(xNew, f.XIntercept, "X", cfg.Sink)
	if err != nil {
		return nil, err
	}
	z, err := reconcileIntercept(zNew, f.ZIntercept, "Z", cfg.Sink)
	if err != nil {
		return nil, err
	}

	p, q := coefB.Dims()
	if _, xc := x.Dims(); xc != p {
		return nil, core.NewShapeError("X columns", xc, p)
	}
	if _, zc := z.Dims(); zc != q {
		return nil, core.NewShapeError("Z columns", zc, q)
	}

	var xb, fitted mat.Dense
	xb.Mul(x, coefB)
	fitted.Mul(&xb, z.T())
	return &fitted, nil
}

// Resid returns Y - X*B*Z' for the dataset the fit came from (or any
// dataset with compatible designs), under the same reconciliation rules
// as Predict.
func (f *Fit) Resid(ds *screen.Dataset, cfg PredictConfig) (*mat.Dense, error) {
	fitted, err := f.Predict(
		Design{M: ds.X, Intercept: ds.XIntercept},
		Design{M: ds.Z, Intercept: ds.ZIntercept},
		cfg,
	)
	if err != nil {
		return nil, err
	}
	var resid mat.Dense
	resid.Sub(ds.Y, fitted)
	return &resid, nil
}

// reconcileIntercept aligns a caller design with the intercept state the
// fit was computed under.
func reconcileIntercept(d Design, wantIntercept bool, side string, sink DiagnosticSink) (*mat.Dense, error) {
	if d.M == nil {
		return nil, fmt.Errorf("%w: %s design must be non-nil", core.ErrPrecondition, side)
	}
	n, c := d.M.Dims()
	switch {
	case wantIntercept && !d.Intercept:
		ones := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			ones.Set(i, 0, 1)
		}
		var out mat.Dense
		out.Augment(ones, d.M)
		emit(sink, DiagInterceptAdded, side,
			fmt.Sprintf("prepended intercept column to %s design to match the fitted model", side))
		return &out, nil
	case !wantIntercept && d.Intercept:
		if c < 2 {
			return nil, fmt.Errorf("%w: %s design has only an intercept column", core.ErrPrecondition, side)
		}
		out := mat.DenseCopyOf(d.M.Slice(0, n, 1, c))
		emit(sink, DiagInterceptRemoved, side,
			fmt.Sprintf("removed intercept column from %s design to match the fitted model", side))
		return out, nil
	default:
		return d.M, nil
	}
}
