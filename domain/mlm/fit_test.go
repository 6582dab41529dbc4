package mlm

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/screen"
)

func newTestFit(t *testing.T, b, varB *mat.Dense, xInt, zInt bool) *Fit {
	t.Helper()
	_, m := b.Dims()
	fit, err := NewFit(b, varB, mat.NewSymDense(m, nil), xInt, zInt)
	if err != nil {
		t.Fatalf("NewFit failed: %v", err)
	}
	return fit
}

func TestNewFitShapeInvariant(t *testing.T) {
	b := mat.NewDense(2, 3, nil)
	varB := mat.NewDense(3, 2, nil)
	if _, err := NewFit(b, varB, mat.NewSymDense(3, nil), false, false); !errors.Is(err, core.ErrBadShape) {
		t.Errorf("Expected ErrBadShape for mismatched VarB, got %v", err)
	}
}

func TestCoefStripsBackEstimates(t *testing.T) {
	b := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	fit := newTestFit(t, b, mat.NewDense(3, 3, nil), true, true)
	fit.BackX = true
	fit.BackZ = true

	full, err := fit.Coef(false, false)
	if err != nil {
		t.Fatalf("Coef(false,false) failed: %v", err)
	}
	if r, c := full.Dims(); r != 3 || c != 3 {
		t.Errorf("Expected full 3x3 coefficients, got %dx%d", r, c)
	}

	stripped, err := fit.Coef(true, true)
	if err != nil {
		t.Fatalf("Coef(true,true) failed: %v", err)
	}
	if r, c := stripped.Dims(); r != 2 || c != 2 {
		t.Fatalf("Expected stripped 2x2 coefficients, got %dx%d", r, c)
	}
	if stripped.At(1, 1) != 5 {
		t.Errorf("Expected stripped (1,1) = 5, got %g", stripped.At(1, 1))
	}

	// Coef returns a copy, never a view into the fit.
	stripped.Set(0, 0, 99)
	if fit.B.At(0, 0) != 1 {
		t.Error("Expected Coef result to be independent of the fit")
	}
}

func TestCoefRejectsStripWithoutBackEstimate(t *testing.T) {
	fit := newTestFit(t, mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil), true, true)
	if _, err := fit.Coef(true, false); !errors.Is(err, core.ErrNoBackEstimate) {
		t.Errorf("Expected ErrNoBackEstimate for row strip, got %v", err)
	}
	if _, err := fit.Coef(false, true); !errors.Is(err, core.ErrNoBackEstimate) {
		t.Errorf("Expected ErrNoBackEstimate for column strip, got %v", err)
	}
}

func TestTStats(t *testing.T) {
	b := mat.NewDense(2, 2, []float64{1, 4, 9, 16})
	varB := mat.NewDense(2, 2, []float64{1, 4, 9, 16})
	fit := newTestFit(t, b, varB, true, true)

	all, err := fit.TStats(false)
	if err != nil {
		t.Fatalf("TStats(false) failed: %v", err)
	}
	want := [][]float64{{1, 2}, {3, 4}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if got := all.At(i, j); math.Abs(got-want[i][j]) > 1e-12 {
				t.Errorf("Expected t(%d,%d) = %g, got %g", i, j, want[i][j], got)
			}
		}
	}

	main, err := fit.TStats(true)
	if err != nil {
		t.Fatalf("TStats(true) failed: %v", err)
	}
	if r, c := main.Dims(); r != 1 || c != 1 {
		t.Fatalf("Expected 1x1 main-effect t matrix, got %dx%d", r, c)
	}
	if got := main.At(0, 0); math.Abs(got-4) > 1e-12 {
		t.Errorf("Expected main-effect t = 4, got %g", got)
	}
}

func TestTStatsDegenerateVariance(t *testing.T) {
	b := mat.NewDense(1, 2, []float64{1, 0})
	varB := mat.NewDense(1, 2, []float64{0, 0})
	fit := newTestFit(t, b, varB, false, false)
	if _, err := fit.TStats(false); !errors.Is(err, core.ErrDegenerateData) {
		t.Errorf("Expected ErrDegenerateData for zero variance under nonzero coefficient, got %v", err)
	}

	// Zero over zero is a clean zero statistic.
	fit = newTestFit(t, mat.NewDense(1, 1, []float64{0}), mat.NewDense(1, 1, []float64{0}), false, false)
	ts, err := fit.TStats(false)
	if err != nil {
		t.Fatalf("TStats failed: %v", err)
	}
	if ts.At(0, 0) != 0 {
		t.Errorf("Expected t = 0 for zero coefficient and variance, got %g", ts.At(0, 0))
	}
}

func TestPredictReconcilesIntercepts(t *testing.T) {
	// Fitted with an X intercept; callers supply a design without one.
	b := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	fit := newTestFit(t, b, mat.NewDense(2, 2, nil), true, false)

	xNew := mat.NewDense(2, 1, []float64{10, 20})
	zNew := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})

	var events []DiagnosticEvent
	fitted, err := fit.Predict(
		Design{M: xNew, Intercept: false},
		Design{M: zNew, Intercept: false},
		PredictConfig{Sink: CollectDiagnostics(&events)},
	)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	// [1 10; 1 20] * B = [31 42; 61 82], then times Z'.
	want := [][]float64{{31, 42, 73}, {61, 82, 143}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if got := fitted.At(i, j); math.Abs(got-want[i][j]) > 1e-12 {
				t.Errorf("Expected fitted(%d,%d) = %g, got %g", i, j, want[i][j], got)
			}
		}
	}

	if len(events) != 1 {
		t.Fatalf("Expected one reconciliation event, got %d", len(events))
	}
	if events[0].Kind != DiagInterceptAdded || events[0].Side != "X" {
		t.Errorf("Expected intercept_added on X, got %s on %s", events[0].Kind, events[0].Side)
	}
	if events[0].ID.String() == "" {
		t.Error("Expected event to carry an ID")
	}
}

func TestPredictRemovesExtraIntercept(t *testing.T) {
	// Fitted without intercepts; caller design carries one.
	b := mat.NewDense(1, 1, []float64{2})
	fit := newTestFit(t, b, mat.NewDense(1, 1, nil), false, false)

	xNew := mat.NewDense(2, 2, []float64{1, 3, 1, 5})
	zNew := mat.NewDense(2, 1, []float64{1, 2})

	var events []DiagnosticEvent
	fitted, err := fit.Predict(
		Design{M: xNew, Intercept: true},
		Design{M: zNew, Intercept: false},
		PredictConfig{Sink: CollectDiagnostics(&events)},
	)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got := fitted.At(1, 1); math.Abs(got-20) > 1e-12 {
		t.Errorf("Expected fitted(1,1) = 20, got %g", got)
	}
	if len(events) != 1 || events[0].Kind != DiagInterceptRemoved {
		t.Errorf("Expected a single intercept_removed event, got %+v", events)
	}
}

func TestResid(t *testing.T) {
	b := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	fit := newTestFit(t, b, mat.NewDense(2, 2, nil), true, false)

	x := mat.NewDense(2, 1, []float64{10, 20})
	z := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})
	y := mat.NewDense(2, 3, []float64{32, 43, 74, 62, 83, 144})
	ds, err := screen.NewDataset(y, x, z, false, false)
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	resid, err := fit.Resid(ds, PredictConfig{})
	if err != nil {
		t.Fatalf("Resid failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if got := resid.At(i, j); math.Abs(got-1) > 1e-12 {
				t.Errorf("Expected residual 1 at (%d,%d), got %g", i, j, got)
			}
		}
	}
}

func TestPredictShapeMismatch(t *testing.T) {
	fit := newTestFit(t, mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil), false, false)
	xNew := mat.NewDense(2, 3, nil) // 3 columns against 2 coefficient rows
	zNew := mat.NewDense(2, 2, nil)
	_, err := fit.Predict(Design{M: xNew}, Design{M: zNew}, PredictConfig{})
	if !errors.Is(err, core.ErrBadShape) {
		t.Errorf("Expected ErrBadShape, got %v", err)
	}
}

func TestParseShrinkageTarget(t *testing.T) {
	for _, target := range []ShrinkageTarget{
		TargetIdentity, TargetConstantDiagonal, TargetCommonCovariance, TargetUnequalDiagonal,
	} {
		parsed, err := ParseShrinkageTarget(target.String())
		if err != nil {
			t.Errorf("ParseShrinkageTarget(%q) failed: %v", target.String(), err)
		}
		if parsed != target {
			t.Errorf("Expected %v to round-trip, got %v", target, parsed)
		}
	}
	if _, err := ParseShrinkageTarget("bogus"); err == nil {
		t.Error("Expected error for unknown target name")
	}
}

func TestFitOptionsValidate(t *testing.T) {
	if err := (FitOptions{}).Validate(4); err != nil {
		t.Errorf("Expected zero options to validate, got %v", err)
	}
	bad := FitOptions{Weights: []float64{1, -1, 1, 1}}
	if err := bad.Validate(4); !errors.Is(err, core.ErrBadWeights) {
		t.Errorf("Expected ErrBadWeights for negative weight, got %v", err)
	}
	short := FitOptions{Weights: []float64{1, 1}}
	if err := short.Validate(4); !errors.Is(err, core.ErrBadShape) {
		t.Errorf("Expected ErrBadShape for short weights, got %v", err)
	}
}
