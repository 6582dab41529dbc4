package backest

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/mlm"
	"screenlm/domain/screen"
)

// threeByTwoFixture builds a 3-condition, 2-clone screen with two replicates
// per level on both sides, sum-contrast encoded with intercepts. The gram
// matrices work out to small rational inverses, so every expected variance
// below is exact.
func threeByTwoFixture(t *testing.T) (*screen.Dataset, *mlm.Fit) {
	t.Helper()

	x := mat.NewDense(6, 3, []float64{
		1, 1, 0,
		1, 1, 0,
		1, 0, 1,
		1, 0, 1,
		1, -1, -1,
		1, -1, -1,
	})
	z := mat.NewDense(4, 2, []float64{
		1, 1,
		1, 1,
		1, -1,
		1, -1,
	})
	y := mat.NewDense(6, 4, nil)
	ds, err := screen.NewDataset(y, x, z, true, true)
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}

	b := mat.NewDense(3, 2, []float64{
		10, 1,
		2, 3,
		4, 5,
	})
	varB := mat.NewDense(3, 2, []float64{
		0.1, 0.2,
		0.3, 0.4,
		0.5, 0.6,
	})
	sigma := mat.NewSymDense(4, nil)
	for i := 0; i < 4; i++ {
		sigma.SetSym(i, i, 1)
	}
	fit, err := mlm.NewFit(b, varB, sigma, true, true)
	if err != nil {
		t.Fatalf("NewFit failed: %v", err)
	}
	return ds, fit
}

func TestApplyBothSides(t *testing.T) {
	ds, fit := threeByTwoFixture(t)

	aug, err := Apply(fit, ds, true, true)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !aug.BackX || !aug.BackZ {
		t.Error("Expected both back-estimation flags set")
	}
	r, c := aug.B.Dims()
	if r != 4 || c != 3 {
		t.Fatalf("Expected augmented 4x3 coefficients, got %dx%d", r, c)
	}

	wantB := [][]float64{
		{10, 1, -1},
		{2, 3, -3},
		{4, 5, -5},
		{-6, -8, 8},
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			if got := aug.B.At(i, j); math.Abs(got-wantB[i][j]) > 1e-12 {
				t.Errorf("B(%d,%d) = %g, want %g", i, j, got, wantB[i][j])
			}
		}
	}

	// varLeft contrast form is 1/3, varRight diagonal is 1/4.
	wantVar := [][]float64{
		{0.1, 0.2, 1.0 / 24},
		{0.3, 0.4, 1.0 / 12},
		{0.5, 0.6, 1.0 / 12},
		{1.0 / 12, 1.0 / 12, 1.0 / 12},
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			if got := aug.VarB.At(i, j); math.Abs(got-wantVar[i][j]) > 1e-12 {
				t.Errorf("VarB(%d,%d) = %g, want %g", i, j, got, wantVar[i][j])
			}
		}
	}
}

// TestApplyZeroSum checks the defining property of the reconstruction: the
// level effects, estimated plus reconstructed, sum to zero on every
// augmented side.
func TestApplyZeroSum(t *testing.T) {
	ds, fit := threeByTwoFixture(t)

	aug, err := Apply(fit, ds, true, true)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	r, c := aug.B.Dims()
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 1; i < r; i++ {
			sum += aug.B.At(i, j)
		}
		if math.Abs(sum) > 1e-12 {
			t.Errorf("Column %d effect rows sum to %g, want 0", j, sum)
		}
	}
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 1; j < c; j++ {
			sum += aug.B.At(i, j)
		}
		if math.Abs(sum) > 1e-12 {
			t.Errorf("Row %d effect columns sum to %g, want 0", i, sum)
		}
	}
}

func TestApplySingleSide(t *testing.T) {
	ds, fit := threeByTwoFixture(t)

	xOnly, err := Apply(fit, ds, true, false)
	if err != nil {
		t.Fatalf("Apply(X only) failed: %v", err)
	}
	if r, c := xOnly.B.Dims(); r != 4 || c != 2 {
		t.Errorf("Expected 4x2 after X-side augmentation, got %dx%d", r, c)
	}
	if xOnly.BackZ {
		t.Error("Expected Z side untouched")
	}
	if got := xOnly.B.At(3, 0); math.Abs(got-(-6)) > 1e-12 {
		t.Errorf("Expected reconstructed row entry -6, got %g", got)
	}

	zOnly, err := Apply(fit, ds, false, true)
	if err != nil {
		t.Fatalf("Apply(Z only) failed: %v", err)
	}
	if r, c := zOnly.B.Dims(); r != 3 || c != 3 {
		t.Errorf("Expected 3x3 after Z-side augmentation, got %dx%d", r, c)
	}
	if got := zOnly.B.At(2, 2); math.Abs(got-(-5)) > 1e-12 {
		t.Errorf("Expected reconstructed column entry -5, got %g", got)
	}
}

func TestApplyIsPure(t *testing.T) {
	ds, fit := threeByTwoFixture(t)

	if _, err := Apply(fit, ds, true, true); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if r, c := fit.B.Dims(); r != 3 || c != 2 {
		t.Errorf("Expected input fit to stay 3x2, got %dx%d", r, c)
	}
	if fit.BackX || fit.BackZ {
		t.Error("Expected input fit flags untouched")
	}

	// No requested side returns the fit unchanged.
	same, err := Apply(fit, ds, false, false)
	if err != nil {
		t.Fatalf("Apply(no sides) failed: %v", err)
	}
	if same != fit {
		t.Error("Expected the identical fit back when no side is requested")
	}
}

func TestApplyPreconditions(t *testing.T) {
	ds, fit := threeByTwoFixture(t)

	noIntercept := *fit
	noIntercept.XIntercept = false
	if _, err := Apply(&noIntercept, ds, true, false); !errors.Is(err, core.ErrNoIntercept) {
		t.Errorf("Expected ErrNoIntercept for X side, got %v", err)
	}

	noZ := *fit
	noZ.ZIntercept = false
	if _, err := Apply(&noZ, ds, false, true); !errors.Is(err, core.ErrNoIntercept) {
		t.Errorf("Expected ErrNoIntercept for Z side, got %v", err)
	}

	aug, err := Apply(fit, ds, true, false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := Apply(aug, ds, true, false); !errors.Is(err, core.ErrPrecondition) {
		t.Errorf("Expected precondition error for repeated augmentation, got %v", err)
	}
}

func TestApplySingularGram(t *testing.T) {
	// Duplicate contrast columns make X'X singular.
	x := mat.NewDense(4, 3, []float64{
		1, 1, 1,
		1, 1, 1,
		1, -1, -1,
		1, -1, -1,
	})
	z := mat.NewDense(2, 2, []float64{
		1, 1,
		1, -1,
	})
	y := mat.NewDense(4, 2, nil)
	ds, err := screen.NewDataset(y, x, z, true, true)
	if err != nil {
		t.Fatalf("NewDataset failed: %v", err)
	}
	fit, err := mlm.NewFit(mat.NewDense(3, 2, nil), mat.NewDense(3, 2, nil), mat.NewSymDense(2, nil), true, true)
	if err != nil {
		t.Fatalf("NewFit failed: %v", err)
	}

	if _, err := Apply(fit, ds, true, false); !errors.Is(err, core.ErrSingularGram) {
		t.Errorf("Expected ErrSingularGram, got %v", err)
	}
}
