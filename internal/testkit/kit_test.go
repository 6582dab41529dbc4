package testkit

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
	"screenlm/domain/screen"
)

func TestMLMScreenDeterminism(t *testing.T) {
	cfg := ScreenConfig{Conditions: 3, Clones: 2, RowReps: 2, ColReps: 2, NoiseSD: 0.5, Seed: 42}

	a, err := MLMScreen(cfg)
	if err != nil {
		t.Fatalf("MLMScreen failed: %v", err)
	}
	b, err := MLMScreen(cfg)
	if err != nil {
		t.Fatalf("MLMScreen failed: %v", err)
	}
	if !mat.Equal(a.Dataset.Y, b.Dataset.Y) {
		t.Error("Expected identical responses for the same seed")
	}
	if !mat.Equal(a.Truth, b.Truth) {
		t.Error("Expected identical truth for the same seed")
	}

	cfg.Seed = 43
	c, err := MLMScreen(cfg)
	if err != nil {
		t.Fatalf("MLMScreen failed: %v", err)
	}
	if mat.Equal(a.Dataset.Y, c.Dataset.Y) {
		t.Error("Expected a different seed to change the plate")
	}
}

func TestMLMScreenStructure(t *testing.T) {
	cfg := ScreenConfig{Conditions: 4, Clones: 6, RowReps: 3, ColReps: 2, Seed: 7}
	s, err := MLMScreen(cfg)
	if err != nil {
		t.Fatalf("MLMScreen failed: %v", err)
	}

	n, m := s.Dataset.Dims()
	if n != 12 || m != 12 {
		t.Errorf("Expected 12x12 response, got %dx%d", n, m)
	}
	if s.Dataset.XCols() != 4 || s.Dataset.ZCols() != 6 {
		t.Errorf("Expected 4 and 6 design columns, got %d and %d", s.Dataset.XCols(), s.Dataset.ZCols())
	}
	if !s.Dataset.XIntercept || !s.Dataset.ZIntercept {
		t.Error("Expected intercept flags on both sides")
	}
	if tr, tc := s.Truth.Dims(); tr != 4 || tc != 6 {
		t.Errorf("Expected 4x6 truth, got %dx%d", tr, tc)
	}

	// Balanced sum contrasts: intercept column all ones, contrast columns
	// summing to zero.
	x := s.Dataset.X
	for i := 0; i < n; i++ {
		if x.At(i, 0) != 1 {
			t.Fatalf("Expected intercept 1 at row %d", i)
		}
	}
	for c := 1; c < 4; c++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x.At(i, c)
		}
		if sum != 0 {
			t.Errorf("Expected contrast column %d to sum to zero, got %g", c, sum)
		}
	}
}

func TestMLMScreenNoiseFreeSurface(t *testing.T) {
	cfg := ScreenConfig{Conditions: 3, Clones: 3, RowReps: 2, ColReps: 2, Seed: 11}
	s, err := MLMScreen(cfg)
	if err != nil {
		t.Fatalf("MLMScreen failed: %v", err)
	}
	want := surface(s.Dataset.X, s.Truth, s.Dataset.Z)
	if !mat.Equal(s.Dataset.Y, want) {
		t.Error("Expected the noise-free response to equal the generating surface")
	}
}

func TestIndicatorScreenValidates(t *testing.T) {
	cfg := ScreenConfig{Conditions: 3, Clones: 4, RowReps: 3, ColReps: 2, NoiseSD: 1, Seed: 5}
	s, err := IndicatorScreen(cfg)
	if err != nil {
		t.Fatalf("IndicatorScreen failed: %v", err)
	}
	if err := screen.ValidateIndicator(s.Dataset.X); err != nil {
		t.Errorf("Expected a valid condition indicator design: %v", err)
	}
	if err := screen.ValidateIndicator(s.Dataset.Z); err != nil {
		t.Errorf("Expected a valid clone indicator design: %v", err)
	}
	if err := s.Dataset.ValidateForSScore(); err != nil {
		t.Errorf("Expected an S-score ready dataset: %v", err)
	}
}

func TestScreenConfigValidation(t *testing.T) {
	_, err := MLMScreen(ScreenConfig{Conditions: 1, Clones: 2, RowReps: 1, ColReps: 1})
	if !errors.Is(err, core.ErrPrecondition) {
		t.Errorf("Expected ErrPrecondition for a single condition, got %v", err)
	}
	_, err = IndicatorScreen(ScreenConfig{Conditions: 2, Clones: 2, RowReps: 0, ColReps: 1})
	if !errors.Is(err, core.ErrPrecondition) {
		t.Errorf("Expected ErrPrecondition for zero replicates, got %v", err)
	}
}
