package screen

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
)

// ValidateIndicator verifies that a design is a plain 0/1 indicator matrix
// suitable for S scoring: every entry is exactly 0 or 1, every row is
// assigned to at least one group, and no column is an all-ones intercept.
func ValidateIndicator(m *mat.Dense) error {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("%w: indicator matrix is empty", core.ErrNotIndicator)
	}
	for i := 0; i < rows; i++ {
		assigned := false
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if v != 0 && v != 1 {
				return fmt.Errorf("%w: entry (%d,%d) is %g", core.ErrNotIndicator, i, j, v)
			}
			if v == 1 {
				assigned = true
			}
		}
		if !assigned {
			return fmt.Errorf("%w: row %d belongs to no group", core.ErrNotIndicator, i)
		}
	}
	for j := 0; j < cols; j++ {
		ones := 0
		for i := 0; i < rows; i++ {
			if m.At(i, j) == 1 {
				ones++
			}
		}
		if ones == rows {
			return fmt.Errorf("%w: column %d is an intercept", core.ErrNotIndicator, j)
		}
	}
	return nil
}

// ValidateForSScore checks the preconditions of the S-score engine: both
// designs are indicator matrices and neither is flagged as carrying an
// intercept column.
func (d *Dataset) ValidateForSScore() error {
	if d.XIntercept || d.ZIntercept {
		return fmt.Errorf("%w: S scoring requires intercept-free indicator designs", core.ErrPrecondition)
	}
	if err := ValidateIndicator(d.X); err != nil {
		return fmt.Errorf("row design: %w", err)
	}
	if err := ValidateIndicator(d.Z); err != nil {
		return fmt.Errorf("column design: %w", err)
	}
	return nil
}
