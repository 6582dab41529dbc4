package mlm

import (
	"fmt"
	"math"

	"screenlm/domain/core"
)

// ShrinkageTarget selects the structured target the residual covariance is
// shrunk toward before variance propagation.
type ShrinkageTarget int

const (
	// TargetIdentity shrinks toward the identity matrix.
	TargetIdentity ShrinkageTarget = iota
	// TargetConstantDiagonal shrinks toward nu*I where nu is the average
	// sample variance.
	TargetConstantDiagonal
	// TargetCommonCovariance shrinks toward a common diagonal and a common
	// off-diagonal value.
	TargetCommonCovariance
	// TargetUnequalDiagonal shrinks toward the sample diagonal with zero
	// off-diagonal entries.
	TargetUnequalDiagonal
)

// String returns the target name used in logs and config values.
func (t ShrinkageTarget) String() string {
	switch t {
	case TargetIdentity:
		return "identity"
	case TargetConstantDiagonal:
		return "constant_diagonal"
	case TargetCommonCovariance:
		return "common_covariance"
	case TargetUnequalDiagonal:
		return "unequal_diagonal"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseShrinkageTarget maps a config string onto a target.
func ParseShrinkageTarget(s string) (ShrinkageTarget, error) {
	switch s {
	case "identity":
		return TargetIdentity, nil
	case "constant_diagonal":
		return TargetConstantDiagonal, nil
	case "common_covariance":
		return TargetCommonCovariance, nil
	case "unequal_diagonal":
		return TargetUnequalDiagonal, nil
	default:
		return 0, fmt.Errorf("unknown shrinkage target %q", s)
	}
}

// FitOptions configures a single least-squares fit. The zero value asks for
// no added intercepts, uniform weights, and identity shrinkage.
type FitOptions struct {
	// AddXIntercept and AddZIntercept prepend an all-ones column to the
	// corresponding design when the dataset does not already carry one.
	AddXIntercept bool
	AddZIntercept bool

	// Weights are optional per-response-column weights. Nil means uniform.
	Weights []float64

	// Target selects the residual covariance shrinkage structure.
	Target ShrinkageTarget
}

// Validate checks the options against a response with m columns.
func (o FitOptions) Validate(m int) error {
	if o.Weights != nil {
		if len(o.Weights) != m {
			return core.NewShapeError("weights length", len(o.Weights), m)
		}
		for i, w := range o.Weights {
			if math.IsNaN(w) || w < 0 {
				return fmt.Errorf("%w: weight %d is %g", core.ErrBadWeights, i, w)
			}
		}
	}
	if o.Target < TargetIdentity || o.Target > TargetUnequalDiagonal {
		return fmt.Errorf("%w: shrinkage target %d", core.ErrPrecondition, int(o.Target))
	}
	return nil
}
