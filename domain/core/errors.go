package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Precondition errors: the caller violated a documented contract
	ErrPrecondition   = errors.New("precondition violated")
	ErrNoIntercept    = fmt.Errorf("%w: design has no intercept column", ErrPrecondition)
	ErrNoBackEstimate = fmt.Errorf("%w: fit carries no back-estimated entries", ErrPrecondition)
	ErrNotIndicator   = fmt.Errorf("%w: design is not a 0/1 indicator matrix", ErrPrecondition)
	ErrBadWeights     = fmt.Errorf("%w: response weights invalid", ErrPrecondition)
	ErrBadShape       = fmt.Errorf("%w: matrix dimensions do not align", ErrPrecondition)

	// Degenerate data errors: shapes are legal but the data cannot support the computation
	ErrDegenerateData = errors.New("degenerate data")
	ErrSingularGram   = fmt.Errorf("%w: gram matrix is singular", ErrDegenerateData)
	ErrEmptyCell      = fmt.Errorf("%w: condition-clone cell has zero replicates", ErrDegenerateData)
	ErrEmptyResponse  = fmt.Errorf("%w: response matrix has no entries", ErrDegenerateData)

	// Permutation errors
	ErrTrialFailed = errors.New("permutation trial failed")
)

// Error constructors with context
func NewShapeError(what string, got, want int) error {
	return fmt.Errorf("%w: %s is %d, want %d", ErrBadShape, what, got, want)
}

func NewEmptyCellError(condition, clone int) error {
	return fmt.Errorf("%w: condition %d, clone %d", ErrEmptyCell, condition, clone)
}

func NewTrialError(trial int, err error) error {
	return fmt.Errorf("%w: trial %d: %v", ErrTrialFailed, trial, err)
}

// Error checking helpers
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

func IsDegenerateDataError(err error) bool {
	return errors.Is(err, ErrDegenerateData)
}

func IsTrialError(err error) bool {
	return errors.Is(err, ErrTrialFailed)
}
