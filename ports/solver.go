package ports

import (
	"screenlm/domain/mlm"
	"screenlm/domain/screen"
)

// SolverPort is the least-squares fit primitive the post-processing engines
// are built around. Implementations estimate B for Y ~ X*B*Z' + E along
// with cellwise sampling variances and a shrunk residual covariance; the
// engines treat the result as correct and only propagate it.
type SolverPort interface {
	Fit(ds *screen.Dataset, opts mlm.FitOptions) (*mlm.Fit, error)
}
