// Package smooth provides the one-pass local linear smoother used to floor
// experimental variances: a tricube-weighted regression of sqrt(variance)
// on cell mean, evaluated at arbitrary query points.
//
// The smoother is deliberately simple: for each query point the Span
// fraction of nearest fitted points forms the neighborhood, tricube weights
// decay with distance, and a weighted straight line is solved in closed
// form. There are no robustness iterations. Identical inputs always produce
// identical curves.
package smooth

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"screenlm/domain/core"
)

// DefaultSpan is the neighborhood fraction used when none is configured.
const DefaultSpan = 0.5

// Loess configures the smoother.
type Loess struct {
	// Span is the fraction of points in each local neighborhood, in (0, 1].
	// Zero means DefaultSpan.
	Span float64
}

// Curve is a fitted smoother, evaluable at any query point.
type Curve struct {
	xs   []float64 // sorted ascending
	ys   []float64 // aligned with xs
	k    int       // neighborhood size
}

// Fit sorts the observations and freezes the neighborhood size. At least
// two points are required; non-finite values are rejected so degenerate
// data never propagates silently.
func (l Loess) Fit(xs, ys []float64) (*Curve, error) {
	if len(xs) != len(ys) {
		return nil, core.NewShapeError("smoother y length", len(ys), len(xs))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("%w: smoother needs at least two points, got %d", core.ErrDegenerateData, len(xs))
	}
	span := l.Span
	if span == 0 {
		span = DefaultSpan
	}
	if span < 0 || span > 1 {
		return nil, fmt.Errorf("%w: smoother span %g outside (0, 1]", core.ErrPrecondition, span)
	}
	for i := range xs {
		if !isFinite(xs[i]) || !isFinite(ys[i]) {
			return nil, fmt.Errorf("%w: non-finite smoother input at %d", core.ErrDegenerateData, i)
		}
	}

	sx := make([]float64, len(xs))
	sy := make([]float64, len(ys))
	copy(sx, xs)
	copy(sy, ys)
	sort.Sort(byX{sx, sy})

	k := int(math.Ceil(span * float64(len(sx))))
	if k < 2 {
		k = 2
	}
	if k > len(sx) {
		k = len(sx)
	}
	return &Curve{xs: sx, ys: sy, k: k}, nil
}

// At evaluates the smoothed value at x from the k nearest fitted points.
func (c *Curve) At(x float64) float64 {
	lo, hi := c.window(x)
	wx := c.xs[lo:hi]
	wy := c.ys[lo:hi]

	// Tricube weights against the farthest neighbor.
	h := math.Max(math.Abs(x-wx[0]), math.Abs(x-wx[len(wx)-1]))
	ws := make([]float64, len(wx))
	total := 0.0
	for i, xi := range wx {
		w := 1.0
		if h > 0 {
			u := math.Abs(x-xi) / h
			if u >= 1 {
				w = 0
			} else {
				w = math.Pow(1-u*u*u, 3)
			}
		}
		ws[i] = w
		total += w
	}
	if total == 0 {
		for i := range ws {
			ws[i] = 1
		}
	}

	alpha, beta := stat.LinearRegression(wx, wy, ws, false)
	if !isFinite(alpha) || !isFinite(beta) {
		// All window x values coincide; the line is undefined but the
		// weighted mean is still the right local estimate.
		return stat.Mean(wy, ws)
	}
	return alpha + beta*x
}

// Eval evaluates the curve at every query point.
func (c *Curve) Eval(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = c.At(x)
	}
	return out
}

// window finds the half-open range of the k nearest sorted points to x.
func (c *Curve) window(x float64) (int, int) {
	n := len(c.xs)
	lo := sort.SearchFloat64s(c.xs, x)
	hi := lo
	for hi-lo < c.k {
		switch {
		case lo == 0:
			hi++
		case hi == n:
			lo--
		case x-c.xs[lo-1] <= c.xs[hi]-x:
			lo--
		default:
			hi++
		}
	}
	return lo, hi
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type byX struct {
	xs, ys []float64
}

func (s byX) Len() int           { return len(s.xs) }
func (s byX) Less(i, j int) bool { return s.xs[i] < s.xs[j] }
func (s byX) Swap(i, j int) {
	s.xs[i], s.xs[j] = s.xs[j], s.xs[i]
	s.ys[i], s.ys[j] = s.ys[j], s.ys[i]
}
