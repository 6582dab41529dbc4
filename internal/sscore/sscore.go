// Package sscore computes Collins-style S scores for genetic screens: a
// modified two-sample t statistic comparing each condition-clone cell mean
// against the clone's plate-wide control distribution, with optional
// variance floors that keep sparse, low-variance cells from dominating.
package sscore

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"screenlm/domain/core"
	"screenlm/domain/screen"
	"screenlm/internal"
	"screenlm/internal/smooth"
)

// cell holds the replicate statistics of one condition-clone group.
type cell struct {
	mean float64
	vari float64
	n    int
}

// Engine computes S scores. The smoother settings drive the experimental
// variance floor; the logger is optional.
type Engine struct {
	Smoother smooth.Loess
	Log      *internal.Logger
}

// New builds an engine with the given smoother settings.
func New(sm smooth.Loess, log *internal.Logger) *Engine {
	return &Engine{Smoother: sm, Log: log}
}

// Score computes the nConditions x nClones S score matrix. With varFloor
// the control and experimental variances are raised to their floors before
// pooling; without it the plain two-sample form is used. Cells with zero
// replicates and cells whose standard error collapses to zero are data
// errors, never NaN outputs.
func (e *Engine) Score(ds *screen.Dataset, varFloor bool) (*mat.Dense, error) {
	if err := ds.ValidateForSScore(); err != nil {
		return nil, err
	}
	n, _ := ds.Dims()
	nConds := ds.XCols()
	nClones := ds.ZCols()
	e.Log.Debug("s-score: %d conditions x %d clones, variance floor %v", nConds, nClones, varFloor)

	condRows := indicatorIndex(ds.X)
	cloneCols := indicatorIndex(ds.Z)

	cells := make([][]cell, nConds)
	for i := 0; i < nConds; i++ {
		cells[i] = make([]cell, nClones)
		for j := 0; j < nClones; j++ {
			vals := gather(ds.Y, condRows[i], cloneCols[j])
			if len(vals) == 0 {
				return nil, core.NewEmptyCellError(i, j)
			}
			cells[i][j] = summarize(vals)
		}
	}

	allRows := make([]int, n)
	for r := range allRows {
		allRows[r] = r
	}
	controls := make([]cell, nClones)
	for j := 0; j < nClones; j++ {
		controls[j] = summarize(gather(ds.Y, allRows, cloneCols[j]))
	}

	if !varFloor {
		return e.plainScores(cells, controls)
	}
	return e.flooredScores(cells, controls)
}

// plainScores applies the unpooled two-sample form cell by cell.
func (e *Engine) plainScores(cells [][]cell, controls []cell) (*mat.Dense, error) {
	out := mat.NewDense(len(cells), len(controls), nil)
	for i := range cells {
		for j := range controls {
			c, ctl := cells[i][j], controls[j]
			se := math.Sqrt(c.vari/float64(c.n) + ctl.vari/float64(ctl.n))
			if se == 0 {
				return nil, fmt.Errorf("%w: condition %d clone %d has zero standard error", core.ErrDegenerateData, i, j)
			}
			out.Set(i, j, (c.mean-ctl.mean)/se)
		}
	}
	return out, nil
}

// flooredScores pools floored variances with the median replicate count
// standing in for the control count.
func (e *Engine) flooredScores(cells [][]cell, controls []cell) (*mat.Dense, error) {
	medRatio, nCont, curve, err := e.floorInputs(cells)
	if err != nil {
		return nil, err
	}
	expVar, contVar := floorVariances(cells, controls, curve, medRatio)

	out := mat.NewDense(len(cells), len(controls), nil)
	for i := range cells {
		for j := range controls {
			c, ctl := cells[i][j], controls[j]
			dfExp := float64(c.n - 1)
			dfCont := nCont - 1
			if dfExp+dfCont <= 0 {
				return nil, fmt.Errorf("%w: condition %d clone %d has no pooled degrees of freedom", core.ErrDegenerateData, i, j)
			}
			pooled := (dfExp*expVar[i][j] + dfCont*contVar[j]) / (dfExp + dfCont)
			se := math.Sqrt(pooled * (1/float64(c.n) + 1/nCont))
			if se == 0 {
				return nil, fmt.Errorf("%w: condition %d clone %d has zero standard error", core.ErrDegenerateData, i, j)
			}
			out.Set(i, j, (c.mean-ctl.mean)/se)
		}
	}
	return out, nil
}

// floorInputs derives the plate-wide ingredients of the floors: the median
// sd-to-mean ratio, the median replicate count, and the smoothed
// mean-to-sd curve over all cells.
func (e *Engine) floorInputs(cells [][]cell) (float64, float64, *smooth.Curve, error) {
	var means, sds, ratios, counts []float64
	for i := range cells {
		for j := range cells[i] {
			c := cells[i][j]
			sd := math.Sqrt(c.vari)
			means = append(means, c.mean)
			sds = append(sds, sd)
			counts = append(counts, float64(c.n))
			if c.mean > 0 {
				ratios = append(ratios, sd/c.mean)
			}
		}
	}
	if len(ratios) == 0 {
		return 0, 0, nil, fmt.Errorf("%w: no cell with positive mean to anchor the variance floor", core.ErrDegenerateData)
	}
	medRatio, err := stats.Median(ratios)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", core.ErrDegenerateData, err)
	}
	nCont, err := stats.Median(counts)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", core.ErrDegenerateData, err)
	}
	curve, err := e.Smoother.Fit(means, sds)
	if err != nil {
		return 0, 0, nil, err
	}
	e.Log.Debug("s-score floors: median sd/mean %.4g, control n %.4g", medRatio, nCont)
	return medRatio, nCont, curve, nil
}

// floorVariances raises every variance to its floor. The control floor is
// the larger of the clone's median experimental variance and the scaled
// control mean; the experimental floor is the smoothed sd at the cell mean,
// squared. Floors only ever raise a variance.
func floorVariances(cells [][]cell, controls []cell, curve *smooth.Curve, medRatio float64) ([][]float64, []float64) {
	nClones := len(controls)
	expVar := make([][]float64, len(cells))
	for i := range cells {
		expVar[i] = make([]float64, nClones)
		for j := range cells[i] {
			sd := curve.At(cells[i][j].mean)
			if sd < 0 {
				sd = 0
			}
			expVar[i][j] = math.Max(cells[i][j].vari, sd*sd)
		}
	}

	contVar := make([]float64, nClones)
	for j := 0; j < nClones; j++ {
		cloneVars := make([]float64, len(cells))
		for i := range cells {
			cloneVars[i] = cells[i][j].vari
		}
		medVar, err := stats.Median(cloneVars)
		if err != nil {
			medVar = 0
		}
		scaled := controls[j].mean * medRatio
		contVar[j] = math.Max(controls[j].vari, math.Max(medVar, scaled*scaled))
	}
	return expVar, contVar
}

// summarize computes mean, unbiased variance, and count. A single replicate
// has zero variance by convention; the floors rescue it in floored mode.
func summarize(vals []float64) cell {
	mean, vari := stat.MeanVariance(vals, nil)
	if len(vals) < 2 {
		vari = 0
	}
	return cell{mean: mean, vari: vari, n: len(vals)}
}

// indicatorIndex lists, per column, the row indices flagged 1.
func indicatorIndex(m *mat.Dense) [][]int {
	rows, cols := m.Dims()
	out := make([][]int, cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			if m.At(i, j) == 1 {
				out[j] = append(out[j], i)
			}
		}
	}
	return out
}

// gather flattens the response entries selected by a row set and column set.
func gather(y *mat.Dense, rows, cols []int) []float64 {
	out := make([]float64, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			out = append(out, y.At(r, c))
		}
	}
	return out
}
