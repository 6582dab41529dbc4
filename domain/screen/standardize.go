package screen

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"screenlm/domain/core"
)

// StandardizeResponse median-centers the response and scales it by the
// interquartile range, computed over the whole plate. Colony sizes are
// heavy-tailed, so the robust location and scale are preferred over mean
// and standard deviation. Returns a new matrix.
func StandardizeResponse(y *mat.Dense) (*mat.Dense, error) {
	n, m := y.Dims()
	if n == 0 || m == 0 {
		return nil, core.ErrEmptyResponse
	}
	flat := make([]float64, 0, n*m)
	for i := 0; i < n; i++ {
		flat = append(flat, y.RawRowView(i)...)
	}
	median, err := stats.Median(flat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDegenerateData, err)
	}
	iqr, err := stats.InterQuartileRange(flat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDegenerateData, err)
	}
	if iqr == 0 {
		return nil, fmt.Errorf("%w: response interquartile range is zero", core.ErrDegenerateData)
	}
	out := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			out.Set(i, j, (y.At(i, j)-median)/iqr)
		}
	}
	return out, nil
}
