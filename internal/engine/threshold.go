package engine

import (
	"fmt"

	"github.com/lexfield/echomap/pkg/types"
)

// ApplyThreshold returns a display copy of the matrix with entries below
// the threshold zeroed. This is a presentation filter only: the stored
// matrix is never altered, so raising or lowering the threshold later
// needs no recomputation. The threshold must lie in [0, 1].
func ApplyThreshold(m *types.Matrix, threshold float64) ([][]float64, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [0,1], got %g", types.ErrInvalidConfig, threshold)
	}

	n := m.Size()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			if v := m.At(i, j); v >= threshold {
				row[j] = v
			}
		}
		out[i] = row
	}
	return out, nil
}
