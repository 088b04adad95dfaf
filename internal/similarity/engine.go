// Package similarity computes the utterance × utterance similarity
// matrix from concept vectors. Rows are independent, so the build is
// parallelized across a bounded worker pool; the finished matrix always
// reflects a single consistent key-term configuration.
package similarity

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/lexfield/echomap/pkg/types"
)

// ProgressFunc receives build progress: rows completed out of total.
// Called from worker goroutines; implementations must be safe for
// concurrent use.
type ProgressFunc func(done, total int)

// Engine builds utterance similarity matrices.
type Engine struct {
	numWorkers int
}

// NewEngine creates an Engine with the given parallelism. Values below 1
// fall back to a single worker.
func NewEngine(numWorkers int) *Engine {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Engine{numWorkers: numWorkers}
}

// Compute returns the N×N similarity matrix over the given concept
// vectors: entry (i, j) is the cosine between vectors i and j, in [0, 1],
// symmetric by construction. The diagonal holds each vector's
// self-cosine (1 for a non-zero vector, 0 for a zero vector); recurrence
// aggregation excludes it, since an utterance recurring its own concepts
// in place is not a recurrence event.
//
// progress may be nil.
func (e *Engine) Compute(ctx context.Context, vectors [][]float64, progress ProgressFunc) (*types.Matrix, error) {
	n := len(vectors)
	matrix := types.NewMatrix(n)
	if n == 0 {
		return matrix, nil
	}

	// Precompute norms once; they are reused n times each.
	norms := make([]float64, n)
	for i, vec := range vectors {
		var sum float64
		for _, v := range vec {
			sum += v * v
		}
		norms[i] = math.Sqrt(sum)
	}

	var done atomic.Int64
	var wg sync.WaitGroup
	chunkSize := (n + e.numWorkers - 1) / e.numWorkers

	for w := 0; w < e.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}

				if norms[i] > 0 {
					matrix.Set(i, i, 1.0)
				}
				// Each row owner fills the pairs (i, j) for j > i; the
				// symmetric write targets cells no other worker touches.
				for j := i + 1; j < n; j++ {
					matrix.SetSymmetric(i, j, cosine(vectors[i], vectors[j], norms[i], norms[j]))
				}

				if progress != nil {
					progress(int(done.Add(1)), n)
				}
			}
		}(start, end)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return matrix, nil
}

// cosine computes the cosine similarity between two dense vectors with
// precomputed norms. Zero-norm inputs yield 0; results are clamped into
// [0, 1] against floating drift.
func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}

	cos := dot / (normA * normB)
	if cos > 1 {
		cos = 1
	}
	if cos < 0 {
		cos = 0
	}
	return cos
}
