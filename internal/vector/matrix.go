package vector

import (
	"context"
	"fmt"
)

// Matrix is a square, symmetric similarity matrix stored row-major. It is never
// modified after BuildCosineMatrix returns.
type Matrix struct {
	n    int
	data []float64
}

// Dim returns the number of rows (and columns).
func (m *Matrix) Dim() int {
	if m == nil {
		return 0
	}
	return m.n
}

// At returns cell (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.n+j]
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	row := make([]float64, m.n)
	copy(row, m.data[i*m.n:(i+1)*m.n])
	return row
}

// BuildCosineMatrix computes all-pairs cosine similarity. Vectors must share one
// dimension. Only the upper triangle is computed; cell (j, i) is copied from (i, j).
// A zero vector has similarity 0 with everything, itself included.
func BuildCosineMatrix(ctx context.Context, vectors [][]float32) (*Matrix, error) {
	n := len(vectors)
	m := &Matrix{n: n, data: make([]float64, n*n)}
	if n == 0 {
		return m, nil
	}
	dim := len(vectors[0])
	norms := make([]float64, n)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector dimension mismatch at row %d: got %d, expected %d", i, len(v), dim)
		}
		norms[i] = L2Norm(v)
	}
	for i := 0; i < n; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j := i; j < n; j++ {
			var s float64
			if norms[i] != 0 && norms[j] != 0 {
				s = clamp(InnerProduct(vectors[i], vectors[j]) / (norms[i] * norms[j]))
			}
			m.data[i*n+j] = s
			m.data[j*n+i] = s
		}
	}
	return m, nil
}
