package types

// Matrix is a dense square matrix of float64 values, stored row-major.
// It backs both the term-term similarity matrix and the utterance
// similarity matrix. Entries of similarity matrices lie in [0, 1].
type Matrix struct {
	n      int
	values []float64
}

// NewMatrix creates an n×n matrix with all entries zero.
func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, values: make([]float64, n*n)}
}

// Size returns the dimension n of the n×n matrix.
func (m *Matrix) Size() int {
	return m.n
}

// At returns the entry at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.values[i*m.n+j]
}

// Set assigns the entry at row i, column j.
func (m *Matrix) Set(i, j int, v float64) {
	m.values[i*m.n+j] = v
}

// SetSymmetric assigns v to both (i,j) and (j,i).
func (m *Matrix) SetSymmetric(i, j int, v float64) {
	m.values[i*m.n+j] = v
	m.values[j*m.n+i] = v
}

// Rows returns the matrix as a slice of row slices. The rows alias the
// underlying storage; callers must treat them as read-only.
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.n)
	for i := 0; i < m.n; i++ {
		rows[i] = m.values[i*m.n : (i+1)*m.n]
	}
	return rows
}

// Slice returns a read-only view over the contiguous utterance range
// [lo, hi) of the matrix. Slicing never copies or recomputes; the view
// reads through to the parent matrix.
func (m *Matrix) Slice(lo, hi int) *MatrixView {
	if lo < 0 {
		lo = 0
	}
	if hi > m.n {
		hi = m.n
	}
	if hi < lo {
		hi = lo
	}
	return &MatrixView{parent: m, lo: lo, hi: hi}
}

// MatrixView is a contiguous sub-range view of a Matrix. Index 0 of the
// view corresponds to index lo of the parent.
type MatrixView struct {
	parent *Matrix
	lo, hi int
}

// Size returns the dimension of the view.
func (v *MatrixView) Size() int {
	return v.hi - v.lo
}

// At returns the entry at view-local row i, column j.
func (v *MatrixView) At(i, j int) float64 {
	return v.parent.At(v.lo+i, v.lo+j)
}

// Offset returns the parent index of view-local index 0.
func (v *MatrixView) Offset() int {
	return v.lo
}

// GroupedMatrix is a square matrix indexed by the distinct values of a
// grouping attribute (speaker or group). Entry (a, b) measures how much
// of b's conceptual content is echoed after a speaks — directionality
// matters, so the matrix is generally not symmetric.
type GroupedMatrix struct {
	Labels []string    `json:"labels"` // Distinct attribute values, first-appearance order
	Values [][]float64 `json:"values"` // Values[i][j] is the mass from Labels[i] to Labels[j]
}

// NewGroupedMatrix creates a zero matrix over the given labels.
func NewGroupedMatrix(labels []string) *GroupedMatrix {
	values := make([][]float64, len(labels))
	for i := range values {
		values[i] = make([]float64, len(labels))
	}
	return &GroupedMatrix{Labels: labels, Values: values}
}

// Index returns the position of a label, or -1 when absent.
func (g *GroupedMatrix) Index(label string) int {
	for i, l := range g.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// RowTotals returns the sum of each row.
func (g *GroupedMatrix) RowTotals() []float64 {
	totals := make([]float64, len(g.Values))
	for i, row := range g.Values {
		for _, v := range row {
			totals[i] += v
		}
	}
	return totals
}

// GrandTotal returns the sum of all entries.
func (g *GroupedMatrix) GrandTotal() float64 {
	var total float64
	for _, row := range g.Values {
		for _, v := range row {
			total += v
		}
	}
	return total
}
