// Package spmatrix provides the sparse LU factorization used by every
// solver in this module: admittance-based Jacobians, the fixed B' / B''
// matrices of the fast-decoupled method, the DC susceptance system and
// the interior-point KKT systems. Storage is a linked-element structure
// with Markowitz ordering and threshold pivoting in the manner of the
// Sparse1.3 family of solvers. Values are complex; purely real systems
// simply carry zero imaginary parts and may use the real entry points.
package spmatrix

import "github.com/pkg/errors"

const (
	defaultRelThreshold = 0.001
	defaultAbsThreshold = 0.0
	defaultTiesMult     = 5
)

// Element is a single stored entry. Row and Col are internal one-based
// indices that change as pivoting reorders the matrix; callers hold
// Element pointers across Clear/stamp/Factor cycles instead.
type Element struct {
	Val       complex128
	Row, Col  int
	NextInRow *Element
	NextInCol *Element
}

// Matrix is a square sparse matrix of fixed size. External indices are
// zero-based; internally rows and columns are one-based and permuted by
// pivoting, with the int/ext maps tracking the permutation.
type Matrix struct {
	Size int

	// Pivot acceptance thresholds.
	RelThreshold float64
	AbsThreshold float64
	// Markowitz tie search bound multiplier.
	TiesMultiplier int

	diags      []*Element
	firstInRow []*Element
	firstInCol []*Element

	markowitzRow  []int64
	markowitzCol  []int64
	markowitzProd []int64
	singletons    int

	intToExtRow []int
	intToExtCol []int
	extToIntRow []int
	extToIntCol []int

	intermediate []complex128

	elements      int
	fillins       int
	needsOrdering bool
	factored      bool
}

// SingularError reports a structurally or numerically singular system,
// identified by the elimination step at which no acceptable pivot exists.
type SingularError struct {
	Step int
}

func (e *SingularError) Error() string {
	return errors.Errorf("singular matrix at elimination step %d", e.Step).Error()
}

// IsSingular reports whether err is (or wraps) a SingularError.
func IsSingular(err error) bool {
	var se *SingularError
	return errors.As(err, &se)
}

// New creates an empty n x n matrix.
func New(n int) *Matrix {
	size := n + 2 // 1-based plus a sentinel slot used by pivot searches
	m := &Matrix{
		Size:           n,
		RelThreshold:   defaultRelThreshold,
		AbsThreshold:   defaultAbsThreshold,
		TiesMultiplier: defaultTiesMult,
		diags:          make([]*Element, size),
		firstInRow:     make([]*Element, size),
		firstInCol:     make([]*Element, size),
		markowitzRow:   make([]int64, size),
		markowitzCol:   make([]int64, size),
		markowitzProd:  make([]int64, size),
		intToExtRow:    make([]int, size),
		intToExtCol:    make([]int, size),
		extToIntRow:    make([]int, size),
		extToIntCol:    make([]int, size),
		intermediate:   make([]complex128, size),
		needsOrdering:  true,
	}
	for i := 1; i <= n; i++ {
		m.intToExtRow[i] = i
		m.intToExtCol[i] = i
		m.extToIntRow[i] = i
		m.extToIntCol[i] = i
	}
	return m
}

// Element returns the entry at external position (row, col), creating it
// if absent. Creating a new entry after a factorization forces a
// reordering on the next Factor. Returned pointers stay valid, and track
// the logical position, for the life of the matrix.
func (m *Matrix) Element(row, col int) *Element {
	if row < 0 || col < 0 || row >= m.Size || col >= m.Size {
		return nil
	}
	intRow := m.extToIntRow[row+1]
	intCol := m.extToIntCol[col+1]

	if intRow == intCol {
		if e := m.diags[intRow]; e != nil {
			return e
		}
	}
	for e := m.firstInCol[intCol]; e != nil; e = e.NextInCol {
		if e.Row == intRow {
			return e
		}
	}
	return m.createElement(intRow, intCol, false)
}

// Clear zeroes all stored values, keeping structure and ordering.
func (m *Matrix) Clear() {
	for i := m.Size; i > 0; i-- {
		for e := m.firstInCol[i]; e != nil; e = e.NextInCol {
			e.Val = 0
		}
	}
	m.factored = false
}

// ElementCount returns the number of stored entries including fill-ins.
func (m *Matrix) ElementCount() int { return m.elements }

// FillinCount returns the number of fill-ins created by factorization.
func (m *Matrix) FillinCount() int { return m.fillins }

// createElement splices a new entry into both the column and row chains.
// During factorization (fillin) it also maintains the Markowitz counts.
func (m *Matrix) createElement(row, col int, fillin bool) *Element {
	element := &Element{Row: row, Col: col}

	if fillin {
		m.fillins++
		m.markowitzRow[row]++
		m.markowitzCol[col]++
		m.markowitzProd[row] = markowitzProduct(m.markowitzRow[row], m.markowitzCol[row])
		m.markowitzProd[col] = markowitzProduct(m.markowitzRow[col], m.markowitzCol[col])
		if m.markowitzRow[row] == 1 && m.markowitzCol[row] != 0 {
			m.singletons--
		}
		if m.markowitzRow[col] != 0 && m.markowitzCol[col] == 1 {
			m.singletons--
		}
	} else {
		m.needsOrdering = true
	}
	m.elements++

	// Column chain, ordered by row.
	prev := &m.firstInCol[col]
	current := *prev
	for current != nil && current.Row < row {
		prev = &current.NextInCol
		current = current.NextInCol
	}
	element.NextInCol = current
	*prev = element

	// Row chain, ordered by column.
	prev = &m.firstInRow[row]
	current = *prev
	for current != nil && current.Col < col {
		prev = &current.NextInRow
		current = current.NextInRow
	}
	element.NextInRow = current
	*prev = element

	if row == col {
		m.diags[row] = element
	}
	return element
}
