package spmatrix

import (
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func stampReal(m *Matrix, a [][]float64) {
	for i, row := range a {
		for j, v := range row {
			if v != 0 {
				m.Element(i, j).Val += complex(v, 0)
			}
		}
	}
}

func residualReal(a [][]float64, x, b []float64) float64 {
	worst := 0.0
	for i := range a {
		sum := 0.0
		for j := range a[i] {
			sum += a[i][j] * x[j]
		}
		if r := math.Abs(sum - b[i]); r > worst {
			worst = r
		}
	}
	return worst
}

func TestSolveReal3x3(t *testing.T) {
	a := [][]float64{
		{2, 0, 1},
		{1, 3, 0},
		{0, 1, 4},
	}
	b := []float64{5, 10, 13}

	m := New(3)
	stampReal(m, a)
	assert.NilError(t, m.Factor())

	x, err := m.SolveReal(b)
	assert.NilError(t, err)
	assert.Assert(t, residualReal(a, x, b) < 1e-12)
}

func TestSolveRequiresPivoting(t *testing.T) {
	// Zero on the leading diagonal forces a row or column exchange.
	a := [][]float64{
		{0, 2, 1},
		{1, 0, 3},
		{4, 1, 0},
	}
	b := []float64{1, 2, 3}

	m := New(3)
	stampReal(m, a)
	assert.NilError(t, m.Factor())

	x, err := m.SolveReal(b)
	assert.NilError(t, err)
	assert.Assert(t, residualReal(a, x, b) < 1e-12)
}

func TestSolveComplex(t *testing.T) {
	m := New(2)
	m.Element(0, 0).Val = complex(1, 2)
	m.Element(0, 1).Val = complex(0, -1)
	m.Element(1, 0).Val = complex(3, 0)
	m.Element(1, 1).Val = complex(2, 1)
	assert.NilError(t, m.Factor())

	b := []complex128{complex(1, 0), complex(0, 1)}
	x, err := m.Solve(b)
	assert.NilError(t, err)

	r0 := complex(1, 2)*x[0] + complex(0, -1)*x[1] - b[0]
	r1 := complex(3, 0)*x[0] + complex(2, 1)*x[1] - b[1]
	assert.Assert(t, cmplx.Abs(r0) < 1e-12)
	assert.Assert(t, cmplx.Abs(r1) < 1e-12)
}

func TestRefactorReusesOrdering(t *testing.T) {
	a := [][]float64{
		{4, 1, 0, 0},
		{1, 5, 2, 0},
		{0, 2, 6, 1},
		{0, 0, 1, 7},
	}
	m := New(4)
	stampReal(m, a)
	assert.NilError(t, m.Factor())
	fillins := m.FillinCount()

	// Same pattern, new values: the fast refactor path applies.
	m.Clear()
	for i := range a {
		for j := range a[i] {
			if a[i][j] != 0 {
				a[i][j] *= 1.5
				m.Element(i, j).Val = complex(a[i][j], 0)
			}
		}
	}
	assert.NilError(t, m.Factor())
	assert.Equal(t, m.FillinCount(), fillins)

	b := []float64{1, 2, 3, 4}
	x, err := m.SolveReal(b)
	assert.NilError(t, err)
	assert.Assert(t, residualReal(a, x, b) < 1e-12)
}

func TestSingularMatrix(t *testing.T) {
	m := New(3)
	// Row 2 is a duplicate of row 1.
	for _, rc := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}} {
		m.Element(rc[0], rc[1]).Val = complex(float64(rc[1]+1), 0)
	}

	err := m.Factor()
	assert.Assert(t, err != nil)
	assert.Assert(t, IsSingular(err))
}

func TestElementAccumulates(t *testing.T) {
	m := New(2)
	m.Element(0, 0).Val += 1
	m.Element(0, 0).Val += 2
	assert.Equal(t, m.Element(0, 0).Val, complex(3, 0))
	assert.Equal(t, m.ElementCount(), 1)

	m.Clear()
	assert.Equal(t, m.Element(0, 0).Val, complex(0, 0))
	assert.Equal(t, m.ElementCount(), 1)
}

func TestElementOutOfRange(t *testing.T) {
	m := New(2)
	assert.Assert(t, m.Element(-1, 0) == nil)
	assert.Assert(t, m.Element(0, 2) == nil)
}

func TestSolveBeforeFactor(t *testing.T) {
	m := New(2)
	m.Element(0, 0).Val = 1
	m.Element(1, 1).Val = 1
	_, err := m.SolveReal([]float64{1, 1})
	assert.Assert(t, err != nil)
}

func TestStringRendering(t *testing.T) {
	m := New(2)
	m.Element(0, 0).Val = 4
	m.Element(1, 1).Val = complex(1, -2)

	s := m.String()
	assert.Assert(t, strings.HasPrefix(s, "size=2 elements=2 fillins=0\n"))
	assert.Assert(t, strings.Contains(s, "."))
	assert.Assert(t, strings.Contains(s, "4"))
	assert.Assert(t, strings.Contains(s, "-2i"))
}
