// Package opf formulates and solves the optimal power flow problem,
// linearized (DC) or full nonlinear (AC), with a primal-dual interior
// point method.
package opf

import "gridflow/spmatrix"

// spmat is a row-map sparse real matrix used while assembling constraint
// Jacobians, Hessians and the interior-point KKT system. Rows of a
// Jacobian are constraints, columns are optimization variables.
type spmat struct {
	nr, nc int
	rows   []map[int]float64
}

func newSpmat(nr, nc int) *spmat {
	rows := make([]map[int]float64, nr)
	for i := range rows {
		rows[i] = make(map[int]float64)
	}
	return &spmat{nr: nr, nc: nc, rows: rows}
}

func (a *spmat) addAt(i, j int, v float64) {
	if v != 0 {
		a.rows[i][j] += v
	}
}

// mulVec computes A·x.
func (a *spmat) mulVec(x []float64) []float64 {
	out := make([]float64, a.nr)
	for i, row := range a.rows {
		for j, v := range row {
			out[i] += v * x[j]
		}
	}
	return out
}

// mulVecT computes Aᵀ·x.
func (a *spmat) mulVecT(x []float64) []float64 {
	out := make([]float64, a.nc)
	for i, row := range a.rows {
		for j, v := range row {
			out[j] += v * x[i]
		}
	}
	return out
}

// addScaled accumulates s·B into A. Dimensions must match.
func (a *spmat) addScaled(b *spmat, s float64) {
	for i, row := range b.rows {
		for j, v := range row {
			a.addAt(i, j, s*v)
		}
	}
}

// vstack returns the rows of a followed by the rows of b.
func vstack(a, b *spmat) *spmat {
	out := newSpmat(a.nr+b.nr, a.nc)
	for i, row := range a.rows {
		for j, v := range row {
			out.rows[i][j] = v
		}
	}
	for i, row := range b.rows {
		for j, v := range row {
			out.rows[a.nr+i][j] = v
		}
	}
	return out
}

// selectRows returns the submatrix of the given rows, optionally negated.
func (a *spmat) selectRows(idx []int, negate bool) *spmat {
	out := newSpmat(len(idx), a.nc)
	s := 1.0
	if negate {
		s = -1.0
	}
	for p, i := range idx {
		for j, v := range a.rows[i] {
			out.rows[p][j] = s * v
		}
	}
	return out
}

// stampKKT builds and factors the symmetric indefinite system
//
//	[ M   dhᵀ ] [dx  ]   [ -n ]
//	[ dh   0  ] [dlam] = [ -h ]
//
// where dh rows are the equality constraints.
func stampKKT(m *spmat, dh *spmat) *spmatrix.Matrix {
	nx := m.nc
	neq := dh.nr
	k := spmatrix.New(nx + neq)

	for i, row := range m.rows {
		for j, v := range row {
			k.Element(i, j).Val += complex(v, 0)
		}
	}
	for r, row := range dh.rows {
		for j, v := range row {
			k.Element(nx+r, j).Val += complex(v, 0)
			k.Element(j, nx+r).Val += complex(v, 0)
		}
	}
	return k
}
