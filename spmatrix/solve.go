package spmatrix

import "github.com/pkg/errors"

// Solve computes x for Ax = b given a factored matrix. rhs is indexed by
// external position and is not modified; the solution comes back in
// external ordering as well.
func (m *Matrix) Solve(rhs []complex128) ([]complex128, error) {
	if !m.factored {
		return nil, errors.New("spmatrix: solve called before factor")
	}
	if len(rhs) < m.Size {
		return nil, errors.Errorf("spmatrix: rhs length %d shorter than matrix size %d", len(rhs), m.Size)
	}

	size := m.Size
	intermediate := m.intermediate

	// Scramble into internal row ordering. External indices are 0-based.
	for i := size; i > 0; i-- {
		intermediate[i] = rhs[m.intToExtRow[i]-1]
	}

	// Forward substitution, Lc = b. The diagonal holds 1/pivot.
	for i := 1; i <= size; i++ {
		temp := intermediate[i]
		if temp != 0 {
			pivot := m.diags[i]
			temp *= pivot.Val
			intermediate[i] = temp

			for element := pivot.NextInCol; element != nil; element = element.NextInCol {
				intermediate[element.Row] -= temp * element.Val
			}
		}
	}

	// Backward substitution, Ux = c.
	for i := size; i > 0; i-- {
		temp := intermediate[i]
		for element := m.diags[i].NextInRow; element != nil; element = element.NextInRow {
			temp -= element.Val * intermediate[element.Col]
		}
		intermediate[i] = temp
	}

	solution := make([]complex128, size)
	for i := size; i > 0; i-- {
		solution[m.intToExtCol[i]-1] = intermediate[i]
	}
	return solution, nil
}

// SolveReal is Solve for systems with no imaginary part, as produced by
// Jacobians, the decoupled susceptance matrices and KKT systems.
func (m *Matrix) SolveReal(rhs []float64) ([]float64, error) {
	crhs := make([]complex128, len(rhs))
	for i, v := range rhs {
		crhs[i] = complex(v, 0)
	}
	csol, err := m.Solve(crhs)
	if err != nil {
		return nil, err
	}
	solution := make([]float64, len(csol))
	for i, v := range csol {
		solution[i] = real(v)
	}
	return solution, nil
}

// FactorAndSolveReal stamps nothing; it is a convenience that factors the
// current values and solves a single real right-hand side.
func (m *Matrix) FactorAndSolveReal(rhs []float64) ([]float64, error) {
	if err := m.Factor(); err != nil {
		return nil, err
	}
	return m.SolveReal(rhs)
}
