package opf

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"
)

func TestQPEqualityConstrained(t *testing.T) {
	// min x² + y²  s.t.  x + y = 1, optimum at (0.5, 0.5).
	h := newSpmat(2, 2)
	h.addAt(0, 0, 2)
	h.addAt(1, 1, 2)
	a := newSpmat(1, 2)
	a.addAt(0, 0, 1)
	a.addAt(0, 1, 1)
	xmin := []float64{math.Inf(-1), math.Inf(-1)}
	xmax := []float64{math.Inf(1), math.Inf(1)}

	sol, err := qp(h, []float64{0, 0}, a, []float64{1}, 1, xmin, xmax,
		[]float64{0, 0}, defaultIPMOptions())
	assert.NilError(t, err)
	assert.Assert(t, sol.Converged)
	assert.Assert(t, math.Abs(sol.X[0]-0.5) < 1e-6)
	assert.Assert(t, math.Abs(sol.X[1]-0.5) < 1e-6)
	assert.Assert(t, math.Abs(sol.F-0.5) < 1e-6)
}

func TestQPActiveUpperBound(t *testing.T) {
	// min x² − 4x  with  x ≤ 1. Unconstrained optimum at 2, so the
	// bound binds with multiplier |df/dx| = 2.
	h := newSpmat(1, 1)
	h.addAt(0, 0, 2)

	sol, err := qp(h, []float64{-4}, nil, nil, 0,
		[]float64{math.Inf(-1)}, []float64{1}, []float64{0}, defaultIPMOptions())
	assert.NilError(t, err)
	assert.Assert(t, sol.Converged)
	assert.Assert(t, math.Abs(sol.X[0]-1) < 1e-6)
	assert.Assert(t, math.Abs(sol.F-(-3)) < 1e-6)
	assert.Assert(t, math.Abs(sol.Lambda.Upper[0]-2) < 1e-4)
	assert.Assert(t, sol.Lambda.Lower[0] < 1e-6)
}

func TestQPInequalityBinds(t *testing.T) {
	// min x² + y²  s.t.  x + y ≥ 1. Same optimum as the equality
	// form, positive multiplier on the lower side of the row.
	h := newSpmat(2, 2)
	h.addAt(0, 0, 2)
	h.addAt(1, 1, 2)
	a := newSpmat(1, 2)
	a.addAt(0, 0, 1)
	a.addAt(0, 1, 1)
	xmin := []float64{math.Inf(-1), math.Inf(-1)}
	xmax := []float64{math.Inf(1), math.Inf(1)}

	p := ipmProblem{
		f: func(x []float64) (float64, []float64) {
			return x[0]*x[0] + x[1]*x[1], []float64{2 * x[0], 2 * x[1]}
		},
		gh: func(x []float64) ([]float64, []float64, *spmat, *spmat) {
			return nil, nil, newSpmat(0, 2), newSpmat(0, 2)
		},
		hess: func(x, lam, mu []float64, costMult float64) *spmat {
			out := newSpmat(2, 2)
			out.addAt(0, 0, 2*costMult)
			out.addAt(1, 1, 2*costMult)
			return out
		},
		x0:   []float64{0, 0},
		xmin: xmin,
		xmax: xmax,
		a:    a,
		l:    []float64{1},
		u:    []float64{math.Inf(1)},
	}
	sol, err := pdipm(p, defaultIPMOptions())
	assert.NilError(t, err)
	assert.Assert(t, sol.Converged)
	assert.Assert(t, math.Abs(sol.X[0]-0.5) < 1e-6)
	assert.Assert(t, math.Abs(sol.X[1]-0.5) < 1e-6)
	assert.Assert(t, sol.Lambda.MuL[0] > 0.5)
}

func TestQPInactiveBoundsStayLoose(t *testing.T) {
	// min (x−2)² + (y+1)² with generous box, both multiplier vectors
	// vanish at an interior optimum.
	h := newSpmat(2, 2)
	h.addAt(0, 0, 2)
	h.addAt(1, 1, 2)

	sol, err := qp(h, []float64{-4, 2}, nil, nil, 0,
		[]float64{-10, -10}, []float64{10, 10}, []float64{0, 0}, defaultIPMOptions())
	assert.NilError(t, err)
	assert.Assert(t, sol.Converged)
	assert.Assert(t, math.Abs(sol.X[0]-2) < 1e-6)
	assert.Assert(t, math.Abs(sol.X[1]+1) < 1e-6)
	for i := 0; i < 2; i++ {
		assert.Assert(t, sol.Lambda.Lower[i] < 1e-5)
		assert.Assert(t, sol.Lambda.Upper[i] < 1e-5)
	}
}
