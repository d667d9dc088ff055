package powerflow

import (
	"math/cmplx"

	"gridflow/spmatrix"
)

// jacobian assembles the reduced Newton-Raphson Jacobian
//
//	[ dP/dVa  dP/dVm ]   rows: P at pv+pq buses, Q at pq buses
//	[ dQ/dVa  dQ/dVm ]   cols: Va at pv+pq buses, Vm at pq buses
//
// into a sparse matrix whose structure follows the admittance pattern
// and therefore stays fixed across iterations, letting the factorization
// reuse its ordering.
type jacobian struct {
	m      *spmatrix.Matrix
	y      *YBus
	pvpq   []int
	pq     []int
	angPos []int // bus position -> Va column, -1 when not an unknown
	magPos []int // bus position -> Vm column, -1 when not an unknown
	n      int
}

func newJacobian(y *YBus, pv, pq []int) *jacobian {
	pvpq := append(append([]int{}, pv...), pq...)
	n := len(pvpq) + len(pq)

	angPos := make([]int, y.N)
	magPos := make([]int, y.N)
	for i := range angPos {
		angPos[i] = -1
		magPos[i] = -1
	}
	for p, i := range pvpq {
		angPos[i] = p
	}
	for p, i := range pq {
		magPos[i] = len(pvpq) + p
	}

	return &jacobian{
		m:      spmatrix.New(n),
		y:      y,
		pvpq:   pvpq,
		pq:     pq,
		angPos: angPos,
		magPos: magPos,
		n:      n,
	}
}

// stamp fills the Jacobian for the current voltage. The element values
// follow the analytic partial derivatives of S = V ∘ conj(Y·V):
//
//	dS[i]/dVa[k] = -j·V[i]·conj(Y[i,k]·V[k])            i ≠ k
//	dS[i]/dVa[i] =  j·V[i]·conj(I[i] - Y[i,i]·V[i])
//	dS[i]/dVm[k] =  V[i]·conj(Y[i,k]·V[k]/|V[k]|)       i ≠ k
//	dS[i]/dVm[i] =  V[i]·conj(Y[i,i]·V[i]/|V[i]|) + conj(I[i])·V[i]/|V[i]|
//
// with I = Y·V. P rows take real parts, Q rows imaginary parts.
func (j *jacobian) stamp(v []complex128) {
	j.m.Clear()
	ibus := j.y.MulV(v)

	for i, row := range j.y.Rows {
		rp := j.angPos[i] // P-equation row shares the Va column index
		rq := j.magPos[i]
		if rp < 0 && rq < 0 {
			continue
		}

		vnormI := v[i] / complex(cmplx.Abs(v[i]), 0)

		for _, e := range row {
			k := e.Col

			var dVa, dVm complex128
			if i != k {
				yv := e.Y * v[k]
				dVa = complex(0, -1) * v[i] * cmplx.Conj(yv)
				dVm = v[i] * cmplx.Conj(e.Y*v[k]/complex(cmplx.Abs(v[k]), 0))
			} else {
				dVa = complex(0, 1) * v[i] * cmplx.Conj(ibus[i]-e.Y*v[i])
				dVm = v[i]*cmplx.Conj(e.Y*vnormI) + cmplx.Conj(ibus[i])*vnormI
			}

			if ca := j.angPos[k]; ca >= 0 {
				if rp >= 0 {
					j.m.Element(rp, ca).Val += complex(real(dVa), 0)
				}
				if rq >= 0 {
					j.m.Element(rq, ca).Val += complex(imag(dVa), 0)
				}
			}
			if cm := j.magPos[k]; cm >= 0 {
				if rp >= 0 {
					j.m.Element(rp, cm).Val += complex(real(dVm), 0)
				}
				if rq >= 0 {
					j.m.Element(rq, cm).Val += complex(imag(dVm), 0)
				}
			}
		}
	}
}

// rhs packs the active mismatch equations in row order.
func (j *jacobian) rhs(mis []complex128) []float64 {
	f := make([]float64, j.n)
	for p, i := range j.pvpq {
		f[p] = real(mis[i])
	}
	for p, i := range j.pq {
		f[len(j.pvpq)+p] = imag(mis[i])
	}
	return f
}

// apply subtracts the Newton step from the voltage vector, updating
// angles at pv+pq buses and magnitudes at pq buses.
func (j *jacobian) apply(v []complex128, dx []float64) {
	for p, i := range j.pvpq {
		va := cmplx.Phase(v[i]) - dx[p]
		v[i] = cmplx.Rect(cmplx.Abs(v[i]), va)
	}
	for p, i := range j.pq {
		vm := cmplx.Abs(v[i]) - dx[len(j.pvpq)+p]
		v[i] = cmplx.Rect(vm, cmplx.Phase(v[i]))
	}
}
