package opf

import "math/cmplx"

// First and second partial derivatives of the complex bus injections and
// branch flows with respect to voltage angle and magnitude, following
// Zimmerman's derivations in MATPOWER (dSbus_dV, dSbr_dV, d2Sbus_dV2,
// d2Sbr_dV2, d2ASbr_dV2).

// dSbusDV returns dS/dVa and dS/dVm for S = V ∘ conj(Y·V).
func dSbusDV(y [][]complex128, v []complex128) (dVa, dVm [][]complex128) {
	n := len(v)
	ibus := cmulVec(y, v)

	dVa = czeros(n, n)
	dVm = czeros(n, n)
	for i := 0; i < n; i++ {
		vnormI := v[i] / complex(cmplx.Abs(v[i]), 0)
		for k := 0; k < n; k++ {
			if i != k {
				if y[i][k] == 0 {
					continue
				}
				dVa[i][k] = complex(0, -1) * v[i] * cmplx.Conj(y[i][k]*v[k])
				dVm[i][k] = v[i] * cmplx.Conj(y[i][k]*v[k]/complex(cmplx.Abs(v[k]), 0))
			} else {
				dVa[i][i] = complex(0, 1) * v[i] * cmplx.Conj(ibus[i]-y[i][i]*v[i])
				dVm[i][i] = v[i]*cmplx.Conj(y[i][i]*vnormI) + cmplx.Conj(ibus[i])*vnormI
			}
		}
	}
	return
}

// dSbrDV returns the partials of the branch flows S_r = V[e]·conj(I_r)
// where I = Ybr·V and e picks the measurement end of each row.
func dSbrDV(ybr [][]complex128, end []int, v []complex128) (s []complex128, dVa, dVm [][]complex128) {
	nl := len(ybr)
	n := len(v)

	ibr := cmulVec(ybr, v)
	s = make([]complex128, nl)
	for r := 0; r < nl; r++ {
		s[r] = v[end[r]] * cmplx.Conj(ibr[r])
	}

	dVa = czeros(nl, n)
	dVm = czeros(nl, n)
	for r := 0; r < nl; r++ {
		e := end[r]
		for k := 0; k < n; k++ {
			var ind complex128
			if k == e {
				ind = 1
			}
			vnormK := v[k] / complex(cmplx.Abs(v[k]), 0)
			dVa[r][k] = complex(0, 1) * (cmplx.Conj(ibr[r])*v[e]*ind - v[e]*cmplx.Conj(ybr[r][k]*v[k]))
			dVm[r][k] = v[e]*cmplx.Conj(ybr[r][k]*vnormK) + cmplx.Conj(ibr[r])*vnormK*ind
		}
	}
	return
}

// dAbrRow converts a complex flow partial row into the partial of the
// squared magnitude: d|S|²/dx = 2·Re(conj(S)·dS/dx).
func dAbrRow(s complex128, drow []complex128) []float64 {
	out := make([]float64, len(drow))
	cs := cmplx.Conj(s)
	for j, d := range drow {
		out[j] = 2 * real(cs*d)
	}
	return out
}

// d2SbusDV2 computes the second-derivative blocks of lamᵀ·S(V):
//
//	A = diag(lam ∘ V), B = Y·diag(V), C = A·conj(B), D = Yᴴ·diag(V)
//	E = conj(diag(V))·(D·diag(lam) − diag(D·lam))
//	F = C − A·diag(conj(Ibus)),  G = diag(1/|V|)
//	Gaa = E + F, Gva = j·G·(E−F), Gav = Gvaᵀ, Gvv = G·(C+Cᵀ)·G
func d2SbusDV2(y [][]complex128, v []complex128, lam []float64) (gaa, gav, gva, gvv [][]complex128) {
	n := len(v)
	ibus := cmulVec(y, v)

	ginv := make([]float64, n)
	ones := make([]float64, n)
	for i := range v {
		ginv[i] = 1 / cmplx.Abs(v[i])
		ones[i] = 1
	}

	c := czeros(n, n)
	e := czeros(n, n)
	f := czeros(n, n)

	dlam := make([]complex128, n) // D·lam
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			dik := cmplx.Conj(y[k][i]) * v[k]
			dlam[i] += dik * complex(lam[k], 0)
		}
	}

	for i := 0; i < n; i++ {
		ai := complex(lam[i], 0) * v[i]
		for k := 0; k < n; k++ {
			c[i][k] = ai * cmplx.Conj(y[i][k]*v[k])

			dik := cmplx.Conj(y[k][i]) * v[k]
			ev := dik * complex(lam[k], 0)
			if i == k {
				ev -= dlam[i]
			}
			e[i][k] = cmplx.Conj(v[i]) * ev

			f[i][k] = c[i][k]
			if i == k {
				f[i][k] -= ai * cmplx.Conj(ibus[i])
			}
		}
	}

	gaa = cadd(e, f)
	gva = rowColScale(ginv, cscale(csub(e, f), complex(0, 1)), ones)
	gav = ctransp(gva)
	gvv = rowColScale(ginv, cadd(c, ctransp(c)), ginv)
	return
}

// d2SbrDV2 computes the second-derivative blocks of lamᵀ·Sbr(V) for
// branch flows measured through incidence cbr and branch admittance ybr:
//
//	A = ybrᴴ·diag(lam)·cbr, B = conj(diag(V))·A·diag(V)
//	D = diag((A·V) ∘ conj(V)), E = diag((Aᵀ·conj(V)) ∘ V), F = B + Bᵀ
//	Haa = F − D − E, Hva = j·G·(B − Bᵀ − D + E), Hav = Hvaᵀ, Hvv = G·F·G
func d2SbrDV2(cbr, ybr [][]complex128, v []complex128, lam []complex128) (haa, hav, hva, hvv [][]complex128) {
	n := len(v)

	a := cmul(cmul(cconj(ctransp(ybr)), cdiag(lam)), cbr)

	b := czeros(n, n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			b[i][k] = cmplx.Conj(v[i]) * a[i][k] * v[k]
		}
	}

	av := cmulVec(a, v)
	atcv := cmulVec(ctransp(a), cconjVec(v))

	d := czeros(n, n)
	e := czeros(n, n)
	for i := 0; i < n; i++ {
		d[i][i] = av[i] * cmplx.Conj(v[i])
		e[i][i] = atcv[i] * v[i]
	}

	f := cadd(b, ctransp(b))
	ginv := make([]float64, n)
	ones := make([]float64, n)
	for i := range v {
		ginv[i] = 1 / cmplx.Abs(v[i])
		ones[i] = 1
	}

	haa = csub(csub(f, d), e)
	hva = rowColScale(ginv, cscale(cadd(csub(csub(b, ctransp(b)), d), e), complex(0, 1)), ones)
	hav = ctransp(hva)
	hvv = rowColScale(ginv, f, ginv)
	return
}

func cconjVec(v []complex128) []complex128 {
	out := make([]complex128, len(v))
	for i, x := range v {
		out[i] = cmplx.Conj(x)
	}
	return out
}

// d2ASbrDV2 lifts the flow Hessian to the squared magnitude |Sbr|²:
//
//	Hxy = 2·real(Sxy + dSbr_dxᵀ·diag(mu)·conj(dSbr_dy))
//
// where Sxy are the d2SbrDV2 blocks evaluated at lam = conj(Sbr) ∘ mu.
func d2ASbrDV2(dVa, dVm [][]complex128, sbr []complex128, cbr, ybr [][]complex128,
	v []complex128, mu []float64) (haa, hav, hva, hvv [][]float64) {

	lam := make([]complex128, len(sbr))
	for r := range sbr {
		lam[r] = cmplx.Conj(sbr[r]) * complex(mu[r], 0)
	}
	saa, sav, sva, svv := d2SbrDV2(cbr, ybr, v, lam)

	cross := func(dx, dy [][]complex128) [][]complex128 {
		// dxᵀ·diag(mu)·conj(dy)
		n := len(v)
		out := czeros(n, n)
		for r := range mu {
			if mu[r] == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				if dx[r][i] == 0 {
					continue
				}
				w := dx[r][i] * complex(mu[r], 0)
				for k := 0; k < n; k++ {
					out[i][k] += w * cmplx.Conj(dy[r][k])
				}
			}
		}
		return out
	}

	re2 := func(a, b [][]complex128) [][]float64 {
		n := len(a)
		out := make([][]float64, n)
		for i := 0; i < n; i++ {
			out[i] = make([]float64, n)
			for k := 0; k < n; k++ {
				out[i][k] = 2 * real(a[i][k]+b[i][k])
			}
		}
		return out
	}

	haa = re2(saa, cross(dVa, dVa))
	hva = re2(sva, cross(dVm, dVa))
	hav = re2(sav, cross(dVa, dVm))
	hvv = re2(svv, cross(dVm, dVm))
	return
}
