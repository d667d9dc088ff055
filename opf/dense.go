package opf

// Small dense complex helpers for assembling the AC Lagrangian blocks.
// Cases this solver targets are small enough that the quadratic cost of
// dense products never dominates; the KKT system itself is still solved
// sparse.

func czeros(nr, nc int) [][]complex128 {
	m := make([][]complex128, nr)
	for i := range m {
		m[i] = make([]complex128, nc)
	}
	return m
}

func cmul(a, b [][]complex128) [][]complex128 {
	nr, ni, nc := len(a), len(b), len(b[0])
	out := czeros(nr, nc)
	for i := 0; i < nr; i++ {
		for k := 0; k < ni; k++ {
			if a[i][k] == 0 {
				continue
			}
			for j := 0; j < nc; j++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func ctransp(a [][]complex128) [][]complex128 {
	out := czeros(len(a[0]), len(a))
	for i := range a {
		for j := range a[i] {
			out[j][i] = a[i][j]
		}
	}
	return out
}

func cconj(a [][]complex128) [][]complex128 {
	out := czeros(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = complex(real(a[i][j]), -imag(a[i][j]))
		}
	}
	return out
}

func cadd(a, b [][]complex128) [][]complex128 {
	out := czeros(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func csub(a, b [][]complex128) [][]complex128 {
	out := czeros(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] - b[i][j]
		}
	}
	return out
}

func cscale(a [][]complex128, s complex128) [][]complex128 {
	out := czeros(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = s * a[i][j]
		}
	}
	return out
}

func cdiag(v []complex128) [][]complex128 {
	out := czeros(len(v), len(v))
	for i, x := range v {
		out[i][i] = x
	}
	return out
}

func cmulVec(a [][]complex128, x []complex128) []complex128 {
	out := make([]complex128, len(a))
	for i := range a {
		for j, v := range a[i] {
			out[i] += v * x[j]
		}
	}
	return out
}

// rowColScale computes diag(r)·A·diag(c) for real scale vectors.
func rowColScale(r []float64, a [][]complex128, c []float64) [][]complex128 {
	out := czeros(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = complex(r[i]*c[j], 0) * a[i][j]
		}
	}
	return out
}
