// Package powerflow builds network admittance matrices and solves the
// steady-state power-flow problem with Newton-Raphson, fast-decoupled
// and DC linearized methods.
package powerflow

import (
	"math"
	"math/cmplx"

	"gridflow/network"
)

// YEntry is one stored entry of a sparse admittance row.
type YEntry struct {
	Col int
	Y   complex128
}

// BEntry is one stored entry of a real sparse susceptance row.
type BEntry struct {
	Col int
	V   float64
}

// YBus is the bus admittance matrix in row-wise sparse form together
// with the per-branch admittance pieces needed to reconstruct flows.
// Indices are positions into the case's bus slice, not bus ids.
type YBus struct {
	N    int
	Rows [][]YEntry

	// Per branch, indexed like Case.Branches. Out-of-service branches
	// hold zeros.
	From, To           []int
	Yff, Yft, Ytf, Ytt []complex128
}

// MulV computes Y·V.
func (y *YBus) MulV(v []complex128) []complex128 {
	out := make([]complex128, y.N)
	for i, row := range y.Rows {
		var sum complex128
		for _, e := range row {
			sum += e.Y * v[e.Col]
		}
		out[i] = sum
	}
	return out
}

type yAccum struct {
	n    int
	rows []map[int]complex128
}

func newYAccum(n int) *yAccum {
	rows := make([]map[int]complex128, n)
	for i := range rows {
		rows[i] = make(map[int]complex128)
	}
	return &yAccum{n: n, rows: rows}
}

func (a *yAccum) add(i, j int, v complex128) { a.rows[i][j] += v }

func (a *yAccum) sorted() [][]YEntry {
	rows := make([][]YEntry, a.n)
	for i, m := range a.rows {
		row := make([]YEntry, 0, len(m))
		for j := 0; j < a.n; j++ {
			if v, ok := m[j]; ok {
				row = append(row, YEntry{Col: j, Y: v})
			}
		}
		rows[i] = row
	}
	return rows
}

// branchAdmittances returns the two-port admittance pieces for a branch.
// The tap is t·e^{jθ} with a zero tap ratio treated as nominal.
func branchAdmittances(br *network.Branch) (yff, yft, ytf, ytt complex128) {
	ys := 1 / complex(br.R, br.X)
	bc := complex(0, br.B/2)

	tap := br.Tap
	if tap == 0 {
		tap = 1
	}
	t := cmplx.Rect(tap, br.Shift*math.Pi/180)

	yff = (ys + bc) / (t * cmplx.Conj(t))
	yft = -ys / cmplx.Conj(t)
	ytf = -ys / t
	ytt = ys + bc
	return
}

// BuildYBus assembles the bus admittance matrix for the in-service
// portion of the case. Shunts enter the diagonal as (Gs+jBs)/baseMVA.
func BuildYBus(c *network.Case) (*YBus, error) {
	if err := checkBusRefs(c); err != nil {
		return nil, err
	}

	n := len(c.Buses)
	idx := c.BusIndex()
	nb := len(c.Branches)

	y := &YBus{
		N:    n,
		From: make([]int, nb),
		To:   make([]int, nb),
		Yff:  make([]complex128, nb),
		Yft:  make([]complex128, nb),
		Ytf:  make([]complex128, nb),
		Ytt:  make([]complex128, nb),
	}

	acc := newYAccum(n)
	connected := make([]bool, n)

	for k := range c.Branches {
		br := &c.Branches[k]
		f, t := idx[br.From], idx[br.To]
		y.From[k], y.To[k] = f, t
		if !br.InService {
			continue
		}

		yff, yft, ytf, ytt := branchAdmittances(br)
		y.Yff[k], y.Yft[k], y.Ytf[k], y.Ytt[k] = yff, yft, ytf, ytt

		acc.add(f, f, yff)
		acc.add(f, t, yft)
		acc.add(t, f, ytf)
		acc.add(t, t, ytt)
		connected[f] = true
		connected[t] = true
	}

	for i := range c.Buses {
		b := &c.Buses[i]
		if b.Gs != 0 || b.Bs != 0 {
			acc.add(i, i, complex(b.Gs, b.Bs)/complex(c.BaseMVA, 0))
		}
	}

	for i := 0; i < n; i++ {
		if connected[i] && acc.rows[i][i] == 0 {
			return nil, network.ModelErrorf("bus %d has connections but zero driving-point admittance", c.Buses[i].ID)
		}
	}

	y.Rows = acc.sorted()
	return y, nil
}

func checkBusRefs(c *network.Case) error {
	idx := c.BusIndex()
	for i := range c.Generators {
		if _, ok := idx[c.Generators[i].Bus]; !ok {
			return network.ModelErrorf("generator %d references missing bus %d", i, c.Generators[i].Bus)
		}
	}
	for i := range c.Branches {
		if _, ok := idx[c.Branches[i].From]; !ok {
			return network.ModelErrorf("branch %d references missing from-bus %d", i, c.Branches[i].From)
		}
		if _, ok := idx[c.Branches[i].To]; !ok {
			return network.ModelErrorf("branch %d references missing to-bus %d", i, c.Branches[i].To)
		}
	}
	return nil
}

// BuildB assembles the constant susceptance matrices of the XB
// fast-decoupled scheme. B' neglects series resistance and all shunts
// but keeps phase shifters; B'' neglects phase shifters but keeps the
// rest. Both are the negated imaginary part of the corresponding
// admittance matrix.
func BuildB(c *network.Case) (bp, bpp [][]BEntry, err error) {
	cp := c.Copy()
	for i := range cp.Branches {
		cp.Branches[i].R = 0
		cp.Branches[i].B = 0
		cp.Branches[i].Tap = 1
	}
	for i := range cp.Buses {
		cp.Buses[i].Gs = 0
		cp.Buses[i].Bs = 0
	}
	yp, err := BuildYBus(cp)
	if err != nil {
		return nil, nil, err
	}

	cpp := c.Copy()
	for i := range cpp.Branches {
		cpp.Branches[i].Shift = 0
	}
	ypp, err := BuildYBus(cpp)
	if err != nil {
		return nil, nil, err
	}

	return negImag(yp.Rows), negImag(ypp.Rows), nil
}

func negImag(rows [][]YEntry) [][]BEntry {
	out := make([][]BEntry, len(rows))
	for i, row := range rows {
		br := make([]BEntry, 0, len(row))
		for _, e := range row {
			br = append(br, BEntry{Col: e.Col, V: -imag(e.Y)})
		}
		out[i] = br
	}
	return out
}

// DCModel holds the linearized network used by the DC solver and the
// DC optimal power flow: B·θ = P − Pbusinj with per-branch flow
// coefficients b and fixed phase-shift injections Pfinj.
type DCModel struct {
	N       int
	B       [][]BEntry
	From    []int
	To      []int
	Bbr     []float64 // per-branch b = 1/(x·tap), zero when out of service
	Pfinj   []float64 // per-branch shift injection, per unit
	Pbusinj []float64 // per-bus shift injection, per unit
}

// BuildDC assembles the DC network model.
func BuildDC(c *network.Case) (*DCModel, error) {
	if err := checkBusRefs(c); err != nil {
		return nil, err
	}

	n := len(c.Buses)
	idx := c.BusIndex()
	nb := len(c.Branches)

	d := &DCModel{
		N:       n,
		From:    make([]int, nb),
		To:      make([]int, nb),
		Bbr:     make([]float64, nb),
		Pfinj:   make([]float64, nb),
		Pbusinj: make([]float64, n),
	}

	rows := make([]map[int]float64, n)
	for i := range rows {
		rows[i] = make(map[int]float64)
	}

	for k := range c.Branches {
		br := &c.Branches[k]
		f, t := idx[br.From], idx[br.To]
		d.From[k], d.To[k] = f, t
		if !br.InService {
			continue
		}

		tap := br.Tap
		if tap == 0 {
			tap = 1
		}
		b := 1 / (br.X * tap)
		d.Bbr[k] = b

		rows[f][f] += b
		rows[f][t] -= b
		rows[t][f] -= b
		rows[t][t] += b

		if br.Shift != 0 {
			pf := -b * br.Shift * math.Pi / 180
			d.Pfinj[k] = pf
			d.Pbusinj[f] += pf
			d.Pbusinj[t] -= pf
		}
	}

	d.B = make([][]BEntry, n)
	for i, m := range rows {
		row := make([]BEntry, 0, len(m))
		for j := 0; j < n; j++ {
			if v, ok := m[j]; ok {
				row = append(row, BEntry{Col: j, V: v})
			}
		}
		d.B[i] = row
	}
	return d, nil
}
