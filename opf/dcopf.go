package opf

import (
	"math"

	"github.com/google/uuid"

	"gridflow/network"
	"gridflow/powerflow"
)

// solveDCOPF minimizes cost over x = [θ; Pg] (plus one cost helper
// variable per generator when costs are piecewise linear) subject to the
// linearized power balance, reference angles, generator limits and
// two-sided branch flow limits. All-polynomial costs give a QP,
// all-piecewise-linear an LP; both go through the interior point solver.
func solveDCOPF(c *network.Case, cfg Config) (*Result, error) {
	d, err := powerflow.BuildDC(c)
	if err != nil {
		return nil, err
	}
	base := c.BaseMVA
	idx := c.BusIndex()
	gens := c.OnlineGenerators()
	nb := len(c.Buses)
	ng := len(gens)
	if ng == 0 {
		return nil, network.ModelErrorf("opf requires at least one in-service generator")
	}

	pwl := false
	poly := false
	for _, g := range gens {
		switch c.Costs[g].Model {
		case network.PiecewiseLinear:
			pwl = true
		case network.Polynomial:
			poly = true
			if len(c.Costs[g].Coeffs) > 3 {
				return nil, network.ModelErrorf("dc opf supports polynomial costs up to degree 2, generator %d has degree %d",
					g, len(c.Costs[g].Coeffs)-1)
			}
		}
	}
	if pwl && poly {
		return nil, network.ModelErrorf("dc opf requires a single cost model, got a polynomial and piecewise-linear mix")
	}

	ny := 0
	if pwl {
		ny = ng
	}
	nx := nb + ng + ny

	var refs []int
	for i := range c.Buses {
		if c.Buses[i].Type == network.Ref {
			refs = append(refs, i)
		}
	}

	// Equality rows: reference angles, then one balance row per bus.
	nref := len(refs)
	neq := nref + nb

	type flowRow struct {
		branch int
		from   bool
	}
	var flowRows []flowRow
	if !cfg.IgnoreFlowLimits {
		for k := range c.Branches {
			if c.Branches[k].InService && c.Branches[k].RateA > 0 {
				flowRows = append(flowRows, flowRow{k, true}, flowRow{k, false})
			}
		}
	}

	nSeg := 0
	if pwl {
		for _, g := range gens {
			nSeg += len(c.Costs[g].Points) - 1
		}
	}

	nA := neq + len(flowRows) + nSeg
	a := newSpmat(nA, nx)
	b := make([]float64, nA)

	for q, i := range refs {
		a.rows[q][i] = 1
		b[q] = c.Buses[i].Va * math.Pi / 180
	}

	for i := 0; i < nb; i++ {
		r := nref + i
		for _, e := range d.B[i] {
			a.rows[r][e.Col] += e.V
		}
		b[r] = -(c.Buses[i].Pd+c.Buses[i].Gs)/base - d.Pbusinj[i]
	}
	for gi, g := range gens {
		i := idx[c.Generators[g].Bus]
		a.rows[nref+i][nb+gi] -= 1
	}

	row := neq
	for _, fr := range flowRows {
		k := fr.branch
		s := 1.0
		if !fr.from {
			s = -1
		}
		a.rows[row][d.From[k]] += s * d.Bbr[k]
		a.rows[row][d.To[k]] -= s * d.Bbr[k]
		b[row] = c.Branches[k].RateA/base - s*d.Pfinj[k]
		row++
	}

	// Piecewise-linear epigraph: y_g sits above every cost segment.
	if pwl {
		for gi, g := range gens {
			pts := c.Costs[g].Points
			for s := 0; s < len(pts)-1; s++ {
				m := (pts[s+1].Cost - pts[s].Cost) / (pts[s+1].P - pts[s].P)
				intercept := pts[s].Cost - m*pts[s].P
				a.rows[row][nb+gi] = m * base
				a.rows[row][nb+ng+gi] = -1
				b[row] = -intercept
				row++
			}
		}
	}

	// Bounds and start point.
	xmin := make([]float64, nx)
	xmax := make([]float64, nx)
	x0 := make([]float64, nx)
	for i := 0; i < nx; i++ {
		xmin[i] = math.Inf(-1)
		xmax[i] = math.Inf(1)
	}
	for i := 0; i < nb; i++ {
		x0[i] = c.Buses[i].Va * math.Pi / 180
		if cfg.FlatStart {
			x0[i] = 0
		}
	}
	for gi, g := range gens {
		gen := &c.Generators[g]
		xmin[nb+gi] = gen.PMin / base
		xmax[nb+gi] = gen.PMax / base
		x0[nb+gi] = gen.Pg / base
		if pwl {
			x0[nb+ng+gi] = genCost(&c.Costs[g], gen.Pg)
		}
	}

	// Objective.
	var hmat *spmat
	cvec := make([]float64, nx)
	offset := 0.0
	if pwl {
		for gi := range gens {
			cvec[nb+ng+gi] = 1
		}
	} else {
		hmat = newSpmat(nx, nx)
		for gi, g := range gens {
			c2, c1, c0 := quadCoeffs(c.Costs[g].Coeffs)
			hmat.rows[nb+gi][nb+gi] = 2 * c2 * base * base
			cvec[nb+gi] = c1 * base
			offset += c0
		}
	}

	sol, err := qp(hmat, cvec, a, b, neq, xmin, xmax, x0, cfg.ipmOptions())
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:         uuid.New(),
		Case:       c,
		FlowModel:  DC,
		Status:     statusOf(sol, cfg),
		Iterations: sol.Iterations,
	}

	x := sol.X
	prices := ShadowPrices{
		LambdaP: make([]float64, nb),
		LambdaQ: make([]float64, nb),
		MuVMin:  make([]float64, nb),
		MuVMax:  make([]float64, nb),
		MuPMin:  make([]float64, len(c.Generators)),
		MuPMax:  make([]float64, len(c.Generators)),
		MuQMin:  make([]float64, len(c.Generators)),
		MuQMax:  make([]float64, len(c.Generators)),
		MuSf:    make([]float64, len(c.Branches)),
		MuSt:    make([]float64, len(c.Branches)),
	}

	for i := 0; i < nb; i++ {
		r := nref + i
		prices.LambdaP[i] = (sol.Lambda.MuU[r] - sol.Lambda.MuL[r]) / base
	}
	for gi, g := range gens {
		prices.MuPMin[g] = sol.Lambda.Lower[nb+gi] / base
		prices.MuPMax[g] = sol.Lambda.Upper[nb+gi] / base
	}
	for q, fr := range flowRows {
		mu := sol.Lambda.MuU[neq+q] / base
		if fr.from {
			prices.MuSf[fr.branch] = mu
		} else {
			prices.MuSt[fr.branch] = mu
		}
	}
	res.Prices = prices

	// Write the operating point back into the case copy.
	for i := 0; i < nb; i++ {
		c.Buses[i].Vm = 1
		c.Buses[i].Va = x[i] * 180 / math.Pi
		c.Buses[i].LambdaP = prices.LambdaP[i]
		c.Buses[i].LambdaQ = 0
	}
	for gi, g := range gens {
		c.Generators[g].Pg = x[nb+gi] * base
		c.Generators[g].MuPMin = prices.MuPMin[g]
		c.Generators[g].MuPMax = prices.MuPMax[g]
	}
	for k := range c.Branches {
		br := &c.Branches[k]
		if !br.InService {
			br.Pf, br.Pt, br.Qf, br.Qt = 0, 0, 0, 0
			continue
		}
		pf := (d.Bbr[k]*(x[d.From[k]]-x[d.To[k]]) + d.Pfinj[k]) * base
		br.Pf, br.Pt = pf, -pf
		br.Qf, br.Qt = 0, 0
		br.MuSf = prices.MuSf[k]
		br.MuSt = prices.MuSt[k]
	}

	if pwl {
		res.Objective = sol.F
	} else {
		res.Objective = sol.F + offset
	}

	if res.Status != Optimal {
		res.Violations = dcViolations(c, x, b, a, neq, cfg)
	}
	return res, nil
}

// dcViolations lists the constraints violated at the final iterate.
func dcViolations(c *network.Case, x, b []float64, a *spmat, neq int, cfg Config) []Violation {
	var out []Violation
	ax := a.mulVec(x)
	for r := 0; r < neq; r++ {
		if v := math.Abs(ax[r] - b[r]); v > cfg.Tolerance {
			out = append(out, Violation{Constraint: "power balance", Amount: v})
		}
	}
	for r := neq; r < len(b); r++ {
		if v := ax[r] - b[r]; v > cfg.Tolerance {
			out = append(out, Violation{Constraint: "flow limit", Amount: v})
		}
	}
	nb := len(c.Buses)
	for gi, g := range c.OnlineGenerators() {
		pg := x[nb+gi] * c.BaseMVA
		gen := &c.Generators[g]
		if pg < gen.PMin-cfg.Tolerance*c.BaseMVA {
			out = append(out, Violation{Constraint: "generator lower limit", Amount: (gen.PMin - pg) / c.BaseMVA})
		}
		if pg > gen.PMax+cfg.Tolerance*c.BaseMVA {
			out = append(out, Violation{Constraint: "generator upper limit", Amount: (pg - gen.PMax) / c.BaseMVA})
		}
	}
	return out
}
