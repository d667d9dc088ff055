package opf

import (
	"math"
	"math/cmplx"

	"github.com/google/uuid"

	"gridflow/network"
	"gridflow/powerflow"
)

// solveACOPF minimizes cost over x = [Va; Vm; Pg; Qg] subject to the
// full nonlinear power balance at every bus, squared apparent-power
// limits on rated branches and the variable box constraints. Costs must
// be polynomial; piecewise-linear models are rejected here the way the
// linearized formulation rejects mixtures.
func solveACOPF(c *network.Case, cfg Config) (*Result, error) {
	base := c.BaseMVA
	idx := c.BusIndex()
	gens := c.OnlineGenerators()
	nb := len(c.Buses)
	ng := len(gens)
	if ng == 0 {
		return nil, network.ModelErrorf("opf requires at least one in-service generator")
	}
	for _, g := range gens {
		if c.Costs[g].Model != network.Polynomial {
			return nil, network.ModelErrorf("ac opf requires polynomial costs, generator %d is piecewise linear", g)
		}
	}

	y, err := powerflow.BuildYBus(c)
	if err != nil {
		return nil, err
	}
	yd := czeros(nb, nb)
	for i, row := range y.Rows {
		for _, e := range row {
			yd[i][e.Col] = e.Y
		}
	}

	// Rated in-service branches get flow constraints.
	var fl []int
	if !cfg.IgnoreFlowLimits {
		for k := range c.Branches {
			if c.Branches[k].InService && c.Branches[k].RateA > 0 {
				fl = append(fl, k)
			}
		}
	}
	nlc := len(fl)

	yf := czeros(nlc, nb)
	yt := czeros(nlc, nb)
	cf := czeros(nlc, nb)
	ct := czeros(nlc, nb)
	fEnd := make([]int, nlc)
	tEnd := make([]int, nlc)
	rate2 := make([]float64, nlc)
	for r, k := range fl {
		f, t := y.From[k], y.To[k]
		fEnd[r], tEnd[r] = f, t
		yf[r][f] = y.Yff[k]
		yf[r][t] = y.Yft[k]
		yt[r][f] = y.Ytf[k]
		yt[r][t] = y.Ytt[k]
		cf[r][f] = 1
		ct[r][t] = 1
		ra := c.Branches[k].RateA / base
		rate2[r] = ra * ra
	}

	// Variable layout.
	nx := 2*nb + 2*ng
	vaCol := func(i int) int { return i }
	vmCol := func(i int) int { return nb + i }
	pgCol := func(gi int) int { return 2*nb + gi }
	qgCol := func(gi int) int { return 2*nb + ng + gi }

	xmin := make([]float64, nx)
	xmax := make([]float64, nx)
	x0 := make([]float64, nx)
	for i := 0; i < nb; i++ {
		bus := &c.Buses[i]
		xmin[vaCol(i)] = math.Inf(-1)
		xmax[vaCol(i)] = math.Inf(1)
		va0 := bus.Va * math.Pi / 180
		if cfg.FlatStart {
			va0 = 0
		}
		if bus.Type == network.Ref {
			xmin[vaCol(i)] = va0
			xmax[vaCol(i)] = va0
		}
		x0[vaCol(i)] = va0

		xmin[vmCol(i)] = bus.VMin
		xmax[vmCol(i)] = bus.VMax
		if bus.VMax == 0 {
			xmax[vmCol(i)] = math.Inf(1)
		}
		if cfg.FlatStart {
			x0[vmCol(i)] = 1
		} else {
			x0[vmCol(i)] = bus.Vm
		}
	}
	for gi, g := range gens {
		gen := &c.Generators[g]
		xmin[pgCol(gi)] = gen.PMin / base
		xmax[pgCol(gi)] = gen.PMax / base
		xmin[qgCol(gi)] = gen.QMin / base
		xmax[qgCol(gi)] = gen.QMax / base
		x0[pgCol(gi)] = gen.Pg / base
		x0[qgCol(gi)] = gen.Qg / base
		i := idx[gen.Bus]
		x0[vmCol(i)] = gen.Vg
	}

	voltage := func(x []float64) []complex128 {
		v := make([]complex128, nb)
		for i := 0; i < nb; i++ {
			v[i] = cmplx.Rect(x[vmCol(i)], x[vaCol(i)])
		}
		return v
	}

	objective := func(x []float64) (float64, []float64) {
		f := 0.0
		df := make([]float64, nx)
		for gi, g := range gens {
			pgMW := x[pgCol(gi)] * base
			f += polyVal(c.Costs[g].Coeffs, pgMW)
			df[pgCol(gi)] = polyVal(polyDer(c.Costs[g].Coeffs), pgMW) * base
		}
		return f, df
	}

	constraints := func(x []float64) (h, g []float64, dh, dg *spmat) {
		v := voltage(x)

		// Power balance: S(V) + Sd/base − Cg·Sg = 0, split re/im.
		mis := powerflow.Injections(y, v)
		for i := 0; i < nb; i++ {
			mis[i] += complex(c.Buses[i].Pd, c.Buses[i].Qd) / complex(base, 0)
		}
		for gi, gen := range gens {
			i := idx[c.Generators[gen].Bus]
			mis[i] -= complex(x[pgCol(gi)], x[qgCol(gi)])
		}

		h = make([]float64, 2*nb)
		for i := 0; i < nb; i++ {
			h[i] = real(mis[i])
			h[nb+i] = imag(mis[i])
		}

		dh = newSpmat(2*nb, nx)
		dVa, dVm := dSbusDV(yd, v)
		for i := 0; i < nb; i++ {
			for k := 0; k < nb; k++ {
				dh.addAt(i, vaCol(k), real(dVa[i][k]))
				dh.addAt(i, vmCol(k), real(dVm[i][k]))
				dh.addAt(nb+i, vaCol(k), imag(dVa[i][k]))
				dh.addAt(nb+i, vmCol(k), imag(dVm[i][k]))
			}
		}
		for gi, gen := range gens {
			i := idx[c.Generators[gen].Bus]
			dh.addAt(i, pgCol(gi), -1)
			dh.addAt(nb+i, qgCol(gi), -1)
		}

		// Flow limits: |Sf|² ≤ rate², |St|² ≤ rate².
		g = make([]float64, 2*nlc)
		dg = newSpmat(2*nlc, nx)
		if nlc > 0 {
			sf, dSfVa, dSfVm := dSbrDV(yf, fEnd, v)
			st, dStVa, dStVm := dSbrDV(yt, tEnd, v)
			for r := 0; r < nlc; r++ {
				g[r] = real(sf[r])*real(sf[r]) + imag(sf[r])*imag(sf[r]) - rate2[r]
				g[nlc+r] = real(st[r])*real(st[r]) + imag(st[r])*imag(st[r]) - rate2[r]

				dfa := dAbrRow(sf[r], dSfVa[r])
				dfm := dAbrRow(sf[r], dSfVm[r])
				dta := dAbrRow(st[r], dStVa[r])
				dtm := dAbrRow(st[r], dStVm[r])
				for k := 0; k < nb; k++ {
					dg.addAt(r, vaCol(k), dfa[k])
					dg.addAt(r, vmCol(k), dfm[k])
					dg.addAt(nlc+r, vaCol(k), dta[k])
					dg.addAt(nlc+r, vmCol(k), dtm[k])
				}
			}
		}
		return
	}

	hessian := func(x, lam, mu []float64, costMult float64) *spmat {
		v := voltage(x)
		lxx := newSpmat(nx, nx)

		// Cost curvature.
		for gi, g := range gens {
			pgMW := x[pgCol(gi)] * base
			d2 := polyVal(polyDer(polyDer(c.Costs[g].Coeffs)), pgMW) * base * base
			lxx.addAt(pgCol(gi), pgCol(gi), costMult*d2)
		}

		// Balance curvature, P rows weighted by lam[:nb], Q by lam[nb:].
		lamP := lam[:nb]
		lamQ := lam[nb : 2*nb]
		paa, pav, pva, pvv := d2SbusDV2(yd, v, lamP)
		qaa, qav, qva, qvv := d2SbusDV2(yd, v, lamQ)
		for i := 0; i < nb; i++ {
			for k := 0; k < nb; k++ {
				lxx.addAt(vaCol(i), vaCol(k), real(paa[i][k])+imag(qaa[i][k]))
				lxx.addAt(vaCol(i), vmCol(k), real(pav[i][k])+imag(qav[i][k]))
				lxx.addAt(vmCol(i), vaCol(k), real(pva[i][k])+imag(qva[i][k]))
				lxx.addAt(vmCol(i), vmCol(k), real(pvv[i][k])+imag(qvv[i][k]))
			}
		}

		// Flow limit curvature.
		if nlc > 0 {
			muF := mu[:nlc]
			muT := mu[nlc:]
			sf, dSfVa, dSfVm := dSbrDV(yf, fEnd, v)
			st, dStVa, dStVm := dSbrDV(yt, tEnd, v)
			faa, fav, fva, fvv := d2ASbrDV2(dSfVa, dSfVm, sf, cf, yf, v, muF)
			taa, tav, tva, tvv := d2ASbrDV2(dStVa, dStVm, st, ct, yt, v, muT)
			for i := 0; i < nb; i++ {
				for k := 0; k < nb; k++ {
					lxx.addAt(vaCol(i), vaCol(k), faa[i][k]+taa[i][k])
					lxx.addAt(vaCol(i), vmCol(k), fav[i][k]+tav[i][k])
					lxx.addAt(vmCol(i), vaCol(k), fva[i][k]+tva[i][k])
					lxx.addAt(vmCol(i), vmCol(k), fvv[i][k]+tvv[i][k])
				}
			}
		}
		return lxx
	}

	p := ipmProblem{
		f:    objective,
		gh:   constraints,
		hess: hessian,
		x0:   x0,
		xmin: xmin,
		xmax: xmax,
	}
	sol, err := pdipm(p, cfg.ipmOptions())
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:         uuid.New(),
		Case:       c,
		FlowModel:  AC,
		Status:     statusOf(sol, cfg),
		Objective:  sol.F,
		Iterations: sol.Iterations,
	}

	x := sol.X
	v := voltage(x)

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
		prices.LambdaP[i] = sol.Lambda.EqNonlin[i] / base
		prices.LambdaQ[i] = sol.Lambda.EqNonlin[nb+i] / base
		prices.MuVMin[i] = sol.Lambda.Lower[vmCol(i)]
		prices.MuVMax[i] = sol.Lambda.Upper[vmCol(i)]
	}
	for gi, g := range gens {
		prices.MuPMin[g] = sol.Lambda.Lower[pgCol(gi)] / base
		prices.MuPMax[g] = sol.Lambda.Upper[pgCol(gi)] / base
		prices.MuQMin[g] = sol.Lambda.Lower[qgCol(gi)] / base
		prices.MuQMax[g] = sol.Lambda.Upper[qgCol(gi)] / base
	}
	// |S|² multipliers convert to per-MVA at the binding limit.
	for r, k := range fl {
		ra := c.Branches[k].RateA / base
		prices.MuSf[k] = sol.Lambda.IneqNonlin[r] * 2 * ra / base
		prices.MuSt[k] = sol.Lambda.IneqNonlin[nlc+r] * 2 * ra / base
	}
	res.Prices = prices

	// Write the operating point back into the case copy.
	flows := powerflow.BranchFlows(y, v)
	for i := 0; i < nb; i++ {
		c.Buses[i].Vm = cmplx.Abs(v[i])
		c.Buses[i].Va = cmplx.Phase(v[i]) * 180 / math.Pi
		c.Buses[i].LambdaP = prices.LambdaP[i]
		c.Buses[i].LambdaQ = prices.LambdaQ[i]
		c.Buses[i].MuVMin = prices.MuVMin[i]
		c.Buses[i].MuVMax = prices.MuVMax[i]
	}
	for gi, g := range gens {
		c.Generators[g].Pg = x[pgCol(gi)] * base
		c.Generators[g].Qg = x[qgCol(gi)] * base
		c.Generators[g].MuPMin = prices.MuPMin[g]
		c.Generators[g].MuPMax = prices.MuPMax[g]
		c.Generators[g].MuQMin = prices.MuQMin[g]
		c.Generators[g].MuQMax = prices.MuQMax[g]
	}
	for k := range c.Branches {
		br := &c.Branches[k]
		if !br.InService {
			br.Pf, br.Pt, br.Qf, br.Qt = 0, 0, 0, 0
			continue
		}
		br.Pf = real(flows[k].Sf) * base
		br.Qf = imag(flows[k].Sf) * base
		br.Pt = real(flows[k].St) * base
		br.Qt = imag(flows[k].St) * base
		br.MuSf = prices.MuSf[k]
		br.MuSt = prices.MuSt[k]
	}

	if res.Status != Optimal {
		h, g, _, _ := constraints(x)
		for i, hv := range h {
			if math.Abs(hv) > cfg.Tolerance {
				kind := "active power balance"
				if i >= nb {
					kind = "reactive power balance"
				}
				res.Violations = append(res.Violations, Violation{Constraint: kind, Amount: math.Abs(hv)})
			}
		}
		for _, gv := range g {
			if gv > cfg.Tolerance {
				res.Violations = append(res.Violations, Violation{Constraint: "flow limit", Amount: gv})
			}
		}
	}
	return res, nil
}
