package opf

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"

	"gridflow/network"
)

func TestDCOPFCase6WW(t *testing.T) {
	c := network.Case6WW()
	res, err := SolveOPF(c, Config{FlowModel: DC})
	assert.NilError(t, err)
	assert.Equal(t, res.Status, Optimal)

	// Lossless balance: generation matches the 210 MW of load.
	sumPg, sumPd := 0.0, 0.0
	for g := range res.Case.Generators {
		sumPg += res.Case.Generators[g].Pg
	}
	for i := range res.Case.Buses {
		sumPd += res.Case.Buses[i].Pd
	}
	assert.Assert(t, math.Abs(sumPg-sumPd) < 1e-4)

	// Dispatch stays inside the generator limits.
	for g := range res.Case.Generators {
		gen := &res.Case.Generators[g]
		assert.Assert(t, gen.Pg > gen.PMin-1e-4)
		assert.Assert(t, gen.Pg < gen.PMax+1e-4)
	}

	// Unit 1 is the expensive one and sits on its 50 MW floor, with a
	// positive multiplier telling it to back off further if it could.
	assert.Assert(t, math.Abs(res.Case.Generators[0].Pg-50) < 0.1)
	assert.Assert(t, res.Prices.MuPMin[0] > 0.01)
	assert.Assert(t, res.Prices.MuPMax[0] < 1e-4)

	// The optimum beats a naive equal split of the load.
	equalSplit := c.Copy()
	for g := range equalSplit.Generators {
		equalSplit.Generators[g].Pg = 70
	}
	assert.Assert(t, res.Objective < totalCost(equalSplit))
	assert.Assert(t, res.Objective > 2900 && res.Objective < 3100)

	// No congestion in this case, so prices are near-uniform and close
	// to the marginal unit's incremental cost.
	for i := range res.Case.Buses {
		lam := res.Prices.LambdaP[i]
		assert.Assert(t, lam > 11 && lam < 13)
		assert.Assert(t, math.Abs(lam-res.Prices.LambdaP[0]) < 0.2)
		assert.Equal(t, res.Case.Buses[i].LambdaP, lam)
	}

	// Input case untouched.
	assert.Equal(t, c.Generators[0].Pg, 0.0)
	assert.Equal(t, c.Buses[1].Va, 0.0)
}

func TestDCOPFIgnoreFlowLimits(t *testing.T) {
	limited, err := SolveOPF(network.Case6WW(), Config{FlowModel: DC})
	assert.NilError(t, err)
	free, err := SolveOPF(network.Case6WW(), Config{FlowModel: DC, IgnoreFlowLimits: true})
	assert.NilError(t, err)
	assert.Equal(t, free.Status, Optimal)

	// Dropping constraints can only help.
	assert.Assert(t, free.Objective < limited.Objective+1e-6)
}

func TestDCOPFFlowsWithinRatings(t *testing.T) {
	res, err := SolveOPF(network.Case6WW(), Config{FlowModel: DC})
	assert.NilError(t, err)
	for k := range res.Case.Branches {
		br := &res.Case.Branches[k]
		assert.Assert(t, math.Abs(br.Pf) < br.RateA+1e-4)
	}
}

func TestDCOPFMixedCostModels(t *testing.T) {
	c := network.Case6WW()
	c.Costs[1] = network.GeneratorCost{
		Model:  network.PiecewiseLinear,
		Points: []network.CostPoint{{P: 0, Cost: 0}, {P: 150, Cost: 2000}},
	}
	_, err := SolveOPF(c, Config{FlowModel: DC})
	assert.Assert(t, network.IsModelError(err))
}

func TestDCOPFCubicCostRejected(t *testing.T) {
	c := network.Case6WW()
	c.Costs[0].Coeffs = []float64{1e-6, 0.00533, 11.669, 213.1}
	_, err := SolveOPF(c, Config{FlowModel: DC})
	assert.Assert(t, network.IsModelError(err))
}

func TestDCOPFPiecewiseLinearAll(t *testing.T) {
	c := network.Case6WW()
	for g := range c.Costs {
		// Two segments with increasing slopes around each unit's range.
		pmax := c.Generators[g].PMax
		c.Costs[g] = network.GeneratorCost{
			Model: network.PiecewiseLinear,
			Points: []network.CostPoint{
				{P: 0, Cost: 0},
				{P: pmax / 2, Cost: 11 * pmax / 2},
				{P: pmax, Cost: 11*pmax/2 + 14*pmax/2},
			},
		}
	}
	res, err := SolveOPF(c, Config{FlowModel: DC})
	assert.NilError(t, err)
	assert.Equal(t, res.Status, Optimal)

	sumPg := 0.0
	for g := range res.Case.Generators {
		sumPg += res.Case.Generators[g].Pg
	}
	assert.Assert(t, math.Abs(sumPg-210) < 1e-4)
}
