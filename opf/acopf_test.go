package opf

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"

	"gridflow/network"
	"gridflow/powerflow"
)

func TestACOPFCase6WW(t *testing.T) {
	c := network.Case6WW()
	res, err := SolveOPF(c, Config{})
	assert.NilError(t, err)
	assert.Equal(t, res.Status, Optimal)
	assert.Equal(t, res.FlowModel, AC)
	assert.Assert(t, res.Iterations > 0)

	// Generation covers load plus a modest resistive loss.
	sumPg := 0.0
	for g := range res.Case.Generators {
		sumPg += res.Case.Generators[g].Pg
	}
	losses := sumPg - 210
	assert.Assert(t, losses > 0 && losses < 20)

	// Dispatch and voltages inside their boxes.
	for g := range res.Case.Generators {
		gen := &res.Case.Generators[g]
		assert.Assert(t, gen.Pg > gen.PMin-1e-3)
		assert.Assert(t, gen.Pg < gen.PMax+1e-3)
		assert.Assert(t, gen.Qg > gen.QMin-1e-3)
		assert.Assert(t, gen.Qg < gen.QMax+1e-3)
	}
	for i := range res.Case.Buses {
		bus := &res.Case.Buses[i]
		assert.Assert(t, bus.Vm > bus.VMin-1e-6)
		assert.Assert(t, bus.Vm < bus.VMax+1e-6)
	}

	// Apparent flows respect the ratings at both ends.
	for k := range res.Case.Branches {
		br := &res.Case.Branches[k]
		sf := math.Hypot(br.Pf, br.Qf)
		st := math.Hypot(br.Pt, br.Qt)
		assert.Assert(t, sf < br.RateA+1e-2)
		assert.Assert(t, st < br.RateA+1e-2)
	}

	// The objective lands between the lossless bound and a generous
	// ceiling, above the linearized dispatch cost.
	dc, err := SolveOPF(c, Config{FlowModel: DC})
	assert.NilError(t, err)
	assert.Assert(t, res.Objective > dc.Objective)
	assert.Assert(t, res.Objective < dc.Objective+250)

	// Marginal prices reflect the loss gradient but stay near the
	// incremental cost of the marginal units.
	for i := range res.Case.Buses {
		assert.Assert(t, res.Prices.LambdaP[i] > 10 && res.Prices.LambdaP[i] < 16)
	}

	// Input untouched.
	assert.Equal(t, c.Generators[0].Pg, 0.0)
	assert.Equal(t, c.Buses[3].Vm, 1.0)
}

func TestACOPFSolutionSatisfiesPowerFlow(t *testing.T) {
	res, err := SolveOPF(network.Case6WW(), Config{})
	assert.NilError(t, err)
	assert.Equal(t, res.Status, Optimal)

	// Re-solving the network equations from the optimal dispatch must
	// not move the operating point.
	y, err := powerflow.BuildYBus(res.Case)
	assert.NilError(t, err)
	n := len(res.Case.Buses)
	v := make([]complex128, n)
	for i := 0; i < n; i++ {
		vaRad := res.Case.Buses[i].Va * math.Pi / 180
		v[i] = complex(res.Case.Buses[i].Vm*math.Cos(vaRad), res.Case.Buses[i].Vm*math.Sin(vaRad))
	}
	inj := powerflow.Injections(y, v)
	for i := 0; i < n; i++ {
		want := complex(-res.Case.Buses[i].Pd/100, -res.Case.Buses[i].Qd/100)
		for g := range res.Case.Generators {
			if res.Case.Generators[g].Bus == res.Case.Buses[i].ID {
				want += complex(res.Case.Generators[g].Pg/100, res.Case.Generators[g].Qg/100)
			}
		}
		assert.Assert(t, real(inj[i]-want) < 1e-4 && real(inj[i]-want) > -1e-4)
		assert.Assert(t, imag(inj[i]-want) < 1e-4 && imag(inj[i]-want) > -1e-4)
	}
}

func TestACOPFRejectsPiecewiseLinear(t *testing.T) {
	c := network.Case6WW()
	c.Costs[2] = network.GeneratorCost{
		Model:  network.PiecewiseLinear,
		Points: []network.CostPoint{{P: 0, Cost: 0}, {P: 180, Cost: 2500}},
	}
	_, err := SolveOPF(c, Config{})
	assert.Assert(t, network.IsModelError(err))
}

func TestACOPFIgnoreFlowLimits(t *testing.T) {
	limited, err := SolveOPF(network.Case6WW(), Config{})
	assert.NilError(t, err)
	free, err := SolveOPF(network.Case6WW(), Config{IgnoreFlowLimits: true})
	assert.NilError(t, err)
	assert.Equal(t, free.Status, Optimal)
	assert.Assert(t, free.Objective < limited.Objective+1e-4)
}

func TestACOPFReferenceAnglePinned(t *testing.T) {
	res, err := SolveOPF(network.Case6WW(), Config{})
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(res.Case.Buses[0].Va) < 1e-9)
}

func TestUDOPFCase6WW(t *testing.T) {
	plain, err := SolveOPF(network.Case6WW(), Config{FlowModel: DC})
	assert.NilError(t, err)

	res, err := SolveUDOPF(network.Case6WW(), Config{FlowModel: DC})
	assert.NilError(t, err)
	assert.Equal(t, res.Status, Optimal)

	// Decommitment keeps the best commitment seen, so it never loses
	// to the all-on dispatch.
	assert.Assert(t, res.Objective < plain.Objective+1e-6)

	// Whatever stays online still clears the full load.
	sumPg := 0.0
	for g := range res.Case.Generators {
		if res.Case.Generators[g].InService {
			sumPg += res.Case.Generators[g].Pg
		}
	}
	assert.Assert(t, math.Abs(sumPg-210) < 1e-4)
}

func TestUDOPFShedsUneconomicUnit(t *testing.T) {
	// Two units at the sending bus, one small expensive machine forced
	// above its floor. Shutting it down is cheaper than keeping it at
	// 20 MW of overpriced energy.
	c := &network.Case{
		Name:    "ud2",
		BaseMVA: 100,
		Buses: []network.Bus{
			{ID: 1, Type: network.Ref, Vm: 1, VMax: 1.1, VMin: 0.9},
			{ID: 2, Type: network.PQ, Pd: 100, Vm: 1, VMax: 1.1, VMin: 0.9},
		},
		Generators: []network.Generator{
			{Bus: 1, Pg: 100, Vg: 1, InService: true, PMax: 200, PMin: 0, QMax: 100, QMin: -100},
			{Bus: 1, Pg: 20, Vg: 1, InService: true, PMax: 50, PMin: 20, QMax: 100, QMin: -100},
		},
		Branches: []network.Branch{
			{From: 1, To: 2, X: 0.1, InService: true},
		},
		Costs: []network.GeneratorCost{
			{Model: network.Polynomial, Coeffs: []float64{10, 0}},
			{Model: network.Polynomial, Coeffs: []float64{50, 100}},
		},
	}

	res, err := SolveUDOPF(c, Config{FlowModel: DC})
	assert.NilError(t, err)
	assert.Equal(t, res.Status, Optimal)
	assert.Assert(t, !res.Case.Generators[1].InService)
	assert.Assert(t, res.Case.Generators[0].InService)
	assert.Assert(t, math.Abs(res.Case.Generators[0].Pg-100) < 1e-3)
	assert.Assert(t, math.Abs(res.Objective-1000) < 1)

	// The input commitment is untouched.
	assert.Assert(t, c.Generators[1].InService)
}
