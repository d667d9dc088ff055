package powerflow

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	"gotest.tools/v3/assert"

	"gridflow/network"
)

func TestNewtonConvergesCase6WW(t *testing.T) {
	c := network.Case6WW()
	res, err := SolvePowerFlow(c, Config{Method: NewtonRaphson, FlatStart: true})
	assert.NilError(t, err)
	assert.Assert(t, res.Converged)
	assert.Assert(t, res.Iterations <= 10)
	assert.Assert(t, res.MaxMismatch < 1e-8)

	// Controlled magnitudes hold their setpoints exactly.
	assert.Assert(t, math.Abs(res.Case.Buses[0].Vm-1.05) < 1e-12)
	assert.Assert(t, math.Abs(res.Case.Buses[1].Vm-1.05) < 1e-12)
	assert.Assert(t, math.Abs(res.Case.Buses[2].Vm-1.07) < 1e-12)
	assert.Equal(t, res.Case.Buses[0].Va, 0.0)

	// Load bus voltages sag below the controlled ones but stay healthy.
	for _, i := range []int{3, 4, 5} {
		vm := res.Case.Buses[i].Vm
		assert.Assert(t, vm > 0.9 && vm < 1.07)
	}

	// Slack covers load plus losses: more than its scheduled 0 but
	// bounded by the total demand.
	slackPg := res.Case.Generators[0].Pg
	assert.Assert(t, slackPg > 0 && slackPg < 210)

	// The input case is untouched.
	assert.Equal(t, c.Buses[3].Vm, 1.0)
	assert.Equal(t, c.Generators[0].Pg, 50.0)
}

func TestNewtonFlowsWithinRatings(t *testing.T) {
	res, err := SolvePowerFlow(network.Case6WW(), Config{FlatStart: true})
	assert.NilError(t, err)
	assert.Assert(t, res.Converged)

	for k := range res.Case.Branches {
		br := &res.Case.Branches[k]
		sf := math.Hypot(br.Pf, br.Qf)
		st := math.Hypot(br.Pt, br.Qt)
		assert.Assert(t, sf <= br.RateA+1e-6, "branch %d from-side %.2f MVA over rating %.0f", k, sf, br.RateA)
		assert.Assert(t, st <= br.RateA+1e-6, "branch %d to-side %.2f MVA over rating %.0f", k, st, br.RateA)
	}
}

func TestNewtonIterationCapNotAnError(t *testing.T) {
	res, err := SolvePowerFlow(network.Case6WW(), Config{FlatStart: true, MaxIterations: 1})
	assert.NilError(t, err)
	assert.Assert(t, !res.Converged)
	assert.Equal(t, res.Iterations, 1)
	assert.Assert(t, res.MaxMismatch >= 1e-8)
}

func TestNewtonIdempotent(t *testing.T) {
	cfg := Config{FlatStart: true}
	a, err := SolvePowerFlow(network.Case6WW(), cfg)
	assert.NilError(t, err)
	b, err := SolvePowerFlow(network.Case6WW(), cfg)
	assert.NilError(t, err)

	assert.Equal(t, a.Iterations, b.Iterations)
	for i := range a.V {
		assert.Equal(t, a.V[i], b.V[i])
	}
	assert.Assert(t, a.ID != b.ID)
}

func TestNewtonPermutationInvariant(t *testing.T) {
	base, err := SolvePowerFlow(network.Case6WW(), Config{FlatStart: true})
	assert.NilError(t, err)

	perm := network.Case6WW()
	for i, j := 0, len(perm.Buses)-1; i < j; i, j = i+1, j-1 {
		perm.Buses[i], perm.Buses[j] = perm.Buses[j], perm.Buses[i]
	}
	permuted, err := SolvePowerFlow(perm, Config{FlatStart: true})
	assert.NilError(t, err)
	assert.Assert(t, permuted.Converged)

	byID := func(r *Result, id int) network.Bus {
		for _, b := range r.Case.Buses {
			if b.ID == id {
				return b
			}
		}
		t.Fatalf("bus %d missing", id)
		return network.Bus{}
	}
	for id := 1; id <= 6; id++ {
		assert.Assert(t, math.Abs(byID(base, id).Vm-byID(permuted, id).Vm) < 1e-6)
		assert.Assert(t, math.Abs(byID(base, id).Va-byID(permuted, id).Va) < 1e-5)
	}
}

func TestFastDecoupledMatchesNewton(t *testing.T) {
	nr, err := SolvePowerFlow(network.Case6WW(), Config{Method: NewtonRaphson, FlatStart: true})
	assert.NilError(t, err)
	fd, err := SolvePowerFlow(network.Case6WW(), Config{Method: FastDecoupled, FlatStart: true})
	assert.NilError(t, err)

	assert.Assert(t, fd.Converged)
	assert.Assert(t, fd.MaxMismatch < 1e-8)
	for i := range nr.V {
		assert.Assert(t, math.Abs(cmplx.Abs(nr.V[i])-cmplx.Abs(fd.V[i])) < 1e-6)
		assert.Assert(t, math.Abs(cmplx.Phase(nr.V[i])-cmplx.Phase(fd.V[i])) < 1e-6)
	}
}

func TestDCAgreesWithACInPattern(t *testing.T) {
	ac, err := SolvePowerFlow(network.Case6WW(), Config{Method: NewtonRaphson, FlatStart: true})
	assert.NilError(t, err)
	dc, err := SolvePowerFlow(network.Case6WW(), Config{Method: DC, FlatStart: true})
	assert.NilError(t, err)
	assert.Assert(t, dc.Converged)

	// Lossless balance is exact in the linear model.
	var pg, pd float64
	for i := range dc.Case.Generators {
		pg += dc.Case.Generators[i].Pg
	}
	for i := range dc.Case.Buses {
		pd += dc.Case.Buses[i].Pd
	}
	assert.Assert(t, math.Abs(pg-pd) < 1e-8)

	// DC flows track the AC real flows in sign and rough size.
	for k := range dc.Case.Branches {
		acP := ac.Case.Branches[k].Pf
		dcP := dc.Case.Branches[k].Pf
		if math.Abs(acP) > 5 {
			assert.Assert(t, acP*dcP > 0, "branch %d flow direction: ac %.1f dc %.1f", k, acP, dcP)
			assert.Assert(t, math.Abs(acP-dcP) < 0.35*math.Abs(acP)+5)
		}
	}
}

func TestSolveBatch(t *testing.T) {
	cases := []*network.Case{network.Case6WW(), network.Case6WW(), twoBusCase()}
	results, err := SolveBatch(context.Background(), cases, Config{FlatStart: true}, 2)
	assert.NilError(t, err)
	assert.Equal(t, len(results), 3)
	for _, r := range results {
		assert.Assert(t, r.Converged)
	}
}

func TestSolveBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SolveBatch(ctx, []*network.Case{network.Case6WW()}, Config{FlatStart: true}, 1)
	assert.Assert(t, err != nil)
}
