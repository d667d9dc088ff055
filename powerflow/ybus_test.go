package powerflow

import (
	"math"
	"math/cmplx"
	"testing"

	"gotest.tools/v3/assert"

	"gridflow/network"
)

func twoBusCase() *network.Case {
	return &network.Case{
		Name:    "twobus",
		BaseMVA: 100,
		Buses: []network.Bus{
			{ID: 1, Type: network.Ref, Vm: 1, VMax: 1.1, VMin: 0.9},
			{ID: 2, Type: network.PQ, Pd: 50, Qd: 20, Vm: 1, VMax: 1.1, VMin: 0.9},
		},
		Generators: []network.Generator{
			{Bus: 1, Vg: 1, InService: true, PMax: 200, QMax: 100, QMin: -100, MBase: 100},
		},
		Branches: []network.Branch{
			{From: 1, To: 2, R: 0.01, X: 0.1, B: 0.02, Tap: 0, InService: true},
		},
	}
}

func TestBuildYBusTwoBus(t *testing.T) {
	y, err := BuildYBus(twoBusCase())
	assert.NilError(t, err)

	ys := 1 / complex(0.01, 0.1)
	wantDiag := ys + complex(0, 0.01)
	wantOff := -ys

	get := func(i, j int) complex128 {
		for _, e := range y.Rows[i] {
			if e.Col == j {
				return e.Y
			}
		}
		return 0
	}

	assert.Assert(t, cmplx.Abs(get(0, 0)-wantDiag) < 1e-12)
	assert.Assert(t, cmplx.Abs(get(1, 1)-wantDiag) < 1e-12)
	assert.Assert(t, cmplx.Abs(get(0, 1)-wantOff) < 1e-12)
	assert.Assert(t, cmplx.Abs(get(1, 0)-wantOff) < 1e-12)
}

func TestYBusTapAndShift(t *testing.T) {
	c := twoBusCase()
	c.Branches[0].Tap = 1.05
	y, err := BuildYBus(c)
	assert.NilError(t, err)

	// Off-nominal tap scales the from-side self admittance by 1/t².
	ys := 1/complex(0.01, 0.1) + complex(0, 0.01)
	assert.Assert(t, cmplx.Abs(y.Yff[0]-ys/complex(1.05*1.05, 0)) < 1e-12)
	assert.Assert(t, cmplx.Abs(y.Ytt[0]-ys) < 1e-12)
	// Real tap keeps the transfer admittances symmetric.
	assert.Assert(t, cmplx.Abs(y.Yft[0]-y.Ytf[0]) < 1e-12)

	// A phase shift makes them asymmetric conjugates.
	c.Branches[0].Shift = 10
	y, err = BuildYBus(c)
	assert.NilError(t, err)
	assert.Assert(t, cmplx.Abs(y.Yft[0]-y.Ytf[0]) > 1e-6)
	assert.Assert(t, cmplx.Abs(y.Yft[0]-cmplx.Conj(y.Ytf[0])) < 1e-12)
}

func TestYBusOutOfServiceBranch(t *testing.T) {
	c := twoBusCase()
	c.Branches[0].InService = false
	y, err := BuildYBus(c)
	assert.NilError(t, err)

	assert.Equal(t, y.Yff[0], complex(0, 0))
	assert.Equal(t, len(y.Rows[0]), 0)
}

func TestYBusShunt(t *testing.T) {
	c := twoBusCase()
	c.Buses[1].Gs = 5
	c.Buses[1].Bs = 30
	y, err := BuildYBus(c)
	assert.NilError(t, err)

	ys := 1/complex(0.01, 0.1) + complex(0, 0.01)
	want := ys + complex(0.05, 0.30)
	var got complex128
	for _, e := range y.Rows[1] {
		if e.Col == 1 {
			got = e.Y
		}
	}
	assert.Assert(t, cmplx.Abs(got-want) < 1e-12)
}

func TestYBusDanglingRef(t *testing.T) {
	c := twoBusCase()
	c.Branches[0].To = 99
	_, err := BuildYBus(c)
	assert.Assert(t, network.IsModelError(err))
}

func TestInjectionsBalanced(t *testing.T) {
	c := network.Case6WW()
	y, err := BuildYBus(c)
	assert.NilError(t, err)

	// Flat voltage: injections must equal the branch flow sums bus by bus.
	v := make([]complex128, y.N)
	for i := range v {
		v[i] = complex(1, 0)
	}
	s := Injections(y, v)
	flows := BranchFlows(y, v)

	sum := make([]complex128, y.N)
	for k := range flows {
		sum[y.From[k]] += flows[k].Sf
		sum[y.To[k]] += flows[k].St
	}
	for i := range s {
		assert.Assert(t, cmplx.Abs(s[i]-sum[i]) < 1e-12)
	}
}

func TestBuildDCModel(t *testing.T) {
	c := twoBusCase()
	c.Branches[0].Shift = 10
	d, err := BuildDC(c)
	assert.NilError(t, err)

	b := 1 / 0.1
	assert.Assert(t, math.Abs(d.Bbr[0]-b) < 1e-12)
	assert.Assert(t, math.Abs(d.Pfinj[0]-(-b*10*math.Pi/180)) < 1e-12)
	assert.Assert(t, math.Abs(d.Pbusinj[0]-d.Pfinj[0]) < 1e-12)
	assert.Assert(t, math.Abs(d.Pbusinj[1]+d.Pfinj[0]) < 1e-12)
}
