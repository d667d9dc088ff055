package powerflow

import (
	"math"
	"math/cmplx"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gridflow/network"
	"gridflow/spmatrix"
)

// solveDC solves the linearized real-power problem in one shot. Voltage
// magnitudes are fixed at their profile, reactive power is ignored, and
// the only failure modes are model errors and a singular susceptance
// matrix.
func solveDC(c *network.Case, cfg Config) (*Result, error) {
	d, err := BuildDC(c)
	if err != nil {
		return nil, err
	}

	ref, pv, pq := busSets(c)
	if len(ref) == 0 {
		return nil, network.ModelErrorf("dc solve requires a reference bus")
	}
	refIdx := ref[0]
	nonRef := append(append([]int{}, pv...), pq...)

	varef := 0.0
	if !cfg.FlatStart {
		varef = c.Buses[refIdx].Va * math.Pi / 180
	}

	// Net scheduled real injection, shifted by the phase-shifter
	// injections and the real bus shunts.
	sbus := specifiedInjection(c)
	p := make([]float64, d.N)
	for i := range p {
		p[i] = real(sbus[i]) - d.Pbusinj[i] - c.Buses[i].Gs/c.BaseMVA
	}

	pos := make(map[int]int, len(nonRef))
	for q, i := range nonRef {
		pos[i] = q
	}

	m := spmatrix.New(len(nonRef))
	rhs := make([]float64, len(nonRef))
	for q, i := range nonRef {
		rhs[q] = p[i]
		for _, e := range d.B[i] {
			if e.Col == refIdx {
				rhs[q] -= e.V * varef
			} else if j, ok := pos[e.Col]; ok {
				m.Element(q, j).Val += complex(e.V, 0)
			}
		}
	}

	if err := m.Factor(); err != nil {
		return nil, errors.Wrap(err, "dc susceptance factor")
	}
	theta, err := m.SolveReal(rhs)
	if err != nil {
		return nil, errors.Wrap(err, "dc solve")
	}

	va := make([]float64, d.N)
	va[refIdx] = varef
	for q, i := range nonRef {
		va[i] = theta[q]
	}

	v := make([]complex128, d.N)
	for i := range v {
		v[i] = cmplx.Rect(1, va[i])
	}

	flows := make([]Flow, len(d.From))
	for k := range flows {
		if d.Bbr[k] == 0 {
			continue
		}
		pf := d.Bbr[k]*(va[d.From[k]]-va[d.To[k]]) + d.Pfinj[k]
		flows[k] = Flow{Sf: complex(pf, 0), St: complex(-pf, 0)}
	}

	res := &Result{
		ID:         uuid.New(),
		Case:       c,
		Method:     DC,
		Converged:  true,
		Iterations: 1,
		V:          v,
		Flows:      flows,
	}
	writeDCSolution(c, d, va, flows)
	return res, nil
}

func writeDCSolution(c *network.Case, d *DCModel, va []float64, flows []Flow) {
	base := c.BaseMVA

	for i := range c.Buses {
		c.Buses[i].Vm = 1
		c.Buses[i].Va = va[i] * 180 / math.Pi
	}
	for k := range c.Branches {
		br := &c.Branches[k]
		br.Pf = real(flows[k].Sf) * base
		br.Pt = real(flows[k].St) * base
		br.Qf, br.Qt = 0, 0
	}

	// The reference generators absorb the network imbalance.
	idx := c.BusIndex()
	for i := range c.Buses {
		if c.Buses[i].Type != network.Ref {
			continue
		}
		inj := d.Pbusinj[i] + c.Buses[i].Gs/base
		for _, e := range d.B[i] {
			inj += e.V * va[e.Col]
		}
		pTotal := inj*base + c.Buses[i].Pd

		var gens []int
		for g := range c.Generators {
			if c.Generators[g].InService && idx[c.Generators[g].Bus] == i {
				gens = append(gens, g)
			}
		}
		for _, g := range gens {
			c.Generators[g].Pg = pTotal / float64(len(gens))
		}
	}
}
