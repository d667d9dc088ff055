package powerflow

import (
	"math"
	"math/cmplx"

	"gridflow/network"
)

// busSets splits bus positions by type: the reference buses, the PV
// buses and the PQ buses. Isolated buses belong to none.
func busSets(c *network.Case) (ref, pv, pq []int) {
	for i := range c.Buses {
		switch c.Buses[i].Type {
		case network.Ref:
			ref = append(ref, i)
		case network.PV:
			pv = append(pv, i)
		case network.PQ:
			pq = append(pq, i)
		}
	}
	return
}

// startVoltage builds the initial voltage vector. With a flat start all
// magnitudes are 1 and angles 0; otherwise the case's stored solution is
// used. Generator voltage setpoints override the magnitude at PV and
// reference buses either way.
func startVoltage(c *network.Case, flat bool) []complex128 {
	v := make([]complex128, len(c.Buses))
	for i := range c.Buses {
		if flat {
			v[i] = 1
		} else {
			v[i] = cmplx.Rect(c.Buses[i].Vm, c.Buses[i].Va*math.Pi/180)
		}
	}
	idx := c.BusIndex()
	for g := range c.Generators {
		gen := &c.Generators[g]
		if !gen.InService {
			continue
		}
		i := idx[gen.Bus]
		if t := c.Buses[i].Type; t == network.PV || t == network.Ref {
			v[i] = cmplx.Rect(gen.Vg, cmplx.Phase(v[i]))
		}
	}
	return v
}

// specifiedInjection returns Sbus, the per-unit scheduled complex power
// injection at each bus: in-service generation minus load and shunt-free
// demand.
func specifiedInjection(c *network.Case) []complex128 {
	sbus := make([]complex128, len(c.Buses))
	idx := c.BusIndex()
	for g := range c.Generators {
		gen := &c.Generators[g]
		if gen.InService {
			sbus[idx[gen.Bus]] += complex(gen.Pg, gen.Qg)
		}
	}
	for i := range c.Buses {
		sbus[i] -= complex(c.Buses[i].Pd, c.Buses[i].Qd)
		sbus[i] /= complex(c.BaseMVA, 0)
	}
	return sbus
}

// Injections computes the complex bus power injections S = V ∘ conj(Y·V).
func Injections(y *YBus, v []complex128) []complex128 {
	iv := y.MulV(v)
	s := make([]complex128, y.N)
	for i := range s {
		s[i] = v[i] * cmplx.Conj(iv[i])
	}
	return s
}

// Mismatch returns the per-bus complex power mismatch
// V ∘ conj(Y·V) − Sbus.
func Mismatch(y *YBus, v, sbus []complex128) []complex128 {
	mis := Injections(y, v)
	for i := range mis {
		mis[i] -= sbus[i]
	}
	return mis
}

// maxMismatch is the infinity norm over the active equations: real parts
// at PV and PQ buses, imaginary parts at PQ buses.
func maxMismatch(mis []complex128, pv, pq []int) float64 {
	worst := 0.0
	for _, i := range pv {
		if r := math.Abs(real(mis[i])); r > worst {
			worst = r
		}
	}
	for _, i := range pq {
		if r := math.Abs(real(mis[i])); r > worst {
			worst = r
		}
		if r := math.Abs(imag(mis[i])); r > worst {
			worst = r
		}
	}
	return worst
}

// Flow is the complex power entering a branch at each end, per unit.
type Flow struct {
	Sf, St complex128
}

// BranchFlows reconstructs per-branch complex flows from the stored
// two-port admittances. Out-of-service branches report zero flow.
func BranchFlows(y *YBus, v []complex128) []Flow {
	flows := make([]Flow, len(y.From))
	for k := range flows {
		f, t := y.From[k], y.To[k]
		ifr := y.Yff[k]*v[f] + y.Yft[k]*v[t]
		ito := y.Ytf[k]*v[f] + y.Ytt[k]*v[t]
		flows[k] = Flow{
			Sf: v[f] * cmplx.Conj(ifr),
			St: v[t] * cmplx.Conj(ito),
		}
	}
	return flows
}

// Losses returns the total complex power lost in the network, per unit.
func Losses(flows []Flow) complex128 {
	var total complex128
	for _, fl := range flows {
		total += fl.Sf + fl.St
	}
	return total
}
