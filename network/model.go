// Package network defines the in-memory case model: buses, generators,
// branches, interchange areas and generator cost records, together with
// validation and the deep-copy discipline solvers rely on.
//
// Units follow the interchange convention: power in MW/MVAr, impedance in
// per-unit on the system base, money in cost per hour. Voltage magnitude is
// per-unit, voltage angle in degrees.
package network

// BusType classifies a bus for solving purposes.
type BusType int

const (
	PQ       BusType = 1 // fixed injection, voltage computed
	PV       BusType = 2 // fixed magnitude and active injection
	Ref      BusType = 3 // reference: fixed magnitude and angle
	Isolated BusType = 4 // excluded from the solve
)

func (t BusType) String() string {
	switch t {
	case PQ:
		return "PQ"
	case PV:
		return "PV"
	case Ref:
		return "ref"
	case Isolated:
		return "isolated"
	}
	return "unknown"
}

// Bus is a network node. Vm and Va are solver state; the dual fields are
// written by the OPF.
type Bus struct {
	ID     int
	Type   BusType
	Pd, Qd float64 // demand, MW / MVAr
	Gs, Bs float64 // shunt, MW / MVAr injected at V = 1.0 pu
	Area   int
	Vm     float64 // voltage magnitude, pu
	Va     float64 // voltage angle, degrees
	BaseKV float64
	Zone   int
	VMax   float64 // pu
	VMin   float64 // pu

	// Shadow prices, written by the OPF. Cost per MWh / MVArh.
	LambdaP, LambdaQ float64
	MuVMin, MuVMax   float64
}

// Generator is a machine attached to a bus. Pg and Qg are solver state.
type Generator struct {
	Bus        int
	Pg, Qg     float64 // output, MW / MVAr
	QMax, QMin float64 // MVAr
	Vg         float64 // voltage setpoint, pu
	MBase      float64 // machine base, MVA
	InService  bool
	PMax, PMin float64 // MW

	// Limit multipliers, written by the OPF.
	MuPMin, MuPMax float64
	MuQMin, MuQMax float64
}

// Branch is a transmission line or transformer between two buses. Tap of
// zero means the nominal ratio 1.0. Shift is the phase-shift angle in
// degrees, applied from the from side. Pf/Qf/Pt/Qt are solved flows.
type Branch struct {
	From, To            int
	R, X, B             float64 // pu series impedance and total charging
	RateA, RateB, RateC float64 // MVA; zero means unlimited
	Tap                 float64
	Shift               float64 // degrees
	InService           bool

	Pf, Qf     float64 // flow injected at the from bus, MW / MVAr
	Pt, Qt     float64 // flow injected at the to bus, MW / MVAr
	MuSf, MuSt float64
}

// Area identifies an interchange area and its reference bus.
type Area struct {
	ID     int
	RefBus int
}

// CostModel tags the shape of a generator cost function.
type CostModel int

const (
	PiecewiseLinear CostModel = 1
	Polynomial      CostModel = 2
)

// CostPoint is one breakpoint of a piecewise-linear cost curve.
type CostPoint struct {
	P    float64 // MW
	Cost float64 // cost per hour
}

// GeneratorCost describes one generator's cost of operation. The record
// list on a Case has the same cardinality and ordering as the generator
// list. Polynomial coefficients are ordered highest degree first.
type GeneratorCost struct {
	Model    CostModel
	Startup  float64
	Shutdown float64
	Coeffs   []float64
	Points   []CostPoint
}

// Case is the complete network model. Topology is immutable during a
// solve; solvers write solved state to a private Copy.
type Case struct {
	Name       string
	BaseMVA    float64
	Buses      []Bus
	Generators []Generator
	Branches   []Branch
	Areas      []Area
	Costs      []GeneratorCost
}

// BusIndex maps bus id to position in Buses.
func (c *Case) BusIndex() map[int]int {
	idx := make(map[int]int, len(c.Buses))
	for i := range c.Buses {
		idx[c.Buses[i].ID] = i
	}
	return idx
}

// OnlineGenerators returns the indexes of in-service generators, in
// generator-list order. Indexes remain valid into Costs.
func (c *Case) OnlineGenerators() []int {
	var on []int
	for i := range c.Generators {
		if c.Generators[i].InService {
			on = append(on, i)
		}
	}
	return on
}

// OnlineBranches returns the indexes of in-service branches.
func (c *Case) OnlineBranches() []int {
	var on []int
	for i := range c.Branches {
		if c.Branches[i].InService {
			on = append(on, i)
		}
	}
	return on
}

// TotalDemand returns the summed in-service bus demand in MW and MVAr.
func (c *Case) TotalDemand() (pd, qd float64) {
	for i := range c.Buses {
		if c.Buses[i].Type == Isolated {
			continue
		}
		pd += c.Buses[i].Pd
		qd += c.Buses[i].Qd
	}
	return pd, qd
}

// Copy returns a deep copy. Solvers operate on copies so that a shared
// case is safe for concurrent reads.
func (c *Case) Copy() *Case {
	out := &Case{
		Name:       c.Name,
		BaseMVA:    c.BaseMVA,
		Buses:      append([]Bus(nil), c.Buses...),
		Generators: append([]Generator(nil), c.Generators...),
		Branches:   append([]Branch(nil), c.Branches...),
		Areas:      append([]Area(nil), c.Areas...),
	}
	if c.Costs != nil {
		out.Costs = make([]GeneratorCost, len(c.Costs))
		for i := range c.Costs {
			gc := c.Costs[i]
			gc.Coeffs = append([]float64(nil), gc.Coeffs...)
			gc.Points = append([]CostPoint(nil), gc.Points...)
			out.Costs[i] = gc
		}
	}
	return out
}
