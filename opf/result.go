package opf

import (
	"github.com/google/uuid"

	"gridflow/network"
)

// FlowModel selects how the network physics enter the optimization.
type FlowModel int

const (
	// AC keeps the full nonlinear power balance and apparent-power
	// flow limits.
	AC FlowModel = iota
	// DC linearizes to real power and angles.
	DC
)

func (f FlowModel) String() string {
	if f == DC {
		return "dc"
	}
	return "ac"
}

// Status classifies the outcome of an OPF solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	IterLimit
	Failed
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case IterLimit:
		return "iteration limit"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Config controls an OPF solve. The zero value runs an AC OPF with
// default tolerances.
type Config struct {
	FlowModel        FlowModel
	Tolerance        float64 // feasibility/gradient/complementarity/cost tolerance
	MaxIterations    int
	IgnoreFlowLimits bool
	FlatStart        bool
	Verbose          bool
}

func (c Config) normalized() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-6
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 150
	}
	return c
}

func (c Config) ipmOptions() ipmOptions {
	opt := defaultIPMOptions()
	opt.FeasTol = c.Tolerance
	opt.GradTol = c.Tolerance
	opt.CompTol = c.Tolerance
	opt.CostTol = c.Tolerance
	opt.MaxIterations = c.MaxIterations
	opt.Verbose = c.Verbose
	return opt
}

// Violation names one constraint violated at the final iterate of an
// unsuccessful solve.
type Violation struct {
	Constraint string
	Amount     float64 // positive per-unit violation
}

// ShadowPrices carries the dual values of the binding constraints in
// customer units: $/MWh for power balance, $/MVAr-h for reactive
// balance, $/MVA-h for flow limits.
type ShadowPrices struct {
	LambdaP []float64 // per bus
	LambdaQ []float64 // per bus, zero in DC mode
	MuVMin  []float64 // per bus, zero in DC mode
	MuVMax  []float64
	MuPMin  []float64 // per generator
	MuPMax  []float64
	MuQMin  []float64
	MuQMax  []float64
	MuSf    []float64 // per branch flow limit, from side
	MuSt    []float64
}

// Result is the outcome of one OPF solve. Case is a private copy with
// the optimal operating point and duals written back; the caller's case
// is untouched.
type Result struct {
	ID         uuid.UUID
	Case       *network.Case
	FlowModel  FlowModel
	Status     Status
	Objective  float64 // $/hr
	Iterations int
	Prices     ShadowPrices
	Violations []Violation
}

// SolveOPF minimizes generation cost subject to the configured flow
// model. Model errors are returned as errors; solver outcomes, including
// infeasibility, land in Result.Status.
func SolveOPF(c *network.Case, cfg Config) (*Result, error) {
	cfg = cfg.normalized()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(c.Costs) != len(c.Generators) {
		return nil, network.ModelErrorf("opf requires one cost record per generator, got %d for %d",
			len(c.Costs), len(c.Generators))
	}

	work := c.Copy()
	if cfg.FlowModel == DC {
		return solveDCOPF(work, cfg)
	}
	return solveACOPF(work, cfg)
}

// statusOf maps the interior point outcome to the result taxonomy.
func statusOf(sol *ipmSolution, cfg Config) Status {
	switch {
	case sol.Converged:
		return Optimal
	case sol.FeasCond > 1e2*cfg.Tolerance:
		return Infeasible
	case sol.Iterations >= cfg.MaxIterations:
		return IterLimit
	}
	return Failed
}
