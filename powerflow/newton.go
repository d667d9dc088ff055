package powerflow

import (
	"context"
	"log"
	"math"
	"math/cmplx"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gridflow/network"
)

// Method selects the power-flow algorithm.
type Method int

const (
	NewtonRaphson Method = iota
	FastDecoupled
	DC
)

func (m Method) String() string {
	switch m {
	case NewtonRaphson:
		return "newton-raphson"
	case FastDecoupled:
		return "fast-decoupled"
	case DC:
		return "dc"
	}
	return "unknown"
}

// Config controls a power-flow solve. The zero value is usable; unset
// numeric fields take method-dependent defaults.
type Config struct {
	Method        Method
	Tolerance     float64 // infinity norm of the mismatch, per unit
	MaxIterations int
	FlatStart     bool
	Verbose       bool
}

func (c Config) normalized() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-8
	}
	if c.MaxIterations <= 0 {
		if c.Method == FastDecoupled {
			c.MaxIterations = 30
		} else {
			c.MaxIterations = 10
		}
	}
	return c
}

// DefaultConfig returns the Newton-Raphson configuration used when no
// explicit config is given.
func DefaultConfig() Config { return Config{}.normalized() }

// Result carries the outcome of one power-flow solve. Case is a private
// copy of the input with the solved state written back into its buses,
// branches and generators; the caller's case is never touched.
type Result struct {
	ID          uuid.UUID
	Case        *network.Case
	Method      Method
	Converged   bool
	Iterations  int
	V           []complex128
	MaxMismatch float64
	Flows       []Flow
}

// solver state machine states.
type solveState int

const (
	stateInitialized solveState = iota
	stateIterating
	stateConverged
	stateFailed
)

// SolvePowerFlow runs the configured method on a copy of the case.
// A model or numeric failure returns an error; plain non-convergence
// returns Result{Converged: false} with the last iterate and a nil
// error.
func SolvePowerFlow(c *network.Case, cfg Config) (*Result, error) {
	return SolvePowerFlowContext(context.Background(), c, cfg)
}

// SolvePowerFlowContext is SolvePowerFlow with cancellation checked
// between iterations.
func SolvePowerFlowContext(ctx context.Context, c *network.Case, cfg Config) (*Result, error) {
	cfg = cfg.normalized()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	work := c.Copy()

	switch cfg.Method {
	case NewtonRaphson:
		return solveNewton(ctx, work, cfg)
	case FastDecoupled:
		return solveFastDecoupled(ctx, work, cfg)
	case DC:
		return solveDC(work, cfg)
	}
	return nil, errors.Errorf("powerflow: unknown method %d", cfg.Method)
}

func solveNewton(ctx context.Context, c *network.Case, cfg Config) (*Result, error) {
	y, err := BuildYBus(c)
	if err != nil {
		return nil, err
	}

	_, pv, pq := busSets(c)
	v := startVoltage(c, cfg.FlatStart)
	sbus := specifiedInjection(c)
	jac := newJacobian(y, pv, pq)

	res := &Result{ID: uuid.New(), Case: c, Method: NewtonRaphson}
	state := stateInitialized

	mis := Mismatch(y, v, sbus)
	res.MaxMismatch = maxMismatch(mis, pv, pq)
	if res.MaxMismatch < cfg.Tolerance {
		state = stateConverged
	} else {
		state = stateIterating
	}

	for state == stateIterating {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.Iterations >= cfg.MaxIterations {
			state = stateFailed
			break
		}
		res.Iterations++

		jac.stamp(v)
		if err := jac.m.Factor(); err != nil {
			return nil, errors.Wrapf(err, "newton iteration %d", res.Iterations)
		}
		dx, err := jac.m.SolveReal(jac.rhs(mis))
		if err != nil {
			return nil, errors.Wrapf(err, "newton iteration %d", res.Iterations)
		}
		jac.apply(v, dx)

		mis = Mismatch(y, v, sbus)
		res.MaxMismatch = maxMismatch(mis, pv, pq)
		if cfg.Verbose {
			log.Printf("[newton] iteration %d mismatch %.3e", res.Iterations, res.MaxMismatch)
		}
		if res.MaxMismatch < cfg.Tolerance {
			state = stateConverged
		}
	}

	res.Converged = state == stateConverged
	res.V = v
	res.Flows = BranchFlows(y, v)
	writeSolution(c, y, v, res.Flows)
	return res, nil
}

// writeSolution stores the solved operating point back into the case:
// bus voltages, branch flows in MW/MVAr, reactive output of PV and
// reference generators and the real output of the reference generators.
func writeSolution(c *network.Case, y *YBus, v []complex128, flows []Flow) {
	base := c.BaseMVA

	for i := range c.Buses {
		c.Buses[i].Vm = cmplx.Abs(v[i])
		c.Buses[i].Va = cmplx.Phase(v[i]) * 180 / math.Pi
	}

	for k := range c.Branches {
		br := &c.Branches[k]
		if !br.InService {
			br.Pf, br.Qf, br.Pt, br.Qt = 0, 0, 0, 0
			continue
		}
		br.Pf = real(flows[k].Sf) * base
		br.Qf = imag(flows[k].Sf) * base
		br.Pt = real(flows[k].St) * base
		br.Qt = imag(flows[k].St) * base
	}

	s := Injections(y, v)
	idx := c.BusIndex()

	// Generator reactive output balances the solved injection at PV and
	// reference buses; real output is adjusted at reference buses only.
	// Multiple in-service units at one bus share the burden equally.
	type busGen struct {
		gens []int
	}
	byBus := make(map[int]*busGen)
	for g := range c.Generators {
		gen := &c.Generators[g]
		if !gen.InService {
			continue
		}
		i := idx[gen.Bus]
		if byBus[i] == nil {
			byBus[i] = &busGen{}
		}
		byBus[i].gens = append(byBus[i].gens, g)
	}

	for i, bg := range byBus {
		bus := &c.Buses[i]
		if bus.Type != network.PV && bus.Type != network.Ref {
			continue
		}
		qTotal := imag(s[i])*base + bus.Qd
		for _, g := range bg.gens {
			c.Generators[g].Qg = qTotal / float64(len(bg.gens))
		}
		if bus.Type == network.Ref {
			pTotal := real(s[i])*base + bus.Pd
			for _, g := range bg.gens {
				c.Generators[g].Pg = pTotal / float64(len(bg.gens))
			}
		}
	}
}
