package network

import (
	"github.com/pkg/errors"
)

// ModelError reports malformed topology or data. It is raised before any
// solving begins; solvers treat it as fatal.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string { return e.Err.Error() }

func (e *ModelError) Unwrap() error { return e.Err }

// ModelErrorf builds a ModelError from a format string.
func ModelErrorf(format string, args ...interface{}) *ModelError {
	return &ModelError{Err: errors.Errorf(format, args...)}
}

// IsModelError reports whether err is (or wraps) a ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}

// Validate checks the structural invariants a solvable case must hold:
// unique bus ids, no dangling generator or branch references, no branch
// self-loops, no in-service branch with a singular (r = x = 0) impedance,
// cost records matching the generator list one to one, and exactly one
// reference bus per connected island.
func (c *Case) Validate() error {
	if c.BaseMVA <= 0 {
		return ModelErrorf("system base must be positive, got %v MVA", c.BaseMVA)
	}

	idx := make(map[int]int, len(c.Buses))
	for i := range c.Buses {
		id := c.Buses[i].ID
		if _, dup := idx[id]; dup {
			return ModelErrorf("duplicate bus id %d", id)
		}
		idx[id] = i
	}

	for i := range c.Generators {
		g := &c.Generators[i]
		if _, ok := idx[g.Bus]; !ok {
			return ModelErrorf("generator %d references missing bus %d", i, g.Bus)
		}
	}

	for i := range c.Branches {
		br := &c.Branches[i]
		if _, ok := idx[br.From]; !ok {
			return ModelErrorf("branch %d references missing from bus %d", i, br.From)
		}
		if _, ok := idx[br.To]; !ok {
			return ModelErrorf("branch %d references missing to bus %d", i, br.To)
		}
		if br.From == br.To {
			return ModelErrorf("branch %d is a self-loop at bus %d", i, br.From)
		}
		if br.InService && br.R == 0 && br.X == 0 {
			return ModelErrorf("in-service branch %d (%d-%d) has r = x = 0", i, br.From, br.To)
		}
	}

	if len(c.Costs) > 0 && len(c.Costs) != len(c.Generators) {
		return ModelErrorf("cost records (%d) do not match generator list (%d)",
			len(c.Costs), len(c.Generators))
	}
	for i := range c.Costs {
		gc := &c.Costs[i]
		switch gc.Model {
		case Polynomial:
			if len(gc.Coeffs) == 0 {
				return ModelErrorf("polynomial cost %d has no coefficients", i)
			}
		case PiecewiseLinear:
			if len(gc.Points) < 2 {
				return ModelErrorf("piecewise-linear cost %d needs at least two points", i)
			}
		default:
			return ModelErrorf("cost %d has unknown model %d", i, gc.Model)
		}
	}

	return c.validateIslands(idx)
}

// validateIslands walks connected components over in-service branches and
// requires exactly one reference bus in each component that contains
// non-isolated buses.
func (c *Case) validateIslands(idx map[int]int) error {
	n := len(c.Buses)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := range c.Branches {
		br := &c.Branches[i]
		if br.InService {
			union(idx[br.From], idx[br.To])
		}
	}

	refs := make(map[int]int)
	live := make(map[int]bool)
	for i := range c.Buses {
		if c.Buses[i].Type == Isolated {
			continue
		}
		root := find(i)
		live[root] = true
		if c.Buses[i].Type == Ref {
			refs[root]++
		}
	}

	for root := range live {
		switch refs[root] {
		case 0:
			return ModelErrorf("island containing bus %d has no reference bus", c.Buses[root].ID)
		case 1:
		default:
			return ModelErrorf("island containing bus %d has %d reference buses",
				c.Buses[root].ID, refs[root])
		}
	}
	return nil
}
