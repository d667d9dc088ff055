package opf

import (
	"math"

	"gridflow/network"
)

// SolveUDOPF runs the OPF with unit decommitment. Generators pinned at
// their lower active limit with a positive limit multiplier are paying
// to stay online; the solver tries shutting each such unit down, one
// per stage, and keeps the shutdown that lowers total cost the most.
// The returned result's case records the final commitment.
func SolveUDOPF(c *network.Case, cfg Config) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	work := c.Copy()

	// Minimum generation above total demand can never clear. Retire the
	// least efficient units at their floor until it can.
	totalPd := 0.0
	for i := range work.Buses {
		totalPd += work.Buses[i].Pd
	}
	for {
		on := work.OnlineGenerators()
		sumPMin := 0.0
		for _, g := range on {
			sumPMin += work.Generators[g].PMin
		}
		if sumPMin <= totalPd || len(on) <= 1 {
			break
		}
		worst, worstRate := -1, math.Inf(-1)
		for _, g := range on {
			gen := &work.Generators[g]
			if gen.PMin <= 0 {
				continue
			}
			rate := genCost(&work.Costs[g], gen.PMin) / gen.PMin
			if rate > worstRate {
				worst, worstRate = g, rate
			}
		}
		if worst < 0 {
			break
		}
		work.Generators[worst].InService = false
	}

	best, err := SolveOPF(work, cfg)
	if err != nil {
		return nil, err
	}

	for stage := 0; stage < len(work.Generators); stage++ {
		var candidates []int
		for _, g := range best.Case.OnlineGenerators() {
			gen := &best.Case.Generators[g]
			// Round away interior point noise on the multiplier.
			mu := math.Round(best.Prices.MuPMin[g]*1e4) / 1e4
			if mu > 0 && gen.PMin > 0 {
				candidates = append(candidates, g)
			}
		}
		if len(candidates) == 0 {
			break
		}

		var improved *Result
		for _, g := range candidates {
			trial := best.Case.Copy()
			trial.Generators[g].InService = false
			if len(trial.OnlineGenerators()) == 0 {
				continue
			}
			res, err := SolveOPF(trial, cfg)
			if err != nil || res.Status != Optimal {
				continue
			}
			if res.Objective < best.Objective && (improved == nil || res.Objective < improved.Objective) {
				improved = res
			}
		}
		if improved == nil {
			break
		}
		best = improved
	}
	return best, nil
}
