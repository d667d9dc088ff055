package powerflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gridflow/network"
)

// SolveBatch runs the same configuration over many cases concurrently,
// at most workers at a time. Results keep input order. The first fatal
// error cancels the remaining solves; per-case non-convergence is not an
// error and shows up in the corresponding result instead.
func SolveBatch(ctx context.Context, cases []*network.Case, cfg Config, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]*Result, len(cases))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			res, err := SolvePowerFlowContext(ctx, c, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
