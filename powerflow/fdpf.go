package powerflow

import (
	"context"
	"log"
	"math/cmplx"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gridflow/network"
	"gridflow/spmatrix"
)

// reduceB stamps the rows and columns of a susceptance matrix selected
// by keep into a sparse matrix ready for factorization.
func reduceB(b [][]BEntry, keep []int) *spmatrix.Matrix {
	pos := make(map[int]int, len(keep))
	for p, i := range keep {
		pos[i] = p
	}
	m := spmatrix.New(len(keep))
	for p, i := range keep {
		for _, e := range b[i] {
			if q, ok := pos[e.Col]; ok {
				m.Element(p, q).Val += complex(e.V, 0)
			}
		}
	}
	return m
}

// solveFastDecoupled runs the XB fast-decoupled scheme: B' and B'' are
// built and factored once, then P-angle and Q-magnitude half-iterations
// alternate, with convergence tested after each half.
func solveFastDecoupled(ctx context.Context, c *network.Case, cfg Config) (*Result, error) {
	y, err := BuildYBus(c)
	if err != nil {
		return nil, err
	}
	bp, bpp, err := BuildB(c)
	if err != nil {
		return nil, err
	}

	_, pv, pq := busSets(c)
	pvpq := append(append([]int{}, pv...), pq...)

	mp := reduceB(bp, pvpq)
	mpp := reduceB(bpp, pq)
	if err := mp.Factor(); err != nil {
		return nil, errors.Wrap(err, "fast-decoupled B' factor")
	}
	if err := mpp.Factor(); err != nil {
		return nil, errors.Wrap(err, "fast-decoupled B'' factor")
	}

	v := startVoltage(c, cfg.FlatStart)
	sbus := specifiedInjection(c)

	res := &Result{ID: uuid.New(), Case: c, Method: FastDecoupled}
	state := stateIterating

	mis := Mismatch(y, v, sbus)
	res.MaxMismatch = maxMismatch(mis, pv, pq)
	if res.MaxMismatch < cfg.Tolerance {
		state = stateConverged
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

		// P-theta half iteration.
		fp := make([]float64, len(pvpq))
		for p, i := range pvpq {
			fp[p] = real(mis[i]) / cmplx.Abs(v[i])
		}
		dva, err := mp.SolveReal(fp)
		if err != nil {
			return nil, errors.Wrap(err, "fast-decoupled P half")
		}
		for p, i := range pvpq {
			v[i] = cmplx.Rect(cmplx.Abs(v[i]), cmplx.Phase(v[i])-dva[p])
		}

		mis = Mismatch(y, v, sbus)
		res.MaxMismatch = maxMismatch(mis, pv, pq)
		if res.MaxMismatch < cfg.Tolerance {
			state = stateConverged
			break
		}

		// Q-magnitude half iteration.
		fq := make([]float64, len(pq))
		for p, i := range pq {
			fq[p] = imag(mis[i]) / cmplx.Abs(v[i])
		}
		dvm, err := mpp.SolveReal(fq)
		if err != nil {
			return nil, errors.Wrap(err, "fast-decoupled Q half")
		}
		for p, i := range pq {
			v[i] = cmplx.Rect(cmplx.Abs(v[i])-dvm[p], cmplx.Phase(v[i]))
		}

		mis = Mismatch(y, v, sbus)
		res.MaxMismatch = maxMismatch(mis, pv, pq)
		if cfg.Verbose {
			log.Printf("[fdpf] iteration %d mismatch %.3e", res.Iterations, res.MaxMismatch)
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
