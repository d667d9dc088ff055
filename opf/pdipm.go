package opf

import (
	"log"
	"math"

	"github.com/pkg/errors"
)

// Primal-dual interior point method for nonlinear programs of the form
//
//	min f(x)  s.t.  h(x) = 0,  g(x) <= 0,  l <= A·x <= u,  xmin <= x <= xmax
//
// following Zimmerman's pdipm solver (MATPOWER, PSERC Cornell).

const (
	ipmEps         = 1.0 / (1 << 52)
	ipmXi          = 0.99995
	ipmSigma       = 0.1
	ipmZ0          = 1.0
	ipmAlphaMin    = 1e-8
	ipmMuThreshold = 1e-5
	ipmBigBound    = 1e10
)

// ipmObjective evaluates the cost and its gradient.
type ipmObjective func(x []float64) (f float64, df []float64)

// ipmConstraints evaluates the nonlinear constraints and their Jacobians
// (rows are constraints). All slices may be empty for a pure QP.
type ipmConstraints func(x []float64) (h, g []float64, dh, dg *spmat)

// ipmHessian evaluates the Hessian of the Lagrangian
// costMult·f + lamᵀh + muᵀg.
type ipmHessian func(x, lam, mu []float64, costMult float64) *spmat

type ipmProblem struct {
	f    ipmObjective
	gh   ipmConstraints
	hess ipmHessian
	x0   []float64
	xmin []float64 // nil means unbounded
	xmax []float64
	a    *spmat // nil means no linear constraints
	l, u []float64
}

type ipmOptions struct {
	FeasTol, GradTol, CompTol, CostTol float64
	MaxIterations                      int
	CostMult                           float64
	Verbose                            bool
}

func defaultIPMOptions() ipmOptions {
	return ipmOptions{
		FeasTol: 1e-6, GradTol: 1e-6, CompTol: 1e-6, CostTol: 1e-6,
		MaxIterations: 150,
		CostMult:      1,
	}
}

// ipmLambda carries the multipliers at the final point: nonlinear
// equalities and inequalities, linear constraint rows (lower/upper) and
// variable bounds.
type ipmLambda struct {
	EqNonlin, IneqNonlin []float64
	MuL, MuU             []float64
	Lower, Upper         []float64
}

type ipmSolution struct {
	X          []float64
	F          float64
	Converged  bool
	Iterations int
	FeasCond   float64
	GradCond   float64
	CompCond   float64
	CostCond   float64
	Lambda     ipmLambda
}

func infNorm(v []float64) float64 {
	worst := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > worst {
			worst = a
		}
	}
	return worst
}

func maxElem(v []float64) float64 {
	worst := math.Inf(-1)
	for _, x := range v {
		if x > worst {
			worst = x
		}
	}
	return worst
}

// pdipm runs the interior point iteration. A nil error with
// Converged=false means the iteration cap was reached or the step
// degenerated numerically; errors are reserved for singular KKT systems.
func pdipm(p ipmProblem, opt ipmOptions) (*ipmSolution, error) {
	nx := len(p.x0)

	xmin := p.xmin
	if xmin == nil {
		xmin = make([]float64, nx)
		for i := range xmin {
			xmin[i] = math.Inf(-1)
		}
	}
	xmax := p.xmax
	if xmax == nil {
		xmax = make([]float64, nx)
		for i := range xmax {
			xmax[i] = math.Inf(1)
		}
	}
	a := p.a
	if a == nil {
		a = newSpmat(0, nx)
	}
	nA := a.nr

	// Variable limits become the leading rows of the linear constraint
	// set: AA = [I; A], ll = [xmin; l], uu = [xmax; u].
	aa := newSpmat(nx+nA, nx)
	ll := make([]float64, nx+nA)
	uu := make([]float64, nx+nA)
	for i := 0; i < nx; i++ {
		aa.rows[i][i] = 1
		ll[i] = xmin[i]
		uu[i] = xmax[i]
	}
	for r := 0; r < nA; r++ {
		for j, v := range a.rows[r] {
			aa.rows[nx+r][j] = v
		}
		ll[nx+r] = p.l[r]
		uu[nx+r] = p.u[r]
	}

	// Split the rows into equalities and the three inequality classes.
	var ieq, igt, ilt, ibx []int
	for j := range ll {
		switch {
		case math.Abs(uu[j]-ll[j]) < ipmEps:
			ieq = append(ieq, j)
		case uu[j] >= ipmBigBound && ll[j] > -ipmBigBound:
			igt = append(igt, j)
		case ll[j] <= -ipmBigBound && uu[j] < ipmBigBound:
			ilt = append(ilt, j)
		case uu[j] < ipmBigBound && ll[j] > -ipmBigBound:
			ibx = append(ibx, j)
		}
	}

	ae := aa.selectRows(ieq, false)
	be := make([]float64, len(ieq))
	for q, j := range ieq {
		be[q] = uu[j]
	}
	ai := vstack(vstack(aa.selectRows(ilt, false), aa.selectRows(igt, true)),
		vstack(aa.selectRows(ibx, false), aa.selectRows(ibx, true)))
	bi := make([]float64, 0, len(ilt)+len(igt)+2*len(ibx))
	for _, j := range ilt {
		bi = append(bi, uu[j])
	}
	for _, j := range igt {
		bi = append(bi, -ll[j])
	}
	for _, j := range ibx {
		bi = append(bi, uu[j])
	}
	for _, j := range ibx {
		bi = append(bi, -ll[j])
	}

	x := append([]float64{}, p.x0...)

	eval := func(x []float64) (f float64, df []float64, h, g []float64, dh, dg *spmat) {
		f, df = p.f(x)
		f *= opt.CostMult
		for i := range df {
			df[i] *= opt.CostMult
		}
		hn, gn, dhn, dgn := p.gh(x)

		axe := ae.mulVec(x)
		h = append(append([]float64{}, hn...), make([]float64, len(be))...)
		for q := range be {
			h[len(hn)+q] = axe[q] - be[q]
		}
		axi := ai.mulVec(x)
		g = append(append([]float64{}, gn...), make([]float64, len(bi))...)
		for q := range bi {
			g[len(gn)+q] = axi[q] - bi[q]
		}

		dh = vstack(dhn, ae)
		dg = vstack(dgn, ai)
		return
	}

	f, df, h, g, dh, dg := eval(x)

	neq := len(h)
	niq := len(g)
	neqnln, niqnln, _, _ := countNonlin(p, x)
	nlt, ngt, nbx := len(ilt), len(igt), len(ibx)

	// Initialize the barrier state.
	gamma := 1.0
	lam := make([]float64, neq)
	z := make([]float64, niq)
	mu := make([]float64, niq)
	for j := range z {
		z[j] = ipmZ0
		if g[j] < -ipmZ0 {
			z[j] = -g[j]
		}
		mu[j] = ipmZ0
		if gamma/z[j] > ipmZ0 {
			mu[j] = gamma / z[j]
		}
	}

	lagGrad := func(df []float64, dh, dg *spmat, lam, mu []float64) []float64 {
		lx := append([]float64{}, df...)
		for i, v := range dh.mulVecT(lam) {
			lx[i] += v
		}
		for i, v := range dg.mulVecT(mu) {
			lx[i] += v
		}
		return lx
	}

	zmuDot := func() float64 {
		s := 0.0
		for j := range z {
			s += z[j] * mu[j]
		}
		return s
	}

	f0 := f
	lx := lagGrad(df, dh, dg, lam, mu)

	conds := func() (feas, grad, comp, cost float64) {
		feas = math.Max(infNorm(h), maxElem(g)) / (1 + math.Max(infNorm(x), infNorm(z)))
		grad = infNorm(lx) / (1 + math.Max(infNorm(lam), infNorm(mu)))
		comp = zmuDot() / (1 + infNorm(x))
		cost = math.Abs(f-f0) / (1 + math.Abs(f0))
		return
	}

	sol := &ipmSolution{}
	feascond, gradcond, compcond, costcond := conds()
	converged := feascond < opt.FeasTol && gradcond < opt.GradTol &&
		compcond < opt.CompTol && costcond < opt.CostTol

	iter := 0
	for !converged && iter < opt.MaxIterations {
		iter++

		lxx := p.hess(x, lam[:neqnln], mu[:niqnln], opt.CostMult)

		// M = Lxx + dgᵀ·diag(mu/z)·dg, n = Lx + dgᵀ·(mu∘g + gamma)/z.
		m := newSpmat(nx, nx)
		m.addScaled(lxx, 1)
		nvec := append([]float64{}, lx...)
		for j := 0; j < niq; j++ {
			w := mu[j] / z[j]
			row := dg.rows[j]
			for c1, v1 := range row {
				for c2, v2 := range row {
					m.addAt(c1, c2, w*v1*v2)
				}
				nvec[c1] += v1 * (mu[j]*g[j] + gamma) / z[j]
			}
		}

		kkt := stampKKT(m, dh)
		if err := kkt.Factor(); err != nil {
			return nil, errors.Wrapf(err, "interior point iteration %d", iter)
		}
		rhs := make([]float64, nx+neq)
		for i := 0; i < nx; i++ {
			rhs[i] = -nvec[i]
		}
		for q := 0; q < neq; q++ {
			rhs[nx+q] = -h[q]
		}
		dxdlam, err := kkt.SolveReal(rhs)
		if err != nil {
			return nil, errors.Wrapf(err, "interior point iteration %d", iter)
		}
		dx := dxdlam[:nx]
		dlam := dxdlam[nx:]

		dgdx := dg.mulVec(dx)
		dz := make([]float64, niq)
		dmu := make([]float64, niq)
		for j := 0; j < niq; j++ {
			dz[j] = -g[j] - z[j] - dgdx[j]
			dmu[j] = -mu[j] + (gamma-mu[j]*dz[j])/z[j]
		}

		alphap, alphad := 1.0, 1.0
		for j := 0; j < niq; j++ {
			if dz[j] < 0 {
				alphap = minOf(alphap, ipmXi*z[j]/-dz[j])
			}
			if dmu[j] < 0 {
				alphad = minOf(alphad, ipmXi*mu[j]/-dmu[j])
			}
		}

		for i := range x {
			x[i] += alphap * dx[i]
		}
		for j := range z {
			z[j] += alphap * dz[j]
		}
		for q := range lam {
			lam[q] += alphad * dlam[q]
		}
		for j := range mu {
			mu[j] += alphad * dmu[j]
		}
		if niq > 0 {
			gamma = ipmSigma * zmuDot() / float64(niq)
		}

		f, df, h, g, dh, dg = eval(x)
		lx = lagGrad(df, dh, dg, lam, mu)
		feascond, gradcond, compcond, costcond = conds()
		if opt.Verbose {
			log.Printf("[pdipm] it %3d obj %12.6f feas %.3e grad %.3e comp %.3e cost %.3e",
				iter, f/opt.CostMult, feascond, gradcond, compcond, costcond)
		}

		if feascond < opt.FeasTol && gradcond < opt.GradTol &&
			compcond < opt.CompTol && costcond < opt.CostTol {
			converged = true
		} else {
			if anyNaN(x) || alphap < ipmAlphaMin || alphad < ipmAlphaMin ||
				gamma < ipmEps || gamma > 1/ipmEps {
				break
			}
			f0 = f
		}
	}

	// Zero multipliers on constraints that ended up slack.
	for j := 0; j < niq; j++ {
		if g[j] < -opt.FeasTol && mu[j] < ipmMuThreshold {
			mu[j] = 0
		}
	}

	f /= opt.CostMult
	for q := range lam {
		lam[q] /= opt.CostMult
	}
	for j := range mu {
		mu[j] /= opt.CostMult
	}

	// Re-package multipliers against the original row layout.
	lamLin := lam[neqnln:]
	muLin := mu[niqnln:]

	muL := make([]float64, nx+nA)
	muU := make([]float64, nx+nA)
	for q, j := range ieq {
		if lamLin[q] < 0 {
			muL[j] = -lamLin[q]
		} else if lamLin[q] > 0 {
			muU[j] = lamLin[q]
		}
	}
	for q, j := range ilt {
		muU[j] = muLin[q]
	}
	for q, j := range igt {
		muL[j] = muLin[nlt+q]
	}
	for q, j := range ibx {
		muU[j] = muLin[nlt+ngt+q]
		muL[j] = muLin[nlt+ngt+nbx+q]
	}

	sol.X = x
	sol.F = f
	sol.Converged = converged
	sol.Iterations = iter
	sol.FeasCond = feascond
	sol.GradCond = gradcond
	sol.CompCond = compcond
	sol.CostCond = costcond
	sol.Lambda = ipmLambda{
		EqNonlin:   append([]float64{}, lam[:neqnln]...),
		IneqNonlin: append([]float64{}, mu[:niqnln]...),
		MuL:        muL[nx:],
		MuU:        muU[nx:],
		Lower:      muL[:nx],
		Upper:      muU[:nx],
	}
	return sol, nil
}

func countNonlin(p ipmProblem, x []float64) (neqnln, niqnln int, h, g []float64) {
	h, g, _, _ = p.gh(x)
	return len(h), len(g), h, g
}

func anyNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// qp solves min ½xᵀHx + cᵀx s.t. the first neq rows of A·x = b hold with
// equality and the rest as A·x <= b, within the variable bounds. It is
// the quadratic wrapper the DC formulation feeds.
func qp(hmat *spmat, c []float64, a *spmat, b []float64, neq int,
	xmin, xmax, x0 []float64, opt ipmOptions) (*ipmSolution, error) {

	nx := len(c)
	if hmat == nil {
		hmat = newSpmat(nx, nx)
	}

	l := make([]float64, len(b))
	u := append([]float64{}, b...)
	for r := range b {
		if r < neq {
			l[r] = b[r]
		} else {
			l[r] = math.Inf(-1)
		}
	}

	p := ipmProblem{
		f: func(x []float64) (float64, []float64) {
			hx := hmat.mulVec(x)
			f := 0.0
			df := make([]float64, nx)
			for i := range x {
				f += 0.5*x[i]*hx[i] + c[i]*x[i]
				df[i] = hx[i] + c[i]
			}
			return f, df
		},
		gh: func(x []float64) ([]float64, []float64, *spmat, *spmat) {
			return nil, nil, newSpmat(0, nx), newSpmat(0, nx)
		},
		hess: func(x, lam, mu []float64, costMult float64) *spmat {
			lxx := newSpmat(nx, nx)
			lxx.addScaled(hmat, costMult)
			return lxx
		},
		x0:   x0,
		xmin: xmin,
		xmax: xmax,
		a:    a,
		l:    l,
		u:    u,
	}
	return pdipm(p, opt)
}
