package opf

import (
	"gridflow/network"
)

// polyVal evaluates a polynomial with highest-degree coefficient first.
func polyVal(coeffs []float64, x float64) float64 {
	v := 0.0
	for _, c := range coeffs {
		v = v*x + c
	}
	return v
}

// polyDer returns the derivative coefficients, still highest first.
func polyDer(coeffs []float64) []float64 {
	n := len(coeffs)
	if n <= 1 {
		return []float64{0}
	}
	out := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		out[i] = coeffs[i] * float64(n-1-i)
	}
	return out
}

// pwlVal evaluates a piecewise-linear cost at output p (MW), holding the
// end segments' slopes beyond the specified range.
func pwlVal(points []network.CostPoint, p float64) float64 {
	n := len(points)
	if n == 1 {
		return points[0].Cost
	}
	seg := 0
	for seg < n-2 && p > points[seg+1].P {
		seg++
	}
	x1, y1 := points[seg].P, points[seg].Cost
	x2, y2 := points[seg+1].P, points[seg+1].Cost
	m := (y2 - y1) / (x2 - x1)
	return y1 + m*(p-x1)
}

// genCost is the hourly cost of one generator at output pg in MW.
func genCost(gc *network.GeneratorCost, pg float64) float64 {
	switch gc.Model {
	case network.Polynomial:
		return polyVal(gc.Coeffs, pg)
	case network.PiecewiseLinear:
		return pwlVal(gc.Points, pg)
	}
	return 0
}

// totalCost sums the hourly cost of the in-service generators at their
// current dispatch.
func totalCost(c *network.Case) float64 {
	if len(c.Costs) != len(c.Generators) {
		return 0
	}
	sum := 0.0
	for g := range c.Generators {
		if c.Generators[g].InService {
			sum += genCost(&c.Costs[g], c.Generators[g].Pg)
		}
	}
	return sum
}

// quadCoeffs extracts (c2, c1, c0) from a polynomial cost of degree two
// or less, padding missing terms with zeros.
func quadCoeffs(coeffs []float64) (c2, c1, c0 float64) {
	switch len(coeffs) {
	case 1:
		return 0, 0, coeffs[0]
	case 2:
		return 0, coeffs[0], coeffs[1]
	case 3:
		return coeffs[0], coeffs[1], coeffs[2]
	}
	return 0, 0, 0
}
