package opf

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"

	"gridflow/network"
)

func TestPolyVal(t *testing.T) {
	// 2x² + 3x + 4 at x = 2.
	assert.Equal(t, polyVal([]float64{2, 3, 4}, 2), 18.0)
	assert.Equal(t, polyVal([]float64{5}, 100), 5.0)
	assert.Equal(t, polyVal(nil, 7), 0.0)
}

func TestPolyDer(t *testing.T) {
	d := polyDer([]float64{2, 3, 4})
	assert.Equal(t, len(d), 2)
	assert.Equal(t, d[0], 4.0)
	assert.Equal(t, d[1], 3.0)

	dd := polyDer(d)
	assert.Equal(t, len(dd), 1)
	assert.Equal(t, dd[0], 4.0)

	const5 := polyDer([]float64{5})
	assert.Equal(t, len(const5), 1)
	assert.Equal(t, const5[0], 0.0)
}

func TestPwlVal(t *testing.T) {
	pts := []network.CostPoint{{P: 0, Cost: 0}, {P: 10, Cost: 100}, {P: 20, Cost: 300}}
	assert.Equal(t, pwlVal(pts, 5), 50.0)
	assert.Equal(t, pwlVal(pts, 15), 200.0)
	assert.Equal(t, pwlVal(pts, 10), 100.0)
	// Past the last breakpoint the final slope extends.
	assert.Equal(t, pwlVal(pts, 25), 400.0)
}

func TestQuadCoeffs(t *testing.T) {
	c2, c1, c0 := quadCoeffs([]float64{0.01, 11, 200})
	assert.Equal(t, c2, 0.01)
	assert.Equal(t, c1, 11.0)
	assert.Equal(t, c0, 200.0)

	c2, c1, c0 = quadCoeffs([]float64{11, 200})
	assert.Equal(t, c2, 0.0)
	assert.Equal(t, c1, 11.0)
	assert.Equal(t, c0, 200.0)
}

func TestTotalCostCase6WW(t *testing.T) {
	c := network.Case6WW()
	// Scheduled dispatch is 0, 50 and 60 MW.
	want := 213.1 +
		(0.00889*50*50 + 10.333*50 + 200.0) +
		(0.00741*60*60 + 10.833*60 + 240.0)
	assert.Assert(t, math.Abs(totalCost(c)-want) < 1e-9)
}
