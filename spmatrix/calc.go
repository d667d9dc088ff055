package spmatrix

import "math"

// mag is the pivot magnitude measure, the 1-norm of a complex value.
func mag(v complex128) float64 {
	return math.Abs(real(v)) + math.Abs(imag(v))
}

// reciprocal computes 1/v while avoiding intermediate overflow.
func reciprocal(v complex128) complex128 {
	re, im := real(v), imag(v)
	if (re >= im && re > -im) || (re < im && re <= -im) {
		r := im / re
		re = 1.0 / (re + r*im)
		return complex(re, -r*re)
	}
	r := re / im
	im = -1.0 / (im + r*re)
	return complex(-r*im, im)
}

func markowitzProduct(rowCount, colCount int64) int64 {
	if rowCount > math.MaxInt32 && colCount != 0 || colCount > math.MaxInt32 && rowCount != 0 {
		product := float64(rowCount) * float64(colCount)
		if product >= math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(product)
	}
	return rowCount * colCount
}
