package spmatrix

import "math"

// searchForPivot selects the pivot for the given elimination step, trying
// progressively more expensive strategies: singletons first, then the
// diagonal, then the entire remaining submatrix.
func (m *Matrix) searchForPivot(step int) *Element {
	if m.singletons > 0 {
		if pivot := m.searchForSingleton(step); pivot != nil {
			return pivot
		}
	}

	if pivot := m.quicklySearchDiagonal(step); pivot != nil {
		return pivot
	}
	if pivot := m.searchDiagonal(step); pivot != nil {
		return pivot
	}

	return m.searchEntireMatrix(step)
}

// findBiggestInColExclude returns the magnitude of the largest element in
// the pivot candidate's column, restricted to the active submatrix and
// excluding the candidate itself.
func (m *Matrix) findBiggestInColExclude(elem *Element, step int) float64 {
	current := m.firstInCol[elem.Col]
	for current != nil && current.Row < step {
		current = current.NextInCol
	}
	if current == nil {
		return 0.0
	}

	var largest float64
	if current.Row != elem.Row {
		largest = mag(current.Val)
	}
	for current = current.NextInCol; current != nil; current = current.NextInCol {
		magnitude := mag(current.Val)
		if magnitude > largest && current.Row != elem.Row {
			largest = magnitude
		}
	}
	return largest
}

func findBiggestInCol(element *Element) float64 {
	largest := 0.0
	for current := element; current != nil; current = current.NextInCol {
		if magnitude := mag(current.Val); magnitude > largest {
			largest = magnitude
		}
	}
	return largest
}

func (m *Matrix) searchForSingleton(step int) *Element {
	m.markowitzProd[m.Size+1] = m.markowitzProd[step]
	m.markowitzProd[step-1] = 0

	singletons := m.singletons
	m.singletons--

	index := m.Size + 1

	for singletons > 0 {
		for index >= step && m.markowitzProd[index] != 0 {
			index--
		}

		i := index
		if i < step {
			break
		}
		if i > m.Size {
			i = step
		}

		var chosenPivot *Element
		if pivot := m.diags[i]; pivot != nil {
			pivotMag := mag(pivot.Val)
			if pivotMag > m.AbsThreshold &&
				pivotMag > m.RelThreshold*m.findBiggestInColExclude(pivot, step) {
				return pivot
			}
		} else {
			if m.markowitzCol[i] == 0 {
				pivot := m.firstInCol[i]
				for pivot != nil && pivot.Row < step {
					pivot = pivot.NextInCol
				}
				if pivot != nil {
					chosenPivot = pivot
				}
			}
			if chosenPivot == nil && m.markowitzRow[i] == 0 {
				pivot := m.firstInRow[i]
				for pivot != nil && pivot.Col < step {
					pivot = pivot.NextInRow
				}
				if pivot != nil {
					chosenPivot = pivot
				}
			}

			if chosenPivot != nil {
				pivotMag := mag(chosenPivot.Val)
				if pivotMag > m.AbsThreshold &&
					pivotMag > m.RelThreshold*m.findBiggestInColExclude(chosenPivot, step) {
					return chosenPivot
				}
			}
		}

		singletons--
		index--
	}

	m.singletons++
	return nil
}

func (m *Matrix) quicklySearchDiagonal(step int) *Element {
	var chosenPivot *Element

	minMarkowitzProduct := int64(math.MaxInt64)
	m.markowitzProd[m.Size+1] = m.markowitzProd[step]
	m.markowitzProd[step-1] = -1

	index := m.Size + 2
	for {
		index--
		for m.markowitzProd[index] >= minMarkowitzProduct {
			index--
		}

		i := index
		if i < step {
			break
		}
		if i > m.Size {
			i = step
		}

		diag := m.diags[i]
		if diag == nil {
			continue
		}
		magnitude := mag(diag.Val)
		if magnitude <= m.AbsThreshold {
			continue
		}

		if m.markowitzProd[i] == 1 {
			// A doubleton whose off-diagonal pair forms a symmetric
			// structure is acceptable without a full column scan.
			otherInRow := diag.NextInRow
			otherInCol := diag.NextInCol

			if otherInRow != nil && otherInCol != nil && otherInRow.Col == otherInCol.Row {
				largestOffDiag := math.Max(mag(otherInRow.Val), mag(otherInCol.Val))
				if magnitude >= largestOffDiag {
					return diag
				}
			}
		}

		minMarkowitzProduct = m.markowitzProd[i]
		chosenPivot = diag
	}

	if chosenPivot != nil {
		largestInCol := m.findBiggestInColExclude(chosenPivot, step)
		if mag(chosenPivot.Val) <= m.RelThreshold*largestInCol {
			chosenPivot = nil
		}
	}
	return chosenPivot
}

func (m *Matrix) searchDiagonal(step int) *Element {
	var chosenPivot *Element
	minMarkowitzProduct := int64(math.MaxInt64)
	numberOfTies := int64(0)
	var ratioOfAccepted float64

	m.markowitzProd[m.Size+1] = m.markowitzProd[step]

	for i := m.Size; i >= step; i-- {
		if m.markowitzProd[i] > minMarkowitzProduct {
			continue
		}

		diag := m.diags[i]
		if diag == nil {
			continue
		}

		magnitude := mag(diag.Val)
		if magnitude <= m.AbsThreshold {
			continue
		}

		largestInCol := m.findBiggestInColExclude(diag, step)
		if magnitude <= m.RelThreshold*largestInCol {
			continue
		}

		if m.markowitzProd[i] < minMarkowitzProduct {
			chosenPivot = diag
			minMarkowitzProduct = m.markowitzProd[i]
			ratioOfAccepted = largestInCol / magnitude
			numberOfTies = 0
		} else {
			numberOfTies++
			ratio := largestInCol / magnitude
			if ratio < ratioOfAccepted {
				chosenPivot = diag
				ratioOfAccepted = ratio
			}
			if numberOfTies >= minMarkowitzProduct*int64(m.TiesMultiplier) {
				return chosenPivot
			}
		}
	}
	return chosenPivot
}

func (m *Matrix) searchEntireMatrix(step int) *Element {
	var chosenPivot, largestElement *Element
	minMarkowitzProduct := int64(math.MaxInt64)
	largestElementMag := 0.0
	numberOfTies := int64(0)
	var ratioOfAccepted float64

	for i := step; i <= m.Size; i++ {
		current := m.firstInCol[i]
		for current != nil && current.Row < step {
			current = current.NextInCol
		}

		largestInCol := findBiggestInCol(current)
		if largestInCol == 0.0 {
			continue
		}

		for ; current != nil; current = current.NextInCol {
			magnitude := mag(current.Val)
			if magnitude > largestElementMag {
				largestElementMag = magnitude
				largestElement = current
			}

			product := markowitzProduct(m.markowitzRow[current.Row], m.markowitzCol[current.Col])

			if product <= minMarkowitzProduct && magnitude > m.RelThreshold*largestInCol &&
				magnitude > m.AbsThreshold {
				if product < minMarkowitzProduct {
					chosenPivot = current
					minMarkowitzProduct = product
					ratioOfAccepted = largestInCol / magnitude
					numberOfTies = 0
				} else {
					numberOfTies++
					ratio := largestInCol / magnitude
					if ratio < ratioOfAccepted {
						chosenPivot = current
						ratioOfAccepted = ratio
					}
					if numberOfTies >= minMarkowitzProduct*int64(m.TiesMultiplier) {
						return chosenPivot
					}
				}
			}
		}
	}

	if chosenPivot != nil {
		return chosenPivot
	}
	if largestElementMag == 0.0 {
		return nil
	}
	// Every remaining candidate fails the threshold test; take the
	// largest element and accept the accuracy loss.
	return largestElement
}
