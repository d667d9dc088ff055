package spmatrix

// Factor decomposes the matrix into LU form in place. On the first call,
// or after the sparsity pattern has changed, it performs a full Markowitz
// ordering with threshold pivoting. On later calls it retries the existing
// ordering and falls back to reordering only when a previously chosen
// pivot has become too small.
func (m *Matrix) Factor() error {
	size := m.Size
	step := 1

	if !m.needsOrdering {
		for step = 1; step <= size; step++ {
			pivot := m.diags[step]
			if pivot == nil {
				m.needsOrdering = true
				break
			}

			largestInCol := findBiggestInCol(pivot.NextInCol)
			if largestInCol*m.RelThreshold < mag(pivot.Val) {
				if err := m.rowColElimination(pivot); err != nil {
					return err
				}
			} else {
				m.needsOrdering = true
				break
			}
		}

		if !m.needsOrdering {
			m.factored = true
			return nil
		}
	} else {
		step = 1
	}

	m.countMarkowitz(step)
	m.markowitzProducts(step)

	for ; step <= size; step++ {
		pivot := m.searchForPivot(step)
		if pivot == nil {
			return &SingularError{Step: step}
		}

		m.exchangeRowsAndCols(pivot, step)

		if err := m.rowColElimination(pivot); err != nil {
			return err
		}

		m.updateMarkowitzNumbers(pivot)
	}

	m.needsOrdering = false
	m.factored = true
	return nil
}

// rowColElimination eliminates a single row and column from the active
// submatrix, storing the reciprocal of the pivot on the diagonal and
// creating fill-ins as needed.
func (m *Matrix) rowColElimination(pivot *Element) error {
	if mag(pivot.Val) == 0.0 {
		return &SingularError{Step: pivot.Row}
	}

	pivot.Val = reciprocal(pivot.Val)

	for upper := pivot.NextInRow; upper != nil; upper = upper.NextInRow {
		upper.Val *= pivot.Val

		sub := upper.NextInCol
		for lower := pivot.NextInCol; lower != nil; lower = lower.NextInCol {
			row := lower.Row
			for sub != nil && sub.Row < row {
				sub = sub.NextInCol
			}

			if sub == nil || sub.Row > row {
				sub = m.createElement(row, upper.Col, true)
			}

			sub.Val -= upper.Val * lower.Val
			sub = sub.NextInCol
		}
	}
	return nil
}

func (m *Matrix) countMarkowitz(step int) {
	for i := step; i <= m.Size; i++ {
		count := int64(-1)
		element := m.firstInRow[i]
		for element != nil && element.Col < step {
			element = element.NextInRow
		}
		for element != nil {
			count++
			element = element.NextInRow
		}
		m.markowitzRow[i] = count
	}

	for i := step; i <= m.Size; i++ {
		count := int64(-1)
		element := m.firstInCol[i]
		for element != nil && element.Row < step {
			element = element.NextInCol
		}
		for element != nil {
			count++
			element = element.NextInCol
		}
		m.markowitzCol[i] = count
	}
}

func (m *Matrix) markowitzProducts(step int) {
	m.singletons = 0
	for i := step; i <= m.Size; i++ {
		m.markowitzProd[i] = markowitzProduct(m.markowitzRow[i], m.markowitzCol[i])
		if m.markowitzProd[i] == 0 {
			m.singletons++
		}
	}
}

// updateMarkowitzNumbers adjusts the counts of the rows and columns that
// lost an element to the elimination step just performed.
func (m *Matrix) updateMarkowitzNumbers(pivot *Element) {
	for colPtr := pivot.NextInCol; colPtr != nil; colPtr = colPtr.NextInCol {
		row := colPtr.Row
		m.markowitzRow[row]--
		m.markowitzProd[row] = markowitzProduct(m.markowitzRow[row], m.markowitzCol[row])
		if m.markowitzRow[row] == 0 {
			m.singletons++
		}
	}

	for rowPtr := pivot.NextInRow; rowPtr != nil; rowPtr = rowPtr.NextInRow {
		col := rowPtr.Col
		m.markowitzCol[col]--
		m.markowitzProd[col] = markowitzProduct(m.markowitzRow[col], m.markowitzCol[col])
		if m.markowitzCol[col] == 0 && m.markowitzRow[col] != 0 {
			m.singletons++
		}
	}
}
