package spmatrix

func (m *Matrix) findDiag(index int) *Element {
	element := m.firstInCol[index]
	for element != nil && element.Row < index {
		element = element.NextInCol
	}
	if element != nil && element.Row == index {
		return element
	}
	return nil
}

// exchangeRowsAndCols moves the chosen pivot to the diagonal position of
// the current step, keeping the Markowitz bookkeeping and the singleton
// count consistent.
func (m *Matrix) exchangeRowsAndCols(pivot *Element, step int) {
	row := pivot.Row
	col := pivot.Col

	if row == step && col == step {
		return
	}

	if row == col {
		m.rowExchange(step, row)
		m.colExchange(step, col)

		m.markowitzProd[step], m.markowitzProd[row] = m.markowitzProd[row], m.markowitzProd[step]
		m.diags[row], m.diags[step] = m.diags[step], m.diags[row]
		return
	}

	oldMarkowitzStep := m.markowitzProd[step]
	oldMarkowitzRow := m.markowitzProd[row]
	oldMarkowitzCol := m.markowitzProd[col]

	if row != step {
		m.rowExchange(step, row)
		m.markowitzProd[row] = markowitzProduct(m.markowitzRow[row], m.markowitzCol[row])
		if (m.markowitzProd[row] == 0) != (oldMarkowitzRow == 0) {
			if oldMarkowitzRow == 0 {
				m.singletons--
			} else {
				m.singletons++
			}
		}
	}

	if col != step {
		m.colExchange(step, col)
		m.markowitzProd[col] = markowitzProduct(m.markowitzRow[col], m.markowitzCol[col])
		if (m.markowitzProd[col] == 0) != (oldMarkowitzCol == 0) {
			if oldMarkowitzCol == 0 {
				m.singletons--
			} else {
				m.singletons++
			}
		}
		m.diags[col] = m.findDiag(col)
	}

	if row != step {
		m.diags[row] = m.findDiag(row)
	}
	m.diags[step] = m.findDiag(step)

	m.markowitzProd[step] = markowitzProduct(m.markowitzRow[step], m.markowitzCol[step])
	if (m.markowitzProd[step] == 0) != (oldMarkowitzStep == 0) {
		if oldMarkowitzStep == 0 {
			m.singletons--
		} else {
			m.singletons++
		}
	}
}

func (m *Matrix) rowExchange(row1, row2 int) {
	if row1 > row2 {
		row1, row2 = row2, row1
	}

	row1Ptr := m.firstInRow[row1]
	row2Ptr := m.firstInRow[row2]

	for row1Ptr != nil || row2Ptr != nil {
		var column int
		var element1, element2 *Element

		switch {
		case row1Ptr == nil:
			column = row2Ptr.Col
			element2 = row2Ptr
			row2Ptr = row2Ptr.NextInRow
		case row2Ptr == nil:
			column = row1Ptr.Col
			element1 = row1Ptr
			row1Ptr = row1Ptr.NextInRow
		case row1Ptr.Col < row2Ptr.Col:
			column = row1Ptr.Col
			element1 = row1Ptr
			row1Ptr = row1Ptr.NextInRow
		case row1Ptr.Col > row2Ptr.Col:
			column = row2Ptr.Col
			element2 = row2Ptr
			row2Ptr = row2Ptr.NextInRow
		default:
			column = row1Ptr.Col
			element1 = row1Ptr
			element2 = row2Ptr
			row1Ptr = row1Ptr.NextInRow
			row2Ptr = row2Ptr.NextInRow
		}

		m.exchangeColElements(row1, element1, row2, element2, column)
	}

	m.markowitzRow[row1], m.markowitzRow[row2] = m.markowitzRow[row2], m.markowitzRow[row1]
	m.firstInRow[row1], m.firstInRow[row2] = m.firstInRow[row2], m.firstInRow[row1]
	m.intToExtRow[row1], m.intToExtRow[row2] = m.intToExtRow[row2], m.intToExtRow[row1]
	m.extToIntRow[m.intToExtRow[row1]] = row1
	m.extToIntRow[m.intToExtRow[row2]] = row2
}

func (m *Matrix) colExchange(col1, col2 int) {
	if col1 > col2 {
		col1, col2 = col2, col1
	}

	col1Ptr := m.firstInCol[col1]
	col2Ptr := m.firstInCol[col2]

	for col1Ptr != nil || col2Ptr != nil {
		var row int
		var element1, element2 *Element

		switch {
		case col1Ptr == nil:
			row = col2Ptr.Row
			element2 = col2Ptr
			col2Ptr = col2Ptr.NextInCol
		case col2Ptr == nil:
			row = col1Ptr.Row
			element1 = col1Ptr
			col1Ptr = col1Ptr.NextInCol
		case col1Ptr.Row < col2Ptr.Row:
			row = col1Ptr.Row
			element1 = col1Ptr
			col1Ptr = col1Ptr.NextInCol
		case col1Ptr.Row > col2Ptr.Row:
			row = col2Ptr.Row
			element2 = col2Ptr
			col2Ptr = col2Ptr.NextInCol
		default:
			row = col1Ptr.Row
			element1 = col1Ptr
			element2 = col2Ptr
			col1Ptr = col1Ptr.NextInCol
			col2Ptr = col2Ptr.NextInCol
		}

		m.exchangeRowElements(col1, element1, col2, element2, row)
	}

	m.markowitzCol[col1], m.markowitzCol[col2] = m.markowitzCol[col2], m.markowitzCol[col1]
	m.firstInCol[col1], m.firstInCol[col2] = m.firstInCol[col2], m.firstInCol[col1]
	m.intToExtCol[col1], m.intToExtCol[col2] = m.intToExtCol[col2], m.intToExtCol[col1]
	m.extToIntCol[m.intToExtCol[col1]] = col1
	m.extToIntCol[m.intToExtCol[col2]] = col2
}

// exchangeColElements swaps the rows of the two elements of one column
// that sit in the rows being exchanged, re-splicing the column chain so
// it stays sorted by row. Either element may be absent.
func (m *Matrix) exchangeColElements(row1 int, element1 *Element, row2 int, element2 *Element, column int) {
	var elementAboveRow1, elementAboveRow2 **Element
	var elementBelowRow1, elementBelowRow2 *Element

	elementAboveRow1 = &m.firstInCol[column]
	pElement := *elementAboveRow1
	for pElement.Row < row1 {
		elementAboveRow1 = &pElement.NextInCol
		pElement = *elementAboveRow1
	}

	if element1 != nil {
		elementBelowRow1 = element1.NextInCol
		if element2 == nil {
			if elementBelowRow1 != nil && elementBelowRow1.Row < row2 {
				*elementAboveRow1 = elementBelowRow1

				pElement = elementBelowRow1
				for pElement != nil && pElement.Row < row2 {
					elementAboveRow2 = &pElement.NextInCol
					pElement = *elementAboveRow2
				}

				*elementAboveRow2 = element1
				element1.NextInCol = pElement
			}
			element1.Row = row2
		} else {
			if elementBelowRow1.Row == row2 {
				element1.NextInCol = element2.NextInCol
				element2.NextInCol = element1
				*elementAboveRow1 = element2
			} else {
				pElement = elementBelowRow1
				for pElement.Row < row2 {
					elementAboveRow2 = &pElement.NextInCol
					pElement = *elementAboveRow2
				}

				elementBelowRow2 = element2.NextInCol

				*elementAboveRow1 = element2
				element2.NextInCol = elementBelowRow1
				*elementAboveRow2 = element1
				element1.NextInCol = elementBelowRow2
			}
			element1.Row = row2
			element2.Row = row1
		}
	} else {
		elementBelowRow1 = pElement

		if elementBelowRow1.Row != row2 {
			for pElement.Row < row2 {
				elementAboveRow2 = &pElement.NextInCol
				pElement = *elementAboveRow2
			}

			elementBelowRow2 = element2.NextInCol

			*elementAboveRow2 = elementBelowRow2
			*elementAboveRow1 = element2
			element2.NextInCol = elementBelowRow1
		}
		element2.Row = row1
	}
}

// exchangeRowElements is the row-chain counterpart of exchangeColElements.
func (m *Matrix) exchangeRowElements(col1 int, element1 *Element, col2 int, element2 *Element, row int) {
	elementLeftOfCol1 := &m.firstInRow[row]
	pElement := *elementLeftOfCol1
	for pElement.Col < col1 {
		elementLeftOfCol1 = &pElement.NextInRow
		pElement = *elementLeftOfCol1
	}

	if element1 != nil {
		elementRightOfCol1 := element1.NextInRow
		if element2 == nil {
			if elementRightOfCol1 != nil && elementRightOfCol1.Col < col2 {
				*elementLeftOfCol1 = elementRightOfCol1

				pElement = elementRightOfCol1
				var elementLeftOfCol2 **Element
				for pElement != nil && pElement.Col < col2 {
					elementLeftOfCol2 = &pElement.NextInRow
					pElement = *elementLeftOfCol2
				}

				*elementLeftOfCol2 = element1
				element1.NextInRow = pElement
			}
			element1.Col = col2
		} else {
			if elementRightOfCol1.Col == col2 {
				element1.NextInRow = element2.NextInRow
				element2.NextInRow = element1
				*elementLeftOfCol1 = element2
			} else {
				pElement = elementRightOfCol1
				var elementLeftOfCol2 **Element
				for pElement.Col < col2 {
					elementLeftOfCol2 = &pElement.NextInRow
					pElement = *elementLeftOfCol2
				}

				elementRightOfCol2 := element2.NextInRow

				*elementLeftOfCol1 = element2
				element2.NextInRow = elementRightOfCol1
				*elementLeftOfCol2 = element1
				element1.NextInRow = elementRightOfCol2
			}
			element1.Col = col2
			element2.Col = col1
		}
	} else {
		elementRightOfCol1 := pElement

		if elementRightOfCol1.Col != col2 {
			var elementLeftOfCol2 **Element
			for pElement.Col < col2 {
				elementLeftOfCol2 = &pElement.NextInRow
				pElement = *elementLeftOfCol2
			}

			elementRightOfCol2 := element2.NextInRow

			*elementLeftOfCol2 = elementRightOfCol2
			*elementLeftOfCol1 = element2
			element2.NextInRow = elementRightOfCol1
		}
		element2.Col = col1
	}
}
