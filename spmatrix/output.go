package spmatrix

import (
	"fmt"
	"strings"
)

// String renders the matrix in external ordering, one row per line.
// Structural zeros print as dots. Intended for debugging small systems.
func (m *Matrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "size=%d elements=%d fillins=%d\n", m.Size, m.elements, m.fillins)

	for extRow := 0; extRow < m.Size; extRow++ {
		intRow := m.extToIntRow[extRow+1]

		vals := make(map[int]complex128, m.Size)
		for e := m.firstInRow[intRow]; e != nil; e = e.NextInRow {
			vals[m.intToExtCol[e.Col]-1] = e.Val
		}

		for extCol := 0; extCol < m.Size; extCol++ {
			v, ok := vals[extCol]
			if !ok {
				b.WriteString("        .        ")
				continue
			}
			if imag(v) == 0 {
				fmt.Fprintf(&b, "%16.6g ", real(v))
			} else {
				fmt.Fprintf(&b, "%9.3g%+.3gi ", real(v), imag(v))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
