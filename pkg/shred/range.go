package shred

import "fmt"

// ObjectRange is the half-open window [Start, End) of components one object
// occupies in a shared mixture.
type ObjectRange struct {
	Start int
	End   int
}

// ObjectRanges partitions total components evenly across nobj objects,
// failing unless the division is exact. The returned ranges are disjoint
// and cover [0, total).
func ObjectRanges(total, nobj int) ([]ObjectRange, error) {
	if nobj < 1 {
		return nil, fmt.Errorf("%w: %d objects", ErrMismatch, nobj)
	}
	if total < 1 || total%nobj != 0 {
		return nil, fmt.Errorf("%w: %d components across %d objects", ErrMismatch, total, nobj)
	}
	per := total / nobj
	out := make([]ObjectRange, nobj)
	for i := range out {
		out[i] = ObjectRange{Start: i * per, End: (i + 1) * per}
	}
	return out, nil
}

// stampBounds computes the square pixel window of side 2*(stampSize/2)+1
// around the truncated center. Windows crossing the image edge in either
// direction are rejected rather than clamped, so stamps never come back
// mis-centered.
func stampBounds(rows, cols int, row, col float64, stampSize int) (rowStart, rowEnd, colStart, colEnd int, err error) {
	rad := stampSize / 2
	irow, icol := int(row), int(col)

	rowStart, rowEnd = irow-rad, irow+rad+1
	colStart, colEnd = icol-rad, icol+rad+1
	if rowStart < 0 || rowEnd > rows || colStart < 0 || colEnd > cols {
		err = fmt.Errorf("%w: rows [%d,%d) cols [%d,%d) in %dx%d image",
			ErrBounds, rowStart, rowEnd, colStart, colEnd, rows, cols)
	}
	return
}
