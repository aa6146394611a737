package shred

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectRanges(t *testing.T) {
	ranges, err := ObjectRanges(12, 3)
	require.NoError(t, err)
	require.Equal(t, []ObjectRange{{0, 4}, {4, 8}, {8, 12}}, ranges)

	// disjoint cover of [0, total)
	covered := 0
	for i, r := range ranges {
		require.Equal(t, covered, r.Start, "range %d", i)
		require.Greater(t, r.End, r.Start)
		covered = r.End
	}
	require.Equal(t, 12, covered)

	single, err := ObjectRanges(5, 1)
	require.NoError(t, err)
	require.Equal(t, []ObjectRange{{0, 5}}, single)
}

func TestObjectRangesMismatch(t *testing.T) {
	_, err := ObjectRanges(10, 3)
	require.ErrorIs(t, err, ErrMismatch)

	_, err = ObjectRanges(0, 2)
	require.ErrorIs(t, err, ErrMismatch)

	_, err = ObjectRanges(4, 0)
	require.ErrorIs(t, err, ErrMismatch)
}

func TestStampBounds(t *testing.T) {
	rowStart, rowEnd, colStart, colEnd, err := stampBounds(12, 12, 5.7, 5.2, 5)
	require.NoError(t, err)
	require.Equal(t, 3, rowStart)
	require.Equal(t, 8, rowEnd)
	require.Equal(t, 3, colStart)
	require.Equal(t, 8, colEnd)

	// even sizes share the window of the next odd size
	r0, r1, c0, c1, err := stampBounds(12, 12, 5.7, 5.2, 4)
	require.NoError(t, err)
	require.Equal(t, [4]int{rowStart, rowEnd, colStart, colEnd}, [4]int{r0, r1, c0, c1})

	// an object at (50, 50) with size 11 lands at local center (5, 5)
	r0, r1, c0, c1, err = stampBounds(100, 100, 50.0, 50.0, 11)
	require.NoError(t, err)
	require.Equal(t, 45, r0)
	require.Equal(t, 56, r1)
	require.Equal(t, 45, c0)
	require.Equal(t, 56, c1)
	require.Equal(t, 5.0, 50.0-float64(r0))

	_, _, _, _, err = stampBounds(12, 12, 1.0, 6.0, 5)
	require.ErrorIs(t, err, ErrBounds)

	_, _, _, _, err = stampBounds(12, 12, 6.0, 10.5, 5)
	require.ErrorIs(t, err, ErrBounds)
}
