package obs

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Image is a dense row-major float64 pixel grid.
type Image struct {
	rows int
	cols int
	data []float64
}

// NewImage returns a zero-filled rows x cols image. Panics on non-positive
// dimensions, matching the gonum matrix constructors.
func NewImage(rows, cols int) *Image {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("obs: invalid image dimensions %dx%d", rows, cols))
	}
	return &Image{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// NewImageFromSlice wraps an existing row-major slice without copying.
func NewImageFromSlice(rows, cols int, data []float64) (*Image, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("obs: invalid image dimensions %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("obs: image data length %d does not match %dx%d",
			len(data), rows, cols)
	}
	return &Image{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the number of rows.
func (im *Image) Rows() int { return im.rows }

// Cols returns the number of columns.
func (im *Image) Cols() int { return im.cols }

// Get returns the pixel at (row, col).
func (im *Image) Get(row, col int) float64 { return im.data[row*im.cols+col] }

// Set stores v at (row, col).
func (im *Image) Set(row, col int, v float64) { im.data[row*im.cols+col] = v }

// Add adds v to the pixel at (row, col).
func (im *Image) Add(row, col int, v float64) { im.data[row*im.cols+col] += v }

// Data returns the backing row-major slice. Mutations write through to the
// image.
func (im *Image) Data() []float64 { return im.data }

// Copy returns a deep copy.
func (im *Image) Copy() *Image {
	out := NewImage(im.rows, im.cols)
	copy(out.data, im.data)
	return out
}

// Fill sets every pixel to v.
func (im *Image) Fill(v float64) {
	for i := range im.data {
		im.data[i] = v
	}
}

// AddScalar adds v to every pixel.
func (im *Image) AddScalar(v float64) {
	floats.AddConst(v, im.data)
}

// Sum returns the sum over all pixels.
func (im *Image) Sum() float64 { return floats.Sum(im.data) }

// Min returns the smallest pixel value.
func (im *Image) Min() float64 { return floats.Min(im.data) }

// Max returns the largest pixel value.
func (im *Image) Max() float64 { return floats.Max(im.data) }

// SameShape reports whether other has identical dimensions.
func (im *Image) SameShape(other *Image) bool {
	return im.rows == other.rows && im.cols == other.cols
}

// AddScaled adds fac*other to the image in place. Panics on a shape
// mismatch, matching the gonum floats length contracts.
func (im *Image) AddScaled(other *Image, fac float64) {
	if !im.SameShape(other) {
		panic(fmt.Sprintf("obs: shape mismatch %dx%d vs %dx%d",
			im.rows, im.cols, other.rows, other.cols))
	}
	floats.AddScaled(im.data, fac, other.data)
}

// Crop returns a copy of the window rows [rowStart, rowEnd) by cols
// [colStart, colEnd).
func (im *Image) Crop(rowStart, rowEnd, colStart, colEnd int) (*Image, error) {
	if rowStart < 0 || colStart < 0 || rowEnd > im.rows || colEnd > im.cols ||
		rowStart >= rowEnd || colStart >= colEnd {
		return nil, fmt.Errorf("obs: crop [%d:%d,%d:%d] invalid for %dx%d image",
			rowStart, rowEnd, colStart, colEnd, im.rows, im.cols)
	}
	out := NewImage(rowEnd-rowStart, colEnd-colStart)
	for r := rowStart; r < rowEnd; r++ {
		src := im.data[r*im.cols+colStart : r*im.cols+colEnd]
		copy(out.data[(r-rowStart)*out.cols:], src)
	}
	return out, nil
}
