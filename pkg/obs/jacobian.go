// Package obs defines the observation data model shared by the fitting and
// deblending packages: dense pixel images, inverse variance weight maps, the
// affine mapping between pixel and sky coordinates, and single and
// multi-band groupings of observations.
package obs

import (
	"fmt"
	"math"
)

// Jacobian is the affine map from pixel (row, col) to sky-plane (v, u)
// coordinates about a reference pixel: v runs along rows, u along columns
// and the reference pixel maps to the sky origin.
type Jacobian struct {
	row0   float64
	col0   float64
	dvdrow float64
	dvdcol float64
	dudrow float64
	dudcol float64
	det    float64
}

// NewJacobian builds a general jacobian. Fails when the linear part is
// degenerate.
func NewJacobian(row0, col0, dvdrow, dvdcol, dudrow, dudcol float64) (Jacobian, error) {
	det := dvdrow*dudcol - dvdcol*dudrow
	if math.Abs(det) < 1e-10 {
		return Jacobian{}, fmt.Errorf("obs: degenerate jacobian, det=%g", det)
	}
	return Jacobian{
		row0: row0, col0: col0,
		dvdrow: dvdrow, dvdcol: dvdcol,
		dudrow: dudrow, dudcol: dudcol,
		det: det,
	}, nil
}

// NewDiagonalJacobian builds a jacobian with a uniform scale and no rotation
// or shear.
func NewDiagonalJacobian(scale, row0, col0 float64) (Jacobian, error) {
	return NewJacobian(row0, col0, scale, 0, 0, scale)
}

// SkyCoords maps a pixel position to sky coordinates.
func (j Jacobian) SkyCoords(row, col float64) (v, u float64) {
	dr := row - j.row0
	dc := col - j.col0
	return j.dvdrow*dr + j.dvdcol*dc, j.dudrow*dr + j.dudcol*dc
}

// RowCol maps sky coordinates back to a pixel position.
func (j Jacobian) RowCol(v, u float64) (row, col float64) {
	row = j.row0 + (j.dudcol*v-j.dvdcol*u)/j.det
	col = j.col0 + (-j.dudrow*v+j.dvdrow*u)/j.det
	return row, col
}

// Center returns the reference pixel.
func (j Jacobian) Center() (row0, col0 float64) { return j.row0, j.col0 }

// WithCenter returns a copy with the reference pixel moved and the linear
// part unchanged.
func (j Jacobian) WithCenter(row0, col0 float64) Jacobian {
	out := j
	out.row0 = row0
	out.col0 = col0
	return out
}

// Scale returns sqrt(|det|), the linear pixel scale in sky units per pixel.
func (j Jacobian) Scale() float64 { return math.Sqrt(math.Abs(j.det)) }

// PixelArea returns |det|, the sky area covered by one pixel.
func (j Jacobian) PixelArea() float64 { return math.Abs(j.det) }
