// Package gmix implements weighted mixtures of elliptical Gaussians used to
// model the light of astronomical sources: construction from standard
// profiles, moments, PSF convolution, and rendering onto pixel grids.
//
// Positions are in sky coordinates (v along image rows, u along columns) and
// amplitudes are the integral of each component over the sky plane, so a
// mixture's total amplitude is its flux in sky units.
package gmix

import (
	"fmt"
	"math"
)

// lowDetVal is the smallest covariance determinant treated as non-singular.
const lowDetVal = 1.0e-200

// maxChi2 is the evaluation cutoff: beyond this Mahalanobis distance a
// component contributes nothing. Keeps the exponential argument inside the
// fast lookup range.
const maxChi2 = 25.0

// Gauss is a single elliptical Gaussian component. Row and Col are the
// centroid in sky coordinates, Irr/Irc/Icc the covariance matrix entries,
// and P the amplitude.
type Gauss struct {
	P   float64
	Row float64
	Col float64
	Irr float64
	Irc float64
	Icc float64

	// derived terms, valid after SetNorm
	det   float64
	drr   float64
	drc   float64
	dcc   float64
	pnorm float64
}

// NewGauss builds a component and computes its derived terms.
func NewGauss(p, row, col, irr, irc, icc float64) (Gauss, error) {
	g := Gauss{P: p, Row: row, Col: col, Irr: irr, Irc: irc, Icc: icc}
	if err := g.SetNorm(); err != nil {
		return Gauss{}, err
	}
	return g, nil
}

// SetNorm computes the inverse covariance terms and the peak normalization.
// It must be called again after any direct modification of the covariance
// fields, and fails if the covariance is singular or not positive definite.
func (g *Gauss) SetNorm() error {
	det := g.Irr*g.Icc - g.Irc*g.Irc
	if det < lowDetVal {
		return fmt.Errorf("gmix: singular covariance, det=%g", det)
	}
	idet := 1.0 / det
	g.det = det
	g.drr = g.Irr * idet
	g.drc = g.Irc * idet
	g.dcc = g.Icc * idet
	g.pnorm = g.P / (2 * math.Pi * math.Sqrt(det))
	return nil
}

// Det returns the covariance determinant computed by SetNorm.
func (g *Gauss) Det() float64 { return g.det }

// T returns the size parameter Irr+Icc.
func (g *Gauss) T() float64 { return g.Irr + g.Icc }

// Eval returns the density at sky position (v, u). The density integrates to
// P over the plane; contributions beyond the chi-squared cutoff evaluate to
// exactly zero. Valid only after SetNorm.
func (g *Gauss) Eval(v, u float64) float64 {
	vdiff := v - g.Row
	udiff := u - g.Col
	chi2 := g.dcc*vdiff*vdiff + g.drr*udiff*udiff - 2*g.drc*vdiff*udiff
	if chi2 >= maxChi2 || chi2 < 0 {
		return 0
	}
	return g.pnorm * expd(-0.5*chi2)
}
