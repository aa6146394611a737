package gmix

import (
	"fmt"
)

// GMix is an ordered Gaussian mixture. Methods that mutate amplitudes keep
// the derived evaluation terms consistent; methods that change covariances
// require a fresh SetNorm before evaluation.
type GMix []Gauss

// NewGMix returns a mixture of n zeroed components.
func NewGMix(n int) GMix { return make(GMix, n) }

// Copy returns a deep, independent copy.
func (g GMix) Copy() GMix {
	out := make(GMix, len(g))
	copy(out, g)
	return out
}

// Slice returns an independent copy of components [start, end).
func (g GMix) Slice(start, end int) (GMix, error) {
	if start < 0 || end > len(g) || start >= end {
		return nil, fmt.Errorf("gmix: slice [%d,%d) invalid for %d components", start, end, len(g))
	}
	out := make(GMix, end-start)
	copy(out, g[start:end])
	return out, nil
}

// SetNorm computes derived terms for every component.
func (g GMix) SetNorm() error {
	for i := range g {
		if err := g[i].SetNorm(); err != nil {
			return err
		}
	}
	return nil
}

// Flux returns the total amplitude.
func (g GMix) Flux() float64 {
	var sum float64
	for i := range g {
		sum += g[i].P
	}
	return sum
}

// SetFlux rescales all amplitudes so the total equals flux. Fails on a
// mixture whose amplitudes sum to zero.
func (g GMix) SetFlux(flux float64) error {
	psum := g.Flux()
	if psum == 0 {
		return fmt.Errorf("gmix: cannot set flux on zero-amplitude mixture")
	}
	g.ScaleFlux(flux / psum)
	return nil
}

// ScaleFlux multiplies every amplitude by fac.
func (g GMix) ScaleFlux(fac float64) {
	for i := range g {
		g[i].P *= fac
		g[i].pnorm *= fac
	}
}

// Cen returns the flux-weighted centroid in sky coordinates.
func (g GMix) Cen() (row, col float64, err error) {
	psum := g.Flux()
	if psum == 0 {
		return 0, 0, fmt.Errorf("gmix: centroid undefined for zero-amplitude mixture")
	}
	for i := range g {
		row += g[i].P * g[i].Row
		col += g[i].P * g[i].Col
	}
	return row / psum, col / psum, nil
}

// SetCen shifts every component so the flux-weighted centroid lands at
// (row, col).
func (g GMix) SetCen(row, col float64) error {
	crow, ccol, err := g.Cen()
	if err != nil {
		return err
	}
	drow := row - crow
	dcol := col - ccol
	for i := range g {
		g[i].Row += drow
		g[i].Col += dcol
	}
	return nil
}

// Moments holds the flux-weighted centroid and total second moments of a
// mixture, including the scatter of component centers.
type Moments struct {
	Row float64
	Col float64
	Irr float64
	Irc float64
	Icc float64
}

// T returns the size parameter Irr+Icc.
func (m Moments) T() float64 { return m.Irr + m.Icc }

// Moments returns the mixture's flux-weighted moments.
func (g GMix) Moments() (Moments, error) {
	psum := g.Flux()
	if psum == 0 {
		return Moments{}, fmt.Errorf("gmix: moments undefined for zero-amplitude mixture")
	}
	var m Moments
	for i := range g {
		m.Row += g[i].P * g[i].Row
		m.Col += g[i].P * g[i].Col
	}
	m.Row /= psum
	m.Col /= psum
	for i := range g {
		dr := g[i].Row - m.Row
		dc := g[i].Col - m.Col
		m.Irr += g[i].P * (g[i].Irr + dr*dr)
		m.Irc += g[i].P * (g[i].Irc + dr*dc)
		m.Icc += g[i].P * (g[i].Icc + dc*dc)
	}
	m.Irr /= psum
	m.Irc /= psum
	m.Icc /= psum
	return m, nil
}

// Convolve returns the mixture convolved with psf. The result has
// len(g)*len(psf) components, ordered with the psf components innermost, and
// its derived terms are already computed.
func (g GMix) Convolve(psf GMix) (GMix, error) {
	out := make(GMix, len(g)*len(psf))
	if err := ConvolveInto(out, g, psf); err != nil {
		return nil, err
	}
	return out, nil
}

// ConvolveInto fills dst with obj convolved with psf, letting iterative
// callers reuse one allocation. dst must hold len(obj)*len(psf) components.
// The psf is applied about its own flux-weighted center so convolution does
// not move the object.
func ConvolveInto(dst, obj, psf GMix) error {
	if len(dst) != len(obj)*len(psf) {
		return fmt.Errorf("gmix: convolve needs %d components in dst, have %d",
			len(obj)*len(psf), len(dst))
	}
	psum := psf.Flux()
	if psum == 0 {
		return fmt.Errorf("gmix: psf has zero amplitude")
	}
	prow, pcol, err := psf.Cen()
	if err != nil {
		return err
	}
	k := 0
	for i := range obj {
		for j := range psf {
			dst[k] = Gauss{
				P:   obj[i].P * psf[j].P / psum,
				Row: obj[i].Row + psf[j].Row - prow,
				Col: obj[i].Col + psf[j].Col - pcol,
				Irr: obj[i].Irr + psf[j].Irr,
				Irc: obj[i].Irc + psf[j].Irc,
				Icc: obj[i].Icc + psf[j].Icc,
			}
			k++
		}
	}
	return dst.SetNorm()
}
