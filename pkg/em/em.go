// Package em fits elliptical Gaussian mixtures to images by
// expectation-maximization.
//
// Three fitters share one iteration engine and differ in what the M-step
// updates: NewFitter moves centers, covariances and amplitudes; the fitter
// from NewFixedCenterFitter pins the centers; NewFluxFitter updates
// amplitudes only. When the observation carries a PSF with a fitted mixture,
// the engine evaluates the PSF-convolved mixture against the pixels and
// reports deconvolved parameters.
//
// Pixel values must be strictly positive. Shift images with obs.PrepImage
// first and pass the returned offset as the sky seed; the sky density shares
// the E-step denominator with the mixture, so the shift does not bias the
// fitted flux.
package em

import (
	"fmt"
	"math"

	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/obs"
)

// Config bounds the EM iteration.
type Config struct {
	// MinIter is the number of iterations run before convergence is tested.
	MinIter int
	// MaxIter stops the fit with the soft maxiter flag when reached.
	MaxIter int
	// Tol is the relative log-likelihood change below which the fit has
	// converged.
	Tol float64
}

// DefaultConfig returns the standard convergence controls.
func DefaultConfig() Config {
	return Config{MinIter: 10, MaxIter: 1000, Tol: 1.0e-3}
}

type updateMode int

const (
	modeFull updateMode = iota
	modeFixedCenter
	modeFluxOnly
)

// Fitter runs expectation-maximization against one observation. Construct
// with NewFitter, NewFixedCenterFitter or NewFluxFitter, call Run, then read
// Result, Mixture and ConvolvedMixture.
type Fitter struct {
	cfg  Config
	mode updateMode

	pixels []gmix.Pixel
	psf    gmix.GMix
	psfMom gmix.Moments
	nper   int // convolved components per mixture component

	mix  gmix.GMix
	conv gmix.GMix
	res  *Result
}

// NewFitter returns a fitter that updates centers, covariances and
// amplitudes.
func NewFitter(o *obs.Observation, cfg Config) (*Fitter, error) {
	return newFitter(o, cfg, modeFull)
}

// NewFixedCenterFitter returns a fitter that holds every component center at
// its guess position, updating covariances and amplitudes.
func NewFixedCenterFitter(o *obs.Observation, cfg Config) (*Fitter, error) {
	return newFitter(o, cfg, modeFixedCenter)
}

// NewFluxFitter returns a fitter that updates only amplitudes, holding
// centers and covariances at their guess values.
func NewFluxFitter(o *obs.Observation, cfg Config) (*Fitter, error) {
	return newFitter(o, cfg, modeFluxOnly)
}

func newFitter(o *obs.Observation, cfg Config, mode updateMode) (*Fitter, error) {
	if o == nil {
		return nil, fmt.Errorf("em: nil observation")
	}
	if cfg.MinIter < 1 || cfg.MaxIter < 1 || cfg.Tol <= 0 {
		return nil, fmt.Errorf("em: invalid config %+v", cfg)
	}

	f := &Fitter{
		cfg:    cfg,
		mode:   mode,
		pixels: o.Pixels(),
		nper:   1,
	}
	if psf := o.PSF(); psf != nil {
		mix := psf.Mixture()
		if len(mix) == 0 {
			return nil, fmt.Errorf("em: observation psf has no fitted mixture")
		}
		mom, err := mix.Moments()
		if err != nil {
			return nil, fmt.Errorf("em: psf mixture: %w", err)
		}
		f.psf = mix
		f.psfMom = mom
		f.nper = len(mix)
	}
	return f, nil
}

// Run executes EM from guess to convergence or budget exhaustion. The sky
// seed is the additive offset applied to the image, as a per-pixel density.
// Data-dependent failures are reported through the result flags; the
// returned error covers contract violations only.
func (f *Fitter) Run(guess gmix.GMix, sky float64) error {
	if len(guess) == 0 {
		return fmt.Errorf("em: empty guess mixture")
	}

	f.res = &Result{Sky: sky}
	f.mix = guess.Copy()
	f.conv = f.mix

	if len(f.pixels) == 0 {
		f.fail(FlagZeroWeight, "no pixels with positive weight")
		return nil
	}
	if err := f.mix.SetNorm(); err != nil {
		f.fail(FlagRangeError, err.Error())
		return nil
	}
	if f.psf != nil {
		conv := gmix.NewGMix(len(f.mix) * f.nper)
		if err := gmix.ConvolveInto(conv, f.mix, f.psf); err != nil {
			f.fail(FlagRangeError, err.Error())
			return nil
		}
		f.conv = conv
	}

	f.iterate(sky)
	return nil
}

// Result returns the diagnostics of the last run.
func (f *Fitter) Result() (Result, error) {
	if f.res == nil {
		return Result{}, ErrNotRun
	}
	return *f.res, nil
}

// Mixture returns a copy of the fitted pre-PSF mixture.
func (f *Fitter) Mixture() (gmix.GMix, error) {
	if f.res == nil {
		return nil, ErrNotRun
	}
	return f.mix.Copy(), nil
}

// ConvolvedMixture returns a copy of the fitted mixture convolved with the
// observation's PSF, or the plain mixture when there is no PSF.
func (f *Fitter) ConvolvedMixture() (gmix.GMix, error) {
	if f.res == nil {
		return nil, ErrNotRun
	}
	return f.conv.Copy(), nil
}

func (f *Fitter) fail(flag Flags, msg string) {
	f.res.Flags |= flag
	f.res.Message = msg
}

// emSums carries per-component accumulators across one iteration. The t*
// fields are per-pixel scratch, weighted by the component's density but not
// yet by the pixel value; the rest accumulate over pixels.
type emSums struct {
	gi   float64
	tRow float64
	tCol float64
	tV2  float64
	tUV  float64
	tU2  float64

	pnew   float64
	rowSum float64
	colSum float64
	v2Sum  float64
	uvSum  float64
	u2Sum  float64
}

func (f *Fitter) iterate(sky float64) {
	res := f.res
	sums := make([]emSums, len(f.mix))
	area := f.pixels[0].Area
	npix := float64(len(f.pixels))

	elogLLast := -9999.9e9

	for i := 0; i < f.cfg.MaxIter; i++ {
		res.NumIter = i + 1

		for k := range sums {
			sums[k] = emSums{}
		}
		elogL := 0.0
		skySum := 0.0

		for _, px := range f.pixels {
			gtot := sky
			for k := range f.mix {
				s := &sums[k]
				s.gi, s.tRow, s.tCol = 0, 0, 0
				s.tV2, s.tUV, s.tU2 = 0, 0, 0

				base := k * f.nper
				for j := base; j < base+f.nper; j++ {
					g := &f.conv[j]
					val := g.Eval(px.V, px.U)
					if val == 0 {
						continue
					}
					s.gi += val
					switch f.mode {
					case modeFull:
						s.tRow += px.V * val
						s.tCol += px.U * val
						s.tV2 += px.V * px.V * val
						s.tUV += px.V * px.U * val
						s.tU2 += px.U * px.U * val
					case modeFixedCenter:
						vd := px.V - g.Row
						ud := px.U - g.Col
						s.tV2 += vd * vd * val
						s.tUV += vd * ud * val
						s.tU2 += ud * ud * val
					}
				}
				gtot += s.gi
			}

			if gtot <= 0 {
				f.fail(FlagRangeError, "zero model density under a pixel")
				return
			}
			elogL += math.Log(gtot)
			skySum += sky * px.Val / gtot

			fac := px.Val / gtot
			for k := range sums {
				s := &sums[k]
				s.pnew += s.gi * fac
				if f.mode == modeFluxOnly {
					continue
				}
				s.rowSum += s.tRow * fac
				s.colSum += s.tCol * fac
				s.v2Sum += s.tV2 * fac
				s.uvSum += s.tUV * fac
				s.u2Sum += s.tU2 * fac
			}
		}

		if err := f.update(sums, area); err != nil {
			f.fail(FlagRangeError, err.Error())
			return
		}

		sky = skySum / npix
		res.Sky = sky

		if res.NumIter >= f.cfg.MinIter {
			if elogL == 0 {
				f.fail(FlagRangeError, "zero log likelihood")
				return
			}
			res.FDiff = math.Abs((elogL - elogLLast) / elogL)
			if res.FDiff < f.cfg.Tol {
				return
			}
		}
		elogLLast = elogL
	}

	res.Flags |= FlagMaxIter
}

// update applies the M-step for the fitter's mode and refreshes the
// convolved mixture.
func (f *Fitter) update(sums []emSums, area float64) error {
	for k := range f.mix {
		s := &sums[k]
		if s.pnew <= 0 {
			return fmt.Errorf("component %d collected non-positive weight %g", k, s.pnew)
		}
		g := &f.mix[k]
		g.P = s.pnew * area
		if f.mode == modeFluxOnly {
			continue
		}

		// fixed-center moments are already about the component centers, so
		// row and col stay zero there and the outer product drops out
		pinv := 1.0 / s.pnew
		var row, col float64
		if f.mode == modeFull {
			row = s.rowSum * pinv
			col = s.colSum * pinv
			g.Row = row
			g.Col = col
		}

		irr := s.v2Sum*pinv - row*row - f.psfMom.Irr
		irc := s.uvSum*pinv - row*col - f.psfMom.Irc
		icc := s.u2Sum*pinv - col*col - f.psfMom.Icc
		if irr < 0 || icc < 0 {
			irr, irc, icc = 0.0001, 0.0, 0.0001
		}
		g.Irr, g.Irc, g.Icc = irr, irc, icc
	}

	if err := f.mix.SetNorm(); err != nil {
		return err
	}
	if f.psf == nil {
		return nil
	}
	return gmix.ConvolveInto(f.conv, f.mix, f.psf)
}
