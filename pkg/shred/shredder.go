// Package shred deblends overlapping astronomical sources imaged in
// multiple bands.
//
// A Shredder fits a shared Gaussian mixture against a noise-weighted coadd
// with component centers held fixed, then refits only the amplitudes
// against each band and calibrates per-band totals with a template flux
// fit. A ModelSubtractor consumes the result to isolate any single object:
// neighbor-subtracted images, scoped restoration of one object's light, and
// centered postage stamps.
package shred

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/esheldon/emd/pkg/coadd"
	"github.com/esheldon/emd/pkg/em"
	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/obs"
)

// Config controls a Shredder.
type Config struct {
	// MinIter, MaxIter and Tol bound both the coadd and band EM fits.
	MinIter int
	MaxIter int
	Tol     float64

	// Logger receives stage diagnostics. Leave nil to disable logging.
	Logger *zerolog.Logger
}

// DefaultConfig returns the standard convergence controls with logging
// disabled.
func DefaultConfig() Config {
	return Config{MinIter: 10, MaxIter: 1000, Tol: 1.0e-3}
}

// Shredder drives the two-stage deblend: coadd shape fit, then per-band
// flux refinement. It reads the input observations and never mutates them.
type Shredder struct {
	mbobs    obs.MultiBandObsList
	coaddObs *obs.Observation
	cfg      Config
	rng      *rand.Rand
	log      zerolog.Logger
	res      *Result
}

// New builds a Shredder over mbobs and constructs the coadd observation.
// Each band needs at least one observation whose PSF carries a fitted
// mixture. The rng drives the per-band amplitude perturbation.
func New(mbobs obs.MultiBandObsList, rng *rand.Rand, cfg Config) (*Shredder, error) {
	if mbobs.NBand() == 0 {
		return nil, fmt.Errorf("shred: empty observation set")
	}
	if rng == nil {
		return nil, fmt.Errorf("shred: nil rng")
	}
	if cfg.MinIter < 1 || cfg.MaxIter < 1 || cfg.Tol <= 0 {
		return nil, fmt.Errorf("shred: invalid convergence config miniter=%d maxiter=%d tol=%g",
			cfg.MinIter, cfg.MaxIter, cfg.Tol)
	}
	for b, olist := range mbobs {
		if len(olist) == 0 {
			return nil, fmt.Errorf("shred: band %d has no observations", b)
		}
		psf := olist[0].PSF()
		if psf == nil || len(psf.Mixture()) == 0 {
			return nil, fmt.Errorf("shred: band %d psf has no fitted mixture", b)
		}
	}

	coaddObs, err := coadd.MakeCoaddObs(mbobs)
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	return &Shredder{
		mbobs:    mbobs,
		coaddObs: coaddObs,
		cfg:      cfg,
		rng:      rng,
		log:      log,
	}, nil
}

// CoaddObs returns the coadd observation built at construction.
func (s *Shredder) CoaddObs() *obs.Observation { return s.coaddObs }

// MBObs returns the multi-band observation set being deblended.
func (s *Shredder) MBObs() obs.MultiBandObsList { return s.mbobs }

// Result returns the last deblend outcome, or ErrNoResult before any run.
func (s *Shredder) Result() (*Result, error) {
	if s.res == nil {
		return nil, ErrNoResult
	}
	return s.res, nil
}

// Deblend fits guess against the coadd and, unless the coadd fit failed
// hard, refines fluxes in every band. Fit failures land in the result
// flags; the returned error covers contract violations only.
func (s *Shredder) Deblend(guess gmix.GMix) (*Result, error) {
	if len(guess) == 0 {
		return nil, fmt.Errorf("shred: empty guess mixture")
	}

	res := &Result{}
	s.res = res

	cres, err := s.fitCoadd(guess)
	if err != nil {
		return nil, err
	}
	res.Coadd = *cres

	if cres.Flags.Hard() {
		s.log.Info().Stringer("flags", cres.Flags).Str("message", cres.Message).
			Msg("coadd fit failed, skipping band fits")
		res.Flags |= CoaddFailure
		return res, nil
	}

	res.Bands = make([]BandResult, 0, s.mbobs.NBand())
	for b, olist := range s.mbobs {
		bres := s.fitBand(olist[0], cres)
		if bres.Flags.Hard() {
			s.log.Warn().Int("band", b).Stringer("flags", bres.Flags).
				Str("message", bres.Message).Msg("band flux fit failed")
			res.Flags |= BandFailure
		} else {
			s.log.Debug().Int("band", b).Float64("flux", bres.TotalFlux).
				Int("numiter", bres.NumIter).Msg("band flux fit")
		}
		res.Bands = append(res.Bands, bres)
	}
	return res, nil
}

func (s *Shredder) emConfig() em.Config {
	return em.Config{MinIter: s.cfg.MinIter, MaxIter: s.cfg.MaxIter, Tol: s.cfg.Tol}
}

// fitCoadd runs the fixed-center fit of guess against the prepared coadd
// image.
func (s *Shredder) fitCoadd(guess gmix.GMix) (*CoaddResult, error) {
	shifted, sky := obs.PrepImage(s.coaddObs.Image())
	emObs, err := obs.NewObservation(shifted, s.coaddObs.Weight(), s.coaddObs.Jacobian())
	if err != nil {
		return nil, err
	}
	emObs.SetPSF(s.coaddObs.PSF())

	fitter, err := em.NewFixedCenterFitter(emObs, s.emConfig())
	if err != nil {
		return nil, err
	}
	if err := fitter.Run(guess, sky); err != nil {
		return nil, err
	}

	res, err := fitter.Result()
	if err != nil {
		return nil, err
	}
	mix, err := fitter.Mixture()
	if err != nil {
		return nil, err
	}
	conv, err := fitter.ConvolvedMixture()
	if err != nil {
		return nil, err
	}

	s.log.Debug().Int("numiter", res.NumIter).Float64("fdiff", res.FDiff).
		Stringer("flags", res.Flags).Msg("coadd fit")

	return &CoaddResult{Result: res, Mixture: mix, ConvolvedMixture: conv}, nil
}

// fitBand refits amplitudes against one band, seeded with the coadd's
// fitted sky, then calibrates the total flux against the rendered model.
func (s *Shredder) fitBand(o *obs.Observation, coaddRes *CoaddResult) BandResult {
	shifted, _ := obs.PrepImage(o.Image())
	emObs, err := obs.NewObservation(shifted, o.Weight(), o.Jacobian())
	if err != nil {
		return bandFailure(err)
	}
	emObs.SetPSF(o.PSF())

	fitter, err := em.NewFluxFitter(emObs, s.emConfig())
	if err != nil {
		return bandFailure(err)
	}
	if err := fitter.Run(s.bandGuess(coaddRes.Mixture), coaddRes.Sky); err != nil {
		return bandFailure(err)
	}

	res, err := fitter.Result()
	if err != nil {
		return bandFailure(err)
	}
	mix, err := fitter.Mixture()
	if err != nil {
		return bandFailure(err)
	}
	conv, err := fitter.ConvolvedMixture()
	if err != nil {
		return bandFailure(err)
	}

	out := BandResult{Result: res, Mixture: mix, ConvolvedMixture: conv}
	if res.Flags.Hard() {
		return out
	}

	model := obs.NewImage(o.Image().Rows(), o.Image().Cols())
	conv.Render(o.Coords(), model.Data())

	flux, fluxErr := EstimateFlux(o.Image(), o.Weight(), model)
	out.TotalFlux = flux
	out.TotalFluxErr = fluxErr

	// move the mixture into sky units and rebuild the convolved form so
	// both carry the calibrated flux
	scale := o.Jacobian().Scale()
	if err := out.Mixture.SetFlux(flux * scale * scale); err != nil {
		out.Flags |= em.FlagRangeError
		out.Message = err.Error()
		return out
	}
	calibrated, err := out.Mixture.Convolve(o.PSF().Mixture())
	if err != nil {
		out.Flags |= em.FlagRangeError
		out.Message = err.Error()
		return out
	}
	out.ConvolvedMixture = calibrated
	return out
}

// bandGuess builds a fresh flux guess from the coadd mixture, nudging each
// amplitude by up to one percent so every band starts from its own point.
func (s *Shredder) bandGuess(coaddMix gmix.GMix) gmix.GMix {
	out := coaddMix.Copy()
	for i := range out {
		u := distuv.Uniform{Min: -0.01, Max: 0.01, Src: s.rng}.Rand()
		out[i].P *= 1 + u
	}
	return out
}

func bandFailure(err error) BandResult {
	var out BandResult
	out.Flags = em.FlagRangeError
	out.Message = err.Error()
	return out
}
