// Package sim generates simulated multi-band blends: bulge plus disk
// objects scattered around the image center, sheared by a realistic shape
// prior, convolved with a Moffat or gaussian PSF and observed with flat
// gaussian noise. The truth catalog comes back alongside the observations
// so callers can build initial guesses the way a detection step would.
package sim

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/guess"
	"github.com/esheldon/emd/pkg/obs"
)

// psfNoise is the flat noise level added to the PSF image.
const psfNoise = 1.0e-4

// Sim draws random blends from a fixed configuration. The PSF image and
// its noise are realized once at construction; every generated band
// carries an independent deep copy.
type Sim struct {
	cfg    Config
	rng    *rand.Rand
	gp     *gPrior
	psfMix gmix.GMix
	psfObs *obs.Observation
}

// New validates cfg, solves the PSF mixture and realizes the PSF image.
func New(cfg Config, rng *rand.Rand) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("sim: nil rng")
	}

	psfMix, err := psfMixture(cfg.PSF)
	if err != nil {
		return nil, err
	}

	s := &Sim{
		cfg:    cfg,
		rng:    rng,
		gp:     newGPrior(cfg.Objects.GSigma),
		psfMix: psfMix,
	}
	if err := s.buildPSFObs(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the configuration the sim was built with.
func (s *Sim) Config() Config { return s.cfg }

// PSFMixture returns a copy of the PSF model mixture.
func (s *Sim) PSFMixture() gmix.GMix { return s.psfMix.Copy() }

// Gen draws one blend. The returned truth catalog holds each object's
// pixel position and flux-weighted size, in input order.
func (s *Sim) Gen() (obs.MultiBandObsList, []guess.Object, error) {
	cfg := s.cfg
	nband := cfg.NBand()
	dim := cfg.Image.Dim
	scale := cfg.Image.PixelScale
	cen := float64(dim-1) / 2

	jac, err := obs.NewDiagonalJacobian(scale, 0, 0)
	if err != nil {
		return nil, nil, err
	}

	bandMix := make([]gmix.GMix, nband)
	truth := make([]guess.Object, 0, cfg.Objects.NObj)
	for i := 0; i < cfg.Objects.NObj; i++ {
		mixes, tr, err := s.drawObject(cen)
		if err != nil {
			return nil, nil, err
		}
		for b := 0; b < nband; b++ {
			bandMix[b] = append(bandMix[b], mixes[b]...)
		}
		truth = append(truth, tr)
	}

	noise := distuv.Normal{Mu: 0, Sigma: cfg.Image.Noise, Src: s.rng}
	mbobs := make(obs.MultiBandObsList, 0, nband)
	for b := 0; b < nband; b++ {
		conv, err := bandMix[b].Convolve(s.psfMix)
		if err != nil {
			return nil, nil, err
		}

		image := obs.NewImage(dim, dim)
		weight := obs.NewImage(dim, dim)
		weight.Fill(1 / (cfg.Image.Noise * cfg.Image.Noise))
		o, err := obs.NewObservation(image, weight, jac)
		if err != nil {
			return nil, nil, err
		}

		coords := o.Coords()
		o.UpdateImage(func(im *obs.Image) {
			conv.Render(coords, im.Data())
			d := im.Data()
			for i := range d {
				d[i] += noise.Rand()
			}
		})
		o.SetPSF(s.psfObs.Copy())
		mbobs = append(mbobs, obs.ObsList{o})
	}
	return mbobs, truth, nil
}

// drawObject samples one bulge+disk object and expands it into per-band
// pre-PSF mixtures.
func (s *Sim) drawObject(cen float64) ([]gmix.GMix, guess.Object, error) {
	o := s.cfg.Objects
	scale := s.cfg.Image.PixelScale

	radius := s.cfg.Positions.Width / 2 * scale
	shiftRow := s.uniform(-radius, radius)
	shiftCol := s.uniform(-radius, radius)

	fracdev := s.uniform(o.FracdevRange[0], o.FracdevRange[1])
	diskHLR := s.uniform(o.HLRRange[0], o.HLRRange[1])
	sizeFrac := s.uniform(o.BulgeSizeFracRange[0], o.BulgeSizeFracRange[1])
	bulgeHLR := diskHLR * sizeFrac

	var flux float64
	if o.TrackHLRFlux {
		flux = diskHLR * diskHLR * 100
	} else {
		flux = s.uniform(o.FluxRange[0], o.FluxRange[1])
	}

	g1, g2 := s.gp.Sample2D(s.rng)
	angle := s.uniform(o.BulgeAngleRange[0], o.BulgeAngleRange[1]) * math.Pi / 180
	g1b, g2b := rotateShape(g1, g2, angle)

	row := cen*scale + shiftRow
	col := cen*scale + shiftCol
	tDisk := hlrToT(diskHLR)
	tBulge := hlrToT(bulgeHLR)

	mixes := make([]gmix.GMix, s.cfg.NBand())
	for b := range mixes {
		diskFlux := (1 - fracdev) * flux * o.DiskColor[b]
		disk, err := gmix.NewGMixModel(
			[]float64{row, col, g1, g2, tDisk, diskFlux}, gmix.ModelExp)
		if err != nil {
			return nil, guess.Object{}, err
		}
		bulgeFlux := fracdev * flux * o.BulgeColor[b]
		bulge, err := gmix.NewGMixModel(
			[]float64{row, col, g1b, g2b, tBulge, bulgeFlux}, gmix.ModelDev)
		if err != nil {
			return nil, guess.Object{}, err
		}
		mixes[b] = append(disk, bulge...)
	}

	tr := guess.Object{
		Row: cen + shiftRow/scale,
		Col: cen + shiftCol/scale,
		T:   fracdev*tBulge + (1-fracdev)*tDisk,
	}
	return mixes, tr, nil
}

// buildPSFObs renders the PSF mixture once, with its own tiny noise, and
// attaches the mixture so downstream fits can deconvolve.
func (s *Sim) buildPSFObs() error {
	scale := s.cfg.Image.PixelScale
	dim := psfDim(s.cfg.PSF.FWHM, scale)
	cen := float64(dim-1) / 2
	jac, err := obs.NewDiagonalJacobian(scale, cen, cen)
	if err != nil {
		return err
	}

	image := obs.NewImage(dim, dim)
	weight := obs.NewImage(dim, dim)
	weight.Fill(1 / (psfNoise * psfNoise))
	po, err := obs.NewObservation(image, weight, jac)
	if err != nil {
		return err
	}

	coords := po.Coords()
	noise := distuv.Normal{Mu: 0, Sigma: psfNoise, Src: s.rng}
	po.UpdateImage(func(im *obs.Image) {
		s.psfMix.Render(coords, im.Data())
		d := im.Data()
		for i := range d {
			d[i] += noise.Rand()
		}
	})
	po.SetMixture(s.psfMix)

	s.psfObs = po
	return nil
}

// psfDim sizes the PSF stamp to four FWHM on each side of the center.
func psfDim(fwhm, scale float64) int {
	half := int(math.Ceil(4 * fwhm / scale))
	return 2*half + 1
}

func (s *Sim) uniform(lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: s.rng}.Rand()
}
