// Package coadd combines a multi-band observation set into one
// representative observation for shape fitting.
//
// Bands are stacked with weights proportional to each band's best inverse
// variance, so noisy bands contribute less. The PSF images are stacked with
// the same weights and refit, leaving the coadd self-contained: its PSF
// sub-observation carries a fitted mixture.
package coadd

import (
	"fmt"

	"github.com/esheldon/emd/pkg/em"
	"github.com/esheldon/emd/pkg/obs"
)

// psfNGauss is the mixture size used to fit the stacked PSF.
const psfNGauss = 3

// MakeCoaddObs stacks all bands of mbobs into a single observation sharing
// band 0's pixel geometry. Only the first observation of each band
// participates. The output is deterministic for identical inputs.
func MakeCoaddObs(mbobs obs.MultiBandObsList) (*obs.Observation, error) {
	nband := mbobs.NBand()
	if nband == 0 {
		return nil, fmt.Errorf("coadd: empty observation set")
	}

	bandObs := make([]*obs.Observation, nband)
	weights := make([]float64, nband)
	var wsum float64
	for b, olist := range mbobs {
		if len(olist) == 0 {
			return nil, fmt.Errorf("coadd: band %d has no observations", b)
		}
		o := olist[0]
		if o.PSF() == nil {
			return nil, fmt.Errorf("coadd: band %d observation has no psf", b)
		}
		w := o.Weight().Max()
		if w <= 0 {
			return nil, fmt.Errorf("coadd: band %d has no positive weight", b)
		}
		bandObs[b] = o
		weights[b] = w
		wsum += w
	}

	base := bandObs[0]
	basePSF := base.PSF()

	image := obs.NewImage(base.Image().Rows(), base.Image().Cols())
	psfImage := obs.NewImage(basePSF.Image().Rows(), basePSF.Image().Cols())

	var varSum float64
	for b, o := range bandObs {
		if !o.Image().SameShape(base.Image()) {
			return nil, fmt.Errorf("coadd: band %d image shape differs from band 0", b)
		}
		if !o.PSF().Image().SameShape(basePSF.Image()) {
			return nil, fmt.Errorf("coadd: band %d psf shape differs from band 0", b)
		}
		nw := weights[b] / wsum
		image.AddScaled(o.Image(), nw)
		psfImage.AddScaled(o.PSF().Image(), nw)
		varSum += nw * nw / weights[b]
	}

	weight := obs.NewImage(image.Rows(), image.Cols())
	weight.Fill(1 / varSum)

	psfObs, err := obs.NewObservation(psfImage, basePSF.Weight().Copy(), basePSF.Jacobian())
	if err != nil {
		return nil, err
	}
	psfMix, err := em.FitPSF(psfObs, psfNGauss, em.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("coadd: psf fit: %w", err)
	}
	psfObs.SetMixture(psfMix)

	out, err := obs.NewObservation(image, weight, base.Jacobian())
	if err != nil {
		return nil, err
	}
	out.SetPSF(psfObs)
	return out, nil
}
