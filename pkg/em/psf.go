package em

import (
	"fmt"

	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/obs"
)

// FitPSF fits a PSF image with ngauss free components, using a deterministic
// guess built from the image moments. Stopping at the iteration budget is
// accepted; any hard flag becomes an error since an unfit PSF is unusable.
func FitPSF(psfObs *obs.Observation, ngauss int, cfg Config) (gmix.GMix, error) {
	if psfObs == nil {
		return nil, fmt.Errorf("em: nil psf observation")
	}
	if ngauss < 1 {
		return nil, fmt.Errorf("em: psf ngauss %d < 1", ngauss)
	}

	shifted, sky := obs.PrepImage(psfObs.Image())
	emObs, err := obs.NewObservation(shifted, psfObs.Weight(), psfObs.Jacobian())
	if err != nil {
		return nil, err
	}

	guess, err := psfGuess(emObs, ngauss)
	if err != nil {
		return nil, err
	}

	fitter, err := NewFitter(emObs, cfg)
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
	if res.Flags.Hard() {
		return nil, fmt.Errorf("em: psf fit failed: %s: %s", res.Flags, res.Message)
	}
	return fitter.Mixture()
}

// psfGuess builds round components at the weighted image centroid, with
// sizes spread around the measured T so EM can pull them apart.
func psfGuess(o *obs.Observation, ngauss int) (gmix.GMix, error) {
	px := o.Pixels()

	var sum, rowSum, colSum float64
	for i := range px {
		sum += px[i].Val
		rowSum += px[i].Val * px[i].V
		colSum += px[i].Val * px[i].U
	}
	if sum <= 0 {
		return nil, fmt.Errorf("em: psf image has non-positive total %g", sum)
	}
	row := rowSum / sum
	col := colSum / sum

	var irr, icc float64
	for i := range px {
		vd := px[i].V - row
		ud := px[i].U - col
		irr += px[i].Val * vd * vd
		icc += px[i].Val * ud * ud
	}
	totalT := (irr + icc) / sum
	if totalT <= 0 {
		return nil, fmt.Errorf("em: degenerate psf moments T=%g", totalT)
	}
	flux := sum * px[0].Area

	guess := gmix.NewGMix(ngauss)
	for k := range guess {
		frac := 1.0
		if ngauss > 1 {
			frac = 0.5 + float64(k)/float64(ngauss-1)
		}
		sigma2 := totalT * frac / 2
		g, err := gmix.NewGauss(flux/float64(ngauss), row, col, sigma2, 0, sigma2)
		if err != nil {
			return nil, err
		}
		guess[k] = g
	}
	return guess, nil
}
