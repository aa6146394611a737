// Package guess builds initial Gaussian mixtures from object catalogs.
//
// Each catalog object seeds a small profile mixture at its position, sized
// by its measured T, with the whole guess perturbed so repeated runs do not
// start EM from identical points.
package guess

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/esheldon/emd/pkg/gmix"
)

// Object is one catalog entry. Row and Col are pixel coordinates relative
// to the jacobian center, T the object size irr+icc in sky units.
type Object struct {
	Row float64
	Col float64
	T   float64
}

// TFromMoments converts second moments measured in pixels to a T in sky
// units.
func TFromMoments(x2, y2, scale float64) float64 {
	return (x2 + y2) * scale * scale
}

// FromCatalog builds a perturbed multi-object mixture guess. Positions are
// scaled to sky units, each object receives an equal flux share, and every
// component's amplitude, center and covariance are jittered.
func FromCatalog(objects []Object, scale float64, model gmix.Model, rng *rand.Rand) (gmix.GMix, error) {
	if len(objects) == 0 {
		return nil, fmt.Errorf("guess: empty catalog")
	}
	if scale <= 0 {
		return nil, fmt.Errorf("guess: scale %g out of range", scale)
	}
	if rng == nil {
		return nil, fmt.Errorf("guess: nil rng")
	}
	if model.NGauss() == 0 {
		return nil, fmt.Errorf("guess: unknown model %v", model)
	}

	fluxShare := 1.0 / float64(len(objects))

	var out gmix.GMix
	for i, o := range objects {
		row := o.Row * scale
		col := o.Col * scale
		g1 := uniform(rng, -0.01, 0.01)
		g2 := uniform(rng, -0.01, 0.01)

		var pars []float64
		switch model {
		case gmix.ModelBDF:
			fracdev := uniform(rng, 0.45, 0.55)
			pars = []float64{row, col, g1, g2, o.T, fracdev, fluxShare}
		case gmix.ModelBD:
			fracdev := uniform(rng, 0.45, 0.55)
			logTratio := uniform(rng, -0.01, 0.01)
			tBulge, tDisk := bulgeDiskT(o.T, fracdev, math.Pow(10, logTratio))
			pars = []float64{row, col, g1, g2, tDisk,
				math.Log10(tBulge / tDisk), fracdev, fluxShare}
		default:
			pars = []float64{row, col, g1, g2, o.T, fluxShare}
		}

		mix, err := gmix.NewGMixModel(pars, model)
		if err != nil {
			return nil, fmt.Errorf("guess: object %d: %w", i, err)
		}

		perturb(mix, scale, rng)
		out = append(out, mix...)
	}

	if err := out.SetNorm(); err != nil {
		return nil, err
	}
	return out, nil
}

// bulgeDiskT splits a flux-weighted T into bulge and disk sizes given
// their ratio tDisk/tBulge.
func bulgeDiskT(t, fracdev, ratio float64) (tBulge, tDisk float64) {
	tBulge = t / (fracdev + (1-fracdev)*ratio)
	tDisk = tBulge * ratio
	return
}

func perturb(mix gmix.GMix, scale float64, rng *rand.Rand) {
	for i := range mix {
		g := &mix[i]
		g.P *= 1 + uniform(rng, -0.05, 0.05)
		g.Row += uniform(rng, -0.01*scale, 0.01*scale)
		g.Col += uniform(rng, -0.01*scale, 0.01*scale)
		g.Irr *= 1 + uniform(rng, -0.05, 0.05)
		g.Irc *= 1 + uniform(rng, -0.05, 0.05)
		g.Icc *= 1 + uniform(rng, -0.05, 0.05)
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: rng}.Rand()
}
