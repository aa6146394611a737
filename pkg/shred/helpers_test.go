package shred

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/obs"
)

const (
	testDim   = 32
	testScale = 0.5
)

// testBlend is a hand-built scene: two well-separated objects of two
// Gaussian components each, imaged noiselessly in three bands through a
// single-Gaussian PSF. Object fluxes differ per band.
type testBlend struct {
	mbobs obs.MultiBandObsList
	truth []gmix.GMix // per band, pre-psf mixture, object order A then B
	// fluxes[band][object] in sky units
	fluxes [][]float64
	psf    gmix.GMix
}

func mustGauss(t *testing.T, p, row, col, irr, irc, icc float64) gmix.Gauss {
	t.Helper()
	g, err := gmix.NewGauss(p, row, col, irr, irc, icc)
	require.NoError(t, err)
	return g
}

// makeBlend renders the fixture. Object A sits at pixel (11.2, 11.2),
// object B at (20.1, 20.6); the main jacobian is centered at pixel (0, 0)
// so sky position is pixel position times the scale.
func makeBlend(t *testing.T) *testBlend {
	t.Helper()

	tb := &testBlend{
		fluxes: [][]float64{
			{60.0, 80.0},
			{100.0, 80.0},
			{140.0, 80.0},
		},
	}
	tb.psf = gmix.GMix{mustGauss(t, 1.0, 0, 0, 0.25, 0, 0.25)}

	jac, err := obs.NewDiagonalJacobian(testScale, 0, 0)
	require.NoError(t, err)

	psfDim := 17
	psfCen := float64(psfDim-1) / 2
	psfJac, err := obs.NewDiagonalJacobian(testScale, psfCen, psfCen)
	require.NoError(t, err)

	for _, bandFlux := range tb.fluxes {
		fa, fb := bandFlux[0], bandFlux[1]
		mix := gmix.GMix{
			mustGauss(t, 0.6*fa, 5.6, 5.6, 0.3, 0, 0.3),
			mustGauss(t, 0.4*fa, 5.6, 5.6, 0.6, 0, 0.6),
			mustGauss(t, 0.65*fb, 10.05, 10.3, 0.35, 0, 0.35),
			mustGauss(t, 0.35*fb, 10.05, 10.3, 0.7, 0, 0.7),
		}
		tb.truth = append(tb.truth, mix)

		conv, err := mix.Convolve(tb.psf)
		require.NoError(t, err)

		image := obs.NewImage(testDim, testDim)
		weight := obs.NewImage(testDim, testDim)
		weight.Fill(25.0)
		o, err := obs.NewObservation(image, weight, jac)
		require.NoError(t, err)
		coords := o.Coords()
		o.UpdateImage(func(im *obs.Image) {
			conv.Render(coords, im.Data())
		})

		psfImage := obs.NewImage(psfDim, psfDim)
		psfWeight := obs.NewImage(psfDim, psfDim)
		psfWeight.Fill(1.0e8)
		psfObs, err := obs.NewObservation(psfImage, psfWeight, psfJac)
		require.NoError(t, err)
		pm := tb.psf.Copy()
		require.NoError(t, pm.SetNorm())
		pc := psfObs.Coords()
		psfObs.UpdateImage(func(im *obs.Image) {
			pm.Render(pc, im.Data())
		})
		psfObs.SetMixture(tb.psf)
		o.SetPSF(psfObs)

		tb.mbobs = append(tb.mbobs, obs.ObsList{o})
	}
	return tb
}

// blendGuess starts from the true centers with inflated sizes and flat
// amplitudes, the shape of guess a catalog would seed.
func (tb *testBlend) blendGuess(t *testing.T) gmix.GMix {
	t.Helper()
	out := tb.truth[0].Copy()
	for i := range out {
		out[i].P = 50.0
		out[i].Irr *= 1.15
		out[i].Icc *= 1.15
	}
	require.NoError(t, out.SetNorm())
	return out
}

// bandTotal is the band's input flux summed over objects, in sky units.
func (tb *testBlend) bandTotal(band int) float64 {
	var sum float64
	for _, f := range tb.fluxes[band] {
		sum += f
	}
	return sum
}
