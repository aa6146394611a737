package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/esheldon/emd/pkg/gmix"
)

// fwhmFac converts a gaussian FWHM to its sigma.
const fwhmFac = 2.3548200450309493

// sigmaFracs are the basis widths of the Moffat decomposition, in units of
// the gaussian core sigma. Log-spaced so the outer components can carry the
// power-law wings.
var sigmaFracs = []float64{0.5, 0.8, 1.3, 2.1, 3.4, 5.5}

// psfMixture builds the unit-flux mixture for the configured model.
func psfMixture(cfg PSFConfig) (gmix.GMix, error) {
	switch cfg.Model {
	case "gauss":
		sigma := cfg.FWHM / fwhmFac
		g, err := gmix.NewGauss(1.0, 0, 0, sigma*sigma, 0, sigma*sigma)
		if err != nil {
			return nil, err
		}
		return gmix.GMix{g}, nil
	case "moffat":
		return moffatMixture(cfg.FWHM, cfg.Beta)
	}
	return nil, fmt.Errorf("sim: unknown psf model %q", cfg.Model)
}

// moffatMixture approximates a Moffat profile of the given FWHM and beta
// as a sum of concentric round gaussians, found by least squares against
// radial samples of the profile. Basis components whose amplitudes come
// out negative are dropped and the system re-solved, then the remainder is
// normalized to unit flux.
func moffatMixture(fwhm, beta float64) (gmix.GMix, error) {
	rd := fwhm / (2 * math.Sqrt(math.Pow(2, 1/beta)-1))
	sigma0 := fwhm / fwhmFac

	const nsample = 240
	rmax := 5 * fwhm
	radii := make([]float64, nsample)
	profile := make([]float64, nsample)
	norm := (beta - 1) / (math.Pi * rd * rd)
	for i := range radii {
		r := rmax * (float64(i) + 0.5) / nsample
		radii[i] = r
		x := r / rd
		profile[i] = norm * math.Pow(1+x*x, -beta)
	}

	sigmas := make([]float64, len(sigmaFracs))
	for i, f := range sigmaFracs {
		sigmas[i] = f * sigma0
	}

	active := make([]int, len(sigmas))
	for i := range active {
		active[i] = i
	}

	b := mat.NewVecDense(nsample, profile)
	var coeffs []float64
	for len(active) > 0 {
		a := mat.NewDense(nsample, len(active), nil)
		for i, r := range radii {
			for j, k := range active {
				s2 := sigmas[k] * sigmas[k]
				a.Set(i, j, math.Exp(-0.5*r*r/s2)/(2*math.Pi*s2))
			}
		}

		var x mat.VecDense
		if err := x.SolveVec(a, b); err != nil {
			return nil, fmt.Errorf("sim: moffat solve: %w", err)
		}

		worst, worstVal := -1, 0.0
		coeffs = coeffs[:0]
		for j := 0; j < x.Len(); j++ {
			v := x.AtVec(j)
			coeffs = append(coeffs, v)
			if v < worstVal {
				worst, worstVal = j, v
			}
		}
		if worst < 0 {
			break
		}
		active = append(active[:worst], active[worst+1:]...)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("sim: moffat fwhm=%g beta=%g has no positive decomposition", fwhm, beta)
	}

	var psum float64
	for _, p := range coeffs {
		psum += p
	}
	out := make(gmix.GMix, len(active))
	for j, k := range active {
		s2 := sigmas[k] * sigmas[k]
		g, err := gmix.NewGauss(coeffs[j]/psum, 0, 0, s2, 0, s2)
		if err != nil {
			return nil, err
		}
		out[j] = g
	}
	return out, nil
}
