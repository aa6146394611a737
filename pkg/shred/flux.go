package shred

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/esheldon/emd/pkg/obs"
)

// Sentinel outputs reported when a template flux fit is degenerate.
const (
	BadFlux    = -9999.0e9
	BadFluxErr = 1.0e9
)

// EstimateFlux fits the scalar f minimizing the weighted residual between
// f times the template and the data. The template is first normalized to
// unit sum, so f comes out as the total flux of the data in template units.
//
// A degenerate template, all zero or carrying no weighted energy, reports
// the (BadFlux, BadFluxErr) sentinel pair rather than failing. When only
// the uncertainty is undefined the flux is still returned with BadFluxErr.
// Panics if the three images do not share one shape.
func EstimateFlux(data, weight, template *obs.Image) (flux, fluxErr float64) {
	if !data.SameShape(weight) || !data.SameShape(template) {
		panic("shred: flux estimate images must share one shape")
	}
	d := data.Data()
	w := weight.Data()
	tm := template.Data()

	norm := make([]float64, len(tm))
	if tsum := floats.Sum(tm); tsum != 0 {
		copy(norm, tm)
		floats.Scale(1/tsum, norm)
	}

	var sxy, sxx float64
	for i := range norm {
		sxy += w[i] * norm[i] * d[i]
		sxx += w[i] * norm[i] * norm[i]
	}
	if sxx == 0 {
		return BadFlux, BadFluxErr
	}
	flux = sxy / sxx

	var chi2 float64
	for i := range norm {
		r := flux*norm[i] - d[i]
		chi2 += w[i] * r * r
	}
	if arg := chi2 / sxx / float64(len(d)-1); arg >= 0 {
		return flux, math.Sqrt(arg)
	}
	return flux, BadFluxErr
}
