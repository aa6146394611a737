package shred

import (
	"github.com/esheldon/emd/pkg/em"
	"github.com/esheldon/emd/pkg/gmix"
)

// CoaddResult is the coadd stage outcome: EM diagnostics plus the fitted
// mixtures. The embedded Sky is the fitted per-pixel sky, shared with every
// band fit as its seed.
type CoaddResult struct {
	em.Result
	Mixture          gmix.GMix
	ConvolvedMixture gmix.GMix
}

// BandResult is one band's refinement outcome. On success the mixtures are
// calibrated to the template flux and TotalFlux/TotalFluxErr hold the
// estimate and its real uncertainty; on a hard failure they keep the last
// fit state and the totals stay zero.
type BandResult struct {
	em.Result
	Mixture          gmix.GMix
	ConvolvedMixture gmix.GMix
	TotalFlux        float64
	TotalFluxErr     float64
}

// Result aggregates one deblend run. Bands is empty when the coadd stage
// failed, and otherwise holds one entry per input band in band order.
type Result struct {
	Flags Flags
	Coadd CoaddResult
	Bands []BandResult
}
