package shred

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/esheldon/emd/pkg/obs"
)

// blob builds a round Gaussian profile, unnormalized.
func blob(rows, cols int, cenRow, cenCol, sigma float64) *obs.Image {
	im := obs.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dr, dc := float64(r)-cenRow, float64(c)-cenCol
			im.Set(r, c, math.Exp(-0.5*(dr*dr+dc*dc)/(sigma*sigma)))
		}
	}
	return im
}

func scaleTo(im *obs.Image, total float64) {
	floats.Scale(total/im.Sum(), im.Data())
}

func TestEstimateFluxUnitData(t *testing.T) {
	data := blob(7, 7, 3, 3, 1.2)
	scaleTo(data, 1.0)
	weight := obs.NewImage(7, 7)
	weight.Fill(4.0)

	flux, fluxErr := EstimateFlux(data, weight, data.Copy())
	require.InDelta(t, 1.0, flux, 1e-12)
	require.GreaterOrEqual(t, fluxErr, 0.0)
	require.Less(t, fluxErr, 1e-9)
}

func TestEstimateFluxDataTotal(t *testing.T) {
	template := blob(9, 9, 4.2, 3.8, 1.5)
	scaleTo(template, 1.0)
	data := template.Copy()
	floats.Scale(7.5, data.Data())
	weight := obs.NewImage(9, 9)
	weight.Fill(2.0)
	weight.Set(0, 0, 0.5)

	flux, _ := EstimateFlux(data, weight, template)
	require.InDelta(t, 7.5, flux, 1e-9)
}

func TestEstimateFluxIgnoresMaskedPixels(t *testing.T) {
	template := blob(7, 7, 3, 3, 1.0)
	data := template.Copy()
	floats.Scale(2.0, data.Data())
	weight := obs.NewImage(7, 7)
	weight.Fill(1.0)

	weight.Set(6, 6, 0)
	data.Set(6, 6, 999.0)

	flux, _ := EstimateFlux(data, weight, template)
	require.InDelta(t, 2.0*template.Sum(), flux, 1e-9)
}

func TestEstimateFluxDegenerate(t *testing.T) {
	data := blob(5, 5, 2, 2, 1.0)
	weight := obs.NewImage(5, 5)
	weight.Fill(1.0)

	flux, fluxErr := EstimateFlux(data, weight, obs.NewImage(5, 5))
	require.Equal(t, BadFlux, flux)
	require.Equal(t, BadFluxErr, fluxErr)

	// all-masked weights are just as degenerate
	flux, fluxErr = EstimateFlux(data, obs.NewImage(5, 5), data.Copy())
	require.Equal(t, BadFlux, flux)
	require.Equal(t, BadFluxErr, fluxErr)
}

func TestEstimateFluxShapeMismatch(t *testing.T) {
	require.Panics(t, func() {
		EstimateFlux(obs.NewImage(5, 5), obs.NewImage(5, 5), obs.NewImage(4, 5))
	})
	require.Panics(t, func() {
		EstimateFlux(obs.NewImage(5, 5), obs.NewImage(5, 4), obs.NewImage(5, 5))
	})
}
