package sim

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// gPrior samples shapes from the Bernstein & Armstrong distribution: flat
// in orientation, magnitude density g(1-g^2)^2 exp(-g^2/2sigma^2).
type gPrior struct {
	sigma float64
	pmax  float64
}

func newGPrior(sigma float64) *gPrior {
	p := &gPrior{sigma: sigma}
	for i := 0; i < 1000; i++ {
		if v := p.prob(float64(i) / 1000); v > p.pmax {
			p.pmax = v
		}
	}
	p.pmax *= 1.1
	return p
}

func (p *gPrior) prob(g float64) float64 {
	if g < 0 || g >= 1 {
		return 0
	}
	om := 1 - g*g
	return g * om * om * math.Exp(-0.5*g*g/(p.sigma*p.sigma))
}

// Sample2D draws one shape by rejection on the magnitude and a uniform
// position angle.
func (p *gPrior) Sample2D(rng *rand.Rand) (g1, g2 float64) {
	u := distuv.Uniform{Min: 0, Max: 1, Src: rng}
	h := distuv.Uniform{Min: 0, Max: p.pmax, Src: rng}
	for {
		g := u.Rand()
		if h.Rand() < p.prob(g) {
			theta := 2 * math.Pi * u.Rand()
			return g * math.Cos(theta), g * math.Sin(theta)
		}
	}
}

// rotateShape rotates a two-component shape by theta radians.
func rotateShape(g1, g2, theta float64) (float64, float64) {
	c, s := math.Cos(2*theta), math.Sin(2*theta)
	return g1*c - g2*s, g1*s + g2*c
}

// hlrToT converts an exponential half-light radius to the second-moment
// size T = <x^2> + <y^2>.
func hlrToT(hlr float64) float64 {
	// half-light radius per scale radius of an exponential profile
	const hlrFac = 1.6783469900166605
	return 6 * hlr * hlr / (hlrFac * hlrFac)
}
