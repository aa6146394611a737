package obs

import (
	"fmt"
	"math"

	"github.com/esheldon/emd/pkg/gmix"
)

// Observation couples a pixel image with its inverse variance weight map and
// the jacobian mapping pixels to sky coordinates. An observation may carry a
// PSF sub-observation and, once one has been fit, the Gaussian mixture
// describing it.
//
// Images are read-only by convention: all mutation goes through UpdateImage
// so writes are explicit and bounded.
type Observation struct {
	image  *Image
	weight *Image
	jac    Jacobian
	psf    *Observation
	mix    gmix.GMix
}

// NewObservation builds an observation. A nil weight map is replaced with
// unit weights. Fails when the weight shape does not match the image.
func NewObservation(image, weight *Image, jac Jacobian) (*Observation, error) {
	if image == nil {
		return nil, fmt.Errorf("obs: nil image")
	}
	if weight == nil {
		weight = NewImage(image.Rows(), image.Cols())
		weight.Fill(1)
	} else if !image.SameShape(weight) {
		return nil, fmt.Errorf("obs: weight %dx%d does not match image %dx%d",
			weight.Rows(), weight.Cols(), image.Rows(), image.Cols())
	}
	return &Observation{image: image, weight: weight, jac: jac}, nil
}

// Image returns the pixel image. Treat it as read-only; use UpdateImage to
// mutate.
func (o *Observation) Image() *Image { return o.image }

// Weight returns the inverse variance map.
func (o *Observation) Weight() *Image { return o.weight }

// Jacobian returns the pixel-to-sky map.
func (o *Observation) Jacobian() Jacobian { return o.jac }

// PSF returns the point-spread-function sub-observation, or nil.
func (o *Observation) PSF() *Observation { return o.psf }

// SetPSF attaches a point-spread-function sub-observation.
func (o *Observation) SetPSF(psf *Observation) { o.psf = psf }

// Mixture returns a copy of the fitted mixture describing this observation,
// or nil when none has been set.
func (o *Observation) Mixture() gmix.GMix {
	if o.mix == nil {
		return nil
	}
	return o.mix.Copy()
}

// SetMixture stores a copy of the fitted mixture.
func (o *Observation) SetMixture(mix gmix.GMix) {
	o.mix = mix.Copy()
}

// UpdateImage runs fn against the live image. This is the only sanctioned
// mutation path for observation pixels.
func (o *Observation) UpdateImage(fn func(im *Image)) {
	fn(o.image)
}

// Copy returns a deep copy, including any PSF sub-observation and fitted
// mixture.
func (o *Observation) Copy() *Observation {
	out := &Observation{
		image:  o.image.Copy(),
		weight: o.weight.Copy(),
		jac:    o.jac,
	}
	if o.psf != nil {
		out.psf = o.psf.Copy()
	}
	if o.mix != nil {
		out.mix = o.mix.Copy()
	}
	return out
}

// Pixels flattens the observation into fitting pixels, skipping pixels with
// non-positive weight.
func (o *Observation) Pixels() []gmix.Pixel {
	area := o.jac.PixelArea()
	px := make([]gmix.Pixel, 0, o.image.Rows()*o.image.Cols())
	for row := 0; row < o.image.Rows(); row++ {
		for col := 0; col < o.image.Cols(); col++ {
			w := o.weight.Get(row, col)
			if w <= 0 {
				continue
			}
			v, u := o.jac.SkyCoords(float64(row), float64(col))
			px = append(px, gmix.Pixel{
				V:    v,
				U:    u,
				Area: area,
				Val:  o.image.Get(row, col),
				Ierr: math.Sqrt(w),
			})
		}
	}
	return px
}

// Coords returns pixel centers for the full grid regardless of weight, in
// row-major order, for rendering models over the observation's geometry.
func (o *Observation) Coords() []gmix.Pixel {
	area := o.jac.PixelArea()
	px := make([]gmix.Pixel, 0, o.image.Rows()*o.image.Cols())
	for row := 0; row < o.image.Rows(); row++ {
		for col := 0; col < o.image.Cols(); col++ {
			v, u := o.jac.SkyCoords(float64(row), float64(col))
			px = append(px, gmix.Pixel{V: v, U: u, Area: area})
		}
	}
	return px
}

// ObsList is the ordered set of observations of one band. Deblending uses
// only the first entry.
type ObsList []*Observation

// Copy returns a deep copy.
func (l ObsList) Copy() ObsList {
	out := make(ObsList, len(l))
	for i, o := range l {
		out[i] = o.Copy()
	}
	return out
}

// MultiBandObsList is an ordered set of bands. Band order is meaningful and
// fixed for the lifetime of a deblend run.
type MultiBandObsList []ObsList

// Copy returns a deep copy.
func (m MultiBandObsList) Copy() MultiBandObsList {
	out := make(MultiBandObsList, len(m))
	for i, l := range m {
		out[i] = l.Copy()
	}
	return out
}

// NBand returns the number of bands.
func (m MultiBandObsList) NBand() int { return len(m) }
