package gmix

// Pixel is one image pixel prepared for fitting or rendering: the sky
// coordinates of the pixel center, the pixel area in sky units, the measured
// value, and the inverse noise standard deviation.
type Pixel struct {
	V    float64
	U    float64
	Area float64
	Val  float64
	Ierr float64
}

// Eval returns the mixture density at sky position (v, u). Valid only after
// SetNorm.
func (g GMix) Eval(v, u float64) float64 {
	var sum float64
	for i := range g {
		sum += g[i].Eval(v, u)
	}
	return sum
}

// Render evaluates the mixture density at every pixel center, overwriting
// dst. Pixel values are density samples, so a rendered image sums to
// approximately Flux divided by the pixel area. Panics if the lengths
// differ. Valid only after SetNorm.
func (g GMix) Render(pixels []Pixel, dst []float64) {
	if len(dst) != len(pixels) {
		panic("gmix: render destination length mismatch")
	}
	for i := range pixels {
		dst[i] = g.Eval(pixels[i].V, pixels[i].U)
	}
}
