package obs

// PrepImage returns a copy of the image shifted so all pixel values are
// strictly positive, along with the additive sky offset that was applied.
// Expectation-maximization requires positive pixel values; the offset is
// fed back to the fitter so the model flux is not biased by the shift.
func PrepImage(im *Image) (*Image, float64) {
	minval := im.Min()
	maxval := im.Max()
	sky := 0.001*(maxval-minval) - minval

	out := im.Copy()
	out.AddScalar(sky)
	return out, sky
}
