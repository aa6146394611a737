// Package vis renders pixel grids as greyscale PNG mosaics for visual
// inspection of deblending results.
package vis

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"

	"github.com/esheldon/emd/pkg/obs"
)

// Options configures mosaic rendering.
type Options struct {
	// Soft is the asinh stretch softening, in image units. Zero picks a
	// value from the data range.
	Soft float64

	// Upscale is the integer pixel magnification.
	Upscale int

	// Gap is the spacing between panels in output pixels.
	Gap int
}

// DefaultOptions returns rendering options suited to small stamps.
func DefaultOptions() Options {
	return Options{Upscale: 4, Gap: 2}
}

// Mosaic renders the panels side by side with a shared asinh stretch, so
// the same surface brightness maps to the same grey level in every panel.
func Mosaic(panels []*obs.Image, opts Options) (*image.RGBA, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("vis: no panels")
	}
	if opts.Upscale < 1 {
		return nil, fmt.Errorf("vis: upscale %d out of range", opts.Upscale)
	}
	rows, cols := panels[0].Rows(), panels[0].Cols()
	for i, p := range panels {
		if !p.SameShape(panels[0]) {
			return nil, fmt.Errorf("vis: panel %d is %dx%d, want %dx%d",
				i, p.Rows(), p.Cols(), rows, cols)
		}
	}

	lo, hi := panels[0].Min(), panels[0].Max()
	for _, p := range panels[1:] {
		lo = math.Min(lo, p.Min())
		hi = math.Max(hi, p.Max())
	}
	soft := opts.Soft
	if soft <= 0 {
		soft = (hi - lo) / 100
		if soft <= 0 {
			soft = 1
		}
	}
	top := math.Asinh((hi - lo) / soft)
	if top <= 0 {
		top = 1
	}

	outRows := rows * opts.Upscale
	outCols := len(panels)*cols*opts.Upscale + (len(panels)-1)*opts.Gap
	dst := image.NewRGBA(image.Rect(0, 0, outCols, outRows))

	// dark background so the panel gaps stand out
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.RGBA{30, 30, 30, 255}},
		image.Point{}, draw.Src)

	for i, p := range panels {
		panel := image.NewGray(image.Rect(0, 0, cols, rows))
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				v := math.Asinh((p.Get(r, c)-lo)/soft) / top
				panel.SetGray(c, r, color.Gray{Y: grey(v)})
			}
		}
		x0 := i * (cols*opts.Upscale + opts.Gap)
		rect := image.Rect(x0, 0, x0+cols*opts.Upscale, outRows)
		draw.NearestNeighbor.Scale(dst, rect, panel, panel.Bounds(), draw.Src, nil)
	}
	return dst, nil
}

// WriteMosaic renders the panels and writes them to a PNG file.
func WriteMosaic(path string, panels []*obs.Image, opts Options) error {
	img, err := Mosaic(panels, opts)
	if err != nil {
		return err
	}
	return writePNG(path, img)
}

// WriteComparison writes a data | model | residual mosaic to a PNG file.
func WriteComparison(path string, data, model *obs.Image, opts Options) error {
	if !data.SameShape(model) {
		return fmt.Errorf("vis: data is %dx%d but model is %dx%d",
			data.Rows(), data.Cols(), model.Rows(), model.Cols())
	}
	resid := data.Copy()
	resid.AddScaled(model, -1)
	return WriteMosaic(path, []*obs.Image{data, model, resid}, opts)
}

// WriteStamp writes a single panel to a PNG file.
func WriteStamp(path string, im *obs.Image, opts Options) error {
	return WriteMosaic(path, []*obs.Image{im}, opts)
}

func grey(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(255 * v))
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
