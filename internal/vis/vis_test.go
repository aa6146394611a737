package vis

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esheldon/emd/pkg/obs"
)

func gradient(rows, cols int) *obs.Image {
	im := obs.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			im.Set(r, c, float64(r*cols+c))
		}
	}
	return im
}

func TestMosaicLayout(t *testing.T) {
	opts := DefaultOptions()
	panels := []*obs.Image{gradient(8, 6), gradient(8, 6), gradient(8, 6)}

	img, err := Mosaic(panels, opts)
	require.NoError(t, err)

	b := img.Bounds()
	require.Equal(t, 8*opts.Upscale, b.Dy())
	require.Equal(t, 3*6*opts.Upscale+2*opts.Gap, b.Dx())

	// the faintest pixel maps to black and the brightest to white
	require.Equal(t, uint8(0), img.RGBAAt(0, 0).R)
	require.Equal(t, uint8(255), img.RGBAAt(5*opts.Upscale, 7*opts.Upscale).R)

	// greyscale throughout
	px := img.RGBAAt(10, 10)
	require.Equal(t, px.R, px.G)
	require.Equal(t, px.R, px.B)

	// gap columns keep the background color
	require.Equal(t, uint8(30), img.RGBAAt(6*opts.Upscale, 0).R)
}

func TestMosaicErrors(t *testing.T) {
	_, err := Mosaic(nil, DefaultOptions())
	require.Error(t, err)

	_, err = Mosaic([]*obs.Image{gradient(4, 4), gradient(4, 5)}, DefaultOptions())
	require.Error(t, err)

	opts := DefaultOptions()
	opts.Upscale = 0
	_, err = Mosaic([]*obs.Image{gradient(4, 4)}, opts)
	require.Error(t, err)
}

func TestWriteComparison(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()

	data := gradient(10, 10)
	model := data.Copy()

	path := filepath.Join(dir, "cmp.png")
	require.NoError(t, WriteComparison(path, data, model, opts))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, 3*10*opts.Upscale+2*opts.Gap, img.Bounds().Dx())
	require.Equal(t, 10*opts.Upscale, img.Bounds().Dy())

	require.Error(t, WriteComparison(path, data, gradient(4, 4), opts))
	require.Error(t, WriteComparison(filepath.Join(dir, "no", "cmp.png"), data, model, opts))
}

func TestWriteStamp(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Upscale = 2

	path := filepath.Join(dir, "stamp.png")
	require.NoError(t, WriteStamp(path, gradient(7, 5), opts))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, 5*2, img.Bounds().Dx())
	require.Equal(t, 7*2, img.Bounds().Dy())
}
