package sim

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config controls the simulation. The zero value is not usable; start from
// DefaultConfig or LoadConfig.
type Config struct {
	Image     ImageConfig    `toml:"image"`
	Positions PositionConfig `toml:"positions"`
	PSF       PSFConfig      `toml:"psf"`
	Objects   ObjectConfig   `toml:"objects"`
}

// ImageConfig sets the pixel geometry and noise of the band images.
type ImageConfig struct {
	Dim        int     `toml:"dim_pixels"`
	Noise      float64 `toml:"noise"`
	PixelScale float64 `toml:"pixel_scale"`
}

// PositionConfig bounds where objects land relative to the image center.
type PositionConfig struct {
	Width float64 `toml:"width_pixels"`
}

// PSFConfig selects the point-spread function model.
type PSFConfig struct {
	Model string  `toml:"model"`
	FWHM  float64 `toml:"fwhm"`
	Beta  float64 `toml:"beta"`
}

// ObjectConfig controls the object population. Each object is a bulge plus
// disk; the color slices set the per-band flux factors and their shared
// length fixes the number of bands.
type ObjectConfig struct {
	NObj               int        `toml:"nobj"`
	FracdevRange       [2]float64 `toml:"fracdev_range"`
	HLRRange           [2]float64 `toml:"hlr_range"`
	TrackHLRFlux       bool       `toml:"track_hlr_flux"`
	FluxRange          [2]float64 `toml:"flux_range"`
	BulgeSizeFracRange [2]float64 `toml:"bulge_sizefrac_range"`
	BulgeAngleRange    [2]float64 `toml:"bulge_angle_offset_range"`
	DiskColor          []float64  `toml:"disk_color"`
	BulgeColor         []float64  `toml:"bulge_color"`
	GSigma             float64    `toml:"gsigma"`
}

// DefaultConfig returns the standard three-band blend: 100x100 pixels at
// 0.263 arcsec/pixel, five bulge+disk objects scattered over the central 50
// pixels, Moffat seeing of 0.9 arcsec, flux tracking the disk size.
func DefaultConfig() Config {
	return Config{
		Image: ImageConfig{
			Dim:        100,
			Noise:      0.1,
			PixelScale: 0.263,
		},
		Positions: PositionConfig{
			Width: 50,
		},
		PSF: PSFConfig{
			Model: "moffat",
			FWHM:  0.9,
			Beta:  3.5,
		},
		Objects: ObjectConfig{
			NObj:               5,
			FracdevRange:       [2]float64{0.0, 1.0},
			HLRRange:           [2]float64{0.01, 1.5},
			TrackHLRFlux:       true,
			FluxRange:          [2]float64{0.1, 300.0},
			BulgeSizeFracRange: [2]float64{0.1, 0.5},
			BulgeAngleRange:    [2]float64{-30, 30},
			DiskColor:          []float64{1.25, 1.0, 1.0 / 1.25},
			BulgeColor:         []float64{0.35, 1.0, 1.0 / 0.35},
			GSigma:             0.2,
		},
	}
}

// LoadConfig reads a TOML file over the defaults, so partial files only
// override what they name.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("sim: config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("sim: config %s: %w", path, err)
	}
	return cfg, nil
}

// NBand returns the number of bands the config generates.
func (c Config) NBand() int { return len(c.Objects.DiskColor) }

// Validate checks the config for values the generator cannot work with.
func (c Config) Validate() error {
	if c.Image.Dim < 8 {
		return fmt.Errorf("sim: dim_pixels %d too small", c.Image.Dim)
	}
	if c.Image.Noise <= 0 {
		return fmt.Errorf("sim: noise %g out of range", c.Image.Noise)
	}
	if c.Image.PixelScale <= 0 {
		return fmt.Errorf("sim: pixel_scale %g out of range", c.Image.PixelScale)
	}
	if c.Positions.Width <= 0 || c.Positions.Width > float64(c.Image.Dim) {
		return fmt.Errorf("sim: width_pixels %g out of range for dim %d", c.Positions.Width, c.Image.Dim)
	}

	switch c.PSF.Model {
	case "moffat":
		if c.PSF.Beta <= 1 {
			return fmt.Errorf("sim: moffat beta %g out of range", c.PSF.Beta)
		}
	case "gauss":
	default:
		return fmt.Errorf("sim: unknown psf model %q", c.PSF.Model)
	}
	if c.PSF.FWHM <= 0 {
		return fmt.Errorf("sim: psf fwhm %g out of range", c.PSF.FWHM)
	}

	o := c.Objects
	if o.NObj < 1 {
		return fmt.Errorf("sim: nobj %d out of range", o.NObj)
	}
	for _, r := range []struct {
		name string
		rng  [2]float64
	}{
		{"fracdev_range", o.FracdevRange},
		{"hlr_range", o.HLRRange},
		{"flux_range", o.FluxRange},
		{"bulge_sizefrac_range", o.BulgeSizeFracRange},
		{"bulge_angle_offset_range", o.BulgeAngleRange},
	} {
		if r.rng[0] > r.rng[1] {
			return fmt.Errorf("sim: %s [%g, %g] inverted", r.name, r.rng[0], r.rng[1])
		}
	}
	if o.FracdevRange[0] < 0 || o.FracdevRange[1] > 1 {
		return fmt.Errorf("sim: fracdev_range [%g, %g] outside [0, 1]",
			o.FracdevRange[0], o.FracdevRange[1])
	}
	if o.HLRRange[0] <= 0 {
		return fmt.Errorf("sim: hlr_range must be positive, got low %g", o.HLRRange[0])
	}
	if len(o.DiskColor) == 0 || len(o.DiskColor) != len(o.BulgeColor) {
		return fmt.Errorf("sim: disk_color has %d bands, bulge_color %d",
			len(o.DiskColor), len(o.BulgeColor))
	}
	if o.GSigma <= 0 || o.GSigma >= 1 {
		return fmt.Errorf("sim: gsigma %g out of range", o.GSigma)
	}
	return nil
}
