// Command subtest deblends one simulated blend, subtracts the fitted object
// models, and writes comparison mosaics and per-object stamps as PNG files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/esheldon/emd/internal/version"
	"github.com/esheldon/emd/internal/vis"
	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/guess"
	"github.com/esheldon/emd/pkg/obs"
	"github.com/esheldon/emd/pkg/shred"
	"github.com/esheldon/emd/pkg/sim"
)

var (
	flagConfig  = flag.String("config", "", "Path to simulation config TOML (empty = defaults)")
	flagSeed    = flag.Uint64("seed", 8712, "Random seed")
	flagNObj    = flag.Int("nobj", 0, "Override the number of objects per blend")
	flagNoise   = flag.Float64("noise", 0, "Override the pixel noise")
	flagModel   = flag.String("model", "dev", "Guess model: gauss, exp, dev, bdf or bd")
	flagOut     = flag.String("out", "subtest-out", "Output directory for PNG files")
	flagStamp   = flag.Int("stamp", 32, "Stamp size in pixels")
	flagIndex   = flag.Int("index", -1, "Object index to stamp, -1 for all")
	flagVerbose = flag.Bool("v", false, "Verbose output")
	flagVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *flagVersion {
		fmt.Println(version.String())
		return
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	if *flagVerbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	cfg := sim.DefaultConfig()
	if *flagConfig != "" {
		var err error
		cfg, err = sim.LoadConfig(*flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *flagNObj > 0 {
		cfg.Objects.NObj = *flagNObj
	}
	if *flagNoise > 0 {
		cfg.Image.Noise = *flagNoise
	}

	model, err := gmix.ParseModel(*flagModel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*flagSeed))
	s, err := sim.New(cfg, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build simulation: %v\n", err)
		os.Exit(1)
	}

	mbobs, truth, err := s.Gen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seed=%d nobj=%d bands=%d model=%s\n",
		*flagSeed, len(truth), mbobs.NBand(), model)

	gs, err := guess.FromCatalog(truth, cfg.Image.PixelScale, model, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Guess failed: %v\n", err)
		os.Exit(1)
	}

	scfg := shred.DefaultConfig()
	scfg.Logger = &logger
	sh, err := shred.New(mbobs, rng, scfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	res, err := sh.Deblend(gs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deblend failed: %v\n", err)
		os.Exit(1)
	}
	if res.Flags&shred.CoaddFailure != 0 {
		fmt.Fprintf(os.Stderr, "Deblend flagged: %s\n", res.Flags)
		os.Exit(1)
	}
	if res.Flags != 0 {
		fmt.Fprintf(os.Stderr, "Deblend flagged: %s; subtracting from last fit state\n", res.Flags)
	}

	ms, err := shred.NewModelSubtractor(sh, len(truth))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Subtractor failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*flagOut, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *flagOut, err)
		os.Exit(1)
	}

	opts := vis.DefaultOptions()

	// full-field data | model | residual per band
	sub := ms.Subtracted()
	for b := range mbobs {
		data := mbobs[b][0].Image()
		modelIm := data.Copy()
		modelIm.AddScaled(sub[b][0].Image(), -1)

		path := filepath.Join(*flagOut, fmt.Sprintf("band%d.png", b))
		if err := vis.WriteComparison(path, data, modelIm, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
	}

	for i := 0; i < ms.NObj(); i++ {
		if *flagIndex >= 0 && i != *flagIndex {
			continue
		}
		if err := writeObjectStamp(ms, i, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Object %d stamp: %v\n", i, err)
			os.Exit(1)
		}
	}
}

// writeObjectStamp re-adds one object's model to the subtracted images and
// writes a mosaic of its stamp in every band.
func writeObjectStamp(ms *shred.ModelSubtractor, index int, opts vis.Options) error {
	return ms.AddSource(index, func(obs.MultiBandObsList) error {
		stamp, err := ms.ObjectStamp(index, *flagStamp)
		if err != nil {
			return err
		}

		panels := make([]*obs.Image, 0, len(stamp))
		for _, ol := range stamp {
			panels = append(panels, ol[0].Image())
		}

		path := filepath.Join(*flagOut, fmt.Sprintf("obj%d.png", index))
		if err := vis.WriteMosaic(path, panels, opts); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	})
}
