// Command shredtest deblends simulated multi-band blends and reports the
// recovered fluxes against the pixel sums of the input images.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/esheldon/emd/internal/version"
	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/guess"
	"github.com/esheldon/emd/pkg/shred"
	"github.com/esheldon/emd/pkg/sim"
)

var (
	flagConfig  = flag.String("config", "", "Path to simulation config TOML (empty = defaults)")
	flagSeed    = flag.Uint64("seed", 3121, "Random seed")
	flagTrials  = flag.Int("ntrial", 1, "Number of simulated blends")
	flagNObj    = flag.Int("nobj", 0, "Override the number of objects per blend")
	flagNoise   = flag.Float64("noise", 0, "Override the pixel noise")
	flagModel   = flag.String("model", "dev", "Guess model: gauss, exp, dev, bdf or bd")
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

	fmt.Printf("seed=%d trials=%d nobj=%d noise=%g model=%s\n",
		*flagSeed, *flagTrials, cfg.Objects.NObj, cfg.Image.Noise, model)

	nfail := 0
	for trial := 0; trial < *flagTrials; trial++ {
		if !runTrial(trial, s, model, rng, &logger) {
			nfail++
		}
	}

	fmt.Printf("\n%d/%d trials deblended cleanly\n", *flagTrials-nfail, *flagTrials)
	if nfail > 0 {
		os.Exit(1)
	}
}

// runTrial simulates one blend, deblends it, and prints the per-band
// results. It reports whether every stage produced a usable fit.
func runTrial(trial int, s *sim.Sim, model gmix.Model, rng *rand.Rand, logger *zerolog.Logger) bool {
	cfg := s.Config()

	mbobs, truth, err := s.Gen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "trial %d: simulation failed: %v\n", trial, err)
		return false
	}

	gs, err := guess.FromCatalog(truth, cfg.Image.PixelScale, model, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trial %d: guess failed: %v\n", trial, err)
		return false
	}

	scfg := shred.DefaultConfig()
	scfg.Logger = logger
	sh, err := shred.New(mbobs, rng, scfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trial %d: %v\n", trial, err)
		return false
	}

	res, err := sh.Deblend(gs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trial %d: deblend failed: %v\n", trial, err)
		return false
	}

	fmt.Printf("\n=== Trial %d: %d objects, %d bands ===\n", trial, len(truth), mbobs.NBand())
	if *flagVerbose {
		for i, o := range truth {
			fmt.Printf("truth %d: row=%.2f col=%.2f T=%.3f\n", i, o.Row, o.Col, o.T)
		}
	}

	fmt.Printf("coadd: flags=%s niter=%d fdiff=%.3g sky=%.4g\n",
		res.Coadd.Flags, res.Coadd.NumIter, res.Coadd.FDiff, res.Coadd.Sky)
	if res.Flags&shred.CoaddFailure != 0 {
		fmt.Fprintf(os.Stderr, "trial %d: coadd fit failed: %s\n", trial, res.Coadd.Message)
		return false
	}

	fmt.Printf("%-5s %12s %12s %12s %7s %10s  %s\n",
		"BAND", "FLUX", "FLUXERR", "IMAGE SUM", "NITER", "FDIFF", "FLAGS")
	ok := true
	for b, br := range res.Bands {
		imsum := floats.Sum(mbobs[b][0].Image().Data())
		fmt.Printf("%-5d %12.5g %12.4g %12.5g %7d %10.3g  %s\n",
			b, br.TotalFlux, br.TotalFluxErr, imsum, br.NumIter, br.FDiff, br.Flags)
		if br.Flags.Hard() {
			ok = false
		}
	}
	return ok
}
