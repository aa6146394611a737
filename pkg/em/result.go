package em

import (
	"errors"
	"strings"
)

// ErrNotRun is returned when fit output is requested before Run has been
// called.
var ErrNotRun = errors.New("em: fitter has not run")

// Flags records the outcome of an EM run as combinable bits.
type Flags uint32

const (
	// FlagMaxIter means the fit stopped at the iteration budget before
	// meeting the tolerance. The mixture is still usable.
	FlagMaxIter Flags = 1 << iota

	// FlagRangeError means the fit hit a numerical degeneracy: a singular
	// covariance, a zero model density under a pixel, or a component that
	// collected no weight.
	FlagRangeError

	// FlagZeroWeight means the observation had no pixels with positive
	// weight to fit.
	FlagZeroWeight
)

// Hard reports whether the flags indicate an unusable fit. Stopping at the
// iteration budget alone is a soft condition.
func (f Flags) Hard() bool { return f&^FlagMaxIter != 0 }

func (f Flags) String() string {
	if f == 0 {
		return "ok"
	}
	var parts []string
	if f&FlagMaxIter != 0 {
		parts = append(parts, "maxiter")
	}
	if f&FlagRangeError != 0 {
		parts = append(parts, "range")
	}
	if f&FlagZeroWeight != 0 {
		parts = append(parts, "zero-weight")
	}
	return strings.Join(parts, "|")
}

// Result holds the diagnostics of one EM run.
type Result struct {
	Flags   Flags
	NumIter int
	FDiff   float64 // last relative change of the log likelihood
	Sky     float64 // final per-pixel sky estimate
	Message string  // set when a hard flag is raised
}
