package shred

import "errors"

// Contract-violation sentinels, wrapped with context at each return site.
// Data-dependent fit failures are reported through Flags instead.
var (
	// ErrNoResult is returned when results are requested before Deblend has
	// run.
	ErrNoResult = errors.New("shred: no result, run Deblend first")

	// ErrRange is returned for an object or band index outside its valid
	// range.
	ErrRange = errors.New("shred: index out of range")

	// ErrBounds is returned when a postage stamp window crosses the image
	// edge.
	ErrBounds = errors.New("shred: stamp window out of image bounds")

	// ErrMismatch is returned when mixture components do not divide evenly
	// across objects.
	ErrMismatch = errors.New("shred: components do not divide evenly across objects")
)
