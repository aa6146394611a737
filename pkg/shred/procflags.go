package shred

import "strings"

// Flags classifies deblend-level failures. Bits accumulate across stages;
// zero means every stage produced a usable fit. EM-level diagnostics stay in
// the stage results.
type Flags uint32

const (
	// CoaddFailure means the coadd fit failed beyond recovery and the
	// per-band stage never ran; band results are absent.
	CoaddFailure Flags = 1 << iota

	// BandFailure means at least one band's flux fit failed. Other bands
	// are unaffected and their results remain valid.
	BandFailure
)

func (f Flags) String() string {
	if f == 0 {
		return "ok"
	}
	var parts []string
	if f&CoaddFailure != 0 {
		parts = append(parts, "coadd-failure")
	}
	if f&BandFailure != 0 {
		parts = append(parts, "band-failure")
	}
	return strings.Join(parts, "|")
}
