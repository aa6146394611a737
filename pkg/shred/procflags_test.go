package shred

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlagsString(t *testing.T) {
	require.Equal(t, "ok", Flags(0).String())
	require.Equal(t, "coadd-failure", CoaddFailure.String())
	require.Equal(t, "band-failure", BandFailure.String())
	require.Equal(t, "coadd-failure|band-failure", (CoaddFailure | BandFailure).String())
}
