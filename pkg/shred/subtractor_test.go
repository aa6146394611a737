package shred

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/esheldon/emd/pkg/obs"
)

// deblendFixture runs a clean deblend over the standard blend.
func deblendFixture(t *testing.T) (*testBlend, *Shredder) {
	t.Helper()
	tb := makeBlend(t)
	sh, err := New(tb.mbobs, rand.New(rand.NewSource(42)), DefaultConfig())
	require.NoError(t, err)
	res, err := sh.Deblend(tb.blendGuess(t))
	require.NoError(t, err)
	require.Equal(t, Flags(0), res.Flags)
	return tb, sh
}

func TestModelSubtractorSubtraction(t *testing.T) {
	tb, sh := deblendFixture(t)

	origs := make([]*obs.Image, len(tb.mbobs))
	for b, olist := range tb.mbobs {
		origs[b] = olist[0].Image().Copy()
	}

	ms, err := NewModelSubtractor(sh, 2)
	require.NoError(t, err)
	require.Equal(t, 2, ms.NObj())

	sub := ms.Subtracted()
	require.Equal(t, 3, sub.NBand())

	for b, olist := range sub {
		// the input band images were only read, never written
		require.Equal(t, origs[b].Data(), tb.mbobs[b][0].Image().Data())

		want := origs[b].Copy()
		for i := 0; i < 2; i++ {
			model, err := ms.ModelImage(i, b)
			require.NoError(t, err)
			want.AddScaled(model, -1)
		}
		require.InDeltaSlice(t, want.Data(), olist[0].Image().Data(), 1e-12)

		// a clean fit leaves little light behind
		var worst float64
		for _, v := range olist[0].Image().Data() {
			if a := math.Abs(v); a > worst {
				worst = a
			}
		}
		require.Less(t, worst, 0.05*origs[b].Max(), "band %d residual", b)
	}
}

func TestModelSubtractorAddSource(t *testing.T) {
	_, sh := deblendFixture(t)
	ms, err := NewModelSubtractor(sh, 2)
	require.NoError(t, err)

	before := make([]*obs.Image, 3)
	for b, olist := range ms.Subtracted() {
		before[b] = olist[0].Image().Copy()
	}

	called := false
	err = ms.AddSource(0, func(mb obs.MultiBandObsList) error {
		called = true
		require.Equal(t, 3, mb.NBand())
		for b, olist := range mb {
			model, err := ms.ModelImage(0, b)
			require.NoError(t, err)
			want := before[b].Copy()
			want.AddScaled(model, 1)
			require.InDeltaSlice(t, want.Data(), olist[0].Image().Data(), 1e-10)
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)

	for b, olist := range ms.Subtracted() {
		require.InDeltaSlice(t, before[b].Data(), olist[0].Image().Data(), 1e-10)
	}

	// the light comes back out even when the callback fails
	boom := errors.New("boom")
	err = ms.AddSource(1, func(obs.MultiBandObsList) error { return boom })
	require.ErrorIs(t, err, boom)
	for b, olist := range ms.Subtracted() {
		require.InDeltaSlice(t, before[b].Data(), olist[0].Image().Data(), 1e-10)
	}

	err = ms.AddSource(2, func(obs.MultiBandObsList) error { return nil })
	require.ErrorIs(t, err, ErrRange)
	err = ms.AddSource(-1, func(obs.MultiBandObsList) error { return nil })
	require.ErrorIs(t, err, ErrRange)
}

func TestModelSubtractorObjectMixture(t *testing.T) {
	_, sh := deblendFixture(t)
	res, err := sh.Result()
	require.NoError(t, err)

	ms, err := NewModelSubtractor(sh, 2)
	require.NoError(t, err)

	for b := range res.Bands {
		mixA, err := ms.ObjectMixture(0, b, false)
		require.NoError(t, err)
		want, err := res.Bands[b].Mixture.Slice(0, 2)
		require.NoError(t, err)
		require.Equal(t, want, mixA)

		convB, err := ms.ObjectMixture(1, b, true)
		require.NoError(t, err)
		wantConv, err := res.Bands[b].ConvolvedMixture.Slice(2, 4)
		require.NoError(t, err)
		require.Equal(t, wantConv, convB)

		// returned mixtures are copies
		mixA[0].P = -1
		again, err := ms.ObjectMixture(0, b, false)
		require.NoError(t, err)
		require.Equal(t, want, again)
	}

	_, err = ms.ObjectMixture(2, 0, false)
	require.ErrorIs(t, err, ErrRange)
	_, err = ms.ObjectMixture(0, 3, true)
	require.ErrorIs(t, err, ErrRange)
}

func TestModelSubtractorObjectStamp(t *testing.T) {
	_, sh := deblendFixture(t)
	ms, err := NewModelSubtractor(sh, 2)
	require.NoError(t, err)

	err = ms.AddSource(0, func(mb obs.MultiBandObsList) error {
		stamps, err := ms.ObjectStamp(0, 7)
		require.NoError(t, err)
		require.Equal(t, 3, stamps.NBand())

		// object A is centered at pixel 11.2 on both axes, so a size-7
		// window spans [8, 15) with the center at local pixel 3.2
		wantCen := 5.6/testScale - 8.0
		for b, olist := range stamps {
			st := olist[0]
			require.Equal(t, 7, st.Image().Rows())
			require.Equal(t, 7, st.Image().Cols())
			require.Equal(t, 7, st.Weight().Rows())

			row0, col0 := st.Jacobian().Center()
			require.InDelta(t, wantCen, row0, 1e-9)
			require.InDelta(t, wantCen, col0, 1e-9)

			full, err := mb[b][0].Image().Crop(8, 15, 8, 15)
			require.NoError(t, err)
			require.Equal(t, full.Data(), st.Image().Data())

			require.Same(t, mb[b][0].PSF(), st.PSF())

			// stamps copy, never alias, the live pixels
			st.UpdateImage(func(im *obs.Image) { im.Fill(-99) })
			require.NotEqual(t, -99.0, mb[b][0].Image().Get(8, 8))
		}
		return nil
	})
	require.NoError(t, err)

	// even sizes grow to the next odd window
	stamps, err := ms.ObjectStamp(0, 8)
	require.NoError(t, err)
	require.Equal(t, 9, stamps[0][0].Image().Rows())

	// object A is too close to the low edge for this window, object B to
	// the high edge
	_, err = ms.ObjectStamp(0, 25)
	require.ErrorIs(t, err, ErrBounds)
	_, err = ms.ObjectStamp(1, 25)
	require.ErrorIs(t, err, ErrBounds)

	_, err = ms.ObjectStamp(0, 0)
	require.Error(t, err)
	_, err = ms.ObjectStamp(2, 7)
	require.ErrorIs(t, err, ErrRange)
}

func TestModelSubtractorBandFailure(t *testing.T) {
	tb := makeBlend(t)
	tb.mbobs[1][0].UpdateImage(func(im *obs.Image) { im.Fill(0) })

	sh, err := New(tb.mbobs, rand.New(rand.NewSource(23)), DefaultConfig())
	require.NoError(t, err)
	res, err := sh.Deblend(tb.blendGuess(t))
	require.NoError(t, err)
	require.Equal(t, BandFailure, res.Flags)

	// a band-level failure leaves its last fit state behind, which is
	// enough to keep subtracting in every band
	ms, err := NewModelSubtractor(sh, 2)
	require.NoError(t, err)

	sub := ms.Subtracted()
	require.Equal(t, 3, sub.NBand())
	for b, olist := range sub {
		want := tb.mbobs[b][0].Image().Copy()
		for i := 0; i < 2; i++ {
			model, err := ms.ModelImage(i, b)
			require.NoError(t, err)
			want.AddScaled(model, -1)
		}
		require.InDeltaSlice(t, want.Data(), olist[0].Image().Data(), 1e-12, "band %d", b)
	}

	// the failed band's objects come from its recorded mixtures
	mix, err := ms.ObjectMixture(0, 1, true)
	require.NoError(t, err)
	want, err := res.Bands[1].ConvolvedMixture.Slice(0, 2)
	require.NoError(t, err)
	require.Equal(t, want, mix)

	// scoped restore still round-trips through the failed band
	before := make([]*obs.Image, 3)
	for b, olist := range sub {
		before[b] = olist[0].Image().Copy()
	}
	err = ms.AddSource(1, func(obs.MultiBandObsList) error { return nil })
	require.NoError(t, err)
	for b, olist := range ms.Subtracted() {
		require.InDeltaSlice(t, before[b].Data(), olist[0].Image().Data(), 1e-10, "band %d", b)
	}
}

func TestModelSubtractorErrors(t *testing.T) {
	_, err := NewModelSubtractor(nil, 2)
	require.Error(t, err)

	tb := makeBlend(t)
	sh, err := New(tb.mbobs, rand.New(rand.NewSource(11)), DefaultConfig())
	require.NoError(t, err)

	_, err = NewModelSubtractor(sh, 2)
	require.ErrorIs(t, err, ErrNoResult)

	_, err = sh.Deblend(tb.blendGuess(t))
	require.NoError(t, err)

	// four components do not split across three objects
	_, err = NewModelSubtractor(sh, 3)
	require.ErrorIs(t, err, ErrMismatch)

	_, err = NewModelSubtractor(sh, 0)
	require.Error(t, err)
}
