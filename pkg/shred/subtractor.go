package shred

import (
	"fmt"

	"github.com/esheldon/emd/pkg/gmix"
	"github.com/esheldon/emd/pkg/obs"
)

// ModelSubtractor isolates individual objects from a deblend result. At
// construction it renders every object's PSF-convolved model in every band
// and keeps a working copy of the data with all models removed.
type ModelSubtractor struct {
	sh         *Shredder
	res        *Result
	nobj       int
	ranges     []ObjectRange   // per-object spans in the fitted mixtures
	convRanges [][]ObjectRange // per band, per-object spans in the convolved mixtures
	models     [][]*obs.Image  // [band][object] rendered models
	mbobs      obs.MultiBandObsList
}

// NewModelSubtractor renders per-object models from sh's result and
// subtracts them all from a deep copy of the input observations. The coadd
// stage must have succeeded, and the component counts of both the fitted
// and convolved mixtures must divide evenly by nobj. Bands whose flux fit
// failed contribute models from their recorded last fit state.
func NewModelSubtractor(sh *Shredder, nobj int) (*ModelSubtractor, error) {
	if sh == nil {
		return nil, fmt.Errorf("shred: nil shredder")
	}
	res, err := sh.Result()
	if err != nil {
		return nil, err
	}
	if res.Flags&CoaddFailure != 0 {
		return nil, fmt.Errorf("shred: cannot subtract from failed result, flags %s", res.Flags)
	}
	if len(res.Bands) == 0 {
		return nil, fmt.Errorf("shred: result has no band fits")
	}
	if nobj < 1 {
		return nil, fmt.Errorf("shred: nobj %d out of range", nobj)
	}

	ranges, err := ObjectRanges(len(res.Bands[0].Mixture), nobj)
	if err != nil {
		return nil, err
	}
	convRanges := make([][]ObjectRange, len(res.Bands))
	for b, bres := range res.Bands {
		if _, err := ObjectRanges(len(bres.Mixture), nobj); err != nil {
			return nil, fmt.Errorf("band %d: %w", b, err)
		}
		cr, err := ObjectRanges(len(bres.ConvolvedMixture), nobj)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", b, err)
		}
		convRanges[b] = cr
	}

	ms := &ModelSubtractor{
		sh:         sh,
		res:        res,
		nobj:       nobj,
		ranges:     ranges,
		convRanges: convRanges,
	}
	if err := ms.buildModels(); err != nil {
		return nil, err
	}
	ms.buildSubtracted()
	return ms, nil
}

// NObj returns the number of objects the result is split into.
func (ms *ModelSubtractor) NObj() int { return ms.nobj }

// Subtracted returns the working observations with every object's model
// removed. AddSource mutates these in place.
func (ms *ModelSubtractor) Subtracted() obs.MultiBandObsList { return ms.mbobs }

// AddSource restores object index's light in every band, runs fn against
// the live subtracted set, and removes the light again before returning,
// whether or not fn fails.
func (ms *ModelSubtractor) AddSource(index int, fn func(obs.MultiBandObsList) error) error {
	if err := ms.checkIndex(index); err != nil {
		return err
	}
	ms.apply(index, 1)
	defer ms.apply(index, -1)
	return fn(ms.mbobs)
}

// apply adds fac times object index's model to the working images.
func (ms *ModelSubtractor) apply(index int, fac float64) {
	for b, olist := range ms.mbobs {
		model := ms.models[b][index]
		olist[0].UpdateImage(func(im *obs.Image) {
			im.AddScaled(model, fac)
		})
	}
}

// ObjectMixture returns one object's components in one band, either the
// fitted mixture or its PSF-convolved form.
func (ms *ModelSubtractor) ObjectMixture(index, band int, convolved bool) (gmix.GMix, error) {
	if err := ms.checkIndex(index); err != nil {
		return nil, err
	}
	if band < 0 || band >= len(ms.res.Bands) {
		return nil, fmt.Errorf("%w: band %d of %d", ErrRange, band, len(ms.res.Bands))
	}
	if convolved {
		r := ms.convRanges[band][index]
		return ms.res.Bands[band].ConvolvedMixture.Slice(r.Start, r.End)
	}
	r := ms.ranges[index]
	return ms.res.Bands[band].Mixture.Slice(r.Start, r.End)
}

// ModelImage returns a copy of one object's rendered model in one band.
func (ms *ModelSubtractor) ModelImage(index, band int) (*obs.Image, error) {
	if err := ms.checkIndex(index); err != nil {
		return nil, err
	}
	if band < 0 || band >= len(ms.models) {
		return nil, fmt.Errorf("%w: band %d of %d", ErrRange, band, len(ms.models))
	}
	return ms.models[band][index].Copy(), nil
}

// ObjectStamp cuts a square window around object index from the live
// subtracted images, so calling it inside AddSource yields stamps holding
// that object's light with its neighbors removed. The window is centered
// on the object's fitted centroid in band zero and grows even sizes to the
// next odd so the center pixel is unambiguous. Windows crossing any image
// edge are rejected with ErrBounds.
func (ms *ModelSubtractor) ObjectStamp(index, stampSize int) (obs.MultiBandObsList, error) {
	if err := ms.checkIndex(index); err != nil {
		return nil, err
	}
	if stampSize < 1 {
		return nil, fmt.Errorf("shred: stamp size %d out of range", stampSize)
	}

	mix, err := ms.ObjectMixture(index, 0, false)
	if err != nil {
		return nil, err
	}
	crow, ccol, err := mix.Cen()
	if err != nil {
		return nil, err
	}

	out := make(obs.MultiBandObsList, 0, ms.mbobs.NBand())
	for _, olist := range ms.mbobs {
		o := olist[0]
		row, col := o.Jacobian().RowCol(crow, ccol)
		rowStart, rowEnd, colStart, colEnd, err := stampBounds(
			o.Image().Rows(), o.Image().Cols(), row, col, stampSize)
		if err != nil {
			return nil, err
		}

		im, err := o.Image().Crop(rowStart, rowEnd, colStart, colEnd)
		if err != nil {
			return nil, err
		}
		wt, err := o.Weight().Crop(rowStart, rowEnd, colStart, colEnd)
		if err != nil {
			return nil, err
		}
		jac := o.Jacobian().WithCenter(row-float64(rowStart), col-float64(colStart))

		stamp, err := obs.NewObservation(im, wt, jac)
		if err != nil {
			return nil, err
		}
		stamp.SetPSF(o.PSF())
		out = append(out, obs.ObsList{stamp})
	}
	return out, nil
}

func (ms *ModelSubtractor) checkIndex(index int) error {
	if index < 0 || index >= ms.nobj {
		return fmt.Errorf("%w: object %d of %d", ErrRange, index, ms.nobj)
	}
	return nil
}

// buildModels renders each object's slice of the calibrated convolved
// mixture over the full pixel grid of its band.
func (ms *ModelSubtractor) buildModels() error {
	mbobs := ms.sh.MBObs()
	ms.models = make([][]*obs.Image, mbobs.NBand())
	for b, olist := range mbobs {
		o := olist[0]
		coords := o.Coords()
		ms.models[b] = make([]*obs.Image, ms.nobj)
		for i, r := range ms.convRanges[b] {
			sub, err := ms.res.Bands[b].ConvolvedMixture.Slice(r.Start, r.End)
			if err != nil {
				return err
			}
			model := obs.NewImage(o.Image().Rows(), o.Image().Cols())
			sub.Render(coords, model.Data())
			ms.models[b][i] = model
		}
	}
	return nil
}

func (ms *ModelSubtractor) buildSubtracted() {
	ms.mbobs = ms.sh.MBObs().Copy()
	for b, olist := range ms.mbobs {
		for i := 0; i < ms.nobj; i++ {
			model := ms.models[b][i]
			olist[0].UpdateImage(func(im *obs.Image) {
				im.AddScaled(model, -1)
			})
		}
	}
}
