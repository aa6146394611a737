package gmix

import (
	"fmt"
	"math"
)

// Model identifies a standard radial profile expressed as a fixed Gaussian
// decomposition.
type Model int

const (
	// ModelGauss is a single Gaussian.
	ModelGauss Model = iota
	// ModelExp is an exponential disk (6 Gaussians).
	ModelExp
	// ModelDev is a de Vaucouleurs bulge (10 Gaussians).
	ModelDev
	// ModelBD is bulge+disk with a free size ratio (16 Gaussians).
	ModelBD
	// ModelBDF is bulge+disk sharing one size (16 Gaussians).
	ModelBDF
)

// String returns the conventional short name.
func (m Model) String() string {
	switch m {
	case ModelGauss:
		return "gauss"
	case ModelExp:
		return "exp"
	case ModelDev:
		return "dev"
	case ModelBD:
		return "bd"
	case ModelBDF:
		return "bdf"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// ParseModel maps a short name to a Model.
func ParseModel(name string) (Model, error) {
	switch name {
	case "gauss":
		return ModelGauss, nil
	case "exp":
		return ModelExp, nil
	case "dev":
		return ModelDev, nil
	case "bd":
		return ModelBD, nil
	case "bdf":
		return ModelBDF, nil
	}
	return 0, fmt.Errorf("gmix: unknown model %q", name)
}

// NGauss returns the number of components the model expands to.
func (m Model) NGauss() int {
	switch m {
	case ModelGauss:
		return 1
	case ModelExp:
		return 6
	case ModelDev:
		return 10
	case ModelBD, ModelBDF:
		return 16
	}
	return 0
}

// NumPars returns the length of the parameter vector NewGMixModel expects.
func (m Model) NumPars() int {
	switch m {
	case ModelGauss, ModelExp, ModelDev:
		return 6
	case ModelBDF:
		return 7
	case ModelBD:
		return 8
	}
	return 0
}

// Size fractions and relative amplitudes of the Gaussian decompositions.
// Each component k has T_k = T*fvals[k] and carries pvals[k] of the flux.
var (
	fvalsGauss = []float64{1.0}
	pvalsGauss = []float64{1.0}

	fvalsExp = []float64{
		0.002467115141477932,
		0.018147435573256168,
		0.07944063151366336,
		0.27137669897479122,
		0.79782256866993773,
		2.1623306025075739,
	}
	pvalsExp = []float64{
		0.00061601229677880041,
		0.0079461395724623237,
		0.053280454055540001,
		0.21797364640726541,
		0.45496740582554868,
		0.26521634184240478,
	}

	fvalsDev = []float64{
		2.9934935706271918e-07,
		3.4651596338231207e-06,
		2.4807910570562753e-05,
		1.4307404300535354e-04,
		7.2753169298239500e-04,
		3.4582464394427260e-03,
		1.6086645440719100e-02,
		7.7006776775654429e-02,
		4.1012562102501476e-01,
		2.9812509778548648e+00,
	}
	pvalsDev = []float64{
		6.5288960012625658e-05,
		4.4199216814302695e-04,
		2.0859587871659754e-03,
		7.5913681418996841e-03,
		2.2602662192572370e-02,
		5.6532254390212859e-02,
		1.1939049233042602e-01,
		2.0969545753234975e-01,
		2.9254151133139222e-01,
		2.8905301416582552e-01,
	}
)

// GToE converts reduced-shear ellipticity (g1, g2) to the distortion (e1, e2)
// used in covariance construction. Fails when |g| >= 1.
func GToE(g1, g2 float64) (e1, e2 float64, err error) {
	g := math.Sqrt(g1*g1 + g2*g2)
	if g == 0 {
		return 0, 0, nil
	}
	if g >= 1 {
		return 0, 0, fmt.Errorf("gmix: |g|=%g out of range", g)
	}
	fac := 2 / (1 + g*g)
	return g1 * fac, g2 * fac, nil
}

// NewGMixModel builds a mixture of the given model from a parameter vector.
//
// Simple models take [row, col, g1, g2, T, flux]. ModelBDF takes
// [row, col, g1, g2, T, fracdev, flux]; ModelBD takes
// [row, col, g1, g2, T, log10(Tratio), fracdev, flux], where T sizes the
// disk and the bulge gets T*Tratio, so Tratio = Tbulge/Tdisk. Positions and
// sizes are in sky units. Bulge+disk mixtures list the disk components
// first.
func NewGMixModel(pars []float64, model Model) (GMix, error) {
	if want := model.NumPars(); len(pars) != want {
		return nil, fmt.Errorf("gmix: model %s needs %d parameters, got %d",
			model, want, len(pars))
	}

	row, col := pars[0], pars[1]
	e1, e2, err := GToE(pars[2], pars[3])
	if err != nil {
		return nil, err
	}
	T := pars[4]

	switch model {
	case ModelGauss, ModelExp, ModelDev:
		flux := pars[5]
		fv, pv := modelTables(model)
		return fillSimple(nil, row, col, e1, e2, T, flux, fv, pv)
	case ModelBDF:
		fracdev, flux := pars[5], pars[6]
		g, err := fillSimple(nil, row, col, e1, e2, T, flux*(1-fracdev), fvalsExp, pvalsExp)
		if err != nil {
			return nil, err
		}
		return fillSimple(g, row, col, e1, e2, T, flux*fracdev, fvalsDev, pvalsDev)
	case ModelBD:
		tratio := math.Pow(10, pars[5])
		fracdev, flux := pars[6], pars[7]
		g, err := fillSimple(nil, row, col, e1, e2, T, flux*(1-fracdev), fvalsExp, pvalsExp)
		if err != nil {
			return nil, err
		}
		return fillSimple(g, row, col, e1, e2, T*tratio, flux*fracdev, fvalsDev, pvalsDev)
	}
	return nil, fmt.Errorf("gmix: unknown model %v", model)
}

func modelTables(model Model) (fvals, pvals []float64) {
	switch model {
	case ModelGauss:
		return fvalsGauss, pvalsGauss
	case ModelExp:
		return fvalsExp, pvalsExp
	case ModelDev:
		return fvalsDev, pvalsDev
	}
	return nil, nil
}

// fillSimple appends one profile's components to g, splitting flux across the
// table entries.
func fillSimple(g GMix, row, col, e1, e2, T, flux float64, fvals, pvals []float64) (GMix, error) {
	var psum float64
	for _, p := range pvals {
		psum += p
	}
	for k := range fvals {
		Tk := T * fvals[k]
		comp, err := NewGauss(
			flux*pvals[k]/psum,
			row, col,
			(Tk/2)*(1-e1),
			(Tk/2)*e2,
			(Tk/2)*(1+e1),
		)
		if err != nil {
			return nil, err
		}
		g = append(g, comp)
	}
	return g, nil
}
