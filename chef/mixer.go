package chef

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/preprocessing"
	"github.com/YuminosukeSato/simplify/settings"
)

// Mixer appends features built from the numeric features: products up to a
// degree, or the sum, difference or quotient of every pair. The original
// columns stay. The new columns depend on each row alone, so nothing is
// learned from the training rows.
type Mixer struct{}

func (Mixer) Name() string       { return "mixer" }
func (Mixer) Sections() []string { return []string{Section, "mixer_parameters"} }

func (Mixer) Draft(d *step.Drafter) error {
	d.Direct("polynomial", "preprocessing", func(p *settings.Section) (step.Technique, error) {
		degree, err := p.Int("degree", 2)
		if err != nil {
			return nil, err
		}
		if degree < 2 {
			return nil, errors.NewConfigurationError("polynomial", "degree", "must be >= 2")
		}
		interactionOnly, err := p.Bool("interaction_only", true)
		if err != nil {
			return nil, err
		}
		includeBias, err := p.Bool("include_bias", false)
		if err != nil {
			return nil, err
		}
		return mix(func() mixTransformer {
			return polynomial{preprocessing.NewPolynomialFeatures(degree, interactionOnly, includeBias)}
		}), nil
	}, "columns")

	for _, op := range []string{preprocessing.PairQuotient, preprocessing.PairSum, preprocessing.PairDifference} {
		d.Direct(op, "preprocessing", func(*settings.Section) (step.Technique, error) {
			return mix(func() mixTransformer { return preprocessing.NewPairwiseFeatures(op) }), nil
		}, "columns")
	}

	none(d, func(*step.Context) map[string]any {
		return map[string]any{"columns": []string{}}
	}, "columns")
	return nil
}

type mixTransformer interface {
	FitTransform(X mat.Matrix) (mat.Matrix, error)
	FeatureNames(input []string) []string
}

// polynomial drops the degree-one terms, which copy the input columns.
type polynomial struct {
	*preprocessing.PolynomialFeatures
}

func (p polynomial) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	out, err := p.PolynomialFeatures.FitTransform(X)
	if err != nil {
		return nil, err
	}
	var keepIdx []int
	for k, deg := range p.Degrees() {
		if deg != 1 {
			keepIdx = append(keepIdx, k)
		}
	}
	if len(keepIdx) == 0 {
		return nil, errors.NewValueError("polynomial", "interaction terms need at least two features")
	}
	r, _ := out.Dims()
	kept := mat.NewDense(r, len(keepIdx), nil)
	for c, k := range keepIdx {
		kept.SetCol(c, mat.Col(nil, k, out))
	}
	return kept, nil
}

func (p polynomial) FeatureNames(input []string) []string {
	all := p.PolynomialFeatures.FeatureNames(input)
	var names []string
	for k, deg := range p.Degrees() {
		if deg != 1 {
			names = append(names, all[k])
		}
	}
	return names
}

func mix(newTransformer func() mixTransformer) step.Technique {
	return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
		data := tube.Data
		if data.X == nil || data.NumFeatures() == 0 {
			return nil, errors.NewValueError("mixer", "the dataset has no numeric features")
		}
		t := newTransformer()
		block, err := t.FitTransform(data.X)
		if err != nil {
			return nil, err
		}
		names := t.FeatureNames(data.Features)
		if err := data.AppendColumns(names, mat.DenseCopyOf(block)); err != nil {
			return nil, err
		}
		return map[string]any{"columns": names}, nil
	})
}
