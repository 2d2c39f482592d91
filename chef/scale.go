package chef

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/preprocessing"
	"github.com/YuminosukeSato/simplify/settings"
)

// Scale rescales the numeric features. The transformer is fitted on every
// row, synthetic rows included when sampling ran first.
type Scale struct{}

func (Scale) Name() string       { return "scale" }
func (Scale) Sections() []string { return []string{Section, "scale_parameters"} }

func (Scale) Draft(d *step.Drafter) error {
	d.Direct("standard", "preprocessing", scaler(func(p *settings.Section) (model.Transformer, error) {
		withMean, err := p.Bool("with_mean", true)
		if err != nil {
			return nil, err
		}
		withStd, err := p.Bool("with_std", true)
		if err != nil {
			return nil, err
		}
		return preprocessing.NewStandardScaler(withMean, withStd), nil
	}), "transformer")

	d.Direct("minmax", "preprocessing", scaler(func(p *settings.Section) (model.Transformer, error) {
		lo, err := p.Float("feature_min", 0)
		if err != nil {
			return nil, err
		}
		hi, err := p.Float("feature_max", 1)
		if err != nil {
			return nil, err
		}
		return preprocessing.NewMinMaxScaler([2]float64{lo, hi}), nil
	}), "transformer")

	d.Direct("maxabs", "preprocessing", scaler(func(*settings.Section) (model.Transformer, error) {
		return preprocessing.NewMaxAbsScaler(), nil
	}), "transformer")

	d.Direct("robust", "preprocessing", scaler(func(p *settings.Section) (model.Transformer, error) {
		s := preprocessing.NewRobustScaler()
		lo, err := p.Float("quantile_low", s.QuantileRange[0])
		if err != nil {
			return nil, err
		}
		hi, err := p.Float("quantile_high", s.QuantileRange[1])
		if err != nil {
			return nil, err
		}
		s.QuantileRange = [2]float64{lo, hi}
		return s, nil
	}), "transformer")

	d.Direct("normalize", "preprocessing", scaler(func(p *settings.Section) (model.Transformer, error) {
		return preprocessing.NewNormalizer(p.String("norm", "l2")), nil
	}), "transformer")

	d.Direct("bins", "preprocessing", scaler(func(p *settings.Section) (model.Transformer, error) {
		n, err := p.Int("n_bins", 5)
		if err != nil {
			return nil, err
		}
		return preprocessing.NewKBinsDiscretizer(n, p.String("strategy", "uniform")), nil
	}), "transformer")

	none(d, func(*step.Context) map[string]any {
		return map[string]any{"transformer": nil}
	}, "transformer")
	return nil
}

// scaler wraps a transformer constructor into a technique that replaces
// the feature matrix with its transform.
func scaler(build func(p *settings.Section) (model.Transformer, error)) step.Factory {
	return func(p *settings.Section) (step.Technique, error) {
		t, err := build(p)
		if err != nil {
			return nil, err
		}
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			data := tube.Data
			if data.X == nil {
				return map[string]any{"transformer": nil}, nil
			}
			out, err := t.FitTransform(data.X)
			if err != nil {
				return nil, err
			}
			if err := data.SetX(mat.DenseCopyOf(out)); err != nil {
				return nil, err
			}
			return map[string]any{"transformer": t}, nil
		}), nil
	}
}
