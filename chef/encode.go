package chef

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/preprocessing"
	"github.com/YuminosukeSato/simplify/settings"
)

// Encode replaces every categorical column with numeric columns named
// after it. Encoders learn from the training rows only.
type Encode struct{}

func (Encode) Name() string       { return "encode" }
func (Encode) Sections() []string { return []string{Section, "encode_parameters"} }

func (Encode) Draft(d *step.Drafter) error {
	d.Direct("ordinal", "preprocessing", encoder(func(*settings.Section) (func() preprocessing.CategoricalEncoder, error) {
		return func() preprocessing.CategoricalEncoder { return preprocessing.NewOrdinalEncoder() }, nil
	}), "columns")
	d.Direct("one_hot", "preprocessing", encoder(func(*settings.Section) (func() preprocessing.CategoricalEncoder, error) {
		return func() preprocessing.CategoricalEncoder { return preprocessing.NewOneHotEncoder() }, nil
	}), "columns")
	d.Direct("frequency", "preprocessing", encoder(func(*settings.Section) (func() preprocessing.CategoricalEncoder, error) {
		return func() preprocessing.CategoricalEncoder { return preprocessing.NewFrequencyEncoder() }, nil
	}), "columns")
	d.Direct("target", "preprocessing", encoder(func(p *settings.Section) (func() preprocessing.CategoricalEncoder, error) {
		m, err := p.Float("smoothing", 1)
		if err != nil {
			return nil, err
		}
		return func() preprocessing.CategoricalEncoder { return preprocessing.NewTargetEncoder(m) }, nil
	}), "columns")

	none(d, func(*step.Context) map[string]any {
		return map[string]any{"columns": []string{}}
	}, "columns")
	return nil
}

func encoder(build func(p *settings.Section) (func() preprocessing.CategoricalEncoder, error)) step.Factory {
	return func(p *settings.Section) (step.Technique, error) {
		newEncoder, err := build(p)
		if err != nil {
			return nil, err
		}
		return step.TechniqueFunc(func(ctx context.Context, tube *step.Context) (map[string]any, error) {
			data := tube.Data
			train := tube.TrainIndex()
			y := data.Target(train)

			names := []string{}
			var cols [][]float64
			for _, c := range data.TakeCategoricals() {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				values := make([]string, len(train))
				for i, r := range train {
					values[i] = c.Values[r]
				}
				enc := newEncoder()
				if err := enc.Fit(values, y); err != nil {
					return nil, err
				}
				suffixes, encoded, err := enc.Transform(c.Values)
				if err != nil {
					return nil, err
				}
				for _, s := range suffixes {
					names = append(names, c.Name+s)
				}
				cols = append(cols, encoded...)
			}
			if len(cols) == 0 {
				return map[string]any{"columns": names}, nil
			}

			block := mat.NewDense(data.Len(), len(cols), nil)
			for j, col := range cols {
				block.SetCol(j, col)
			}
			if err := data.AppendColumns(names, block); err != nil {
				return nil, err
			}
			return map[string]any{"columns": names}, nil
		}), nil
	}
}
