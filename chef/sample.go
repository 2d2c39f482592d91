package chef

import (
	"context"
	"slices"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/preprocessing"
	"github.com/YuminosukeSato/simplify/settings"
)

// Sample balances the classes of the training rows. With folds each
// training partition is resampled on its own and synthetic rows join only
// that partition; test rows are never touched.
type Sample struct{}

func (Sample) Name() string       { return "sample" }
func (Sample) Sections() []string { return []string{Section, "sample_parameters"} }

func (Sample) Draft(d *step.Drafter) error {
	d.Direct("random_over", "preprocessing", sampler(func(*settings.Section) (preprocessing.Sampler, error) {
		return preprocessing.NewRandomOverSampler(), nil
	}), "n_samples")
	d.Direct("random_under", "preprocessing", sampler(func(*settings.Section) (preprocessing.Sampler, error) {
		return preprocessing.NewRandomUnderSampler(), nil
	}), "n_samples")
	d.Direct("smote", "preprocessing", sampler(func(p *settings.Section) (preprocessing.Sampler, error) {
		k, err := p.Int("k_neighbors", 5)
		if err != nil {
			return nil, err
		}
		if k < 1 {
			return nil, errors.NewConfigurationError("smote", "k_neighbors", "must be >= 1")
		}
		return preprocessing.NewSMOTE(k), nil
	}), "n_samples")
	d.Direct("cluster", "cluster", sampler(func(p *settings.Section) (preprocessing.Sampler, error) {
		seed, err := seedOf(p)
		if err != nil {
			return nil, err
		}
		return preprocessing.NewClusterCentroids(seed), nil
	}), "n_samples")

	none(d, func(tube *step.Context) map[string]any {
		return map[string]any{"n_samples": len(refitRows(tube.Splits()))}
	}, "n_samples")
	return nil
}

func sampler(build func(p *settings.Section) (preprocessing.Sampler, error)) step.Factory {
	return func(p *settings.Section) (step.Technique, error) {
		s, err := build(p)
		if err != nil {
			return nil, err
		}
		return step.TechniqueFunc(func(ctx context.Context, tube *step.Context) (map[string]any, error) {
			if tube.Task != model.Classification {
				return nil, errors.NewConfigurationError("sample", "", "sampling needs a classification target")
			}
			if err := requireFeatures("sample", tube.Data); err != nil {
				return nil, err
			}

			rng := tube.Rand(streamSample)
			folds := tube.Folds
			if len(folds) == 0 {
				// Train on the resampled rows, evaluate on the original ones.
				folds = dataset.AllRows(tube.Data.Len())
			}

			out := make([]dataset.Fold, len(folds))
			for i, f := range folds {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				data := tube.Data
				res, err := s.Resample(data.X, data.Target(nil), f.Train, rng)
				if err != nil {
					return nil, err
				}
				train := slices.Clone(res.Keep)
				if len(res.Y) > 0 {
					added, err := data.AppendRows(res.X, res.Y)
					if err != nil {
						return nil, err
					}
					train = append(train, added...)
				}
				slices.Sort(train)
				out[i] = dataset.Fold{Train: train, Test: slices.Clone(f.Test)}
			}
			tube.Folds = out
			return map[string]any{"n_samples": len(refitRows(out))}, nil
		}), nil
	}
}
