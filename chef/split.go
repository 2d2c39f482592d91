package chef

import (
	"context"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

// Split partitions the rows into train/test folds. It has to run before
// sample, which resamples inside each training partition.
type Split struct{}

func (Split) Name() string       { return "split" }
func (Split) Sections() []string { return []string{Section, "split_parameters"} }

func (Split) Draft(d *step.Drafter) error {
	d.Direct("train_test", "dataset", splitter(func(p *settings.Section, tube *step.Context) ([]dataset.Fold, error) {
		size, err := p.Float("test_size", 0.33)
		if err != nil {
			return nil, err
		}
		rng, err := shuffler(p, tube, streamSplit)
		if err != nil {
			return nil, err
		}
		return dataset.TrainTestSplit(tube.Data.Len(), size, rng)
	}), "n_folds")

	d.Direct("kfold", "dataset", splitter(func(p *settings.Section, tube *step.Context) ([]dataset.Fold, error) {
		k, err := p.Int("n_splits", 5)
		if err != nil {
			return nil, err
		}
		rng, err := shuffler(p, tube, streamSplit)
		if err != nil {
			return nil, err
		}
		return dataset.KFold(tube.Data.Len(), k, rng)
	}), "n_folds")

	d.Direct("stratified", "dataset", splitter(func(p *settings.Section, tube *step.Context) ([]dataset.Fold, error) {
		if tube.Task != model.Classification {
			return nil, errors.NewConfigurationError("stratified", "", "stratified folds need a classification target")
		}
		k, err := p.Int("n_splits", 5)
		if err != nil {
			return nil, err
		}
		rng, err := shuffler(p, tube, streamSplit)
		if err != nil {
			return nil, err
		}
		return dataset.StratifiedKFold(tube.Data.Target(nil), k, rng)
	}), "n_folds")

	d.Direct("time", "dataset", splitter(func(p *settings.Section, tube *step.Context) ([]dataset.Fold, error) {
		k, err := p.Int("n_splits", 5)
		if err != nil {
			return nil, err
		}
		return dataset.TimeSeriesSplit(tube.Data.Len(), k)
	}), "n_folds")

	none(d, func(tube *step.Context) map[string]any {
		return map[string]any{"n_folds": len(tube.Splits())}
	}, "n_folds")
	return nil
}

func splitter(split func(p *settings.Section, tube *step.Context) ([]dataset.Fold, error)) step.Factory {
	return func(p *settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if tube.Data.Synthetic > 0 || len(tube.Folds) > 0 {
				return nil, errors.NewConfigurationError("split", "", "split must run before sample")
			}
			folds, err := split(p, tube)
			if err != nil {
				return nil, err
			}
			tube.Folds = folds
			return map[string]any{"n_folds": len(folds)}, nil
		}), nil
	}
}
