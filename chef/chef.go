// Package chef holds the steps that prepare a tube and fit its model:
// scale, encode, mixer, split, sample, reduce, model and search.
//
// A chef step runs exactly one technique per tube. The cookbook builds one
// tube for every combination of the techniques listed in the settings,
// so a chef technique may freely replace the tube's data, folds and model.
package chef

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

// Section is the settings section listing the chef steps.
const Section = "chef"

// Random streams of the tube seed used by each step.
const (
	streamSplit uint64 = iota + 1
	streamSample
	streamSearch
	streamReduce
)

// Definitions returns every chef step in their default order.
func Definitions() []step.Definition {
	return []step.Definition{Scale{}, Encode{}, Mixer{}, Split{}, Sample{}, Reduce{}, Model{}, Search{}}
}

// none registers the technique that leaves the tube untouched.
func none(d *step.Drafter, values func(tube *step.Context) map[string]any, outputs ...string) {
	d.Direct("none", "simplify", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			return values(tube), nil
		}), nil
	}, outputs...)
}

// seedOf reads random_state, which the step fills from the tube seed when
// the settings leave it out.
func seedOf(p *settings.Section) (int64, error) {
	n, err := p.Int("random_state", 0)
	return int64(n), err
}

// shuffler returns the generator used to shuffle rows, or nil when the
// shuffle parameter is false.
func shuffler(p *settings.Section, tube *step.Context, stream uint64) (*rand.Rand, error) {
	shuffle, err := p.Bool("shuffle", true)
	if err != nil || !shuffle {
		return nil, err
	}
	return tube.Rand(stream), nil
}

// requireFeatures fails when the tube has nothing a model can train on.
func requireFeatures(stepName string, data *dataset.Dataset) error {
	if len(data.Categoricals) > 0 {
		names := make([]string, len(data.Categoricals))
		for i, c := range data.Categoricals {
			names[i] = c.Name
		}
		return errors.NewConfigurationError(stepName, "", "categorical columns must be encoded first: "+strings.Join(names, ", "))
	}
	if data.X == nil || data.NumFeatures() == 0 {
		return errors.NewValueError(stepName, "the dataset has no numeric features")
	}
	return nil
}

// refitRows returns the rows the final model is trained on. A single fold
// keeps its training rows as they are, repeats included, so that
// oversampling survives the refit.
func refitRows(folds []dataset.Fold) []int {
	if len(folds) == 1 {
		return folds[0].Train
	}
	return dataset.TrainIndex(folds)
}
