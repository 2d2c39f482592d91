package critic

import (
	"context"
	"math"
	"slices"

	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/settings"
)

// minProbability keeps log_probabilities finite.
const minProbability = 1e-15

// Predict publishes the out-of-fold predictions of the tube.
type Predict struct{ dependsOnModel }

func (Predict) Name() string       { return "predict" }
func (Predict) Sections() []string { return []string{Section, "predict_parameters"} }

func (Predict) Draft(d *step.Drafter) error {
	d.Direct("gini", "simplify", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if err := requireModel("gini", tube); err != nil {
				return nil, err
			}
			return map[string]any{"predictions": slices.Clone(tube.Predictions)}, nil
		}), nil
	}, "predictions")
	return nil
}

// Estimate publishes the out-of-fold class probabilities.
type Estimate struct{ dependsOnModel }

func (Estimate) Name() string       { return "estimate" }
func (Estimate) Sections() []string { return []string{Section, "estimate_parameters"} }

func (Estimate) Draft(d *step.Drafter) error {
	d.Direct("gini", "simplify", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if err := requireClassifier("gini", tube); err != nil {
				return nil, err
			}
			return map[string]any{"probabilities": rows(tube.Probabilities)}, nil
		}), nil
	}, "probabilities")

	d.Direct("log", "simplify", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if err := requireClassifier("log", tube); err != nil {
				return nil, err
			}
			out := rows(tube.Probabilities)
			for _, row := range out {
				for j, p := range row {
					row[j] = math.Log(math.Max(p, minProbability))
				}
			}
			return map[string]any{"log_probabilities": out}, nil
		}), nil
	}, "log_probabilities")
	return nil
}
