package critic

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/metrics"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
	"github.com/YuminosukeSato/simplify/settings"
)

// Measure scores the out-of-fold predictions. Every metric is a technique.
type Measure struct{ dependsOnModel }

func (Measure) Name() string       { return "measure" }
func (Measure) Sections() []string { return []string{Section, "measure_parameters"} }

func (Measure) Draft(d *step.Drafter) error {
	for _, task := range []model.Task{model.Classification, model.Regression} {
		for _, s := range metrics.Scorers(task) {
			d.Direct(s.Name, "metrics", measurer(s), "score")
		}
	}
	return nil
}

func measurer(s metrics.Scorer) step.Factory {
	return func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if err := requireModel(s.Name, tube); err != nil {
				return nil, err
			}
			if s.Task != tube.Task {
				return nil, errors.NewConfigurationError(s.Name, "", fmt.Sprintf("%s metric used on a %s", s.Task, tube.Task))
			}
			var proba mat.Matrix
			if tube.Probabilities != nil {
				proba = tube.Probabilities
			}
			v, err := s.Score(tube.EvalTarget(), tube.Predictions, proba)
			if err != nil {
				return nil, err
			}
			log.GetLoggerWithName("critic").Debug("measured",
				log.TubeKey, tube.Tube,
				log.TechniqueKey, s.Name,
				log.ScoreKey, v,
			)
			return map[string]any{"score": v}, nil
		}), nil
	}
}

// Report summarises classification errors.
type Report struct{ dependsOnModel }

func (Report) Name() string       { return "report" }
func (Report) Sections() []string { return []string{Section, "report_parameters"} }

func (Report) Draft(d *step.Drafter) error {
	d.Direct("confusion", "metrics", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if err := requireClassifier("confusion", tube); err != nil {
				return nil, err
			}
			cm, err := metrics.ConfusionMatrix(vec(tube.EvalTarget()), vec(tube.Predictions), tube.Data.NumClasses())
			if err != nil {
				return nil, err
			}
			return map[string]any{"confusion_matrix": rows(cm)}, nil
		}), nil
	}, "confusion_matrix")

	d.Direct("classification", "metrics", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if err := requireClassifier("classification", tube); err != nil {
				return nil, err
			}
			r, err := metrics.ClassificationReport(vec(tube.EvalTarget()), vec(tube.Predictions), tube.Data.Classes)
			if err != nil {
				return nil, err
			}
			return map[string]any{"classification_report": r}, nil
		}), nil
	}, "classification_report")
	return nil
}

func vec(v []float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}
