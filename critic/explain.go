package critic

import (
	"context"
	"runtime"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/parallel"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/metrics"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

// Explain attributes the model output to the features.
type Explain struct{ dependsOnModel }

func (Explain) Name() string       { return "explain" }
func (Explain) Sections() []string { return []string{Section, "explain_parameters"} }

func (Explain) Draft(d *step.Drafter) error {
	d.Direct("gini", "tree", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			if err := requireModel("gini", tube); err != nil {
				return nil, err
			}
			imp, ok := tube.Model.(model.FeatureImportancer)
			if !ok {
				return nil, errors.NewConfigurationError("gini", "", tube.ModelName+" has no impurity importances")
			}
			return map[string]any{"feature_importances": imp.GetFeatureImportances()}, nil
		}), nil
	}, "feature_importances")

	d.Direct("eli5", "simplify", permutationImportance, "feature_importances", "importances_std")
	d.Direct("shap", "simplify", shapValues, "values", "base_value")
	d.Direct("shap_interaction", "simplify", shapInteractionValues, "interaction_values")
	d.Deferred("skater", "skater", "Interpretation", "feature_importances")
	return nil
}

// permutationImportance measures how much the score drops when one
// feature column is shuffled, n_repeats times per feature.
func permutationImportance(p *settings.Section) (step.Technique, error) {
	repeats, err := p.Int("n_repeats", 5)
	if err != nil {
		return nil, err
	}
	if repeats < 1 {
		return nil, errors.NewConfigurationError("eli5", "n_repeats", "must be >= 1")
	}
	workers, err := p.Int("n_jobs", 0)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scoring := p.String("scoring", "")

	return step.TechniqueFunc(func(ctx context.Context, tube *step.Context) (map[string]any, error) {
		if err := requireModel("eli5", tube); err != nil {
			return nil, err
		}
		scorer := metrics.Default(tube.Task)
		if scoring != "" {
			s, ok := metrics.Lookup(scoring)
			if !ok || s.Task != tube.Task {
				return nil, errors.NewConfigurationError("eli5", "scoring", "unknown metric "+scoring)
			}
			scorer = s
		}

		X := tube.EvalFeatures()
		y := tube.EvalTarget()
		k := tube.Data.NumClasses()
		evaluate := func(X mat.Matrix) (float64, error) {
			pred, proba, err := predictions(tube.Model, X, k)
			if err != nil {
				return 0, err
			}
			if proba == nil {
				return scorer.Score(y, pred, nil)
			}
			return scorer.Score(y, pred, proba)
		}
		baseline, err := evaluate(X)
		if err != nil {
			return nil, err
		}

		n, nFeatures := X.Dims()
		mean := make([]float64, nFeatures)
		std := make([]float64, nFeatures)
		errs := make([]error, nFeatures)
		parallel.ForEach(nFeatures, workers, func(j int) {
			rng := tube.Rand(streamEli5<<32 | uint64(j))
			drops := make([]float64, repeats)
			shuffled := mat.DenseCopyOf(X)
			col := mat.Col(nil, j, X)
			for r := range drops {
				if err := ctx.Err(); err != nil {
					errs[j] = err
					return
				}
				rng.Shuffle(n, func(a, b int) { col[a], col[b] = col[b], col[a] })
				shuffled.SetCol(j, col)
				s, err := evaluate(shuffled)
				if err != nil {
					errs[j] = err
					return
				}
				if scorer.GreaterIsBetter {
					drops[r] = baseline - s
				} else {
					drops[r] = s - baseline
				}
			}
			mean[j], std[j] = stat.PopMeanStdDev(drops, nil)
		})
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{"feature_importances": mean, "importances_std": std}, nil
	}), nil
}
