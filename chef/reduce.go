package chef

import (
	"context"
	"math"
	"slices"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/parallel"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
	"github.com/YuminosukeSato/simplify/settings"
	fs "github.com/YuminosukeSato/simplify/sklearn/feature_selection"
)

// Reduce drops numeric features. Selectors learn from the training rows
// only; the dropped columns disappear from every row of the tube.
//
// kbest, rfe and rfecv leave a tube alone when it already has no more
// features than they would keep.
type Reduce struct{}

func (Reduce) Name() string       { return "reduce" }
func (Reduce) Sections() []string { return []string{Section, "reduce_parameters"} }

func (Reduce) Draft(d *step.Drafter) error {
	d.Direct("kbest", "feature_selection", univariate("kbest", func(p *settings.Section) (selector, error) {
		k, err := p.Int("k", 10)
		if err != nil {
			return nil, err
		}
		if k < 1 {
			return nil, errors.NewConfigurationError("kbest", "k", "must be >= 1")
		}
		return func(scores, _ []float64) []int { return fs.SelectKBest(scores, k) }, nil
	}), "columns")
	d.Direct("fdr", "feature_selection", univariate("fdr", alphaSelector("fdr", fs.SelectFdr)), "columns")
	d.Direct("fpr", "feature_selection", univariate("fpr", alphaSelector("fpr", fs.SelectFpr)), "columns")
	d.Direct("custom", "feature_selection", fromModel, "columns")
	d.Direct("rfe", "feature_selection", eliminate(false), "columns")
	d.Direct("rfecv", "feature_selection", eliminate(true), "columns")

	none(d, func(tube *step.Context) map[string]any {
		return map[string]any{"columns": slices.Clone(tube.Data.Features)}
	}, "columns")
	return nil
}

// selector picks feature positions from univariate scores and p-values.
type selector func(scores, pvalues []float64) []int

func alphaSelector(technique string, sel func(pvalues []float64, alpha float64) []int) func(p *settings.Section) (selector, error) {
	return func(p *settings.Section) (selector, error) {
		alpha, err := p.Float("alpha", 0.05)
		if err != nil {
			return nil, err
		}
		if alpha <= 0 || alpha > 1 {
			return nil, errors.NewConfigurationError(technique, "alpha", "must be in (0, 1]")
		}
		return func(_, pvalues []float64) []int { return sel(pvalues, alpha) }, nil
	}
}

// scoreFuncs maps score_func names to univariate tests and the task they
// apply to.
var scoreFuncs = map[string]struct {
	fn   fs.ScoreFunc
	task model.Task
}{
	"f_classif":    {fs.FClassif, model.Classification},
	"chi2":         {fs.Chi2, model.Classification},
	"f_regression": {fs.FRegression, model.Regression},
}

func scoreFunc(technique, name string, task model.Task) (fs.ScoreFunc, error) {
	if name == "" {
		name = "f_classif"
		if task == model.Regression {
			name = "f_regression"
		}
	}
	sf, ok := scoreFuncs[name]
	if !ok || sf.task != task {
		return nil, errors.NewConfigurationError(technique, "score_func", "no "+task.String()+" score function "+name)
	}
	return sf.fn, nil
}

func univariate(name string, build func(p *settings.Section) (selector, error)) step.Factory {
	return func(p *settings.Section) (step.Technique, error) {
		sel, err := build(p)
		if err != nil {
			return nil, err
		}
		k, err := p.Int("k", 10)
		if err != nil {
			return nil, err
		}
		return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
			data := tube.Data
			if err := requireFeatures("reduce", data); err != nil {
				return nil, err
			}
			if name == "kbest" && data.NumFeatures() <= k {
				return kept(data), nil
			}
			fn, err := scoreFunc(name, p.String("score_func", ""), tube.Task)
			if err != nil {
				return nil, err
			}
			rows := tube.TrainIndex()
			scores, pvalues, err := fn(data.Rows(rows), data.Target(rows))
			if err != nil {
				return nil, err
			}
			return keep(name, tube, sel(scores, pvalues))
		}), nil
	}
}

// selectionKeys are read by the reduce techniques themselves and never
// reach the estimator.
var selectionKeys = []string{"estimator", "threshold", "max_features", "n_features_to_select",
	"min_features_to_select", "step", "cv", "scoring"}

// estimatorOf returns the builder of the model technique named by the
// estimator parameter. Its hyperparameters come from the same section.
func estimatorOf(technique string, p *settings.Section) (func(task model.Task) func() (model.Estimator, error), error) {
	name := p.String("estimator", "decision_tree")
	if !slices.Contains(Models, name) || name == "baseline" {
		return nil, errors.NewConfigurationError(technique, "estimator", "no feature importances from model "+name)
	}
	params := p.Merge()
	for _, key := range selectionKeys {
		params.Delete(key)
	}
	return func(task model.Task) func() (model.Estimator, error) {
		return func() (model.Estimator, error) { return Build(name, task, params) }
	}, nil
}

func fromModel(p *settings.Section) (step.Technique, error) {
	builder, err := estimatorOf("custom", p)
	if err != nil {
		return nil, err
	}
	spec := p.String("threshold", "mean")
	maxFeatures, err := p.Int("max_features", 0)
	if err != nil {
		return nil, err
	}
	return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
		data := tube.Data
		if err := requireFeatures("reduce", data); err != nil {
			return nil, err
		}
		est, err := builder(tube.Task)()
		if err != nil {
			return nil, err
		}
		rows := tube.TrainIndex()
		if err := est.Fit(data.Rows(rows), data.TargetMatrix(rows)); err != nil {
			return nil, err
		}
		imp, err := fs.Importances(est)
		if err != nil {
			return nil, err
		}
		threshold, err := fs.Threshold(imp, spec)
		if err != nil {
			return nil, errors.WrapConfigurationError(err, "custom", "threshold", "invalid threshold")
		}
		return keep("custom", tube, fs.SelectFromModel(imp, threshold, maxFeatures))
	}), nil
}

func eliminate(cv bool) step.Factory {
	technique := "rfe"
	if cv {
		technique = "rfecv"
	}
	return func(p *settings.Section) (step.Technique, error) {
		builder, err := estimatorOf(technique, p)
		if err != nil {
			return nil, err
		}
		target := 10
		if cv {
			target = 1
		}
		key := "n_features_to_select"
		if cv {
			key = "min_features_to_select"
		}
		if target, err = p.Int(key, target); err != nil {
			return nil, err
		}
		stepSize, err := p.Int("step", 1)
		if err != nil {
			return nil, err
		}
		if target < 1 || stepSize < 1 {
			return nil, errors.NewConfigurationError(technique, "", key+" and step must be >= 1")
		}
		folds, err := p.Int("cv", 3)
		if err != nil {
			return nil, err
		}
		if cv && folds < 2 {
			return nil, errors.NewConfigurationError(technique, "cv", "must be >= 2")
		}
		scoring := p.String("scoring", "")

		return step.TechniqueFunc(func(ctx context.Context, tube *step.Context) (map[string]any, error) {
			data := tube.Data
			if err := requireFeatures("reduce", data); err != nil {
				return nil, err
			}
			if data.NumFeatures() <= target {
				return kept(data), nil
			}
			rfe := fs.RFE{Build: builder(tube.Task), NFeatures: target, Step: stepSize}
			if cv {
				size, err := bestSize(ctx, tube, rfe, folds, scoring)
				if err != nil {
					return nil, err
				}
				rfe.NFeatures = size
			}
			rows := tube.TrainIndex()
			idx, err := rfe.Select(ctx, data.Rows(rows), data.TargetMatrix(rows))
			if err != nil {
				return nil, err
			}
			return keep(technique, tube, idx)
		}), nil
	}
}

// bestSize runs the elimination inside each of cv folds of the training
// rows, scores every intermediate feature set on the held-out rows, and
// returns the size with the best mean score. Ties go to fewer features.
func bestSize(ctx context.Context, tube *step.Context, rfe fs.RFE, cv int, scoring string) (int, error) {
	scorer, err := pickScorer("rfecv", scoring, tube.Task)
	if err != nil {
		return 0, err
	}
	folds, err := innerFolds(tube, cv, tube.Rand(streamReduce))
	if err != nil {
		return 0, err
	}
	data := tube.Data

	paths := make([][][]int, len(folds))
	scores := make([][]float64, len(folds))
	errs := make([]error, len(folds))
	parallel.ForEach(len(folds), len(folds), func(i int) {
		f := folds[i]
		paths[i], errs[i] = rfe.Path(ctx, data.Rows(f.Train), data.TargetMatrix(f.Train))
		if errs[i] != nil {
			return
		}
		scores[i] = make([]float64, len(paths[i]))
		for s, support := range paths[i] {
			sub := data.Clone()
			if errs[i] = sub.KeepColumns(support); errs[i] != nil {
				return
			}
			oof, err := crossFit(ctx, sub, []dataset.Fold{f}, rfe.Build)
			if err != nil {
				errs[i] = err
				return
			}
			if scores[i][s], errs[i] = score(scorer, sub.Target(oof.eval), oof); errs[i] != nil {
				return
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}

	best, bestScore := -1, math.NaN()
	for s := range paths[0] {
		var sum float64
		for i := range folds {
			sum += scores[i][s]
		}
		mean := sum / float64(len(folds))
		if math.IsNaN(mean) {
			continue
		}
		if best < 0 || !scorer.Better(bestScore, mean) {
			best, bestScore = s, mean
		}
	}
	if best < 0 {
		return 0, errors.NewValueError("rfecv", "every feature set scored NaN")
	}
	size := len(paths[0][best])
	log.GetLoggerWithName("chef").Debug("rfecv picked feature count",
		log.TubeKey, tube.Tube,
		log.FeaturesKey, size,
		"score", bestScore,
	)
	return size, nil
}

// keep restricts the tube's features to idx and reports the survivors.
func keep(technique string, tube *step.Context, idx []int) (map[string]any, error) {
	if len(idx) == 0 {
		return nil, errors.NewValueError("reduce."+technique, "no feature passed the selection")
	}
	if len(idx) < tube.Data.NumFeatures() {
		if err := tube.Data.KeepColumns(idx); err != nil {
			return nil, err
		}
	}
	return kept(tube.Data), nil
}

func kept(data *dataset.Dataset) map[string]any {
	return map[string]any{"columns": slices.Clone(data.Features)}
}
