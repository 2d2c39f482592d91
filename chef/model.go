package chef

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/linear"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
	"github.com/YuminosukeSato/simplify/settings"
	"github.com/YuminosukeSato/simplify/sklearn/dummy"
	linearmodel "github.com/YuminosukeSato/simplify/sklearn/linear_model"
	"github.com/YuminosukeSato/simplify/sklearn/tree"
)

// Model fits the estimator. Each fold is fitted on its training rows and
// predicts its test rows, giving out-of-fold predictions; the final model
// is then refitted on the training rows of every fold.
type Model struct{}

// Models lists the model techniques.
var Models = []string{"baseline", "ols", "ridge", "logit", "decision_tree", "random_forest"}

func (Model) Name() string       { return "model" }
func (Model) Sections() []string { return []string{Section, "model_parameters"} }

func (Model) Draft(d *step.Drafter) error {
	for _, name := range Models {
		d.Direct(name, library(name), modelFactory(name), "estimator")
	}
	// gradient boosting backends are linked in by the caller when available
	d.Deferred("xgboost", "xgboost", "XGBModel", "estimator")
	d.Deferred("lightgbm", "lightgbm", "LGBMModel", "estimator")
	return nil
}

func library(name string) string {
	switch name {
	case "baseline":
		return "dummy"
	case "ols", "ridge":
		return "linear"
	case "logit":
		return "linear_model"
	default:
		return "tree"
	}
}

// BuildFunc creates an unfitted estimator for a task.
type BuildFunc func(task model.Task, p *settings.Section) (model.Estimator, error)

// Technique turns build into a model technique: the estimator is
// cross-fitted over the tube's folds and refitted on the training rows.
// Backends provided to the registry catalog under a deferred model name
// use it to behave like the built-in models.
func Technique(name string, build BuildFunc) step.Factory {
	return func(p *settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(ctx context.Context, tube *step.Context) (map[string]any, error) {
			if err := fitWith(ctx, tube, name, p, build); err != nil {
				return nil, err
			}
			return map[string]any{"estimator": tube.Model}, nil
		}), nil
	}
}

func builtin(name string) BuildFunc {
	return func(task model.Task, p *settings.Section) (model.Estimator, error) {
		return Build(name, task, p)
	}
}

func modelFactory(name string) step.Factory {
	return Technique(name, builtin(name))
}

// Build creates an unfitted estimator. Ranges in p resolve to their
// midpoint.
func Build(name string, task model.Task, p *settings.Section) (model.Estimator, error) {
	seed, err := seedOf(p)
	if err != nil {
		return nil, err
	}
	fitIntercept, err := p.Bool("fit_intercept", true)
	if err != nil {
		return nil, err
	}

	switch name {
	case "baseline":
		if task == model.Regression {
			return dummy.NewDummyRegressor(), nil
		}
		return dummy.NewDummyClassifier(), nil

	case "ols", "ridge":
		if task != model.Regression {
			return nil, errors.NewConfigurationError(name, "", name+" supports regressors only")
		}
		alpha := 0.0
		if name == "ridge" {
			if alpha, err = p.Float("alpha", 1); err != nil {
				return nil, err
			}
		}
		return linear.NewLinearRegression(linear.WithFitIntercept(fitIntercept), linear.WithAlpha(alpha)), nil

	case "logit":
		if task != model.Classification {
			return nil, errors.NewConfigurationError(name, "", "logit supports classifiers only")
		}
		c, err := p.Float("C", 1)
		if err != nil {
			return nil, err
		}
		maxIter, err := p.Int("max_iter", 100)
		if err != nil {
			return nil, err
		}
		tol, err := p.Float("tol", 1e-4)
		if err != nil {
			return nil, err
		}
		return linearmodel.NewLogisticRegression(
			linearmodel.WithLRPenalty(p.String("penalty", "l2")),
			linearmodel.WithLRC(c),
			linearmodel.WithLRMaxIter(maxIter),
			linearmodel.WithLRTol(tol),
			linearmodel.WithLogisticFitIntercept(fitIntercept),
			linearmodel.WithLRRandomState(seed),
		), nil

	case "decision_tree", "random_forest":
		opts, err := treeOptions(task, p, seed)
		if err != nil {
			return nil, err
		}
		switch {
		case name == "decision_tree" && task == model.Regression:
			return tree.NewDecisionTreeRegressor(opts...), nil
		case name == "decision_tree":
			return tree.NewDecisionTreeClassifier(opts...), nil
		case task == model.Regression:
			return tree.NewRandomForestRegressor(opts...), nil
		default:
			return tree.NewRandomForestClassifier(opts...), nil
		}
	}
	return nil, errors.NewUnknownTechniqueError("model", name, Models)
}

func treeOptions(task model.Task, p *settings.Section, seed int64) ([]tree.Option, error) {
	criterion := "gini"
	if task == model.Regression {
		criterion = "squared_error"
	}
	opts := []tree.Option{
		tree.WithCriterion(p.String("criterion", criterion)),
		tree.WithMaxFeatures(p.String("max_features", "")),
		tree.WithRandomState(seed),
	}
	ints := []struct {
		key  string
		def  int
		with func(int) tree.Option
	}{
		{"max_depth", 0, tree.WithMaxDepth},
		{"min_samples_split", 2, tree.WithMinSamplesSplit},
		{"min_samples_leaf", 1, tree.WithMinSamplesLeaf},
		{"n_estimators", 100, tree.WithNEstimators},
		{"n_jobs", 0, tree.WithNJobs},
	}
	for _, o := range ints {
		v, err := p.Int(o.key, o.def)
		if err != nil {
			return nil, err
		}
		opts = append(opts, o.with(v))
	}
	bootstrap, err := p.Bool("bootstrap", true)
	if err != nil {
		return nil, err
	}
	return append(opts, tree.WithBootstrap(bootstrap)), nil
}

// outOfFold holds predictions for the test rows of a set of folds.
type outOfFold struct {
	eval        []int
	predictions []float64
	// probabilities has one column per dataset class; nil for regressors.
	probabilities *mat.Dense
}

// crossFit fits a fresh estimator per fold and predicts its test rows.
func crossFit(ctx context.Context, data *dataset.Dataset, folds []dataset.Fold, build func() (model.Estimator, error)) (*outOfFold, error) {
	eval := dataset.EvalIndex(folds)
	pos := make(map[int]int, len(eval))
	for i, r := range eval {
		pos[r] = i
	}
	out := &outOfFold{eval: eval, predictions: make([]float64, len(eval))}
	k := data.NumClasses()

	for _, f := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(f.Train) == 0 || len(f.Test) == 0 {
			continue
		}
		est, err := build()
		if err != nil {
			return nil, err
		}
		if err := est.Fit(data.Rows(f.Train), data.TargetMatrix(f.Train)); err != nil {
			return nil, err
		}
		X := data.Rows(f.Test)
		pred, err := est.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, r := range f.Test {
			out.predictions[pos[r]] = pred.At(i, 0)
		}

		clf, ok := est.(model.Classifier)
		if !ok || k == 0 {
			continue
		}
		proba, err := clf.PredictProba(X)
		if err != nil {
			return nil, err
		}
		if out.probabilities == nil {
			out.probabilities = mat.NewDense(len(eval), k, nil)
		}
		// A training partition may miss some classes; their columns stay 0.
		for j, c := range clf.Classes() {
			if c < 0 || c >= k {
				continue
			}
			for i, r := range f.Test {
				out.probabilities.Set(pos[r], c, proba.At(i, j))
			}
		}
	}
	return out, nil
}

// fitTube cross-fits the named model on the tube's folds, refits it on
// every training row and stores the result on the tube.
func fitTube(ctx context.Context, tube *step.Context, name string, p *settings.Section) error {
	return fitWith(ctx, tube, name, p, builtin(name))
}

func fitWith(ctx context.Context, tube *step.Context, name string, p *settings.Section, b BuildFunc) error {
	if err := requireFeatures("model", tube.Data); err != nil {
		return err
	}
	build := func() (model.Estimator, error) { return b(tube.Task, p) }

	start := time.Now()
	folds := tube.Splits()
	oof, err := crossFit(ctx, tube.Data, folds, build)
	if err != nil {
		return err
	}

	final, err := build()
	if err != nil {
		return err
	}
	rows := refitRows(folds)
	if err := final.Fit(tube.Data.Rows(rows), tube.Data.TargetMatrix(rows)); err != nil {
		return err
	}

	tube.Model = final
	tube.ModelName = name
	tube.ModelParams = p.Params()
	tube.Predictions = oof.predictions
	tube.Probabilities = oof.probabilities
	tube.EvalIndex = oof.eval

	log.GetLoggerWithName("chef").Debug("model fitted",
		log.ModelNameKey, name,
		log.TubeKey, tube.Tube,
		log.FoldsKey, len(folds),
		log.SamplesKey, len(rows),
		log.FeaturesKey, tube.Data.NumFeatures(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}
