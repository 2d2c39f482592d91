package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// Scorer is a named metric usable by the measure, search and eli5
// techniques.
type Scorer struct {
	Name            string
	Task            model.Task
	GreaterIsBetter bool
	// NeedsProba marks scorers computed from class probabilities.
	NeedsProba bool

	fn func(yTrue, yPred []float64, proba mat.Matrix) (float64, error)
}

// Score evaluates the metric. proba is required only when NeedsProba.
func (s Scorer) Score(yTrue, yPred []float64, proba mat.Matrix) (float64, error) {
	if s.NeedsProba && proba == nil {
		return 0, errors.NewValueError(s.Name, "class probabilities are required")
	}
	return s.fn(yTrue, yPred, proba)
}

// Better reports whether score a beats score b.
func (s Scorer) Better(a, b float64) bool {
	if s.GreaterIsBetter {
		return a > b
	}
	return a < b
}

func vec(y []float64) *mat.VecDense {
	if len(y) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(y), y)
}

func labels(fn func(yTrue, yPred *mat.VecDense) (float64, error)) func([]float64, []float64, mat.Matrix) (float64, error) {
	return func(yTrue, yPred []float64, _ mat.Matrix) (float64, error) {
		return fn(vec(yTrue), vec(yPred))
	}
}

func probabilities(fn func(yTrue []float64, proba mat.Matrix) (float64, error)) func([]float64, []float64, mat.Matrix) (float64, error) {
	return func(yTrue, _ []float64, proba mat.Matrix) (float64, error) {
		return fn(yTrue, proba)
	}
}

var scorers = []Scorer{
	{Name: "mse", Task: model.Regression, fn: labels(MSE)},
	{Name: "rmse", Task: model.Regression, fn: labels(RMSE)},
	{Name: "mae", Task: model.Regression, fn: labels(MAE)},
	{Name: "median_absolute_error", Task: model.Regression, fn: labels(MedianAbsoluteError)},
	{Name: "r2", Task: model.Regression, GreaterIsBetter: true, fn: labels(R2Score)},
	{Name: "explained_variance", Task: model.Regression, GreaterIsBetter: true, fn: labels(ExplainedVarianceScore)},
	{Name: "max_error", Task: model.Regression, fn: labels(MaxError)},
	{Name: "msle", Task: model.Regression, fn: labels(MSLE)},

	{Name: "accuracy", Task: model.Classification, GreaterIsBetter: true, fn: labels(Accuracy)},
	{Name: "balanced_accuracy", Task: model.Classification, GreaterIsBetter: true, fn: labels(BalancedAccuracy)},
	{Name: "precision", Task: model.Classification, GreaterIsBetter: true, fn: labels(Precision)},
	{Name: "recall", Task: model.Classification, GreaterIsBetter: true, fn: labels(Recall)},
	{Name: "f1", Task: model.Classification, GreaterIsBetter: true, fn: labels(F1)},
	{Name: "matthews_corrcoef", Task: model.Classification, GreaterIsBetter: true, fn: labels(MatthewsCorrCoef)},
	{Name: "zero_one", Task: model.Classification, fn: labels(ZeroOneLoss)},
	{Name: "hamming", Task: model.Classification, fn: labels(HammingLoss)},
	{Name: "neg_log_loss", Task: model.Classification, GreaterIsBetter: true, NeedsProba: true,
		fn: probabilities(func(y []float64, p mat.Matrix) (float64, error) {
			v, err := LogLoss(y, p)
			return -v, err
		})},
	{Name: "brier_score_loss", Task: model.Classification, NeedsProba: true, fn: probabilities(BrierScore)},
	{Name: "roc_auc", Task: model.Classification, GreaterIsBetter: true, NeedsProba: true, fn: probabilities(ROCAUC)},
}

// Scorers returns every scorer for task in a fixed order.
func Scorers(task model.Task) []Scorer {
	var out []Scorer
	for _, s := range scorers {
		if s.Task == task {
			out = append(out, s)
		}
	}
	return out
}

// Names returns the scorer names for task.
func Names(task model.Task) []string {
	var out []string
	for _, s := range Scorers(task) {
		out = append(out, s.Name)
	}
	return out
}

// Lookup finds a scorer by name.
func Lookup(name string) (Scorer, bool) {
	for _, s := range scorers {
		if s.Name == name {
			return s, true
		}
	}
	return Scorer{}, false
}

// Default returns the scorer used when none is configured: accuracy for
// classification, r2 for regression.
func Default(task model.Task) Scorer {
	name := "accuracy"
	if task == model.Regression {
		name = "r2"
	}
	s, _ := Lookup(name)
	return s
}
