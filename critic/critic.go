// Package critic holds the steps that evaluate a fitted tube: predict,
// estimate, explain, measure and report.
//
// Critic steps run every selected technique on each tube and only read the
// model and its out-of-fold predictions; their outputs are the artifacts
// exported by the report package.
package critic

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// Section is the settings section listing the critic steps.
const Section = "critic"

// Random streams of the tube seed; the chef package uses 1..3.
const (
	streamEli5 uint64 = 16 + iota
	streamShap
)

// Definitions returns every critic step.
func Definitions() []step.Definition {
	return []step.Definition{Predict{}, Estimate{}, Explain{}, Measure{}, Report{}}
}

// dependsOnModel is embedded by every critic step.
type dependsOnModel struct{}

func (dependsOnModel) DependsOn() []string { return []string{"model"} }

// requireModel fails when no model step has run on the tube.
func requireModel(technique string, tube *step.Context) error {
	if tube.Model == nil || tube.Predictions == nil {
		return errors.NewConfigurationError(technique, "", "a model step must run first")
	}
	return nil
}

// requireClassifier fails for regression tubes.
func requireClassifier(technique string, tube *step.Context) error {
	if err := requireModel(technique, tube); err != nil {
		return err
	}
	if tube.Task != model.Classification || tube.Probabilities == nil {
		return errors.NewConfigurationError(technique, "", "needs a classifier with class probabilities")
	}
	return nil
}

// rows converts a matrix into row slices for export.
func rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// predictions runs the fitted model on X. Class probabilities are widened
// to one column per dataset class; nil for regressors.
func predictions(m model.Estimator, X mat.Matrix, nClasses int) ([]float64, *mat.Dense, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	n, _ := X.Dims()
	out := mat.Col(nil, 0, pred)

	clf, ok := m.(model.Classifier)
	if !ok || nClasses == 0 {
		return out, nil, nil
	}
	p, err := clf.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}
	proba := mat.NewDense(n, nClasses, nil)
	for j, c := range clf.Classes() {
		if c < 0 || c >= nClasses {
			continue
		}
		for i := 0; i < n; i++ {
			proba.Set(i, c, p.At(i, j))
		}
	}
	return out, proba, nil
}
