package model

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// Classifier is implemented by models that estimate class probabilities.
// Class labels are the integer codes 0..k-1 produced by the dataset loader.
type Classifier interface {
	Estimator

	// PredictProba returns an n×k matrix of probability estimates.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the unique classes seen during fitting.
	Classes() []int
}

// FeatureImportancer is implemented by models with impurity-based
// feature importances (trees and forests).
type FeatureImportancer interface {
	GetFeatureImportances() []float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// Task is the kind of supervised problem a run solves.
type Task int

const (
	Classification Task = iota
	Regression
)

func (t Task) String() string {
	if t == Regression {
		return "regressor"
	}
	return "classifier"
}

// ParseTask maps the model_type setting onto a Task.
func ParseTask(s string) (Task, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "classifier", "classification":
		return Classification, nil
	case "regressor", "regression":
		return Regression, nil
	default:
		return Classification, errors.NewValidationError("model_type", "must be classifier or regressor", s)
	}
}

// PathStep is one node visited by a sample on its way to a leaf.
type PathStep struct {
	// Feature is the split feature of the node, -1 at the leaf.
	Feature int
	// Value is the node output: class probabilities for classifiers,
	// a single mean for regressors.
	Value []float64
}

// TreeModel is implemented by trees and tree ensembles. DecisionPaths
// returns one root-to-leaf path per tree; the model output is the mean of
// the leaf values.
type TreeModel interface {
	DecisionPaths(x []float64) ([][]PathStep, error)
}
