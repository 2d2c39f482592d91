// Package tree implements CART decision trees and random forests for
// classification and regression, with impurity-based feature importances
// and decision-path access for tree explainers.
package tree

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	config
	state *model.StateManager

	nClasses_  int
	nFeatures_ int
	tree       *fittedTree
}

// NewDecisionTreeClassifier creates a classifier with gini impurity and
// unlimited depth unless overridden.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{config: defaultConfig("gini"), state: model.NewStateManager()}
	for _, opt := range opts {
		opt(&dt.config)
	}
	return dt
}

// Fit grows the tree. y holds class codes 0..k-1.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	const op = "DecisionTreeClassifier.Fit"
	if err := dt.validate(op, false); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	labels, err := columnToSlice(op, y, rows)
	if err != nil {
		return err
	}
	nClasses, err := countClasses(op, labels)
	if err != nil {
		return err
	}

	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	b, err := newBuilder(&dt.config, X, labels, nClasses, rand.New(rand.NewPCG(uint64(dt.randomState), 1)))
	if err != nil {
		return err
	}

	dt.state.Reset()
	dt.tree = b.fit(idx)
	dt.nClasses_ = nClasses
	dt.nFeatures_ = cols
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// Predict returns the most probable class for each row (n×1).
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxRows(proba), nil
}

// PredictProba returns the class distribution of the leaf each row lands in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, dt.nClasses_, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.SetRow(i, dt.tree.leafFor(x).value)
	}
	return out, nil
}

// Score returns the mean accuracy on X, y. Errors yield 0.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	return accuracy(pred, y)
}

// Classes returns the class codes seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	classes := make([]int, dt.nClasses_)
	for i := range classes {
		classes[i] = i
	}
	return classes
}

// GetFeatureImportances returns impurity-based importances normalized to
// sum to one, or nil before Fit.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if !dt.state.IsFitted() {
		return nil
	}
	return normalize(append([]float64(nil), dt.tree.importances...))
}

// GetDepth returns the depth of the fitted tree (root has depth 0).
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.depth
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.nLeaves
}

// DecisionPaths implements model.TreeModel.
func (dt *DecisionTreeClassifier) DecisionPaths(x []float64) ([][]model.PathStep, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "DecisionPaths"); err != nil {
		return nil, err
	}
	if err := dt.state.RequireFeatures("DecisionTreeClassifier.DecisionPaths", len(x)); err != nil {
		return nil, err
	}
	return [][]model.PathStep{dt.tree.path(x)}, nil
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.params()
}

// SetParams updates the hyperparameters.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}

func countClasses(op string, labels []float64) (int, error) {
	maxLabel := -1
	for _, v := range labels {
		if v < 0 || v != math.Trunc(v) {
			return 0, errors.NewValueError(op, "class labels must be non-negative integer codes")
		}
		if int(v) > maxLabel {
			maxLabel = int(v)
		}
	}
	return maxLabel + 1, nil
}

func argmaxRows(proba mat.Matrix) *mat.Dense {
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(best))
	}
	return out
}

func accuracy(pred, y mat.Matrix) float64 {
	rows, _ := pred.Dims()
	ry, _ := y.Dims()
	if rows == 0 || rows != ry {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

func dimensionError(op string, expected, got, axis int) error {
	return errors.NewDimensionError(op, expected, got, axis)
}

func valueError(op, msg string) error {
	return errors.NewValueError(op, msg)
}
