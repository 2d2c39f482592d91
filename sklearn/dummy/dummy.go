// Package dummy provides baseline estimators that ignore the features.
// They give the reference score every other model should beat.
package dummy

import (
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// DummyClassifier predicts the most frequent class and the class priors.
type DummyClassifier struct {
	state *model.StateManager

	classes_ []int
	priors_  []float64
	mode_    int
}

// NewDummyClassifier creates a most-frequent baseline.
func NewDummyClassifier() *DummyClassifier {
	return &DummyClassifier{state: model.NewStateManager()}
}

// Fit counts the classes of y. Ties go to the smallest class.
func (d *DummyClassifier) Fit(X, y mat.Matrix) error {
	const op = "DummyClassifier.Fit"
	rows, cols := X.Dims()
	if err := checkTarget(op, rows, y); err != nil {
		return err
	}

	counts := map[int]int{}
	d.classes_ = d.classes_[:0]
	for i := 0; i < rows; i++ {
		c := int(y.At(i, 0))
		if _, seen := counts[c]; !seen {
			d.classes_ = append(d.classes_, c)
		}
		counts[c]++
	}
	slices.Sort(d.classes_)

	d.priors_ = make([]float64, len(d.classes_))
	best := -1
	for k, c := range d.classes_ {
		d.priors_[k] = float64(counts[c]) / float64(rows)
		if counts[c] > best {
			best = counts[c]
			d.mode_ = c
		}
	}

	d.state.SetDimensions(cols, rows)
	d.state.SetFitted()
	return nil
}

// Predict returns the most frequent class for every row.
func (d *DummyClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := d.state.RequireFitted("DummyClassifier", "Predict"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, float64(d.mode_))
	}
	return out, nil
}

// PredictProba returns the class priors for every row.
func (d *DummyClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := d.state.RequireFitted("DummyClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(d.priors_), nil)
	for i := 0; i < rows; i++ {
		out.SetRow(i, d.priors_)
	}
	return out, nil
}

// Classes returns the sorted classes seen during Fit.
func (d *DummyClassifier) Classes() []int {
	return slices.Clone(d.classes_)
}

// GetParams returns the strategy.
func (d *DummyClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"strategy": "most_frequent"}
}

// DummyRegressor predicts the mean of the training target.
type DummyRegressor struct {
	state *model.StateManager
	mean_ float64
}

// NewDummyRegressor creates a mean baseline.
func NewDummyRegressor() *DummyRegressor {
	return &DummyRegressor{state: model.NewStateManager()}
}

// Fit stores the mean of y.
func (d *DummyRegressor) Fit(X, y mat.Matrix) error {
	const op = "DummyRegressor.Fit"
	rows, cols := X.Dims()
	if err := checkTarget(op, rows, y); err != nil {
		return err
	}
	d.mean_ = stat.Mean(mat.Col(nil, 0, y), nil)
	d.state.SetDimensions(cols, rows)
	d.state.SetFitted()
	return nil
}

// Predict returns the training mean for every row.
func (d *DummyRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := d.state.RequireFitted("DummyRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, d.mean_)
	}
	return out, nil
}

// Mean returns the fitted constant.
func (d *DummyRegressor) Mean() float64 { return d.mean_ }

// GetParams returns the strategy.
func (d *DummyRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"strategy": "mean"}
}

func checkTarget(op string, rows int, y mat.Matrix) error {
	if rows == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != rows {
		return errors.NewDimensionError(op, rows, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	return nil
}
