package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// DecisionTreeRegressor is a CART regressor minimizing squared error.
type DecisionTreeRegressor struct {
	config
	state *model.StateManager
	tree  *fittedTree
}

// NewDecisionTreeRegressor creates a regression tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{config: defaultConfig("squared_error"), state: model.NewStateManager()}
	for _, opt := range opts {
		opt(&dt.config)
	}
	return dt
}

// Fit grows the tree on a continuous target.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	const op = "DecisionTreeRegressor.Fit"
	if err := dt.validate(op, true); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	target, err := columnToSlice(op, y, rows)
	if err != nil {
		return err
	}

	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	b, err := newBuilder(&dt.config, X, target, 0, rand.New(rand.NewPCG(uint64(dt.randomState), 1)))
	if err != nil {
		return err
	}

	dt.state.Reset()
	dt.tree = b.fit(idx)
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// Predict returns the leaf mean for each row (n×1).
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.Set(i, 0, dt.tree.leafFor(x).value[0])
	}
	return out, nil
}

// Score returns R² on X, y. Errors yield 0.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	return r2(pred, y)
}

// GetFeatureImportances returns normalized impurity-based importances.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if !dt.state.IsFitted() {
		return nil
	}
	return normalize(append([]float64(nil), dt.tree.importances...))
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.depth
}

// DecisionPaths implements model.TreeModel.
func (dt *DecisionTreeRegressor) DecisionPaths(x []float64) ([][]model.PathStep, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "DecisionPaths"); err != nil {
		return nil, err
	}
	if err := dt.state.RequireFeatures("DecisionTreeRegressor.DecisionPaths", len(x)); err != nil {
		return nil, err
	}
	return [][]model.PathStep{dt.tree.path(x)}, nil
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.params()
}

// SetParams updates the hyperparameters.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}

func r2(pred, y mat.Matrix) float64 {
	rows, _ := pred.Dims()
	ry, _ := y.Dims()
	if rows == 0 || rows != ry {
		return 0
	}
	p := mat.Col(nil, 0, pred)
	t := mat.Col(nil, 0, y)
	return stat.RSquaredFrom(p, t, nil)
}
