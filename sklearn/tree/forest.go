package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/parallel"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// forest holds the trees shared by the classifier and regressor ensembles.
type forest struct {
	config
	state *model.StateManager
	trees []*fittedTree
}

func (f *forest) grow(op string, X mat.Matrix, target []float64, nClasses int) error {
	rows, cols := X.Dims()
	f.trees = make([]*fittedTree, f.nEstimators)
	errs := make([]error, f.nEstimators)

	// Each tree owns its generator so results do not depend on scheduling.
	parallel.ForEach(f.nEstimators, f.nJobs, func(t int) {
		rng := rand.New(rand.NewPCG(uint64(f.randomState), uint64(t)+1))
		idx := make([]int, rows)
		for i := range idx {
			if f.bootstrap {
				idx[i] = rng.IntN(rows)
			} else {
				idx[i] = i
			}
		}
		b, err := newBuilder(&f.config, X, target, nClasses, rng)
		if err != nil {
			errs[t] = err
			return
		}
		f.trees[t] = b.fit(idx)
	})
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, op)
		}
	}
	f.state.SetDimensions(cols, rows)
	f.state.SetFitted()
	return nil
}

func (f *forest) importances(nFeatures int) []float64 {
	if !f.state.IsFitted() {
		return nil
	}
	out := make([]float64, nFeatures)
	for _, t := range f.trees {
		imp := normalize(append([]float64(nil), t.importances...))
		for j, v := range imp {
			out[j] += v / float64(len(f.trees))
		}
	}
	return normalize(out)
}

// meanLeafValue averages the leaf values of every tree for one sample.
func (f *forest) meanLeafValue(x []float64, width int) []float64 {
	out := make([]float64, width)
	for _, t := range f.trees {
		for j, v := range t.leafFor(x).value {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(f.trees))
	}
	return out
}

func (f *forest) paths(name string, x []float64) ([][]model.PathStep, error) {
	if err := f.state.RequireFitted(name, "DecisionPaths"); err != nil {
		return nil, err
	}
	if err := f.state.RequireFeatures(name+".DecisionPaths", len(x)); err != nil {
		return nil, err
	}
	out := make([][]model.PathStep, len(f.trees))
	for i, t := range f.trees {
		out[i] = t.path(x)
	}
	return out, nil
}

// RandomForestClassifier averages the class distributions of bootstrapped
// CART classifiers.
type RandomForestClassifier struct {
	forest
	nClasses_  int
	nFeatures_ int
}

// NewRandomForestClassifier creates a forest of 100 gini trees trying
// sqrt(n_features) features per split unless overridden.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	cfg := defaultConfig("gini")
	cfg.maxFeatures = "sqrt"
	rf := &RandomForestClassifier{forest: forest{config: cfg, state: model.NewStateManager()}}
	for _, opt := range opts {
		opt(&rf.config)
	}
	return rf
}

// Fit grows every tree concurrently.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	const op = "RandomForestClassifier.Fit"
	if err := rf.validate(op, false); err != nil {
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
	rf.state.Reset()
	rf.nClasses_ = nClasses
	rf.nFeatures_ = cols
	return rf.grow(op, X, labels, nClasses)
}

// PredictProba returns the mean class distribution over trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, rf.nClasses_, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.SetRow(i, rf.meanLeafValue(x, rf.nClasses_))
	}
	return out, nil
}

// Predict returns the most probable class for each row.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxRows(proba), nil
}

// Score returns the mean accuracy on X, y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	return accuracy(pred, y)
}

// Classes returns the class codes seen during Fit.
func (rf *RandomForestClassifier) Classes() []int {
	classes := make([]int, rf.nClasses_)
	for i := range classes {
		classes[i] = i
	}
	return classes
}

// GetFeatureImportances returns the mean normalized importances of the trees.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return rf.importances(rf.nFeatures_)
}

// DecisionPaths implements model.TreeModel.
func (rf *RandomForestClassifier) DecisionPaths(x []float64) ([][]model.PathStep, error) {
	return rf.paths("RandomForestClassifier", x)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return rf.forestParams()
}

// SetParams updates the hyperparameters.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	return rf.setParams(params)
}

// RandomForestRegressor averages bootstrapped regression trees.
type RandomForestRegressor struct {
	forest
	nFeatures_ int
}

// NewRandomForestRegressor creates a forest of 100 squared-error trees
// trying every feature per split unless overridden.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{forest: forest{config: defaultConfig("squared_error"), state: model.NewStateManager()}}
	for _, opt := range opts {
		opt(&rf.config)
	}
	return rf
}

// Fit grows every tree concurrently.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	const op = "RandomForestRegressor.Fit"
	if err := rf.validate(op, true); err != nil {
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
	rf.state.Reset()
	rf.nFeatures_ = cols
	return rf.grow(op, X, target, 0)
}

// Predict returns the mean prediction over trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.Set(i, 0, rf.meanLeafValue(x, 1)[0])
	}
	return out, nil
}

// Score returns R² on X, y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	return r2(pred, y)
}

// GetFeatureImportances returns the mean normalized importances of the trees.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	return rf.importances(rf.nFeatures_)
}

// DecisionPaths implements model.TreeModel.
func (rf *RandomForestRegressor) DecisionPaths(x []float64) ([][]model.PathStep, error) {
	return rf.paths("RandomForestRegressor", x)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return rf.forestParams()
}

// SetParams updates the hyperparameters.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return rf.setParams(params)
}
