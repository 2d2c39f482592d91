// Package linear_model provides the logistic regression classifier used by
// the logit model technique.
package linear_model

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// LogisticRegression implements logistic regression for classification.
// Binary problems fit one weight vector; multiclass problems fit one
// vector per class (one-vs-rest) and normalize the scores with softmax.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Random seed, negative for a random start
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per class

	rand *rand.Rand
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		maxIter:      100,
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}
	lr.seed()
	return lr
}

func (lr *LogisticRegression) seed() {
	if lr.randomState >= 0 {
		lr.rand = rand.New(rand.NewPCG(uint64(lr.randomState), 0))
	} else {
		lr.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

func (lr *LogisticRegression) validate() error {
	switch lr.penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "supported penalties are l2 and none", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", lr.maxIter)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	const op = "LogisticRegression.Fit"
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}

	lr.state.Reset()
	lr.extractClasses(y)
	if lr.nClasses_ < 2 {
		return errors.NewValueError(op, "at least two classes are required")
	}
	lr.nFeatures_ = nFeatures
	lr.seed()
	lr.initializeWeights(nFeatures)

	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}

	// Binary problems fit the positive class only.
	targets := lr.classes_
	if lr.nClasses_ == 2 {
		targets = lr.classes_[1:]
	}
	for k, class := range targets {
		yBinary := make([]float64, nSamples)
		for i := range yBinary {
			if int(y.At(i, 0)) == class {
				yBinary[i] = 1
			}
		}
		if !lr.gradientDescent(rows, yBinary, k) {
			errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.nIter_[k],
				"gradient did not fall below tol; increase max_iter"))
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	lr.classes_ = lr.classes_[:0]
	for i := 0; i < rows; i++ {
		label := int(y.At(i, 0))
		if !slices.Contains(lr.classes_, label) {
			lr.classes_ = append(lr.classes_, label)
		}
	}
	slices.Sort(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

// initializeWeights initializes model weights with small random values
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	n := lr.nClasses_
	if n == 2 {
		n = 1
	}
	lr.coef_ = make([][]float64, n)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = lr.rand.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, n)
	lr.nIter_ = make([]int, n)
}

// gradientDescent fits coef_[k] and intercept_[k] against a 0/1 target and
// reports whether the largest gradient component fell below tol.
func (lr *LogisticRegression) gradientDescent(X [][]float64, target []float64, k int) bool {
	nSamples := len(X)
	weights := lr.coef_[k]
	intercept := &lr.intercept_[k]
	nFeatures := len(weights)

	baseLearningRate := 1.0
	gradWeights := make([]float64, nFeatures)

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			residual := sigmoid(linearScore(X[i], weights, *intercept)) - target[i]
			gradIntercept += residual
			for j, x := range X[i] {
				gradWeights[j] += residual * x
			}
		}
		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		// L2 shrinkage is applied as a proximal step.
		shrink := 1.0
		learningRate := baseLearningRate / (1.0 + 0.01*float64(iter))
		if lr.penalty == "l2" {
			shrink = 1 + learningRate/(lr.C*float64(nSamples))
		}
		for j := range weights {
			weights[j] = (weights[j] - learningRate*gradWeights[j]) / shrink
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}
		lr.nIter_[k] = iter + 1

		maxGrad := 0.0
		if lr.fitIntercept {
			maxGrad = math.Abs(gradIntercept)
		}
		for j, g := range gradWeights {
			if lr.penalty == "l2" {
				g += weights[j] / (lr.C * float64(nSamples))
			}
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			return true
		}
	}
	return false
}

func linearScore(x, w []float64, b float64) float64 {
	z := b
	for j, v := range x {
		z += v * w[j]
	}
	return z
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := proba.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < lr.nClasses_; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class, in the order
// of Classes.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	x := make([]float64, nFeatures)
	scores := make([]float64, lr.nClasses_)
	for i := 0; i < nSamples; i++ {
		mat.Row(x, i, X)
		if lr.nClasses_ == 2 {
			p := sigmoid(linearScore(x, lr.coef_[0], lr.intercept_[0]))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		for k := range scores {
			scores[k] = linearScore(x, lr.coef_[k], lr.intercept_[k])
		}
		lse := errors.LogSumExp(scores)
		for k, s := range scores {
			probas.Set(i, k, math.Exp(s-lse))
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the class labels seen during Fit, sorted.
func (lr *LogisticRegression) Classes() []int {
	return slices.Clone(lr.classes_)
}

// GetWeights returns the coefficients of a binary model, nil otherwise.
func (lr *LogisticRegression) GetWeights() []float64 {
	if !lr.state.IsFitted() || len(lr.coef_) != 1 {
		return nil
	}
	return slices.Clone(lr.coef_[0])
}

// GetIntercept returns the intercept of a binary model.
func (lr *LogisticRegression) GetIntercept() float64 {
	if !lr.state.IsFitted() || len(lr.intercept_) != 1 {
		return 0
	}
	return lr.intercept_[0]
}

// NIter returns the iterations run per fitted weight vector.
func (lr *LogisticRegression) NIter() []int {
	return slices.Clone(lr.nIter_)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters. Numbers may arrive as int,
// int64 or float64.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = asString(key, value)
		case "C":
			lr.C, err = asFloat(key, value)
		case "fit_intercept":
			b, ok := value.(bool)
			if !ok {
				err = errors.NewValidationError(key, "must be a bool", value)
			}
			lr.fitIntercept = b
		case "random_state":
			var f float64
			f, err = asFloat(key, value)
			lr.randomState = int64(f)
		case "max_iter":
			var f float64
			f, err = asFloat(key, value)
			lr.maxIter = int(f)
		case "tol":
			lr.tol, err = asFloat(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asFloat(key string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errors.NewValidationError(key, "must be a number", v)
	}
}

func asString(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(key, "must be a string", v)
	}
	return s, nil
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
