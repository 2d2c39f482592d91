package tree

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// config holds the hyperparameters shared by single trees and forests.
type config struct {
	criterion       string // "gini", "entropy" or "squared_error"
	maxDepth        int    // 0: unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "", "sqrt", "log2" or an integer count
	randomState     int64

	// forest only
	nEstimators int
	bootstrap   bool
	nJobs       int
}

func defaultConfig(criterion string) config {
	return config{
		criterion:       criterion,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		nEstimators:     100,
		bootstrap:       true,
	}
}

// Option configures a tree or forest.
type Option func(*config)

// WithCriterion sets the impurity criterion ("gini", "entropy" for
// classifiers, "squared_error" for regressors).
func WithCriterion(criterion string) Option {
	return func(c *config) { c.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(c *config) { c.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(c *config) { c.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(c *config) { c.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are tried per split:
// "sqrt", "log2", an integer count, or "" for all.
func WithMaxFeatures(spec string) Option {
	return func(c *config) { c.maxFeatures = spec }
}

// WithRandomState sets the seed for feature sampling and bootstrapping.
func WithRandomState(seed int64) Option {
	return func(c *config) { c.randomState = seed }
}

// WithNEstimators sets the number of trees in a forest.
func WithNEstimators(n int) Option {
	return func(c *config) { c.nEstimators = n }
}

// WithBootstrap toggles bootstrap sampling in a forest.
func WithBootstrap(b bool) Option {
	return func(c *config) { c.bootstrap = b }
}

// WithNJobs sets how many trees are fitted concurrently. 0 uses every core.
func WithNJobs(n int) Option {
	return func(c *config) { c.nJobs = n }
}

func (c *config) validate(op string, regression bool) error {
	switch c.criterion {
	case "gini", "entropy":
		if regression {
			return errors.NewValidationError("criterion", "regressors support squared_error only", c.criterion)
		}
	case "squared_error", "mse":
		if !regression {
			return errors.NewValidationError("criterion", "classifiers support gini or entropy", c.criterion)
		}
	default:
		return errors.NewValidationError("criterion", "unknown criterion", c.criterion)
	}
	if c.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", c.minSamplesSplit)
	}
	if c.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", c.minSamplesLeaf)
	}
	if c.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", c.maxDepth)
	}
	if c.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", c.nEstimators)
	}
	if _, err := c.featuresPerSplit(1); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// featuresPerSplit resolves maxFeatures against the number of features.
func (c *config) featuresPerSplit(nFeatures int) (int, error) {
	var k int
	switch c.maxFeatures {
	case "", "none", "all":
		k = nFeatures
	case "sqrt", "auto":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		if _, err := fmt.Sscanf(c.maxFeatures, "%d", &k); err != nil {
			return 0, errors.NewValidationError("max_features", "must be sqrt, log2 or an integer", c.maxFeatures)
		}
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k, nil
}

func (c *config) params() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         c.criterion,
		"max_depth":         c.maxDepth,
		"min_samples_split": c.minSamplesSplit,
		"min_samples_leaf":  c.minSamplesLeaf,
		"max_features":      c.maxFeatures,
		"random_state":      c.randomState,
	}
}

func (c *config) forestParams() map[string]interface{} {
	p := c.params()
	p["n_estimators"] = c.nEstimators
	p["bootstrap"] = c.bootstrap
	p["n_jobs"] = c.nJobs
	return p
}

// setParams applies a parameter map. Numbers may arrive as int, int64 or
// float64 depending on where they were parsed.
func (c *config) setParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			c.criterion, err = asString(key, value)
		case "max_depth":
			c.maxDepth, err = asInt(key, value)
		case "min_samples_split":
			c.minSamplesSplit, err = asInt(key, value)
		case "min_samples_leaf":
			c.minSamplesLeaf, err = asInt(key, value)
		case "max_features":
			c.maxFeatures = fmt.Sprint(value)
		case "random_state":
			var seed int
			seed, err = asInt(key, value)
			c.randomState = int64(seed)
		case "n_estimators":
			c.nEstimators, err = asInt(key, value)
		case "n_jobs":
			c.nJobs, err = asInt(key, value)
		case "bootstrap":
			b, ok := value.(bool)
			if !ok {
				err = errors.NewValidationError(key, "must be a bool", value)
			}
			c.bootstrap = b
		default:
			err = errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asInt(key string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errors.NewValidationError(key, "must be an integer", v)
		}
		return int(n), nil
	case nil:
		return 0, nil
	default:
		return 0, errors.NewValidationError(key, "must be an integer", v)
	}
}

func asString(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(key, "must be a string", v)
	}
	return s, nil
}
