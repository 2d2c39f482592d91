package step

import (
	"maps"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/dataset"
)

// Context is the state of one test tube as it moves through the steps.
// Chef steps replace the data, folds and model; critic steps read them and
// attach their own artifacts.
type Context struct {
	Tube int
	Task model.Task
	Seed uint64

	Data  *dataset.Dataset
	Folds []dataset.Fold

	Model       model.Estimator
	ModelName   string
	ModelParams map[string]any

	// Predictions and Probabilities are out-of-fold estimates for the rows
	// in EvalIndex.
	Predictions   []float64
	Probabilities *mat.Dense
	EvalIndex     []int

	mu        sync.RWMutex
	artifacts map[string]any
}

// NewContext creates the context of one tube.
func NewContext(tube int, data *dataset.Dataset, seed uint64) *Context {
	return &Context{
		Tube:      tube,
		Task:      data.Task,
		Seed:      seed,
		Data:      data,
		artifacts: make(map[string]any),
	}
}

// Attach stores an artifact under key, replacing any previous value.
func (c *Context) Attach(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifacts == nil {
		c.artifacts = make(map[string]any)
	}
	c.artifacts[key] = value
}

// Artifact returns the artifact stored under key.
func (c *Context) Artifact(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.artifacts[key]
	return v, ok
}

// Artifacts returns a snapshot of every artifact.
func (c *Context) Artifacts() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.artifacts)
}

// Clone returns a copy whose dataset and folds can be changed without
// affecting c. The fitted model is shared.
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &Context{
		Tube:        c.Tube,
		Task:        c.Task,
		Seed:        c.Seed,
		Model:       c.Model,
		ModelName:   c.ModelName,
		ModelParams: maps.Clone(c.ModelParams),
		Predictions: append([]float64(nil), c.Predictions...),
		EvalIndex:   append([]int(nil), c.EvalIndex...),
		artifacts:   maps.Clone(c.artifacts),
	}
	if c.Data != nil {
		out.Data = c.Data.Clone()
	}
	if c.Probabilities != nil {
		out.Probabilities = mat.DenseCopyOf(c.Probabilities)
	}
	for _, f := range c.Folds {
		out.Folds = append(out.Folds, dataset.Fold{
			Train: append([]int(nil), f.Train...),
			Test:  append([]int(nil), f.Test...),
		})
	}
	if out.artifacts == nil {
		out.artifacts = make(map[string]any)
	}
	return out
}

// Splits returns the folds, or a single all-rows fold when no split step
// has run.
func (c *Context) Splits() []dataset.Fold {
	if len(c.Folds) == 0 {
		return dataset.AllRows(c.Data.Len())
	}
	return c.Folds
}

// TrainIndex returns every row used for training in some fold.
func (c *Context) TrainIndex() []int {
	return dataset.TrainIndex(c.Splits())
}

// Eval returns the rows predictions refer to.
func (c *Context) Eval() []int {
	if c.EvalIndex != nil {
		return c.EvalIndex
	}
	return dataset.EvalIndex(c.Splits())
}

// EvalFeatures returns the features of the evaluation rows.
func (c *Context) EvalFeatures() *mat.Dense {
	return c.Data.Rows(c.Eval())
}

// EvalTarget returns the target of the evaluation rows.
func (c *Context) EvalTarget() []float64 {
	return c.Data.Target(c.Eval())
}

// Rand returns a generator seeded from the tube seed. Each stream is an
// independent sequence, so techniques do not disturb each other.
func (c *Context) Rand(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(c.Seed, stream))
}
