package cookbook

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

const baseINI = `
[general]
model_type = classifier
seed = 7
n_jobs = 2

[chef]
chef_steps = scale, split, model
scale_techniques = standard, minmax
split_techniques = stratified
model_techniques = decision_tree, logit

[critic]
critic_steps = measure, report
measure_techniques = accuracy, f1
report_techniques = confusion

[stratified]
n_splits = 3
`

func parse(t *testing.T, text string) *settings.Settings {
	t.Helper()
	cfg, err := settings.ParseINI([]byte(text))
	require.NoError(t, err)
	return cfg
}

func classification(t *testing.T) *dataset.Dataset {
	t.Helper()
	X := mat.NewDense(12, 2, []float64{
		0, 3, 1, 2, 2, 5, 3, 1,
		1, 4, 2, 2, 0, 1, 3, 3,
		8, 2, 9, 4, 7, 1, 8, 3,
	})
	y := []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1}
	d, err := dataset.New("y", model.Classification, []string{"a", "b"}, X, y)
	require.NoError(t, err)
	return d
}

func configError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
}

func TestNew_ReadsGeneral(t *testing.T) {
	c, err := New(parse(t, baseINI))
	require.NoError(t, err)
	assert.Equal(t, model.Classification, c.Task())
	assert.Equal(t, uint64(7), c.Seed())
	assert.Equal(t, 2, c.Jobs())
	assert.Equal(t, []string{"scale", "split", "model", "measure", "report"}, c.Order())

	s, ok := c.Stage("measure")
	require.True(t, ok)
	assert.Equal(t, []string{"accuracy", "f1"}, s.Techniques)

	c, err = New(parse(t, baseINI), WithJobs(5))
	require.NoError(t, err)
	assert.Equal(t, 5, c.Jobs())
}

func TestNew_ChefStepWithoutTechniquesRunsNone(t *testing.T) {
	c, err := New(parse(t, `
[chef]
chef_steps = encode, model
model_techniques = baseline
`))
	require.NoError(t, err)
	s, _ := c.Stage("encode")
	assert.Equal(t, []string{"none"}, s.Techniques)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		ini  string
	}{
		{"unknown step", "[chef]\nchef_steps = scale, bake\n"},
		{"duplicate step", "[chef]\nchef_steps = scale, scale\n"},
		{"no steps", "[general]\nseed = 1\n"},
		{"bad model type", "[general]\nmodel_type = clusterer\n[chef]\nchef_steps = scale\n"},
		{"critic without model", "[chef]\nchef_steps = scale\n[critic]\ncritic_steps = measure\nmeasure_techniques = accuracy\n"},
		{"critic without techniques", "[chef]\nchef_steps = model\nmodel_techniques = baseline\n[critic]\ncritic_steps = measure\n"},
		{"search before model", "[chef]\nchef_steps = search, model\nmodel_techniques = baseline\nsearch_techniques = grid\n"},
		{"negative seed", "[general]\nseed = -1\n[chef]\nchef_steps = scale\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(parse(t, tt.ini))
			configError(t, err)
		})
	}
}

func TestNew_UnknownTechnique(t *testing.T) {
	_, err := New(parse(t, "[chef]\nchef_steps = scale\nscale_techniques = standard, cubic\n"))
	var unknown *errors.UnknownTechniqueError
	require.True(t, errors.As(err, &unknown), "got %v", err)
}

func TestNew_DeferredTechniqueResolves(t *testing.T) {
	_, err := New(parse(t, `
[chef]
chef_steps = model, search
model_techniques = decision_tree
search_techniques = bayes
`))
	assert.NoError(t, err)
}

func TestTubes_CrossProduct(t *testing.T) {
	c, err := New(parse(t, baseINI))
	require.NoError(t, err)

	tubes := c.Tubes()
	require.Len(t, tubes, 4)
	want := [][2]string{
		{"standard", "decision_tree"},
		{"standard", "logit"},
		{"minmax", "decision_tree"},
		{"minmax", "logit"},
	}
	for i, r := range tubes {
		assert.Equal(t, i+1, r.Number)
		require.Len(t, r.Choices, 3)
		scale, _ := r.Technique("scale")
		split, _ := r.Technique("split")
		mdl, _ := r.Technique("model")
		assert.Equal(t, want[i][0], scale)
		assert.Equal(t, "stratified", split)
		assert.Equal(t, want[i][1], mdl)
	}
}

func TestWritePlan(t *testing.T) {
	c, err := New(parse(t, baseINI))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.WritePlan(&buf))
	dot := buf.String()
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, `"scale" -> "split"`)
	assert.Contains(t, dot, `"model" -> "measure"`)
	assert.Contains(t, dot, `"model" -> "report"`)

	order, err := c.Plan().Order()
	require.NoError(t, err)
	assert.Equal(t, 5, order)
}

func TestRun(t *testing.T) {
	c, err := New(parse(t, baseINI))
	require.NoError(t, err)

	data := classification(t)
	results, err := c.Run(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, i+1, r.Recipe.Number)
		assert.NoError(t, r.Err)
		assert.Positive(t, r.Duration)
		require.Contains(t, r.Steps, "measure")
		acc, ok := r.Steps["measure"].Float("accuracy", "score")
		require.True(t, ok)
		assert.GreaterOrEqual(t, acc, 0.0)
		assert.LessOrEqual(t, acc, 1.0)
		_, ok = r.Steps["report"].Value("confusion", "confusion_matrix")
		assert.True(t, ok)
	}

	// the input is never scaled in place
	assert.Equal(t, 8.0, data.X.At(8, 0))

	best, score, err := Best(results, "accuracy")
	require.NoError(t, err)
	require.NotNil(t, best)
	for _, r := range results {
		acc, _ := r.Steps["measure"].Float("accuracy", "score")
		assert.LessOrEqual(t, acc, score)
	}

	_, _, err = Best(results, "r2")
	assert.Error(t, err)
	_, _, err = Best(results, "no_such_metric")
	configError(t, err)
}

func TestRun_MixerAndReduce(t *testing.T) {
	c, err := New(parse(t, `
[general]
seed = 7

[chef]
chef_steps = mixer, split, reduce, model
mixer_techniques = sum
split_techniques = stratified
reduce_techniques = kbest, rfe
model_techniques = decision_tree

[critic]
critic_steps = measure
measure_techniques = accuracy

[stratified]
n_splits = 3

[kbest]
k = 1

[rfe]
n_features_to_select = 2
`))
	require.NoError(t, err)

	data := classification(t)
	results, err := c.Run(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for technique, n := range map[string]int{"kbest": 1, "rfe": 2} {
		found := false
		for _, r := range results {
			require.NoError(t, r.Err)
			cols, ok := r.Steps["reduce"].Value(technique, "columns")
			if !ok {
				continue
			}
			found = true
			assert.Len(t, cols, n)
			mixed, _ := r.Steps["mixer"].Value("sum", "columns")
			assert.Equal(t, []string{"a+b"}, mixed)
		}
		assert.True(t, found, technique)
	}
	assert.Equal(t, 2, data.NumFeatures())
}

func TestRun_TaskMismatch(t *testing.T) {
	c, err := New(parse(t, "[general]\nmodel_type = regressor\n[chef]\nchef_steps = model\nmodel_techniques = ols\n"))
	require.NoError(t, err)
	_, err = c.Run(context.Background(), classification(t))
	configError(t, err)
}

func TestRun_SmartFill(t *testing.T) {
	data := classification(t)
	data.X.Set(0, 1, math.NaN())

	c, err := New(parse(t, "[chef]\nchef_steps = model\nmodel_techniques = decision_tree\n"))
	require.NoError(t, err)
	results, err := c.Run(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Context.Data.HasMissing())
	assert.True(t, data.HasMissing(), "input keeps its missing values")
}

func TestRun_Tolerance(t *testing.T) {
	// random_over fails on a regression target.
	regression := func(t *testing.T) *dataset.Dataset {
		t.Helper()
		X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
		d, err := dataset.New("y", model.Regression, []string{"a"}, X, []float64{0, 1, 2, 3, 4, 5})
		require.NoError(t, err)
		return d
	}
	build := func(tolerate string) *Cookbook {
		cfg := parse(t, "[general]\nmodel_type = regressor\ntolerate_failures = "+tolerate+"\n"+
			"[chef]\nchef_steps = sample, model\nsample_techniques = none, random_over\nmodel_techniques = baseline\n")
		c, err := New(cfg)
		require.NoError(t, err)
		return c
	}

	results, err := build("false").Run(context.Background(), regression(t))
	configError(t, err)
	require.Len(t, results, 2)

	results, err = build("true").Run(context.Background(), regression(t))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	configError(t, results[1].Err)
	assert.NotContains(t, results[1].Steps, "model")
}

func TestRun_Cancelled(t *testing.T) {
	c, err := New(parse(t, baseINI))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Run(ctx, classification(t))
	assert.ErrorIs(t, err, context.Canceled)
}

// constant is a custom step that records a fixed value.
type constant struct{}

func (constant) Name() string       { return "constant" }
func (constant) Sections() []string { return []string{"critic"} }
func (constant) DependsOn() []string {
	return []string{"model"}
}

func (constant) Draft(d *step.Drafter) error {
	d.Direct("seven", "test", func(*settings.Section) (step.Technique, error) {
		return step.TechniqueFunc(func(context.Context, *step.Context) (map[string]any, error) {
			return map[string]any{"value": 7.0}, nil
		}), nil
	}, "value")
	return nil
}

func TestWithDefinitions(t *testing.T) {
	cfg := parse(t, "[chef]\nchef_steps = model\nmodel_techniques = baseline\n"+
		"[critic]\ncritic_steps = constant\nconstant_techniques = seven\n")
	_, err := New(cfg)
	configError(t, err)

	c, err := New(cfg, WithDefinitions(constant{}))
	require.NoError(t, err)
	assert.Contains(t, c.Techniques(), "constant")

	results, err := c.Run(context.Background(), classification(t))
	require.NoError(t, err)
	v, ok := results[0].Steps["constant"].Float("seven", "value")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestKeyMetric(t *testing.T) {
	c, err := New(parse(t, baseINI))
	require.NoError(t, err)
	assert.Equal(t, "accuracy", c.KeyMetric())

	cfg := parse(t, baseINI)
	cfg.Set("critic", "key_metric", "f1")
	c, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "f1", c.KeyMetric())
}
