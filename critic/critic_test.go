package critic

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/chef"
	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/metrics"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

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

func regression(t *testing.T) *dataset.Dataset {
	t.Helper()
	X := mat.NewDense(8, 2, []float64{
		0, 1, 1, 0, 2, 2, 3, 1,
		4, 3, 5, 0, 6, 2, 7, 4,
	})
	y := make([]float64, 8)
	for i := range y {
		y[i] = 1 + 2*X.At(i, 0) - X.At(i, 1) + 0.1*float64(i%3)
	}
	d, err := dataset.New("y", model.Regression, []string{"a", "b"}, X, y)
	require.NoError(t, err)
	return d
}

func publish(t *testing.T, def step.Definition, cfg *settings.Settings, technique string, tube *step.Context) (*step.ResultSet, error) {
	t.Helper()
	s := step.New(def, cfg)
	_, err := s.Draft()
	require.NoError(t, err)
	return s.Publish(context.Background(), []string{technique}, tube)
}

// fitted returns a tube after the model step ran the named technique.
func fitted(t *testing.T, data *dataset.Dataset, technique string) *step.Context {
	t.Helper()
	tube := step.NewContext(1, data, 7)
	_, err := publish(t, chef.Model{}, nil, technique, tube)
	require.NoError(t, err)
	return tube
}

func configError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
}

func TestDefinitions_Draft(t *testing.T) {
	want := map[string][]string{
		"predict":  {"gini"},
		"estimate": {"gini", "log"},
		"explain":  {"gini", "eli5", "shap", "shap_interaction", "skater"},
		"report":   {"confusion", "classification"},
	}
	for _, def := range Definitions() {
		dep, ok := def.(step.Dependent)
		require.True(t, ok, def.Name())
		assert.Equal(t, []string{"model"}, dep.DependsOn())

		reg, err := step.New(def, nil).Draft()
		require.NoError(t, err)
		if def.Name() == "measure" {
			assert.Equal(t, len(metrics.Names(model.Classification))+len(metrics.Names(model.Regression)), reg.Len())
			continue
		}
		assert.ElementsMatch(t, want[def.Name()], reg.Names(), def.Name())
	}
}

func TestCritic_NeedsModel(t *testing.T) {
	tube := step.NewContext(1, classification(t), 7)
	_, err := publish(t, Predict{}, nil, "gini", tube)
	configError(t, err)
}

func TestPredict(t *testing.T) {
	tube := fitted(t, classification(t), "decision_tree")
	rs, err := publish(t, Predict{}, nil, "gini", tube)
	require.NoError(t, err)
	v, _ := rs.Value("gini", "predictions")
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1}, v)
}

func TestEstimate(t *testing.T) {
	tube := fitted(t, classification(t), "logit")

	rs, err := publish(t, Estimate{}, nil, "gini", tube)
	require.NoError(t, err)
	v, _ := rs.Value("gini", "probabilities")
	proba := v.([][]float64)
	require.Len(t, proba, 12)

	rs, err = publish(t, Estimate{}, nil, "log", tube)
	require.NoError(t, err)
	v, _ = rs.Value("log", "log_probabilities")
	logs := v.([][]float64)
	for i := range logs {
		require.Len(t, logs[i], 2)
		for j := range logs[i] {
			assert.InDelta(t, math.Log(proba[i][j]), logs[i][j], 1e-9)
		}
	}
}

func TestEstimate_Regression(t *testing.T) {
	tube := fitted(t, regression(t), "ols")
	_, err := publish(t, Estimate{}, nil, "gini", tube)
	configError(t, err)
}

func TestExplain_Gini(t *testing.T) {
	tube := fitted(t, classification(t), "decision_tree")
	rs, err := publish(t, Explain{}, nil, "gini", tube)
	require.NoError(t, err)
	v, _ := rs.Value("gini", "feature_importances")
	assert.Equal(t, []float64{1, 0}, v)

	tube = fitted(t, classification(t), "logit")
	_, err = publish(t, Explain{}, nil, "gini", tube)
	configError(t, err)
}

func TestExplain_Eli5(t *testing.T) {
	tube := fitted(t, classification(t), "decision_tree")
	rs, err := publish(t, Explain{}, nil, "eli5", tube)
	require.NoError(t, err)

	v, _ := rs.Value("eli5", "feature_importances")
	imp := v.([]float64)
	v, _ = rs.Value("eli5", "importances_std")
	std := v.([]float64)
	require.Len(t, imp, 2)
	require.Len(t, std, 2)
	assert.Greater(t, imp[0], 0.0)
	assert.Equal(t, 0.0, imp[1], "the tree never splits on b")
	assert.Equal(t, 0.0, std[1])
}

func TestExplain_Skater(t *testing.T) {
	tube := fitted(t, classification(t), "decision_tree")
	_, err := publish(t, Explain{}, nil, "skater", tube)
	var depErr *errors.DependencyUnavailableError
	assert.True(t, errors.As(err, &depErr))
}

// shapOf publishes shap and returns the values and base value.
func shapOf(t *testing.T, tube *step.Context) ([][]float64, float64) {
	t.Helper()
	rs, err := publish(t, Explain{}, nil, "shap", tube)
	require.NoError(t, err)
	v, _ := rs.Value("shap", "values")
	base, ok := rs.Float("shap", "base_value")
	require.True(t, ok)
	return v.([][]float64), base
}

func TestShap_TreeLocalAccuracy(t *testing.T) {
	for _, name := range []string{"decision_tree", "random_forest"} {
		t.Run(name, func(t *testing.T) {
			tube := fitted(t, classification(t), name)
			values, base := shapOf(t, tube)

			X := tube.EvalFeatures()
			proba, err := tube.Model.(model.Classifier).PredictProba(X)
			require.NoError(t, err)
			require.Len(t, values, 12)
			for i, v := range values {
				assert.InDelta(t, proba.At(i, 1), base+floats.Sum(v), 1e-9, "row %d", i)
			}
		})
	}
}

func TestShap_LinearLocalAccuracy(t *testing.T) {
	tube := fitted(t, regression(t), "ols")
	values, base := shapOf(t, tube)

	pred, err := tube.Model.Predict(tube.EvalFeatures())
	require.NoError(t, err)
	for i, v := range values {
		assert.InDelta(t, pred.At(i, 0), base+floats.Sum(v), 1e-9, "row %d", i)
	}
}

// product is a model that is neither a tree nor linear: f(x) = x0·x1.
type product struct{}

func (product) Fit(mat.Matrix, mat.Matrix) error { return nil }

func (product) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, X.At(i, 0)*X.At(i, 1))
	}
	return out, nil
}

func TestShap_SamplingLocalAccuracy(t *testing.T) {
	cfg := settings.New()
	cfg.Set("shap", "background", "3")
	cfg.Set("shap", "n_samples", "7")

	tube := fitted(t, regression(t), "ols")
	tube.Model = product{}

	rs, err := publish(t, Explain{}, cfg, "shap", tube)
	require.NoError(t, err)
	v, _ := rs.Value("shap", "values")
	base, _ := rs.Float("shap", "base_value")

	X := tube.EvalFeatures()
	for i, phi := range v.([][]float64) {
		want := X.At(i, 0) * X.At(i, 1)
		assert.InDelta(t, want, base+floats.Sum(phi), 1e-9, "row %d", i)
	}
}

func TestShapInteraction_Tree(t *testing.T) {
	cfg := settings.New()
	cfg.Set("random_forest", "n_estimators", "10")
	cfg.Set("random_forest", "max_features", "1")

	tube := step.NewContext(1, classification(t), 7)
	_, err := publish(t, chef.Model{}, cfg, "random_forest", tube)
	require.NoError(t, err)

	values, _ := shapOf(t, tube)
	rs, err := publish(t, Explain{}, nil, "shap_interaction", tube)
	require.NoError(t, err)
	v, _ := rs.Value("shap_interaction", "interaction_values")
	inter := v.([][][]float64)
	require.Len(t, inter, 12)

	for i, m := range inter {
		for f := range m {
			assert.InDelta(t, values[i][f], floats.Sum(m[f]), 1e-9, "row %d feature %d", i, f)
			for g := range m {
				assert.InDelta(t, m[f][g], m[g][f], 1e-12)
			}
		}
	}
}

func TestShapInteraction_Unsupported(t *testing.T) {
	tube := fitted(t, classification(t), "baseline")
	_, err := publish(t, Explain{}, nil, "shap_interaction", tube)
	configError(t, err)
}

func TestMeasure(t *testing.T) {
	tube := fitted(t, classification(t), "decision_tree")
	rs, err := publish(t, Measure{}, nil, "accuracy", tube)
	require.NoError(t, err)
	score, ok := rs.Float("accuracy", "score")
	require.True(t, ok)
	assert.Equal(t, 1.0, score)

	rs, err = publish(t, Measure{}, nil, "roc_auc", tube)
	require.NoError(t, err)
	score, _ = rs.Float("roc_auc", "score")
	assert.Equal(t, 1.0, score)

	_, err = publish(t, Measure{}, nil, "r2", tube)
	configError(t, err)
}

func TestReport(t *testing.T) {
	tube := fitted(t, classification(t), "decision_tree")

	rs, err := publish(t, Report{}, nil, "confusion", tube)
	require.NoError(t, err)
	v, _ := rs.Value("confusion", "confusion_matrix")
	assert.Equal(t, [][]float64{{8, 0}, {0, 4}}, v)

	rs, err = publish(t, Report{}, nil, "classification", tube)
	require.NoError(t, err)
	v, _ = rs.Value("classification", "classification_report")
	r := v.(*metrics.Report)
	assert.Equal(t, 1.0, r.Accuracy)
	require.Len(t, r.Classes, 2)
	assert.Equal(t, 8, r.Classes[0].Support)
}
