package chef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/settings"
)

func TestMixer_Polynomial(t *testing.T) {
	tube := step.NewContext(1, numericOnly(t), 7)
	rs, err := publish(t, Mixer{}, nil, "polynomial", tube)
	require.NoError(t, err)

	v, _ := rs.Value("polynomial", "columns")
	assert.Equal(t, []string{"a*b"}, v)
	assert.Equal(t, []string{"a", "b", "a*b"}, tube.Data.Features)
	assert.Equal(t, []float64{2, 5, 10}, tube.Data.Row(2))

	cfg := settings.New()
	cfg.Set("polynomial", "interaction_only", "false")
	tube = step.NewContext(1, numericOnly(t), 7)
	rs, err = publish(t, Mixer{}, cfg, "polynomial", tube)
	require.NoError(t, err)
	v, _ = rs.Value("polynomial", "columns")
	assert.Equal(t, []string{"a^2", "a*b", "b^2"}, v)
}

func TestMixer_Pairwise(t *testing.T) {
	tests := []struct {
		technique string
		column    string
		row2      float64
	}{
		{"sum", "a+b", 7},
		{"difference", "a-b", -3},
		{"quotient", "a/b", 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.technique, func(t *testing.T) {
			tube := step.NewContext(1, numericOnly(t), 7)
			rs, err := publish(t, Mixer{}, nil, tt.technique, tube)
			require.NoError(t, err)
			v, _ := rs.Value(tt.technique, "columns")
			assert.Equal(t, []string{tt.column}, v)
			assert.InDelta(t, tt.row2, tube.Data.Row(2)[2], 1e-12)
		})
	}
}

func TestMixer_NoneAndDegree(t *testing.T) {
	tube := step.NewContext(1, numericOnly(t), 7)
	_, err := publish(t, Mixer{}, nil, "none", tube)
	require.NoError(t, err)
	assert.Equal(t, 2, tube.Data.NumFeatures())

	cfg := settings.New()
	cfg.Set("polynomial", "degree", "1")
	_, err = publish(t, Mixer{}, cfg, "polynomial", tube)
	assert.Equal(t, "degree", configError(t, err).Key)
}

func reduceConfig(technique string, kv ...string) *settings.Settings {
	cfg := settings.New()
	for i := 0; i+1 < len(kv); i += 2 {
		cfg.Set(technique, kv[i], kv[i+1])
	}
	return cfg
}

func TestReduce_Univariate(t *testing.T) {
	tests := []struct {
		technique string
		cfg       *settings.Settings
		want      []string
	}{
		{"kbest", reduceConfig("kbest", "k", "1"), []string{"a"}},
		{"kbest", nil, []string{"a", "b"}},
		{"fpr", nil, []string{"a"}},
		{"fdr", reduceConfig("fdr", "alpha", "0.01"), []string{"a"}},
		{"none", nil, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.technique, func(t *testing.T) {
			tube := step.NewContext(1, numericOnly(t), 7)
			rs, err := publish(t, Reduce{}, tt.cfg, tt.technique, tube)
			require.NoError(t, err)
			v, _ := rs.Value(tt.technique, "columns")
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.want, tube.Data.Features)
			assert.Equal(t, 12, tube.Data.Len())
		})
	}
}

func TestReduce_ScoreFunction(t *testing.T) {
	tube := step.NewContext(1, numericOnly(t), 7)
	_, err := publish(t, Reduce{}, reduceConfig("kbest", "k", "1", "score_func", "f_regression"), "kbest", tube)
	assert.Equal(t, "score_func", configError(t, err).Key)

	tube = step.NewContext(1, numericOnly(t), 7)
	rs, err := publish(t, Reduce{}, reduceConfig("kbest", "k", "1", "score_func", "chi2"), "kbest", tube)
	require.NoError(t, err)
	v, _ := rs.Value("kbest", "columns")
	assert.Equal(t, []string{"a"}, v)
}

func TestReduce_Regression(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		1, 4,
		2, 1,
		3, 5,
		4, 2,
		5, 6,
		6, 3,
	})
	data, err := dataset.New("y", model.Regression, []string{"signal", "noise"}, X, []float64{2, 4, 6, 8, 10, 12})
	require.NoError(t, err)
	tube := step.NewContext(1, data, 7)

	rs, err := publish(t, Reduce{}, reduceConfig("kbest", "k", "1"), "kbest", tube)
	require.NoError(t, err)
	v, _ := rs.Value("kbest", "columns")
	assert.Equal(t, []string{"signal"}, v)
}

func TestReduce_FromModel(t *testing.T) {
	tests := []struct {
		technique string
		cfg       *settings.Settings
	}{
		{"custom", nil},
		{"custom", reduceConfig("custom", "threshold", "1.5*mean")},
		{"custom", reduceConfig("custom", "estimator", "random_forest", "n_estimators", "10")},
		{"rfe", reduceConfig("rfe", "n_features_to_select", "1")},
		{"rfecv", reduceConfig("rfecv", "cv", "2", "scoring", "accuracy")},
	}
	for _, tt := range tests {
		t.Run(tt.technique, func(t *testing.T) {
			tube := step.NewContext(1, numericOnly(t), 7)
			rs, err := publish(t, Reduce{}, tt.cfg, tt.technique, tube)
			require.NoError(t, err)
			v, _ := rs.Value(tt.technique, "columns")
			assert.Equal(t, []string{"a"}, v)
			assert.Equal(t, 1, tube.Data.NumFeatures())
		})
	}
}

func TestReduce_RFEKeepsSmallTubes(t *testing.T) {
	tube := step.NewContext(1, numericOnly(t), 7)
	rs, err := publish(t, Reduce{}, nil, "rfe", tube)
	require.NoError(t, err)
	v, _ := rs.Value("rfe", "columns")
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestReduce_Errors(t *testing.T) {
	tests := []struct {
		name      string
		technique string
		cfg       *settings.Settings
		key       string
	}{
		{"unknown estimator", "custom", reduceConfig("custom", "estimator", "svm"), "estimator"},
		{"baseline has no importances", "rfe", reduceConfig("rfe", "estimator", "baseline"), "estimator"},
		{"bad alpha", "fpr", reduceConfig("fpr", "alpha", "2"), "alpha"},
		{"bad k", "kbest", reduceConfig("kbest", "k", "0"), "k"},
		{"bad threshold", "custom", reduceConfig("custom", "threshold", "max"), "threshold"},
		{"bad cv", "rfecv", reduceConfig("rfecv", "cv", "1"), "cv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tube := step.NewContext(1, numericOnly(t), 7)
			_, err := publish(t, Reduce{}, tt.cfg, tt.technique, tube)
			assert.Equal(t, tt.key, configError(t, err).Key)
		})
	}
}

func TestReduce_NeedsEncodedData(t *testing.T) {
	tube := step.NewContext(1, imbalanced(t), 7)
	_, err := publish(t, Reduce{}, reduceConfig("kbest", "k", "1"), "kbest", tube)
	configError(t, err)
}

func TestReduce_LearnsFromTrainingRows(t *testing.T) {
	// Over all rows b separates the classes better than a; over the
	// training rows only a does.
	X := mat.NewDense(12, 2, []float64{
		0, 5, 1, 5, 2, 0, 3, 0,
		8, 0, 8, 0, 8, 0, 8, 0,
		8, 5, 9, 5, 0, 9, 0, 9,
	})
	y := []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1}
	data, err := dataset.New("y", model.Classification, []string{"a", "b"}, X, y)
	require.NoError(t, err)
	tube := step.NewContext(1, data, 7)

	full := tube.Clone()
	rs, err := publish(t, Reduce{}, reduceConfig("kbest", "k", "1"), "kbest", full)
	require.NoError(t, err)
	v, _ := rs.Value("kbest", "columns")
	assert.Equal(t, []string{"b"}, v)

	tube.Folds = []dataset.Fold{{Train: []int{0, 1, 2, 3, 8, 9}, Test: []int{4, 5, 6, 7, 10, 11}}}
	rs, err = publish(t, Reduce{}, reduceConfig("kbest", "k", "1"), "kbest", tube)
	require.NoError(t, err)
	v, _ = rs.Value("kbest", "columns")
	assert.Equal(t, []string{"a"}, v)
	assert.Equal(t, 12, tube.Data.Len())
}
