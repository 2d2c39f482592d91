package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/cookbook"
	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

const runINI = `
[general]
seed = 3

[chef]
chef_steps = split, model
split_techniques = stratified
model_techniques = decision_tree, baseline

[critic]
critic_steps = explain, measure, report
explain_techniques = gini
measure_techniques = accuracy
report_techniques = confusion, classification

[stratified]
n_splits = 2

[report]
plot_color = rgb(255,0,0)
`

func run(t *testing.T) (*cookbook.Cookbook, []*cookbook.TubeResult) {
	t.Helper()
	cfg, err := settings.ParseINI([]byte(runINI))
	require.NoError(t, err)
	cb, err := cookbook.New(cfg)
	require.NoError(t, err)

	X := mat.NewDense(8, 2, []float64{
		0, 3, 1, 2, 2, 5, 3, 1,
		8, 2, 9, 4, 7, 1, 8, 3,
	})
	data, err := dataset.New("y", model.Classification, []string{"a", "b"}, X, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	require.NoError(t, err)

	results, err := cb.Run(context.Background(), data)
	// baseline has no impurity importances; the error stops tube 2.
	require.Error(t, err)
	return cb, results
}

func TestReadOptions(t *testing.T) {
	o, err := ReadOptions(settings.New())
	require.NoError(t, err)
	assert.Equal(t, "results", o.Folder)
	assert.Equal(t, []string{FormatCSV, FormatJSON}, o.Formats)
	assert.True(t, o.Plots)

	cfg := settings.New()
	cfg.Set(Section, "file_formats", "csv, xml")
	_, err = ReadOptions(cfg)
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	cfg = settings.New()
	cfg.Set(Section, "plot_color", "blurple")
	_, err = ReadOptions(cfg)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff0000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, c)

	c, err = ParseColor("rgb(0,128,0)")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 128, A: 255}, c)
}

func TestExport(t *testing.T) {
	cfg, err := settings.ParseINI([]byte(runINI))
	require.NoError(t, err)
	cfg.Set("general", "tolerate_failures", "true")
	cb, err := cookbook.New(cfg)
	require.NoError(t, err)

	X := mat.NewDense(8, 2, []float64{
		0, 3, 1, 2, 2, 5, 3, 1,
		8, 2, 9, 4, 7, 1, 8, 3,
	})
	data, err := dataset.New("y", model.Classification, []string{"a", "b"}, X, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	require.NoError(t, err)
	results, err := cb.Run(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, results, 2)

	dir := t.TempDir()
	e, err := New(cfg, dir)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, e.Options().PlotColor)
	written, err := e.Export(cb, results)
	require.NoError(t, err)

	for _, name := range []string{
		"plan.dot",
		"summary.csv",
		"results.json",
		"tube_1_confusion.csv",
		"tube_2_confusion.csv",
		"tube_1_gini_importances.png",
	} {
		path := filepath.Join(dir, name)
		assert.Contains(t, written, path)
		info, err := os.Stat(path)
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
	assert.NotContains(t, written, filepath.Join(dir, "tube_2_gini_importances.png"))

	f, err := os.Open(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	header := records[0]
	assert.Equal(t, []string{"tube", "split", "model", "error", "duration_ms"}, header[:5])
	assert.Contains(t, header, "measure.accuracy.score")
	assert.Equal(t, []string{"1", "stratified", "decision_tree", ""}, records[1][:4])
	assert.Equal(t, "baseline", records[2][2])

	raw, err := os.ReadFile(filepath.Join(dir, "results.json"))
	require.NoError(t, err)
	var dump []map[string]any
	require.NoError(t, json.Unmarshal(raw, &dump))
	require.Len(t, dump, 2)
	assert.Equal(t, 1.0, dump[0]["tube"])
	assert.Contains(t, dump[0]["steps"], "report")
}

func TestExport_FormatsAndPlotsOff(t *testing.T) {
	cb, results := run(t)
	dir := t.TempDir()
	e := NewWithOptions(Options{Folder: dir, Formats: []string{FormatJSON}})
	written, err := e.Export(cb, results)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "plan.dot"),
		filepath.Join(dir, "results.json"),
	}, written)
}

func TestWriteConfusion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeConfusion(&buf, [][]float64{{3, 1}, {0, 4}}, []string{"no", "yes"}))
	assert.Equal(t, "true\\predicted,no,yes\nno,3,1\nyes,0,4\n", buf.String())
}

func TestJSONValue(t *testing.T) {
	v := jsonValue(map[string]any{"a": []float64{1, math.NaN()}, "m": struct{}{}})
	assert.Equal(t, map[string]any{"a": []any{1.0, nil}, "m": "struct {}"}, v)
}
