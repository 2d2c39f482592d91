package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/simplify/cookbook"
)

// chart size in points
const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

type importance struct {
	technique string
	features  []string
	values    []float64
}

type confusion struct {
	technique string
	matrix    [][]float64
}

func tubeFile(r *cookbook.TubeResult, name string) string {
	return fmt.Sprintf("tube_%d_%s", r.Recipe.Number, name)
}

func featureNames(r *cookbook.TubeResult, n int) []string {
	if r.Context != nil && r.Context.Data != nil && len(r.Context.Data.Features) == n {
		return r.Context.Data.Features
	}
	names := make([]string, n)
	for i := range names {
		names[i] = "x" + strconv.Itoa(i)
	}
	return names
}

func classNames(r *cookbook.TubeResult) []string {
	if r.Context != nil && r.Context.Data != nil {
		return r.Context.Data.Classes
	}
	return nil
}

// importances collects the per-feature importances of the explain step.
// SHAP values are reduced to their mean absolute value per feature.
func importances(r *cookbook.TubeResult) []importance {
	rs, ok := r.Steps["explain"]
	if !ok || r.Err != nil {
		return nil
	}
	var out []importance
	for _, e := range rs.Entries() {
		if e.Err != nil {
			continue
		}
		var values []float64
		switch {
		case e.Name == "feature_importances":
			values, _ = e.Value.([]float64)
		case e.Name == "values" && e.Technique == "shap":
			values = meanAbs(e.Value)
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, importance{technique: e.Technique, features: featureNames(r, len(values)), values: values})
	}
	return out
}

func meanAbs(v any) []float64 {
	rows, ok := v.([][]float64)
	if !ok || len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(rows[0]))
	for _, row := range rows {
		for j, x := range row {
			out[j] += math.Abs(x)
		}
	}
	for j := range out {
		out[j] /= float64(len(rows))
	}
	return out
}

func confusionMatrices(r *cookbook.TubeResult) []confusion {
	rs, ok := r.Steps["report"]
	if !ok {
		return nil
	}
	var out []confusion
	for _, e := range rs.Entries() {
		if m, ok := e.Value.([][]float64); ok && e.Err == nil && e.Name == "confusion_matrix" {
			out = append(out, confusion{technique: e.Technique, matrix: m})
		}
	}
	return out
}

// writeConfusion writes rows as true classes and columns as predicted ones.
func writeConfusion(w io.Writer, m [][]float64, classes []string) error {
	label := func(i int) string {
		if i < len(classes) {
			return classes[i]
		}
		return strconv.Itoa(i)
	}
	cw := csv.NewWriter(w)
	header := []string{"true\\predicted"}
	for j := range m {
		header = append(header, label(j))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range m {
		rec := []string{label(i)}
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// plotImportances draws one bar per feature as a PNG.
func (e *Exporter) plotImportances(w io.Writer, tube int, imp importance) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("tube %d: %s feature importances", tube, imp.technique)
	p.Y.Label.Text = "importance"

	values := make(plotter.Values, len(imp.values))
	for i, v := range imp.values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values[i] = v
		}
	}
	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return err
	}
	bars.Color = e.opts.PlotColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(imp.features...)

	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
