package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/simplify/cookbook"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/metrics"
	"github.com/YuminosukeSato/simplify/pkg/log"
)

// Summary is the table written to summary.csv: one row per tube with the
// chef choices followed by every scalar critic output.
type Summary struct {
	Header []string
	Rows   [][]string
}

// scalarStep reports whether outputs of the step belong in the summary.
// Chef outputs are bookkeeping; the tube columns already name them.
func scalarStep(cb *cookbook.Cookbook, name string) bool {
	if cb == nil {
		return true
	}
	s, ok := cb.Stage(name)
	return !ok || s.Phase != log.PhaseChef
}

// BuildSummary collects the summary table. Columns are named
// <step>.<technique>.<output> and appear in the order first seen.
func BuildSummary(cb *cookbook.Cookbook, results []*cookbook.TubeResult) Summary {
	var chefSteps []string
	if cb != nil {
		for _, s := range cb.Stages() {
			if s.Phase == log.PhaseChef {
				chefSteps = append(chefSteps, s.Name)
			}
		}
	} else if len(results) > 0 && results[0] != nil {
		for _, c := range results[0].Recipe.Choices {
			chefSteps = append(chefSteps, c.Step)
		}
	}

	var (
		columns []string
		seen    = map[string]bool{}
		values  = make([]map[string]string, len(results))
	)
	for i, r := range results {
		values[i] = map[string]string{}
		if r == nil {
			continue
		}
		for _, name := range stepOrder(cb, r) {
			if !scalarStep(cb, name) {
				continue
			}
			for _, e := range r.Steps[name].Entries() {
				if e.Err != nil {
					continue
				}
				v, ok := scalar(e.Value)
				if !ok {
					continue
				}
				col := name + "." + e.Technique + "." + e.Name
				if !seen[col] {
					seen[col] = true
					columns = append(columns, col)
				}
				values[i][col] = v
			}
		}
	}

	s := Summary{Header: append(append([]string{"tube"}, chefSteps...), "error", "duration_ms")}
	s.Header = append(s.Header, columns...)
	for i, r := range results {
		if r == nil {
			continue
		}
		row := []string{strconv.Itoa(r.Recipe.Number)}
		for _, st := range chefSteps {
			t, _ := r.Recipe.Technique(st)
			row = append(row, t)
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		row = append(row, errText, strconv.FormatInt(r.Duration.Milliseconds(), 10))
		for _, col := range columns {
			row = append(row, values[i][col])
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// stepOrder lists the steps of a tube in plan order.
func stepOrder(cb *cookbook.Cookbook, r *cookbook.TubeResult) []string {
	var out []string
	if cb != nil {
		for _, name := range cb.Order() {
			if _, ok := r.Steps[name]; ok {
				out = append(out, name)
			}
		}
		return out
	}
	for name := range r.Steps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// WriteSummary writes the summary table as CSV.
func WriteSummary(w io.Writer, cb *cookbook.Cookbook, results []*cookbook.TubeResult) error {
	s := BuildSummary(cb, results)
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return err
	}
	return cw.Error()
}

type tubeJSON struct {
	Tube       int                     `json:"tube"`
	Choices    []cookbook.Choice       `json:"choices"`
	Error      string                  `json:"error,omitempty"`
	DurationMs int64                   `json:"duration_ms"`
	Steps      map[string][]outputJSON `json:"steps"`
}

type outputJSON struct {
	Technique string `json:"technique"`
	Name      string `json:"name,omitempty"`
	Value     any    `json:"value,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WriteJSON dumps every tube with all of its step outputs. Values that
// have no JSON form, such as fitted estimators, are written as their type
// name. NaN and infinities become null.
func WriteJSON(w io.Writer, results []*cookbook.TubeResult) error {
	out := make([]tubeJSON, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		t := tubeJSON{
			Tube:       r.Recipe.Number,
			Choices:    r.Recipe.Choices,
			DurationMs: r.Duration.Milliseconds(),
			Steps:      make(map[string][]outputJSON, len(r.Steps)),
		}
		if r.Err != nil {
			t.Error = r.Err.Error()
		}
		for name, rs := range r.Steps {
			entries := rs.Entries()
			outs := make([]outputJSON, 0, len(entries))
			for _, e := range entries {
				outs = append(outs, entryJSON(e))
			}
			t.Steps[name] = outs
		}
		out = append(out, t)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func entryJSON(e step.Entry) outputJSON {
	o := outputJSON{Technique: e.Technique, Name: e.Name}
	if e.Err != nil {
		o.Error = e.Err.Error()
		return o
	}
	o.Value = jsonValue(e.Value)
	return o
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int, []string:
		return x
	case float64:
		return finite(x)
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = finite(f)
		}
		return out
	case [][]float64:
		out := make([]any, len(x))
		for i, row := range x {
			out[i] = jsonValue(row)
		}
		return out
	case [][][]float64:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = jsonValue(m)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = jsonValue(val)
		}
		return out
	case *metrics.Report:
		return reportJSON(x)
	default:
		return fmt.Sprintf("%T", v)
	}
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func reportJSON(r *metrics.Report) any {
	if r == nil {
		return nil
	}
	classes := make([]map[string]any, len(r.Classes))
	for i, c := range r.Classes {
		classes[i] = classJSON(c)
	}
	return map[string]any{
		"classes":      classes,
		"accuracy":     finite(r.Accuracy),
		"macro_avg":    classJSON(r.MacroAvg),
		"weighted_avg": classJSON(r.WeightedAvg),
	}
}

func classJSON(c metrics.ClassScores) map[string]any {
	return map[string]any{
		"label":     c.Label,
		"precision": finite(c.Precision),
		"recall":    finite(c.Recall),
		"f1":        finite(c.F1),
		"support":   c.Support,
	}
}
