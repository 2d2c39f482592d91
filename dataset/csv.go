package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

var missingTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "na": true, "nan": true, "NaN": true, "null": true, "NULL": true,
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path, label string, task model.Task) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()
	return ReadCSV(f, label, task)
}

// ReadCSV reads a CSV file with a header row.
//
// Columns whose non-missing values all parse as numbers become features of
// X (missing values are NaN); other columns are kept as categoricals. label
// names the target column; empty selects the last column. Classification
// labels are mapped to codes in sorted order (numeric order when every
// label is a number).
func ReadCSV(r io.Reader, label string, task model.Task) (*Dataset, error) {
	const op = "dataset.ReadCSV"

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if len(records) < 2 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}

	header := records[0]
	rows := records[1:]
	labelCol := len(header) - 1
	if label != "" {
		labelCol = -1
		for j, h := range header {
			if h == label {
				labelCol = j
				break
			}
		}
		if labelCol < 0 {
			return nil, errors.NewConfigurationError("general", "label", "column "+strconv.Quote(label)+" not found")
		}
	}

	y, classes, err := parseTarget(op, rows, labelCol, task)
	if err != nil {
		return nil, err
	}

	var (
		names   []string
		numeric [][]float64
		cats    []Column
	)
	for j, name := range header {
		if j == labelCol {
			continue
		}
		if col, ok := numericColumn(rows, j); ok {
			names = append(names, name)
			numeric = append(numeric, col)
			continue
		}
		vals := make([]string, len(rows))
		for i, rec := range rows {
			v := strings.TrimSpace(rec[j])
			if missingTokens[v] {
				v = ""
			}
			vals[i] = v
		}
		cats = append(cats, Column{Name: name, Values: vals})
	}

	var X *mat.Dense
	if len(names) > 0 {
		X = mat.NewDense(len(rows), len(names), nil)
		for j, col := range numeric {
			X.SetCol(j, col)
		}
	}

	d := &Dataset{
		Label:        header[labelCol],
		Task:         task,
		Features:     names,
		X:            X,
		Y:            mat.NewVecDense(len(y), y),
		Classes:      classes,
		Categoricals: cats,
		n:            len(rows),
	}
	return d, nil
}

func numericColumn(rows [][]string, j int) ([]float64, bool) {
	col := make([]float64, len(rows))
	seen := false
	for i, rec := range rows {
		v := strings.TrimSpace(rec[j])
		if missingTokens[v] {
			col[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		col[i] = f
		seen = true
	}
	return col, seen
}

func parseTarget(op string, rows [][]string, j int, task model.Task) ([]float64, []string, error) {
	raw := make([]string, len(rows))
	for i, rec := range rows {
		v := strings.TrimSpace(rec[j])
		if missingTokens[v] {
			return nil, nil, errors.NewValueError(op, "missing label in row "+strconv.Itoa(i+2))
		}
		raw[i] = v
	}

	if task == model.Regression {
		y := make([]float64, len(raw))
		for i, v := range raw {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, nil, errors.NewValueError(op, "regression label "+strconv.Quote(v)+" is not a number")
			}
			y[i] = f
		}
		return y, nil, nil
	}

	uniq := make(map[string]float64)
	allNumeric := true
	for _, v := range raw {
		if _, ok := uniq[v]; ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			allNumeric = false
		}
		uniq[v] = f
	}
	classes := make([]string, 0, len(uniq))
	for v := range uniq {
		classes = append(classes, v)
	}
	if allNumeric {
		sort.Slice(classes, func(a, b int) bool { return uniq[classes[a]] < uniq[classes[b]] })
	} else {
		sort.Strings(classes)
	}

	codes := make(map[string]float64, len(classes))
	recoded := false
	for i, c := range classes {
		codes[c] = float64(i)
		if !allNumeric || uniq[c] != float64(i) {
			recoded = true
		}
	}
	if recoded {
		errors.Warn(errors.NewDataConversionWarning("label", "class code", "labels are mapped to 0..k-1 in sorted order"))
	}

	y := make([]float64, len(raw))
	for i, v := range raw {
		y[i] = codes[v]
	}
	return y, classes, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
