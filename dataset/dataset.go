// Package dataset holds the tabular data a simplify run works on: a numeric
// feature matrix, unencoded categorical columns, and the target.
package dataset

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// MissingCategory replaces blank categorical values in FillMissing.
const MissingCategory = "missing"

// Column は未エンコードのカテゴリ列
type Column struct {
	Name   string
	Values []string
}

// Dataset は特徴量行列とターゲットの組
//
// X の列は Features と同じ順序。カテゴリ列は Categoricals に文字列のまま
// 保持され、encode ステップで数値列に置き換えられる。
type Dataset struct {
	Label    string
	Task     model.Task
	Features []string
	// X is n×len(Features); nil when there are no numeric columns.
	X *mat.Dense
	Y *mat.VecDense
	// Classes maps class codes to the original label text (classification).
	Classes      []string
	Categoricals []Column
	// Synthetic counts rows appended by oversampling.
	Synthetic int

	n int
}

// New builds a dataset from a numeric matrix and target.
func New(label string, task model.Task, features []string, X *mat.Dense, y []float64) (*Dataset, error) {
	const op = "dataset.New"
	if len(y) == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if X != nil {
		r, c := X.Dims()
		if r != len(y) {
			return nil, errors.NewDimensionError(op, len(y), r, 0)
		}
		if c != len(features) {
			return nil, errors.NewDimensionError(op, len(features), c, 1)
		}
	} else if len(features) > 0 {
		return nil, errors.NewValueError(op, "features given without a matrix")
	}
	d := &Dataset{
		Label:    label,
		Task:     task,
		Features: append([]string(nil), features...),
		X:        X,
		Y:        mat.NewVecDense(len(y), append([]float64(nil), y...)),
		n:        len(y),
	}
	if task == model.Classification {
		k, err := classCount(y)
		if err != nil {
			return nil, err
		}
		d.Classes = make([]string, k)
		for i := range d.Classes {
			d.Classes[i] = formatFloat(float64(i))
		}
	}
	return d, nil
}

func classCount(y []float64) (int, error) {
	maxCode := -1.0
	for _, v := range y {
		if v < 0 || v != math.Trunc(v) {
			return 0, errors.NewValueError("dataset", "class labels must be non-negative integer codes")
		}
		maxCode = math.Max(maxCode, v)
	}
	return int(maxCode) + 1, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.n }

// NumFeatures returns the number of numeric columns.
func (d *Dataset) NumFeatures() int { return len(d.Features) }

// NumClasses returns the number of classes, 0 for regression.
func (d *Dataset) NumClasses() int { return len(d.Classes) }

// Target returns the target values of the given rows. nil returns all.
func (d *Dataset) Target(idx []int) []float64 {
	if idx == nil {
		return mat.Col(nil, 0, d.Y)
	}
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = d.Y.AtVec(r)
	}
	return out
}

// TargetMatrix returns the target of the given rows as an n×1 matrix.
func (d *Dataset) TargetMatrix(idx []int) *mat.Dense {
	y := d.Target(idx)
	return mat.NewDense(len(y), 1, y)
}

// Rows returns a copy of the numeric features of the given rows. nil
// returns all rows.
func (d *Dataset) Rows(idx []int) *mat.Dense {
	if d.X == nil {
		return nil
	}
	if idx == nil {
		return mat.DenseCopyOf(d.X)
	}
	out := mat.NewDense(len(idx), len(d.Features), nil)
	for i, r := range idx {
		out.SetRow(i, d.X.RawRowView(r))
	}
	return out
}

// Row returns row i of X. The slice aliases the matrix.
func (d *Dataset) Row(i int) []float64 {
	return d.X.RawRowView(i)
}

// Subset returns a new dataset holding the given rows.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Label:    d.Label,
		Task:     d.Task,
		Features: append([]string(nil), d.Features...),
		X:        d.Rows(idx),
		Y:        mat.NewVecDense(len(idx), d.Target(idx)),
		Classes:  append([]string(nil), d.Classes...),
		n:        len(idx),
	}
	for _, c := range d.Categoricals {
		vals := make([]string, len(idx))
		for i, r := range idx {
			vals[i] = c.Values[r]
		}
		out.Categoricals = append(out.Categoricals, Column{Name: c.Name, Values: vals})
	}
	return out
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Label:     d.Label,
		Task:      d.Task,
		Features:  append([]string(nil), d.Features...),
		Y:         mat.VecDenseCopyOf(d.Y),
		Classes:   append([]string(nil), d.Classes...),
		Synthetic: d.Synthetic,
		n:         d.n,
	}
	if d.X != nil {
		out.X = mat.DenseCopyOf(d.X)
	}
	for _, c := range d.Categoricals {
		out.Categoricals = append(out.Categoricals, Column{Name: c.Name, Values: append([]string(nil), c.Values...)})
	}
	return out
}

// ColumnIndex returns the position of a numeric feature, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	return slices.Index(d.Features, name)
}

// SetX replaces the feature matrix, keeping the column names.
func (d *Dataset) SetX(X *mat.Dense) error {
	r, c := X.Dims()
	if r != d.n {
		return errors.NewDimensionError("dataset.SetX", d.n, r, 0)
	}
	if c != len(d.Features) {
		return errors.NewDimensionError("dataset.SetX", len(d.Features), c, 1)
	}
	d.X = X
	return nil
}

// AppendRows adds synthetic rows to the end of the dataset and returns
// their indices. Categorical columns must be encoded first.
func (d *Dataset) AppendRows(X mat.Matrix, y []float64) ([]int, error) {
	const op = "dataset.AppendRows"
	if len(d.Categoricals) > 0 {
		return nil, errors.NewValueError(op, "categorical columns must be encoded before rows are synthesized")
	}
	if d.X == nil {
		return nil, errors.NewValueError(op, "no numeric features")
	}
	r, c := X.Dims()
	if r != len(y) {
		return nil, errors.NewDimensionError(op, r, len(y), 0)
	}
	if c != len(d.Features) {
		return nil, errors.NewDimensionError(op, len(d.Features), c, 1)
	}
	if r == 0 {
		return nil, nil
	}

	grown := mat.NewDense(d.n+r, c, nil)
	grown.Slice(0, d.n, 0, c).(*mat.Dense).Copy(d.X)
	grown.Slice(d.n, d.n+r, 0, c).(*mat.Dense).Copy(X)

	target := append(d.Target(nil), y...)
	idx := make([]int, r)
	for i := range idx {
		idx[i] = d.n + i
	}

	d.X = grown
	d.Y = mat.NewVecDense(len(target), target)
	d.n += r
	d.Synthetic += r
	return idx, nil
}

// AppendColumns adds numeric feature columns.
func (d *Dataset) AppendColumns(names []string, cols *mat.Dense) error {
	const op = "dataset.AppendColumns"
	r, c := cols.Dims()
	if r != d.n {
		return errors.NewDimensionError(op, d.n, r, 0)
	}
	if c != len(names) {
		return errors.NewDimensionError(op, len(names), c, 1)
	}
	for _, name := range names {
		if d.ColumnIndex(name) >= 0 {
			return errors.NewValueError(op, "duplicate column "+name)
		}
	}

	if d.X == nil {
		d.X = mat.DenseCopyOf(cols)
	} else {
		old := len(d.Features)
		grown := mat.NewDense(d.n, old+c, nil)
		grown.Slice(0, d.n, 0, old).(*mat.Dense).Copy(d.X)
		grown.Slice(0, d.n, old, old+c).(*mat.Dense).Copy(cols)
		d.X = grown
	}
	d.Features = append(d.Features, names...)
	return nil
}

// KeepColumns restricts the numeric features to the given positions, in
// the given order.
func (d *Dataset) KeepColumns(idx []int) error {
	const op = "dataset.KeepColumns"
	if d.X == nil {
		return errors.NewValueError(op, "no numeric features")
	}
	if len(idx) == 0 {
		return errors.NewValueError(op, "at least one column must be kept")
	}
	names := make([]string, len(idx))
	X := mat.NewDense(d.n, len(idx), nil)
	col := make([]float64, d.n)
	for k, j := range idx {
		if j < 0 || j >= len(d.Features) {
			return errors.NewValidationError("columns", "position out of range", j)
		}
		names[k] = d.Features[j]
		mat.Col(col, j, d.X)
		X.SetCol(k, col)
	}
	d.X = X
	d.Features = names
	return nil
}

// TakeCategoricals removes and returns the categorical columns.
func (d *Dataset) TakeCategoricals() []Column {
	cols := d.Categoricals
	d.Categoricals = nil
	return cols
}

// FillMissing は欠損値を補完する
// 数値列の NaN は列平均、カテゴリ列の空値は "missing" に置き換える。
// 全て欠損の数値列は 0 で埋める。
func (d *Dataset) FillMissing() int {
	filled := 0
	if d.X != nil {
		col := make([]float64, d.n)
		for j := range d.Features {
			mat.Col(col, j, d.X)
			present := make([]float64, 0, d.n)
			for _, v := range col {
				if !math.IsNaN(v) {
					present = append(present, v)
				}
			}
			if len(present) == d.n {
				continue
			}
			mean := 0.0
			if len(present) > 0 {
				mean = floats.Sum(present) / float64(len(present))
			}
			for i, v := range col {
				if math.IsNaN(v) {
					d.X.Set(i, j, mean)
					filled++
				}
			}
		}
	}
	for _, c := range d.Categoricals {
		for i, v := range c.Values {
			if v == "" {
				c.Values[i] = MissingCategory
				filled++
			}
		}
	}
	return filled
}

// HasMissing reports whether any numeric value is NaN.
func (d *Dataset) HasMissing() bool {
	if d.X == nil {
		return false
	}
	return floats.HasNaN(d.X.RawMatrix().Data)
}
