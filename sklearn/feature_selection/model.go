package feature_selection

import (
	"context"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// Importances returns one non-negative weight per feature of a fitted
// estimator: impurity importances for trees and forests, absolute
// coefficients for linear models.
func Importances(est model.Estimator) ([]float64, error) {
	if fi, ok := est.(model.FeatureImportancer); ok {
		if imp := fi.GetFeatureImportances(); imp != nil {
			return imp, nil
		}
	}
	if lm, ok := est.(model.LinearModel); ok {
		if w := lm.GetWeights(); w != nil {
			out := make([]float64, len(w))
			for j, v := range w {
				out[j] = math.Abs(v)
			}
			return out, nil
		}
	}
	return nil, errors.NewValueError("Importances", "the estimator exposes neither feature importances nor coefficients")
}

// Threshold は "mean", "median", "1.25*mean" のような倍率付きの指定、
// または数値を閾値に変換する
func Threshold(importances []float64, spec string) (float64, error) {
	spec = strings.TrimSpace(spec)
	scale := 1.0
	if f, ref, ok := strings.Cut(spec, "*"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, errors.NewValidationError("threshold", "scale must be a number", spec)
		}
		scale, spec = v, strings.TrimSpace(ref)
	}
	switch spec {
	case "mean":
		return scale * stat.Mean(importances, nil), nil
	case "median":
		sorted := slices.Clone(importances)
		slices.Sort(sorted)
		n := len(sorted)
		if n == 0 {
			return 0, errors.NewValueError("Threshold", "no importances")
		}
		return scale * (sorted[(n-1)/2] + sorted[n/2]) / 2, nil
	}
	v, err := strconv.ParseFloat(spec, 64)
	if err != nil {
		return 0, errors.NewValidationError("threshold", "must be mean, median, <scale>*mean or a number", spec)
	}
	return scale * v, nil
}

// SelectFromModel returns the features whose importance reaches threshold.
// maxFeatures > 0 keeps only that many of the most important ones.
func SelectFromModel(importances []float64, threshold float64, maxFeatures int) []int {
	var out []int
	for j, v := range importances {
		if v >= threshold {
			out = append(out, j)
		}
	}
	if maxFeatures > 0 && len(out) > maxFeatures {
		scores := make([]float64, len(importances))
		for j := range scores {
			scores[j] = math.Inf(-1)
		}
		for _, j := range out {
			scores[j] = importances[j]
		}
		out = SelectKBest(scores, maxFeatures)
	}
	return out
}

// RFE は重要度の低い特徴量を Step 個ずつ取り除き、NFeatures 個まで減らす
type RFE struct {
	// Build は未学習の推定器を作る。呼び出しごとに新しいインスタンスを返すこと
	Build     func() (model.Estimator, error)
	NFeatures int
	Step      int
}

// Path fits the estimator on the surviving features after each
// elimination round and returns the surviving positions before the first
// round and after every round.
func (r RFE) Path(ctx context.Context, X, y mat.Matrix) ([][]int, error) {
	const op = "RFE"
	if r.NFeatures < 1 {
		return nil, errors.NewValidationError("n_features_to_select", "must be >= 1", r.NFeatures)
	}
	if r.Step < 1 {
		return nil, errors.NewValidationError("step", "must be >= 1", r.Step)
	}
	_, c := X.Dims()
	support := allIndices(c)
	path := [][]int{slices.Clone(support)}

	for len(support) > r.NFeatures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		est, err := r.Build()
		if err != nil {
			return nil, err
		}
		if err := est.Fit(Columns(X, support), y); err != nil {
			return nil, errors.Wrap(err, op)
		}
		imp, err := Importances(est)
		if err != nil {
			return nil, err
		}
		if len(imp) != len(support) {
			return nil, errors.NewDimensionError(op, len(support), len(imp), 1)
		}

		order := allIndices(len(support))
		sort.SliceStable(order, func(a, b int) bool { return weight(imp[order[a]]) < weight(imp[order[b]]) })
		drop := min(r.Step, len(support)-r.NFeatures)
		removed := make(map[int]bool, drop)
		for _, pos := range order[:drop] {
			removed[pos] = true
		}
		next := make([]int, 0, len(support)-drop)
		for pos, j := range support {
			if !removed[pos] {
				next = append(next, j)
			}
		}
		support = next
		path = append(path, slices.Clone(support))
	}
	return path, nil
}

// Select runs the elimination and returns the surviving positions.
func (r RFE) Select(ctx context.Context, X, y mat.Matrix) ([]int, error) {
	path, err := r.Path(ctx, X, y)
	if err != nil {
		return nil, err
	}
	return path[len(path)-1], nil
}

func weight(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Columns copies the given columns of X in order.
func Columns(X mat.Matrix, idx []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(idx), nil)
	col := make([]float64, r)
	for k, j := range idx {
		mat.Col(col, j, X)
		out.SetCol(k, col)
	}
	return out
}
