// Package feature_selection scores features and picks the subset a model
// is trained on: univariate tests (ANOVA F, correlation F, chi-squared),
// selection by model importances, and recursive feature elimination.
package feature_selection

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// ScoreFunc は特徴量ごとのスコアとp値を返す。スコアが大きいほど目的変数との関係が強い
type ScoreFunc func(X mat.Matrix, y []float64) (scores, pvalues []float64, err error)

func checkXY(op string, X mat.Matrix, y []float64) (int, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if r != len(y) {
		return 0, 0, errors.NewDimensionError(op, r, len(y), 0)
	}
	return r, c, nil
}

// classRows はクラスラベルごとの行番号をラベル昇順で返す
func classRows(y []float64) [][]int {
	byLabel := make(map[float64][]int)
	for i, v := range y {
		byLabel[v] = append(byLabel[v], i)
	}
	labels := make([]float64, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	out := make([][]int, len(labels))
	for i, l := range labels {
		out[i] = byLabel[l]
	}
	return out
}

// survival は上側確率。統計量が +Inf なら0、NaN なら1
func survival(cdf func(float64) float64, x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 1
	case math.IsInf(x, 1):
		return 0
	}
	return 1 - cdf(x)
}

// FClassif は一元配置分散分析のF値を特徴量ごとに計算する
func FClassif(X mat.Matrix, y []float64) ([]float64, []float64, error) {
	const op = "FClassif"
	r, c, err := checkXY(op, X, y)
	if err != nil {
		return nil, nil, err
	}
	groups := classRows(y)
	k := len(groups)
	if k < 2 {
		return nil, nil, errors.NewValueError(op, "at least two classes are required")
	}
	if r <= k {
		return nil, nil, errors.NewValueError(op, "more samples than classes are required")
	}

	dist := distuv.F{D1: float64(k - 1), D2: float64(r - k)}
	scores := make([]float64, c)
	pvalues := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		grand := stat.Mean(col, nil)
		var between, within float64
		for _, rows := range groups {
			var sum float64
			for _, i := range rows {
				sum += col[i]
			}
			m := sum / float64(len(rows))
			between += float64(len(rows)) * (m - grand) * (m - grand)
			for _, i := range rows {
				within += (col[i] - m) * (col[i] - m)
			}
		}
		f := (between / float64(k-1)) / (within / float64(r-k))
		scores[j], pvalues[j] = f, survival(dist.CDF, f)
	}
	return scores, pvalues, nil
}

// FRegression は目的変数との相関係数からF値を計算する
func FRegression(X mat.Matrix, y []float64) ([]float64, []float64, error) {
	const op = "FRegression"
	r, c, err := checkXY(op, X, y)
	if err != nil {
		return nil, nil, err
	}
	if r < 3 {
		return nil, nil, errors.NewValueError(op, "at least three samples are required")
	}

	dist := distuv.F{D1: 1, D2: float64(r - 2)}
	scores := make([]float64, c)
	pvalues := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		corr := stat.Correlation(col, y, nil)
		r2 := corr * corr
		f := math.NaN()
		switch {
		case math.IsNaN(corr):
		case r2 >= 1:
			f = math.Inf(1)
		default:
			f = r2 / (1 - r2) * float64(r-2)
		}
		scores[j], pvalues[j] = f, survival(dist.CDF, f)
	}
	return scores, pvalues, nil
}

// Chi2 は非負の特徴量（頻度など）とクラスのカイ二乗統計量を計算する
func Chi2(X mat.Matrix, y []float64) ([]float64, []float64, error) {
	const op = "Chi2"
	r, c, err := checkXY(op, X, y)
	if err != nil {
		return nil, nil, err
	}
	if mat.Min(X) < 0 {
		return nil, nil, errors.NewValueError(op, "features must be non-negative")
	}
	groups := classRows(y)
	k := len(groups)
	if k < 2 {
		return nil, nil, errors.NewValueError(op, "at least two classes are required")
	}

	dist := distuv.ChiSquared{K: float64(k - 1)}
	scores := make([]float64, c)
	pvalues := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		var total float64
		for _, v := range col {
			total += v
		}
		chi := math.NaN()
		if total > 0 {
			chi = 0
			for _, rows := range groups {
				var observed float64
				for _, i := range rows {
					observed += col[i]
				}
				expected := total * float64(len(rows)) / float64(r)
				chi += (observed - expected) * (observed - expected) / expected
			}
		}
		scores[j], pvalues[j] = chi, survival(dist.CDF, chi)
	}
	return scores, pvalues, nil
}

// SelectKBest returns the positions of the k highest scores in ascending
// order. NaN scores rank last; ties keep the earlier feature.
func SelectKBest(scores []float64, k int) []int {
	if k >= len(scores) {
		return allIndices(len(scores))
	}
	if k <= 0 {
		return nil
	}
	order := allIndices(len(scores))
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if math.IsNaN(sb) {
			return !math.IsNaN(sa)
		}
		return sa > sb
	})
	out := order[:k]
	slices.Sort(out)
	return out
}

// SelectFpr は p値が alpha 未満の特徴量を選ぶ
func SelectFpr(pvalues []float64, alpha float64) []int {
	var out []int
	for j, p := range pvalues {
		if p < alpha {
			out = append(out, j)
		}
	}
	return out
}

// SelectFdr は Benjamini-Hochberg 法で偽発見率を alpha 以下に抑える
func SelectFdr(pvalues []float64, alpha float64) []int {
	m := len(pvalues)
	sorted := slices.Clone(pvalues)
	slices.Sort(sorted)
	threshold := math.Inf(-1)
	for i, p := range sorted {
		if p <= alpha*float64(i+1)/float64(m) {
			threshold = p
		}
	}
	var out []int
	for j, p := range pvalues {
		if p <= threshold {
			out = append(out, j)
		}
	}
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
