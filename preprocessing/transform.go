package preprocessing

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// Normalizer は各行をノルム1に正規化する。行ごとの変換なので学習は不要
type Normalizer struct {
	model.BaseEstimator

	// Norm は "l1", "l2", "max" のいずれか
	Norm      string
	NFeatures int
}

// NewNormalizer は新しいNormalizerを作成する
func NewNormalizer(norm string) *Normalizer {
	return &Normalizer{Norm: norm}
}

// Fit は特徴量の数を記録する
func (n *Normalizer) Fit(X mat.Matrix) error {
	switch n.Norm {
	case "l1", "l2", "max":
	default:
		return errors.NewValidationError("norm", "must be l1, l2 or max", n.Norm)
	}
	_, c, err := checkFit("Normalizer.Fit", X)
	if err != nil {
		return err
	}
	n.NFeatures = c
	n.SetFitted()
	return nil
}

// Transform は各行をノルムで割る。ノルムが0の行はそのまま
func (n *Normalizer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("Normalizer", &n.BaseEstimator, X, n.NFeatures); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		var norm float64
		switch n.Norm {
		case "l1":
			norm = floats.Norm(row, 1)
		case "max":
			norm = floats.Norm(row, math.Inf(1))
		default:
			norm = floats.Norm(row, 2)
		}
		if norm > 0 {
			floats.Scale(1/norm, row)
		}
		out.SetRow(i, row)
	}
	return out, nil
}

// FitTransform は学習と変換を同時に行う
func (n *Normalizer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := n.Fit(X); err != nil {
		return nil, err
	}
	return n.Transform(X)
}

// KBinsDiscretizer は連続値をビン番号 0..n_bins-1 に置き換える
type KBinsDiscretizer struct {
	model.BaseEstimator

	NBins int
	// Strategy は "uniform"（等幅）または "quantile"（等頻度）
	Strategy string

	// Edges は特徴量ごとのビン境界（内側の境界のみ）
	Edges     [][]float64
	NFeatures int
}

// NewKBinsDiscretizer は新しいKBinsDiscretizerを作成する
func NewKBinsDiscretizer(nBins int, strategy string) *KBinsDiscretizer {
	return &KBinsDiscretizer{NBins: nBins, Strategy: strategy}
}

// Fit はビン境界を計算する。重複した境界は取り除く
func (k *KBinsDiscretizer) Fit(X mat.Matrix) error {
	if k.NBins < 2 {
		return errors.NewValidationError("n_bins", "must be >= 2", k.NBins)
	}
	if k.Strategy != "uniform" && k.Strategy != "quantile" {
		return errors.NewValidationError("strategy", "must be uniform or quantile", k.Strategy)
	}
	r, c, err := checkFit("KBinsDiscretizer.Fit", X)
	if err != nil {
		return err
	}
	k.NFeatures = c
	k.Edges = make([][]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		slices.Sort(col)
		edges := make([]float64, 0, k.NBins-1)
		lo, hi := col[0], col[r-1]
		for b := 1; b < k.NBins; b++ {
			p := float64(b) / float64(k.NBins)
			if k.Strategy == "uniform" {
				edges = append(edges, lo+p*(hi-lo))
			} else {
				edges = append(edges, quantile(col, p))
			}
		}
		k.Edges[j] = slices.Compact(edges)
	}
	k.SetFitted()
	return nil
}

// Transform は各値をビン番号に置き換える。境界上の値は上のビンに入る
func (k *KBinsDiscretizer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("KBinsDiscretizer", &k.BaseEstimator, X, k.NFeatures); err != nil {
		return nil, err
	}
	return apply(X, func(_, j int, v float64) float64 {
		return float64(sort.SearchFloat64s(k.Edges[j], math.Nextafter(v, math.Inf(1))))
	}), nil
}

// FitTransform は学習と変換を同時に行う
func (k *KBinsDiscretizer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := k.Fit(X); err != nil {
		return nil, err
	}
	return k.Transform(X)
}
