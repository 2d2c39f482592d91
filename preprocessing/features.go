package preprocessing

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// PolynomialFeatures は次数 Degree までの特徴量の積を列として作る
//
// 出力列の順序は次数の昇順、同じ次数の中では入力列の辞書順。
type PolynomialFeatures struct {
	model.BaseEstimator

	Degree          int
	InteractionOnly bool
	IncludeBias     bool

	NFeatures int
	// Powers は出力列ごとの各入力列の指数
	Powers [][]int
}

// NewPolynomialFeatures は新しいPolynomialFeaturesを作成する
func NewPolynomialFeatures(degree int, interactionOnly, includeBias bool) *PolynomialFeatures {
	return &PolynomialFeatures{Degree: degree, InteractionOnly: interactionOnly, IncludeBias: includeBias}
}

// Fit は出力列の指数を決める
func (p *PolynomialFeatures) Fit(X mat.Matrix) error {
	if p.Degree < 1 {
		return errors.NewValidationError("degree", "must be >= 1", p.Degree)
	}
	_, c, err := checkFit("PolynomialFeatures.Fit", X)
	if err != nil {
		return err
	}
	p.NFeatures = c
	p.Powers = nil
	start := 1
	if p.IncludeBias {
		start = 0
	}
	for d := start; d <= p.Degree; d++ {
		p.combine(make([]int, c), 0, d)
	}
	p.SetFitted()
	return nil
}

// combine は残り次数 left を from 以降の列に割り振る
func (p *PolynomialFeatures) combine(powers []int, from, left int) {
	if left == 0 {
		p.Powers = append(p.Powers, append([]int(nil), powers...))
		return
	}
	for j := from; j < len(powers); j++ {
		next := j
		if p.InteractionOnly {
			next = j + 1
		}
		powers[j]++
		p.combine(powers, next, left-1)
		powers[j]--
	}
}

// Transform は各出力列の積を計算する
func (p *PolynomialFeatures) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("PolynomialFeatures", &p.BaseEstimator, X, p.NFeatures); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, len(p.Powers), nil)
	for i := 0; i < r; i++ {
		for k, powers := range p.Powers {
			v := 1.0
			for j, e := range powers {
				for ; e > 0; e-- {
					v *= X.At(i, j)
				}
			}
			out.Set(i, k, v)
		}
	}
	return out, nil
}

// FitTransform は学習と変換を同時に行う
func (p *PolynomialFeatures) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// FeatureNames returns the output column names: "a", "a^2", "a*b" and "1"
// for the bias.
func (p *PolynomialFeatures) FeatureNames(input []string) []string {
	names := make([]string, len(p.Powers))
	for k, powers := range p.Powers {
		var terms []string
		for j, e := range powers {
			switch {
			case e == 1:
				terms = append(terms, input[j])
			case e > 1:
				terms = append(terms, input[j]+"^"+strconv.Itoa(e))
			}
		}
		if len(terms) == 0 {
			names[k] = "1"
			continue
		}
		names[k] = strings.Join(terms, "*")
	}
	return names
}

// Degrees returns the total degree of each output column.
func (p *PolynomialFeatures) Degrees() []int {
	out := make([]int, len(p.Powers))
	for k, powers := range p.Powers {
		for _, e := range powers {
			out[k] += e
		}
	}
	return out
}

// Pairwise operations.
const (
	PairSum        = "sum"
	PairDifference = "difference"
	PairQuotient   = "quotient"
)

// PairwiseFeatures は全ての列の組 (i<j) に二項演算を適用する。
// quotient で分母が0の要素は0になる
type PairwiseFeatures struct {
	model.BaseEstimator

	Op        string
	NFeatures int
}

// NewPairwiseFeatures は新しいPairwiseFeaturesを作成する
func NewPairwiseFeatures(op string) *PairwiseFeatures {
	return &PairwiseFeatures{Op: op}
}

// Fit は特徴量の数を記録する
func (p *PairwiseFeatures) Fit(X mat.Matrix) error {
	switch p.Op {
	case PairSum, PairDifference, PairQuotient:
	default:
		return errors.NewValidationError("op", "must be sum, difference or quotient", p.Op)
	}
	_, c, err := checkFit("PairwiseFeatures.Fit", X)
	if err != nil {
		return err
	}
	if c < 2 {
		return errors.NewValueError("PairwiseFeatures.Fit", "at least two features are required")
	}
	p.NFeatures = c
	p.SetFitted()
	return nil
}

// Transform は列の組ごとに1列を作る
func (p *PairwiseFeatures) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("PairwiseFeatures", &p.BaseEstimator, X, p.NFeatures); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, c*(c-1)/2, nil)
	for i := 0; i < r; i++ {
		k := 0
		for a := 0; a < c; a++ {
			for b := a + 1; b < c; b++ {
				x, y := X.At(i, a), X.At(i, b)
				var v float64
				switch p.Op {
				case PairSum:
					v = x + y
				case PairDifference:
					v = x - y
				default:
					if y != 0 {
						v = x / y
					}
				}
				out.Set(i, k, v)
				k++
			}
		}
	}
	return out, nil
}

// FitTransform は学習と変換を同時に行う
func (p *PairwiseFeatures) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// FeatureNames returns "a+b", "a-b" or "a/b" for every pair.
func (p *PairwiseFeatures) FeatureNames(input []string) []string {
	sym := map[string]string{PairSum: "+", PairDifference: "-", PairQuotient: "/"}[p.Op]
	var names []string
	for a := 0; a < len(input); a++ {
		for b := a + 1; b < len(input); b++ {
			names = append(names, input[a]+sym+input[b])
		}
	}
	return names
}
