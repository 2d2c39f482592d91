// Package linear implements ordinary least squares and ridge regression.
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/parallel"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// LinearRegression は線形回帰モデル。alpha > 0 でリッジ回帰になる
type LinearRegression struct {
	model.BaseEstimator // BaseEstimatorを埋め込み

	fitIntercept bool
	alpha        float64
	rcond        float64

	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
	NFeatures int           // 特徴量の数
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{fitIntercept: true, rcond: 1e-12}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// NewRidge はL2正則化付きの線形回帰モデルを作成する
func NewRidge(alpha float64, opts ...Option) *LinearRegression {
	return NewLinearRegression(append([]Option{WithAlpha(alpha)}, opts...)...)
}

// Fit はモデルを訓練データで学習させる。
// 切片は中心化で求め、正則化の対象にしない。
// 最小二乗解は特異値分解で求めるため、列が線形従属でも最小ノルム解を返す
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	const op = "LinearRegression.Fit"
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	if lr.alpha < 0 {
		return errors.NewValidationError("alpha", "must be >= 0", lr.alpha)
	}

	xMean := make([]float64, c)
	yMean := 0.0
	if lr.fitIntercept {
		for j := 0; j < c; j++ {
			xMean[j] = stat.Mean(mat.Col(nil, j, X), nil)
		}
		yMean = stat.Mean(mat.Col(nil, 0, y), nil)
	}

	// リッジの場合は sqrt(alpha)·I を下に積んだ拡大系を解く
	rows := r
	if lr.alpha > 0 {
		rows += c
	}
	design := mat.NewDense(rows, c, nil)
	target := mat.NewVecDense(rows, nil)

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	const parallelThreshold = 1000

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				design.Set(i, j, X.At(i, j)-xMean[j])
			}
			target.SetVec(i, y.At(i, 0)-yMean)
		}
	})
	if lr.alpha > 0 {
		s := math.Sqrt(lr.alpha)
		for j := 0; j < c; j++ {
			design.Set(r+j, j, s)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return errors.NewModelError(op, "svd failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(lr.rcond)
	if rank == 0 {
		return errors.NewModelError(op, "singular matrix", errors.ErrSingularMatrix)
	}
	weights := mat.NewVecDense(c, nil)
	svd.SolveVecTo(weights, target, rank)

	lr.Weights = weights
	lr.NFeatures = c
	lr.Intercept = 0
	if lr.fitIntercept {
		lr.Intercept = yMean - mat.Dot(weights, mat.NewVecDense(c, xMean))
	}

	// モデルを学習済み状態に設定
	lr.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	// 予測: y = X * weights + intercept
	var out mat.VecDense
	out.MulVec(X, lr.Weights)
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		predictions.Set(i, 0, out.AtVec(i)+lr.Intercept)
	}
	return predictions, nil
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.Weights)
}

// GetIntercept は学習された切片を返す
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	r, _ := y.Dims()
	if pr, _ := yPred.Dims(); pr != r {
		return 0, errors.NewDimensionError("LinearRegression.Score", pr, r, 0)
	}
	truth := mat.Col(nil, 0, y)
	if stat.Variance(truth, nil) == 0 {
		return 0, errors.Newf("total sum of squares is zero")
	}
	return stat.RSquaredFrom(mat.Col(nil, 0, yPred), truth, nil), nil
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"alpha":         lr.alpha,
	}
}

// SetParams はハイパーパラメータを設定する
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "fit_intercept":
			b, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			lr.fitIntercept = b
		case "alpha":
			switch v := value.(type) {
			case float64:
				lr.alpha = v
			case int:
				lr.alpha = float64(v)
			case int64:
				lr.alpha = float64(v)
			default:
				return errors.NewValidationError(key, "must be a number", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}
