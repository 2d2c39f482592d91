package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// pair は入力ベクトルを検証してスライスとして返す
// nil・空ベクトル・長さ不一致はエラーになる。
func pair(op string, yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil || yTrue.IsEmpty() || yPred.IsEmpty() {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return nil, nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}

func residuals(yTrue, yPred []float64) []float64 {
	diff := make([]float64, len(yTrue))
	floats.SubTo(diff, yTrue, yPred)
	return diff
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	diff := residuals(t, p)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

// MSEMatrix は n×1 行列の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, errors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}

	return MSE(
		mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)),
		mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)),
	)
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Distance(t, p, 1) / float64(len(t)), nil
}

// MedianAbsoluteError は絶対誤差の中央値を計算する
func MedianAbsoluteError(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MedianAbsoluteError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	abs := residuals(t, p)
	for i, v := range abs {
		abs[i] = math.Abs(v)
	}
	return median(abs), nil
}

// MaxError は最大絶対誤差を計算する
func MaxError(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MaxError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Distance(t, p, math.Inf(1)), nil
}

// MSLE は平均二乗対数誤差を計算する。負の値はエラー。
func MSLE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MSLE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if floats.Min(t) < 0 || floats.Min(p) < 0 {
		return 0, errors.NewValueError("MSLE", "targets and predictions must be non-negative")
	}
	var sum float64
	for i := range t {
		d := math.Log1p(t[i]) - math.Log1p(p[i])
		sum += d * d
	}
	return sum / float64(len(t)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// 全変動（TSS）と残差変動（RSS）
	mean := stat.Mean(t, nil)
	var tss float64
	for _, v := range t {
		tss += (v - mean) * (v - mean)
	}
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	diff := residuals(t, p)
	rss := floats.Dot(diff, diff)

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrue が 0 の行は除外する。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	validCount := 0
	for i, v := range t {
		if v != 0 {
			sum += math.Abs(v-p[i]) / math.Abs(v)
			validCount++
		}
	}
	if validCount == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return (sum / float64(validCount)) * 100, nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
// 1 - Var(yTrue - yPred) / Var(yTrue)
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	_, varTrue := stat.PopMeanVariance(t, nil)
	if varTrue == 0 {
		return 0, errors.Newf("ExplainedVarianceScore: no variance in yTrue")
	}
	_, varDiff := stat.PopMeanVariance(residuals(t, p), nil)
	return 1 - varDiff/varTrue, nil
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	floats.Argsort(s, make([]int, len(s)))
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
