// Package preprocessing provides the feature scalers, categorical encoders
// and class-balancing samplers selected by the chef steps.
package preprocessing

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// 定数特徴量とみなすスケールの下限
const constantScale = 1e-8

// StandardScaler はデータを平均0、標準偏差1に変換する
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// パラメータ:
//   - withMean: 平均を引くかどうか
//   - withStd: 標準偏差で割るかどうか
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c, err := checkFit("StandardScaler.Fit", X)
	if err != nil {
		return err
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		// 標準偏差が0に近い場合は1のまま（ゼロ除算を避ける）
		if s.WithStd && std >= constantScale {
			s.Scale[j] = std
		}
	}

	s.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("StandardScaler", &s.BaseEstimator, X, s.NFeatures); err != nil {
		return nil, err
	}
	return apply(X, func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}), nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("StandardScaler", &s.BaseEstimator, X, s.NFeatures); err != nil {
		return nil, err
	}
	return apply(X, func(_, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}), nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
}

// MinMaxScaler はデータを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin は学習データの最小値
	DataMin []float64

	// DataMax は学習データの最大値
	DataMax []float64

	// Scale は各特徴量のスケール (max - min)
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// パラメータ:
//   - featureRange: スケーリング後の範囲 [min, max]
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{FeatureRange: featureRange}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	r, c, err := checkFit("MinMaxScaler.Fit", X)
	if err != nil {
		return err
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m.DataMin[j] = slices.Min(col)
		m.DataMax[j] = slices.Max(col)

		// 定数特徴量の場合、スケールを1に設定
		m.Scale[j] = m.DataMax[j] - m.DataMin[j]
		if m.Scale[j] < constantScale {
			m.Scale[j] = 1.0
		}
	}

	m.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("MinMaxScaler", &m.BaseEstimator, X, m.NFeatures); err != nil {
		return nil, err
	}
	width := m.FeatureRange[1] - m.FeatureRange[0]
	// X_scaled = (X - X.min) / (X.max - X.min) * (max - min) + min
	return apply(X, func(_, j int, v float64) float64 {
		return (v-m.DataMin[j])/m.Scale[j]*width + m.FeatureRange[0]
	}), nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("MinMaxScaler", &m.BaseEstimator, X, m.NFeatures); err != nil {
		return nil, err
	}
	width := m.FeatureRange[1] - m.FeatureRange[0]
	return apply(X, func(_, j int, v float64) float64 {
		return (v-m.FeatureRange[0])/width*m.Scale[j] + m.DataMin[j]
	}), nil
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.FeatureRange[0], m.FeatureRange[1])
}

// MaxAbsScaler は各特徴量を最大絶対値で割り、[-1, 1]に収める。
// 中心化しないので疎なデータの0を保つ
type MaxAbsScaler struct {
	model.BaseEstimator

	MaxAbs    []float64
	NFeatures int
}

// NewMaxAbsScaler は新しいMaxAbsScalerを作成する
func NewMaxAbsScaler() *MaxAbsScaler {
	return &MaxAbsScaler{}
}

// Fit は各特徴量の最大絶対値を計算する
func (m *MaxAbsScaler) Fit(X mat.Matrix) error {
	r, c, err := checkFit("MaxAbsScaler.Fit", X)
	if err != nil {
		return err
	}
	m.NFeatures = c
	m.MaxAbs = make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			m.MaxAbs[j] = math.Max(m.MaxAbs[j], math.Abs(X.At(i, j)))
		}
		if m.MaxAbs[j] < constantScale {
			m.MaxAbs[j] = 1.0
		}
	}
	m.SetFitted()
	return nil
}

// Transform は最大絶対値で割る
func (m *MaxAbsScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("MaxAbsScaler", &m.BaseEstimator, X, m.NFeatures); err != nil {
		return nil, err
	}
	return apply(X, func(_, j int, v float64) float64 { return v / m.MaxAbs[j] }), nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MaxAbsScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// RobustScaler は中央値を引き、四分位範囲で割る。外れ値の影響を受けにくい
type RobustScaler struct {
	model.BaseEstimator

	Center    []float64
	Scale     []float64
	NFeatures int

	// QuantileRange は尺度に使う分位点（パーセント、デフォルト: 25, 75）
	QuantileRange [2]float64
}

// NewRobustScaler は新しいRobustScalerを作成する
func NewRobustScaler() *RobustScaler {
	return &RobustScaler{QuantileRange: [2]float64{25, 75}}
}

// Fit は中央値と四分位範囲を計算する
func (s *RobustScaler) Fit(X mat.Matrix) error {
	q := s.QuantileRange
	if q[0] < 0 || q[1] > 100 || q[0] >= q[1] {
		return errors.NewValidationError("quantile_range", "must satisfy 0 <= low < high <= 100", q)
	}
	r, c, err := checkFit("RobustScaler.Fit", X)
	if err != nil {
		return err
	}
	s.NFeatures = c
	s.Center = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		slices.Sort(col)
		s.Center[j] = quantile(col, 0.5)
		s.Scale[j] = quantile(col, q[1]/100) - quantile(col, q[0]/100)
		if s.Scale[j] < constantScale {
			s.Scale[j] = 1.0
		}
	}
	s.SetFitted()
	return nil
}

// Transform は中央値を引き四分位範囲で割る
func (s *RobustScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := checkTransform("RobustScaler", &s.BaseEstimator, X, s.NFeatures); err != nil {
		return nil, err
	}
	return apply(X, func(_, j int, v float64) float64 { return (v - s.Center[j]) / s.Scale[j] }), nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *RobustScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// quantile は昇順にソート済みの値の分位点を (n-1)p の線形補間で返す
func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func checkFit(op string, X mat.Matrix) (int, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return r, c, nil
}

func checkTransform(name string, base *model.BaseEstimator, X mat.Matrix, nFeatures int) error {
	if err := base.RequireFitted(name, "Transform"); err != nil {
		return err
	}
	if _, c := X.Dims(); c != nFeatures {
		return errors.NewDimensionError(name+".Transform", nFeatures, c, 1)
	}
	return nil
}

// apply は要素ごとの変換を適用した新しい行列を返す
func apply(X mat.Matrix, fn func(i, j int, v float64) float64) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, _ float64) float64 {
		return fn(i, j, X.At(i, j))
	}, out)
	return out
}
