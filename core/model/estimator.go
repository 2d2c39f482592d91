package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n×1の行列）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator はパイプラインのmodelステップが扱う教師ありモデル
type Estimator interface {
	Fitter
	Predictor
}

// LinearModel は線形モデルのインターフェース。
// 説明ステップは重みと切片から厳密なSHAP値を計算する。
type LinearModel interface {
	// GetWeights は学習された重み（係数）を返す。多クラスモデルはnilを返す
	GetWeights() []float64
	// GetIntercept は学習された切片を返す
	GetIntercept() float64
}
