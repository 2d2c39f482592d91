package preprocessing

import (
	"slices"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// CategoricalEncoder は文字列のカテゴリ列を数値列に変換する。
// y を使わないエンコーダは nil を受け付ける
type CategoricalEncoder interface {
	Fit(values []string, y []float64) error
	// Transform は列名の接尾辞と変換後の列を返す。
	// 接尾辞が空文字なら元の列名をそのまま使う
	Transform(values []string) (suffixes []string, columns [][]float64, err error)
}

type categories struct {
	fitted bool
	levels []string
	index  map[string]int
}

func (c *categories) learn(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("CategoricalEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	c.levels = slices.Clone(values)
	slices.Sort(c.levels)
	c.levels = slices.Compact(c.levels)
	c.index = make(map[string]int, len(c.levels))
	for i, v := range c.levels {
		c.index[v] = i
	}
	c.fitted = true
	return nil
}

func (c *categories) require(name string) error {
	if !c.fitted {
		return errors.NewNotFittedError(name, "Transform")
	}
	return nil
}

// Categories は学習したカテゴリをソート順で返す
func (c *categories) Categories() []string {
	return slices.Clone(c.levels)
}

// OrdinalEncoder はカテゴリをソート順の番号に置き換える。未知のカテゴリは -1
type OrdinalEncoder struct {
	categories
}

// NewOrdinalEncoder は新しいOrdinalEncoderを作成する
func NewOrdinalEncoder() *OrdinalEncoder { return &OrdinalEncoder{} }

// Fit はカテゴリを学習する
func (e *OrdinalEncoder) Fit(values []string, _ []float64) error {
	return e.learn(values)
}

// Transform はカテゴリ番号の列を返す
func (e *OrdinalEncoder) Transform(values []string) ([]string, [][]float64, error) {
	if err := e.require("OrdinalEncoder"); err != nil {
		return nil, nil, err
	}
	col := make([]float64, len(values))
	for i, v := range values {
		code, ok := e.index[v]
		if !ok {
			code = -1
		}
		col[i] = float64(code)
	}
	return []string{""}, [][]float64{col}, nil
}

// OneHotEncoder はカテゴリごとに0/1の列を作る。未知のカテゴリはすべて0
type OneHotEncoder struct {
	categories
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder() *OneHotEncoder { return &OneHotEncoder{} }

// Fit はカテゴリを学習する
func (e *OneHotEncoder) Fit(values []string, _ []float64) error {
	return e.learn(values)
}

// Transform はカテゴリごとの指示列を返す。接尾辞は "_<カテゴリ>"
func (e *OneHotEncoder) Transform(values []string) ([]string, [][]float64, error) {
	if err := e.require("OneHotEncoder"); err != nil {
		return nil, nil, err
	}
	suffixes := make([]string, len(e.levels))
	cols := make([][]float64, len(e.levels))
	for k, level := range e.levels {
		suffixes[k] = "_" + level
		cols[k] = make([]float64, len(values))
	}
	for i, v := range values {
		if k, ok := e.index[v]; ok {
			cols[k][i] = 1
		}
	}
	return suffixes, cols, nil
}

// FrequencyEncoder はカテゴリを学習データ中の出現割合に置き換える。未知のカテゴリは0
type FrequencyEncoder struct {
	categories
	freq []float64
}

// NewFrequencyEncoder は新しいFrequencyEncoderを作成する
func NewFrequencyEncoder() *FrequencyEncoder { return &FrequencyEncoder{} }

// Fit はカテゴリごとの出現割合を学習する
func (e *FrequencyEncoder) Fit(values []string, _ []float64) error {
	if err := e.learn(values); err != nil {
		return err
	}
	e.freq = make([]float64, len(e.levels))
	for _, v := range values {
		e.freq[e.index[v]]++
	}
	for k := range e.freq {
		e.freq[k] /= float64(len(values))
	}
	return nil
}

// Transform は出現割合の列を返す
func (e *FrequencyEncoder) Transform(values []string) ([]string, [][]float64, error) {
	if err := e.require("FrequencyEncoder"); err != nil {
		return nil, nil, err
	}
	col := make([]float64, len(values))
	for i, v := range values {
		if k, ok := e.index[v]; ok {
			col[i] = e.freq[k]
		}
	}
	return []string{""}, [][]float64{col}, nil
}

// TargetEncoder はカテゴリを目的変数の平滑化平均に置き換える。
//
//	enc(c) = (n_c · mean_c + smoothing · mean) / (n_c + smoothing)
//
// 未知のカテゴリは全体平均になる
type TargetEncoder struct {
	categories
	Smoothing float64

	global float64
	means  []float64
}

// NewTargetEncoder は新しいTargetEncoderを作成する
func NewTargetEncoder(smoothing float64) *TargetEncoder {
	return &TargetEncoder{Smoothing: smoothing}
}

// Fit はカテゴリごとの平滑化平均を学習する
func (e *TargetEncoder) Fit(values []string, y []float64) error {
	if len(y) != len(values) {
		return errors.NewDimensionError("TargetEncoder.Fit", len(values), len(y), 0)
	}
	if e.Smoothing < 0 {
		return errors.NewValidationError("smoothing", "must be >= 0", e.Smoothing)
	}
	if err := e.learn(values); err != nil {
		return err
	}
	sums := make([]float64, len(e.levels))
	counts := make([]float64, len(e.levels))
	e.global = 0
	for i, v := range values {
		k := e.index[v]
		sums[k] += y[i]
		counts[k]++
		e.global += y[i]
	}
	e.global /= float64(len(values))
	e.means = make([]float64, len(e.levels))
	for k := range e.means {
		e.means[k] = (sums[k] + e.Smoothing*e.global) / (counts[k] + e.Smoothing)
	}
	return nil
}

// Transform は平滑化平均の列を返す
func (e *TargetEncoder) Transform(values []string) ([]string, [][]float64, error) {
	if err := e.require("TargetEncoder"); err != nil {
		return nil, nil, err
	}
	col := make([]float64, len(values))
	for i, v := range values {
		if k, ok := e.index[v]; ok {
			col[i] = e.means[k]
		} else {
			col[i] = e.global
		}
	}
	return []string{""}, [][]float64{col}, nil
}
