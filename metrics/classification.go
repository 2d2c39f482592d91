package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// logLossEps はログ損失計算時の確率クリップ幅
const logLossEps = 1e-15

func requireBinary(op string, y []float64) error {
	for _, v := range y {
		if v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// AUC はROC曲線下面積を計算する（Mann–Whitney U 統計量、同順位は平均順位）
// 正例または負例しか無い場合は定義できないため 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	t, s, err := pair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("AUC", t); err != nil {
		return 0, err
	}
	return aucScore(t, s), nil
}

func aucScore(t, s []float64) float64 {
	n := len(t)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return s[order[a]] < s[order[b]] })

	// 同順位をまとめて平均順位を振る
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && s[order[j+1]] == s[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i, v := range t {
		if v == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// AUCMatrix は行列入力のAUCを計算する。第1列を使う。
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	r, c := yTrue.Dims()
	if r == 0 || c == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	rs, _ := yScore.Dims()
	if rs != r {
		return 0, errors.NewDimensionError("AUCMatrix", r, rs, 0)
	}
	return AUC(
		mat.NewVecDense(r, mat.Col(nil, 0, yTrue)),
		mat.NewVecDense(rs, mat.Col(nil, 0, yScore)),
	)
}

// BinaryLogLoss は二値分類の交差エントロピーを計算する
// yPred は正例の確率。log(0) を避けるため [eps, 1-eps] にクリップする。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("BinaryLogLoss", t); err != nil {
		return 0, err
	}
	var sum float64
	for i, y := range t {
		q := errors.ClipValue(p[i], logLossEps, 1-logLossEps)
		sum -= y*math.Log(q) + (1-y)*math.Log(1-q)
	}
	return sum / float64(len(t)), nil
}

// LogLoss は多クラスの交差エントロピーを計算する
// proba は n×k の確率行列、yTrue はクラスコード 0..k-1。
func LogLoss(yTrue []float64, proba mat.Matrix) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("LogLoss", "empty vector")
	}
	r, k := proba.Dims()
	if r != n {
		return 0, errors.NewDimensionError("LogLoss", n, r, 0)
	}
	var sum float64
	for i, y := range yTrue {
		c := int(y)
		if c < 0 || c >= k {
			return 0, errors.NewValueError("LogLoss", "label outside the probability columns")
		}
		sum -= math.Log(errors.ClipValue(proba.At(i, c), logLossEps, 1-logLossEps))
	}
	return sum / float64(n), nil
}

// BrierScore は確率予測の二乗誤差を計算する
// 二値の場合は正例確率との差、多クラスの場合は one-hot との差の二乗和の平均。
func BrierScore(yTrue []float64, proba mat.Matrix) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("BrierScore", "empty vector")
	}
	r, k := proba.Dims()
	if r != n {
		return 0, errors.NewDimensionError("BrierScore", n, r, 0)
	}
	var sum float64
	for i, y := range yTrue {
		if k == 2 {
			d := proba.At(i, 1) - y
			sum += d * d
			continue
		}
		for c := 0; c < k; c++ {
			target := 0.0
			if int(y) == c {
				target = 1
			}
			d := proba.At(i, c) - target
			sum += d * d
		}
	}
	return sum / float64(n), nil
}

// ROCAUC はクラス確率から AUC を計算する
// 二値は第2列、多クラスは one-vs-rest のマクロ平均。
func ROCAUC(yTrue []float64, proba mat.Matrix) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("ROCAUC", "empty vector")
	}
	r, k := proba.Dims()
	if r != n {
		return 0, errors.NewDimensionError("ROCAUC", n, r, 0)
	}
	if k == 2 {
		return aucScore(yTrue, mat.Col(nil, 1, proba)), nil
	}
	binary := make([]float64, n)
	var total float64
	for c := 0; c < k; c++ {
		for i, y := range yTrue {
			binary[i] = 0
			if int(y) == c {
				binary[i] = 1
			}
		}
		total += aucScore(binary, mat.Col(nil, c, proba))
	}
	return total / float64(k), nil
}

// ClassificationError は誤分類率を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(t)), nil
}

// BalancedAccuracy はクラスごとの再現率の平均を計算する
func BalancedAccuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := confusion("BalancedAccuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	present := 0
	for c := range cm.labels {
		support := cm.support(c)
		if support == 0 {
			continue
		}
		sum += cm.m[c][c] / support
		present++
	}
	return sum / float64(present), nil
}

// Precision は適合率を計算する。二値は正例 1、多クラスはマクロ平均。
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := confusion("Precision", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.average("precision", cm.precision), nil
}

// Recall は再現率を計算する。二値は正例 1、多クラスはマクロ平均。
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := confusion("Recall", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.average("recall", cm.recall), nil
}

// F1 は適合率と再現率の調和平均を計算する。二値は正例 1、多クラスはマクロ平均。
func F1(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := confusion("F1", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.average("f1", cm.f1), nil
}

// MatthewsCorrCoef はマシューズ相関係数を計算する（多クラス対応）
func MatthewsCorrCoef(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := confusion("MatthewsCorrCoef", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var correct, samples, sumPT, sumPP, sumTT float64
	for c := range cm.labels {
		correct += cm.m[c][c]
		t := cm.support(c)
		p := cm.predicted(c)
		samples += t
		sumPT += p * t
		sumPP += p * p
		sumTT += t * t
	}
	denom := math.Sqrt((samples*samples - sumPP) * (samples*samples - sumTT))
	if denom == 0 {
		return 0, nil
	}
	return (correct*samples - sumPT) / denom, nil
}

// ZeroOneLoss は誤分類率を計算する
func ZeroOneLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	return ClassificationError(yTrue, yPred)
}

// HammingLoss は誤ったラベルの割合を計算する。単一ラベルでは ZeroOneLoss と等しい。
func HammingLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	return ClassificationError(yTrue, yPred)
}
