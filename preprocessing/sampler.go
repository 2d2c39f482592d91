package preprocessing

import (
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/sklearn/cluster"
)

// Resampled は再標本化の結果。Keep は残す元の行（重複可）、
// X と Y は新しく作られた合成行
type Resampled struct {
	Keep []int
	X    *mat.Dense
	Y    []float64
}

// Len は再標本化後の行数を返す
func (r Resampled) Len() int {
	return len(r.Keep) + len(r.Y)
}

// Sampler は学習用の行集合のクラス数を揃える。
// y はクラスコード、idx は対象とする X の行番号
type Sampler interface {
	Resample(X mat.Matrix, y []float64, idx []int, rng *rand.Rand) (Resampled, error)
}

// classRows は idx をクラスごとに分け、クラスを昇順で返す
func classRows(y []float64, idx []int) ([]float64, map[float64][]int) {
	groups := make(map[float64][]int)
	for _, i := range idx {
		groups[y[i]] = append(groups[y[i]], i)
	}
	classes := make([]float64, 0, len(groups))
	for c := range groups {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	return classes, groups
}

func checkResample(op string, X mat.Matrix, y []float64, idx []int) error {
	r, _ := X.Dims()
	if r != len(y) {
		return errors.NewDimensionError(op, r, len(y), 0)
	}
	if len(idx) == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return nil
}

// RandomOverSampler は少数クラスの行を復元抽出で複製し、最多クラスの数に揃える
type RandomOverSampler struct{}

// NewRandomOverSampler は新しいRandomOverSamplerを作成する
func NewRandomOverSampler() *RandomOverSampler { return &RandomOverSampler{} }

// Resample は元の行をすべて残し、複製した行番号を Keep に追加する
func (s *RandomOverSampler) Resample(X mat.Matrix, y []float64, idx []int, rng *rand.Rand) (Resampled, error) {
	if err := checkResample("RandomOverSampler.Resample", X, y, idx); err != nil {
		return Resampled{}, err
	}
	classes, groups := classRows(y, idx)
	target := 0
	for _, c := range classes {
		target = max(target, len(groups[c]))
	}
	keep := slices.Clone(idx)
	for _, c := range classes {
		rows := groups[c]
		for n := len(rows); n < target; n++ {
			keep = append(keep, rows[rng.IntN(len(rows))])
		}
	}
	return Resampled{Keep: keep}, nil
}

// RandomUnderSampler は多数クラスの行を非復元抽出で減らし、最少クラスの数に揃える
type RandomUnderSampler struct{}

// NewRandomUnderSampler は新しいRandomUnderSamplerを作成する
func NewRandomUnderSampler() *RandomUnderSampler { return &RandomUnderSampler{} }

// Resample は各クラスから最少クラスと同数の行を選ぶ
func (s *RandomUnderSampler) Resample(X mat.Matrix, y []float64, idx []int, rng *rand.Rand) (Resampled, error) {
	if err := checkResample("RandomUnderSampler.Resample", X, y, idx); err != nil {
		return Resampled{}, err
	}
	classes, groups := classRows(y, idx)
	target := math.MaxInt
	for _, c := range classes {
		target = min(target, len(groups[c]))
	}
	var keep []int
	for _, c := range classes {
		rows := groups[c]
		for _, p := range rng.Perm(len(rows))[:target] {
			keep = append(keep, rows[p])
		}
	}
	sort.Ints(keep)
	return Resampled{Keep: keep}, nil
}

// SMOTE は少数クラスの行と同じクラスの近傍行の間を線形補間した合成行を作る
type SMOTE struct {
	KNeighbors int
}

// NewSMOTE は新しいSMOTEを作成する
func NewSMOTE(kNeighbors int) *SMOTE { return &SMOTE{KNeighbors: kNeighbors} }

// Resample は元の行をすべて残し、最多クラスの数に揃うまで合成行を作る
func (s *SMOTE) Resample(X mat.Matrix, y []float64, idx []int, rng *rand.Rand) (Resampled, error) {
	const op = "SMOTE.Resample"
	if err := checkResample(op, X, y, idx); err != nil {
		return Resampled{}, err
	}
	if s.KNeighbors < 1 {
		return Resampled{}, errors.NewValidationError("k_neighbors", "must be >= 1", s.KNeighbors)
	}
	_, cols := X.Dims()
	classes, groups := classRows(y, idx)
	target := 0
	for _, c := range classes {
		target = max(target, len(groups[c]))
	}

	var synthetic []float64
	var labels []float64
	for _, c := range classes {
		rows := groups[c]
		need := target - len(rows)
		if need == 0 {
			continue
		}
		if len(rows) < 2 {
			return Resampled{}, errors.NewValueError(op, "a class needs at least two rows to interpolate")
		}
		points := make([][]float64, len(rows))
		for i, r := range rows {
			points[i] = mat.Row(nil, r, X)
		}
		k := min(s.KNeighbors, len(rows)-1)
		neighbors := make([][]int, len(points))
		for i := range points {
			neighbors[i] = nearest(points, i, k)
		}
		for n := 0; n < need; n++ {
			i := rng.IntN(len(points))
			j := neighbors[i][rng.IntN(k)]
			gap := rng.Float64()
			sample := make([]float64, cols)
			floats.SubTo(sample, points[j], points[i])
			floats.Scale(gap, sample)
			floats.Add(sample, points[i])
			synthetic = append(synthetic, sample...)
			labels = append(labels, c)
		}
	}

	out := Resampled{Keep: slices.Clone(idx), Y: labels}
	if len(labels) > 0 {
		out.X = mat.NewDense(len(labels), cols, synthetic)
	}
	return out, nil
}

// nearest は points[i] に近い k 個の点の番号を距離の昇順で返す
func nearest(points [][]float64, i, k int) []int {
	order := make([]int, 0, len(points)-1)
	dist := make([]float64, len(points))
	for j := range points {
		if j == i {
			continue
		}
		dist[j] = floats.Distance(points[i], points[j], 2)
		order = append(order, j)
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })
	return order[:k]
}

// ClusterCentroids は多数クラスの行をMiniBatchKMeansのクラスタ中心で置き換え、
// 最少クラスの数に揃える
type ClusterCentroids struct {
	RandomState int64
}

// NewClusterCentroids は新しいClusterCentroidsを作成する
func NewClusterCentroids(randomState int64) *ClusterCentroids {
	return &ClusterCentroids{RandomState: randomState}
}

// Resample は最少クラスの行を残し、他のクラスをクラスタ中心の合成行にする
func (s *ClusterCentroids) Resample(X mat.Matrix, y []float64, idx []int, _ *rand.Rand) (Resampled, error) {
	if err := checkResample("ClusterCentroids.Resample", X, y, idx); err != nil {
		return Resampled{}, err
	}
	_, cols := X.Dims()
	classes, groups := classRows(y, idx)
	target := math.MaxInt
	for _, c := range classes {
		target = min(target, len(groups[c]))
	}

	var keep []int
	var synthetic, labels []float64
	for _, c := range classes {
		rows := groups[c]
		if len(rows) == target {
			keep = append(keep, rows...)
			continue
		}
		sub := mat.NewDense(len(rows), cols, nil)
		for i, r := range rows {
			sub.SetRow(i, mat.Row(nil, r, X))
		}
		km := cluster.NewMiniBatchKMeans(
			cluster.WithKMeansNClusters(target),
			cluster.WithKMeansRandomState(s.RandomState),
			cluster.WithKMeansBatchSize(max(100, len(rows))),
		)
		if err := km.Fit(sub, nil); err != nil {
			return Resampled{}, errors.Wrapf(err, "cluster centroids for class %v", c)
		}
		for _, center := range km.ClusterCenters() {
			synthetic = append(synthetic, center...)
			labels = append(labels, c)
		}
	}
	sort.Ints(keep)

	out := Resampled{Keep: keep, Y: labels}
	if len(labels) > 0 {
		out.X = mat.NewDense(len(labels), cols, synthetic)
	}
	return out, nil
}
