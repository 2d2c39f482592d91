package cluster

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// MiniBatchKMeans はミニバッチK-meansクラスタリング。
// サンプラー "cluster"（ClusterCentroids）が多数派クラスの代表点を求めるのに使う。
type MiniBatchKMeans struct {
	model.BaseEstimator

	// ハイパーパラメータ
	nClusters        int     // クラスタ数
	init             string  // 初期化方法: "k-means++", "random"
	maxIter          int     // 最大イテレーション数
	batchSize        int     // ミニバッチサイズ
	randomState      uint64  // 乱数シード
	tol              float64 // 収束判定の許容誤差
	maxNoImprovement int     // 改善なしの最大イテレーション数
	nInit            int     // 異なる初期化での実行回数

	// 学習パラメータ
	clusterCenters_ [][]float64
	labels_         []int
	inertia_        float64
	nIter_          int

	mu         sync.RWMutex
	rng        *rand.Rand
	nFeatures_ int
}

// KMeansOption はMiniBatchKMeansの設定オプション
type KMeansOption func(*MiniBatchKMeans)

// NewMiniBatchKMeans は新しいMiniBatchKMeansを作成
func NewMiniBatchKMeans(options ...KMeansOption) *MiniBatchKMeans {
	kmeans := &MiniBatchKMeans{
		nClusters:        8,
		init:             "k-means++",
		maxIter:          100,
		batchSize:        100,
		tol:              0.0,
		maxNoImprovement: 10,
		nInit:            3,
	}
	for _, opt := range options {
		opt(kmeans)
	}
	kmeans.rng = rand.New(rand.NewPCG(kmeans.randomState, 0x9e3779b97f4a7c15))
	return kmeans
}

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.nClusters = n
	}
}

// WithKMeansInit は初期化方法を設定
func WithKMeansInit(init string) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.init = init
	}
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.maxIter = maxIter
	}
}

// WithKMeansBatchSize はミニバッチサイズを設定
func WithKMeansBatchSize(batchSize int) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.batchSize = batchSize
	}
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.randomState = uint64(seed)
	}
}

// WithKMeansTol は収束判定の許容誤差を設定
func WithKMeansTol(tol float64) KMeansOption {
	return func(kmeans *MiniBatchKMeans) {
		kmeans.tol = tol
	}
}

// Fit はミニバッチ学習でモデルを訓練する。yは無視される。
func (kmeans *MiniBatchKMeans) Fit(X, _ mat.Matrix) error {
	kmeans.mu.Lock()
	defer kmeans.mu.Unlock()

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("MiniBatchKMeans.Fit", "empty data", errors.ErrEmptyData)
	}
	if kmeans.nClusters <= 0 {
		return errors.NewValidationError("n_clusters", "must be positive", kmeans.nClusters)
	}
	if rows < kmeans.nClusters {
		return errors.NewValueError("MiniBatchKMeans.Fit",
			"n_samples must be >= n_clusters")
	}
	kmeans.nFeatures_ = cols

	// 複数回実行して最良の結果を選択
	bestInertia := math.Inf(1)
	for run := 0; run < kmeans.nInit; run++ {
		centers, labels, inertia, nIter := kmeans.fitSingleRun(X)
		if inertia < bestInertia {
			bestInertia = inertia
			kmeans.clusterCenters_ = centers
			kmeans.labels_ = labels
			kmeans.nIter_ = nIter
		}
	}
	kmeans.inertia_ = bestInertia

	kmeans.SetFitted()
	return nil
}

func (kmeans *MiniBatchKMeans) fitSingleRun(X mat.Matrix) ([][]float64, []int, float64, int) {
	rows, cols := X.Dims()

	centers := kmeans.initializeCenters(X)
	counts := make([]int, kmeans.nClusters)
	sample := make([]float64, cols)

	prevInertia := math.Inf(1)
	noImprovementCount := 0
	finalIter := 0

	for iter := 0; iter < kmeans.maxIter; iter++ {
		finalIter = iter
		for _, idx := range kmeans.selectMiniBatch(rows) {
			mat.Row(sample, idx, X)
			nearest := findNearestCluster(sample, centers)

			// 学習率 1/count でクラスタ中心を移動
			counts[nearest]++
			eta := 1.0 / float64(counts[nearest])
			for j := 0; j < cols; j++ {
				centers[nearest][j] = (1-eta)*centers[nearest][j] + eta*sample[j]
			}
		}

		inertia := computeInertia(X, centers)
		if prevInertia-inertia <= kmeans.tol {
			noImprovementCount++
			if noImprovementCount >= kmeans.maxNoImprovement {
				break
			}
		} else {
			noImprovementCount = 0
		}
		prevInertia = inertia
	}

	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		mat.Row(sample, i, X)
		labels[i] = findNearestCluster(sample, centers)
	}
	return centers, labels, computeInertia(X, centers), finalIter
}

// Predict は入力データに対するクラスタ予測を行う
func (kmeans *MiniBatchKMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if err := kmeans.RequireFitted("MiniBatchKMeans", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if cols != kmeans.nFeatures_ {
		return nil, errors.NewDimensionError("MiniBatchKMeans.Predict", kmeans.nFeatures_, cols, 1)
	}

	predictions := mat.NewDense(rows, 1, nil)
	sample := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(sample, i, X)
		predictions.Set(i, 0, float64(findNearestCluster(sample, kmeans.clusterCenters_)))
	}
	return predictions, nil
}

// ClusterCenters は学習されたクラスタ中心のコピーを返す
func (kmeans *MiniBatchKMeans) ClusterCenters() [][]float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	centers := make([][]float64, len(kmeans.clusterCenters_))
	for i := range kmeans.clusterCenters_ {
		centers[i] = append([]float64(nil), kmeans.clusterCenters_[i]...)
	}
	return centers
}

// Labels は学習データのクラスタラベルを返す
func (kmeans *MiniBatchKMeans) Labels() []int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return append([]int(nil), kmeans.labels_...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (kmeans *MiniBatchKMeans) Inertia() float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.inertia_
}

func (kmeans *MiniBatchKMeans) initializeCenters(X mat.Matrix) [][]float64 {
	if kmeans.init == "random" {
		rows, _ := X.Dims()
		centers := make([][]float64, kmeans.nClusters)
		for i, idx := range kmeans.rng.Perm(rows)[:kmeans.nClusters] {
			centers[i] = mat.Row(nil, idx, X)
		}
		return centers
	}
	return kmeans.initKMeansPlusPlus(X)
}

// initKMeansPlusPlus はk-means++初期化を実行
func (kmeans *MiniBatchKMeans) initKMeansPlusPlus(X mat.Matrix) [][]float64 {
	rows, _ := X.Dims()
	centers := make([][]float64, 0, kmeans.nClusters)
	centers = append(centers, mat.Row(nil, kmeans.rng.IntN(rows), X))

	distances := make([]float64, rows)
	for len(centers) < kmeans.nClusters {
		total := 0.0
		for i := 0; i < rows; i++ {
			sample := mat.Row(nil, i, X)
			d := floats.Distance(sample, centers[findNearestCluster(sample, centers)], 2)
			distances[i] = d * d
			total += distances[i]
		}

		// 距離の二乗に比例した確率でサンプルを選択
		target := kmeans.rng.Float64() * total
		selected := rows - 1
		cum := 0.0
		for i, d := range distances {
			cum += d
			if cum >= target {
				selected = i
				break
			}
		}
		centers = append(centers, mat.Row(nil, selected, X))
	}
	return centers
}

func (kmeans *MiniBatchKMeans) selectMiniBatch(nSamples int) []int {
	batchSize := kmeans.batchSize
	if batchSize > nSamples || batchSize <= 0 {
		batchSize = nSamples
	}
	return kmeans.rng.Perm(nSamples)[:batchSize]
}

func findNearestCluster(sample []float64, centers [][]float64) int {
	minDist := math.Inf(1)
	nearest := 0
	for c, center := range centers {
		if d := floats.Distance(sample, center, 2); d < minDist {
			minDist = d
			nearest = c
		}
	}
	return nearest
}

func computeInertia(X mat.Matrix, centers [][]float64) float64 {
	rows, cols := X.Dims()
	sample := make([]float64, cols)
	inertia := 0.0
	for i := 0; i < rows; i++ {
		mat.Row(sample, i, X)
		d := floats.Distance(sample, centers[findNearestCluster(sample, centers)], 2)
		inertia += d * d
	}
	return inertia
}
