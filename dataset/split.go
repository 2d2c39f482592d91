package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// Fold is one train/test partition of row indices.
type Fold struct {
	Train []int
	Test  []int
}

func indices(n int, rng *rand.Rand) []int {
	if rng != nil {
		return rng.Perm(n)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func sorted(idx []int) []int {
	out := append([]int(nil), idx...)
	sort.Ints(out)
	return out
}

// AllRows returns a single fold that trains and tests on every row.
func AllRows(n int) []Fold {
	all := indices(n, nil)
	return []Fold{{Train: all, Test: append([]int(nil), all...)}}
}

// TrainTestSplit は1つのホールドアウト分割を返す
// rng が nil でなければ行をシャッフルしてから分割する。
func TrainTestSplit(n int, testSize float64, rng *rand.Rand) ([]Fold, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, errors.NewValueError("TrainTestSplit", "not enough rows for a train/test split")
	}
	idx := indices(n, rng)
	return []Fold{{Train: sorted(idx[nTest:]), Test: sorted(idx[:nTest])}}, nil
}

// KFold splits rows into k consecutive folds; the first n%k folds get one
// extra row.
func KFold(n, k int, rng *rand.Rand) ([]Fold, error) {
	if k < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", k)
	}
	if k > n {
		return nil, errors.NewValueError("KFold", "n_splits cannot exceed the number of rows")
	}
	idx := indices(n, rng)
	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		test := idx[start : start+size]
		train := make([]int, 0, n-size)
		train = append(train, idx[:start]...)
		train = append(train, idx[start+size:]...)
		folds = append(folds, Fold{Train: sorted(train), Test: sorted(test)})
		start += size
	}
	return folds, nil
}

// StratifiedKFold deals the rows of each class round-robin over k folds so
// every fold keeps the class proportions.
func StratifiedKFold(y []float64, k int, rng *rand.Rand) ([]Fold, error) {
	if k < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", k)
	}
	if k > len(y) {
		return nil, errors.NewValueError("StratifiedKFold", "n_splits cannot exceed the number of rows")
	}

	byClass := make(map[float64][]int)
	var classes []float64
	for _, i := range indices(len(y), rng) {
		c := y[i]
		if _, ok := byClass[c]; !ok {
			classes = append(classes, c)
		}
		byClass[c] = append(byClass[c], i)
	}
	sort.Float64s(classes)

	assign := make([]int, len(y))
	next := 0
	for _, c := range classes {
		for _, i := range byClass[c] {
			assign[i] = next % k
			next++
		}
	}

	folds := make([]Fold, k)
	for i, f := range assign {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds, nil
}

// TimeSeriesSplit returns k expanding-window folds: each test block follows
// all of its training rows.
func TimeSeriesSplit(n, k int) ([]Fold, error) {
	if k < 1 {
		return nil, errors.NewValidationError("n_splits", "must be >= 1", k)
	}
	testSize := n / (k + 1)
	if testSize < 1 {
		return nil, errors.NewValueError("TimeSeriesSplit", "too many splits for the number of rows")
	}
	folds := make([]Fold, 0, k)
	for f := 0; f < k; f++ {
		end := n - (k-f-1)*testSize
		start := end - testSize
		folds = append(folds, Fold{Train: indices(start, nil), Test: rangeOf(start, end)})
	}
	return folds, nil
}

func rangeOf(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

// EvalIndex returns the sorted union of the test rows of folds.
func EvalIndex(folds []Fold) []int {
	seen := make(map[int]bool)
	var out []int
	for _, f := range folds {
		for _, i := range f.Test {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	sort.Ints(out)
	return out
}

// TrainIndex returns the sorted union of the training rows of folds.
func TrainIndex(folds []Fold) []int {
	seen := make(map[int]bool)
	var out []int
	for _, f := range folds {
		for _, i := range f.Train {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	sort.Ints(out)
	return out
}
