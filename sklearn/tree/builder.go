package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
)

const leaf = -1

type node struct {
	feature   int // leaf for terminal nodes
	threshold float64
	left      int
	right     int
	value     []float64 // class probabilities or {mean}
	impurity  float64
	nSamples  int
}

// fittedTree is the immutable result of growing one tree. It is safe for
// concurrent reads.
type fittedTree struct {
	nodes       []node
	importances []float64 // unnormalized impurity decrease per feature
	depth       int
	nLeaves     int
}

func (t *fittedTree) leafFor(x []float64) *node {
	n := &t.nodes[0]
	for n.feature != leaf {
		if x[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n
}

func (t *fittedTree) path(x []float64) []model.PathStep {
	steps := make([]model.PathStep, 0, t.depth+1)
	n := &t.nodes[0]
	for {
		steps = append(steps, model.PathStep{Feature: n.feature, Value: n.value})
		if n.feature == leaf {
			return steps
		}
		if x[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
}

// builder grows a CART tree over row indices of X. nClasses == 0 selects
// regression.
type builder struct {
	cfg       *config
	X         mat.Matrix
	y         []float64
	nClasses  int
	nFeatures int
	k         int // features tried per split
	rng       *rand.Rand

	tree *fittedTree
}

func newBuilder(cfg *config, X mat.Matrix, y []float64, nClasses int, rng *rand.Rand) (*builder, error) {
	_, p := X.Dims()
	k, err := cfg.featuresPerSplit(p)
	if err != nil {
		return nil, err
	}
	return &builder{
		cfg:       cfg,
		X:         X,
		y:         y,
		nClasses:  nClasses,
		nFeatures: p,
		k:         k,
		rng:       rng,
	}, nil
}

func (b *builder) fit(idx []int) *fittedTree {
	b.tree = &fittedTree{importances: make([]float64, b.nFeatures)}
	b.grow(idx, 0)
	return b.tree
}

func (b *builder) grow(idx []int, depth int) int {
	value, impurity := b.stats(idx)
	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{
		feature:  leaf,
		left:     leaf,
		right:    leaf,
		value:    value,
		impurity: impurity,
		nSamples: len(idx),
	})
	if depth > b.tree.depth {
		b.tree.depth = depth
	}

	n := len(idx)
	if impurity <= 1e-12 ||
		n < b.cfg.minSamplesSplit ||
		n < 2*b.cfg.minSamplesLeaf ||
		(b.cfg.maxDepth > 0 && depth >= b.cfg.maxDepth) {
		b.tree.nLeaves++
		return id
	}

	// An impure node is split even when the best split has zero gain.
	sp, ok := b.bestSplit(idx)
	if !ok {
		b.tree.nLeaves++
		return id
	}

	left := make([]int, 0, sp.nLeft)
	right := make([]int, 0, n-sp.nLeft)
	for _, i := range idx {
		if b.X.At(i, sp.feature) <= sp.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.tree.importances[sp.feature] += float64(n)*impurity -
		float64(len(left))*sp.leftImpurity - float64(len(right))*sp.rightImpurity

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	b.tree.nodes[id].feature = sp.feature
	b.tree.nodes[id].threshold = sp.threshold
	b.tree.nodes[id].left = l
	b.tree.nodes[id].right = r
	return id
}

type split struct {
	feature       int
	threshold     float64
	nLeft         int
	score         float64 // weighted child impurity
	leftImpurity  float64
	rightImpurity float64
}

func (b *builder) candidateFeatures() []int {
	if b.k >= b.nFeatures || b.rng == nil {
		features := make([]int, b.nFeatures)
		for j := range features {
			features[j] = j
		}
		return features
	}
	return b.rng.Perm(b.nFeatures)[:b.k]
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	minLeaf := b.cfg.minSamplesLeaf
	sorted := make([]int, n)

	best := split{score: math.Inf(1)}
	found := false

	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})

		acc := b.newAccumulator(idx)
		for pos := 1; pos < n; pos++ {
			acc.moveLeft(b.y[sorted[pos-1]])
			if pos < minLeaf || n-pos < minLeaf {
				continue
			}
			lo, hi := b.X.At(sorted[pos-1], f), b.X.At(sorted[pos], f)
			if lo == hi {
				continue
			}
			li, ri := acc.impurities()
			score := (float64(pos)*li + float64(n-pos)*ri) / float64(n)
			if score < best.score {
				best = split{
					feature:       f,
					threshold:     (lo + hi) / 2,
					nLeft:         pos,
					score:         score,
					leftImpurity:  li,
					rightImpurity: ri,
				}
				found = true
			}
		}
	}
	return best, found
}

// stats returns the node value and impurity for a set of rows.
func (b *builder) stats(idx []int) ([]float64, float64) {
	if b.nClasses == 0 {
		sum, sumSq := 0.0, 0.0
		for _, i := range idx {
			sum += b.y[i]
			sumSq += b.y[i] * b.y[i]
		}
		n := float64(len(idx))
		mean := sum / n
		return []float64{mean}, math.Max(sumSq/n-mean*mean, 0)
	}
	counts := make([]float64, b.nClasses)
	for _, i := range idx {
		counts[int(b.y[i])]++
	}
	impurity := classImpurity(b.cfg.criterion, counts, float64(len(idx)))
	for c := range counts {
		counts[c] /= float64(len(idx))
	}
	return counts, impurity
}

func classImpurity(criterion string, counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	if criterion == "entropy" {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / total
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}

// accumulator keeps running left/right statistics while sweeping thresholds.
type accumulator struct {
	criterion   string
	nClasses    int
	left, right []float64 // class counts
	nLeft       float64
	nRight      float64

	sumL, sumSqL float64
	sumR, sumSqR float64
}

func (b *builder) newAccumulator(idx []int) *accumulator {
	acc := &accumulator{criterion: b.cfg.criterion, nClasses: b.nClasses, nRight: float64(len(idx))}
	if b.nClasses > 0 {
		acc.left = make([]float64, b.nClasses)
		acc.right = make([]float64, b.nClasses)
	}
	for _, i := range idx {
		if b.nClasses > 0 {
			acc.right[int(b.y[i])]++
		} else {
			acc.sumR += b.y[i]
			acc.sumSqR += b.y[i] * b.y[i]
		}
	}
	return acc
}

func (a *accumulator) moveLeft(y float64) {
	a.nLeft++
	a.nRight--
	if a.nClasses > 0 {
		a.left[int(y)]++
		a.right[int(y)]--
		return
	}
	a.sumL += y
	a.sumSqL += y * y
	a.sumR -= y
	a.sumSqR -= y * y
}

func (a *accumulator) impurities() (float64, float64) {
	if a.nClasses > 0 {
		return classImpurity(a.criterion, a.left, a.nLeft), classImpurity(a.criterion, a.right, a.nRight)
	}
	return variance(a.sumL, a.sumSqL, a.nLeft), variance(a.sumR, a.sumSqR, a.nRight)
}

func variance(sum, sumSq, n float64) float64 {
	if n == 0 {
		return 0
	}
	mean := sum / n
	return math.Max(sumSq/n-mean*mean, 0)
}

// normalize scales v to sum to one in place; an all-zero vector is left as is.
func normalize(v []float64) []float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total > 0 {
		for i := range v {
			v[i] /= total
		}
	}
	return v
}

func columnToSlice(op string, y mat.Matrix, rows int) ([]float64, error) {
	ry, cy := y.Dims()
	if ry != rows {
		return nil, dimensionError(op, rows, ry, 0)
	}
	if cy != 1 {
		return nil, valueError(op, "y must be a column vector")
	}
	out := make([]float64, ry)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out, nil
}
