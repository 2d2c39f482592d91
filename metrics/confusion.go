package metrics

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// confusionCounts は行=正解、列=予測 の件数表
type confusionCounts struct {
	labels []float64
	m      [][]float64
}

func confusion(op string, yTrue, yPred *mat.VecDense) (*confusionCounts, error) {
	t, p, err := pair(op, yTrue, yPred)
	if err != nil {
		return nil, err
	}
	labels := append(slices.Clone(t), p...)
	slices.Sort(labels)
	labels = slices.Compact(labels)
	return countPairs(labels, t, p), nil
}

func countPairs(labels, t, p []float64) *confusionCounts {
	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	m := make([][]float64, len(labels))
	for i := range m {
		m[i] = make([]float64, len(labels))
	}
	for i := range t {
		m[index[t[i]]][index[p[i]]]++
	}
	return &confusionCounts{labels: labels, m: m}
}

func (c *confusionCounts) support(k int) float64 {
	var s float64
	for _, v := range c.m[k] {
		s += v
	}
	return s
}

func (c *confusionCounts) predicted(k int) float64 {
	var s float64
	for i := range c.m {
		s += c.m[i][k]
	}
	return s
}

func (c *confusionCounts) precision(k int) float64 {
	p := c.predicted(k)
	if p == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples for label "+formatLabel(c.labels[k]), 0))
		return 0
	}
	return c.m[k][k] / p
}

func (c *confusionCounts) recall(k int) float64 {
	s := c.support(k)
	if s == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples for label "+formatLabel(c.labels[k]), 0))
		return 0
	}
	return c.m[k][k] / s
}

func (c *confusionCounts) f1(k int) float64 {
	p, r := c.precision(k), c.recall(k)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// binary reports whether every label is 0 or 1.
func (c *confusionCounts) binary() bool {
	for _, l := range c.labels {
		if l != 0 && l != 1 {
			return false
		}
	}
	return true
}

// average は二値なら正例 1 の値、それ以外はマクロ平均を返す
func (c *confusionCounts) average(metric string, fn func(int) float64) float64 {
	if c.binary() {
		k := slices.Index(c.labels, 1)
		if k < 0 {
			errors.Warn(errors.NewUndefinedMetricWarning(metric, "positive label 1 never occurs", 0))
			return 0
		}
		return fn(k)
	}
	var sum float64
	for k := range c.labels {
		sum += fn(k)
	}
	return sum / float64(len(c.labels))
}

// ConfusionMatrix は k×k の混同行列を返す（行=正解、列=予測）
// nClasses はクラスコード 0..nClasses-1 の数。
func ConfusionMatrix(yTrue, yPred *mat.VecDense, nClasses int) (*mat.Dense, error) {
	t, p, err := pair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if nClasses < 1 {
		return nil, errors.NewValidationError("n_classes", "must be >= 1", nClasses)
	}
	cm := mat.NewDense(nClasses, nClasses, nil)
	for i := range t {
		a, b := int(t[i]), int(p[i])
		if a < 0 || a >= nClasses || b < 0 || b >= nClasses || float64(a) != t[i] || float64(b) != p[i] {
			return nil, errors.NewValueError("ConfusionMatrix", "label outside 0..n_classes-1")
		}
		cm.Set(a, b, cm.At(a, b)+1)
	}
	return cm, nil
}

// ClassScores はクラスごとの評価値
type ClassScores struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report は classification_report 相当の集計
type Report struct {
	Classes     []ClassScores `json:"classes"`
	Accuracy    float64       `json:"accuracy"`
	MacroAvg    ClassScores   `json:"macro_avg"`
	WeightedAvg ClassScores   `json:"weighted_avg"`
}

// ClassificationReport はクラスごとの適合率・再現率・F1 と平均をまとめる
// names はクラスコードの表示名（nil ならコードをそのまま使う）。
func ClassificationReport(yTrue, yPred *mat.VecDense, names []string) (*Report, error) {
	t, p, err := pair("ClassificationReport", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	labels := append(slices.Clone(t), p...)
	slices.Sort(labels)
	labels = slices.Compact(labels)
	cm := countPairs(labels, t, p)

	r := &Report{MacroAvg: ClassScores{Label: "macro avg"}, WeightedAvg: ClassScores{Label: "weighted avg"}}
	var correct, total float64
	for k, l := range labels {
		s := ClassScores{
			Label:     labelName(l, names),
			Precision: cm.precision(k),
			Recall:    cm.recall(k),
			F1:        cm.f1(k),
			Support:   int(cm.support(k)),
		}
		r.Classes = append(r.Classes, s)

		w := float64(s.Support)
		r.MacroAvg.Precision += s.Precision
		r.MacroAvg.Recall += s.Recall
		r.MacroAvg.F1 += s.F1
		r.WeightedAvg.Precision += w * s.Precision
		r.WeightedAvg.Recall += w * s.Recall
		r.WeightedAvg.F1 += w * s.F1
		correct += cm.m[k][k]
		total += w
	}
	k := float64(len(labels))
	r.MacroAvg.Precision /= k
	r.MacroAvg.Recall /= k
	r.MacroAvg.F1 /= k
	r.MacroAvg.Support = int(total)
	r.WeightedAvg.Precision /= total
	r.WeightedAvg.Recall /= total
	r.WeightedAvg.F1 /= total
	r.WeightedAvg.Support = int(total)
	r.Accuracy = correct / total
	return r, nil
}

// String は scikit-learn と同じ体裁の表を返す
func (r *Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		width = max(width, len(c.Label))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	for _, c := range []ClassScores{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}

func labelName(l float64, names []string) string {
	i := int(l)
	if float64(i) == l && i >= 0 && i < len(names) {
		return names[i]
	}
	return formatLabel(l)
}

func formatLabel(l float64) string {
	return fmt.Sprint(l)
}
