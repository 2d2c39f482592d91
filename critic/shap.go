package critic

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/parallel"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

// SHAP values explain one model output per evaluation row so that
// base_value + sum(values[i]) equals that output:
//
//   - trees and forests: path attribution, the change of the node value
//     along the decision path is credited to the split feature
//   - linear models: w_j·(x_j − mean_j), in log-odds for logit
//   - anything else: permutation sampling against background rows
//
// For classifiers the output is the probability of the class set by the
// "class" parameter, the last class by default.

type shapConfig struct {
	class      int
	samples    int
	background int
	workers    int
}

func readShapConfig(technique string, p *settings.Section, tube *step.Context) (shapConfig, error) {
	var c shapConfig
	var err error
	def := 0
	if k := tube.Data.NumClasses(); k > 0 {
		def = k - 1
	}
	if c.class, err = p.Int("class", def); err != nil {
		return c, err
	}
	if k := tube.Data.NumClasses(); c.class < 0 || (k > 0 && c.class >= k) || (k == 0 && c.class != 0) {
		return c, errors.NewConfigurationError(technique, "class", "no such class")
	}
	if c.samples, err = p.Int("n_samples", 100); err != nil {
		return c, err
	}
	if c.background, err = p.Int("background", 10); err != nil {
		return c, err
	}
	if c.samples < 1 || c.background < 1 {
		return c, errors.NewConfigurationError(technique, "n_samples", "n_samples and background must be >= 1")
	}
	if c.workers, err = p.Int("n_jobs", 0); err != nil {
		return c, err
	}
	return c, nil
}

// linearWeights returns the model as a single weight vector, if it is one.
func linearWeights(m model.Estimator) (model.LinearModel, bool) {
	lm, ok := m.(model.LinearModel)
	if !ok || lm.GetWeights() == nil {
		return nil, false
	}
	return lm, true
}

func shapValues(p *settings.Section) (step.Technique, error) {
	return step.TechniqueFunc(func(ctx context.Context, tube *step.Context) (map[string]any, error) {
		if err := requireModel("shap", tube); err != nil {
			return nil, err
		}
		cfg, err := readShapConfig("shap", p, tube)
		if err != nil {
			return nil, err
		}
		X := tube.EvalFeatures()

		var (
			values [][]float64
			base   float64
		)
		if tm, ok := tube.Model.(model.TreeModel); ok {
			values, _, base, err = treeShap(tm, X, cfg, false)
		} else if lm, ok := linearWeights(tube.Model); ok {
			values, base = linearShap(lm, X)
		} else {
			values, base, err = sampleShap(ctx, tube, X, cfg)
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"values": values, "base_value": base}, nil
	}), nil
}

// shapInteractionValues returns one symmetric matrix per row whose rows
// sum to the SHAP values. Off the diagonal, a split's contribution is
// shared with the distinct features split on above it.
func shapInteractionValues(p *settings.Section) (step.Technique, error) {
	return step.TechniqueFunc(func(_ context.Context, tube *step.Context) (map[string]any, error) {
		if err := requireModel("shap_interaction", tube); err != nil {
			return nil, err
		}
		cfg, err := readShapConfig("shap_interaction", p, tube)
		if err != nil {
			return nil, err
		}
		X := tube.EvalFeatures()

		if tm, ok := tube.Model.(model.TreeModel); ok {
			_, inter, _, err := treeShap(tm, X, cfg, true)
			if err != nil {
				return nil, err
			}
			return map[string]any{"interaction_values": inter}, nil
		}
		if lm, ok := linearWeights(tube.Model); ok {
			values, _ := linearShap(lm, X)
			inter := make([][][]float64, len(values))
			for i, v := range values {
				inter[i] = make([][]float64, len(v))
				for j := range v {
					inter[i][j] = make([]float64, len(v))
					inter[i][j][j] = v[j]
				}
			}
			return map[string]any{"interaction_values": inter}, nil
		}
		return nil, errors.NewConfigurationError("shap_interaction", "", "interaction values need a tree or linear model")
	}), nil
}

func nodeValue(v []float64, class int) float64 {
	if class < len(v) {
		return v[class]
	}
	return 0
}

func treeShap(tm model.TreeModel, X *mat.Dense, cfg shapConfig, interactions bool) ([][]float64, [][][]float64, float64, error) {
	n, p := X.Dims()
	values := make([][]float64, n)
	var inter [][][]float64
	if interactions {
		inter = make([][][]float64, n)
	}
	bases := make([]float64, n)
	errs := make([]error, n)

	parallel.ForEach(n, cfg.workers, func(i int) {
		paths, err := tm.DecisionPaths(X.RawRowView(i))
		if err != nil {
			errs[i] = err
			return
		}
		phi := make([]float64, p)
		var pair *mat.Dense
		if interactions {
			pair = mat.NewDense(p, p, nil)
		}
		for _, path := range paths {
			bases[i] += nodeValue(path[0].Value, cfg.class)
			for s := 0; s+1 < len(path); s++ {
				f := path[s].Feature
				c := nodeValue(path[s+1].Value, cfg.class) - nodeValue(path[s].Value, cfg.class)
				phi[f] += c
				if !interactions {
					continue
				}
				above := distinctFeatures(path[:s], f)
				share := c / float64(2*(len(above)+1))
				for _, g := range above {
					pair.Set(f, g, pair.At(f, g)+share)
					pair.Set(g, f, pair.At(g, f)+share)
				}
			}
		}
		scale := 1 / float64(len(paths))
		floats.Scale(scale, phi)
		bases[i] *= scale
		values[i] = phi
		if interactions {
			pair.Scale(scale, pair)
			for f := 0; f < p; f++ {
				off := 0.0
				for g := 0; g < p; g++ {
					if g != f {
						off += pair.At(f, g)
					}
				}
				pair.Set(f, f, phi[f]-off)
			}
			inter[i] = rows(pair)
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, nil, 0, err
		}
	}
	base := 0.0
	if n > 0 {
		base = bases[0]
	}
	return values, inter, base, nil
}

func distinctFeatures(path []model.PathStep, except int) []int {
	var out []int
	seen := map[int]bool{except: true}
	for _, s := range path {
		if !seen[s.Feature] {
			seen[s.Feature] = true
			out = append(out, s.Feature)
		}
	}
	return out
}

func linearShap(lm model.LinearModel, X *mat.Dense) ([][]float64, float64) {
	n, p := X.Dims()
	w := lm.GetWeights()
	means := make([]float64, p)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, X), nil)
	}
	base := lm.GetIntercept() + floats.Dot(w, means)
	values := make([][]float64, n)
	for i := range values {
		row := X.RawRowView(i)
		values[i] = make([]float64, p)
		for j := range values[i] {
			values[i][j] = w[j] * (row[j] - means[j])
		}
	}
	return values, base
}

// sampleShap estimates SHAP values by walking random feature orders from
// a background row to the explained row. Every background row starts the
// same number of walks, so the values of a row sum exactly to its output
// minus the mean background output.
func sampleShap(ctx context.Context, tube *step.Context, X *mat.Dense, cfg shapConfig) ([][]float64, float64, error) {
	n, p := X.Dims()
	k := tube.Data.NumClasses()
	output := func(batch *mat.Dense) ([]float64, error) {
		pred, proba, err := predictions(tube.Model, batch, k)
		if err != nil || proba == nil {
			return pred, err
		}
		return mat.Col(nil, cfg.class, proba), nil
	}

	rng := tube.Rand(streamShap << 32)
	nb := min(cfg.background, n)
	bg := mat.NewDense(nb, p, nil)
	for b, r := range rng.Perm(n)[:nb] {
		bg.SetRow(b, X.RawRowView(r))
	}
	bgOut, err := output(bg)
	if err != nil {
		return nil, 0, err
	}
	base := stat.Mean(bgOut, nil)

	walks := max(1, int(math.Ceil(float64(cfg.samples)/float64(nb))))
	chains := nb * walks
	values := make([][]float64, n)
	errs := make([]error, n)
	parallel.ForEach(n, cfg.workers, func(i int) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		rng := tube.Rand(streamShap<<32 | uint64(i+1))
		x := X.RawRowView(i)
		batch := mat.NewDense(chains*(p+1), p, nil)
		orders := make([][]int, chains)
		for c := range orders {
			z := bg.RawRowView(c % nb)
			orders[c] = rng.Perm(p)
			cur := append([]float64(nil), z...)
			start := c * (p + 1)
			batch.SetRow(start, cur)
			for s, f := range orders[c] {
				cur[f] = x[f]
				batch.SetRow(start+s+1, cur)
			}
		}
		out, err := output(batch)
		if err != nil {
			errs[i] = err
			return
		}
		phi := make([]float64, p)
		for c, order := range orders {
			start := c * (p + 1)
			for s, f := range order {
				phi[f] += out[start+s+1] - out[start+s]
			}
		}
		floats.Scale(1/float64(chains), phi)
		values[i] = phi
	})
	for _, err := range errs {
		if err != nil {
			return nil, 0, err
		}
	}
	return values, base, nil
}
