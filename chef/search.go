package chef

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/parallel"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/metrics"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/settings"
)

// Search tunes the model hyperparameters written as ranges ("0.01, 10")
// in the model's settings, then refits the model with the best candidate.
type Search struct{}

func (Search) Name() string        { return "search" }
func (Search) Sections() []string  { return []string{Section, "search_parameters"} }
func (Search) DependsOn() []string { return []string{"model"} }

func (Search) Draft(d *step.Drafter) error {
	d.Direct("grid", "simplify", searcher(gridCandidates), "best_params", "best_score")
	d.Direct("random", "gonum", searcher(randomCandidates), "best_params", "best_score")
	d.Deferred("bayes", "skopt", "BayesSearchCV", "best_params", "best_score")
	none(d, func(*step.Context) map[string]any {
		return map[string]any{"best_params": nil, "best_score": nil}
	}, "best_params", "best_score")
	return nil
}

// Candidate is one assignment of values to the searched parameters.
type Candidate map[string]float64

type candidateFunc func(p *settings.Section, ranges map[string]settings.Range, rng *rand.Rand) ([]Candidate, error)

// gridCandidates is the cross product of grid_points values per range.
func gridCandidates(p *settings.Section, ranges map[string]settings.Range, _ *rand.Rand) ([]Candidate, error) {
	points, err := p.Int("grid_points", 5)
	if err != nil {
		return nil, err
	}
	if points < 1 {
		return nil, errors.NewConfigurationError("grid", "grid_points", "must be >= 1")
	}
	out := []Candidate{{}}
	for _, key := range sortedKeys(ranges) {
		var next []Candidate
		for _, c := range out {
			for _, v := range ranges[key].Grid(points) {
				nc := make(Candidate, len(c)+1)
				for k, x := range c {
					nc[k] = x
				}
				nc[key] = v
				next = append(next, nc)
			}
		}
		out = next
	}
	return out, nil
}

// randomCandidates draws n_iter points uniformly from the ranges.
func randomCandidates(p *settings.Section, ranges map[string]settings.Range, rng *rand.Rand) ([]Candidate, error) {
	n, err := p.Int("n_iter", 10)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, errors.NewConfigurationError("random", "n_iter", "must be >= 1")
	}
	keys := sortedKeys(ranges)
	out := make([]Candidate, n)
	for i := range out {
		c := make(Candidate, len(keys))
		for _, key := range keys {
			r := ranges[key]
			v := distuv.Uniform{Min: r.Low, Max: r.High, Src: rng}.Rand()
			if r.Integer {
				v = math.Round(v)
			}
			c[key] = v
		}
		out[i] = c
	}
	return out, nil
}

func sortedKeys(ranges map[string]settings.Range) []string {
	keys := make([]string, 0, len(ranges))
	for k := range ranges {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func searcher(candidates candidateFunc) step.Factory {
	return func(p *settings.Section) (step.Technique, error) {
		cv, err := p.Int("cv", 3)
		if err != nil {
			return nil, err
		}
		if cv < 2 {
			return nil, errors.NewConfigurationError("search", "cv", "must be >= 2")
		}
		workers, err := p.Int("n_jobs", 0)
		if err != nil {
			return nil, err
		}
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		scoring := p.String("scoring", "")

		return step.TechniqueFunc(func(ctx context.Context, tube *step.Context) (map[string]any, error) {
			if tube.Model == nil {
				return nil, errors.NewConfigurationError("search", "", "search needs a fitted model")
			}
			scorer, err := pickScorer("search", scoring, tube.Task)
			if err != nil {
				return nil, err
			}
			base := ParamsSection(tube.ModelName, tube.ModelParams)
			ranges := base.Ranges()
			if len(ranges) == 0 {
				return nil, errors.NewConfigurationError(tube.ModelName, "", "no parameter ranges to search")
			}

			rng := tube.Rand(streamSearch)
			cands, err := candidates(p, ranges, rng)
			if err != nil {
				return nil, err
			}
			folds, err := innerFolds(tube, cv, rng)
			if err != nil {
				return nil, err
			}

			scores := make([]float64, len(cands))
			errs := make([]error, len(cands))
			parallel.ForEach(len(cands), workers, func(i int) {
				sec := cands[i].apply(base)
				build := func() (model.Estimator, error) { return Build(tube.ModelName, tube.Task, sec) }
				oof, err := crossFit(ctx, tube.Data, folds, build)
				if err != nil {
					errs[i] = err
					return
				}
				scores[i], errs[i] = score(scorer, tube.Data.Target(oof.eval), oof)
			})

			best := -1
			for i := range cands {
				if errs[i] != nil || math.IsNaN(scores[i]) {
					continue
				}
				if best < 0 || scorer.Better(scores[i], scores[best]) {
					best = i
				}
			}
			if best < 0 {
				for _, err := range errs {
					if err != nil {
						return nil, errors.Wrap(err, "every search candidate failed")
					}
				}
				return nil, errors.NewValueError("search", "every search candidate scored NaN")
			}

			if err := fitTube(ctx, tube, tube.ModelName, cands[best].apply(base)); err != nil {
				return nil, err
			}
			params := make(map[string]any, len(cands[best]))
			for k, v := range cands[best] {
				params[k] = v
			}
			return map[string]any{"best_params": params, "best_score": scores[best]}, nil
		}), nil
	}
}

// apply returns a copy of base with the candidate values in place of
// their ranges.
func (c Candidate) apply(base *settings.Section) *settings.Section {
	sec := base.Merge()
	for k, v := range c {
		sec.Set(k, formatParam(v))
	}
	return sec
}

// innerFolds splits the tube's training rows into cv folds.
func innerFolds(tube *step.Context, cv int, rng *rand.Rand) ([]dataset.Fold, error) {
	rows := tube.TrainIndex()
	var (
		folds []dataset.Fold
		err   error
	)
	if tube.Task == model.Classification {
		folds, err = dataset.StratifiedKFold(tube.Data.Target(rows), cv, rng)
	} else {
		folds, err = dataset.KFold(len(rows), cv, rng)
	}
	if err != nil {
		return nil, err
	}
	for i := range folds {
		folds[i].Train = pick(rows, folds[i].Train)
		folds[i].Test = pick(rows, folds[i].Test)
	}
	return folds, nil
}

func pick(rows, positions []int) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = rows[p]
	}
	return out
}

func pickScorer(technique, name string, task model.Task) (metrics.Scorer, error) {
	if name == "" {
		return metrics.Default(task), nil
	}
	s, ok := metrics.Lookup(name)
	if !ok || s.Task != task {
		return metrics.Scorer{}, errors.NewConfigurationError(technique, "scoring",
			fmt.Sprintf("unknown %s metric %q", task, name))
	}
	return s, nil
}

func score(s metrics.Scorer, y []float64, oof *outOfFold) (float64, error) {
	if s.NeedsProba && oof.probabilities == nil {
		return 0, errors.NewValueError(s.Name, "the model gives no class probabilities")
	}
	if oof.probabilities == nil {
		return s.Score(y, oof.predictions, nil)
	}
	return s.Score(y, oof.predictions, oof.probabilities)
}

// ParamsSection rebuilds a settings section from native parameter values,
// as stored in Context.ModelParams.
func ParamsSection(name string, params map[string]any) *settings.Section {
	sec := settings.NewSection(name)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		sec.Set(k, formatParam(params[k]))
	}
	return sec
}

func formatParam(v any) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case settings.Range:
		return x.String()
	case []string:
		return strings.Join(x, ", ")
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
