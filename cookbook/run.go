package cookbook

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/metrics"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
)

// Choice is the technique a tube uses for one chef step.
type Choice struct {
	Step      string `json:"step"`
	Technique string `json:"technique"`
}

// Recipe is one combination of chef techniques.
type Recipe struct {
	Number  int      `json:"number"`
	Choices []Choice `json:"choices"`
}

// Technique returns the technique chosen for stepName.
func (r Recipe) Technique(stepName string) (string, bool) {
	for _, c := range r.Choices {
		if c.Step == stepName {
			return c.Technique, true
		}
	}
	return "", false
}

// Tubes returns the cross product of the chef technique lists, numbered
// from 1. The first chef step varies slowest.
func (c *Cookbook) Tubes() []Recipe {
	var chefs []Stage
	for _, s := range c.stages {
		if s.Phase == log.PhaseChef {
			chefs = append(chefs, s)
		}
	}

	combos := [][]Choice{{}}
	for _, s := range chefs {
		next := make([][]Choice, 0, len(combos)*len(s.Techniques))
		for _, prefix := range combos {
			for _, t := range s.Techniques {
				choice := make([]Choice, len(prefix), len(prefix)+1)
				copy(choice, prefix)
				next = append(next, append(choice, Choice{Step: s.Name, Technique: t}))
			}
		}
		combos = next
	}

	out := make([]Recipe, len(combos))
	for i, choices := range combos {
		out[i] = Recipe{Number: i + 1, Choices: choices}
	}
	return out
}

// TubeResult is the outcome of one tube.
type TubeResult struct {
	Recipe Recipe
	// Steps holds the result set of each step that ran, by step name.
	Steps    map[string]*step.ResultSet
	Context  *step.Context
	Err      error
	Duration time.Duration
}

// Failed reports whether the tube stopped early.
func (r *TubeResult) Failed() bool { return r.Err != nil }

// Run executes every tube against data, n_jobs at a time. Without
// tolerate_failures the first failing tube cancels the rest and its error
// is returned; with it, failed tubes are reported in their TubeResult and
// Run only fails on cancellation.
//
// data is not modified: each tube works on its own copy.
func (c *Cookbook) Run(ctx context.Context, data *dataset.Dataset) ([]*TubeResult, error) {
	if data == nil {
		return nil, errors.NewValueError("cookbook.Run", "no data")
	}
	if data.Task != c.task {
		return nil, errors.NewConfigurationError(General, "model_type",
			"settings ask for a "+c.task.String()+" but the data is loaded as a "+data.Task.String())
	}

	base := data.Clone()
	if c.smartFill {
		if n := base.FillMissing(); n > 0 {
			c.logger.Info("filled missing values", log.SamplesKey, n)
		}
	}

	recipes := c.Tubes()
	results := make([]*TubeResult, len(recipes))
	c.logger.Info("running tubes",
		"tubes", len(recipes),
		"n_jobs", c.jobs,
		log.SamplesKey, base.Len(),
		log.FeaturesKey, base.NumFeatures(),
	)

	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(c.jobs)
	for i, r := range recipes {
		errGrp.Go(func() error {
			res := c.runTube(dCtx, base, r)
			results[i] = res
			if res.Err != nil && !c.tolerate {
				return res.Err
			}
			return nil
		})
	}
	if err := errGrp.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (c *Cookbook) runTube(ctx context.Context, data *dataset.Dataset, r Recipe) *TubeResult {
	start := time.Now()
	res := &TubeResult{Recipe: r, Steps: make(map[string]*step.ResultSet, len(c.stages))}
	logger := c.logger.With(log.TubeKey, r.Number)

	tube := step.NewContext(r.Number, data.Clone(), c.seed)
	res.Context = tube
	defer func() { res.Duration = time.Since(start) }()

	for _, s := range c.stages {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		techniques := s.Techniques
		if s.Phase == log.PhaseChef {
			t, _ := r.Technique(s.Name)
			techniques = []string{t}
		}

		st := step.New(s.def, c.cfg,
			step.WithTolerance(c.tolerate),
			step.WithLogger(logger.With(log.StepKey, s.Name, log.PhaseKey, s.Phase)),
		)
		if _, err := st.Draft(); err != nil {
			res.Err = err
			return res
		}
		rs, err := st.Publish(ctx, techniques, tube)
		if rs != nil {
			res.Steps[s.Name] = rs
		}
		if err != nil {
			res.Err = errors.Wrapf(err, "tube %d", r.Number)
			return res
		}
		// A chef step that failed leaves the tube unprepared for later steps.
		if s.Phase == log.PhaseChef {
			if failed := rs.Failures(); len(failed) > 0 {
				res.Err = errors.Wrapf(failed[0].Err, "tube %d", r.Number)
				return res
			}
		}
	}
	logger.Info("tube finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return res
}

// Best returns the tube with the best score for metric, which must be one
// of the techniques run by the measure step. Failed tubes are ignored.
func Best(results []*TubeResult, metric string) (*TubeResult, float64, error) {
	scorer, ok := metrics.Lookup(metric)
	if !ok {
		return nil, math.NaN(), errors.NewConfigurationError("measure", "measure_techniques", "unknown metric "+metric)
	}
	var (
		best  *TubeResult
		score = math.NaN()
	)
	for _, r := range results {
		if r == nil || r.Err != nil {
			continue
		}
		rs, ok := r.Steps["measure"]
		if !ok {
			continue
		}
		v, ok := rs.Float(metric, "score")
		if !ok || math.IsNaN(v) {
			continue
		}
		if best == nil || scorer.Better(v, score) {
			best, score = r, v
		}
	}
	if best == nil {
		return nil, math.NaN(), errors.NewValueError("cookbook.Best", "no tube has a "+metric+" score")
	}
	return best, score, nil
}
