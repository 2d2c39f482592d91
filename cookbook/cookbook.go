// Package cookbook turns a settings file into a plan of steps and runs
// every combination of chef techniques as a separate test tube.
//
// A cookbook reads:
//
//	[general]  model_type, seed, n_jobs, tolerate_failures, smart_fill
//	[chef]     chef_steps and <step>_techniques for each chef step
//	[critic]   critic_steps and <step>_techniques for each critic step
//
// Chef steps run one technique per tube; the tubes are the cross product of
// their technique lists. Critic steps run all of their techniques in every
// tube.
package cookbook

import (
	"runtime"
	"slices"

	"github.com/dominikbraun/graph"

	"github.com/YuminosukeSato/simplify/chef"
	"github.com/YuminosukeSato/simplify/core/model"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/critic"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
	"github.com/YuminosukeSato/simplify/settings"
)

// General is the section holding run-wide options.
const General = "general"

// DefaultSeed is used when [general] has no seed.
const DefaultSeed = 42

// Stage is one configured step of the plan.
type Stage struct {
	Name string
	// Phase is log.PhaseChef or log.PhaseCritic.
	Phase      string
	Techniques []string

	def step.Definition
}

// Definition returns the step definition behind the stage.
func (s Stage) Definition() step.Definition { return s.def }

// Cookbook holds a validated plan.
type Cookbook struct {
	cfg       *settings.Settings
	task      model.Task
	seed      uint64
	jobs      int
	tolerate  bool
	smartFill bool
	logger    log.Logger

	defs   map[string]step.Definition
	stages []Stage
	plan   graph.Graph[string, string]
}

// Option configures a Cookbook.
type Option func(*Cookbook)

// WithDefinitions makes additional steps available to chef_steps and
// critic_steps. A definition replaces a built-in step of the same name.
func WithDefinitions(defs ...step.Definition) Option {
	return func(c *Cookbook) {
		for _, d := range defs {
			c.defs[d.Name()] = d
		}
	}
}

// WithLogger sets the logger used by the cookbook and its steps.
func WithLogger(l log.Logger) Option {
	return func(c *Cookbook) { c.logger = l }
}

// WithJobs overrides [general] n_jobs.
func WithJobs(n int) Option {
	return func(c *Cookbook) {
		if n > 0 {
			c.jobs = n
		}
	}
}

// Definitions returns the built-in chef and critic steps.
func Definitions() []step.Definition {
	return append(chef.Definitions(), critic.Definitions()...)
}

// New validates cfg and builds the plan. Every step and technique named in
// the settings is resolved here, so a bad name fails before any tube runs.
func New(cfg *settings.Settings, opts ...Option) (*Cookbook, error) {
	if cfg == nil {
		return nil, errors.NewConfigurationError(General, "", "no settings")
	}
	c := &Cookbook{
		cfg:    cfg,
		logger: log.GetLoggerWithName("cookbook"),
		defs:   make(map[string]step.Definition),
	}
	for _, d := range Definitions() {
		c.defs[d.Name()] = d
	}
	if err := c.readGeneral(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.readStages(chef.Section, "chef_steps", log.PhaseChef); err != nil {
		return nil, err
	}
	if err := c.readStages(critic.Section, "critic_steps", log.PhaseCritic); err != nil {
		return nil, err
	}
	if len(c.stages) == 0 {
		return nil, errors.NewConfigurationError(chef.Section, "chef_steps", "no steps configured")
	}
	if err := c.buildPlan(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cookbook) readGeneral() error {
	g := c.cfg.Section(General)

	task, err := model.ParseTask(g.String("model_type", "classifier"))
	if err != nil {
		return errors.WrapConfigurationError(err, General, "model_type", "unknown model type")
	}
	c.task = task

	seed, err := g.Int("seed", DefaultSeed)
	if err != nil {
		return err
	}
	if seed < 0 {
		return errors.NewConfigurationError(General, "seed", "must be >= 0")
	}
	c.seed = uint64(seed)

	if c.jobs, err = g.Int("n_jobs", 1); err != nil {
		return err
	}
	if c.jobs <= 0 {
		c.jobs = runtime.GOMAXPROCS(0)
	}
	if c.tolerate, err = g.Bool("tolerate_failures", false); err != nil {
		return err
	}
	if c.smartFill, err = g.Bool("smart_fill", true); err != nil {
		return err
	}
	return nil
}

// readStages appends the steps listed under section.key. Chef steps with
// no techniques run "none"; critic steps must name at least one.
func (c *Cookbook) readStages(section, key, phase string) error {
	sec := c.cfg.Section(section)
	for _, name := range sec.Strings(key) {
		def, ok := c.defs[name]
		if !ok {
			return errors.NewConfigurationError(section, key, "unknown step "+name)
		}
		if slices.ContainsFunc(c.stages, func(s Stage) bool { return s.Name == name }) {
			return errors.NewConfigurationError(section, key, "step "+name+" listed twice")
		}

		techKey := name + "_techniques"
		var techniques []string
		if phase == log.PhaseChef {
			techniques = c.cfg.Techniques(section, techKey)
		} else {
			techniques = sec.Strings(techKey)
			if len(techniques) == 0 {
				return errors.NewConfigurationError(section, techKey, "no techniques selected")
			}
		}

		reg, err := step.New(def, c.cfg).Draft()
		if err != nil {
			return err
		}
		for _, t := range techniques {
			if _, err := reg.Resolve(t); err != nil {
				return err
			}
		}
		c.stages = append(c.stages, Stage{Name: name, Phase: phase, Techniques: techniques, def: def})
	}
	return nil
}

// Task returns the task named by [general] model_type.
func (c *Cookbook) Task() model.Task { return c.task }

// Seed returns the run seed.
func (c *Cookbook) Seed() uint64 { return c.seed }

// Jobs returns the number of tubes run at once.
func (c *Cookbook) Jobs() int { return c.jobs }

// Settings returns the settings the cookbook was built from.
func (c *Cookbook) Settings() *settings.Settings { return c.cfg }

// Stages returns the steps in execution order.
func (c *Cookbook) Stages() []Stage { return slices.Clone(c.stages) }

// Stage returns the named stage.
func (c *Cookbook) Stage(name string) (Stage, bool) {
	i := slices.IndexFunc(c.stages, func(s Stage) bool { return s.Name == name })
	if i < 0 {
		return Stage{}, false
	}
	return c.stages[i], true
}

// Techniques returns every technique registered by the built-in and added
// steps, keyed by step name. Steps that fail to draft are skipped.
func (c *Cookbook) Techniques() map[string][]string {
	return Catalog(c.defs)
}

// Catalog drafts each definition and lists its technique names.
func Catalog(defs map[string]step.Definition) map[string][]string {
	out := make(map[string][]string, len(defs))
	for name, def := range defs {
		reg, err := step.New(def, nil).Draft()
		if err != nil {
			continue
		}
		out[name] = reg.Names()
	}
	return out
}

// KeyMetric returns [critic] key_metric, or the first technique of the
// measure step, or "" when nothing is measured.
func (c *Cookbook) KeyMetric() string {
	if m := c.cfg.Section(critic.Section).String("key_metric", ""); m != "" {
		return m
	}
	if s, ok := c.Stage("measure"); ok && len(s.Techniques) > 0 {
		return s.Techniques[0]
	}
	return ""
}
