// Package step implements the Step lifecycle: a step is drafted to fill
// its technique registry, then published with the techniques selected in
// the settings, producing an ordered result set.
//
// Unconfigured ── Draft ──▶ Drafted ── Publish ──▶ Published
//
//	▲                  │
//	└──── Draft ───────┘ (resets registry and results)
package step

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/YuminosukeSato/simplify/core/registry"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
	"github.com/YuminosukeSato/simplify/settings"
)

// State is the lifecycle state of a Step.
type State int

const (
	Unconfigured State = iota
	Drafted
	Published
)

func (s State) String() string {
	switch s {
	case Drafted:
		return "drafted"
	case Published:
		return "published"
	default:
		return "unconfigured"
	}
}

// Step wraps a Definition with its registry, settings and results.
type Step struct {
	def      Definition
	cfg      *settings.Settings
	tolerate bool
	logger   log.Logger

	state   State
	reg     *registry.Registry[Factory]
	outputs map[string][]string
	results *ResultSet
}

// Option configures a Step.
type Option func(*Step)

// WithTolerance records technique failures as result entries instead of
// aborting Publish.
func WithTolerance(tolerate bool) Option {
	return func(s *Step) { s.tolerate = tolerate }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Step) { s.logger = l }
}

// New wraps def. cfg may be nil, in which case every parameter section is
// empty.
func New(def Definition, cfg *settings.Settings, opts ...Option) *Step {
	if cfg == nil {
		cfg = settings.New()
	}
	s := &Step{def: def, cfg: cfg, results: NewResultSet()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("step")
	}
	s.logger = s.logger.With(log.StepKey, def.Name())
	return s
}

// Name returns the step name.
func (s *Step) Name() string { return s.def.Name() }

// Definition returns the wrapped definition.
func (s *Step) Definition() Definition { return s.def }

// Sections returns the settings sections the step reads.
func (s *Step) Sections() []string { return s.def.Sections() }

// State returns the lifecycle state.
func (s *Step) State() State { return s.state }

// Results returns every result accumulated since the last Draft.
func (s *Step) Results() *ResultSet { return s.results }

// Outputs returns the declared outputs of a drafted technique.
func (s *Step) Outputs(technique string) []string {
	return slices.Clone(s.outputs[technique])
}

// Registry returns the drafted registry, nil before Draft.
func (s *Step) Registry() *registry.Registry[Factory] { return s.reg }

// Draft builds a fresh registry. Deferred techniques are registered
// without touching their backends, so a missing optional library never
// fails Draft.
func (s *Step) Draft() (*registry.Registry[Factory], error) {
	d := newDrafter(s.Name())
	if err := s.def.Draft(d); err != nil {
		return nil, errors.Wrapf(err, "step %s: draft", s.Name())
	}
	s.reg = d.reg
	s.outputs = d.outputs
	s.results = NewResultSet()
	s.state = Drafted

	s.logger.Debug("step drafted",
		log.OperationKey, log.OperationDraft,
		"techniques", s.reg.Names(),
	)
	return s.reg, nil
}

// Publish runs each named technique against tube and returns the outputs
// of this call, which are also appended to Results.
//
// Every name is resolved before anything runs: an unknown name fails with
// UnknownTechniqueError and leaves no trace. Each technique is then
// loaded, configured from [<step>_parameters] overlaid by [<technique>],
// applied, and checked to have produced exactly its declared outputs.
func (s *Step) Publish(ctx context.Context, techniques []string, tube *Context) (*ResultSet, error) {
	if s.state == Unconfigured {
		return nil, errors.NewConfigurationError(s.Name(), "", "publish called before draft")
	}
	if tube == nil {
		return nil, errors.NewValueError(s.Name()+".Publish", "nil tube context")
	}
	for _, name := range techniques {
		if _, err := s.reg.Resolve(name); err != nil {
			return nil, err
		}
	}

	out := NewResultSet()
	defer func() {
		s.results.Merge(out)
		s.state = Published
	}()

	for _, name := range techniques {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrapf(err, "step %s", s.Name())
		}

		start := time.Now()
		values, err := s.dispatch(ctx, name, tube)
		logger := s.logger.With(log.TechniqueKey, name, log.TubeKey, tube.Tube)
		if err != nil {
			if s.tolerate && tolerable(err) {
				out.AddFailure(name, err)
				logger.Warn("technique failed; continuing", "error", err, log.ErrorCodeKey, errorCode(err))
				continue
			}
			logger.Error("technique failed", err, log.ErrorCodeKey, errorCode(err))
			return out, err
		}

		for _, key := range s.outputs[name] {
			out.Add(name, key, values[key])
		}
		logger.Debug("technique published",
			log.OperationKey, log.OperationPublish,
			log.OutputsKey, s.outputs[name],
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}

func (s *Step) dispatch(ctx context.Context, name string, tube *Context) (map[string]any, error) {
	factory, err := s.reg.Load(name)
	if err != nil {
		return nil, err
	}

	params := s.Parameters(name, tube)
	tech, err := factory(params)
	if err != nil {
		var cfgErr *errors.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, errors.WrapConfigurationError(err, name, "", "cannot configure technique")
	}

	var values map[string]any
	op := s.Name() + "." + name
	err = errors.SafeExecute(op, func() error {
		var applyErr error
		values, applyErr = tech.Apply(ctx, tube)
		return applyErr
	})
	if err != nil {
		return nil, errors.Wrapf(err, "step %s: technique %q", s.Name(), name)
	}
	if err := checkOutputs(op, s.outputs[name], values); err != nil {
		return nil, err
	}
	return values, nil
}

// Parameters returns the merged parameter section for a technique:
// [<step>_parameters] overlaid by [<technique>]. random_state defaults to
// the tube seed.
func (s *Step) Parameters(technique string, tube *Context) *settings.Section {
	params := s.cfg.Section(s.Name() + "_parameters").Merge(s.cfg.Section(technique))
	if !params.Has("random_state") && tube != nil {
		params.Set("random_state", strconv.FormatUint(tube.Seed, 10))
	}
	return params
}

func checkOutputs(op string, declared []string, values map[string]any) error {
	got := make([]string, 0, len(values))
	for k := range values {
		got = append(got, k)
	}
	sort.Strings(got)
	want := slices.Clone(declared)
	sort.Strings(want)
	if !slices.Equal(got, want) {
		return errors.NewModelError(op, "output mismatch",
			errors.Newf("produced %v, declared %v", got, want))
	}
	return nil
}

func tolerable(err error) bool {
	var unknown *errors.UnknownTechniqueError
	if errors.As(err, &unknown) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func errorCode(err error) string {
	var (
		cfgErr *errors.ConfigurationError
		depErr *errors.DependencyUnavailableError
	)
	switch {
	case errors.As(err, &depErr):
		return log.ErrorDependencyUnavailable
	case errors.As(err, &cfgErr):
		return log.ErrorConfiguration
	default:
		return log.ErrorTechniqueFailed
	}
}
