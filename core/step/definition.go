package step

import (
	"context"

	"github.com/YuminosukeSato/simplify/core/registry"
	"github.com/YuminosukeSato/simplify/settings"
)

// Technique is a configured implementation ready to run against a tube.
// Apply returns exactly the outputs declared when it was drafted.
type Technique interface {
	Apply(ctx context.Context, tube *Context) (map[string]any, error)
}

// TechniqueFunc adapts a function to Technique.
type TechniqueFunc func(ctx context.Context, tube *Context) (map[string]any, error)

// Apply calls f.
func (f TechniqueFunc) Apply(ctx context.Context, tube *Context) (map[string]any, error) {
	return f(ctx, tube)
}

// Factory builds a Technique from its merged parameter section. Deferred
// backends provide a Factory to the registry catalog.
type Factory func(params *settings.Section) (Technique, error)

// Definition describes what a step can do. Implementations are stateless;
// a Step wraps one per pipeline run.
type Definition interface {
	// Name is the step name used in settings ("scale", "explain").
	Name() string
	// Sections lists the settings sections the step reads.
	Sections() []string
	// Draft registers every technique the step knows.
	Draft(d *Drafter) error
}

// Dependent is implemented by definitions that need other steps to run
// first in the same pipeline.
type Dependent interface {
	DependsOn() []string
}

// Drafter collects technique registrations during Draft.
type Drafter struct {
	reg     *registry.Registry[Factory]
	outputs map[string][]string
}

func newDrafter(step string) *Drafter {
	return &Drafter{
		reg:     registry.New[Factory](step),
		outputs: make(map[string][]string),
	}
}

// Direct registers a technique linked into the binary.
func (d *Drafter) Direct(name, library string, f Factory, outputs ...string) {
	d.Register(name, registry.Direct(library, f), outputs...)
}

// Deferred registers a technique whose factory is looked up in the
// registry catalog under library.symbol when first dispatched.
func (d *Drafter) Deferred(name, library, symbol string, outputs ...string) {
	d.Register(name, registry.Deferred[Factory](library, symbol), outputs...)
}

// Register adds ref under name with its declared outputs. A repeated name
// replaces the earlier registration.
func (d *Drafter) Register(name string, ref registry.Reference[Factory], outputs ...string) {
	d.reg.Register(name, ref)
	d.outputs[name] = append([]string(nil), outputs...)
}

// Remove drops a registration made earlier in the same draft.
func (d *Drafter) Remove(name string) error {
	if err := d.reg.Remove(name); err != nil {
		return err
	}
	delete(d.outputs, name)
	return nil
}
