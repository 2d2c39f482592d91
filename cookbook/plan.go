package cookbook

import (
	"io"
	"slices"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
)

const (
	edgeOrder      = "order"
	edgeDependency = "dependency"
)

// buildPlan links the stages in declared order, adds the edges each step
// depends on, and reorders the stages topologically. Ties keep the declared
// order, so a valid configuration runs exactly as written.
func (c *Cookbook) buildPlan() error {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	position := make(map[string]int, len(c.stages))

	for i, s := range c.stages {
		position[s.Name] = i
		shape := "box"
		if s.Phase == log.PhaseCritic {
			shape = "ellipse"
		}
		err := g.AddVertex(s.Name,
			graph.VertexAttribute("shape", shape),
			graph.VertexAttribute("label", s.Name+`\n`+strings.Join(s.Techniques, ", ")),
		)
		if err != nil {
			return errors.Wrapf(err, "plan: step %s", s.Name)
		}
		if i > 0 {
			if err := g.AddEdge(c.stages[i-1].Name, s.Name, graph.EdgeAttribute("label", edgeOrder)); err != nil {
				return errors.Wrapf(err, "plan: %s -> %s", c.stages[i-1].Name, s.Name)
			}
		}
	}

	for _, s := range c.stages {
		dep, ok := s.def.(step.Dependent)
		if !ok {
			continue
		}
		for _, need := range dep.DependsOn() {
			at, ok := position[need]
			if !ok {
				return errors.NewConfigurationError(sectionOf(s), s.Name, "requires step "+need+", which is not configured")
			}
			if at > position[s.Name] {
				return errors.NewConfigurationError(sectionOf(s), s.Name, "must be listed after "+need)
			}
			err := g.AddEdge(need, s.Name, graph.EdgeAttribute("label", edgeDependency), graph.EdgeAttribute("style", "dashed"))
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return errors.Wrapf(err, "plan: %s -> %s", need, s.Name)
			}
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return position[a] < position[b]
	})
	if err != nil {
		return errors.Wrap(err, "plan")
	}
	slices.SortStableFunc(c.stages, func(a, b Stage) int {
		return slices.Index(order, a.Name) - slices.Index(order, b.Name)
	})
	c.plan = g
	return nil
}

func sectionOf(s Stage) string {
	if s.Phase == log.PhaseCritic {
		return "critic"
	}
	return "chef"
}

// Order returns the step names in execution order.
func (c *Cookbook) Order() []string {
	out := make([]string, len(c.stages))
	for i, s := range c.stages {
		out[i] = s.Name
	}
	return out
}

// Plan returns the plan graph. Vertices are step names; edges are labelled
// "order" or "dependency".
func (c *Cookbook) Plan() graph.Graph[string, string] { return c.plan }

// WritePlan writes the plan graph in DOT format.
func (c *Cookbook) WritePlan(w io.Writer) error {
	return draw.DOT(c.plan, w, draw.GraphAttribute("rankdir", "LR"))
}
