// Package interactions implements the four lesson engines and the dispatcher
// that selects one by its interaction-type tag.
package interactions

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

// Engine is a mounted lesson: compiled expressions plus the pure recompute
// step, the reflection policy and the painter.
type Engine interface {
	// Spec describes the engine variant
	Spec() Spec

	// Lesson returns the private, validated lesson copy
	Lesson() *lesson.Config

	// Param is the domain the EngineState scalar is clamped to
	Param() lesson.Range

	// Recompute derives the scene for a state value; it has no side effects
	Recompute(value float64) Scene

	// Reflect selects the message for a committed scene. Engine B latches
	// here, so call it once per committed state change.
	Reflect(scene Scene) Reflection

	// Paint draws the scene to s
	Paint(s render.Surface, scene Scene)
}

// FrameAware engines have work to do on the frame after a state change.
type FrameAware interface {
	// NextFrame reports whether anything visible changed
	NextFrame() bool
}

// Spec is the static description of an engine variant.
type Spec struct {
	Type        lesson.Type `json:"type"`
	Name        string      `json:"name"`
	StateName   string      `json:"state_name"`
	Description string      `json:"description"`
}

// Scene is the derived geometry and metrics for one state value.
type Scene interface {
	Value() float64
	Readouts() []Readout
}

// Reflection is the contextual text selected for a scene.
type Reflection struct {
	Message string `json:"message,omitempty"`
	Cards   []Card `json:"cards,omitempty"`
}

// Card is a latched Engine B message. Cards are added invisible and become
// visible on the following frame.
type Card struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// Deps are the per-mount collaborators.
type Deps struct {
	Cache  *expr.Cache
	Logger *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = expr.NewCache()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Factory builds an engine from a prepared lesson.
type Factory func(cfg *lesson.Config, deps Deps) (Engine, error)

type registration struct {
	spec    Spec
	factory Factory
}

// Registry holds the available engines keyed by tag
var Registry = make(map[lesson.Type]registration)

// Register adds an engine variant
func Register(spec Spec, f Factory) {
	Registry[spec.Type] = registration{spec: spec, factory: f}
}

// Lookup retrieves an engine variant by tag
func Lookup(t lesson.Type) (Spec, Factory, bool) {
	r, ok := Registry[t]
	return r.spec, r.factory, ok
}

// Specs returns every registered variant ordered by tag
func Specs() []Spec {
	out := make([]Spec, 0, len(Registry))
	for _, r := range Registry {
		out = append(out, r.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Mount dispatches on tag. A nil cfg mounts the built-in lesson for the
// tag. Unknown tags and invalid lessons return a *lesson.ConfigError.
func Mount(tag lesson.Type, cfg *lesson.Config, deps Deps) (Engine, error) {
	_, factory, ok := Lookup(tag)
	if !ok {
		return nil, &lesson.ConfigError{Type: tag, Field: "interactionType", Err: lesson.ErrUnknownType}
	}
	cfg, _ = lesson.OrDefault(tag, cfg)
	if cfg.InteractionType == "" {
		c := *cfg
		c.InteractionType = tag
		cfg = &c
	}
	if cfg.InteractionType != tag {
		return nil, lesson.Errorf(tag, "interactionType", lesson.ErrInvalid, "lesson is %q", cfg.InteractionType)
	}
	prepared, err := lesson.Prepare(cfg)
	if err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return factory(prepared, deps)
}

// MountLesson dispatches on the lesson's own tag.
func MountLesson(cfg *lesson.Config, deps Deps) (Engine, error) {
	return Mount(cfg.InteractionType, cfg, deps)
}

// init registers all engines
func init() {
	Register(derivativeSpec, newDerivative)
	Register(bifurcationSpec, newBifurcation)
	Register(motionSpec, newMotion)
	Register(splitSpec, newSplit)
}

func fieldIndex(base string, i int) string { return fmt.Sprintf("%s[%d]", base, i) }
