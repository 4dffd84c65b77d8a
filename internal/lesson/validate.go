package lesson

import (
	"fmt"
	"math"
)

// Prepare returns a normalized, validated private copy of cfg. Engines mount
// from the copy so the caller's value is never touched.
func Prepare(cfg *Config) (*Config, error) {
	c := Clone(cfg)
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the structure of cfg. Expression compilation is left to
// the engine factories, which report failures as ConfigError too.
func Validate(cfg *Config) error {
	switch cfg.InteractionType {
	case TypeDerivative:
		return validateDerivative(cfg)
	case TypeBifurcation:
		return validateBifurcation(cfg)
	case TypeMotion:
		return validateMotion(cfg)
	case TypeSplit:
		return validateSplit(cfg)
	}
	return &ConfigError{Type: cfg.InteractionType, Field: "interactionType", Err: ErrUnknownType}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DerivativeRange is Engine A's resolution range: the first and last
// resolution levels, or the explicit min/max.
func DerivativeRange(cfg *Config) Range {
	p := cfg.Parameter
	r := p.Range
	if len(p.ResolutionLevels) > 0 {
		r.Min = p.ResolutionLevels[0]
		r.Max = p.ResolutionLevels[len(p.ResolutionLevels)-1]
	}
	if r.Name == "" {
		r.Name = "resolution"
	}
	return r
}

// StructureRange is Engine E's split-parameter range, [0, 1] by default.
func StructureRange(cfg *Config) Range {
	if s := cfg.Parameter.Structure; s != nil {
		return *s
	}
	r := cfg.Parameter.Range
	if r.Min == 0 && r.Max == 0 {
		r.Max = 1
	}
	return r
}

func validateDerivative(cfg *Config) error {
	t := cfg.InteractionType
	s := cfg.System
	if s.Function == "" {
		return Errorf(t, "systemSpec.function", ErrMissing, "function expression required")
	}
	if s.Derivative == "" {
		return Errorf(t, "systemSpec.derivative", ErrMissing, "derivative expression required")
	}
	if s.Domain == nil || !(s.Domain.B() > s.Domain.A()) || !finite(s.Domain[0], s.Domain[1]) {
		return Errorf(t, "systemSpec.domain", ErrInvalid, "domain must be [a, b] with a < b")
	}
	if s.Range == nil || !(s.Range.B() > s.Range.A()) {
		return Errorf(t, "systemSpec.range", ErrInvalid, "range must be [a, b] with a < b")
	}
	levels := cfg.Parameter.ResolutionLevels
	for i := 1; i < len(levels); i++ {
		if levels[i] <= levels[i-1] {
			return Errorf(t, "parameterSpec.resolutionLevels", ErrInvalid, "levels must be strictly increasing")
		}
	}
	r := DerivativeRange(cfg)
	if !(r.Min > 0) || !(r.Max > r.Min) {
		return Errorf(t, "parameterSpec", ErrInvalid, "resolution range must satisfy 0 < min < max, got [%g, %g]", r.Min, r.Max)
	}
	return validateTriggers(cfg)
}

func validateBifurcation(cfg *Config) error {
	t := cfg.InteractionType
	s := cfg.System
	if s.Model == "" && len(s.Curves) == 0 {
		return Errorf(t, "systemSpec.model", ErrMissing, "model or curves required")
	}
	if s.Resolution < 2 {
		return Errorf(t, "systemSpec.resolution", ErrInvalid, "resolution must be at least 2, got %d", s.Resolution)
	}
	if s.View == nil || !s.View.Valid() {
		return Errorf(t, "systemSpec.view", ErrInvalid, "view must have xMin < xMax and yMin < yMax")
	}
	if !(cfg.Parameter.Max > cfg.Parameter.Min) {
		return Errorf(t, "parameterSpec", ErrInvalid, "min must be below max")
	}
	for i, a := range s.Annotations {
		if a.Type != AnnotationLimitValue && a.Type != AnnotationHorizontalLine {
			return Errorf(t, fmt.Sprintf("systemSpec.annotations[%d].type", i), ErrUnsupported, "%q", a.Type)
		}
	}
	switch cfg.Reflection.CardMode {
	case "", CardsSingle, CardsStack:
	default:
		return Errorf(t, "reflectionSpec.cardMode", ErrUnsupported, "%q", cfg.Reflection.CardMode)
	}
	seen := make(map[string]bool)
	for i, tr := range cfg.Reflection.Triggers {
		if tr.ID == "" {
			return Errorf(t, fmt.Sprintf("reflectionSpec.triggers[%d].id", i), ErrMissing, "latching triggers need an id")
		}
		if seen[tr.ID] {
			return Errorf(t, fmt.Sprintf("reflectionSpec.triggers[%d].id", i), ErrInvalid, "duplicate id %q", tr.ID)
		}
		seen[tr.ID] = true
	}
	return validateTriggers(cfg)
}

func validateMotion(cfg *Config) error {
	t := cfg.InteractionType
	ts := cfg.Parameter.Time
	if ts == nil {
		return Errorf(t, "parameterSpec.time", ErrMissing, "time domain required")
	}
	if !(ts.Start < ts.End) || !(ts.Step > 0) || !finite(ts.Start, ts.End, ts.Step) {
		return Wrap(t, "parameterSpec.time", ErrInvalidTimeRange)
	}
	if (ts.End-ts.Start)/ts.Step > MaxTimeSteps {
		return Errorf(t, "parameterSpec.time", ErrInvalidTimeRange, "at most %d steps from start to end", MaxTimeSteps)
	}
	if cfg.System.EvolutionRule == nil || cfg.System.EvolutionRule.Expression == "" {
		return Errorf(t, "systemSpec.evolutionRule", ErrMissing, "evolution rule required")
	}
	if cfg.Representation.ViewBox == nil || !cfg.Representation.ViewBox.Valid() {
		return Errorf(t, "representationSpec.viewBox", ErrInvalid, "viewBox must have xMin < xMax and yMin < yMax")
	}
	for i, tr := range cfg.Reflection.Triggers {
		if tr.Type != TriggerTimeReached {
			return Errorf(t, fmt.Sprintf("reflectionSpec.triggers[%d].type", i), ErrUnsupported, "%q", tr.Type)
		}
	}
	return nil
}

func validateSplit(cfg *Config) error {
	t := cfg.InteractionType
	rep := cfg.Representation
	if cfg.System.ConservedObject == nil || cfg.System.ConservedObject.Expression == "" {
		return Errorf(t, "systemSpec.conservedObject", ErrMissing, "conserved quantity expression required")
	}
	if rep.GeometryBase == nil {
		return Errorf(t, "representationSpec.geometryBase", ErrMissing, "geometry base required")
	}
	if rep.SplitSpec == nil {
		return Errorf(t, "representationSpec.splitSpec", ErrMissing, "split spec required")
	}
	if rep.ViewBox == nil || !rep.ViewBox.Valid() {
		return Errorf(t, "representationSpec.viewBox", ErrInvalid, "viewBox must have xMin < xMax and yMin < yMax")
	}
	g := rep.GeometryBase
	switch g.Type {
	case GeometryRectangle:
		if g.Width == "" || g.Height == "" {
			return Errorf(t, "representationSpec.geometryBase", ErrMissing, "rectangle needs width and height")
		}
	case GeometryAreaUnderCurve:
		if g.Function == "" || g.Domain == nil || g.Domain.B() < g.Domain.A() {
			return Errorf(t, "representationSpec.geometryBase", ErrInvalid, "areaUnderCurve needs function and domain")
		}
	case GeometryRegionBetweenCurves:
		if g.F == "" || g.G == "" || g.Domain == nil || g.Domain.B() < g.Domain.A() {
			return Errorf(t, "representationSpec.geometryBase", ErrInvalid, "regionBetweenCurves needs f, g and domain")
		}
	default:
		return Errorf(t, "representationSpec.geometryBase.type", ErrUnsupported, "geometry %q", g.Type)
	}

	need := map[string]string{
		SplitDomain:                GeometryAreaUnderCurve,
		SplitRectangleContribution: GeometryRectangle,
		SplitSignPartition:         GeometryRegionBetweenCurves,
	}
	want, ok := need[rep.SplitSpec.Type]
	if !ok {
		return Errorf(t, "representationSpec.splitSpec.type", ErrUnsupported, "split %q", rep.SplitSpec.Type)
	}
	if g.Type != want {
		return Errorf(t, "representationSpec.splitSpec.type", ErrUnsupported, "split %q cannot cut %q", rep.SplitSpec.Type, g.Type)
	}
	if rep.SplitSpec.Type == SplitRectangleContribution {
		for _, k := range []string{"u", "v", "du", "dv"} {
			if _, ok := cfg.System.BaseValues[k]; !ok {
				return Errorf(t, "systemSpec.baseValues", ErrMissing, "rectangleContribution needs %q", k)
			}
		}
	}
	switch rep.Quadrature {
	case "", "left", "midpoint":
	default:
		return Errorf(t, "representationSpec.quadrature", ErrUnsupported, "%q", rep.Quadrature)
	}
	r := StructureRange(cfg)
	if !(r.Max > r.Min) {
		return Errorf(t, "parameterSpec.structure", ErrInvalid, "min must be below max")
	}
	for i, tr := range cfg.Reflection.Triggers {
		switch tr.Type {
		case TriggerStructureAbove, TriggerStructureBelow, TriggerStructureNear:
		default:
			return Errorf(t, fmt.Sprintf("reflectionSpec.triggers[%d].type", i), ErrUnsupported, "%q", tr.Type)
		}
	}
	return nil
}

func validateTriggers(cfg *Config) error {
	for i, tr := range cfg.Reflection.Triggers {
		if tr.Type != TriggerThreshold {
			return Errorf(cfg.InteractionType, fmt.Sprintf("reflectionSpec.triggers[%d].type", i), ErrUnsupported, "%q", tr.Type)
		}
		if tr.Field == "" || tr.Op == "" {
			return Errorf(cfg.InteractionType, fmt.Sprintf("reflectionSpec.triggers[%d]", i), ErrBadCondition, "field and op required")
		}
	}
	return nil
}
