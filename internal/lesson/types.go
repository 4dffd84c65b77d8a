package lesson

import "math"

// Type is the interaction-type tag that selects an engine.
type Type string

const (
	TypeDerivative  Type = "A"
	TypeBifurcation Type = "B"
	TypeMotion      Type = "C"
	TypeSplit       Type = "E"
)

// Types lists every supported tag in display order.
func Types() []Type {
	return []Type{TypeDerivative, TypeBifurcation, TypeMotion, TypeSplit}
}

// Config is one lesson's declarative description. It is read-only once a
// session has been mounted from it.
type Config struct {
	ID              string             `json:"id,omitempty"`
	Slug            string             `json:"slug,omitempty"`
	Title           string             `json:"title,omitempty"`
	InteractionType Type               `json:"interactionType"`
	Parameter       ParameterSpec      `json:"parameterSpec"`
	System          SystemSpec         `json:"systemSpec"`
	Representation  RepresentationSpec `json:"representationSpec"`
	Reflection      ReflectionSpec     `json:"reflectionSpec"`
}

// Interval is a closed range [a, b], serialized as a two-element array.
type Interval [2]float64

func (iv Interval) A() float64     { return iv[0] }
func (iv Interval) B() float64     { return iv[1] }
func (iv Interval) Width() float64 { return iv[1] - iv[0] }

// Vec2 is a point in lesson coordinates.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ViewBox holds axis bounds in lesson coordinates.
type ViewBox struct {
	XMin float64 `json:"xMin"`
	XMax float64 `json:"xMax"`
	YMin float64 `json:"yMin"`
	YMax float64 `json:"yMax"`
}

// Valid reports whether both axes have positive extent.
func (v ViewBox) Valid() bool { return v.XMax > v.XMin && v.YMax > v.YMin }

// Range declares the single user-controlled scalar.
type Range struct {
	Name    string   `json:"name,omitempty"`
	Label   string   `json:"label,omitempty"`
	Min     float64  `json:"min,omitempty"`
	Max     float64  `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Initial *float64 `json:"initial,omitempty"`
}

// Clamp limits v to [Min, Max]. NaN clamps to Min.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Start is the clamped initial value, or Min when none is declared.
func (r Range) Start() float64 {
	if r.Initial == nil {
		return r.Min
	}
	return r.Clamp(*r.Initial)
}

// Lerp maps a ratio in [0, 1] linearly onto the range.
func (r Range) Lerp(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	return r.Min + ratio*(r.Max-r.Min)
}

// MaxTimeSteps bounds (end-start)/step. Motion lessons replay the whole
// domain when mounted.
const MaxTimeSteps = 100_000

// TimeSpec is Engine C's time domain.
type TimeSpec struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Step  float64 `json:"step"`
}

// ParameterSpec declares the controllable parameter. The embedded Range
// serves Engine B; the other engines use their own fields.
type ParameterSpec struct {
	Range
	ResolutionLevels []float64 `json:"resolutionLevels,omitempty"`
	Stepped          bool      `json:"stepped,omitempty"`
	Time             *TimeSpec `json:"time,omitempty"`
	Structure        *Range    `json:"structure,omitempty"`
}

// ExpressionSpec wraps a DSL expression with its declared variables.
type ExpressionSpec struct {
	Type       string   `json:"type,omitempty"`
	Expression string   `json:"expression"`
	Variables  []string `json:"variables,omitempty"`
}

// CurveSpec is one curve of Engine B's multi-curve mode.
type CurveSpec struct {
	Expr   string  `json:"expr"`
	Color  string  `json:"color,omitempty"`
	Label  string  `json:"label,omitempty"`
	Style  string  `json:"style,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Dashed *bool   `json:"dashed,omitempty"`
}

// ApproachPoint marks an x value that every curve is sampled at.
type ApproachPoint struct {
	X     float64 `json:"x"`
	Label string  `json:"label,omitempty"`
}

// Annotation kinds for Engine B.
const (
	AnnotationLimitValue     = "limitValue"
	AnnotationHorizontalLine = "horizontalLine"
)

// Annotation is a computed overlay. limitValue evaluates Expr(x=At, p);
// horizontalLine evaluates Expr(p).
type Annotation struct {
	Type  string  `json:"type"`
	Expr  string  `json:"expr"`
	At    float64 `json:"at,omitempty"`
	Label string  `json:"label,omitempty"`
	Color string  `json:"color,omitempty"`
}

// Marker is a fixed x position for the point and hole markers.
type Marker struct {
	X float64 `json:"x"`
}

// SystemSpec holds the mathematical system. Each engine reads only the
// fields that belong to it.
type SystemSpec struct {
	// Engine A
	Function   string    `json:"function,omitempty"`
	Derivative string    `json:"derivative,omitempty"`
	Domain     *Interval `json:"domain,omitempty"`
	Range      *Interval `json:"range,omitempty"`
	Anchor     float64   `json:"anchor,omitempty"`

	// Engine B
	Model         string         `json:"model,omitempty"`
	Resolution    int            `json:"resolution,omitempty"`
	View          *ViewBox       `json:"view,omitempty"`
	MainLabel     string         `json:"mainLabel,omitempty"`
	Curves        []CurveSpec    `json:"curves,omitempty"`
	RefCurves     []CurveSpec    `json:"refCurves,omitempty"`
	ApproachPoint *ApproachPoint `json:"approachPoint,omitempty"`
	Annotations   []Annotation   `json:"annotations,omitempty"`
	Point         *Marker        `json:"point,omitempty"`
	Hole          *Marker        `json:"hole,omitempty"`

	// Engine C
	InitialState  *Vec2           `json:"initialState,omitempty"`
	EvolutionRule *ExpressionSpec `json:"evolutionRule,omitempty"`

	// Engine E
	BaseValues      map[string]float64 `json:"baseValues,omitempty"`
	ConservedObject *ExpressionSpec    `json:"conservedObject,omitempty"`
}

// Geometry base kinds for Engine E.
const (
	GeometryRectangle           = "rectangle"
	GeometryAreaUnderCurve      = "areaUnderCurve"
	GeometryRegionBetweenCurves = "regionBetweenCurves"
)

// Split strategies for Engine E.
const (
	SplitDomain                = "domainSplit"
	SplitRectangleContribution = "rectangleContribution"
	SplitSignPartition         = "signPartition"
)

// GeometrySpec is the serialized base geometry; it is turned into a
// geom.Shape when the lesson is mounted.
type GeometrySpec struct {
	Type     string    `json:"type"`
	Function string    `json:"function,omitempty"`
	Domain   *Interval `json:"domain,omitempty"`
	F        string    `json:"f,omitempty"`
	G        string    `json:"g,omitempty"`
	Origin   *Interval `json:"origin,omitempty"`
	Width    string    `json:"width,omitempty"`
	Height   string    `json:"height,omitempty"`
}

// SplitSpec selects the split strategy.
type SplitSpec struct {
	Type string `json:"type"`
}

// RepresentationSpec covers the view and geometry construction.
type RepresentationSpec struct {
	Mode         string        `json:"mode,omitempty"`
	Encoding     string        `json:"encoding,omitempty"`
	ViewBox      *ViewBox      `json:"viewBox,omitempty"`
	GeometryBase *GeometrySpec `json:"geometryBase,omitempty"`
	SplitSpec    *SplitSpec    `json:"splitSpec,omitempty"`
	Quadrature   string        `json:"quadrature,omitempty"`
	Steps        int           `json:"steps,omitempty"`
}

// Card display modes for latching reflections.
const (
	CardsSingle = "single"
	CardsStack  = "stack"
)

// ReflectionSpec is the ordered trigger list.
type ReflectionSpec struct {
	Triggers []Trigger `json:"triggers,omitempty"`
	CardMode string    `json:"cardMode,omitempty"`
}

// Trigger kinds.
const (
	TriggerThreshold      = "threshold"
	TriggerTimeReached    = "timeReached"
	TriggerStructureAbove = "structureAbove"
	TriggerStructureBelow = "structureBelow"
	TriggerStructureNear  = "structureNear"
)

// Trigger pairs a predicate over the current state with a message. A
// threshold trigger is either a condition string like
// "state.resolution >= 50" or the explicit field/op/value form.
type Trigger struct {
	ID        string  `json:"id,omitempty"`
	Type      string  `json:"type,omitempty"`
	Condition string  `json:"condition,omitempty"`
	Field     string  `json:"field,omitempty"`
	Op        string  `json:"op,omitempty"`
	Value     float64 `json:"value"`
	Upper     float64 `json:"upper,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`
	Message   string  `json:"message"`
}
