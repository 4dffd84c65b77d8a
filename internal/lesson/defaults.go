package lesson

import (
	"math"
	"sort"
)

func ptr(v float64) *float64 { return &v }

// Default returns a fresh copy of the built-in lesson for t.
func Default(t Type) (*Config, bool) {
	switch t {
	case TypeDerivative:
		return DefaultDerivative(), true
	case TypeBifurcation:
		return DefaultBifurcation(), true
	case TypeMotion:
		return DefaultMotion(), true
	case TypeSplit:
		return DefaultSplit(), true
	}
	return nil, false
}

// OrDefault returns cfg, or the built-in lesson for t when cfg is nil.
func OrDefault(t Type, cfg *Config) (*Config, bool) {
	if cfg != nil {
		return cfg, true
	}
	return Default(t)
}

// DefaultDerivative: secant versus tangent of x² at x = 1.
func DefaultDerivative() *Config {
	levels := make([]float64, 0, 32)
	for r := 2; r <= 64; r += 2 {
		levels = append(levels, float64(r))
	}
	return &Config{
		Slug:            "secant-tangent",
		Title:           "Secant to tangent",
		InteractionType: TypeDerivative,
		Parameter: ParameterSpec{
			Range:            Range{Name: "resolution", Label: "Resolution"},
			ResolutionLevels: levels,
		},
		System: SystemSpec{
			Function:   "x*x",
			Derivative: "2*x",
			Domain:     &Interval{-3, 3},
			Range:      &Interval{-1, 8},
			Anchor:     1,
		},
		Reflection: ReflectionSpec{
			Triggers: []Trigger{
				{Condition: "state.resolution >= 50", Message: "Sai số gần bằng 0. Hội tụ đã đạt."},
			},
		},
	}
}

// DerivativeSine shows visible convergence: the symmetric difference of sin
// is not exact.
func DerivativeSine() *Config {
	cfg := DefaultDerivative()
	cfg.Slug = "secant-sine"
	cfg.Title = "Secant to tangent on sin(x)"
	cfg.System.Function = "sin(x)"
	cfg.System.Derivative = "cos(x)"
	cfg.System.Range = &Interval{-1.5, 1.5}
	cfg.Reflection.Triggers = []Trigger{
		{Field: "resolution", Op: ">=", Value: 40, Message: "The secant is now indistinguishable from the tangent."},
	}
	return cfg
}

// DefaultBifurcation: the quartic potential x⁴ − p·x².
func DefaultBifurcation() *Config {
	return &Config{
		Slug:            "potential-wells",
		Title:           "One well or two",
		InteractionType: TypeBifurcation,
		Parameter: ParameterSpec{
			Range: Range{Name: "p", Label: "System Tension", Min: -5, Max: 5, Step: 0.01, Initial: ptr(5)},
		},
		System: SystemSpec{
			Model:      "x^4 - p*x^2",
			Resolution: 200,
			View:       &ViewBox{XMin: -4, XMax: 4, YMin: -10, YMax: 10},
		},
		Reflection: ReflectionSpec{
			CardMode: CardsSingle,
			Triggers: []Trigger{
				{ID: "single-well", Condition: "state.currentValue < 0",
					Message: "In this state, the system naturally settles toward a single central point."},
				{ID: "transition", Condition: "state.currentValue > 0 && state.currentValue < 1",
					Message: "Notice the center flattening as the system loses its singular focus."},
				{ID: "double-well", Condition: "state.currentValue > 3",
					Message: "The system has now split into two distinct basins, creating a choice between two states."},
			},
		},
	}
}

// BifurcationLimit uses the multi-curve mode with a hole and annotations.
func BifurcationLimit() *Config {
	return &Config{
		Slug:            "removable-hole",
		Title:           "Approaching a hole",
		InteractionType: TypeBifurcation,
		Parameter: ParameterSpec{
			Range: Range{Name: "p", Label: "Offset", Min: 0, Max: 3, Step: 0.01, Initial: ptr(1)},
		},
		System: SystemSpec{
			Resolution: 241,
			View:       &ViewBox{XMin: -1, XMax: 3, YMin: -1, YMax: 6},
			Curves: []CurveSpec{
				{Expr: "(x*x - 1)/(x - 1) + p - 1", Color: "#3498db", Label: "f(x)", Width: 3},
				{Expr: "x + p", Color: "#94a3b8", Label: "x + p", Style: "dashed", Width: 2},
			},
			ApproachPoint: &ApproachPoint{X: 1},
			Annotations: []Annotation{
				{Type: AnnotationLimitValue, Expr: "x + p", At: 1, Label: "lim f = {value}", Color: "#3498db"},
				{Type: AnnotationHorizontalLine, Expr: "1 + p", Color: "#f59e0b"},
			},
			Hole: &Marker{X: 1},
		},
		Reflection: ReflectionSpec{
			CardMode: CardsStack,
			Triggers: []Trigger{
				{ID: "low", Field: "currentValue", Op: "<", Value: 0.5, Message: "At p = {p} the limit is {eval:1 + p}."},
				{ID: "high", Field: "currentValue", Op: ">", Value: 2.5, Message: "Shifted up: the hole sits at height {eval:1 + p}."},
			},
		},
	}
}

// DefaultMotion: unit circle traced by the velocity field [cos t, sin t].
func DefaultMotion() *Config {
	return &Config{
		Slug:            "unit-circle",
		Title:           "Tracing a circle",
		InteractionType: TypeMotion,
		Parameter: ParameterSpec{
			Time: &TimeSpec{Start: 0, End: 2 * math.Pi, Step: 0.02},
		},
		System: SystemSpec{
			InitialState: &Vec2{X: 0, Y: -1},
			EvolutionRule: &ExpressionSpec{
				Type:       "expression",
				Expression: "[cos(t), sin(t)]",
				Variables:  []string{"t"},
			},
		},
		Representation: RepresentationSpec{
			Encoding: "motion",
			ViewBox:  &ViewBox{XMin: -1.2, XMax: 1.2, YMin: -1.2, YMax: 1.2},
		},
		Reflection: ReflectionSpec{
			Triggers: []Trigger{
				{Type: TriggerTimeReached, Value: 2*math.Pi - 0.02, Message: "The motion has completed one full cycle."},
				{Type: TriggerTimeReached, Value: 3.14159, Message: "Half a cycle: velocity reverses direction."},
			},
		},
	}
}

// MotionSpiral depends on position as well as time.
func MotionSpiral() *Config {
	return &Config{
		Slug:            "outward-spiral",
		Title:           "An unstable focus",
		InteractionType: TypeMotion,
		Parameter: ParameterSpec{
			Time: &TimeSpec{Start: 0, End: 8, Step: 0.01},
		},
		System: SystemSpec{
			InitialState: &Vec2{X: 0.2, Y: 0},
			EvolutionRule: &ExpressionSpec{
				Type:       "expression",
				Expression: "[0.25*x - y, x + 0.25*y]",
				Variables:  []string{"t", "x", "y"},
			},
		},
		Representation: RepresentationSpec{
			Encoding: "motion",
			ViewBox:  &ViewBox{XMin: -2, XMax: 2, YMin: -2, YMax: 2},
		},
		Reflection: ReflectionSpec{
			Triggers: []Trigger{
				{Type: TriggerTimeReached, Value: 2, Message: "Each turn takes about 2π time units."},
				{Type: TriggerTimeReached, Value: 6, Message: "The radius keeps growing: the origin repels."},
			},
		},
	}
}

// DefaultSplit: the area under x² on [0, 4] cut at a movable point.
func DefaultSplit() *Config {
	return &Config{
		Slug:            "area-split",
		Title:           "Splitting an area",
		InteractionType: TypeSplit,
		Parameter: ParameterSpec{
			Structure: &Range{Name: "structure", Label: "Điểm chia (s)", Min: 0, Max: 1, Step: 0.01, Initial: ptr(0.4)},
		},
		System: SystemSpec{
			BaseValues:      map[string]float64{},
			ConservedObject: &ExpressionSpec{Type: "expression", Expression: "(4*4*4)/3"},
		},
		Representation: RepresentationSpec{
			Mode:         "geometricSplit",
			GeometryBase: &GeometrySpec{Type: GeometryAreaUnderCurve, Function: "x*x", Domain: &Interval{0, 4}},
			SplitSpec:    &SplitSpec{Type: SplitDomain},
			ViewBox:      &ViewBox{XMin: 0, XMax: 4.5, YMin: 0, YMax: 18},
		},
		Reflection: ReflectionSpec{
			Triggers: []Trigger{
				{Type: TriggerStructureNear, Value: 0.5, Tolerance: 0.05, Message: "Diện tích được chia thành hai phần bằng nhau."},
				{Type: TriggerStructureBelow, Value: 0.15, Message: "Hầu hết diện tích nằm về phía phải điểm chia."},
				{Type: TriggerStructureAbove, Value: 0.85, Message: "Hầu hết diện tích nằm về phía trái điểm chia."},
			},
		},
	}
}

// SplitSignLesson: |sin x| over one period, split where the sign flips.
func SplitSignLesson() *Config {
	return &Config{
		Slug:            "sign-partition",
		Title:           "Signed area of sin(x)",
		InteractionType: TypeSplit,
		Parameter: ParameterSpec{
			Structure: &Range{Name: "structure", Label: "Vùng", Min: 0, Max: 1, Step: 0.01, Initial: ptr(0.25)},
		},
		System: SystemSpec{
			ConservedObject: &ExpressionSpec{Type: "expression", Expression: "4"},
		},
		Representation: RepresentationSpec{
			Mode:         "geometricSplit",
			GeometryBase: &GeometrySpec{Type: GeometryRegionBetweenCurves, F: "sin(x)", G: "0", Domain: &Interval{0, 2 * math.Pi}},
			SplitSpec:    &SplitSpec{Type: SplitSignPartition},
			ViewBox:      &ViewBox{XMin: 0, XMax: 6.5, YMin: -1.2, YMax: 1.2},
		},
	}
}

// SplitProductRule: d(uv) as the sum of two thin rectangles.
func SplitProductRule() *Config {
	return &Config{
		Slug:            "product-rule",
		Title:           "Product rule as area",
		InteractionType: TypeSplit,
		Parameter: ParameterSpec{
			Structure: &Range{Name: "structure", Label: "Đóng góp", Min: 0, Max: 1, Step: 0.01, Initial: ptr(0.5)},
		},
		System: SystemSpec{
			BaseValues:      map[string]float64{"u": 3, "v": 2, "du": 0.5, "dv": 0.4},
			ConservedObject: &ExpressionSpec{Type: "expression", Expression: "u*dv + v*du", Variables: []string{"u", "v", "du", "dv"}},
		},
		Representation: RepresentationSpec{
			Mode:         "geometricSplit",
			GeometryBase: &GeometrySpec{Type: GeometryRectangle, Origin: &Interval{0, 0}, Width: "u", Height: "v"},
			SplitSpec:    &SplitSpec{Type: SplitRectangleContribution},
			ViewBox:      &ViewBox{XMin: 0, XMax: 4, YMin: 0, YMax: 3},
		},
		Reflection: ReflectionSpec{
			Triggers: []Trigger{
				{Type: TriggerStructureAbove, Value: 0.5, Message: "The strips u·dv and v·du together are the change in area."},
			},
		},
	}
}

// Shipped is the catalog of built-in lessons keyed by slug.
func Shipped() map[string]*Config {
	out := make(map[string]*Config)
	for _, c := range []*Config{
		DefaultDerivative(), DerivativeSine(),
		DefaultBifurcation(), BifurcationLimit(),
		DefaultMotion(), MotionSpiral(),
		DefaultSplit(), SplitSignLesson(), SplitProductRule(),
	} {
		out[c.Slug] = c
	}
	return out
}

// ShippedSlugs lists the catalog in sorted order.
func ShippedSlugs() []string {
	m := Shipped()
	slugs := make([]string, 0, len(m))
	for s := range m {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}
