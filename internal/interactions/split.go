package interactions

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/geom"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/numeric"
	"github.com/MJE43/lessonviz/internal/render"
)

var splitSpec = Spec{
	Type:        lesson.TypeSplit,
	Name:        "Invariant split",
	StateName:   "structure",
	Description: "A region cut into parts whose measures always sum to the conserved total",
}

// InvariantTolerance bounds |Σ measures − total|.
const InvariantTolerance = 1e-2

// Opacities of split parts.
const (
	alphaActive = 0.85
	alphaDimmed = 0.2
	alphaPart   = 0.75
)

var (
	colorLeft     = render.Hex("#6366f1")
	colorLeftInk  = render.Hex("#4338ca")
	colorRight    = render.Hex("#38bdf8")
	colorRightInk = render.Hex("#0284c7")
	colorPositive = render.Hex("#34d399")
	colorNegative = render.Hex("#f87171")
	colorSplit    = render.Hex("#f59e0b")
	colorOutline  = render.Hex("#1e293b")
	colorEAxis    = render.Hex("#94a3b8")
	colorEGrid    = render.Hex("#e2e8f0")
	colorELabel   = render.Hex("#64748b")
	colorEBack    = render.Hex("#f8fafc")
)

// Messages shown for the active sign-partition interval.
const (
	MessagePositive = "Trên khoảng này f(x) > g(x), diện tích có dấu dương."
	MessageNegative = "Trên khoảng này f(x) < g(x), diện tích có dấu âm."
)

type split struct {
	cfg      *lesson.Config
	param    lesson.Range
	strategy string
	base     geom.Shape
	scope    map[string]float64
	total    float64
	quad     geom.Quadrature
	view     lesson.ViewBox
	signed   []geom.Shape // sign-partition parts, fixed per mount
	triggers []lesson.Trigger
	log      *zap.Logger
}

// Part is one piece of the split with its measure.
type Part struct {
	Shape   geom.Shape `json:"-"`
	Kind    geom.Kind  `json:"kind"`
	A       float64    `json:"a"`
	B       float64    `json:"b"`
	Measure float64    `json:"measure"`
}

// SplitScene is Engine E's derived state for one structure value.
type SplitScene struct {
	Structure float64    `json:"structure"`
	Strategy  string     `json:"strategy"`
	Base      geom.Shape `json:"-"`
	Parts     []Part     `json:"parts"`
	Total     float64    `json:"total"`
	Sum       float64    `json:"sum"`
	Delta     float64    `json:"delta"`
	Active    int        `json:"active"`
	SplitX    *float64   `json:"splitX,omitempty"`
}

func (s *SplitScene) Value() float64 { return s.Structure }

// InvariantHolds reports whether the parts sum to the total within tolerance.
func (s *SplitScene) InvariantHolds() bool { return s.Delta < InvariantTolerance }

func (s *SplitScene) measure(i int) float64 {
	if i < len(s.Parts) {
		return s.Parts[i].Measure
	}
	return 0
}

// Readouts are the metric cards of the strategy.
func (s *SplitScene) Readouts() []Readout {
	total := readout("total", "A₁ + A₂", s.Total, 3)
	total.Total = true
	switch s.Strategy {
	case lesson.SplitRectangleContribution:
		total.Label = "Tổng"
		return []Readout{
			readout("udv", "u · dv", s.measure(0), 3),
			readout("vdu", "v · du", s.measure(1), 3),
			total,
		}
	case lesson.SplitSignPartition:
		var pos, neg float64
		for _, p := range s.Parts {
			if r, ok := p.Shape.(geom.RegionBetweenCurves); ok && r.Sign == numeric.Negative {
				neg += p.Measure
			} else {
				pos += p.Measure
			}
		}
		total.Label = "Tổng"
		return []Readout{
			readout("positive", "Diện tích dương", pos, 3),
			readout("negative", "Diện tích âm", neg, 3),
			total,
		}
	}
	return []Readout{
		readout("a1", "A₁", s.measure(0), 3),
		readout("a2", "A₂", s.measure(1), 3),
		total,
	}
}

func scopeVars(scope map[string]float64) []string {
	vars := make([]string, 0, len(scope))
	for k := range scope {
		vars = append(vars, k)
	}
	sort.Strings(vars)
	return vars
}

func newSplit(cfg *lesson.Config, deps Deps) (Engine, error) {
	t := cfg.InteractionType
	rep := cfg.Representation
	scope := make(map[string]float64, len(cfg.System.BaseValues))
	for k, v := range cfg.System.BaseValues {
		scope[k] = v
	}
	vars := scopeVars(scope)

	evalScoped := func(field, src string) (float64, error) {
		prog, err := deps.Cache.Compile(src, vars...)
		if err != nil {
			return 0, lesson.Wrap(t, field, err)
		}
		v, err := prog.EvalScope(scope)
		if err != nil {
			return 0, lesson.Wrap(t, field, err)
		}
		return v, nil
	}
	curve := func(field, src string) (geom.Curve, error) {
		prog, err := deps.Cache.Compile(src, "x")
		if err != nil {
			return geom.Curve{}, lesson.Wrap(t, field, err)
		}
		return geom.Curve{Src: src, F: prog.Func1()}, nil
	}

	total, err := evalScoped("systemSpec.conservedObject.expression", cfg.System.ConservedObject.Expression)
	if err != nil {
		return nil, err
	}

	e := &split{
		cfg:      cfg,
		param:    lesson.StructureRange(cfg),
		strategy: rep.SplitSpec.Type,
		scope:    scope,
		total:    total,
		view:     *rep.ViewBox,
		triggers: cfg.Reflection.Triggers,
		log:      deps.Logger.Named("split"),
		quad:     geom.Quadrature{Rule: numeric.RuleMidpoint, Steps: rep.Steps},
	}
	if rep.Quadrature == string(numeric.RuleLeft) {
		e.quad.Rule = numeric.RuleLeft
	}
	if e.quad.Steps <= 0 {
		e.quad.Steps = numeric.DefaultSteps
	}

	g := rep.GeometryBase
	switch g.Type {
	case lesson.GeometryRectangle:
		w, err := evalScoped("representationSpec.geometryBase.width", g.Width)
		if err != nil {
			return nil, err
		}
		h, err := evalScoped("representationSpec.geometryBase.height", g.Height)
		if err != nil {
			return nil, err
		}
		var x, y float64
		if g.Origin != nil {
			x, y = g.Origin.A(), g.Origin.B()
		}
		e.base = geom.Rectangle{X: x, Y: y, Width: w, Height: h}
	case lesson.GeometryAreaUnderCurve:
		c, err := curve("representationSpec.geometryBase.function", g.Function)
		if err != nil {
			return nil, err
		}
		e.base = geom.AreaUnderCurve{Curve: c, A: g.Domain.A(), B: g.Domain.B()}
	case lesson.GeometryRegionBetweenCurves:
		f, err := curve("representationSpec.geometryBase.f", g.F)
		if err != nil {
			return nil, err
		}
		gc, err := curve("representationSpec.geometryBase.g", g.G)
		if err != nil {
			return nil, err
		}
		base := geom.RegionBetweenCurves{F: f, G: gc, A: g.Domain.A(), B: g.Domain.B()}
		e.base = base
		h := func(x float64) float64 { return f.F(x) - gc.F(x) }
		for _, iv := range numeric.Partition(h, base.A, base.B, numeric.DefaultSamples) {
			e.signed = append(e.signed, geom.RegionBetweenCurves{F: f, G: gc, A: iv.A, B: iv.B, Sign: iv.Sign})
		}
	}
	return e, nil
}

func (e *split) Spec() Spec             { return splitSpec }
func (e *split) Lesson() *lesson.Config { return e.cfg }
func (e *split) Param() lesson.Range    { return e.param }

// Total is the conserved quantity.
func (e *split) Total() float64 { return e.total }

func (e *split) parts(structure float64) []geom.Shape {
	switch base := e.base.(type) {
	case geom.Rectangle:
		u, v, du, dv := e.scope["u"], e.scope["v"], e.scope["du"], e.scope["dv"]
		return []geom.Shape{
			geom.Rectangle{X: base.X, Y: base.Y + v, Width: u, Height: dv, Contribution: geom.UDV},
			geom.Rectangle{X: base.X + u, Y: base.Y, Width: du, Height: v, Contribution: geom.VDU},
		}
	case geom.AreaUnderCurve:
		cut := base.A + structure*(base.B-base.A)
		return []geom.Shape{
			geom.AreaUnderCurve{Curve: base.Curve, A: base.A, B: cut},
			geom.AreaUnderCurve{Curve: base.Curve, A: cut, B: base.B},
		}
	}
	return e.signed
}

func (e *split) Recompute(structure float64) Scene {
	shapes := e.parts(structure)
	s := &SplitScene{
		Structure: structure,
		Strategy:  e.strategy,
		Base:      e.base,
		Total:     e.total,
		Active:    -1,
		Parts:     make([]Part, len(shapes)),
	}
	for i, sh := range shapes {
		m := e.quad.Measure(sh)
		s.Parts[i] = Part{Shape: sh, Kind: sh.Kind(), Measure: m}
		switch sh := sh.(type) {
		case geom.Rectangle:
			s.Parts[i].A, s.Parts[i].B = sh.X, sh.X+sh.Width
		case geom.AreaUnderCurve:
			s.Parts[i].A, s.Parts[i].B = sh.A, sh.B
		case geom.RegionBetweenCurves:
			s.Parts[i].A, s.Parts[i].B = sh.A, sh.B
		}
		s.Sum += m
	}
	s.Delta = math.Abs(s.Sum - s.Total)
	if math.IsNaN(s.Delta) {
		s.Delta = math.Inf(1)
	}

	if e.strategy == lesson.SplitSignPartition && len(shapes) > 0 {
		n := len(shapes)
		s.Active = int(math.Floor(structure * float64(n)))
		if s.Active > n-1 {
			s.Active = n - 1
		}
		if s.Active < 0 {
			s.Active = 0
		}
	}
	if base, ok := e.base.(geom.AreaUnderCurve); ok && e.strategy == lesson.SplitDomain {
		x := base.A + structure*(base.B-base.A)
		s.SplitX = &x
	}

	if !s.InvariantHolds() {
		e.log.Warn("conserved quantity violated",
			zap.String("lesson", e.cfg.Slug),
			zap.Float64("structure", structure),
			zap.Float64("sum", s.Sum),
			zap.Float64("total", s.Total),
			zap.Float64("delta", s.Delta),
		)
	}
	return s
}

func (e *split) Reflect(scene Scene) Reflection {
	s := scene.(*SplitScene)
	if s.Strategy == lesson.SplitSignPartition && s.Active >= 0 {
		if r, ok := s.Parts[s.Active].Shape.(geom.RegionBetweenCurves); ok && r.Sign == numeric.Negative {
			return Reflection{Message: MessageNegative}
		}
		return Reflection{Message: MessagePositive}
	}
	return Reflection{Message: structureMatch(e.triggers, s.Structure)}
}

func (e *split) partStyle(s *SplitScene, i int) (render.Color, float64) {
	switch sh := s.Parts[i].Shape.(type) {
	case geom.RegionBetweenCurves:
		c := colorPositive
		if sh.Sign == numeric.Negative {
			c = colorNegative
		}
		if i == s.Active {
			return c, alphaActive
		}
		return c, alphaDimmed
	case geom.Rectangle:
		t := e.param.Clamp(s.Structure)
		if span := e.param.Max - e.param.Min; span > 0 {
			t = (t - e.param.Min) / span
		}
		if sh.Contribution == geom.UDV {
			return colorLeft, alphaDimmed + (alphaActive-alphaDimmed)*t
		}
		return colorRight, alphaActive - (alphaActive-alphaDimmed)*t
	}
	if i == 0 {
		return colorLeft, alphaPart
	}
	return colorRight, alphaPart
}

func (e *split) Paint(sf render.Surface, scene Scene) {
	s := scene.(*SplitScene)
	w, h := sf.Size()
	v := e.view
	vp := render.NewViewport(render.Bounds{XMin: v.XMin, XMax: v.XMax, YMin: v.YMin, YMax: v.YMax}, w, h, 28)
	project := func(pl geom.Polyline) [][2]float64 {
		out := make([][2]float64, len(pl))
		for i, p := range pl {
			out[i] = [2]float64{vp.MapX(p.X), vp.MapY(p.Y)}
		}
		return out
	}

	sf.Clear(render.White)
	sf.SetColor(colorEBack)
	sf.Rect(vp.Pad, vp.Pad, w-2*vp.Pad, h-2*vp.Pad)
	sf.Fill()

	render.Layer(sf, "grid")
	xs := render.Ticks(v.XMin, v.XMax, render.NiceStep(v.XMax-v.XMin, 6))
	ys := render.Ticks(v.YMin, v.YMax, render.NiceStep(v.YMax-v.YMin, 5))
	render.Grid(sf, vp, xs, ys, colorEGrid, 1)

	render.Layer(sf, "parts")
	for i, p := range s.Parts {
		c, a := e.partStyle(s, i)
		sf.SetColor(c.WithAlpha(a))
		render.Polygon(sf, project(geom.Outline(p.Shape, 0)))
	}

	render.Layer(sf, "outline")
	sf.SetColor(colorOutline)
	sf.SetLineWidth(2.5)
	sf.SetDash()
	switch base := s.Base.(type) {
	case geom.AreaUnderCurve:
		render.Path(sf, curvePoints(vp, base.Curve, base.A, base.B))
	case geom.RegionBetweenCurves:
		render.Path(sf, curvePoints(vp, base.F, base.A, base.B))
		render.Path(sf, curvePoints(vp, base.G, base.A, base.B))
	case geom.Rectangle:
		sf.SetLineWidth(1.5)
		render.Path(sf, append(project(geom.Outline(base, 0)), [2]float64{vp.MapX(base.X), vp.MapY(base.Y)}))
	}

	if s.SplitX != nil {
		render.Layer(sf, "split")
		x := vp.MapX(*s.SplitX)
		sf.SetColor(colorSplit)
		sf.SetLineWidth(2)
		sf.SetDash(6, 4)
		render.Line(sf, x, vp.Pad, x, h-vp.Pad)
		sf.SetDash()
		sf.Text("s="+fixed(*s.SplitX, 2), x, h-vp.Pad/2, render.AlignCenter)

		base := s.Base.(geom.AreaUnderCurve)
		ly := vp.MapY(v.YMax * 0.35)
		if *s.SplitX-base.A > 0.3 {
			sf.SetColor(colorLeftInk)
			sf.Text("A1", vp.MapX((base.A+*s.SplitX)/2), ly, render.AlignCenter)
		}
		if base.B-*s.SplitX > 0.3 {
			sf.SetColor(colorRightInk)
			sf.Text("A2", vp.MapX((*s.SplitX+base.B)/2), ly, render.AlignCenter)
		}
	}

	render.Layer(sf, "axes")
	render.Axes(sf, vp, colorEAxis, 1.5)
	sf.SetColor(colorELabel)
	for _, x := range xs {
		if x > 0 {
			sf.Text(render.TickLabel(x), vp.MapX(x), h-vp.Pad+12, render.AlignCenter)
		}
	}
	for _, y := range ys {
		if y > 0 {
			sf.Text(render.TickLabel(y), vp.Pad-5, vp.MapY(y), render.AlignRight)
		}
	}
}

func curvePoints(vp render.Viewport, c geom.Curve, a, b float64) [][2]float64 {
	samples := geom.SampleCurve(c, a, b, 301, 0)
	out := make([][2]float64, len(samples))
	for i, p := range samples {
		if !p.OK {
			out[i] = [2]float64{math.NaN(), math.NaN()}
			continue
		}
		out[i] = [2]float64{vp.MapX(p.X), vp.MapY(p.Y)}
	}
	return out
}
