package interactions

import (
	"math"
	"strings"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/geom"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

var bifurcationSpec = Spec{
	Type:        lesson.TypeBifurcation,
	Name:        "Bifurcation explorer",
	StateName:   "p",
	Description: "Family of curves y = f(x, p) with latching reflection cards",
}

const (
	defaultCurveColor = "#3498db"
	defaultRefColor   = "#999999"
	holeProbe         = 1e-6
)

var (
	colorBGrid     = render.Hex("#f0f0f0")
	colorBAxis     = render.Hex("#d1d5db")
	colorBTick     = render.Hex("#b0b0b0")
	colorApproach  = render.Hex("#94a3b8")
	colorApproachT = render.Hex("#64748b")
	colorPoint     = render.Hex("#e74c3c")
	colorPanelLine = render.Hex("#e5e7eb")
	colorPanelText = render.Hex("#1e293b")
)

type bcurve struct {
	prog  *expr.Program
	color string
	label string
	style string
	width float64
}

type bannotation struct {
	spec lesson.Annotation
	prog *expr.Program
}

type bifurcation struct {
	cfg         *lesson.Config
	param       lesson.Range
	view        lesson.ViewBox
	resolution  int
	curves      []bcurve
	annotations []bannotation
	triggers    []lesson.Trigger
	latch       *Latch
	cache       *expr.Cache
}

// CurveData is one sampled curve in draw order.
type CurveData struct {
	Label   string        `json:"label,omitempty"`
	Color   string        `json:"color"`
	Style   string        `json:"style"`
	Width   float64       `json:"width"`
	Samples []geom.Sample `json:"-"`
}

// ApproachDot is one curve's value at the approach point.
type ApproachDot struct {
	Y     float64 `json:"y"`
	OK    bool    `json:"ok"`
	Color string  `json:"color"`
	Label string  `json:"label,omitempty"`
}

// ApproachData marks the x every curve is read at.
type ApproachData struct {
	X     float64       `json:"x"`
	Label string        `json:"label"`
	Dots  []ApproachDot `json:"dots"`
}

// AnnotationData is an evaluated annotation.
type AnnotationData struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
	Label string  `json:"label,omitempty"`
	Color string  `json:"color,omitempty"`
}

// BifurcationScene is Engine B's derived state for one parameter value.
type BifurcationScene struct {
	P           float64          `json:"p"`
	Curves      []CurveData      `json:"curves"`
	Approach    *ApproachData    `json:"approach,omitempty"`
	Annotations []AnnotationData `json:"annotations,omitempty"`
	Point       *geom.Point      `json:"point,omitempty"`
	Hole        *geom.Point      `json:"hole,omitempty"`
}

func (s *BifurcationScene) Value() float64 { return s.P }

func (s *BifurcationScene) Readouts() []Readout {
	out := []Readout{readout("p", "p", s.P, 2)}
	for _, a := range s.Annotations {
		if a.Type == lesson.AnnotationLimitValue {
			out = append(out, Readout{Key: "limit", Label: "limit", Value: zeroIfNaN(a.Value), Text: a.Label})
		}
	}
	return out
}

func zeroIfNaN(v float64) float64 {
	if finite(v) {
		return v
	}
	return 0
}

func newBifurcation(cfg *lesson.Config, deps Deps) (Engine, error) {
	t := cfg.InteractionType
	sys := cfg.System
	e := &bifurcation{
		cfg:        cfg,
		param:      cfg.Parameter.Range,
		view:       *sys.View,
		resolution: sys.Resolution,
		triggers:   cfg.Reflection.Triggers,
		latch:      NewLatch(cfg.Reflection.CardMode),
		cache:      deps.Cache,
	}
	if e.param.Name == "" {
		e.param.Name = "p"
	}

	add := func(field string, cs lesson.CurveSpec, color, style string, width float64) error {
		prog, err := deps.Cache.Compile(cs.Expr, "x", "p")
		if err != nil {
			return lesson.Wrap(t, field, err)
		}
		if cs.Color != "" {
			color = cs.Color
		}
		if cs.Style != "" {
			style = cs.Style
		}
		if cs.Width > 0 {
			width = cs.Width
		}
		e.curves = append(e.curves, bcurve{prog: prog, color: color, label: cs.Label, style: style, width: width})
		return nil
	}

	if len(sys.Curves) > 0 {
		for i, cs := range sys.Curves {
			if err := add(fieldIndex("systemSpec.curves", i), cs, defaultCurveColor, "solid", 2); err != nil {
				return nil, err
			}
		}
	} else {
		// reference curves sit behind the main curve
		for i, rc := range sys.RefCurves {
			style := "dashed"
			if rc.Dashed != nil && !*rc.Dashed {
				style = "solid"
			}
			rc.Width = 0
			if err := add(fieldIndex("systemSpec.refCurves", i), rc, defaultRefColor, style, 2); err != nil {
				return nil, err
			}
		}
		main := lesson.CurveSpec{Expr: sys.Model, Label: sys.MainLabel}
		if err := add("systemSpec.model", main, defaultCurveColor, "solid", 3); err != nil {
			return nil, err
		}
	}

	for i, a := range sys.Annotations {
		vars := []string{"x", "p"}
		if a.Type == lesson.AnnotationHorizontalLine {
			vars = []string{"p"}
		}
		prog, err := deps.Cache.Compile(a.Expr, vars...)
		if err != nil {
			return nil, lesson.Wrap(t, fieldIndex("systemSpec.annotations", i)+".expr", err)
		}
		e.annotations = append(e.annotations, bannotation{spec: a, prog: prog})
	}
	return e, nil
}

func (e *bifurcation) Spec() Spec             { return bifurcationSpec }
func (e *bifurcation) Lesson() *lesson.Config { return e.cfg }
func (e *bifurcation) Param() lesson.Range    { return e.param }

func (e *bifurcation) Recompute(p float64) Scene {
	v := e.view
	n := e.resolution
	dx := (v.XMax - v.XMin) / float64(n-1)
	s := &BifurcationScene{P: p, Curves: make([]CurveData, 0, len(e.curves))}

	for _, c := range e.curves {
		samples := make([]geom.Sample, n)
		for i := range samples {
			x := v.XMin + float64(i)*dx
			y, err := c.prog.Eval(x, p)
			if err != nil {
				samples[i] = geom.Sample{X: x, Y: 0}
				continue
			}
			samples[i] = geom.Sample{X: x, Y: y, OK: true}
		}
		s.Curves = append(s.Curves, CurveData{Label: c.label, Color: c.color, Style: c.style, Width: c.width, Samples: samples})
	}

	if ap := e.cfg.System.ApproachPoint; ap != nil {
		label := ap.Label
		if label == "" {
			label = "x → " + render.TickLabel(ap.X)
		}
		data := &ApproachData{X: ap.X, Label: label}
		for _, c := range e.curves {
			y, err := c.prog.Eval(ap.X, p)
			if err != nil {
				y = 0
			}
			data.Dots = append(data.Dots, ApproachDot{Y: y, OK: err == nil, Color: c.color, Label: c.label})
		}
		s.Approach = data
	}

	for _, a := range e.annotations {
		d := AnnotationData{Type: a.spec.Type, Color: a.spec.Color}
		var err error
		switch a.spec.Type {
		case lesson.AnnotationLimitValue:
			d.Value, err = a.prog.Eval(a.spec.At, p)
			d.OK = err == nil
			shown := undefined
			if d.OK {
				shown = fixed(d.Value, 2)
			}
			d.Label = strings.ReplaceAll(a.spec.Label, "{value}", shown)
		case lesson.AnnotationHorizontalLine:
			d.Value, err = a.prog.Eval(p)
			d.OK = err == nil
			d.Label = a.spec.Label
		}
		if !d.OK {
			d.Value = 0
		}
		s.Annotations = append(s.Annotations, d)
	}

	if m := e.cfg.System.Point; m != nil {
		s.Point = &geom.Point{X: m.X, Y: p}
	}
	if m := e.cfg.System.Hole; m != nil && len(e.curves) > 0 {
		s.Hole = &geom.Point{X: m.X, Y: e.holeHeight(e.curves[len(e.curves)-1].prog, m.X, p)}
	}
	return s
}

// holeHeight evaluates at x, falling back to the mean of the two one-sided
// neighbours when x itself is a removable singularity.
func (e *bifurcation) holeHeight(prog *expr.Program, x, p float64) float64 {
	if y, err := prog.Eval(x, p); err == nil {
		return y
	}
	l, errL := prog.Eval(x-holeProbe, p)
	r, errR := prog.Eval(x+holeProbe, p)
	if errL != nil || errR != nil {
		return 0
	}
	return (l + r) / 2
}

// Reflect latches every trigger matching p. Call once per committed value.
func (e *bifurcation) Reflect(scene Scene) Reflection {
	p := scene.Value()
	state := State{"currentValue": p, "p": p, e.param.Name: p}
	var matched []lesson.Trigger
	for _, t := range e.triggers {
		if v, ok := state[t.Field]; ok && PredicateOf(t).Matches(v) {
			matched = append(matched, t)
		}
	}
	cards := e.latch.Observe(matched, func(t lesson.Trigger) string {
		return interpolate(t.Message, p, e.cache)
	})
	return Reflection{Cards: cards}
}

// NextFrame reveals cards added by the last Reflect.
func (e *bifurcation) NextFrame() bool { return e.latch.Reveal() }

// Cards is the current card list.
func (e *bifurcation) Cards() []Card { return e.latch.Cards() }

// Latch exposes the fired-trigger record.
func (e *bifurcation) Latch() *Latch { return e.latch }

func dashFor(style string) []float64 {
	switch style {
	case "dashed":
		return []float64{8, 6}
	case "dotted":
		return []float64{3, 3}
	}
	return nil
}

func (e *bifurcation) Paint(sf render.Surface, scene Scene) {
	s := scene.(*BifurcationScene)
	w, h := sf.Size()
	v := e.view
	vp := render.NewViewport(render.Bounds{XMin: v.XMin, XMax: v.XMax, YMin: v.YMin, YMax: v.YMax}, w, h, 0)

	sf.Clear(render.White)

	render.Layer(sf, "grid")
	xs := render.Ticks(v.XMin, v.XMax, 1)
	ys := render.Ticks(v.YMin, v.YMax, render.NiceStep(v.YMax-v.YMin, 10))
	render.Grid(sf, vp, xs, ys, colorBGrid, 0.5)

	render.Layer(sf, "axes")
	render.Axes(sf, vp, colorBAxis, 1)
	sf.SetColor(colorBTick)
	for _, x := range xs {
		if x != 0 {
			sf.Text(render.TickLabel(x), vp.MapX(x), vp.MapY(0)+10, render.AlignCenter)
		}
	}
	for _, y := range ys {
		if y != 0 {
			sf.Text(render.TickLabel(y), vp.MapX(0)-6, vp.MapY(y), render.AlignRight)
		}
	}

	render.Layer(sf, "annotations")
	for _, a := range s.Annotations {
		if a.Type != lesson.AnnotationHorizontalLine || !a.OK {
			continue
		}
		c := a.Color
		if c == "" {
			c = defaultRefColor
		}
		sf.SetColor(render.Hex(c))
		sf.SetLineWidth(1)
		sf.SetDash(4, 4)
		render.Line(sf, 0, vp.MapY(a.Value), w, vp.MapY(a.Value))
	}
	sf.SetDash()

	if s.Approach != nil {
		render.Layer(sf, "approach")
		ax := vp.MapX(s.Approach.X)
		sf.SetColor(colorApproach)
		sf.SetLineWidth(1.5)
		sf.SetDash(6, 4)
		render.Line(sf, ax, 0, ax, h)
		sf.SetDash()
		sf.SetColor(colorApproachT)
		sf.Text(s.Approach.Label, ax, h-12, render.AlignCenter)
	}

	render.Layer(sf, "curves")
	for _, c := range s.Curves {
		sf.SetColor(render.Hex(c.Color))
		sf.SetLineWidth(c.Width)
		sf.SetDash(dashFor(c.Style)...)
		pts := make([][2]float64, len(c.Samples))
		for i, p := range c.Samples {
			if !p.OK {
				pts[i] = [2]float64{math.NaN(), math.NaN()}
				continue
			}
			pts[i] = [2]float64{vp.MapX(p.X), vp.MapY(p.Y)}
		}
		render.Path(sf, pts)
	}
	sf.SetDash()

	if s.Approach != nil {
		render.Layer(sf, "approach-dots")
		ring := render.White
		for _, d := range s.Approach.Dots {
			if !d.OK {
				continue
			}
			dy := vp.MapY(d.Y)
			if dy < -10 || dy > h+10 {
				continue
			}
			render.Dot(sf, vp.MapX(s.Approach.X), dy, 5, render.Hex(d.Color), &ring, 2)
		}
	}

	render.Layer(sf, "markers")
	if s.Hole != nil {
		mx, my := vp.MapX(s.Hole.X), vp.MapY(s.Hole.Y)
		sf.SetColor(render.White)
		sf.Circle(mx, my, 7)
		sf.Fill()
		sf.SetColor(render.Hex(defaultCurveColor))
		sf.SetLineWidth(2.5)
		sf.Circle(mx, my, 7)
		sf.Stroke()
	}
	if s.Point != nil {
		ring := render.White
		render.Dot(sf, vp.MapX(s.Point.X), vp.MapY(s.Point.Y), 6, colorPoint, &ring, 2)
	}

	e.paintLegend(sf, s, w)
	e.paintLimits(sf, s)
}

func (e *bifurcation) paintLegend(sf render.Surface, s *BifurcationScene, w float64) {
	var labeled []CurveData
	for _, c := range s.Curves {
		if c.Label != "" {
			labeled = append(labeled, c)
		}
	}
	if len(labeled) == 0 {
		return
	}
	render.Layer(sf, "legend")
	const row, boxW = 18.0, 140.0
	x, y := w-boxW-10, 10.0
	sf.SetColor(render.White.WithAlpha(0.92))
	sf.Rect(x, y, boxW, row*float64(len(labeled))+8)
	sf.Fill()
	sf.SetColor(colorPanelLine)
	sf.SetLineWidth(1)
	sf.Rect(x, y, boxW, row*float64(len(labeled))+8)
	sf.Stroke()
	for i, c := range labeled {
		ey := y + 4 + row*(float64(i)+0.5)
		sf.SetColor(render.Hex(c.Color))
		sf.SetLineWidth(math.Min(c.Width, 3))
		sf.SetDash(dashFor(c.Style)...)
		render.Line(sf, x+8, ey, x+30, ey)
		sf.SetDash()
		sf.SetColor(colorPanelText)
		sf.Text(c.Label, x+38, ey, render.AlignLeft)
	}
}

func (e *bifurcation) paintLimits(sf render.Surface, s *BifurcationScene) {
	var rows []AnnotationData
	for _, a := range s.Annotations {
		if a.Type == lesson.AnnotationLimitValue && a.Label != "" {
			rows = append(rows, a)
		}
	}
	if len(rows) == 0 {
		return
	}
	render.Layer(sf, "limits")
	const row, boxW = 18.0, 160.0
	x, y := 10.0, 10.0
	sf.SetColor(render.White.WithAlpha(0.95))
	sf.Rect(x, y, boxW, row*float64(len(rows))+8)
	sf.Fill()
	for i, a := range rows {
		ey := y + 4 + row*(float64(i)+0.5)
		c := a.Color
		if c == "" {
			c = defaultCurveColor
		}
		render.Dot(sf, x+12, ey, 4, render.Hex(c), nil, 0)
		sf.SetColor(colorPanelText)
		sf.Text(a.Label, x+22, ey, render.AlignLeft)
	}
}
