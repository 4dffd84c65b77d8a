package interactions

import (
	"math"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/geom"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

var motionSpec = Spec{
	Type:        lesson.TypeMotion,
	Name:        "Parametric motion",
	StateName:   "t",
	Description: "Euler replay of a velocity field with play, pause and scrub",
}

// vyDeadZone separates rising and falling trace segments from level ones.
const vyDeadZone = 1e-3

var (
	colorRising   = render.Hex("#16a34a")
	colorFalling  = render.Hex("#dc2626")
	colorNeutral  = render.Hex("#1e40af")
	colorPreview  = render.Hex("#fb923c")
	colorMGrid    = render.Hex("#e5e7eb")
	colorTangentC = render.Hex("#7c3aed")
	colorGuide    = render.Hex("#94a3b8")
)

// TracePoint is the position after one Euler step taken at time T with
// velocity (VX, VY).
type TracePoint struct {
	T  float64 `json:"t"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

type motion struct {
	cfg      *lesson.Config
	rule     *expr.Program
	ts       lesson.TimeSpec
	init     geom.Point
	view     lesson.ViewBox
	full     []TracePoint
	triggers []lesson.Trigger
}

// MotionScene is Engine C's derived state at time T.
type MotionScene struct {
	T        float64      `json:"t"`
	Position geom.Point   `json:"position"`
	Velocity geom.Point   `json:"velocity"`
	Trace    []TracePoint `json:"-"`
	Preview  []TracePoint `json:"-"`
}

func (s *MotionScene) Value() float64 { return s.T }

func (s *MotionScene) Readouts() []Readout {
	return []Readout{
		readout("t", "t", s.T, 2),
		readout("x", "x", s.Position.X, 3),
		readout("y", "y", s.Position.Y, 3),
		readout("vx", "vx", s.Velocity.X, 3),
		readout("vy", "vy", s.Velocity.Y, 3),
	}
}

func newMotion(cfg *lesson.Config, deps Deps) (Engine, error) {
	t := cfg.InteractionType
	rule, err := deps.Cache.Compile(cfg.System.EvolutionRule.Expression, "t", "x", "y")
	if err != nil {
		return nil, lesson.Wrap(t, "systemSpec.evolutionRule.expression", err)
	}
	if rule.Dim() != 2 {
		return nil, lesson.Errorf(t, "systemSpec.evolutionRule.expression", lesson.ErrInvalid, "velocity must have 2 components, got %d", rule.Dim())
	}
	var start geom.Point
	if is := cfg.System.InitialState; is != nil {
		start = geom.Point{X: is.X, Y: is.Y}
	}
	e := &motion{
		cfg:      cfg,
		rule:     rule,
		ts:       *cfg.Parameter.Time,
		init:     start,
		view:     *cfg.Representation.ViewBox,
		triggers: sortDescending(cfg.Reflection.Triggers),
	}
	e.full = Replay(rule, e.ts, e.init, e.ts.End)
	return e, nil
}

// tolerance for tau <= t when t lands on a step boundary
func stepEps(t float64) float64 { return 1e-12 * math.Max(1, math.Abs(t)) }

// Replay integrates from scratch with one Euler step per
// tau = start + i·step <= t. A failed velocity evaluation counts as zero.
func Replay(rule *expr.Program, ts lesson.TimeSpec, init geom.Point, t float64) []TracePoint {
	var trace []TracePoint
	x, y := init.X, init.Y
	for i := 0; ; i++ {
		tau := ts.Start + float64(i)*ts.Step
		if tau > t+stepEps(t) {
			break
		}
		vx, vy := velocity(rule, tau, x, y)
		x += vx * ts.Step
		y += vy * ts.Step
		trace = append(trace, TracePoint{T: tau, X: x, Y: y, VX: vx, VY: vy})
	}
	return trace
}

func velocity(rule *expr.Program, t, x, y float64) (float64, float64) {
	v, err := rule.EvalVec(t, x, y)
	if err != nil || len(v) != 2 || !finite(v[0]) || !finite(v[1]) {
		return 0, 0
	}
	return v[0], v[1]
}

func (e *motion) Spec() Spec             { return motionSpec }
func (e *motion) Lesson() *lesson.Config { return e.cfg }

func (e *motion) Param() lesson.Range {
	return lesson.Range{Name: "t", Label: "t", Min: e.ts.Start, Max: e.ts.End, Step: e.ts.Step}
}

// Time is the lesson's time domain.
func (e *motion) Time() lesson.TimeSpec { return e.ts }

// Preview is the full trace over [start, end], computed once per mount.
func (e *motion) Preview() []TracePoint { return e.full }

// Recompute slices the preview; the result equals Replay at t.
func (e *motion) Recompute(t float64) Scene {
	n := 0
	for n < len(e.full) && e.full[n].T <= t+stepEps(t) {
		n++
	}
	s := &MotionScene{T: t, Position: e.init, Trace: e.full[:n:n], Preview: e.full}
	if n > 0 {
		last := e.full[n-1]
		s.Position = geom.Point{X: last.X, Y: last.Y}
	}
	vx, vy := velocity(e.rule, t, s.Position.X, s.Position.Y)
	s.Velocity = geom.Point{X: vx, Y: vy}
	return s
}

func (e *motion) Reflect(scene Scene) Reflection {
	return Reflection{Message: furthestReached(e.triggers, scene.Value())}
}

func traceColor(vy float64) render.Color {
	switch {
	case vy > vyDeadZone:
		return colorRising
	case vy < -vyDeadZone:
		return colorFalling
	}
	return colorNeutral
}

func (e *motion) Paint(sf render.Surface, scene Scene) {
	s := scene.(*MotionScene)
	w, h := sf.Size()
	v := e.view
	vp := render.NewViewport(render.Bounds{XMin: v.XMin, XMax: v.XMax, YMin: v.YMin, YMax: v.YMax}, w, h, 10)

	sf.Clear(render.White)

	render.Layer(sf, "grid")
	render.Grid(sf, vp,
		render.Ticks(v.XMin, v.XMax, render.NiceStep(v.XMax-v.XMin, 8)),
		render.Ticks(v.YMin, v.YMax, render.NiceStep(v.YMax-v.YMin, 8)),
		colorMGrid, 1)

	render.Layer(sf, "axes")
	aw := math.Max(3, math.Min(5, math.Round(w/120)))
	sf.SetColor(render.Black)
	sf.SetLineWidth(aw)
	sf.SetDash()
	render.Arrow(sf, 0, vp.MapY(0), w, vp.MapY(0), 4*aw)
	render.Arrow(sf, vp.MapX(0), h, vp.MapX(0), 0, 4*aw)

	render.Layer(sf, "preview")
	sf.SetColor(colorPreview.WithAlpha(0.6))
	sf.SetLineWidth(1.5)
	sf.SetDash(4, 4)
	prev := make([][2]float64, 0, len(s.Preview)+1)
	prev = append(prev, [2]float64{vp.MapX(e.init.X), vp.MapY(e.init.Y)})
	for _, p := range s.Preview {
		prev = append(prev, [2]float64{vp.MapX(p.X), vp.MapY(p.Y)})
	}
	render.Path(sf, prev)
	sf.SetDash()

	render.Layer(sf, "trace")
	sf.SetLineWidth(4.5)
	from := e.init
	var run [][2]float64
	var runColor render.Color
	flush := func() {
		if len(run) > 1 {
			sf.SetColor(runColor)
			render.Path(sf, run)
		}
		run = run[:0]
	}
	for _, p := range s.Trace {
		c := traceColor(p.VY)
		if len(run) > 0 && c != runColor {
			flush()
		}
		if len(run) == 0 {
			runColor = c
			run = append(run, [2]float64{vp.MapX(from.X), vp.MapY(from.Y)})
		}
		run = append(run, [2]float64{vp.MapX(p.X), vp.MapY(p.Y)})
		from = geom.Point{X: p.X, Y: p.Y}
	}
	flush()

	px, py := vp.MapX(s.Position.X), vp.MapY(s.Position.Y)

	render.Layer(sf, "guides")
	sf.SetColor(colorGuide)
	sf.SetLineWidth(1)
	sf.SetDash(4, 4)
	render.Line(sf, px, py, px, vp.MapY(0))
	render.Line(sf, px, py, vp.MapX(0), py)
	sf.SetDash()

	render.Layer(sf, "tangent")
	if speed := math.Hypot(s.Velocity.X, s.Velocity.Y); speed > 0 {
		const arrowLen = 40.0
		// screen y grows downward
		dx, dy := s.Velocity.X/speed*arrowLen, -s.Velocity.Y/speed*arrowLen
		sf.SetColor(colorTangentC)
		sf.SetLineWidth(2)
		render.Arrow(sf, px, py, px+dx, py+dy, 8)
	}

	render.Layer(sf, "point")
	ring := render.White
	render.Dot(sf, px, py, 6, colorNeutral, &ring, 2)
}
