package interactions

import (
	"math"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/geom"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

var derivativeSpec = Spec{
	Type:        lesson.TypeDerivative,
	Name:        "Derivative approximation",
	StateName:   "resolution",
	Description: "Secant through a±h converging to the tangent as resolution grows",
}

// graphSamples is the fixed sample count of the function graph.
const graphSamples = 300

var (
	colorCurve   = render.Hex("#374151")
	colorSecant  = render.Hex("#3b82f6")
	colorTangent = render.Hex("#ef4444")
	colorAnchor  = render.Hex("#10b981")
	colorGrid    = render.Hex("#e5e7eb")
	colorAxis    = render.Hex("#9ca3af")
)

type derivative struct {
	cfg      *lesson.Config
	f, df    *expr.Program
	param    lesson.Range
	levels   []float64
	stepped  bool
	domain   lesson.Interval
	yRange   lesson.Interval
	anchor   float64
	graph    []geom.Sample
	triggers []lesson.Trigger
}

// DerivativeScene is Engine A's derived state for one resolution.
type DerivativeScene struct {
	Resolution  float64       `json:"resolution"`
	H           float64       `json:"h"`
	Anchor      geom.Point    `json:"anchor"`
	Left        geom.Point    `json:"left"`
	Right       geom.Point    `json:"right"`
	ApproxSlope float64       `json:"approxSlope"`
	TrueSlope   float64       `json:"trueSlope"`
	Error       float64       `json:"error"`
	Graph       []geom.Sample `json:"-"`
}

func (s *DerivativeScene) Value() float64 { return s.Resolution }

func (s *DerivativeScene) Readouts() []Readout {
	return []Readout{
		readout("resolution", "Resolution", s.Resolution, 0),
		readout("h", "h", s.H, 4),
		readout("approxSlope", "Secant slope", s.ApproxSlope, 4),
		readout("trueSlope", "Tangent slope", s.TrueSlope, 4),
		readout("error", "Error", s.Error, 6),
	}
}

func newDerivative(cfg *lesson.Config, deps Deps) (Engine, error) {
	t := cfg.InteractionType
	f, err := deps.Cache.Compile(cfg.System.Function, "x")
	if err != nil {
		return nil, lesson.Wrap(t, "systemSpec.function", err)
	}
	df, err := deps.Cache.Compile(cfg.System.Derivative, "x")
	if err != nil {
		return nil, lesson.Wrap(t, "systemSpec.derivative", err)
	}
	if f.IsVector() || df.IsVector() {
		return nil, lesson.Errorf(t, "systemSpec.function", lesson.ErrInvalid, "scalar expressions required")
	}
	e := &derivative{
		cfg:      cfg,
		f:        f,
		df:       df,
		param:    lesson.DerivativeRange(cfg),
		levels:   cfg.Parameter.ResolutionLevels,
		stepped:  cfg.Parameter.Stepped,
		domain:   *cfg.System.Domain,
		yRange:   *cfg.System.Range,
		anchor:   cfg.System.Anchor,
		triggers: cfg.Reflection.Triggers,
	}
	// the graph does not depend on resolution
	e.graph = geom.SampleCurve(geom.Curve{Src: f.Source(), F: f.Func1()}, e.domain.A(), e.domain.B(), graphSamples, 0)
	return e, nil
}

func (e *derivative) Spec() Spec             { return derivativeSpec }
func (e *derivative) Lesson() *lesson.Config { return e.cfg }
func (e *derivative) Param() lesson.Range    { return e.param }

// Snap moves v to the nearest resolution level when the lesson is stepped.
func (e *derivative) Snap(v float64) float64 {
	if !e.stepped || len(e.levels) == 0 {
		return v
	}
	best := e.levels[0]
	for _, l := range e.levels[1:] {
		if math.Abs(l-v) < math.Abs(best-v) {
			best = l
		}
	}
	return best
}

func (e *derivative) Recompute(res float64) Scene {
	h := e.domain.Width() / res
	a := e.anchor
	y0 := e.f.Or(math.NaN(), a)
	yl := e.f.Or(math.NaN(), a-h)
	yr := e.f.Or(math.NaN(), a+h)
	approx := (yr - yl) / (2 * h)
	exact := e.df.Or(math.NaN(), a)
	return &DerivativeScene{
		Resolution:  res,
		H:           h,
		Anchor:      geom.Point{X: a, Y: y0},
		Left:        geom.Point{X: a - h, Y: yl},
		Right:       geom.Point{X: a + h, Y: yr},
		ApproxSlope: approx,
		TrueSlope:   exact,
		Error:       math.Abs(approx - exact),
		Graph:       e.graph,
	}
}

func (e *derivative) Reflect(scene Scene) Reflection {
	s := scene.(*DerivativeScene)
	i := firstMatch(e.triggers, State{"resolution": s.Resolution, "error": s.Error, "h": s.H})
	if i < 0 {
		return Reflection{}
	}
	return Reflection{Message: e.triggers[i].Message}
}

func (e *derivative) Paint(sf render.Surface, scene Scene) {
	s := scene.(*DerivativeScene)
	w, h := sf.Size()
	vp := render.NewViewport(render.Bounds{
		XMin: e.domain.A(), XMax: e.domain.B(),
		YMin: e.yRange.A(), YMax: e.yRange.B(),
	}, w, h, 0)

	sf.Clear(render.White)

	render.Layer(sf, "grid")
	render.Grid(sf, vp,
		render.Ticks(vp.XMin, vp.XMax, render.NiceStep(vp.XMax-vp.XMin, 8)),
		render.Ticks(vp.YMin, vp.YMax, render.NiceStep(vp.YMax-vp.YMin, 8)),
		colorGrid, 1)

	render.Layer(sf, "axes")
	render.Axes(sf, vp, colorAxis, 1.5)

	render.Layer(sf, "curve")
	pts := make([][2]float64, len(s.Graph))
	for i, p := range s.Graph {
		if !p.OK {
			pts[i] = [2]float64{math.NaN(), math.NaN()}
			continue
		}
		pts[i] = [2]float64{vp.MapX(p.X), vp.MapY(p.Y)}
	}
	sf.SetColor(colorCurve)
	sf.SetLineWidth(2.5)
	sf.SetDash()
	render.Path(sf, pts)

	render.Layer(sf, "secant")
	if finite(s.ApproxSlope) && finite(s.Left.Y) {
		x0, x1 := e.domain.A(), e.domain.B()
		sf.SetColor(colorSecant)
		sf.SetLineWidth(2)
		render.Line(sf,
			vp.MapX(x0), vp.MapY(s.Left.Y+s.ApproxSlope*(x0-s.Left.X)),
			vp.MapX(x1), vp.MapY(s.Left.Y+s.ApproxSlope*(x1-s.Left.X)))
		for _, p := range []geom.Point{s.Left, s.Right} {
			render.Dot(sf, vp.MapX(p.X), vp.MapY(p.Y), 4, colorSecant, nil, 0)
		}
	}

	render.Layer(sf, "tangent")
	if finite(s.TrueSlope) && finite(s.Anchor.Y) {
		x0, x1 := e.domain.A(), e.domain.B()
		sf.SetColor(colorTangent)
		sf.SetLineWidth(1.5)
		sf.SetDash(6, 4)
		render.Line(sf,
			vp.MapX(x0), vp.MapY(s.Anchor.Y+s.TrueSlope*(x0-s.Anchor.X)),
			vp.MapX(x1), vp.MapY(s.Anchor.Y+s.TrueSlope*(x1-s.Anchor.X)))
		sf.SetDash()
	}

	render.Layer(sf, "anchor")
	if finite(s.Anchor.Y) {
		ring := render.White
		render.Dot(sf, vp.MapX(s.Anchor.X), vp.MapY(s.Anchor.Y), 6, colorAnchor, &ring, 2)
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
