package interactions

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/geom"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

func mustMount(t *testing.T, cfg *lesson.Config) Engine {
	t.Helper()
	e, err := MountLesson(cfg, Deps{})
	if err != nil {
		t.Fatalf("mount %s failed: %v", cfg.Slug, err)
	}
	return e
}

func TestMountUnknownType(t *testing.T) {
	_, err := Mount("Z", nil, Deps{})
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
	if !errors.Is(err, lesson.ErrUnknownType) {
		t.Errorf("error %v should wrap ErrUnknownType", err)
	}
	if err.Error() != "Unknown interaction type: Z" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestMountDefaultsForEveryTag(t *testing.T) {
	for _, tag := range lesson.Types() {
		e, err := Mount(tag, nil, Deps{})
		if err != nil {
			t.Errorf("Mount(%s, nil) failed: %v", tag, err)
			continue
		}
		if e.Spec().Type != tag {
			t.Errorf("Mount(%s) built a %s engine", tag, e.Spec().Type)
		}
	}
	if len(Specs()) != 4 {
		t.Errorf("Specs() = %d entries, want 4", len(Specs()))
	}
}

func TestMountAllShippedLessons(t *testing.T) {
	cache := expr.NewCache()
	for slug, cfg := range lesson.Shipped() {
		e, err := MountLesson(cfg, Deps{Cache: cache})
		if err != nil {
			t.Errorf("%s: %v", slug, err)
			continue
		}
		p := e.Param()
		sc := e.Recompute(p.Start())
		if len(sc.Readouts()) == 0 {
			t.Errorf("%s: no readouts", slug)
		}
		rec := render.NewRecorder(400, 300)
		e.Paint(rec, sc)
		if len(rec.Ops) == 0 {
			t.Errorf("%s: painted nothing", slug)
		}
	}
}

func TestMountLeavesCallerLessonUntouched(t *testing.T) {
	cfg := lesson.DefaultDerivative()
	e := mustMount(t, cfg)
	if cfg.Reflection.Triggers[0].Condition == "" {
		t.Error("mount normalized the caller's lesson")
	}
	if e.Lesson() == cfg {
		t.Error("engine should hold a private copy")
	}
}

func TestMountReportsBadExpressions(t *testing.T) {
	cfg := lesson.DefaultDerivative()
	cfg.System.Function = "eval(x)"
	_, err := MountLesson(cfg, Deps{})
	var ce *lesson.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if ce.Field != "systemSpec.function" || !errors.Is(err, expr.ErrUnknownFunction) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestDerivativeDragToMiddle(t *testing.T) {
	e := mustMount(t, lesson.DefaultDerivative())
	res := e.Param().Lerp(render.Ratio(200, 400))
	if res != 33 {
		t.Fatalf("resolution = %v, want 33", res)
	}
	s := e.Recompute(res).(*DerivativeScene)
	if s.TrueSlope != 2 {
		t.Errorf("trueSlope = %v, want exactly 2", s.TrueSlope)
	}
	if math.Abs(s.H-6.0/33) > 1e-15 {
		t.Errorf("h = %v", s.H)
	}
	if s.Error > 1e-9 {
		t.Errorf("symmetric difference of x² should be exact, error = %v", s.Error)
	}
}

func TestDerivativeErrorShrinks(t *testing.T) {
	e := mustMount(t, lesson.DerivativeSine())
	prev := math.Inf(1)
	for _, res := range []float64{2, 4, 8, 16, 32, 64} {
		s := e.Recompute(res).(*DerivativeScene)
		if !(s.Error < prev) {
			t.Errorf("error at %v = %v, not below %v", res, s.Error, prev)
		}
		prev = s.Error
	}
	if prev > 1e-2 {
		t.Errorf("error at max resolution = %v", prev)
	}
}

func TestDerivativeReflectionCeiling(t *testing.T) {
	e := mustMount(t, lesson.DefaultDerivative())
	if r := e.Reflect(e.Recompute(48)); r.Message != "" {
		t.Errorf("message below ceiling = %q", r.Message)
	}
	if r := e.Reflect(e.Recompute(50)); r.Message == "" {
		t.Error("expected a message at the ceiling")
	}
}

func TestDerivativeStepped(t *testing.T) {
	cfg := lesson.DefaultDerivative()
	cfg.Parameter.Stepped = true
	e := mustMount(t, cfg)
	sn, ok := e.(interface{ Snap(float64) float64 })
	if !ok {
		t.Fatal("derivative engine should snap")
	}
	if got := sn.Snap(33); got != 32 && got != 34 {
		t.Errorf("Snap(33) = %v", got)
	}
	if got := sn.Snap(40.9); got != 40 {
		t.Errorf("Snap(40.9) = %v, want 40", got)
	}
}

func TestDerivativePaintOrder(t *testing.T) {
	e := mustMount(t, lesson.DefaultDerivative())
	rec := render.NewRecorder(600, 400)
	e.Paint(rec, e.Recompute(10))
	want := []string{"grid", "axes", "curve", "secant", "tangent", "anchor"}
	if got := rec.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("paint order = %v, want %v", got, want)
	}
	tan := rec.Tagged("tangent")
	if len(tan) == 0 || tan[0].Color != render.Hex("#ef4444") || !reflect.DeepEqual(tan[0].Dash, []float64{6, 4}) {
		t.Errorf("tangent op = %+v", tan)
	}
}

func TestBifurcationSampling(t *testing.T) {
	e := mustMount(t, lesson.DefaultBifurcation())
	s := e.Recompute(2).(*BifurcationScene)
	if len(s.Curves) != 1 || len(s.Curves[0].Samples) != 200 {
		t.Fatalf("unexpected curves %+v", len(s.Curves))
	}
	first, last := s.Curves[0].Samples[0], s.Curves[0].Samples[199]
	if first.X != -4 || math.Abs(last.X-4) > 1e-12 {
		t.Errorf("grid spans [%v, %v], want [-4, 4]", first.X, last.X)
	}
	// x⁴ − 2x² at x = −4
	if first.Y != 256-32 {
		t.Errorf("f(-4, 2) = %v", first.Y)
	}
}

func TestBifurcationFailedSamplesAreNeutral(t *testing.T) {
	e := mustMount(t, lesson.BifurcationLimit())
	s := e.Recompute(1).(*BifurcationScene)
	var holes int
	for _, p := range s.Curves[0].Samples {
		if !p.OK {
			holes++
			if p.Y != 0 {
				t.Errorf("failed sample y = %v, want 0", p.Y)
			}
		}
	}
	if holes != 1 {
		t.Errorf("expected one undefined sample at x = 1, got %d", holes)
	}
	if s.Hole == nil || math.Abs(s.Hole.Y-2) > 1e-9 {
		t.Errorf("hole = %+v, want (1, 2)", s.Hole)
	}
	if len(s.Annotations) != 2 || s.Annotations[0].Label != "lim f = 2.00" {
		t.Errorf("annotations = %+v", s.Annotations)
	}
}

func TestBifurcationHoleFallsBackToNeighbours(t *testing.T) {
	cfg := lesson.BifurcationLimit()
	cfg.System.Curves = cfg.System.Curves[:1]
	e := mustMount(t, cfg)
	s := e.Recompute(1).(*BifurcationScene)
	if s.Hole == nil || math.Abs(s.Hole.Y-2) > 1e-5 {
		t.Errorf("hole = %+v, want height 2", s.Hole)
	}
}

func TestBifurcationLatchSingle(t *testing.T) {
	e := mustMount(t, lesson.DefaultBifurcation())
	b := e.(*bifurcation)

	r := e.Reflect(e.Recompute(5))
	if len(r.Cards) != 1 || r.Cards[0].ID != "double-well" || r.Cards[0].Visible {
		t.Fatalf("cards after mount = %+v", r.Cards)
	}
	if !b.NextFrame() {
		t.Error("NextFrame should reveal the new card")
	}
	if c := b.Cards(); !c[0].Visible {
		t.Error("card should be visible after the next frame")
	}
	if b.NextFrame() {
		t.Error("second NextFrame should be a no-op")
	}

	r = e.Reflect(e.Recompute(-1))
	if len(r.Cards) != 1 || r.Cards[0].ID != "single-well" {
		t.Fatalf("cards after -1 = %+v", r.Cards)
	}
	r = e.Reflect(e.Recompute(5))
	if r.Cards[0].ID != "single-well" {
		t.Errorf("double-well fired twice: %+v", r.Cards)
	}
	if got := b.Latch().History(); !reflect.DeepEqual(got, []string{"double-well", "single-well"}) {
		t.Errorf("history = %v", got)
	}
}

func TestBifurcationLatchStack(t *testing.T) {
	e := mustMount(t, lesson.BifurcationLimit())
	e.Reflect(e.Recompute(0.2))
	r := e.Reflect(e.Recompute(2.7))
	if len(r.Cards) != 2 || r.Cards[0].ID != "high" || r.Cards[1].ID != "low" {
		t.Fatalf("stacked cards = %+v", r.Cards)
	}
	if r.Cards[1].Text != "At p = 0.20 the limit is 1.20." {
		t.Errorf("interpolated text = %q", r.Cards[1].Text)
	}
	if !strings.Contains(r.Cards[0].Text, "3.70") {
		t.Errorf("eval interpolation = %q", r.Cards[0].Text)
	}
}

func TestInterpolateUndefined(t *testing.T) {
	got := interpolate("v={eval:1/(p-1)} at {p}", 1, expr.NewCache())
	if got != "v=∄ at 1.00" {
		t.Errorf("interpolate = %q", got)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		p    Predicate
		v    float64
		want bool
	}{
		{Predicate{Op: lesson.OpGe, Value: 50}, 50, true},
		{Predicate{Op: lesson.OpGt, Value: 50}, 50, false},
		{Predicate{Op: lesson.OpEq, Value: 1, Tolerance: 0.1}, 1.05, true},
		{Predicate{Op: lesson.OpInside, Value: 0, Upper: 1}, 0, false},
		{Predicate{Op: lesson.OpBetween, Value: 0, Upper: 1}, 0, true},
		{Predicate{Op: lesson.OpOutside, Value: 0, Upper: 1}, 2, true},
		{Predicate{Op: lesson.OpLt, Value: 0}, math.NaN(), false},
	}
	for _, tt := range tests {
		if got := tt.p.Matches(tt.v); got != tt.want {
			t.Errorf("%+v.Matches(%v) = %v, want %v", tt.p, tt.v, got, tt.want)
		}
	}
}

func TestMotionTraceEqualsReplay(t *testing.T) {
	for _, cfg := range []*lesson.Config{lesson.DefaultMotion(), lesson.MotionSpiral()} {
		e := mustMount(t, cfg)
		m := e.(*motion)
		for _, tt := range []float64{0, 0.5, 1.37, 3, m.ts.End} {
			s := e.Recompute(tt).(*MotionScene)
			want := Replay(m.rule, m.ts, m.init, tt)
			if len(s.Trace) != len(want) {
				t.Fatalf("%s t=%v: trace len %d, replay len %d", cfg.Slug, tt, len(s.Trace), len(want))
			}
			for i := range want {
				if s.Trace[i] != want[i] {
					t.Fatalf("%s t=%v: point %d differs: %+v vs %+v", cfg.Slug, tt, i, s.Trace[i], want[i])
				}
			}
		}
	}
}

func TestMotionCircleCloses(t *testing.T) {
	e := mustMount(t, lesson.DefaultMotion())
	m := e.(*motion)
	s := e.Recompute(m.ts.End).(*MotionScene)
	if d := math.Hypot(s.Position.X, s.Position.Y+1); d > 0.05 {
		t.Errorf("position after one period = %+v, distance %v from start", s.Position, d)
	}
	if n := len(m.Preview()); n != 315 {
		t.Errorf("preview has %d points, want 315", n)
	}
	if s0 := e.Recompute(0).(*MotionScene); len(s0.Trace) != 1 {
		t.Errorf("trace at start has %d points, want 1", len(s0.Trace))
	}
}

func TestMotionFurthestReached(t *testing.T) {
	e := mustMount(t, lesson.DefaultMotion())
	if r := e.Reflect(e.Recompute(1)); r.Message != "" {
		t.Errorf("early message = %q", r.Message)
	}
	if r := e.Reflect(e.Recompute(4)); !strings.HasPrefix(r.Message, "Half a cycle") {
		t.Errorf("message at t=4 = %q", r.Message)
	}
	if r := e.Reflect(e.Recompute(2 * math.Pi)); !strings.HasPrefix(r.Message, "The motion has completed") {
		t.Errorf("message at end = %q", r.Message)
	}
}

func TestMotionValidation(t *testing.T) {
	cfg := lesson.DefaultMotion()
	cfg.Parameter.Time.Step = 0
	if _, err := MountLesson(cfg, Deps{}); !errors.Is(err, lesson.ErrInvalidTimeRange) {
		t.Errorf("step 0: got %v", err)
	}
	cfg = lesson.DefaultMotion()
	cfg.System.EvolutionRule.Expression = "[1, 2, 3]"
	if _, err := MountLesson(cfg, Deps{}); !errors.Is(err, lesson.ErrInvalid) {
		t.Errorf("3-vector: got %v", err)
	}
}

func TestMotionTraceColors(t *testing.T) {
	if traceColor(0.5) != render.Hex("#16a34a") || traceColor(-0.5) != render.Hex("#dc2626") || traceColor(1e-4) != render.Hex("#1e40af") {
		t.Error("unexpected trace colours")
	}
	e := mustMount(t, lesson.DefaultMotion())
	rec := render.NewRecorder(400, 400)
	e.Paint(rec, e.Recompute(4))
	want := []string{"grid", "axes", "preview", "trace", "guides", "tangent", "point"}
	if got := rec.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("paint order = %v, want %v", got, want)
	}
	colors := make(map[render.Color]bool)
	for _, op := range rec.Tagged("trace") {
		colors[op.Color] = true
	}
	if !colors[colorRising] || !colors[colorFalling] {
		t.Errorf("trace up to t=4 should have rising and falling runs, got %v", colors)
	}
}

func TestSplitInvariantHolds(t *testing.T) {
	for _, cfg := range []*lesson.Config{lesson.DefaultSplit(), lesson.SplitSignLesson(), lesson.SplitProductRule()} {
		e := mustMount(t, cfg)
		for _, s := range []float64{0, 0.01, 0.25, 0.5, 0.75, 0.99, 1} {
			sc := e.Recompute(s).(*SplitScene)
			if !sc.InvariantHolds() {
				t.Errorf("%s at %v: sum %v, total %v", cfg.Slug, s, sc.Sum, sc.Total)
			}
		}
	}
}

func TestSplitDomainEdges(t *testing.T) {
	e := mustMount(t, lesson.DefaultSplit())
	s := e.Recompute(0).(*SplitScene)
	if s.Parts[0].Measure != 0 {
		t.Errorf("left part at s=0 = %v, want 0", s.Parts[0].Measure)
	}
	if s.SplitX == nil || *s.SplitX != 0 {
		t.Errorf("split x = %v", s.SplitX)
	}
	s = e.Recompute(1).(*SplitScene)
	if s.Parts[1].Measure != 0 {
		t.Errorf("right part at s=1 = %v, want 0", s.Parts[1].Measure)
	}
	if r := e.Reflect(e.Recompute(0.52)); !strings.Contains(r.Message, "bằng nhau") {
		t.Errorf("near-half message = %q", r.Message)
	}
}

func TestSplitSignPartition(t *testing.T) {
	e := mustMount(t, lesson.SplitSignLesson())
	s := e.Recompute(0.25).(*SplitScene)
	if len(s.Parts) != 2 {
		t.Fatalf("sin over one period should split in two, got %d parts", len(s.Parts))
	}
	if math.Abs(s.Parts[0].B-math.Pi) > 1e-6 {
		t.Errorf("first root at %v, want π", s.Parts[0].B)
	}
	if s.Active != 0 || e.Reflect(s).Message != MessagePositive {
		t.Errorf("s=0.25: active %d", s.Active)
	}
	s = e.Recompute(1).(*SplitScene)
	if s.Active != 1 || e.Reflect(s).Message != MessageNegative {
		t.Errorf("s=1: active %d, message %q", s.Active, e.Reflect(s).Message)
	}
	ro := s.Readouts()
	if ro[0].Text != "2.000" || ro[1].Text != "2.000" {
		t.Errorf("signed areas = %q / %q", ro[0].Text, ro[1].Text)
	}
}

func TestSplitRectangleContribution(t *testing.T) {
	e := mustMount(t, lesson.SplitProductRule())
	s := e.Recompute(0.5).(*SplitScene)
	r0, _ := s.Parts[0].Shape.(geom.Rectangle)
	r1, _ := s.Parts[1].Shape.(geom.Rectangle)
	if r0.Contribution != geom.UDV || r0.Y != 2 || r0.Width != 3 {
		t.Errorf("u·dv strip = %+v", r0)
	}
	if r1.Contribution != geom.VDU || r1.X != 3 || r1.Height != 2 {
		t.Errorf("v·du strip = %+v", r1)
	}
	if math.Abs(s.Total-2.2) > 1e-12 {
		t.Errorf("total = %v", s.Total)
	}
}

func TestSplitPaint(t *testing.T) {
	e := mustMount(t, lesson.DefaultSplit())
	rec := render.NewRecorder(500, 280)
	e.Paint(rec, e.Recompute(0.5))
	want := []string{"grid", "parts", "outline", "split", "axes"}
	if got := rec.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("paint order = %v, want %v", got, want)
	}
	split := rec.Tagged("split")
	if split[0].Color != render.Hex("#f59e0b") {
		t.Errorf("split line colour = %v", split[0].Color)
	}
	texts := strings.Join(rec.Texts(), " ")
	if !strings.Contains(texts, "A1") || !strings.Contains(texts, "A2") || !strings.Contains(texts, "s=2.00") {
		t.Errorf("labels = %q", texts)
	}

	rec = render.NewRecorder(500, 280)
	e.Paint(rec, e.Recompute(0.05))
	if strings.Contains(strings.Join(rec.Texts(), " "), "A1") {
		t.Error("A1 label should be hidden when the left part is narrow")
	}
}

func TestReflectionBanner(t *testing.T) {
	rec := render.NewRecorder(400, 300)
	PaintReflection(rec, Reflection{Cards: []Card{{ID: "a", Text: "hidden"}, {ID: "b", Text: "shown", Visible: true}}})
	if got := rec.Texts(); !reflect.DeepEqual(got, []string{"shown"}) {
		t.Errorf("banner texts = %v", got)
	}
}
