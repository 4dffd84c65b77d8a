// Package sweep evaluates a lesson across many EngineState values in
// parallel: invariant checks for split lessons and convergence tables for
// the rest.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/lesson"
)

var (
	ErrNoValues      = errors.New("no values to sweep")
	ErrUnknownMetric = errors.New("unknown metric")
	ErrTimeout       = errors.New("sweep timed out")
)

// DefaultMetrics is the readout reported per lesson type when the request
// names none.
var DefaultMetrics = map[lesson.Type]string{
	lesson.TypeDerivative:  "error",
	lesson.TypeBifurcation: "p",
	lesson.TypeMotion:      "x",
	lesson.TypeSplit:       "total",
}

// Request describes a sweep.
type Request struct {
	Values  []float64               `json:"values"`
	Metric  string                  `json:"metric,omitempty"`
	Target  *interactions.Predicate `json:"target,omitempty"`
	Workers int                     `json:"workers,omitempty"`
	Timeout time.Duration           `json:"timeout,omitempty"`
}

// Invariant is the split check at one structure value.
type Invariant struct {
	Sum   float64 `json:"sum"`
	Total float64 `json:"total"`
	Delta float64 `json:"delta"`
	Holds bool    `json:"holds"`
}

// Point is the result at one EngineState value.
type Point struct {
	Value     float64    `json:"value"`
	Metric    float64    `json:"metric"`
	Text      string     `json:"text"`
	Hit       bool       `json:"hit,omitempty"`
	Invariant *Invariant `json:"invariant,omitempty"`
}

// Summary aggregates a sweep.
type Summary struct {
	Evaluated  int     `json:"evaluated"`
	Hits       int     `json:"hits"`
	Failures   int     `json:"failures"`
	MinMetric  float64 `json:"min_metric"`
	MaxMetric  float64 `json:"max_metric"`
	MeanMetric float64 `json:"mean_metric"`
	Monotone   bool    `json:"monotone"` // metric never increases with the value, within MonotoneTolerance
	TimedOut   bool    `json:"timed_out,omitempty"`
}

// Report is the outcome of Run.
type Report struct {
	Type    lesson.Type `json:"type"`
	Slug    string      `json:"slug"`
	Metric  string      `json:"metric"`
	Points  []Point     `json:"points"`
	Summary Summary     `json:"summary"`
}

// Options carry the collaborators of a sweep.
type Options struct {
	Cache  *expr.Cache
	Logger *zap.Logger
}

// Run mounts cfg once and recomputes it at every value with a bounded
// worker pool. Values outside the lesson's range are clamped first, as the
// session would. Points come back ordered by value.
func Run(ctx context.Context, tag lesson.Type, cfg *lesson.Config, req Request, opts Options) (*Report, error) {
	if len(req.Values) == 0 {
		return nil, ErrNoValues
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("sweep")

	eng, err := interactions.Mount(tag, cfg, interactions.Deps{Cache: opts.Cache, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	metric := req.Metric
	if metric == "" {
		metric = DefaultMetrics[tag]
	}
	if !hasReadout(eng.Recompute(eng.Param().Start()), metric) {
		return nil, fmt.Errorf("%w: %q for type %s", ErrUnknownMetric, metric, tag)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := eng.Param()
	points := make([]Point, len(req.Values))
	done := make([]bool, len(req.Values))
	var evaluated int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range req.Values {
		i, v := i, p.Clamp(v)
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			points[i] = evaluate(eng, v, metric, req.Target)
			done[i] = true
			atomic.AddInt64(&evaluated, 1)
			return nil
		})
	}
	timedOut := false
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		timedOut = true
	}
	if ctx.Err() != nil {
		timedOut = true
	}

	out := make([]Point, 0, len(points))
	for i, pt := range points {
		if done[i] {
			out = append(out, pt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })

	rep := &Report{
		Type:    tag,
		Slug:    eng.Lesson().Slug,
		Metric:  metric,
		Points:  out,
		Summary: summarize(out, int(atomic.LoadInt64(&evaluated)), timedOut),
	}
	log.Debug("sweep finished",
		zap.String("lesson", rep.Slug),
		zap.String("metric", metric),
		zap.Int("evaluated", rep.Summary.Evaluated),
		zap.Int("failures", rep.Summary.Failures),
		zap.Bool("timed_out", timedOut),
	)
	if timedOut {
		return rep, ErrTimeout
	}
	return rep, nil
}

func hasReadout(scene interactions.Scene, key string) bool {
	for _, r := range scene.Readouts() {
		if r.Key == key {
			return true
		}
	}
	return false
}

func evaluate(eng interactions.Engine, v float64, metric string, target *interactions.Predicate) Point {
	scene := eng.Recompute(v)
	pt := Point{Value: v}
	for _, r := range scene.Readouts() {
		if r.Key == metric {
			pt.Metric, pt.Text = r.Value, r.Text
			break
		}
	}
	if target != nil {
		pt.Hit = target.Matches(pt.Metric)
	}
	if s, ok := scene.(*interactions.SplitScene); ok {
		pt.Invariant = &Invariant{Sum: s.Sum, Total: s.Total, Delta: s.Delta, Holds: s.InvariantHolds()}
	}
	return pt
}

func summarize(points []Point, evaluated int, timedOut bool) Summary {
	s := Summary{Evaluated: evaluated, TimedOut: timedOut, Monotone: true}
	if len(points) == 0 {
		return s
	}
	s.MinMetric, s.MaxMetric = math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, p := range points {
		if p.Hit {
			s.Hits++
		}
		if p.Invariant != nil && !p.Invariant.Holds {
			s.Failures++
		}
		s.MinMetric = math.Min(s.MinMetric, p.Metric)
		s.MaxMetric = math.Max(s.MaxMetric, p.Metric)
		sum += p.Metric
	}
	s.Monotone = NonIncreasing(points)
	s.MeanMetric = sum / float64(len(points))
	return s
}

// MonotoneTolerance is the growth between neighbouring metrics still
// counted as rounding noise.
const MonotoneTolerance = 1e-9

// NonIncreasing reports whether the metric never grows by more than
// MonotoneTolerance from one point to the next.
func NonIncreasing(points []Point) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Metric > points[i-1].Metric+MonotoneTolerance {
			return false
		}
	}
	return true
}
