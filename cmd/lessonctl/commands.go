package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/session"
	"github.com/MJE43/lessonviz/internal/store"
	"github.com/MJE43/lessonviz/internal/sweep"
	"github.com/MJE43/lessonviz/internal/tui"
)

func runList(e *env, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	dbPath := fs.String("db", "", "list the lessons stored in this database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		shipped := lesson.Shipped()
		for _, slug := range lesson.ShippedSlugs() {
			c := shipped[slug]
			fmt.Fprintf(e.out, "%s  %-16s %s\n", c.InteractionType, slug, c.Title)
		}
		return nil
	}
	ctx := context.Background()
	db, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	lessons, err := db.ListLessons(ctx, store.LessonsQuery{Limit: 500})
	if err != nil {
		return err
	}
	for _, l := range lessons {
		mark := ""
		if l.Builtin {
			mark = " (built-in)"
		}
		fmt.Fprintf(e.out, "%s  %-16s %s%s  %s\n", l.Type, l.Slug, l.Title, mark, l.ID)
	}
	return nil
}

func runRender(e *env, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	ref := fs.String("lesson", "", "lesson ref")
	value := fs.Float64("value", math.NaN(), "state value; the lesson's initial value when unset")
	w := fs.Float64("w", 640, "width in CSS pixels")
	h := fs.Float64("h", 400, "height in CSS pixels")
	dpr := fs.Float64("dpr", 1, "device pixel ratio")
	out := fs.String("o", "frame.png", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tag, cfg, err := resolveLesson(*ref)
	if err != nil {
		return err
	}
	frames := session.NewManualFrames()
	s, err := session.Mount(tag, cfg, session.Options{Width: *w, Height: *h, DPR: *dpr, Frames: frames, Logger: e.log})
	if err != nil {
		// the error frame is still rendered
		e.log.Warn("mount failed", zap.Error(err))
	}
	defer s.Dispose()
	if err == nil && !math.IsNaN(*value) {
		if err := s.SetValue(*value); err != nil {
			return err
		}
	}
	// cards reveal on the frame after a change
	frames.Step(time.Now())

	png, err := s.PNG()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, png, 0o644); err != nil {
		return err
	}
	snap := s.Snapshot()
	fmt.Fprintf(e.out, "%s %s=%g -> %s\n", snap.Type, snap.StateName, snap.Value, *out)
	for _, r := range snap.Readouts {
		fmt.Fprintf(e.out, "  %-12s %s\n", r.Label, r.Text)
	}
	return nil
}

var errCheck = errors.New("check failed")

// runCheck sweeps every lesson over its default values. Split lessons must
// conserve their total; derivative lessons must converge as resolution
// grows; nothing may fail to evaluate.
func runCheck(e *env, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	ref := fs.String("lesson", "", "check one lesson instead of every shipped lesson")
	if err := fs.Parse(args); err != nil {
		return err
	}
	configs := map[string]*lesson.Config{}
	if *ref != "" {
		tag, cfg, err := resolveLesson(*ref)
		if err != nil {
			return err
		}
		if cfg == nil {
			var ok bool
			if cfg, ok = lesson.Default(tag); !ok {
				return &lesson.ConfigError{Type: tag, Err: lesson.ErrUnknownType}
			}
		}
		configs[cfg.Slug] = cfg
	} else {
		configs = lesson.Shipped()
	}

	ctx := context.Background()
	var failed []string
	for _, slug := range sortedKeys(configs) {
		cfg := configs[slug]
		rep, err := checkLesson(ctx, e, cfg)
		switch {
		case err != nil:
			failed = appendf(failed, "%s: %v", slug, err)
		case rep.Summary.Failures > 0:
			failed = appendf(failed, "%s: %d points failed to evaluate", slug, rep.Summary.Failures)
		case cfg.InteractionType == lesson.TypeSplit && !invariantHolds(rep):
			failed = appendf(failed, "%s: total not conserved (min %g, max %g)", slug, rep.Summary.MinMetric, rep.Summary.MaxMetric)
		case cfg.InteractionType == lesson.TypeDerivative && !rep.Summary.Monotone:
			failed = appendf(failed, "%s: secant error does not shrink with resolution", slug)
		default:
			fmt.Fprintf(e.out, "ok    %-16s %s over %d values\n", slug, rep.Metric, rep.Summary.Evaluated)
			continue
		}
		fmt.Fprintf(e.out, "FAIL  %s\n", failed[len(failed)-1])
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d lessons", errCheck, len(failed), len(configs))
	}
	return nil
}

func appendf(list []string, format string, a ...any) []string {
	return append(list, fmt.Sprintf(format, a...))
}

func checkLesson(ctx context.Context, e *env, cfg *lesson.Config) (*sweep.Report, error) {
	values, err := sweep.DefaultValues(cfg.InteractionType, cfg)
	if err != nil {
		return nil, err
	}
	return sweep.Run(ctx, cfg.InteractionType, cfg, sweep.Request{
		Values:  values,
		Workers: e.cfg.SweepWorkers,
		Timeout: e.cfg.RequestTimeout,
	}, sweep.Options{Logger: e.log})
}

func invariantHolds(rep *sweep.Report) bool {
	for _, p := range rep.Points {
		if p.Invariant == nil || !p.Invariant.Holds {
			return false
		}
	}
	return true
}

func runPlot(e *env, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	ref := fs.String("lesson", "", "lesson ref")
	metric := fs.String("metric", "", "readout to plot; the type's default metric when empty")
	points := fs.Int("points", sweep.DefaultPoints, "number of evenly spaced values")
	height := fs.Int("height", 12, "plot height in rows")
	width := fs.Int("width", 64, "plot width in columns")
	op := fs.String("target-op", "", "optional target predicate op")
	target := fs.Float64("target", 0, "target value")
	upper := fs.Float64("target-upper", 0, "upper bound for between/inside/outside")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tag, cfg, err := resolveLesson(*ref)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg, _ = lesson.Default(tag)
	}
	eng, err := interactions.Mount(tag, cfg, interactions.Deps{Logger: e.log})
	if err != nil {
		return err
	}
	p := eng.Param()
	req := sweep.Request{
		Values:  sweep.Grid(p.Min, p.Max, *points),
		Metric:  *metric,
		Workers: e.cfg.SweepWorkers,
		Timeout: e.cfg.RequestTimeout,
	}
	if *op != "" {
		norm, ok := lesson.NormalizeOp(*op)
		if !ok {
			return fmt.Errorf("unsupported target op %q", *op)
		}
		req.Target = &interactions.Predicate{Op: norm, Value: *target, Upper: *upper}
	}
	rep, err := sweep.Run(context.Background(), tag, cfg, req, sweep.Options{Logger: e.log})
	if err != nil && !errors.Is(err, sweep.ErrTimeout) {
		return err
	}
	fmt.Fprint(e.out, tui.PlotReport(rep, *height, *width))
	return nil
}

func runPlay(e *env, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	ref := fs.String("lesson", "", "lesson ref")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tag, cfg, err := resolveLesson(*ref)
	if err != nil {
		return err
	}
	frames := session.NewManualFrames()
	s, err := session.Mount(tag, cfg, session.Options{
		Frames: frames,
		Clock:  session.Clock{Rate: e.cfg.PlaybackRate},
		Logger: e.log,
	})
	if err != nil {
		e.log.Warn("mount failed", zap.Error(err))
	}
	defer s.Dispose()
	_, err = tea.NewProgram(tui.New(s, frames, e.cfg.FPS), tea.WithAltScreen()).Run()
	return err
}

func runImport(e *env, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dbPath := fs.String("db", e.cfg.DBPath, "database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no lesson files given")
	}
	ctx := context.Background()
	db, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range fs.Args() {
		cfg, err := lesson.LoadFile(path)
		if err != nil {
			return err
		}
		if _, err := interactions.Mount(cfg.InteractionType, cfg, interactions.Deps{Logger: e.log}); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		l := &store.Lesson{Config: cfg}
		if existing, err := db.GetLessonBySlug(ctx, cfg.Slug); err == nil {
			l.ID = existing.ID
		}
		if err := db.SaveLesson(ctx, l); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(e.out, "imported %s as %s\n", cfg.Slug, l.ID)
	}
	return nil
}

func sortedKeys(m map[string]*lesson.Config) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
