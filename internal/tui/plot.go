package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/MJE43/lessonviz/internal/sweep"
)

// PlotReport draws a sweep's metric against its values. Undefined points
// are skipped.
func PlotReport(rep *sweep.Report, height, width int) string {
	var ys []float64
	for _, p := range rep.Points {
		if math.IsNaN(p.Metric) || math.IsInf(p.Metric, 0) {
			continue
		}
		ys = append(ys, p.Metric)
	}
	if len(ys) == 0 {
		return "no plottable points\n"
	}
	caption := fmt.Sprintf("%s %s vs value [%g, %g]", rep.Slug, rep.Metric,
		rep.Points[0].Value, rep.Points[len(rep.Points)-1].Value)
	opts := []asciigraph.Option{asciigraph.Height(height), asciigraph.Caption(caption)}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	var s strings.Builder
	s.WriteString(asciigraph.Plot(ys, opts...))
	s.WriteString("\n")
	sum := rep.Summary
	fmt.Fprintf(&s, "evaluated %d  failures %d  min %.4g  max %.4g  mean %.4g",
		sum.Evaluated, sum.Failures, sum.MinMetric, sum.MaxMetric, sum.MeanMetric)
	if sum.Hits > 0 {
		fmt.Fprintf(&s, "  hits %d", sum.Hits)
	}
	s.WriteString("\n")
	return s.String()
}
