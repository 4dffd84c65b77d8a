// Package geom holds the primitives produced by recompute and consumed by the
// painters, and the tagged union of measurable regions used by the split
// engine.
package geom

import (
	"fmt"
	"math"

	"github.com/MJE43/lessonviz/internal/numeric"
)

// Point is a position in lesson coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polyline is an ordered sequence of points.
type Polyline []Point

// Sample is a curve sample. OK is false when evaluation failed and Y holds
// the neutral substitute.
type Sample struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	OK bool    `json:"ok"`
}

// Curve is a named single-variable function.
type Curve struct {
	Src string
	F   func(float64) float64
}

// At evaluates the curve; NaN when undefined.
func (c Curve) At(x float64) float64 { return c.F(x) }

// Kind names a Shape variant.
type Kind string

const (
	KindRectangle           Kind = "rectangle"
	KindAreaUnderCurve      Kind = "areaUnderCurve"
	KindRegionBetweenCurves Kind = "regionBetweenCurves"
)

// Contribution tags the two product-rule rectangles.
type Contribution string

const (
	UDV Contribution = "u·dv"
	VDU Contribution = "v·du"
)

// Shape is a closed region. The variants below are the only
// implementations.
type Shape interface {
	Kind() Kind
	shape()
}

// Rectangle is an axis-aligned rectangle.
type Rectangle struct {
	X, Y          float64
	Width, Height float64
	Contribution  Contribution
}

// AreaUnderCurve is the region between a curve and the x axis over [A, B].
type AreaUnderCurve struct {
	Curve Curve
	A, B  float64
}

// RegionBetweenCurves is the region between F and G over [A, B]. Sign is
// set on sign-partition parts.
type RegionBetweenCurves struct {
	F, G Curve
	A, B float64
	Sign numeric.Sign
}

func (Rectangle) Kind() Kind           { return KindRectangle }
func (AreaUnderCurve) Kind() Kind      { return KindAreaUnderCurve }
func (RegionBetweenCurves) Kind() Kind { return KindRegionBetweenCurves }

func (Rectangle) shape()           {}
func (AreaUnderCurve) shape()      {}
func (RegionBetweenCurves) shape() {}

// Width is the horizontal extent of s.
func Width(s Shape) float64 {
	switch s := s.(type) {
	case Rectangle:
		return s.Width
	case AreaUnderCurve:
		return s.B - s.A
	case RegionBetweenCurves:
		return s.B - s.A
	}
	panic(fmt.Sprintf("geom: unknown shape %T", s))
}

// Quadrature fixes how curved regions are measured.
type Quadrature struct {
	Rule  numeric.Rule
	Steps int
}

// Measure is the area of s. Regions between curves measure the absolute
// value of the signed integral of F − G.
func (q Quadrature) Measure(s Shape) float64 {
	switch s := s.(type) {
	case Rectangle:
		return s.Width * s.Height
	case AreaUnderCurve:
		return numeric.IntegrateRule(q.Rule, s.Curve.F, s.A, s.B, q.Steps)
	case RegionBetweenCurves:
		h := func(x float64) float64 { return s.F.F(x) - s.G.F(x) }
		return math.Abs(numeric.IntegrateRule(q.Rule, h, s.A, s.B, q.Steps))
	}
	panic(fmt.Sprintf("geom: unknown shape %T", s))
}

// Outline returns a closed polygon tracing s with steps samples per curve.
// Non-finite curve values are clamped to the axis so the outline stays
// drawable.
func Outline(s Shape, steps int) Polyline {
	if steps <= 0 {
		steps = 300
	}
	switch s := s.(type) {
	case Rectangle:
		return Polyline{
			{s.X, s.Y}, {s.X + s.Width, s.Y},
			{s.X + s.Width, s.Y + s.Height}, {s.X, s.Y + s.Height},
		}
	case AreaUnderCurve:
		if s.A >= s.B {
			return nil
		}
		pts := make(Polyline, 0, steps+3)
		pts = append(pts, Point{s.A, 0})
		pts = append(pts, sampleCurve(s.Curve, s.A, s.B, steps)...)
		return append(pts, Point{s.B, 0})
	case RegionBetweenCurves:
		if s.A >= s.B {
			return nil
		}
		top := sampleCurve(s.F, s.A, s.B, steps)
		bot := sampleCurve(s.G, s.A, s.B, steps)
		pts := make(Polyline, 0, 2*len(top))
		pts = append(pts, top...)
		for i := len(bot) - 1; i >= 0; i-- {
			pts = append(pts, bot[i])
		}
		return pts
	}
	panic(fmt.Sprintf("geom: unknown shape %T", s))
}

func sampleCurve(c Curve, a, b float64, steps int) Polyline {
	pts := make(Polyline, 0, steps+1)
	dx := (b - a) / float64(steps)
	for i := 0; i <= steps; i++ {
		x := a + float64(i)*dx
		y := c.F(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			y = 0
		}
		pts = append(pts, Point{x, y})
	}
	return pts
}

// SampleCurve evaluates c at n evenly spaced points over [a, b] inclusive. Failed
// samples carry fallback and OK=false.
func SampleCurve(c Curve, a, b float64, n int, fallback float64) []Sample {
	if n < 2 {
		n = 2
	}
	out := make([]Sample, n)
	dx := (b - a) / float64(n-1)
	for i := range out {
		x := a + float64(i)*dx
		y := c.F(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			out[i] = Sample{X: x, Y: fallback}
			continue
		}
		out[i] = Sample{X: x, Y: y, OK: true}
	}
	return out
}
