package render

import (
	"math"
	"strconv"
)

// Layer labels the following paint calls on surfaces that support it.
func Layer(s Surface, name string) {
	if t, ok := s.(interface{ Tag(string) }); ok {
		t.Tag(name)
	}
}

// Line strokes a single segment.
func Line(s Surface, x0, y0, x1, y1 float64) {
	s.MoveTo(x0, y0)
	s.LineTo(x1, y1)
	s.Stroke()
}

// Path strokes pts, lifting the pen at non-finite values and at points far
// outside the surface. pts are already in surface coordinates.
func Path(s Surface, pts [][2]float64) {
	_, h := s.Size()
	pen := false
	for _, p := range pts {
		if !finite(p[0]) || !finite(p[1]) || p[1] < -500 || p[1] > h+500 {
			pen = false
			continue
		}
		if !pen {
			s.MoveTo(p[0], p[1])
			pen = true
		} else {
			s.LineTo(p[0], p[1])
		}
	}
	s.Stroke()
}

// Polygon fills a closed outline given in surface coordinates.
func Polygon(s Surface, pts [][2]float64) {
	if len(pts) < 3 {
		return
	}
	s.MoveTo(pts[0][0], pts[0][1])
	for _, p := range pts[1:] {
		s.LineTo(p[0], p[1])
	}
	s.ClosePath()
	s.Fill()
}

// Dot fills a circle, optionally ringed.
func Dot(s Surface, x, y, r float64, fill Color, ring *Color, ringWidth float64) {
	if ring != nil && ringWidth > 0 {
		s.SetColor(*ring)
		s.Circle(x, y, r+ringWidth)
		s.Fill()
	}
	s.SetColor(fill)
	s.Circle(x, y, r)
	s.Fill()
}

// Grid strokes vertical and horizontal lines at the tick positions.
func Grid(s Surface, vp Viewport, xs, ys []float64, c Color, width float64) {
	s.SetColor(c)
	s.SetLineWidth(width)
	s.SetDash()
	for _, x := range xs {
		px := vp.MapX(x)
		s.MoveTo(px, vp.Pad)
		s.LineTo(px, vp.H-vp.Pad)
	}
	for _, y := range ys {
		py := vp.MapY(y)
		s.MoveTo(vp.Pad, py)
		s.LineTo(vp.W-vp.Pad, py)
	}
	s.Stroke()
}

// Axes strokes the x and y axes where they fall inside the bounds.
func Axes(s Surface, vp Viewport, c Color, width float64) {
	s.SetColor(c)
	s.SetLineWidth(width)
	s.SetDash()
	if vp.YMin <= 0 && vp.YMax >= 0 {
		s.MoveTo(vp.Pad, vp.MapY(0))
		s.LineTo(vp.W-vp.Pad, vp.MapY(0))
	}
	if vp.XMin <= 0 && vp.XMax >= 0 {
		s.MoveTo(vp.MapX(0), vp.Pad)
		s.LineTo(vp.MapX(0), vp.H-vp.Pad)
	}
	s.Stroke()
}

// Arrow strokes a segment with a filled head at (x1, y1).
func Arrow(s Surface, x0, y0, x1, y1, head float64) {
	Line(s, x0, y0, x1, y1)
	ang := math.Atan2(y1-y0, x1-x0)
	s.MoveTo(x1, y1)
	s.LineTo(x1-head*math.Cos(ang-math.Pi/7), y1-head*math.Sin(ang-math.Pi/7))
	s.LineTo(x1-head*math.Cos(ang+math.Pi/7), y1-head*math.Sin(ang+math.Pi/7))
	s.ClosePath()
	s.Fill()
}

// TickLabel formats a tick value without trailing zeros.
func TickLabel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Error paints the labelled error state shown instead of a lesson.
func Error(s Surface, msg string) {
	w, h := s.Size()
	Layer(s, "error")
	s.Clear(Hex("#fef2f2"))
	s.SetColor(Hex("#dc2626"))
	s.SetLineWidth(2)
	s.SetDash()
	s.Rect(8, 8, w-16, h-16)
	s.Stroke()
	s.SetColor(Hex("#991b1b"))
	s.Text(msg, w/2, h/2, AlignCenter)
}
