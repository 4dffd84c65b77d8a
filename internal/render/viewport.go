package render

import "math"

// Bounds are axis limits in lesson coordinates.
type Bounds struct {
	XMin, XMax, YMin, YMax float64
}

// Viewport maps lesson coordinates onto a padded rectangle of the surface.
type Viewport struct {
	Bounds
	W, H float64
	Pad  float64
}

// NewViewport fits b into a w×h surface with uniform padding.
func NewViewport(b Bounds, w, h, pad float64) Viewport {
	return Viewport{Bounds: b, W: w, H: h, Pad: pad}
}

func (v Viewport) innerW() float64 { return v.W - 2*v.Pad }
func (v Viewport) innerH() float64 { return v.H - 2*v.Pad }

// MapX converts a lesson x to a surface x.
func (v Viewport) MapX(x float64) float64 {
	return v.Pad + (x-v.XMin)/(v.XMax-v.XMin)*v.innerW()
}

// MapY converts a lesson y to a surface y; y grows upward.
func (v Viewport) MapY(y float64) float64 {
	return v.Pad + v.innerH() - (y-v.YMin)/(v.YMax-v.YMin)*v.innerH()
}

// UnmapX converts a surface x back to lesson coordinates.
func (v Viewport) UnmapX(px float64) float64 {
	return v.XMin + (px-v.Pad)/v.innerW()*(v.XMax-v.XMin)
}

// Ratio maps a surface x to [0, 1] across the full surface width. Positions
// past either edge clamp.
func Ratio(px, width float64) float64 {
	if width <= 0 || math.IsNaN(px) {
		return 0
	}
	r := px / width
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// NiceStep picks a step from {1, 2, 5, 10}×10^k so that span is divided
// into roughly target intervals.
func NiceStep(span float64, target int) float64 {
	if target < 1 {
		target = 1
	}
	if !(span > 0) || math.IsInf(span, 0) {
		return 1
	}
	raw := span / float64(target)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag*(1+1e-9) {
			return m * mag
		}
	}
	return 10 * mag
}

// Ticks lists the multiples of step within [lo, hi].
func Ticks(lo, hi, step float64) []float64 {
	if !(step > 0) || hi < lo {
		return nil
	}
	var out []float64
	start := math.Ceil(lo/step-1e-9) * step
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > hi+step*1e-9 {
			break
		}
		if math.Abs(v) < step*1e-9 {
			v = 0
		}
		out = append(out, v)
	}
	return out
}
