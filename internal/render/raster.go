package render

import (
	"image"
	"io"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Raster is a pixel surface. Callers draw in CSS pixels; every coordinate,
// width and dash length is multiplied by the device pixel ratio so strokes
// stay crisp on dense displays.
type Raster struct {
	dc   *gg.Context
	w, h float64
	dpr  float64
}

// NewRaster allocates a w×h CSS-pixel surface backed by w·dpr × h·dpr pixels.
func NewRaster(w, h int, dpr float64) *Raster {
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	pw := int(math.Round(float64(w) * dpr))
	ph := int(math.Round(float64(h) * dpr))
	dc := gg.NewContext(pw, ph)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	return &Raster{dc: dc, w: float64(w), h: float64(h), dpr: dpr}
}

func (r *Raster) Size() (float64, float64) { return r.w, r.h }

// PixelSize is the backing-store size.
func (r *Raster) PixelSize() (int, int) { return r.dc.Width(), r.dc.Height() }

func (r *Raster) Clear(c Color) {
	r.dc.ClearPath()
	r.dc.SetColor(c.NRGBA())
	r.dc.Clear()
}

func (r *Raster) SetColor(c Color)       { r.dc.SetColor(c.NRGBA()) }
func (r *Raster) SetLineWidth(w float64) { r.dc.SetLineWidth(w * r.dpr) }

func (r *Raster) SetDash(pattern ...float64) {
	scaled := make([]float64, len(pattern))
	for i, d := range pattern {
		scaled[i] = d * r.dpr
	}
	r.dc.SetDash(scaled...)
}

func (r *Raster) MoveTo(x, y float64) { r.dc.MoveTo(x*r.dpr, y*r.dpr) }
func (r *Raster) LineTo(x, y float64) { r.dc.LineTo(x*r.dpr, y*r.dpr) }
func (r *Raster) ClosePath()          { r.dc.ClosePath() }

func (r *Raster) Circle(x, y, radius float64) {
	r.dc.NewSubPath()
	r.dc.DrawCircle(x*r.dpr, y*r.dpr, radius*r.dpr)
}

func (r *Raster) Rect(x, y, w, h float64) {
	r.dc.NewSubPath()
	r.dc.DrawRectangle(x*r.dpr, y*r.dpr, w*r.dpr, h*r.dpr)
}

func (r *Raster) Stroke() { r.dc.Stroke() }
func (r *Raster) Fill()   { r.dc.Fill() }

func (r *Raster) Text(s string, x, y float64, align Align) {
	ax := 0.0
	switch align {
	case AlignCenter:
		ax = 0.5
	case AlignRight:
		ax = 1
	}
	r.dc.DrawStringAnchored(s, x*r.dpr, y*r.dpr, ax, 0.5)
}

// Image returns the backing image.
func (r *Raster) Image() image.Image { return r.dc.Image() }

// EncodePNG writes the frame as PNG.
func (r *Raster) EncodePNG(w io.Writer) error { return r.dc.EncodePNG(w) }

// SavePNG writes the frame to path.
func (r *Raster) SavePNG(path string) error { return r.dc.SavePNG(path) }
