// Package render defines the drawing-surface contract the engines paint to,
// a raster implementation of it, and the shared plotting helpers.
package render

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Align is the horizontal anchor of a text run.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Surface is a 2D drawing target sized in CSS pixels. Path operations
// accumulate until Stroke or Fill consumes them.
type Surface interface {
	Size() (w, h float64)
	Clear(c Color)
	SetColor(c Color)
	SetLineWidth(w float64)
	SetDash(pattern ...float64)
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	Circle(x, y, r float64)
	Rect(x, y, w, h float64)
	Stroke()
	Fill()
	Text(s string, x, y float64, align Align)
}

// Color is straight (non-premultiplied) RGBA with float alpha.
type Color struct {
	R, G, B uint8
	A       float64
}

// Hex parses "#rrggbb" or "#rgb". Unparseable input yields opaque black.
func Hex(s string) Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{A: 1}
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: 1}
}

// WithAlpha returns c with alpha a.
func (c Color) WithAlpha(a float64) Color {
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	c.A = a
	return c
}

// NRGBA converts to the standard library colour type.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(c.A*255 + 0.5)}
}

// String formats c as #rrggbb, with an alpha suffix when translucent.
func (c Color) String() string {
	cc := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	if c.A >= 1 {
		return cc.Hex()
	}
	return cc.Hex() + alphaHex(c.A)
}

func alphaHex(a float64) string {
	const digits = "0123456789abcdef"
	v := uint8(a*255 + 0.5)
	return string([]byte{digits[v>>4], digits[v&0x0f]})
}

var (
	White = Color{R: 255, G: 255, B: 255, A: 1}
	Black = Color{A: 1}
)
