package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"
)

func TestNiceStep(t *testing.T) {
	tests := []struct {
		span   float64
		target int
		want   float64
	}{
		{10, 10, 1},
		{2.4, 6, 0.5},
		{20, 5, 5},
		{8, 4, 2},
		{1000, 5, 200},
		{0.03, 3, 0.01},
		{7, 1, 10},
	}
	for _, tt := range tests {
		if got := NiceStep(tt.span, tt.target); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NiceStep(%v, %d) = %v, want %v", tt.span, tt.target, got, tt.want)
		}
	}
	if got := NiceStep(0, 5); got != 1 {
		t.Errorf("NiceStep(0) = %v, want 1", got)
	}
}

func TestTicks(t *testing.T) {
	got := Ticks(-1.2, 1.2, 0.5)
	want := []float64{-1, -0.5, 0, 0.5, 1}
	if len(got) != len(want) {
		t.Fatalf("Ticks = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("tick %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestViewportRoundTrip(t *testing.T) {
	vp := NewViewport(Bounds{XMin: -3, XMax: 3, YMin: -1, YMax: 8}, 600, 400, 10)
	if got := vp.MapX(-3); got != 10 {
		t.Errorf("MapX(xMin) = %v, want pad", got)
	}
	if got := vp.MapY(-1); got != 390 {
		t.Errorf("MapY(yMin) = %v, want 390", got)
	}
	if got := vp.UnmapX(vp.MapX(1.25)); math.Abs(got-1.25) > 1e-12 {
		t.Errorf("UnmapX(MapX(1.25)) = %v", got)
	}
}

func TestRatioClamps(t *testing.T) {
	if Ratio(-20, 400) != 0 || Ratio(900, 400) != 1 || Ratio(200, 400) != 0.5 {
		t.Error("Ratio should clamp to [0, 1]")
	}
}

func TestHex(t *testing.T) {
	c := Hex("#ef4444")
	if c.R != 0xef || c.G != 0x44 || c.B != 0x44 || c.A != 1 {
		t.Errorf("Hex = %+v", c)
	}
	if c.String() != "#ef4444" {
		t.Errorf("String = %q", c.String())
	}
	if got := Hex("nope"); got != Black {
		t.Errorf("bad hex = %+v, want black", got)
	}
}

func TestRasterScalesByPixelRatio(t *testing.T) {
	r := NewRaster(200, 100, 2)
	if w, h := r.PixelSize(); w != 400 || h != 200 {
		t.Errorf("pixel size = %dx%d, want 400x200", w, h)
	}
	if w, h := r.Size(); w != 200 || h != 100 {
		t.Errorf("css size = %vx%v, want 200x100", w, h)
	}
	r.Clear(White)
	r.SetColor(Hex("#ff0000"))
	r.Rect(50, 25, 100, 50)
	r.Fill()

	// centre of the CSS rect is (100, 50) → pixel (200, 100)
	cr, cg, _, _ := r.Image().At(200, 100).RGBA()
	if cr>>8 != 255 || cg>>8 != 0 {
		t.Errorf("expected red at the scaled centre, got r=%d g=%d", cr>>8, cg>>8)
	}
	var buf bytes.Buffer
	if err := r.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
}

func TestPathLiftsPenOnGaps(t *testing.T) {
	rec := NewRecorder(100, 100)
	Path(rec, [][2]float64{{0, 0}, {1, 1}, {math.NaN(), 2}, {3, 3}, {4, 4}})
	if len(rec.Ops) != 1 || len(rec.Ops[0].Points) != 4 {
		t.Fatalf("unexpected ops %+v", rec.Ops)
	}
}

func TestErrorFrame(t *testing.T) {
	rec := NewRecorder(300, 200)
	Error(rec, "Unknown interaction type: Z")
	texts := rec.Texts()
	if len(texts) != 1 || texts[0] != "Unknown interaction type: Z" {
		t.Errorf("texts = %v", texts)
	}
	if rec.Ops[0].Kind != OpClear {
		t.Error("error frame should clear first")
	}
}
