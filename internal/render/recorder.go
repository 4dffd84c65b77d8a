package render

// OpKind classifies a recorded drawing operation.
type OpKind string

const (
	OpClear  OpKind = "clear"
	OpStroke OpKind = "stroke"
	OpFill   OpKind = "fill"
	OpText   OpKind = "text"
)

// Op is one recorded paint call with the state it was issued under.
type Op struct {
	Kind    OpKind
	Color   Color
	Width   float64
	Dash    []float64
	Points  [][2]float64
	Circles int
	Text    string
	Tag     string
}

// Recorder is a Surface that keeps the paint calls instead of pixels.
type Recorder struct {
	W, H float64
	Ops  []Op

	color   Color
	width   float64
	dash    []float64
	path    [][2]float64
	circles int
	tag     string
}

// NewRecorder creates a recorder of the given CSS size.
func NewRecorder(w, h float64) *Recorder {
	return &Recorder{W: w, H: h, color: Black, width: 1}
}

// Tag labels subsequent ops, letting tests find layers by name.
func (r *Recorder) Tag(name string) { r.tag = name }

func (r *Recorder) Size() (float64, float64) { return r.W, r.H }

func (r *Recorder) Clear(c Color) {
	r.path, r.circles = nil, 0
	r.Ops = append(r.Ops, Op{Kind: OpClear, Color: c, Tag: r.tag})
}

func (r *Recorder) SetColor(c Color)       { r.color = c }
func (r *Recorder) SetLineWidth(w float64) { r.width = w }
func (r *Recorder) SetDash(p ...float64)   { r.dash = append([]float64(nil), p...) }
func (r *Recorder) MoveTo(x, y float64)    { r.path = append(r.path, [2]float64{x, y}) }
func (r *Recorder) LineTo(x, y float64)    { r.path = append(r.path, [2]float64{x, y}) }
func (r *Recorder) ClosePath()             {}

func (r *Recorder) Circle(x, y, radius float64) {
	r.path = append(r.path, [2]float64{x, y})
	r.circles++
}

func (r *Recorder) Rect(x, y, w, h float64) {
	r.path = append(r.path, [2]float64{x, y}, [2]float64{x + w, y}, [2]float64{x + w, y + h}, [2]float64{x, y + h})
}

func (r *Recorder) Stroke() { r.flush(OpStroke) }
func (r *Recorder) Fill()   { r.flush(OpFill) }

func (r *Recorder) Text(s string, x, y float64, align Align) {
	r.Ops = append(r.Ops, Op{Kind: OpText, Color: r.color, Text: s, Points: [][2]float64{{x, y}}, Tag: r.tag})
}

func (r *Recorder) flush(kind OpKind) {
	r.Ops = append(r.Ops, Op{
		Kind:    kind,
		Color:   r.color,
		Width:   r.width,
		Dash:    r.dash,
		Points:  r.path,
		Circles: r.circles,
		Tag:     r.tag,
	})
	r.path, r.circles = nil, 0
}

// Tagged returns the ops recorded under tag, in order.
func (r *Recorder) Tagged(tag string) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Tag == tag {
			out = append(out, op)
		}
	}
	return out
}

// Order returns the distinct tags in first-paint order.
func (r *Recorder) Order() []string {
	var out []string
	seen := make(map[string]bool)
	for _, op := range r.Ops {
		if op.Tag != "" && !seen[op.Tag] {
			seen[op.Tag] = true
			out = append(out, op.Tag)
		}
	}
	return out
}

// Texts returns every text run drawn.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}
