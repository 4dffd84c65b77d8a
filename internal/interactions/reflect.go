package interactions

import (
	"math"
	"sort"

	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

// Predicate is a threshold comparison with tolerance.
type Predicate struct {
	Op        string  `json:"op"`
	Value     float64 `json:"value"`
	Upper     float64 `json:"upper,omitempty"` // for "between", "inside" and "outside"
	Tolerance float64 `json:"tolerance,omitempty"`
}

// PredicateOf builds the predicate of a normalized threshold trigger.
func PredicateOf(t lesson.Trigger) Predicate {
	return Predicate{Op: t.Op, Value: t.Value, Upper: t.Upper, Tolerance: t.Tolerance}
}

// Matches checks v against the predicate
func (p Predicate) Matches(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	switch p.Op {
	case lesson.OpEq:
		return math.Abs(v-p.Value) <= p.Tolerance
	case lesson.OpGt:
		return v > p.Value+p.Tolerance
	case lesson.OpGe:
		return v >= p.Value-p.Tolerance
	case lesson.OpLt:
		return v < p.Value-p.Tolerance
	case lesson.OpLe:
		return v <= p.Value+p.Tolerance
	case lesson.OpBetween:
		return v >= p.Value-p.Tolerance && v <= p.Upper+p.Tolerance
	case lesson.OpInside:
		return v > p.Value && v < p.Upper
	case lesson.OpOutside:
		return v < p.Value-p.Tolerance || v > p.Upper+p.Tolerance
	default:
		return false
	}
}

// State is the named view of an EngineState used by threshold triggers.
type State map[string]float64

// firstMatch returns the index of the first threshold trigger satisfied by
// state, or -1. A trigger naming a field absent from state never matches.
func firstMatch(triggers []lesson.Trigger, state State) int {
	for i, t := range triggers {
		v, ok := state[t.Field]
		if ok && PredicateOf(t).Matches(v) {
			return i
		}
	}
	return -1
}

// furthestReached picks the time trigger with the largest threshold not
// above t, so the message reflects the furthest milestone passed.
func furthestReached(sorted []lesson.Trigger, t float64) string {
	for _, tr := range sorted {
		if t >= tr.Value {
			return tr.Message
		}
	}
	return ""
}

func sortDescending(triggers []lesson.Trigger) []lesson.Trigger {
	out := append([]lesson.Trigger(nil), triggers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

const defaultNearTolerance = 0.05

// structureMatch evaluates Engine E's threshold triggers in list order.
func structureMatch(triggers []lesson.Trigger, s float64) string {
	for _, t := range triggers {
		switch t.Type {
		case lesson.TriggerStructureAbove:
			if s > t.Value {
				return t.Message
			}
		case lesson.TriggerStructureBelow:
			if s < t.Value {
				return t.Message
			}
		case lesson.TriggerStructureNear:
			tol := t.Tolerance
			if tol == 0 {
				tol = defaultNearTolerance
			}
			if math.Abs(s-t.Value) < tol {
				return t.Message
			}
		}
	}
	return ""
}

// Latch records fired trigger ids for the lifetime of a mount. The fired
// set only grows.
type Latch struct {
	mode    string
	fired   map[string]bool
	history []string
	cards   []Card
}

// NewLatch creates a latch for the given card mode.
func NewLatch(mode string) *Latch {
	if mode == "" {
		mode = lesson.CardsSingle
	}
	return &Latch{mode: mode, fired: make(map[string]bool)}
}

// Observe takes the triggers matching the current state, in list order,
// with their rendered text. Triggers not fired before add a card; already
// fired ones only refresh the text of a card still on screen.
func (l *Latch) Observe(matched []lesson.Trigger, text func(lesson.Trigger) string) []Card {
	for _, t := range matched {
		if l.fired[t.ID] {
			for i := range l.cards {
				if l.cards[i].ID == t.ID {
					l.cards[i].Text = text(t)
				}
			}
			continue
		}
		l.fired[t.ID] = true
		l.history = append(l.history, t.ID)
		card := Card{ID: t.ID, Text: text(t)}
		if l.mode == lesson.CardsStack {
			l.cards = append([]Card{card}, l.cards...)
		} else {
			l.cards = []Card{card}
		}
	}
	return l.Cards()
}

// Reveal flips pending cards to visible and reports whether any changed.
func (l *Latch) Reveal() bool {
	changed := false
	for i := range l.cards {
		if !l.cards[i].Visible {
			l.cards[i].Visible = true
			changed = true
		}
	}
	return changed
}

// Cards returns a copy of the cards on screen, newest first.
func (l *Latch) Cards() []Card {
	return append([]Card(nil), l.cards...)
}

// Fired reports whether id has ever fired.
func (l *Latch) Fired(id string) bool { return l.fired[id] }

// History lists fired ids in firing order; each id appears once.
func (l *Latch) History() []string { return append([]string(nil), l.history...) }

// PaintReflection draws the message or the visible cards along the bottom
// edge of the surface.
func PaintReflection(s render.Surface, r Reflection) {
	lines := make([]string, 0, len(r.Cards)+1)
	if r.Message != "" {
		lines = append(lines, r.Message)
	}
	for _, c := range r.Cards {
		if c.Visible {
			lines = append(lines, c.Text)
		}
	}
	if len(lines) == 0 {
		return
	}
	w, h := s.Size()
	render.Layer(s, "reflection")
	const lineH = 18.0
	top := h - 8 - lineH*float64(len(lines))
	s.SetColor(render.White.WithAlpha(0.92))
	s.Rect(8, top, w-16, lineH*float64(len(lines)))
	s.Fill()
	s.SetColor(render.Hex("#1e293b"))
	for i, line := range lines {
		s.Text(line, 16, top+lineH*(float64(i)+0.5), render.AlignLeft)
	}
}
