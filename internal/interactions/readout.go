package interactions

import (
	"math"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/MJE43/lessonviz/internal/expr"
)

// Readout is a labelled numeric value shown next to the canvas.
type Readout struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Text  string  `json:"text"`
	Total bool    `json:"total,omitempty"`
}

const undefined = "∄"

// fixed formats v with a fixed number of decimal places; non-finite values
// print as ∄.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return undefined
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func readout(key, label string, v float64, places int32) Readout {
	r := Readout{Key: key, Label: label, Value: v, Text: fixed(v, places)}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.Value = 0
	}
	return r
}

var (
	paramRe = regexp.MustCompile(`\{p\}`)
	evalRe  = regexp.MustCompile(`\{eval:([^}]+)\}`)
)

// interpolate expands {p} to the parameter with two decimals and
// {eval:expr} to expr evaluated at p.
func interpolate(text string, p float64, cache *expr.Cache) string {
	text = paramRe.ReplaceAllLiteralString(text, fixed(p, 2))
	return evalRe.ReplaceAllStringFunc(text, func(m string) string {
		src := evalRe.FindStringSubmatch(m)[1]
		prog, err := cache.Compile(src, "p")
		if err != nil {
			return "?"
		}
		v, err := prog.Eval(p)
		if err != nil {
			return undefined
		}
		return fixed(v, 2)
	})
}
