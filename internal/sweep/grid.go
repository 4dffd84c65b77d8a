package sweep

import (
	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/lesson"
)

// Grid returns n evenly spaced values from min to max inclusive.
func Grid(min, max float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{min}
	}
	out := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range out {
		out[i] = min + float64(i)*step
	}
	out[n-1] = max
	return out
}

// InvariantGrid is the structure values every split lesson is checked at:
// both ends, points next to them, and the quarters.
func InvariantGrid() []float64 {
	return []float64{0, 0.01, 0.25, 0.5, 0.75, 0.99, 1}
}

// DefaultPoints is the grid size DefaultValues uses for non-split lessons.
const DefaultPoints = 32

// DefaultValues picks the values a lesson is swept over when a caller names
// none: InvariantGrid for split lessons, otherwise an even grid across the
// lesson's range.
func DefaultValues(tag lesson.Type, cfg *lesson.Config) ([]float64, error) {
	if tag == lesson.TypeSplit {
		return InvariantGrid(), nil
	}
	eng, err := interactions.Mount(tag, cfg, interactions.Deps{})
	if err != nil {
		return nil, err
	}
	p := eng.Param()
	return Grid(p.Min, p.Max, DefaultPoints), nil
}
