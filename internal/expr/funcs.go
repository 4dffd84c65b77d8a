package expr

import (
	"math"
	"sort"
)

type function struct {
	arity int
	f1    func(float64) float64
	f2    func(float64, float64) float64
}

// functions is the complete allow-list; anything else fails to compile.
var functions = map[string]function{
	"sin":  {arity: 1, f1: math.Sin},
	"cos":  {arity: 1, f1: math.Cos},
	"abs":  {arity: 1, f1: math.Abs},
	"sqrt": {arity: 1, f1: math.Sqrt},
	"log":  {arity: 1, f1: math.Log},
	"exp":  {arity: 1, f1: math.Exp},
	"sign": {arity: 1, f1: sign},
	"pow":  {arity: 2, f2: math.Pow},
}

// sign follows Math.sign: -1, 0 or 1, NaN for NaN, and keeps negative zero.
func sign(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return math.NaN()
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return x
	}
}

// Functions lists the allowed function names in sorted order.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for n := range functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
