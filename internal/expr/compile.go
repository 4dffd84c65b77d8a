package expr

import (
	"fmt"
	"math"
)

type evalFn func(env []float64) float64

// Program is a compiled expression bound to an ordered list of variable names.
type Program struct {
	src    string
	vars   []string
	root   Node
	scalar evalFn
	vector []evalFn
}

// Compile parses src once and lowers the tree into a closure tree.
func Compile(src string, vars ...string) (*Program, error) {
	root, err := Parse(src, vars...)
	if err != nil {
		return nil, err
	}
	p := &Program{src: src, vars: append([]string(nil), vars...), root: root}
	if v, ok := root.(Vector); ok {
		p.vector = make([]evalFn, len(v.Elems))
		for i, e := range v.Elems {
			p.vector[i] = lower(e)
		}
	} else {
		p.scalar = lower(root)
	}
	return p, nil
}

// MustCompile is Compile for expressions known to be valid.
func MustCompile(src string, vars ...string) *Program {
	p, err := Compile(src, vars...)
	if err != nil {
		panic(err)
	}
	return p
}

func lower(n Node) evalFn {
	switch n := n.(type) {
	case Num:
		v := n.Value
		return func([]float64) float64 { return v }
	case Var:
		i := n.Index
		return func(env []float64) float64 { return env[i] }
	case Unary:
		x := lower(n.X)
		return func(env []float64) float64 { return -x(env) }
	case Binary:
		l, r := lower(n.L), lower(n.R)
		switch n.Op {
		case '+':
			return func(env []float64) float64 { return l(env) + r(env) }
		case '-':
			return func(env []float64) float64 { return l(env) - r(env) }
		case '*':
			return func(env []float64) float64 { return l(env) * r(env) }
		case '/':
			return func(env []float64) float64 { return l(env) / r(env) }
		case '^':
			return func(env []float64) float64 { return math.Pow(l(env), r(env)) }
		}
	case Call:
		fn := functions[n.Fn]
		if fn.arity == 1 {
			a, f := lower(n.Args[0]), fn.f1
			return func(env []float64) float64 { return f(a(env)) }
		}
		a, b, f := lower(n.Args[0]), lower(n.Args[1]), fn.f2
		return func(env []float64) float64 { return f(a(env), b(env)) }
	}
	panic(fmt.Sprintf("expr: cannot lower %T", n))
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.src }

// Vars returns the bound variable names in positional order.
func (p *Program) Vars() []string { return append([]string(nil), p.vars...) }

// AST returns the parsed tree.
func (p *Program) AST() Node { return p.root }

// IsVector reports whether the expression is a vector literal.
func (p *Program) IsVector() bool { return p.vector != nil }

// Dim is 1 for scalars and the component count for vectors.
func (p *Program) Dim() int {
	if p.vector != nil {
		return len(p.vector)
	}
	return 1
}

// Eval evaluates a scalar program with positional arguments.
func (p *Program) Eval(args ...float64) (float64, error) {
	if p.scalar == nil {
		return math.NaN(), fmt.Errorf("%w: %q is a vector", ErrShape, p.src)
	}
	if len(args) != len(p.vars) {
		return math.NaN(), fmt.Errorf("%w: want %d, got %d", ErrArgCount, len(p.vars), len(args))
	}
	v := p.scalar(args)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v, ErrNotFinite
	}
	return v, nil
}

// EvalVec evaluates every component; a scalar program yields a one-element slice.
func (p *Program) EvalVec(args ...float64) ([]float64, error) {
	if len(args) != len(p.vars) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrArgCount, len(p.vars), len(args))
	}
	if p.scalar != nil {
		v, err := p.Eval(args...)
		return []float64{v}, err
	}
	out := make([]float64, len(p.vector))
	var err error
	for i, f := range p.vector {
		out[i] = f(args)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			err = ErrNotFinite
		}
	}
	return out, err
}

// EvalScope binds variables by name. Missing names are an error.
func (p *Program) EvalScope(scope map[string]float64) (float64, error) {
	args := make([]float64, len(p.vars))
	for i, name := range p.vars {
		v, ok := scope[name]
		if !ok {
			return math.NaN(), fmt.Errorf("%w: %q not in scope", ErrUnknownVariable, name)
		}
		args[i] = v
	}
	return p.Eval(args...)
}

// Or evaluates and substitutes fallback for any failure.
func (p *Program) Or(fallback float64, args ...float64) float64 {
	v, err := p.Eval(args...)
	if err != nil {
		return fallback
	}
	return v
}

// Func1 adapts a one-variable program; failures yield NaN.
func (p *Program) Func1() func(float64) float64 {
	return func(x float64) float64 {
		v, err := p.Eval(x)
		if err != nil {
			return math.NaN()
		}
		return v
	}
}
