package expr

import (
	"fmt"
	"math"
)

// constants resolved when no variable of the same name is bound
var constants = map[string]float64{
	"pi": math.Pi,
	"PI": math.Pi,
	"e":  math.E,
	"E":  math.E,
}

type parser struct {
	src  string
	toks []token
	pos  int
	vars map[string]int
}

// Parse builds the expression tree for src with the given bound variables.
func Parse(src string, vars ...string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks, vars: make(map[string]int, len(vars))}
	for i, v := range vars {
		p.vars[v] = i
	}

	var root Node
	if p.peek().kind == tokLBrack {
		root, err = p.parseVector()
	} else {
		root, err = p.parseExpr()
	}
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t.pos, ErrSyntax, "unexpected %q", t.text)
	}
	return root, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(pos int, err error, format string, args ...any) error {
	return &SyntaxError{Src: p.src, Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		if t.kind == tokEOF {
			return t, p.errorf(t.pos, ErrSyntax, "expected %s, found end of input", what)
		}
		return t, p.errorf(t.pos, ErrSyntax, "expected %s, found %q", what, t.text)
	}
	return t, nil
}

func (p *parser) parseVector() (Node, error) {
	p.next() // [
	var elems []Node
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(tokRBrack, "]"); err != nil {
		return nil, err
	}
	return Vector{Elems: elems}, nil
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.op != '+' && t.op != '-') {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.op, L: left, R: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.op != '*' && t.op != '/') {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.op, L: left, R: right}
	}
}

// parseUnary binds looser than ^, so -x^2 is -(x^2).
func (p *parser) parseUnary() (Node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.op == '-' || t.op == '+') {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.op == '+' {
			return x, nil
		}
		return Unary{Op: '-', X: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && t.op == '^' {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Binary{Op: '^', L: base, R: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return Num{Value: t.num}, nil
	case tokLParen:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if idx, ok := p.vars[t.text]; ok {
			return Var{Name: t.text, Index: idx}, nil
		}
		if v, ok := constants[t.text]; ok {
			return Num{Value: v}, nil
		}
		return nil, p.errorf(t.pos, ErrUnknownVariable, "unknown variable %q", t.text)
	case tokLBrack:
		return nil, p.errorf(t.pos, ErrSyntax, "vector literal only allowed at top level")
	case tokEOF:
		return nil, p.errorf(t.pos, ErrSyntax, "unexpected end of input")
	default:
		return nil, p.errorf(t.pos, ErrSyntax, "unexpected %q", t.text)
	}
}

func (p *parser) parseCall(name token) (Node, error) {
	fn, ok := functions[name.text]
	if !ok {
		return nil, p.errorf(name.pos, ErrUnknownFunction, "function %q is not allowed", name.text)
	}
	p.next() // (
	var args []Node
	if p.peek().kind != tokRParen {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if len(args) != fn.arity {
		return nil, p.errorf(name.pos, ErrArity, "%s takes %d argument(s), got %d", name.text, fn.arity, len(args))
	}
	return Call{Fn: name.text, Args: args}, nil
}
