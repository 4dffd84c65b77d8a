package expr

import (
	"strconv"
	"strings"
)

// Node is an element of a parsed expression tree.
type Node interface {
	String() string
	node()
}

// Num is a numeric literal.
type Num struct {
	Value float64
}

// Var references a bound variable by its position in the variable list.
type Var struct {
	Name  string
	Index int
}

// Unary is a prefix sign.
type Unary struct {
	Op byte
	X  Node
}

// Binary is an infix arithmetic operation.
type Binary struct {
	Op   byte
	L, R Node
}

// Call invokes an allow-listed function.
type Call struct {
	Fn   string
	Args []Node
}

// Vector is a top-level list of component expressions.
type Vector struct {
	Elems []Node
}

func (Num) node()    {}
func (Var) node()    {}
func (Unary) node()  {}
func (Binary) node() {}
func (Call) node()   {}
func (Vector) node() {}

func (n Num) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

func (n Var) String() string { return n.Name }

func (n Unary) String() string { return "(" + string(n.Op) + n.X.String() + ")" }

func (n Binary) String() string {
	return "(" + n.L.String() + " " + string(n.Op) + " " + n.R.String() + ")"
}

func (n Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Fn + "(" + strings.Join(args, ", ") + ")"
}

func (n Vector) String() string {
	elems := make([]string, len(n.Elems))
	for i, e := range n.Elems {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}
