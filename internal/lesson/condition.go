package lesson

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Comparison operators, shared with the reflection predicates.
const (
	OpEq      = "eq"
	OpGt      = "gt"
	OpGe      = "ge"
	OpLt      = "lt"
	OpLe      = "le"
	OpBetween = "between"
	OpInside  = "inside"
	OpOutside = "outside"
)

var opAliases = map[string]string{
	"==": OpEq, "===": OpEq, "eq": OpEq,
	">": OpGt, "gt": OpGt,
	">=": OpGe, "ge": OpGe,
	"<": OpLt, "lt": OpLt,
	"<=": OpLe, "le": OpLe,
	"between": OpBetween, "inside": OpInside, "outside": OpOutside,
}

// NormalizeOp maps symbolic and named operators onto the canonical names.
func NormalizeOp(op string) (string, bool) {
	canon, ok := opAliases[strings.TrimSpace(op)]
	return canon, ok
}

// Condition is a parsed threshold condition.
type Condition struct {
	Field string
	Op    string
	Value float64
	Upper float64
}

var comparisonRe = regexp.MustCompile(`^\s*(?:state\.)?([A-Za-z_][A-Za-z0-9_]*)\s*(===|==|>=|<=|>|<)\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*$`)

// ParseCondition accepts "state.field op number" and the two-sided form
// "state.f > a && state.f < b". Conditions are data, never executed.
func ParseCondition(s string) (Condition, error) {
	if left, right, ok := strings.Cut(s, "&&"); ok {
		lo, err := parseComparison(left)
		if err != nil {
			return Condition{}, err
		}
		hi, err := parseComparison(right)
		if err != nil {
			return Condition{}, err
		}
		if lo.Op == OpLt || lo.Op == OpLe {
			lo, hi = hi, lo
		}
		if lo.Field != hi.Field || (lo.Op != OpGt && lo.Op != OpGe) || (hi.Op != OpLt && hi.Op != OpLe) {
			return Condition{}, fmt.Errorf("%w: %q", ErrBadCondition, s)
		}
		op := OpInside
		if lo.Op == OpGe && hi.Op == OpLe {
			op = OpBetween
		}
		return Condition{Field: lo.Field, Op: op, Value: lo.Value, Upper: hi.Value}, nil
	}
	return parseComparison(s)
}

func parseComparison(s string) (Condition, error) {
	m := comparisonRe.FindStringSubmatch(s)
	if m == nil {
		return Condition{}, fmt.Errorf("%w: %q", ErrBadCondition, strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("%w: %q", ErrBadCondition, s)
	}
	op, _ := NormalizeOp(m[2])
	return Condition{Field: m[1], Op: op, Value: v}, nil
}
