package numeric

// DefaultSteps is the sample count used when a caller passes steps <= 0.
const DefaultSteps = 200

// Rule selects where each sub-interval is sampled.
type Rule string

const (
	RuleLeft     Rule = "left"
	RuleMidpoint Rule = "midpoint"
)

// Integrate is the left-endpoint Riemann sum of f over [a, b].
func Integrate(f func(float64) float64, a, b float64, steps int) float64 {
	return IntegrateRule(RuleLeft, f, a, b, steps)
}

// IntegrateMidpoint samples each sub-interval at its centre. Same cost as
// Integrate, second-order accurate.
func IntegrateMidpoint(f func(float64) float64, a, b float64, steps int) float64 {
	return IntegrateRule(RuleMidpoint, f, a, b, steps)
}

// IntegrateRule integrates with the given rule. An unknown rule integrates
// with the left endpoint. a > b yields the negated integral, a == b yields 0.
func IntegrateRule(rule Rule, f func(float64) float64, a, b float64, steps int) float64 {
	if steps <= 0 {
		steps = DefaultSteps
	}
	if a == b {
		return 0
	}
	dx := (b - a) / float64(steps)
	offset := 0.0
	if rule == RuleMidpoint {
		offset = 0.5
	}
	sum := 0.0
	for i := 0; i < steps; i++ {
		sum += f(a+(float64(i)+offset)*dx) * dx
	}
	return sum
}
