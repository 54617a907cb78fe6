package llm

import "fmt"

// Amount is a currency amount expressed in micro-units (1e-6 of the base
// currency unit), giving exactly six fractional digits without ever touching
// floating point (spec §4.2: "floating-point cost arithmetic is
// prohibited"). A $1.234567 cost is represented as Amount(1234567).
type Amount int64

// String renders the amount as a decimal with six fractional digits, e.g.
// Amount(1234567).String() == "1.234567".
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	whole := v / 1_000_000
	frac := v % 1_000_000
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%06d", sign, whole, frac)
}

// AmountFromCents converts a whole-cent budget figure (as configured in
// config.BudgetsConfig.DailyLLMCostCents) into an Amount, for comparison
// against gateway-estimated spend without ever touching floating point.
func AmountFromCents(cents int64) Amount {
	return Amount(cents * 10_000)
}

// PriceTable maps a model identifier to its per-token price, in micro-units
// per token, loaded at startup from an external pricing configuration (spec
// §4.2: "a configured pricing table").
type PriceTable map[string]ModelPrice

// ModelPrice gives the per-token cost for a model's input and output tokens,
// in micro-units of currency per token.
type ModelPrice struct {
	InputMicrosPerToken  int64
	OutputMicrosPerToken int64
}

// EstimateCost computes the cost of a completion from its token usage using
// only integer arithmetic, per spec §4.2. Returns Amount(0) for an unknown
// model rather than failing: cost estimation must never block a call that
// otherwise succeeded.
func EstimateCost(table PriceTable, model string, usage TokenUsage) Amount {
	price, ok := table[model]
	if !ok {
		return 0
	}
	return Amount(usage.InputTokens*price.InputMicrosPerToken + usage.OutputTokens*price.OutputMicrosPerToken)
}
