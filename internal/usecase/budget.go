package usecase

import "fmt"

// Budget holds the spend ceilings and the configured per-run estimate for
// the paid social adapter.
type Budget struct {
	DailyUSD         float64
	MonthlyUSD       float64
	SocialRunCostUSD float64
}

// GateDecision is the outcome of a budget guard: either proceed, or skip
// with a reason. Budget exhaustion is a deliberate state, not an error.
type GateDecision struct {
	Proceed bool
	Reason  string
}

func proceed() GateDecision {
	return GateDecision{Proceed: true}
}

func skip(format string, args ...any) GateDecision {
	return GateDecision{Reason: fmt.Sprintf(format, args...)}
}

// MonthlyGate guards the whole run: once month-to-date cost reaches the
// monthly ceiling, nothing is ingested, scored, or emailed.
func (b Budget) MonthlyGate(monthlyCostUSD float64) GateDecision {
	if monthlyCostUSD >= b.MonthlyUSD {
		return skip("monthly budget exceeded ($%.4f/$%.2f)", monthlyCostUSD, b.MonthlyUSD)
	}
	return proceed()
}

// SocialGate guards only the paid social adapter: it is skipped when the
// projected spend (current monthly total plus the per-run estimate) would
// exceed the monthly ceiling. The rest of the run continues.
func (b Budget) SocialGate(monthlyCostUSD float64) GateDecision {
	if monthlyCostUSD+b.SocialRunCostUSD > b.MonthlyUSD {
		return skip("projected cost $%.4f would exceed monthly budget $%.2f", monthlyCostUSD+b.SocialRunCostUSD, b.MonthlyUSD)
	}
	return proceed()
}

// ScoringGate guards the LLM stage: scoring is skipped when today's
// recorded cost plus the in-run tracker total would reach the daily ceiling.
func (b Budget) ScoringGate(dailyCostUSD, trackerCostUSD float64) GateDecision {
	if dailyCostUSD+trackerCostUSD >= b.DailyUSD {
		return skip("daily budget exceeded ($%.4f/$%.2f)", dailyCostUSD+trackerCostUSD, b.DailyUSD)
	}
	return proceed()
}
