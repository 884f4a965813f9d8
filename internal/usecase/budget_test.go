package usecase

import "testing"

func TestMonthlyGate(t *testing.T) {
	t.Parallel()

	budget := Budget{MonthlyUSD: 15.00}

	if gate := budget.MonthlyGate(14.99); !gate.Proceed {
		t.Fatalf("expected proceed below ceiling, got skip: %s", gate.Reason)
	}
	if gate := budget.MonthlyGate(15.00); gate.Proceed {
		t.Fatal("expected skip at the ceiling")
	}
	if gate := budget.MonthlyGate(20.00); gate.Proceed {
		t.Fatal("expected skip above the ceiling")
	}
	if gate := budget.MonthlyGate(15.00); gate.Reason == "" {
		t.Fatal("expected a reason on skip")
	}
}

func TestSocialGate(t *testing.T) {
	t.Parallel()

	budget := Budget{MonthlyUSD: 15.00, SocialRunCostUSD: 0.50}

	// Projected spend exactly at the ceiling still fits.
	if gate := budget.SocialGate(14.50); !gate.Proceed {
		t.Fatalf("expected proceed when projection meets ceiling, got skip: %s", gate.Reason)
	}
	if gate := budget.SocialGate(14.51); gate.Proceed {
		t.Fatal("expected skip when projection exceeds ceiling")
	}
}

func TestScoringGate(t *testing.T) {
	t.Parallel()

	budget := Budget{DailyUSD: 1.00}

	if gate := budget.ScoringGate(0.50, 0.25); !gate.Proceed {
		t.Fatalf("expected proceed below daily ceiling, got skip: %s", gate.Reason)
	}
	if gate := budget.ScoringGate(0.75, 0.25); gate.Proceed {
		t.Fatal("expected skip when combined spend reaches daily ceiling")
	}
}
