package cost

import (
	"strings"
	"testing"

	"github.com/karavel-ai/compass/pkg/models"
)

func TestEstimateShortQueryEqualsBase(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name  string
		query string
	}{
		{"empty query", ""},
		{"short query", "draft a pitch deck"},
		{"exactly 500 chars", strings.Repeat("a", 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(models.CapabilityDocGenerator, tt.query)
			want := DefaultBaseCosts[models.CapabilityDocGenerator]
			if got.EstimatedCost != want {
				t.Errorf("EstimatedCost = %v, want base %v", got.EstimatedCost, want)
			}
		})
	}
}

func TestEstimateMonotonicInQueryLength(t *testing.T) {
	e := NewEstimator()

	prev := -1.0
	for _, n := range []int{0, 100, 500, 501, 1000, 2500, 10000} {
		got := e.Estimate(models.CapabilityChinaSource, strings.Repeat("x", n))
		if got.EstimatedCost < prev {
			t.Fatalf("estimate decreased at length %d: %v < %v", n, got.EstimatedCost, prev)
		}
		prev = got.EstimatedCost
	}
}

func TestEstimateLongQueryScales(t *testing.T) {
	e := NewEstimator()

	got := e.Estimate(models.CapabilityLedger, strings.Repeat("a", 1000))
	want := DefaultBaseCosts[models.CapabilityLedger] * 2
	if got.EstimatedCost != want {
		t.Errorf("EstimatedCost = %v, want %v", got.EstimatedCost, want)
	}
}

func TestEstimateHighStakesRequiresApproval(t *testing.T) {
	e := NewEstimator()

	for _, c := range models.AllCapabilities {
		got := e.Estimate(c, "query")
		if got.RequiresApproval != DefaultHighStakes[c] {
			t.Errorf("capability %q: RequiresApproval = %v, want %v", c, got.RequiresApproval, DefaultHighStakes[c])
		}
	}
}

func TestEstimateBudgetAlwaysApproved(t *testing.T) {
	e := NewEstimator()

	got := e.Estimate(models.CapabilityChinaSource, strings.Repeat("a", 100000))
	if !got.BudgetApproved {
		t.Error("reference estimator should always approve the budget")
	}
}

func TestEstimateNonNegative(t *testing.T) {
	e := NewEstimator()

	for _, c := range models.AllCapabilities {
		got := e.Estimate(c, "query")
		if got.EstimatedCost < 0 {
			t.Errorf("capability %q: negative estimate %v", c, got.EstimatedCost)
		}
	}
}

func TestNewEstimatorWithOverrides(t *testing.T) {
	custom := map[models.Capability]float64{models.CapabilityNavigator: 5.0}
	stakes := map[models.Capability]bool{models.CapabilityNavigator: true}

	e := NewEstimatorWith(custom, stakes)
	got := e.Estimate(models.CapabilityNavigator, "hi")
	if got.EstimatedCost != 5.0 {
		t.Errorf("EstimatedCost = %v, want 5.0", got.EstimatedCost)
	}
	if !got.RequiresApproval {
		t.Error("override high-stakes set should apply")
	}
	if !e.IsHighStakes(models.CapabilityNavigator) {
		t.Error("IsHighStakes should reflect the override")
	}
}
