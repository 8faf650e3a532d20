// Package cost projects the monetary cost of running a capability and
// decides whether a request needs a human-approval pause before execution.
package cost

import (
	"github.com/karavel-ai/compass/pkg/models"
)

// queryLengthUnit is the query size granularity used when scaling the base
// cost. Queries up to one unit cost exactly the base.
const queryLengthUnit = 500

// DefaultBaseCosts holds the projected base cost in USD per capability.
var DefaultBaseCosts = map[models.Capability]float64{
	models.CapabilityNavigator:    0.01,
	models.CapabilityDocGenerator: 0.50,
	models.CapabilityGrantMatcher: 0.30,
	models.CapabilityChinaSource:  0.40,
	models.CapabilitySEOAudit:     0.25,
	models.CapabilityLedger:       0.15,
	models.CapabilityLocalization: 0.20,
	models.CapabilitySafetyLogger: 0.01,
}

// DefaultHighStakes is the statically configured set of capabilities that
// require a human to look at the request before execution.
var DefaultHighStakes = map[models.Capability]bool{
	models.CapabilityDocGenerator: true,
	models.CapabilityGrantMatcher: true,
	models.CapabilityChinaSource:  true,
}

// Estimate is the cost estimator's verdict for one request.
type Estimate struct {
	// EstimatedCost is the projected cost in USD.
	EstimatedCost float64
	// RequiresApproval is true when the capability is high-stakes.
	RequiresApproval bool
	// BudgetApproved reports whether the request may proceed at all.
	// Budget-cap enforcement is delegated to the executors; this gate only
	// answers the approval question, so the reference verdict is true.
	BudgetApproved bool
}

// Estimator computes projected costs from static per-capability bases.
type Estimator struct {
	baseCosts  map[models.Capability]float64
	highStakes map[models.Capability]bool
}

// NewEstimator creates an Estimator with the default cost table and
// high-stakes set.
func NewEstimator() *Estimator {
	return &Estimator{
		baseCosts:  DefaultBaseCosts,
		highStakes: DefaultHighStakes,
	}
}

// NewEstimatorWith creates an Estimator with custom tables. Nil maps fall
// back to the defaults.
func NewEstimatorWith(baseCosts map[models.Capability]float64, highStakes map[models.Capability]bool) *Estimator {
	e := NewEstimator()
	if baseCosts != nil {
		e.baseCosts = baseCosts
	}
	if highStakes != nil {
		e.highStakes = highStakes
	}
	return e
}

// Estimate projects the cost of running capability on query. The cost is
// base * max(1, len(query)/500), so it is monotonically non-decreasing in
// query length and equals the base for any query up to 500 characters.
// The result is reproducible: nothing here depends on the clock or on
// randomness.
func (e *Estimator) Estimate(capability models.Capability, query string) Estimate {
	base := e.baseCosts[capability]

	multiplier := float64(len(query)) / queryLengthUnit
	if multiplier < 1 {
		multiplier = 1
	}

	return Estimate{
		EstimatedCost:    base * multiplier,
		RequiresApproval: e.highStakes[capability],
		BudgetApproved:   true,
	}
}

// IsHighStakes reports whether the capability requires human approval.
func (e *Estimator) IsHighStakes(capability models.Capability) bool {
	return e.highStakes[capability]
}
