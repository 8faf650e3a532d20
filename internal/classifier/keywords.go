// Package classifier turns free-text user requests into typed intents and
// capability suggestions. It runs two tiers: a deterministic keyword matcher
// (fast path) and a Claude-backed structured fallback (slow path) for
// ambiguous input.
package classifier

import (
	"fmt"
	"strings"

	"github.com/karavel-ai/compass/pkg/models"
)

// CapabilityProfile describes one capability for classification purposes.
// The profiles double as the catalogue sent to the generative fallback.
type CapabilityProfile struct {
	// Capability is the executor this profile routes to.
	Capability models.Capability `yaml:"capability"`
	// Intent is the intent emitted when this profile wins.
	Intent models.Intent `yaml:"intent"`
	// Description is a short human-readable summary, included in the
	// slow-path catalogue so the model knows what each capability does.
	Description string `yaml:"description"`
	// Keywords are the lowercase terms the fast path matches against.
	Keywords []string `yaml:"keywords"`
	// BaseConfidence is the confidence assigned when every keyword
	// matches. Partial matches scale it down proportionally.
	BaseConfidence float64 `yaml:"base_confidence"`
}

// DefaultCatalogue is the authoritative capability catalogue. Keyword sets
// are deliberately small and distinctive; anything ambiguous falls through
// to the generative tier.
var DefaultCatalogue = []CapabilityProfile{
	{
		Capability:     models.CapabilityDocGenerator,
		Intent:         models.IntentDocumentGeneration,
		Description:    "Drafts business documents: pitch decks, business plans, proposals, contracts.",
		Keywords:       []string{"draft", "write", "document", "pitch deck", "business plan", "proposal", "contract"},
		BaseConfidence: 0.9,
	},
	{
		Capability:     models.CapabilityGrantMatcher,
		Intent:         models.IntentGrantMatching,
		Description:    "Matches the organization against grant and funding programs.",
		Keywords:       []string{"grant", "funding", "subsidy", "government program", "apply for"},
		BaseConfidence: 0.9,
	},
	{
		Capability:     models.CapabilityChinaSource,
		Intent:         models.IntentProductSourcing,
		Description:    "Finds suppliers and products on Chinese wholesale platforms such as 1688.",
		Keywords:       []string{"supplier", "source", "sourcing", "1688", "alibaba", "wholesale", "manufacturer"},
		BaseConfidence: 0.9,
	},
	{
		Capability:     models.CapabilitySEOAudit,
		Intent:         models.IntentSEOAudit,
		Description:    "Audits a website for search-engine optimization issues.",
		Keywords:       []string{"seo", "search ranking", "keywords", "audit my site", "organic traffic"},
		BaseConfidence: 0.85,
	},
	{
		Capability:     models.CapabilityLedger,
		Intent:         models.IntentBookkeeping,
		Description:    "Reconciles bookkeeping entries and summarizes ledgers.",
		Keywords:       []string{"ledger", "bookkeeping", "reconcile", "invoice", "expense", "accounting"},
		BaseConfidence: 0.85,
	},
	{
		Capability:     models.CapabilityLocalization,
		Intent:         models.IntentLocalization,
		Description:    "Translates and localizes content for new markets.",
		Keywords:       []string{"translate", "localize", "localization", "language", "translation"},
		BaseConfidence: 0.85,
	},
	{
		Capability:     models.CapabilitySafetyLogger,
		Intent:         models.IntentSafetyConcern,
		Description:    "Records safety concerns and policy violations for human review.",
		Keywords:       []string{"unsafe", "report a problem", "harassment", "scam", "fraud"},
		BaseConfidence: 0.8,
	},
}

// Classification is the outcome of classifying one query.
type Classification struct {
	// Intent is the classified category.
	Intent models.Intent `json:"intent"`
	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
	// SuggestedCapability is the executor the query should route to.
	SuggestedCapability models.Capability `json:"suggested_capability"`
	// Reasoning explains the decision in human-readable form.
	Reasoning string `json:"reasoning"`
	// ExtractedParams carries parameters pulled from the query, such as a
	// product name or target language.
	ExtractedParams map[string]any `json:"extracted_params,omitempty"`
	// FastPath is true when the keyword tier decided without consulting
	// the generative tier.
	FastPath bool `json:"fast_path"`
}

// MatchKeywords runs the deterministic fast path over the catalogue.
// For each profile it computes baseConfidence * matched/total and picks the
// highest-scoring capability. Catalogue order breaks ties, so the result is
// deterministic for identical input. A query with zero matches yields
// unknown intent, the navigator fallback, and confidence 0.
func MatchKeywords(query string, catalogue []CapabilityProfile) Classification {
	lower := strings.ToLower(query)

	best := Classification{
		Intent:              models.IntentUnknown,
		SuggestedCapability: models.CapabilityNavigator,
		Confidence:          0,
		Reasoning:           "no keyword matches",
		FastPath:            true,
	}

	for _, profile := range catalogue {
		if len(profile.Keywords) == 0 {
			continue
		}

		var matched []string
		for _, kw := range profile.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}

		confidence := profile.BaseConfidence * float64(len(matched)) / float64(len(profile.Keywords))
		if confidence > best.Confidence {
			best = Classification{
				Intent:              profile.Intent,
				SuggestedCapability: profile.Capability,
				Confidence:          confidence,
				Reasoning:           fmt.Sprintf("matched keywords %v for %s", matched, profile.Capability),
				FastPath:            true,
			}
		}
	}

	return best
}

// ProfileFor returns the catalogue profile for a capability, or nil when the
// capability has no profile (the navigator fallback has none).
func ProfileFor(catalogue []CapabilityProfile, c models.Capability) *CapabilityProfile {
	for i := range catalogue {
		if catalogue[i].Capability == c {
			return &catalogue[i]
		}
	}
	return nil
}
