package models

// Capability identifies one of the specialized executors the engine can
// dispatch to. The set is closed: the classifier only ever suggests one of
// these values, and the dispatcher registers exactly one executor per value.
type Capability string

const (
	// CapabilityNavigator is the default fallback handler. It answers
	// general questions and guides the user toward a more specific
	// capability. It never hard-fails.
	CapabilityNavigator Capability = "navigator"
	// CapabilityDocGenerator drafts business documents.
	CapabilityDocGenerator Capability = "doc_generator"
	// CapabilityGrantMatcher matches the organization against grant programs.
	CapabilityGrantMatcher Capability = "grant_matcher"
	// CapabilityChinaSource finds suppliers on Chinese wholesale platforms.
	CapabilityChinaSource Capability = "china_source"
	// CapabilitySEOAudit runs a search-optimization audit.
	CapabilitySEOAudit Capability = "seo_audit"
	// CapabilityLedger reconciles bookkeeping entries.
	CapabilityLedger Capability = "ledger"
	// CapabilityLocalization translates and localizes content.
	CapabilityLocalization Capability = "localization"
	// CapabilitySafetyLogger records safety concerns for review.
	CapabilitySafetyLogger Capability = "safety_logger"
)

// AllCapabilities lists every known capability in a stable order.
var AllCapabilities = []Capability{
	CapabilityNavigator,
	CapabilityDocGenerator,
	CapabilityGrantMatcher,
	CapabilityChinaSource,
	CapabilitySEOAudit,
	CapabilityLedger,
	CapabilityLocalization,
	CapabilitySafetyLogger,
}

// Valid returns true if the capability is a known value.
func (c Capability) Valid() bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// Intent is the classified category of a user request.
type Intent string

const (
	IntentDocumentGeneration Intent = "document_generation"
	IntentGrantMatching      Intent = "grant_matching"
	IntentProductSourcing    Intent = "product_sourcing"
	IntentSEOAudit           Intent = "seo_audit"
	IntentBookkeeping        Intent = "bookkeeping"
	IntentLocalization       Intent = "localization"
	IntentSafetyConcern      Intent = "safety_concern"
	IntentGeneralHelp        Intent = "general_help"
	// IntentUnknown is emitted when neither classification tier can
	// place the request.
	IntentUnknown Intent = "unknown"
)

// AllIntents lists every known intent in a stable order.
var AllIntents = []Intent{
	IntentDocumentGeneration,
	IntentGrantMatching,
	IntentProductSourcing,
	IntentSEOAudit,
	IntentBookkeeping,
	IntentLocalization,
	IntentSafetyConcern,
	IntentGeneralHelp,
	IntentUnknown,
}

// Valid returns true if the intent is a known value.
func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// ExecutionResult is the normalized payload every executor returns to the
// dispatcher. Executors report expected failure modes (validation, rate
// limiting, downstream errors) through Success/Output instead of returning
// an error.
type ExecutionResult struct {
	// Success indicates whether the executor's work completed.
	Success bool `json:"success"`
	// Output is the human-readable summary of what happened. On failure
	// it carries the failure description.
	Output string `json:"output"`
	// AgentUsed names the underlying agent or service that did the work.
	AgentUsed string `json:"agent_used"`
	// Identifiers holds optional capability-specific identifiers, such
	// as a generated document ID or a sourcing request ID.
	Identifiers map[string]any `json:"identifiers,omitempty"`
}
