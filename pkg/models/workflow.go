package models

import "time"

// Status represents the current state of a workflow.
// Transitions are monotonic: pending -> cost_check -> (awaiting_approval ->)
// executing -> completed | failed. Once a terminal status is reached the
// record never changes again.
type Status string

const (
	// StatusPending indicates the workflow was created but classification
	// has not run yet.
	StatusPending Status = "pending"
	// StatusCostCheck indicates the cost estimator is evaluating the request.
	StatusCostCheck Status = "cost_check"
	// StatusAwaitingApproval indicates the workflow is paused for a human
	// decision.
	StatusAwaitingApproval Status = "awaiting_approval"
	// StatusExecuting indicates the dispatched executor is running.
	StatusExecuting Status = "executing"
	// StatusCompleted indicates the workflow finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the workflow finished with an error.
	StatusFailed Status = "failed"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCostCheck, StatusAwaitingApproval,
		StatusExecuting, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses along the pipeline for monotonicity checks.
// Terminal statuses share the highest rank since exactly one is reachable.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusCostCheck:
		return 1
	case StatusAwaitingApproval:
		return 2
	case StatusExecuting:
		return 3
	case StatusCompleted, StatusFailed:
		return 4
	default:
		return -1
	}
}

// CanTransitionTo returns true if moving from s to next does not take the
// record backward in the pipeline.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// WorkflowRecord is the unit of state for one user request. It is created
// by the engine entry point, mutated exclusively by graph nodes returning
// patches, and persisted after every node transition.
type WorkflowRecord struct {
	// CorrelationID is the immutable primary key tying together all state
	// and log entries for this run.
	CorrelationID string `json:"correlation_id"`
	// OrganizationID scopes the record to a tenant. Immutable once set.
	OrganizationID string `json:"organization_id,omitempty"`
	// SessionID optionally ties the record to a user session.
	SessionID string `json:"session_id,omitempty"`
	// UserQuery is the free-text request that started the workflow.
	UserQuery string `json:"user_query"`
	// Intent is the classified category. Set once by the classifier.
	Intent Intent `json:"intent"`
	// Confidence is the classifier's confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// CurrentCapability identifies the executor the workflow targets.
	CurrentCapability Capability `json:"current_capability"`
	// CapabilityHistory records every executor invocation, append-only.
	CapabilityHistory []Capability `json:"capability_history,omitempty"`
	// RoutingReason is the human-readable justification for the routing.
	RoutingReason string `json:"routing_reason,omitempty"`
	// Results maps capability -> result payload. Keys accumulate; a key is
	// never removed, only overwritten by a later run of the same capability.
	Results map[string]any `json:"results,omitempty"`
	// FinalOutput is the terminal user-facing text, set exactly once on
	// successful completion.
	FinalOutput string `json:"final_output,omitempty"`
	// EstimatedCost is the projected cost in USD. Never negative.
	EstimatedCost float64 `json:"estimated_cost"`
	// ActualCost is the realized cost in USD. Never negative.
	ActualCost float64 `json:"actual_cost"`
	// BudgetApproved reports the cost estimator's verdict. A false value
	// is a terminal veto: no executor runs.
	BudgetApproved bool `json:"budget_approved"`
	// RequiresApproval is true when the capability is high-stakes and a
	// human must look at the request before execution.
	RequiresApproval bool `json:"requires_approval"`
	// Approved records the human decision, meaningful only when
	// RequiresApproval is true.
	Approved bool `json:"approved"`
	// ApprovalFeedback carries the reviewer's note, if any.
	ApprovalFeedback string `json:"approval_feedback,omitempty"`
	// Status is the workflow's position in the pipeline.
	Status Status `json:"status"`
	// Error explains the failure when Status is failed.
	Error string `json:"error,omitempty"`
	// StartedAt is when the workflow was created. Immutable.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is set once, when a terminal status is reached.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Metadata holds classifier diagnostics and similar side information.
	// Updates are shallow-merged.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewWorkflowRecord creates a pending record with cost and approval fields
// zeroed. The caller supplies the correlation ID; the engine generates one
// when it is empty.
func NewWorkflowRecord(correlationID, organizationID, userQuery string) *WorkflowRecord {
	return &WorkflowRecord{
		CorrelationID:     correlationID,
		OrganizationID:    organizationID,
		UserQuery:         userQuery,
		Intent:            IntentUnknown,
		CurrentCapability: CapabilityNavigator,
		Status:            StatusPending,
		StartedAt:         time.Now().UTC(),
		Results:           make(map[string]any),
		Metadata:          make(map[string]any),
	}
}

// Terminal returns true if the record has reached completed or failed.
func (r *WorkflowRecord) Terminal() bool {
	return r.Status.Terminal()
}

// Clone returns a deep copy of the record. Maps and the history slice are
// copied so that mutating the clone never reaches back into the original.
// Result payload values themselves are shared; nodes treat payloads as
// immutable once stored.
func (r *WorkflowRecord) Clone() *WorkflowRecord {
	clone := *r
	if r.CapabilityHistory != nil {
		clone.CapabilityHistory = append([]Capability(nil), r.CapabilityHistory...)
	}
	if r.Results != nil {
		clone.Results = make(map[string]any, len(r.Results))
		for k, v := range r.Results {
			clone.Results[k] = v
		}
	}
	if r.Metadata != nil {
		clone.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}
