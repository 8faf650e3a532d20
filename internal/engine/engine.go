// Package engine sequences classification, cost gating, approval, and
// dispatch as a small fixed workflow graph. Each node reads the current
// workflow record, returns a partial update, and the engine merges it back
// and persists before evaluating the next transition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/karavel-ai/compass/internal/approval"
	"github.com/karavel-ai/compass/internal/classifier"
	"github.com/karavel-ai/compass/internal/cost"
	"github.com/karavel-ai/compass/internal/dispatch"
	"github.com/karavel-ai/compass/internal/state"
	"github.com/karavel-ai/compass/pkg/models"
)

// ErrNotFound indicates no persisted workflow exists for a correlation ID.
var ErrNotFound = errors.New("workflow not found")

// ErrNotAwaitingApproval indicates a Resume call against a workflow that is
// not parked at the approval gate.
var ErrNotAwaitingApproval = errors.New("workflow is not awaiting approval")

// metadataExtractedParams is the metadata key carrying the classifier's
// parameter extraction across the approval suspend/resume boundary.
const metadataExtractedParams = "extracted_params"

// Engine runs the workflow graph: routing -> cost_check ->
// {hitl_checkpoint | execute | end}. One Engine serves many concurrent
// workflow instances; per-instance state lives entirely on the record.
type Engine struct {
	classifier *classifier.Classifier
	estimator  *cost.Estimator
	gate       *approval.Gate
	dispatcher *dispatch.Dispatcher
	store      state.WorkflowStore
	logger     *DebugLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches a workflow store. Without one the engine runs purely
// in memory and the audit trail is lost on exit; the suspend approval
// policy also requires a store, since Resume reloads the parked record
// from it.
func WithStore(store state.WorkflowStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLogger attaches a debug logger.
func WithLogger(logger *DebugLogger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine over the four node implementations.
func New(c *classifier.Classifier, est *cost.Estimator, gate *approval.Gate, d *dispatch.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		classifier: c,
		estimator:  est,
		gate:       gate,
		dispatcher: d,
		logger:     NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one workflow for a user query. It always returns a
// well-formed record; the error is non-nil only for programming errors
// such as a capability with no registered executor. Every recoverable
// failure (classification, rejection, executor crash, persistence) is
// captured as workflow state instead.
//
// When the approval gate's policy is suspend, Run returns a record parked
// at awaiting_approval; Resume later re-enters the graph.
func (e *Engine) Run(ctx context.Context, userQuery, organizationID, correlationID string) (*models.WorkflowRecord, error) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	rec := models.NewWorkflowRecord(correlationID, organizationID, userQuery)
	e.persist(rec)
	e.logger.Log("workflow %s started for org %s", correlationID, organizationID)

	// routing
	rec = Apply(rec, e.routingNode(ctx, rec))
	e.persist(rec)

	// cost_check
	rec = Apply(rec, e.costCheckNode(rec))
	e.persist(rec)

	switch e.nextAfterCostCheck(rec) {
	case nodeEnd:
		rec = Apply(rec, terminalFailure("budget vetoed: estimated cost not approved"))
		e.persist(rec)
		e.logger.Log("workflow %s vetoed at cost check", correlationID)
		return rec, nil

	case nodeHITL:
		parked, done, err := e.approvalNode(ctx, rec)
		if err != nil {
			return rec, err
		}
		rec = parked
		if done {
			// Suspended or rejected; either way the caller gets the
			// record as it stands.
			return rec, nil
		}

	case nodeExecute:
		// Fall through to dispatch.
	}

	return e.executeNode(ctx, rec)
}

// Resume re-enters a workflow parked at the approval gate. The decision is
// applied to the persisted record: a rejection terminates the workflow, an
// approval continues the graph at the node after the gate.
func (e *Engine) Resume(ctx context.Context, correlationID string, decision approval.Decision) (*models.WorkflowRecord, error) {
	if e.store == nil {
		return nil, fmt.Errorf("resume %s: no store configured", correlationID)
	}

	rec, err := e.store.GetByCorrelationID(correlationID)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", correlationID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, correlationID)
	}
	if rec.Status != models.StatusAwaitingApproval {
		return rec, fmt.Errorf("%w: %s is %s", ErrNotAwaitingApproval, correlationID, rec.Status)
	}

	rec = e.applyDecision(rec, decision)
	e.persist(rec)
	if rec.Terminal() {
		e.logger.Log("workflow %s rejected at approval gate", correlationID)
		return rec, nil
	}

	return e.executeNode(ctx, rec)
}

// node identifies the target of the conditional edge after cost_check.
type node int

const (
	nodeExecute node = iota
	nodeHITL
	nodeEnd
)

// nextAfterCostCheck is the graph's only conditional edge. It is a pure
// function of the record: identical records always route the same way.
func (e *Engine) nextAfterCostCheck(rec *models.WorkflowRecord) node {
	if !rec.BudgetApproved {
		return nodeEnd
	}
	if rec.RequiresApproval && !rec.Approved {
		return nodeHITL
	}
	return nodeExecute
}

// routingNode runs the classifier and stages the record for cost check.
func (e *Engine) routingNode(ctx context.Context, rec *models.WorkflowRecord) Patch {
	c := e.classifier.Classify(ctx, rec.UserQuery, rec.CorrelationID)
	e.logger.Log("workflow %s routed to %s (intent %s, confidence %.2f)",
		rec.CorrelationID, c.SuggestedCapability, c.Intent, c.Confidence)

	metadata := map[string]any{
		"fast_path": c.FastPath,
	}
	if len(c.ExtractedParams) > 0 {
		metadata[metadataExtractedParams] = c.ExtractedParams
	}

	return Patch{
		Intent:            intentPtr(c.Intent),
		Confidence:        floatPtr(c.Confidence),
		CurrentCapability: capabilityPtr(c.SuggestedCapability),
		RoutingReason:     strPtr(c.Reasoning),
		Status:            statusPtr(models.StatusCostCheck),
		Metadata:          metadata,
	}
}

// costCheckNode runs the estimator. It decides the approval branch, not
// affordability; budget-cap enforcement belongs to the executors.
func (e *Engine) costCheckNode(rec *models.WorkflowRecord) Patch {
	est := e.estimator.Estimate(rec.CurrentCapability, rec.UserQuery)
	e.logger.Log("workflow %s estimated at $%.4f (approval required: %v)",
		rec.CorrelationID, est.EstimatedCost, est.RequiresApproval)

	return Patch{
		EstimatedCost:    floatPtr(est.EstimatedCost),
		RequiresApproval: boolPtr(est.RequiresApproval),
		BudgetApproved:   boolPtr(est.BudgetApproved),
	}
}

// approvalNode parks the record at the gate and resolves the decision.
// The awaiting_approval status is persisted before blocking so a crash
// while waiting leaves a recoverable record. The returned done flag is
// true when the caller should stop walking the graph (suspended or
// rejected).
func (e *Engine) approvalNode(ctx context.Context, rec *models.WorkflowRecord) (*models.WorkflowRecord, bool, error) {
	rec = Apply(rec, Patch{Status: statusPtr(models.StatusAwaitingApproval)})
	e.persist(rec)

	decision, err := e.gate.Await(ctx, approval.Request{
		CorrelationID: rec.CorrelationID,
		Capability:    string(rec.CurrentCapability),
		UserQuery:     rec.UserQuery,
		EstimatedCost: rec.EstimatedCost,
		RequestedAt:   time.Now().UTC(),
	})
	if errors.Is(err, approval.ErrSuspended) {
		if e.store == nil {
			// A parked record with no store could never be resumed.
			rec = Apply(rec, terminalFailure("approval suspended but no store configured to resume from"))
			return rec, true, nil
		}
		e.logger.Log("workflow %s suspended awaiting approval", rec.CorrelationID)
		return rec, true, nil
	}
	if err != nil {
		// Context cancellation while waiting on a reviewer.
		rec = Apply(rec, terminalFailure(fmt.Sprintf("approval wait aborted: %v", err)))
		e.persist(rec)
		return rec, true, nil
	}

	rec = e.applyDecision(rec, decision)
	e.persist(rec)
	return rec, rec.Terminal(), nil
}

// applyDecision records an approval verdict on the record. Rejections are
// terminal.
func (e *Engine) applyDecision(rec *models.WorkflowRecord, decision approval.Decision) *models.WorkflowRecord {
	if !decision.Approved {
		reason := decision.Feedback
		if reason == "" {
			reason = "request rejected by reviewer"
		}
		rec = Apply(rec, Patch{
			Approved:         boolPtr(false),
			ApprovalFeedback: strPtr(decision.Feedback),
		})
		return Apply(rec, terminalFailure(fmt.Sprintf("approval rejected: %s", reason)))
	}

	return Apply(rec, Patch{
		Approved:         boolPtr(true),
		ApprovalFeedback: strPtr(decision.Feedback),
	})
}

// executeNode dispatches to the routed capability and drives the record to
// its terminal status.
func (e *Engine) executeNode(ctx context.Context, rec *models.WorkflowRecord) (*models.WorkflowRecord, error) {
	rec = Apply(rec, Patch{Status: statusPtr(models.StatusExecuting)})
	e.persist(rec)

	result, err := e.dispatcher.Dispatch(ctx, rec.CurrentCapability, dispatch.Task{
		UserQuery:       rec.UserQuery,
		OrganizationID:  rec.OrganizationID,
		CorrelationID:   rec.CorrelationID,
		ExtractedParams: extractedParams(rec),
	})
	if err != nil {
		// Unrecognized capability: structurally impossible with the closed
		// enum, so let it surface as a hard failure.
		return rec, err
	}

	payload := map[string]any{
		"success":    result.Success,
		"output":     result.Output,
		"agent_used": result.AgentUsed,
	}
	if len(result.Identifiers) > 0 {
		payload["identifiers"] = result.Identifiers
	}

	patch := Patch{
		AppendHistory: []models.Capability{rec.CurrentCapability},
		Results:       map[string]any{string(rec.CurrentCapability): payload},
		ActualCost:    floatPtr(rec.EstimatedCost),
		CompletedAt:   timePtr(time.Now().UTC()),
	}

	if result.Success {
		patch.Status = statusPtr(models.StatusCompleted)
		patch.FinalOutput = strPtr(result.Output)
		e.logger.Log("workflow %s completed via %s", rec.CorrelationID, result.AgentUsed)
	} else {
		patch.Status = statusPtr(models.StatusFailed)
		patch.Error = strPtr(strings.TrimPrefix(result.Output, "Error: "))
		e.logger.Log("workflow %s failed: %s", rec.CorrelationID, result.Output)
	}

	rec = Apply(rec, patch)
	e.persist(rec)
	return rec, nil
}

// extractedParams pulls the classifier's parameter extraction back out of
// metadata. The map survives suspend/resume because metadata is persisted.
func extractedParams(rec *models.WorkflowRecord) map[string]any {
	raw, ok := rec.Metadata[metadataExtractedParams]
	if !ok {
		return nil
	}
	params, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return params
}

// terminalFailure builds the patch that moves a record to failed.
func terminalFailure(reason string) Patch {
	return Patch{
		Status:      statusPtr(models.StatusFailed),
		Error:       strPtr(reason),
		CompletedAt: timePtr(time.Now().UTC()),
	}
}

// persist writes the record through the store. Persistence failures are
// logged and swallowed: losing a slice of audit trail is preferred over
// blocking user-facing execution.
func (e *Engine) persist(rec *models.WorkflowRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.Upsert(rec); err != nil {
		e.logger.Log("persist workflow %s: %v", rec.CorrelationID, err)
	}
}
