// Package approval implements the human-in-the-loop checkpoint for
// high-stakes capabilities. The gate blocks a workflow between cost check
// and dispatch until a decision is recorded.
package approval

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuspended is returned by Await when the gate's policy defers the
// decision to a later Resume call. The engine persists the workflow as
// awaiting_approval and returns control to the caller.
var ErrSuspended = errors.New("approval suspended awaiting external decision")

// Policy selects how the gate resolves approval requests.
type Policy int

const (
	// PolicyAuto approves every request immediately. This is the
	// reference stand-in for real human review.
	PolicyAuto Policy = iota
	// PolicyInteractive blocks until a reviewer submits a decision
	// through SubmitDecision, typically from a CLI prompt.
	PolicyInteractive
	// PolicySuspend persists the workflow and returns; a separate entry
	// point later supplies the decision and re-enters the pipeline.
	PolicySuspend
)

// String returns a human-readable representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyAuto:
		return "auto"
	case PolicyInteractive:
		return "interactive"
	case PolicySuspend:
		return "suspend"
	default:
		return "unknown"
	}
}

// AutoApprovalFeedback marks decisions produced by the auto policy so the
// audit trail shows no human actually looked at the request.
const AutoApprovalFeedback = "auto-approved: no human reviewer configured"

// Request asks a reviewer to look at a workflow before execution.
type Request struct {
	// CorrelationID identifies the workflow awaiting review.
	CorrelationID string
	// Capability is the high-stakes executor the workflow targets.
	Capability string
	// UserQuery is the original request text, shown to the reviewer.
	UserQuery string
	// EstimatedCost is the projected cost in USD.
	EstimatedCost float64
	// RequestedAt is when the gate was entered.
	RequestedAt time.Time
}

// Decision is a reviewer's verdict on a request.
type Decision struct {
	// CorrelationID identifies the workflow being decided.
	CorrelationID string
	// Approved indicates whether execution may proceed.
	Approved bool
	// Feedback carries the reviewer's note. Rejections should explain why.
	Feedback string
}

// Gate tracks pending approval requests and routes decisions to the
// workflows waiting on them. A single Gate serves all concurrent workflow
// instances; each request is keyed by correlation ID.
type Gate struct {
	policy    Policy
	pending   map[string]chan Decision
	requestCh chan Request
	mu        sync.RWMutex
}

// NewGate creates a Gate with the given policy.
func NewGate(policy Policy) *Gate {
	return &Gate{
		policy:    policy,
		pending:   make(map[string]chan Decision),
		requestCh: make(chan Request, 10),
	}
}

// Policy returns the gate's configured policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// RequestCh returns a read-only channel carrying approval requests.
// Interactive frontends listen here to prompt the reviewer.
func (g *Gate) RequestCh() <-chan Request {
	return g.requestCh
}

// Await resolves an approval request according to the gate's policy.
// Under PolicyAuto it approves immediately. Under PolicyInteractive it
// publishes the request and blocks until SubmitDecision or context
// cancellation. Under PolicySuspend it returns ErrSuspended so the engine
// can park the workflow.
func (g *Gate) Await(ctx context.Context, req Request) (Decision, error) {
	switch g.policy {
	case PolicyAuto:
		return Decision{
			CorrelationID: req.CorrelationID,
			Approved:      true,
			Feedback:      AutoApprovalFeedback,
		}, nil

	case PolicySuspend:
		return Decision{}, ErrSuspended
	}

	// Interactive path: register, publish, wait.
	decisionCh := make(chan Decision, 1)

	g.mu.Lock()
	g.pending[req.CorrelationID] = decisionCh
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, req.CorrelationID)
		g.mu.Unlock()
	}()

	select {
	case g.requestCh <- req:
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}

	select {
	case decision := <-decisionCh:
		return decision, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// SubmitDecision delivers a reviewer's verdict to the workflow waiting on
// it. Decisions for unknown correlation IDs are dropped; the suspend path
// goes through the engine's Resume entry point instead.
func (g *Gate) SubmitDecision(decision Decision) {
	g.mu.RLock()
	ch, exists := g.pending[decision.CorrelationID]
	g.mu.RUnlock()

	if exists {
		select {
		case ch <- decision:
		default:
			// Decision already submitted.
		}
	}
}

// HasPending returns true if a workflow is waiting on a decision for the
// given correlation ID.
func (g *Gate) HasPending(correlationID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.pending[correlationID]
	return exists
}
