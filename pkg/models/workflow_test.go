package models

import (
	"testing"
	"time"
)

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusCostCheck, true},
		{StatusAwaitingApproval, true},
		{StatusExecuting, true},
		{StatusCompleted, true},
		{StatusFailed, true},
		{Status("running"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if !StatusCompleted.Terminal() {
		t.Error("StatusCompleted should be terminal")
	}
	if !StatusFailed.Terminal() {
		t.Error("StatusFailed should be terminal")
	}
	for _, s := range []Status{StatusPending, StatusCostCheck, StatusAwaitingApproval, StatusExecuting} {
		if s.Terminal() {
			t.Errorf("Status %q should not be terminal", s)
		}
	}
}

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to cost_check", StatusPending, StatusCostCheck, true},
		{"cost_check to awaiting_approval", StatusCostCheck, StatusAwaitingApproval, true},
		{"cost_check to executing", StatusCostCheck, StatusExecuting, true},
		{"cost_check straight to failed", StatusCostCheck, StatusFailed, true},
		{"awaiting_approval to executing", StatusAwaitingApproval, StatusExecuting, true},
		{"executing to completed", StatusExecuting, StatusCompleted, true},
		{"executing to failed", StatusExecuting, StatusFailed, true},
		{"executing back to pending", StatusExecuting, StatusPending, false},
		{"executing back to cost_check", StatusExecuting, StatusCostCheck, false},
		{"completed is frozen", StatusCompleted, StatusFailed, false},
		{"failed is frozen", StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestNewWorkflowRecord(t *testing.T) {
	rec := NewWorkflowRecord("corr-1", "org-1", "draft a pitch deck")

	if rec.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want corr-1", rec.CorrelationID)
	}
	if rec.Status != StatusPending {
		t.Errorf("Status = %q, want pending", rec.Status)
	}
	if rec.Intent != IntentUnknown {
		t.Errorf("Intent = %q, want unknown", rec.Intent)
	}
	if rec.CurrentCapability != CapabilityNavigator {
		t.Errorf("CurrentCapability = %q, want navigator", rec.CurrentCapability)
	}
	if rec.EstimatedCost != 0 || rec.ActualCost != 0 {
		t.Error("cost fields should start zeroed")
	}
	if rec.RequiresApproval || rec.Approved || rec.BudgetApproved {
		t.Error("approval fields should start zeroed")
	}
	if rec.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
	if rec.CompletedAt != nil {
		t.Error("CompletedAt should not be set yet")
	}
	if rec.Results == nil || rec.Metadata == nil {
		t.Error("Results and Metadata maps should be initialized")
	}
}

func TestWorkflowRecordClone(t *testing.T) {
	now := time.Now().UTC()
	rec := NewWorkflowRecord("corr-2", "org-1", "query")
	rec.CapabilityHistory = []Capability{CapabilityChinaSource}
	rec.Results["china_source"] = map[string]any{"success": true}
	rec.Metadata["fast_path"] = true
	rec.CompletedAt = &now

	clone := rec.Clone()
	clone.CapabilityHistory = append(clone.CapabilityHistory, CapabilityNavigator)
	clone.Results["navigator"] = "guidance"
	clone.Metadata["fast_path"] = false
	*clone.CompletedAt = now.Add(time.Hour)

	if len(rec.CapabilityHistory) != 1 {
		t.Errorf("original history mutated: %v", rec.CapabilityHistory)
	}
	if _, ok := rec.Results["navigator"]; ok {
		t.Error("original results mutated")
	}
	if rec.Metadata["fast_path"] != true {
		t.Error("original metadata mutated")
	}
	if !rec.CompletedAt.Equal(now) {
		t.Error("original CompletedAt mutated")
	}
}

func TestCapabilityValid(t *testing.T) {
	for _, c := range AllCapabilities {
		if !c.Valid() {
			t.Errorf("capability %q should be valid", c)
		}
	}
	if Capability("time_machine").Valid() {
		t.Error("unknown capability should not be valid")
	}
}

func TestIntentValid(t *testing.T) {
	for _, i := range AllIntents {
		if !i.Valid() {
			t.Errorf("intent %q should be valid", i)
		}
	}
	if Intent("telepathy").Valid() {
		t.Error("unknown intent should not be valid")
	}
}
