package engine

import (
	"time"

	"github.com/karavel-ai/compass/pkg/models"
)

// Patch is the partial update a graph node returns. Nil pointer fields are
// untouched; the merge rules per field are:
//
//   - scalar fields: last write wins
//   - Results, Metadata: shallow key union (new keys added, existing keys
//     overwritten, no deep merge)
//   - AppendHistory: appended to the capability history, never replacing it
//
// Status writes additionally respect monotonicity: a write that would move
// the record backward in the pipeline is dropped.
type Patch struct {
	Intent            *models.Intent
	Confidence        *float64
	CurrentCapability *models.Capability
	AppendHistory     []models.Capability
	RoutingReason     *string
	Results           map[string]any
	FinalOutput       *string
	EstimatedCost     *float64
	ActualCost        *float64
	BudgetApproved    *bool
	RequiresApproval  *bool
	Approved          *bool
	ApprovalFeedback  *string
	Status            *models.Status
	Error             *string
	CompletedAt       *time.Time
	Metadata          map[string]any
}

// Apply merges a patch into a record and returns the updated copy. The
// input record is never mutated; nodes always see a consistent snapshot.
func Apply(rec *models.WorkflowRecord, patch Patch) *models.WorkflowRecord {
	next := rec.Clone()

	if patch.Intent != nil {
		next.Intent = *patch.Intent
	}
	if patch.Confidence != nil {
		next.Confidence = clamp01(*patch.Confidence)
	}
	if patch.CurrentCapability != nil {
		next.CurrentCapability = *patch.CurrentCapability
	}
	if len(patch.AppendHistory) > 0 {
		next.CapabilityHistory = append(next.CapabilityHistory, patch.AppendHistory...)
	}
	if patch.RoutingReason != nil {
		next.RoutingReason = *patch.RoutingReason
	}
	if len(patch.Results) > 0 {
		next.Results = shallowUnion(next.Results, patch.Results)
	}
	if patch.FinalOutput != nil {
		next.FinalOutput = *patch.FinalOutput
	}
	if patch.EstimatedCost != nil && *patch.EstimatedCost >= 0 {
		next.EstimatedCost = *patch.EstimatedCost
	}
	if patch.ActualCost != nil && *patch.ActualCost >= 0 {
		next.ActualCost = *patch.ActualCost
	}
	if patch.BudgetApproved != nil {
		next.BudgetApproved = *patch.BudgetApproved
	}
	if patch.RequiresApproval != nil {
		next.RequiresApproval = *patch.RequiresApproval
	}
	if patch.Approved != nil {
		next.Approved = *patch.Approved
	}
	if patch.ApprovalFeedback != nil {
		next.ApprovalFeedback = *patch.ApprovalFeedback
	}
	if patch.Status != nil && next.Status.CanTransitionTo(*patch.Status) {
		next.Status = *patch.Status
	}
	if patch.Error != nil {
		next.Error = *patch.Error
	}
	if patch.CompletedAt != nil && next.CompletedAt == nil {
		t := *patch.CompletedAt
		next.CompletedAt = &t
	}
	if len(patch.Metadata) > 0 {
		next.Metadata = shallowUnion(next.Metadata, patch.Metadata)
	}

	return next
}

// shallowUnion merges src into a copy of dst one key deep. Nested maps are
// replaced wholesale, not merged.
func shallowUnion(dst, src map[string]any) map[string]any {
	merged := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		merged[k] = v
	}
	for k, v := range src {
		merged[k] = v
	}
	return merged
}

// clamp01 bounds a confidence value to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Pointer helpers for building patches.

func intentPtr(i models.Intent) *models.Intent { return &i }

func capabilityPtr(c models.Capability) *models.Capability { return &c }

func statusPtr(s models.Status) *models.Status { return &s }

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }
