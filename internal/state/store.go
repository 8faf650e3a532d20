package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/karavel-ai/compass/pkg/models"
)

// Stats aggregates per-organization workflow analytics.
type Stats struct {
	// TotalWorkflows is the number of workflows the organization has run.
	TotalWorkflows int `json:"total_workflows"`
	// CompletedCount is the number of workflows that ended completed.
	CompletedCount int `json:"completed_count"`
	// FailedCount is the number of workflows that ended failed.
	FailedCount int `json:"failed_count"`
	// TotalEstimatedCost sums estimated costs across all workflows.
	TotalEstimatedCost float64 `json:"total_estimated_cost"`
	// TotalActualCost sums actual costs across all workflows.
	TotalActualCost float64 `json:"total_actual_cost"`
	// CapabilityUsage counts workflows per routed capability.
	CapabilityUsage map[string]int `json:"capability_usage"`
}

// Upsert writes the record keyed by correlation ID. The write is
// idempotent: repeating it with the same record leaves the stored row
// unchanged, and the last write for a given key wins.
func (db *DB) Upsert(rec *models.WorkflowRecord) error {
	history, err := json.Marshal(rec.CapabilityHistory)
	if err != nil {
		return fmt.Errorf("marshal capability history: %w", err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var completedAt any
	if rec.CompletedAt != nil {
		completedAt = formatTime(*rec.CompletedAt)
	}

	_, err = db.Exec(`
		INSERT INTO workflows (
			correlation_id, organization_id, session_id, user_query,
			intent, confidence, current_capability, capability_history,
			routing_reason, results, final_output,
			estimated_cost, actual_cost, budget_approved,
			requires_approval, approved, approval_feedback,
			status, error, started_at, completed_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			intent = excluded.intent,
			confidence = excluded.confidence,
			current_capability = excluded.current_capability,
			capability_history = excluded.capability_history,
			routing_reason = excluded.routing_reason,
			results = excluded.results,
			final_output = excluded.final_output,
			estimated_cost = excluded.estimated_cost,
			actual_cost = excluded.actual_cost,
			budget_approved = excluded.budget_approved,
			requires_approval = excluded.requires_approval,
			approved = excluded.approved,
			approval_feedback = excluded.approval_feedback,
			status = excluded.status,
			error = excluded.error,
			completed_at = excluded.completed_at,
			metadata = excluded.metadata
	`,
		rec.CorrelationID, rec.OrganizationID, rec.SessionID, rec.UserQuery,
		string(rec.Intent), rec.Confidence, string(rec.CurrentCapability), string(history),
		rec.RoutingReason, string(results), rec.FinalOutput,
		rec.EstimatedCost, rec.ActualCost, rec.BudgetApproved,
		rec.RequiresApproval, rec.Approved, rec.ApprovalFeedback,
		string(rec.Status), rec.Error, formatTime(rec.StartedAt), completedAt, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("upsert workflow: %w", err)
	}
	return nil
}

// GetByCorrelationID retrieves one workflow record. Returns (nil, nil) when
// no record exists for the ID.
func (db *DB) GetByCorrelationID(id string) (*models.WorkflowRecord, error) {
	row := db.QueryRow(`
		SELECT correlation_id, organization_id, session_id, user_query,
			intent, confidence, current_capability, capability_history,
			routing_reason, results, final_output,
			estimated_cost, actual_cost, budget_approved,
			requires_approval, approved, approval_feedback,
			status, error, started_at, completed_at, metadata
		FROM workflows WHERE correlation_id = ?
	`, id)

	rec, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return rec, nil
}

// ListByOrganization returns up to limit workflows for the organization,
// ordered by start time descending. A non-positive limit returns all.
func (db *DB) ListByOrganization(organizationID string, limit int) ([]*models.WorkflowRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded.
	}

	rows, err := db.Query(`
		SELECT correlation_id, organization_id, session_id, user_query,
			intent, confidence, current_capability, capability_history,
			routing_reason, results, final_output,
			estimated_cost, actual_cost, budget_approved,
			requires_approval, approved, approval_feedback,
			status, error, started_at, completed_at, metadata
		FROM workflows
		WHERE organization_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var records []*models.WorkflowRecord
	for rows.Next() {
		rec, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}
	return records, nil
}

// AggregateStats computes per-organization analytics over all stored
// workflows.
func (db *DB) AggregateStats(organizationID string) (*Stats, error) {
	stats := &Stats{CapabilityUsage: make(map[string]int)}

	row := db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(estimated_cost), 0),
			COALESCE(SUM(actual_cost), 0)
		FROM workflows WHERE organization_id = ?
	`, organizationID)
	err := row.Scan(
		&stats.TotalWorkflows,
		&stats.CompletedCount,
		&stats.FailedCount,
		&stats.TotalEstimatedCost,
		&stats.TotalActualCost,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate totals: %w", err)
	}

	rows, err := db.Query(`
		SELECT current_capability, COUNT(*)
		FROM workflows
		WHERE organization_id = ?
		GROUP BY current_capability
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("aggregate capability usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var capability string
		var count int
		if err := rows.Scan(&capability, &count); err != nil {
			return nil, fmt.Errorf("scan capability usage: %w", err)
		}
		stats.CapabilityUsage[capability] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate capability usage: %w", err)
	}

	return stats, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanWorkflow reads one workflow row into a record.
func scanWorkflow(s scanner) (*models.WorkflowRecord, error) {
	var rec models.WorkflowRecord
	var intent, capability, status string
	var history, results, metadata, routingReason, finalOutput, approvalFeedback, errText sql.NullString
	var startedAt string
	var completedAt sql.NullString

	err := s.Scan(
		&rec.CorrelationID, &rec.OrganizationID, &rec.SessionID, &rec.UserQuery,
		&intent, &rec.Confidence, &capability, &history,
		&routingReason, &results, &finalOutput,
		&rec.EstimatedCost, &rec.ActualCost, &rec.BudgetApproved,
		&rec.RequiresApproval, &rec.Approved, &approvalFeedback,
		&status, &errText, &startedAt, &completedAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	rec.Intent = models.Intent(intent)
	rec.CurrentCapability = models.Capability(capability)
	rec.Status = models.Status(status)
	rec.RoutingReason = routingReason.String
	rec.FinalOutput = finalOutput.String
	rec.ApprovalFeedback = approvalFeedback.String
	rec.Error = errText.String

	if history.Valid && history.String != "" {
		if err := json.Unmarshal([]byte(history.String), &rec.CapabilityHistory); err != nil {
			return nil, fmt.Errorf("unmarshal capability history: %w", err)
		}
	}
	if results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &rec.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	rec.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	rec.CompletedAt = parseNullableTime(completedAt)

	return &rec, nil
}
