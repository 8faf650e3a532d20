// Package state provides SQLite-based workflow persistence for Compass.
package state

import (
	"io"

	"github.com/karavel-ai/compass/pkg/models"
)

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// WorkflowStore defines the persistence interface the engine writes through.
// Upsert is idempotent and keyed by correlation ID; persistence failures are
// non-fatal to a running workflow, so implementations never need to be
// transactionally coupled to execution.
type WorkflowStore interface {
	io.Closer
	Migrator

	// Upsert writes or overwrites the record keyed by correlation ID.
	Upsert(rec *models.WorkflowRecord) error
	// GetByCorrelationID returns the stored record, or (nil, nil) when
	// none exists.
	GetByCorrelationID(id string) (*models.WorkflowRecord, error)
	// ListByOrganization returns up to limit records for the organization,
	// newest first.
	ListByOrganization(organizationID string, limit int) ([]*models.WorkflowRecord, error)
	// AggregateStats computes per-organization analytics.
	AggregateStats(organizationID string) (*Stats, error)
}

// Compile-time verification that DB implements the store interfaces.
var (
	_ WorkflowStore = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
)
