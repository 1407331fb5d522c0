// Package store persists sessions, feedback, learned rules, the provider
// call log and dead letters. Two backends exist: SQLite (default) and
// Postgres.
package store

import (
	"context"

	"github.com/meridian-group/decision-cli/internal/learning"
	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store is the persistence interface for the decision pipeline. It also
// satisfies learning.Repository so the learning store can be wired directly
// against it.
type Store interface {
	learning.Repository

	// Sessions (persisted WorkflowRun snapshots)
	SaveSession(ctx context.Context, run *model.WorkflowRun) error
	GetSession(ctx context.Context, id string) (*model.WorkflowRun, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.WorkflowRun, error)
	DeleteSession(ctx context.Context, id string) error

	// Call log (append-only)
	AppendCallLog(ctx context.Context, attempts []model.CallAttempt) error

	// Dead letters (exhausted fallback chains)
	SaveDeadLetter(ctx context.Context, dl resilience.DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]resilience.DeadLetter, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
