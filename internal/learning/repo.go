// Package learning persists feedback, derives rule and role-weight
// adjustments, and augments prompts for future runs.
package learning

import (
	"context"

	"github.com/meridian-group/decision-cli/internal/model"
)

// Repository is the injected persistence boundary for the learning store.
// Implementations: the SQL store and an in-memory double for tests. Every
// method failure is treated as a degraded read/write, never a run failure.
type Repository interface {
	SaveFeedback(ctx context.Context, rec model.FeedbackRecord) error
	ListFeedback(ctx context.Context) ([]model.FeedbackRecord, error)

	SaveRule(ctx context.Context, rule model.LearnedRule) error
	ListRules(ctx context.Context) ([]model.LearnedRule, error)
	DeleteRule(ctx context.Context, id string) error

	SaveCase(ctx context.Context, rec model.CaseRecord) error
	ListCases(ctx context.Context) ([]model.CaseRecord, error)

	SaveRoleStats(ctx context.Context, stats model.RoleStats) error
	ListRoleStats(ctx context.Context) ([]model.RoleStats, error)
}
