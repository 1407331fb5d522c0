package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetSession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM sessions WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSession(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(model.WorkflowRun{ID: "run-1", Input: "开一家奶茶店", Status: model.RunStatusCompleted})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM sessions WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	run, err := s.GetSession(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "开一家奶茶店", run.Input)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSession_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("run-1", "completed", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveSession(context.Background(), &model.WorkflowRun{
		ID:        "run-1",
		Status:    model.RunStatusCompleted,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteSession(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(model.WorkflowRun{ID: "run-1", Status: model.RunStatusCompleted})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM sessions WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("completed", 10).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	runs, err := s.ListSessions(context.Background(), SessionFilter{Status: model.RunStatusCompleted, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRule_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO learned_rules`).
		WithArgs("r1", 80.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRule(context.Background(), model.LearnedRule{ID: "r1", Text: "预算不能超过10万元", Confidence: 80})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDeadLetter_GeneratesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO dead_letters`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveDeadLetter(context.Background(), resilience.DeadLetter{
		RunID:      "run-1",
		RoleID:     "market-analyst",
		Attempts:   3,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDeadLetters_Limit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data, err := json.Marshal(resilience.DeadLetter{ID: "dl-1", RunID: "run-1"})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM dead_letters ORDER BY occurred_at DESC LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	letters, err := s.ListDeadLetters(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "run-1", letters[0].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendCallLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO call_log`).
		WithArgs("market-analyst", "anthropic", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendCallLog(context.Background(), []model.CallAttempt{
		{RoleID: "market-analyst", Provider: "anthropic", Success: true, Timestamp: time.Now()},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
