package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/meridian-group/decision-cli/internal/db"
	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

// PostgresStore implements Store against a pgx pool. Rows hold the same
// JSON documents the SQLite backend uses, in jsonb columns.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects a pgx pool to the given URL and returns a store
// backed by it.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS learned_rules (
	id         TEXT PRIMARY KEY,
	confidence DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS role_stats (
	role_id TEXT PRIMARY KEY,
	data    JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS call_log (
	id        BIGSERIAL PRIMARY KEY,
	role_id   TEXT NOT NULL,
	provider  TEXT NOT NULL,
	data      JSONB NOT NULL,
	logged_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id          TEXT PRIMARY KEY,
	data        JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_call_log_role ON call_log(role_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, run *model.WorkflowRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, status, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		run.ID, string(run.Status), data, run.CreatedAt.UTC(), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save session")
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.WorkflowRun, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM sessions WHERE id = $1`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("postgres: session %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	var run model.WorkflowRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal session")
	}
	return &run, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.WorkflowRun, error) {
	query := `SELECT data FROM sessions`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []model.WorkflowRun
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		var run model.WorkflowRun
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal session")
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete session %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: session %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	return s.upsertJSON(ctx, "feedback", rec.ID, rec)
}

func (s *PostgresStore) ListFeedback(ctx context.Context) ([]model.FeedbackRecord, error) {
	return listPGJSON[model.FeedbackRecord](ctx, s, `SELECT data FROM feedback ORDER BY created_at`)
}

func (s *PostgresStore) SaveRule(ctx context.Context, rule model.LearnedRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rule")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO learned_rules (id, confidence, data) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET confidence = EXCLUDED.confidence, data = EXCLUDED.data`,
		rule.ID, rule.Confidence, data,
	)
	return eris.Wrap(err, "postgres: save rule")
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]model.LearnedRule, error) {
	return listPGJSON[model.LearnedRule](ctx, s, `SELECT data FROM learned_rules ORDER BY confidence DESC`)
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM learned_rules WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete rule %s", id)
}

func (s *PostgresStore) SaveCase(ctx context.Context, rec model.CaseRecord) error {
	return s.upsertJSON(ctx, "cases", rec.ID, rec)
}

func (s *PostgresStore) ListCases(ctx context.Context) ([]model.CaseRecord, error) {
	return listPGJSON[model.CaseRecord](ctx, s, `SELECT data FROM cases ORDER BY created_at`)
}

func (s *PostgresStore) SaveRoleStats(ctx context.Context, stats model.RoleStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal role stats")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO role_stats (role_id, data) VALUES ($1, $2)
		 ON CONFLICT (role_id) DO UPDATE SET data = EXCLUDED.data`,
		stats.RoleID, data,
	)
	return eris.Wrap(err, "postgres: save role stats")
}

func (s *PostgresStore) ListRoleStats(ctx context.Context) ([]model.RoleStats, error) {
	return listPGJSON[model.RoleStats](ctx, s, `SELECT data FROM role_stats`)
}

func (s *PostgresStore) AppendCallLog(ctx context.Context, attempts []model.CallAttempt) error {
	for _, a := range attempts {
		data, err := json.Marshal(a)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal call attempt")
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO call_log (role_id, provider, data, logged_at) VALUES ($1, $2, $3, $4)`,
			a.RoleID, a.Provider, data, a.Timestamp.UTC(),
		); err != nil {
			return eris.Wrap(err, "postgres: append call log")
		}
	}
	return nil
}

func (s *PostgresStore) SaveDeadLetter(ctx context.Context, dl resilience.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dead letter")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letters (id, data, occurred_at) VALUES ($1, $2, $3)`,
		dl.ID, data, dl.OccurredAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save dead letter")
}

func (s *PostgresStore) ListDeadLetters(ctx context.Context, limit int) ([]resilience.DeadLetter, error) {
	query := `SELECT data FROM dead_letters ORDER BY occurred_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dead letters")
	}
	defer rows.Close()

	var out []resilience.DeadLetter
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dead letter")
		}
		var dl resilience.DeadLetter
		if err := json.Unmarshal(data, &dl); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dead letter")
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

func (s *PostgresStore) upsertJSON(ctx context.Context, table, id string, v any) error {
	if id == "" {
		id = uuid.New().String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal %s", table)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (id, data) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		id, data,
	)
	return eris.Wrapf(err, "postgres: upsert %s", table)
}

func listPGJSON[T any](ctx context.Context, s *PostgresStore, query string) ([]T, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan")
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
