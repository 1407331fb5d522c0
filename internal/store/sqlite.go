package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS learned_rules (
	id         TEXT PRIMARY KEY,
	confidence REAL NOT NULL,
	data       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS role_stats (
	role_id TEXT PRIMARY KEY,
	data    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS call_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	role_id   TEXT NOT NULL,
	provider  TEXT NOT NULL,
	data      TEXT NOT NULL,
	logged_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id          TEXT PRIMARY KEY,
	data        TEXT NOT NULL,
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_call_log_role ON call_log(role_id);
CREATE INDEX IF NOT EXISTS idx_learned_rules_confidence ON learned_rules(confidence);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, run *model.WorkflowRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, status, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data, updated_at = excluded.updated_at`,
		run.ID, string(run.Status), string(data), run.CreatedAt.UTC(), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save session")
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.WorkflowRun, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: session %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	var run model.WorkflowRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal session")
	}
	return &run, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.WorkflowRun, error) {
	query := `SELECT data FROM sessions`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []model.WorkflowRun
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		var run model.WorkflowRun
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal session")
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete session %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: session %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	return s.insertJSON(ctx, "feedback", rec.ID, rec)
}

func (s *SQLiteStore) ListFeedback(ctx context.Context) ([]model.FeedbackRecord, error) {
	return listJSON[model.FeedbackRecord](ctx, s, `SELECT data FROM feedback ORDER BY created_at`)
}

func (s *SQLiteStore) SaveRule(ctx context.Context, rule model.LearnedRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rule")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO learned_rules (id, confidence, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET confidence = excluded.confidence, data = excluded.data`,
		rule.ID, rule.Confidence, string(data),
	)
	return eris.Wrap(err, "sqlite: save rule")
}

func (s *SQLiteStore) ListRules(ctx context.Context) ([]model.LearnedRule, error) {
	return listJSON[model.LearnedRule](ctx, s, `SELECT data FROM learned_rules ORDER BY confidence DESC`)
}

func (s *SQLiteStore) DeleteRule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM learned_rules WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete rule %s", id)
}

func (s *SQLiteStore) SaveCase(ctx context.Context, rec model.CaseRecord) error {
	return s.insertJSON(ctx, "cases", rec.ID, rec)
}

func (s *SQLiteStore) ListCases(ctx context.Context) ([]model.CaseRecord, error) {
	return listJSON[model.CaseRecord](ctx, s, `SELECT data FROM cases ORDER BY created_at`)
}

func (s *SQLiteStore) SaveRoleStats(ctx context.Context, stats model.RoleStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal role stats")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO role_stats (role_id, data) VALUES (?, ?)
		 ON CONFLICT(role_id) DO UPDATE SET data = excluded.data`,
		stats.RoleID, string(data),
	)
	return eris.Wrap(err, "sqlite: save role stats")
}

func (s *SQLiteStore) ListRoleStats(ctx context.Context) ([]model.RoleStats, error) {
	return listJSON[model.RoleStats](ctx, s, `SELECT data FROM role_stats`)
}

func (s *SQLiteStore) AppendCallLog(ctx context.Context, attempts []model.CallAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin call log tx")
	}
	defer tx.Rollback()

	for _, a := range attempts {
		data, err := json.Marshal(a)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal call attempt")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO call_log (role_id, provider, data, logged_at) VALUES (?, ?, ?, ?)`,
			a.RoleID, a.Provider, string(data), a.Timestamp.UTC(),
		); err != nil {
			return eris.Wrap(err, "sqlite: append call log")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit call log")
}

func (s *SQLiteStore) SaveDeadLetter(ctx context.Context, dl resilience.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dead letter")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, data, occurred_at) VALUES (?, ?, ?)`,
		dl.ID, string(data), dl.OccurredAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save dead letter")
}

func (s *SQLiteStore) ListDeadLetters(ctx context.Context, limit int) ([]resilience.DeadLetter, error) {
	query := `SELECT data FROM dead_letters ORDER BY occurred_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dead letters")
	}
	defer rows.Close()

	var out []resilience.DeadLetter
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dead letter")
		}
		var dl resilience.DeadLetter
		if err := json.Unmarshal([]byte(data), &dl); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dead letter")
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) insertJSON(ctx context.Context, table, id string, v any) error {
	if id == "" {
		id = uuid.New().String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s", table)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		id, string(data),
	)
	return eris.Wrapf(err, "sqlite: insert %s", table)
}

func listJSON[T any](ctx context.Context, s *SQLiteStore, query string) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan")
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
