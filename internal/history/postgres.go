package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfelix/quibble/internal/session"
)

// Postgres implements the history index against a shared database,
// selected by the history_dsn config key. Useful when several machines
// should see one session history.
type Postgres struct {
	pool *pgxpool.Pool
}

var pgStatements = []string{
	`CREATE TABLE IF NOT EXISTS quibble_sessions (
	  id TEXT PRIMARY KEY,
	  input_file TEXT NOT NULL,
	  output_file TEXT NOT NULL,
	  started_at TIMESTAMPTZ NOT NULL,
	  completed_at TIMESTAMPTZ,
	  status TEXT NOT NULL,
	  rounds INTEGER NOT NULL DEFAULT 0,
	  issues_raised INTEGER NOT NULL DEFAULT 0,
	  issues_resolved INTEGER NOT NULL DEFAULT 0,
	  critical_unresolved INTEGER NOT NULL DEFAULT 0,
	  major_unresolved INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS quibble_rounds (
	  session_id TEXT NOT NULL REFERENCES quibble_sessions(id),
	  round INTEGER NOT NULL,
	  issues INTEGER NOT NULL DEFAULT 0,
	  opportunities INTEGER NOT NULL DEFAULT 0,
	  consensus_claimed BOOLEAN NOT NULL DEFAULT FALSE,
	  verdict TEXT,
	  duration_ms BIGINT NOT NULL DEFAULT 0,
	  PRIMARY KEY (session_id, round)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quibble_sessions_started ON quibble_sessions(started_at)`,
}

// OpenPostgres connects to the DSN and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	for _, stmt := range pgStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) SessionStarted(m session.Manifest) error {
	r := recordFromManifest(m)
	_, err := p.pool.Exec(context.Background(), `
		INSERT INTO quibble_sessions (id, input_file, output_file, started_at, status, rounds)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, rounds = EXCLUDED.rounds`,
		r.ID, r.InputFile, r.OutputFile, r.StartedAt.UTC(), r.Status, r.Rounds)
	return err
}

func (p *Postgres) RoundFinished(r RoundRecord) error {
	_, err := p.pool.Exec(context.Background(), `
		INSERT INTO quibble_rounds (session_id, round, issues, opportunities, consensus_claimed, verdict, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, round) DO UPDATE SET
		  issues = EXCLUDED.issues,
		  opportunities = EXCLUDED.opportunities,
		  consensus_claimed = EXCLUDED.consensus_claimed,
		  verdict = EXCLUDED.verdict,
		  duration_ms = EXCLUDED.duration_ms`,
		r.SessionID, r.Round, r.Issues, r.Opportunities, r.ConsensusClaimed, r.Verdict, r.DurationMS)
	return err
}

func (p *Postgres) SessionFinished(m session.Manifest) error {
	r := recordFromManifest(m)
	var completed *time.Time
	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		completed = &t
	}
	_, err := p.pool.Exec(context.Background(), `
		UPDATE quibble_sessions SET
		  completed_at = $1, status = $2, rounds = $3, issues_raised = $4,
		  issues_resolved = $5, critical_unresolved = $6, major_unresolved = $7
		WHERE id = $8`,
		completed, r.Status, r.Rounds, r.IssuesRaised, r.IssuesResolved,
		r.CriticalUnresolved, r.MajorUnresolved, r.ID)
	return err
}

func (p *Postgres) ListSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(context.Background(), `
		SELECT id, input_file, output_file, started_at, completed_at, status,
		       rounds, issues_raised, issues_resolved, critical_unresolved, major_unresolved
		FROM quibble_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		r, err := scanPgSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSession(id string) (*SessionRecord, bool, error) {
	rows, err := p.pool.Query(context.Background(), `
		SELECT id, input_file, output_file, started_at, completed_at, status,
		       rounds, issues_raised, issues_resolved, critical_unresolved, major_unresolved
		FROM quibble_sessions WHERE id = $1`, id)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	r, err := scanPgSession(rows)
	if err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func scanPgSession(rows pgx.Rows) (SessionRecord, error) {
	var r SessionRecord
	var completed *time.Time
	err := rows.Scan(&r.ID, &r.InputFile, &r.OutputFile, &r.StartedAt, &completed, &r.Status,
		&r.Rounds, &r.IssuesRaised, &r.IssuesResolved, &r.CriticalUnresolved, &r.MajorUnresolved)
	if err != nil {
		return r, err
	}
	r.CompletedAt = completed
	return r, nil
}
