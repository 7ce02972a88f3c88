package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mfelix/quibble/internal/session"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  input_file TEXT NOT NULL,
  output_file TEXT NOT NULL,
  started_at TEXT NOT NULL,
  completed_at TEXT,
  status TEXT NOT NULL,
  rounds INTEGER NOT NULL DEFAULT 0,
  issues_raised INTEGER NOT NULL DEFAULT 0,
  issues_resolved INTEGER NOT NULL DEFAULT 0,
  critical_unresolved INTEGER NOT NULL DEFAULT 0,
  major_unresolved INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rounds (
  session_id TEXT NOT NULL REFERENCES sessions(id),
  round INTEGER NOT NULL,
  issues INTEGER NOT NULL DEFAULT 0,
  opportunities INTEGER NOT NULL DEFAULT 0,
  consensus_claimed INTEGER NOT NULL DEFAULT 0,
  verdict TEXT,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, round)
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`

// SQLite is the default local history index.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the history database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) SessionStarted(m session.Manifest) error {
	r := recordFromManifest(m)
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, input_file, output_file, started_at, status, rounds)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, rounds = excluded.rounds`,
		r.ID, r.InputFile, r.OutputFile, r.StartedAt.UTC().Format(time.RFC3339), r.Status, r.Rounds)
	return err
}

func (s *SQLite) RoundFinished(r RoundRecord) error {
	claimed := 0
	if r.ConsensusClaimed {
		claimed = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO rounds (session_id, round, issues, opportunities, consensus_claimed, verdict, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, round) DO UPDATE SET
		  issues = excluded.issues,
		  opportunities = excluded.opportunities,
		  consensus_claimed = excluded.consensus_claimed,
		  verdict = excluded.verdict,
		  duration_ms = excluded.duration_ms`,
		r.SessionID, r.Round, r.Issues, r.Opportunities, claimed, r.Verdict, r.DurationMS)
	return err
}

func (s *SQLite) SessionFinished(m session.Manifest) error {
	r := recordFromManifest(m)
	var completed any
	if r.CompletedAt != nil {
		completed = r.CompletedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		UPDATE sessions SET
		  completed_at = ?,
		  status = ?,
		  rounds = ?,
		  issues_raised = ?,
		  issues_resolved = ?,
		  critical_unresolved = ?,
		  major_unresolved = ?
		WHERE id = ?`,
		completed, r.Status, r.Rounds, r.IssuesRaised, r.IssuesResolved,
		r.CriticalUnresolved, r.MajorUnresolved, r.ID)
	return err
}

func (s *SQLite) ListSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, input_file, output_file, started_at, completed_at, status,
		       rounds, issues_raised, issues_resolved, critical_unresolved, major_unresolved
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) GetSession(id string) (*SessionRecord, bool, error) {
	rows, err := s.db.Query(`
		SELECT id, input_file, output_file, started_at, completed_at, status,
		       rounds, issues_raised, issues_resolved, critical_unresolved, major_unresolved
		FROM sessions WHERE id = ?`, id)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	r, err := scanSession(rows)
	if err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func scanSession(rows *sql.Rows) (SessionRecord, error) {
	var r SessionRecord
	var started string
	var completed sql.NullString
	err := rows.Scan(&r.ID, &r.InputFile, &r.OutputFile, &started, &completed, &r.Status,
		&r.Rounds, &r.IssuesRaised, &r.IssuesResolved, &r.CriticalUnresolved, &r.MajorUnresolved)
	if err != nil {
		return r, err
	}
	if t, perr := time.Parse(time.RFC3339, started); perr == nil {
		r.StartedAt = t
	}
	if completed.Valid {
		if t, perr := time.Parse(time.RFC3339, completed.String); perr == nil {
			r.CompletedAt = &t
		}
	}
	return r, nil
}
