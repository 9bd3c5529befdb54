// Package journal keeps a SQLite history of workspace sessions.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var (
	_ ports.Journal       = (*Journal)(nil)
	_ ports.JournalOpener = Opener{}
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	targets TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS outcomes (
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	task TEXT NOT NULL,
	kind TEXT NOT NULL,
	state TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (session_id, seq),
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
`

// Journal implements ports.Journal on a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrJournalOpenFailed.Error()), "path", path)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrJournalOpenFailed.Error()), "path", path)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, domain.ErrJournalMigrateFailed.Error()), "path", path)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores summary and its outcomes in one transaction.
// An empty ID is replaced by a fresh UUID.
func (j *Journal) Record(ctx context.Context, summary *domain.SessionSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}

	targets, err := json.Marshal(summary.Targets)
	if err != nil {
		return zerr.Wrap(err, domain.ErrJournalWriteFailed.Error())
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return zerr.Wrap(err, domain.ErrJournalWriteFailed.Error())
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, targets, started_at, ended_at, error) VALUES (?, ?, ?, ?, ?)`,
		summary.ID, string(targets), summary.StartedAt.UnixNano(), summary.EndedAt.UnixNano(), summary.Error,
	)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrJournalWriteFailed.Error()), "session", summary.ID)
	}

	for i, o := range summary.Outcomes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outcomes (session_id, seq, task, kind, state, duration_ns, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			summary.ID, i, o.Task, o.Kind.String(), o.State.String(), int64(o.Duration), o.Error,
		)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrJournalWriteFailed.Error()), "task", o.Task)
		}
	}

	if err := tx.Commit(); err != nil {
		return zerr.Wrap(err, domain.ErrJournalWriteFailed.Error())
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, targets, started_at, ended_at, error FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrJournalReadFailed.Error())
	}
	defer rows.Close() //nolint:errcheck // read-only

	var sessions []domain.SessionSummary
	for rows.Next() {
		var s domain.SessionSummary
		var targets string
		var started, ended int64
		if err := rows.Scan(&s.ID, &targets, &started, &ended, &s.Error); err != nil {
			return nil, zerr.Wrap(err, domain.ErrJournalReadFailed.Error())
		}
		if err := json.Unmarshal([]byte(targets), &s.Targets); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrJournalReadFailed.Error()), "session", s.ID)
		}
		s.StartedAt = time.Unix(0, started).UTC()
		s.EndedAt = time.Unix(0, ended).UTC()
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, domain.ErrJournalReadFailed.Error())
	}
	// The single connection is free again once rows is drained.
	for i := range sessions {
		outcomes, err := j.outcomes(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Outcomes = outcomes
	}

	return sessions, nil
}

func (j *Journal) outcomes(ctx context.Context, sessionID string) ([]domain.TaskOutcome, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT task, kind, state, duration_ns, error FROM outcomes WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrJournalReadFailed.Error()), "session", sessionID)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []domain.TaskOutcome
	for rows.Next() {
		var o domain.TaskOutcome
		var kind, state string
		var duration int64
		if err := rows.Scan(&o.Task, &kind, &state, &duration, &o.Error); err != nil {
			return nil, zerr.Wrap(err, domain.ErrJournalReadFailed.Error())
		}
		o.Kind, _ = domain.ParseTaskKind(kind)
		o.State = domain.ParseTaskState(state)
		o.Duration = time.Duration(duration)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, domain.ErrJournalReadFailed.Error())
	}
	return out, nil
}

// Opener opens the journal kept under a project root.
type Opener struct{}

// Open opens <root>/.kiln/journal.db.
func (Opener) Open(ctx context.Context, root string) (ports.Journal, error) {
	return Open(ctx, filepath.Join(root, domain.DefaultJournalPath()))
}
