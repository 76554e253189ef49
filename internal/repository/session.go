package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
)

// SessionRepository accesses the sessions table scoped to one project.
type SessionRepository struct {
	db          *store.DB
	projectHash string
}

func NewSessionRepository(db *store.DB, projectHash string) *SessionRepository {
	return &SessionRepository{db: db, projectHash: projectHash}
}

// Start creates a session row at a SessionStart event.
func (r *SessionRepository) Start(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO sessions (id, project_hash, started_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			id, r.projectHash, time.Now().Unix())
		return err
	})
}

// End finalizes a session with its generated summary at a SessionEnd event.
func (r *SessionRepository) End(ctx context.Context, id, summary string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE sessions SET ended_at = ?, summary = ? WHERE id = ? AND project_hash = ?`,
			time.Now().Unix(), summary, id, r.projectHash)
		return err
	})
}

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var endedAt sql.NullInt64
	var summary sql.NullString
	if err := row.Scan(&s.ID, &s.ProjectHash, &s.StartedAt, &endedAt, &summary); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Int64
	}
	if summary.Valid {
		s.Summary = &summary.String
	}
	return &s, nil
}

// FindByID returns a session, or nil if not found.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT id, project_hash, started_at, ended_at, summary FROM sessions WHERE id = ? AND project_hash = ?`,
		id, r.projectHash)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// LastEnded returns the most recently ended session for the project, used
// by the session-start context assembler to surface "last session's
// generated summary". Returns nil if no session has ended yet.
func (r *SessionRepository) LastEnded(ctx context.Context) (*model.Session, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT id, project_hash, started_at, ended_at, summary FROM sessions
		 WHERE project_hash = ? AND ended_at IS NOT NULL ORDER BY ended_at DESC LIMIT 1`,
		r.projectHash)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}
