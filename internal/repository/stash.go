package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
)

// StashRepository accesses the stashes table scoped to one project.
type StashRepository struct {
	db          *store.DB
	projectHash string
}

func NewStashRepository(db *store.DB, projectHash string) *StashRepository {
	return &StashRepository{db: db, projectHash: projectHash}
}

// Create records a topic-shift stash with its frozen observation snapshot.
func (r *StashRepository) Create(ctx context.Context, sessionID *string, topicLabel, summary string, observationIDs []string, snapshot []model.ObservationSnapshot) (*model.Stash, error) {
	id := uuid.NewString()
	now := time.Now().Unix()
	obsJSON, err := json.Marshal(observationIDs)
	if err != nil {
		return nil, err
	}
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	err = r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO stashes (id, project_hash, session_id, topic_label, summary, observation_ids, snapshot, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'stashed', ?, ?)`,
			id, r.projectHash, sessionID, topicLabel, summary, string(obsJSON), string(snapJSON), now, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create stash: %w", err)
	}
	return &model.Stash{
		ID: id, ProjectHash: r.projectHash, SessionID: sessionID, TopicLabel: topicLabel, Summary: summary,
		ObservationIDs: observationIDs, Snapshot: snapshot, Status: model.StashStashed, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func scanStash(row interface{ Scan(...any) error }) (*model.Stash, error) {
	var s model.Stash
	var sessionID sql.NullString
	var obsJSON, snapJSON string
	if err := row.Scan(&s.ID, &s.ProjectHash, &sessionID, &s.TopicLabel, &s.Summary, &obsJSON, &snapJSON, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if sessionID.Valid {
		s.SessionID = &sessionID.String
	}
	_ = json.Unmarshal([]byte(obsJSON), &s.ObservationIDs)
	_ = json.Unmarshal([]byte(snapJSON), &s.Snapshot)
	return &s, nil
}

const stashSelectList = `id, project_hash, session_id, topic_label, summary, observation_ids, snapshot, status, created_at, updated_at`

// Recent returns the most recent stashes for the project (topic-context
// retrieval), regardless of status.
func (r *StashRepository) Recent(ctx context.Context, limit int) ([]*model.Stash, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+stashSelectList+` FROM stashes WHERE project_hash = ? ORDER BY created_at DESC LIMIT ?`,
		r.projectHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Stash
	for rows.Next() {
		s, err := scanStash(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkResumed transitions a stash to resumed (the user returned to its
// topic).
func (r *StashRepository) MarkResumed(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE stashes SET status = 'resumed', updated_at = ? WHERE id = ? AND project_hash = ?`,
			time.Now().Unix(), id, r.projectHash)
		return err
	})
}

// ExpireOlderThan transitions stashed (not resumed) entries older than
// ageSeconds to expired.
func (r *StashRepository) ExpireOlderThan(ctx context.Context, ageSeconds int64) (int, error) {
	var affected int
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE stashes SET status = 'expired', updated_at = ?
			WHERE project_hash = ? AND status = 'stashed' AND created_at < ?`,
			time.Now().Unix(), r.projectHash, time.Now().Unix()-ageSeconds)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		affected = int(n)
		return nil
	})
	return affected, err
}
