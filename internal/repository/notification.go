package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
)

// NotificationRepository accesses the notifications table scoped to one
// project.
type NotificationRepository struct {
	db          *store.DB
	projectHash string
}

func NewNotificationRepository(db *store.DB, projectHash string) *NotificationRepository {
	return &NotificationRepository{db: db, projectHash: projectHash}
}

// Create queues a notification, e.g. a topic-shift alert or a tool
// suggestion.
func (r *NotificationRepository) Create(ctx context.Context, sessionID *string, kind, message string, payload map[string]interface{}) (*model.Notification, error) {
	id := uuid.NewString()
	now := time.Now().Unix()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	err = r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO notifications (id, project_hash, session_id, kind, message, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, r.projectHash, sessionID, kind, message, string(payloadJSON), now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &model.Notification{ID: id, ProjectHash: r.projectHash, SessionID: sessionID, Kind: kind, Message: message, Payload: payload, CreatedAt: now}, nil
}

// CountSince counts notifications of a given kind created for a session
// since a cutoff, used to enforce the tool-suggestion rate limit (at most
// two per session).
func (r *NotificationRepository) CountSince(ctx context.Context, sessionID, kind string, sinceUnix int64) (int, error) {
	var count int
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE project_hash = ? AND session_id = ? AND kind = ? AND created_at >= ?`,
		r.projectHash, sessionID, kind, sinceUnix).Scan(&count)
	return count, err
}

// Unread returns unread notifications for the project, newest first.
func (r *NotificationRepository) Unread(ctx context.Context, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT id, project_hash, session_id, kind, message, payload, created_at, read_at
		 FROM notifications WHERE project_hash = ? AND read_at IS NULL ORDER BY created_at DESC LIMIT ?`,
		r.projectHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Notification
	for rows.Next() {
		var n model.Notification
		var sessionID sql.NullString
		var payloadJSON string
		var readAt sql.NullInt64
		if err := rows.Scan(&n.ID, &n.ProjectHash, &sessionID, &n.Kind, &n.Message, &payloadJSON, &n.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		if sessionID.Valid {
			n.SessionID = &sessionID.String
		}
		_ = json.Unmarshal([]byte(payloadJSON), &n.Payload)
		if readAt.Valid {
			n.ReadAt = &readAt.Int64
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
