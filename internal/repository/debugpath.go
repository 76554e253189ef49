package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
)

// DebugPathRepository accesses debug_paths and path_waypoints scoped to one
// project.
type DebugPathRepository struct {
	db          *store.DB
	projectHash string
}

func NewDebugPathRepository(db *store.DB, projectHash string) *DebugPathRepository {
	return &DebugPathRepository{db: db, projectHash: projectHash}
}

func scanDebugPath(row interface{ Scan(...any) error }) (*model.DebugPath, error) {
	var p model.DebugPath
	var resolutionSummary, kissSummary sql.NullString
	var resolvedAt sql.NullInt64
	if err := row.Scan(&p.ID, &p.ProjectHash, &p.Status, &p.TriggerSummary, &resolutionSummary, &kissSummary, &p.StartedAt, &resolvedAt); err != nil {
		return nil, err
	}
	if resolutionSummary.Valid {
		p.ResolutionSummary = &resolutionSummary.String
	}
	if kissSummary.Valid {
		p.KISSSummary = &kissSummary.String
	}
	if resolvedAt.Valid {
		p.ResolvedAt = &resolvedAt.Int64
	}
	return &p, nil
}

const debugPathSelectList = `id, project_hash, status, trigger_summary, resolution_summary, kiss_summary, started_at, resolved_at`

// ActivePath returns the at-most-one active debug path for the project, or
// nil. Called at server restart to recover path-tracker state.
func (r *DebugPathRepository) ActivePath(ctx context.Context) (*model.DebugPath, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+debugPathSelectList+` FROM debug_paths WHERE project_hash = ? AND status = 'active'`, r.projectHash)
	p, err := scanDebugPath(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// StartPath creates a new active debug path. Fails if one is already
// active (the schema's partial unique index enforces this atomically).
func (r *DebugPathRepository) StartPath(ctx context.Context, triggerSummary string) (*model.DebugPath, error) {
	id := uuid.NewString()
	now := time.Now().Unix()
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO debug_paths (id, project_hash, status, trigger_summary, started_at) VALUES (?, ?, 'active', ?, ?)`,
			id, r.projectHash, triggerSummary, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("start debug path: %w", err)
	}
	return &model.DebugPath{ID: id, ProjectHash: r.projectHash, Status: model.DebugPathActive, TriggerSummary: triggerSummary, StartedAt: now}, nil
}

// Resolve marks a path resolved with its resolution and KISS summaries.
func (r *DebugPathRepository) Resolve(ctx context.Context, id, resolutionSummary, kissSummaryJSON string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE debug_paths SET status = 'resolved', resolution_summary = ?, kiss_summary = ?, resolved_at = ? WHERE id = ? AND project_hash = ?`,
			resolutionSummary, kissSummaryJSON, time.Now().Unix(), id, r.projectHash)
		return err
	})
}

// Abandon marks a path abandoned.
func (r *DebugPathRepository) Abandon(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE debug_paths SET status = 'abandoned', resolved_at = ? WHERE id = ? AND project_hash = ?`,
			time.Now().Unix(), id, r.projectHash)
		return err
	})
}

// FindByID returns a debug path by identifier within the bound project.
func (r *DebugPathRepository) FindByID(ctx context.Context, id string) (*model.DebugPath, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+debugPathSelectList+` FROM debug_paths WHERE id = ? AND project_hash = ?`, id, r.projectHash)
	p, err := scanDebugPath(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// List returns debug paths for the project, most recently started first.
func (r *DebugPathRepository) List(ctx context.Context, limit int) ([]*model.DebugPath, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+debugPathSelectList+` FROM debug_paths WHERE project_hash = ? ORDER BY started_at DESC LIMIT ?`,
		r.projectHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.DebugPath
	for rows.Next() {
		p, err := scanDebugPath(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendWaypoint appends a waypoint at the next monotonic sequence order.
// Returns (nil, nil) once the path already holds MaxWaypointsPerPath
// waypoints: resolution tracking continues, but no row is written.
func (r *DebugPathRepository) AppendWaypoint(ctx context.Context, pathID string, observationID *string, waypointType model.WaypointType, summary string) (*model.PathWaypoint, error) {
	var wp *model.PathWaypoint
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		var count int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM path_waypoints WHERE path_id = ?`, pathID).Scan(&count); err != nil {
			return err
		}
		if count >= model.MaxWaypointsPerPath {
			return nil
		}
		id := uuid.NewString()
		now := time.Now().Unix()
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO path_waypoints (id, path_id, observation_id, waypoint_type, sequence_order, summary, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, pathID, observationID, waypointType, count, summary, now); err != nil {
			return fmt.Errorf("insert waypoint: %w", err)
		}
		wp = &model.PathWaypoint{ID: id, PathID: pathID, ObservationID: observationID, Type: waypointType, SequenceOrder: count, Summary: summary, CreatedAt: now}
		return nil
	})
	return wp, err
}

// Waypoints returns every waypoint for a path, in sequence order.
func (r *DebugPathRepository) Waypoints(ctx context.Context, pathID string) ([]*model.PathWaypoint, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT id, path_id, observation_id, waypoint_type, sequence_order, summary, created_at
		 FROM path_waypoints WHERE path_id = ? ORDER BY sequence_order ASC`, pathID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.PathWaypoint
	for rows.Next() {
		var wp model.PathWaypoint
		var obsID sql.NullString
		if err := rows.Scan(&wp.ID, &wp.PathID, &obsID, &wp.Type, &wp.SequenceOrder, &wp.Summary, &wp.CreatedAt); err != nil {
			return nil, err
		}
		if obsID.Valid {
			wp.ObservationID = &obsID.String
		}
		out = append(out, &wp)
	}
	return out, rows.Err()
}

// WaypointCount reports how many waypoints a path currently holds.
func (r *DebugPathRepository) WaypointCount(ctx context.Context, pathID string) (int, error) {
	var count int
	err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM path_waypoints WHERE path_id = ?`, pathID).Scan(&count)
	return count, err
}
