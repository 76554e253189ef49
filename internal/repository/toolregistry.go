package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
)

// ToolRegistryRepository accesses tool_registry and tool_usage_events.
// Entries can be global (project_hash NULL) or project-scoped, so unlike
// most repositories this one is not constructed with a fixed project hash
// for every method — RecordUsage and Discover take it explicitly.
type ToolRegistryRepository struct {
	db *store.DB
}

func NewToolRegistryRepository(db *store.DB) *ToolRegistryRepository {
	return &ToolRegistryRepository{db: db}
}

// RecordUsage increments usage_count and last_used_at for name, creating a
// demoted-by-default builtin entry if none exists yet (the ingestion
// pipeline's tool-usage-recording stage runs unconditionally, even for
// tools never explicitly registered).
func (r *ToolRegistryRepository) RecordUsage(ctx context.Context, name, projectHash string, success bool) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		now := time.Now().Unix()
		res, err := conn.ExecContext(ctx,
			`UPDATE tool_registry SET usage_count = usage_count + 1, last_used_at = ?, updated_at = ? WHERE name = ?`,
			now, now, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := conn.ExecContext(ctx, `
				INSERT INTO tool_registry (name, tool_type, scope, project_hash, source, usage_count, last_used_at, discovered_at, updated_at, status)
				VALUES (?, 'builtin', 'project', ?, 'discovery:usage', 1, ?, ?, ?, 'active')`,
				name, projectHash, now, now, now); err != nil {
				return err
			}
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO tool_usage_events (tool_name, project_hash, success, created_at) VALUES (?, ?, ?, ?)`,
			name, projectHash, success, now); err != nil {
			return err
		}
		return nil
	})
}

// Register upserts a tool registry entry from configuration or discovery.
func (r *ToolRegistryRepository) Register(ctx context.Context, e model.ToolRegistryEntry) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		now := time.Now().Unix()
		_, err := conn.ExecContext(ctx, `
			INSERT INTO tool_registry (name, tool_type, scope, project_hash, source, description, usage_count, last_used_at, discovered_at, updated_at, status)
			VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, 'active')
			ON CONFLICT(name) DO UPDATE SET
				tool_type = excluded.tool_type,
				scope = excluded.scope,
				project_hash = excluded.project_hash,
				source = excluded.source,
				description = excluded.description,
				updated_at = excluded.updated_at`,
			e.Name, e.Type, e.Scope, e.ProjectHash, e.Source, e.Description, now, now)
		return err
	})
}

func scanToolEntry(row interface{ Scan(...any) error }) (*model.ToolRegistryEntry, error) {
	var e model.ToolRegistryEntry
	var projectHash, description sql.NullString
	var lastUsedAt sql.NullInt64
	if err := row.Scan(&e.Name, &e.Type, &e.Scope, &projectHash, &e.Source, &description, &e.UsageCount, &lastUsedAt, &e.DiscoveredAt, &e.UpdatedAt, &e.Status); err != nil {
		return nil, err
	}
	if projectHash.Valid {
		e.ProjectHash = &projectHash.String
	}
	if description.Valid {
		e.Description = &description.String
	}
	if lastUsedAt.Valid {
		e.LastUsedAt = &lastUsedAt.Int64
	}
	return &e, nil
}

const toolEntrySelectList = `name, tool_type, scope, project_hash, source, description, usage_count, last_used_at, discovered_at, updated_at, status`

// Discover returns tool registry entries visible to projectHash (global
// entries plus that project's own), optionally filtered by a keyword
// substring match against name or description.
func (r *ToolRegistryRepository) Discover(ctx context.Context, projectHash, keyword string) ([]*model.ToolRegistryEntry, error) {
	query := `SELECT ` + toolEntrySelectList + ` FROM tool_registry WHERE (scope = 'global' OR project_hash = ?)`
	args := []any{projectHash}
	if keyword != "" {
		query += ` AND (name LIKE ? OR description LIKE ?)`
		like := "%" + keyword + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY usage_count DESC LIMIT 50`

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ToolRegistryEntry
	for rows.Next() {
		e, err := scanToolEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UsageReport summarizes recent tool_usage_events for projectHash.
type UsageReport struct {
	ToolName     string
	Invocations  int
	Successes    int
}

// Report aggregates tool usage for the project over all recorded history.
func (r *ToolRegistryRepository) Report(ctx context.Context, projectHash string) ([]UsageReport, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT tool_name, COUNT(*), SUM(CASE WHEN success THEN 1 ELSE 0 END)
		FROM tool_usage_events WHERE project_hash = ? GROUP BY tool_name ORDER BY COUNT(*) DESC`,
		projectHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UsageReport
	for rows.Next() {
		var u UsageReport
		if err := rows.Scan(&u.ToolName, &u.Invocations, &u.Successes); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MarkStale demotes tool registry entries untouched for staleAfterSeconds.
func (r *ToolRegistryRepository) MarkStale(ctx context.Context, staleAfterSeconds int64) (int, error) {
	var affected int
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE tool_registry SET status = 'stale', updated_at = ?
			WHERE status = 'active' AND (last_used_at IS NULL OR last_used_at < ?)`,
			time.Now().Unix(), time.Now().Unix()-staleAfterSeconds)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		affected = int(n)
		return nil
	})
	return affected, err
}
