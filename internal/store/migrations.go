package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kiosk404/agentmem/internal/logging"
)

// Migration is one numbered, named, idempotent schema step. VectorDependent
// migrations are skipped (not recorded as applied) when the vector extension
// failed to load, so they retry on every future open until it becomes
// available — this is how the vector index either ends up fully present or
// entirely absent, never partial, per the storage engine's failure model.
type Migration struct {
	Version         int
	Name            string
	VectorDependent bool
	Apply           func(ctx context.Context, conn *sql.Conn) error
}

const migrationsTable = `_migrations`

func ensureMigrationsTable(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`)
	return err
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM `+migrationsTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// runMigrations applies every not-yet-applied migration in version order.
// Each migration runs inside its own BEGIN IMMEDIATE transaction. A
// vector-dependent migration is silently skipped (left unrecorded) when the
// vector extension did not load.
func runMigrations(ctx context.Context, db *DB) error {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := ensureMigrationsTable(ctx, conn); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if m.VectorDependent && !db.vectorAvailable {
			logging.Info("[store] skipping vector-dependent migration %03d_%s (extension unavailable); will retry on next open", m.Version, m.Name)
			continue
		}
		if err := db.WithTx(ctx, func(tx *sql.Conn) error {
			if err := m.Apply(ctx, tx); err != nil {
				return fmt.Errorf("migration %03d_%s: %w", m.Version, m.Name, err)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO `+migrationsTable+` (version, name, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Name, now())
			return err
		}); err != nil {
			return err
		}
		logging.Info("[store] applied migration %03d_%s", m.Version, m.Name)
	}

	db.ftsAvailable = isApplied(ctx, conn, 2)
	return nil
}

func isApplied(ctx context.Context, conn *sql.Conn, version int) bool {
	var count int
	_ = conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+migrationsTable+` WHERE version = ?`, version).Scan(&count)
	return count > 0
}

// migrations is the append-only, ordered list of schema changes. Never edit
// a released entry; add a new one instead.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "base_schema",
		Apply:   migration001BaseSchema,
	},
	{
		Version: 2,
		Name:    "observations_fts",
		Apply:   migration002ObservationsFTS,
	},
	{
		Version:         3,
		Name:            "observations_vec",
		VectorDependent: true,
		Apply:           migration003ObservationsVec,
	},
	{
		Version: 4,
		Name:    "tool_usage_events",
		Apply:   migration004ToolUsageEvents,
	},
	{
		Version: 5,
		Name:    "embedding_cache",
		Apply:   migration005EmbeddingCache,
	},
}

func migration001BaseSchema(ctx context.Context, conn *sql.Conn) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			project_hash TEXT NOT NULL,
			session_id TEXT,
			source TEXT NOT NULL,
			title TEXT,
			content TEXT NOT NULL,
			embedding BLOB,
			embedding_model TEXT,
			embedding_version TEXT,
			classification TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			deleted_at INTEGER,
			CHECK (length(content) >= 1 AND length(content) <= 100000),
			CHECK (classification IS NULL OR classification IN ('noise','discovery','problem','solution'))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_observations_project_id ON observations(project_hash, id)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_project_unclassified ON observations(project_hash, classification) WHERE classification IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_deleted ON observations(deleted_at)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			summary TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_hash)`,

		`CREATE TABLE IF NOT EXISTS knowledge_graph_nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL CHECK (type IN ('File','Project','Reference','Decision','Problem','Solution')),
			name TEXT NOT NULL,
			project_hash TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			observation_ids TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(project_hash, type, name)
		)`,

		`CREATE TABLE IF NOT EXISTS knowledge_graph_edges (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES knowledge_graph_nodes(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES knowledge_graph_nodes(id) ON DELETE CASCADE,
			type TEXT NOT NULL CHECK (type IN ('related_to','solved_by','caused_by','modifies','informed_by','references','verified_by','preceded_by')),
			weight REAL NOT NULL CHECK (weight >= 0 AND weight <= 1),
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kg_edges_source ON knowledge_graph_edges(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_kg_edges_target ON knowledge_graph_edges(target_id)`,

		`CREATE TABLE IF NOT EXISTS debug_paths (
			id TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('active','resolved','abandoned')),
			trigger_summary TEXT NOT NULL,
			resolution_summary TEXT,
			kiss_summary TEXT,
			started_at INTEGER NOT NULL,
			resolved_at INTEGER
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_debug_paths_one_active ON debug_paths(project_hash) WHERE status = 'active'`,

		`CREATE TABLE IF NOT EXISTS path_waypoints (
			id TEXT PRIMARY KEY,
			path_id TEXT NOT NULL REFERENCES debug_paths(id) ON DELETE CASCADE,
			observation_id TEXT,
			waypoint_type TEXT NOT NULL CHECK (waypoint_type IN ('error','attempt','failure','success','pivot','revert','discovery','resolution')),
			sequence_order INTEGER NOT NULL,
			summary TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(path_id, sequence_order)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_path_waypoints_path ON path_waypoints(path_id)`,

		`CREATE TABLE IF NOT EXISTS tool_registry (
			name TEXT PRIMARY KEY,
			tool_type TEXT NOT NULL CHECK (tool_type IN ('mcp_server','slash_command','skill','plugin','builtin')),
			scope TEXT NOT NULL CHECK (scope IN ('global','project','plugin')),
			project_hash TEXT,
			source TEXT NOT NULL,
			description TEXT,
			usage_count INTEGER NOT NULL DEFAULT 0,
			last_used_at INTEGER,
			discovered_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','stale','demoted'))
		)`,

		`CREATE TABLE IF NOT EXISTS stashes (
			id TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			session_id TEXT,
			topic_label TEXT NOT NULL,
			summary TEXT NOT NULL,
			observation_ids TEXT NOT NULL DEFAULT '[]',
			snapshot TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'stashed' CHECK (status IN ('stashed','resumed','expired')),
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stashes_project ON stashes(project_hash)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			session_id TEXT,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			read_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_project ON notifications(project_hash)`,

		`CREATE TABLE IF NOT EXISTS threshold_store (
			project_hash TEXT NOT NULL,
			session_id TEXT NOT NULL,
			ewma_mean REAL NOT NULL DEFAULT 0,
			ewma_variance REAL NOT NULL DEFAULT 0,
			sample_count INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (project_hash, session_id)
		)`,

		`CREATE TABLE IF NOT EXISTS shift_decisions (
			id TEXT PRIMARY KEY,
			project_hash TEXT NOT NULL,
			session_id TEXT NOT NULL,
			observation_id TEXT NOT NULL,
			distance REAL NOT NULL,
			threshold REAL NOT NULL,
			ewma_mean REAL NOT NULL,
			ewma_variance REAL NOT NULL,
			shifted INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shift_decisions_session ON shift_decisions(project_hash, session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// migration002ObservationsFTS creates the external-content FTS5 index over
// (title, content) keyed by the stable integer rowid, plus the sync
// triggers that keep it consistent with observations.
func migration002ObservationsFTS(ctx context.Context, conn *sql.Conn) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
			title, content,
			content='observations',
			content_rowid='rowid',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
			INSERT INTO observations_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
			INSERT INTO observations_fts(observations_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
			INSERT INTO observations_fts(observations_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			INSERT INTO observations_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
		END`,
		// Backfill any rows already present (fresh database: no-op).
		`INSERT INTO observations_fts(observations_fts) VALUES ('rebuild')`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// migration003ObservationsVec creates the vec0 virtual table holding
// float[384] embeddings keyed by the observation's text identifier. Skipped
// entirely (see VectorDependent) when the extension did not load.
func migration003ObservationsVec(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `CREATE VIRTUAL TABLE IF NOT EXISTS observations_vec USING vec0(
		observation_id TEXT PRIMARY KEY,
		embedding float[384]
	)`)
	return err
}

func migration004ToolUsageEvents(ctx context.Context, conn *sql.Conn) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tool_usage_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tool_name TEXT NOT NULL,
			project_hash TEXT NOT NULL,
			success INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_usage_events_tool ON tool_usage_events(tool_name)`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// migration005EmbeddingCache adds a content-hash-keyed embedding cache,
// recovered from the teacher's memory-core embedding_cache table: when the
// same content is re-embedded (e.g. after a duplicate-suppression miss, or
// a merge in curation) the provider call is skipped.
func migration005EmbeddingCache(ctx context.Context, conn *sql.Conn) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			embedding BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (provider, model, content_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embedding_cache_updated_at ON embedding_cache(updated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
