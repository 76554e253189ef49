// Package store owns the embedded SQLite database: opening it with the
// correct PRAGMA sequence for safe multi-process concurrent access, loading
// the optional sqlite-vec extension, and running the append-only migration
// runner. It is grounded on the teacher's memory-core store/schema.go, which
// this package generalizes from a single-table file index into the full
// agentmem schema.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kiosk404/agentmem/internal/logging"
)

// DB is the process-wide facade over the single SQLite connection. Every
// agentmem process (memhook, memd) holds exactly one.
type DB struct {
	conn            *sql.DB
	path            string
	vectorAvailable bool
	ftsAvailable    bool
}

// Options configures Open.
type Options struct {
	// Path is the database file path. Its parent directory is created if
	// absent.
	Path string
	// VecExtensionPath is the sqlite-vec shared library path. Empty disables
	// vector search entirely without attempting to load anything.
	VecExtensionPath string
}

// Open creates the containing directory if needed, opens the database with
// the fixed PRAGMA sequence, attempts to load the vector extension, and runs
// migrations. The first two PRAGMAs (journal_mode, busy_timeout) are
// fail-fast; everything else degrades gracefully.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	// sqlite3_enable_load_extension must be set at the driver level before
	// open; mattn/go-sqlite3 exposes this through a registered driver name
	// carrying a ConnectHook, but the simple DSN-based path below is
	// sufficient since go-sqlite3 enables load_extension() by default when
	// built without the `sqlite_omit_load_extension` tag.
	conn, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// A single shared connection models the spec's "one persistent
	// connection per process": concurrent callers serialize in-process
	// rather than racing separate *sql.DB connections against the busy
	// timeout.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn, path: opts.Path}

	if err := db.applyFixedPragmas(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	db.vectorAvailable = db.tryLoadVectorExtension(opts.VecExtensionPath)

	if err := runMigrations(ctx, db); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrations: %w", err)
	}

	return db, nil
}

// applyFixedPragmas runs the PRAGMA sequence in the exact order the spec
// mandates. journal_mode and busy_timeout are fail-fast; the rest are logged
// on failure but do not abort startup.
func (db *DB) applyFixedPragmas(ctx context.Context) error {
	var mode string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("store: set WAL journal mode: %w", err)
	}
	walActive := mode == "wal"
	if !walActive {
		logging.Warn("[store] WAL journal mode did not activate (got %q); upgrading synchronous to FULL", mode)
	}

	if _, err := db.conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("store: set busy_timeout: %w", err)
	}

	synchronous := "NORMAL"
	if !walActive {
		synchronous = "FULL"
	}
	if _, err := db.conn.ExecContext(ctx, "PRAGMA synchronous="+synchronous); err != nil {
		logging.Warn("[store] failed to set synchronous=%s: %v", synchronous, err)
	}
	if _, err := db.conn.ExecContext(ctx, "PRAGMA cache_size=-65536"); err != nil { // 64 MiB, negative = KiB
		logging.Warn("[store] failed to set page cache size: %v", err)
	}
	if _, err := db.conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		logging.Warn("[store] failed to enable foreign keys: %v", err)
	}
	if _, err := db.conn.ExecContext(ctx, "PRAGMA temp_store=MEMORY"); err != nil {
		logging.Warn("[store] failed to set temp_store: %v", err)
	}
	if _, err := db.conn.ExecContext(ctx, "PRAGMA wal_autocheckpoint=1000"); err != nil {
		logging.Warn("[store] failed to set wal_autocheckpoint: %v", err)
	}
	return nil
}

// tryLoadVectorExtension loads the sqlite-vec shared library. Failure only
// sets the process-wide "vector unavailable" flag; it never aborts startup.
func (db *DB) tryLoadVectorExtension(path string) bool {
	if path == "" {
		logging.Info("[store] no vec-extension-path configured, vector search disabled")
		return false
	}
	if _, err := db.conn.Exec("SELECT load_extension(?)", path); err != nil {
		logging.Warn("[store] failed to load sqlite-vec extension from %s: %v", path, err)
		return false
	}
	logging.Info("[store] sqlite-vec extension loaded from %s", path)
	return true
}

// VectorAvailable reports whether the vector index extension loaded
// successfully at open time.
func (db *DB) VectorAvailable() bool { return db.vectorAvailable }

// FTSAvailable reports whether the observations_fts virtual table exists.
func (db *DB) FTSAvailable() bool { return db.ftsAvailable }

// Conn returns the underlying *sql.DB for use by the repository layer.
func (db *DB) Conn() *sql.DB { return db.conn }

// Checkpoint runs a passive WAL checkpoint, bounding the write-ahead-log
// file size. Callers invoke this at session boundaries. Failure is logged
// and ignored, never propagated.
func (db *DB) Checkpoint(ctx context.Context) {
	if _, err := db.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		logging.Warn("[store] passive checkpoint failed: %v", err)
	}
}

// Close passively checkpoints then closes the connection.
func (db *DB) Close() error {
	db.Checkpoint(context.Background())
	return db.conn.Close()
}

// WithTx runs fn inside an explicit BEGIN IMMEDIATE write transaction on a
// single checked-out connection, committing on success and rolling back on
// error or panic. database/sql's Tx type has no way to request IMMEDIATE
// mode, so this checks out one physical *sql.Conn from the (size-1) pool and
// issues the raw statement directly. Callers must never start a transaction
// any other way: the default deferred mode lets a read-then-write lock
// upgrade bypass the busy-wait timeout entirely and return SQLITE_BUSY
// immediately instead of waiting.
func (db *DB) WithTx(ctx context.Context, fn func(conn *sql.Conn) error) (err error) {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: checkout connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("store: begin immediate: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			panic(p)
		}
	}()

	if err := fn(conn); err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			logging.Warn("[store] rollback failed: %v", rbErr)
		}
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// now returns the current time truncated to second precision, matching the
// integer unix timestamps used throughout the schema.
func now() int64 { return time.Now().Unix() }
