// Package repository holds the prepared-statement-backed accessors for
// every entity family. Each repository is constructed with (*store.DB,
// project-identity) and scopes every query to that identity implicitly,
// the way the teacher's store/operations.go binds its CRUD helpers to a
// single *sql.DB and a file path rather than a project hash — generalized
// here from "one file's chunks" to "one project's rows".
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/agentmem/internal/model"
	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/vecenc"
)

// DefaultListLimit and MaxListLimit bound observation listing.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ObservationRepository accesses the observations table scoped to one
// project identity.
type ObservationRepository struct {
	db          *store.DB
	projectHash string
}

func NewObservationRepository(db *store.DB, projectHash string) *ObservationRepository {
	return &ObservationRepository{db: db, projectHash: projectHash}
}

// CreateInput is the validated payload for Create.
type CreateInput struct {
	SessionID *string
	Source    string
	Title     *string
	Content   string
}

// Create inserts a new observation, generating its opaque identifier, and
// reads the row back by its assigned integer row identifier so the caller
// observes exactly what was committed (including trigger-maintained FTS
// state).
func (r *ObservationRepository) Create(ctx context.Context, in CreateInput) (*model.Observation, error) {
	if len(in.Content) < 1 || len(in.Content) > 100_000 {
		return nil, fmt.Errorf("repository: content length %d out of bounds [1,100000]", len(in.Content))
	}
	id := uuid.NewString()
	now := time.Now().Unix()

	var rowID int64
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO observations (id, project_hash, session_id, source, title, content, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, r.projectHash, in.SessionID, in.Source, in.Title, in.Content, now, now)
		if err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
		rowID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.FindByRowID(ctx, rowID, false)
}

// scanObservation scans a single row matching the common select list.
func scanObservation(row interface{ Scan(...any) error }) (*model.Observation, error) {
	var o model.Observation
	var sessionID, title, embeddingModel, embeddingVersion, classification sql.NullString
	var embedding []byte
	var deletedAt sql.NullInt64

	if err := row.Scan(
		&o.RowID, &o.ID, &o.ProjectHash, &sessionID, &o.Source, &title, &o.Content,
		&embedding, &embeddingModel, &embeddingVersion, &classification,
		&o.CreatedAt, &o.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}
	if sessionID.Valid {
		o.SessionID = &sessionID.String
	}
	if title.Valid {
		o.Title = &title.String
	}
	if embeddingModel.Valid {
		o.EmbeddingModel = &embeddingModel.String
	}
	if embeddingVersion.Valid {
		o.EmbeddingVersion = &embeddingVersion.String
	}
	if classification.Valid {
		c := model.Classification(classification.String)
		o.Classification = &c
	}
	if deletedAt.Valid {
		o.DeletedAt = &deletedAt.Int64
	}
	if len(embedding) > 0 {
		v, err := vecenc.DecodeBytes(embedding)
		if err != nil {
			return nil, err
		}
		o.Embedding = v
	}
	return &o, nil
}

const observationSelectList = `rowid, id, project_hash, session_id, source, title, content, embedding, embedding_model, embedding_version, classification, created_at, updated_at, deleted_at`

// FindByRowID looks up an observation by its stable integer row identifier.
// includeDeleted controls whether soft-deleted rows are visible, needed by
// the restore path.
func (r *ObservationRepository) FindByRowID(ctx context.Context, rowID int64, includeDeleted bool) (*model.Observation, error) {
	query := `SELECT ` + observationSelectList + ` FROM observations WHERE rowid = ? AND project_hash = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	row := r.db.Conn().QueryRowContext(ctx, query, rowID, r.projectHash)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// FindByID looks up an observation by its opaque text identifier.
func (r *ObservationRepository) FindByID(ctx context.Context, id string, includeDeleted bool) (*model.Observation, error) {
	query := `SELECT ` + observationSelectList + ` FROM observations WHERE id = ? AND project_hash = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	row := r.db.Conn().QueryRowContext(ctx, query, id, r.projectHash)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// SoftDelete sets the deletion timestamp. A no-op if already deleted.
func (r *ObservationRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE observations SET deleted_at = ?, updated_at = ? WHERE id = ? AND project_hash = ? AND deleted_at IS NULL`,
			time.Now().Unix(), time.Now().Unix(), id, r.projectHash)
		return err
	})
}

// Restore clears the deletion timestamp.
func (r *ObservationRepository) Restore(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE observations SET deleted_at = NULL, updated_at = ? WHERE id = ? AND project_hash = ?`,
			time.Now().Unix(), id, r.projectHash)
		return err
	})
}

// UpdateClassification sets the classification enum, and soft-deletes when
// the enrichment processor judged the observation noise.
func (r *ObservationRepository) UpdateClassification(ctx context.Context, id string, c model.Classification) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		now := time.Now().Unix()
		if c == model.ClassificationNoise {
			_, err := conn.ExecContext(ctx,
				`UPDATE observations SET classification = ?, deleted_at = ?, updated_at = ? WHERE id = ? AND project_hash = ?`,
				c, now, now, id, r.projectHash)
			return err
		}
		_, err := conn.ExecContext(ctx,
			`UPDATE observations SET classification = ?, updated_at = ? WHERE id = ? AND project_hash = ?`,
			c, now, id, r.projectHash)
		return err
	})
}

// UpdateEmbedding persists the embedding, model label, and version for an
// observation. Callers are responsible for also upserting the
// observations_vec row; the two updates are independent because the vector
// index may be entirely absent.
func (r *ObservationRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32, modelName, version string) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE observations SET embedding = ?, embedding_model = ?, embedding_version = ?, updated_at = ? WHERE id = ? AND project_hash = ?`,
			vecenc.EncodeBytes(embedding), modelName, version, time.Now().Unix(), id, r.projectHash)
		return err
	})
}

// ListFilter narrows List results.
type ListFilter struct {
	Source         *string
	Classification *model.Classification
	SessionID      *string
	IncludeDeleted bool
	BeforeRowID    int64 // cursor: only rows with rowid < BeforeRowID; 0 disables
	Limit          int
}

// List returns observations for the bound project in descending rowid
// order (newest first), applying cursor pagination and the default/maximum
// limit enforcement described in the spec.
func (r *ObservationRepository) List(ctx context.Context, f ListFilter) ([]*model.Observation, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT ` + observationSelectList + ` FROM observations WHERE project_hash = ?`
	args := []any{r.projectHash}
	if !f.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	if f.Source != nil {
		query += ` AND source = ?`
		args = append(args, *f.Source)
	}
	if f.Classification != nil {
		query += ` AND classification = ?`
		args = append(args, *f.Classification)
	}
	if f.SessionID != nil {
		query += ` AND session_id = ?`
		args = append(args, *f.SessionID)
	}
	if f.BeforeRowID > 0 {
		query += ` AND rowid < ?`
		args = append(args, f.BeforeRowID)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]*model.Observation, error) {
	var out []*model.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListUnclassified returns observations with a null classification across
// ALL projects, not just the bound one. The enrichment processor calls this
// directly (bypassing project scoping) to tolerate a project-hash mismatch
// between the server process and hook invocations — see Open Question 3:
// strict per-project scoping was considered and rejected because the
// enrichment processor has no reliable way to know which project hashes are
// "current" versus stale from a moved or renamed working directory.
func ListUnclassified(ctx context.Context, db *store.DB, limit int) ([]*model.Observation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.Conn().QueryContext(ctx,
		`SELECT `+observationSelectList+` FROM observations WHERE classification IS NULL AND deleted_at IS NULL ORDER BY rowid ASC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// ListWithNullEmbedding returns observations still awaiting the embedding
// worker, across the bound project only (embedding is a per-process
// concern tied to the hook's own project scope).
func (r *ObservationRepository) ListWithNullEmbedding(ctx context.Context, limit int) ([]*model.Observation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+observationSelectList+` FROM observations WHERE project_hash = ? AND embedding IS NULL AND deleted_at IS NULL ORDER BY rowid ASC LIMIT ?`,
		r.projectHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// LastEmbeddedInSession returns the most recently embedded observation in
// the given session, used by the topic-shift detector to diff against the
// new embedding. Returns nil if none yet.
func (r *ObservationRepository) LastEmbeddedInSession(ctx context.Context, sessionID string, beforeRowID int64) (*model.Observation, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+observationSelectList+` FROM observations WHERE project_hash = ? AND session_id = ? AND embedding IS NOT NULL AND rowid < ? ORDER BY rowid DESC LIMIT 1`,
		r.projectHash, sessionID, beforeRowID)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// DedupCandidates returns recent non-deleted embedded observations for the
// curation agent's near-duplicate clustering sweep (spec §4.5 step 1).
func (r *ObservationRepository) DedupCandidates(ctx context.Context, limit int) ([]*model.Observation, error) {
	if limit <= 0 {
		limit = MaxListLimit
	}
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+observationSelectList+` FROM observations WHERE project_hash = ? AND deleted_at IS NULL AND embedding IS NOT NULL ORDER BY rowid DESC LIMIT ?`,
		r.projectHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// MergeDuplicates folds duplicateIDs into keepID: the survivor's embedding
// is replaced with the cluster's mean, and every duplicate is soft-deleted.
// Merge provenance is the caller's per-tick report line, not a stored
// column (spec §4.5 step 1 "record merge provenance").
func (r *ObservationRepository) MergeDuplicates(ctx context.Context, keepID string, duplicateIDs []string, meanEmbedding []float32) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		now := time.Now().Unix()
		if _, err := conn.ExecContext(ctx,
			`UPDATE observations SET embedding = ?, updated_at = ? WHERE id = ? AND project_hash = ?`,
			vecenc.EncodeBytes(meanEmbedding), now, keepID, r.projectHash); err != nil {
			return err
		}
		for _, dupID := range duplicateIDs {
			if _, err := conn.ExecContext(ctx,
				`UPDATE observations SET deleted_at = ? WHERE id = ? AND project_hash = ?`,
				now, dupID, r.projectHash); err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneCandidates returns observations eligible for curation step 5's
// conservative low-value pruning: short, auto-captured (never
// user-saved/slash-command), older than the cutoff, and not referenced by
// any knowledge-graph node.
func (r *ObservationRepository) PruneCandidates(ctx context.Context, maxLen int, olderThanUnix int64) ([]*model.Observation, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+observationSelectList+` FROM observations o
		 WHERE o.project_hash = ? AND o.deleted_at IS NULL AND length(o.content) < ?
		   AND o.created_at < ? AND o.source NOT IN ('user-saved', 'slash-command')
		   AND NOT EXISTS (
		     SELECT 1 FROM knowledge_graph_nodes n
		     WHERE n.project_hash = o.project_hash AND n.observation_ids LIKE '%' || o.id || '%'
		   )`,
		r.projectHash, maxLen, olderThanUnix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}
